package orchestrator

import (
	"time"

	"github.com/abuubaida2/Ai-Mental-health-Companion-App/emotion"
	"github.com/abuubaida2/Ai-Mental-health-Companion-App/history"
)

// Result is the response for a single modality.
type Result struct {
	Probabilities emotion.Distribution `json:"probabilities"`
	Dominant      string               `json:"dominant"`
	Warning       string               `json:"warning,omitempty"` // degraded model or storage failure
}

// Multimodal is the response for a text+audio analysis.
type Multimodal struct {
	Text    Result          `json:"text"`
	Audio   Result          `json:"audio"`
	Fused   emotion.Verdict `json:"fused"`
	Warning string          `json:"warning,omitempty"` // storage failure
}

// Summary aggregates a slice of history entries.
type Summary struct {
	SessionID   string                   `json:"session_id"`
	GeneratedAt time.Time                `json:"generated_at"`
	Entries     int                      `json:"entries"`
	ByModality  map[history.Modality]int `json:"by_modality"`
	ByDominant  map[string]int           `json:"by_dominant"`
	TopEmotion  string                   `json:"top_emotion,omitempty"`
	First       *time.Time               `json:"first,omitempty"`
	Last        *time.Time               `json:"last,omitempty"`
}
