package clients

import (
	"context"

	"github.com/abuubaida2/Ai-Mental-health-Companion-App/orchestrator"
)

type textReq struct {
	Text string `json:"text"`
}

// AnalyzeText posts text to /analyze-text.
func (h *HTTP) AnalyzeText(ctx context.Context, text string) (*orchestrator.Result, error) {
	var out orchestrator.Result
	if err := h.postJSON(ctx, "analyze-text", "/analyze-text", textReq{Text: text}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
