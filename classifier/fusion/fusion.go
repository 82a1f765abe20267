// Package fusion combines a text and an audio outcome into a single verdict.
//
// Audio labels are first translated into the text vocabulary (calm folds
// into neutral, happy into joy and so on), each distribution is normalized
// to sum to 1, and the two are mixed with fixed weights. A degraded modality
// is ignored as long as the other one produced a real result; when both are
// degraded their fallbacks are mixed as usual so the verdict still reflects
// the demo distributions.
package fusion

import (
	"math"

	"github.com/abuubaida2/Ai-Mental-health-Companion-App/emotion"
)

// AudioAlias maps each audio label onto the text vocabulary.
var AudioAlias = map[string]string{
	"neutral":   "neutral",
	"calm":      "neutral",
	"happy":     "joy",
	"sad":       "sadness",
	"angry":     "anger",
	"fearful":   "fear",
	"disgust":   "disgust",
	"surprised": "surprise",
}

// Classifier is stateless and safe for concurrent use.
type Classifier struct {
	textWeight  float64
	audioWeight float64
}

// New returns a classifier with the given modality weights. Negative weights
// are treated as zero; if both end up zero the default 0.5/0.5 is used.
func New(textWeight, audioWeight float64) *Classifier {
	textWeight = math.Max(0, textWeight)
	audioWeight = math.Max(0, audioWeight)
	if textWeight == 0 && audioWeight == 0 {
		textWeight, audioWeight = 0.5, 0.5
	}
	return &Classifier{textWeight: textWeight, audioWeight: audioWeight}
}

// Weights returns the text and audio weights.
func (c *Classifier) Weights() (text, audio float64) { return c.textWeight, c.audioWeight }

// Predict fuses the two outcomes. Confidence is the winning label's share
// of the total weight used and lies in [0,1]. With no usable signal the
// verdict is neutral with zero confidence.
func (c *Classifier) Predict(text, audio emotion.Outcome) emotion.Verdict {
	useText, useAudio := true, true
	if text.Degraded != audio.Degraded {
		useText, useAudio = !text.Degraded, !audio.Degraded
	}

	fused := emotion.Distribution{}
	total := 0.0
	if useText && c.textWeight > 0 {
		if n := normalize(text.Probabilities, nil); n != nil {
			for l, v := range n {
				fused[l] += c.textWeight * v
			}
			total += c.textWeight
		}
	}
	if useAudio && c.audioWeight > 0 {
		if n := normalize(audio.Probabilities, AudioAlias); n != nil {
			for l, v := range n {
				fused[l] += c.audioWeight * v
			}
			total += c.audioWeight
		}
	}
	if total == 0 {
		return emotion.Verdict{Dominant: emotion.Neutral}
	}

	dominant := fused.Dominant(emotion.Text)
	if dominant == "" {
		return emotion.Verdict{Dominant: emotion.Neutral}
	}
	conf := fused[dominant] / total
	return emotion.Verdict{Dominant: dominant, Confidence: math.Min(1, math.Max(0, conf))}
}

// normalize translates labels through alias (when non-nil), drops labels
// outside the text vocabulary and non-finite or negative scores, and scales
// the rest to sum to 1. Returns nil when nothing usable remains.
func normalize(d emotion.Distribution, alias map[string]string) emotion.Distribution {
	out := emotion.Distribution{}
	sum := 0.0
	for l, v := range d {
		if alias != nil {
			mapped, ok := alias[l]
			if !ok {
				continue
			}
			l = mapped
		}
		if !emotion.Text.Contains(l) || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			continue
		}
		out[l] += v
		sum += v
	}
	if sum == 0 {
		return nil
	}
	for l := range out {
		out[l] /= sum
	}
	return out
}
