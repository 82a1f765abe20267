// Package emotion holds the label vocabularies and result types shared by the
// classifiers, the pipeline and the HTTP layer.
package emotion

import "math"

// Labels is an ordered, closed label vocabulary. The order is the tie-break
// order for Dominant.
type Labels []string

// Contains reports whether l is part of the vocabulary.
func (ls Labels) Contains(l string) bool {
	for _, v := range ls {
		if v == l {
			return true
		}
	}
	return false
}

// Neutral is the fallback label present in every vocabulary.
const Neutral = "neutral"

// Text is the GoEmotions vocabulary (28 labels).
var Text = Labels{
	"admiration", "amusement", "anger", "annoyance", "approval",
	"caring", "confusion", "curiosity", "desire", "disappointment",
	"disapproval", "disgust", "embarrassment", "excitement", "fear",
	"gratitude", "grief", "joy", "love", "nervousness",
	"optimism", "pride", "realization", "relief", "remorse",
	"sadness", "surprise", "neutral",
}

// Audio is the RAVDESS vocabulary (8 labels).
var Audio = Labels{
	"neutral", "calm", "happy", "sad", "angry", "fearful", "disgust", "surprised",
}

// Distribution maps a label to its score in [0,1]. Scores need not sum to 1.
type Distribution map[string]float64

// Dominant returns the label with the highest score. Labels are visited in
// the given order so ties resolve to the first maximum; labels missing from
// order are never chosen. Returns "" when no label of order is present.
func (d Distribution) Dominant(order Labels) string {
	best := ""
	bestScore := math.Inf(-1)
	for _, l := range order {
		s, ok := d[l]
		if !ok {
			continue
		}
		if s > bestScore {
			best, bestScore = l, s
		}
	}
	return best
}

// Valid reports whether every score is a finite number in [0,1].
func (d Distribution) Valid() bool {
	for _, s := range d {
		if math.IsNaN(s) || s < 0 || s > 1 {
			return false
		}
	}
	return true
}

// Clone returns a copy of d.
func (d Distribution) Clone() Distribution {
	out := make(Distribution, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Outcome is the result of one classifier call. Degraded is set when real
// inference was unavailable or failed and a fixed fallback was returned
// instead; Reason then says why.
type Outcome struct {
	Probabilities Distribution
	Dominant      string
	Degraded      bool
	Reason        string
}

// OK returns a successful outcome.
func OK(d Distribution, order Labels) Outcome {
	return Outcome{Probabilities: d, Dominant: d.Dominant(order)}
}

// Fallback returns a degraded outcome carrying reason.
func Fallback(d Distribution, order Labels, reason string) Outcome {
	return Outcome{Probabilities: d, Dominant: d.Dominant(order), Degraded: true, Reason: reason}
}

// Verdict is the fused multimodal decision.
type Verdict struct {
	Dominant   string  `json:"dominant"`
	Confidence float64 `json:"confidence"`
}

// Sigmoid maps each logit independently to (0,1).
func Sigmoid(logits []float32) []float64 {
	out := make([]float64, len(logits))
	for i, x := range logits {
		out[i] = 1 / (1 + math.Exp(-float64(x)))
	}
	return out
}

// Softmax normalizes logits into a distribution summing to 1.
func Softmax(logits []float32) []float64 {
	out := make([]float64, len(logits))
	if len(logits) == 0 {
		return out
	}
	maxv := float64(logits[0])
	for _, x := range logits[1:] {
		maxv = math.Max(maxv, float64(x))
	}
	sum := 0.0
	for i, x := range logits {
		out[i] = math.Exp(float64(x) - maxv)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// Map pairs scores with labels by position, truncated to the shorter of the two.
func Map(labels Labels, scores []float64) Distribution {
	n := min(len(labels), len(scores))
	d := make(Distribution, n)
	for i := 0; i < n; i++ {
		d[labels[i]] = scores[i]
	}
	return d
}
