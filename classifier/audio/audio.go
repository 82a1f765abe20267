// Package audio classifies speech recordings into the eight RAVDESS emotions.
//
// # Failure policy
//
// PredictFromBytes never fails. Undecodable input, feature extraction errors,
// inference errors and engine panics all yield the fixed demo distribution
// (see [Fallback]) marked as degraded, so callers always receive a
// well-formed result even for formats the decoder cannot handle (for
// example AAC recordings from phones).
package audio

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/abuubaida2/Ai-Mental-health-Companion-App/emotion"
	"github.com/abuubaida2/Ai-Mental-health-Companion-App/features"
)

// Scorer produces raw logits from a [coefficients x frames] MFCC matrix.
type Scorer interface {
	Logits(m *mat.Dense) ([]float32, error)
}

// Classifier is safe for concurrent use when its Scorer is.
type Classifier struct {
	extractor *features.Extractor
	scorer    Scorer
	reason    string
	log       logrus.FieldLogger
}

// New returns a classifier running extractor then scorer.
func New(extractor *features.Extractor, scorer Scorer, log logrus.FieldLogger) *Classifier {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if extractor == nil {
		extractor = features.New(features.DefaultConfig())
	}
	return &Classifier{extractor: extractor, scorer: scorer, log: log.WithField("model", "audio")}
}

// Degraded returns a classifier permanently in fallback mode.
func Degraded(reason string, log logrus.FieldLogger) *Classifier {
	c := New(nil, nil, log)
	c.reason = reason
	return c
}

// Labels returns the label vocabulary in tie-break order.
func (c *Classifier) Labels() emotion.Labels { return emotion.Audio }

// Available reports whether real inference is possible.
func (c *Classifier) Available() bool { return c.scorer != nil }

// Reason explains why the classifier is degraded.
func (c *Classifier) Reason() string { return c.reason }

// Fallback returns the fixed demo distribution.
func Fallback() emotion.Distribution {
	return emotion.Distribution{
		"neutral":   0.45,
		"calm":      0.20,
		"happy":     0.15,
		"sad":       0.08,
		"angry":     0.05,
		"fearful":   0.04,
		"disgust":   0.02,
		"surprised": 0.01,
	}
}

func (c *Classifier) fallback(reason string) emotion.Outcome {
	return emotion.Fallback(Fallback(), emotion.Audio, reason)
}

// PredictFromBytes classifies an encoded recording.
func (c *Classifier) PredictFromBytes(data []byte) (out emotion.Outcome) {
	if c.scorer == nil {
		return c.fallback(c.reason)
	}
	defer func() {
		if r := recover(); r != nil {
			c.log.WithField("panic", r).Error("audio inference panicked")
			out = c.fallback(fmt.Sprintf("audio inference panicked: %v", r))
		}
	}()

	m, err := c.extractor.Extract(data)
	if err != nil {
		c.log.WithError(err).WithField("format", features.Format(data)).Info("audio not decodable, using fallback")
		return c.fallback(fmt.Sprintf("audio preprocessing failed: %v", err))
	}
	logits, err := c.scorer.Logits(m)
	if err != nil {
		c.log.WithError(err).Warn("audio inference failed")
		return c.fallback(fmt.Sprintf("audio inference failed: %v", err))
	}
	if len(logits) == 0 {
		return c.fallback("audio model produced no logits")
	}
	d := emotion.Map(emotion.Audio, emotion.Softmax(logits))
	res := emotion.OK(d, emotion.Audio)
	if !d.Valid() || res.Dominant == "" {
		c.log.WithField("logits", len(logits)).Warn("audio model produced non-finite scores")
		return c.fallback("audio model produced non-finite scores")
	}
	return res
}

// Close releases the scorer when it holds resources.
func (c *Classifier) Close() error {
	if cl, ok := c.scorer.(io.Closer); ok {
		return cl.Close()
	}
	return nil
}
