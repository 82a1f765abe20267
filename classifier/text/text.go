// Package text classifies free text into the 28 GoEmotions labels.
package text

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/abuubaida2/Ai-Mental-health-Companion-App/emotion"
)

// Scorer produces the raw output logits for one text.
type Scorer interface {
	Logits(text string) ([]float32, error)
}

// Classifier maps text to an emotion distribution. A Classifier without a
// scorer is degraded: Predict always returns {neutral: 1.0}.
//
// Classifier is safe for concurrent use when its Scorer is.
type Classifier struct {
	scorer Scorer
	reason string
	log    logrus.FieldLogger
}

// New returns a classifier backed by scorer.
func New(scorer Scorer, log logrus.FieldLogger) *Classifier {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Classifier{scorer: scorer, log: log.WithField("model", "text")}
}

// Degraded returns a classifier permanently in fallback mode.
func Degraded(reason string, log logrus.FieldLogger) *Classifier {
	c := New(nil, log)
	c.reason = reason
	return c
}

// Labels returns the label vocabulary in tie-break order.
func (c *Classifier) Labels() emotion.Labels { return emotion.Text }

// Available reports whether real inference is possible.
func (c *Classifier) Available() bool { return c.scorer != nil }

// Reason explains why the classifier is degraded.
func (c *Classifier) Reason() string { return c.reason }

// Fallback is the distribution returned when inference is unavailable.
func Fallback() emotion.Distribution {
	return emotion.Distribution{emotion.Neutral: 1.0}
}

// Predict never fails. Logits of the vocabulary's width are scored with an
// independent sigmoid per label; any other width is softmax-normalized and
// mapped to labels by position.
func (c *Classifier) Predict(text string) (out emotion.Outcome) {
	if c.scorer == nil {
		return emotion.Fallback(Fallback(), emotion.Text, c.reason)
	}
	defer func() {
		if r := recover(); r != nil {
			c.log.WithField("panic", r).Error("text inference panicked")
			out = emotion.Fallback(Fallback(), emotion.Text, fmt.Sprintf("text inference panicked: %v", r))
		}
	}()

	logits, err := c.scorer.Logits(text)
	if err != nil {
		c.log.WithError(err).Warn("text inference failed")
		return emotion.Fallback(Fallback(), emotion.Text, fmt.Sprintf("text inference failed: %v", err))
	}
	if len(logits) == 0 {
		return emotion.Fallback(Fallback(), emotion.Text, "text model produced no logits")
	}

	var scores []float64
	if len(logits) == len(emotion.Text) {
		scores = emotion.Sigmoid(logits)
	} else {
		c.log.WithFields(logrus.Fields{
			"width":  len(logits),
			"labels": len(emotion.Text),
		}).Debug("logit width mismatch, using softmax")
		scores = emotion.Softmax(logits)
	}
	d := emotion.Map(emotion.Text, scores)
	res := emotion.OK(d, emotion.Text)
	if !d.Valid() || res.Dominant == "" {
		c.log.WithField("logits", len(logits)).Warn("text model produced non-finite scores")
		return emotion.Fallback(Fallback(), emotion.Text, "text model produced non-finite scores")
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
