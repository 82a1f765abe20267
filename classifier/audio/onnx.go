package audio

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/abuubaida2/Ai-Mental-health-Companion-App/features"
	"github.com/abuubaida2/Ai-Mental-health-Companion-App/onnx"
)

// Options locates the exported CNN+LSTM model.
type Options struct {
	ORTLibrary string
	ModelPath  string
	InputName  string // default "input", shape [1, n_mfcc, frames]
	OutputName string // default "logits", shape [1, 8]
	Features   features.Config
}

// ONNXScorer runs the audio model with ONNX Runtime.
type ONNXScorer struct {
	env     *onnx.Env
	session *onnx.Session
}

// NewONNXScorer loads the model.
func NewONNXScorer(opts Options) (*ONNXScorer, error) {
	if opts.InputName == "" {
		opts.InputName = "input"
	}
	if opts.OutputName == "" {
		opts.OutputName = "logits"
	}
	env, err := onnx.NewEnv(opts.ORTLibrary)
	if err != nil {
		return nil, err
	}
	session, err := env.NewSession(opts.ModelPath, []string{opts.InputName}, []string{opts.OutputName})
	if err != nil {
		env.Close()
		return nil, err
	}
	return &ONNXScorer{env: env, session: session}, nil
}

// Logits implements Scorer.
func (s *ONNXScorer) Logits(m *mat.Dense) ([]float32, error) {
	rows, cols := m.Dims()
	out, err := s.session.Run(onnx.Float32Input([]int64{1, int64(rows), int64(cols)}, features.Float32(m)))
	if err != nil {
		return nil, err
	}
	return out.Data, nil
}

// Close releases the session and the runtime reference.
func (s *ONNXScorer) Close() error {
	return errors.Join(s.session.Close(), s.env.Close())
}

// Load builds a classifier from opts, falling back to permanent degraded
// mode when the runtime or model is unavailable.
func Load(opts Options, log logrus.FieldLogger) *Classifier {
	if log == nil {
		log = logrus.StandardLogger()
	}
	scorer, err := NewONNXScorer(opts)
	if err != nil {
		log.WithError(err).WithField("model", "audio").Warn("audio model unavailable, running degraded")
		return Degraded(fmt.Sprintf("audio model unavailable: %v", err), log)
	}
	return New(features.New(opts.Features), scorer, log)
}
