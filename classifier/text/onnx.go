package text

import (
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"

	"github.com/abuubaida2/Ai-Mental-health-Companion-App/onnx"
)

// Options locates the exported sequence classifier.
type Options struct {
	ORTLibrary    string
	ModelPath     string
	TokenizerPath string   // HuggingFace tokenizer.json
	MaxTokens     int      // default 512
	InputNames    []string // input_ids, attention_mask, token_type_ids
	OutputName    string   // default "logits"
}

// ONNXScorer runs a transformer sequence classifier with ONNX Runtime.
type ONNXScorer struct {
	env       *onnx.Env
	session   *onnx.Session
	tk        *tokenizer.Tokenizer
	maxTokens int
	inputs    []string
}

// NewONNXScorer loads the tokenizer and model.
func NewONNXScorer(opts Options) (*ONNXScorer, error) {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 512
	}
	if len(opts.InputNames) == 0 {
		opts.InputNames = []string{"input_ids", "attention_mask"}
	}
	if opts.OutputName == "" {
		opts.OutputName = "logits"
	}
	for _, name := range opts.InputNames {
		switch name {
		case "input_ids", "attention_mask", "token_type_ids":
		default:
			return nil, fmt.Errorf("text: unsupported model input %q", name)
		}
	}

	if _, err := os.Stat(opts.TokenizerPath); err != nil {
		return nil, fmt.Errorf("text: tokenizer: %w", err)
	}
	tk, err := pretrained.FromFile(opts.TokenizerPath)
	if err != nil {
		return nil, fmt.Errorf("text: load tokenizer %s: %w", opts.TokenizerPath, err)
	}
	env, err := onnx.NewEnv(opts.ORTLibrary)
	if err != nil {
		return nil, err
	}
	session, err := env.NewSession(opts.ModelPath, opts.InputNames, []string{opts.OutputName})
	if err != nil {
		env.Close()
		return nil, err
	}
	return &ONNXScorer{
		env:       env,
		session:   session,
		tk:        tk,
		maxTokens: opts.MaxTokens,
		inputs:    opts.InputNames,
	}, nil
}

// Logits implements Scorer.
func (s *ONNXScorer) Logits(text string) ([]float32, error) {
	enc, err := s.tk.EncodeSingle(text, true)
	if err != nil {
		return nil, fmt.Errorf("text: tokenize: %w", err)
	}
	ids := truncate(enc.Ids, s.maxTokens)
	mask := truncate(enc.AttentionMask, s.maxTokens)
	types := truncate(enc.TypeIds, s.maxTokens)
	if len(ids) == 0 {
		return nil, errors.New("text: empty encoding")
	}

	shape := []int64{1, int64(len(ids))}
	inputs := make([]onnx.Input, 0, len(s.inputs))
	for _, name := range s.inputs {
		switch name {
		case "input_ids":
			inputs = append(inputs, onnx.Int64Input(shape, toInt64(ids, len(ids))))
		case "attention_mask":
			inputs = append(inputs, onnx.Int64Input(shape, toInt64(mask, len(ids))))
		case "token_type_ids":
			inputs = append(inputs, onnx.Int64Input(shape, toInt64(types, len(ids))))
		}
	}

	out, err := s.session.Run(inputs...)
	if err != nil {
		return nil, err
	}
	return out.Data, nil
}

// Close releases the session and the runtime reference.
func (s *ONNXScorer) Close() error {
	return errors.Join(s.session.Close(), s.env.Close())
}

// truncate keeps the first n-1 tokens plus the final special token.
func truncate(v []int, n int) []int {
	if len(v) <= n {
		return v
	}
	out := make([]int, 0, n)
	out = append(out, v[:n-1]...)
	return append(out, v[len(v)-1])
}

// toInt64 converts v padding with zeros up to n.
func toInt64(v []int, n int) []int64 {
	out := make([]int64, n)
	for i := 0; i < n && i < len(v); i++ {
		out[i] = int64(v[i])
	}
	return out
}

// Load builds a classifier from opts, falling back to degraded mode when
// the runtime, tokenizer or model is unavailable.
func Load(opts Options, log logrus.FieldLogger) *Classifier {
	if log == nil {
		log = logrus.StandardLogger()
	}
	scorer, err := NewONNXScorer(opts)
	if err != nil {
		log.WithError(err).WithField("model", "text").Warn("text model unavailable, running degraded")
		return Degraded(fmt.Sprintf("text model unavailable: %v", err), log)
	}
	return New(scorer, log)
}
