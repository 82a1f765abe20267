// Package onnx wraps ONNX Runtime for the emotion classifiers.
//
// # Architecture
//
// The package exposes two types:
//
//   - [Env]: handle on the process-wide runtime environment
//   - [Session]: a loaded .onnx model
//
// Usage flow:
//
//	env, _ := onnx.NewEnv("/usr/lib/libonnxruntime.so")
//	defer env.Close()
//
//	session, _ := env.NewSession("model.onnx", []string{"input"}, []string{"logits"})
//	defer session.Close()
//
//	out, _ := session.Run(onnx.Float32Input([]int64{1, 40, 32}, data))
//	logits := out.Data
//
// # Dynamic Linking
//
// The runtime shared library is loaded at [NewEnv] time. A missing or
// incompatible library is reported as an error there, so callers can run
// without inference instead of failing to start.
//
// # Thread Safety
//
// Env and Session are safe for concurrent use.
package onnx

import (
	"errors"
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ErrClosed is returned by Run after Close.
var ErrClosed = errors.New("onnx: session closed")

var (
	envMu   sync.Mutex
	envRefs int
)

// Env is a reference on the process-wide ONNX Runtime environment. The
// runtime is initialized by the first NewEnv and destroyed when the last Env
// is closed.
type Env struct {
	once sync.Once
}

// NewEnv initializes the runtime if needed. libPath is the shared library
// location; empty keeps the platform default name.
func NewEnv(libPath string) (*Env, error) {
	envMu.Lock()
	defer envMu.Unlock()

	if !ort.IsInitialized() {
		if libPath != "" {
			if _, err := os.Stat(libPath); err != nil {
				return nil, fmt.Errorf("onnx: runtime library: %w", err)
			}
			ort.SetSharedLibraryPath(libPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("onnx: initialize runtime: %w", err)
		}
	}
	envRefs++
	return &Env{}, nil
}

// Close releases this reference. Safe to call more than once.
func (e *Env) Close() error {
	var err error
	e.once.Do(func() {
		envMu.Lock()
		defer envMu.Unlock()
		envRefs--
		if envRefs == 0 && ort.IsInitialized() {
			err = ort.DestroyEnvironment()
		}
	})
	return err
}

// NewSession loads the model at path. Input and output names must match the
// graph.
func (e *Env) NewSession(path string, inputNames, outputNames []string) (*Session, error) {
	if len(inputNames) == 0 || len(outputNames) == 0 {
		return nil, errors.New("onnx: input and output names are required")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("onnx: model: %w", err)
	}
	s, err := ort.NewDynamicAdvancedSession(path, inputNames, outputNames, nil)
	if err != nil {
		return nil, fmt.Errorf("onnx: load %s: %w", path, err)
	}
	return &Session{s: s, inputs: inputNames, outputs: outputNames}, nil
}

// Session holds a loaded ONNX model.
type Session struct {
	mu      sync.RWMutex
	s       *ort.DynamicAdvancedSession
	inputs  []string
	outputs []string
}

// Input is one input tensor. Exactly one of Float or Int is set.
type Input struct {
	Shape []int64
	Float []float32
	Int   []int64
}

// Float32Input builds a float32 input.
func Float32Input(shape []int64, data []float32) Input {
	return Input{Shape: shape, Float: data}
}

// Int64Input builds an int64 input, e.g. token ids.
func Int64Input(shape []int64, data []int64) Input {
	return Input{Shape: shape, Int: data}
}

// Output is the first output tensor of a run.
type Output struct {
	Shape []int64
	Data  []float32
}

func (in Input) tensor() (ort.Value, error) {
	if err := checkShape(in.Shape, len(in.Float)+len(in.Int)); err != nil {
		return nil, err
	}
	shape := ort.NewShape(in.Shape...)
	if in.Float != nil {
		return ort.NewTensor(shape, in.Float)
	}
	return ort.NewTensor(shape, in.Int)
}

// checkShape verifies that shape holds exactly n elements.
func checkShape(shape []int64, n int) error {
	if len(shape) == 0 {
		return errors.New("onnx: empty shape")
	}
	total := int64(1)
	for _, d := range shape {
		if d <= 0 {
			return fmt.Errorf("onnx: invalid dimension %d in %v", d, shape)
		}
		total *= d
	}
	if total != int64(n) {
		return fmt.Errorf("onnx: shape %v needs %d elements, got %d", shape, total, n)
	}
	return nil
}

// Run executes the model and returns a copy of the first output, which must
// be a float32 tensor.
func (s *Session) Run(inputs ...Input) (*Output, error) {
	if len(inputs) != len(s.inputs) {
		return nil, fmt.Errorf("onnx: want %d inputs, got %d", len(s.inputs), len(inputs))
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.s == nil {
		return nil, ErrClosed
	}

	values := make([]ort.Value, 0, len(inputs))
	defer func() {
		for _, v := range values {
			v.Destroy()
		}
	}()
	for i, in := range inputs {
		v, err := in.tensor()
		if err != nil {
			return nil, fmt.Errorf("onnx: input %q: %w", s.inputs[i], err)
		}
		values = append(values, v)
	}

	outputs := make([]ort.Value, len(s.outputs))
	if err := s.s.Run(values, outputs); err != nil {
		return nil, fmt.Errorf("onnx: run: %w", err)
	}
	defer func() {
		for _, v := range outputs {
			if v != nil {
				v.Destroy()
			}
		}
	}()

	t, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("onnx: output %q is not a float32 tensor", s.outputs[0])
	}
	data := t.GetData()
	out := &Output{
		Shape: append([]int64(nil), t.GetShape()...),
		Data:  append([]float32(nil), data...),
	}
	return out, nil
}

// Close releases the session.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.s == nil {
		return nil
	}
	err := s.s.Destroy()
	s.s = nil
	return err
}
