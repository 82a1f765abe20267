// Package models owns the process-wide classifier instances.
//
// Each model lives in a slot that moves Unloaded -> Loading -> Ready exactly
// once. The first caller starts construction on a dedicated goroutine; every
// caller, including the first, then waits for the slot to become Ready or for
// its own context to end. A caller that gives up does not cancel the
// construction, so the next caller finds the model Ready.
//
// Construction never fails from the caller's point of view: builders return
// degraded classifiers when a dependency is missing, and a degraded instance
// stays cached for the lifetime of the process.
package models

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/abuubaida2/Ai-Mental-health-Companion-App/classifier/audio"
	"github.com/abuubaida2/Ai-Mental-health-Companion-App/classifier/fusion"
	"github.com/abuubaida2/Ai-Mental-health-Companion-App/classifier/text"
	"github.com/abuubaida2/Ai-Mental-health-Companion-App/metrics"
)

// Slot names.
const (
	TextModel   = "text"
	AudioModel  = "audio"
	FusionModel = "fusion"
)

// State is the lifecycle of a slot.
type State int

const (
	Unloaded State = iota
	Loading
	Ready
)

func (s State) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText renders the state as its name in JSON.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Builders construct the three classifiers. Each must return a usable,
// possibly degraded, instance.
type Builders struct {
	Text   func() *text.Classifier
	Audio  func() *audio.Classifier
	Fusion func() *fusion.Classifier
}

// Registry is safe for concurrent use.
type Registry struct {
	text   *slot[*text.Classifier]
	audio  *slot[*audio.Classifier]
	fusion *slot[*fusion.Classifier]
	log    logrus.FieldLogger
}

// New returns a registry with all slots Unloaded. Nil builders produce
// degraded classifiers.
func New(b Builders, log logrus.FieldLogger) *Registry {
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("component", "models")
	if b.Text == nil {
		b.Text = func() *text.Classifier { return text.Degraded("text model not configured", log) }
	}
	if b.Audio == nil {
		b.Audio = func() *audio.Classifier { return audio.Degraded("audio model not configured", log) }
	}
	if b.Fusion == nil {
		b.Fusion = func() *fusion.Classifier { return fusion.New(0.5, 0.5) }
	}
	return &Registry{
		text: newSlot(TextModel, b.Text,
			func(reason string) *text.Classifier { return text.Degraded(reason, log) },
			func(c *text.Classifier) bool { return !c.Available() }, log),
		audio: newSlot(AudioModel, b.Audio,
			func(reason string) *audio.Classifier { return audio.Degraded(reason, log) },
			func(c *audio.Classifier) bool { return !c.Available() }, log),
		fusion: newSlot(FusionModel, b.Fusion,
			func(string) *fusion.Classifier { return fusion.New(0.5, 0.5) },
			func(*fusion.Classifier) bool { return false }, log),
		log: log,
	}
}

// Text returns the text classifier, constructing it on first use.
func (r *Registry) Text(ctx context.Context) (*text.Classifier, error) { return r.text.get(ctx) }

// Audio returns the audio classifier, constructing it on first use.
func (r *Registry) Audio(ctx context.Context) (*audio.Classifier, error) { return r.audio.get(ctx) }

// Fusion returns the fusion classifier, constructing it on first use.
func (r *Registry) Fusion(ctx context.Context) (*fusion.Classifier, error) {
	return r.fusion.get(ctx)
}

// State reports the state of the named slot.
func (r *Registry) State(name string) (State, bool) {
	switch name {
	case TextModel:
		return r.text.current(), true
	case AudioModel:
		return r.audio.current(), true
	case FusionModel:
		return r.fusion.current(), true
	}
	return Unloaded, false
}

// States reports every slot.
func (r *Registry) States() map[string]State {
	return map[string]State{
		TextModel:   r.text.current(),
		AudioModel:  r.audio.current(),
		FusionModel: r.fusion.current(),
	}
}

// Warm constructs all models concurrently and waits for them.
func (r *Registry) Warm(ctx context.Context) error {
	var wg sync.WaitGroup
	errs := make([]error, 3)
	wg.Add(3)
	go func() { defer wg.Done(); _, errs[0] = r.Text(ctx) }()
	go func() { defer wg.Done(); _, errs[1] = r.Audio(ctx) }()
	go func() { defer wg.Done(); _, errs[2] = r.Fusion(ctx) }()
	wg.Wait()
	return errors.Join(errs...)
}

// Close waits for pending constructions and releases model resources.
// The registry must not be used afterwards.
func (r *Registry) Close() error {
	return errors.Join(r.text.close(), r.audio.close(), r.fusion.close())
}

type slot[T any] struct {
	name     string
	build    func() T
	fallback func(reason string) T
	degraded func(T) bool
	log      logrus.FieldLogger

	mu    sync.Mutex
	state State
	done  chan struct{}
	value T
}

func newSlot[T any](name string, build func() T, fallback func(string) T, degraded func(T) bool, log logrus.FieldLogger) *slot[T] {
	return &slot[T]{
		name:     name,
		build:    build,
		fallback: fallback,
		degraded: degraded,
		log:      log.WithField("model", name),
	}
}

func (s *slot[T]) get(ctx context.Context) (T, error) {
	s.mu.Lock()
	switch s.state {
	case Ready:
		v := s.value
		s.mu.Unlock()
		return v, nil
	case Unloaded:
		s.state = Loading
		s.done = make(chan struct{})
		go s.construct()
	}
	done := s.done
	s.mu.Unlock()

	select {
	case <-done:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.value, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (s *slot[T]) construct() {
	start := time.Now()
	s.log.Info("loading model")
	v := s.safeBuild()
	degraded := s.degraded(v)
	metrics.RecordModelLoad(s.name, degraded, time.Since(start))
	s.log.WithFields(logrus.Fields{
		"degraded": degraded,
		"elapsed":  time.Since(start).String(),
	}).Info("model ready")

	s.mu.Lock()
	s.value = v
	s.state = Ready
	close(s.done)
	s.mu.Unlock()
}

func (s *slot[T]) safeBuild() (v T) {
	defer func() {
		if r := recover(); r != nil {
			s.log.WithField("panic", r).Error("model construction panicked")
			v = s.fallback(fmt.Sprintf("%s model construction panicked: %v", s.name, r))
		}
	}()
	return s.build()
}

func (s *slot[T]) current() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *slot[T]) close() error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return nil
	}
	<-done
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := any(s.value).(io.Closer); ok {
		return c.Close()
	}
	return nil
}
