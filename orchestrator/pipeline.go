// Package orchestrator is the analysis surface of the service. It obtains
// classifiers from the model registry, runs inference on the worker pool,
// records every analysis in the history log and shapes the results.
//
// Model and decode problems never surface as errors: they show up as
// degraded results carrying a warning. Storage failures are logged and
// reported as a warning as well. The only errors returned are the caller's
// context ending and the worker pool shutting down.
package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/abuubaida2/Ai-Mental-health-Companion-App/classifier/audio"
	"github.com/abuubaida2/Ai-Mental-health-Companion-App/classifier/fusion"
	"github.com/abuubaida2/Ai-Mental-health-Companion-App/classifier/text"
	"github.com/abuubaida2/Ai-Mental-health-Companion-App/emotion"
	"github.com/abuubaida2/Ai-Mental-health-Companion-App/history"
	"github.com/abuubaida2/Ai-Mental-health-Companion-App/metrics"
	"github.com/abuubaida2/Ai-Mental-health-Companion-App/worker"
)

// Models supplies the classifiers. *models.Registry implements it.
type Models interface {
	Text(ctx context.Context) (*text.Classifier, error)
	Audio(ctx context.Context) (*audio.Classifier, error)
	Fusion(ctx context.Context) (*fusion.Classifier, error)
}

// Deps are the collaborators of a Pipeline.
type Deps struct {
	Models       Models
	Pool         *worker.Pool
	History      history.Log
	Logger       logrus.FieldLogger
	DefaultLimit int // for History; history.DefaultLimit when zero
}

type Pipeline struct {
	models       Models
	pool         *worker.Pool
	store        history.Log
	log          logrus.FieldLogger
	defaultLimit int

	now   func() time.Time
	newID func() string
}

func NewPipeline(d Deps) *Pipeline {
	if d.Logger == nil {
		d.Logger = logrus.StandardLogger()
	}
	if d.DefaultLimit <= 0 {
		d.DefaultLimit = history.DefaultLimit
	}
	if d.Pool == nil {
		d.Pool = worker.New(1)
	}
	return &Pipeline{
		models:       d.Models,
		pool:         d.Pool,
		store:        d.History,
		log:          d.Logger.WithField("component", "pipeline"),
		defaultLimit: d.DefaultLimit,
		now:          time.Now,
		newID:        uuid.NewString,
	}
}

// AnalyzeText classifies text and records a text entry.
func (p *Pipeline) AnalyzeText(ctx context.Context, input string) (Result, error) {
	start := time.Now()
	c, err := p.models.Text(ctx)
	if err != nil {
		return Result{}, err
	}
	detached := context.WithoutCancel(ctx)
	res, err := worker.Submit(ctx, p.pool, func() Result {
		out := c.Predict(input)
		r := toResult(out)
		r.Warning = joinWarnings(r.Warning, p.record(detached, history.Text, out.Dominant))
		metrics.RecordInference(string(history.Text), out.Degraded, time.Since(start))
		return r
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// AnalyzeAudio classifies an encoded recording and records an audio entry.
// Undecodable input yields the degraded demo distribution, not an error.
func (p *Pipeline) AnalyzeAudio(ctx context.Context, data []byte) (Result, error) {
	start := time.Now()
	c, err := p.models.Audio(ctx)
	if err != nil {
		return Result{}, err
	}
	detached := context.WithoutCancel(ctx)
	res, err := worker.Submit(ctx, p.pool, func() Result {
		out := c.PredictFromBytes(data)
		r := toResult(out)
		r.Warning = joinWarnings(r.Warning, p.record(detached, history.Audio, out.Dominant))
		metrics.RecordInference(string(history.Audio), out.Degraded, time.Since(start))
		return r
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// AnalyzeMultimodal runs both classifiers concurrently, fuses their
// outcomes and records a single multimodal entry with the fused label.
// Per-modality entries are not written.
func (p *Pipeline) AnalyzeMultimodal(ctx context.Context, input string, data []byte) (Multimodal, error) {
	start := time.Now()
	var (
		textOut, audioOut emotion.Outcome
		fc                *fusion.Classifier
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := p.models.Text(gctx)
		if err != nil {
			return err
		}
		textOut, err = worker.Submit(gctx, p.pool, func() emotion.Outcome { return c.Predict(input) })
		return err
	})
	g.Go(func() error {
		c, err := p.models.Audio(gctx)
		if err != nil {
			return err
		}
		audioOut, err = worker.Submit(gctx, p.pool, func() emotion.Outcome { return c.PredictFromBytes(data) })
		return err
	})
	g.Go(func() error {
		var err error
		fc, err = p.models.Fusion(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Multimodal{}, err
	}

	detached := context.WithoutCancel(ctx)
	res, err := worker.Submit(ctx, p.pool, func() Multimodal {
		fused := fc.Predict(textOut, audioOut)
		m := Multimodal{
			Text:    toResult(textOut),
			Audio:   toResult(audioOut),
			Fused:   fused,
			Warning: p.record(detached, history.Multimodal, fused.Dominant),
		}
		metrics.RecordInference(string(history.Multimodal), textOut.Degraded || audioOut.Degraded, time.Since(start))
		return m
	})
	if err != nil {
		return Multimodal{}, err
	}
	return res, nil
}

// History returns the newest entries, at most limit; non-positive limit
// uses the configured default.
func (p *Pipeline) History(ctx context.Context, limit int) ([]history.Entry, error) {
	if limit <= 0 {
		limit = p.defaultLimit
	}
	return p.store.List(ctx, limit)
}

// record appends an entry and returns a warning instead of an error.
func (p *Pipeline) record(ctx context.Context, m history.Modality, dominant string) string {
	e := history.Entry{ID: p.newID(), Modality: m, Dominant: dominant, Timestamp: p.now()}
	err := p.store.Append(ctx, e)
	metrics.RecordHistoryWrite(err)
	if err != nil {
		p.log.WithError(err).WithFields(logrus.Fields{
			"entry_id": e.ID,
			"modality": m,
		}).Error("history write failed")
		return "result not saved to history: " + err.Error()
	}
	p.log.WithFields(logrus.Fields{
		"entry_id": e.ID,
		"modality": m,
		"dominant": dominant,
	}).Debug("entry recorded")
	return ""
}
