package orchestrator

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/abuubaida2/Ai-Mental-health-Companion-App/classifier/audio"
	"github.com/abuubaida2/Ai-Mental-health-Companion-App/classifier/fusion"
	"github.com/abuubaida2/Ai-Mental-health-Companion-App/classifier/text"
	"github.com/abuubaida2/Ai-Mental-health-Companion-App/emotion"
	"github.com/abuubaida2/Ai-Mental-health-Companion-App/history"
	"github.com/abuubaida2/Ai-Mental-health-Companion-App/internal/testaudio"
	"github.com/abuubaida2/Ai-Mental-health-Companion-App/models"
	"github.com/abuubaida2/Ai-Mental-health-Companion-App/worker"
)

// joyScorer puts all mass on "joy".
type joyScorer struct{}

func (joyScorer) Logits(string) ([]float32, error) {
	l := make([]float32, len(emotion.Text))
	for i := range l {
		l[i] = -4
	}
	l[17] = 4
	return l, nil
}

// happyScorer favours "happy".
type happyScorer struct{}

func (happyScorer) Logits(*mat.Dense) ([]float32, error) {
	return []float32{0, 0, 3, 0, 0, 0, 0, 0}, nil
}

type failingLog struct{ history.Log }

func (failingLog) Append(context.Context, history.Entry) error { return errors.New("disk full") }

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func newStore(t *testing.T) *history.Badger {
	t.Helper()
	s, err := history.Open(history.Options{InMemory: true, Logger: quietLogger()})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func realModels() *models.Registry {
	log := quietLogger()
	return models.New(models.Builders{
		Text:   func() *text.Classifier { return text.New(joyScorer{}, log) },
		Audio:  func() *audio.Classifier { return audio.New(nil, happyScorer{}, log) },
		Fusion: func() *fusion.Classifier { return fusion.New(0.5, 0.5) },
	}, log)
}

func degradedModels() *models.Registry {
	return models.New(models.Builders{}, quietLogger())
}

func newPipeline(t *testing.T, m Models, store history.Log) *Pipeline {
	t.Helper()
	pool := worker.New(2)
	t.Cleanup(func() { pool.Close(context.Background()) })
	return NewPipeline(Deps{Models: m, Pool: pool, History: store, Logger: quietLogger()})
}

func TestAnalyzeText(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	p := newPipeline(t, realModels(), store)

	r, err := p.AnalyzeText(ctx, "I got the job!")
	require.NoError(t, err)
	assert.Equal(t, "joy", r.Dominant)
	assert.Len(t, r.Probabilities, 28)
	assert.Empty(t, r.Warning)

	entries, err := p.History(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, history.Text, entries[0].Modality)
	assert.Equal(t, "joy", entries[0].Dominant)
	assert.NotEmpty(t, entries[0].ID)
}

func TestAnalyzeTextDegraded(t *testing.T) {
	p := newPipeline(t, degradedModels(), newStore(t))
	r, err := p.AnalyzeText(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, emotion.Distribution{"neutral": 1}, r.Probabilities)
	assert.Equal(t, "neutral", r.Dominant)
	assert.Contains(t, r.Warning, "not configured")
}

func TestAnalyzeAudioCorruptInput(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t, realModels(), newStore(t))

	r, err := p.AnalyzeAudio(ctx, []byte("definitely not audio"))
	require.NoError(t, err)
	assert.Equal(t, audio.Fallback(), r.Probabilities)
	assert.Equal(t, "neutral", r.Dominant)
	assert.NotEmpty(t, r.Warning)

	entries, err := p.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, history.Audio, entries[0].Modality)
}

func TestAnalyzeMultimodal(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t, realModels(), newStore(t))

	m, err := p.AnalyzeMultimodal(ctx, "I feel happy", testaudio.ToneWAV(t, 16000))
	require.NoError(t, err)

	assert.Len(t, m.Text.Probabilities, 28)
	assert.Equal(t, "joy", m.Text.Dominant)
	assert.Len(t, m.Audio.Probabilities, 8)
	assert.Equal(t, "happy", m.Audio.Dominant)
	assert.Equal(t, "joy", m.Fused.Dominant)
	assert.GreaterOrEqual(t, m.Fused.Confidence, 0.0)
	assert.LessOrEqual(t, m.Fused.Confidence, 1.0)
	assert.Empty(t, m.Warning)

	entries, err := p.History(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, history.Multimodal, entries[0].Modality)
	assert.Equal(t, "joy", entries[0].Dominant)
}

func TestAnalyzeMultimodalDegraded(t *testing.T) {
	p := newPipeline(t, degradedModels(), newStore(t))
	m, err := p.AnalyzeMultimodal(context.Background(), "I feel happy", testaudio.ToneWAV(t, 16000))
	require.NoError(t, err)
	assert.Equal(t, "neutral", m.Text.Dominant)
	assert.Equal(t, "neutral", m.Audio.Dominant)
	assert.Equal(t, "neutral", m.Fused.Dominant)
	assert.NotEmpty(t, m.Text.Warning)
	assert.NotEmpty(t, m.Audio.Warning)
}

func TestStorageFailureIsWarning(t *testing.T) {
	p := newPipeline(t, realModels(), failingLog{})

	r, err := p.AnalyzeText(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "joy", r.Dominant)
	assert.Contains(t, r.Warning, "disk full")

	m, err := p.AnalyzeMultimodal(context.Background(), "hello", testaudio.ToneWAV(t, 16000))
	require.NoError(t, err)
	assert.Contains(t, m.Warning, "disk full")
}

func TestCancelledCallerReturnsContextError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := newPipeline(t, realModels(), newStore(t))
	_, err := p.AnalyzeText(ctx, "hello")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStartedJobStillRecords(t *testing.T) {
	store := newStore(t)
	release := make(chan struct{})
	var started atomic.Bool
	reg := models.New(models.Builders{
		Text: func() *text.Classifier { return text.New(blockingScorer{release, &started}, quietLogger()) },
	}, quietLogger())
	p := newPipeline(t, reg, store)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error)
	go func() {
		_, err := p.AnalyzeText(ctx, "slow")
		errc <- err
	}()
	require.Eventually(t, started.Load, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)
	close(release)

	require.Eventually(t, func() bool {
		entries, err := store.List(context.Background(), 10)
		return err == nil && len(entries) == 1
	}, time.Second, 5*time.Millisecond)
}

type blockingScorer struct {
	release chan struct{}
	started *atomic.Bool
}

func (b blockingScorer) Logits(string) ([]float32, error) {
	b.started.Store(true)
	<-b.release
	return make([]float32, 28), nil
}

func TestHistoryNewestFirst(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t, realModels(), newStore(t))
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	n := 0
	p.now = func() time.Time { n++; return base.Add(time.Duration(n) * time.Second) }

	_, err := p.AnalyzeText(ctx, "one")
	require.NoError(t, err)
	_, err = p.AnalyzeAudio(ctx, testaudio.ToneWAV(t, 16000))
	require.NoError(t, err)
	_, err = p.AnalyzeText(ctx, "three")
	require.NoError(t, err)

	entries, err := p.History(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, history.Text, entries[0].Modality)
	assert.Equal(t, history.Audio, entries[1].Modality)
}

func TestExportHistory(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t, realModels(), newStore(t))
	p.now = func() time.Time { return time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC) }
	ids := []string{"a", "b", "c"}
	p.newID = func() string { id := ids[0]; ids = ids[1:]; return id }

	_, err := p.AnalyzeText(ctx, "great")
	require.NoError(t, err)
	_, err = p.AnalyzeAudio(ctx, nil)
	require.NoError(t, err)
	_, err = p.AnalyzeText(ctx, "again")
	require.NoError(t, err)

	out := t.TempDir()
	dir, err := p.ExportHistory(ctx, out, 0)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "session_20240501-123000.000"), dir)

	raw, err := os.ReadFile(filepath.Join(dir, "history.json"))
	require.NoError(t, err)
	var entries []history.Entry
	require.NoError(t, json.Unmarshal(raw, &entries))
	assert.Len(t, entries, 3)

	raw, err = os.ReadFile(filepath.Join(dir, "summary.json"))
	require.NoError(t, err)
	var sum Summary
	require.NoError(t, json.Unmarshal(raw, &sum))
	assert.Equal(t, "session_20240501-123000.000", sum.SessionID)
	assert.Equal(t, 3, sum.Entries)
	assert.Equal(t, 2, sum.ByModality[history.Text])
	assert.Equal(t, 1, sum.ByModality[history.Audio])
	assert.Equal(t, 2, sum.ByDominant["joy"])
	assert.Equal(t, "joy", sum.TopEmotion)
}

func TestExportNeverReusesSession(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t, realModels(), newStore(t))
	now := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	p.now = func() time.Time { return now }
	_, err := p.AnalyzeText(ctx, "great")
	require.NoError(t, err)

	out := t.TempDir()
	first, err := p.ExportHistory(ctx, out, 0)
	require.NoError(t, err)
	before, err := os.ReadFile(filepath.Join(first, "history.json"))
	require.NoError(t, err)

	_, err = p.AnalyzeText(ctx, "again")
	require.NoError(t, err)
	_, err = p.ExportHistory(ctx, out, 0)
	require.ErrorIs(t, err, fs.ErrExist)

	after, err := os.ReadFile(filepath.Join(first, "history.json"))
	require.NoError(t, err)
	assert.Equal(t, before, after)

	now = now.Add(time.Millisecond)
	second, err := p.ExportHistory(ctx, out, 0)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestSummarizeEmpty(t *testing.T) {
	s := summarize(nil)
	assert.Zero(t, s.Entries)
	assert.Nil(t, s.First)
	assert.Empty(t, s.TopEmotion)
}

func TestJoinWarnings(t *testing.T) {
	assert.Equal(t, "", joinWarnings("", ""))
	assert.Equal(t, "a", joinWarnings("", "a"))
	assert.Equal(t, "a; b", joinWarnings("a", "", "b"))
}
