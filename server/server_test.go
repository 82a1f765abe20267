package server

import (
	"bytes"
	"context"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abuubaida2/Ai-Mental-health-Companion-App/emotion"
	"github.com/abuubaida2/Ai-Mental-health-Companion-App/history"
	"github.com/abuubaida2/Ai-Mental-health-Companion-App/models"
	"github.com/abuubaida2/Ai-Mental-health-Companion-App/orchestrator"
	"github.com/abuubaida2/Ai-Mental-health-Companion-App/worker"
)

type fakeAnalyzer struct {
	err      error
	gotText  string
	gotAudio []byte
	gotLimit int
	entries  []history.Entry
	textRes  *orchestrator.Result
}

func (f *fakeAnalyzer) AnalyzeText(_ context.Context, text string) (orchestrator.Result, error) {
	f.gotText = text
	if f.err != nil {
		return orchestrator.Result{}, f.err
	}
	if f.textRes != nil {
		return *f.textRes, nil
	}
	return orchestrator.Result{Probabilities: emotion.Distribution{"joy": 0.9, "neutral": 0.1}, Dominant: "joy"}, nil
}

func (f *fakeAnalyzer) AnalyzeAudio(_ context.Context, data []byte) (orchestrator.Result, error) {
	f.gotAudio = data
	if f.err != nil {
		return orchestrator.Result{}, f.err
	}
	return orchestrator.Result{Probabilities: emotion.Distribution{"neutral": 0.45, "calm": 0.2}, Dominant: "neutral", Warning: "audio preprocessing failed"}, nil
}

func (f *fakeAnalyzer) AnalyzeMultimodal(_ context.Context, text string, data []byte) (orchestrator.Multimodal, error) {
	f.gotText, f.gotAudio = text, data
	if f.err != nil {
		return orchestrator.Multimodal{}, f.err
	}
	return orchestrator.Multimodal{
		Text:  orchestrator.Result{Probabilities: emotion.Distribution{"joy": 1}, Dominant: "joy"},
		Audio: orchestrator.Result{Probabilities: emotion.Distribution{"happy": 1}, Dominant: "happy"},
		Fused: emotion.Verdict{Dominant: "joy", Confidence: 1},
	}, nil
}

func (f *fakeAnalyzer) History(_ context.Context, limit int) ([]history.Entry, error) {
	f.gotLimit = limit
	return f.entries, f.err
}

type fakeStates map[string]models.State

func (f fakeStates) States() map[string]models.State { return f }

func newTestServer(a Analyzer) http.Handler {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return New(a, fakeStates{"text": models.Ready, "audio": models.Unloaded}, Options{Logger: l, Version: "test"}).Handler()
}

func multipartBody(t *testing.T, fields map[string]string, file []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if file != nil {
		fw, err := mw.CreateFormFile("file", "clip.wav")
		require.NoError(t, err)
		_, err = fw.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func do(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRoot(t *testing.T) {
	rec := do(newTestServer(&fakeAnalyzer{}), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Mental Health Backend Running"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestAnalyzeText(t *testing.T) {
	a := &fakeAnalyzer{}
	req := httptest.NewRequest(http.MethodPost, "/analyze-text", strings.NewReader(`{"text":"I passed!"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := do(newTestServer(a), req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "I passed!", a.gotText)
	var res orchestrator.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "joy", res.Dominant)
	assert.NotContains(t, rec.Body.String(), "warning")
}

func TestAnalyzeTextRejectsBadRequests(t *testing.T) {
	for name, body := range map[string]string{
		"missing text": `{}`,
		"empty text":   `{"text":""}`,
		"blank text":   `{"text":"  \n\t"}`,
		"not json":     `text=hi`,
	} {
		t.Run(name, func(t *testing.T) {
			a := &fakeAnalyzer{}
			rec := do(newTestServer(a), httptest.NewRequest(http.MethodPost, "/analyze-text", strings.NewReader(body)))
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			assert.Contains(t, rec.Body.String(), "detail")
			assert.Empty(t, a.gotText)
		})
	}
}

func TestUnencodableResponse(t *testing.T) {
	var logs bytes.Buffer
	l := logrus.New()
	l.SetOutput(&logs)
	a := &fakeAnalyzer{textRes: &orchestrator.Result{
		Probabilities: emotion.Distribution{"joy": math.NaN()},
		Dominant:      "joy",
	}}
	h := New(a, nil, Options{Logger: l}).Handler()
	rec := do(h, httptest.NewRequest(http.MethodPost, "/analyze-text", strings.NewReader(`{"text":"hi"}`)))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"detail":"internal error"}`, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, logs.String(), "encode response")
}

func TestAnalyzeAudio(t *testing.T) {
	a := &fakeAnalyzer{}
	body, ct := multipartBody(t, nil, []byte("RIFF...."))
	req := httptest.NewRequest(http.MethodPost, "/analyze-audio", body)
	req.Header.Set("Content-Type", ct)
	rec := do(newTestServer(a), req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []byte("RIFF...."), a.gotAudio)
	var res orchestrator.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "neutral", res.Dominant)
	assert.Equal(t, "audio preprocessing failed", res.Warning)
}

func TestAnalyzeAudioRequiresFile(t *testing.T) {
	body, ct := multipartBody(t, map[string]string{"other": "x"}, nil)
	req := httptest.NewRequest(http.MethodPost, "/analyze-audio", body)
	req.Header.Set("Content-Type", ct)
	rec := do(newTestServer(&fakeAnalyzer{}), req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(newTestServer(&fakeAnalyzer{}), httptest.NewRequest(http.MethodPost, "/analyze-audio", strings.NewReader("raw")))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestUploadTooLarge(t *testing.T) {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	h := New(&fakeAnalyzer{}, nil, Options{Logger: l, MaxUploadBytes: 1024}).Handler()
	body, ct := multipartBody(t, nil, bytes.Repeat([]byte{1}, 4096))
	req := httptest.NewRequest(http.MethodPost, "/analyze-audio", body)
	req.Header.Set("Content-Type", ct)
	rec := do(h, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestMultimodal(t *testing.T) {
	a := &fakeAnalyzer{}
	body, ct := multipartBody(t, map[string]string{"text": "I feel happy"}, []byte("audio"))
	req := httptest.NewRequest(http.MethodPost, "/multimodal-analysis", body)
	req.Header.Set("Content-Type", ct)
	rec := do(newTestServer(a), req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "I feel happy", a.gotText)
	var res orchestrator.Multimodal
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "joy", res.Fused.Dominant)
	assert.Equal(t, "happy", res.Audio.Dominant)
}

func TestMultimodalRequiresText(t *testing.T) {
	body, ct := multipartBody(t, nil, []byte("audio"))
	req := httptest.NewRequest(http.MethodPost, "/multimodal-analysis", body)
	req.Header.Set("Content-Type", ct)
	rec := do(newTestServer(&fakeAnalyzer{}), req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestMoodHistory(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	a := &fakeAnalyzer{entries: []history.Entry{{ID: "e1", Modality: history.Audio, Dominant: "calm", Timestamp: ts}}}
	h := newTestServer(a)

	rec := do(h, httptest.NewRequest(http.MethodGet, "/mood-history?limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, a.gotLimit)
	assert.JSONEq(t, `[{"id":"e1","type":"audio","dominant":"calm","timestamp":"2024-01-02T03:04:05Z"}]`, rec.Body.String())

	rec = do(h, httptest.NewRequest(http.MethodGet, "/mood-history", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, a.gotLimit)

	rec = do(h, httptest.NewRequest(http.MethodGet, "/mood-history?limit=ten", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestPipelineErrors(t *testing.T) {
	for name, tc := range map[string]struct {
		err  error
		code int
	}{
		"shutdown": {worker.ErrClosed, http.StatusServiceUnavailable},
		"timeout":  {context.DeadlineExceeded, http.StatusGatewayTimeout},
	} {
		t.Run(name, func(t *testing.T) {
			rec := do(newTestServer(&fakeAnalyzer{err: tc.err}),
				httptest.NewRequest(http.MethodPost, "/analyze-text", strings.NewReader(`{"text":"hi"}`)))
			assert.Equal(t, tc.code, rec.Code)
		})
	}
}

func TestHealthz(t *testing.T) {
	rec := do(newTestServer(&fakeAnalyzer{}), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","version":"test","models":{"text":"ready","audio":"unloaded"}}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestServer(&fakeAnalyzer{})
	do(h, httptest.NewRequest(http.MethodGet, "/", nil))
	rec := do(h, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "mood_api_requests_total")
}

func TestCORSPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/analyze-text", nil)
	req.Header.Set("Origin", "http://localhost:19006")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := do(newTestServer(&fakeAnalyzer{}), req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRunShutsDown(t *testing.T) {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	s := New(&fakeAnalyzer{}, nil, Options{Logger: l})
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error)
	go func() { errc <- s.Run(ctx, "127.0.0.1:0", time.Second, time.Second) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
