package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordInference(t *testing.T) {
	ok := InferenceTotal.WithLabelValues("text", "ok")
	degraded := InferenceTotal.WithLabelValues("text", "degraded")
	beforeOK, beforeDegraded := testutil.ToFloat64(ok), testutil.ToFloat64(degraded)

	RecordInference("text", false, 10*time.Millisecond)
	RecordInference("text", true, 5*time.Millisecond)
	RecordInference("text", true, 5*time.Millisecond)

	if got := testutil.ToFloat64(ok) - beforeOK; got != 1 {
		t.Errorf("ok delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(degraded) - beforeDegraded; got != 2 {
		t.Errorf("degraded delta = %v, want 2", got)
	}
}

func TestRecordModelLoad(t *testing.T) {
	c := ModelLoads.WithLabelValues("audio", "degraded")
	before := testutil.ToFloat64(c)
	RecordModelLoad("audio", true, time.Second)
	if got := testutil.ToFloat64(c) - before; got != 1 {
		t.Errorf("delta = %v, want 1", got)
	}
}

func TestRecordHistoryWrite(t *testing.T) {
	okC := HistoryWrites.WithLabelValues("ok")
	errC := HistoryWrites.WithLabelValues("error")
	beforeOK, beforeErr := testutil.ToFloat64(okC), testutil.ToFloat64(errC)

	RecordHistoryWrite(nil)
	RecordHistoryWrite(errors.New("disk full"))

	if got := testutil.ToFloat64(okC) - beforeOK; got != 1 {
		t.Errorf("ok delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(errC) - beforeErr; got != 1 {
		t.Errorf("error delta = %v, want 1", got)
	}
}

func TestTrackWorkerJob(t *testing.T) {
	before := testutil.ToFloat64(WorkerInFlight)
	TrackWorkerJob(true)
	TrackWorkerJob(true)
	if got := testutil.ToFloat64(WorkerInFlight) - before; got != 2 {
		t.Errorf("in flight delta = %v, want 2", got)
	}
	TrackWorkerJob(false)
	TrackWorkerJob(false)
	if got := testutil.ToFloat64(WorkerInFlight); got != before {
		t.Errorf("in flight = %v, want %v", got, before)
	}
}

func TestRecordAPIRequest(t *testing.T) {
	c := APIRequestsTotal.WithLabelValues("POST", "/analyze-text", "200")
	before := testutil.ToFloat64(c)
	RecordAPIRequest("POST", "/analyze-text", 200, 20*time.Millisecond)
	if got := testutil.ToFloat64(c) - before; got != 1 {
		t.Errorf("delta = %v, want 1", got)
	}
}
