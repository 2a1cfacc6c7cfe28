package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorder(t *testing.T) {
	r := New()

	r.Stage("fetch", 10)
	r.Stage("fetch", 5)
	r.Stage("dedup", 3)
	r.EmbeddingFailures(2)
	r.EmbeddingFailures(0)
	r.RunFinished("completed", "", 1500*time.Millisecond)
	r.RunFinished("aborted", "no_unseen_postings", time.Second)

	if got := testutil.ToFloat64(r.postings.WithLabelValues("fetch")); got != 15 {
		t.Fatalf("expected 15 fetched postings, got %v", got)
	}
	if got := testutil.ToFloat64(r.embeddingFailures); got != 2 {
		t.Fatalf("expected 2 embedding failures, got %v", got)
	}
	if got := testutil.ToFloat64(r.runs.WithLabelValues("aborted", "no_unseen_postings")); got != 1 {
		t.Fatalf("expected 1 aborted run, got %v", got)
	}
	if got := testutil.CollectAndCount(r.runDuration); got != 1 {
		t.Fatalf("expected one histogram, got %d", got)
	}
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder
	r.Stage("fetch", 1)
	r.EmbeddingFailures(1)
	r.RunFinished("completed", "", time.Second)

	if err := r.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := r.Gatherer().Gather(); err != nil {
		t.Fatalf("unexpected gather error: %v", err)
	}
}

func TestWriteTextfile(t *testing.T) {
	r := New()
	r.RunFinished("completed", "", time.Second)

	path := filepath.Join(t.TempDir(), "jobmatch.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading textfile: %v", err)
	}
	if !strings.Contains(string(data), `jobmatch_runs_total{reason="",state="completed"} 1`) {
		t.Fatalf("unexpected textfile content:\n%s", data)
	}
}
