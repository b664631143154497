package audit

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"testing"
	"time"
)

type failingRecorder struct{}

func (failingRecorder) Record(context.Context, Transition) error { return errors.New("mongo down") }

func TestLogRecorder(t *testing.T) {
	var buf bytes.Buffer
	r := LogRecorder{Logger: log.New(&buf, "", 0)}
	err := r.Record(context.Background(), Transition{
		Entity: "event", EntityID: "evt-1", From: "pending", To: "approved", ActorID: "adm-1",
		OccurredAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if got := buf.String(); !strings.Contains(got, "event evt-1: pending -> approved by adm-1") {
		t.Fatalf("unexpected log %q", got)
	}
}

func TestRecordBestEffortLogsFailure(t *testing.T) {
	var buf bytes.Buffer
	RecordBestEffort(context.Background(), failingRecorder{}, log.New(&buf, "", 0), Transition{Entity: "event", EntityID: "evt-1"})
	if !strings.Contains(buf.String(), "mongo down") {
		t.Fatalf("expected failure to be logged, got %q", buf.String())
	}

	// A missing recorder is a no-op.
	RecordBestEffort(context.Background(), nil, nil, Transition{})
}
