package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/loykin/cronreg/internal/history"
)

func syncEvent(runID string, at time.Time) history.Event {
	return history.Event{
		Type:       history.EventSync,
		OccurredAt: at,
		Record: history.Record{
			RunID:   runID,
			User:    "ec2-user",
			Entry:   "0 */3 * * * /usr/bin/python3 /home/ec2-user/used-car-scraper/run_all.py >> /var/log/usedcar.log 2>&1",
			Marker:  "/var/log/usedcar.log",
			Removed: 1,
			Entries: 3,
			Changed: true,
		},
	}
}

func TestSQLiteSink_FileRoundTrip(t *testing.T) {
	dbPath := t.TempDir() + "/history.db"

	sink, err := New("sqlite://" + dbPath)
	if err != nil {
		t.Fatalf("Failed to create sink: %v", err)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			t.Errorf("Failed to close sink: %v", err)
		}
	}()

	ctx := context.Background()
	first := time.Date(2026, 3, 1, 0, 0, 0, 123456789, time.UTC)
	if err := sink.Send(ctx, syncEvent("run-1", first)); err != nil {
		t.Fatalf("Failed to send first event: %v", err)
	}

	failed := history.Event{
		Type:       history.EventRemove,
		OccurredAt: first.Add(time.Hour),
		Record: history.Record{
			RunID:  "run-2",
			Marker: "/var/log/usedcar.log",
			Error:  "crontab write: permission denied",
		},
	}
	if err := sink.Send(ctx, failed); err != nil {
		t.Fatalf("Failed to send second event: %v", err)
	}

	events, err := sink.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Record.RunID != "run-2" || events[0].Type != history.EventRemove {
		t.Fatalf("expected newest first, got %+v", events[0])
	}
	if events[0].Record.Error == "" {
		t.Fatalf("expected error text to be stored")
	}
	got := events[1]
	want := syncEvent("run-1", first)
	if !got.OccurredAt.Equal(first) {
		t.Fatalf("timestamp mismatch: %v vs %v", got.OccurredAt, first)
	}
	got.OccurredAt = want.OccurredAt
	if got != want {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestSQLiteSink_InMemoryLimit(t *testing.T) {
	sink, err := New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create in-memory sink: %v", err)
	}
	defer func() { _ = sink.Close() }()

	ctx := context.Background()
	now := time.Now().UTC()
	for i, id := range []string{"a", "b", "c"} {
		if err := sink.Send(ctx, syncEvent(id, now.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("send %s: %v", id, err)
		}
	}
	events, err := sink.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(events) != 2 || events[0].Record.RunID != "c" || events[1].Record.RunID != "b" {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestSQLiteSink_ContextCancellation(t *testing.T) {
	sink, err := New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create sink: %v", err)
	}
	defer func() { _ = sink.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := sink.Send(ctx, syncEvent("cancelled", time.Now())); err == nil {
		t.Fatalf("expected error with cancelled context")
	}
}

func TestSQLiteSink_EmptyDSN(t *testing.T) {
	if _, err := New("  "); err == nil {
		t.Fatalf("expected error for empty DSN")
	}
}
