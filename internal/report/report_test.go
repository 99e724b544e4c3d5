package report

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/stlalpha/brepview/internal/engine"
)

func fixedSource(s engine.Stats) Source {
	return func() engine.Stats { return s }
}

func TestSaveAndLoadHistory(t *testing.T) {
	historyPath := filepath.Join(t.TempDir(), "nested", "stats_history.json")

	now := time.Now().UTC().Truncate(time.Second)
	history := []Snapshot{
		{Taken: now.Add(-time.Minute), UptimeSeconds: 60, Stats: engine.Stats{Accepted: 1, BytesReceived: 100}},
		{Taken: now, UptimeSeconds: 120, Stats: engine.Stats{Accepted: 2, Closed: 1, BytesReceived: 700}, BytesPerSecond: 10},
	}

	if err := SaveHistory(historyPath, history); err != nil {
		t.Fatalf("Failed to save history: %v", err)
	}
	if _, err := os.Stat(historyPath); os.IsNotExist(err) {
		t.Fatal("History file was not created")
	}

	loaded, err := LoadHistory(historyPath)
	if err != nil {
		t.Fatalf("Failed to load history: %v", err)
	}
	if diff := cmp.Diff(history, loaded); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadHistoryNonExistent(t *testing.T) {
	history, err := LoadHistory(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("Expected no error for missing file, got: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("Expected empty history, got %d entries", len(history))
	}
}

func TestLoadHistoryInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadHistory(path); err == nil {
		t.Error("Expected error for invalid JSON")
	}
}

func TestRecordCapsHistory(t *testing.T) {
	var bytes atomic.Uint64
	r := New("", "", 3, func() engine.Stats {
		return engine.Stats{BytesReceived: bytes.Add(1000)}
	})

	for i := 0; i < 5; i++ {
		r.Record()
	}
	h := r.History()
	if len(h) != 3 {
		t.Fatalf("expected history capped at 3, got %d", len(h))
	}
	if h[0].Stats.BytesReceived != 3000 || h[2].Stats.BytesReceived != 5000 {
		t.Errorf("expected the newest snapshots to survive, got %d..%d",
			h[0].Stats.BytesReceived, h[2].Stats.BytesReceived)
	}
	if h[2].BytesPerSecond <= 0 {
		t.Errorf("expected a positive receive rate, got %f", h[2].BytesPerSecond)
	}
}

func TestNewLoadsAndTrimsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats_history.json")
	old := make([]Snapshot, 10)
	for i := range old {
		old[i] = Snapshot{UptimeSeconds: int64(i)}
	}
	if err := SaveHistory(path, old); err != nil {
		t.Fatalf("SaveHistory: %v", err)
	}

	r := New("", path, 4, fixedSource(engine.Stats{}))
	h := r.History()
	if len(h) != 4 || h[0].UptimeSeconds != 6 {
		t.Errorf("expected last 4 loaded snapshots, got %d starting at %d", len(h), h[0].UptimeSeconds)
	}
}

func TestStartInvalidSchedule(t *testing.T) {
	r := New("every now and then", "", 0, fixedSource(engine.Stats{}))
	if err := r.Start(context.Background()); err == nil {
		t.Error("expected an error for an invalid schedule")
	}
}

func TestStartRecordsAndSavesOnStop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats_history.json")
	r := New("@every 1s", path, 0, fixedSource(engine.Stats{Accepted: 7}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Start(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for len(r.History()) == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if len(r.History()) == 0 {
		t.Fatal("schedule never fired")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after cancel")
	}

	saved, err := LoadHistory(path)
	if err != nil {
		t.Fatalf("LoadHistory: %v", err)
	}
	// Every scheduled sample plus the final one taken on stop.
	if len(saved) < 2 || saved[len(saved)-1].Stats.Accepted != 7 {
		t.Errorf("unexpected saved history: %+v", saved)
	}
}
