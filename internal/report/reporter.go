// Package report samples engine statistics on a cron schedule and keeps a
// capped history of the samples on disk.
package report

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/stlalpha/brepview/internal/config"
	"github.com/stlalpha/brepview/internal/engine"
)

// DefaultMaxHistory caps the snapshots kept when no limit is configured.
const DefaultMaxHistory = 500

// Source returns the current engine counters.
type Source func() engine.Stats

// Reporter records a Snapshot every time its schedule fires.
type Reporter struct {
	schedule    string
	source      Source
	historyPath string
	maxHistory  int

	cron    *cron.Cron
	started time.Time

	mu      sync.RWMutex
	history []Snapshot
}

// New creates a reporter. Earlier history is loaded from historyPath; an
// empty historyPath keeps history in memory only.
func New(schedule, historyPath string, maxHistory int, source Source) *Reporter {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}

	var history []Snapshot
	if historyPath != "" {
		h, err := LoadHistory(historyPath)
		if err != nil {
			log.Printf("WARN: Failed to load stats history from %s: %v", historyPath, err)
		} else {
			history = h
		}
	}

	r := &Reporter{
		schedule:    schedule,
		source:      source,
		historyPath: historyPath,
		maxHistory:  maxHistory,
		started:     time.Now(),
		history:     history,
	}
	r.trim()
	return r
}

// Start runs the schedule until ctx is done, then saves the history. An
// empty schedule disables sampling. An invalid schedule is returned as an
// error before anything runs.
func (r *Reporter) Start(ctx context.Context) error {
	if r.schedule == "" {
		log.Printf("INFO: Stats reporting disabled")
		<-ctx.Done()
		return nil
	}

	r.cron = cron.New(cron.WithParser(config.StatsScheduleParser))
	if _, err := r.cron.AddFunc(r.schedule, func() { r.Record() }); err != nil {
		return fmt.Errorf("report: invalid stats schedule %q: %w", r.schedule, err)
	}

	r.cron.Start()
	log.Printf("INFO: Stats reporter running: %s", r.schedule)

	<-ctx.Done()
	log.Printf("INFO: Stats reporter stopping...")
	r.Stop()
	return nil
}

// Stop waits for a running sample to finish, records a final one and saves
// the history.
func (r *Reporter) Stop() {
	if r.cron != nil {
		<-r.cron.Stop().Done()
	}
	r.Record()

	if r.historyPath == "" {
		return
	}
	if err := SaveHistory(r.historyPath, r.History()); err != nil {
		log.Printf("ERROR: Failed to save stats history: %v", err)
	} else {
		log.Printf("INFO: Stats history saved to %s", r.historyPath)
	}
}

// Record takes a snapshot now and appends it to the history.
func (r *Reporter) Record() Snapshot {
	now := time.Now()
	snap := Snapshot{
		Taken:         now,
		UptimeSeconds: int64(now.Sub(r.started).Seconds()),
		Stats:         r.source(),
	}

	r.mu.Lock()
	if n := len(r.history); n > 0 {
		prev := r.history[n-1]
		if elapsed := now.Sub(prev.Taken).Seconds(); elapsed > 0 && snap.Stats.BytesReceived >= prev.Stats.BytesReceived {
			snap.BytesPerSecond = float64(snap.Stats.BytesReceived-prev.Stats.BytesReceived) / elapsed
		}
	}
	r.history = append(r.history, snap)
	r.trim()
	r.mu.Unlock()

	s := snap.Stats
	log.Printf("INFO: stats: active=%d accepted=%d closed=%d bytes=%d frames=%d published=%d background=%d parks=%d",
		s.Active, s.Accepted, s.Closed, s.BytesReceived, s.FramesDecoded, s.Published, s.BackgroundFrames, s.Parks)
	return snap
}

// trim drops the oldest snapshots beyond the cap. Callers hold mu or own r.
func (r *Reporter) trim() {
	if over := len(r.history) - r.maxHistory; over > 0 {
		r.history = append([]Snapshot(nil), r.history[over:]...)
	}
}

// History returns a copy of the recorded snapshots, oldest first.
func (r *Reporter) History() []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Snapshot, len(r.history))
	copy(out, r.history)
	return out
}
