package main

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/stlalpha/brepview/internal/config"
	"github.com/stlalpha/brepview/internal/engine"
)

type recordingSink struct {
	mu  sync.Mutex
	got []engine.Policies
}

func (s *recordingSink) SetPolicies(p engine.Policies) {
	s.mu.Lock()
	s.got = append(s.got, p)
	s.mu.Unlock()
}

func (s *recordingSink) last() (engine.Policies, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.got) == 0 {
		return engine.Policies{}, 0
	}
	return s.got[len(s.got)-1], len(s.got)
}

func TestReloadServerConfigAppliesPolicies(t *testing.T) {
	dir := t.TempDir()
	body := `{"redrawOnNavigate": true, "connectionErrorPolicy": "isolate", "fallbackOnClose": true}`
	if err := os.WriteFile(filepath.Join(dir, config.FileName), []byte(body), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	sink := &recordingSink{}
	cw := &ConfigWatcher{configPath: dir, current: config.Default(), sink: sink}
	cw.reloadServerConfig()

	p, n := sink.last()
	if n != 1 {
		t.Fatalf("expected one policy update, got %d", n)
	}
	want := engine.Policies{RedrawOnNavigate: true, OnConnError: engine.PolicyIsolate, FallbackOnClose: true}
	if p != want {
		t.Errorf("got %+v, want %+v", p, want)
	}
}

func TestReloadServerConfigRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, config.FileName), []byte(`{"connectionErrorPolicy": "retry"}`), 0644)

	sink := &recordingSink{}
	cw := &ConfigWatcher{configPath: dir, current: config.Default(), sink: sink}
	cw.reloadServerConfig()

	if _, n := sink.last(); n != 0 {
		t.Errorf("invalid config should not reach the engine, got %d updates", n)
	}
}

func TestConfigWatcherPicksUpWrites(t *testing.T) {
	dir := t.TempDir()
	sink := &recordingSink{}
	cw, err := NewConfigWatcher(dir, config.Default(), sink)
	if err != nil {
		t.Fatalf("NewConfigWatcher: %v", err)
	}
	defer cw.Stop()

	body := `{"fallbackOnClose": true}`
	if err := os.WriteFile(filepath.Join(dir, config.FileName), []byte(body), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if p, n := sink.last(); n > 0 && p.FallbackOnClose {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("config change was not applied")
}

func TestReloadIgnoresFlagOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, config.FileName)
	if err := os.WriteFile(path, []byte(`{"listenPort": 5000, "drawMode": "auto"}`), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	fileCfg, err := config.LoadServerConfig(dir)
	if err != nil {
		t.Fatalf("LoadServerConfig: %v", err)
	}
	effective := overrides{host: "0.0.0.0", port: 6000, mode: "manual"}.apply(fileCfg)
	if effective.ListenPort != 6000 || effective.DrawMode != "manual" || effective.ListenHost != "0.0.0.0" {
		t.Fatalf("overrides not applied: %+v", effective)
	}
	if fileCfg.ListenPort != 5000 {
		t.Fatalf("apply modified the loaded config: port %d", fileCfg.ListenPort)
	}

	sink := &recordingSink{}
	cw := &ConfigWatcher{configPath: dir, current: fileCfg, sink: sink}

	// Only a live policy changes.
	if err := os.WriteFile(path, []byte(`{"listenPort": 5000, "drawMode": "auto", "fallbackOnClose": true}`), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if restart := cw.reloadServerConfig(); len(restart) != 0 {
		t.Errorf("unexpected restart warning for %v", restart)
	}

	if err := os.WriteFile(path, []byte(`{"listenPort": 5001, "drawMode": "manual"}`), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if diff := cmp.Diff([]string{"listenPort", "drawMode"}, cw.reloadServerConfig()); diff != "" {
		t.Errorf("restart fields mismatch (-want +got):\n%s", diff)
	}
}

func TestOverridesUnset(t *testing.T) {
	cfg := config.Default()
	if got := (overrides{port: -1}).apply(cfg); got != cfg {
		t.Errorf("unset overrides changed the config: %+v", got)
	}
}
