package main

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/stlalpha/brepview/internal/config"
	"github.com/stlalpha/brepview/internal/engine"
	"github.com/stlalpha/brepview/internal/logging"
)

// PolicySink receives reloaded runtime policies. *engine.Engine implements it.
type PolicySink interface {
	SetPolicies(engine.Policies)
}

// ConfigWatcher watches the config directory and applies brepview.json
// changes to the running engine.
type ConfigWatcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	watcherDone chan bool
	configPath  string
	current     config.ServerConfig
	sink        PolicySink
	debounce    time.Duration
}

// NewConfigWatcher creates a new configuration file watcher.
func NewConfigWatcher(configPath string, current config.ServerConfig, sink PolicySink) (*ConfigWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	cw := &ConfigWatcher{
		watcher:     watcher,
		watcherDone: make(chan bool),
		configPath:  configPath,
		current:     current,
		sink:        sink,
		debounce:    500 * time.Millisecond,
	}

	// Watch the directory so editors that replace the file are seen too
	if err := watcher.Add(configPath); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", configPath, err)
	}
	log.Printf("INFO: Watching %s for config changes (auto-reload enabled)", configPath)

	go cw.watchLoop(watcher)

	return cw, nil
}

// Stop stops the configuration file watcher.
func (cw *ConfigWatcher) Stop() {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.watcher == nil {
		return
	}

	select {
	case <-cw.watcherDone:
	default:
		close(cw.watcherDone)
	}

	cw.watcher.Close()
	cw.watcher = nil
	log.Printf("INFO: Configuration file watcher stopped")
}

// watchLoop handles file system events for configuration files.
func (cw *ConfigWatcher) watchLoop(w *fsnotify.Watcher) {
	// Debounce timer to avoid reloading on rapid successive writes
	var debounceTimer *time.Timer

	for {
		select {
		case event, ok := <-w.Events:
			if !ok {
				return
			}

			if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				name := event.Name
				debounceTimer = time.AfterFunc(cw.debounce, func() {
					cw.handleConfigChange(name)
				})
			}

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			log.Printf("ERROR: Config file watcher error: %v", err)

		case <-cw.watcherDone:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			log.Printf("INFO: Stopping config file watcher")
			return
		}
	}
}

// handleConfigChange reloads brepview.json and ignores other files.
func (cw *ConfigWatcher) handleConfigChange(path string) {
	filename := filepath.Base(path)
	if !strings.EqualFold(filename, config.FileName) {
		logging.Debug("Ignoring change to %s", filename)
		return
	}
	log.Printf("INFO: Config file change detected: %s", filename)
	cw.reloadServerConfig()
}

// reloadServerConfig applies the runtime policies of the new file and warns
// about settings that need a restart. It returns those settings.
func (cw *ConfigWatcher) reloadServerConfig() []string {
	next, err := config.LoadServerConfig(cw.configPath)
	if err != nil {
		log.Printf("ERROR: Failed to reload %s: %v", config.FileName, err)
		return nil
	}
	policies, err := policiesFrom(next)
	if err != nil {
		log.Printf("ERROR: Failed to reload %s: %v", config.FileName, err)
		return nil
	}

	cw.mu.Lock()
	restart := cw.current.RestartRequired(next)
	cw.current = next
	cw.mu.Unlock()

	cw.sink.SetPolicies(policies)
	log.Printf("INFO: %s reloaded successfully", config.FileName)
	if len(restart) > 0 {
		log.Printf("WARN: %s changes to %s require a restart", config.FileName, strings.Join(restart, ", "))
	}
	return restart
}
