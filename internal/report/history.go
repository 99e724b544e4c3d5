package report

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/stlalpha/brepview/internal/engine"
	"github.com/stlalpha/brepview/internal/logging"
)

// Snapshot is one recorded sample of the engine counters.
type Snapshot struct {
	Taken          time.Time    `json:"taken"`
	UptimeSeconds  int64        `json:"uptime_seconds"`
	Stats          engine.Stats `json:"stats"`
	BytesPerSecond float64      `json:"bytes_per_second"` // Since the previous sample
}

// LoadHistory loads recorded snapshots from a JSON file. A missing file is
// an empty history.
func LoadHistory(path string) ([]Snapshot, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Printf("INFO: Stats history file not found at %s, starting with empty history", path)
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var history []Snapshot
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, err
	}

	log.Printf("INFO: Loaded %d stats snapshots from %s", len(history), path)
	return history, nil
}

// SaveHistory writes snapshots to a JSON file, creating its directory.
func SaveHistory(path string, history []Snapshot) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	if history == nil {
		history = []Snapshot{}
	}
	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return err
	}

	logging.Debug("Saved %d stats snapshots to %s", len(history), path)
	return nil
}
