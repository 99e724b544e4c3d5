// Package config loads the viewer's JSON configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/robfig/cron/v3"
)

// FileName is the configuration file looked up inside the config directory.
const FileName = "brepview.json"

// StatsScheduleParser accepts an optional seconds field and descriptors such
// as @every and @hourly.
var StatsScheduleParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ServerConfig defines listener, engine and reporting settings
type ServerConfig struct {
	ListenHost string `json:"listenHost"`
	ListenPort int    `json:"listenPort"`

	DrawMode              string `json:"drawMode"` // "auto" or "manual"
	RedrawOnNavigate      bool   `json:"redrawOnNavigate"`
	ConnectionErrorPolicy string `json:"connectionErrorPolicy"` // "fail" or "isolate"
	FallbackOnClose       bool   `json:"fallbackOnClose"`

	ReceiveChunkBytes int    `json:"receiveChunkBytes"`
	MaxFrameBytes     uint32 `json:"maxFrameBytes"` // 0 = unlimited

	StatsSchedule    string `json:"statsSchedule"` // Cron syntax, "" disables
	StatsHistoryPath string `json:"statsHistoryPath"`
	StatsHistoryMax  int    `json:"statsHistoryMax"`

	LogFile string `json:"logFile"`
}

// Default returns the settings used when no configuration file exists.
func Default() ServerConfig {
	return ServerConfig{
		ListenHost:            "127.0.0.1",
		ListenPort:            12345,
		DrawMode:              "auto",
		ConnectionErrorPolicy: "fail",
		ReceiveChunkBytes:     4096,
		MaxFrameBytes:         64 << 20,
		StatsSchedule:         "@every 1m",
		StatsHistoryPath:      "data/stats_history.json",
		StatsHistoryMax:       500,
		LogFile:               "data/logs/brepview.log",
	}
}

// LoadServerConfig loads brepview.json from configPath. A missing file yields
// the defaults; fields absent from the file keep their default values.
func LoadServerConfig(configPath string) (ServerConfig, error) {
	filePath := filepath.Join(configPath, FileName)
	log.Printf("INFO: Loading server configuration from %s", filePath)

	defaultConfig := Default()

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("WARN: %s not found at %s. Using default settings.", FileName, filePath)
			return defaultConfig, nil
		}
		return defaultConfig, fmt.Errorf("failed to read config file %s: %w", filePath, err)
	}

	// Initialize with defaults before unmarshalling
	config := defaultConfig
	if err := json.Unmarshal(data, &config); err != nil {
		log.Printf("ERROR: Failed to parse config JSON from %s: %v. Using default settings.", filePath, err)
		return defaultConfig, fmt.Errorf("failed to parse config JSON from %s: %w", filePath, err)
	}

	if err := config.Validate(); err != nil {
		return defaultConfig, fmt.Errorf("invalid configuration in %s: %w", filePath, err)
	}

	log.Printf("INFO: Successfully loaded server configuration from %s", filePath)
	return config, nil
}

// Validate reports every invalid field at once.
func (c ServerConfig) Validate() error {
	var errs []error
	if strings.TrimSpace(c.ListenHost) == "" {
		errs = append(errs, errors.New("listenHost must not be empty"))
	}
	if c.ListenPort < 0 || c.ListenPort > 65535 {
		errs = append(errs, fmt.Errorf("listenPort %d out of range", c.ListenPort))
	}
	switch strings.ToLower(c.DrawMode) {
	case "auto", "manual":
	default:
		errs = append(errs, fmt.Errorf("drawMode %q must be \"auto\" or \"manual\"", c.DrawMode))
	}
	switch strings.ToLower(c.ConnectionErrorPolicy) {
	case "", "fail", "isolate":
	default:
		errs = append(errs, fmt.Errorf("connectionErrorPolicy %q must be \"fail\" or \"isolate\"", c.ConnectionErrorPolicy))
	}
	if c.ReceiveChunkBytes <= 0 {
		errs = append(errs, fmt.Errorf("receiveChunkBytes must be positive, got %d", c.ReceiveChunkBytes))
	}
	if c.StatsSchedule != "" {
		if _, err := StatsScheduleParser.Parse(c.StatsSchedule); err != nil {
			errs = append(errs, fmt.Errorf("statsSchedule %q: %w", c.StatsSchedule, err))
		}
	}
	if c.StatsHistoryMax < 0 {
		errs = append(errs, fmt.Errorf("statsHistoryMax must not be negative, got %d", c.StatsHistoryMax))
	}
	return errors.Join(errs...)
}

// RestartRequired lists the fields that differ between c and next and only
// take effect on restart.
func (c ServerConfig) RestartRequired(next ServerConfig) []string {
	var fields []string
	if c.ListenHost != next.ListenHost {
		fields = append(fields, "listenHost")
	}
	if c.ListenPort != next.ListenPort {
		fields = append(fields, "listenPort")
	}
	if !strings.EqualFold(c.DrawMode, next.DrawMode) {
		fields = append(fields, "drawMode")
	}
	if c.ReceiveChunkBytes != next.ReceiveChunkBytes {
		fields = append(fields, "receiveChunkBytes")
	}
	if c.MaxFrameBytes != next.MaxFrameBytes {
		fields = append(fields, "maxFrameBytes")
	}
	if c.StatsSchedule != next.StatsSchedule {
		fields = append(fields, "statsSchedule")
	}
	if c.StatsHistoryPath != next.StatsHistoryPath {
		fields = append(fields, "statsHistoryPath")
	}
	if c.StatsHistoryMax != next.StatsHistoryMax {
		fields = append(fields, "statsHistoryMax")
	}
	if c.LogFile != next.LogFile {
		fields = append(fields, "logFile")
	}
	return fields
}
