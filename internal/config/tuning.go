package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/dwell.report/internal/vision"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for tuning parameters.
// The schema matches the /api/config endpoint so the same JSON can be
// used for startup configuration and for inspecting a running instance.
// All fields are pointers so a partial config file only overrides what
// it names; the Get* methods supply defaults for the rest.
type TuningConfig struct {
	// Counting line params
	LineY          *float64 `json:"line_y,omitempty"`
	FrameHeight    *float64 `json:"frame_height,omitempty"`
	EntryDirection *string  `json:"entry_direction,omitempty"` // "down" or "up"

	// Association params
	MaxDistance    *float64 `json:"max_distance,omitempty"` // pixels
	MaxDisappeared *int     `json:"max_disappeared,omitempty"`
	HistorySize    *int     `json:"history_size,omitempty"`
	Assignment     *string  `json:"assignment,omitempty"` // "greedy" or "optimal"

	// Detection params
	ConfidenceThreshold *float64 `json:"confidence_threshold,omitempty"`

	// Dwell params (duration strings like "90m")
	WarningThreshold *string `json:"warning_threshold,omitempty"`
	AlertThreshold   *string `json:"alert_threshold,omitempty"`
	TargetDwell      *string `json:"target_dwell,omitempty"`

	// Periodic work params
	TickInterval     *string `json:"tick_interval,omitempty"`
	SnapshotInterval *string `json:"snapshot_interval,omitempty"`

	// Revenue linking params
	PurchaseWindow *string `json:"purchase_window,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under
// the max file size. Fields omitted from the JSON file retain their
// default values, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid. Full
// cross-field validation (line inside frame, alert above warning) happens
// in vision.EngineConfig.Validate once defaults are applied.
func (c *TuningConfig) Validate() error {
	if c.LineY != nil && *c.LineY < 0 {
		return fmt.Errorf("line_y must be non-negative, got %f", *c.LineY)
	}
	if c.FrameHeight != nil && *c.FrameHeight <= 0 {
		return fmt.Errorf("frame_height must be positive, got %f", *c.FrameHeight)
	}
	if c.EntryDirection != nil {
		if *c.EntryDirection != "down" && *c.EntryDirection != "up" {
			return fmt.Errorf("entry_direction must be 'down' or 'up', got %q", *c.EntryDirection)
		}
	}
	if c.MaxDistance != nil && *c.MaxDistance <= 0 {
		return fmt.Errorf("max_distance must be positive, got %f", *c.MaxDistance)
	}
	if c.MaxDisappeared != nil && *c.MaxDisappeared < 1 {
		return fmt.Errorf("max_disappeared must be at least 1, got %d", *c.MaxDisappeared)
	}
	if c.HistorySize != nil && *c.HistorySize < 2 {
		return fmt.Errorf("history_size must be at least 2, got %d", *c.HistorySize)
	}
	if c.Assignment != nil {
		if *c.Assignment != "greedy" && *c.Assignment != "optimal" {
			return fmt.Errorf("assignment must be 'greedy' or 'optimal', got %q", *c.Assignment)
		}
	}
	if c.ConfidenceThreshold != nil {
		if *c.ConfidenceThreshold < 0 || *c.ConfidenceThreshold > 1 {
			return fmt.Errorf("confidence_threshold must be between 0 and 1, got %f", *c.ConfidenceThreshold)
		}
	}

	for name, field := range map[string]*string{
		"warning_threshold": c.WarningThreshold,
		"alert_threshold":   c.AlertThreshold,
		"target_dwell":      c.TargetDwell,
		"tick_interval":     c.TickInterval,
		"snapshot_interval": c.SnapshotInterval,
		"purchase_window":   c.PurchaseWindow,
	} {
		if field != nil && *field != "" {
			if _, err := time.ParseDuration(*field); err != nil {
				return fmt.Errorf("invalid %s '%s': %w", name, *field, err)
			}
		}
	}

	return nil
}

// GetLineY returns the line_y value or the default.
func (c *TuningConfig) GetLineY() float64 {
	if c.LineY == nil {
		return 300
	}
	return *c.LineY
}

// GetFrameHeight returns the frame_height value or the default.
func (c *TuningConfig) GetFrameHeight() float64 {
	if c.FrameHeight == nil {
		return 480
	}
	return *c.FrameHeight
}

// GetEntryDirection returns the entry_direction value or the default.
func (c *TuningConfig) GetEntryDirection() string {
	if c.EntryDirection == nil {
		return "down"
	}
	return *c.EntryDirection
}

// GetMaxDistance returns the max_distance value or the default.
func (c *TuningConfig) GetMaxDistance() float64 {
	if c.MaxDistance == nil {
		return 50
	}
	return *c.MaxDistance
}

// GetMaxDisappeared returns the max_disappeared value or the default.
func (c *TuningConfig) GetMaxDisappeared() int {
	if c.MaxDisappeared == nil {
		return 30 // one second at 30fps
	}
	return *c.MaxDisappeared
}

// GetHistorySize returns the history_size value or the default.
func (c *TuningConfig) GetHistorySize() int {
	if c.HistorySize == nil {
		return 30
	}
	return *c.HistorySize
}

// GetAssignment returns the assignment value or the default.
func (c *TuningConfig) GetAssignment() string {
	if c.Assignment == nil {
		return "greedy"
	}
	return *c.Assignment
}

// GetConfidenceThreshold returns the confidence_threshold value or the default.
func (c *TuningConfig) GetConfidenceThreshold() float64 {
	if c.ConfidenceThreshold == nil {
		return 0.4
	}
	return *c.ConfidenceThreshold
}

// GetWarningThreshold parses and returns the WarningThreshold as a time.Duration.
func (c *TuningConfig) GetWarningThreshold() time.Duration {
	return c.duration(c.WarningThreshold, 90*time.Minute)
}

// GetAlertThreshold parses and returns the AlertThreshold as a time.Duration.
func (c *TuningConfig) GetAlertThreshold() time.Duration {
	return c.duration(c.AlertThreshold, 120*time.Minute)
}

// GetTargetDwell parses and returns the TargetDwell as a time.Duration.
func (c *TuningConfig) GetTargetDwell() time.Duration {
	return c.duration(c.TargetDwell, 60*time.Minute)
}

// GetTickInterval parses and returns the TickInterval as a time.Duration.
func (c *TuningConfig) GetTickInterval() time.Duration {
	return c.duration(c.TickInterval, time.Second)
}

// GetSnapshotInterval parses and returns the SnapshotInterval as a time.Duration.
func (c *TuningConfig) GetSnapshotInterval() time.Duration {
	return c.duration(c.SnapshotInterval, 60*time.Second)
}

// GetPurchaseWindow parses and returns the PurchaseWindow as a time.Duration.
func (c *TuningConfig) GetPurchaseWindow() time.Duration {
	return c.duration(c.PurchaseWindow, 15*time.Minute)
}

func (c *TuningConfig) duration(field *string, def time.Duration) time.Duration {
	if field == nil || *field == "" {
		return def
	}
	d, err := time.ParseDuration(*field)
	if err != nil {
		return def
	}
	return d
}

// ToEngineConfig materializes the tuning values into the engine's
// configuration struct, applying defaults for unset fields.
func (c *TuningConfig) ToEngineConfig() vision.EngineConfig {
	return vision.EngineConfig{
		LineY:               float32(c.GetLineY()),
		FrameHeight:         float32(c.GetFrameHeight()),
		EntryDirection:      vision.EntryDirection(c.GetEntryDirection()),
		MaxDistance:         float32(c.GetMaxDistance()),
		MaxDisappeared:      c.GetMaxDisappeared(),
		HistorySize:         c.GetHistorySize(),
		Assignment:          vision.AssignmentMode(c.GetAssignment()),
		ConfidenceThreshold: float32(c.GetConfidenceThreshold()),
		WarningThreshold:    c.GetWarningThreshold(),
		AlertThreshold:      c.GetAlertThreshold(),
		TargetDwell:         c.GetTargetDwell(),
		TickInterval:        c.GetTickInterval(),
		SnapshotInterval:    c.GetSnapshotInterval(),
	}
}
