// Package config loads synthesizer settings from an optional CUE file.
//
// The file is unified with an embedded schema (schema.cue) so that typos
// and out-of-range values are rejected with a source position before the
// engine starts. Fields left out of the file keep their defaults, which
// reproduce the fixed timing of the original machine:
//
//	element_synthesis_ms:     1000
//	on_maintenance_ms:        5000
//	estimate_interval_ms:     1000
//	tasks_before_maintenance: 5
package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

//go:embed schema.cue
var schemaCUE string

// Defaults for the timing constants.
const (
	DefaultElementSynthesisTime   = 1000 * time.Millisecond
	DefaultOnMaintenanceTime      = 5000 * time.Millisecond
	DefaultEstimateInterval       = 1000 * time.Millisecond
	DefaultTasksBeforeMaintenance = 5
)

// Timing holds the engine's clock constants.
type Timing struct {
	ElementSynthesis       time.Duration
	OnMaintenance          time.Duration
	EstimateInterval       time.Duration
	TasksBeforeMaintenance int
}

// DefaultTiming returns the fixed timing of the synthesizer.
func DefaultTiming() Timing {
	return Timing{
		ElementSynthesis:       DefaultElementSynthesisTime,
		OnMaintenance:          DefaultOnMaintenanceTime,
		EstimateInterval:       DefaultEstimateInterval,
		TasksBeforeMaintenance: DefaultTasksBeforeMaintenance,
	}
}

// Validate rejects timings the engine cannot run with.
func (t Timing) Validate() error {
	if t.ElementSynthesis <= 0 {
		return fmt.Errorf("element synthesis time must be positive, got %s", t.ElementSynthesis)
	}
	if t.OnMaintenance < 0 {
		return fmt.Errorf("maintenance time must not be negative, got %s", t.OnMaintenance)
	}
	if t.EstimateInterval <= 0 {
		return fmt.Errorf("estimate interval must be positive, got %s", t.EstimateInterval)
	}
	if t.TasksBeforeMaintenance < 1 {
		return fmt.Errorf("tasks before maintenance must be at least 1, got %d", t.TasksBeforeMaintenance)
	}
	return nil
}

// Config is the decoded configuration file.
type Config struct {
	ElementSynthesisMS     int    `json:"element_synthesis_ms"`
	OnMaintenanceMS        int    `json:"on_maintenance_ms"`
	EstimateIntervalMS     int    `json:"estimate_interval_ms"`
	TasksBeforeMaintenance int    `json:"tasks_before_maintenance"`
	LogLevel               string `json:"log_level"`
	LogFormat              string `json:"log_format"`
	Journal                string `json:"journal,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		ElementSynthesisMS:     int(DefaultElementSynthesisTime / time.Millisecond),
		OnMaintenanceMS:        int(DefaultOnMaintenanceTime / time.Millisecond),
		EstimateIntervalMS:     int(DefaultEstimateInterval / time.Millisecond),
		TasksBeforeMaintenance: DefaultTasksBeforeMaintenance,
		LogLevel:               "info",
		LogFormat:              "text",
	}
}

// Timing converts the millisecond fields to durations.
func (c Config) Timing() Timing {
	return Timing{
		ElementSynthesis:       time.Duration(c.ElementSynthesisMS) * time.Millisecond,
		OnMaintenance:          time.Duration(c.OnMaintenanceMS) * time.Millisecond,
		EstimateInterval:       time.Duration(c.EstimateIntervalMS) * time.Millisecond,
		TasksBeforeMaintenance: c.TasksBeforeMaintenance,
	}
}

// Error is a configuration problem with an optional source position.
type Error struct {
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return e.Message
}

// Load reads path. An empty path yields Default().
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data, path)
}

// Parse validates data against the schema and decodes it over Default().
func Parse(data []byte, filename string) (Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Config{}, fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	user := ctx.CompileBytes(data, cue.Filename(filename))
	if err := user.Err(); err != nil {
		return Config{}, formatCUEError(err)
	}

	v := def.Unify(user)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return Config{}, formatCUEError(err)
	}

	cfg := Default()
	if err := v.Decode(&cfg); err != nil {
		return Config{}, formatCUEError(err)
	}
	if err := cfg.Timing().Validate(); err != nil {
		return Config{}, &Error{Message: err.Error()}
	}
	return cfg, nil
}

// Format renders cfg as CUE source.
func Format(cfg Config) string {
	v := cuecontext.New().Encode(cfg)
	return fmt.Sprintf("%v\n", v)
}

// formatCUEError keeps the first CUE error and its position.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	positions := errors.Positions(first)
	if len(positions) > 0 {
		return &Error{Message: first.Error(), Pos: positions[0]}
	}
	return &Error{Message: first.Error()}
}
