package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flowkit/agentflow/orchestrator"
)

// fileConfig is the YAML-decodable shape of an optional --config file,
// letting the demo's tunables and task be edited without a rebuild. The
// zero value of every field means "use the built-in default".
type fileConfig struct {
	Task string `yaml:"task"`

	MaxStepRemediations            int    `yaml:"max_step_remediations"`
	MaxTotalRedesigns              int    `yaml:"max_total_redesigns"`
	MinStepInterval                string `yaml:"min_step_interval"`
	MaxTotalLoopIterations         int    `yaml:"max_total_loop_iterations"`
	EnableFastPathIntentGeneration bool   `yaml:"enable_fast_path_intent_generation"`
	DetectionMode                  string `yaml:"detection_mode"`
}

// loadFileConfig reads and decodes a YAML config file at path.
func loadFileConfig(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("agentflowd: read config: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("agentflowd: parse config: %w", err)
	}
	return &fc, nil
}

// applyTo overlays the file config's non-zero fields onto cfg, leaving
// defaults untouched where the file is silent.
func (fc *fileConfig) applyTo(cfg orchestrator.Config) (orchestrator.Config, error) {
	if fc.MaxStepRemediations > 0 {
		cfg.MaxStepRemediations = fc.MaxStepRemediations
	}
	if fc.MaxTotalRedesigns > 0 {
		cfg.MaxTotalRedesigns = fc.MaxTotalRedesigns
	}
	if fc.MinStepInterval != "" {
		d, err := time.ParseDuration(fc.MinStepInterval)
		if err != nil {
			return cfg, fmt.Errorf("agentflowd: config min_step_interval: %w", err)
		}
		cfg.MinStepInterval = d
	}
	if fc.MaxTotalLoopIterations > 0 {
		cfg.MaxTotalLoopIterations = fc.MaxTotalLoopIterations
	}
	if fc.EnableFastPathIntentGeneration {
		cfg.EnableFastPathIntentGeneration = true
	}
	if fc.DetectionMode != "" {
		cfg.DetectionMode = orchestrator.DetectionMode(fc.DetectionMode)
	}
	return cfg, nil
}
