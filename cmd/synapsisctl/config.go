package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	synapsisapi "synapsis/pkg/synapsis"
)

// runConfig mirrors RunRequest for file-based runs. YAML is the primary
// format; JSON is accepted by extension.
type runConfig struct {
	Cells          int     `json:"cells" yaml:"cells"`
	Steps          int64   `json:"steps" yaml:"steps"`
	Seed           int64   `json:"seed" yaml:"seed"`
	Workers        int     `json:"workers" yaml:"workers"`
	Spread         float64 `json:"spread" yaml:"spread"`
	GrowthSpeed    float64 `json:"growth_speed" yaml:"growth_speed"`
	OneShot        bool    `json:"one_shot" yaml:"one_shot"`
	IsolatedTarget string  `json:"isolated_target" yaml:"isolated_target"`
	OutPath        string  `json:"out" yaml:"out"`
}

func loadRunRequestFromConfig(path string) (synapsisapi.RunRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return synapsisapi.RunRequest{}, err
	}

	var cfg runConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return synapsisapi.RunRequest{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return synapsisapi.RunRequest{}, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return synapsisapi.RunRequest{}, fmt.Errorf("unsupported config format: %s", path)
	}

	if cfg.Cells < 0 {
		return synapsisapi.RunRequest{}, fmt.Errorf("cells must be >= 0, got %d", cfg.Cells)
	}
	if cfg.Steps < 0 {
		return synapsisapi.RunRequest{}, fmt.Errorf("steps must be >= 0, got %d", cfg.Steps)
	}

	return synapsisapi.RunRequest{
		Cells:          cfg.Cells,
		Steps:          cfg.Steps,
		Seed:           cfg.Seed,
		Workers:        cfg.Workers,
		Spread:         cfg.Spread,
		GrowthSpeed:    cfg.GrowthSpeed,
		OneShot:        cfg.OneShot,
		IsolatedTarget: cfg.IsolatedTarget,
		OutPath:        cfg.OutPath,
	}, nil
}
