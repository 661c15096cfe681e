package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// monitorConfig is the YAML shape accepted by "monitor --config".
type monitorConfig struct {
	Port   int      `yaml:"port"`
	Ignore []string `yaml:"ignore"`
}

func loadMonitorConfig(path string) (monitorConfig, error) {
	var cfg monitorConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read monitor config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse monitor config: %w", err)
	}
	return cfg, nil
}
