package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is cmd/ldo-simd's YAML-loaded simulator configuration: rank
// count, message size, listen address and audit-database path, modeled on
// the teacher's web-config YAML loading pattern. PollQuota is parsed but
// read by nothing; pkg/ldo's poll loops use the fixed ldo.PollQuota.
type Config struct {
	NumRanks    int    `yaml:"num_ranks"`
	MsgSize     uint32 `yaml:"msg_size"`
	PollQuota   int    `yaml:"poll_quota,omitempty"`
	MetricsAddr string `yaml:"metrics_addr"`
	DBPath      string `yaml:"db_path"`
}

func defaultConfig() Config {
	return Config{
		NumRanks:    4,
		MsgSize:     64,
		MetricsAddr: ":9401",
		DBPath:      "ldo-simd-audit.db",
	}
}

// LoadConfig reads and parses a YAML config file, falling back to
// defaultConfig's values for anything left unset.
func LoadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("ldo-simd: read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("ldo-simd: parse config %s: %w", path, err)
	}
	return cfg, nil
}
