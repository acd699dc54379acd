package cmd

import (
	"bytes"
	"os"
	"sort"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/allocsim/allocsim/sim/workload"
)

// Config represents the full defaults.yaml structure.
// All top-level sections must be listed to satisfy KnownFields(true) strict parsing.
type Config struct {
	Version  string                           `yaml:"version"`
	Profiles map[string]workload.WorkloadSpec `yaml:"profiles"`
}

// loadDefaultsConfig parses defaults.yaml into a Config struct.
// Uses strict field checking: typos must cause errors.
func loadDefaultsConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "reading defaults file %s", path)
	}
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, errors.Wrapf(err, "parsing defaults file %s", path)
	}
	return cfg, nil
}

// GetProfile returns the named preset from the defaults file, validated.
func GetProfile(name, path string) (*workload.WorkloadSpec, error) {
	cfg, err := loadDefaultsConfig(path)
	if err != nil {
		return nil, err
	}
	p, ok := cfg.Profiles[name]
	if !ok {
		return nil, errors.Newf("unknown profile %q in %s; available: %v", name, path, profileNames(cfg))
	}
	if err := p.Validate(); err != nil {
		return nil, errors.Wrapf(err, "profile %q", name)
	}
	return &p, nil
}

func profileNames(cfg Config) []string {
	names := make([]string, 0, len(cfg.Profiles))
	for name := range cfg.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
