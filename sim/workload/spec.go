package workload

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// WorkloadSpec is the on-disk description of one replay experiment.
// Loaded from YAML via LoadWorkloadSpec(path). Zero-valued fields mean
// "not set" and leave the CLI value in place. Seed and PageBits are pointers
// because zero is a meaningful value for both.
type WorkloadSpec struct {
	Version         string `yaml:"version" toml:"version"`
	Seed            *int64 `yaml:"seed,omitempty" toml:"seed"`
	Iterations      int64  `yaml:"iterations,omitempty" toml:"iterations"`
	RetentionWindow int64  `yaml:"retention_window,omitempty" toml:"retention_window"`
	SizePolicy      string `yaml:"size_policy,omitempty" toml:"size_policy"`
	ConstantSize    int64  `yaml:"constant_size,omitempty" toml:"constant_size"`
	AcquisitionMode string `yaml:"acquisition_mode,omitempty" toml:"acquisition_mode"`
	PageBits        *int   `yaml:"page_bits,omitempty" toml:"page_bits"`
	PoolBits        int    `yaml:"pool_bits,omitempty" toml:"pool_bits"`
	Teardown        string `yaml:"teardown,omitempty" toml:"teardown"`
}

// Valid value registries.
var (
	validAcquisitionModes = map[string]bool{"": true, "bulk": true, "discrete": true}
	validTeardownPolicies = map[string]bool{"": true, "leave": true, "release": true}
	validVersions         = map[string]bool{"": true, "1": true}
)

// LoadWorkloadSpec reads and parses a workload specification file. Files
// ending in .toml are decoded as TOML, everything else as YAML. Both use
// strict parsing: unrecognized keys (typos) are rejected.
func LoadWorkloadSpec(path string) (*WorkloadSpec, error) {
	var spec WorkloadSpec
	var err error
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		err = decodeTOML(path, &spec)
	} else {
		err = decodeYAML(path, &spec)
	}
	if err != nil {
		return nil, err
	}
	if spec.Version == "" {
		logrus.Debugf("workload spec %s has no version; assuming 1", path)
		spec.Version = "1"
	}
	return &spec, nil
}

func decodeYAML(path string, spec *WorkloadSpec) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "reading workload spec")
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(spec); err != nil {
		return errors.Wrap(err, "parsing workload spec")
	}
	return nil
}

func decodeTOML(path string, spec *WorkloadSpec) error {
	md, err := toml.DecodeFile(path, spec)
	if err != nil {
		return errors.Wrap(err, "parsing workload spec")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return errors.Newf("parsing workload spec: unknown keys %v", undecoded)
	}
	return nil
}

// Validate checks that all set fields in the spec are valid.
func (s *WorkloadSpec) Validate() error {
	if !validVersions[s.Version] {
		return errors.Newf("unsupported workload spec version %q", s.Version)
	}
	if s.Iterations < 0 {
		return errors.Newf("iterations must be non-negative, got %d", s.Iterations)
	}
	if s.RetentionWindow != 0 && s.RetentionWindow < 2 {
		return errors.Newf("retention_window must be >= 2, got %d", s.RetentionWindow)
	}
	if s.SizePolicy != "" {
		if _, ok := CanonicalPolicyName(s.SizePolicy); !ok {
			return errors.Newf("unknown size_policy %q; valid: uniform (A), pow2 (B), pow2-skewed (C), constant", s.SizePolicy)
		}
	}
	if s.ConstantSize < 0 {
		return errors.Newf("constant_size must be non-negative, got %d", s.ConstantSize)
	}
	if !validAcquisitionModes[s.AcquisitionMode] {
		return errors.Newf("unknown acquisition_mode %q; valid: bulk, discrete", s.AcquisitionMode)
	}
	if !validTeardownPolicies[s.Teardown] {
		return errors.Newf("unknown teardown %q; valid: leave, release", s.Teardown)
	}
	if s.PageBits != nil && *s.PageBits < 0 {
		return errors.Newf("page_bits must be non-negative, got %d", *s.PageBits)
	}
	if s.PoolBits < 0 {
		return errors.Newf("pool_bits must be non-negative, got %d", s.PoolBits)
	}
	if s.PageBits != nil && s.PoolBits != 0 && s.PoolBits < *s.PageBits {
		return errors.Newf("pool_bits (%d) must be >= page_bits (%d)", s.PoolBits, *s.PageBits)
	}
	return nil
}
