package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the typeinfer.yaml configuration.
type Config struct {
	// LanguageVersion selects compatibility behaviour (e.g. "1.9", "2.0").
	// Versions matching StrictLanguageConstraint enable strict mode unless
	// Strict is set explicitly.
	LanguageVersion string `yaml:"language_version,omitempty"`

	// Strict escalates empty-intersection warnings to errors.
	Strict *bool `yaml:"strict,omitempty"`

	// IterationBudget bounds the fixed-point loops of the solver and the
	// data-flow engine. Exceeding it is an internal error.
	IterationBudget int `yaml:"iteration_budget,omitempty"`

	// Workers is the number of top-level declarations analyzed in parallel.
	Workers int `yaml:"workers,omitempty"`

	// Color forces colored output on or off. Nil means "detect terminal".
	Color *bool `yaml:"color,omitempty"`
}

// Default returns the configuration used when no file is found.
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// Load reads and parses a typeinfer.yaml file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse parses configuration content from bytes.
// The path argument is used only for error messages.
func Parse(data []byte, path string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.validate(path); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	return &cfg, nil
}

// FindConfig searches for typeinfer.yaml starting from dir and walking up
// to parent directories. Returns "" and nil error if none is found.
func FindConfig(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}

	for {
		for _, name := range ConfigFileNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

func (c *Config) validate(path string) error {
	if c.LanguageVersion != "" {
		if _, err := semver.NewVersion(c.LanguageVersion); err != nil {
			return fmt.Errorf("%s: language_version %q: %w", path, c.LanguageVersion, err)
		}
	}
	if c.IterationBudget < 0 {
		return fmt.Errorf("%s: iteration_budget must be positive, got %d", path, c.IterationBudget)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%s: workers must be positive, got %d", path, c.Workers)
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.LanguageVersion == "" {
		c.LanguageVersion = DefaultLanguageVersion
	}
	if c.IterationBudget == 0 {
		c.IterationBudget = DefaultIterationBudget
	}
	if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}
}

// StrictEmptyIntersection reports whether empty intersections are errors.
// An explicit Strict setting wins over the language version.
func (c *Config) StrictEmptyIntersection() bool {
	if c.Strict != nil {
		return *c.Strict
	}
	v, err := semver.NewVersion(c.LanguageVersion)
	if err != nil {
		return false
	}
	constraint, err := semver.NewConstraint(StrictLanguageConstraint)
	if err != nil {
		return false
	}
	return constraint.Check(v)
}
