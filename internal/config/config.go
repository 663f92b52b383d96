// Package config loads benchmark settings from a YAML file and the
// environment, and validates them before a run starts.
//
// Precedence, lowest first: Default, the YAML file, DESERIALIZE_BENCH_*
// environment variables, then command-line flags (applied by the caller).
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yourusername/deserialize-bench/internal/backend"
	"github.com/yourusername/deserialize-bench/internal/location"
	"github.com/yourusername/deserialize-bench/internal/provider"
	"github.com/yourusername/deserialize-bench/internal/safety"
	"github.com/yourusername/deserialize-bench/internal/scanner"
	"github.com/yourusername/deserialize-bench/internal/telemetry"
)

// Validation limits.
const (
	MaxWorkers    = 1000
	MaxBufferSize = 100000
	MaxChunkSize  = 64 * 1024 * 1024
)

// Defaults.
const (
	DefaultPattern     = "**/*.ipynb"
	DefaultWorkers     = 1
	DefaultFileTimeout = 30 * time.Second
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "DESERIALIZE_BENCH_"

// Config holds everything needed to run a benchmark.
type Config struct {
	Root            string               `yaml:"root"`
	Pattern         string               `yaml:"pattern"`
	Provider        string               `yaml:"provider"`
	FastPathSchemes []string             `yaml:"fast_path_schemes"`
	SchemeRules     []scanner.SchemeRule `yaml:"scheme_rules"`
	Workers         int                  `yaml:"workers"`
	BufferSize      int                  `yaml:"buffer_size"`
	FileTimeout     time.Duration        `yaml:"file_timeout"`
	ChunkSize       int                  `yaml:"chunk_size"`
	ReadMethod      string               `yaml:"read_method"`
	LogFile         string               `yaml:"log_file"`
	Verbose         bool                 `yaml:"verbose"`
	Monitor         bool                 `yaml:"monitor"`
	MetricsTextfile string               `yaml:"metrics_textfile"`
	Trace           string               `yaml:"trace"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Pattern:         DefaultPattern,
		Provider:        provider.KeyJupyter,
		FastPathSchemes: []string{location.SchemeInteractive},
		Workers:         DefaultWorkers,
		FileTimeout:     DefaultFileTimeout,
		ChunkSize:       backend.DefaultChunkSize,
		ReadMethod:      backend.MethodChunked.String(),
		Trace:           telemetry.ExporterNone,
	}
}

// Load returns Default overlaid with the YAML file at path. An empty path
// skips the file. Unknown keys are rejected so typos do not pass silently.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overlays DESERIALIZE_BENCH_* variables read through lookup,
// normally os.LookupEnv. Lists are comma-separated.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	integer := func(name string, dst *int) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s%s value %q: %w", EnvPrefix, name, v, err)
		}
		*dst = n
		return nil
	}
	boolean := func(name string, dst *bool) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return nil
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s%s value %q: %w", EnvPrefix, name, v, err)
		}
		*dst = b
		return nil
	}

	str("ROOT", &c.Root)
	str("PATTERN", &c.Pattern)
	str("PROVIDER", &c.Provider)
	str("READ_METHOD", &c.ReadMethod)
	str("LOG_FILE", &c.LogFile)
	str("METRICS_TEXTFILE", &c.MetricsTextfile)
	str("TRACE", &c.Trace)

	if v, ok := lookup(EnvPrefix + "FAST_PATH_SCHEMES"); ok {
		c.FastPathSchemes = splitList(v)
	}

	if v, ok := lookup(EnvPrefix + "FILE_TIMEOUT"); ok {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %sFILE_TIMEOUT value %q: %w", EnvPrefix, v, err)
		}
		c.FileTimeout = d
	}

	for name, dst := range map[string]*int{
		"WORKERS":     &c.Workers,
		"BUFFER_SIZE": &c.BufferSize,
		"CHUNK_SIZE":  &c.ChunkSize,
	} {
		if err := integer(name, dst); err != nil {
			return err
		}
	}
	for name, dst := range map[string]*bool{
		"VERBOSE": &c.Verbose,
		"MONITOR": &c.Monitor,
	} {
		if err := boolean(name, dst); err != nil {
			return err
		}
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks every parameter and returns the first problem found.
// Flag names in messages match the command-line flags.
func (c *Config) Validate() error {
	if c.Root == "" {
		return fmt.Errorf("no workspace root: pass a directory or set --root")
	}

	if ok, reason := safety.CheckPattern(c.Pattern); !ok {
		return fmt.Errorf("invalid --pattern value: %s", reason)
	}

	if strings.TrimSpace(c.Provider) == "" {
		return fmt.Errorf("invalid --provider value: must not be empty")
	}

	if c.Workers < 1 {
		return fmt.Errorf("invalid --workers value: must be >= 1 (got %d)", c.Workers)
	}
	if c.Workers > MaxWorkers {
		return fmt.Errorf("invalid --workers value: must be <= %d (got %d)", MaxWorkers, c.Workers)
	}

	if c.BufferSize < 0 {
		return fmt.Errorf("invalid --buffer-size value: must be >= 0 (got %d)", c.BufferSize)
	}
	if c.BufferSize > MaxBufferSize {
		return fmt.Errorf("invalid --buffer-size value: must be <= %d (got %d)", MaxBufferSize, c.BufferSize)
	}

	if c.ChunkSize < 1 || c.ChunkSize > MaxChunkSize {
		return fmt.Errorf("invalid --chunk-size value: must be between 1 and %d (got %d)", MaxChunkSize, c.ChunkSize)
	}

	if c.FileTimeout < 0 {
		return fmt.Errorf("invalid --file-timeout value: must be >= 0 (got %s)", c.FileTimeout)
	}

	if _, err := backend.ParseReadMethod(c.ReadMethod); err != nil {
		return fmt.Errorf("invalid --read-method value: %w", err)
	}

	switch c.Trace {
	case "", telemetry.ExporterNone, telemetry.ExporterStdout:
	default:
		return fmt.Errorf("invalid --trace value: must be one of: %s, %s (got %s)",
			telemetry.ExporterNone, telemetry.ExporterStdout, c.Trace)
	}

	for i, rule := range c.SchemeRules {
		if strings.TrimSpace(rule.Scheme) == "" {
			return fmt.Errorf("invalid scheme_rules[%d]: scheme must not be empty", i)
		}
		if ok, reason := safety.CheckPattern(rule.Pattern); !ok {
			return fmt.Errorf("invalid scheme_rules[%d]: %s", i, reason)
		}
	}

	return nil
}

// Method returns the parsed read method. Call after Validate.
func (c *Config) Method() backend.ReadMethod {
	m, _ := backend.ParseReadMethod(c.ReadMethod)
	return m
}
