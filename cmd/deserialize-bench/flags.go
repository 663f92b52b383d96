package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/yourusername/deserialize-bench/internal/config"
)

// runFlags holds the raw command-line values. Only flags the user actually
// set override the config file and environment.
type runFlags struct {
	configPath string
	envFile    string
	values     *config.Config
}

func newRunFlags() *runFlags {
	return &runFlags{values: config.Default()}
}

// bind registers every benchmark flag on set.
func (f *runFlags) bind(set *pflag.FlagSet) {
	v := f.values

	set.StringVarP(&f.configPath, "config", "c", "", "YAML config file")
	set.StringVar(&f.envFile, "env-file", ".env", "File of KEY=value environment overrides (ignored if absent)")

	set.StringVar(&v.Root, "root", "", "Workspace root to enumerate (or pass it as the argument)")
	set.StringVarP(&v.Pattern, "pattern", "p", v.Pattern, "Glob selecting files below the root")
	set.StringVar(&v.Provider, "provider", v.Provider, "Format provider key (see the providers command)")
	set.StringSliceVar(&v.FastPathSchemes, "fast-path-scheme", v.FastPathSchemes, "Location schemes read but not parsed")
	set.IntVarP(&v.Workers, "workers", "w", v.Workers, "Files deserialized concurrently (1 = sequential)")
	set.IntVar(&v.BufferSize, "buffer-size", v.BufferSize, "Work queue buffer size (default: auto-detect)")
	set.DurationVar(&v.FileTimeout, "file-timeout", v.FileTimeout, "Limit for reading and parsing one file (0 = none)")
	set.IntVar(&v.ChunkSize, "chunk-size", v.ChunkSize, "Read chunk size in bytes")
	set.StringVar(&v.ReadMethod, "read-method", v.ReadMethod, "Read method: chunked, whole, buffered")
	set.StringVar(&v.LogFile, "log-file", "", "Also append logs to this file")
	set.BoolVarP(&v.Verbose, "verbose", "v", false, "Enable detailed logging")
	set.BoolVar(&v.Monitor, "monitor", false, "Sample CPU, memory and GC during the run and print a bottleneck analysis")
	set.StringVar(&v.MetricsTextfile, "metrics-textfile", "", "Write Prometheus metrics to this file when the run ends")
	set.StringVar(&v.Trace, "trace", v.Trace, "Span exporter: none, stdout")
}

// load builds the effective configuration: defaults, then the config file,
// then the environment (after loading the env file), then explicit flags,
// then the positional workspace root.
func (f *runFlags) load(cmd *cobra.Command, args []string) (*config.Config, error) {
	if f.envFile != "" {
		if err := godotenv.Load(f.envFile); err != nil {
			// The default .env is optional; a file named explicitly is not.
			if !errors.Is(err, fs.ErrNotExist) || cmd.Flags().Changed("env-file") {
				return nil, fmt.Errorf("failed to load env file %s: %w", f.envFile, err)
			}
		}
	}

	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	f.applyChanged(cmd.Flags(), cfg)

	if len(args) == 1 {
		if cmd.Flags().Changed("root") {
			return nil, fmt.Errorf("workspace root given twice: --root %s and argument %s", f.values.Root, args[0])
		}
		cfg.Root = args[0]
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (f *runFlags) applyChanged(set *pflag.FlagSet, cfg *config.Config) {
	v := f.values
	overrides := map[string]func(){
		"root":             func() { cfg.Root = v.Root },
		"pattern":          func() { cfg.Pattern = v.Pattern },
		"provider":         func() { cfg.Provider = v.Provider },
		"fast-path-scheme": func() { cfg.FastPathSchemes = v.FastPathSchemes },
		"workers":          func() { cfg.Workers = v.Workers },
		"buffer-size":      func() { cfg.BufferSize = v.BufferSize },
		"file-timeout":     func() { cfg.FileTimeout = v.FileTimeout },
		"chunk-size":       func() { cfg.ChunkSize = v.ChunkSize },
		"read-method":      func() { cfg.ReadMethod = v.ReadMethod },
		"log-file":         func() { cfg.LogFile = v.LogFile },
		"verbose":          func() { cfg.Verbose = v.Verbose },
		"monitor":          func() { cfg.Monitor = v.Monitor },
		"metrics-textfile": func() { cfg.MetricsTextfile = v.MetricsTextfile },
		"trace":            func() { cfg.Trace = v.Trace },
	}
	for name, apply := range overrides {
		if set.Changed(name) {
			apply()
		}
	}
}
