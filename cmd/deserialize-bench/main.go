// Package main provides the command-line interface for deserialize-bench.
// The tool walks a workspace, deserializes every file matching a glob with
// one format provider, and reports how long that took and how much it read.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

// Process exit codes.
const (
	exitOK     = 0 // every file deserialized, or nothing matched
	exitFailed = 1 // per-file failures, or the run was interrupted
	exitFatal  = 2 // bad configuration or unusable workspace root
)

func main() {
	// Set Go memory limit to 25% of system RAM for better throughput
	initializeMemoryLimit()

	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the command line and returns the process exit code.
func execute(args []string, stdout, stderr io.Writer) int {
	exitCode := exitOK

	root := newRootCommand(stdout, stderr, &exitCode)
	if args == nil {
		// cobra falls back to os.Args for a nil slice
		args = []string{}
	}
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		fmt.Fprintf(stderr, "Run '%s --help' for usage.\n", root.Name())
		return exitFatal
	}
	return exitCode
}

// newRootCommand builds the command tree. The root command itself runs a
// benchmark; subcommands list providers and compare read methods.
func newRootCommand(stdout, stderr io.Writer, exitCode *int) *cobra.Command {
	flags := newRunFlags()

	root := &cobra.Command{
		Use:   "deserialize-bench [workspace-root]",
		Short: "Measure how fast a format provider deserializes a corpus",
		Long: `deserialize-bench enumerates every file under a workspace root that matches
a glob pattern, reads and deserializes each one with the selected format
provider, and prints a single summary line:

  deserialize END | <ms>ms | <MB>MB | Number of Files: <n> | Number of Cells: <n> | Failed: <n>

Files that cannot be read or parsed are logged and skipped; they never stop
the run.`,
		Example: `  deserialize-bench ./notebooks
  deserialize-bench ./docs --pattern '**/*.md' --provider markdown
  deserialize-bench --config bench.yaml --workers 8 --monitor
  deserialize-bench ./notebooks --metrics-textfile /var/lib/node_exporter/bench.prom`,
		Version:       version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load(cmd, args)
			if err != nil {
				return err
			}
			*exitCode = runBenchmark(cfg, stdout, stderr)
			return nil
		},
	}

	// Persistent so that run and read-bench share them.
	flags.bind(root.PersistentFlags())

	run := &cobra.Command{
		Use:   "run [workspace-root]",
		Short: "Run the deserialization benchmark (the default command)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  root.RunE,
	}

	root.AddCommand(run, newProvidersCommand(stdout), newReadBenchCommand(flags, stdout, stderr, exitCode))
	return root
}
