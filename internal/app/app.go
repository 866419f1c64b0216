// Package app implements the scholarlink CLI commands.
package app

import (
	"fmt"
	"os"
	"strings"
)

// Run executes the CLI command and returns a process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "health":
		return runHealth(args[1:])
	case "sources":
		return runSources(args[1:])
	case "validate":
		return runValidate(args[1:])
	case "run", "ingest":
		return runIngest(args[1:])
	case "serve":
		return runServe(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "scholarlink CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  scholarlink <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  health    Verify database connectivity")
	fmt.Fprintln(os.Stderr, "  sources   Show the configured ingestion sources")
	fmt.Fprintln(os.Stderr, "  validate  Validate scholarship feed JSON files")
	fmt.Fprintln(os.Stderr, "  run       Execute one ingestion run and print the summary")
	fmt.Fprintln(os.Stderr, "  ingest    Alias for run")
	fmt.Fprintln(os.Stderr, "  serve     Start the API server with the daily scheduler")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"scholarlink <command> -h\" for command-specific flags.")
}
