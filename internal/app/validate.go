package app

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/PruthvirajGire18/scholarlink-backend/internal/schema"
)

func runValidate(args []string) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "validate requires at least one feed file path")
		return 2
	}

	failures := 0
	for _, path := range fs.Args() {
		payload, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FAIL %s: %v\n", path, err)
			failures++
			continue
		}

		report, err := schema.ValidateFeed(payload)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FAIL %s: %v\n", path, err)
			failures++
			continue
		}

		fmt.Printf("OK   %s: %d records", path, report.Records)
		if report.MissingDeadline > 0 || report.MissingAmount > 0 {
			fmt.Printf(" (%d missing deadline, %d missing amount)", report.MissingDeadline, report.MissingAmount)
		}
		fmt.Println()
	}

	if failures > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d files failed validation\n", failures, fs.NArg())
		return 1
	}
	return 0
}
