package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"devsonar/src/config"
	"devsonar/src/contracts"
	"devsonar/src/logger"
	"devsonar/src/reporter"
	"devsonar/src/stderr"
)

var (
	scanSource string
	scanReport bool
)

// scanCmd classifies a captured log offline
var scanCmd = &cobra.Command{
	Use:   "scan <file|->",
	Short: "Classify a captured stderr log",
	Long: `Read a captured stderr log (or standard input when the argument is "-"), cut it
into error reports and print them as JSON, one per line.

With --report the reports are also posted to the relay at the configured port.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		in, closeIn, err := openInput(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open %s: %v\n", args[0], err)
			os.Exit(1)
		}
		defer closeIn()

		reports, err := scanReports(in, appConfig, scanSource, log)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read %s: %v\n", args[0], err)
			os.Exit(1)
		}

		enc := json.NewEncoder(os.Stdout)
		for _, r := range reports {
			if err := enc.Encode(r); err != nil {
				fmt.Fprintf(os.Stderr, "Failed to write report: %v\n", err)
				os.Exit(1)
			}
		}

		if scanReport && len(reports) > 0 {
			rep := reporter.New(reporter.WithRelayURL(appConfig.RelayURL()), reporter.WithLogger(log))
			if err := rep.Send(context.Background(), reports...); err != nil {
				fmt.Fprintf(os.Stderr, "Failed to send reports to %s: %v\n", rep.RelayURL(), err)
				os.Exit(1)
			}
			fmt.Fprintf(os.Stderr, "Sent %d reports to %s\n", len(reports), rep.RelayURL())
		}
	},
}

func init() {
	scanCmd.Flags().StringVar(&scanSource, "source", "scan", "source tag for reports")
	scanCmd.Flags().BoolVar(&scanReport, "report", false, "post the reports to the relay")
}

func openInput(name string) (io.Reader, func(), error) {
	if name == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}

// scanReports runs the classifier over r and returns every report it emitted.
func scanReports(r io.Reader, cfg *config.Config, source string, log logger.Logger) ([]contracts.ErrorReport, error) {
	var reports []contracts.ErrorReport
	c := stderr.New(func(report contracts.ErrorReport) {
		reports = append(reports, report)
	}, stderr.Options{
		Source:        source,
		IdleThreshold: cfg.IdleThreshold,
		MaxTraceLines: cfg.MaxTraceLines,
		Logger:        log,
	})

	if _, err := io.Copy(c, r); err != nil {
		return reports, err
	}
	c.Flush()
	return reports, nil
}
