package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Sternrassler/ipintel-client/pkg/batch"
	"github.com/Sternrassler/ipintel-client/pkg/client"
	"github.com/Sternrassler/ipintel-client/pkg/report"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// errCanceled is returned when a lookup batch was interrupted.
var errCanceled = errors.New("lookup canceled")

func newLookupCmd(opts *globalOptions) *cobra.Command {
	var (
		file        string
		csvPath     string
		concurrency int
		quiet       bool
		details     []string
	)

	cmd := &cobra.Command{
		Use:   "lookup [IP...]",
		Short: "Look up IP reports concurrently and print them as a table",
		Example: `  ipintel lookup 8.8.8.8 1.1.1.1
  ipintel lookup --file ips.txt --csv results.csv
  ipintel lookup 8.8.8.8 --detail 8.8.8.8`,
		RunE: func(cmd *cobra.Command, args []string) error {
			targets := append([]string(nil), args...)
			if file != "" {
				fromFile, err := readTargetsFile(file, cmd.InOrStdin())
				if err != nil {
					return err
				}
				targets = append(targets, fromFile...)
			}
			targets = cleanTargets(targets)

			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("concurrency") {
				cfg.Batch.MaxConcurrency = concurrency
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			eng, err := newEngine(ctx, cfg, opts.apiKey)
			if err != nil {
				return err
			}
			defer eng.Close()

			collector := report.NewCollector()
			sinks := batch.MultiSink{collector}
			if !quiet {
				sinks = append(sinks, &progressPrinter{w: cmd.ErrOrStderr()})
			}

			h, err := eng.coordinator.Start(ctx, targets, sinks)
			if err != nil {
				return err
			}
			summary := h.Wait()

			out := cmd.OutOrStdout()
			rows := collector.SortedRows()
			if len(rows) > 0 {
				if err := report.WriteTable(out, rows); err != nil {
					return err
				}
			}
			for _, f := range collector.Failures() {
				fmt.Fprintf(cmd.ErrOrStderr(), "error: %s: %s\n", f.IP, f.Message)
			}
			for _, ip := range cleanTargets(details) {
				row, ok := report.FindRow(rows, ip)
				if !ok {
					fmt.Fprintf(cmd.ErrOrStderr(), "detail: no report for %s\n", ip)
					continue
				}
				fmt.Fprintln(out)
				if err := report.WriteDetail(out, row); err != nil {
					return err
				}
			}

			fmt.Fprintf(out, "\n%s of %s lookups succeeded, %s failed in %s\n",
				humanize.Comma(int64(summary.Succeeded)),
				humanize.Comma(int64(summary.Total)),
				humanize.Comma(int64(summary.Failed)),
				summary.Duration.Round(time.Millisecond))

			if csvPath != "" {
				if err := report.ExportCSV(csvPath, rows); err != nil {
					return fmt.Errorf("export csv: %w", err)
				}
				if info, err := os.Stat(csvPath); err == nil {
					fmt.Fprintf(out, "Wrote %d rows to %s (%s)\n", len(rows), csvPath, humanize.Bytes(uint64(info.Size())))
				}
			}

			if summary.Canceled {
				return errCanceled
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Read IPs from a file, one per line (- for stdin)")
	cmd.Flags().StringVar(&csvPath, "csv", "", "Export successful results to a CSV file")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 0, "Maximum concurrent lookups (default: one per CPU)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not print per-IP progress")
	cmd.Flags().StringSliceVar(&details, "detail", nil, "Print the full report for these IPs as indented JSON")

	return cmd
}

// readTargetsFile reads newline-separated targets from path, or from stdin
// when path is "-".
func readTargetsFile(path string, stdin io.Reader) ([]string, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open target file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var targets []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		targets = append(targets, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read target file: %w", err)
	}
	return targets, nil
}

// cleanTargets trims whitespace and drops blank entries.
func cleanTargets(in []string) []string {
	out := make([]string, 0, len(in))
	for _, t := range in {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// progressPrinter reports each outcome with its position in the batch.
type progressPrinter struct {
	w    io.Writer
	last string
}

func (p *progressPrinter) OnProgress(completed, total int) {
	fmt.Fprintf(p.w, "[%d/%d] %s\n", completed, total, p.last)
}

func (p *progressPrinter) OnSuccess(ip string, _ client.Document) {
	p.last = "ok    " + ip
}

func (p *progressPrinter) OnFailure(ip, _ string) {
	p.last = "fail  " + ip
}

func (p *progressPrinter) OnComplete() {}
