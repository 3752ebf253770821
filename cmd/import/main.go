package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"catalog/internal/app"
	"catalog/internal/config"
	"catalog/internal/events"
	"catalog/internal/importer"
	"catalog/internal/logger"
	"catalog/internal/report"
)

// listFlag collects a repeatable flag that also accepts comma lists.
type listFlag []string

func (l *listFlag) String() string {
	return strings.Join(*l, ",")
}

func (l *listFlag) Set(value string) error {
	*l = append(*l, config.SplitList(value)...)
	return nil
}

type cliOptions struct {
	perPage        int
	since          string
	productIDs     listFlag
	statuses       listFlag
	limit          int
	skipCategories bool
	dryRun         bool
	reportPath     string
	quiet          bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, out io.Writer) int {
	var cli cliOptions
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	fs.IntVar(&cli.perPage, "per-page", 0, "products per API page (1-100, default from WOOCOMMERCE_PER_PAGE)")
	fs.StringVar(&cli.since, "since", "", "only products modified after this time (RFC3339 or YYYY-MM-DD)")
	fs.Var(&cli.productIDs, "product-id", "import only this remote product id (repeatable, comma lists accepted)")
	fs.Var(&cli.statuses, "status", "remote statuses to import (repeatable, comma lists accepted)")
	fs.IntVar(&cli.limit, "limit", 0, "stop after this many products")
	fs.BoolVar(&cli.skipCategories, "skip-categories", false, "do not sync the category tree first")
	fs.BoolVar(&cli.dryRun, "dry-run", false, "run everything and roll back all catalog writes")
	fs.StringVar(&cli.reportPath, "report", "", "write an xlsx run report to this path")
	fs.BoolVar(&cli.quiet, "quiet", false, "do not print per-product progress")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	opts, err := cli.importOptions()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid options: %v\n", err)
		return 1
	}

	cfg, err := config.Load()
	if err != nil {
		log.Printf("Failed to load configuration: %v", err)
		return 1
	}
	logger := logger.NewWithFormat(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var publishers []events.Publisher
	if !cli.quiet {
		publishers = append(publishers, progressPrinter(out))
	}
	a, err := app.New(ctx, cfg, logger, app.Options{Publishers: publishers})
	if err != nil {
		logger.Error("Failed to initialize importer: %v", err)
		return 1
	}
	defer a.Close()

	summary, err := a.Importer.Run(ctx, opts)
	if errors.Is(err, importer.ErrRunInProgress) {
		logger.Error("Another import is already running")
		return 1
	}
	if summary != nil {
		printSummary(out, summary)
		if cli.reportPath != "" {
			if rerr := report.WriteSummary(cli.reportPath, summary); rerr != nil {
				logger.Error("Failed to write report: %v", rerr)
			} else {
				fmt.Fprintf(out, "Report written to %s\n", cli.reportPath)
			}
		}
	}
	if err != nil {
		logger.Error("Import failed: %v", err)
		return 1
	}
	if summary.Aborted {
		return 1
	}
	return 0
}

func (c cliOptions) importOptions() (importer.Options, error) {
	opts := importer.Options{
		Statuses:       c.statuses,
		PerPage:        c.perPage,
		Limit:          c.limit,
		SkipCategories: c.skipCategories,
		DryRun:         c.dryRun,
		Trigger:        "cli",
	}
	if c.perPage < 0 || c.limit < 0 {
		return opts, errors.New("--per-page and --limit must not be negative")
	}
	for _, raw := range c.productIDs {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return opts, fmt.Errorf("invalid --product-id %q", raw)
		}
		opts.ProductIDs = append(opts.ProductIDs, id)
	}
	if c.since != "" {
		since, err := parseSince(c.since)
		if err != nil {
			return opts, err
		}
		opts.Since = &since
	}
	return opts, nil
}

func parseSince(value string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid --since %q: expected RFC3339 or YYYY-MM-DD", value)
}

// progressPrinter prints one marker per product: + created, ~ updated,
// - skipped. Failures get a line of their own.
func progressPrinter(out io.Writer) events.Publisher {
	return events.Func(func(_ context.Context, e events.Event) error {
		switch e.Type {
		case events.Created:
			fmt.Fprint(out, "+")
		case events.Updated:
			fmt.Fprint(out, "~")
		case events.Skipped:
			fmt.Fprint(out, "-")
		case events.Failed:
			switch {
			case e.RemoteID != 0:
				fmt.Fprintf(out, "\n[failed] #%d: %s\n", e.RemoteID, e.Message)
			case e.Page != 0:
				fmt.Fprintf(out, "\n[failed] page %d: %s\n", e.Page, e.Message)
			default:
				fmt.Fprintf(out, "\n[failed] %s\n", e.Message)
			}
		case events.RunFinished:
			fmt.Fprintln(out)
		}
		return nil
	})
}

func printSummary(out io.Writer, summary *importer.Summary) {
	mode := ""
	if summary.DryRun {
		mode = " (dry run, nothing was saved)"
	}
	fmt.Fprintf(out, "\nImport %s: %d product(s) processed in %s%s\n",
		summary.RunID, summary.Processed, summary.Duration().Round(time.Millisecond), mode)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "entity\tcreated\tupdated\tskipped\tdeleted\t")
	for _, row := range summary.Stats.Rows() {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t\n", row.Entity, row.Created, row.Updated, row.Skipped, row.Deleted)
	}
	w.Flush()

	if summary.Aborted {
		fmt.Fprintln(out, "\nThe run was aborted before all products were processed.")
	}
	if len(summary.Failures) == 0 {
		return
	}
	fmt.Fprintf(out, "\n%d failure(s):\n", len(summary.Failures))
	for _, f := range summary.Failures {
		switch {
		case f.RemoteID != 0:
			fmt.Fprintf(out, "  %s #%d: %s\n", f.Entity, f.RemoteID, f.Message)
		case f.Page != 0:
			fmt.Fprintf(out, "  %s page %d: %s\n", f.Entity, f.Page, f.Message)
		default:
			fmt.Fprintf(out, "  %s: %s\n", f.Entity, f.Message)
		}
	}
}
