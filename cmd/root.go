// Package cmd defines the catalog-crawler command line.
//
// The command resolves a start URL (an item URL or a site root), estimates
// the upper end of the item id space, then walks ids one by one, saving the
// table as XLSX plus a CSV mirror every few new items and once more at the
// end. Press Enter during a run to force a checkpoint; SIGINT or SIGTERM stop
// the run after a final save.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/app"
	"github.com/JakeFAU/catalog-crawler/internal/catalog"
	"github.com/JakeFAU/catalog-crawler/internal/config"
	"github.com/JakeFAU/catalog-crawler/internal/crawl"
	"github.com/JakeFAU/catalog-crawler/internal/logging"
	"github.com/JakeFAU/catalog-crawler/internal/metrics"
	"github.com/JakeFAU/catalog-crawler/internal/prompt"
)

// Runner is the application surface the command drives. Tests inject a fake.
type Runner interface {
	ResolveTarget(ctx context.Context, raw string) (catalog.Target, error)
	Crawl(ctx context.Context, target catalog.Target, watcher app.EnterWatcher) (crawl.Summary, error)
	Close()
}

// newApp is the application factory. It's a variable so tests can replace it.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (Runner, error) {
	a, err := app.NewApp(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// newLogger is replaced in tests to keep output quiet.
var newLogger = logging.New

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "catalog-crawler [url]",
		Short: "Crawl a numbered product catalog into a spreadsheet.",
		Long: `catalog-crawler walks the item pages of a catalog whose URLs end in a
numeric id, extracting each product into product_total.xlsx and a CSV mirror.
Give it an item URL (https://example.com/product/info/1) or a site root; when
no URL is given it asks for one. Existing output is loaded first so a rerun
resumes without fetching known items again.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCrawl(cmd, cfgFile, args)
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json, or toml)")
	return cmd
}

func runCrawl(cmd *cobra.Command, cfgFile string, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := newLogger(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	metrics.Init()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner, err := newApp(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application services: %w", err)
	}
	defer runner.Close()

	out := cmd.OutOrStdout()
	console := prompt.NewConsole(cmd.InOrStdin(), out)

	var raw string
	if len(args) == 1 {
		raw = args[0]
	} else {
		raw, err = console.AskStartURL(ctx)
		if err != nil {
			return fmt.Errorf("read start url: %w", err)
		}
	}

	target, err := runner.ResolveTarget(ctx, raw)
	if err != nil {
		return err
	}
	logger.Info("starting crawl", zap.Int("start_id", target.StartID), zap.String("template", target.Template))
	fmt.Fprintln(out, "Crawling. Press Enter to save a checkpoint, Ctrl+C to stop.")

	summary, err := runner.Crawl(ctx, target, console)
	if err != nil {
		return err
	}
	printSummary(out, summary)
	return nil
}

func printSummary(w io.Writer, s crawl.Summary) {
	fmt.Fprintf(w, "Stopped (%s) at id %d; last item %d.\n", s.StopReason, s.LastID, s.LastSuccessID)
	fmt.Fprintf(w, "Checked %d ids, fetched %d pages, found %d new items.\n", s.Checked, s.Fetched, s.Found)
	switch {
	case s.SaveError != "":
		fmt.Fprintf(w, "Final save failed: %s\n", s.SaveError)
	case s.Locked:
		fmt.Fprintf(w, "Output file was locked; %d records saved to %s.\n", s.Records, s.Location)
	default:
		fmt.Fprintf(w, "%d records saved to %s.\n", s.Records, s.Location)
	}
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintln(os.Stderr, "catalog-crawler:", err)
		os.Exit(1)
	}
}
