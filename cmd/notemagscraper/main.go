package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/cfbeg/NoteMagazineScraper/internal/config"
	"github.com/cfbeg/NoteMagazineScraper/internal/core/scrape"
	"github.com/cfbeg/NoteMagazineScraper/internal/infra/logx"
	"github.com/cfbeg/NoteMagazineScraper/internal/note"
	"github.com/cfbeg/NoteMagazineScraper/internal/ui"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := &config.Config{}
	cmd := &cobra.Command{
		Use:   "notemagscraper <magazine-key>",
		Short: "Download all images embedded in a note.com magazine",
		Long: `notemagscraper walks a note.com magazine's listing, resolves each
note's embedded images and downloads them below the output directory,
either as one folder of numbered images per note or as one zip archive
per note. Interrupted runs can simply be re-run; finished files and
archives are skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg.MagazineKey = args[0]
			return run(cfg)
		},
	}
	f := cmd.Flags()
	f.BoolVar(&cfg.Zip, "zip", false, "write one zip archive per note instead of a folder")
	f.BoolVar(&cfg.VolumeOnly, "volume-only", false, "name items by their volume/episode number only")
	f.IntVar(&cfg.PadWidth, "pad", 2, "minimum digits when zero-padding volume numbers")
	f.StringVar(&cfg.OutDir, "out", "downloads", "base output directory")
	f.StringVar(&cfg.Filter, "filter", "", "only download items whose title fuzzy-matches this query")
	f.BoolVar(&cfg.NoUI, "no-ui", false, "plain log output instead of the progress view")
	f.BoolVar(&cfg.Verbose, "verbose", false, "debug logging")
	return cmd
}

func run(cfg *config.Config) error {
	config.LoadEnv()
	if cfg.Verbose {
		logx.SetMinLevel(logx.LevelDebug)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	client := note.New()
	fs := afero.NewOsFs()
	fetcher := scrape.NewFetcher(client, fs)
	naming := scrape.SanitizeOptions{VolumeOnly: cfg.VolumeOnly, PadWidth: cfg.PadWidth}

	var strategy scrape.Strategy
	if cfg.Zip {
		strategy = scrape.NewArchiveStrategy(fs, fetcher, cfg.BaseDir(), naming)
	} else {
		strategy = scrape.NewDirectoryStrategy(fs, fetcher, cfg.BaseDir(), naming)
	}

	orch := scrape.NewOrchestrator(
		scrape.NewPaginator(client),
		scrape.NewResolver(client),
		strategy,
		scrape.Options{Filter: cfg.Filter},
	)

	ctx := context.Background()
	var summary scrape.Summary
	if cfg.NoUI {
		summary = orch.Run(ctx, cfg.MagazineKey, nil)
	} else {
		var err error
		summary, err = ui.Run(func(report scrape.ProgressFunc) scrape.Summary {
			return orch.Run(ctx, cfg.MagazineKey, report)
		})
		if err != nil {
			// The pipeline still ran to completion; only the view was lost.
			logx.Warnf("progress view unavailable: %v", err)
		}
	}

	var metrics note.MetricsSnapshot
	if m := client.Metrics(); m != nil {
		metrics = m.Snapshot()
	}
	fmt.Println(ui.RenderSummary(summary, metrics))

	// Individual page, item and asset failures are logged, not escalated.
	return nil
}
