package scrape

import (
	"context"

	"github.com/cfbeg/NoteMagazineScraper/internal/infra/logx"
)

// Orchestrator drives the pipeline: discover all refs, resolve all
// records, then materialize item by item. Each phase runs to completion
// before the next starts, and nothing runs concurrently.
type Orchestrator struct {
	paginator *Paginator
	resolver  *Resolver
	strategy  Strategy
	filter    string
}

// Options tune a run beyond its required magazine key.
type Options struct {
	// Filter keeps only items whose resolved title fuzzy-matches it.
	Filter string
}

// Summary reports what a run did.
type Summary struct {
	// Discovered is the number of refs the listing produced.
	Discovered int
	// Items is the number of items that reached materialization.
	Items int
	// Skipped counts items dropped for resolving to zero assets
	// (including resolution failures).
	Skipped int
	// FilteredOut counts items removed by the title filter.
	FilteredOut int
	// TotalAssets is the asset count discovered before materialization.
	TotalAssets int
	// Completed is the number of assets actually materialized.
	Completed int
}

// NewOrchestrator wires the pipeline stages together.
func NewOrchestrator(paginator *Paginator, resolver *Resolver, strategy Strategy, opts Options) *Orchestrator {
	return &Orchestrator{
		paginator: paginator,
		resolver:  resolver,
		strategy:  strategy,
		filter:    opts.Filter,
	}
}

// Run executes the pipeline for one magazine. Individual page, item and
// asset failures are logged and absorbed; Run itself never fails.
func (o *Orchestrator) Run(ctx context.Context, magazineKey string, onProgress ProgressFunc) Summary {
	refs := o.paginator.Walk(ctx, magazineKey)
	logx.Infof("magazine %s: discovered %d notes", magazineKey, len(refs))

	records := make([]ItemRecord, 0, len(refs))
	skipped := 0
	for _, ref := range refs {
		rec, err := o.resolver.Resolve(ctx, ref)
		if err != nil {
			logx.Warnf("note %s: metadata resolution failed: %v", ref.URL, err)
		}
		if len(rec.Assets) == 0 {
			logx.Debugf("note %s (%q): no embedded images, dropped", ref.URL, rec.Title)
			skipped++
			continue
		}
		records = append(records, rec)
	}

	filteredOut := 0
	if o.filter != "" {
		before := len(records)
		records = FilterRecords(records, o.filter)
		filteredOut = before - len(records)
		logx.Infof("filter %q kept %d of %d items", o.filter, len(records), before)
	}

	total := 0
	for _, r := range records {
		total += len(r.Assets)
	}
	prog := NewProgress(total, onProgress)
	logx.Infof("magazine %s: materializing %d items, %d assets", magazineKey, len(records), total)

	for _, rec := range records {
		prog.SetItem(rec.Title)
		if err := o.strategy.Materialize(ctx, rec, prog); err != nil {
			logx.Errorf("item %q: materialization abandoned: %v", rec.Title, err)
		}
	}

	return Summary{
		Discovered:  len(refs),
		Items:       len(records),
		Skipped:     skipped,
		FilteredOut: filteredOut,
		TotalAssets: total,
		Completed:   prog.Done(),
	}
}
