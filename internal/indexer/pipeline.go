package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aevon-lab/stats-indexer/internal/core/stats"
	"github.com/aevon-lab/stats-indexer/internal/core/storage"
	"github.com/aevon-lab/stats-indexer/internal/observability"
	"github.com/aevon-lab/stats-indexer/internal/solr"
)

// SchemaEnsurer creates the items table if it is absent.
type SchemaEnsurer interface {
	EnsureSchema(ctx context.Context) error
}

// ShardResolver discovers the distributed query targets for a run.
type ShardResolver interface {
	ResolveShards(ctx context.Context) (stats.ShardSet, error)
}

// PageIterator yields the facet pages of one dimension in ascending offset order.
type PageIterator interface {
	Next(ctx context.Context) bool
	Page() stats.Page
	Err() error
	TotalDistinct() int64
	TotalPages() int64
}

// FacetSource sizes a dimension and returns an iterator over its pages.
// It returns an error wrapping solr.ErrNothingToIndex for an empty dimension.
type FacetSource interface {
	Pages(ctx context.Context, dim stats.Dimension, shards stats.ShardSet, pageSize int) (PageIterator, error)
}

// Options tunes a Pipeline.
type Options struct {
	PageSize   int
	Dimensions []stats.Dimension
}

func (o Options) normalized() Options {
	n := o
	if n.PageSize <= 0 {
		n.PageSize = stats.DefaultPageSize
	}
	if len(n.Dimensions) == 0 {
		n.Dimensions = stats.Dimensions()
	}
	return n
}

// Pipeline runs: ensure table, resolve shards once, then page and merge every
// dimension in order. It is synchronous; one run must not overlap another.
type Pipeline struct {
	schema   SchemaEnsurer
	resolver ShardResolver
	source   FacetSource
	store    storage.CounterStore
	metrics  *observability.Metrics
	opts     Options
	now      func() time.Time
}

// New wires a pipeline. A nil metrics gets a private registry.
func New(
	schema SchemaEnsurer,
	resolver ShardResolver,
	source FacetSource,
	store storage.CounterStore,
	metrics *observability.Metrics,
	opts Options,
) *Pipeline {
	if metrics == nil {
		metrics = observability.NewMetrics(nil)
	}
	return &Pipeline{
		schema:   schema,
		resolver: resolver,
		source:   source,
		store:    store,
		metrics:  metrics,
		opts:     opts.normalized(),
		now:      time.Now,
	}
}

// Run executes one full pipeline run. An empty dimension is a normal outcome;
// any other failure stops the run and is returned. The report is always
// non-nil and records how far the run got.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		State:     StateInit,
		StartedAt: p.now().UTC(),
	}

	err := p.run(ctx, report)

	report.FinishedAt = p.now().UTC()
	p.metrics.RunDuration.Observe(report.Duration().Seconds())

	if err != nil {
		report.Error = err.Error()
		p.metrics.RunsTotal.WithLabelValues(observability.OutcomeFailure).Inc()
		slog.Error("[Pipeline] Run failed",
			"state", report.State,
			"duration", report.Duration(),
			"error", err)
		return report, err
	}

	outcome := observability.OutcomeSuccess
	if report.allEmpty() {
		outcome = observability.OutcomeEmpty
	}
	p.metrics.RunsTotal.WithLabelValues(outcome).Inc()
	p.metrics.LastSuccess.Set(float64(report.FinishedAt.Unix()))

	slog.Info("[Pipeline] Run complete",
		"duration", report.Duration(),
		"dimensions", len(report.Dimensions))
	return report, nil
}

func (r *Report) allEmpty() bool {
	for _, d := range r.Dimensions {
		if !d.Empty {
			return false
		}
	}
	return len(r.Dimensions) > 0
}

func (p *Pipeline) run(ctx context.Context, report *Report) error {
	if err := p.schema.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure items table: %w", err)
	}
	p.transition(report, StateTableEnsured)

	shards, err := p.resolver.ResolveShards(ctx)
	if err != nil {
		return fmt.Errorf("resolve shards: %w", err)
	}
	report.Shards = shards.Targets()
	p.transition(report, StateShardsResolved)

	for _, dim := range p.opts.Dimensions {
		dr, err := p.IndexDimension(ctx, dim, shards)
		report.Dimensions = append(report.Dimensions, dr)
		if err != nil {
			return fmt.Errorf("index %s: %w", dim, err)
		}
		next, err := stateAfter(dim)
		if err != nil {
			return err
		}
		p.transition(report, next)
	}

	p.transition(report, StateDone)
	return nil
}

func (p *Pipeline) transition(report *Report, next State) {
	slog.Info("[Pipeline] State transition", "from", report.State, "to", next)
	report.State = next
}

// IndexDimension pages through dim on shards and merges every page into the
// store, one commit per page. Pages committed before a failure stay committed.
func (p *Pipeline) IndexDimension(ctx context.Context, dim stats.Dimension, shards stats.ShardSet) (report DimensionReport, err error) {
	report = DimensionReport{Dimension: dim.Name}

	if err := dim.Validate(); err != nil {
		return report, err
	}

	pages, err := p.source.Pages(ctx, dim, shards, p.opts.PageSize)
	if errors.Is(err, solr.ErrNothingToIndex) {
		slog.Info(fmt.Sprintf("[Pipeline] No item %s to index", dim.Name), "dimension", dim.Name)
		report.Empty = true
		p.metrics.DimensionsTotal.WithLabelValues(dim.Name, observability.OutcomeEmpty).Inc()
		return report, nil
	}
	if err != nil {
		p.metrics.DimensionsTotal.WithLabelValues(dim.Name, observability.OutcomeFailure).Inc()
		return report, fmt.Errorf("size facets: %w", err)
	}

	report.TotalDistinct = pages.TotalDistinct()
	report.TotalPages = pages.TotalPages()
	p.metrics.DistinctEntities.WithLabelValues(dim.Name).Set(float64(report.TotalDistinct))

	session, err := p.store.OpenSession(ctx)
	if err != nil {
		p.metrics.DimensionsTotal.WithLabelValues(dim.Name, observability.OutcomeFailure).Inc()
		return report, fmt.Errorf("open counter session: %w", err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			slog.Warn("[Pipeline] Failed to release counter session", "dimension", dim.Name, "error", cerr)
			if err == nil {
				err = fmt.Errorf("close counter session: %w", cerr)
			}
		}
		outcome := observability.OutcomeSuccess
		if err != nil {
			outcome = observability.OutcomeFailure
		}
		p.metrics.DimensionsTotal.WithLabelValues(dim.Name, outcome).Inc()
	}()

	ids := newIDMerger()
	for pages.Next(ctx) {
		page := pages.Page()

		counts, skipped := ids.merge(page.Counts)
		if len(skipped) > 0 {
			slog.Warn("[Pipeline] Skipping facet values that are not item ids",
				"dimension", dim.Name,
				"page", page.Number+1,
				"skipped", len(skipped),
				"sample", skipped[0])
			report.SkippedIDs += int64(len(skipped))
			p.metrics.SkippedIDs.WithLabelValues(dim.Name).Add(float64(len(skipped)))
		}

		rows, err := session.UpsertPage(ctx, dim, counts)
		if err != nil {
			return report, fmt.Errorf("merge page %d of %d: %w", page.Number+1, page.Total, err)
		}

		report.Pages++
		report.Rows += rows
		p.metrics.PagesTotal.WithLabelValues(dim.Name).Inc()
		p.metrics.RowsUpserted.WithLabelValues(dim.Name).Add(float64(rows))
	}
	if err := pages.Err(); err != nil {
		return report, fmt.Errorf("fetch facets: %w", err)
	}

	slog.Info("[Pipeline] Dimension indexed",
		"dimension", dim.Name,
		"distinct", report.TotalDistinct,
		"pages", report.Pages,
		"rows", report.Rows,
		"skipped_ids", report.SkippedIDs)
	return report, nil
}
