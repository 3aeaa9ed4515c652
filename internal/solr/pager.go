package solr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aevon-lab/stats-indexer/internal/core/stats"
)

// FacetPager walks the facet pages of one dimension in ascending offset order.
// It is finite and not restartable; use it like sql.Rows:
//
//	for pager.Next(ctx) {
//		page := pager.Page()
//	}
//	if err := pager.Err(); err != nil { ... }
//
// Any fetch error stops iteration. Pages are never retried.
type FacetPager struct {
	client   *Client
	dim      stats.Dimension
	shards   stats.ShardSet
	pageSize int

	totalDistinct int64
	totalPages    int64
	next          int64

	page stats.Page
	err  error
	done bool
}

// Pages sizes the run with a distinct-count query and returns a pager over
// every page of dim. It returns ErrNothingToIndex when the dimension is empty.
func (c *Client) Pages(ctx context.Context, dim stats.Dimension, shards stats.ShardSet, pageSize int) (*FacetPager, error) {
	if pageSize <= 0 {
		pageSize = stats.DefaultPageSize
	}

	total, err := c.DistinctCount(ctx, dim, shards)
	if err != nil {
		return nil, err
	}

	p := &FacetPager{
		client:        c,
		dim:           dim,
		shards:        shards,
		pageSize:      pageSize,
		totalDistinct: total,
		totalPages:    stats.PageCount(total, pageSize),
	}

	slog.Info("[FacetPager] Sized facet run",
		"dimension", dim.Name,
		"distinct", total,
		"pages", p.totalPages,
		"page_size", pageSize,
		"shards", shards.Len())

	return p, nil
}

// TotalDistinct is the distinct count reported before paging started.
func (p *FacetPager) TotalDistinct() int64 { return p.totalDistinct }

// TotalPages is the number of pages this pager will fetch.
func (p *FacetPager) TotalPages() int64 { return p.totalPages }

// Next fetches the next page. It returns false when all pages have been read
// or a fetch failed; check Err to tell them apart.
func (p *FacetPager) Next(ctx context.Context) bool {
	if p.done {
		return false
	}
	if p.next >= p.totalPages {
		p.done = true
		p.page = stats.Page{}
		return false
	}

	offset := p.next * int64(p.pageSize)
	slog.Info("[FacetPager] Indexing page",
		"dimension", p.dim.Name,
		"page", fmt.Sprintf("%d of %d", p.next+1, p.totalPages),
		"offset", offset)

	counts, err := p.client.FacetPage(ctx, p.dim, p.shards, offset, p.pageSize)
	if err != nil {
		p.err = fmt.Errorf("page %d of %d: %w", p.next+1, p.totalPages, err)
		p.done = true
		p.page = stats.Page{}
		return false
	}

	p.page = stats.Page{
		Number: p.next,
		Total:  p.totalPages,
		Offset: offset,
		Counts: counts,
	}
	p.next++
	return true
}

// Page returns the page fetched by the last successful Next.
func (p *FacetPager) Page() stats.Page { return p.page }

// Err returns the error that stopped iteration, if any.
func (p *FacetPager) Err() error { return p.err }

// IsNothingToIndex reports whether err marks an empty dimension.
func IsNothingToIndex(err error) bool {
	return errors.Is(err, ErrNothingToIndex)
}
