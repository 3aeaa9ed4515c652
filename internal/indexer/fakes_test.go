package indexer

import (
	"context"
	"errors"
	"fmt"

	"github.com/aevon-lab/stats-indexer/internal/core/stats"
	"github.com/aevon-lab/stats-indexer/internal/solr"
)

type fakeSchema struct {
	calls int
	err   error
}

func (f *fakeSchema) EnsureSchema(ctx context.Context) error {
	f.calls++
	return f.err
}

type fakeResolver struct {
	shards stats.ShardSet
	err    error
	calls  int
}

func (f *fakeResolver) ResolveShards(ctx context.Context) (stats.ShardSet, error) {
	f.calls++
	return f.shards, f.err
}

// fakeSource serves pre-built pages per dimension name. A dimension without
// an entry has nothing to index.
type fakeSource struct {
	pages      map[string][][]stats.FacetCount
	failPage   map[string]int // dimension -> zero-based page number that fails
	sizeErr    error
	seenShards []stats.ShardSet
	seenDims   []string
}

func (f *fakeSource) Pages(ctx context.Context, dim stats.Dimension, shards stats.ShardSet, pageSize int) (PageIterator, error) {
	f.seenShards = append(f.seenShards, shards)
	f.seenDims = append(f.seenDims, dim.Name)
	if f.sizeErr != nil {
		return nil, f.sizeErr
	}
	pages, ok := f.pages[dim.Name]
	if !ok {
		return nil, fmt.Errorf("distinct count %s: %w", dim, solr.ErrNothingToIndex)
	}
	fail := -1
	if n, ok := f.failPage[dim.Name]; ok {
		fail = n
	}
	var distinct int64
	for _, p := range pages {
		distinct += int64(len(p))
	}
	return &fakeIterator{pages: pages, failAt: fail, distinct: distinct, pageSize: pageSize}, nil
}

type fakeIterator struct {
	pages    [][]stats.FacetCount
	failAt   int
	distinct int64
	pageSize int
	next     int
	cur      stats.Page
	err      error
}

func (it *fakeIterator) Next(ctx context.Context) bool {
	if it.err != nil || it.next >= len(it.pages) {
		return false
	}
	if it.next == it.failAt {
		it.err = errors.New("facet page: status 500: shard unavailable")
		return false
	}
	it.cur = stats.Page{
		Number: int64(it.next),
		Total:  int64(len(it.pages)),
		Offset: int64(it.next * it.pageSize),
		Counts: it.pages[it.next],
	}
	it.next++
	return true
}

func (it *fakeIterator) Page() stats.Page     { return it.cur }
func (it *fakeIterator) Err() error           { return it.err }
func (it *fakeIterator) TotalDistinct() int64 { return it.distinct }
func (it *fakeIterator) TotalPages() int64    { return int64(len(it.pages)) }
