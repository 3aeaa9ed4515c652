package indexer

import (
	"context"

	"github.com/aevon-lab/stats-indexer/internal/core/stats"
	"github.com/aevon-lab/stats-indexer/internal/solr"
)

// SolrSource adapts a search cluster client to FacetSource.
type SolrSource struct {
	Client *solr.Client
}

func (s SolrSource) Pages(ctx context.Context, dim stats.Dimension, shards stats.ShardSet, pageSize int) (PageIterator, error) {
	pager, err := s.Client.Pages(ctx, dim, shards, pageSize)
	if err != nil {
		return nil, err
	}
	return pager, nil
}
