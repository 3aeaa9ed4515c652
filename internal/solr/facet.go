package solr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/aevon-lab/stats-indexer/internal/core/stats"
)

type selectResponse struct {
	Stats *struct {
		StatsFields map[string]*fieldStats `json:"stats_fields"`
	} `json:"stats"`
	FacetCounts *struct {
		FacetFields map[string]json.RawMessage `json:"facet_fields"`
	} `json:"facet_counts"`
}

type fieldStats struct {
	CountDistinct *int64 `json:"countDistinct"`
}

// baseParams holds the parameters shared by the distinct-count and page queries.
func baseParams(dim stats.Dimension, shards stats.ShardSet) url.Values {
	params := url.Values{}
	params.Set("q", dim.Query)
	params.Set("fq", dim.Filter)
	params.Set("facet", "true")
	params.Set("facet.field", dim.FacetField)
	params.Set("facet.mincount", "1")
	// An empty shards value is a plain local query.
	params.Set("shards", shards.Param())
	params.Set("rows", "0")
	params.Set("wt", "json")
	return params
}

func distinctCountParams(dim stats.Dimension, shards stats.ShardSet) url.Values {
	params := baseParams(dim, shards)
	params.Set("facet.limit", "1")
	params.Set("facet.offset", "0")
	params.Set("stats", "true")
	params.Set("stats.field", dim.FacetField)
	params.Set("stats.calcdistinct", "true")
	return params
}

func facetPageParams(dim stats.Dimension, shards stats.ShardSet, offset int64, limit int) url.Values {
	params := baseParams(dim, shards)
	params.Set("facet.limit", strconv.Itoa(limit))
	params.Set("facet.offset", strconv.FormatInt(offset, 10))
	params.Set("json.nl", "map")
	return params
}

func (c *Client) selectURL() string {
	return c.coreURL(c.core) + "/select"
}

// DistinctCount returns the number of distinct facet values with at least one
// countable event for dim. It returns ErrNothingToIndex when the statistic is
// absent, which is what the cluster reports when no documents match.
func (c *Client) DistinctCount(ctx context.Context, dim stats.Dimension, shards stats.ShardSet) (int64, error) {
	body, err := c.getJSON(ctx, c.selectURL(), distinctCountParams(dim, shards))
	if err != nil {
		return 0, fmt.Errorf("distinct count %s: %w", dim, err)
	}

	var resp selectResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("distinct count %s: %w: %w", dim, ErrUnexpectedResponse, err)
	}

	if resp.Stats == nil || resp.Stats.StatsFields == nil {
		return 0, fmt.Errorf("distinct count %s: %w", dim, ErrNothingToIndex)
	}
	field := resp.Stats.StatsFields[dim.FacetField]
	if field == nil || field.CountDistinct == nil {
		return 0, fmt.Errorf("distinct count %s: %w", dim, ErrNothingToIndex)
	}
	if *field.CountDistinct < 0 {
		return 0, fmt.Errorf("distinct count %s: %w: negative countDistinct %d", dim, ErrUnexpectedResponse, *field.CountDistinct)
	}
	return *field.CountDistinct, nil
}

// FacetPage fetches limit facet values starting at offset. Counts are returned
// in the order the cluster listed them.
func (c *Client) FacetPage(ctx context.Context, dim stats.Dimension, shards stats.ShardSet, offset int64, limit int) ([]stats.FacetCount, error) {
	body, err := c.getJSON(ctx, c.selectURL(), facetPageParams(dim, shards, offset, limit))
	if err != nil {
		return nil, fmt.Errorf("facet page %s offset %d: %w", dim, offset, err)
	}

	var resp selectResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("facet page %s offset %d: %w: %w", dim, offset, ErrUnexpectedResponse, err)
	}
	if resp.FacetCounts == nil || resp.FacetCounts.FacetFields == nil {
		return nil, fmt.Errorf("facet page %s offset %d: %w: facet_counts missing", dim, offset, ErrUnexpectedResponse)
	}
	raw, ok := resp.FacetCounts.FacetFields[dim.FacetField]
	if !ok {
		return nil, fmt.Errorf("facet page %s offset %d: %w: facet field %q missing", dim, offset, ErrUnexpectedResponse, dim.FacetField)
	}

	counts, err := decodeFacetCounts(raw)
	if err != nil {
		return nil, fmt.Errorf("facet page %s offset %d: %w: %w", dim, offset, ErrUnexpectedResponse, err)
	}
	return counts, nil
}

// decodeFacetCounts reads a facet field in map form ({"id": n, ...}), keeping
// the key order. The flat form (["id", n, ...]) is accepted too, since a
// cluster may ignore json.nl for some response writers.
func decodeFacetCounts(raw json.RawMessage) ([]stats.FacetCount, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("read facet field: %w", err)
	}

	switch tok {
	case json.Delim('{'):
		var counts []stats.FacetCount
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, fmt.Errorf("read facet key: %w", err)
			}
			id, ok := keyTok.(string)
			if !ok {
				return nil, fmt.Errorf("facet key %v is not a string", keyTok)
			}
			n, err := decodeCount(dec, id)
			if err != nil {
				return nil, err
			}
			counts = append(counts, stats.FacetCount{ID: id, Count: n})
		}
		return counts, nil

	case json.Delim('['):
		var counts []stats.FacetCount
		for dec.More() {
			var id string
			if err := dec.Decode(&id); err != nil {
				return nil, fmt.Errorf("read flat facet key: %w", err)
			}
			if !dec.More() {
				return nil, fmt.Errorf("flat facet list has no count for %q", id)
			}
			n, err := decodeCount(dec, id)
			if err != nil {
				return nil, err
			}
			counts = append(counts, stats.FacetCount{ID: id, Count: n})
		}
		return counts, nil

	case nil:
		return nil, nil

	default:
		return nil, fmt.Errorf("facet field has unexpected token %v", tok)
	}
}

func decodeCount(dec *json.Decoder, id string) (int64, error) {
	var num json.Number
	if err := dec.Decode(&num); err != nil {
		return 0, fmt.Errorf("read count for %q: %w", id, err)
	}
	n, err := num.Int64()
	if err != nil {
		return 0, fmt.Errorf("count for %q is not an integer: %w", id, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("count for %q is negative: %d", id, n)
	}
	return n, nil
}

// objectKeys returns the member names of a JSON object in document order.
func objectKeys(raw json.RawMessage) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("read object: %w", err)
	}
	if tok != json.Delim('{') {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}

	var keys []string
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("read key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("object key %v is not a string", keyTok)
		}
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, fmt.Errorf("read value of %q: %w", key, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}
