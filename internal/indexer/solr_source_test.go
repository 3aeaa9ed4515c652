package indexer

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aevon-lab/stats-indexer/internal/core/storage"
	"github.com/aevon-lab/stats-indexer/internal/core/storage/memory"
	"github.com/aevon-lab/stats-indexer/internal/solr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPipeline_AgainstSearchCluster drives the real search client against a
// canned cluster: two yearly partitions, three views pages, no downloads.
func TestPipeline_AgainstSearchCluster(t *testing.T) {
	var selects atomic.Int32
	var srvURL string

	mux := http.NewServeMux()
	mux.HandleFunc("/solr/admin/cores", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":{"statistics":{},"statistics-2017":{},"statistics-2018":{},"search":{}}}`)
	})
	mux.HandleFunc("/solr/statistics/select", func(w http.ResponseWriter, r *http.Request) {
		selects.Add(1)
		q := r.URL.Query()
		assert.Equal(t,
			srvURL+"/solr/statistics,"+srvURL+"/solr/statistics-2017,"+srvURL+"/solr/statistics-2018",
			q.Get("shards"))

		if q.Get("facet.field") == "owningItem" {
			fmt.Fprint(w, `{"stats":{"stats_fields":{"owningItem":null}}}`)
			return
		}
		if q.Get("stats") == "true" {
			// Exact multiple of the page size: a trailing empty page is fetched.
			fmt.Fprint(w, `{"stats":{"stats_fields":{"id":{"countDistinct":4}}}}`)
			return
		}
		switch q.Get("facet.offset") {
		case "0":
			fmt.Fprintf(w, `{"facet_counts":{"facet_fields":{"id":{%q:5,%q:3}}}}`, itemA, itemB)
		case "2":
			fmt.Fprintf(w, `{"facet_counts":{"facet_fields":{"id":{%q:1,"-1":9}}}}`, itemC)
		case "4":
			fmt.Fprint(w, `{"facet_counts":{"facet_fields":{"id":{}}}}`)
		default:
			t.Errorf("unexpected offset %q", q.Get("facet.offset"))
			w.WriteHeader(http.StatusBadRequest)
		}
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()
	srvURL = srv.URL

	client, err := solr.NewClient(srv.URL+"/solr", "statistics", 5*time.Second)
	require.NoError(t, err)

	store := memory.NewCounterStore()
	p := New(&fakeSchema{}, client, SolrSource{Client: client}, store, nil, Options{PageSize: 2})

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateDone, report.State)
	assert.Len(t, report.Shards, 3)
	assert.True(t, strings.HasSuffix(report.Shards[0], "/solr/statistics"))

	// views: 1 stats + 3 pages; downloads: 1 stats.
	assert.Equal(t, int32(5), selects.Load())

	views := report.Dimensions[0]
	assert.Equal(t, int64(4), views.TotalDistinct)
	assert.Equal(t, int64(3), views.Pages)
	assert.Equal(t, int64(1), views.SkippedIDs)
	assert.True(t, report.Dimensions[1].Empty)

	assert.Equal(t, map[string]storage.Counter{
		itemA: {ID: itemA, Views: 5},
		itemB: {ID: itemB, Views: 3},
		itemC: {ID: itemC, Views: 1},
	}, store.Snapshot())
}
