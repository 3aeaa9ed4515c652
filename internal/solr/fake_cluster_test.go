package solr

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeCluster serves the subset of the search HTTP API the indexer uses.
type fakeCluster struct {
	t *testing.T

	mu       sync.Mutex
	requests []url.Values
	paths    []string

	statusBody   string
	statusCode   int
	distinct     map[string]*int64 // facet field -> countDistinct (nil = absent)
	facetIDs     map[string][]string
	facetCounts  map[string]map[string]int64
	failOnOffset map[int64]bool
}

func newFakeCluster(t *testing.T) (*fakeCluster, *httptest.Server) {
	t.Helper()
	f := &fakeCluster{
		t:            t,
		statusCode:   http.StatusOK,
		statusBody:   `{"responseHeader":{"status":0},"status":{"statistics":{}}}`,
		distinct:     map[string]*int64{},
		facetIDs:     map[string][]string{},
		facetCounts:  map[string]map[string]int64{},
		failOnOffset: map[int64]bool{},
	}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeCluster) setFacet(field string, ids []string, counts map[string]int64) {
	f.facetIDs[field] = ids
	f.facetCounts[field] = counts
	n := int64(len(ids))
	f.distinct[field] = &n
}

func (f *fakeCluster) recorded() ([]string, []url.Values) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.paths...), append([]url.Values(nil), f.requests...)
}

func (f *fakeCluster) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.paths = append(f.paths, r.URL.Path)
	f.requests = append(f.requests, r.URL.Query())
	f.mu.Unlock()

	q := r.URL.Query()
	switch {
	case r.URL.Path == "/solr/admin/cores":
		w.WriteHeader(f.statusCode)
		_, _ = w.Write([]byte(f.statusBody))

	case strings.HasSuffix(r.URL.Path, "/select"):
		field := q.Get("facet.field")
		if q.Get("stats") == "true" {
			f.writeStats(w, field)
			return
		}
		offset, err := strconv.ParseInt(q.Get("facet.offset"), 10, 64)
		require.NoError(f.t, err)
		limit, err := strconv.Atoi(q.Get("facet.limit"))
		require.NoError(f.t, err)
		if f.failOnOffset[offset] {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":{"msg":"shard unavailable","code":500}}`))
			return
		}
		f.writePage(w, field, offset, limit)

	default:
		http.NotFound(w, r)
	}
}

func (f *fakeCluster) writeStats(w http.ResponseWriter, field string) {
	n, ok := f.distinct[field]
	if !ok || n == nil {
		// No matching documents: the stats field is present but null.
		fmt.Fprintf(w, `{"stats":{"stats_fields":{%q:null}}}`, field)
		return
	}
	fmt.Fprintf(w, `{"stats":{"stats_fields":{%q:{"countDistinct":%d}}},"facet_counts":{"facet_fields":{%q:{}}}}`, field, *n, field)
}

func (f *fakeCluster) writePage(w http.ResponseWriter, field string, offset int64, limit int) {
	ids := f.facetIDs[field]
	var parts []string
	for i := offset; i < int64(len(ids)) && i < offset+int64(limit); i++ {
		key, _ := json.Marshal(ids[i])
		parts = append(parts, fmt.Sprintf("%s:%d", key, f.facetCounts[field][ids[i]]))
	}
	fmt.Fprintf(w, `{"facet_counts":{"facet_fields":{%q:{%s}}}}`, field, strings.Join(parts, ","))
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(srv.URL+"/solr/", "statistics", 5*time.Second)
	require.NoError(t, err)
	return c
}
