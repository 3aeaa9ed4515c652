//go:build integration

package integration

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aevon-lab/stats-indexer/internal/core/storage/postgres"
	"github.com/aevon-lab/stats-indexer/internal/indexer"
	"github.com/aevon-lab/stats-indexer/internal/migrations"
	"github.com/aevon-lab/stats-indexer/internal/observability"
	"github.com/aevon-lab/stats-indexer/internal/solr"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// INDEXER_TEST_DSN points the suite at an existing database instead of a container.
const dsnEnv = "INDEXER_TEST_DSN"

type integrationHarness struct {
	adapter *postgres.ItemsAdapter
	cluster *cannedCluster
	solrSrv *httptest.Server
}

func startHarness(t *testing.T) *integrationHarness {
	t.Helper()

	dsn := os.Getenv(dsnEnv)
	if dsn == "" {
		dsn = startPostgres(t)
	}

	adapter, err := postgres.NewAdapter(dsn, 4, 2)
	require.NoError(t, err)
	t.Cleanup(func() { _ = adapter.Close() })

	resetDatabase(t, adapter.DB())

	cluster := newCannedCluster()
	srv := httptest.NewServer(cluster)
	t.Cleanup(srv.Close)

	return &integrationHarness{adapter: adapter, cluster: cluster, solrSrv: srv}
}

func (h *integrationHarness) pipeline(t *testing.T) *indexer.Pipeline {
	t.Helper()
	client, err := solr.NewClient(h.solrSrv.URL+"/solr", "statistics", 5*time.Second)
	require.NoError(t, err)

	return indexer.New(
		migrations.NewEnsurer(h.adapter.DB(), true, h.adapter),
		client,
		indexer.SolrSource{Client: client},
		h.adapter,
		observability.NewMetrics(nil),
		indexer.Options{PageSize: 2},
	)
}

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	provider, err := testcontainers.ProviderDocker.GetProvider()
	if err != nil {
		t.Skip("Docker/Podman not available, skipping integration tests")
	}
	provider.Close()

	container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("dspacestatistics"),
		tcpostgres.WithUsername("dspacestatistics"),
		tcpostgres.WithPassword("dspacestatistics"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Skipf("Failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		terminateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := testcontainers.TerminateContainer(container, testcontainers.StopContext(terminateCtx)); err != nil {
			t.Logf("Warning: failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return dsn
}

func resetDatabase(t *testing.T, db *sql.DB) {
	t.Helper()
	_, err := db.Exec(`DROP TABLE IF EXISTS items`)
	require.NoError(t, err)
	_, err = db.Exec(fmt.Sprintf(`DROP TABLE IF EXISTS %s`, migrations.MigrationsTable))
	require.NoError(t, err)
}

// cannedCluster answers STATUS and select requests from in-memory facets.
type cannedCluster struct {
	mu     sync.Mutex
	cores  []string
	facets map[string][][2]interface{} // facet field -> ordered (id, count)
}

func newCannedCluster() *cannedCluster {
	return &cannedCluster{
		cores:  []string{"statistics"},
		facets: map[string][][2]interface{}{},
	}
}

func (c *cannedCluster) set(field string, pairs ...[2]interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(pairs) == 0 {
		delete(c.facets, field)
		return
	}
	c.facets[field] = pairs
}

func (c *cannedCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if strings.HasSuffix(r.URL.Path, "/admin/cores") {
		var parts []string
		for _, core := range c.cores {
			parts = append(parts, fmt.Sprintf("%q:{}", core))
		}
		fmt.Fprintf(w, `{"status":{%s}}`, strings.Join(parts, ","))
		return
	}

	q := r.URL.Query()
	field := q.Get("facet.field")
	pairs, ok := c.facets[field]
	if q.Get("stats") == "true" {
		if !ok {
			fmt.Fprintf(w, `{"stats":{"stats_fields":{%q:null}}}`, field)
			return
		}
		fmt.Fprintf(w, `{"stats":{"stats_fields":{%q:{"countDistinct":%d}}}}`, field, len(pairs))
		return
	}

	var offset, limit int
	fmt.Sscan(q.Get("facet.offset"), &offset)
	fmt.Sscan(q.Get("facet.limit"), &limit)

	var parts []string
	for i := offset; i < len(pairs) && i < offset+limit; i++ {
		parts = append(parts, fmt.Sprintf("%q:%d", pairs[i][0], pairs[i][1]))
	}
	fmt.Fprintf(w, `{"facet_counts":{"facet_fields":{%q:{%s}}}}`, field, strings.Join(parts, ","))
}
