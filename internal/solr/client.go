package solr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/aevon-lab/stats-indexer/internal/core/stats"
)

const (
	defaultTimeout = 30 * time.Second

	// maxErrorBody bounds how much of a failed response is copied into an error.
	maxErrorBody = 512
)

// Client talks to the statistics cores of a search cluster over its HTTP API.
type Client struct {
	baseURL          string
	core             string
	httpClient       *http.Client
	partitionPattern *regexp.Regexp
}

// NewClient creates a client for the search cluster at baseURL (for example
// "http://localhost:8081/solr") whose primary statistics core is named core.
// Yearly partitions of that core are expected to be named "<core>-YYYY".
func NewClient(baseURL, core string, timeout time.Duration) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("solr client: base url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("solr client: invalid base url %q: %w", baseURL, err)
	}
	core = strings.TrimSpace(core)
	if core == "" {
		return nil, fmt.Errorf("solr client: core name is required")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL:          baseURL,
		core:             core,
		httpClient:       &http.Client{Timeout: timeout},
		partitionPattern: regexp.MustCompile("^" + regexp.QuoteMeta(core) + "-[0-9]{4}$"),
	}, nil
}

// Core returns the name of the primary statistics core.
func (c *Client) Core() string { return c.core }

func (c *Client) coreURL(core string) string {
	return c.baseURL + "/" + core
}

// getJSON issues a GET and returns the body of a 2xx response.
func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("GET %s: read body: %w", endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("GET %s: status %d: %s", endpoint, resp.StatusCode, errorMessage(body))
	}
	return body, nil
}

// errorMessage extracts the search cluster's error message from a failed
// response, falling back to a truncated copy of the body.
func errorMessage(body []byte) string {
	var payload struct {
		Error *struct {
			Msg string `json:"msg"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != nil && payload.Error.Msg != "" {
		return payload.Error.Msg
	}
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody] + "..."
	}
	return text
}

// ResolveShards lists the active cores and builds the distributed query target
// list. When at least one yearly partition exists the set holds the primary core
// followed by every partition in the order the STATUS response lists them.
// When none exist the empty set is returned, meaning "query unsharded".
//
// Any failure is returned wrapped in ErrStatusRequest: a wrong shard set would
// silently under-count, so there is no degraded mode.
func (c *Client) ResolveShards(ctx context.Context) (stats.ShardSet, error) {
	params := url.Values{}
	params.Set("action", "STATUS")
	params.Set("wt", "json")

	body, err := c.getJSON(ctx, c.baseURL+"/admin/cores", params)
	if err != nil {
		return stats.ShardSet{}, fmt.Errorf("%w: %w", ErrStatusRequest, err)
	}

	var payload struct {
		Status json.RawMessage `json:"status"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return stats.ShardSet{}, fmt.Errorf("%w: %w: decode status: %w", ErrStatusRequest, ErrUnexpectedResponse, err)
	}
	if len(payload.Status) == 0 || string(payload.Status) == "null" {
		return stats.ShardSet{}, fmt.Errorf("%w: %w: status object missing", ErrStatusRequest, ErrUnexpectedResponse)
	}

	cores, err := objectKeys(payload.Status)
	if err != nil {
		return stats.ShardSet{}, fmt.Errorf("%w: %w: %w", ErrStatusRequest, ErrUnexpectedResponse, err)
	}

	var partitions []string
	for _, name := range cores {
		if c.partitionPattern.MatchString(name) {
			partitions = append(partitions, name)
		}
	}

	if len(partitions) == 0 {
		slog.Info("[ShardResolver] No yearly partitions found, querying unsharded",
			"core", c.core,
			"active_cores", len(cores))
		return stats.ShardSet{}, nil
	}

	targets := make([]string, 0, len(partitions)+1)
	targets = append(targets, c.coreURL(c.core))
	for _, name := range partitions {
		targets = append(targets, c.coreURL(name))
	}

	slog.Info("[ShardResolver] Resolved statistics shards",
		"core", c.core,
		"partitions", partitions,
		"targets", len(targets))

	return stats.NewShardSet(targets...), nil
}
