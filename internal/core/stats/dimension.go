package stats

import "fmt"

// DefaultPageSize is the number of facet values fetched and merged per page.
const DefaultPageSize = 100

// Dimension describes one countable usage event type and where its counts live.
// Dimensions are fixed at compile time; there is no way to configure new ones.
type Dimension struct {
	// Name is the human readable label used in logs and metrics ("views", "downloads").
	Name string
	// Query is the main search query selecting the event document type.
	Query string
	// Filter excludes bots and restricts the event type.
	Filter string
	// FacetField is the document field holding the entity id being counted.
	FacetField string
	// Column is the items column that receives the count.
	Column string
}

var (
	// Views counts item page views: type 2 (item) documents recorded as views.
	Views = Dimension{
		Name:       "views",
		Query:      "type:2",
		Filter:     "isBot:false AND statistics_type:view",
		FacetField: "id",
		Column:     "views",
	}

	// Downloads counts bitstream downloads from the primary content bundle,
	// faceted on the item that owns the bitstream.
	Downloads = Dimension{
		Name:       "downloads",
		Query:      "type:0",
		Filter:     "isBot:false AND statistics_type:view AND bundleName:ORIGINAL",
		FacetField: "owningItem",
		Column:     "downloads",
	}
)

// Dimensions lists every dimension in processing order.
func Dimensions() []Dimension {
	return []Dimension{Views, Downloads}
}

func (d Dimension) String() string {
	return d.Name
}

// Validate rejects dimensions whose column is not one of the items counters,
// or whose name differs from that column. Only the two counter columns have an
// upsert statement in the items store and a step in the run's state machine.
func (d Dimension) Validate() error {
	switch d.Column {
	case Views.Column, Downloads.Column:
	default:
		return fmt.Errorf("dimension %q: unknown counter column %q", d.Name, d.Column)
	}
	if d.Name != d.Column {
		return fmt.Errorf("dimension %q: name must match its counter column %q", d.Name, d.Column)
	}
	if d.FacetField == "" {
		return fmt.Errorf("dimension %q: facet field is required", d.Name)
	}
	return nil
}

// FacetCount is one entity id and the number of events counted for it.
type FacetCount struct {
	ID    string
	Count int64
}

// PageCount returns how many facet pages are fetched for totalDistinct values.
// The range is inclusive (floor(total/size) + 1), so a trailing empty page is
// requested when totalDistinct is an exact multiple of pageSize.
func PageCount(totalDistinct int64, pageSize int) int64 {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if totalDistinct < 0 {
		totalDistinct = 0
	}
	return totalDistinct/int64(pageSize) + 1
}

// Page is one offset-addressed slice of facet counts for a dimension.
type Page struct {
	// Number is zero based; Total is the number of pages in the run.
	Number int64
	Total  int64
	Offset int64
	Counts []FacetCount
}
