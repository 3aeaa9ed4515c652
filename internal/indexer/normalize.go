package indexer

import (
	"github.com/aevon-lab/stats-indexer/internal/core/stats"
	"github.com/google/uuid"
)

// idMerger canonicalizes facet ids to the UUID form stored in items for one
// dimension run. Ids that collapse to the same UUID (for example upper and
// lower case spellings) are summed across the whole run, not just within a
// page: a later page carries the running total, so the stored counter does
// not depend on where the page boundary falls.
type idMerger struct {
	totals map[uuid.UUID]int64
}

func newIDMerger() *idMerger {
	return &idMerger{totals: make(map[uuid.UUID]int64)}
}

// merge returns the page's counts keyed by canonical id, keeping the position
// of the first occurrence. Ids that are not UUIDs are returned in skipped.
func (m *idMerger) merge(counts []stats.FacetCount) (valid []stats.FacetCount, skipped []string) {
	if len(counts) == 0 {
		return nil, nil
	}

	index := make(map[uuid.UUID]int, len(counts))
	valid = make([]stats.FacetCount, 0, len(counts))

	for _, c := range counts {
		id, err := uuid.Parse(c.ID)
		if err != nil {
			skipped = append(skipped, c.ID)
			continue
		}

		total := m.totals[id] + c.Count
		m.totals[id] = total

		if i, ok := index[id]; ok {
			valid[i].Count = total
			continue
		}
		index[id] = len(valid)
		valid = append(valid, stats.FacetCount{ID: id.String(), Count: total})
	}
	return valid, skipped
}
