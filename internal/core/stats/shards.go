package stats

import "strings"

// ShardSet is the ordered list of cores queried together in a distributed request.
// The zero value means "query the base core unsharded".
//
// A ShardSet is computed once per run and must not change while a dimension is
// being paged, since facet pages are addressed purely by offset.
type ShardSet struct {
	targets []string
}

// NewShardSet copies targets into an immutable set.
func NewShardSet(targets ...string) ShardSet {
	if len(targets) == 0 {
		return ShardSet{}
	}
	cp := make([]string, len(targets))
	copy(cp, targets)
	return ShardSet{targets: cp}
}

// Targets returns a copy of the shard targets in discovery order.
func (s ShardSet) Targets() []string {
	cp := make([]string, len(s.targets))
	copy(cp, s.targets)
	return cp
}

func (s ShardSet) Len() int { return len(s.targets) }

// IsEmpty reports whether the set asks for an unsharded query.
func (s ShardSet) IsEmpty() bool { return len(s.targets) == 0 }

// Param renders the value of the shards request parameter. Empty sets render
// as "", which the search cluster accepts as a local query.
func (s ShardSet) Param() string {
	return strings.Join(s.targets, ",")
}

func (s ShardSet) String() string {
	if s.IsEmpty() {
		return "<unsharded>"
	}
	return s.Param()
}
