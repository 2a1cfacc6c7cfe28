package posting

import "sort"

// SeenSet is the set of posting ids already surfaced for a tracking session.
type SeenSet map[string]struct{}

// NewSeenSet builds a set from ids, ignoring empty ones.
func NewSeenSet(ids ...string) SeenSet {
	s := make(SeenSet, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Has reports whether the id was seen. Empty ids are never seen.
func (s SeenSet) Has(id string) bool {
	if id == "" {
		return false
	}
	_, ok := s[id]
	return ok
}

// Add records the id. Empty ids are ignored.
func (s SeenSet) Add(id string) {
	if id == "" {
		return
	}
	s[id] = struct{}{}
}

// Len returns the number of ids in the set. A nil set has length zero.
func (s SeenSet) Len() int {
	return len(s)
}

// Clone returns an independent copy. Cloning a nil set returns an empty set.
func (s SeenSet) Clone() SeenSet {
	out := make(SeenSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// Union returns a new set holding the ids of both sets.
func (s SeenSet) Union(other SeenSet) SeenSet {
	out := s.Clone()
	for id := range other {
		out[id] = struct{}{}
	}
	return out
}

// Diff returns the ids present in s but not in other, sorted.
func (s SeenSet) Diff(other SeenSet) []string {
	ids := make([]string, 0)
	for id := range s {
		if _, ok := other[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// IDs returns the ids sorted lexically.
func (s SeenSet) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
