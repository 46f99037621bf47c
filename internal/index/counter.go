package index

import "sort"

// Counter is a multiset over dataset ids. The gather loop only ever needs
// the current maximum, so PeekMax is a linear scan instead of a full sort;
// MostCommon materializes the whole ordering for the search path.
type Counter struct {
	counts map[uint32]uint64
}

// Entry is one (dataset id, count) pair of a Counter.
type Entry struct {
	DatasetID uint32
	Count     uint64
}

// NewCounter returns an empty counter.
func NewCounter() *Counter {
	return &Counter{counts: make(map[uint32]uint64)}
}

// Add increments the count for a dataset id.
func (c *Counter) Add(id uint32) {
	c.counts[id]++
}

// Get returns the current count for a dataset id (zero if absent).
func (c *Counter) Get(id uint32) uint64 {
	return c.counts[id]
}

// Len returns the number of distinct dataset ids tracked.
func (c *Counter) Len() int { return len(c.counts) }

// IsEmpty reports whether no dataset ids are tracked.
func (c *Counter) IsEmpty() bool { return len(c.counts) == 0 }

// PeekMax returns the entry with the highest count, ties broken by the
// smallest dataset id. ok is false on an empty counter.
func (c *Counter) PeekMax() (id uint32, count uint64, ok bool) {
	for d, n := range c.counts {
		if !ok || n > count || (n == count && d < id) {
			id, count, ok = d, n, true
		}
	}
	return id, count, ok
}

// MostCommon returns all entries ordered by descending count, ties broken by
// ascending dataset id.
func (c *Counter) MostCommon() []Entry {
	entries := make([]Entry, 0, len(c.counts))
	for d, n := range c.counts {
		entries = append(entries, Entry{DatasetID: d, Count: n})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].DatasetID < entries[j].DatasetID
	})
	return entries
}

// DecrementSaturating lowers a dataset's count by one, clamped at zero.
// Absent ids are left absent.
func (c *Counter) DecrementSaturating(id uint32) {
	if n, ok := c.counts[id]; ok && n > 0 {
		c.counts[id] = n - 1
	}
}

// Remove drops a dataset id from the counter.
func (c *Counter) Remove(id uint32) {
	delete(c.counts, id)
}
