// Package history implements the optional bounded event-history sink
// mentioned in spec §4.2.2 step 3. The spec leaves its interface out of
// scope and permits omission entirely; when kept, a fixed-capacity LRU is
// the natural shape, so this package wraps hashicorp/golang-lru rather than
// hand-rolling a ring buffer.
package history

import (
	lru "github.com/hashicorp/golang-lru"
)

// Record is the sink's own minimal view of a dispatched event — deliberately
// independent of the root eventhub.Event type so this package stays a leaf
// dependency with no import cycle back to the hub.
type Record struct {
	Number int64
	ID     string
	Type   string
	Source string
	Mask   []string
}

// Sink retains the most recent records, up to a fixed capacity, evicting the
// least recently touched entry once full.
type Sink struct {
	cache *lru.Cache
}

// New creates a Sink holding at most capacity records.
func New(capacity int) (*Sink, error) {
	cache, err := lru.New(capacity)
	if err != nil {
		return nil, err
	}
	return &Sink{cache: cache}, nil
}

// Record stores r, keyed by its event number.
func (s *Sink) Record(r Record) {
	s.cache.Add(r.Number, r)
}

// Get retrieves the record for a given event number, if it is still
// retained.
func (s *Sink) Get(number int64) (Record, bool) {
	v, ok := s.cache.Get(number)
	if !ok {
		return Record{}, false
	}
	return v.(Record), true
}

// Len reports how many records are currently retained.
func (s *Sink) Len() int {
	return s.cache.Len()
}
