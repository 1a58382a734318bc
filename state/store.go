// Package state implements the SharedStateManager (spec §4.3): one ordered,
// versioned map from version -> (PENDING | SET(data)) per
// (extension, state-type). Lookups resolve to the greatest version at or
// before the requested version whose entry is SET (Invariant S1); a PENDING
// entry never satisfies a read, but it also never masks an earlier SET
// value (Invariant S2, "pending tolerance").
//
// The backing structure is an immutable radix tree
// (hashicorp/go-immutable-radix) keyed by the big-endian encoding of the
// version, which gives byte-order comparison equal to integer order and an
// O(log n) "largest key <= target" query via ReverseIterator.
package state

import (
	"encoding/binary"
	"sync"

	iradix "github.com/hashicorp/go-immutable-radix"

	"github.com/sdkcore/eventhub/value"
)

// Status is the three-way outcome of Set, per spec §4.3.
type Status int

const (
	StatusSet Status = iota
	StatusPending
	StatusNotSet
)

func (s Status) String() string {
	switch s {
	case StatusSet:
		return "SET"
	case StatusPending:
		return "PENDING"
	default:
		return "NOT_SET"
	}
}

type entry struct {
	pending bool
	data    map[string]value.Value
}

// Store is one SharedStateManager instance, scoped by the caller to a
// single (extension, state-type) pair.
type Store struct {
	mu            sync.Mutex
	tree          *iradix.Tree
	maxSetVersion int64
	hasMaxSet     bool
}

// New returns an empty Store.
func New() *Store {
	return &Store{tree: iradix.New()}
}

func encodeVersion(version int64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(version))
	return buf[:]
}

// Set implements setSharedState (§4.3). data == nil requests a PENDING
// placeholder at version; a later call with data != nil at the same
// version resolves it to SET (PENDING -> SET resolution).
func (s *Store) Set(data map[string]value.Value, version int64) Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := encodeVersion(version)
	raw, exists := s.tree.Get(key)
	if !exists {
		if s.hasMaxSet && version < s.maxSetVersion {
			return StatusNotSet
		}
		newTree, _, _ := s.tree.Insert(key, &entry{pending: data == nil, data: data})
		s.tree = newTree
		if data == nil {
			return StatusPending
		}
		s.maxSetVersion = version
		s.hasMaxSet = true
		return StatusSet
	}

	existing := raw.(*entry)
	if existing.pending && data != nil {
		newTree, _, _ := s.tree.Insert(key, &entry{pending: false, data: data})
		s.tree = newTree
		if !s.hasMaxSet || version > s.maxSetVersion {
			s.maxSetVersion = version
			s.hasMaxSet = true
		}
		return StatusSet
	}
	return StatusNotSet
}

// Get implements getSharedState (§4.3): the data of the greatest version
// <= the requested version whose entry is SET, skipping over any PENDING
// entries encountered along the way.
func (s *Store) Get(version int64) (map[string]value.Value, bool) {
	s.mu.Lock()
	tree := s.tree
	s.mu.Unlock()

	it := tree.Root().ReverseIterator()
	it.SeekReverseLowerBound(encodeVersion(version))
	for {
		_, raw, ok := it.Previous()
		if !ok {
			return nil, false
		}
		e := raw.(*entry)
		if !e.pending {
			return e.data, true
		}
	}
}

// Clear implements clearSharedState: removes all entries and resets
// maxSetVersion.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tree = iradix.New()
	s.maxSetVersion = 0
	s.hasMaxSet = false
}

// Len reports how many versions (SET or PENDING) are currently stored, for
// diagnostics and tests.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.Len()
}
