// Package cache implements the bounded frame store shared between the
// decoder worker and the presenter.
//
// Core philosophy borrowed from the capture side of the house: "Drop frames,
// never queue." Frames strictly behind the playback cursor are worthless
// until the next loop and are evicted aggressively; a FIFO tail keeps the
// store bounded even when the cursor moves backward faster than eviction
// can prune.
package cache

import (
	"fmt"
	"sync"

	"github.com/visiona/loopdeck/internal/media"
	"github.com/visiona/loopdeck/internal/timeline"
)

// DefaultMaxFrames is the default cache capacity in frames.
// 300 frames of 1080p RGB24 is ~1.7 GB; tune down for small machines.
const DefaultMaxFrames = 300

// Store is a fixed-capacity associative cache keyed by frame index, backed
// by an insertion-order log for FIFO eviction.
//
// Thread-safety: a single mutex guards both containers. The critical section
// is always O(1)-ish pointer work (map lookup, slice push/pop, circular
// distance arithmetic), never decoding. Frames handed out by Get are shared
// by reference; see the media.Frame immutability contract.
type Store struct {
	mu sync.Mutex

	entries        map[int]*media.Frame
	insertionOrder []int

	maxFrames   int
	totalFrames int

	evictedBehind uint64
	evictedFIFO   uint64
}

// New creates a Store for a clip with the given loop length.
func New(maxFrames, totalFrames int) (*Store, error) {
	if maxFrames < 1 {
		return nil, fmt.Errorf("cache: invalid capacity %d", maxFrames)
	}
	if totalFrames < 1 {
		return nil, fmt.Errorf("cache: invalid total frame count %d", totalFrames)
	}
	return &Store{
		entries:        make(map[int]*media.Frame, maxFrames),
		insertionOrder: make([]int, 0, maxFrames),
		maxFrames:      maxFrames,
		totalFrames:    totalFrames,
	}, nil
}

// Insert adds or replaces the frame at index and records it at the tail of
// the insertion order. Replacing an existing index removes its old position
// first, so the order log never holds duplicates.
func (s *Store) Insert(index int, frame *media.Frame) {
	index = timeline.Wrap(index, s.totalFrames)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[index]; exists {
		s.removeFromOrder(index)
	}
	s.entries[index] = frame
	s.insertionOrder = append(s.insertionOrder, index)
	s.trimToCap()
}

// Get returns the frame at index, or nil. Does not promote or reorder.
func (s *Store) Get(index int) *media.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[timeline.Wrap(index, s.totalFrames)]
}

// Contains reports whether the frame at index is resident.
func (s *Store) Contains(index int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[timeline.Wrap(index, s.totalFrames)]
	return ok
}

// BufferedRun returns the largest k <= maxCheck such that every frame in
// [start, start+k) (modulo the loop) is resident. Used by the decoder to
// decide whether to sleep and by the overlay's buffer bar.
func (s *Store) BufferedRun(start, maxCheck int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := 0; i < maxCheck; i++ {
		if _, ok := s.entries[timeline.Wrap(start+i, s.totalFrames)]; !ok {
			return i
		}
	}
	return maxCheck
}

// Evict applies the two-phase eviction policy relative to the playback
// cursor:
//
//  1. Every entry strictly behind the cursor on the shortest circular path
//     is removed. The decoder will reproduce those frames when it wraps.
//  2. If the store is still above capacity, entries are removed from the
//     front of the insertion order until at or below the cap.
func (s *Store) Evict(playbackIndex int) {
	playbackIndex = timeline.Wrap(playbackIndex, s.totalFrames)

	s.mu.Lock()
	defer s.mu.Unlock()

	for index := range s.entries {
		if timeline.CircularDistance(playbackIndex, index, s.totalFrames) < 0 {
			delete(s.entries, index)
			s.removeFromOrder(index)
			s.evictedBehind++
		}
	}

	s.trimToCap()
}

// trimToCap removes entries from the front of the insertion order until the
// store is at or below capacity. Caller holds s.mu.
func (s *Store) trimToCap() {
	for len(s.entries) > s.maxFrames && len(s.insertionOrder) > 0 {
		oldest := s.insertionOrder[0]
		s.insertionOrder = s.insertionOrder[1:]
		delete(s.entries, oldest)
		s.evictedFIFO++
	}
}

// Len returns the number of resident frames.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Clear drops every resident frame.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[int]*media.Frame, s.maxFrames)
	s.insertionOrder = s.insertionOrder[:0]
}

// Stats is a point-in-time snapshot of store occupancy and eviction counts.
type Stats struct {
	Resident      int
	Capacity      int
	EvictedBehind uint64
	EvictedFIFO   uint64
}

// Stats returns a snapshot of the store counters.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Resident:      len(s.entries),
		Capacity:      s.maxFrames,
		EvictedBehind: s.evictedBehind,
		EvictedFIFO:   s.evictedFIFO,
	}
}

// removeFromOrder deletes one occurrence of index from the order log.
// Caller holds s.mu.
func (s *Store) removeFromOrder(index int) {
	for i, v := range s.insertionOrder {
		if v == index {
			s.insertionOrder = append(s.insertionOrder[:i], s.insertionOrder[i+1:]...)
			return
		}
	}
}
