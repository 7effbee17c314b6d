package cache

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/visiona/loopdeck/internal/media"
	"github.com/visiona/loopdeck/internal/timeline"
)

func testFrame(t *testing.T, fill byte) *media.Frame {
	t.Helper()
	data := make([]byte, 4*4*media.PixelStride)
	for i := range data {
		data[i] = fill
	}
	f, err := media.NewFrame(4, 4, data)
	if err != nil {
		t.Fatalf("NewFrame failed: %v", err)
	}
	return f
}

func TestInsertGetRoundTrip(t *testing.T) {
	s, err := New(10, 100)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	f := testFrame(t, 0xAB)
	want := append([]byte(nil), f.Data...)
	s.Insert(7, f)

	got := s.Get(7)
	if got == nil {
		t.Fatal("Get(7) returned nil after Insert")
	}
	if !bytes.Equal(got.Data, want) {
		t.Error("frame bytes changed between Insert and Get")
	}
	if s.Get(8) != nil {
		t.Error("Get(8) should be nil")
	}
}

func TestDuplicateInsertReplacesAndMovesToTail(t *testing.T) {
	s, _ := New(3, 100)
	s.Insert(1, testFrame(t, 1))
	s.Insert(2, testFrame(t, 2))
	s.Insert(1, testFrame(t, 9)) // replace, moves 1 behind 2 in FIFO order
	s.Insert(3, testFrame(t, 3))

	if s.Len() != 3 {
		t.Fatalf("Len = %d, want 3", s.Len())
	}
	if got := s.Get(1); got == nil || got.Data[0] != 9 {
		t.Error("duplicate insert did not replace entry")
	}

	// One more insert exceeds capacity; the FIFO head must now be 2, not 1.
	s.Insert(4, testFrame(t, 4))
	s.Evict(0)
	if s.Contains(2) {
		t.Error("expected FIFO eviction of index 2")
	}
	if !s.Contains(1) {
		t.Error("index 1 should have survived (moved to FIFO tail on replace)")
	}
}

func TestBufferedRun(t *testing.T) {
	s, _ := New(50, 240)
	for i := 235; i < 240; i++ {
		s.Insert(i, testFrame(t, byte(i)))
	}
	for i := 0; i < 3; i++ {
		s.Insert(i, testFrame(t, byte(i)))
	}

	// Run crosses the loop boundary: 235..239 then 0..2 = 8 frames.
	if run := s.BufferedRun(235, 20); run != 8 {
		t.Errorf("BufferedRun(235, 20) = %d, want 8", run)
	}
	if run := s.BufferedRun(235, 4); run != 4 {
		t.Errorf("BufferedRun capped = %d, want 4", run)
	}
	if run := s.BufferedRun(100, 20); run != 0 {
		t.Errorf("BufferedRun(100, 20) = %d, want 0", run)
	}
}

func TestEvictDropsBehindCursor(t *testing.T) {
	s, _ := New(100, 240)
	for i := 0; i < 30; i++ {
		s.Insert(i, testFrame(t, byte(i)))
	}

	s.Evict(20)

	for i := 0; i < 20; i++ {
		if s.Contains(i) {
			t.Errorf("frame %d behind cursor 20 survived eviction", i)
		}
	}
	for i := 20; i < 30; i++ {
		if !s.Contains(i) {
			t.Errorf("frame %d at/ahead of cursor 20 was evicted", i)
		}
	}
}

func TestEvictAcrossLoopBoundary(t *testing.T) {
	s, _ := New(100, 240)
	// Near the end of the loop with playback at 235: 230..239 plus 0..9.
	for i := 230; i < 240; i++ {
		s.Insert(i, testFrame(t, 1))
	}
	for i := 0; i < 10; i++ {
		s.Insert(i, testFrame(t, 2))
	}

	s.Evict(235)

	// 230..234 are behind; 235..239 and the wrapped 0..9 are ahead.
	for i := 230; i < 235; i++ {
		if s.Contains(i) {
			t.Errorf("behind frame %d survived", i)
		}
	}
	for i := 235; i < 240; i++ {
		if !s.Contains(i) {
			t.Errorf("ahead frame %d evicted", i)
		}
	}
	for i := 0; i < 10; i++ {
		if !s.Contains(i) {
			t.Errorf("wrapped lookahead frame %d evicted", i)
		}
	}
}

// TestCapacityInvariant drives a random operation sequence and checks the
// size cap plus map/order consistency after every step.
func TestCapacityInvariant(t *testing.T) {
	const total = 500
	rng := rand.New(rand.NewSource(1))
	s, _ := New(50, total)

	for op := 0; op < 5000; op++ {
		index := rng.Intn(total)
		switch rng.Intn(3) {
		case 0, 1:
			s.Insert(index, testFrame(t, byte(index)))
			s.Evict(rng.Intn(total))
		case 2:
			s.Evict(index)
		}

		if n := s.Len(); n > 50 {
			t.Fatalf("op %d: size %d exceeds cap 50", op, n)
		}
	}
}

// TestNoBehindEntrySurvives: after Evict(p), no resident
// entry sits strictly behind p on the shortest circular path.
func TestNoBehindEntrySurvives(t *testing.T) {
	const total = 101
	rng := rand.New(rand.NewSource(7))
	s, _ := New(40, total)

	for round := 0; round < 200; round++ {
		for i := 0; i < 15; i++ {
			s.Insert(rng.Intn(total), testFrame(t, 0))
		}
		p := rng.Intn(total)
		s.Evict(p)

		for i := 0; i < total; i++ {
			if s.Contains(i) && timeline.CircularDistance(p, i, total) < 0 {
				t.Fatalf("entry %d behind playback %d survived eviction", i, p)
			}
		}
	}
}

func TestPreloadLargerThanCapacity(t *testing.T) {
	// MAX_CACHED_FRAMES < PRELOAD_FRAMES: eviction trims the earliest
	// preloaded frames first per the FIFO tail.
	s, _ := New(50, 1000)
	for i := 0; i < 150; i++ {
		s.Insert(i, testFrame(t, byte(i)))
		s.Evict(0)
	}

	if s.Len() != 50 {
		t.Fatalf("Len = %d, want 50", s.Len())
	}
	for i := 100; i < 150; i++ {
		if !s.Contains(i) {
			t.Errorf("latest preload frame %d missing", i)
		}
	}
	if s.Contains(0) {
		t.Error("earliest preload frame should have been trimmed")
	}
}

func TestClear(t *testing.T) {
	s, _ := New(10, 100)
	s.Insert(1, testFrame(t, 1))
	s.Insert(2, testFrame(t, 2))
	s.Clear()
	if s.Len() != 0 {
		t.Errorf("Len after Clear = %d, want 0", s.Len())
	}

	st := s.Stats()
	if st.Resident != 0 || st.Capacity != 10 {
		t.Errorf("unexpected stats after Clear: %+v", st)
	}
}
