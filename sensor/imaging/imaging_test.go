package imaging

import (
	"image"
	"testing"
)

type fakeSource struct {
	row       *image.Gray
	ts        uint64
	stalled   bool
	restarted int
}

func newFakeSource(pixels []byte, ts uint64) *fakeSource {
	row := image.NewGray(image.Rect(0, 0, len(pixels), 1))
	copy(row.Pix, pixels)
	return &fakeSource{row: row, ts: ts}
}

func (f *fakeSource) CurrentFrame() (*image.Gray, uint64) { return f.row, f.ts }
func (f *fakeSource) Stalled() bool                       { return f.stalled }
func (f *fakeSource) Restart()                            { f.restarted++; f.stalled = false }

func TestEngineSnapshotCopiesIndependently(t *testing.T) {
	src := newFakeSource([]byte{1, 2, 3}, 100)
	e := NewEngine(src)

	snap := e.Snapshot()
	if snap.TimestampUS != 100 || len(snap.Pixels()) != 3 {
		t.Fatalf("Snapshot = %+v, want 3 pixels at ts=100", snap)
	}

	// Mutating the source's live buffer must not affect the snapshot
	// already handed to the client.
	src.row.Pix[0] = 99
	if snap.Pixels()[0] != 1 {
		t.Fatalf("Snapshot.Pixels()[0] = %d, want 1 (snapshot should be a stable copy)", snap.Pixels()[0])
	}
}

func TestEngineSnapshotReflectsLatestSourceData(t *testing.T) {
	src := newFakeSource([]byte{1, 2, 3}, 100)
	e := NewEngine(src)

	e.Snapshot()
	src.row.Pix[0], src.row.Pix[1], src.row.Pix[2] = 4, 5, 6
	src.ts = 200
	snap2 := e.Snapshot()

	if snap2.Pixels()[0] != 4 || snap2.TimestampUS != 200 {
		t.Fatalf("second Snapshot = %+v, want pixels starting at 4, ts=200", snap2)
	}
}

func TestEngineTaskRestartsOnlyWhenStalled(t *testing.T) {
	src := newFakeSource([]byte{1}, 1)
	e := NewEngine(src)

	e.Task()
	if src.restarted != 0 {
		t.Fatalf("Task restarted a non-stalled source")
	}

	src.stalled = true
	e.Task()
	if src.restarted != 1 {
		t.Fatalf("Task did not restart a stalled source")
	}
	if src.Stalled() {
		t.Fatalf("source still reports stalled after Restart")
	}
}

func TestHostSourceAdvanceAppliesProfile(t *testing.T) {
	s := NewHostSource(5, func(i int) byte {
		return byte(i * 10)
	})
	s.Advance()
	row, _ := s.CurrentFrame()
	want := []byte{0, 10, 20, 30, 40}
	for i, w := range want {
		if row.Pix[i] != w {
			t.Fatalf("pixels[%d] = %d, want %d", i, row.Pix[i], w)
		}
	}
}
