//go:build !tinygo

package imaging

import (
	"image"
	"time"
)

// HostSource is the host-debug stand-in for MCUSource: instead of a
// real DMA/PIO chain, it synthesizes one pixel row per Advance call so
// the edge-detection algorithms can run off the microcontroller.
type HostSource struct {
	profile func(i int) byte

	row     *image.Gray
	lastUS  uint64
	stalled bool
}

// NewHostSource builds a synthetic source. profile computes the
// intensity of pixel i for the current frame; callers typically close
// over a moving edge position to simulate plunger travel.
func NewHostSource(numPixels int, profile func(i int) byte) *HostSource {
	return &HostSource{
		profile: profile,
		row:     image.NewGray(image.Rect(0, 0, numPixels, 1)),
	}
}

// Advance generates the next synthetic pixel row, as if a frame had
// just completed.
func (s *HostSource) Advance() {
	for i := range s.row.Pix {
		s.row.Pix[i] = s.profile(i)
	}
	s.lastUS = uint64(time.Now().UnixMicro())
}

func (s *HostSource) CurrentFrame() (*image.Gray, uint64) {
	return s.row, s.lastUS
}

func (s *HostSource) Stalled() bool { return s.stalled }

// Restart clears the synthetic stall flag a test can set directly.
func (s *HostSource) Restart() { s.stalled = false }
