// Package imaging implements the linear-imaging-sensor acquisition
// engine from spec.md §4.A.1 — the DMA/PIO-driven pixel-clock pipeline
// for CCD/CMOS plunger sensors that clock a row of pixels out an
// analog pin — and the edge-detection algorithms of §4.B.2 that turn a
// captured row into a plunger position.
package imaging

import (
	"image"

	"golang.org/x/image/draw"
)

// Source is the platform capability the acquisition engine's
// buffer-management logic needs: the most recently completed pixel
// buffer, whether the DMA chain has stalled, and how to restart it.
// MCUSource (tinygo && rp2350) and HostSource (!tinygo) both implement
// it.
type Source interface {
	CurrentFrame() (row *image.Gray, timestampUS uint64)
	Stalled() bool
	Restart()
}

// Frame is a stable, client-owned copy of one captured pixel row.
type Frame struct {
	Row         *image.Gray
	TimestampUS uint64
}

// Pixels exposes the row's raw intensities for the scan-mode
// algorithms in scanmodes.go, which operate on a plain byte slice.
func (f Frame) Pixels() []byte {
	return f.Row.Pix
}

// Engine wraps a Source with the snapshot-copy and stall-recovery
// contract spec.md §4.A.1 calls for.
type Engine struct {
	src      Source
	snapshot *image.Gray
}

func NewEngine(src Source) *Engine {
	return &Engine{src: src}
}

// Snapshot copies the most recently completed buffer into a
// client-owned image, so long-running edge-detection work (§4.B.2)
// never races the DMA engine's next write.
func (e *Engine) Snapshot() Frame {
	row, ts := e.src.CurrentFrame()
	bounds := row.Bounds()
	if e.snapshot == nil || e.snapshot.Bounds() != bounds {
		e.snapshot = image.NewGray(bounds)
	}
	draw.Draw(e.snapshot, bounds, row, bounds.Min, draw.Src)
	return Frame{Row: e.snapshot, TimestampUS: ts}
}

// Task runs the engine's periodic housekeeping. Per spec.md §4.A.1's
// failure semantics, a stalled chain is never recovered from inside
// the ISR; Task restarts it from scratch on the next main-loop
// iteration instead.
func (e *Engine) Task() {
	if e.src.Stalled() {
		e.src.Restart()
	}
}
