//go:build tinygo && rp2350

package main

import (
	"pincab.dev/rawsample"
	"pincab.dev/sensor/imaging"
)

// imagingSensor adapts the imaging acquisition engine and edge
// detector to plunger.Sensor: the linear-imaging-sensor pipeline has
// no push notification, so poll must be called once per main-loop
// iteration before IsReady is checked.
type imagingSensor struct {
	engine      *imaging.Engine
	proc        *imaging.FrameProcessor
	nativeScale uint32

	pos   int
	ts    uint64
	ready bool
}

func newImagingSensor(engine *imaging.Engine, proc *imaging.FrameProcessor, numPixels int) *imagingSensor {
	return &imagingSensor{engine: engine, proc: proc, nativeScale: uint32(numPixels)}
}

// poll runs the acquisition engine's stall-recovery check and, if a
// new frame completed, the edge detector, latching the result for the
// next plunger.Pipeline.Tick call.
func (s *imagingSensor) poll() {
	s.engine.Task()
	frame := s.engine.Snapshot()
	if frame.TimestampUS == s.ts {
		return
	}
	if pos, ok := s.proc.Process(frame.Pixels()); ok {
		s.pos, s.ts, s.ready = pos, frame.TimestampUS, true
	}
}

func (s *imagingSensor) IsReady() bool { return s.ready }

func (s *imagingSensor) ReadRaw() rawsample.Raw {
	s.ready = false
	return rawsample.Raw{TimestampUS: s.ts, Position: uint32(s.pos)}
}

func (s *imagingSensor) NativeScale() uint32 { return s.nativeScale }

// WantsGenericJitterFilter is false: FrameProcessor's scan modes
// already perform edge-detection-appropriate filtering internally.
func (s *imagingSensor) WantsGenericJitterFilter() bool { return false }

// AutoZero is a no-op: the imaging sensor reports an absolute position
// off the dark/bright transition, not a counter to re-center.
func (s *imagingSensor) AutoZero() {}
