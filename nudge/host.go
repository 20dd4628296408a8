//go:build !tinygo

package nudge

import "time"

// HostSensor is the host-debug stand-in for a real accelerometer: it
// synthesizes one Sample per Advance call, following the same
// synthetic-source pattern as sensor/imaging.HostSource, so benchhost
// can drive Pipeline.Tick with live readings
// instead of leaving it constructed but idle.
type HostSensor struct {
	profile func(nowUS uint64) (x, y, z int32)

	last  Sample
	ready bool
}

// NewHostSensor builds a synthetic accelerometer. profile computes the
// raw (x, y, z) reading for the current wall-clock time; callers
// typically close over a gentle oscillation to simulate cabinet sway.
func NewHostSensor(profile func(nowUS uint64) (x, y, z int32)) *HostSensor {
	return &HostSensor{profile: profile}
}

// Advance generates the next synthetic sample, as if a new reading had
// just arrived from the bus.
func (s *HostSensor) Advance() {
	nowUS := uint64(time.Now().UnixMicro())
	x, y, z := s.profile(nowUS)
	s.last = Sample{TimestampUS: nowUS, X: x, Y: y, Z: z}
	s.ready = true
}

func (s *HostSensor) IsReady() bool { return s.ready }

func (s *HostSensor) ReadRaw() Sample {
	s.ready = false
	return s.last
}
