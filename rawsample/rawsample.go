// Package rawsample defines the types shared between sensor drivers and
// the plunger and nudge pipelines that consume them.
package rawsample

// Raw is one timestamped reading off a sensor, in the sensor's native
// quanta. Timestamp is microseconds since boot on a monotonic 64-bit
// counter; it never needs to handle wraparound within a device's
// lifetime.
type Raw struct {
	TimestampUS uint64
	Position    uint32
}

// Calibration holds the per-sensor calibration data persisted across
// sessions. Invariant when Calibrated is true: Min <= Zero < Max.
// SensorPrivate is opaque to everything outside the owning sensor
// driver.
type Calibration struct {
	Calibrated           bool
	Min, Zero, Max       uint32
	FiringTimeMeasuredUS uint32
	SensorPrivate        [8]uint32
}

// Valid reports whether the calibration satisfies the Min <= Zero < Max
// invariant. Uncalibrated data is always considered valid (nothing to
// check).
func (c Calibration) Valid() bool {
	if !c.Calibrated {
		return true
	}
	return c.Min <= c.Zero && c.Zero < c.Max
}

// ZWithTime is a normalized logical axis sample: Z == 0 at rest,
// +32767 at maximum retraction, negative forward of rest.
type ZWithTime struct {
	TimestampUS uint64
	Z           int16
}

// ClipI16 saturates v into the int16 range.
func ClipI16(v int64) int16 {
	switch {
	case v > 32767:
		return 32767
	case v < -32768:
		return -32768
	default:
		return int16(v)
	}
}

// ClipU8 saturates v into the uint8 range.
func ClipU8(v int64) uint8 {
	switch {
	case v > 255:
		return 255
	case v < 0:
		return 0
	default:
		return uint8(v)
	}
}
