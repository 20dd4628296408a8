// Package nudge implements the cabinet-accelerometer pipeline from
// spec.md §4.C: orientation correction, rolling-average auto-centering,
// a DC-blocker+hysteresis filter per axis, velocity integration with
// half-life decay, and on-demand per-view position snapshots.
package nudge

// Sample is one raw accelerometer reading in device-native units.
type Sample struct {
	TimestampUS uint64
	X, Y, Z     int32
}

// OrientationMatrix rotates a raw Sample into the cabinet's logical
// axes. Entries are always in {-1, 0, 1}: a pure axis permutation and
// sign flip, never a general rotation, matching spec.md §4.C.
type OrientationMatrix [3][3]int8

// Identity is the no-op orientation.
var Identity = OrientationMatrix{
	{1, 0, 0},
	{0, 1, 0},
	{0, 0, 1},
}

// Apply rotates (x, y, z) through the matrix.
func (m OrientationMatrix) Apply(x, y, z int32) (int32, int32, int32) {
	row := func(r [3]int8) int32 {
		return int32(r[0])*x + int32(r[1])*y + int32(r[2])*z
	}
	return row(m[0]), row(m[1]), row(m[2])
}

// View accumulates a running sum of oriented samples between snapshots
// and reports their average on demand, per spec.md §4.C "per-view
// (x, y, z) snapshot".
type View struct {
	sumX, sumY, sumZ int64
	n                int64
}

// Feed folds one oriented sample into the view's running sum.
func (v *View) Feed(x, y, z int32) {
	v.sumX += int64(x)
	v.sumY += int64(y)
	v.sumZ += int64(z)
	v.n++
}

// Snapshot reports the average since the last snapshot, clipped to
// i16, and resets the accumulator. Reports (0, 0, 0) if no samples
// were fed since the last snapshot.
func (v *View) Snapshot() (x, y, z int16) {
	if v.n == 0 {
		return 0, 0, 0
	}
	x = clipI16(v.sumX / v.n)
	y = clipI16(v.sumY / v.n)
	z = clipI16(v.sumZ / v.n)
	v.sumX, v.sumY, v.sumZ, v.n = 0, 0, 0, 0
	return x, y, z
}

func clipI16(v int64) int16 {
	switch {
	case v > 32767:
		return 32767
	case v < -32768:
		return -32768
	default:
		return int16(v)
	}
}
