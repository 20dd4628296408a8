package nudge

import "math"

// Calibrator runs the user-triggered timed calibration window from
// spec.md §4.C "Calibration": collect sum and sum-of-squares per axis,
// derive mean and standard deviation, and set quiet_threshold =
// max(default, k*sigma), per the supplemented feature in SPEC_FULL.md
// §12 (the original keeps running stats rather than a fixed constant).
type Calibrator struct {
	durationUS uint64
	k          float64

	startUS uint64
	active  bool

	n                int64
	sumX, sumY, sumZ float64
	sqX, sqY, sqZ    float64
}

// NewCalibrator returns a calibrator that runs for durationUS once
// started, deriving quiet_threshold as k standard deviations.
func NewCalibrator(durationUS uint64, k float64) *Calibrator {
	return &Calibrator{durationUS: durationUS, k: k}
}

// Start begins a calibration window at now.
func (c *Calibrator) Start(now uint64) {
	*c = Calibrator{durationUS: c.durationUS, k: c.k, startUS: now, active: true}
}

// Active reports whether a calibration window is running.
func (c *Calibrator) Active() bool { return c.active }

// Feed folds one oriented sample into the running statistics. It is a
// no-op when no calibration window is active.
func (c *Calibrator) Feed(now uint64, x, y, z int32) {
	if !c.active {
		return
	}
	if now-c.startUS >= c.durationUS {
		c.active = false
		return
	}
	fx, fy, fz := float64(x), float64(y), float64(z)
	c.n++
	c.sumX += fx
	c.sumY += fy
	c.sumZ += fz
	c.sqX += fx * fx
	c.sqY += fy * fy
	c.sqZ += fz * fz
}

// Result reports the per-axis standard deviation derived from this
// window's accumulated statistics. Reports ok=false if the window
// never collected a sample.
func (c *Calibrator) Result() (sigmaX, sigmaY, sigmaZ float64, ok bool) {
	if c.n == 0 {
		return 0, 0, 0, false
	}
	n := float64(c.n)
	variance := func(sum, sq float64) float64 {
		mean := sum / n
		v := sq/n - mean*mean
		if v < 0 {
			v = 0
		}
		return v
	}
	return math.Sqrt(variance(c.sumX, c.sqX)),
		math.Sqrt(variance(c.sumY, c.sqY)),
		math.Sqrt(variance(c.sumZ, c.sqZ)),
		true
}

// QuietThreshold combines a default floor with k*sigma, per spec.md
// §4.C: quiet_threshold = max(default, k*sigma).
func (c *Calibrator) QuietThreshold(sigma, defaultThreshold float64) float64 {
	t := c.k * sigma
	if t < defaultThreshold {
		return defaultThreshold
	}
	return t
}
