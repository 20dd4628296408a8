package nudge

import "testing"

func TestOrientationApplyPermutesAndFlips(t *testing.T) {
	m := OrientationMatrix{
		{0, 1, 0},
		{1, 0, 0},
		{0, 0, -1},
	}
	x, y, z := m.Apply(10, 20, 30)
	if x != 20 || y != 10 || z != -30 {
		t.Fatalf("Apply = (%d,%d,%d), want (20,10,-30)", x, y, z)
	}
}

func TestViewSnapshotAveragesAndResets(t *testing.T) {
	var v View
	v.Feed(10, 20, 30)
	v.Feed(20, 30, 40)
	x, y, z := v.Snapshot()
	if x != 15 || y != 25 || z != 35 {
		t.Fatalf("Snapshot = (%d,%d,%d), want (15,25,35)", x, y, z)
	}
	// Reset after snapshot: a fresh snapshot before any Feed reports 0.
	x, y, z = v.Snapshot()
	if x != 0 || y != 0 || z != 0 {
		t.Fatalf("post-reset Snapshot = (%d,%d,%d), want (0,0,0)", x, y, z)
	}
}

func TestRollingAverageBucketRotation(t *testing.T) {
	r := newRollingAverage(2, 1000)
	r.Feed(0, 10, 0, 0)
	r.Feed(500, 20, 0, 0)
	x, _, _, ok := r.Average()
	if !ok || x != 15 {
		t.Fatalf("Average = %d ok=%v, want 15", x, ok)
	}

	// Crossing into a new bucket keeps the old bucket's contribution
	// until it's rotated out (2 buckets deep).
	r.Feed(1000, 100, 0, 0)
	x, _, _, ok = r.Average()
	if !ok {
		t.Fatalf("expected ok=true")
	}
	// sum = 10+20+100 = 130, n = 3
	if x != 130/3 {
		t.Fatalf("Average = %d, want %d", x, 130/3)
	}

	// Rotate all the way around past both buckets: old data drops out.
	r.Feed(3000, 50, 0, 0)
	x, _, _, ok = r.Average()
	if !ok || x != 50 {
		t.Fatalf("Average after full rotation = %d ok=%v, want 50", x, ok)
	}
}

func TestHysteresisWindowContainment(t *testing.T) {
	f := newHysteresisWindow(15)
	prev := f.Filter(1000)
	inputs := []int32{1000, 1005, 1002, 1020, 1021, 990, 1100}
	for _, x := range inputs {
		low, high := f.low, f.high
		out := f.Filter(x)
		if out != prev {
			if x >= low && x <= high {
				t.Fatalf("output changed but %d stayed within [%d,%d]", x, low, high)
			}
		}
		prev = out
	}
}

func TestDCBlockerZeroTauPassesThrough(t *testing.T) {
	f := newDCBlocker(0)
	if got := f.Filter(500, 1000); got != 500 {
		t.Fatalf("Filter = %v, want 500 with tau=0", got)
	}
	if got := f.Filter(-200, 1000); got != -200 {
		t.Fatalf("Filter = %v, want -200 with tau=0", got)
	}
}

func TestDCBlockerRemovesConstantBias(t *testing.T) {
	f := newDCBlocker(1000)
	// Seed.
	f.Filter(1000, 0)
	// A constant input after seeding should settle toward zero output:
	// each step contributes x_n - x_{n-1} == 0, so y decays by alpha.
	var last float64 = 1 << 30
	for i := 0; i < 20; i++ {
		last = f.Filter(1000, 1000)
	}
	if last < -1 || last > 1 {
		t.Fatalf("DC blocker did not settle near zero on constant input, got %v", last)
	}
}

func TestVelocityIntegratorDecaysTowardZeroWithoutInput(t *testing.T) {
	vi := newVelocityIntegrator(1000, 1)
	v := vi.Integrate(100, 0, 0) // seed v = 100
	if v != 100 {
		t.Fatalf("seed Integrate = %d, want 100", v)
	}
	// With x=center afterward, decay alone should shrink |v| over time.
	for i := 0; i < 10; i++ {
		v = vi.Integrate(0, 0, 1000)
	}
	if v < 0 {
		v = -v
	}
	if v > 1 {
		t.Fatalf("velocity did not decay toward zero, got %d", v)
	}
}

type fakeAccelSensor struct {
	queue []Sample
}

func (s *fakeAccelSensor) IsReady() bool { return len(s.queue) > 0 }
func (s *fakeAccelSensor) ReadRaw() Sample {
	r := s.queue[0]
	s.queue = s.queue[1:]
	return r
}
func (s *fakeAccelSensor) push(t uint64, x, y, z int32) {
	s.queue = append(s.queue, Sample{TimestampUS: t, X: x, Y: y, Z: z})
}

func TestPipelineAutoCenterAdoptsAfterQuietInterval(t *testing.T) {
	sensor := &fakeAccelSensor{}
	p := New(sensor, Config{
		Orientation:          Identity,
		FullScaleXY:          10000,
		FullScaleZ:           10000,
		AutoCenterIntervalUS: 1_000_000,
	})

	now := uint64(0)
	sensor.push(now, 100, 0, 1000)
	p.Tick(now)
	cx, _, _ := p.Center()
	if cx != 100 {
		t.Fatalf("initial center.x = %d, want 100 (first sample adopted)", cx)
	}

	// Stay within the quiet window (1% of 10000 = 100) for longer than
	// the auto-center interval.
	now += 1_100_000
	sensor.push(now, 110, 0, 1000)
	p.Tick(now)

	cx, _, cz := p.Center()
	if cx == 100 {
		t.Fatalf("center.x should have re-adopted the rolling average after the quiet interval elapsed")
	}
	if cz != 1000 {
		t.Fatalf("center.z = %d, want unchanged 1000", cz)
	}
}

func TestPipelineCenterNowAdoptsManualAverageImmediately(t *testing.T) {
	sensor := &fakeAccelSensor{}
	p := New(sensor, Config{Orientation: Identity, FullScaleXY: 10000, FullScaleZ: 10000})

	sensor.push(0, 50, 60, 70)
	p.Tick(0)
	sensor.push(100, 150, 160, 170)
	p.Tick(100)

	p.CenterNow()
	cx, cy, cz := p.Center()
	if cx != 100 || cy != 110 || cz != 120 {
		t.Fatalf("Center = (%d,%d,%d), want (100,110,120)", cx, cy, cz)
	}
}

func TestCalibratorComputesSigma(t *testing.T) {
	c := NewCalibrator(1000, 3)
	c.Start(0)
	c.Feed(100, 10, 0, 0)
	c.Feed(200, -10, 0, 0)
	c.Feed(300, 10, 0, 0)
	c.Feed(400, -10, 0, 0)
	sigmaX, _, _, ok := c.Result()
	if !ok {
		t.Fatalf("expected ok=true")
	}
	if sigmaX < 9 || sigmaX > 11 {
		t.Fatalf("sigmaX = %v, want close to 10", sigmaX)
	}
	threshold := c.QuietThreshold(sigmaX, 5)
	if threshold < 25 {
		t.Fatalf("QuietThreshold = %v, want >= 3*sigma (~30)", threshold)
	}
}
