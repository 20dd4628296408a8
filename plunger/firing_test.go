package plunger

import "testing"

// zMin for the S1 scenario: cal={min:-2000, zero:0, max:32767}. Tests
// below exercise firingMachine directly (below the Pipeline/applyCal
// layer) so the Z-space minimum is simply the int16 value spec.md §8
// gives.
const testZMin = -2000

// S1 from spec.md §8, run directly against the firing state machine
// using the listed samples as the z0_cur sequence and the
// central-difference speed between neighboring samples, since the
// three-point Z0 history the full Pipeline maintains introduces a
// one-sample bootstrap delay that the scenario's sparse sample list
// isn't dense enough to warm up.
func TestFiringStateMachineScenarioS1(t *testing.T) {
	type sample struct {
		t int64
		z int16
	}
	samples := []sample{
		{0, 16384},
		{1000, 16384},
		{3000, 14000},
		{5000, 8000},
		{7000, 0},
		{9000, -800},
		{11000, 0},
		{200000, 0},
	}
	var fm firingMachine

	type step struct {
		idx       int
		wantZ     int16
		wantState FiringState
	}
	// Only indices 1..6 have a defined central-difference speed.
	steps := []step{
		{1, 16384, StateMoving},
		{2, 16384, StateMoving},
		{3, 16384, StateMoving},
		{4, testZMin, StateFired},
		{5, testZMin, StateFired},
		{6, testZMin, StateFired},
	}
	for _, st := range steps {
		i := st.idx
		speed := clipI16((int64(samples[i+1].z) - int64(samples[i-1].z)) * 10000 / (samples[i+1].t - samples[i-1].t))
		z, _ := fm.advance(uint64(samples[i].t), samples[i].z, speed, testZMin, 50000)
		if z != st.wantZ {
			t.Fatalf("step %d (t=%d): z = %d, want %d", i, samples[i].t, z, st.wantZ)
		}
		if fm.state != st.wantState {
			t.Fatalf("step %d (t=%d): state = %v, want %v", i, samples[i].t, fm.state, st.wantState)
		}
	}

	// Fired -> Settling at entry+40000 (fm.tStateUS was set to 7000 at
	// the Moving->Fired transition above).
	z, _ := fm.advance(48000, 0, 0, testZMin, 50000)
	if z != 0 || fm.state != StateSettling {
		t.Fatalf("after 48000: z=%d state=%v, want z=0 state=Settling", z, fm.state)
	}

	// Settling -> None at entry+100000.
	z, _ = fm.advance(148001, 0, 0, testZMin, 50000)
	if z != 0 || fm.state != StateNone {
		t.Fatalf("after 148001: z=%d state=%v, want z=0 state=None", z, fm.state)
	}

	// Once back in None, z tracks z0_cur directly.
	z, _ = fm.advance(150000, 123, 0, testZMin, 50000)
	if z != 123 || fm.state != StateNone {
		t.Fatalf("steady state: z=%d state=%v, want z=123 state=None", z, fm.state)
	}
}

// Property 5: every entry to Moving exits to None or Fired within
// firing_time_limit of entry.
func TestFiringStateTermination(t *testing.T) {
	var fm firingMachine
	const limit = 50000

	// Arm Moving.
	z, _ := fm.advance(0, 6000, -1, testZMin, limit)
	if fm.state != StateMoving {
		t.Fatalf("expected Moving, got %v (z=%d)", fm.state, z)
	}

	// Keep "still forward" (z0_cur never crosses <=0) well past the
	// limit; the state must time out to None rather than loop forever.
	z, _ = fm.advance(limit+1, 6000, -1, testZMin, limit)
	if fm.state != StateNone {
		t.Fatalf("Moving should have timed out to None, got %v (z=%d)", fm.state, z)
	}
}

func TestFiringMovingExitsToFiredOnCrossingZero(t *testing.T) {
	var fm firingMachine
	fm.advance(0, 6000, -1, testZMin, 50000)
	if fm.state != StateMoving {
		t.Fatalf("expected Moving")
	}
	z, fired := fm.advance(2000, -100, -5000, testZMin, 50000)
	if fm.state != StateFired || !fired {
		t.Fatalf("expected Fired with fired=true, got state=%v fired=%v", fm.state, fired)
	}
	if z != testZMin {
		t.Fatalf("Fired z = %d, want %d", z, testZMin)
	}
}

func TestZ0HoldLatchesBouncePeak(t *testing.T) {
	var fm firingMachine
	fm.state = StateFired
	fm.tStateUS = 0

	// Detect the bounce: z0_prv < 0 and z0_cur > z0_prv.
	z0, speed, holding := fm.updateZ0Hold(1000, -500, -100, -9000)
	if !holding || z0 != -500 || speed != -9000 {
		t.Fatalf("updateZ0Hold = (%d,%d,%v), want (-500,-9000,true)", z0, speed, holding)
	}
	// Still within the hold window.
	z0, _, holding = fm.updateZ0Hold(1000+z0HoldUS-1, 1, 2, 0)
	if !holding || z0 != -500 {
		t.Fatalf("hold should still be active just before it expires")
	}
	// Hold expires.
	z0, _, holding = fm.updateZ0Hold(1000+z0HoldUS, 1, 2, 0)
	if holding || z0 != 2 {
		t.Fatalf("hold should have expired, got z0=%d holding=%v", z0, holding)
	}
}
