package plunger

// FiringState enumerates the launch-event state machine from
// spec.md §4.B.
type FiringState int

const (
	StateNone FiringState = iota
	StateMoving
	StateFired
	StateSettling
)

func (s FiringState) String() string {
	switch s {
	case StateNone:
		return "None"
	case StateMoving:
		return "Moving"
	case StateFired:
		return "Fired"
	case StateSettling:
		return "Settling"
	default:
		return "Unknown"
	}
}

const (
	// restThreshold is the "1/6 of full retraction" crossing that
	// arms the Moving state, per spec.md §4.B table.
	restThresholdNumerator   = 1
	restThresholdDenominator = 6

	// firedHoldUS and settlingHoldUS are the Fired and Settling state
	// durations from spec.md §4.B table.
	firedHoldUS    = 40_000
	settlingHoldUS = 100_000

	// defaultFiringTimeLimitUS is the default Moving-state timeout.
	defaultFiringTimeLimitUS = 50_000

	// calibrationFiringTimeLimitUS replaces the configured Moving-state
	// time limit while calibration mode is active. The "still forward
	// and within the limit" test in advance is the only Moving timeout,
	// so during calibration a Moving state can last up to this long
	// before falling back to None.
	calibrationFiringTimeLimitUS = 100_000

	// z0HoldUS is the duration the Z0 hold overlay latches z0/speed at
	// the detected bounce peak, per spec.md §4.B.
	z0HoldUS = 40_000
)

// firingMachine tracks the launch-event state machine and the Z0 hold
// overlay. It is embedded in Pipeline rather than exported standalone
// because it reads the rolling Z0 history the pipeline maintains.
type firingMachine struct {
	state      FiringState
	tStateUS   uint64
	frozenZ    int16 // z at start of the current forward run, for Moving
	calibrating bool

	z0HoldActive   bool
	z0HoldUntilUS  uint64
	z0HoldValue    int16
	speedHoldValue int16
}

// firingTimeLimit returns the Moving-state inner continuation limit in
// effect right now: widened during calibration per
// calibrationFiringTimeLimitUS, otherwise configured.
func (fm *firingMachine) firingTimeLimit(configured uint32) uint64 {
	if fm.calibrating {
		return calibrationFiringTimeLimitUS
	}
	if configured == 0 {
		return defaultFiringTimeLimitUS
	}
	return uint64(configured)
}

// advance runs one tick of the firing-event state machine against
// z0_cur — the middle point of the three-sample Z0 history, delayed
// one sample behind the newest reading so it lines up with the
// central-difference speed estimate — returning the z value to report
// and whether a firing event (Moving -> Fired transition) completed
// this tick, which the caller uses to fold the observed duration into
// calibration's running average of release times.
func (fm *firingMachine) advance(now uint64, z0cur int16, speed int16, zMin int16, firingTimeLimit uint32) (z int16, fired bool) {
	elapsed := now - fm.tStateUS
	restThreshold := int16(32767 * restThresholdNumerator / restThresholdDenominator)

	switch fm.state {
	case StateNone:
		if z0cur >= restThreshold && speed < 0 {
			fm.enter(StateMoving, now)
			fm.frozenZ = z0cur
			return fm.frozenZ, false
		}
		return z0cur, false

	case StateMoving:
		if z0cur <= 0 {
			fm.enter(StateFired, now)
			return zMin, true
		}
		if speed < 0 && elapsed < fm.firingTimeLimit(firingTimeLimit) {
			return fm.frozenZ, false
		}
		fm.enter(StateNone, now)
		return z0cur, false

	case StateFired:
		if elapsed < firedHoldUS {
			return zMin, false
		}
		fm.enter(StateSettling, now)
		return 0, false

	case StateSettling:
		if elapsed < settlingHoldUS {
			return 0, false
		}
		fm.enter(StateNone, now)
		return z0cur, false
	}
	return z0cur, false
}

func (fm *firingMachine) enter(s FiringState, now uint64) {
	fm.state = s
	fm.tStateUS = now
}

// updateZ0Hold overlays the Z0-hold rule on top of whatever the caller
// would otherwise report for the uncorrected z0/speed pair: when the
// first forward bounce is detected it latches the peak-forward sample
// for z0HoldUS so a host polling no faster than 40ms still sees it.
func (fm *firingMachine) updateZ0Hold(now uint64, z0prv, z0cur, speedPrv int16) (z0Reported, speedReported int16, holding bool) {
	bounceDetected := (fm.state == StateMoving || fm.state == StateFired) &&
		z0prv < 0 && z0cur > z0prv
	if bounceDetected && !fm.z0HoldActive {
		fm.z0HoldActive = true
		fm.z0HoldUntilUS = now + z0HoldUS
		fm.z0HoldValue = z0prv
		fm.speedHoldValue = speedPrv
	}
	if fm.z0HoldActive {
		if now >= fm.z0HoldUntilUS {
			fm.z0HoldActive = false
		} else {
			return fm.z0HoldValue, fm.speedHoldValue, true
		}
	}
	return z0cur, 0, false
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
