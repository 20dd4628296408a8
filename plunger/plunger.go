// Package plunger implements the plunger subsystem: sensor-agnostic
// pipeline that turns raw sensor samples into normalized z/z0/speed
// HID values and a firing-event state, per spec.md §4.B.
package plunger

import (
	"pincab.dev/rawsample"
)

// Calibration is the persisted per-sensor calibration blob, spec.md §3.
type Calibration = rawsample.Calibration

// Raw is one timestamped raw sensor reading, spec.md §3.
type Raw = rawsample.Raw

// ZWithTime is a normalized, timestamped logical-axis sample, spec.md §3.
type ZWithTime = rawsample.ZWithTime

// Sensor is the capability set spec.md §9 Design Notes calls for: a
// single narrow interface covering every plunger sensor variant
// (imaging, quadrature, potentiometer, proximity/ToF) instead of a
// class hierarchy.
type Sensor interface {
	// IsReady reports whether a new raw sample is available.
	IsReady() bool
	// ReadRaw consumes the available sample.
	ReadRaw() Raw
	// NativeScale is the sensor's maximum native raw_position value,
	// used for orientation reversal (raw <- native_scale - raw).
	NativeScale() uint32
	// WantsGenericJitterFilter reports whether the pipeline should
	// apply its own jitter filter, or whether the driver already
	// performs equivalent filtering internally (as imaging-sensor edge
	// detection effectively does).
	WantsGenericJitterFilter() bool
	// AutoZero asks the sensor to re-zero its internal notion of
	// position (meaningful for quadrature counters; a no-op for
	// absolute-position sensors).
	AutoZero()
}

// Store is the calibration persistence collaborator, spec.md §6: an
// opaque blob keyed by sensor type name. Out of core scope per
// spec.md §1; the core only calls it.
type Store interface {
	Load(sensorName string) (Calibration, bool, error)
	Save(sensorName string, cal Calibration) error
}

// Config holds the per-device tunables a configuration loader (outside
// this core) populates.
type Config struct {
	// ReverseOrientation applies raw <- native_scale - raw before
	// calibration.
	ReverseOrientation bool
	// ManualScalePercent scales the final z value; 100 means no extra
	// scaling.
	ManualScalePercent int
	// FiringTimeLimitUS is the Moving-state inner continuation limit;
	// 0 selects defaultFiringTimeLimitUS.
	FiringTimeLimitUS uint32
	// JitterWindowSize is the hysteresis window width passed to
	// JitterFilter when the sensor requests generic filtering.
	JitterWindowSize uint32
	// AutoZeroEnabled enables the auto-zero-after-inactivity behavior.
	AutoZeroEnabled bool
	// AutoZeroIntervalUS is how long the reported z must stay
	// unchanged before auto-zero fires.
	AutoZeroIntervalUS uint64
	// SensorName keys the calibration blob in Store.
	SensorName string
}

// calDurationUS is the wall-clock timeout for calibration mode, spec.md §5.
const calDurationUS = 15_000_000

// Pipeline is the per-plunger pipeline state, spec.md §4.B.
type Pipeline struct {
	sensor Sensor
	store  Store
	cfg    Config

	cal Calibration

	jitter *JitterFilter

	z0Prv, z0Cur, z0Nxt ZWithTime
	speedPrv, speedNxt  int16

	fm firingMachine

	// Calibration-mode accumulators.
	calActive       bool
	calStartUS      uint64
	calMinSeen      uint32
	calMaxSeen      uint32
	calZeroSum      uint64
	calZeroCount    uint64
	calLowStartUS   uint64
	calLowStartPos  uint32
	calLowActive    bool
	calFireStartUS  uint64
	calFiringSum    uint64
	calFiringCount  uint64
	calMovingSinceUS uint64
	calWasMoving    bool

	// Auto-zero bookkeeping.
	lastReportedZ     int16
	lastChangeUS      uint64
	lastChangeValid   bool
}

// New builds a pipeline for sensor, loading calibration from store if
// store is non-nil and a blob for cfg.SensorName exists.
func New(sensor Sensor, store Store, cfg Config) *Pipeline {
	p := &Pipeline{
		sensor: sensor,
		store:  store,
		cfg:    cfg,
	}
	if cfg.JitterWindowSize == 0 {
		p.jitter = NewJitterFilter(4)
	} else {
		p.jitter = NewJitterFilter(cfg.JitterWindowSize)
	}
	if store != nil {
		if cal, ok, err := store.Load(cfg.SensorName); err == nil && ok {
			p.cal = cal
		}
	}
	return p
}

// Calibration returns the pipeline's current calibration data.
func (p *Pipeline) Calibration() Calibration { return p.cal }

// StartCalibration enters calibration mode, resetting the excursion
// trackers. Calibration mode times out after calDurationUS regardless
// of input activity (spec.md §5).
func (p *Pipeline) StartCalibration(nowUS uint64) {
	p.calActive = true
	p.calStartUS = nowUS
	p.calMinSeen = ^uint32(0)
	p.calMaxSeen = 0
	p.calZeroSum = 0
	p.calZeroCount = 0
	p.calLowActive = false
	p.calFiringSum = 0
	p.calFiringCount = 0
	p.calWasMoving = false
	p.fm.calibrating = true
}

// CalibrationActive reports whether calibration mode is running.
func (p *Pipeline) CalibrationActive() bool { return p.calActive }

// Tick runs one main-loop iteration of the plunger pipeline: spec.md
// §4.B steps 1-7 plus the firing-event state machine, Z0 hold overlay,
// and auto-zero. It returns ok=false when there was nothing to do
// (sensor not ready, or the sample was dropped by the 1ms spacing
// rule), in which case z/z0/speed/state retain their prior values.
func (p *Pipeline) Tick(nowUS uint64) (z ZWithTime, z0 ZWithTime, speed int16, state FiringState, ok bool) {
	if p.calActive && nowUS-p.calStartUS >= calDurationUS {
		p.finishCalibration()
	}

	if !p.sensor.IsReady() {
		return p.currentOutputs()
	}
	raw := p.sensor.ReadRaw()

	nativeScale := p.sensor.NativeScale()
	rawPos := raw.Position
	if p.cfg.ReverseOrientation {
		rawPos = subClampU32(nativeScale, rawPos)
	}
	if p.sensor.WantsGenericJitterFilter() {
		rawPos = p.jitter.Filter(rawPos)
	}

	if p.calActive {
		p.updateCalibrationExcursion(rawPos, raw.TimestampUS)
	}

	zNew := p.applyCal(rawPos, raw.TimestampUS)

	// Step 5: enforce >=1ms spacing between samples used for speed.
	if p.z0Nxt.TimestampUS != 0 && zNew.TimestampUS-p.z0Nxt.TimestampUS < 1000 {
		return p.currentOutputs()
	}

	// Step 6: shift Z0 history.
	p.z0Prv = p.z0Cur
	p.z0Cur = p.z0Nxt
	p.z0Nxt = zNew
	p.speedPrv = p.speedNxt

	// Step 7: central-difference speed, logical-Z-units per 10ms.
	dt := int64(p.z0Nxt.TimestampUS) - int64(p.z0Prv.TimestampUS)
	if dt <= 0 {
		p.speedNxt = 0
	} else {
		dz := int64(p.z0Nxt.Z) - int64(p.z0Prv.Z)
		p.speedNxt = clipI16(dz * 10000 / dt)
	}

	if p.calActive {
		p.trackFiringTimeDuringCalibration(nowUS)
	}

	reportedZ, fired := p.fm.advance(nowUS, p.z0Cur.Z, p.speedNxt, p.zMin(), p.cfg.FiringTimeLimitUS)
	if fired && p.calActive {
		p.recordFiringDuration(nowUS)
	}

	z0Reported, speedReported, holding := p.fm.updateZ0Hold(nowUS, p.z0Prv.Z, p.z0Cur.Z, p.speedPrv)
	reportedSpeed := p.speedNxt
	if holding {
		reportedSpeed = speedReported
	}

	p.applyAutoZero(nowUS, reportedZ)

	return ZWithTime{TimestampUS: nowUS, Z: reportedZ},
		ZWithTime{TimestampUS: nowUS, Z: z0Reported},
		reportedSpeed,
		p.fm.state,
		true
}

func (p *Pipeline) currentOutputs() (ZWithTime, ZWithTime, int16, FiringState, bool) {
	return ZWithTime{TimestampUS: p.z0Nxt.TimestampUS, Z: p.lastReportedZ},
		p.z0Cur, p.speedNxt, p.fm.state, false
}

// applyCal computes z_new per spec.md §4.B step 4: a single linear
// mapping F = 32767*2^16/(max-zero) applied uniformly to both halves.
func (p *Pipeline) applyCal(rawPos uint32, tUS uint64) ZWithTime {
	if !p.cal.Calibrated || p.cal.Max <= p.cal.Zero {
		return ZWithTime{TimestampUS: tUS, Z: 0}
	}
	span := int64(p.cal.Max - p.cal.Zero)
	// F in 16.16 fixed point: F = 32767 * 2^16 / span.
	fFixed := int64(32767) << 16 / span
	delta := int64(rawPos) - int64(p.cal.Zero)
	scaled := (delta*fFixed + 1<<15) >> 16
	scalePct := p.cfg.ManualScalePercent
	if scalePct == 0 {
		scalePct = 100
	}
	scaled = scaled * int64(scalePct) / 100
	return ZWithTime{TimestampUS: tUS, Z: clipI16(scaled)}
}

// zMin is the Z-space value of the calibrated minimum raw position —
// the "peak forward" clamp the firing table's Fired state reports.
// Forward overtravel sensors report a raw position below cal.Zero, so
// this is ordinarily negative once run through the same linear
// mapping applyCal uses for any other sample.
func (p *Pipeline) zMin() int16 {
	return p.applyCal(p.cal.Min, 0).Z
}

func subClampU32(a, b uint32) uint32 {
	if b > a {
		return 0
	}
	return a - b
}
