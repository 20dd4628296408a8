package nudge

// Sensor is the capability spec.md §4.C's period task calls each tick:
// one raw accelerometer sample per call, gated on readiness exactly
// like the plunger pipeline's sensor capability.
type Sensor interface {
	IsReady() bool
	ReadRaw() Sample
}

// Config holds the per-device tunables a configuration loader
// populates.
type Config struct {
	Orientation OrientationMatrix

	// FullScaleXY/FullScaleZ are the raw-unit full-scale ranges the
	// quiet-threshold percentages are taken against.
	FullScaleXY int32
	FullScaleZ  int32
	// QuietPercentXY/QuietPercentZ default to 1% and 3% of full scale
	// respectively per spec.md §4.C if left at zero.
	QuietPercentXY float64
	QuietPercentZ  float64

	AutoCenterIntervalUS   uint64
	ManualCenterDurationUS uint64

	DCBlockerTauUS       float64
	HysteresisWindowSize int32
	VelocityHalfLifeUS   float64
	VelocityConvFactor   float64
}

const (
	defaultQuietPercentXY   = 1
	defaultQuietPercentZ    = 3
	autoCenterBucketCount   = 4
	autoCenterBucketUS      = 4_000_000
	manualCenterBucketCount = 2
	manualCenterBucketUS    = 500_000
)

// Pipeline is the per-cabinet nudge pipeline state, spec.md §4.C.
type Pipeline struct {
	sensor Sensor
	cfg    Config

	autoRolling   *rollingAverage
	manualRolling *rollingAverage

	centerX, centerY, centerZ int32
	haveCenter                bool

	quietSinceUS uint64
	quietActive  bool

	lastUS   uint64
	haveLast bool

	dcX, dcY, dcZ       *dcBlocker
	hystX, hystY, hystZ *hysteresisWindow
	velX, velY, velZ    *velocityIntegrator

	views []*View

	Calibrator                        *Calibrator
	quietThresholdXY, quietThresholdZ float64
}

// New builds a pipeline for sensor.
func New(sensor Sensor, cfg Config) *Pipeline {
	if cfg.QuietPercentXY == 0 {
		cfg.QuietPercentXY = defaultQuietPercentXY
	}
	if cfg.QuietPercentZ == 0 {
		cfg.QuietPercentZ = defaultQuietPercentZ
	}
	manualDuration := cfg.ManualCenterDurationUS
	if manualDuration == 0 {
		manualDuration = manualCenterBucketUS
	}
	return &Pipeline{
		sensor:           sensor,
		cfg:              cfg,
		autoRolling:      newRollingAverage(autoCenterBucketCount, autoCenterBucketUS),
		manualRolling:    newRollingAverage(manualCenterBucketCount, manualDuration),
		dcX:              newDCBlocker(cfg.DCBlockerTauUS),
		dcY:              newDCBlocker(cfg.DCBlockerTauUS),
		dcZ:              newDCBlocker(cfg.DCBlockerTauUS),
		hystX:            newHysteresisWindow(cfg.HysteresisWindowSize),
		hystY:            newHysteresisWindow(cfg.HysteresisWindowSize),
		hystZ:            newHysteresisWindow(cfg.HysteresisWindowSize),
		velX:             newVelocityIntegrator(cfg.VelocityHalfLifeUS, cfg.VelocityConvFactor),
		velY:             newVelocityIntegrator(cfg.VelocityHalfLifeUS, cfg.VelocityConvFactor),
		velZ:             newVelocityIntegrator(cfg.VelocityHalfLifeUS, cfg.VelocityConvFactor),
		quietThresholdXY: float64(cfg.FullScaleXY) * cfg.QuietPercentXY / 100,
		quietThresholdZ:  float64(cfg.FullScaleZ) * cfg.QuietPercentZ / 100,
	}
}

// NewView registers a new per-consumer accumulator fed every Tick.
func (p *Pipeline) NewView() *View {
	v := &View{}
	p.views = append(p.views, v)
	return v
}

// CenterNow adopts the manual rolling average's current snapshot as
// the new center immediately, per spec.md §12's supplemented manual
// trigger distinct from automatic quiet-period adoption.
func (p *Pipeline) CenterNow() {
	if x, y, z, ok := p.manualRolling.Average(); ok {
		p.centerX, p.centerY, p.centerZ = int32(x), int32(y), int32(z)
		p.haveCenter = true
	}
	p.manualRolling.Reset()
}

// Center returns the currently adopted center.
func (p *Pipeline) Center() (x, y, z int32) {
	return p.centerX, p.centerY, p.centerZ
}

// Velocity returns the current integrated velocity on all three axes,
// clipped to i16.
func (p *Pipeline) Velocity() (vx, vy, vz int16) {
	return p.velX.last(), p.velY.last(), p.velZ.last()
}

// Tick runs one main-loop iteration of the nudge pipeline, spec.md
// §4.C's period task. It returns ok=false if the sensor had no sample
// ready.
func (p *Pipeline) Tick(nowUS uint64) (vx, vy, vz int16, ok bool) {
	if !p.sensor.IsReady() {
		return p.velX.last(), p.velY.last(), p.velZ.last(), false
	}
	raw := p.sensor.ReadRaw()
	x, y, z := p.cfg.Orientation.Apply(raw.X, raw.Y, raw.Z)

	for _, v := range p.views {
		v.Feed(x, y, z)
	}
	p.autoRolling.Feed(nowUS, x, y, z)
	p.manualRolling.Feed(nowUS, x, y, z)
	if p.Calibrator != nil {
		p.Calibrator.Feed(nowUS, x, y, z)
	}

	p.evaluateAutoCenter(nowUS, x, y, z)

	var dtUS float64
	if p.haveLast {
		dtUS = float64(nowUS - p.lastUS)
	}
	p.lastUS = nowUS
	p.haveLast = true

	fx := p.hystX.Filter(int32(p.dcX.Filter(float64(x), dtUS)))
	fy := p.hystY.Filter(int32(p.dcY.Filter(float64(y), dtUS)))
	fz := p.hystZ.Filter(int32(p.dcZ.Filter(float64(z), dtUS)))

	vx = p.velX.Integrate(fx, p.centerX, dtUS)
	vy = p.velY.Integrate(fy, p.centerY, dtUS)
	vz = p.velZ.Integrate(fz, p.centerZ, dtUS)
	return vx, vy, vz, true
}

// evaluateAutoCenter implements spec.md §4.C auto-centering: if the
// current reading stays within the quiet-threshold window around the
// last adopted center for auto_center_interval, adopt the auto rolling
// average's latest snapshot as the new center.
func (p *Pipeline) evaluateAutoCenter(nowUS uint64, x, y, z int32) {
	if !p.haveCenter {
		p.centerX, p.centerY, p.centerZ = x, y, z
		p.haveCenter = true
		p.quietActive = true
		p.quietSinceUS = nowUS
		return
	}
	quiet := absI32(x-p.centerX) <= int32(p.quietThresholdXY) &&
		absI32(y-p.centerY) <= int32(p.quietThresholdXY) &&
		absI32(z-p.centerZ) <= int32(p.quietThresholdZ)
	if !quiet {
		p.quietActive = false
		return
	}
	if !p.quietActive {
		p.quietActive = true
		p.quietSinceUS = nowUS
		return
	}
	interval := p.cfg.AutoCenterIntervalUS
	if interval == 0 {
		return
	}
	if nowUS-p.quietSinceUS < interval {
		return
	}
	if cx, cy, cz, ok := p.autoRolling.Average(); ok {
		p.centerX, p.centerY, p.centerZ = int32(cx), int32(cy), int32(cz)
	}
	p.quietActive = true
	p.quietSinceUS = nowUS
}

func absI32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
