package nudge

import "math"

// dcBlocker implements the per-axis high-pass filter from spec.md
// §4.C: y_n = x_n - x_{n-1} + alpha*y_{n-1}, alpha = exp(-dt/tau). A
// zero tau disables the filter entirely (output tracks input exactly),
// the escape hatch spec.md calls out explicitly.
type dcBlocker struct {
	tauUS    float64
	lastX    float64
	lastY    float64
	hasLastX bool
}

func newDCBlocker(tauUS float64) *dcBlocker {
	return &dcBlocker{tauUS: tauUS}
}

func (f *dcBlocker) Filter(x float64, dtUS float64) float64 {
	if f.tauUS <= 0 {
		f.lastX, f.hasLastX = x, true
		return x
	}
	if !f.hasLastX {
		f.lastX, f.hasLastX = x, true
		f.lastY = 0
		return 0
	}
	alpha := math.Exp(-dtUS / f.tauUS)
	y := x - f.lastX + alpha*f.lastY
	f.lastX = x
	f.lastY = y
	return y
}

// hysteresisWindow is the jitter filter of spec.md §4.B.1, reused
// verbatim by the nudge pipeline's post-DC-blocker stage (§4.C: "apply
// the jitter-hysteresis window of the configured size to the output").
// It operates on signed values since the DC-blocker output straddles
// zero, unlike the plunger's unsigned raw_position.
type hysteresisWindow struct {
	size        int32
	low, high   int32
	last        int32
	initialized bool
}

func newHysteresisWindow(size int32) *hysteresisWindow {
	return &hysteresisWindow{size: size}
}

func (f *hysteresisWindow) Filter(x int32) int32 {
	if !f.initialized {
		f.low, f.high = x, x+f.size
		f.last = (f.low + f.high) / 2
		f.initialized = true
		return f.last
	}
	switch {
	case x < f.low:
		f.low = x
		f.high = x + f.size
		f.last = (f.low + f.high) / 2
	case x > f.high:
		f.high = x
		f.low = x - f.size
		f.last = (f.low + f.high) / 2
	}
	return f.last
}

// velocityIntegrator implements spec.md §4.C velocity integration:
// v <- v*decay + (x-center)*convFactor, decay = 0.5^(dt/halfLife).
type velocityIntegrator struct {
	halfLifeUS float64
	convFactor float64
	v          float64
}

func newVelocityIntegrator(halfLifeUS, convFactor float64) *velocityIntegrator {
	return &velocityIntegrator{halfLifeUS: halfLifeUS, convFactor: convFactor}
}

func (vi *velocityIntegrator) Integrate(x, center int32, dtUS float64) int16 {
	decay := 1.0
	if vi.halfLifeUS > 0 {
		decay = math.Pow(0.5, dtUS/vi.halfLifeUS)
	}
	vi.v = vi.v*decay + float64(x-center)*vi.convFactor
	return vi.last()
}

func (vi *velocityIntegrator) last() int16 {
	return clipI16(int64(vi.v))
}
