package plunger

// JitterFilter is the hysteresis window filter from spec.md §4.B.1.
// It holds its output constant across small input wobble and only
// moves when the input escapes the current window, reporting the
// window's center rather than the raw input.
type JitterFilter struct {
	size        uint32
	low, high   uint32
	lastPre     uint32
	lastPost    uint32
	initialized bool
}

// NewJitterFilter returns a filter with the given window size. The
// window isn't centered until the first Filter call.
func NewJitterFilter(size uint32) *JitterFilter {
	return &JitterFilter{size: size}
}

// SeedWindow preloads the filter's window and output directly, useful
// when resuming from a known state (tests, or carrying calibration
// forward across a mode change) instead of deriving it from the first
// sample.
func (f *JitterFilter) SeedWindow(low, high uint32) {
	f.low, f.high = low, high
	f.lastPost = (low + high) / 2
	f.initialized = true
}

// Filter applies one input sample and returns the filtered output:
// the center of the current window, held constant until x escapes it.
func (f *JitterFilter) Filter(x uint32) uint32 {
	if !f.initialized {
		f.low = x
		f.high = x + f.size
		f.lastPost = (f.low + f.high) / 2
		f.initialized = true
		f.lastPre = x
		return f.lastPost
	}
	f.lastPre = x
	switch {
	case x < f.low:
		f.low = x
		f.high = x + f.size
		f.lastPost = (f.low + f.high) / 2
	case x > f.high:
		f.high = x
		if x >= f.size {
			f.low = x - f.size
		} else {
			f.low = 0
		}
		f.lastPost = (f.low + f.high) / 2
	}
	return f.lastPost
}

// Window returns the current [low, high] bounds, mostly useful for
// tests asserting the containment property (spec.md §8 property 3).
func (f *JitterFilter) Window() (low, high uint32) {
	return f.low, f.high
}
