package imaging

// ScanMode selects which of the three edge-detection algorithms from
// spec.md §4.B.2 runs against a pixel frame.
type ScanMode int

const (
	// ScanSustainedSlope is mode 0: binary-search for the brightness
	// transition, then confirm a sustained monotonic decrease into the
	// dark reference. Tolerant of motion blur.
	ScanSustainedSlope ScanMode = iota
	// ScanFixedGapGradient is mode 1: steepest gradient across a fixed
	// 2-pixel gap between two 5-pixel windows.
	ScanFixedGapGradient
	// ScanSpeedGapGradient is mode 2: as mode 1, but the gap scales
	// with the plunger's last observed speed.
	ScanSpeedGapGradient
)

const (
	gradientWindowSize = 5
	fixedGapWidth      = 2
	minGradientGap     = 2
	maxGradientGap     = 175

	slopeWindowSize  = 8
	slopeRequiredRun = 10

	// darkReferenceFirst/Last bound the TCD1103's physically
	// light-shielded reference pixels, spec.md §4.B.2.
	darkReferenceFirst = 16
	darkReferenceLast  = 28

	minDarkBrightSpan = 20
)

// EdgeDetector runs one of the three scan-mode algorithms against
// successive pixel frames, remembering the last two returned positions
// for mode 2's speed-proportional gap.
type EdgeDetector struct {
	havePos, havePrevPos bool
	pos, prevPos         int
}

// Detect returns the pixel coordinate of the plunger edge in pixels,
// given the frame's dark and bright reference levels. ok is false if
// the chosen algorithm found no qualifying transition.
func (d *EdgeDetector) Detect(mode ScanMode, pixels []byte, bright, dark byte) (position int, ok bool) {
	var pos int
	switch mode {
	case ScanSustainedSlope:
		pos, ok = detectSustainedSlope(pixels, bright, dark)
	case ScanFixedGapGradient:
		pos, ok = detectGradient(pixels, fixedGapWidth)
	case ScanSpeedGapGradient:
		gap := minGradientGap
		if d.havePos && d.havePrevPos {
			gap = clipInt(absInt(d.pos-d.prevPos), minGradientGap, maxGradientGap)
		}
		pos, ok = detectGradient(pixels, gap)
	default:
		return 0, false
	}
	if !ok {
		return 0, false
	}
	d.prevPos, d.havePrevPos = d.pos, d.havePos
	d.pos, d.havePos = pos, true
	return pos, true
}

// detectGradient implements scan modes 1 and 2: two gradientWindowSize
// rolling windows separated by a gap-pixel span; return the gap centre
// with the largest positive (bright-to-dark) difference. Rejects if
// the best slope falls under 10*windowSize.
func detectGradient(pixels []byte, gap int) (int, bool) {
	span := 2*gradientWindowSize + gap
	if len(pixels) < span {
		return 0, false
	}
	bestDiff := -1
	bestCenter := 0
	for i := 0; i+span <= len(pixels); i++ {
		left := windowSum(pixels[i : i+gradientWindowSize])
		right := windowSum(pixels[i+gradientWindowSize+gap : i+span])
		diff := left - right
		if diff > bestDiff {
			bestDiff = diff
			bestCenter = i + gradientWindowSize + gap/2
		}
	}
	if bestDiff < 10*gradientWindowSize {
		return 0, false
	}
	return bestCenter, true
}

// detectSustainedSlope implements scan mode 0. It scans the
// slopeWindowSize rolling average, binary-searches for the first
// position whose average has crossed the bright/dark midpoint, then
// requires the average to keep decreasing for slopeRequiredRun
// consecutive positions, ending at or below a near-dark threshold.
func detectSustainedSlope(pixels []byte, bright, dark byte) (int, bool) {
	if len(pixels) < slopeWindowSize+slopeRequiredRun {
		return 0, false
	}
	midpoint := (int(bright) + int(dark)) / 2
	nearDark := int(dark) + (int(bright)-int(dark))/5

	navgs := len(pixels) - slopeWindowSize + 1
	avgs := make([]int, navgs)
	sum := 0
	for i := 0; i < slopeWindowSize; i++ {
		sum += int(pixels[i])
	}
	avgs[0] = sum / slopeWindowSize
	for i := 1; i < navgs; i++ {
		sum += int(pixels[i+slopeWindowSize-1]) - int(pixels[i-1])
		avgs[i] = sum / slopeWindowSize
	}

	lo, hi := 0, navgs
	for lo < hi {
		mid := (lo + hi) / 2
		if avgs[mid] <= midpoint {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	if lo == navgs {
		return 0, false
	}
	crossed := lo

	runStart := crossed
	runLen := 1
	for i := crossed + 1; i < navgs; i++ {
		if avgs[i] > avgs[i-1] {
			break
		}
		runLen++
		if runLen >= slopeRequiredRun && avgs[i] <= nearDark {
			return runStart + slopeWindowSize/2, true
		}
	}
	return 0, false
}

func windowSum(w []byte) int {
	s := 0
	for _, b := range w {
		s += int(b)
	}
	return s
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func clipInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// darkReferenceLevel averages the TCD1103's light-shielded reference
// pixels [16..28], spec.md §4.B.2.
func darkReferenceLevel(pixels []byte) (byte, bool) {
	if len(pixels) <= darkReferenceLast {
		return 0, false
	}
	sum := 0
	n := 0
	for i := darkReferenceFirst; i <= darkReferenceLast; i++ {
		sum += int(pixels[i])
		n++
	}
	return byte(sum / n), true
}

// brightLevel takes the frame's brightest pixel as the bright
// reference level.
func brightLevel(pixels []byte) byte {
	var max byte
	for _, b := range pixels {
		if b > max {
			max = b
		}
	}
	return max
}

// FrameProcessor wraps an EdgeDetector with the dark-reference
// qualification spec.md §4.B.2 requires: reject frames whose
// dark-to-bright span is too small to trust, and fall back to the
// last valid position instead of reporting garbage.
type FrameProcessor struct {
	mode        ScanMode
	detector    EdgeDetector
	lastPos     int
	haveLastPos bool
}

func NewFrameProcessor(mode ScanMode) *FrameProcessor {
	return &FrameProcessor{mode: mode}
}

// Process returns the plunger's pixel position for one frame. valid
// is false only if no position has ever been found yet.
func (f *FrameProcessor) Process(pixels []byte) (position int, valid bool) {
	dark, ok := darkReferenceLevel(pixels)
	if !ok {
		return f.lastPos, f.haveLastPos
	}
	bright := brightLevel(pixels)
	if int(bright)-int(dark) < minDarkBrightSpan {
		return f.lastPos, f.haveLastPos
	}
	pos, ok := f.detector.Detect(f.mode, pixels, bright, dark)
	if !ok {
		return f.lastPos, f.haveLastPos
	}
	f.lastPos, f.haveLastPos = pos, true
	return pos, true
}
