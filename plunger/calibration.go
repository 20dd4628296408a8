package plunger

// Calibration mode tracks excursion extremes and a running "rest
// position" average while the user works the plunger through its full
// range, per spec.md §4.B step 3.
const (
	// restBandPercent / restBandDenominator express the "lower 40%"
	// band the zero-point average is accumulated from.
	restBandPercent     = 40
	restBandDenominator = 100
	// restDwellUS is how long the reading must stay in the lower band
	// with little movement before it's counted toward the zero
	// average.
	restDwellUS = 200_000
	// restMoveTolerancePercent bounds movement (as a fraction of
	// native scale) allowed while still counting as "at rest".
	restMoveTolerancePercent = 1
)

func (p *Pipeline) updateCalibrationExcursion(rawPos uint32, tUS uint64) {
	if rawPos < p.calMinSeen {
		p.calMinSeen = rawPos
	}
	if rawPos > p.calMaxSeen {
		p.calMaxSeen = rawPos
	}

	nativeScale := p.sensor.NativeScale()
	if nativeScale == 0 {
		return
	}
	lowerBand := uint64(nativeScale) * restBandPercent / restBandDenominator
	moveTolerance := uint64(nativeScale) * restMoveTolerancePercent / 100

	if uint64(rawPos) > lowerBand {
		p.calLowActive = false
		return
	}
	if !p.calLowActive {
		p.calLowActive = true
		p.calLowStartUS = tUS
		p.calLowStartPos = rawPos
		return
	}
	moved := absDiffU32(rawPos, p.calLowStartPos)
	if uint64(moved) > moveTolerance {
		// Moved too much to count as resting; restart the dwell timer
		// from here.
		p.calLowStartUS = tUS
		p.calLowStartPos = rawPos
		return
	}
	if tUS-p.calLowStartUS >= restDwellUS {
		p.calZeroSum += uint64(rawPos)
		p.calZeroCount++
	}
}

func (p *Pipeline) trackFiringTimeDuringCalibration(nowUS uint64) {
	moving := p.fm.state == StateMoving
	if moving && !p.calWasMoving {
		p.calMovingSinceUS = p.fm.tStateUS
	}
	p.calWasMoving = moving
}

func (p *Pipeline) recordFiringDuration(nowUS uint64) {
	if p.calMovingSinceUS == 0 {
		return
	}
	duration := nowUS - p.calMovingSinceUS
	p.calFiringSum += duration
	p.calFiringCount++
}

// finishCalibration derives zero from the accumulated rest-position
// average, keeps the tracked min/max excursion, folds in the measured
// firing-release duration if any was observed, and persists the
// result through Store, per spec.md §4.B "Calibration persistence".
func (p *Pipeline) finishCalibration() {
	p.calActive = false
	p.fm.calibrating = false

	cal := p.cal
	cal.Calibrated = true
	if p.calMinSeen != ^uint32(0) {
		cal.Min = p.calMinSeen
	}
	cal.Max = p.calMaxSeen
	if p.calZeroCount > 0 {
		cal.Zero = uint32(p.calZeroSum / p.calZeroCount)
	}
	if cal.Min > cal.Zero {
		cal.Min = cal.Zero
	}
	if cal.Max <= cal.Zero {
		cal.Max = cal.Zero + 1
	}
	if p.calFiringCount > 0 {
		cal.FiringTimeMeasuredUS = uint32(p.calFiringSum / p.calFiringCount)
	}
	p.cal = cal

	if p.store != nil {
		p.store.Save(p.cfg.SensorName, p.cal)
	}
}

func absDiffU32(a, b uint32) uint32 {
	if a > b {
		return a - b
	}
	return b - a
}

// applyAutoZero implements spec.md §4.B "Auto-zero": if enabled and the
// reported z hasn't changed for AutoZeroIntervalUS, invoke the sensor's
// AutoZero hook and reset the Z0 history to zero so the next speed
// sample isn't spurious.
func (p *Pipeline) applyAutoZero(nowUS uint64, reportedZ int16) {
	if reportedZ != p.lastReportedZ || !p.lastChangeValid {
		p.lastReportedZ = reportedZ
		p.lastChangeUS = nowUS
		p.lastChangeValid = true
		return
	}
	if !p.cfg.AutoZeroEnabled || p.cfg.AutoZeroIntervalUS == 0 {
		return
	}
	if nowUS-p.lastChangeUS < p.cfg.AutoZeroIntervalUS {
		return
	}
	p.sensor.AutoZero()
	p.z0Prv = ZWithTime{TimestampUS: nowUS}
	p.z0Cur = ZWithTime{TimestampUS: nowUS}
	p.z0Nxt = ZWithTime{TimestampUS: nowUS}
	p.speedPrv, p.speedNxt = 0, 0
	p.lastChangeUS = nowUS
}
