// Package proximity implements the I2C proximity/ToF plunger sensor
// drivers from spec.md §4.A.3: non-linear reflected-intensity chips and
// direct-distance time-of-flight chips, both translated into a single
// linear-with-distance raw_position through a driver-private inverse.
package proximity

import (
	"fmt"
	"math"
	"time"

	"periph.io/x/conn/v3/i2c"
)

func nowUS() uint64 {
	return uint64(time.Now().UnixMicro())
}

// Device is the narrow capability spec.md §4.A.3 calls for: is the
// next sample ready, and read it.
type Device interface {
	IsSampleReady() bool
	Read() (rawPosition uint32, timestampUS uint64, isNew bool)
}

// calibrationParams holds the power-law inverse coefficients derived
// during plunger calibration (spec.md §4.B): raw_position = scale *
// (reading - offset) ^ gammaInverse, clipped into [0, nativeScale].
type calibrationParams struct {
	offset      float64
	scale       float64
	gammaInv    float64
	nativeScale uint32
}

func (c calibrationParams) linearize(reading float64) uint32 {
	x := reading - c.offset
	if x <= 0 {
		return 0
	}
	v := c.scale * math.Pow(x, c.gammaInv)
	switch {
	case v < 0:
		return 0
	case v > float64(c.nativeScale):
		return c.nativeScale
	default:
		return uint32(v)
	}
}

// ReflectedIntensity drives a proximity chip (VCNL4010-style) whose
// raw reading is a non-linear reflected-intensity count that falls off
// with the inverse square of distance.
type ReflectedIntensity struct {
	bus     i2c.Bus
	addr    uint16
	readReg byte
	cal     calibrationParams

	lastReading uint16
	seen        bool
}

// NewReflectedIntensity returns a driver for the proximity chip at
// addr on bus, reading its count register readReg.
func NewReflectedIntensity(bus i2c.Bus, addr uint16, readReg byte, nativeScale uint32) *ReflectedIntensity {
	return &ReflectedIntensity{
		bus:     bus,
		addr:    addr,
		readReg: readReg,
		cal:     calibrationParams{scale: 1, gammaInv: 0.5, nativeScale: nativeScale},
	}
}

// SetCalibration installs the power-law inverse parameters derived
// during plunger calibration.
func (d *ReflectedIntensity) SetCalibration(offset, scale, gammaInv float64) {
	d.cal.offset = offset
	d.cal.scale = scale
	d.cal.gammaInv = gammaInv
}

// IsSampleReady always reports true: this driver samples on demand
// rather than free-running, matching VCNL4010-style proximity chips
// that return the latest conversion on any read.
func (d *ReflectedIntensity) IsSampleReady() bool { return true }

// Read issues an I2C transaction for the count register and converts
// the reflected-intensity reading to raw_position through the inverse
// power law.
func (d *ReflectedIntensity) Read() (uint32, uint64, bool) {
	var buf [2]byte
	if err := d.bus.Tx(d.addr, []byte{d.readReg}, buf[:]); err != nil {
		return 0, 0, false
	}
	reading := uint16(buf[0])<<8 | uint16(buf[1])
	isNew := !d.seen || reading != d.lastReading
	d.lastReading = reading
	d.seen = true
	return d.cal.linearize(float64(reading)), nowUS(), isNew
}

// TimeOfFlight drives a direct-distance ToF chip (VL6180X-style) whose
// raw reading is already a millimetre distance, needing only a linear
// scale/offset rather than the power-law inverse reflected-intensity
// sensors need.
//
// Quality carries the chip's own range-status byte through to callers
// uninterpreted: low-confidence readings (out of range, ambient-light
// saturation, cross-talk) are surfaced rather than silently accepted,
// per the Open Question resolution in spec.md §9 — callers that don't
// care can ignore it.
type TimeOfFlight struct {
	bus      i2c.Bus
	addr     uint16
	rangeReg byte
	statusReg byte
	cal      calibrationParams

	Quality byte

	lastMM uint16
	seen   bool
}

// NewTimeOfFlight returns a driver for the ToF chip at addr on bus.
func NewTimeOfFlight(bus i2c.Bus, addr uint16, rangeReg, statusReg byte, nativeScale uint32) *TimeOfFlight {
	return &TimeOfFlight{
		bus:       bus,
		addr:      addr,
		rangeReg:  rangeReg,
		statusReg: statusReg,
		cal:       calibrationParams{scale: 1, gammaInv: 1, nativeScale: nativeScale},
	}
}

// SetCalibration installs the linear offset/scale derived during
// plunger calibration.
func (d *TimeOfFlight) SetCalibration(offsetMM, scale float64) {
	d.cal.offset = offsetMM
	d.cal.scale = scale
}

// IsSampleReady always reports true, matching ReflectedIntensity.
func (d *TimeOfFlight) IsSampleReady() bool { return true }

// Read issues I2C transactions for the range and status registers.
func (d *TimeOfFlight) Read() (uint32, uint64, bool) {
	var rangeBuf [1]byte
	if err := d.bus.Tx(d.addr, []byte{d.rangeReg}, rangeBuf[:]); err != nil {
		return 0, 0, false
	}
	var statusBuf [1]byte
	if err := d.bus.Tx(d.addr, []byte{d.statusReg}, statusBuf[:]); err != nil {
		return 0, 0, false
	}
	d.Quality = statusBuf[0]

	mm := uint16(rangeBuf[0])
	isNew := !d.seen || mm != d.lastMM
	d.lastMM = mm
	d.seen = true
	return d.cal.linearize(float64(mm)), nowUS(), isNew
}

// String implements fmt.Stringer for debug logging.
func (d *TimeOfFlight) String() string {
	return fmt.Sprintf("proximity.TimeOfFlight(addr=0x%02x, quality=0x%02x)", d.addr, d.Quality)
}
