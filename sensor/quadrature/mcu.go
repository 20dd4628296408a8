//go:build tinygo && rp

package quadrature

import (
	"device/rp"
	"machine"
	"runtime/interrupt"

	"pincab.dev/rawsample"
)

// MCUSensor drives a Decoder from the RP2040/RP2350 IO bank's shared
// GPIO interrupt, per spec.md §4.A.2: one interrupt vector covers both
// edges of both lines, and the ISR reads the current level of each
// line rather than trusting the edge event itself. It is placed in its
// own top-priority interrupt so it can't be starved behind lower-rate
// peripherals, matching the "missed edges are unrecoverable" rationale
// in spec.md §4.A.2.
type MCUSensor struct {
	pinA, pinB  machine.Pin
	nativeScale uint32
	offset      int32
	dec         Decoder
	intr        interrupt.Interrupt
	lastRead    int32
}

// NewMCUSensor configures pinA/pinB as GPIO inputs and registers the
// shared edge interrupt. nativeScale bounds the raw_position this
// sensor reports, used by plunger orientation reversal.
func NewMCUSensor(pinA, pinB machine.Pin, nativeScale uint32) *MCUSensor {
	s := &MCUSensor{pinA: pinA, pinB: pinB, nativeScale: nativeScale}
	pinA.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	pinB.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	s.dec.prevState = packState(pinA.Get(), pinB.Get())

	s.intr = interrupt.New(rp.IRQ_IO_IRQ_BANK0, s.handleInterrupt)
	s.intr.SetPriority(0x00) // highest priority among GPIO handlers
	s.armEdge(pinA)
	s.armEdge(pinB)
	s.intr.Enable()
	return s
}

func (s *MCUSensor) armEdge(pin machine.Pin) {
	pin.SetInterrupt(machine.PinRising|machine.PinFalling, func(machine.Pin) {})
}

func (s *MCUSensor) handleInterrupt(interrupt.Interrupt) {
	s.dec.Update(s.pinA.Get(), s.pinB.Get())
}

// IsReady reports whether the decoded count differs from the last
// value read out, satisfying the plunger/nudge Sensor capability.
func (s *MCUSensor) IsReady() bool {
	return s.dec.Count() != s.lastRead
}

// ReadRaw consumes the current count as a raw_position, biased by
// offset (the last AutoZero point) and clamped into [0, nativeScale].
func (s *MCUSensor) ReadRaw() rawsample.Raw {
	count := s.dec.Count()
	s.lastRead = count
	return rawsample.Raw{TimestampUS: nowUS(), Position: s.biasedPosition(count)}
}

func (s *MCUSensor) biasedPosition(count int32) uint32 {
	v := count - s.offset
	switch {
	case v < 0:
		return 0
	case uint32(v) > s.nativeScale:
		return s.nativeScale
	default:
		return uint32(v)
	}
}

// NativeScale returns the configured maximum raw_position.
func (s *MCUSensor) NativeScale() uint32 { return s.nativeScale }

// WantsGenericJitterFilter reports true: a quadrature count has no
// internal filtering of its own, unlike the imaging sensor's edge
// detection.
func (s *MCUSensor) WantsGenericJitterFilter() bool { return true }

// AutoZero re-centers the reported position on the current count,
// without touching the underlying decoder count itself.
func (s *MCUSensor) AutoZero() {
	s.offset = s.dec.Count()
}

// nowUS reads the RP2040/RP2350's free-running 64-bit microsecond
// timer. TIMEHR must be read first: it latches TIMELR so the pair
// reads atomically across a rollover.
func nowUS() uint64 {
	hi := uint64(rp.TIMER.TIMEHR.Get())
	lo := uint64(rp.TIMER.TIMELR.Get())
	return hi<<32 | lo
}
