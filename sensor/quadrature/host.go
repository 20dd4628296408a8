//go:build !tinygo

package quadrature

import (
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"

	"pincab.dev/rawsample"
)

// HostSensor drives a Decoder from a pair of periph.io GPIO pins on a
// Linux host, for bench testing off real quadrature hardware wired to
// a Raspberry Pi, mirroring input.Open's goroutine-per-pin style.
type HostSensor struct {
	nativeScale uint32

	mu       sync.Mutex
	dec      Decoder
	offset   int32
	lastRead int32
}

// NewHostSensor configures pinA/pinB for both-edge interrupts and
// starts the watcher goroutines that feed Decoder.Update.
func NewHostSensor(pinA, pinB gpio.PinIO, nativeScale uint32) (*HostSensor, error) {
	s := &HostSensor{nativeScale: nativeScale}
	if err := pinA.In(gpio.PullUp, gpio.BothEdges); err != nil {
		return nil, fmt.Errorf("quadrature: pinA: %w", err)
	}
	if err := pinB.In(gpio.PullUp, gpio.BothEdges); err != nil {
		return nil, fmt.Errorf("quadrature: pinB: %w", err)
	}
	s.dec.prevState = packState(pinA.Read() == gpio.High, pinB.Read() == gpio.High)

	watch := func(pin gpio.PinIO) {
		for {
			if !pin.WaitForEdge(-1) {
				return
			}
			s.mu.Lock()
			s.dec.Update(pinA.Read() == gpio.High, pinB.Read() == gpio.High)
			s.mu.Unlock()
		}
	}
	go watch(pinA)
	go watch(pinB)
	return s, nil
}

// IsReady reports whether the decoded count differs from the last
// value read out.
func (s *HostSensor) IsReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dec.Count() != s.lastRead
}

// ReadRaw consumes the current count as a raw_position.
func (s *HostSensor) ReadRaw() rawsample.Raw {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := s.dec.Count()
	s.lastRead = count
	return rawsample.Raw{TimestampUS: uint64(time.Now().UnixMicro()), Position: s.biasedPosition(count)}
}

func (s *HostSensor) biasedPosition(count int32) uint32 {
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
func (s *HostSensor) NativeScale() uint32 { return s.nativeScale }

// WantsGenericJitterFilter reports true, as for MCUSensor.
func (s *HostSensor) WantsGenericJitterFilter() bool { return true }

// AutoZero re-centers the reported position on the current count.
func (s *HostSensor) AutoZero() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offset = s.dec.Count()
}
