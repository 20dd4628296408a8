//go:build tinygo && rp2350

package imaging

import (
	"device/rp"
	"image"
	"machine"
	"runtime/volatile"
	"unsafe"

	"pincab.dev/driver/dma"
	"pincab.dev/driver/pio"
)

// Pulse widths and PIO program offsets are fixed design values per
// spec.md §4.A.1, expressed as an 8 ns PIO tick.
const (
	shutterPulseTicks = 125 // ~1.0us
	clearPulseTicks   = 625 // ~5.0us

	pixClockSM = 0
	shutterSM  = 1
	clearSM    = 2

	progOffPixClock = 0
	progOffShutter  = 8
	progOffClear    = 16
)

// pixClockInstructions, shutterInstructions and clearInstructions hold
// the PIO programs for the three continuous signal streams spec.md
// §4.A.1 calls for: a free-running pixel clock, a shutter/transfer
// gate pulse, and an integration-clear gate pulse, each driven off its
// own state machine so the three stay phase-locked without CPU
// intervention in steady state.
var (
	pixClockInstructions = []uint16{0xa042, 0x6021, 0x0000}
	shutterInstructions  = []uint16{0xe001, 0x80a0, 0xa042}
	clearInstructions    = []uint16{0xe001, 0x80a0, 0xa042}
)

// MCUSource drives the three-DMA-channel, three-PIO-state-machine
// acquisition engine from spec.md §4.A.1: a pixel clock, a
// shutter/transfer gate, and an integration-clear gate, phase-locked
// to the system clock, feeding two ping-pong pixel buffers through a
// chained DMA sequence A -> C -> B -> C -> A.
type MCUSource struct {
	pio *rp.PIO0_Type

	chA, chB, chC dma.ChannelID
	irq           dma.IRQ

	numPixels int
	pixBuf    [2]*image.Gray

	active   int
	lastUS   [2]uint64
	stalled  volatile.Register32
	cNextIsB volatile.Register32 // 0: C's next target is chA, 1: chB
}

// NewMCUSource reserves DMA channels and an IRQ for a sensor with
// numPixels pixels, clocked through p's three state machines.
func NewMCUSource(p *rp.PIO0_Type, pixClockPin, shutterPin, clearPin, adcPin machine.Pin, numPixels int) (*MCUSource, error) {
	chA, err := dma.ReserveChannel()
	if err != nil {
		return nil, err
	}
	chB, err := dma.ReserveChannel()
	if err != nil {
		return nil, err
	}
	chC, err := dma.ReserveChannel()
	if err != nil {
		return nil, err
	}
	irq, err := dma.ReserveIRQ()
	if err != nil {
		return nil, err
	}
	s := &MCUSource{
		pio:       p,
		chA:       chA,
		chB:       chB,
		chC:       chC,
		irq:       irq,
		numPixels: numPixels,
		pixBuf: [2]*image.Gray{
			image.NewGray(image.Rect(0, 0, numPixels, 1)),
			image.NewGray(image.Rect(0, 0, numPixels, 1)),
		},
	}
	adcPin.Configure(machine.PinConfig{Mode: machine.PinAnalog})
	s.configurePIO(pixClockPin, shutterPin, clearPin)
	s.configureChain()
	s.irq.Set(s.chC, s.handleChainDone)
	return s, nil
}

func (s *MCUSource) configurePIO(pixClockPin, shutterPin, clearPin machine.Pin) {
	pio.Program(s.pio, progOffPixClock, pixClockInstructions)
	pio.Program(s.pio, progOffShutter, shutterInstructions)
	pio.Program(s.pio, progOffClear, clearInstructions)

	pixConf := pio.StateMachineConfig{SidesetBase: uint8(pixClockPin), SidesetCount: 1, Freq: machine.CPUFrequency() / 2}
	pio.Configure(s.pio, pixClockSM, pixConf.Build())
	pio.Pindirs(s.pio, pixClockSM, pixClockPin, 1, machine.PinOutput)

	shutterConf := pio.StateMachineConfig{SidesetBase: uint8(shutterPin), SidesetCount: 1, Freq: machine.CPUFrequency()}
	pio.Configure(s.pio, shutterSM, shutterConf.Build())
	pio.Pindirs(s.pio, shutterSM, shutterPin, 1, machine.PinOutput)

	clearConf := pio.StateMachineConfig{SidesetBase: uint8(clearPin), SidesetCount: 1, Freq: machine.CPUFrequency()}
	pio.Configure(s.pio, clearSM, clearConf.Build())
	pio.Pindirs(s.pio, clearSM, clearPin, 1, machine.PinOutput)

	pio.Enable(s.pio, 0b1<<pixClockSM|0b1<<shutterSM|0b1<<clearSM)
}

// configureChain programs A and B to each deposit one full row of
// pixels from the ADC FIFO into pixBuf[0]/pixBuf[1], chaining to C on
// completion; C drains the ADC FIFO into a discard register during
// the inter-frame gap and chains back to whichever pixel channel is
// next.
func (s *MCUSource) configureChain() {
	adcFIFO := uint32(uintptr(unsafe.Pointer(&rp.ADC.FIFO)))

	setupPixelChannel := func(id dma.ChannelID, row *image.Gray) {
		ch := dma.ChannelAt(id)
		ch.READ_ADDR.Set(adcFIFO)
		ch.WRITE_ADDR.Set(uint32(uintptr(unsafe.Pointer(unsafe.SliceData(row.Pix)))))
		ch.TRANS_COUNT.Set(uint32(len(row.Pix)))
		ch.CTRL_TRIG.Set(
			rp.DMA_CH0_CTRL_TRIG_INCR_WRITE |
				rp.DMA_CH0_CTRL_TRIG_DATA_SIZE_SIZE_BYTE<<rp.DMA_CH0_CTRL_TRIG_DATA_SIZE_Pos |
				uint32(s.chC)<<rp.DMA_CH0_CTRL_TRIG_CHAIN_TO_Pos,
		)
	}
	setupPixelChannel(s.chA, s.pixBuf[0])
	setupPixelChannel(s.chB, s.pixBuf[1])

	chC := dma.ChannelAt(s.chC)
	chC.READ_ADDR.Set(adcFIFO)
	chC.WRITE_ADDR.Set(adcFIFO)
	chC.TRANS_COUNT.Set(1)
	chC.CTRL_TRIG.Set(
		rp.DMA_CH0_CTRL_TRIG_DATA_SIZE_SIZE_BYTE<<rp.DMA_CH0_CTRL_TRIG_DATA_SIZE_Pos |
			uint32(s.chA)<<rp.DMA_CH0_CTRL_TRIG_CHAIN_TO_Pos |
			rp.DMA_CH0_CTRL_TRIG_EN,
	)
	s.cNextIsB.Set(0)
}

// handleChainDone runs when C's link in the chain completes. Per
// spec.md §4.A.1, C's chain target alternates here so the A/C/B/C
// cycle keeps double-buffering without further CPU work on the
// pixel-transfer portions; this is also where the stall flag is set
// if the "next" target was never consumed.
func (s *MCUSource) handleChainDone() {
	if dma.ChannelAt(s.chC).CTRL_TRIG.Get()&rp.DMA_CH0_CTRL_TRIG_BUSY_Msk != 0 {
		s.stalled.Set(1)
		return
	}
	chC := dma.ChannelAt(s.chC)
	if s.cNextIsB.Get() == 0 {
		s.active = 0
		s.lastUS[0] = nowUS()
		chC.CTRL_TRIG.ReplaceBits(uint32(s.chB), rp.DMA_CH0_CTRL_TRIG_CHAIN_TO_Msk>>rp.DMA_CH0_CTRL_TRIG_CHAIN_TO_Pos, rp.DMA_CH0_CTRL_TRIG_CHAIN_TO_Pos)
		s.cNextIsB.Set(1)
	} else {
		s.active = 1
		s.lastUS[1] = nowUS()
		chC.CTRL_TRIG.ReplaceBits(uint32(s.chA), rp.DMA_CH0_CTRL_TRIG_CHAIN_TO_Msk>>rp.DMA_CH0_CTRL_TRIG_CHAIN_TO_Pos, rp.DMA_CH0_CTRL_TRIG_CHAIN_TO_Pos)
		s.cNextIsB.Set(0)
	}
}

// CurrentFrame returns the most recently completed pixel buffer.
func (s *MCUSource) CurrentFrame() (*image.Gray, uint64) {
	idx := s.active
	return s.pixBuf[idx], s.lastUS[idx]
}

// Stalled reports whether the chain's stall flag has been set.
func (s *MCUSource) Stalled() bool {
	return s.stalled.Get() != 0
}

// Restart reprograms and re-enables the DMA chain from scratch.
// Per spec.md §4.A.1, stall recovery never happens inside the ISR.
func (s *MCUSource) Restart() {
	s.stalled.Set(0)
	s.configureChain()
}

func nowUS() uint64 {
	hi := uint64(rp.TIMER.TIMEHR.Get())
	lo := uint64(rp.TIMER.TIMELR.Get())
	return hi<<32 | lo
}
