// command controller is the Core 0 firmware image for the pinball
// cabinet I/O controller: it wires the plunger, nudge, and button
// subsystems into the HID report scheduler and presents the result as
// a composite USB device.
//
//go:build tinygo && rp2350

package main

import (
	"device/rp"
	"log"
	"machine"

	"pincab.dev/button"
	"pincab.dev/calib"
	"pincab.dev/faultlog"
	"pincab.dev/hid"
	"pincab.dev/plunger"
	"pincab.dev/sensor/imaging"
	"pincab.dev/thunk"
	"pincab.dev/usbdesc"
)

// buttonPins maps physical GPIOs to button.Group IDs (1-based). A
// config loader would populate this; out of core scope per spec.md §1.
var buttonPins = []struct {
	pin machine.Pin
	id  int
}{
	{machine.GPIO6, 1},
	{machine.GPIO7, 2},
	{machine.GPIO8, 3},
	{machine.GPIO9, 4},
}

// buttonCtx is the bound context for one button's thunk: the vector
// table entry polled each main-loop iteration knows only its own pin
// and ID, with no per-tick closure allocation.
type buttonCtx struct {
	pin machine.Pin
	id  int
}

// bindButtons registers one thunk per configured button, each updating
// buttons in place when invoked. Binding once at startup (instead of a
// fresh closure over pin/id on every loop iteration) is the same
// fixed-table-over-dynamic-closure tradeoff thunk.Manager exists for,
// applied to a polled vector table instead of a hardware one.
func bindButtons(mgr *thunk.Manager, buttons *button.Group) {
	for i, b := range buttonPins {
		ctx := buttonCtx{pin: b.pin, id: b.id}
		if _, err := thunk.BindContext(mgr, i, &ctx, func(c *buttonCtx) {
			buttons.OnEvent(c.id, !c.pin.Get())
		}); err != nil {
			log.Printf("controller: button %d: %v", b.id, err)
		}
	}
}

func main() {
	log.SetFlags(0)
	log.Println("controller: booting")

	if fault, ok := faultlog.ReportOnce(faultlog.MCUStore); ok {
		log.Printf("controller: recovered fault: core=%d cause=%d pc=%#x", fault.Core, fault.Cause, fault.PC)
	}

	cfg := defaultConfig()

	for _, b := range buttonPins {
		b.pin.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	}
	var buttons button.Group
	buttonThunks := thunk.New()
	bindButtons(buttonThunks, &buttons)

	src, err := imaging.NewMCUSource(rp.PIO0, cfg.PixClockPin, cfg.ShutterPin, cfg.ClearPin, cfg.ADCPin, cfg.PlungerNumPixels)
	if err != nil {
		log.Println("controller: imaging sensor init failed:", err)
		halt()
	}
	engine := imaging.NewEngine(src)
	proc := imaging.NewFrameProcessor(imaging.ScanSustainedSlope)
	plungerSensor := newImagingSensor(engine, proc, cfg.PlungerNumPixels)

	// calib.MemStore stands in for a flash-backed calibration store
	// until that persistence collaborator is attached (spec.md §6,
	// out of core scope); calibration is re-run every boot until then.
	calStore := calib.NewMemStore()
	plungerPipe := plunger.New(plungerSensor, calStore, cfg.Plunger)

	boardID := readBoardID()
	serial := usbdesc.DeriveSerial(boardID, cfg.USB.Bitmask())
	log.Printf("controller: usb serial %s", serial)

	state := &cabinetState{}
	axisReg := newAxisRegistry(state)
	axes := newAxisSources(axisReg, cfg.Axes)
	devices := []hid.Device{
		newPinballDevice(state, axes),
		newGamepadDevice(state, axes),
	}
	sched := hid.NewScheduler(devices, cfg.PollingIntervalUS, noOutputs{})

	// The nudge pipeline needs a concrete accelerometer Sensor, which is
	// board-specific I2C/SPI wiring outside this core's scope (spec.md
	// §1); state.nudgeX/Y/Z stay at the cabinetState zero value until
	// that driver is attached.

	for {
		nowUS := controllerNowUS()

		plungerSensor.poll()
		z, z0, speed, firing, _ := plungerPipe.Tick(nowUS)

		for i := range buttonPins {
			buttonThunks.Invoke(i)
		}

		state.nowUS = nowUS
		state.z, state.z0, state.speed, state.firing = z.Z, z0.Z, speed, firing
		state.buttons = buttons.Report()

		if _, _, ok := sched.Task(nowUS); ok {
			// Staging the report into the USB controller's IN endpoint
			// buffer is TinyUSB plumbing out of core scope per spec.md
			// §1; a real build calls OnSendComplete from the endpoint's
			// send-complete callback instead of immediately here.
			sched.OnSendComplete(nowUS)
		}
	}
}

func controllerNowUS() uint64 {
	hi := uint64(rp.TIMER.TIMEHR.Get())
	lo := uint64(rp.TIMER.TIMELR.Get())
	return hi<<32 | lo
}

// readBoardID returns the RP2350's factory-programmed 64-bit flash
// unique ID, spec.md §6's board_unique_id.
func readBoardID() uint64 {
	id := machine.DeviceID()
	var v uint64
	for i := 0; i < 8 && i < len(id); i++ {
		v |= uint64(id[i]) << (8 * i)
	}
	return v
}

// halt stops the main loop without returning, for failures that
// precede the report-scheduling loop and have no safe-mode fallback.
func halt() {
	for {
	}
}
