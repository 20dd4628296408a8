// command benchhost runs the core subsystem logic against real bench
// hardware wired to a Linux host (quadrature encoder and buttons on Pi
// GPIO, a proximity/ToF chip on I2C), for latency and behavior testing
// off the microcontroller target. It performs no USB HID transmission
// of its own; it logs the scheduler's output instead.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
	"periph.io/x/host/v3/bcm283x"

	"pincab.dev/button"
	"pincab.dev/calib"
	"pincab.dev/hid"
	"pincab.dev/nudge"
	"pincab.dev/plunger"
	"pincab.dev/rawsample"
	"pincab.dev/sensor/proximity"
	"pincab.dev/sensor/quadrature"
	"pincab.dev/timerange"
	"pincab.dev/usbdesc"
)

// benchButtons mirrors input.Open's goroutine-per-pin watch style, one
// GPIO per cabinet button.
var benchButtons = []struct {
	id  int
	pin gpio.PinIn
}{
	{1, bcm283x.GPIO21},
	{2, bcm283x.GPIO20},
	{3, bcm283x.GPIO16},
}

func main() {
	log.SetFlags(0)
	calDir := flag.String("caldir", ".", "directory for calibration blobs")
	sensorKind := flag.String("sensor", "quadrature", "bench plunger sensor: quadrature or proximity")
	quietHours := flag.String("quiet-hours", "", "timerange expression (spec.md §4.H) during which nudge output is suppressed")
	flag.Parse()

	if err := run(*calDir, *sensorKind, *quietHours); err != nil {
		log.Fatalf("benchhost: %v", err)
	}
}

func run(calDir, sensorKind, quietHours string) error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("benchhost: %w", err)
	}

	sensor, sensorName, err := openPlungerSensor(sensorKind)
	if err != nil {
		return fmt.Errorf("benchhost: %w", err)
	}

	var quiet timerange.Range
	haveQuiet := false
	if quietHours != "" {
		quiet, err = timerange.Parse(quietHours)
		if err != nil {
			return fmt.Errorf("benchhost: quiet-hours: %w", err)
		}
		haveQuiet = true
	}

	store := calib.NewFileStore(calDir)
	plungerPipe := plunger.New(sensor, store, plunger.Config{
		SensorName: sensorName,
	})
	nudgeSensor := nudge.NewHostSensor(benchNudgeProfile)
	nudgePipe := nudge.New(nudgeSensor, nudge.Config{
		Orientation: nudge.Identity,
		FullScaleXY: 16384,
		FullScaleZ:  16384,
	})

	var buttons button.Group
	events := make(chan buttonEvent, 16)
	for _, b := range benchButtons {
		if err := b.pin.In(gpio.PullUp, gpio.BothEdges); err != nil {
			return fmt.Errorf("benchhost: button pin %d: %w", b.id, err)
		}
		watchButton(b.id, b.pin, events)
	}

	state := &benchState{}
	sched := hid.NewScheduler([]hid.Device{
		benchPinballDevice{state},
	}, 4_000, noOutputs{})

	serial := usbdesc.DeriveSerial(0, usbdesc.Config{PinballDevice: true}.Bitmask())
	log.Printf("benchhost: simulated serial %s", serial)

	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for range ticker.C {
		wallNow := time.Now()
		nowUS := uint64(wallNow.UnixMicro())

		drainButtonEvents(events, &buttons)

		z, z0, speed, firing, ok := plungerPipe.Tick(nowUS)
		if ok {
			state.z, state.z0, state.speed, state.firing = z.Z, z0.Z, speed, firing
		}

		// Quiet hours (spec.md §4.H) suppress nudge reporting entirely
		// rather than just damping it, matching this bench tool's role
		// of exercising the predicate against a real wall clock; a
		// deployed cabinet would instead feed quiet into nudge
		// sensitivity scaling.
		if !haveQuiet || !quiet.Contains(wallNow) {
			nudgeSensor.Advance()
			if vx, vy, vz, ok := nudgePipe.Tick(nowUS); ok {
				state.nudgeX, state.nudgeY, state.nudgeZ = vx, vy, vz
			}
		} else {
			state.nudgeX, state.nudgeY, state.nudgeZ = 0, 0, 0
		}
		state.buttons = buttons.Report()

		if reportID, report, ok := sched.Task(nowUS); ok {
			log.Printf("benchhost: report id=%d bytes=%x", reportID, report)
			sched.OnSendComplete(nowUS)
		}
	}
	return nil
}

type buttonEvent struct {
	id      int
	pressed bool
}

// watchButton mirrors input.Open's debounce loop: wait for an edge,
// then debounce before committing the new level.
func watchButton(id int, pin gpio.PinIn, ch chan<- buttonEvent) {
	go func() {
		pressed := false
		newPressed := false
		const debounceTimeout = 10 * time.Millisecond
		for {
			timeout := debounceTimeout
			if newPressed == pressed {
				timeout = -1
			}
			if pin.WaitForEdge(timeout) {
				newPressed = pin.Read() == gpio.Low
			} else if newPressed != pressed {
				pressed = newPressed
				ch <- buttonEvent{id: id, pressed: pressed}
			}
		}
	}()
}

func drainButtonEvents(ch <-chan buttonEvent, g *button.Group) {
	for {
		select {
		case e := <-ch:
			g.OnEvent(e.id, e.pressed)
		default:
			return
		}
	}
}

type benchState struct {
	z, z0, speed           int16
	firing                 plunger.FiringState
	nudgeX, nudgeY, nudgeZ int16
	buttons                uint32
}

type benchPinballDevice struct {
	state *benchState
}

func (d benchPinballDevice) ReportID() byte { return usbdesc.PinballDeviceReportID }

func (d benchPinballDevice) BuildReport() ([]byte, bool) {
	r := usbdesc.PinballDeviceReport{
		Z:           d.state.z,
		Z0:          d.state.z0,
		Speed:       d.state.speed,
		FiringState: byte(d.state.firing),
		NudgeX:      d.state.nudgeX,
		NudgeY:      d.state.nudgeY,
		NudgeZ:      d.state.nudgeZ,
		Buttons:     d.state.buttons,
	}
	return r.Marshal(), true
}

func (d benchPinballDevice) FirstEventTimeUS() (uint64, bool) { return 0, false }
func (d benchPinballDevice) ClearFirstEventTime()             {}

type noOutputs struct{}

func (noOutputs) AllOff() {}

// benchNudgeProfile stands in for a real accelerometer: a gentle sway
// on X/Y and a resting 1g on Z, close enough to a cabinet at idle to
// exercise the pipeline's auto-center and DC-blocker stages without
// any accelerometer wired to this bench rig.
func benchNudgeProfile(nowUS uint64) (x, y, z int32) {
	t := float64(nowUS) / 1e6
	x = int32(300 * math.Sin(t*0.7))
	y = int32(300 * math.Cos(t*0.5))
	z = 16384
	return x, y, z
}

// bench hardware addresses; a real board-config loader (out of core
// scope) would make these configurable per bench rig.
const (
	benchProximityAddr    = 0x13
	benchProximityReadReg = 0x02
	benchProximityScale   = 4096
)

// openPlungerSensor selects and opens the bench plunger sensor named
// by kind, returning it already adapted to plunger.Sensor.
func openPlungerSensor(kind string) (plunger.Sensor, string, error) {
	switch kind {
	case "", "quadrature":
		s, err := quadrature.NewHostSensor(bcm283x.GPIO17, bcm283x.GPIO27, 4096)
		if err != nil {
			return nil, "", fmt.Errorf("quadrature: %w", err)
		}
		return s, "bench-quadrature", nil
	case "proximity":
		bus, err := i2creg.Open("")
		if err != nil {
			return nil, "", fmt.Errorf("proximity: i2c: %w", err)
		}
		dev := proximity.NewReflectedIntensity(bus, benchProximityAddr, benchProximityReadReg, benchProximityScale)
		return proximityAdapter{dev: dev, nativeScale: benchProximityScale}, "bench-proximity", nil
	default:
		return nil, "", fmt.Errorf("unknown sensor kind %q", kind)
	}
}

// proximityAdapter adapts proximity.Device (is-ready/read, spec.md
// §4.A.3) to plunger.Sensor, the same role cmd/controller's
// imagingSensor plays for the imaging acquisition engine.
type proximityAdapter struct {
	dev         proximity.Device
	nativeScale uint32
}

func (a proximityAdapter) IsReady() bool { return a.dev.IsSampleReady() }

func (a proximityAdapter) ReadRaw() rawsample.Raw {
	pos, ts, _ := a.dev.Read()
	return rawsample.Raw{TimestampUS: ts, Position: pos}
}

func (a proximityAdapter) NativeScale() uint32 { return a.nativeScale }

// WantsGenericJitterFilter is true: unlike the imaging sensor's edge
// detection, a proximity/ToF reading has no internal filtering.
func (a proximityAdapter) WantsGenericJitterFilter() bool { return true }

// AutoZero is a no-op: like the imaging sensor, this reports an
// absolute position derived from the current reading, not a counter to
// re-center.
func (a proximityAdapter) AutoZero() {}
