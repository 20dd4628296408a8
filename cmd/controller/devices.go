//go:build tinygo && rp2350

package main

import (
	"pincab.dev/plunger"
	"pincab.dev/usbdesc"
)

// cabinetState is the snapshot of the latest plunger/nudge/button
// pipeline outputs, refreshed once per main-loop iteration and read by
// every hid.Device adapter below when the scheduler asks it to build a
// report. nowUS is the snapshot's own timestamp, used by each device's
// independent first-event-time bookkeeping.
type cabinetState struct {
	nowUS uint64

	z, z0, speed int16
	firing       plunger.FiringState

	nudgeX, nudgeY, nudgeZ int16

	buttons uint32
}

// eventTracker gives each hid.Device adapter its own first-event-time
// bookkeeping: shared cabinet state feeds multiple devices, but
// spec.md §4.E's latency accounting is per device, not per sample.
type eventTracker struct {
	firstEventUS uint64
	haveEvent    bool
}

func (t *eventTracker) noteDirty(nowUS uint64) {
	if !t.haveEvent {
		t.firstEventUS, t.haveEvent = nowUS, true
	}
}

func (t *eventTracker) FirstEventTimeUS() (uint64, bool) {
	return t.firstEventUS, t.haveEvent
}

func (t *eventTracker) ClearFirstEventTime() {
	t.haveEvent = false
}

// pinballDevice reports report ID 5: the core's own struct-shaped
// payload, spec.md §6.
type pinballDevice struct {
	eventTracker
	state *cabinetState
	axes  axisSources
	sent  cabinetState
}

func newPinballDevice(state *cabinetState, axes axisSources) *pinballDevice {
	return &pinballDevice{state: state, axes: axes}
}

func (d *pinballDevice) ReportID() byte { return usbdesc.PinballDeviceReportID }

func (d *pinballDevice) BuildReport() ([]byte, bool) {
	s := *d.state
	cmp := s
	cmp.nowUS = d.sent.nowUS
	if cmp == d.sent {
		return nil, false
	}
	d.noteDirty(s.nowUS)
	d.sent = s
	r := usbdesc.PinballDeviceReport{
		Z:           d.axes.z.ReadI16(s.nowUS),
		Z0:          d.axes.z0.ReadI16(s.nowUS),
		Speed:       d.axes.speed.ReadI16(s.nowUS),
		FiringState: byte(s.firing),
		NudgeX:      d.axes.nudgeX.ReadI16(s.nowUS),
		NudgeY:      d.axes.nudgeY.ReadI16(s.nowUS),
		NudgeZ:      d.axes.nudgeZ.ReadI16(s.nowUS),
		Buttons:     s.buttons,
	}
	return r.Marshal(), true
}

// gamepadDevice reports report ID 3, mapping the same pipeline outputs
// onto the standard HID gamepad usage shape for hosts/games that only
// understand a generic joystick.
type gamepadDevice struct {
	eventTracker
	state *cabinetState
	axes  axisSources
	sent  cabinetState
}

func newGamepadDevice(state *cabinetState, axes axisSources) *gamepadDevice {
	return &gamepadDevice{state: state, axes: axes}
}

func (d *gamepadDevice) ReportID() byte { return usbdesc.GamepadReportID }

func (d *gamepadDevice) BuildReport() ([]byte, bool) {
	s := *d.state
	cmp := s
	cmp.nowUS = d.sent.nowUS
	if cmp == d.sent {
		return nil, false
	}
	d.noteDirty(s.nowUS)
	d.sent = s
	r := usbdesc.GamepadReport{
		Buttons: s.buttons,
		AxisX:   d.axes.nudgeX.ReadI16(s.nowUS),
		AxisY:   d.axes.nudgeY.ReadI16(s.nowUS),
		AxisZ:   d.axes.z.ReadI16(s.nowUS),
		Slider0: d.axes.speed.ReadI16(s.nowUS),
		Slider1: d.axes.z0.ReadI16(s.nowUS),
	}
	return r.Marshal(), true
}

// noOutputs satisfies hid.OutputPorts where no feedback-device
// subsystem is wired, spec.md §1 Non-goals.
type noOutputs struct{}

func (noOutputs) AllOff() {}
