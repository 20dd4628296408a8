//go:build tinygo && rp2350

package main

import (
	"machine"

	"pincab.dev/nudge"
	"pincab.dev/plunger"
	"pincab.dev/usbdesc"
)

// axisExprConfig holds a logical-axis expression (spec.md §4.F) per
// HID report field. An empty string falls back to the field's plain
// pipeline atom (e.g. "z"), so a board needs to set only the fields it
// wants to remap, negate, or scale.
type axisExprConfig struct {
	Z, Z0, Speed           string
	NudgeX, NudgeY, NudgeZ string
}

// boardConfig holds every per-device tunable a JSON configuration
// loader would populate; out of core scope per spec.md §1, so this is
// the built-in default used until that collaborator exists.
type boardConfig struct {
	PixClockPin, ShutterPin, ClearPin, ADCPin machine.Pin
	PlungerNumPixels                          int

	PollingIntervalUS uint64

	Plunger plunger.Config
	Nudge   nudge.Config
	USB     usbdesc.Config
	Axes    axisExprConfig
}

func defaultConfig() boardConfig {
	return boardConfig{
		PixClockPin:      machine.GPIO2,
		ShutterPin:       machine.GPIO3,
		ClearPin:         machine.GPIO4,
		ADCPin:           machine.GPIO26,
		PlungerNumPixels: 1500,

		PollingIntervalUS: 4_000,

		Plunger: plunger.Config{
			SensorName:         "plunger0",
			AutoZeroEnabled:    true,
			AutoZeroIntervalUS: 5_000_000,
		},
		Nudge: nudge.Config{
			Orientation:            nudge.Identity,
			FullScaleXY:            16384,
			FullScaleZ:             16384,
			AutoCenterIntervalUS:   4_000_000,
			ManualCenterDurationUS: 500_000,
			DCBlockerTauUS:         200_000,
			HysteresisWindowSize:   4,
			VelocityHalfLifeUS:     50_000,
			VelocityConvFactor:     1,
		},
		USB: usbdesc.Config{
			PinballDevice: true,
			Gamepad:       true,
		},
		Axes: axisExprConfig{
			// This board's accelerometer is mounted upside down
			// relative to the cabinet's logical Z axis.
			NudgeZ: "negate(nudgez)",
		},
	}
}
