// Package usbdesc computes the data the core's USB composite-device
// presentation needs per spec.md §6: the serial-number derivation, the
// fixed HID/XInput report shapes, and the enabled-interface bitmask
// that both feed into the serial number. Assembling and wiring actual
// TinyUSB descriptor tables is out of core scope (spec.md §1
// Non-goals: "TinyUSB descriptor plumbing beyond the scheduling
// contract") — this package only computes the values that plumbing
// would consume.
package usbdesc

import (
	"encoding/binary"
	"fmt"
)

// Interface bitmask bits, spec.md §6 serial-number derivation: one bit
// per optional interface, OR-ed into device_bitmask.
const (
	BitKeyboard      byte = 0x01
	BitGamepad       byte = 0x02
	BitXInput        byte = 0x04
	BitPinballDevice byte = 0x08
)

// ProtocolVersion is the current protocol_version byte embedded in the
// derived serial number.
const ProtocolVersion byte = 0x01

// Config describes which optional interfaces are enabled for this
// build, a configuration loader's job to populate (spec.md §1
// Non-goals: "JSON configuration loading").
type Config struct {
	Keyboard      bool
	Gamepad       bool
	XInput        bool
	PinballDevice bool
}

// Bitmask ORs together the bit for every enabled optional interface.
func (c Config) Bitmask() byte {
	var b byte
	if c.Keyboard {
		b |= BitKeyboard
	}
	if c.Gamepad {
		b |= BitGamepad
	}
	if c.XInput {
		b |= BitXInput
	}
	if c.PinballDevice {
		b |= BitPinballDevice
	}
	return b
}

// DeriveSerial builds the USB serial string spec.md §6 specifies:
// <board_unique_id_hex(16 chars)>.<device_bitmask_hex(2 chars)>.<protocol_version_hex(2 chars)>.
// boardID is the controller's 64-bit factory-programmed unique ID.
func DeriveSerial(boardID uint64, bitmask byte) string {
	return fmt.Sprintf("%016X.%02X.%02X", boardID, bitmask, ProtocolVersion)
}

// WinUSBCompatibleID is the compatible ID the BOS/MS-OS 2.0 descriptor
// advertises on the Vendor interface, spec.md §6, so Windows auto-binds
// WinUSB without a driver prompt.
const WinUSBCompatibleID = "WINUSB"

// KeyboardReport is HID report ID 1: the standard USB HID boot
// keyboard layout (8 bytes: modifier, reserved, 6 keycodes).
type KeyboardReport struct {
	Modifier byte
	Reserved byte
	Keys     [6]byte
}

// KeyboardReportID is 1 for the boot keyboard interface.
const KeyboardReportID byte = 1

func (r KeyboardReport) Marshal() []byte {
	buf := make([]byte, 8)
	buf[0] = r.Modifier
	buf[1] = r.Reserved
	copy(buf[2:], r.Keys[:])
	return buf
}

// MediaControlReport is HID report ID 2: an 8-bit usage bitmap for
// media-control keys (play/pause, next, previous, volume up/down,
// mute, and two vendor-defined bits).
type MediaControlReport struct {
	Usage byte
}

const MediaControlReportID byte = 2

func (r MediaControlReport) Marshal() []byte {
	return []byte{r.Usage}
}

// GamepadReport is HID report ID 3: 32 buttons plus 6 signed 16-bit
// axes and 2 signed 16-bit sliders, a 20-byte report.
type GamepadReport struct {
	Buttons                uint32
	AxisX, AxisY, AxisZ    int16
	AxisRx, AxisRy, AxisRz int16
	Slider0, Slider1       int16
}

const GamepadReportID byte = 3

func (r GamepadReport) Marshal() []byte {
	buf := make([]byte, 20)
	binary.LittleEndian.PutUint32(buf[0:4], r.Buttons)
	binary.LittleEndian.PutUint16(buf[4:6], uint16(r.AxisX))
	binary.LittleEndian.PutUint16(buf[6:8], uint16(r.AxisY))
	binary.LittleEndian.PutUint16(buf[8:10], uint16(r.AxisZ))
	binary.LittleEndian.PutUint16(buf[10:12], uint16(r.AxisRx))
	binary.LittleEndian.PutUint16(buf[12:14], uint16(r.AxisRy))
	binary.LittleEndian.PutUint16(buf[14:16], uint16(r.AxisRz))
	binary.LittleEndian.PutUint16(buf[16:18], uint16(r.Slider0))
	binary.LittleEndian.PutUint16(buf[18:20], uint16(r.Slider1))
	return buf
}

// FeedbackControllerReport is HID report ID 4: a custom payload, out
// of core scope (spec.md §1 Non-goals: "the output (feedback-device)
// subsystem"). Carried as an opaque byte slice the feedback subsystem
// owns the shape of.
type FeedbackControllerReport struct {
	Payload []byte
}

const FeedbackControllerReportID byte = 4

func (r FeedbackControllerReport) Marshal() []byte {
	return r.Payload
}

// PinballDeviceReport is HID report ID 5 (Game Controls usage 0x02):
// the core's own struct-shaped payload carrying the plunger and nudge
// pipelines' normalized output plus the button mask.
type PinballDeviceReport struct {
	Z, Z0, Speed int16
	FiringState  byte
	NudgeX       int16
	NudgeY       int16
	NudgeZ       int16
	Buttons      uint32
}

const PinballDeviceReportID byte = 5

func (r PinballDeviceReport) Marshal() []byte {
	buf := make([]byte, 17)
	binary.LittleEndian.PutUint16(buf[0:2], uint16(r.Z))
	binary.LittleEndian.PutUint16(buf[2:4], uint16(r.Z0))
	binary.LittleEndian.PutUint16(buf[4:6], uint16(r.Speed))
	buf[6] = r.FiringState
	binary.LittleEndian.PutUint16(buf[7:9], uint16(r.NudgeX))
	binary.LittleEndian.PutUint16(buf[9:11], uint16(r.NudgeY))
	binary.LittleEndian.PutUint16(buf[11:13], uint16(r.NudgeZ))
	binary.LittleEndian.PutUint32(buf[13:17], r.Buttons)
	return buf
}

// XInputReport is the non-HID Microsoft vendor interface's 20-byte IN
// report, spec.md §6.
type XInputReport struct {
	Buttons  uint16
	LTrigger byte
	RTrigger byte
	XL, YL   int16
	XR, YR   int16
}

func (r XInputReport) Marshal() []byte {
	buf := make([]byte, 20)
	buf[0] = 0    // type
	buf[1] = 0x14 // len
	binary.LittleEndian.PutUint16(buf[2:4], r.Buttons)
	buf[4] = r.LTrigger
	buf[5] = r.RTrigger
	binary.LittleEndian.PutUint16(buf[6:8], uint16(r.XL))
	binary.LittleEndian.PutUint16(buf[8:10], uint16(r.YL))
	binary.LittleEndian.PutUint16(buf[10:12], uint16(r.XR))
	binary.LittleEndian.PutUint16(buf[12:14], uint16(r.YR))
	// buf[14:20] reserved, left zero.
	return buf
}

// XInputRumbleReport is one of the two XInput OUT report types.
type XInputRumbleReport struct {
	LeftMotor, RightMotor byte
}

// XInputLEDReport is the other XInput OUT report type.
type XInputLEDReport struct {
	Pattern byte
}
