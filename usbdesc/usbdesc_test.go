package usbdesc

import (
	"bytes"
	"testing"
)

func TestConfigBitmaskOrsEnabledInterfaces(t *testing.T) {
	c := Config{Keyboard: true, PinballDevice: true}
	if got := c.Bitmask(); got != BitKeyboard|BitPinballDevice {
		t.Fatalf("Bitmask = %#x, want %#x", got, BitKeyboard|BitPinballDevice)
	}
	if got := (Config{}).Bitmask(); got != 0 {
		t.Fatalf("Bitmask of empty config = %#x, want 0", got)
	}
}

func TestDeriveSerialFormat(t *testing.T) {
	got := DeriveSerial(0x0123456789ABCDEF, BitGamepad|BitXInput)
	want := "0123456789ABCDEF.06.01"
	if got != want {
		t.Fatalf("DeriveSerial = %q, want %q", got, want)
	}
}

func TestDeriveSerialZeroPadsShortID(t *testing.T) {
	got := DeriveSerial(0xFF, 0)
	want := "00000000000000FF.00.01"
	if got != want {
		t.Fatalf("DeriveSerial = %q, want %q", got, want)
	}
}

func TestKeyboardReportMarshalLayout(t *testing.T) {
	r := KeyboardReport{Modifier: 0x02, Keys: [6]byte{4, 5, 0, 0, 0, 0}}
	got := r.Marshal()
	want := []byte{0x02, 0x00, 4, 5, 0, 0, 0, 0}
	if !bytes.Equal(got, want) {
		t.Fatalf("Marshal = %v, want %v", got, want)
	}
}

func TestGamepadReportMarshalLayout(t *testing.T) {
	r := GamepadReport{
		Buttons: 0x00000003,
		AxisX:   -1,
		AxisY:   2,
		AxisZ:   0,
		AxisRx:  0,
		AxisRy:  0,
		AxisRz:  0,
		Slider0: 100,
		Slider1: -100,
	}
	got := r.Marshal()
	if len(got) != 20 {
		t.Fatalf("len(Marshal()) = %d, want 20", len(got))
	}
	want := []byte{
		0x03, 0x00, 0x00, 0x00, // buttons
		0xff, 0xff, // AxisX = -1
		0x02, 0x00, // AxisY = 2
		0x00, 0x00, // AxisZ = 0
		0x00, 0x00, // AxisRx
		0x00, 0x00, // AxisRy
		0x00, 0x00, // AxisRz
		0x64, 0x00, // Slider0 = 100
		0x9c, 0xff, // Slider1 = -100
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("Marshal = %v, want %v", got, want)
	}
}

func TestPinballDeviceReportMarshalLayout(t *testing.T) {
	r := PinballDeviceReport{
		Z: 1000, Z0: -500, Speed: 7,
		FiringState: 2,
		NudgeX:      1, NudgeY: -1, NudgeZ: 0,
		Buttons: 0x00010000,
	}
	got := r.Marshal()
	if len(got) != 17 {
		t.Fatalf("len(Marshal()) = %d, want 17", len(got))
	}
	if got[6] != 2 {
		t.Fatalf("FiringState byte = %d, want 2", got[6])
	}
	want := []byte{
		0xe8, 0x03, // Z = 1000
		0x0c, 0xfe, // Z0 = -500
		0x07, 0x00, // Speed = 7
		0x02,       // FiringState
		0x01, 0x00, // NudgeX = 1
		0xff, 0xff, // NudgeY = -1
		0x00, 0x00, // NudgeZ = 0
		0x00, 0x00, 0x01, 0x00, // Buttons = 0x00010000
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("Marshal = %v, want %v", got, want)
	}
}

func TestXInputReportMarshalLayout(t *testing.T) {
	r := XInputReport{
		Buttons:  0x0001,
		LTrigger: 10,
		RTrigger: 20,
		XL:       -1000, YL: 1000,
		XR: 0, YR: 0,
	}
	got := r.Marshal()
	if len(got) != 20 {
		t.Fatalf("len(Marshal()) = %d, want 20", len(got))
	}
	if got[0] != 0 || got[1] != 0x14 {
		t.Fatalf("header = [%#x %#x], want [0 0x14]", got[0], got[1])
	}
	if got[4] != 10 || got[5] != 20 {
		t.Fatalf("triggers = [%d %d], want [10 20]", got[4], got[5])
	}
	for i := 14; i < 20; i++ {
		if got[i] != 0 {
			t.Fatalf("reserved byte %d = %d, want 0", i, got[i])
		}
	}
}

func TestMediaControlReportMarshal(t *testing.T) {
	r := MediaControlReport{Usage: 0x05}
	got := r.Marshal()
	if len(got) != 1 || got[0] != 0x05 {
		t.Fatalf("Marshal = %v, want [0x05]", got)
	}
}

func TestFeedbackControllerReportMarshalPassesThroughPayload(t *testing.T) {
	payload := []byte{1, 2, 3}
	r := FeedbackControllerReport{Payload: payload}
	got := r.Marshal()
	if !bytes.Equal(got, payload) {
		t.Fatalf("Marshal = %v, want %v", got, payload)
	}
}
