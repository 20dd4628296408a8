package quadrature

import "testing"

func stateBits(state uint8) (a, b bool) {
	return state&1 != 0, state&2 != 0
}

// S4 from spec.md §8: 00 -> 01 -> 11 -> 10 -> 00 must land on count 4.
func TestDecoderScenarioS4(t *testing.T) {
	var d Decoder
	sequence := []uint8{0b00, 0b01, 0b11, 0b10, 0b00}
	for _, state := range sequence {
		a, b := stateBits(state)
		d.Update(a, b)
	}
	if d.Count() != 4 {
		t.Fatalf("count = %d, want 4", d.Count())
	}
}

// Property 7: the reverse sequence decrements by exactly 1 per step.
func TestDecoderReverseSequence(t *testing.T) {
	var d Decoder
	sequence := []uint8{0b00, 0b10, 0b11, 0b01, 0b00}
	for _, state := range sequence {
		a, b := stateBits(state)
		d.Update(a, b)
	}
	if d.Count() != -4 {
		t.Fatalf("count = %d, want -4", d.Count())
	}
}

// Invalid two-bit jumps (the diagonal of the state square) must not
// move the count at all: a glitch contributes no direction guess.
func TestDecoderInvalidTransitionIsIgnored(t *testing.T) {
	var d Decoder
	d.Update(false, false) // 00 -> 00, baseline
	before := d.Count()
	d.Update(true, true) // 00 -> 11, invalid double change
	if d.Count() != before {
		t.Fatalf("count changed on an invalid transition: %d -> %d", before, d.Count())
	}
}

func TestDecoderResetZeroesCount(t *testing.T) {
	var d Decoder
	d.Update(true, false)
	d.Update(true, true)
	if d.Count() == 0 {
		t.Fatalf("expected a nonzero count before Reset")
	}
	d.Reset()
	if d.Count() != 0 {
		t.Fatalf("Reset did not zero the count, got %d", d.Count())
	}
}
