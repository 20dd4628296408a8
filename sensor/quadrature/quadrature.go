// Package quadrature implements the interrupt-driven Gray-code
// quadrature decoder from spec.md §4.A.2: two GPIO lines carrying
// Gray-coded transitions, decoded against a 16-entry transition table
// into a signed count.
package quadrature

// transitionTable maps (prev_state<<2)|new_state, each state the 2-bit
// (B<<1)|A reading of the quadrature lines, to a signed count delta.
// Entries for a state "transitioning" to itself, or for the two
// diagonal (both-bits-changed) jumps that can't happen on a clean
// signal, are 0: a missed or glitched edge contributes nothing rather
// than guessing a direction.
var transitionTable = [16]int32{
	0x0: 0,  // 00 -> 00
	0x1: 1,  // 00 -> 01
	0x2: -1, // 00 -> 10
	0x3: 0,  // 00 -> 11 (invalid double change)
	0x4: -1, // 01 -> 00
	0x5: 0,  // 01 -> 01
	0x6: 0,  // 01 -> 10 (invalid double change)
	0x7: 1,  // 01 -> 11
	0x8: 1,  // 10 -> 00
	0x9: 0,  // 10 -> 01 (invalid double change)
	0xa: 0,  // 10 -> 10
	0xb: -1, // 10 -> 11
	0xc: 0,  // 11 -> 00 (invalid double change)
	0xd: -1, // 11 -> 01
	0xe: 1,  // 11 -> 10
	0xf: 0,  // 11 -> 11
}

// Decoder is the ISR-model counter: Update is meant to be called from
// the shared GPIO edge interrupt, Count from any reader. The count is
// a single int32 so reads and writes are word-atomic with respect to
// the one IRQ that ever writes it; no lock is needed between the ISR
// and the read side, matching spec.md §4.A.2 and §5's "single 32-bit
// word, word-atomic" resource note.
type Decoder struct {
	prevState uint8
	count     int32
}

// Update applies one new (a, b) line reading to the transition table
// and folds the resulting delta into the running count. Called from
// the shared edge ISR with the current, not the edge, state of both
// lines.
func (d *Decoder) Update(a, b bool) {
	newState := packState(a, b)
	idx := (d.prevState << 2) | newState
	d.count += transitionTable[idx]
	d.prevState = newState
}

// Count returns the current signed count.
func (d *Decoder) Count() int32 {
	return d.count
}

// Reset atomically stores zero to the counter. MCUSensor.AutoZero and
// HostSensor.AutoZero do not call it: they re-zero the reported
// position through an offset and leave the counter unchanged.
func (d *Decoder) Reset() {
	d.count = 0
}

func packState(a, b bool) uint8 {
	var s uint8
	if a {
		s |= 1
	}
	if b {
		s |= 2
	}
	return s
}
