// Package button implements the triple-buffered sticky bitmask used by
// every logical HID device that reports pushbutton state: live hardware
// state, the sticky-composed state for the next report, and the state
// last actually sent.
package button

// Group is up to 32 buttons sharing one report mask. The zero value is
// ready to use.
type Group struct {
	live     uint32
	next     uint32
	reported uint32
}

// OnEvent records a press (down=true) or release (down=false) of button
// id (1..32).
//
// If next and reported already agree on the bit (no sticky change is
// outstanding), the new live value is copied straight into next so the
// upcoming report reflects it immediately. Otherwise next is left alone:
// it is still carrying an edge the host hasn't seen yet, and must not be
// overwritten until that edge is reported.
func (g *Group) OnEvent(id int, down bool) {
	bit := uint32(1) << uint(id-1)
	if down {
		g.live |= bit
	} else {
		g.live &^= bit
	}
	if g.next&bit == g.reported&bit {
		g.next = g.next&^bit | g.live&bit
	}
}

// Report returns the mask to send in the next HID report and advances
// the triple buffer: reported becomes what was just returned, and next
// is reseeded from the live mask so that any bit without an outstanding
// sticky edge tracks hardware state going forward.
//
// Sticky-tap guarantee: for any press-then-release (or release-then-press)
// pair that occurs between two Report calls, at least one of the next two
// Report results has that bit reflecting the transition, because OnEvent
// only refreshes next from live when there's no pending edge to lose.
func (g *Group) Report() uint32 {
	g.reported = g.next
	g.next = g.live
	return g.reported
}

// Live returns the current raw hardware mask, bypassing the sticky
// latch. Useful for diagnostics.
func (g *Group) Live() uint32 {
	return g.live
}
