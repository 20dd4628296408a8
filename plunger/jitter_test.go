package plunger

import "testing"

// S2 from spec.md §8.
func TestJitterFilterScenarioS2(t *testing.T) {
	f := NewJitterFilter(10)
	f.SeedWindow(100, 110)

	inputs := []uint32{103, 107, 112, 108, 99}
	want := []uint32{105, 105, 107, 107, 104}
	for i, x := range inputs {
		got := f.Filter(x)
		if got != want[i] {
			t.Fatalf("input %d: Filter(%d) = %d, want %d", i, x, got, want[i])
		}
	}
}

// Property 2: constant input for >=2 samples yields constant output.
func TestJitterFilterIdempotence(t *testing.T) {
	f := NewJitterFilter(20)
	first := f.Filter(500)
	for i := 0; i < 5; i++ {
		if got := f.Filter(500); got != first {
			t.Fatalf("iteration %d: output drifted from %d to %d on constant input", i, first, got)
		}
	}
}

// Property 3: output only changes when input escapes [low, high], and
// high-low <= size always holds.
func TestJitterFilterContainment(t *testing.T) {
	f := NewJitterFilter(15)
	prev := f.Filter(1000)
	inputs := []uint32{1000, 1005, 1002, 1020, 1021, 990, 1100}
	for _, x := range inputs {
		low, high := f.Window()
		out := f.Filter(x)
		if high-low > f.size {
			t.Fatalf("window [%d,%d] exceeds size %d", low, high, f.size)
		}
		if out != prev {
			if x >= low && x <= high {
				t.Fatalf("output changed (%d -> %d) but input %d stayed within [%d,%d]", prev, out, x, low, high)
			}
		}
		prev = out
	}
}
