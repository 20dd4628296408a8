package thunk

import "testing"

func TestBindAndInvoke(t *testing.T) {
	m := New()
	calls := 0
	th, err := m.Bind(3, func() { calls++ })
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	m.Invoke(th.Vector())
	m.Invoke(th.Vector())
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestBindContext(t *testing.T) {
	m := New()
	type counter struct{ n int }
	c := &counter{}
	th, err := BindContext(m, 1, c, func(c *counter) { c.n++ })
	if err != nil {
		t.Fatalf("BindContext: %v", err)
	}
	m.Invoke(th.Vector())
	if c.n != 1 {
		t.Fatalf("c.n = %d, want 1", c.n)
	}
}

func TestDoubleBindRejected(t *testing.T) {
	m := New()
	if _, err := m.Bind(5, func() {}); err != nil {
		t.Fatalf("first Bind: %v", err)
	}
	if _, err := m.Bind(5, func() {}); err == nil {
		t.Fatalf("second Bind on same vector should fail")
	}
}

func TestReleaseAllowsRebind(t *testing.T) {
	m := New()
	th, _ := m.Bind(7, func() {})
	th.Release()
	if _, err := m.Bind(7, func() {}); err != nil {
		t.Fatalf("rebind after release: %v", err)
	}
}

func TestOutOfRangeVector(t *testing.T) {
	m := New()
	if _, err := m.Bind(-1, func() {}); err == nil {
		t.Fatal("negative vector should be rejected")
	}
	if _, err := m.Bind(MaxVectors, func() {}); err == nil {
		t.Fatal("vector == MaxVectors should be rejected")
	}
}

func TestInvokeUnboundVectorIsNoop(t *testing.T) {
	m := New()
	m.Invoke(0) // must not panic
}
