package hid

import "testing"

type fakeDevice struct {
	id         byte
	report     []byte
	hasReport  bool
	eventUS    uint64
	hasEvent   bool
	builtCalls int
}

func (d *fakeDevice) ReportID() byte { return d.id }
func (d *fakeDevice) BuildReport() ([]byte, bool) {
	d.builtCalls++
	if !d.hasReport {
		return nil, false
	}
	return d.report, true
}
func (d *fakeDevice) FirstEventTimeUS() (uint64, bool) { return d.eventUS, d.hasEvent }
func (d *fakeDevice) ClearFirstEventTime()             { d.hasEvent = false }

type fakeOutputs struct {
	offCalls int
}

func (o *fakeOutputs) AllOff() { o.offCalls++ }

func TestSchedulerStagesOnlyAfterRefractoryElapses(t *testing.T) {
	a := &fakeDevice{id: 1, report: []byte{0xaa}, hasReport: true}
	s := NewScheduler([]Device{a}, 10_000, nil)

	// First Task with no prior OnSendComplete: refractoryUntilUS is
	// zero, so it sends immediately.
	id, report, ok := s.Task(0)
	if !ok || id != 1 || len(report) != 1 || report[0] != 0xaa {
		t.Fatalf("Task = (%v,%v,%v), want (1,[0xaa],true)", id, report, ok)
	}

	s.OnSendComplete(0)
	// Refractory is now 10000-2500 = 7500us.
	if _, _, ok := s.Task(7400); ok {
		t.Fatalf("Task should not stage during refractory")
	}
	if _, _, ok := s.Task(7500); !ok {
		t.Fatalf("Task should stage once refractory has elapsed")
	}
}

func TestSchedulerRoundRobinFairness(t *testing.T) {
	a := &fakeDevice{id: 1, report: []byte{1}, hasReport: true}
	b := &fakeDevice{id: 2, report: []byte{2}, hasReport: true}
	s := NewScheduler([]Device{a, b}, 10_000, nil)

	id1, _, _ := s.Task(0)
	s.OnSendComplete(0)
	id2, _, _ := s.Task(100_000)
	s.OnSendComplete(100_000)
	id3, _, _ := s.Task(200_000)

	if id1 != 1 || id2 != 2 || id3 != 1 {
		t.Fatalf("round robin sequence = (%d,%d,%d), want (1,2,1)", id1, id2, id3)
	}
}

func TestSchedulerSkipsDeviceWithNothingToSend(t *testing.T) {
	a := &fakeDevice{id: 1, hasReport: false}
	b := &fakeDevice{id: 2, report: []byte{2}, hasReport: true}
	s := NewScheduler([]Device{a, b}, 10_000, nil)

	id, _, ok := s.Task(0)
	if !ok || id != 2 {
		t.Fatalf("Task = (%d,%v), want (2,true) since device 1 has nothing to send", id, ok)
	}
}

func TestSchedulerLatencyAccounting(t *testing.T) {
	a := &fakeDevice{id: 1, report: []byte{1}, hasReport: true, eventUS: 100, hasEvent: true}
	s := NewScheduler([]Device{a}, 10_000, nil)

	s.Task(1000)
	if s.AverageLatencyUS() != 900 {
		t.Fatalf("AverageLatencyUS = %d, want 900", s.AverageLatencyUS())
	}
	if a.hasEvent {
		t.Fatalf("expected ClearFirstEventTime to have been called")
	}
}

func TestSchedulerSuspendSuppressesSendsAndTurnsOffOutputs(t *testing.T) {
	a := &fakeDevice{id: 1, report: []byte{1}, hasReport: true}
	outputs := &fakeOutputs{}
	s := NewScheduler([]Device{a}, 10_000, outputs)

	s.Suspend()
	if outputs.offCalls != 1 {
		t.Fatalf("Suspend should have called AllOff once, got %d calls", outputs.offCalls)
	}
	if _, _, ok := s.Task(0); ok {
		t.Fatalf("suspended scheduler should not stage any report")
	}

	s.Resume(5000)
	if _, _, ok := s.Task(5000); !ok {
		t.Fatalf("resumed scheduler should stage immediately from the resume time")
	}
}
