// Package hid implements the per-interface report scheduler from
// spec.md §4.E: a refractory timer that stages each report as late in
// the polling cycle as possible, round-robin fairness across logical
// devices sharing one IN endpoint, and event-latency accounting.
package hid

// Device is one logical HID device multiplexed onto a shared endpoint,
// distinguished by its report ID.
type Device interface {
	ReportID() byte
	// BuildReport returns the device's current report and whether it
	// has anything to send. Devices with nothing new to report return
	// ok=false; the scheduler's fairness scan skips them.
	BuildReport() (report []byte, ok bool)
	// FirstEventTimeUS returns the timestamp of the earliest physical
	// input the device has observed since its last send, for latency
	// accounting, and whether any event has been observed at all.
	FirstEventTimeUS() (timestampUS uint64, ok bool)
	// ClearFirstEventTime resets the device's earliest-event timestamp
	// after the scheduler has folded it into the latency accumulator.
	ClearFirstEventTime()
}

// OutputPorts is the output-device collaborator spec.md §4.E calls on
// suspend ("turn off all output ports"); out of core scope per
// spec.md §1, the scheduler only calls it.
type OutputPorts interface {
	AllOff()
}

// paddingUS is the margin spec.md §4.E subtracts from polling_interval
// to derive the refractory duration, so the report is staged as close
// to the next host poll as possible without risking a miss.
const paddingUS = 2_500

// Scheduler multiplexes Devices over one HID IN endpoint.
type Scheduler struct {
	devices           []Device
	pollingIntervalUS uint64
	outputs           OutputPorts

	lastSender    int
	pendingIndex  int
	pendingReport []byte

	refractoryUntilUS uint64
	suspended         bool

	totalLatencyUS uint64
	sendCount      uint64
}

// NewScheduler returns a scheduler for devices, polling at
// pollingIntervalUS. outputs may be nil if there is nothing to turn
// off on suspend.
func NewScheduler(devices []Device, pollingIntervalUS uint64, outputs OutputPorts) *Scheduler {
	s := &Scheduler{
		devices:           devices,
		pollingIntervalUS: pollingIntervalUS,
		outputs:           outputs,
		lastSender:        -1,
		pendingIndex:      -1,
	}
	s.findNextSender()
	return s
}

func (s *Scheduler) refractoryDuration() uint64 {
	if s.pollingIntervalUS <= paddingUS {
		return 0
	}
	return s.pollingIntervalUS - paddingUS
}

// findNextSender performs the round-robin fairness scan, starting at
// (last_sender+1) mod N, for the first device with a non-empty report,
// and caches both its index and the built report so Task doesn't call
// BuildReport twice for the same send.
func (s *Scheduler) findNextSender() {
	if s.pendingIndex >= 0 || len(s.devices) == 0 {
		return
	}
	n := len(s.devices)
	for i := 1; i <= n; i++ {
		idx := (s.lastSender + i) % n
		if report, ok := s.devices[idx].BuildReport(); ok && len(report) > 0 {
			s.pendingIndex = idx
			s.pendingReport = report
			return
		}
	}
}

// Task is called once per main-loop iteration. It returns a report to
// stage into the USB controller buffer when the refractory interval
// has elapsed and some device has data; ok is false otherwise.
func (s *Scheduler) Task(nowUS uint64) (reportID byte, report []byte, ok bool) {
	if s.suspended {
		return 0, nil, false
	}
	s.findNextSender()
	if s.pendingIndex < 0 {
		return 0, nil, false
	}
	if nowUS < s.refractoryUntilUS {
		return 0, nil, false
	}
	idx := s.pendingIndex
	dev := s.devices[idx]
	report = s.pendingReport
	s.pendingIndex, s.pendingReport = -1, nil
	s.lastSender = idx

	if t, hasEvent := dev.FirstEventTimeUS(); hasEvent {
		s.totalLatencyUS += nowUS - t
		s.sendCount++
		dev.ClearFirstEventTime()
	}
	return dev.ReportID(), report, true
}

// OnSendComplete is the send-completion callback: it starts the
// refractory interval and advances the round-robin fairness scan for
// the next send, per spec.md §4.E's scheduling contract.
func (s *Scheduler) OnSendComplete(nowUS uint64) {
	s.refractoryUntilUS = nowUS + s.refractoryDuration()
	s.findNextSender()
}

// AverageLatencyUS returns the running average event latency across
// every completed send, spec.md §4.E's latency accounting.
func (s *Scheduler) AverageLatencyUS() uint64 {
	if s.sendCount == 0 {
		return 0
	}
	return s.totalLatencyUS / s.sendCount
}

// Suspend suppresses all sends and turns off all output ports, per
// spec.md §4.E's cancellation rule.
func (s *Scheduler) Suspend() {
	s.suspended = true
	if s.outputs != nil {
		s.outputs.AllOff()
	}
}

// Suspended reports whether the scheduler is currently suspended.
func (s *Scheduler) Suspended() bool { return s.suspended }

// Resume restarts the cycle from nowUS, per spec.md §4.E: "On resume,
// the cycle restarts from the current time."
func (s *Scheduler) Resume(nowUS uint64) {
	s.suspended = false
	s.refractoryUntilUS = nowUS
	s.pendingIndex, s.pendingReport = -1, nil
	s.findNextSender()
}
