// command benchreplay replays a captured HID-scheduler timing trace
// over a serial link, for latency analysis against a host-side
// capture tool -- the same bench role mjolnir.Open's serial transport
// plays for the engraver link, applied here to a pinball cabinet trace
// instead of an engraving job.
//
//go:build !tinygo

package main

import (
	"bufio"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"github.com/tarm/serial"

	"pincab.dev/hid"
	"pincab.dev/usbdesc"
)

// traceEvent is one line of an input trace: at EventUS, a physical
// input event arrives at the named device (by report ID), with the
// device's new report payload. Generating these from a real capture
// is out of this tool's scope; it only replays them.
type traceEvent struct {
	EventUS  uint64
	ReportID byte
	Payload  []byte
}

func main() {
	log.SetFlags(0)
	dev := flag.String("dev", "", "serial device (empty autodetects, matching mjolnir.Open)")
	tracePath := flag.String("trace", "", "CSV trace file: event_us,report_id,hex_payload")
	pollingIntervalUS := flag.Uint64("poll-us", 4_000, "polling interval, spec.md §4.E")
	flag.Parse()

	if *tracePath == "" {
		log.Fatal("benchreplay: -trace is required")
	}

	events, err := loadTrace(*tracePath)
	if err != nil {
		log.Fatalf("benchreplay: %v", err)
	}

	port, err := openSerial(*dev)
	if err != nil {
		log.Fatalf("benchreplay: %v", err)
	}
	defer port.Close()

	if err := replay(port, events, *pollingIntervalUS); err != nil {
		log.Fatalf("benchreplay: %v", err)
	}
}

func openSerial(dev string) (io.ReadWriteCloser, error) {
	const baudRate = 115200
	devices := []string{dev}
	if dev == "" {
		devices = []string{"/dev/ttyUSB0", "/dev/ttyUSB1", "/dev/ttyACM0"}
	}
	var firstErr error
	for _, d := range devices {
		c := &serial.Config{Name: d, Baud: baudRate}
		s, err := serial.OpenPort(c)
		if err == nil {
			return s, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}

func loadTrace(path string) ([]traceEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(bufio.NewReader(f))
	r.FieldsPerRecord = 3
	var events []traceEvent
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		eventUS, err := strconv.ParseUint(rec[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("event_us %q: %w", rec[0], err)
		}
		reportID, err := strconv.ParseUint(rec[1], 10, 8)
		if err != nil {
			return nil, fmt.Errorf("report_id %q: %w", rec[1], err)
		}
		payload, err := hexDecode(rec[2])
		if err != nil {
			return nil, fmt.Errorf("hex_payload %q: %w", rec[2], err)
		}
		events = append(events, traceEvent{EventUS: eventUS, ReportID: byte(reportID), Payload: payload})
	}
	return events, nil
}

func hexDecode(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("odd length")
	}
	out := make([]byte, len(s)/2)
	for i := range out {
		v, err := strconv.ParseUint(s[2*i:2*i+2], 16, 8)
		if err != nil {
			return nil, err
		}
		out[i] = byte(v)
	}
	return out, nil
}

// traceDevice is an hid.Device whose report is whatever the trace last
// set it to, so the scheduler's own fairness and refractory logic
// drive exactly when each traced event actually goes out -- the thing
// under latency test, not the trace itself.
type traceDevice struct {
	id      byte
	payload []byte
	dirty   bool

	firstEventUS uint64
	haveEvent    bool
}

func (d *traceDevice) ReportID() byte { return d.id }

func (d *traceDevice) BuildReport() ([]byte, bool) {
	if !d.dirty {
		return nil, false
	}
	d.dirty = false
	return d.payload, true
}

func (d *traceDevice) FirstEventTimeUS() (uint64, bool) { return d.firstEventUS, d.haveEvent }
func (d *traceDevice) ClearFirstEventTime()             { d.haveEvent = false }

func (d *traceDevice) apply(e traceEvent) {
	d.payload = e.Payload
	d.dirty = true
	if !d.haveEvent {
		d.firstEventUS, d.haveEvent = e.EventUS, true
	}
}

type noOutputs struct{}

func (noOutputs) AllOff() {}

// replay feeds events through hid.Scheduler in trace order and writes
// every report the scheduler actually sends to port as a CSV line
// (send_us,report_id,hex_payload,latency_us), so a receiving host can
// compare wall-clock arrival against the scheduler's own latency
// accounting.
func replay(port io.Writer, events []traceEvent, pollingIntervalUS uint64) error {
	devices := map[byte]*traceDevice{
		usbdesc.PinballDeviceReportID: {id: usbdesc.PinballDeviceReportID},
		usbdesc.GamepadReportID:       {id: usbdesc.GamepadReportID},
	}
	sched := hid.NewScheduler([]hid.Device{
		devices[usbdesc.PinballDeviceReportID],
		devices[usbdesc.GamepadReportID],
	}, pollingIntervalUS, noOutputs{})

	w := bufio.NewWriter(port)
	defer w.Flush()

	// Trailing drain window: keep ticking past the last event long
	// enough for its report to clear the scheduler's refractory timer.
	const drainUS = 50_000

	i := 0
	var nowUS uint64
	endUS := drainUS
	for nowUS < endUS {
		for i < len(events) && events[i].EventUS <= nowUS {
			if dev, ok := devices[events[i].ReportID]; ok {
				dev.apply(events[i])
			}
			i++
			if events[i-1].EventUS+drainUS > endUS {
				endUS = events[i-1].EventUS + drainUS
			}
		}
		if reportID, report, ok := sched.Task(nowUS); ok {
			// AverageLatencyUS is the scheduler's own running-average
			// event-to-send latency (spec.md §4.E); Task has already
			// folded this send's contribution in by the time it
			// returns, so the running value doubles as this line's
			// per-send figure when the trace sends one event at a time.
			if _, err := fmt.Fprintf(w, "%d,%d,%x,%d\n", nowUS, reportID, report, sched.AverageLatencyUS()); err != nil {
				return err
			}
			sched.OnSendComplete(nowUS)
		}
		nowUS++
	}
	return w.Flush()
}
