package plunger

import "testing"

// fakeSensor feeds a canned sequence of Raw samples to a Pipeline,
// mimicking a direct-potentiometer-style sensor: IsReady reports true
// once per queued sample, ReadRaw drains the queue, and AutoZero just
// records that it was called so tests can assert on it.
type fakeSensor struct {
	queue       []Raw
	nativeScale uint32
	genericJit  bool
	autoZeroed  int
}

func (s *fakeSensor) IsReady() bool { return len(s.queue) > 0 }
func (s *fakeSensor) ReadRaw() Raw {
	r := s.queue[0]
	s.queue = s.queue[1:]
	return r
}
func (s *fakeSensor) NativeScale() uint32            { return s.nativeScale }
func (s *fakeSensor) WantsGenericJitterFilter() bool { return s.genericJit }
func (s *fakeSensor) AutoZero()                      { s.autoZeroed++ }

func (s *fakeSensor) push(tUS uint64, pos uint32) {
	s.queue = append(s.queue, Raw{TimestampUS: tUS, Position: pos})
}

type fakeStore struct {
	saved map[string]Calibration
}

func newFakeStore() *fakeStore { return &fakeStore{saved: map[string]Calibration{}} }

func (s *fakeStore) Load(name string) (Calibration, bool, error) {
	c, ok := s.saved[name]
	return c, ok, nil
}
func (s *fakeStore) Save(name string, cal Calibration) error {
	s.saved[name] = cal
	return nil
}

func baseCal() Calibration {
	return Calibration{Calibrated: true, Min: 0, Zero: 16384, Max: 32767}
}

func TestPipelineAppliesCalibratedMapping(t *testing.T) {
	sensor := &fakeSensor{nativeScale: 32767}
	store := newFakeStore()
	store.saved["test"] = baseCal()
	p := New(sensor, store, Config{SensorName: "test"})

	sensor.push(1000, 16384) // at zero -> z == 0
	z, _, _, _, ok := p.Tick(1000)
	if !ok {
		t.Fatalf("expected ok=true")
	}
	if z.Z != 0 {
		t.Fatalf("z = %d, want 0 at rest position", z.Z)
	}

	// Full retraction -> z == 32767. The reported z is z0_cur, one
	// sample behind the newest reading, so it shows up one tick later.
	sensor.push(3000, 32767)
	p.Tick(3000)
	sensor.push(5000, 32767)
	z, _, _, _, ok = p.Tick(5000)
	if !ok || z.Z != 32767 {
		t.Fatalf("z = %d ok=%v, want 32767", z.Z, ok)
	}
}

func TestPipelineReverseOrientation(t *testing.T) {
	sensor := &fakeSensor{nativeScale: 32767}
	store := newFakeStore()
	store.saved["test"] = baseCal()
	p := New(sensor, store, Config{SensorName: "test", ReverseOrientation: true})

	// Raw 0 reversed against native_scale 32767 becomes 32767, which
	// maps to z == 32767 under baseCal. The reported z is z0_cur, one
	// sample behind the newest reading, so it shows up on the second tick.
	sensor.push(1000, 0)
	p.Tick(1000)
	sensor.push(3000, 0)
	z, _, _, _, ok := p.Tick(3000)
	if !ok || z.Z != 32767 {
		t.Fatalf("z = %d ok=%v, want 32767 under reversed orientation", z.Z, ok)
	}
}

func TestPipelineEnforcesOneMillisecondSpacing(t *testing.T) {
	sensor := &fakeSensor{nativeScale: 32767}
	store := newFakeStore()
	store.saved["test"] = baseCal()
	p := New(sensor, store, Config{SensorName: "test"})

	sensor.push(1000, 16384)
	p.Tick(1000)

	// A second sample only 500us later must be dropped (ok=false),
	// per spec.md §4.B step 5.
	sensor.push(1500, 20000)
	_, _, _, _, ok := p.Tick(1500)
	if ok {
		t.Fatalf("sample 500us after the prior one should have been dropped")
	}

	// A sample a full 1ms later is accepted.
	sensor.push(2000, 20000)
	_, _, _, _, ok = p.Tick(2000)
	if !ok {
		t.Fatalf("sample 1000us after the prior one should have been accepted")
	}
}

func TestPipelineCalibrationAccumulatesExcursionAndZero(t *testing.T) {
	sensor := &fakeSensor{nativeScale: 32767}
	store := newFakeStore()
	p := New(sensor, store, Config{SensorName: "test"})

	p.StartCalibration(0)
	if !p.CalibrationActive() {
		t.Fatalf("expected calibration to be active")
	}

	// Dwell near the rest band (< 40% of native scale) for longer than
	// restDwellUS at a near-constant position, so it counts toward the
	// zero average, then excurse to the extremes.
	now := uint64(0)
	for i := 0; i < 5; i++ {
		now += 50_000
		sensor.push(now, 10000)
		p.Tick(now)
	}
	now += 1000
	sensor.push(now, 32000) // new max
	p.Tick(now)
	now += 1000
	sensor.push(now, 500) // new min
	p.Tick(now)

	// Timeout calibration.
	p.Tick(calDurationUS + 1)

	if p.CalibrationActive() {
		t.Fatalf("calibration should have timed out")
	}
	cal := p.Calibration()
	if !cal.Calibrated {
		t.Fatalf("expected cal.Calibrated to be set")
	}
	if cal.Max != 32000 {
		t.Fatalf("cal.Max = %d, want 32000", cal.Max)
	}
	if cal.Min != 500 {
		t.Fatalf("cal.Min = %d, want 500", cal.Min)
	}
	if cal.Zero == 0 {
		t.Fatalf("cal.Zero should have accumulated from the rest dwell, got 0")
	}
	if _, ok := store.saved["test"]; !ok {
		t.Fatalf("calibration result should have been persisted to the store")
	}
}

func TestPipelineAutoZeroFiresAfterSustainedInactivity(t *testing.T) {
	sensor := &fakeSensor{nativeScale: 32767}
	store := newFakeStore()
	store.saved["test"] = baseCal()
	p := New(sensor, store, Config{
		SensorName:         "test",
		AutoZeroEnabled:    true,
		AutoZeroIntervalUS: 1_000_000,
	})

	t0 := uint64(0)
	sensor.push(t0, 16384)
	p.Tick(t0)

	// Same reported z, repeatedly, well past the auto-zero interval.
	t1 := t0 + 1_000
	sensor.push(t1, 16384)
	p.Tick(t1)

	t2 := t1 + 1_000_001
	sensor.push(t2, 16384)
	p.Tick(t2)

	if sensor.autoZeroed == 0 {
		t.Fatalf("expected AutoZero to have fired after sustained inactivity")
	}
}

func TestPipelineReturnsNotOkWhenSensorNotReady(t *testing.T) {
	sensor := &fakeSensor{nativeScale: 32767}
	store := newFakeStore()
	store.saved["test"] = baseCal()
	p := New(sensor, store, Config{SensorName: "test"})

	_, _, _, _, ok := p.Tick(1000)
	if ok {
		t.Fatalf("expected ok=false with nothing queued on the sensor")
	}
}
