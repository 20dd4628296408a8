// Package calib implements the calibration blob persistence
// collaborator spec.md §6 and §4.B call for: an opaque blob keyed by
// sensor-type name, schema private to the owning driver. Out of core
// scope per spec.md §1 ("persistent calibration file format
// ownership") — this package is the reference encoder SPEC_FULL.md §9
// calls for, not the format's owner.
package calib

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fxamacker/cbor/v2"

	"pincab.dev/rawsample"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	encMode = em
	dm, err := cbor.DecOptions{
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		panic(err)
	}
	decMode = dm
}

// record is the on-disk/in-memory envelope. CBOR's self-describing
// field tagging means a driver that adds a SensorPrivate field or
// grows an existing one decodes cleanly against an older blob instead
// of needing spec.md §6's "versioning by blob size" byte-count check.
type record struct {
	Calibrated           bool      `cbor:"1,keyasint"`
	Min                  uint32    `cbor:"2,keyasint"`
	Zero                 uint32    `cbor:"3,keyasint"`
	Max                  uint32    `cbor:"4,keyasint"`
	FiringTimeMeasuredUS uint32    `cbor:"5,keyasint"`
	SensorPrivate        [8]uint32 `cbor:"6,keyasint"`
}

func toRecord(c rawsample.Calibration) record {
	return record{
		Calibrated:           c.Calibrated,
		Min:                  c.Min,
		Zero:                 c.Zero,
		Max:                  c.Max,
		FiringTimeMeasuredUS: c.FiringTimeMeasuredUS,
		SensorPrivate:        c.SensorPrivate,
	}
}

func (r record) toCalibration() rawsample.Calibration {
	return rawsample.Calibration{
		Calibrated:           r.Calibrated,
		Min:                  r.Min,
		Zero:                 r.Zero,
		Max:                  r.Max,
		FiringTimeMeasuredUS: r.FiringTimeMeasuredUS,
		SensorPrivate:        r.SensorPrivate,
	}
}

// FileStore persists one CBOR-encoded blob per sensor name under dir.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) pathFor(sensorName string) string {
	return filepath.Join(s.dir, sensorName+".cbor")
}

// Load reads and decodes the blob for sensorName. A missing file is
// not an error: ok is false and the caller starts uncalibrated.
func (s *FileStore) Load(sensorName string) (rawsample.Calibration, bool, error) {
	data, err := os.ReadFile(s.pathFor(sensorName))
	if os.IsNotExist(err) {
		return rawsample.Calibration{}, false, nil
	}
	if err != nil {
		return rawsample.Calibration{}, false, fmt.Errorf("calib: load %q: %w", sensorName, err)
	}
	var r record
	if err := decMode.Unmarshal(data, &r); err != nil {
		return rawsample.Calibration{}, false, fmt.Errorf("calib: decode %q: %w", sensorName, err)
	}
	return r.toCalibration(), true, nil
}

// Save encodes and writes the blob for sensorName, replacing any
// prior value atomically via a temp-file rename.
func (s *FileStore) Save(sensorName string, cal rawsample.Calibration) error {
	data, err := encMode.Marshal(toRecord(cal))
	if err != nil {
		return fmt.Errorf("calib: encode %q: %w", sensorName, err)
	}
	path := s.pathFor(sensorName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("calib: write %q: %w", sensorName, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("calib: commit %q: %w", sensorName, err)
	}
	return nil
}

// MemStore is an in-memory store for tests and cmd/controller, still
// going through the same CBOR encode/decode path
// as FileStore so a round trip exercises the real wire format.
type MemStore struct {
	mu   sync.Mutex
	blob map[string][]byte
}

func NewMemStore() *MemStore {
	return &MemStore{blob: map[string][]byte{}}
}

func (s *MemStore) Load(sensorName string) (rawsample.Calibration, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.blob[sensorName]
	if !ok {
		return rawsample.Calibration{}, false, nil
	}
	var r record
	if err := decMode.Unmarshal(data, &r); err != nil {
		return rawsample.Calibration{}, false, fmt.Errorf("calib: decode %q: %w", sensorName, err)
	}
	return r.toCalibration(), true, nil
}

func (s *MemStore) Save(sensorName string, cal rawsample.Calibration) error {
	data, err := encMode.Marshal(toRecord(cal))
	if err != nil {
		return fmt.Errorf("calib: encode %q: %w", sensorName, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blob[sensorName] = data
	return nil
}
