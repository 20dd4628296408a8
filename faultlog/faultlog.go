// Package faultlog is the hard-fault capture-and-reseal collaborator
// spec.md §7 calls for: register and stack state captured into
// reset-surviving memory with a checksum seal, then read back and
// invalidated exactly once on the following boot. Filling in a
// CrashLog from a live exception frame, and deciding what to do with a
// reported crash (blink pattern, log line, vendor-interface report),
// are both out of core scope per spec.md §1 ("crash/fault capture") --
// this package only owns the capture-seal-verify-invalidate contract.
package faultlog

import (
	"bytes"
	"encoding/binary"

	"golang.org/x/crypto/blake2s"
)

// MaxStackWords bounds the top-of-stack capture to 128 32-bit words
// (512 bytes); this capture only ever runs on Cortex-M targets.
const MaxStackWords = 128

// CrashLog is the fixed-size snapshot of processor state at a hard
// fault: which core faulted, the faulting stack pointer, the fault
// cause code and any associated data, the pushed register file, and a
// top-of-stack capture starting at the exception frame.
type CrashLog struct {
	Core      uint8
	_         [3]byte
	SP        uint32
	Cause     uint32
	ExtraData uint32
	PC        uint32
	LR        uint32
	Registers [13]uint32 // r0-r12

	StackWords uint32
	Stack      [MaxStackWords]uint32
}

func (c *CrashLog) marshal() []byte {
	var buf bytes.Buffer
	buf.Grow(binary.Size(c))
	// CrashLog has no pointers or slices, so this never fails.
	_ = binary.Write(&buf, binary.LittleEndian, c)
	return buf.Bytes()
}

// Sealed is a CrashLog plus the checksum that distinguishes a genuine
// capture from whatever random bits happened to be sitting in RAM on
// power-on.
type Sealed struct {
	Checksum [blake2s.Size]byte
	Log      CrashLog
}

// Seal computes and attaches the checksum that lets a later boot tell
// a real captured crash apart from uninitialized RAM noise.
func Seal(log CrashLog) Sealed {
	return Sealed{Checksum: checksum(log), Log: log}
}

// Verify reports whether s.Checksum matches s.Log's contents.
func (s Sealed) Verify() bool {
	return s.Checksum == checksum(s.Log)
}

func checksum(log CrashLog) [blake2s.Size]byte {
	return blake2s.Sum256(log.marshal())
}

// Store persists a Sealed record across a reset. Read must both
// report and invalidate: once a caller has consumed a crash, it must
// not be reported again on a later boot that had no new fault, per
// spec.md §7 ("reported once and invalidated").
type Store interface {
	Write(Sealed)
	Read() (Sealed, bool)
}

// ReportOnce returns the crash captured before the most recent reset,
// if the store holds one with a valid seal, and invalidates it.
func ReportOnce(s Store) (CrashLog, bool) {
	sealed, ok := s.Read()
	if !ok {
		return CrashLog{}, false
	}
	return sealed.Log, true
}
