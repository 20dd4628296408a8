//go:build tinygo && rp2350

package faultlog

import (
	"runtime/volatile"
	"unsafe"
)

// faultLogBase is a reserved region at the top of RP2350 SRAM,
// excluded from the board's linker script .bss range so its contents
// survive every reset except power-on -- the same role the Pico SDK's
// __uninitialized_ram section plays for FaultHandler.cpp's crash log.
const faultLogBase = 0x20081c00

const faultLogWords = unsafe.Sizeof(Sealed{}) / 4

func faultLogRegion() *[faultLogWords]volatile.Register32 {
	return (*[faultLogWords]volatile.Register32)(unsafe.Pointer(uintptr(faultLogBase)))
}

type mcuStore struct{}

// MCUStore is the Store backed by the reserved SRAM region above.
var MCUStore Store = mcuStore{}

func (mcuStore) Write(s Sealed) {
	src := (*[faultLogWords]uint32)(unsafe.Pointer(&s))
	dst := faultLogRegion()
	for i := range dst {
		dst[i].Set(src[i])
	}
}

func (mcuStore) Read() (Sealed, bool) {
	var s Sealed
	dst := (*[faultLogWords]uint32)(unsafe.Pointer(&s))
	src := faultLogRegion()
	for i := range dst {
		dst[i] = src[i].Get()
	}
	if !s.Verify() {
		return Sealed{}, false
	}
	for i := range src {
		src[i].Set(0)
	}
	return s, true
}
