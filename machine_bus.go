// machine_bus.go - Guest memory bus for the Intuition USB controller

/*
 ██▓ ███▄    █ ▄▄▄█████▓ █    ██  ██▓▄▄▄█████▓ ██▓ ▒█████   ███▄    █    ▓█████  ███▄    █   ▄████  ██▓ ███▄    █ ▓█████
▓██▒ ██ ▀█   █ ▓  ██▒ ▓▒ ██  ▓██▒▓██▒▓  ██▒ ▓▒▓██▒▒██▒  ██▒ ██ ▀█   █    ▓█   ▀  ██ ▀█   █  ██▒ ▀█▒▓██▒ ██ ▀█   █ ▓█   ▀
▒██▒▓██  ▀█ ██▒▒ ▓██░ ▒░▓██  ▒██░▒██▒▒ ▓██░ ▒░▒██▒▒██░  ██▒▓██  ▀█ ██▒   ▒███   ▓██  ▀█ ██▒▒██░▄▄▄░▒██▒▓██  ▀█ ██▒▒███
░██░▓██▒  ▐▌██▒░ ▓██▓ ░ ▓▓█  ░██░░██░░ ▓██▓ ░ ░██░▒██   ██░▓██▒  ▐▌██▒   ▒▓█  ▄ ▓██▒  ▐▌██▒░▓█  ██▓░██░▓██▒  ▐▌██▒▒▓█  ▄
░██░▒██░   ▓██░  ▒██▒ ░ ▒▒█████▓ ░██░  ▒██▒ ░ ░██░░ ████▓▒░▒██░   ▓██░   ░▒████▒▒██░   ▓██░░▒▓███▀▒░██░▒██░   ▓██░░▒████▒
░▓  ░ ▒░   ▒ ▒   ▒ ░░   ░▒▓▒ ▒ ▒ ░▓    ▒ ░░   ░▓  ░ ▒░▒░▒░ ░ ▒░   ▒ ▒    ░░ ▒░ ░░ ▒░   ▒ ▒  ░▒   ▒ ░▓  ░ ▒░   ▒ ▒ ░░ ▒░ ░
 ▒ ░░ ░░   ░ ▒░    ░    ░░▒░ ░ ░  ▒ ░    ░     ▒ ░  ░ ▒ ▒░ ░ ░░   ░ ▒░    ░ ░  ░░ ░░   ░ ▒░  ░   ░  ▒ ░░ ░░   ░ ▒░ ░ ░  ░
 ▒ ░   ░   ░ ░   ░       ░░░ ░ ░  ▒ ░  ░       ▒ ░░ ░ ░ ▒     ░   ░ ░       ░      ░   ░ ░ ░ ░   ░  ▒ ░   ░   ░ ░    ░
 ░           ░             ░      ░            ░      ░ ░           ░       ░  ░         ░       ░  ░           ░    ░  ░

(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionUSB
Buy me a coffee: https://ko-fi.com/intuition/tip

License: GPLv3 or later
*/

/*
machine_bus.go - Guest Memory Bus

This module implements the simulated system memory the USB controller DMAs
into and out of, together with the memory-mapped I/O dispatch that exposes
the controller's register window to guest software. It provides a unified
interface for 32-bit little-endian memory operations with an I/O region
mapping table keyed by fixed-size pages.

Core Features:

    Contiguous main memory block with little-endian 32-bit access.
    Memory-mapped I/O via a page-keyed region table with onRead and
    onWrite callbacks.
    Fallible byte-slice accessors (ReadBytes/WriteBytes) used by the DMA
    engine so a failed guest memory transaction surfaces as an error
    instead of a crash.
    Full memory reset capability.

Concurrency:

    A read/write mutex protects the raw memory block. I/O callbacks are
    dispatched outside the bus lock so a register handler may itself issue
    DMA through the bus without deadlocking; the controller serializes its
    own state behind its own lock.
*/

package main

import (
	"encoding/binary"
	"fmt"
	"sync"
)

const (
	DEFAULT_MEMORY_SIZE = 32 * 1024 * 1024
	PAGE_SIZE           = 0x100
	PAGE_MASK           = 0xFFFFFF00
)

type Bus32 interface {
	/*
		Bus32 defines the interface for memory operations within the
		simulated machine. It provides methods to read and write 32-bit
		values, byte-granular fallible access for DMA, and a reset of
		the memory state.
	*/

	Read32(addr uint32) uint32
	Write32(addr uint32, value uint32)
	ReadBytes(addr uint32, buf []byte) error
	WriteBytes(addr uint32, data []byte) error
	Reset()
	GetMemory() []byte
}

type IORegion struct {
	/*
		IORegion represents a memory-mapped I/O region. Each region is
		defined by its start and end addresses (inclusive) and callback
		functions invoked when a 32-bit access falls inside it.
	*/
	start   uint32
	end     uint32
	onRead  func(addr uint32) uint32
	onWrite func(addr uint32, value uint32)
}

type MachineBus struct {
	/*
		MachineBus implements Bus32 and serves as the DMA target and
		MMIO dispatcher for the USB controller. It maintains a
		contiguous block of main memory and a page-keyed mapping of
		I/O regions.
	*/

	mutex   sync.RWMutex
	memory  []byte
	mapping map[uint32][]IORegion
}

func NewMachineBus() *MachineBus {
	return &MachineBus{
		memory:  make([]byte, DEFAULT_MEMORY_SIZE),
		mapping: make(map[uint32][]IORegion),
	}
}

// MapIO registers an I/O region covering [start, end] inclusive. The
// callbacks intercept 32-bit accesses; either may be nil.
func (bus *MachineBus) MapIO(start, end uint32, onRead func(addr uint32) uint32,
	onWrite func(addr uint32, value uint32)) {
	region := IORegion{start: start, end: end, onRead: onRead, onWrite: onWrite}

	bus.mutex.Lock()
	defer bus.mutex.Unlock()
	for page := start & PAGE_MASK; page <= end; page += PAGE_SIZE {
		bus.mapping[page] = append(bus.mapping[page], region)
	}
}

func (bus *MachineBus) findRegion(addr uint32) *IORegion {
	bus.mutex.RLock()
	regions := bus.mapping[addr&PAGE_MASK]
	bus.mutex.RUnlock()
	for i := range regions {
		if addr >= regions[i].start && addr <= regions[i].end {
			return &regions[i]
		}
	}
	return nil
}

func (bus *MachineBus) Read32(addr uint32) uint32 {
	if region := bus.findRegion(addr); region != nil && region.onRead != nil {
		return region.onRead(addr)
	}

	bus.mutex.RLock()
	defer bus.mutex.RUnlock()
	if addr+4 > uint32(len(bus.memory)) {
		return 0
	}
	return binary.LittleEndian.Uint32(bus.memory[addr : addr+4])
}

func (bus *MachineBus) Write32(addr uint32, value uint32) {
	if region := bus.findRegion(addr); region != nil && region.onWrite != nil {
		region.onWrite(addr, value)
		return
	}

	bus.mutex.Lock()
	defer bus.mutex.Unlock()
	if addr+4 > uint32(len(bus.memory)) {
		return
	}
	binary.LittleEndian.PutUint32(bus.memory[addr:addr+4], value)
}

// ReadBytes fills buf from guest memory starting at addr. Used by the DMA
// engine; an out-of-bounds transfer fails without touching buf.
func (bus *MachineBus) ReadBytes(addr uint32, buf []byte) error {
	bus.mutex.RLock()
	defer bus.mutex.RUnlock()
	end := uint64(addr) + uint64(len(buf))
	if end > uint64(len(bus.memory)) {
		return fmt.Errorf("DMA read out of bounds: 0x%08X+%d", addr, len(buf))
	}
	copy(buf, bus.memory[addr:end])
	return nil
}

// WriteBytes stores data into guest memory starting at addr.
func (bus *MachineBus) WriteBytes(addr uint32, data []byte) error {
	bus.mutex.Lock()
	defer bus.mutex.Unlock()
	end := uint64(addr) + uint64(len(data))
	if end > uint64(len(bus.memory)) {
		return fmt.Errorf("DMA write out of bounds: 0x%08X+%d", addr, len(data))
	}
	copy(bus.memory[addr:end], data)
	return nil
}

// Reset clears the entire memory block. I/O mappings are preserved.
func (bus *MachineBus) Reset() {
	bus.mutex.Lock()
	defer bus.mutex.Unlock()
	for i := range bus.memory {
		bus.memory[i] = 0
	}
}

// GetMemory exposes the raw memory slice for loaders and tests.
func (bus *MachineBus) GetMemory() []byte {
	return bus.memory
}
