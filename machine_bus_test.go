package main

import (
	"encoding/binary"
	"sync"
	"testing"
)

// TestBus32GetMemory verifies that MachineBus exposes its memory slice
// via GetMemory() for direct access by the snapshot and DMA paths.
func TestBus32GetMemory(t *testing.T) {
	bus := NewMachineBus()

	mem := bus.GetMemory()
	if mem == nil {
		t.Fatal("GetMemory() returned nil")
	}
	if len(mem) != DEFAULT_MEMORY_SIZE {
		t.Fatalf("GetMemory() length %d, expected %d", len(mem), DEFAULT_MEMORY_SIZE)
	}

	// Write through bus, read through memory slice
	bus.Write32(0x1000, 0x12345678)
	got := binary.LittleEndian.Uint32(mem[0x1000:])
	if got != 0x12345678 {
		t.Fatalf("Direct memory read 0x%08X, expected 0x12345678", got)
	}
}

// TestWrite32LittleEndian verifies the byte order of 32-bit stores.
func TestWrite32LittleEndian(t *testing.T) {
	bus := NewMachineBus()
	mem := bus.GetMemory()

	bus.Write32(0x1000, 0x12345678)

	if mem[0x1000] != 0x78 || mem[0x1001] != 0x56 ||
		mem[0x1002] != 0x34 || mem[0x1003] != 0x12 {
		t.Fatalf("Byte order incorrect: got %02X %02X %02X %02X",
			mem[0x1000], mem[0x1001], mem[0x1002], mem[0x1003])
	}
}

// TestRead32RoundTrip exercises representative bit patterns.
func TestRead32RoundTrip(t *testing.T) {
	bus := NewMachineBus()
	testCases := []uint32{0, 1, 0xFF, 0xFFFF, 0xFFFFFF, 0xFFFFFFFF, 0x12345678}

	for _, want := range testCases {
		bus.Write32(0x1000, want)
		got := bus.Read32(0x1000)
		if got != want {
			t.Errorf("Read32 = 0x%X, want 0x%X", got, want)
		}
	}
}

// TestIOReadCallback ensures mapped regions dispatch reads to the
// region handler instead of backing memory.
func TestIOReadCallback(t *testing.T) {
	bus := NewMachineBus()
	callCount := 0
	bus.MapIO(0xF0000, 0xF00FF, func(addr uint32) uint32 {
		callCount++
		return 0x42
	}, nil)

	result := bus.Read32(0xF0000)
	if callCount != 1 {
		t.Errorf("I/O callback called %d times, want 1", callCount)
	}
	if result != 0x42 {
		t.Errorf("Read32 = 0x%X, want 0x42", result)
	}
}

// TestIOWriteCallback ensures mapped regions dispatch writes.
func TestIOWriteCallback(t *testing.T) {
	bus := NewMachineBus()
	var captured uint32
	bus.MapIO(0xF0000, 0xF00FF, nil, func(addr uint32, value uint32) {
		captured = value
	})

	bus.Write32(0xF0000, 0xABCD1234)
	if captured != 0xABCD1234 {
		t.Errorf("I/O callback captured = 0x%X, want 0xABCD1234", captured)
	}
}

// TestIOBoundaries checks that accesses just outside a mapped region
// fall through to memory.
func TestIOBoundaries(t *testing.T) {
	bus := NewMachineBus()
	bus.MapIO(0xF0000, 0xF00FF, func(addr uint32) uint32 {
		return 0x42
	}, nil)

	bus.Write32(0xF0100, 0x11112222)
	if got := bus.Read32(0xF0100); got != 0x11112222 {
		t.Errorf("Read32 past region end = 0x%X, want 0x11112222", got)
	}
	if got := bus.Read32(0xF00FC); got != 0x42 {
		t.Errorf("Read32 at region tail = 0x%X, want 0x42", got)
	}
}

// TestReadWriteBytes exercises the fallible byte-granular accessors the
// DMA engine uses.
func TestReadWriteBytes(t *testing.T) {
	bus := NewMachineBus()

	data := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x01, 0x02, 0x03}
	if err := bus.WriteBytes(0x4000, data); err != nil {
		t.Fatalf("WriteBytes failed: %v", err)
	}

	buf := make([]byte, len(data))
	if err := bus.ReadBytes(0x4000, buf); err != nil {
		t.Fatalf("ReadBytes failed: %v", err)
	}
	for i := range data {
		if buf[i] != data[i] {
			t.Fatalf("byte %d: got 0x%02X, want 0x%02X", i, buf[i], data[i])
		}
	}
}

// TestReadWriteBytesFault verifies that out-of-range DMA surfaces as an
// error instead of a crash.
func TestReadWriteBytesFault(t *testing.T) {
	bus := NewMachineBus()

	buf := make([]byte, 16)
	if err := bus.ReadBytes(DEFAULT_MEMORY_SIZE-8, buf); err == nil {
		t.Fatal("ReadBytes past end of memory did not fail")
	}
	if err := bus.WriteBytes(DEFAULT_MEMORY_SIZE-8, buf); err == nil {
		t.Fatal("WriteBytes past end of memory did not fail")
	}
}

// TestBusReset verifies memory clears on reset.
func TestBusReset(t *testing.T) {
	bus := NewMachineBus()
	bus.Write32(0x1000, 0xDEADBEEF)
	bus.Reset()
	if got := bus.Read32(0x1000); got != 0 {
		t.Fatalf("Read32 after reset = 0x%X, want 0", got)
	}
}

// TestConcurrentAccess ensures thread safety of the raw memory paths.
func TestConcurrentAccess(t *testing.T) {
	bus := NewMachineBus()
	const iterations = 1000
	var wg sync.WaitGroup

	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			base := uint32(id * 0x10000)
			for i := 0; i < iterations; i++ {
				bus.Write32(base+uint32(i*4), uint32(i))
			}
		}(g)
	}

	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			base := uint32(id * 0x10000)
			for i := 0; i < iterations; i++ {
				_ = bus.Read32(base + uint32(i*4))
			}
		}(g)
	}

	wg.Wait()
}

// BenchmarkRead32_NonIO measures read performance for non-I/O addresses
func BenchmarkRead32_NonIO(b *testing.B) {
	bus := NewMachineBus()
	bus.Write32(0x1000, 0x12345678)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = bus.Read32(0x1000)
	}
}

// BenchmarkWrite32_NonIO measures write performance for non-I/O addresses
func BenchmarkWrite32_NonIO(b *testing.B) {
	bus := NewMachineBus()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		bus.Write32(0x1000, uint32(i))
	}
}

// BenchmarkRead32_IORegion measures dispatch overhead for mapped reads
func BenchmarkRead32_IORegion(b *testing.B) {
	bus := NewMachineBus()
	bus.MapIO(0xF0000, 0xF00FF, func(addr uint32) uint32 { return 0 }, nil)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = bus.Read32(0xF0000)
	}
}
