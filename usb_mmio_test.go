package main

import "testing"

// TestGINTSTSWriteOneToClear: writing 1 clears a pending bit, writing 0
// leaves it, and the level-sourced read-only bits never clear.
func TestGINTSTSWriteOneToClear(t *testing.T) {
	chip, _, _ := newTestChip(t)

	before := chip.HandleRead(GINTSTS)
	if before&GINTSTS_NPTXFEMP == 0 {
		t.Fatal("NPTXFEMP not pending at reset")
	}

	// Writing zero changes nothing.
	chip.HandleWrite(GINTSTS, 0)
	if got := chip.HandleRead(GINTSTS); got != before {
		t.Fatalf("GINTSTS = 0x%08X after zero write, expected 0x%08X", got, before)
	}

	// The FIFO-empty bits are level-sourced and cannot be cleared by
	// the guest.
	chip.HandleWrite(GINTSTS, GINTSTS_NPTXFEMP|GINTSTS_PTXFEMP)
	if got := chip.HandleRead(GINTSTS); got&GINTSTS_NPTXFEMP == 0 {
		t.Fatalf("GINTSTS = 0x%08X, level-sourced bit cleared by write", got)
	}
}

// TestGINTSTSClearsEdgeBit uses the port interrupt, an edge-sourced bit
// the guest may acknowledge.
func TestGINTSTSClearsEdgeBit(t *testing.T) {
	chip, _, _ := newTestChip(t)
	if err := chip.Attach(newScriptedDevice()); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}

	if chip.HandleRead(GINTSTS)&GINTSTS_PRTINT == 0 {
		t.Fatal("PRTINT not pending after attach")
	}

	// Acknowledge the port-level change first, then the global bit.
	hprt0 := chip.HandleRead(HPRT0)
	chip.HandleWrite(HPRT0, (hprt0&^HPRT0_W1C)|HPRT0_CONNDET)
	if got := chip.HandleRead(GINTSTS); got&GINTSTS_PRTINT != 0 {
		t.Fatalf("GINTSTS = 0x%08X, PRTINT still pending after port ack", got)
	}
}

// TestGRSTCTLSelfClearOnRead: command bits stay visible until read.
func TestGRSTCTLSelfClearOnRead(t *testing.T) {
	chip, _, _ := newTestChip(t)

	if got := chip.HandleRead(GRSTCTL); got&GRSTCTL_AHBIDLE == 0 {
		t.Fatalf("GRSTCTL = 0x%08X, AHBIDLE clear at reset", got)
	}

	chip.HandleWrite(GRSTCTL, GRSTCTL_TXFFLSH)
	// First read observes the command cleared.
	if got := chip.HandleRead(GRSTCTL); got&GRSTCTL_TXFFLSH != 0 {
		t.Fatalf("GRSTCTL = 0x%08X, TXFFLSH visible after read", got)
	}
	// DMAREQ can never be set by the guest.
	chip.HandleWrite(GRSTCTL, GRSTCTL_DMAREQ)
	if got := chip.HandleRead(GRSTCTL); got&GRSTCTL_DMAREQ != 0 {
		t.Fatalf("GRSTCTL = 0x%08X, guest set DMAREQ", got)
	}
}

// TestGOTGCTLStatusProtected: the session/connector status bits are
// hardware-owned in both directions.
func TestGOTGCTLStatusProtected(t *testing.T) {
	chip, _, _ := newTestChip(t)
	if err := chip.Attach(newScriptedDevice()); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}

	before := chip.HandleRead(GOTGCTL)
	if before&GOTGCTL_ASESVLD == 0 {
		t.Fatal("ASESVLD clear after attach")
	}

	// Try to clear it, then try to forge BSESVLD.
	chip.HandleWrite(GOTGCTL, 0)
	if chip.HandleRead(GOTGCTL)&GOTGCTL_ASESVLD == 0 {
		t.Fatal("guest cleared hardware-owned ASESVLD")
	}
	chip.HandleWrite(GOTGCTL, GOTGCTL_BSESVLD)
	if chip.HandleRead(GOTGCTL)&GOTGCTL_BSESVLD != 0 {
		t.Fatal("guest set hardware-owned BSESVLD")
	}
}

// TestHPRT0EnableNotGuestSettable: only reset completion sets ENA.
func TestHPRT0EnableNotGuestSettable(t *testing.T) {
	chip, _, _ := newTestChip(t)
	if err := chip.Attach(newScriptedDevice()); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}

	chip.HandleWrite(HPRT0, HPRT0_PWR|HPRT0_ENA)
	if chip.HandleRead(HPRT0)&HPRT0_ENA != 0 {
		t.Fatal("guest set HPRT0_ENA directly")
	}

	enableRootPort(t, chip)

	// Once set by hardware, writing 1 to ENA clears it (w1c).
	chip.HandleWrite(HPRT0, HPRT0_PWR|HPRT0_ENA)
	if chip.HandleRead(HPRT0)&HPRT0_ENA != 0 {
		t.Fatal("HPRT0_ENA not cleared by write-1")
	}
}

// TestHAINTMSKWidth: only the 16 channel bits are writable.
func TestHAINTMSKWidth(t *testing.T) {
	chip, _, _ := newTestChip(t)

	chip.HandleWrite(HAINTMSK, 0xffffffff)
	if got := chip.HandleRead(HAINTMSK); got != 0xffff {
		t.Fatalf("HAINTMSK = 0x%08X, expected 0x0000FFFF", got)
	}
}

// TestHCINTWriteOneToClear exercises the channel interrupt ack path.
func TestHCINTWriteOneToClear(t *testing.T) {
	chip, _, _ := newTestChip(t)

	// Bits 14-31 of HCINT have no interrupts behind them.
	if uint32(HCINTMSK_RESERVED14_31) != 0xFFFFC000 {
		t.Fatalf("reserved mask = 0x%08X, expected 0xFFFFC000",
			uint32(HCINTMSK_RESERVED14_31))
	}

	chip.HandleWrite(HCINTMSK(2), HCINTMSK_CHHLTD)
	chip.HandleWrite(HAINTMSK, 0xffff)

	// Pend an interrupt by halting the channel via CHDIS.
	chip.HandleWrite(HCCHAR(2), HCCHAR_CHDIS)
	if chip.HandleRead(HCINT(2))&HCINTMSK_CHHLTD == 0 {
		t.Fatal("CHHLTD not pending after channel disable")
	}
	if chip.HandleRead(GINTSTS)&GINTSTS_HCHINT == 0 {
		t.Fatal("HCHINT rollup not pending")
	}
	if chip.HandleRead(HAINT)&(1<<2) == 0 {
		t.Fatal("HAINT bit 2 not pending")
	}

	chip.HandleWrite(HCINT(2), HCINTMSK_CHHLTD)
	if got := chip.HandleRead(HCINT(2)); got&HCINTMSK_CHHLTD != 0 {
		t.Fatalf("HCINT2 = 0x%08X after ack", got)
	}
	if chip.HandleRead(GINTSTS)&GINTSTS_HCHINT != 0 {
		t.Fatal("HCHINT rollup still pending after ack")
	}
}

// TestDxEPINTWriteOneToClear covers the device endpoint ack registers.
func TestDxEPINTWriteOneToClear(t *testing.T) {
	chip, _, _ := newTestChip(t)

	// SNAK command pends INEPNAKEFF.
	chip.HandleWrite(DIEPCTL(1), DXEPCTL_SNAK)
	if chip.HandleRead(DIEPINT(1))&DXEPINT_INEPNAKEFF == 0 {
		t.Fatal("INEPNAKEFF not pending after SNAK")
	}
	chip.HandleWrite(DIEPINT(1), DXEPINT_INEPNAKEFF)
	if got := chip.HandleRead(DIEPINT(1)); got&DXEPINT_INEPNAKEFF != 0 {
		t.Fatalf("DIEPINT1 = 0x%08X after ack", got)
	}
}

// TestDAINTReadOnly: rollups ignore guest writes.
func TestDAINTReadOnly(t *testing.T) {
	chip, _, _ := newTestChip(t)

	before := chip.HandleRead(DAINT)
	chip.HandleWrite(DAINT, 0xffffffff)
	if got := chip.HandleRead(DAINT); got != before {
		t.Fatalf("DAINT = 0x%08X after write, expected 0x%08X", got, before)
	}

	before = chip.HandleRead(DSTS)
	chip.HandleWrite(DSTS, 0xffffffff)
	if got := chip.HandleRead(DSTS); got != before {
		t.Fatalf("DSTS = 0x%08X after write, expected 0x%08X", got, before)
	}
}

// TestEp0ControlForced: endpoint 0 is always a control endpoint and
// its OUT max packet size mirrors the IN side.
func TestEp0ControlForced(t *testing.T) {
	chip, _, _ := newTestChip(t)

	chip.HandleWrite(DIEPCTL(0), DXEPCTL_EPTYPE_MASK|D0EPCTL_MPS_32)
	got := chip.HandleRead(DIEPCTL(0))
	if got&DXEPCTL_EPTYPE_MASK != 0 {
		t.Fatalf("DIEPCTL0 = 0x%08X, endpoint type not forced to control", got)
	}
	if got&DXEPCTL_USBACTEP == 0 {
		t.Fatalf("DIEPCTL0 = 0x%08X, USBACTEP not forced", got)
	}
	if out := chip.HandleRead(DOEPCTL(0)); out&D0EPCTL_MPS_MASK != D0EPCTL_MPS_32 {
		t.Fatalf("DOEPCTL0 = 0x%08X, MPS not mirrored from IN side", out)
	}
}

// TestFIFOWindow: word access to a channel FIFO window round-trips.
func TestFIFOWindow(t *testing.T) {
	chip, _, _ := newTestChip(t)

	addr := uint32(FIFO_BAS + 0x1000) // second FIFO window
	chip.HandleWrite(addr, 0xCAFEBABE)
	chip.HandleWrite(addr+4, 0x12345678)
	if got := chip.HandleRead(addr); got != 0xCAFEBABE {
		t.Fatalf("FIFO word 0 = 0x%08X", got)
	}
	if got := chip.HandleRead(addr + 4); got != 0x12345678 {
		t.Fatalf("FIFO word 1 = 0x%08X", got)
	}
}

// TestMisalignedAccessIgnored: the bus hands unaligned addresses to the
// handler unmasked, so the decoder must refuse them itself. An
// unaligned read in the last FIFO window would otherwise run off the
// end of the FIFO memory.
func TestMisalignedAccessIgnored(t *testing.T) {
	chip, bus, _ := newTestChip(t)
	chip.MapRegisters(bus, USB_MMIO_BASE)

	if got := bus.Read32(USB_MMIO_BASE + 0x8FFD); got != 0 {
		t.Fatalf("misaligned FIFO read = 0x%08X, expected 0", got)
	}
	bus.Write32(USB_MMIO_BASE+0x8FFE, 0xDEADBEEF)

	// Register-bank accesses off word alignment are no-ops too, not
	// aliases of the neighboring word.
	chip.HandleWrite(GINTMSK+1, 0xFFFFFFFF)
	if got := chip.HandleRead(GINTMSK); got != 0 {
		t.Fatalf("GINTMSK = 0x%08X after misaligned write, expected 0", got)
	}
	if got := chip.HandleRead(GSNPSID + 2); got != 0 {
		t.Fatalf("misaligned register read = 0x%08X, expected 0", got)
	}
}

// TestUnmappedOffsetsIgnored: stray accesses are logged, not faulted.
func TestUnmappedOffsetsIgnored(t *testing.T) {
	chip, _, _ := newTestChip(t)

	if got := chip.HandleRead(0x4f8); got != 0 {
		t.Fatalf("read of unmapped offset = 0x%08X, expected 0", got)
	}
	chip.HandleWrite(0x4f8, 0xdeadbeef)
	// Still alive and sane afterwards.
	if got := chip.HandleRead(GSNPSID); got != 0x4f54300a {
		t.Fatalf("GSNPSID = 0x%08X after stray write", got)
	}
}
