// usb_mmio.go - DWC2/HS-OTG register file and MMIO decode

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
usb_mmio.go - Register File and MMIO Decode

The controller's 64KB+4KB register window decodes into nine banks by
offset range: global (0x000-0x0FC), host periodic FIFO size (0x100),
device periodic FIFO sizes (0x104-0x3FC), host mode (0x400-0x4FC), host
channels (0x500-0x7FC), device mode (0x800-0x8FC), device IN endpoints
(0x900-0xAFC), device OUT endpoints (0xB00-0xDFC) and power/clock gating
(0xE00-0xFFC), followed by the per-channel FIFO data window at
0x1000-0x8FFC. All accesses are 32-bit.

Most registers are plain storage; side effects concentrate in a handful
of slots. GINTSTS and HCINT clear on a written 1 but protect their
read-only level bits. GRSTCTL's flush and reset command bits read back
once as set, then self-clear on the read. HPRT0 mixes write-1-to-clear
change detectors with hardware-owned status bits, and since only
hardware may enable the port, a guest write can never set ENA. HCCHAR's
enable and disable requests are sticky and mutually exclusive: disable
wins, clears both, and halts the channel.

Reads and writes to offsets with no register behind them, and accesses
on a misaligned offset, are logged as guest errors and otherwise
ignored, never faulted.
*/

package main

// HandleRead services a 32-bit read at offset from the controller base.
func (chip *USBChip) HandleRead(addr uint32) uint32 {
	if addr&3 != 0 {
		guestError("misaligned read at offset 0x%05X", addr)
		return 0
	}

	chip.mutex.Lock()
	defer chip.mutex.Unlock()

	switch {
	case addr <= 0x0fc:
		return chip.glbregRead(addr)
	case addr == HPTXFSIZ:
		return chip.fszreg[0]
	case addr >= 0x104 && addr <= 0x3fc:
		return chip.dfszregRead(addr)
	case addr >= 0x400 && addr <= 0x4fc:
		return chip.hreg0Read(addr)
	case addr >= 0x500 && addr <= 0x7fc:
		return chip.hreg1Read(addr)
	case addr >= 0x800 && addr <= 0x8fc:
		return chip.dregRead(addr)
	case addr >= 0x900 && addr <= 0xafc:
		return chip.diepregRead(addr)
	case addr >= 0xb00 && addr <= 0xdfc:
		return chip.doepregRead(addr)
	case addr >= 0xe00 && addr <= 0xffc:
		return chip.pcgregRead(addr)
	case addr >= FIFO_BAS && addr < DWC2_MMIO_SIZE:
		return chip.fifoRead(addr)
	default:
		guestError("read of unmapped offset 0x%05X", addr)
		return 0
	}
}

// PeekRegister reads a register word without the side effects of a bus
// access: GRSTCTL keeps its command bits, HFNUM still composes the
// live frame remaining. Used by the monitor.
func (chip *USBChip) PeekRegister(addr uint32) uint32 {
	chip.mutex.Lock()
	defer chip.mutex.Unlock()

	switch {
	case addr <= GINTSTS2:
		return chip.glbreg[addr>>2]
	case addr == HPTXFSIZ:
		return chip.fszreg[0]
	case addr >= 0x104 && addr <= 0x3fc:
		return chip.dfszreg[(addr-0x104)>>2]
	case addr == HFNUM:
		return (uint32(chip.frameRemaining()) << HFNUM_FRREM_SHIFT) |
			(uint32(chip.frameNumber) & HFNUM_MAX_FRNUM)
	case addr >= HCFG && addr <= HPRT0:
		return chip.hreg0[(addr-HCFG)>>2]
	case addr >= HCREG_BAS && addr <= HCDMAB(DWC2_NB_CHAN-1):
		return chip.hreg1[(addr-HCREG_BAS)>>2]
	case addr >= DCFG && addr <= DTKNQR4:
		return chip.dreg[(addr-DCFG)>>2]
	case addr >= DIEPREG_BAS && addr <= DIEPCTL(DWC2_NB_EP-1)+0x1c:
		return chip.diepreg[(addr-DIEPREG_BAS)>>2]
	case addr >= DOEPREG_BAS && addr <= DOEPCTL(DWC2_NB_EP-1)+0x1c:
		return chip.doepreg[(addr-DOEPREG_BAS)>>2]
	case addr >= 0xe00 && addr <= 0xffc:
		return chip.pcgreg[(addr-0xe00)>>2]
	default:
		return 0
	}
}

// HandleWrite services a 32-bit write at offset from the controller
// base. Deferred work raised by the write runs before it returns.
func (chip *USBChip) HandleWrite(addr uint32, val uint32) {
	if addr&3 != 0 {
		guestError("misaligned write at offset 0x%05X", addr)
		return
	}

	chip.mutex.Lock()
	defer chip.mutex.Unlock()

	switch {
	case addr <= 0x0fc:
		chip.glbregWrite(addr, val)
	case addr == HPTXFSIZ:
		chip.fszreg[0] = val
	case addr >= 0x104 && addr <= 0x3fc:
		chip.dfszregWrite(addr, val)
	case addr >= 0x400 && addr <= 0x4fc:
		chip.hreg0Write(addr, val)
	case addr >= 0x500 && addr <= 0x7fc:
		chip.hreg1Write(addr, val)
	case addr >= 0x800 && addr <= 0x8fc:
		chip.dregWrite(addr, val)
	case addr >= 0x900 && addr <= 0xafc:
		chip.diepregWrite(addr, val)
	case addr >= 0xb00 && addr <= 0xdfc:
		chip.doepregWrite(addr, val)
	case addr >= 0xe00 && addr <= 0xffc:
		chip.pcgregWrite(addr, val)
	case addr >= FIFO_BAS && addr < DWC2_MMIO_SIZE:
		chip.fifoWrite(addr, val)
	default:
		guestError("write of 0x%08X to unmapped offset 0x%05X", val, addr)
	}

	chip.runDeferred()
}

// ---------------------------------------------------------------------------
// Global registers
// ---------------------------------------------------------------------------

func (chip *USBChip) glbregRead(addr uint32) uint32 {
	if addr > GINTSTS2 {
		guestError("bad global register offset 0x%05X", addr)
		return 0
	}

	index := addr >> 2
	val := chip.glbreg[index]

	switch addr {
	case GRSTCTL:
		// Command bits self-clear once observed.
		val &^= GRSTCTL_SELFCLEAR
		chip.glbreg[index] = val
	}

	return val
}

func (chip *USBChip) glbregWrite(addr uint32, val uint32) {
	if addr > GINTSTS2 {
		guestError("bad global register offset 0x%05X", addr)
		return
	}

	index := addr >> 2
	old := chip.glbreg[index]
	iflg := false

	switch addr {
	case GOTGCTL:
		// Status bits are hardware-owned in both directions.
		val &^= GOTGCTL_READONLY
		val |= old & GOTGCTL_READONLY
	case GAHBCFG:
		if val&GAHBCFG_GLBL_INTR_EN != 0 && old&GAHBCFG_GLBL_INTR_EN == 0 {
			iflg = true
		}
	case GRSTCTL:
		val |= GRSTCTL_AHBIDLE
		val &^= GRSTCTL_DMAREQ
		if old&GRSTCTL_TXFFLSH == 0 && val&GRSTCTL_TXFFLSH != 0 {
			guestError("Tx FIFO flush not implemented")
		}
		if old&GRSTCTL_RXFFLSH == 0 && val&GRSTCTL_RXFFLSH != 0 {
			guestError("Rx FIFO flush not implemented")
		}
		if old&GRSTCTL_IN_TKNQ_FLSH == 0 && val&GRSTCTL_IN_TKNQ_FLSH != 0 {
			guestError("IN token queue flush not implemented")
		}
		if old&GRSTCTL_FRMCNTRRST == 0 && val&GRSTCTL_FRMCNTRRST != 0 {
			guestError("frame counter reset not implemented")
		}
		if old&GRSTCTL_HSFTRST == 0 && val&GRSTCTL_HSFTRST != 0 {
			guestError("host soft reset not implemented")
		}
		if old&GRSTCTL_CSFTRST == 0 && val&GRSTCTL_CSFTRST != 0 {
			chip.coreReset()
			old = chip.glbreg[index]
			val |= old
		}
		// Pending command bits stay visible until the next read.
		val |= old & GRSTCTL_SELFCLEAR
	case GINTSTS:
		// Write-1-to-clear, with the level-sourced bits protected.
		val |= ^old
		val = ^val
		val |= old & GINTSTS_READONLY
		iflg = true
	case GINTMSK:
		iflg = true
	}

	chip.glbreg[index] = val

	if iflg {
		chip.updateIRQ()
	}
}

// ---------------------------------------------------------------------------
// Device periodic FIFO sizes
// ---------------------------------------------------------------------------

func (chip *USBChip) dfszregRead(addr uint32) uint32 {
	index := ((addr - 0x104) >> 2) + 1
	if index >= DWC2_NB_EP || addr != DPTXFSIZN(int(index)) {
		guestError("bad FIFO size register offset 0x%05X", addr)
		return 0
	}
	return chip.dfszreg[index]
}

func (chip *USBChip) dfszregWrite(addr uint32, val uint32) {
	index := ((addr - 0x104) >> 2) + 1
	if index >= DWC2_NB_EP || addr != DPTXFSIZN(int(index)) {
		guestError("bad FIFO size register offset 0x%05X", addr)
		return
	}
	chip.dfszreg[index] = val
}

// ---------------------------------------------------------------------------
// Host mode registers
// ---------------------------------------------------------------------------

func (chip *USBChip) hreg0Read(addr uint32) uint32 {
	if addr < HCFG || addr > HPRT0 {
		guestError("bad host register offset 0x%05X", addr)
		return 0
	}

	val := chip.hreg0[(addr-HCFG)>>2]

	switch addr {
	case HFNUM:
		val = (chip.frameRemaining() << HFNUM_FRREM_SHIFT) |
			(uint32(chip.frameNumber) << HFNUM_FRNUM_SHIFT)
	}

	return val
}

func (chip *USBChip) hreg0Write(addr uint32, val uint32) {
	if addr < HCFG || addr > HPRT0 {
		guestError("bad host register offset 0x%05X", addr)
		return
	}

	index := (addr - HCFG) >> 2
	old := chip.hreg0[index]
	prst := false
	iflg := 0

	switch addr {
	case HFNUM, HPTXSTS, HAINT:
		guestError("write to read-only host register 0x%05X", addr)
		return
	case HAINTMSK:
		val &= 0xffff
	case HPRT0:
		// Hardware-owned status bits survive any write.
		val |= old & (HPRT0_SPD_MASK | HPRT0_LNSTS_MASK |
			HPRT0_OVRCURRACT | HPRT0_CONNSTS)
		val |= old & (HPRT0_SUSP | HPRT0_RES)
		// Only port reset completion may set ENA.
		if old&HPRT0_ENA == 0 && val&HPRT0_ENA != 0 {
			val &^= HPRT0_ENA
		}
		// Write-1-to-clear on the change detectors.
		tval := val & HPRT0_W1C
		told := old & HPRT0_W1C
		tval |= ^told
		tval = ^tval
		tval &= HPRT0_W1C
		val &^= HPRT0_W1C
		val |= tval
		if val&HPRT0_RST == 0 && old&HPRT0_RST != 0 {
			if chip.downstream != nil && chip.downstream.Attached() {
				val |= HPRT0_ENA | HPRT0_ENACHG
				prst = true
			}
		}
		if val&(HPRT0_OVRCURRCHG|HPRT0_ENACHG|HPRT0_CONNDET) != 0 {
			iflg = 1
		} else {
			iflg = -1
		}
	}

	if prst {
		// Reset release propagates downstream exactly once.
		chip.portReset()
		val &^= HPRT0_CONNDET
	}

	chip.hreg0[index] = val

	if iflg > 0 {
		chip.raiseGlobalIRQ(GINTSTS_PRTINT)
	} else if iflg < 0 {
		chip.lowerGlobalIRQ(GINTSTS_PRTINT)
	}
}

// ---------------------------------------------------------------------------
// Host channel registers
// ---------------------------------------------------------------------------

func (chip *USBChip) hreg1Read(addr uint32) uint32 {
	if addr < HCCHAR(0) || addr > HCDMAB(DWC2_NB_CHAN-1) {
		guestError("bad host channel register offset 0x%05X", addr)
		return 0
	}
	return chip.hreg1[(addr-HCREG_BAS)>>2]
}

func (chip *USBChip) hreg1Write(addr uint32, val uint32) {
	if addr < HCCHAR(0) || addr > HCDMAB(DWC2_NB_CHAN-1) {
		guestError("bad host channel register offset 0x%05X", addr)
		return
	}

	index := (addr - HCREG_BAS) >> 2
	old := chip.hreg1[index]
	iflg := false
	enflg := false
	disflg := false

	switch HCREG_BAS + (addr & 0x1c) {
	case HCCHAR(0):
		// Enable and disable requests are sticky; disable wins.
		if val&HCCHAR_CHDIS != 0 && old&HCCHAR_CHDIS == 0 {
			val &^= HCCHAR_CHENA | HCCHAR_CHDIS
			disflg = true
		} else {
			val |= old & HCCHAR_CHDIS
			if val&HCCHAR_CHENA != 0 && old&HCCHAR_CHENA == 0 {
				val &^= HCCHAR_CHDIS
				enflg = true
			} else {
				val |= old & HCCHAR_CHENA
			}
		}
	case HCINT(0):
		val |= ^old
		val = ^val
		val &^= HCINTMSK_RESERVED14_31
		iflg = true
	case HCINTMSK(0):
		val &^= HCINTMSK_RESERVED14_31
		iflg = true
	case HCDMAB(0):
		guestError("write to read-only host channel register 0x%05X", addr)
		return
	}

	chip.hreg1[index] = val

	if disflg {
		chip.hreg1[(index&^7)+HC_INT] |= HCINTMSK_CHHLTD
		iflg = true
	}

	if enflg {
		chip.enableChannel(index &^ 7)
	}

	if iflg {
		chip.updateHCIRQ(index &^ 7)
	}
}

// ---------------------------------------------------------------------------
// Device mode registers
// ---------------------------------------------------------------------------

func (chip *USBChip) dregRead(addr uint32) uint32 {
	if addr < DCFG || addr > DTKNQR4 {
		guestError("bad device register offset 0x%05X", addr)
		return 0
	}
	return chip.dreg[(addr-DCFG)>>2]
}

func (chip *USBChip) dregWrite(addr uint32, val uint32) {
	if addr < DCFG || addr > DTKNQR4 {
		guestError("bad device register offset 0x%05X", addr)
		return
	}

	index := (addr - DCFG) >> 2
	old := chip.dreg[index]
	iflg := false
	pflg := false

	switch addr {
	case DIEPMSK, DOEPMSK, DAINTMSK:
		iflg = true
	case DCFG:
		chip.devAddr = uint8((val & DCFG_DEVADDR_MASK) >> DCFG_DEVADDR_SHIFT)
	case DCTL:
		val &^= DCTL_GOUTNAKSTS | DCTL_GNPINNAKSTS
		val |= old & (DCTL_GOUTNAKSTS | DCTL_GNPINNAKSTS)
		pflg = true
		if val&DCTL_CGNPINNAK != 0 {
			chip.lowerGlobalIRQ(GINTSTS_GINNAKEFF)
			val &^= DCTL_CGNPINNAK
		}
		if val&DCTL_CGOUTNAK != 0 {
			chip.lowerGlobalIRQ(GINTSTS_GOUTNAKEFF)
			val &^= DCTL_CGOUTNAK
		}
		if val&DCTL_SGNPINNAK != 0 {
			chip.raiseGlobalIRQ(GINTSTS_GINNAKEFF)
			val &^= DCTL_SGNPINNAK
		}
		if val&DCTL_SGOUTNAK != 0 {
			chip.raiseGlobalIRQ(GINTSTS_GOUTNAKEFF)
			val &^= DCTL_SGOUTNAK
		}
		if old&DCTL_SFTDISCON != 0 && val&DCTL_SFTDISCON == 0 {
			chip.deviceSoftConnect()
		}
		if old&DCTL_SFTDISCON == 0 && val&DCTL_SFTDISCON != 0 {
			chip.deviceSoftDisconnect()
			pflg = false
		}
		iflg = true
	case DAINT, DSTS, DTKNQR1, DTKNQR2, DTKNQR3, DTKNQR4:
		val = old
	}

	chip.dreg[index] = val

	if iflg {
		for ep := 0; ep < DWC2_NB_EP; ep++ {
			chip.updateEPIRQ(ep)
		}
		chip.updateIRQ()
	}

	if pflg {
		chip.scheduleDeviceWork()
	}
}

// ---------------------------------------------------------------------------
// Device endpoint registers
// ---------------------------------------------------------------------------

func (chip *USBChip) diepregRead(addr uint32) uint32 {
	if addr < DIEPCTL(0) || addr > DTXFSTS(DWC2_NB_EP-1) {
		guestError("bad IN endpoint register offset 0x%05X", addr)
		return 0
	}
	return chip.diepreg[(addr-DIEPREG_BAS)>>2]
}

func (chip *USBChip) diepregWrite(addr uint32, val uint32) {
	if addr < DIEPCTL(0) || addr > DTXFSTS(DWC2_NB_EP-1) {
		guestError("bad IN endpoint register offset 0x%05X", addr)
		return
	}

	index := (addr - DIEPREG_BAS) >> 2
	old := chip.diepreg[index]
	ep := int(index >> 3)
	uflg := false
	pflg := false
	iflg := false

	switch DIEPREG_BAS + (addr & 0x1c) {
	case DIEPCTL(0):
		if ep != 0 {
			chip.epInType[ep] = (val & DXEPCTL_EPTYPE_MASK) >> DXEPCTL_EPTYPE_SHIFT
		}

		val &^= DXEPCTL_NAKSTS
		val |= old & DXEPCTL_NAKSTS
		val |= old & (DXEPCTL_EPENA | DXEPCTL_EPDIS | DXEPCTL_USBACTEP)

		if ep == 0 {
			// Endpoint 0 is always a control endpoint; its MPS field
			// writes through to the OUT side.
			val |= old & DXEPCTL_STALL
			val |= DXEPCTL_USBACTEP
			val &^= DXEPCTL_EPTYPE_MASK
			*chip.doepctl(0) &^= D0EPCTL_MPS_MASK
			*chip.doepctl(0) |= val & D0EPCTL_MPS_MASK
		}
		uflg = true
		pflg = true
		iflg = true
	case DIEPINT(0):
		val = old &^ val
		iflg = true
	}

	chip.diepreg[index] = val

	if uflg {
		chip.updateInEp(ep)
	}
	if pflg {
		chip.scheduleDeviceWork()
	}
	if iflg {
		chip.updateEPIRQ(ep)
	}
}

func (chip *USBChip) doepregRead(addr uint32) uint32 {
	if addr < DOEPCTL(0) || addr > DOEPDMA(DWC2_NB_EP-1) {
		guestError("bad OUT endpoint register offset 0x%05X", addr)
		return 0
	}
	return chip.doepreg[(addr-DOEPREG_BAS)>>2]
}

func (chip *USBChip) doepregWrite(addr uint32, val uint32) {
	if addr < DOEPCTL(0) || addr > DOEPDMA(DWC2_NB_EP-1) {
		guestError("bad OUT endpoint register offset 0x%05X", addr)
		return
	}

	index := (addr - DOEPREG_BAS) >> 2
	old := chip.doepreg[index]
	ep := int(index >> 3)
	uflg := false
	pflg := false
	iflg := false

	switch DOEPREG_BAS + (addr & 0x1c) {
	case DOEPCTL(0):
		if ep != 0 {
			chip.epOutType[ep] = (val & DXEPCTL_EPTYPE_MASK) >> DXEPCTL_EPTYPE_SHIFT
		}

		val &^= DXEPCTL_NAKSTS
		val |= old & DXEPCTL_NAKSTS
		val |= old & (DXEPCTL_EPENA | DXEPCTL_USBACTEP | DXEPCTL_EPDIS)

		if ep == 0 {
			// Endpoint 0 OUT cannot be disabled and inherits its MPS
			// from the IN side.
			val |= old & DXEPCTL_STALL
			val |= DXEPCTL_USBACTEP
			val &^= DXEPCTL_EPDIS | DXEPCTL_EPTYPE_MASK | D0EPCTL_MPS_MASK
			val |= old & D0EPCTL_MPS_MASK
		}
		uflg = true
		pflg = true
		iflg = true
	case DOEPINT(0):
		val = old &^ val
		iflg = true
	}

	chip.doepreg[index] = val

	if uflg {
		chip.updateOutEp(ep)
	}
	if pflg {
		chip.scheduleDeviceWork()
	}
	if iflg {
		chip.updateEPIRQ(ep)
	}
}

// ---------------------------------------------------------------------------
// Power and clock gating
// ---------------------------------------------------------------------------

func (chip *USBChip) pcgregRead(addr uint32) uint32 {
	if addr < PCGCTL || addr > PCGCCTL1 {
		guestError("bad power register offset 0x%05X", addr)
		return 0
	}
	return chip.pcgreg[(addr-PCGCTL)>>2]
}

func (chip *USBChip) pcgregWrite(addr uint32, val uint32) {
	if addr < PCGCTL || addr > PCGCCTL1 {
		guestError("bad power register offset 0x%05X", addr)
		return
	}
	chip.pcgreg[(addr-PCGCTL)>>2] = val
}

// ---------------------------------------------------------------------------
// FIFO data window
// ---------------------------------------------------------------------------

func (chip *USBChip) fifoRead(addr uint32) uint32 {
	index := addr >> 12
	if index < 1 || int(index) > DWC2_NB_CHAN {
		guestError("bad FIFO offset 0x%05X", addr)
		return 0
	}
	off := addr - FIFO_BAS
	return uint32(chip.fifosBuf[off]) |
		uint32(chip.fifosBuf[off+1])<<8 |
		uint32(chip.fifosBuf[off+2])<<16 |
		uint32(chip.fifosBuf[off+3])<<24
}

func (chip *USBChip) fifoWrite(addr uint32, val uint32) {
	index := addr >> 12
	if index < 1 || int(index) > DWC2_NB_CHAN {
		guestError("bad FIFO offset 0x%05X", addr)
		return
	}
	off := addr - FIFO_BAS
	chip.fifosBuf[off] = byte(val)
	chip.fifosBuf[off+1] = byte(val >> 8)
	chip.fifosBuf[off+2] = byte(val >> 16)
	chip.fifosBuf[off+3] = byte(val >> 24)
}
