// usb_chip.go - DWC2/HS-OTG USB controller core

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
usb_chip.go - USB Controller Core

This module implements the heart of the DWC2/HS-OTG emulation: the chip
instance owning every register bank, the per-channel packet contexts,
the interrupt aggregation tree and the reset lifecycle.

The interrupt tree is a two-level OR-reduction. Per-channel HCINT bits
gated by HCINTMSK roll into one HAINT slot per channel; HAINT gated by
HAINTMSK feeds the HCHINT bit of GINTSTS. Per-endpoint DIEPINT/DOEPINT
bits gated by the shared DIEPMSK/DOEPMSK roll into DAINT; DAINT gated by
DAINTMSK feeds IEPINT and OEPINT. GINTSTS gated by GINTMSK and the
GAHBCFG global enable drives the one controller interrupt line. The line
is level triggered: the external callback fires only when the computed
level actually changes, never once per contributing event.

Concurrency model: one coarse mutex serializes every register access,
packet submission, timer callback and asynchronous completion. Deferred
work (the retry scheduler and the device endpoint scan) is queued as
bottom-half flags and drained at the end of whichever entry point
scheduled it, mirroring the serialized main-loop dispatch the design
assumes. No finer-grained locking exists or is needed.
*/

package main

import (
	"fmt"
	"log"
	"sync"
)

// Register bank geometry in 32-bit words.
const (
	GLBREG_NWORDS = (GINTSTS2 >> 2) + 1
	HREG0_NWORDS  = ((HPRT0 - HCFG) >> 2) + 1
	HREG1_NWORDS  = DWC2_NB_CHAN * 8
	DREG_NWORDS   = ((DTKNQR4 - DCFG) >> 2) + 1
	DIEPREG_NWORDS = DWC2_NB_EP * 8
	DOEPREG_NWORDS = DWC2_NB_EP * 8
	PCGREG_NWORDS  = 2
)

// Host packet asynchronous states
const (
	DWC2_ASYNC_NONE = iota
	DWC2_ASYNC_INFLIGHT
	DWC2_ASYNC_FINISHED
)

type DWC2Packet struct {
	/*
		DWC2Packet is the per-channel transaction context. While a
		packet is pending-async the decoded fields freeze the exact
		submission parameters so the completion path can resume
		without re-reading (possibly guest-modified) registers.
	*/

	devadr       uint32
	epnum        uint32
	epdir        uint32
	mps          uint32
	pid          uint32
	index        uint32
	pcnt         uint32
	len          uint32
	async        int32
	small        bool
	needsService bool

	packet USBPacket
}

type USBChipConfig struct {
	// USBVersion selects the advertised bus generation; 2 enables
	// high-speed operation on the root port.
	USBVersion int
	// SmallXferThreshold caps per-attempt DMA at one max packet for
	// transfers at or below this many bytes. Zero selects the default.
	SmallXferThreshold int
}

type USBChip struct {
	mutex sync.Mutex
	bus   Bus32
	clock *VirtualClock

	// Register banks, one 32-bit word per register slot.
	glbreg  [GLBREG_NWORDS]uint32
	fszreg  [1]uint32
	dfszreg [DWC2_NB_EP]uint32
	hreg0   [HREG0_NWORDS]uint32
	hreg1   [HREG1_NWORDS]uint32
	dreg    [DREG_NWORDS]uint32
	diepreg [DIEPREG_NWORDS]uint32
	doepreg [DOEPREG_NWORDS]uint32
	pcgreg  [PCGREG_NWORDS]uint32

	// Frame scheduler state.
	sofTime      int64
	usbFrameTime int64
	usbBitTime   int64
	frameNumber  uint16
	fi           uint16

	// Deferred work scheduler state.
	nextChan uint16
	working  bool
	bhHost   bool
	bhDevice bool

	usbVersion     uint32
	smallThreshold uint32

	packet   [DWC2_NB_CHAN]DWC2Packet
	usbBuf   [DWC2_NB_CHAN][DWC2_MAX_XFER_SIZE]byte
	fifosBuf [DWC2_NB_CHAN * FIFO_STRIDE]byte

	eofTimer  *VirtualTimer
	workTimer *VirtualTimer

	// Root port (host mode, downstream).
	downstream    USBDeviceModel
	portConnected bool

	// Device mode (upstream) state.
	upstreamConnected bool
	devAddr           uint8
	setupRequest      ControlRequest
	setupValid        bool
	epInQueue         [DWC2_NB_EP][]*USBPacket
	epOutQueue        [DWC2_NB_EP][]*USBPacket
	epInType          [DWC2_NB_EP]uint32
	epOutType         [DWC2_NB_EP]uint32

	// Interrupt line: previous level lives here, not in any global,
	// so multiple controller instances never interfere.
	irqLevel int
	setIRQ   func(level int)
}

// NewUSBChip builds a controller bound to a guest memory bus and a
// virtual clock. The chip powers up in its reset state.
func NewUSBChip(bus Bus32, clock *VirtualClock, cfg USBChipConfig) (*USBChip, error) {
	if bus == nil || clock == nil {
		return nil, fmt.Errorf("usb: chip requires a bus and a clock")
	}

	version := cfg.USBVersion
	if version == 0 {
		version = 2
	}
	if version != 1 && version != 2 {
		return nil, fmt.Errorf("usb: unsupported usb_version %d", version)
	}
	threshold := cfg.SmallXferThreshold
	if threshold == 0 {
		threshold = DEFAULT_SMALL_XFER_THRESHOLD
	}

	chip := &USBChip{
		bus:            bus,
		clock:          clock,
		usbVersion:     uint32(version),
		smallThreshold: uint32(threshold),
	}
	chip.eofTimer = clock.NewTimer(chip.frameBoundary)
	chip.workTimer = clock.NewTimer(chip.workTimerFired)

	chip.usbFrameTime = NANOSECONDS_PER_SECOND / 1000
	chip.usbBitTime = NANOSECONDS_PER_SECOND / USB_HZ_FS
	chip.fi = USB_FRMINTVL - 1

	chip.mutex.Lock()
	chip.coreReset()
	chip.mutex.Unlock()

	return chip, nil
}

// SetIRQHandler registers the external interrupt line callback. It is
// invoked with 1 or 0 on each level change.
func (chip *USBChip) SetIRQHandler(fn func(level int)) {
	chip.mutex.Lock()
	chip.setIRQ = fn
	chip.mutex.Unlock()
}

// MapRegisters exposes the controller's MMIO window on the machine bus
// at the given base address.
func (chip *USBChip) MapRegisters(bus *MachineBus, base uint32) {
	bus.MapIO(base, base+DWC2_MMIO_SIZE-1,
		func(addr uint32) uint32 { return chip.HandleRead(addr - base) },
		func(addr uint32, value uint32) { chip.HandleWrite(addr-base, value) })
}

// ---------------------------------------------------------------------------
// Register slot accessors
// ---------------------------------------------------------------------------

func (chip *USBChip) gotgctl() *uint32 { return &chip.glbreg[GOTGCTL>>2] }
func (chip *USBChip) gahbcfg() *uint32 { return &chip.glbreg[GAHBCFG>>2] }
func (chip *USBChip) grstctl() *uint32 { return &chip.glbreg[GRSTCTL>>2] }
func (chip *USBChip) gintsts() *uint32 { return &chip.glbreg[GINTSTS>>2] }
func (chip *USBChip) gintmsk() *uint32 { return &chip.glbreg[GINTMSK>>2] }

func (chip *USBChip) hreg0ptr(offset uint32) *uint32 { return &chip.hreg0[(offset-HCFG)>>2] }
func (chip *USBChip) hprt0() *uint32    { return chip.hreg0ptr(HPRT0) }
func (chip *USBChip) haint() *uint32    { return chip.hreg0ptr(HAINT) }
func (chip *USBChip) haintmsk() *uint32 { return chip.hreg0ptr(HAINTMSK) }
func (chip *USBChip) hfnum() *uint32    { return chip.hreg0ptr(HFNUM) }

// hcreg addresses one word of a host channel register block; index is
// ch*8 as used throughout the host engine, word is the HC_* slot.
func (chip *USBChip) hcreg(index, word uint32) *uint32 { return &chip.hreg1[index+word] }

func (chip *USBChip) dregptr(offset uint32) *uint32 { return &chip.dreg[(offset-DCFG)>>2] }
func (chip *USBChip) dcfg() *uint32     { return chip.dregptr(DCFG) }
func (chip *USBChip) dctl() *uint32     { return chip.dregptr(DCTL) }
func (chip *USBChip) dsts() *uint32     { return chip.dregptr(DSTS) }
func (chip *USBChip) diepmsk() *uint32  { return chip.dregptr(DIEPMSK) }
func (chip *USBChip) doepmsk() *uint32  { return chip.dregptr(DOEPMSK) }
func (chip *USBChip) daint() *uint32    { return chip.dregptr(DAINT) }
func (chip *USBChip) daintmsk() *uint32 { return chip.dregptr(DAINTMSK) }

func (chip *USBChip) diepctl(ep int) *uint32  { return &chip.diepreg[ep*8+DEP_CTL] }
func (chip *USBChip) diepint(ep int) *uint32  { return &chip.diepreg[ep*8+DEP_INT] }
func (chip *USBChip) dieptsiz(ep int) *uint32 { return &chip.diepreg[ep*8+DEP_TSIZ] }
func (chip *USBChip) diepdma(ep int) *uint32  { return &chip.diepreg[ep*8+DEP_DMA] }
func (chip *USBChip) doepctl(ep int) *uint32  { return &chip.doepreg[ep*8+DEP_CTL] }
func (chip *USBChip) doepint(ep int) *uint32  { return &chip.doepreg[ep*8+DEP_INT] }
func (chip *USBChip) doeptsiz(ep int) *uint32 { return &chip.doepreg[ep*8+DEP_TSIZ] }
func (chip *USBChip) doepdma(ep int) *uint32  { return &chip.doepreg[ep*8+DEP_DMA] }

// ---------------------------------------------------------------------------
// Interrupt tree
// ---------------------------------------------------------------------------

// updateIRQ recomputes the controller interrupt line and invokes the
// external callback only on an actual level change.
func (chip *USBChip) updateIRQ() {
	level := 0
	if (*chip.gintsts()&*chip.gintmsk()) != 0 &&
		(*chip.gahbcfg()&GAHBCFG_GLBL_INTR_EN) != 0 {
		level = 1
	}
	if level != chip.irqLevel {
		chip.irqLevel = level
		if chip.setIRQ != nil {
			chip.setIRQ(level)
		}
	}
}

func (chip *USBChip) raiseGlobalIRQ(intr uint32) {
	if *chip.gintsts()&intr == 0 {
		*chip.gintsts() |= intr
		chip.updateIRQ()
	}
}

func (chip *USBChip) lowerGlobalIRQ(intr uint32) {
	if *chip.gintsts()&intr != 0 {
		*chip.gintsts() &^= intr
		chip.updateIRQ()
	}
}

func (chip *USBChip) raiseHostIRQ(hostIntr uint32) {
	if *chip.haint()&hostIntr == 0 {
		*chip.haint() |= hostIntr
		*chip.haint() &= 0xffff
		if *chip.haint()&*chip.haintmsk() != 0 {
			chip.raiseGlobalIRQ(GINTSTS_HCHINT)
		}
	}
}

func (chip *USBChip) lowerHostIRQ(hostIntr uint32) {
	if *chip.haint()&hostIntr != 0 {
		*chip.haint() &^= hostIntr
		if *chip.haint()&*chip.haintmsk() == 0 {
			chip.lowerGlobalIRQ(GINTSTS_HCHINT)
		}
	}
}

func (chip *USBChip) raiseDeviceIRQ(ep uint32, out bool) {
	deviceIntr := uint32(1) << ep
	if out {
		deviceIntr <<= 16
	}
	if *chip.daint()&deviceIntr == 0 {
		*chip.daint() |= deviceIntr
		if *chip.daint()&*chip.daintmsk() != 0 {
			if *chip.daint()&0xffff != 0 {
				chip.raiseGlobalIRQ(GINTSTS_IEPINT)
			}
			if (*chip.daint()>>16)&0xffff != 0 {
				chip.raiseGlobalIRQ(GINTSTS_OEPINT)
			}
		}
	}
}

func (chip *USBChip) lowerDeviceIRQ(ep uint32, out bool) {
	deviceIntr := uint32(1) << ep
	if out {
		deviceIntr <<= 16
	}
	if *chip.daint()&deviceIntr != 0 {
		*chip.daint() &^= deviceIntr
		if *chip.daint()&*chip.daintmsk() == 0 {
			if *chip.daint()&0xffff == 0 {
				chip.lowerGlobalIRQ(GINTSTS_IEPINT)
			}
			if (*chip.daint()>>16)&0xffff == 0 {
				chip.lowerGlobalIRQ(GINTSTS_OEPINT)
			}
		}
	}
}

// updateHCIRQ recomputes one channel's contribution; index is ch*8.
func (chip *USBChip) updateHCIRQ(index uint32) {
	hostIntr := uint32(1) << (index >> 3)
	if chip.hreg1[index+HC_INT]&chip.hreg1[index+HC_INTMSK] != 0 {
		chip.raiseHostIRQ(hostIntr)
	} else {
		chip.lowerHostIRQ(hostIntr)
	}
}

// updateEPIRQ recomputes one endpoint's IN and OUT contributions.
func (chip *USBChip) updateEPIRQ(ep int) {
	if *chip.diepint(ep)&*chip.diepmsk() != 0 {
		chip.raiseDeviceIRQ(uint32(ep), false)
	} else {
		chip.lowerDeviceIRQ(uint32(ep), false)
	}

	if *chip.doepint(ep)&*chip.doepmsk() != 0 {
		chip.raiseDeviceIRQ(uint32(ep), true)
	} else {
		chip.lowerDeviceIRQ(uint32(ep), true)
	}
}

// IRQLevel reports the current interrupt line level.
func (chip *USBChip) IRQLevel() int {
	chip.mutex.Lock()
	defer chip.mutex.Unlock()
	return chip.irqLevel
}

// ---------------------------------------------------------------------------
// Deferred work scheduling
// ---------------------------------------------------------------------------

func (chip *USBChip) scheduleHostWork()   { chip.bhHost = true }
func (chip *USBChip) scheduleDeviceWork() { chip.bhDevice = true }

// runDeferred drains the bottom-half flags. Called with the chip lock
// held at the tail of every external entry point.
func (chip *USBChip) runDeferred() {
	for chip.bhHost || chip.bhDevice {
		if chip.bhHost {
			chip.bhHost = false
			chip.workBH()
		}
		if chip.bhDevice {
			chip.bhDevice = false
			chip.deviceWorkBH()
		}
	}
}

func (chip *USBChip) workTimerFired() {
	chip.mutex.Lock()
	chip.scheduleHostWork()
	chip.runDeferred()
	chip.mutex.Unlock()
}

// ---------------------------------------------------------------------------
// Reset lifecycle
// ---------------------------------------------------------------------------

// coreReset reinitializes the whole controller to power-on defaults.
// Caller holds the chip lock. Mirrors a hardware core soft reset: all
// banks return to databook reset values, timers stop, pending work is
// dropped, and the port powers back up with any attached device
// re-announced.
func (chip *USBChip) coreReset() {
	chip.workTimer.Del()
	chip.bhHost = false
	chip.bhDevice = false

	if chip.downstream != nil && chip.portConnected {
		chip.portDetach()
	}
	chip.busStop()

	for i := range chip.glbreg {
		chip.glbreg[i] = 0
	}
	*chip.gotgctl() = 0
	chip.glbreg[GUSBCFG>>2] = 5 << GUSBCFG_USBTRDTIM_SHIFT
	*chip.grstctl() = GRSTCTL_AHBIDLE
	*chip.gintsts() = GINTSTS_PTXFEMP | GINTSTS_NPTXFEMP
	chip.glbreg[GRXFSIZ>>2] = 1024
	chip.glbreg[GNPTXFSIZ>>2] = 1024 << FIFOSIZE_DEPTH_SHIFT
	chip.glbreg[GNPTXSTS>>2] = (4 << FIFOSIZE_DEPTH_SHIFT) | 1024
	chip.glbreg[GI2CCTL>>2] = GI2CCTL_I2CDATSE0 | GI2CCTL_ACK
	chip.glbreg[GSNPSID>>2] = 0x4f54300a
	chip.glbreg[GHWCFG2>>2] = (8 << GHWCFG2_DEV_TOKEN_Q_DEPTH_SHIFT) |
		(4 << GHWCFG2_HOST_PERIO_TX_Q_DEPTH_SHIFT) |
		(4 << GHWCFG2_NONPERIO_TX_Q_DEPTH_SHIFT) |
		GHWCFG2_DYNAMIC_FIFO |
		GHWCFG2_PERIO_EP_SUPPORTED |
		((DWC2_NB_CHAN - 1) << GHWCFG2_NUM_HOST_CHAN_SHIFT) |
		(GHWCFG2_INT_DMA_ARCH << GHWCFG2_ARCHITECTURE_SHIFT) |
		(GHWCFG2_OP_MODE_NO_SRP_CAPABLE_HOST << GHWCFG2_OP_MODE_SHIFT)
	chip.glbreg[GHWCFG3>>2] = (4096 << GHWCFG3_DFIFO_DEPTH_SHIFT) |
		(4 << GHWCFG3_PACKET_SIZE_CNTR_WIDTH_SHIFT) |
		(4 << GHWCFG3_XFER_SIZE_CNTR_WIDTH_SHIFT)
	chip.glbreg[GPWRDN>>2] = GPWRDN_PWRDNRSTN

	chip.fszreg[0] = 500 << FIFOSIZE_DEPTH_SHIFT
	for i := range chip.dfszreg {
		chip.dfszreg[i] = (0x100 << FIFOSIZE_DEPTH_SHIFT) | 0x100
	}

	for i := range chip.hreg0 {
		chip.hreg0[i] = 0
	}
	*chip.hreg0ptr(HCFG) = 2 << HCFG_RESVALID_SHIFT
	*chip.hreg0ptr(HFIR) = 60000
	*chip.hfnum() = 0x3fff
	*chip.hreg0ptr(HPTXSTS) = (16 << TXSTS_QSPCAVAIL_SHIFT) | 32768

	// Soft disconnect is the one device control bit that survives.
	sftdiscon := *chip.dctl() & DCTL_SFTDISCON
	for i := range chip.dreg {
		chip.dreg[i] = 0
	}
	*chip.dctl() = sftdiscon

	for i := range chip.hreg1 {
		chip.hreg1[i] = 0
	}
	for i := range chip.diepreg {
		chip.diepreg[i] = 0
	}
	for i := range chip.doepreg {
		chip.doepreg[i] = 0
	}
	for i := range chip.pcgreg {
		chip.pcgreg[i] = 0
	}

	// Endpoint 0 is always active in both directions.
	*chip.diepctl(0) |= DXEPCTL_USBACTEP
	*chip.doepctl(0) |= DXEPCTL_USBACTEP

	chip.sofTime = 0
	chip.frameNumber = 0
	chip.fi = USB_FRMINTVL - 1
	chip.nextChan = 0
	chip.working = false
	chip.setupValid = false

	chip.cancelInflightPackets()
	for i := range chip.packet {
		chip.packet[i].needsService = false
		chip.packet[i].async = DWC2_ASYNC_NONE
	}
	for i := range chip.epInQueue {
		chip.epInQueue[i] = nil
		chip.epOutQueue[i] = nil
	}

	chip.updateIRQ()

	// Reset-exit phase: the port powers up and an attached device is
	// announced again from scratch.
	*chip.hprt0() = HPRT0_PWR
	if chip.downstream != nil && chip.downstream.Attached() {
		chip.portAttach()
		chip.downstream.HandleReset()
	}
	chip.devAddr = 0
}

// Reset performs a full controller reset, equivalent to the guest
// setting the core soft reset bit.
func (chip *USBChip) Reset() {
	chip.mutex.Lock()
	chip.coreReset()
	chip.runDeferred()
	chip.mutex.Unlock()
}

func guestError(format string, args ...interface{}) {
	log.Printf("usb: guest error: "+format, args...)
}
