// registers.go - Centralized I/O register address map for IntuitionUSB

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
License: GPLv3 or later
*/

/*
registers.go - Master I/O Register Address Map

This file provides a centralized reference for the memory-mapped layout of
the simulated machine. The controller's detailed register constants live in
usb_constants.go; this is the map of where everything sits on the bus.

MEMORY MAP OVERVIEW
===================

Address Range         Size    Device              Constants File
---------------------------------------------------------------------------
0x0000000-0x1EFFFFF   31MB    Main RAM            -
0x1F00000-0x1F10FFF   68KB    USB Controller      usb_constants.go

USB CONTROLLER WINDOW (offsets from USB_MMIO_BASE)
==================================================

Offset Range    Bank       Contents
---------------------------------------------------------------------------
0x00000-0x000FC glbreg     OTG control, reset, interrupt status/mask,
                           FIFO sizing, Synopsys ID, hardware configs
0x00100         fszreg     Host periodic TX FIFO size (HPTXFSIZ)
0x00104-0x003FC dfszreg    Device IN endpoint TX FIFO sizes
0x00400-0x004FC hreg0      Host config, frame interval/number, port
                           status (HPRT0), channel interrupt rollup
0x00500-0x007FC hreg1      Host channels, 8 words x 8 channels
                           (HCCHAR/HCSPLT/HCINT/HCINTMSK/HCTSIZ/HCDMA)
0x00800-0x008FC dreg       Device config/control/status, endpoint
                           interrupt rollup (DAINT), token queues
0x00900-0x00AFC diepreg    Device IN endpoints, 8 words x 16
0x00B00-0x00DFC doepreg    Device OUT endpoints, 8 words x 16
0x00E00-0x00FFC pcgreg     Power and clock gating
0x01000-0x10FFF fifo       Per-channel FIFO access windows, 4KB each

The window is mapped by USBChip.MapRegisters. All accesses are 32-bit;
sub-word access is not decoded, matching the hardware's AHB slave port.

DMA
===

The controller masters the bus directly: HCDMA/DIEPDMA/DOEPDMA hold guest
physical addresses anywhere in main RAM, and descriptor-chain mode fetches
its 8-byte descriptors from RAM as well. There is no IOMMU in this machine.
*/

package main

// =============================================================================
// System Memory Layout
// =============================================================================

const (
	// Main RAM occupies the bottom of the address space.
	RAM_BASE = 0x0000000
	RAM_END  = USB_MMIO_BASE - 1

	// USB controller register window.
	USB_MMIO_BASE = 0x1F00000
	USB_MMIO_END  = USB_MMIO_BASE + DWC2_MMIO_SIZE - 1
)

// =============================================================================
// Helper Functions
// =============================================================================

// IsUSBAddress returns true if the address falls in the controller window.
func IsUSBAddress(addr uint32) bool {
	return addr >= USB_MMIO_BASE && addr <= USB_MMIO_END
}

// USBBankName returns the register bank a controller-relative offset
// decodes into, for diagnostics.
func USBBankName(offset uint32) string {
	switch {
	case offset <= 0x0fc:
		return "glbreg"
	case offset == HPTXFSIZ:
		return "fszreg"
	case offset >= 0x104 && offset <= 0x3fc:
		return "dfszreg"
	case offset >= 0x400 && offset <= 0x4fc:
		return "hreg0"
	case offset >= 0x500 && offset <= 0x7fc:
		return "hreg1"
	case offset >= 0x800 && offset <= 0x8fc:
		return "dreg"
	case offset >= 0x900 && offset <= 0xafc:
		return "diepreg"
	case offset >= 0xb00 && offset <= 0xdfc:
		return "doepreg"
	case offset >= 0xe00 && offset <= 0xffc:
		return "pcgreg"
	case offset >= FIFO_BAS && offset < DWC2_MMIO_SIZE:
		return "fifo"
	default:
		return "unmapped"
	}
}
