// usb_constants.go - DWC2/HS-OTG USB controller register map and bit definitions

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
usb_constants.go - DWC2/HS-OTG Register Map and Bit Definitions

Register offsets and bit-field constants for the Synopsys DesignWare
USB 2.0 Hi-Speed On-The-Go controller as seen by the guest through its
4KB register window. Names and values follow the hardware databook (and
the Linux dwc2 driver header) verbatim so that the emulation can be
cross-checked against real silicon documentation field by field.

The register space decodes into fixed banks:

  0x000-0x0FC  Global OTG/core registers
  0x100        Host periodic TX FIFO size
  0x104-0x3FC  Device periodic TX FIFO sizes
  0x400-0x4FC  Host mode global registers
  0x500-0x7FC  Host channel registers (8 channels x 0x20 stride)
  0x800-0x8FC  Device mode global registers
  0x900-0xAFC  Device IN endpoint registers (16 endpoints x 0x20 stride)
  0xB00-0xDFC  Device OUT endpoint registers (16 endpoints x 0x20 stride)
  0xE00-0xFFC  Power and clock gating registers
  0x1000+      Per-channel FIFO windows (4KB stride)
*/

package main

// Core geometry and timing
const (
	DWC2_MMIO_SIZE     = 0x11000
	DWC2_NB_CHAN       = 8
	DWC2_NB_EP         = 16
	DWC2_MAX_XFER_SIZE = 65536

	USB_HZ_FS    = 12000000
	USB_HZ_HS    = 96000000
	USB_FRMINTVL = 12000

	NANOSECONDS_PER_SECOND = 1000000000
)

// Global register offsets (bank 0x000-0x0FC)
const (
	GOTGCTL   = 0x000 // OTG control and status
	GOTGINT   = 0x004 // OTG interrupt
	GAHBCFG   = 0x008 // AHB configuration
	GUSBCFG   = 0x00C // USB configuration
	GRSTCTL   = 0x010 // Reset control
	GINTSTS   = 0x014 // Core interrupt status
	GINTMSK   = 0x018 // Core interrupt mask
	GRXSTSR   = 0x01C // Receive status debug read
	GRXSTSP   = 0x020 // Receive status read/pop
	GRXFSIZ   = 0x024 // Receive FIFO size
	GNPTXFSIZ = 0x028 // Non-periodic TX FIFO size
	GNPTXSTS  = 0x02C // Non-periodic TX FIFO/queue status
	GI2CCTL   = 0x030 // I2C access
	GPVNDCTL  = 0x034 // PHY vendor control
	GGPIO     = 0x038 // General purpose I/O
	GUID      = 0x03C // User ID
	GSNPSID   = 0x040 // Synopsys ID (read-only)
	GHWCFG1   = 0x044 // Hardware config 1 (read-only)
	GHWCFG2   = 0x048 // Hardware config 2 (read-only)
	GHWCFG3   = 0x04C // Hardware config 3 (read-only)
	GHWCFG4   = 0x050 // Hardware config 4 (read-only)
	GLPMCFG   = 0x054 // Link power management config
	GPWRDN    = 0x058 // Power down
	GDFIFOCFG = 0x05C // DFIFO software config
	GADPCTL   = 0x060 // ADP timer/control
	GREFCLK   = 0x064 // Reference clock
	GINTMSK2  = 0x068 // Core interrupt mask 2
	GINTSTS2  = 0x06C // Core interrupt status 2
)

// FIFO size register offsets
const (
	HPTXFSIZ     = 0x100 // Host periodic TX FIFO size
	DPTXFSIZ_BAS = 0x104 // Device periodic TX FIFO sizes, FIFO 1 first
)

// DPTXFSIZN returns the offset of device periodic TX FIFO size register n
// (n = 1..DWC2_NB_EP-1).
func DPTXFSIZN(n int) uint32 {
	return DPTXFSIZ_BAS + uint32(n-1)*4
}

// Host mode register offsets (bank 0x400-0x4FC)
const (
	HCFG     = 0x400 // Host configuration
	HFIR     = 0x404 // Host frame interval
	HFNUM    = 0x408 // Host frame number / frame remaining (read-only)
	HPTXSTS  = 0x410 // Host periodic TX FIFO/queue status (read-only)
	HAINT    = 0x414 // Host all-channels interrupt (read-only)
	HAINTMSK = 0x418 // Host all-channels interrupt mask
	HFLBADDR = 0x41C // Host frame list base address
	HPRT0    = 0x440 // Host port control and status
)

// Host channel register offsets. Each channel occupies 0x20 bytes starting
// at 0x500; within a channel the word layout is fixed.
const (
	HCREG_BAS    = 0x500
	HCREG_STRIDE = 0x20

	HC_CHAR  = 0 // HCCHAR - channel characteristics
	HC_SPLT  = 1 // HCSPLT - split control
	HC_INT   = 2 // HCINT - channel interrupt status
	HC_INTMSK = 3 // HCINTMSK - channel interrupt mask
	HC_TSIZ  = 4 // HCTSIZ - transfer size
	HC_DMA   = 5 // HCDMA - DMA address
	HC_DMAB  = 7 // HCDMAB - DMA buffer address (read-only)
)

// HCCHAR returns the offset of the channel characteristics register for ch.
func HCCHAR(ch int) uint32 { return HCREG_BAS + uint32(ch)*HCREG_STRIDE }

// HCINT returns the offset of the channel interrupt register for ch.
func HCSPLT(ch int) uint32 { return HCCHAR(ch) + 4*HC_SPLT }

func HCINT(ch int) uint32 { return HCCHAR(ch) + 4*HC_INT }

// HCINTMSK returns the offset of the channel interrupt mask register for ch.
func HCINTMSK(ch int) uint32 { return HCCHAR(ch) + 4*HC_INTMSK }

// HCTSIZ returns the offset of the channel transfer size register for ch.
func HCTSIZ(ch int) uint32 { return HCCHAR(ch) + 4*HC_TSIZ }

// HCDMA returns the offset of the channel DMA address register for ch.
func HCDMA(ch int) uint32 { return HCCHAR(ch) + 4*HC_DMA }

// HCDMAB returns the offset of the channel DMA buffer register for ch.
func HCDMAB(ch int) uint32 { return HCCHAR(ch) + 4*HC_DMAB }

// Device mode register offsets (bank 0x800-0x8FC)
const (
	DCFG       = 0x800 // Device configuration
	DCTL       = 0x804 // Device control
	DSTS       = 0x808 // Device status (read-only)
	DIEPMSK    = 0x810 // Device IN endpoint common interrupt mask
	DOEPMSK    = 0x814 // Device OUT endpoint common interrupt mask
	DAINT      = 0x818 // Device all-endpoints interrupt (read-only)
	DAINTMSK   = 0x81C // Device all-endpoints interrupt mask
	DTKNQR1    = 0x820 // Device IN token queue read 1 (read-only)
	DTKNQR2    = 0x824 // Device IN token queue read 2 (read-only)
	DVBUSDIS   = 0x828 // Device VBUS discharge time
	DVBUSPULSE = 0x82C // Device VBUS pulsing time
	DTKNQR3    = 0x830 // Device IN token queue read 3 (read-only)
	DTKNQR4    = 0x834 // Device IN token queue read 4 (read-only)
)

// Device endpoint register banks. IN endpoints start at 0x900, OUT
// endpoints at 0xB00, both with a 0x20 per-endpoint stride.
const (
	DIEPREG_BAS   = 0x900
	DOEPREG_BAS   = 0xB00
	DEPREG_STRIDE = 0x20

	DEP_CTL  = 0 // DxEPCTL - endpoint control
	DEP_INT  = 2 // DxEPINT - endpoint interrupt status
	DEP_TSIZ = 4 // DxEPTSIZ - endpoint transfer size
	DEP_DMA  = 5 // DxEPDMA - endpoint DMA address
	DEP_TXFSTS = 6 // DTXFSTS - IN endpoint TX FIFO status (IN bank only)
)

// DIEPCTL returns the offset of the IN endpoint control register for ep.
func DIEPCTL(ep int) uint32 { return DIEPREG_BAS + uint32(ep)*DEPREG_STRIDE }

// DIEPINT returns the offset of the IN endpoint interrupt register for ep.
func DIEPINT(ep int) uint32 { return DIEPCTL(ep) + 4*DEP_INT }

// DIEPTSIZ returns the offset of the IN endpoint transfer size register for ep.
func DIEPTSIZ(ep int) uint32 { return DIEPCTL(ep) + 4*DEP_TSIZ }

// DIEPDMA returns the offset of the IN endpoint DMA address register for ep.
func DIEPDMA(ep int) uint32 { return DIEPCTL(ep) + 4*DEP_DMA }

// DTXFSTS returns the offset of the IN endpoint TX FIFO status register for ep.
func DTXFSTS(ep int) uint32 { return DIEPCTL(ep) + 4*DEP_TXFSTS }

// DOEPCTL returns the offset of the OUT endpoint control register for ep.
func DOEPCTL(ep int) uint32 { return DOEPREG_BAS + uint32(ep)*DEPREG_STRIDE }

// DOEPINT returns the offset of the OUT endpoint interrupt register for ep.
func DOEPINT(ep int) uint32 { return DOEPCTL(ep) + 4*DEP_INT }

// DOEPTSIZ returns the offset of the OUT endpoint transfer size register for ep.
func DOEPTSIZ(ep int) uint32 { return DOEPCTL(ep) + 4*DEP_TSIZ }

// DOEPDMA returns the offset of the OUT endpoint DMA address register for ep.
func DOEPDMA(ep int) uint32 { return DOEPCTL(ep) + 4*DEP_DMA }

// Power and clock gating register offsets
const (
	PCGCTL   = 0xE00
	PCGCCTL1 = 0xE04
)

// FIFO window
const (
	FIFO_BAS    = 0x1000 // First per-channel FIFO window
	FIFO_STRIDE = 0x1000 // One 4KB window per channel
)

// GAHBCFG bits
const (
	GAHBCFG_GLBL_INTR_EN = 1 << 0
	GAHBCFG_DMA_EN       = 1 << 5
)

// GUSBCFG fields
const (
	GUSBCFG_USBTRDTIM_SHIFT = 10
)

// GRSTCTL bits
const (
	GRSTCTL_CSFTRST      = 1 << 0 // Core soft reset (self-clearing)
	GRSTCTL_HSFTRST      = 1 << 1 // HCLK soft reset (self-clearing)
	GRSTCTL_FRMCNTRRST   = 1 << 2 // Host frame counter reset (self-clearing)
	GRSTCTL_IN_TKNQ_FLSH = 1 << 3 // IN token queue flush (self-clearing)
	GRSTCTL_RXFFLSH      = 1 << 4 // RX FIFO flush (self-clearing)
	GRSTCTL_TXFFLSH      = 1 << 5 // TX FIFO flush (self-clearing)
	GRSTCTL_TXFNUM_SHIFT = 6
	GRSTCTL_DMAREQ       = 1 << 30 // DMA request in progress (read-only)
	GRSTCTL_AHBIDLE      = 1 << 31 // AHB master idle (read-only)

	GRSTCTL_SELFCLEAR = GRSTCTL_TXFFLSH | GRSTCTL_RXFFLSH |
		GRSTCTL_IN_TKNQ_FLSH | GRSTCTL_FRMCNTRRST |
		GRSTCTL_HSFTRST | GRSTCTL_CSFTRST
)

// GINTSTS / GINTMSK bits
const (
	GINTSTS_CURMODE_HOST  = 1 << 0 // Current mode (read-only, 1 = host)
	GINTSTS_MODEMIS       = 1 << 1
	GINTSTS_OTGINT        = 1 << 2
	GINTSTS_SOF           = 1 << 3
	GINTSTS_RXFLVL        = 1 << 4
	GINTSTS_NPTXFEMP      = 1 << 5
	GINTSTS_GINNAKEFF     = 1 << 6
	GINTSTS_GOUTNAKEFF    = 1 << 7
	GINTSTS_ERLYSUSP      = 1 << 10
	GINTSTS_USBSUSP       = 1 << 11
	GINTSTS_USBRST        = 1 << 12
	GINTSTS_ENUMDONE      = 1 << 13
	GINTSTS_ISOUTDROP     = 1 << 14
	GINTSTS_EOPF          = 1 << 15
	GINTSTS_RESTOREDONE   = 1 << 16
	GINTSTS_EPMIS         = 1 << 17
	GINTSTS_IEPINT        = 1 << 18
	GINTSTS_OEPINT        = 1 << 19
	GINTSTS_INCOMPL_SOIN  = 1 << 20
	GINTSTS_INCOMPL_SOOUT = 1 << 21
	GINTSTS_FET_SUSP      = 1 << 22
	GINTSTS_RESETDET      = 1 << 23
	GINTSTS_PRTINT        = 1 << 24
	GINTSTS_HCHINT        = 1 << 25
	GINTSTS_PTXFEMP       = 1 << 26
	GINTSTS_LPMTRANRCVD   = 1 << 27
	GINTSTS_CONIDSTSCHNG  = 1 << 28
	GINTSTS_DISCONNINT    = 1 << 29
	GINTSTS_SESSREQINT    = 1 << 30
	GINTSTS_WKUPINT       = 1 << 31

	// Bits the guest can never write-one-to-clear.
	GINTSTS_READONLY = GINTSTS_PTXFEMP | GINTSTS_HCHINT | GINTSTS_PRTINT |
		GINTSTS_OEPINT | GINTSTS_IEPINT | GINTSTS_GOUTNAKEFF |
		GINTSTS_GINNAKEFF | GINTSTS_NPTXFEMP | GINTSTS_RXFLVL |
		GINTSTS_OTGINT | GINTSTS_CURMODE_HOST
)

// GOTGCTL bits
const (
	GOTGCTL_SESREQSCS          = 1 << 0
	GOTGCTL_SESREQ             = 1 << 1
	GOTGCTL_HSTNEGSCS          = 1 << 8
	GOTGCTL_HNPREQ             = 1 << 9
	GOTGCTL_HSTSETHNPEN        = 1 << 10
	GOTGCTL_DEVHNPEN           = 1 << 11
	GOTGCTL_CONID_B            = 1 << 16
	GOTGCTL_DBNC_SHORT         = 1 << 17
	GOTGCTL_ASESVLD            = 1 << 18
	GOTGCTL_BSESVLD            = 1 << 19
	GOTGCTL_OTGVER             = 1 << 20
	GOTGCTL_MULT_VALID_BC_MASK = 0x1f << 22

	GOTGCTL_READONLY = GOTGCTL_MULT_VALID_BC_MASK | GOTGCTL_BSESVLD |
		GOTGCTL_ASESVLD | GOTGCTL_DBNC_SHORT | GOTGCTL_CONID_B |
		GOTGCTL_HSTNEGSCS | GOTGCTL_SESREQSCS
)

// GI2CCTL bits
const (
	GI2CCTL_ACK      = 1 << 24
	GI2CCTL_I2CDATSE0 = 1 << 28
)

// GPWRDN bits
const (
	GPWRDN_PWRDNRSTN = 1 << 1
)

// GHWCFG2 fields
const (
	GHWCFG2_OP_MODE_SHIFT               = 0
	GHWCFG2_OP_MODE_NO_SRP_CAPABLE_HOST = 6
	GHWCFG2_ARCHITECTURE_SHIFT          = 3
	GHWCFG2_INT_DMA_ARCH                = 2
	GHWCFG2_NUM_HOST_CHAN_SHIFT         = 14
	GHWCFG2_PERIO_EP_SUPPORTED          = 1 << 18
	GHWCFG2_DYNAMIC_FIFO                = 1 << 19
	GHWCFG2_NONPERIO_TX_Q_DEPTH_SHIFT   = 22
	GHWCFG2_HOST_PERIO_TX_Q_DEPTH_SHIFT = 24
	GHWCFG2_DEV_TOKEN_Q_DEPTH_SHIFT     = 26
)

// GHWCFG3 fields
const (
	GHWCFG3_XFER_SIZE_CNTR_WIDTH_SHIFT   = 0
	GHWCFG3_PACKET_SIZE_CNTR_WIDTH_SHIFT = 4
	GHWCFG3_DFIFO_DEPTH_SHIFT            = 16
)

// FIFO size register fields
const (
	FIFOSIZE_DEPTH_SHIFT = 16
	TXSTS_QSPCAVAIL_SHIFT = 16
)

// HCFG fields
const (
	HCFG_FSLSPCLKSEL_SHIFT = 0
	HCFG_RESVALID_SHIFT    = 8
)

// HFNUM fields
const (
	HFNUM_FRNUM_SHIFT = 0
	HFNUM_FRREM_SHIFT = 16
	HFNUM_MAX_FRNUM   = 0x3FFF
)

// HPRT0 bits
const (
	HPRT0_CONNSTS    = 1 << 0 // Connect status (read-only)
	HPRT0_CONNDET    = 1 << 1 // Connect detected (write-1-to-clear)
	HPRT0_ENA        = 1 << 2 // Port enable (w1c, set only by hardware)
	HPRT0_ENACHG     = 1 << 3 // Port enable change (write-1-to-clear)
	HPRT0_OVRCURRACT = 1 << 4 // Overcurrent active (read-only)
	HPRT0_OVRCURRCHG = 1 << 5 // Overcurrent change (write-1-to-clear)
	HPRT0_RES        = 1 << 6 // Port resume (self-clearing)
	HPRT0_SUSP       = 1 << 7 // Port suspend (self-clearing)
	HPRT0_RST        = 1 << 8 // Port reset
	HPRT0_LNSTS_MASK = 0x3 << 10
	HPRT0_PWR        = 1 << 12
	HPRT0_SPD_SHIFT  = 17
	HPRT0_SPD_MASK   = 0x3 << HPRT0_SPD_SHIFT

	HPRT0_SPD_HIGH_SPEED = 0
	HPRT0_SPD_FULL_SPEED = 1
	HPRT0_SPD_LOW_SPEED  = 2

	HPRT0_W1C = HPRT0_OVRCURRCHG | HPRT0_ENACHG | HPRT0_ENA | HPRT0_CONNDET
)

// HCCHAR fields
const (
	HCCHAR_MPS_SHIFT     = 0
	HCCHAR_MPS_MASK      = 0x7FF << HCCHAR_MPS_SHIFT
	HCCHAR_EPNUM_SHIFT   = 11
	HCCHAR_EPNUM_MASK    = 0xF << HCCHAR_EPNUM_SHIFT
	HCCHAR_EPDIR         = 1 << 15
	HCCHAR_LSPDDEV       = 1 << 17
	HCCHAR_EPTYPE_SHIFT  = 18
	HCCHAR_EPTYPE_MASK   = 0x3 << HCCHAR_EPTYPE_SHIFT
	HCCHAR_MULTICNT_SHIFT = 20
	HCCHAR_DEVADDR_SHIFT = 22
	HCCHAR_DEVADDR_MASK  = 0x7F << HCCHAR_DEVADDR_SHIFT
	HCCHAR_ODDFRM        = 1 << 29
	HCCHAR_CHDIS         = 1 << 30
	HCCHAR_CHENA         = 1 << 31
)

// HCINT / HCINTMSK bits
const (
	HCINTMSK_XFERCOMPL     = 1 << 0
	HCINTMSK_CHHLTD        = 1 << 1
	HCINTMSK_AHBERR        = 1 << 2
	HCINTMSK_STALL         = 1 << 3
	HCINTMSK_NAK           = 1 << 4
	HCINTMSK_ACK           = 1 << 5
	HCINTMSK_NYET          = 1 << 6
	HCINTMSK_XACTERR       = 1 << 7
	HCINTMSK_BBLERR        = 1 << 8
	HCINTMSK_FRMOVRUN      = 1 << 9
	HCINTMSK_DATATGLERR    = 1 << 10
	HCINTMSK_BNA           = 1 << 11
	HCINTMSK_XCS_XACT      = 1 << 12
	HCINTMSK_DESC_LST_ROLL = 1 << 13
	HCINTMSK_RESERVED14_31 = 0x3FFFF << 14
)

// HCTSIZ fields
const (
	TSIZ_XFERSIZE_SHIFT  = 0
	TSIZ_XFERSIZE_MASK   = 0x7FFFF << TSIZ_XFERSIZE_SHIFT
	TSIZ_PKTCNT_SHIFT    = 19
	TSIZ_PKTCNT_MASK     = 0x3FF << TSIZ_PKTCNT_SHIFT
	TSIZ_SC_MC_PID_SHIFT = 29
	TSIZ_SC_MC_PID_MASK  = 0x3 << TSIZ_SC_MC_PID_SHIFT
	TSIZ_DOPNG           = 1 << 31

	TSIZ_SC_MC_PID_DATA0 = 0
	TSIZ_SC_MC_PID_DATA2 = 1
	TSIZ_SC_MC_PID_DATA1 = 2
	TSIZ_SC_MC_PID_SETUP = 3
)

// DCFG fields
const (
	DCFG_DEVSPD_MASK   = 0x3
	DCFG_DEVADDR_SHIFT = 4
	DCFG_DEVADDR_MASK  = 0x7F << DCFG_DEVADDR_SHIFT
	DCFG_DESCDMA_EN    = 1 << 23
)

// DCTL bits
const (
	DCTL_RMTWKUPSIG   = 1 << 0
	DCTL_SFTDISCON    = 1 << 1 // Soft disconnect
	DCTL_GNPINNAKSTS  = 1 << 2 // Global non-periodic IN NAK status (read-only)
	DCTL_GOUTNAKSTS   = 1 << 3 // Global OUT NAK status (read-only)
	DCTL_SGNPINNAK    = 1 << 7 // Set global non-periodic IN NAK (self-clearing)
	DCTL_CGNPINNAK    = 1 << 8 // Clear global non-periodic IN NAK (self-clearing)
	DCTL_SGOUTNAK     = 1 << 9 // Set global OUT NAK (self-clearing)
	DCTL_CGOUTNAK     = 1 << 10 // Clear global OUT NAK (self-clearing)
	DCTL_PWRONPRGDONE = 1 << 11
)

// DSTS fields
const (
	DSTS_SUSPSTS      = 1 << 0
	DSTS_ENUMSPD_SHIFT = 1
	DSTS_ENUMSPD_MASK = 0x3 << DSTS_ENUMSPD_SHIFT
	DSTS_SOFFN_SHIFT  = 8

	DSTS_ENUMSPD_HS        = 0 // High speed, PHY running at 30/60 MHz
	DSTS_ENUMSPD_FS_PHY30_60 = 1
	DSTS_ENUMSPD_LS        = 2
	DSTS_ENUMSPD_FS_PHY48  = 3
)

// DxEPCTL fields
const (
	DXEPCTL_MPS_SHIFT    = 0
	DXEPCTL_MPS_MASK     = 0x7FF << DXEPCTL_MPS_SHIFT
	DXEPCTL_USBACTEP     = 1 << 15
	DXEPCTL_NAKSTS       = 1 << 17
	DXEPCTL_EPTYPE_SHIFT = 18
	DXEPCTL_EPTYPE_MASK  = 0x3 << DXEPCTL_EPTYPE_SHIFT
	DXEPCTL_SNP          = 1 << 20
	DXEPCTL_STALL        = 1 << 21
	DXEPCTL_TXFNUM_SHIFT = 22
	DXEPCTL_TXFNUM_MASK  = 0xF << DXEPCTL_TXFNUM_SHIFT
	DXEPCTL_CNAK         = 1 << 26 // Clear NAK (self-clearing)
	DXEPCTL_SNAK         = 1 << 27 // Set NAK (self-clearing)
	DXEPCTL_SETD0PID     = 1 << 28
	DXEPCTL_SETD1PID     = 1 << 29
	DXEPCTL_EPDIS        = 1 << 30 // Endpoint disable (self-clearing)
	DXEPCTL_EPENA        = 1 << 31 // Endpoint enable

	// Endpoint 0 uses a 2-bit MPS encoding instead of a byte count.
	D0EPCTL_MPS_MASK = 0x3
	D0EPCTL_MPS_64   = 0
	D0EPCTL_MPS_32   = 1
	D0EPCTL_MPS_16   = 2
	D0EPCTL_MPS_8    = 3
)

// DxEPINT bits
const (
	DXEPINT_XFERCOMPL    = 1 << 0
	DXEPINT_EPDISBLD     = 1 << 1
	DXEPINT_AHBERR       = 1 << 2
	DXEPINT_SETUP        = 1 << 3 // OUT: SETUP phase done
	DXEPINT_OUTTKNEPDIS  = 1 << 4 // OUT: OUT token received while disabled
	DXEPINT_INTKNTXFEMP  = 1 << 4 // IN: IN token received with TX FIFO empty
	DXEPINT_INEPNAKEFF   = 1 << 6 // IN: endpoint NAK effective
	DXEPINT_TXFEMP       = 1 << 7
	DXEPINT_SETUP_RCVD   = 1 << 15 // OUT: SETUP packet received (DMA mode)
)

// DxEPTSIZ fields (endpoints 1..15)
const (
	DXEPTSIZ_XFERSIZE_SHIFT = 0
	DXEPTSIZ_XFERSIZE_MASK  = 0x7FFFF << DXEPTSIZ_XFERSIZE_SHIFT
	DXEPTSIZ_PKTCNT_SHIFT   = 19
	DXEPTSIZ_PKTCNT_MASK    = 0x3FF << DXEPTSIZ_PKTCNT_SHIFT
)

// DIEPTSIZ0 / DOEPTSIZ0 fields (endpoint 0 narrow layout)
const (
	DIEPTSIZ0_XFERSIZE_MASK = 0x7F
	DIEPTSIZ0_PKTCNT_SHIFT  = 19
	DIEPTSIZ0_PKTCNT_MASK   = 0x3 << DIEPTSIZ0_PKTCNT_SHIFT

	DOEPTSIZ0_XFERSIZE_MASK = 0x7F
	DOEPTSIZ0_PKTCNT        = 1 << 19
	DOEPTSIZ0_PKTCNT_MASK   = DOEPTSIZ0_PKTCNT
	DOEPTSIZ0_SUPCNT_SHIFT  = 29
	DOEPTSIZ0_SUPCNT_MASK   = 0x3 << DOEPTSIZ0_SUPCNT_SHIFT
)

// Device mode DMA descriptor status word fields
const (
	DEV_DMA_NBYTES_MASK    = 0xFFFF
	DEV_DMA_MTRF           = 1 << 23
	DEV_DMA_SR             = 1 << 24 // SETUP received
	DEV_DMA_IOC            = 1 << 25 // Interrupt on completion
	DEV_DMA_SHORT          = 1 << 26 // Short packet
	DEV_DMA_L              = 1 << 27 // Last descriptor in chain
	DEV_DMA_STS_SHIFT      = 28
	DEV_DMA_BUFF_STS_SHIFT = 30
	DEV_DMA_BUFF_STS_MASK  = 0x3 << DEV_DMA_BUFF_STS_SHIFT

	DEV_DMA_BUFF_STS_HREADY  = 0 // Host (software) ready, hardware owns
	DEV_DMA_BUFF_STS_DMABUSY = 1
	DEV_DMA_BUFF_STS_DMADONE = 2 // Hardware done, software owns
)

// DMA descriptors are two little-endian words: status, buffer pointer.
const DEV_DMA_DESC_SIZE = 8

// USB token PIDs (bus-level token values)
const (
	USB_TOKEN_SETUP = 0x2D
	USB_TOKEN_IN    = 0x69
	USB_TOKEN_OUT   = 0xE1
)

// USB transaction result codes
const (
	USB_RET_SUCCESS           = 0
	USB_RET_NODEV             = -1
	USB_RET_NAK               = -2
	USB_RET_STALL             = -3
	USB_RET_BABBLE            = -4
	USB_RET_IOERROR           = -5
	USB_RET_ASYNC             = -6
	USB_RET_ADD_TO_QUEUE      = -7
	USB_RET_REMOVE_FROM_QUEUE = -8
)

// USB device speeds
const (
	USB_SPEED_LOW  = 0
	USB_SPEED_FULL = 1
	USB_SPEED_HIGH = 2
)

// USB endpoint transfer types (as encoded in HCCHAR/DxEPCTL EPTYPE)
const (
	USB_ENDPOINT_XFER_CONTROL = 0
	USB_ENDPOINT_XFER_ISOC    = 1
	USB_ENDPOINT_XFER_BULK    = 2
	USB_ENDPOINT_XFER_INT     = 3
)

// Standard control request codes
const (
	USB_REQ_GET_STATUS        = 0
	USB_REQ_CLEAR_FEATURE     = 1
	USB_REQ_SET_FEATURE       = 3
	USB_REQ_SET_ADDRESS       = 5
	USB_REQ_GET_DESCRIPTOR    = 6
	USB_REQ_SET_CONFIGURATION = 9
)

// Standard descriptor types
const (
	USB_DT_DEVICE    = 1
	USB_DT_CONFIG    = 2
	USB_DT_STRING    = 3
	USB_DT_INTERFACE = 4
	USB_DT_ENDPOINT  = 5
)

// Default threshold above which a host transfer is DMAd in full per
// attempt instead of one max-packet at a time. Large transfers are
// typically bulk/network traffic where per-packet chunking adds
// unacceptable latency.
const DEFAULT_SMALL_XFER_THRESHOLD = 1536
