// usb_host.go - Host channel engine, frame scheduler and root port

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
usb_host.go - Host Channel Engine

When the guest enables a host channel the engine decodes the channel's
characteristics and transfer size registers into one transaction
attempt: token, target endpoint, packet count and byte count. The data
stage moves through guest memory at the channel's DMA address. On
success the registers are wound forward (packet count and transfer size
down, DMA address up) so the guest observes hardware-accurate progress;
the attempt repeats through the deferred work scheduler until the
transfer exhausts its packet count, completes short, or fails.

Transfers at or below the small-transfer threshold are delivered one
max-packet at a time, which keeps latency down for network-style
endpoints that want per-packet delivery. NAK handling is asymmetric on
purpose: control and bulk channels stay enabled and retry on a pacing
timer with the NAK interrupt delivered anyway, while interrupt and
isochronous channels halt and leave retry policy to the guest, which
schedules those itself.

The retry scheduler walks channels round-robin from nextChan so a
persistently NAKing channel cannot starve its neighbours, and services
one channel per pass with a 1/4000s pacing delay between passes.
*/

package main

import "errors"

var errPortOccupied = errors.New("usb: root port already occupied")

var packetStatusNames = []string{
	"SUCCESS", "NODEV", "NAK", "STALL", "BABBLE", "IOERROR", "ASYNC",
	"ADD_TO_QUEUE", "REMOVE_FROM_QUEUE",
}

// Channel interrupt raised for each non-success packet status.
var packetStatusIntr = []uint32{
	HCINTMSK_XFERCOMPL, HCINTMSK_XACTERR, HCINTMSK_NAK, HCINTMSK_STALL,
	HCINTMSK_BBLERR, HCINTMSK_XACTERR, HCINTMSK_XACTERR, HCINTMSK_XACTERR,
	HCINTMSK_XACTERR,
}

// findDevice resolves a device address on the root port. The port must
// be enabled and the attached device must answer to the address.
func (chip *USBChip) findDevice(addr uint8) USBDeviceModel {
	if *chip.hprt0()&HPRT0_ENA == 0 {
		return nil
	}
	dev := chip.downstream
	if dev != nil && dev.Attached() && dev.Address() == addr {
		return dev
	}
	return nil
}

// enableChannel starts a transaction on a freshly enabled channel;
// index is ch*8 into the channel register bank.
func (chip *USBChip) enableChannel(index uint32) {
	p := &chip.packet[index>>3]
	hcchar := chip.hreg1[index+HC_CHAR]
	hctsiz := chip.hreg1[index+HC_TSIZ]
	devadr := (hcchar & HCCHAR_DEVADDR_MASK) >> HCCHAR_DEVADDR_SHIFT
	xferlen := (hctsiz & TSIZ_XFERSIZE_MASK) >> TSIZ_XFERSIZE_SHIFT

	dev := chip.findDevice(uint8(devadr))
	if dev == nil {
		return
	}

	// Small transfers go out one max packet per attempt. Network-style
	// endpoints want per-packet delivery, and anything at or below the
	// threshold is assumed to be one.
	p.small = xferlen <= chip.smallThreshold

	chip.handlePacket(devadr, dev, index, true)
	chip.scheduleHostWork()
}

// handlePacket runs one transaction attempt on a channel. With send set
// it decodes the registers and submits a fresh packet; without it the
// attempt resumes from an asynchronous completion using the context
// frozen at submission time.
func (chip *USBChip) handlePacket(devadr uint32, dev USBDeviceModel, index uint32, send bool) {
	hcchar := chip.hreg1[index+HC_CHAR]
	hctsiz := chip.hreg1[index+HC_TSIZ]
	hcdma := chip.hreg1[index+HC_DMA]

	epnum := (hcchar & HCCHAR_EPNUM_MASK) >> HCCHAR_EPNUM_SHIFT
	eptype := (hcchar & HCCHAR_EPTYPE_MASK) >> HCCHAR_EPTYPE_SHIFT
	mps := (hcchar & HCCHAR_MPS_MASK) >> HCCHAR_MPS_SHIFT
	pid := (hctsiz & TSIZ_SC_MC_PID_MASK) >> TSIZ_SC_MC_PID_SHIFT
	pcnt := (hctsiz & TSIZ_PKTCNT_MASK) >> TSIZ_PKTCNT_SHIFT
	xferlen := (hctsiz & TSIZ_XFERSIZE_MASK) >> TSIZ_XFERSIZE_SHIFT
	epdir := uint32(0)
	if hcchar&HCCHAR_EPDIR != 0 {
		epdir = 1
	}

	if xferlen > DWC2_MAX_XFER_SIZE {
		guestError("HCTSIZ transfer size too large")
		return
	}
	if mps == 0 {
		guestError("bad HCCHAR_MPS set to zero")
		return
	}

	ch := index >> 3
	p := &chip.packet[ch]

	var token int
	if eptype == USB_ENDPOINT_XFER_CONTROL && pid == TSIZ_SC_MC_PID_SETUP {
		token = USB_TOKEN_SETUP
	} else if epdir != 0 {
		token = USB_TOKEN_IN
	} else {
		token = USB_TOKEN_OUT
	}

	var tlen uint32
	if send {
		tlen = xferlen
		if p.small && tlen > mps {
			tlen = mps
		}

		if token != USB_TOKEN_IN {
			if err := chip.bus.ReadBytes(hcdma, chip.usbBuf[ch][:tlen]); err != nil {
				guestError("DMA read at 0x%08X failed: %v", hcdma, err)
			}
		}

		p.packet.SetupPacket(token, int(epnum), chip.usbBuf[ch][:tlen])
		p.packet.SetComplete(chip.hostPacketComplete)
		p.async = DWC2_ASYNC_NONE
		if dev != nil {
			dev.HandlePacket(&p.packet)
		} else {
			p.packet.Status = USB_RET_NODEV
		}
		if p.packet.Status == USB_RET_ASYNC {
			p.packet.state = USB_PACKET_ASYNC
		} else {
			p.packet.state = USB_PACKET_COMPLETE
		}
	} else {
		tlen = p.len
	}

	status := p.packet.Status
	actual := uint32(p.packet.ActualLength)
	intr := uint32(0)
	doIntr := false
	done := false

	if status == USB_RET_ASYNC {
		// Exactly one attempt may be pending per channel.
		if p.async == DWC2_ASYNC_INFLIGHT {
			panic("usb: channel already has a packet in flight")
		}
		p.devadr = devadr
		p.epnum = epnum
		p.epdir = epdir
		p.mps = mps
		p.pid = uint32(token)
		p.index = index
		p.pcnt = pcnt
		p.len = tlen
		p.async = DWC2_ASYNC_INFLIGHT
		p.needsService = false
		return
	}

	// A device that delivers more than was asked for has babbled.
	if status == USB_RET_SUCCESS && actual > tlen {
		status = USB_RET_BABBLE
		p.packet.Status = status
	}

	if status == USB_RET_SUCCESS {
		if token == USB_TOKEN_IN {
			if err := chip.bus.WriteBytes(hcdma, chip.usbBuf[ch][:actual]); err != nil {
				guestError("DMA write at 0x%08X failed: %v", hcdma, err)
			}
		}

		tpcnt := actual / mps
		if actual%mps != 0 {
			tpcnt++
			if token == USB_TOKEN_IN {
				// Short IN packet terminates the transfer.
				done = true
			}
		}

		if tpcnt < pcnt {
			pcnt -= tpcnt
		} else {
			pcnt = 0
		}
		hctsiz &^= TSIZ_PKTCNT_MASK
		hctsiz |= (pcnt << TSIZ_PKTCNT_SHIFT) & TSIZ_PKTCNT_MASK
		if actual < xferlen {
			xferlen -= actual
		} else {
			xferlen = 0
		}
		hctsiz &^= TSIZ_XFERSIZE_MASK
		hctsiz |= (xferlen << TSIZ_XFERSIZE_SHIFT) & TSIZ_XFERSIZE_MASK
		chip.hreg1[index+HC_TSIZ] = hctsiz
		hcdma += actual
		chip.hreg1[index+HC_DMA] = hcdma

		if pcnt == 0 || xferlen == 0 || actual == 0 {
			done = true
		}
	} else {
		intr |= packetStatusIntr[-status]
		if status == USB_RET_NAK &&
			(eptype == USB_ENDPOINT_XFER_CONTROL ||
				eptype == USB_ENDPOINT_XFER_BULK) {
			// Control and bulk retry automatically on NAK; the NAK
			// interrupt is still delivered.
			intr &^= HCINTMSK_RESERVED14_31
			chip.hreg1[index+HC_INT] |= intr
			doIntr = true
		} else {
			intr |= HCINTMSK_CHHLTD
			done = true
		}
	}

	if done {
		hcchar &^= HCCHAR_CHENA
		chip.hreg1[index+HC_CHAR] = hcchar
		if intr&HCINTMSK_CHHLTD == 0 {
			intr |= HCINTMSK_CHHLTD | HCINTMSK_XFERCOMPL
		}
		intr &^= HCINTMSK_RESERVED14_31
		chip.hreg1[index+HC_INT] |= intr
		p.needsService = false
		chip.updateHCIRQ(index)
		return
	}

	p.devadr = devadr
	p.epnum = epnum
	p.epdir = epdir
	p.mps = mps
	p.pid = uint32(token)
	p.index = index
	p.pcnt = pcnt
	p.len = xferlen
	p.needsService = true
	if doIntr {
		chip.updateHCIRQ(index)
	}
}

// hostPacketComplete is the asynchronous completion callback for host
// mode packets. Device models invoke it, via USBPacket.Complete, from
// outside the controller lock.
func (chip *USBChip) hostPacketComplete(pkt *USBPacket) {
	chip.mutex.Lock()
	defer chip.mutex.Unlock()

	var p *DWC2Packet
	for i := range chip.packet {
		if &chip.packet[i].packet == pkt {
			p = &chip.packet[i]
			break
		}
	}
	if p == nil || p.async != DWC2_ASYNC_INFLIGHT {
		panic("usb: stray async packet completion")
	}

	if pkt.Status == USB_RET_REMOVE_FROM_QUEUE {
		p.async = DWC2_ASYNC_NONE
		p.needsService = false
		return
	}

	dev := chip.findDevice(uint8(p.devadr))
	chip.handlePacket(p.devadr, dev, p.index, false)
	p.async = DWC2_ASYNC_FINISHED

	chip.scheduleHostWork()
	chip.runDeferred()
}

// workBH services the next channel needing attention, round-robin from
// nextChan, then paces the following pass with the retry timer. The
// working guard stops the serviced packet's side effects from
// re-entering the scan.
func (chip *USBChip) workBH() {
	if chip.working {
		return
	}
	chip.working = true

	tNow := chip.clock.Now()
	ch := int(chip.nextChan)
	found := false

	for {
		p := &chip.packet[ch]
		if p.needsService {
			dev := chip.findDevice(uint8(p.devadr))
			chip.handlePacket(p.devadr, dev, p.index, true)
			found = true
		}
		ch++
		if ch == DWC2_NB_CHAN {
			ch = 0
		}
		if found {
			chip.nextChan = uint16(ch)
		}
		if ch == int(chip.nextChan) {
			break
		}
	}

	if found {
		chip.workTimer.Mod(tNow + NANOSECONDS_PER_SECOND/4000)
	}
	chip.working = false
}

// ---------------------------------------------------------------------------
// Frame scheduler
// ---------------------------------------------------------------------------

func (chip *USBChip) armEofTimer() {
	chip.eofTimer.Mod(chip.sofTime + chip.usbFrameTime)
}

// sof advances the frame epoch and raises the start-of-frame interrupt.
func (chip *USBChip) sof() {
	chip.sofTime += chip.usbFrameTime
	chip.armEofTimer()
	chip.raiseGlobalIRQ(GINTSTS_SOF)
}

// frameBoundary fires at the end of each frame: the frame counter
// catches up with virtual time and the next SOF goes out.
func (chip *USBChip) frameBoundary() {
	chip.mutex.Lock()
	defer chip.mutex.Unlock()

	now := chip.clock.Now()

	frcnt := uint16((now - chip.sofTime) / int64(chip.fi))
	chip.frameNumber = (chip.frameNumber + frcnt) & 0xffff
	*chip.hfnum() = uint32(chip.frameNumber) & HFNUM_MAX_FRNUM

	chip.sof()
	chip.runDeferred()
}

// busStart begins SOF generation from the current virtual time.
func (chip *USBChip) busStart() {
	chip.sofTime = chip.clock.Now()
	chip.armEofTimer()
}

func (chip *USBChip) busStop() {
	chip.eofTimer.Del()
}

// frameRemaining returns the bit-times left in the current frame.
func (chip *USBChip) frameRemaining() uint32 {
	tks := chip.clock.Now() - chip.sofTime
	if tks < 0 {
		tks = 0
	}

	if tks >= chip.usbFrameTime {
		return 0
	}
	if tks < chip.usbBitTime {
		return uint32(chip.fi)
	}

	tks = tks / chip.usbBitTime
	if tks >= int64(chip.fi) {
		return 0
	}

	return uint32(int64(chip.fi) - tks)
}

// FrameNumber reports the current frame counter.
func (chip *USBChip) FrameNumber() uint16 {
	chip.mutex.Lock()
	defer chip.mutex.Unlock()
	return chip.frameNumber
}

// ---------------------------------------------------------------------------
// Root port
// ---------------------------------------------------------------------------

// Attach plugs a device model into the root port.
func (chip *USBChip) Attach(dev USBDeviceModel) error {
	chip.mutex.Lock()
	defer chip.mutex.Unlock()

	if chip.downstream != nil {
		return errPortOccupied
	}
	chip.downstream = dev
	if dev.Attached() {
		chip.portAttach()
	}
	chip.runDeferred()
	return nil
}

// Detach unplugs the root port device.
func (chip *USBChip) Detach() {
	chip.mutex.Lock()
	defer chip.mutex.Unlock()

	if chip.downstream == nil {
		return
	}
	if chip.portConnected {
		chip.portDetach()
	}
	chip.downstream = nil
	chip.runDeferred()
}

// Wakeup signals remote wakeup from the attached device.
func (chip *USBChip) Wakeup() {
	chip.mutex.Lock()
	defer chip.mutex.Unlock()

	if *chip.hprt0()&HPRT0_SUSP != 0 {
		*chip.hprt0() |= HPRT0_RES
		chip.raiseGlobalIRQ(GINTSTS_PRTINT)
	}

	chip.scheduleHostWork()
	chip.runDeferred()
}

// portAttach reflects a connect event into the port status register and
// starts the frame clock at the negotiated speed.
func (chip *USBChip) portAttach() {
	dev := chip.downstream
	speed := dev.Speed()
	if speed == USB_SPEED_HIGH && chip.usbVersion != 2 {
		speed = USB_SPEED_FULL
	}

	*chip.hprt0() &^= HPRT0_SPD_MASK

	hispd := false
	switch speed {
	case USB_SPEED_LOW:
		*chip.hprt0() |= HPRT0_SPD_LOW_SPEED << HPRT0_SPD_SHIFT
	case USB_SPEED_FULL:
		*chip.hprt0() |= HPRT0_SPD_FULL_SPEED << HPRT0_SPD_SHIFT
	case USB_SPEED_HIGH:
		*chip.hprt0() |= HPRT0_SPD_HIGH_SPEED << HPRT0_SPD_SHIFT
		hispd = true
	}

	if hispd {
		chip.usbFrameTime = NANOSECONDS_PER_SECOND / 8000 // 125 us
		chip.usbBitTime = NANOSECONDS_PER_SECOND / USB_HZ_HS
	} else {
		chip.usbFrameTime = NANOSECONDS_PER_SECOND / 1000 // 1 ms
		chip.usbBitTime = NANOSECONDS_PER_SECOND / USB_HZ_FS
	}
	if chip.usbBitTime < 1 {
		chip.usbBitTime = 1
	}

	chip.fi = USB_FRMINTVL - 1
	*chip.hprt0() |= HPRT0_CONNDET | HPRT0_CONNSTS
	*chip.gotgctl() |= GOTGCTL_ASESVLD
	chip.portConnected = true
	chip.busStart()
	chip.raiseGlobalIRQ(GINTSTS_PRTINT | GINTSTS_CURMODE_HOST)
}

// cancelInflightPackets revokes every attempt still parked at the
// device. Cancel does not run the completion callback, so this is safe
// under the controller lock.
func (chip *USBChip) cancelInflightPackets() {
	for i := range chip.packet {
		p := &chip.packet[i]
		if p.async != DWC2_ASYNC_INFLIGHT {
			continue
		}
		if chip.downstream != nil {
			chip.downstream.CancelPacket(&p.packet)
		}
		p.packet.Cancel()
		p.async = DWC2_ASYNC_NONE
		p.needsService = false
	}
}

// portDetach reflects a disconnect into the port status register.
func (chip *USBChip) portDetach() {
	chip.cancelInflightPackets()
	chip.busStop()

	*chip.hprt0() &^= HPRT0_SPD_MASK | HPRT0_SUSP | HPRT0_ENA | HPRT0_CONNSTS
	*chip.hprt0() |= HPRT0_CONNDET | HPRT0_ENACHG
	*chip.gotgctl() &^= GOTGCTL_ASESVLD
	chip.portConnected = false
	chip.raiseGlobalIRQ(GINTSTS_PRTINT | GINTSTS_DISCONNINT)
}

// portReset propagates a port reset downstream.
func (chip *USBChip) portReset() {
	chip.cancelInflightPackets()
	if chip.downstream != nil {
		chip.downstream.HandleReset()
	}
}
