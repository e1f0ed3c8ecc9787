// usb_device.go - Device mode endpoint engine

/*
 ██▓ ███▄    █ ▄▄▄█████▓ █    ██  ██▓▄▄▄█████▓ ██▓ ▒█████   ███▄    █    ▓█████  ███▄    █   ▄████  ██▓ ███▄    █ ▓█████
▓██▒ ██ ▀█   █ ▓  ██▒ ▓▒ ██  ▓██▒▓██▒▓  ██▒ ▓▒▓██▒▒██▒  ██▒ ██ ▀█   █    ▓█   ▀  ██ ▀█   █  ██▒ ▀█▒▓██▒ ██ ▀█   █ ▓█   ▀
▒██▒▓██  ▀█ ██▒▒ ▓██░ ▒░▓██  ▒██░▒██▒▒ ▓██░ ▒░▒██▒▒██░  ██▒▓██  ▀█ ██▒   ▒███   ▓██  ▀█ ██▒▒██░▄▄▄░▒██▒▓██  ▀█ ██▒▒███
░██░▓██▒  ▐▌██▒░ ▓██▓ ░ ▓▓█  ░██░░██░░ ▓██▓ ░ ░██░▒██   ██░▓██▒  ▐▌██▒   ▒▓█  ▄ ▓██▒  ▐▌██▒░▓█  ██▓░██░▓██▒  ▐▌██▒▒▓█  ▄
░██░▒██░   ▓██░  ▒██▒ ░ ▒▒█████▓ ░██░  ▒██▒ ░ ░██░░ ████▓▒░▒██░   ▓██░   ░▒████▒▒██░   ▓██░░▒▓███▀▒░██░▒██░   ▓██░░▒████▒
░▓  ░ ▒░   ▒ ▒   ▒ ░░   ░▒▓▒ ▒ ▒ ░▓    ▒ ░░   ░▓  ░ ▒░▒░▒░ ░ ▒░   ▒ ▒    ░░ ▒░ ░░ ▒░   ▒ ▒  ░▒   ▒ ░▓  ░ ▒░   ▒ ▒ ░░ ▒░ ░
 ▒ ░░ ░░   ░ ▒░    ░    ░░▒░ ░ ░  ▒ ░    ░     ▒ ░  ░ ▒ ▒░ ░ ░░   ░ ▒░    ░ ░  ░░ ░░   ░ ▒░  ░   ░  ▒ ░░ ░░   ░ ▒░ ░ ░  ░
 ▒ ░   ░   ░ ░   ░       ░░░ ░ ░  ▒ ░  ░       ▒ ░░ ░ ░ ▒     ░   ░ ░       ░      ░   ░ ░ ░ ░   ░  ▒ ░   ░   ░ ░    ░
 ░           ░             ░      ░            ░      ░ ░           ░       ░  ░           ░       ░  ░           ░    ░  ░

(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionUSB
Buy me a coffee: https://ko-fi.com/intuition/tip

License: GPLv3 or later
*/

/*
usb_device.go - Device Mode Endpoint Engine

In device mode the controller sits at the far end of the cable: an
external host submits token packets through DeviceSubmitPacket and the
engine answers them from the guest's endpoint register programming.

Each token walks the same decision ladder the silicon implements: a
stalled endpoint answers STALL; an inactive or NAKing endpoint (or a
global NAK condition) answers NAK; an enabled endpoint moves data; an
endpoint that is active but not yet armed parks the packet as pending
so the answer can be supplied once the guest arms the endpoint. Pending
packets are re-scanned by the device work bottom-half every time the
guest touches an endpoint control register.

Data moves through guest memory in one of two DMA shapes selected by
DCFG: buffer mode, where a single pointer advances as bytes transfer,
and descriptor-chain mode, where the engine walks a chain of two-word
descriptors honouring the ownership, last, short-packet and
interrupt-on-completion bits. Endpoint 0 uses its own narrow transfer
size layout and the 2-bit encoded max packet size.

A SETUP arriving on endpoint 0 clears any control stall, captures the
8-byte request, and a SET_ADDRESS request completes speed enumeration:
DSTS reports high speed and the enumeration-done interrupt fires.
*/

package main

// ep0MaxPacketSize decodes the 2-bit endpoint 0 MPS encoding.
func ep0MaxPacketSize(ctl uint32) uint32 {
	switch ctl & D0EPCTL_MPS_MASK {
	case D0EPCTL_MPS_64:
		return 64
	case D0EPCTL_MPS_32:
		return 32
	case D0EPCTL_MPS_16:
		return 16
	default:
		return 8
	}
}

// updateInEp applies the self-clearing IN endpoint control commands
// (set/clear NAK, endpoint disable) and rescans pending packets.
func (chip *USBChip) updateInEp(ep int) {
	if *chip.diepctl(ep)&DXEPCTL_SNAK != 0 {
		*chip.diepctl(ep) |= DXEPCTL_NAKSTS
		*chip.diepctl(ep) &^= DXEPCTL_SNAK
		*chip.diepint(ep) |= DXEPINT_INEPNAKEFF
	}
	if *chip.diepctl(ep)&DXEPCTL_CNAK != 0 {
		*chip.diepctl(ep) &^= DXEPCTL_NAKSTS
		*chip.diepctl(ep) &^= DXEPCTL_CNAK
		*chip.diepint(ep) &^= DXEPINT_INEPNAKEFF
	}
	if *chip.diepctl(ep)&DXEPCTL_EPDIS != 0 {
		*chip.diepctl(ep) &^= DXEPCTL_EPDIS | DXEPCTL_EPENA
		*chip.diepint(ep) |= DXEPINT_EPDISBLD
	}
	chip.scheduleDeviceWork()
}

// updateOutEp is the OUT-side counterpart of updateInEp.
func (chip *USBChip) updateOutEp(ep int) {
	if *chip.doepctl(ep)&DXEPCTL_SNAK != 0 {
		*chip.doepctl(ep) |= DXEPCTL_NAKSTS
		*chip.doepctl(ep) &^= DXEPCTL_SNAK
		*chip.doepint(ep) |= DXEPINT_INEPNAKEFF
	}
	if *chip.doepctl(ep)&DXEPCTL_CNAK != 0 {
		*chip.doepctl(ep) &^= DXEPCTL_NAKSTS
		*chip.doepctl(ep) &^= DXEPCTL_CNAK
		*chip.doepint(ep) &^= DXEPINT_INEPNAKEFF
	}
	if *chip.doepctl(ep)&DXEPCTL_EPDIS != 0 {
		*chip.doepctl(ep) &^= DXEPCTL_EPDIS | DXEPCTL_EPENA
		*chip.doepint(ep) |= DXEPINT_EPDISBLD
	}
	chip.scheduleDeviceWork()
}

// dmaDesc is one two-word transfer descriptor in guest memory.
type dmaDesc struct {
	status uint32
	buf    uint32
}

func (chip *USBChip) readDesc(addr uint32) (dmaDesc, bool) {
	var raw [DEV_DMA_DESC_SIZE]byte
	if err := chip.bus.ReadBytes(addr, raw[:]); err != nil {
		guestError("descriptor read at 0x%08X failed: %v", addr, err)
		return dmaDesc{}, false
	}
	return dmaDesc{
		status: uint32(raw[0]) | uint32(raw[1])<<8 | uint32(raw[2])<<16 | uint32(raw[3])<<24,
		buf:    uint32(raw[4]) | uint32(raw[5])<<8 | uint32(raw[6])<<16 | uint32(raw[7])<<24,
	}, true
}

func (chip *USBChip) writeDesc(addr uint32, desc dmaDesc) {
	raw := [DEV_DMA_DESC_SIZE]byte{
		byte(desc.status), byte(desc.status >> 8),
		byte(desc.status >> 16), byte(desc.status >> 24),
		byte(desc.buf), byte(desc.buf >> 8),
		byte(desc.buf >> 16), byte(desc.buf >> 24),
	}
	if err := chip.bus.WriteBytes(addr, raw[:]); err != nil {
		guestError("descriptor write at 0x%08X failed: %v", addr, err)
	}
}

// descSegment is one gathered piece of a descriptor-chain transfer.
type descSegment struct {
	buf uint32
	len uint32
}

// walkDescChain consumes descriptors at *dmaptr until the chain ends or
// pktsize bytes are gathered, updating each descriptor's status in
// guest memory as the hardware would. The setup flag marks the closing
// descriptor of a SETUP data stage.
func (chip *USBChip) walkDescChain(dmaptr *uint32, pktsize uint32, mps uint32, setup bool, out bool) []descSegment {
	var segs []descSegment
	var gathered uint32

	for {
		desc, ok := chip.readDesc(*dmaptr)
		if !ok {
			break
		}
		if (desc.status&DEV_DMA_BUFF_STS_MASK)>>DEV_DMA_BUFF_STS_SHIFT != DEV_DMA_BUFF_STS_HREADY {
			break
		}

		nbytes := desc.status & DEV_DMA_NBYTES_MASK
		var take uint32
		if gathered+nbytes >= pktsize {
			take = pktsize - gathered
			nbytes -= take
			if out {
				if (gathered+take)%mps != 0 || gathered+take == 0 {
					desc.status |= DEV_DMA_SHORT
				}
				if setup {
					desc.status |= DEV_DMA_SR
				}
			}
			desc.status |= DEV_DMA_L
		} else {
			take = nbytes
			nbytes = 0
		}

		desc.status &^= DEV_DMA_NBYTES_MASK
		desc.status |= nbytes & DEV_DMA_NBYTES_MASK
		desc.status &^= DEV_DMA_BUFF_STS_MASK
		desc.status |= DEV_DMA_BUFF_STS_DMADONE << DEV_DMA_BUFF_STS_SHIFT
		chip.writeDesc(*dmaptr, desc)

		segs = append(segs, descSegment{buf: desc.buf, len: take})
		gathered += take
		*dmaptr += DEV_DMA_DESC_SIZE

		if desc.status&DEV_DMA_L != 0 {
			break
		}
	}

	return segs
}

// processDevicePacket answers one token from the upstream host against
// the current endpoint register state. It sets p.Status; a pending
// answer is signalled with USB_RET_ASYNC.
func (chip *USBChip) processDevicePacket(p *USBPacket) {
	ep := p.Epnum
	pktsize := uint32(len(p.Data) - p.ActualLength)

	switch p.Pid {
	case USB_TOKEN_IN:
		if *chip.diepctl(ep)&DXEPCTL_STALL != 0 {
			p.Status = USB_RET_STALL
			break
		}
		if *chip.diepctl(ep)&DXEPCTL_USBACTEP == 0 ||
			*chip.diepctl(ep)&DXEPCTL_NAKSTS != 0 ||
			*chip.gintsts()&GINTSTS_GINNAKEFF != 0 {
			p.Status = USB_RET_NAK
			break
		}
		if *chip.diepctl(ep)&DXEPCTL_EPENA == 0 {
			p.Status = USB_RET_ASYNC
			break
		}

		var sz, pktcnt, mps uint32
		if ep == 0 {
			sz = *chip.dieptsiz(0) & DIEPTSIZ0_XFERSIZE_MASK
			pktcnt = (*chip.dieptsiz(0) & DIEPTSIZ0_PKTCNT_MASK) >> DIEPTSIZ0_PKTCNT_SHIFT
			mps = ep0MaxPacketSize(*chip.diepctl(0))
		} else {
			sz = (*chip.dieptsiz(ep) & DXEPTSIZ_XFERSIZE_MASK) >> DXEPTSIZ_XFERSIZE_SHIFT
			pktcnt = (*chip.dieptsiz(ep) & DXEPTSIZ_PKTCNT_MASK) >> DXEPTSIZ_PKTCNT_SHIFT
			mps = (*chip.diepctl(ep) & DXEPCTL_MPS_MASK) >> DXEPCTL_MPS_SHIFT
		}
		if mps == 0 {
			guestError("IN endpoint %d enabled with zero MPS", ep)
			p.Status = USB_RET_STALL
			break
		}

		var amtDone uint32
		if *chip.dcfg()&DCFG_DESCDMA_EN != 0 {
			segs := chip.walkDescChain(chip.diepdma(ep), pktsize, mps, false, false)
			for _, seg := range segs {
				buf := make([]byte, seg.len)
				if err := chip.bus.ReadBytes(seg.buf, buf); err != nil {
					guestError("DMA read at 0x%08X failed: %v", seg.buf, err)
					break
				}
				p.Copy(buf)
				amtDone += seg.len
			}
			*chip.diepctl(ep) &^= DXEPCTL_EPENA
			*chip.diepint(ep) |= DXEPINT_XFERCOMPL
		} else {
			amtDone = sz
			if amtDone > pktsize {
				amtDone = pktsize
			}

			if pktsize != 0 && amtDone == 0 {
				// The host wants data but nothing is staged yet.
				*chip.diepint(ep) |= DXEPINT_INTKNTXFEMP
				p.Status = USB_RET_ASYNC
				break
			}

			if amtDone > 0 {
				buf := make([]byte, amtDone)
				if *chip.diepdma(ep) != 0 {
					if err := chip.bus.ReadBytes(*chip.diepdma(ep), buf); err != nil {
						guestError("DMA read at 0x%08X failed: %v", *chip.diepdma(ep), err)
					}
					*chip.diepdma(ep) += amtDone
				}
				p.Copy(buf)
				pktcnt -= (amtDone - 1 + mps) / mps
			} else if pktsize == 0 {
				pktcnt--
			}

			if ep == 0 {
				*chip.dieptsiz(0) = (*chip.dieptsiz(0) &^ DIEPTSIZ0_PKTCNT_MASK) |
					((pktcnt << DIEPTSIZ0_PKTCNT_SHIFT) & DIEPTSIZ0_PKTCNT_MASK)
				*chip.dieptsiz(0) = (*chip.dieptsiz(0) &^ DIEPTSIZ0_XFERSIZE_MASK) |
					((sz - amtDone) & DIEPTSIZ0_XFERSIZE_MASK)
			} else {
				*chip.dieptsiz(ep) = (*chip.dieptsiz(ep) &^ DXEPTSIZ_PKTCNT_MASK) |
					((pktcnt << DXEPTSIZ_PKTCNT_SHIFT) & DXEPTSIZ_PKTCNT_MASK)
				*chip.dieptsiz(ep) = (*chip.dieptsiz(ep) &^ DXEPTSIZ_XFERSIZE_MASK) |
					((sz - amtDone) << DXEPTSIZ_XFERSIZE_SHIFT & DXEPTSIZ_XFERSIZE_MASK)
			}
			if sz == amtDone {
				*chip.diepctl(ep) &^= DXEPCTL_EPENA
				*chip.diepint(ep) |= DXEPINT_XFERCOMPL
			}
		}

		// A full packet that is short of the host's request stays
		// pending for the next arming.
		if amtDone < pktsize && amtDone%mps == 0 && amtDone > 0 {
			p.Status = USB_RET_ASYNC
		} else {
			p.Status = USB_RET_SUCCESS
		}

	case USB_TOKEN_SETUP, USB_TOKEN_OUT:
		if p.Pid == USB_TOKEN_SETUP && ep == 0 &&
			(*chip.diepctl(0)|*chip.doepctl(0))&DXEPCTL_STALL != 0 {
			// SETUP clears a control stall.
			*chip.diepctl(0) &^= DXEPCTL_STALL
			*chip.doepctl(0) &^= DXEPCTL_STALL
		}
		if *chip.doepctl(ep)&DXEPCTL_STALL != 0 {
			p.Status = USB_RET_STALL
			break
		}
		if (*chip.doepctl(ep)&DXEPCTL_NAKSTS != 0 && p.Pid != USB_TOKEN_SETUP) ||
			*chip.doepctl(ep)&DXEPCTL_USBACTEP == 0 ||
			*chip.gintsts()&GINTSTS_GOUTNAKEFF != 0 {
			p.Status = USB_RET_NAK
			break
		}
		if *chip.doepctl(ep)&DXEPCTL_EPENA == 0 {
			if ep == 0 {
				*chip.doepint(0) |= DXEPINT_OUTTKNEPDIS
			}
			p.Status = USB_RET_ASYNC
			break
		}

		var sz, pktcnt, mps uint32
		if ep == 0 {
			sz = *chip.doeptsiz(0) & DOEPTSIZ0_XFERSIZE_MASK
			pktcnt = (*chip.doeptsiz(0) & DOEPTSIZ0_PKTCNT_MASK) >> 19
			mps = ep0MaxPacketSize(*chip.doepctl(0))
		} else {
			sz = (*chip.doeptsiz(ep) & DXEPTSIZ_XFERSIZE_MASK) >> DXEPTSIZ_XFERSIZE_SHIFT
			pktcnt = (*chip.doeptsiz(ep) & DXEPTSIZ_PKTCNT_MASK) >> DXEPTSIZ_PKTCNT_SHIFT
			mps = (*chip.doepctl(ep) & DXEPCTL_MPS_MASK) >> DXEPCTL_MPS_SHIFT
		}
		if mps == 0 {
			guestError("OUT endpoint %d enabled with zero MPS", ep)
			p.Status = USB_RET_STALL
			break
		}

		var amtDone uint32
		var setupBuf []byte
		if *chip.dcfg()&DCFG_DESCDMA_EN != 0 {
			segs := chip.walkDescChain(chip.doepdma(ep), pktsize,
				mps, p.Pid == USB_TOKEN_SETUP, true)
			var total uint32
			for _, seg := range segs {
				total += seg.len
			}
			buf := make([]byte, total)
			p.Copy(buf)
			var off uint32
			for _, seg := range segs {
				if err := chip.bus.WriteBytes(seg.buf, buf[off:off+seg.len]); err != nil {
					guestError("DMA write at 0x%08X failed: %v", seg.buf, err)
					break
				}
				off += seg.len
			}
			amtDone = total
			setupBuf = buf
		} else {
			amtDone = sz
			if amtDone > pktsize {
				amtDone = pktsize
			}

			if amtDone > 0 {
				buf := make([]byte, amtDone)
				p.Copy(buf)
				if *chip.doepdma(ep) != 0 {
					if err := chip.bus.WriteBytes(*chip.doepdma(ep), buf); err != nil {
						guestError("DMA write at 0x%08X failed: %v", *chip.doepdma(ep), err)
					}
					*chip.doepdma(ep) += amtDone
				}
				pktcnt -= (amtDone - 1 + mps) / mps
				setupBuf = buf
			} else if pktsize == 0 {
				pktcnt--
			}

			if ep == 0 {
				if p.Pid != USB_TOKEN_SETUP {
					*chip.doeptsiz(0) = (*chip.doeptsiz(0) &^ DOEPTSIZ0_PKTCNT_MASK) |
						((pktcnt << 19) & DOEPTSIZ0_PKTCNT_MASK)
				}
				*chip.doeptsiz(0) = (*chip.doeptsiz(0) &^ DOEPTSIZ0_XFERSIZE_MASK) |
					((sz - amtDone) & DOEPTSIZ0_XFERSIZE_MASK)
			} else {
				*chip.doeptsiz(ep) = (*chip.doeptsiz(ep) &^ DXEPTSIZ_PKTCNT_MASK) |
					((pktcnt << DXEPTSIZ_PKTCNT_SHIFT) & DXEPTSIZ_PKTCNT_MASK)
				*chip.doeptsiz(ep) = (*chip.doeptsiz(ep) &^ DXEPTSIZ_XFERSIZE_MASK) |
					((sz - amtDone) << DXEPTSIZ_XFERSIZE_SHIFT & DXEPTSIZ_XFERSIZE_MASK)
			}
		}

		if amtDone < pktsize && amtDone%mps == 0 && amtDone > 0 {
			p.Status = USB_RET_ASYNC
		} else {
			p.Status = USB_RET_SUCCESS
		}

		if p.Pid == USB_TOKEN_SETUP && amtDone >= 8 {
			if req, ok := DecodeControlRequest(setupBuf); ok {
				chip.setupRequest = req
				chip.setupValid = true

				if req.RequestType == 0 && req.Request == USB_REQ_SET_ADDRESS && ep == 0 {
					// Address assignment closes enumeration.
					*chip.dsts() &^= DSTS_ENUMSPD_MASK
					*chip.dsts() |= DSTS_ENUMSPD_HS << DSTS_ENUMSPD_SHIFT
					chip.raiseGlobalIRQ(GINTSTS_ENUMDONE)
				}
			}

			*chip.doepint(ep) |= DXEPINT_SETUP | DXEPINT_SETUP_RCVD
		}
		*chip.doepctl(ep) &^= DXEPCTL_EPENA
		*chip.doepint(ep) |= DXEPINT_XFERCOMPL

	default:
		guestError("device packet with unknown token 0x%02X", p.Pid)
		p.Status = USB_RET_IOERROR
	}

	chip.updateEPIRQ(ep)
}

// DeviceSubmitPacket is the upstream host's entry point in device
// mode. The packet resolves synchronously unless the guest has not yet
// armed the endpoint, in which case it parks as pending and resolves
// through its completion callback once the guest programs the endpoint.
// Completion callbacks must not call back into the controller.
func (chip *USBChip) DeviceSubmitPacket(p *USBPacket) {
	chip.mutex.Lock()
	defer chip.mutex.Unlock()

	if !chip.upstreamConnected {
		p.Status = USB_RET_NODEV
		p.state = USB_PACKET_COMPLETE
		return
	}
	if p.Epnum < 0 || p.Epnum >= DWC2_NB_EP {
		p.Status = USB_RET_IOERROR
		p.state = USB_PACKET_COMPLETE
		return
	}

	chip.processDevicePacket(p)

	if p.Status == USB_RET_ASYNC {
		p.state = USB_PACKET_ASYNC
		if p.Pid == USB_TOKEN_IN {
			chip.epInQueue[p.Epnum] = append(chip.epInQueue[p.Epnum], p)
		} else {
			chip.epOutQueue[p.Epnum] = append(chip.epOutQueue[p.Epnum], p)
		}
	} else {
		p.state = USB_PACKET_COMPLETE
	}

	chip.runDeferred()
}

// deviceProcessAsync retries the head of one endpoint's pending queue.
func (chip *USBChip) deviceProcessAsync(queue *[]*USBPacket) {
	if len(*queue) == 0 {
		return
	}
	p := (*queue)[0]
	if p.state != USB_PACKET_ASYNC {
		*queue = (*queue)[1:]
		return
	}

	chip.processDevicePacket(p)

	if p.Status == USB_RET_NAK {
		// A parked packet cannot NAK its way back to the host.
		p.Status = USB_RET_IOERROR
	}
	if p.Status != USB_RET_ASYNC {
		*queue = (*queue)[1:]
		p.Complete()
	}
}

// deviceWorkBH rescans every endpoint's pending packets: control first,
// then OUT before IN for each endpoint.
func (chip *USBChip) deviceWorkBH() {
	chip.deviceProcessAsync(&chip.epOutQueue[0])

	for i := 1; i < DWC2_NB_EP; i++ {
		chip.deviceProcessAsync(&chip.epOutQueue[i])
		chip.deviceProcessAsync(&chip.epInQueue[i])
	}
}

// deviceSoftConnect reports the device to the upstream bus when the
// guest clears soft disconnect.
func (chip *USBChip) deviceSoftConnect() {
	chip.upstreamConnected = true
	*chip.gotgctl() |= GOTGCTL_BSESVLD | GOTGCTL_CONID_B
	chip.lowerGlobalIRQ(GINTSTS_CURMODE_HOST)
	chip.raiseGlobalIRQ(GINTSTS_CONIDSTSCHNG)
}

// deviceSoftDisconnect takes the device off the upstream bus; pending
// packets are cancelled.
func (chip *USBChip) deviceSoftDisconnect() {
	chip.upstreamConnected = false

	for i := 0; i < DWC2_NB_EP; i++ {
		for _, p := range chip.epInQueue[i] {
			p.Cancel()
		}
		for _, p := range chip.epOutQueue[i] {
			p.Cancel()
		}
		chip.epInQueue[i] = nil
		chip.epOutQueue[i] = nil
	}

	*chip.gotgctl() &^= GOTGCTL_BSESVLD | GOTGCTL_CONID_B
	chip.raiseGlobalIRQ(GINTSTS_CURMODE_HOST | GINTSTS_CONIDSTSCHNG)
}

// DeviceConnected reports whether the device-mode function is soft
// connected to the upstream bus.
func (chip *USBChip) DeviceConnected() bool {
	chip.mutex.Lock()
	defer chip.mutex.Unlock()
	return chip.upstreamConnected
}

// DeviceAddress reports the function address the guest programmed
// through DCFG.
func (chip *USBChip) DeviceAddress() uint8 {
	chip.mutex.Lock()
	defer chip.mutex.Unlock()
	return chip.devAddr
}

// DeviceBusReset is driven by the upstream host: the function drops to
// the default address, non-control endpoints deactivate and the guest
// sees the USB reset interrupt.
func (chip *USBChip) DeviceBusReset() {
	chip.mutex.Lock()
	defer chip.mutex.Unlock()

	*chip.dcfg() &^= DCFG_DEVADDR_MASK
	chip.devAddr = 0

	for i := 1; i < DWC2_NB_EP; i++ {
		*chip.diepctl(i) &^= DXEPCTL_USBACTEP
		*chip.doepctl(i) &^= DXEPCTL_USBACTEP
	}

	chip.raiseGlobalIRQ(GINTSTS_USBRST)
	chip.runDeferred()
}

// LastSetupRequest returns the most recent SETUP packet captured on
// endpoint 0, if any.
func (chip *USBChip) LastSetupRequest() (ControlRequest, bool) {
	chip.mutex.Lock()
	defer chip.mutex.Unlock()
	return chip.setupRequest, chip.setupValid
}
