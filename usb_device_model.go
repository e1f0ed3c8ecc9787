// usb_device_model.go - Built-in loopback device model for the root port

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
usb_device_model.go - Loopback Device Model

A self-contained USB function for the root port: endpoint 0 answers the
standard control requests, endpoint 1 is a bulk loopback pair (bytes
written OUT come back IN), endpoint 2 is an interrupt IN source that
NAKs until data is queued with QueueInterrupt, and endpoint 3 always
stalls. Endpoints can additionally be switched to asynchronous response
with SetAsync, which parks each attempt until CompletePending releases
it; that exercises the controller's pending-packet paths without
needing a real slow device.
*/

package main

import "sync"

const (
	LOOPBACK_EP_BULK  = 1
	LOOPBACK_EP_INTR  = 2
	LOOPBACK_EP_STALL = 3

	LOOPBACK_VENDOR_ID  = 0x1209
	LOOPBACK_PRODUCT_ID = 0x0001
)

type LoopbackDevice struct {
	mutex sync.Mutex

	attached bool
	speed    int
	addr     uint8
	config   uint8

	// Control transfer state: the last SETUP and the staged IN data.
	lastSetup ControlRequest
	ctrlData  []byte
	ctrlPos   int

	bulkFIFO []byte
	intrData []byte
	halted   [DWC2_NB_EP]bool

	asyncEP [DWC2_NB_EP]bool
	pending []*USBPacket
}

// NewLoopbackDevice builds an attached high-speed loopback function.
func NewLoopbackDevice() *LoopbackDevice {
	return &LoopbackDevice{
		attached: true,
		speed:    USB_SPEED_HIGH,
	}
}

func (dev *LoopbackDevice) Attached() bool {
	dev.mutex.Lock()
	defer dev.mutex.Unlock()
	return dev.attached
}

func (dev *LoopbackDevice) Speed() int { return dev.speed }

func (dev *LoopbackDevice) Address() uint8 {
	dev.mutex.Lock()
	defer dev.mutex.Unlock()
	return dev.addr
}

// HandleReset returns the function to its default state; the address
// and configuration are lost.
func (dev *LoopbackDevice) HandleReset() {
	dev.mutex.Lock()
	defer dev.mutex.Unlock()

	dev.addr = 0
	dev.config = 0
	dev.ctrlData = nil
	dev.ctrlPos = 0
	dev.bulkFIFO = nil
	dev.intrData = nil
	for i := range dev.halted {
		dev.halted[i] = false
	}
	// The controller cancels parked attempts before resetting the
	// port, so the list is normally already empty.
	dev.pending = nil
}

// SetAsync switches an endpoint to asynchronous response: each attempt
// parks until CompletePending.
func (dev *LoopbackDevice) SetAsync(ep int, async bool) {
	dev.mutex.Lock()
	defer dev.mutex.Unlock()
	dev.asyncEP[ep] = async
}

// QueueInterrupt stages data for the interrupt IN endpoint.
func (dev *LoopbackDevice) QueueInterrupt(data []byte) {
	dev.mutex.Lock()
	defer dev.mutex.Unlock()
	dev.intrData = append(dev.intrData, data...)
}

// PendingCount reports how many attempts are parked.
func (dev *LoopbackDevice) PendingCount() int {
	dev.mutex.Lock()
	defer dev.mutex.Unlock()
	return len(dev.pending)
}

// CompletePending releases the oldest parked attempt: the endpoint
// answers it as it would have synchronously, and the controller's
// completion callback runs. Call without holding controller locks.
func (dev *LoopbackDevice) CompletePending() bool {
	dev.mutex.Lock()
	if len(dev.pending) == 0 {
		dev.mutex.Unlock()
		return false
	}
	p := dev.pending[0]
	dev.pending = dev.pending[1:]
	dev.servicePacket(p)
	dev.mutex.Unlock()

	p.Complete()
	return true
}

// HandlePacket answers one transaction attempt.
func (dev *LoopbackDevice) HandlePacket(p *USBPacket) {
	dev.mutex.Lock()
	defer dev.mutex.Unlock()

	if dev.asyncEP[p.Epnum] {
		dev.pending = append(dev.pending, p)
		p.Status = USB_RET_ASYNC
		return
	}

	dev.servicePacket(p)
}

// CancelPacket revokes a parked attempt.
func (dev *LoopbackDevice) CancelPacket(p *USBPacket) {
	dev.mutex.Lock()
	defer dev.mutex.Unlock()

	for i, q := range dev.pending {
		if q == p {
			dev.pending = append(dev.pending[:i], dev.pending[i+1:]...)
			break
		}
	}
}

// servicePacket implements the endpoint behaviour; caller holds the
// device mutex.
func (dev *LoopbackDevice) servicePacket(p *USBPacket) {
	if dev.halted[p.Epnum] && p.Pid != USB_TOKEN_SETUP {
		p.Status = USB_RET_STALL
		return
	}

	switch {
	case p.Epnum == 0:
		dev.serviceControl(p)
	case p.Epnum == LOOPBACK_EP_BULK && p.Pid == USB_TOKEN_OUT:
		buf := make([]byte, len(p.Data))
		p.Copy(buf)
		dev.bulkFIFO = append(dev.bulkFIFO, buf[:p.ActualLength]...)
		p.Status = USB_RET_SUCCESS
	case p.Epnum == LOOPBACK_EP_BULK && p.Pid == USB_TOKEN_IN:
		if len(dev.bulkFIFO) == 0 {
			p.Status = USB_RET_NAK
			return
		}
		n := len(dev.bulkFIFO)
		if n > len(p.Data) {
			n = len(p.Data)
		}
		p.Copy(dev.bulkFIFO[:n])
		dev.bulkFIFO = dev.bulkFIFO[n:]
		p.Status = USB_RET_SUCCESS
	case p.Epnum == LOOPBACK_EP_INTR && p.Pid == USB_TOKEN_IN:
		if len(dev.intrData) == 0 {
			p.Status = USB_RET_NAK
			return
		}
		n := len(dev.intrData)
		if n > len(p.Data) {
			n = len(p.Data)
		}
		p.Copy(dev.intrData[:n])
		dev.intrData = dev.intrData[n:]
		p.Status = USB_RET_SUCCESS
	default:
		p.Status = USB_RET_STALL
	}
}

func (dev *LoopbackDevice) serviceControl(p *USBPacket) {
	switch p.Pid {
	case USB_TOKEN_SETUP:
		req, ok := DecodeControlRequest(p.Data)
		if !ok {
			p.Status = USB_RET_IOERROR
			return
		}
		dev.lastSetup = req
		dev.ctrlPos = 0
		dev.ctrlData = nil
		p.ActualLength = len(p.Data)

		switch {
		case req.RequestType == 0x80 && req.Request == USB_REQ_GET_DESCRIPTOR:
			dev.ctrlData = dev.descriptor(uint8(req.Value>>8), uint8(req.Value))
			if dev.ctrlData == nil {
				p.Status = USB_RET_STALL
				return
			}
			if int(req.Length) < len(dev.ctrlData) {
				dev.ctrlData = dev.ctrlData[:req.Length]
			}
		case req.RequestType == 0x00 && req.Request == USB_REQ_SET_ADDRESS:
			dev.addr = uint8(req.Value)
		case req.RequestType == 0x00 && req.Request == USB_REQ_SET_CONFIGURATION:
			dev.config = uint8(req.Value)
		case req.RequestType == 0x80 && req.Request == USB_REQ_GET_STATUS:
			dev.ctrlData = []byte{0x00, 0x00}
		case req.RequestType == 0x02 && req.Request == USB_REQ_CLEAR_FEATURE:
			dev.halted[req.Index&0xf] = false
		case req.RequestType == 0x02 && req.Request == USB_REQ_SET_FEATURE:
			dev.halted[req.Index&0xf] = true
		}
		p.Status = USB_RET_SUCCESS
	case USB_TOKEN_IN:
		// Data stage of a control read, or zero-length status.
		n := len(dev.ctrlData) - dev.ctrlPos
		if n > len(p.Data) {
			n = len(p.Data)
		}
		if n > 0 {
			p.Copy(dev.ctrlData[dev.ctrlPos : dev.ctrlPos+n])
			dev.ctrlPos += n
		}
		p.Status = USB_RET_SUCCESS
	case USB_TOKEN_OUT:
		p.ActualLength = len(p.Data)
		p.Status = USB_RET_SUCCESS
	default:
		p.Status = USB_RET_IOERROR
	}
}

// descriptor builds the standard descriptors on demand.
func (dev *LoopbackDevice) descriptor(dtype, dindex uint8) []byte {
	switch dtype {
	case USB_DT_DEVICE:
		return []byte{
			18, USB_DT_DEVICE,
			0x00, 0x02, // USB 2.0
			0x00, 0x00, 0x00, // class/subclass/protocol per interface
			64, // ep0 max packet
			byte(LOOPBACK_VENDOR_ID & 0xFF), byte(LOOPBACK_VENDOR_ID >> 8),
			byte(LOOPBACK_PRODUCT_ID & 0xFF), byte(LOOPBACK_PRODUCT_ID >> 8),
			0x00, 0x01, // bcdDevice 1.00
			0, 0, 0, // no string descriptors
			1, // one configuration
		}
	case USB_DT_CONFIG:
		total := 9 + 9 + 7*3
		return []byte{
			9, USB_DT_CONFIG,
			byte(total), byte(total >> 8),
			1,    // one interface
			1,    // configuration value
			0,    // no string
			0xc0, // self powered
			0,    // no bus power

			9, USB_DT_INTERFACE,
			0, 0, // interface 0, no alt setting
			3,             // three endpoints
			0xff, 0, 0, 0, // vendor specific

			7, USB_DT_ENDPOINT,
			0x80 | LOOPBACK_EP_BULK, // bulk IN
			USB_ENDPOINT_XFER_BULK,
			0x00, 0x02, // 512 byte packets
			0,

			7, USB_DT_ENDPOINT,
			LOOPBACK_EP_BULK, // bulk OUT
			USB_ENDPOINT_XFER_BULK,
			0x00, 0x02,
			0,

			7, USB_DT_ENDPOINT,
			0x80 | LOOPBACK_EP_INTR, // interrupt IN
			USB_ENDPOINT_XFER_INT,
			64, 0x00,
			10, // 10 frame interval
		}
	default:
		return nil
	}
}
