// usb_bus.go - Simulated USB bus, packets and device model interface

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
usb_bus.go - Simulated USB Bus

Packet and device-model plumbing between the controller and the rest of
the simulated machine. A USBPacket is one in-flight transfer attempt: a
token, a target endpoint, a data buffer and a completion status. Packets
complete either synchronously inside HandlePacket or asynchronously via
Complete once the device model has produced a result; a packet completes
exactly once.

USBDeviceModel is the downstream collaborator: anything that behaves as
a USB function (the built-in test device, the Lua-scripted device) plugs
into the controller's root port through this interface.
*/

package main

import "fmt"

// USBPacket life cycle states
const (
	USB_PACKET_UNDEF = iota
	USB_PACKET_SETUP
	USB_PACKET_QUEUED
	USB_PACKET_ASYNC
	USB_PACKET_COMPLETE
	USB_PACKET_CANCELED
)

type USBPacket struct {
	/*
		USBPacket is a single transaction attempt on the simulated
		bus. Data is the transfer buffer: filled by the submitter for
		OUT/SETUP, filled by the responder for IN. ActualLength is
		the number of bytes actually moved, which may be less than
		len(Data) for short packets and more than requested only in
		the babble case.
	*/

	Pid          int // USB_TOKEN_SETUP, USB_TOKEN_IN or USB_TOKEN_OUT
	Epnum        int
	Status       int // USB_RET_* result code
	ActualLength int
	Data         []byte

	state      int
	onComplete func(p *USBPacket)
}

// SetupPacket prepares the packet for (re)submission with the given
// token, endpoint and transfer buffer.
func (p *USBPacket) SetupPacket(pid, epnum int, data []byte) {
	p.Pid = pid
	p.Epnum = epnum
	p.Data = data
	p.Status = USB_RET_SUCCESS
	p.ActualLength = 0
	p.state = USB_PACKET_SETUP
}

// SetComplete registers the callback invoked when an asynchronous
// packet eventually resolves.
func (p *USBPacket) SetComplete(fn func(p *USBPacket)) {
	p.onComplete = fn
}

// Complete resolves a pending-async packet. The responder must have set
// Status and ActualLength first. Completing a packet that is not
// pending is an emulation bug.
func (p *USBPacket) Complete() {
	if p.state != USB_PACKET_ASYNC {
		panic(fmt.Sprintf("usb: completing packet in state %d", p.state))
	}
	p.state = USB_PACKET_COMPLETE
	if p.onComplete != nil {
		p.onComplete(p)
	}
}

// Cancel removes the packet from its pending queue without completing
// the transfer. The responder observes USB_RET_REMOVE_FROM_QUEUE.
func (p *USBPacket) Cancel() {
	p.state = USB_PACKET_CANCELED
	p.Status = USB_RET_REMOVE_FROM_QUEUE
}

// InFlight reports whether the packet is parked waiting for an
// asynchronous completion.
func (p *USBPacket) InFlight() bool {
	return p.state == USB_PACKET_ASYNC || p.state == USB_PACKET_QUEUED
}

// Copy moves data between the packet buffer and a scratch buffer,
// advancing ActualLength; the direction follows the token.
func (p *USBPacket) Copy(buf []byte) {
	n := len(buf)
	if p.ActualLength+n > len(p.Data) {
		n = len(p.Data) - p.ActualLength
	}
	if n <= 0 {
		return
	}
	if p.Pid == USB_TOKEN_IN {
		copy(p.Data[p.ActualLength:], buf[:n])
	} else {
		copy(buf[:n], p.Data[p.ActualLength:])
	}
	p.ActualLength += n
}

type USBDeviceModel interface {
	/*
		USBDeviceModel is a downstream USB function attached to the
		controller's root port. HandlePacket answers a transaction
		attempt: it must set p.Status (and ActualLength/Data for
		successful transfers) before returning, or leave the packet
		pending by setting USB_RET_ASYNC and completing it later via
		p.Complete(). CancelPacket revokes a pending packet.
	*/

	Attached() bool
	Speed() int
	Address() uint8
	HandlePacket(p *USBPacket)
	CancelPacket(p *USBPacket)
	HandleReset()
}

// ControlRequest is the fixed 8-byte SETUP record captured by both the
// host engine's scratch path and the device endpoint engine.
type ControlRequest struct {
	RequestType uint8
	Request     uint8
	Value       uint16
	Index       uint16
	Length      uint16
}

// DecodeControlRequest unpacks a little-endian 8-byte SETUP payload.
func DecodeControlRequest(buf []byte) (ControlRequest, bool) {
	if len(buf) < 8 {
		return ControlRequest{}, false
	}
	return ControlRequest{
		RequestType: buf[0],
		Request:     buf[1],
		Value:       uint16(buf[2]) | uint16(buf[3])<<8,
		Index:       uint16(buf[4]) | uint16(buf[5])<<8,
		Length:      uint16(buf[6]) | uint16(buf[7])<<8,
	}, true
}
