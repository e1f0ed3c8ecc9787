// usb_lua_device.go - Lua-scripted device model for the root port

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
usb_lua_device.go - Lua-Scripted Device Model

A root-port device whose endpoint behaviour is written in Lua, so new
gadget behaviours can be prototyped without recompiling. The script
defines plain functions and the device calls them per transaction:

    function setup(bmRequestType, bRequest, wValue, wIndex, wLength)
        -- return a data string (staged for the IN data stage),
        -- true to ack, or "stall"
    end

    function handle_in(ep, maxlen)
        -- return a data string, "nak" or "stall"
    end

    function handle_out(ep, data)
        -- return true to ack, "nak" or "stall"
    end

    function reset()
    end

An optional global `speed` ("low", "full" or "high", default "high")
selects the attach speed. SET_ADDRESS is handled by the device itself
before the script sees it, so addressing always works even with a
minimal script. Missing functions fall back to sensible defaults: NAK
for IN, ack for OUT, stall for unknown control requests.
*/

package main

import (
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

type LuaDevice struct {
	mutex sync.Mutex

	state *lua.LState
	addr  uint8
	speed int

	ctrlData []byte
	ctrlPos  int
}

// NewLuaDevice loads the script from a string.
func NewLuaDevice(script string) (*LuaDevice, error) {
	L := lua.NewState()
	if err := L.DoString(script); err != nil {
		L.Close()
		return nil, fmt.Errorf("usb: lua device script: %w", err)
	}
	return finishLuaDevice(L)
}

// NewLuaDeviceFromFile loads the script from disk.
func NewLuaDeviceFromFile(path string) (*LuaDevice, error) {
	L := lua.NewState()
	if err := L.DoFile(path); err != nil {
		L.Close()
		return nil, fmt.Errorf("usb: lua device script: %w", err)
	}
	return finishLuaDevice(L)
}

func finishLuaDevice(L *lua.LState) (*LuaDevice, error) {
	dev := &LuaDevice{state: L, speed: USB_SPEED_HIGH}
	if spd, ok := L.GetGlobal("speed").(lua.LString); ok {
		switch string(spd) {
		case "low":
			dev.speed = USB_SPEED_LOW
		case "full":
			dev.speed = USB_SPEED_FULL
		case "high":
			dev.speed = USB_SPEED_HIGH
		default:
			L.Close()
			return nil, fmt.Errorf("usb: lua device: unknown speed %q", spd)
		}
	}
	return dev, nil
}

// Close releases the Lua interpreter.
func (dev *LuaDevice) Close() {
	dev.mutex.Lock()
	defer dev.mutex.Unlock()
	dev.state.Close()
}

func (dev *LuaDevice) Attached() bool { return true }
func (dev *LuaDevice) Speed() int     { return dev.speed }

func (dev *LuaDevice) Address() uint8 {
	dev.mutex.Lock()
	defer dev.mutex.Unlock()
	return dev.addr
}

func (dev *LuaDevice) HandleReset() {
	dev.mutex.Lock()
	defer dev.mutex.Unlock()

	dev.addr = 0
	dev.ctrlData = nil
	dev.ctrlPos = 0
	dev.call("reset", 0)
}

// CancelPacket is a no-op: the scripted device always answers
// synchronously.
func (dev *LuaDevice) CancelPacket(p *USBPacket) {}

func (dev *LuaDevice) HandlePacket(p *USBPacket) {
	dev.mutex.Lock()
	defer dev.mutex.Unlock()

	switch {
	case p.Epnum == 0 && p.Pid == USB_TOKEN_SETUP:
		dev.handleSetup(p)
	case p.Epnum == 0 && p.Pid == USB_TOKEN_IN:
		dev.handleControlIn(p)
	case p.Epnum == 0 && p.Pid == USB_TOKEN_OUT:
		p.ActualLength = len(p.Data)
		p.Status = USB_RET_SUCCESS
	case p.Pid == USB_TOKEN_IN:
		dev.handleIn(p)
	case p.Pid == USB_TOKEN_OUT:
		dev.handleOut(p)
	default:
		p.Status = USB_RET_IOERROR
	}
}

func (dev *LuaDevice) handleSetup(p *USBPacket) {
	req, ok := DecodeControlRequest(p.Data)
	if !ok {
		p.Status = USB_RET_IOERROR
		return
	}
	dev.ctrlData = nil
	dev.ctrlPos = 0
	p.ActualLength = len(p.Data)

	if req.RequestType == 0x00 && req.Request == USB_REQ_SET_ADDRESS {
		dev.addr = uint8(req.Value)
		p.Status = USB_RET_SUCCESS
		return
	}

	ret := dev.call("setup", 1,
		lua.LNumber(req.RequestType), lua.LNumber(req.Request),
		lua.LNumber(req.Value), lua.LNumber(req.Index),
		lua.LNumber(req.Length))

	switch v := ret.(type) {
	case lua.LString:
		if string(v) == "stall" {
			p.Status = USB_RET_STALL
			return
		}
		dev.ctrlData = []byte(v)
		if int(req.Length) < len(dev.ctrlData) {
			dev.ctrlData = dev.ctrlData[:req.Length]
		}
		p.Status = USB_RET_SUCCESS
	case lua.LBool:
		if bool(v) {
			p.Status = USB_RET_SUCCESS
		} else {
			p.Status = USB_RET_STALL
		}
	default:
		p.Status = USB_RET_STALL
	}
}

func (dev *LuaDevice) handleControlIn(p *USBPacket) {
	n := len(dev.ctrlData) - dev.ctrlPos
	if n > len(p.Data) {
		n = len(p.Data)
	}
	if n > 0 {
		p.Copy(dev.ctrlData[dev.ctrlPos : dev.ctrlPos+n])
		dev.ctrlPos += n
	}
	p.Status = USB_RET_SUCCESS
}

func (dev *LuaDevice) handleIn(p *USBPacket) {
	ret := dev.call("handle_in", 1,
		lua.LNumber(p.Epnum), lua.LNumber(len(p.Data)))

	switch v := ret.(type) {
	case lua.LString:
		switch string(v) {
		case "nak":
			p.Status = USB_RET_NAK
		case "stall":
			p.Status = USB_RET_STALL
		default:
			data := []byte(v)
			if len(data) > len(p.Data) {
				data = data[:len(p.Data)]
			}
			p.Copy(data)
			p.Status = USB_RET_SUCCESS
		}
	default:
		p.Status = USB_RET_NAK
	}
}

func (dev *LuaDevice) handleOut(p *USBPacket) {
	buf := make([]byte, len(p.Data))
	p.Copy(buf)

	ret := dev.call("handle_out", 1,
		lua.LNumber(p.Epnum), lua.LString(buf[:p.ActualLength]))

	switch v := ret.(type) {
	case lua.LString:
		switch string(v) {
		case "nak":
			p.ActualLength = 0
			p.Status = USB_RET_NAK
		case "stall":
			p.ActualLength = 0
			p.Status = USB_RET_STALL
		default:
			p.Status = USB_RET_SUCCESS
		}
	case lua.LBool:
		if bool(v) {
			p.Status = USB_RET_SUCCESS
		} else {
			p.ActualLength = 0
			p.Status = USB_RET_NAK
		}
	default:
		p.Status = USB_RET_SUCCESS
	}
}

// call invokes a script function if it exists; caller holds the device
// mutex. A script error logs and returns nil rather than killing the
// bus.
func (dev *LuaDevice) call(name string, nret int, args ...lua.LValue) lua.LValue {
	fn := dev.state.GetGlobal(name)
	if fn == lua.LNil {
		return lua.LNil
	}
	err := dev.state.CallByParam(lua.P{
		Fn:      fn,
		NRet:    nret,
		Protect: true,
	}, args...)
	if err != nil {
		guestError("lua device %s: %v", name, err)
		return lua.LNil
	}
	if nret == 0 {
		return lua.LNil
	}
	ret := dev.state.Get(-1)
	dev.state.Pop(1)
	return ret
}
