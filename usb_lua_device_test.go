package main

import (
	"bytes"
	"testing"
)

func newLuaTestDevice(t *testing.T, script string) *LuaDevice {
	t.Helper()
	dev, err := NewLuaDevice(script)
	if err != nil {
		t.Fatalf("NewLuaDevice failed: %v", err)
	}
	t.Cleanup(dev.Close)
	return dev
}

func TestLuaDeviceBadScript(t *testing.T) {
	if _, err := NewLuaDevice("function broken("); err == nil {
		t.Fatal("syntax error accepted")
	}
}

func TestLuaDeviceSpeedGlobal(t *testing.T) {
	dev := newLuaTestDevice(t, `speed = "low"`)
	if dev.Speed() != USB_SPEED_LOW {
		t.Fatalf("speed %d, expected low", dev.Speed())
	}

	if _, err := NewLuaDevice(`speed = "warp"`); err == nil {
		t.Fatal("unknown speed accepted")
	}
}

func TestLuaDeviceDefaultSpeed(t *testing.T) {
	dev := newLuaTestDevice(t, ``)
	if dev.Speed() != USB_SPEED_HIGH {
		t.Fatalf("speed %d, expected high by default", dev.Speed())
	}
}

// TestLuaDeviceSetAddress: addressing works with no script support at
// all.
func TestLuaDeviceSetAddress(t *testing.T) {
	dev := newLuaTestDevice(t, ``)

	p := setupPacket(0x00, USB_REQ_SET_ADDRESS, 0x33, 0, 0)
	dev.HandlePacket(p)
	if p.Status != USB_RET_SUCCESS || dev.Address() != 0x33 {
		t.Fatalf("status %d address %d", p.Status, dev.Address())
	}

	dev.HandleReset()
	if dev.Address() != 0 {
		t.Fatal("address survived reset")
	}
}

func TestLuaDeviceSetupDataStage(t *testing.T) {
	dev := newLuaTestDevice(t, `
function setup(bmRequestType, bRequest, wValue, wIndex, wLength)
    if bRequest == 6 then
        return "hello usb"
    end
    return "stall"
end
`)

	p := setupPacket(0x80, USB_REQ_GET_DESCRIPTOR, 0, 0, 255)
	dev.HandlePacket(p)
	if p.Status != USB_RET_SUCCESS {
		t.Fatalf("SETUP status %d", p.Status)
	}

	in := makePacket(USB_TOKEN_IN, 0, make([]byte, 64))
	dev.HandlePacket(in)
	if string(in.Data[:in.ActualLength]) != "hello usb" {
		t.Fatalf("data stage %q", in.Data[:in.ActualLength])
	}

	// Unknown request stalls per the script.
	p = setupPacket(0x80, USB_REQ_GET_STATUS, 0, 0, 2)
	dev.HandlePacket(p)
	if p.Status != USB_RET_STALL {
		t.Fatalf("status %d, expected STALL", p.Status)
	}
}

// TestLuaDeviceWLengthClamp: the data stage never exceeds the host's
// wLength.
func TestLuaDeviceWLengthClamp(t *testing.T) {
	dev := newLuaTestDevice(t, `
function setup(bmRequestType, bRequest, wValue, wIndex, wLength)
    return "0123456789"
end
`)

	p := setupPacket(0x80, USB_REQ_GET_DESCRIPTOR, 0, 0, 4)
	dev.HandlePacket(p)
	in := makePacket(USB_TOKEN_IN, 0, make([]byte, 64))
	dev.HandlePacket(in)
	if string(in.Data[:in.ActualLength]) != "0123" {
		t.Fatalf("data stage %q, expected wLength clamp", in.Data[:in.ActualLength])
	}
}

func TestLuaDeviceHandleIn(t *testing.T) {
	dev := newLuaTestDevice(t, `
function handle_in(ep, maxlen)
    if ep == 1 then
        return "ping"
    elseif ep == 2 then
        return "nak"
    end
    return "stall"
end
`)

	p := makePacket(USB_TOKEN_IN, 1, make([]byte, 64))
	dev.HandlePacket(p)
	if p.Status != USB_RET_SUCCESS || !bytes.Equal(p.Data[:4], []byte("ping")) {
		t.Fatalf("status %d data %q", p.Status, p.Data[:p.ActualLength])
	}

	p = makePacket(USB_TOKEN_IN, 2, make([]byte, 64))
	dev.HandlePacket(p)
	if p.Status != USB_RET_NAK {
		t.Fatalf("status %d, expected NAK", p.Status)
	}

	p = makePacket(USB_TOKEN_IN, 3, make([]byte, 64))
	dev.HandlePacket(p)
	if p.Status != USB_RET_STALL {
		t.Fatalf("status %d, expected STALL", p.Status)
	}
}

func TestLuaDeviceHandleOut(t *testing.T) {
	dev := newLuaTestDevice(t, `
received = ""
function handle_out(ep, data)
    if ep == 3 then
        return "stall"
    end
    received = received .. data
    return true
end
function handle_in(ep, maxlen)
    return received
end
`)

	p := makePacket(USB_TOKEN_OUT, 1, []byte("abc"))
	dev.HandlePacket(p)
	if p.Status != USB_RET_SUCCESS || p.ActualLength != 3 {
		t.Fatalf("OUT status %d length %d", p.Status, p.ActualLength)
	}

	in := makePacket(USB_TOKEN_IN, 1, make([]byte, 64))
	dev.HandlePacket(in)
	if string(in.Data[:in.ActualLength]) != "abc" {
		t.Fatalf("IN data %q, script state lost", in.Data[:in.ActualLength])
	}

	p = makePacket(USB_TOKEN_OUT, 3, []byte("x"))
	dev.HandlePacket(p)
	if p.Status != USB_RET_STALL || p.ActualLength != 0 {
		t.Fatalf("status %d length %d, expected STALL", p.Status, p.ActualLength)
	}
}

// TestLuaDeviceDefaults: a script with no handlers NAKs IN, acks OUT
// and stalls unknown control requests.
func TestLuaDeviceDefaults(t *testing.T) {
	dev := newLuaTestDevice(t, ``)

	p := makePacket(USB_TOKEN_IN, 1, make([]byte, 64))
	dev.HandlePacket(p)
	if p.Status != USB_RET_NAK {
		t.Fatalf("IN status %d, expected NAK", p.Status)
	}

	p = makePacket(USB_TOKEN_OUT, 1, []byte{1, 2})
	dev.HandlePacket(p)
	if p.Status != USB_RET_SUCCESS {
		t.Fatalf("OUT status %d, expected SUCCESS", p.Status)
	}

	p = setupPacket(0x80, USB_REQ_GET_DESCRIPTOR, 0x0100, 0, 18)
	dev.HandlePacket(p)
	if p.Status != USB_RET_STALL {
		t.Fatalf("SETUP status %d, expected STALL", p.Status)
	}
}

func TestLuaDeviceResetHook(t *testing.T) {
	dev := newLuaTestDevice(t, `
resets = 0
function reset()
    resets = resets + 1
end
function handle_in(ep, maxlen)
    return tostring(resets)
end
`)

	dev.HandleReset()
	dev.HandleReset()

	p := makePacket(USB_TOKEN_IN, 1, make([]byte, 64))
	dev.HandlePacket(p)
	if string(p.Data[:p.ActualLength]) != "2" {
		t.Fatalf("script saw %q resets, expected 2", p.Data[:p.ActualLength])
	}
}

// TestLuaDeviceScriptError: a runtime error in a handler degrades to
// the default answer instead of wedging the bus.
func TestLuaDeviceScriptError(t *testing.T) {
	dev := newLuaTestDevice(t, `
function handle_in(ep, maxlen)
    error("boom")
end
`)

	p := makePacket(USB_TOKEN_IN, 1, make([]byte, 64))
	dev.HandlePacket(p)
	if p.Status != USB_RET_NAK {
		t.Fatalf("status %d, expected NAK fallback on script error", p.Status)
	}
}

// TestLuaDeviceOnRootPort wires the scripted device into the controller
// and runs a transfer end to end.
func TestLuaDeviceOnRootPort(t *testing.T) {
	chip, bus, _ := newTestChip(t)
	dev := newLuaTestDevice(t, `
function handle_in(ep, maxlen)
    return "lua!"
end
`)
	if err := chip.Attach(dev); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	enableRootPort(t, chip)

	startChannel(chip, 0,
		hostChar(0, 1, true, USB_ENDPOINT_XFER_BULK, 64),
		hostTsiz(TSIZ_SC_MC_PID_DATA0, 1, 64),
		0x2000)

	if chip.HandleRead(HCINT(0))&HCINTMSK_XFERCOMPL == 0 {
		t.Fatal("transfer did not complete")
	}
	buf := make([]byte, 4)
	if err := bus.ReadBytes(0x2000, buf); err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	if string(buf) != "lua!" {
		t.Fatalf("guest memory %q", buf)
	}
}
