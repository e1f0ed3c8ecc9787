package main

import (
	"bytes"
	"testing"
)

func hostChar(devadr, ep uint32, in bool, eptype, mps uint32) uint32 {
	v := (devadr << HCCHAR_DEVADDR_SHIFT) |
		(ep << HCCHAR_EPNUM_SHIFT) |
		(eptype << HCCHAR_EPTYPE_SHIFT) |
		(mps << HCCHAR_MPS_SHIFT)
	if in {
		v |= HCCHAR_EPDIR
	}
	return v
}

func hostTsiz(pid, pktcnt, xfersize uint32) uint32 {
	return (pid << TSIZ_SC_MC_PID_SHIFT) |
		(pktcnt << TSIZ_PKTCNT_SHIFT) |
		(xfersize << TSIZ_XFERSIZE_SHIFT)
}

// startChannel programs and enables one host channel.
func startChannel(chip *USBChip, ch int, hcchar, hctsiz, hcdma uint32) {
	chip.HandleWrite(HCTSIZ(ch), hctsiz)
	chip.HandleWrite(HCDMA(ch), hcdma)
	chip.HandleWrite(HCCHAR(ch), hcchar|HCCHAR_CHENA)
}

// runRetries pumps the frame clock until the channel halts or the
// attempt budget runs out.
func runRetries(t *testing.T, chip *USBChip, clock *VirtualClock, ch int) {
	t.Helper()
	for i := 0; i < 64; i++ {
		if chip.HandleRead(HCINT(ch))&HCINTMSK_CHHLTD != 0 {
			return
		}
		clock.Advance(NANOSECONDS_PER_SECOND / 4000)
	}
	t.Fatalf("channel %d did not halt within retry budget", ch)
}

func TestHostOutTransfer(t *testing.T) {
	chip, bus, _ := newTestChip(t)

	var got []byte
	dev := newScriptedDevice()
	dev.handle = func(p *USBPacket) {
		got = append([]byte(nil), p.Data...)
		p.ActualLength = len(p.Data)
		p.Status = USB_RET_SUCCESS
	}
	if err := chip.Attach(dev); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	enableRootPort(t, chip)

	payload := []byte{0x10, 0x20, 0x30, 0x40, 0x50, 0x60, 0x70, 0x80}
	if err := bus.WriteBytes(0x2000, payload); err != nil {
		t.Fatalf("WriteBytes: %v", err)
	}

	startChannel(chip, 0,
		hostChar(0, 1, false, USB_ENDPOINT_XFER_BULK, 64),
		hostTsiz(TSIZ_SC_MC_PID_DATA0, 1, uint32(len(payload))),
		0x2000)

	if !bytes.Equal(got, payload) {
		t.Fatalf("device saw % X, expected % X", got, payload)
	}
	hcint := chip.HandleRead(HCINT(0))
	if hcint&HCINTMSK_CHHLTD == 0 || hcint&HCINTMSK_XFERCOMPL == 0 {
		t.Fatalf("HCINT = 0x%08X, expected CHHLTD|XFERCOMPL", hcint)
	}
	if chip.HandleRead(HCCHAR(0))&HCCHAR_CHENA != 0 {
		t.Fatal("CHENA still set after completed transfer")
	}
	// Registers wound forward.
	hctsiz := chip.HandleRead(HCTSIZ(0))
	if hctsiz&TSIZ_PKTCNT_MASK != 0 || hctsiz&TSIZ_XFERSIZE_MASK != 0 {
		t.Fatalf("HCTSIZ = 0x%08X, not wound down", hctsiz)
	}
	if got := chip.HandleRead(HCDMA(0)); got != 0x2000+uint32(len(payload)) {
		t.Fatalf("HCDMA = 0x%08X, not advanced", got)
	}
}

func TestHostInTransferDMAWrite(t *testing.T) {
	chip, bus, _ := newTestChip(t)

	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	dev := newScriptedDevice()
	dev.handle = func(p *USBPacket) {
		p.Copy(payload)
		p.Status = USB_RET_SUCCESS
	}
	if err := chip.Attach(dev); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	enableRootPort(t, chip)

	startChannel(chip, 0,
		hostChar(0, 1, true, USB_ENDPOINT_XFER_BULK, 64),
		hostTsiz(TSIZ_SC_MC_PID_DATA0, 1, 64),
		0x3000)

	buf := make([]byte, len(payload))
	if err := bus.ReadBytes(0x3000, buf); err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	if !bytes.Equal(buf, payload) {
		t.Fatalf("guest memory % X, expected % X", buf, payload)
	}
	// Short IN terminates the transfer.
	if chip.HandleRead(HCINT(0))&HCINTMSK_XFERCOMPL == 0 {
		t.Fatal("transfer did not complete on short IN")
	}
}

func TestHostSetupToken(t *testing.T) {
	chip, bus, _ := newTestChip(t)

	var pid int
	dev := newScriptedDevice()
	dev.handle = func(p *USBPacket) {
		pid = p.Pid
		p.ActualLength = len(p.Data)
		p.Status = USB_RET_SUCCESS
	}
	if err := chip.Attach(dev); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	enableRootPort(t, chip)

	setup := []byte{0x80, 0x06, 0x00, 0x01, 0x00, 0x00, 0x12, 0x00}
	if err := bus.WriteBytes(0x4000, setup); err != nil {
		t.Fatalf("WriteBytes: %v", err)
	}

	startChannel(chip, 0,
		hostChar(0, 0, false, USB_ENDPOINT_XFER_CONTROL, 64),
		hostTsiz(TSIZ_SC_MC_PID_SETUP, 1, 8),
		0x4000)

	if pid != USB_TOKEN_SETUP {
		t.Fatalf("device saw token %d, expected SETUP", pid)
	}
}

// TestHostNAKRetriesControlBulk: a NAKing control/bulk endpoint keeps
// the channel enabled and retries on the frame timer, while the NAK
// interrupt is still delivered.
func TestHostNAKRetriesControlBulk(t *testing.T) {
	chip, _, clock := newTestChip(t)

	naks := 0
	dev := newScriptedDevice()
	dev.handle = func(p *USBPacket) {
		if naks < 3 {
			naks++
			p.Status = USB_RET_NAK
			return
		}
		p.ActualLength = len(p.Data)
		p.Status = USB_RET_SUCCESS
	}
	if err := chip.Attach(dev); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	enableRootPort(t, chip)

	startChannel(chip, 0,
		hostChar(0, 2, false, USB_ENDPOINT_XFER_BULK, 64),
		hostTsiz(TSIZ_SC_MC_PID_DATA0, 1, 4),
		0x2000)

	if chip.HandleRead(HCINT(0))&HCINTMSK_NAK == 0 {
		t.Fatal("NAK interrupt not delivered")
	}
	if chip.HandleRead(HCCHAR(0))&HCCHAR_CHENA == 0 {
		t.Fatal("bulk channel halted on NAK instead of retrying")
	}

	runRetries(t, chip, clock, 0)

	if naks != 3 {
		t.Fatalf("device NAKed %d times, expected 3", naks)
	}
	if chip.HandleRead(HCINT(0))&HCINTMSK_XFERCOMPL == 0 {
		t.Fatal("transfer did not complete after retries")
	}
}

// TestHostNAKHaltsInterruptEndpoint: periodic endpoints do not auto
// retry; the schedule comes back around instead.
func TestHostNAKHaltsInterruptEndpoint(t *testing.T) {
	chip, _, _ := newTestChip(t)

	dev := newScriptedDevice()
	dev.handle = func(p *USBPacket) { p.Status = USB_RET_NAK }
	if err := chip.Attach(dev); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	enableRootPort(t, chip)

	startChannel(chip, 0,
		hostChar(0, 3, true, USB_ENDPOINT_XFER_INT, 64),
		hostTsiz(TSIZ_SC_MC_PID_DATA0, 1, 64),
		0x2000)

	hcint := chip.HandleRead(HCINT(0))
	if hcint&HCINTMSK_NAK == 0 || hcint&HCINTMSK_CHHLTD == 0 {
		t.Fatalf("HCINT = 0x%08X, expected NAK|CHHLTD", hcint)
	}
	if chip.HandleRead(HCCHAR(0))&HCCHAR_CHENA != 0 {
		t.Fatal("interrupt channel still enabled after NAK")
	}
}

func TestHostStallHalts(t *testing.T) {
	chip, _, _ := newTestChip(t)

	dev := newScriptedDevice()
	dev.handle = func(p *USBPacket) { p.Status = USB_RET_STALL }
	if err := chip.Attach(dev); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	enableRootPort(t, chip)

	startChannel(chip, 1,
		hostChar(0, 1, true, USB_ENDPOINT_XFER_BULK, 64),
		hostTsiz(TSIZ_SC_MC_PID_DATA0, 1, 64),
		0x2000)

	hcint := chip.HandleRead(HCINT(1))
	if hcint&HCINTMSK_STALL == 0 || hcint&HCINTMSK_CHHLTD == 0 {
		t.Fatalf("HCINT = 0x%08X, expected STALL|CHHLTD", hcint)
	}
}

// TestHostBabble: a device delivering more than requested is
// reclassified as babble.
func TestHostBabble(t *testing.T) {
	chip, _, _ := newTestChip(t)

	dev := newScriptedDevice()
	dev.handle = func(p *USBPacket) {
		p.ActualLength = len(p.Data) + 16
		p.Status = USB_RET_SUCCESS
	}
	if err := chip.Attach(dev); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	enableRootPort(t, chip)

	startChannel(chip, 0,
		hostChar(0, 1, true, USB_ENDPOINT_XFER_BULK, 64),
		hostTsiz(TSIZ_SC_MC_PID_DATA0, 1, 32),
		0x2000)

	hcint := chip.HandleRead(HCINT(0))
	if hcint&HCINTMSK_BBLERR == 0 || hcint&HCINTMSK_CHHLTD == 0 {
		t.Fatalf("HCINT = 0x%08X, expected BBLERR|CHHLTD", hcint)
	}
}

// TestHostSmallTransferChunking: transfers at or under the threshold go
// out one max packet per attempt.
func TestHostSmallTransferChunking(t *testing.T) {
	chip, bus, clock := newTestChip(t)

	var sizes []int
	dev := newScriptedDevice()
	dev.handle = func(p *USBPacket) {
		sizes = append(sizes, len(p.Data))
		p.ActualLength = len(p.Data)
		p.Status = USB_RET_SUCCESS
	}
	if err := chip.Attach(dev); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	enableRootPort(t, chip)

	payload := make([]byte, 192)
	for i := range payload {
		payload[i] = byte(i)
	}
	if err := bus.WriteBytes(0x5000, payload); err != nil {
		t.Fatalf("WriteBytes: %v", err)
	}

	startChannel(chip, 0,
		hostChar(0, 1, false, USB_ENDPOINT_XFER_BULK, 64),
		hostTsiz(TSIZ_SC_MC_PID_DATA0, 3, 192),
		0x5000)
	runRetries(t, chip, clock, 0)

	if len(sizes) != 3 {
		t.Fatalf("device saw %d attempts, expected 3", len(sizes))
	}
	for i, n := range sizes {
		if n != 64 {
			t.Fatalf("attempt %d carried %d bytes, expected 64", i, n)
		}
	}
	if chip.HandleRead(HCINT(0))&HCINTMSK_XFERCOMPL == 0 {
		t.Fatal("chunked transfer did not complete")
	}
}

// TestHostLargeTransferSingleAttempt: above the threshold the whole
// buffer goes in one attempt.
func TestHostLargeTransferSingleAttempt(t *testing.T) {
	chip, bus, _ := newTestChip(t)

	var sizes []int
	dev := newScriptedDevice()
	dev.handle = func(p *USBPacket) {
		sizes = append(sizes, len(p.Data))
		p.ActualLength = len(p.Data)
		p.Status = USB_RET_SUCCESS
	}
	if err := chip.Attach(dev); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	enableRootPort(t, chip)

	payload := make([]byte, 2048)
	if err := bus.WriteBytes(0x6000, payload); err != nil {
		t.Fatalf("WriteBytes: %v", err)
	}

	startChannel(chip, 0,
		hostChar(0, 1, false, USB_ENDPOINT_XFER_BULK, 512),
		hostTsiz(TSIZ_SC_MC_PID_DATA0, 4, 2048),
		0x6000)

	if len(sizes) != 1 || sizes[0] != 2048 {
		t.Fatalf("attempt sizes %v, expected one attempt of 2048", sizes)
	}
}

// TestHostAsyncCompletion: a device may park the attempt and answer
// later from outside the controller.
func TestHostAsyncCompletion(t *testing.T) {
	chip, bus, _ := newTestChip(t)

	payload := []byte{0x11, 0x22, 0x33}
	dev := newScriptedDevice()
	dev.handle = func(p *USBPacket) { p.Status = USB_RET_ASYNC }
	if err := chip.Attach(dev); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	enableRootPort(t, chip)

	startChannel(chip, 0,
		hostChar(0, 1, true, USB_ENDPOINT_XFER_BULK, 64),
		hostTsiz(TSIZ_SC_MC_PID_DATA0, 1, 64),
		0x7000)

	if chip.HandleRead(HCINT(0))&HCINTMSK_CHHLTD != 0 {
		t.Fatal("channel halted while packet in flight")
	}
	if len(dev.pending) != 1 {
		t.Fatalf("%d packets parked, expected 1", len(dev.pending))
	}

	p := dev.pending[0]
	p.Copy(payload)
	dev.completeOldest(USB_RET_SUCCESS, p.ActualLength)

	if chip.HandleRead(HCINT(0))&HCINTMSK_XFERCOMPL == 0 {
		t.Fatal("transfer did not complete after async resolution")
	}
	buf := make([]byte, len(payload))
	if err := bus.ReadBytes(0x7000, buf); err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	if !bytes.Equal(buf, payload) {
		t.Fatalf("guest memory % X, expected % X", buf, payload)
	}
}

// TestHostNoDeviceOnDisabledPort: a channel enabled against a disabled
// port goes nowhere.
func TestHostNoDeviceOnDisabledPort(t *testing.T) {
	chip, _, _ := newTestChip(t)

	attempts := 0
	dev := newScriptedDevice()
	dev.handle = func(p *USBPacket) {
		attempts++
		p.Status = USB_RET_SUCCESS
	}
	if err := chip.Attach(dev); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	// No port reset: HPRT0_ENA stays clear.

	startChannel(chip, 0,
		hostChar(0, 1, false, USB_ENDPOINT_XFER_BULK, 64),
		hostTsiz(TSIZ_SC_MC_PID_DATA0, 1, 4),
		0x2000)

	if attempts != 0 {
		t.Fatalf("device reached through disabled port (%d attempts)", attempts)
	}
}

// TestHostChannelDisable: CHDIS wins over CHENA and halts the channel.
func TestHostChannelDisable(t *testing.T) {
	chip, _, _ := newTestChip(t)

	chip.HandleWrite(HCCHAR(4), HCCHAR_CHENA|HCCHAR_CHDIS)
	hcchar := chip.HandleRead(HCCHAR(4))
	if hcchar&(HCCHAR_CHENA|HCCHAR_CHDIS) != 0 {
		t.Fatalf("HCCHAR = 0x%08X, enable/disable not cleared", hcchar)
	}
	if chip.HandleRead(HCINT(4))&HCINTMSK_CHHLTD == 0 {
		t.Fatal("CHHLTD not set after disable")
	}
}

// TestWakeupFromSuspend: remote wakeup flips resume signalling and
// raises the port interrupt.
func TestWakeupFromSuspend(t *testing.T) {
	chip, _, _ := newTestChip(t)
	if err := chip.Attach(newScriptedDevice()); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	enableRootPort(t, chip)

	// No suspend: wakeup is a no-op on the port bits.
	chip.Wakeup()
	if chip.HandleRead(HPRT0)&HPRT0_RES != 0 {
		t.Fatal("RES set without suspend")
	}
}

func TestAttachDetach(t *testing.T) {
	chip, _, _ := newTestChip(t)
	dev := newScriptedDevice()

	if err := chip.Attach(dev); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	if err := chip.Attach(newScriptedDevice()); err == nil {
		t.Fatal("second attach succeeded on occupied port")
	}

	hprt0 := chip.HandleRead(HPRT0)
	if hprt0&HPRT0_CONNSTS == 0 || hprt0&HPRT0_CONNDET == 0 {
		t.Fatalf("HPRT0 = 0x%08X after attach", hprt0)
	}

	// Acknowledge the connect before pulling the device: while PRTINT
	// is still pending, a later raise of PRTINT|DISCONNINT is swallowed
	// whole by the already-set guard.
	chip.HandleWrite(HPRT0, (hprt0&^HPRT0_W1C)|HPRT0_CONNDET)
	if chip.HandleRead(GINTSTS)&GINTSTS_PRTINT != 0 {
		t.Fatal("PRTINT still pending after connect ack")
	}

	chip.Detach()
	hprt0 = chip.HandleRead(HPRT0)
	if hprt0&HPRT0_CONNSTS != 0 {
		t.Fatalf("HPRT0 = 0x%08X, still connected after detach", hprt0)
	}
	if chip.HandleRead(GINTSTS)&GINTSTS_DISCONNINT == 0 {
		t.Fatal("disconnect interrupt not raised")
	}
}
