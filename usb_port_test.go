package main

import "testing"

func TestPortResetPropagatesOnce(t *testing.T) {
	chip, _, _ := newTestChip(t)
	dev := newScriptedDevice()
	if err := chip.Attach(dev); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}

	enableRootPort(t, chip)
	if dev.resets != 1 {
		t.Fatalf("device saw %d resets, expected 1", dev.resets)
	}

	hprt0 := chip.HandleRead(HPRT0)
	if hprt0&HPRT0_ENA == 0 || hprt0&HPRT0_ENACHG == 0 {
		t.Fatalf("HPRT0 = 0x%08X, enable bits missing after reset", hprt0)
	}
	// Reset completion supersedes the stale connect detector.
	if hprt0&HPRT0_CONNDET != 0 {
		t.Fatalf("HPRT0 = 0x%08X, connect detect not suppressed", hprt0)
	}
}

func TestPortResetWithoutDeviceDoesNotEnable(t *testing.T) {
	chip, _, _ := newTestChip(t)

	chip.HandleWrite(HPRT0, HPRT0_PWR|HPRT0_RST)
	chip.HandleWrite(HPRT0, HPRT0_PWR)
	if chip.HandleRead(HPRT0)&HPRT0_ENA != 0 {
		t.Fatal("empty port enabled after reset release")
	}
}

func TestPortSpeedReporting(t *testing.T) {
	cases := []struct {
		speed int
		want  uint32
	}{
		{USB_SPEED_LOW, HPRT0_SPD_LOW_SPEED},
		{USB_SPEED_FULL, HPRT0_SPD_FULL_SPEED},
		{USB_SPEED_HIGH, HPRT0_SPD_HIGH_SPEED},
	}
	for _, tc := range cases {
		chip, _, _ := newTestChip(t)
		dev := newScriptedDevice()
		dev.speed = tc.speed
		if err := chip.Attach(dev); err != nil {
			t.Fatalf("Attach failed: %v", err)
		}
		got := (chip.HandleRead(HPRT0) & HPRT0_SPD_MASK) >> HPRT0_SPD_SHIFT
		if got != tc.want {
			t.Fatalf("speed %d reported as %d, expected %d", tc.speed, got, tc.want)
		}
	}
}

// TestUSB1PortDowngradesHighSpeed: a USB 1.1 controller never reports a
// high-speed link.
func TestUSB1PortDowngradesHighSpeed(t *testing.T) {
	bus := NewMachineBus()
	clock := NewVirtualClock()
	chip, err := NewUSBChip(bus, clock, USBChipConfig{USBVersion: 1})
	if err != nil {
		t.Fatalf("NewUSBChip failed: %v", err)
	}

	if err := chip.Attach(newScriptedDevice()); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	got := (chip.HandleRead(HPRT0) & HPRT0_SPD_MASK) >> HPRT0_SPD_SHIFT
	if got != HPRT0_SPD_FULL_SPEED {
		t.Fatalf("speed field %d, expected full-speed downgrade", got)
	}
}

func TestPortAttachSignals(t *testing.T) {
	chip, _, _ := newTestChip(t)
	if err := chip.Attach(newScriptedDevice()); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}

	if chip.HandleRead(GOTGCTL)&GOTGCTL_ASESVLD == 0 {
		t.Fatal("A-session not valid after attach")
	}
	gintsts := chip.HandleRead(GINTSTS)
	if gintsts&GINTSTS_PRTINT == 0 {
		t.Fatal("port interrupt not raised on attach")
	}
	if gintsts&GINTSTS_CURMODE_HOST == 0 {
		t.Fatal("controller not reporting host mode")
	}
}

func TestPortDetachSignals(t *testing.T) {
	chip, _, _ := newTestChip(t)
	if err := chip.Attach(newScriptedDevice()); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	enableRootPort(t, chip)

	chip.Detach()

	hprt0 := chip.HandleRead(HPRT0)
	if hprt0&(HPRT0_CONNSTS|HPRT0_ENA) != 0 {
		t.Fatalf("HPRT0 = 0x%08X after detach", hprt0)
	}
	if hprt0&(HPRT0_CONNDET|HPRT0_ENACHG) != HPRT0_CONNDET|HPRT0_ENACHG {
		t.Fatalf("HPRT0 = 0x%08X, change detectors missing", hprt0)
	}
	if chip.HandleRead(GOTGCTL)&GOTGCTL_ASESVLD != 0 {
		t.Fatal("A-session still valid after detach")
	}
}

func TestDetachCancelsInflight(t *testing.T) {
	chip, _, _ := newTestChip(t)
	dev := newScriptedDevice()
	dev.handle = func(p *USBPacket) { p.Status = USB_RET_ASYNC }
	if err := chip.Attach(dev); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	enableRootPort(t, chip)

	startChannel(chip, 0,
		hostChar(0, 1, true, USB_ENDPOINT_XFER_BULK, 64),
		hostTsiz(TSIZ_SC_MC_PID_DATA0, 1, 64),
		0x2000)
	if len(dev.pending) != 1 {
		t.Fatalf("%d packets parked, expected 1", len(dev.pending))
	}

	chip.Detach()
	if len(dev.canceled) != 1 {
		t.Fatalf("%d packets cancelled on detach, expected 1", len(dev.canceled))
	}
	if len(dev.pending) != 0 {
		t.Fatal("packet still parked after detach")
	}
}

func TestWakeupRaisesResume(t *testing.T) {
	chip, _, _ := newTestChip(t)
	if err := chip.Attach(newScriptedDevice()); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	enableRootPort(t, chip)

	chip.HandleWrite(HPRT0, HPRT0_PWR|HPRT0_SUSP)
	if chip.HandleRead(HPRT0)&HPRT0_SUSP == 0 {
		t.Fatal("port did not suspend")
	}

	chip.Wakeup()
	if chip.HandleRead(HPRT0)&HPRT0_RES == 0 {
		t.Fatal("resume signalling not set by wakeup")
	}
	if chip.HandleRead(GINTSTS)&GINTSTS_PRTINT == 0 {
		t.Fatal("port interrupt not raised by wakeup")
	}
}

func TestReattachAfterDetach(t *testing.T) {
	chip, _, _ := newTestChip(t)
	if err := chip.Attach(newScriptedDevice()); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	chip.Detach()

	if err := chip.Attach(newScriptedDevice()); err != nil {
		t.Fatalf("re-attach failed: %v", err)
	}
	if chip.HandleRead(HPRT0)&HPRT0_CONNSTS == 0 {
		t.Fatal("port not connected after re-attach")
	}
}
