// usb_monitor.go - Interactive monitor console for the USB controller

/*
 ██▓ ███▄    █ ▄▄▄█████▓ █    ██  ██▓▄▄▄█████▓ ██▓ ▒█████   ███▄    █    ▓█████  ███▄    █   ▄████  ██▓ ███▄    █ ▓█████
▓██▒ ██ ▀█   █ ▓  ██▒ ▓▒ ██  ▓██▒▓██▒▓  ██▒ ▓▒▓██▒▒██▒  ██▒ ██ ▀█   █    ▓█   ▀  ██ ▀█   █  ██▒ ▀█▒▓██▒ ██ ▀█   █ ▓█   ▀
▒██▒▓██  ▀█ ██▒▒ ▓██░ ▒░▓██  ▒██░▒██▒▒ ▓██░ ▒░▒██▒▒██░  ██▒▓██  ▀█ ██▒   ▒███   ▓██  ▀█ ██▒▒██░▄▄▄░▒██▒▓██  ▀█ ██▒▒███
░██░▓██▒  ▐▌██▒░ ▓██▓ ░ ▓▓█  ░██░░██░░ ▓██▓ ░ ░██░▒██   ██░▓██▒  ▐▌██▒   ▒▓█  ▄ ▓██▒  ▐▌██▒░▓█  ██▓░██░▓██▒  ▐▌██▒▒▓█  ▄
░██░▒██░   ▓██░  ▒██▒ ░ ▒▒█████▓ ░██░  ▒██▒ ░ ░██░░ ████▓▒░▒██░   ▓██░   ░▒████▒▒██░   ▓██░░▒▓███▀▒░██░▒██░   ▓██░░▒████▒
░▓  ░ ▒░   ▒ ▒   ▒ ░░   ░▒▓▒ ▒ ▒ ░▓    ▒ ░░   ░▓  ░ ▒░▒░▒░ ░ ▒░   ▒ ▒    ░░ ▒░ ░░ ▒░   ▒ ▒  ░▒   ▒ ░▓  ░ ▒░   ▒ ▒ ░░ ▒░ ░
 ▒ ░░ ░░   ░ ▒░    ░    ░░▒░ ░ ░  ▒ ░    ░     ▒ ░  ░ ▒ ▒░ ░ ░░   ░ ▒░    ░ ░  ░░ ░░   ░ ▒░  ░   ░  ▒ ░░ ░░   ░ ▒░ ░ ░  ░
 ▒ ░   ░   ░ ░   ░       ░░░ ░ ░  ▒ ░  ░       ▒ ░░ ░ ░ ▒     ░   ░ ░       ░      ░   ░ ░ ░ ░   ░  ▒ ░   ░   ░ ░    ░
 ░           ░             ░      ░            ░      ░ ░           ░       ░  ░         ░           ░    ░  ░

(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionUSB
Buy me a coffee: https://ko-fi.com/intuition/tip

License: GPLv3 or later
*/

/*
usb_monitor.go - Controller Monitor

An interactive console for poking at a live controller: dump register
banks, decode the port and interrupt state, issue raw MMIO reads and
writes, step the frame clock, and save or load controller snapshots.
Register dumps peek the banks directly without the read side effects a
real bus access has (GRSTCTL command bits self-clear on read), so
inspecting state never perturbs it; the explicit read/write commands go
through the MMIO decoder and are the real thing.

Only instantiated in main.go for interactive use, never in tests.
*/

package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/term"
)

type USBMonitor struct {
	chip  *USBChip
	clock *VirtualClock

	fd       int
	oldState *term.State
	console  *term.Terminal
}

// stdinStdout adapts the process terminal to term.Terminal's ReadWriter.
type stdinStdout struct{}

func (stdinStdout) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (stdinStdout) Write(p []byte) (int, error) { return os.Stdout.Write(p) }

func NewUSBMonitor(chip *USBChip, clock *VirtualClock) *USBMonitor {
	return &USBMonitor{chip: chip, clock: clock}
}

// Run takes over the terminal until the user quits.
func (m *USBMonitor) Run() error {
	m.fd = int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(m.fd)
	if err != nil {
		return fmt.Errorf("usb monitor: failed to set raw mode: %w", err)
	}
	m.oldState = oldState
	defer func() {
		_ = term.Restore(m.fd, m.oldState)
	}()

	m.console = term.NewTerminal(stdinStdout{}, "usb> ")
	m.printf("IntuitionUSB monitor. Type 'help' for commands.")

	for {
		line, err := m.console.ReadLine()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if !m.execute(line) {
			return nil
		}
	}
}

func (m *USBMonitor) printf(format string, args ...interface{}) {
	fmt.Fprintf(m.console, format+"\r\n", args...)
}

// execute runs one command line; returns false to exit the monitor.
func (m *USBMonitor) execute(input string) bool {
	input = strings.TrimSpace(input)
	if input == "" {
		return true
	}
	parts := strings.Fields(input)
	name := strings.ToLower(parts[0])
	args := parts[1:]

	switch name {
	case "regs", "r":
		m.cmdGlobalRegs()
	case "host", "h":
		m.cmdHostRegs()
	case "chan", "c":
		m.cmdChannel(args)
	case "dev", "d":
		m.cmdDeviceRegs()
	case "ep":
		m.cmdEndpoint(args)
	case "port", "p":
		m.cmdPort()
	case "irq", "i":
		m.cmdIRQ()
	case "frame", "f":
		m.cmdFrame()
	case "read":
		m.cmdRead(args)
	case "write", "w":
		m.cmdWrite(args)
	case "tick", "t":
		m.cmdTick(args)
	case "save":
		m.cmdSave(args)
	case "load":
		m.cmdLoad(args)
	case "reset":
		m.chip.Reset()
		m.printf("core reset")
	case "help", "?":
		m.cmdHelp()
	case "quit", "q", "exit", "x":
		return false
	default:
		m.printf("unknown command %q, try 'help'", name)
	}
	return true
}

// parseHex accepts $hex, 0xhex and bare hex, same as the classic
// machine monitors.
func parseHex(s string) (uint32, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	return uint32(v), err == nil
}

func (m *USBMonitor) cmdGlobalRegs() {
	names := []struct {
		name string
		off  uint32
	}{
		{"GOTGCTL", GOTGCTL}, {"GOTGINT", GOTGINT}, {"GAHBCFG", GAHBCFG},
		{"GUSBCFG", GUSBCFG}, {"GRSTCTL", GRSTCTL}, {"GINTSTS", GINTSTS},
		{"GINTMSK", GINTMSK}, {"GRXFSIZ", GRXFSIZ}, {"GNPTXFSIZ", GNPTXFSIZ},
		{"GSNPSID", GSNPSID}, {"GHWCFG1", GHWCFG1}, {"GHWCFG2", GHWCFG2},
		{"GHWCFG3", GHWCFG3}, {"GHWCFG4", GHWCFG4},
	}
	for _, r := range names {
		m.printf("%-10s %08x", r.name, m.chip.PeekRegister(r.off))
	}
}

func (m *USBMonitor) cmdHostRegs() {
	names := []struct {
		name string
		off  uint32
	}{
		{"HCFG", HCFG}, {"HFIR", HFIR}, {"HFNUM", HFNUM},
		{"HPTXSTS", HPTXSTS}, {"HAINT", HAINT}, {"HAINTMSK", HAINTMSK},
		{"HPRT0", HPRT0},
	}
	for _, r := range names {
		m.printf("%-10s %08x", r.name, m.chip.PeekRegister(r.off))
	}
}

func (m *USBMonitor) cmdChannel(args []string) {
	if len(args) != 1 {
		m.printf("usage: chan <0-%d>", DWC2_NB_CHAN-1)
		return
	}
	ch, err := strconv.Atoi(args[0])
	if err != nil || ch < 0 || ch >= DWC2_NB_CHAN {
		m.printf("bad channel %q", args[0])
		return
	}
	m.printf("HCCHAR%-4d %08x", ch, m.chip.PeekRegister(HCCHAR(ch)))
	m.printf("HCSPLT%-4d %08x", ch, m.chip.PeekRegister(HCSPLT(ch)))
	m.printf("HCINT%-5d %08x", ch, m.chip.PeekRegister(HCINT(ch)))
	m.printf("HCINTMSK%-2d %08x", ch, m.chip.PeekRegister(HCINTMSK(ch)))
	m.printf("HCTSIZ%-4d %08x", ch, m.chip.PeekRegister(HCTSIZ(ch)))
	m.printf("HCDMA%-5d %08x", ch, m.chip.PeekRegister(HCDMA(ch)))
}

func (m *USBMonitor) cmdDeviceRegs() {
	names := []struct {
		name string
		off  uint32
	}{
		{"DCFG", DCFG}, {"DCTL", DCTL}, {"DSTS", DSTS},
		{"DIEPMSK", DIEPMSK}, {"DOEPMSK", DOEPMSK},
		{"DAINT", DAINT}, {"DAINTMSK", DAINTMSK},
	}
	for _, r := range names {
		m.printf("%-10s %08x", r.name, m.chip.PeekRegister(r.off))
	}
	m.printf("devaddr    %d", m.chip.DeviceAddress())
}

func (m *USBMonitor) cmdEndpoint(args []string) {
	if len(args) != 1 {
		m.printf("usage: ep <0-%d>", DWC2_NB_EP-1)
		return
	}
	ep, err := strconv.Atoi(args[0])
	if err != nil || ep < 0 || ep >= DWC2_NB_EP {
		m.printf("bad endpoint %q", args[0])
		return
	}
	m.printf("DIEPCTL%-3d %08x", ep, m.chip.PeekRegister(DIEPCTL(ep)))
	m.printf("DIEPINT%-3d %08x", ep, m.chip.PeekRegister(DIEPINT(ep)))
	m.printf("DIEPTSIZ%-2d %08x", ep, m.chip.PeekRegister(DIEPTSIZ(ep)))
	m.printf("DIEPDMA%-3d %08x", ep, m.chip.PeekRegister(DIEPDMA(ep)))
	m.printf("DOEPCTL%-3d %08x", ep, m.chip.PeekRegister(DOEPCTL(ep)))
	m.printf("DOEPINT%-3d %08x", ep, m.chip.PeekRegister(DOEPINT(ep)))
	m.printf("DOEPTSIZ%-2d %08x", ep, m.chip.PeekRegister(DOEPTSIZ(ep)))
	m.printf("DOEPDMA%-3d %08x", ep, m.chip.PeekRegister(DOEPDMA(ep)))
}

func (m *USBMonitor) cmdPort() {
	hprt0 := m.chip.PeekRegister(HPRT0)
	m.printf("HPRT0      %08x", hprt0)

	var flags []string
	for _, f := range []struct {
		bit  uint32
		name string
	}{
		{HPRT0_CONNSTS, "connected"}, {HPRT0_CONNDET, "connect-detected"},
		{HPRT0_ENA, "enabled"}, {HPRT0_ENACHG, "enable-changed"},
		{HPRT0_OVRCURRACT, "overcurrent"}, {HPRT0_RES, "resume"},
		{HPRT0_SUSP, "suspended"}, {HPRT0_RST, "in-reset"},
		{HPRT0_PWR, "powered"},
	} {
		if hprt0&f.bit != 0 {
			flags = append(flags, f.name)
		}
	}
	if len(flags) == 0 {
		flags = append(flags, "idle")
	}
	m.printf("flags      %s", strings.Join(flags, " "))

	speed := "high"
	switch (hprt0 & HPRT0_SPD_MASK) >> HPRT0_SPD_SHIFT {
	case HPRT0_SPD_FULL_SPEED:
		speed = "full"
	case HPRT0_SPD_LOW_SPEED:
		speed = "low"
	}
	m.printf("speed      %s", speed)
}

func (m *USBMonitor) cmdIRQ() {
	m.printf("line       %d", m.chip.IRQLevel())
	m.printf("GINTSTS    %08x", m.chip.PeekRegister(GINTSTS))
	m.printf("GINTMSK    %08x", m.chip.PeekRegister(GINTMSK))
	m.printf("HAINT      %08x", m.chip.PeekRegister(HAINT))
	m.printf("DAINT      %08x", m.chip.PeekRegister(DAINT))
}

func (m *USBMonitor) cmdFrame() {
	m.printf("frame      %d", m.chip.FrameNumber())
	m.printf("HFNUM      %08x", m.chip.PeekRegister(HFNUM))
	m.printf("clock      %d ns", m.clock.Now())
}

func (m *USBMonitor) cmdRead(args []string) {
	if len(args) != 1 {
		m.printf("usage: read <offset>")
		return
	}
	off, ok := parseHex(args[0])
	if !ok || off >= DWC2_MMIO_SIZE {
		m.printf("bad offset %q", args[0])
		return
	}
	m.printf("[%04x] -> %08x", off, m.chip.HandleRead(off))
}

func (m *USBMonitor) cmdWrite(args []string) {
	if len(args) != 2 {
		m.printf("usage: write <offset> <value>")
		return
	}
	off, ok := parseHex(args[0])
	if !ok || off >= DWC2_MMIO_SIZE {
		m.printf("bad offset %q", args[0])
		return
	}
	val, ok := parseHex(args[1])
	if !ok {
		m.printf("bad value %q", args[1])
		return
	}
	m.chip.HandleWrite(off, val)
	m.printf("[%04x] <- %08x", off, val)
}

func (m *USBMonitor) cmdTick(args []string) {
	ns := int64(time.Millisecond)
	if len(args) == 1 {
		v, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || v <= 0 {
			m.printf("bad duration %q (microseconds)", args[0])
			return
		}
		ns = v * 1000
	}
	m.clock.Advance(ns)
	m.printf("clock now %d ns, frame %d", m.clock.Now(), m.chip.FrameNumber())
}

func (m *USBMonitor) cmdSave(args []string) {
	if len(args) != 1 {
		m.printf("usage: save <file>")
		return
	}
	f, err := os.Create(args[0])
	if err != nil {
		m.printf("save: %v", err)
		return
	}
	defer f.Close()
	if err := m.chip.SaveState(f); err != nil {
		m.printf("save: %v", err)
		return
	}
	m.printf("saved to %s", args[0])
}

func (m *USBMonitor) cmdLoad(args []string) {
	if len(args) != 1 {
		m.printf("usage: load <file>")
		return
	}
	f, err := os.Open(args[0])
	if err != nil {
		m.printf("load: %v", err)
		return
	}
	defer f.Close()
	if err := m.chip.LoadState(f); err != nil {
		m.printf("load: %v", err)
		return
	}
	m.printf("loaded from %s", args[0])
}

func (m *USBMonitor) cmdHelp() {
	m.printf("regs              dump global registers")
	m.printf("host              dump host-mode registers")
	m.printf("chan <n>          dump host channel registers")
	m.printf("dev               dump device-mode registers")
	m.printf("ep <n>            dump device endpoint registers")
	m.printf("port              decode root port state")
	m.printf("irq               interrupt line and status tree")
	m.printf("frame             frame counter and clock")
	m.printf("read <off>        MMIO read (with side effects)")
	m.printf("write <off> <val> MMIO write")
	m.printf("tick [us]         advance the virtual clock (default 1000)")
	m.printf("save <file>       snapshot controller state")
	m.printf("load <file>       restore controller state")
	m.printf("reset             core soft reset")
	m.printf("quit              leave the monitor")
}
