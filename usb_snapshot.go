// usb_snapshot.go - Controller state save and restore

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
usb_snapshot.go - Save and Restore

A snapshot captures everything a restored controller needs to continue
indistinguishably: every register bank, the per-channel transaction
contexts and their scratch buffers, the frame scheduler epoch and the
deadlines of both timers. The format is little-endian with a magic and
version word up front; restoring a snapshot with the wrong magic or an
unknown version fails without touching the controller.

A transaction that was pending at a device model when the snapshot was
taken cannot be captured, so on restore such channels are marked as
needing service and the attempt is simply replayed.
*/

package main

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	snapshotMagic   = 0x44574332 // "DWC2"
	snapshotVersion = 1
)

type packetSnapshot struct {
	Devadr       uint32
	Epnum        uint32
	Epdir        uint32
	Mps          uint32
	Pid          uint32
	Index        uint32
	Pcnt         uint32
	Len          uint32
	Async        int32
	Small        bool
	NeedsService bool
}

type chipSnapshot struct {
	Magic   uint32
	Version uint32

	Glbreg  [GLBREG_NWORDS]uint32
	Fszreg  [1]uint32
	Dfszreg [DWC2_NB_EP]uint32
	Hreg0   [HREG0_NWORDS]uint32
	Hreg1   [HREG1_NWORDS]uint32
	Dreg    [DREG_NWORDS]uint32
	Diepreg [DIEPREG_NWORDS]uint32
	Doepreg [DOEPREG_NWORDS]uint32
	Pcgreg  [PCGREG_NWORDS]uint32

	SofTime      int64
	UsbFrameTime int64
	UsbBitTime   int64
	UsbVersion   uint32
	FrameNumber  uint16
	Fi           uint16
	NextChan     uint16
	Working      bool
	Upstream     bool
	DevAddr      uint8

	EofArmed     bool
	EofDeadline  int64
	WorkArmed    bool
	WorkDeadline int64

	Packet [DWC2_NB_CHAN]packetSnapshot
}

// SaveState serializes the controller into w.
func (chip *USBChip) SaveState(w io.Writer) error {
	chip.mutex.Lock()
	defer chip.mutex.Unlock()

	snap := chipSnapshot{
		Magic:        snapshotMagic,
		Version:      snapshotVersion,
		Glbreg:       chip.glbreg,
		Fszreg:       chip.fszreg,
		Dfszreg:      chip.dfszreg,
		Hreg0:        chip.hreg0,
		Hreg1:        chip.hreg1,
		Dreg:         chip.dreg,
		Diepreg:      chip.diepreg,
		Doepreg:      chip.doepreg,
		Pcgreg:       chip.pcgreg,
		SofTime:      chip.sofTime,
		UsbFrameTime: chip.usbFrameTime,
		UsbBitTime:   chip.usbBitTime,
		UsbVersion:   chip.usbVersion,
		FrameNumber:  chip.frameNumber,
		Fi:           chip.fi,
		NextChan:     chip.nextChan,
		Working:      chip.working,
		Upstream:     chip.upstreamConnected,
		DevAddr:      chip.devAddr,
		EofArmed:     chip.eofTimer.Armed(),
		EofDeadline:  chip.eofTimer.Deadline(),
		WorkArmed:    chip.workTimer.Armed(),
		WorkDeadline: chip.workTimer.Deadline(),
	}

	for i := range chip.packet {
		p := &chip.packet[i]
		snap.Packet[i] = packetSnapshot{
			Devadr:       p.devadr,
			Epnum:        p.epnum,
			Epdir:        p.epdir,
			Mps:          p.mps,
			Pid:          p.pid,
			Index:        p.index,
			Pcnt:         p.pcnt,
			Len:          p.len,
			Async:        p.async,
			Small:        p.small,
			NeedsService: p.needsService,
		}
	}

	if err := binary.Write(w, binary.LittleEndian, &snap); err != nil {
		return fmt.Errorf("usb: snapshot write failed: %w", err)
	}
	for i := range chip.usbBuf {
		if _, err := w.Write(chip.usbBuf[i][:]); err != nil {
			return fmt.Errorf("usb: snapshot write failed: %w", err)
		}
	}
	if _, err := w.Write(chip.fifosBuf[:]); err != nil {
		return fmt.Errorf("usb: snapshot write failed: %w", err)
	}
	return nil
}

// LoadState restores the controller from r. The controller is left
// untouched if the snapshot header does not validate.
func (chip *USBChip) LoadState(r io.Reader) error {
	var snap chipSnapshot
	if err := binary.Read(r, binary.LittleEndian, &snap); err != nil {
		return fmt.Errorf("usb: snapshot read failed: %w", err)
	}
	if snap.Magic != snapshotMagic {
		return fmt.Errorf("usb: bad snapshot magic 0x%08X", snap.Magic)
	}
	if snap.Version != snapshotVersion {
		return fmt.Errorf("usb: unsupported snapshot version %d", snap.Version)
	}

	chip.mutex.Lock()
	defer chip.mutex.Unlock()

	chip.glbreg = snap.Glbreg
	chip.fszreg = snap.Fszreg
	chip.dfszreg = snap.Dfszreg
	chip.hreg0 = snap.Hreg0
	chip.hreg1 = snap.Hreg1
	chip.dreg = snap.Dreg
	chip.diepreg = snap.Diepreg
	chip.doepreg = snap.Doepreg
	chip.pcgreg = snap.Pcgreg

	chip.sofTime = snap.SofTime
	chip.usbFrameTime = snap.UsbFrameTime
	chip.usbBitTime = snap.UsbBitTime
	chip.usbVersion = snap.UsbVersion
	chip.frameNumber = snap.FrameNumber
	chip.fi = snap.Fi
	chip.nextChan = snap.NextChan
	chip.working = snap.Working
	chip.upstreamConnected = snap.Upstream
	chip.devAddr = snap.DevAddr

	for i := range chip.packet {
		p := &chip.packet[i]
		ps := &snap.Packet[i]
		p.devadr = ps.Devadr
		p.epnum = ps.Epnum
		p.epdir = ps.Epdir
		p.mps = ps.Mps
		p.pid = ps.Pid
		p.index = ps.Index
		p.pcnt = ps.Pcnt
		p.len = ps.Len
		p.async = ps.Async
		p.small = ps.Small
		p.needsService = ps.NeedsService

		// An attempt that was pending at a device model did not
		// survive the snapshot; replay it.
		if p.async == DWC2_ASYNC_INFLIGHT {
			p.async = DWC2_ASYNC_NONE
			p.needsService = true
		}
	}

	for i := range chip.usbBuf {
		if _, err := io.ReadFull(r, chip.usbBuf[i][:]); err != nil {
			return fmt.Errorf("usb: snapshot read failed: %w", err)
		}
	}
	if _, err := io.ReadFull(r, chip.fifosBuf[:]); err != nil {
		return fmt.Errorf("usb: snapshot read failed: %w", err)
	}

	if snap.EofArmed {
		chip.eofTimer.Mod(snap.EofDeadline)
	} else {
		chip.eofTimer.Del()
	}
	if snap.WorkArmed {
		chip.workTimer.Mod(snap.WorkDeadline)
	} else {
		chip.workTimer.Del()
	}

	for i := 0; i < DWC2_NB_EP; i++ {
		chip.epInQueue[i] = nil
		chip.epOutQueue[i] = nil
	}

	chip.updateIRQ()
	chip.scheduleHostWork()
	chip.runDeferred()
	return nil
}
