// usb_clock.go - Virtual clock and deadline timers for the USB controller

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
usb_clock.go - Virtual Clock

Deterministic nanosecond clock driving the controller's frame scheduler
and retry pacing. Timers are one-shot deadlines that can be re-armed
(Mod) or cancelled (Del) at any time; firing order is deadline order,
ties broken by arming order. Advancing the clock steps through each due
deadline in sequence and invokes the callback with the clock positioned
exactly at that deadline, which gives frame timing that is reproducible
in tests and independent of host scheduling.

A real-time frontend can drive Advance from wall time; the emulation
core never looks at the host clock directly.
*/

package main

import "sync"

type VirtualClock struct {
	mutex  sync.Mutex
	now    int64
	timers []*VirtualTimer
	seq    uint64
}

type VirtualTimer struct {
	clock    *VirtualClock
	callback func()
	deadline int64
	seq      uint64
	armed    bool
}

func NewVirtualClock() *VirtualClock {
	return &VirtualClock{}
}

// Now returns the current virtual time in nanoseconds.
func (clock *VirtualClock) Now() int64 {
	clock.mutex.Lock()
	defer clock.mutex.Unlock()
	return clock.now
}

// NewTimer creates an unarmed timer that invokes callback when due.
func (clock *VirtualClock) NewTimer(callback func()) *VirtualTimer {
	timer := &VirtualTimer{clock: clock, callback: callback}
	clock.mutex.Lock()
	clock.timers = append(clock.timers, timer)
	clock.mutex.Unlock()
	return timer
}

// Mod arms the timer for the given absolute deadline, replacing any
// previously armed deadline.
func (timer *VirtualTimer) Mod(deadline int64) {
	clock := timer.clock
	clock.mutex.Lock()
	timer.deadline = deadline
	clock.seq++
	timer.seq = clock.seq
	timer.armed = true
	clock.mutex.Unlock()
}

// Del disarms the timer. A disarmed timer never fires until re-armed.
func (timer *VirtualTimer) Del() {
	clock := timer.clock
	clock.mutex.Lock()
	timer.armed = false
	clock.mutex.Unlock()
}

// Armed reports whether the timer currently has a pending deadline.
func (timer *VirtualTimer) Armed() bool {
	clock := timer.clock
	clock.mutex.Lock()
	defer clock.mutex.Unlock()
	return timer.armed
}

// Deadline returns the armed deadline; only meaningful while Armed.
func (timer *VirtualTimer) Deadline() int64 {
	clock := timer.clock
	clock.mutex.Lock()
	defer clock.mutex.Unlock()
	return timer.deadline
}

func (clock *VirtualClock) nextDue(limit int64) *VirtualTimer {
	var due *VirtualTimer
	for _, timer := range clock.timers {
		if !timer.armed || timer.deadline > limit {
			continue
		}
		if due == nil || timer.deadline < due.deadline ||
			(timer.deadline == due.deadline && timer.seq < due.seq) {
			due = timer
		}
	}
	return due
}

// Advance moves virtual time forward by delta nanoseconds, firing every
// timer whose deadline falls within the window, in deadline order.
// Callbacks run with the clock lock released so they may re-arm timers.
func (clock *VirtualClock) Advance(delta int64) {
	clock.mutex.Lock()
	target := clock.now + delta
	for {
		timer := clock.nextDue(target)
		if timer == nil {
			break
		}
		if timer.deadline > clock.now {
			clock.now = timer.deadline
		}
		timer.armed = false
		callback := timer.callback
		clock.mutex.Unlock()
		callback()
		clock.mutex.Lock()
	}
	clock.now = target
	clock.mutex.Unlock()
}
