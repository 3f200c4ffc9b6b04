// Package devfs implements the three kinds of open file descriptor
// the filesystem collaborator's open() can hand back (the RTC
// device, a directory, and a regular file) plus the console
// descriptors every process is born with, wired to fdops.Fdops_i the
// same way the teacher wires its own fd implementations.
//
// Grounded on the original kernel's rtc.c (the periodic-interrupt,
// settable-frequency device), file_system.c's directory/regular-file
// read behavior, and the teacher's own Devfsfops_t for the general
// shape of "a Fdops_i that wraps one small piece of kernel state".
package devfs

import "sync"

import "defs"
import "fdops"

// ratesHz lists the frequencies the RTC accepts, mirroring the
// original driver's divisor table; anything else is rejected.
var ratesHz = map[int]bool{
	2: true, 4: true, 8: true, 16: true, 32: true, 64: true,
	128: true, 256: true, 512: true, 1024: true,
}

// baseHz is the virtual oscillator rate RtcTick is called at; every
// open Rtc_t divides it down to its own configured rate.
const baseHz = 1024

var registry struct {
	sync.Mutex
	devs []*Rtc_t
}

/// Rtc_t implements fdops.Fdops_i for the real-time-clock device:
/// read blocks until the next interrupt at the configured rate, write
/// changes the rate.
type Rtc_t struct {
	mu     sync.Mutex
	cond   *sync.Cond
	rateHz int
	ticks  int64
	target int64
	fires  int64 // incremented once per completed period; Read waits on this, not on ticks, since ticks itself resets to 0 every period
}

/// OpenRtc creates an RTC descriptor defaulted to 2 Hz, matching
/// rtc_open's default, and registers it to receive RtcTick calls.
func OpenRtc() *Rtc_t {
	r := &Rtc_t{rateHz: 2, target: baseHz / 2}
	r.cond = sync.NewCond(&r.mu)
	registry.Lock()
	registry.devs = append(registry.devs, r)
	registry.Unlock()
	return r
}

/// RtcTick advances the shared virtual oscillator by one step and
/// wakes any RTC descriptor whose configured period has elapsed.
/// Installed as the IRQ_RTC handler during boot.
func RtcTick() {
	registry.Lock()
	devs := append([]*Rtc_t{}, registry.devs...)
	registry.Unlock()
	for i, r := range devs {
		dup := false
		for _, d := range devs[:i] {
			if d == r {
				dup = true
			}
		}
		if dup {
			continue
		}
		r.mu.Lock()
		r.ticks++
		if r.ticks >= r.target {
			r.ticks = 0
			r.fires++
			r.cond.Broadcast()
		}
		r.mu.Unlock()
	}
}

/// Read blocks until the next tick at this descriptor's configured
/// rate, then returns 0 bytes as rtc_read does: the read's only
/// purpose is to rendezvous with the interrupt.
func (r *Rtc_t) Read(dst fdops.Userio_i) (int, defs.Err_t) {
	r.mu.Lock()
	start := r.fires
	for r.fires == start {
		r.cond.Wait()
	}
	r.mu.Unlock()
	return 0, 0
}

/// Write sets the interrupt rate from a 4-byte little-endian
/// frequency, matching rtc_write's contract.
func (r *Rtc_t) Write(src fdops.Userio_i) (int, defs.Err_t) {
	if src.Totalsz() != 4 {
		return 0, -defs.EINVAL
	}
	buf := make([]byte, 4)
	n, err := src.Uioread(buf)
	if err != 0 || n != 4 {
		return 0, -defs.EINVAL
	}
	hz := int(buf[0]) | int(buf[1])<<8 | int(buf[2])<<16 | int(buf[3])<<24
	if !ratesHz[hz] {
		return 0, -defs.EINVAL
	}
	r.mu.Lock()
	r.rateHz = hz
	r.target = int64(baseHz / hz)
	r.ticks = 0
	r.cond.Broadcast()
	r.mu.Unlock()
	return 4, 0
}

/// Close unregisters the descriptor from RtcTick delivery.
func (r *Rtc_t) Close() defs.Err_t {
	registry.Lock()
	defer registry.Unlock()
	for i, d := range registry.devs {
		if d == r {
			registry.devs = append(registry.devs[:i], registry.devs[i+1:]...)
			break
		}
	}
	return 0
}

/// Reopen re-registers a duplicated RTC descriptor (dup() of an RTC
/// fd shares this descriptor's rate and wait rendezvous; the extra
/// registry entry keeps it receiving RtcTick calls until both fds
/// are closed, and RtcTick advances it once per tick regardless).
func (r *Rtc_t) Reopen() defs.Err_t {
	registry.Lock()
	registry.devs = append(registry.devs, r)
	registry.Unlock()
	return 0
}
