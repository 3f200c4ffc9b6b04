// Package arp is the fixed-capacity ARP table: address resolution,
// timed eviction, and the request/reply wire format. Grounded on the
// original kernel's arp.c — in particular the exact validation order
// receive_arp_packet uses for a reply (request-for-our-ip auto-reply
// checked first, then operation must be Reply, then the combined
// hardware-type/protocol-type/address-length check) and the
// oldest-entry eviction the table falls back to when full.
package arp

import "sync"

import "defs"
import "limits"
import "net/eth"
import "timer"

/// State_t is the lifecycle of one ARP table entry.
type State_t int

const (
	Present State_t = iota
	Waiting
	Empty
)

const packetSize = 28

// ArpTimeoutTicks mirrors the original's ARP_TIMEOUT of 10 seconds;
// the eviction sweep itself runs on this period, so an entry's actual
// lifetime is between 1x and 2x this value.
const ArpTimeoutTicks = 10 * timer.TickHz

type entry_t struct {
	state    State_t
	added    int64
	ip       defs.Ip4_t
	mac      defs.Mac_t
	vlan     int
	deviceID int
}

/// Table_t is a fixed-size, linearly-scanned address resolution
/// table, one per kernel (the original has exactly one global
/// arp_table; this kernel does too, via the package-level Table).
type Table_t struct {
	mu      sync.Mutex
	entries []entry_t
}

/// Table is this kernel's single ARP table, sized from
/// limits.Syslimit.ArpEnts.
var Table = MkTable()

/// MkTable allocates an empty table with the configured capacity.
func MkTable() *Table_t {
	t := &Table_t{entries: make([]entry_t, limits.Syslimit.ArpEnts)}
	for i := range t.entries {
		t.entries[i].state = Empty
	}
	return t
}

/// Lookup resolves ip on the given device. The broadcast address
/// always resolves to the broadcast MAC without consulting the table.
func (t *Table_t) Lookup(ip defs.Ip4_t, deviceID int) (defs.Mac_t, State_t) {
	if ip == defs.BroadcastIp {
		return defs.BroadcastMac, Present
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range t.entries {
		if e.state != Empty && e.deviceID == deviceID && e.ip == ip {
			if e.state == Present {
				return e.mac, Present
			}
			return defs.Mac_t{}, e.state
		}
	}
	return defs.Mac_t{}, Empty
}

/// SendRequest issues a broadcast ARP request for targetIp on
/// deviceID, first claiming (or confirming) a Waiting table slot. It
/// refuses a second request while one is already outstanding for the
/// same (ip, device), matching the original's "drop, a request is
/// already in flight" behavior.
func (t *Table_t) SendRequest(targetIp defs.Ip4_t, deviceID int) error {
	t.mu.Lock()
	exists := false
	for i := range t.entries {
		e := &t.entries[i]
		if e.state == Empty || e.deviceID != deviceID || e.ip != targetIp {
			continue
		}
		exists = true
		if e.state == Waiting {
			t.mu.Unlock()
			return errAlreadyWaiting
		}
	}
	if !exists {
		slot := -1
		for i := range t.entries {
			if t.entries[i].state == Empty {
				slot = i
				break
			}
		}
		if slot < 0 {
			t.mu.Unlock()
			return errTableFull
		}
		t.entries[slot] = entry_t{state: Waiting, added: timer.Ticks, ip: targetIp, deviceID: deviceID}
	}
	t.mu.Unlock()

	dev := eth.Get(deviceID)
	if dev == nil {
		return errNoDevice
	}
	pkt := encode(opRequest, dev.Mac, dev.Ip, defs.Mac_t{}, targetIp)
	return eth.Send(defs.BroadcastMac, eth.EtherTypeArp, pkt, deviceID)
}

func (t *Table_t) sendReply(targetIp defs.Ip4_t, targetMac defs.Mac_t, deviceID int) error {
	dev := eth.Get(deviceID)
	if dev == nil {
		return errNoDevice
	}
	pkt := encode(opReply, dev.Mac, dev.Ip, targetMac, targetIp)
	return eth.Send(targetMac, eth.EtherTypeArp, pkt, deviceID)
}

/// Receive interprets an ARP packet payload (already stripped of its
/// Ethernet header by net/eth). It auto-replies to a request for our
/// own IP, and on a valid reply inserts or refreshes the table entry
/// for the sender, evicting the oldest entry if the table is full.
/// Register this against eth.EtherTypeArp during boot.
func (t *Table_t) Receive(payload []byte, srcMac defs.Mac_t, vlan int, deviceID int) {
	if len(payload) < packetSize {
		return
	}
	hwType := be16(payload[0:2])
	protoType := be16(payload[2:4])
	hwLen := payload[4]
	protoLen := payload[5]
	op := be16(payload[6:8])
	var senderMac, targetMac defs.Mac_t
	var senderIp, targetIp defs.Ip4_t
	copy(senderMac[:], payload[8:14])
	copy(senderIp[:], payload[14:18])
	copy(targetMac[:], payload[18:24])
	copy(targetIp[:], payload[24:28])

	if op == opRequest {
		if dev := eth.Get(deviceID); dev != nil && targetIp == dev.Ip {
			t.sendReply(senderIp, senderMac, deviceID)
		}
	}

	if op != opReply {
		return
	}
	if !(hwType == ethernetHardwareType && protoType == ipv4ProtocolType &&
		hwLen == eth.MacAddrSize && protoLen == eth.Ipv4AddrSize) {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	slot := -1
	for i := range t.entries {
		e := &t.entries[i]
		if e.state != Empty && e.deviceID == deviceID && e.ip == senderIp {
			slot = i
			break
		}
		if slot < 0 && e.state == Empty {
			slot = i
		}
	}
	if slot < 0 {
		var oldestTime int64 = 1<<63 - 1
		for i := range t.entries {
			if t.entries[i].added < oldestTime {
				slot = i
				oldestTime = t.entries[i].added
			}
		}
	}
	if slot >= 0 {
		t.entries[slot] = entry_t{state: Present, added: timer.Ticks, ip: senderIp, mac: senderMac, vlan: vlan, deviceID: deviceID}
	}
}

/// StartEviction schedules the periodic sweep that moves any
/// Present/Waiting entry older than ArpTimeoutTicks back to Empty, and
/// reschedules itself every ArpTimeoutTicks thereafter.
func (t *Table_t) StartEviction(tl *timer.Ticklist_t) {
	var sweep func()
	sweep = func() {
		t.mu.Lock()
		for i := range t.entries {
			e := &t.entries[i]
			if e.state != Empty && timer.Ticks-e.added > ArpTimeoutTicks {
				e.state = Empty
			}
		}
		t.mu.Unlock()
		tl.After(ArpTimeoutTicks, sweep)
	}
	tl.After(ArpTimeoutTicks, sweep)
}

const (
	opRequest = 1
	opReply   = 2
	ethernetHardwareType = 1
	ipv4ProtocolType     = 0x0800
)

func be16(b []byte) int { return int(b[0])<<8 | int(b[1]) }
func putBe16(b []byte, v int) { b[0] = byte(v >> 8); b[1] = byte(v) }

func encode(op int, ourMac defs.Mac_t, ourIp defs.Ip4_t, targetMac defs.Mac_t, targetIp defs.Ip4_t) []byte {
	pkt := make([]byte, packetSize)
	putBe16(pkt[0:2], ethernetHardwareType)
	putBe16(pkt[2:4], ipv4ProtocolType)
	pkt[4] = eth.MacAddrSize
	pkt[5] = eth.Ipv4AddrSize
	putBe16(pkt[6:8], op)
	copy(pkt[8:14], ourMac[:])
	copy(pkt[14:18], ourIp[:])
	copy(pkt[18:24], targetMac[:])
	copy(pkt[24:28], targetIp[:])
	return pkt
}

type netErr string

func (e netErr) Error() string { return string(e) }

const (
	errAlreadyWaiting = netErr("arp: request already outstanding")
	errTableFull      = netErr("arp: table full")
	errNoDevice       = netErr("arp: no such device")
)
