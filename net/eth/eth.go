// Package eth is the Ethernet device registry and frame codec: every
// other network package hands it a device id to transmit on, and it
// hands every other network package a parsed frame to interpret.
// Grounded on the original kernel's eth_device.c (a spinlock-guarded
// linked list of registered devices, IDs allocated by scanning for
// the smallest unused value) and ethernet.c (frame parse/build with
// transparent 802.1Q handling). The linked list becomes a slice
// guarded by a sync.Mutex, matching the style the rest of this kernel
// uses for its other small fixed-or-growing tables (proc.table_t,
// tty.Tty_t's window list).
package eth

import "sync"

import "defs"

const (
	MacAddrSize   = 6
	Ipv4AddrSize  = 4
	etherTypeSize = 2
	crcSize       = 4
	payloadOffset = 14
	vlanExtra     = 4
)

// EtherType values this kernel recognizes.
const (
	EtherTypeVlan = 0x8100
	EtherTypeArp  = 0x0806
	EtherTypeIpv4 = 0x0800
)

// Transmitter_i is the interface a device driver registers: given a
// fully-assembled frame (dst/src mac, ethertype, payload, no
// trailer), put it on the wire.
type Transmitter_i interface {
	Transmit(frame []byte) error
}

// Receiver_fn is called with a parsed frame's payload, the inner
// ethertype, the VLAN id (-1 if untagged), and the device that
// received it. net/udp registers itself against EtherTypeIpv4 in its
// init; arp's Table.Receive is registered against EtherTypeArp by the
// kernel's boot sequence.
type Receiver_fn func(payload []byte, srcMac defs.Mac_t, vlan int, deviceID int)

// Device_t is one registered Ethernet interface.
type Device_t struct {
	ID            int
	Name          string
	Mac           defs.Mac_t
	DhcpState     int // Uninit/Selecting/Requesting/Bound, owned by net/dhcp
	Ip            defs.Ip4_t
	SubnetMask    defs.Ip4_t
	RouterIp      defs.Ip4_t
	RouterMac     defs.Mac_t
	RouterMacKnown bool
	tx            Transmitter_i
}

var (
	mu      sync.Mutex
	devices []*Device_t
	rx      = map[int]Receiver_fn{}
)

// Register installs dev, allocating it the smallest unused positive
// id, and returns the assigned device.
func Register(name string, mac defs.Mac_t, tx Transmitter_i) *Device_t {
	mu.Lock()
	defer mu.Unlock()
	id := 1
	for {
		used := false
		for _, d := range devices {
			if d.ID == id {
				used = true
				break
			}
		}
		if !used {
			break
		}
		id++
	}
	dev := &Device_t{ID: id, Name: name, Mac: mac, tx: tx}
	devices = append(devices, dev)
	return dev
}

// Unregister removes the device with the given id, if any.
func Unregister(id int) {
	mu.Lock()
	defer mu.Unlock()
	for i, d := range devices {
		if d.ID == id {
			devices = append(devices[:i], devices[i+1:]...)
			return
		}
	}
}

// Get returns the device with the given id, or nil.
func Get(id int) *Device_t {
	mu.Lock()
	defer mu.Unlock()
	for _, d := range devices {
		if d.ID == id {
			return d
		}
	}
	return nil
}

// OnReceive installs the handler for an inner ethertype, replacing
// whatever handler was previously registered for it.
func OnReceive(ethertype int, fn Receiver_fn) {
	mu.Lock()
	defer mu.Unlock()
	rx[ethertype] = fn
}

// Receive parses a raw frame (as delivered by the device driver,
// possibly padded up to a minimum frame size) and dispatches it to
// whichever receiver is registered for its inner ethertype. Returns
// false for a malformed or unrecognized frame.
func Receive(buf []byte, deviceID int) bool {
	if len(buf) < payloadOffset+crcSize {
		return false
	}
	var src defs.Mac_t
	copy(src[:], buf[MacAddrSize:2*MacAddrSize])

	etOff := payloadOffset - etherTypeSize
	ethertype := int(buf[etOff])<<8 | int(buf[etOff+1])

	payloadStart := payloadOffset
	vlan := -1
	if ethertype == EtherTypeVlan {
		if len(buf) < payloadOffset+vlanExtra+crcSize {
			return false
		}
		vlan = int(buf[payloadOffset])<<8 | int(buf[payloadOffset+1])
		vlan &= 0xfff
		ethertype = int(buf[payloadOffset+2])<<8 | int(buf[payloadOffset+3])
		payloadStart = payloadOffset + vlanExtra
	}

	payloadEnd := len(buf) - crcSize
	if payloadEnd < payloadStart {
		return false
	}
	payload := buf[payloadStart:payloadEnd]

	mu.Lock()
	fn := rx[ethertype]
	mu.Unlock()
	if fn == nil {
		return false
	}
	fn(payload, src, vlan, deviceID)
	return true
}

// Send assembles an untagged frame addressed to dstMac carrying
// payload as ethertype, and transmits it on the named device.
func Send(dstMac defs.Mac_t, ethertype int, payload []byte, deviceID int) error {
	dev := Get(deviceID)
	if dev == nil {
		return errNoDevice
	}
	frame := make([]byte, payloadOffset+len(payload))
	copy(frame[0:MacAddrSize], dstMac[:])
	copy(frame[MacAddrSize:2*MacAddrSize], dev.Mac[:])
	frame[2*MacAddrSize] = byte(ethertype >> 8)
	frame[2*MacAddrSize+1] = byte(ethertype)
	copy(frame[payloadOffset:], payload)
	return dev.tx.Transmit(frame)
}

type netErr string

func (e netErr) Error() string { return string(e) }

const errNoDevice = netErr("eth: no such device")
