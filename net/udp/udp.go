// Package udp is the send/receive path on top of net/ip and the
// per-process socket a user program reads and writes through.
// Grounded on the original kernel's udp.c: send_udp_packet's ARP
// resolution (same-subnet destinations go through the ARP cache and
// spin-poll a pending request; everything else uses the cached router
// MAC) and receive_udp_packet's port dispatch (the DHCP client port
// is special-cased, everything else goes to whichever process is
// currently blocked in a read). This kernel's syscall table has no
// socket()-style call, so every process is handed one pre-opened UDP
// socket at fd 2 (see proc.NewNetFd) instead of the original's
// ambient, fd-argument-ignored udp_read/udp_write.
package udp

import "runtime"
import "sync"
import "time"

import "defs"
import "fd"
import "fdops"
import "mem"
import "net/arp"
import "net/eth"
import "net/ip"
import "proc"
import "vm"

import "circbuf"
import "hashtable"
import "limits"

const HeaderSize = 8

// DefaultDeviceID is the Ethernet device every socket sends on and
// listens against, matching the original kernel's hardcoded id=1.
var DefaultDeviceID = 1

// DhcpReceiver, if installed, intercepts datagrams addressed to the
// DHCP client port (68) before the generic socket-delivery path runs.
// net/dhcp installs this in its init() to avoid an import cycle
// (dhcp sends UDP packets, so udp cannot import dhcp).
var DhcpReceiver func(data []byte, deviceID int)

const dhcpClientPort = 68

/// Socket_t is the UDP endpoint installed at fd 2 of every process.
/// Reads block until a datagram arrives; writes interpret their first
/// 8 bytes as {dst_ip[4], src_port[2], dst_port[2]} per udp_write's
/// wire contract.
type Socket_t struct {
	mu      sync.Mutex
	cond    *sync.Cond
	cb      circbuf.Circbuf_t
	waiting bool
	pid     defs.Pid_t
}

// registry indexes every process's socket by pid, the way net/udp's
// original lock-striped hashtable indexed bound ports; delivery here
// scans by pid rather than port since this kernel hands out one fixed
// socket per process instead of an arbitrary number of bound ports.
var registry = hashtable.MkHash(limits.Syslimit.Pcbs)

func init() {
	proc.NewNetFd = func(pid defs.Pid_t) *fd.Fd_t {
		s := &Socket_t{pid: pid}
		s.cond = sync.NewCond(&s.mu)
		s.cb.Cb_init(4096, mem.Physmem)
		registry.Set(int(pid), s)
		return &fd.Fd_t{Fops: s, Perms: fd.FD_READ | fd.FD_WRITE}
	}
	eth.OnReceive(eth.EtherTypeIpv4, func(payload []byte, srcMac defs.Mac_t, vlan int, deviceID int) {
		Receive(payload, deviceID)
	})
}

func (s *Socket_t) Close() defs.Err_t {
	registry.Del(int(s.pid))
	return 0
}

func (s *Socket_t) Reopen() defs.Err_t { return 0 }

/// Read blocks until a datagram is queued for this socket, then
/// copies at most dst's capacity into it; any remainder of that
/// datagram is discarded, matching the original's "copy min(len,n)
/// and free the buffer" semantics.
func (s *Socket_t) Read(dst fdops.Userio_i) (int, defs.Err_t) {
	proc.Table.Block(s.pid)
	s.mu.Lock()
	s.waiting = true
	for s.cb.Empty() {
		s.cond.Wait()
	}
	var lenbuf [2]byte
	var lenfb vm.Fakeubuf_t
	lenfb.Fake_init(lenbuf[:])
	if _, err := s.cb.Copyout_n(&lenfb, 2); err != 0 {
		s.waiting = false
		s.mu.Unlock()
		proc.Table.Wake(s.pid)
		return 0, err
	}
	length := be16(lenbuf[:])

	var wrote int
	var err2 defs.Err_t
	if length > 0 {
		wrote, err2 = s.cb.Copyout_n(dst, length)
		if err2 == 0 && wrote < length {
			s.cb.Advtail(length - wrote)
		}
	}
	s.waiting = false
	s.mu.Unlock()
	proc.Table.Wake(s.pid)
	return wrote, err2
}

/// Write sends a datagram: the first 8 bytes of src are
/// {dst_ip[4], src_port[2], dst_port[2]}, the rest is payload.
func (s *Socket_t) Write(src fdops.Userio_i) (int, defs.Err_t) {
	n := src.Remain()
	if n < HeaderSize {
		return 0, -defs.EINVAL
	}
	buf := make([]byte, n)
	read, err := src.Uioread(buf)
	if err != 0 {
		return 0, err
	}
	if read < HeaderSize {
		return 0, -defs.EINVAL
	}
	var dstIp defs.Ip4_t
	copy(dstIp[:], buf[0:4])
	srcPort := be16(buf[4:6])
	dstPort := be16(buf[6:8])
	payload := buf[8:read]

	if sendErr := Send(payload, srcPort, dstIp, dstPort, DefaultDeviceID); sendErr != nil {
		return 0, -defs.EINVAL
	}
	return read, 0
}

// deliver hands data to this socket if and only if it is currently
// blocked in Read; used by Receive to pick the one process the
// original would find by scanning the PCB table for a UDP reader.
func (s *Socket_t) deliver(data []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.waiting {
		return false
	}
	if s.cb.Left() < 2+len(data) {
		return false
	}
	framed := make([]byte, 2+len(data))
	putBe16(framed[:2], len(data))
	copy(framed[2:], data)
	var fb vm.Fakeubuf_t
	fb.Fake_init(framed)
	if _, err := s.cb.Copyin(&fb); err != 0 {
		return false
	}
	s.cond.Broadcast()
	return true
}

/// Send builds the IPv4 + UDP headers around payload and transmits it
/// on deviceID, resolving the destination MAC via the ARP cache (same
/// subnet) or the cached router MAC (everything else).
func Send(payload []byte, srcPort int, dstIp defs.Ip4_t, dstPort int, deviceID int) error {
	dev := eth.Get(deviceID)
	if dev == nil {
		return errNoDevice
	}

	ipHdr := ip.Build(HeaderSize+len(payload), dev.Ip, dstIp)
	udpHdr := make([]byte, HeaderSize)
	putBe16(udpHdr[0:2], srcPort)
	putBe16(udpHdr[2:4], dstPort)
	putBe16(udpHdr[4:6], HeaderSize+len(payload))
	// udpHdr[6:8] checksum left as 0, per the original kernel's udp.c.

	packet := make([]byte, 0, len(ipHdr)+len(udpHdr)+len(payload))
	packet = append(packet, ipHdr...)
	packet = append(packet, udpHdr...)
	packet = append(packet, payload...)

	dstMac, err := resolveMac(dev, dstIp, deviceID)
	if err != nil {
		return err
	}
	return eth.Send(dstMac, eth.EtherTypeIpv4, packet, deviceID)
}

func resolveMac(dev *eth.Device_t, dstIp defs.Ip4_t, deviceID int) (defs.Mac_t, error) {
	if dstIp.Mask(dev.SubnetMask) != dev.Ip.Mask(dev.SubnetMask) {
		if !dev.RouterMacKnown {
			return defs.Mac_t{}, errNoRoute
		}
		return dev.RouterMac, nil
	}

	mac, state := arp.Table.Lookup(dstIp, deviceID)
	if state == arp.Empty {
		arp.Table.SendRequest(dstIp, deviceID)
		mac, state = arp.Table.Lookup(dstIp, deviceID)
	}
	deadline := time.Now().Add(2 * time.Second)
	for state == arp.Waiting && time.Now().Before(deadline) {
		runtime.Gosched()
		mac, state = arp.Table.Lookup(dstIp, deviceID)
	}
	if state != arp.Present {
		return defs.Mac_t{}, errArpTimeout
	}
	return mac, nil
}

/// Receive is net/eth's EtherTypeIpv4 handler: it assumes every IPv4
/// payload is UDP (the only upper protocol this kernel implements),
/// and either forwards to the DHCP client or delivers to a blocked
/// reader.
func Receive(packet []byte, deviceID int) {
	hdr, ok := ip.Parse(packet)
	if !ok || hdr.Protocol != ip.ProtoUdp || hdr.MoreFrags {
		return
	}
	if len(packet) < ip.HeaderSize+HeaderSize {
		return
	}
	udpHdr := packet[ip.HeaderSize:]
	dstPort := be16(udpHdr[2:4])
	udpLen := be16(udpHdr[4:6]) - HeaderSize
	if udpLen < 0 || udpLen+HeaderSize > len(packet)-ip.HeaderSize {
		return
	}
	data := packet[ip.HeaderSize+HeaderSize : ip.HeaderSize+HeaderSize+udpLen]

	if dstPort == dhcpClientPort {
		if DhcpReceiver != nil {
			DhcpReceiver(data, deviceID)
		}
		return
	}

	for _, pair := range registry.Elems() {
		if pair.Value.(*Socket_t).deliver(data) {
			return
		}
	}
}

func be16(b []byte) int       { return int(b[0])<<8 | int(b[1]) }
func putBe16(b []byte, v int) { b[0] = byte(v >> 8); b[1] = byte(v) }

type netErr string

func (e netErr) Error() string { return string(e) }

const (
	errNoDevice   = netErr("udp: no such device")
	errNoRoute    = netErr("udp: no route to destination and router mac unknown")
	errArpTimeout = netErr("udp: arp resolution timed out")
)
