package udp

import "sync"
import "testing"
import "time"

import "defs"
import "mem"
import "net/eth"
import "net/ip"
import "proc"
import "vm"

type nullTx struct{ sent []byte }

func (n *nullTx) Transmit(frame []byte) error {
	n.sent = append([]byte{}, frame...)
	return nil
}

func mkSocket(t *testing.T, pid defs.Pid_t) *Socket_t {
	t.Helper()
	mem.Phys_init(64)
	s := &Socket_t{pid: pid}
	s.cond = sync.NewCond(&s.mu)
	s.cb.Cb_init(4096, mem.Physmem)
	return s
}

func TestDeliverRefusesWhenNotWaiting(t *testing.T) {
	s := mkSocket(t, 1)
	if s.deliver([]byte("hi")) {
		t.Fatal("expected deliver to refuse a socket that isn't blocked in Read")
	}
}

func TestReadBlocksUntilDeliver(t *testing.T) {
	s := mkSocket(t, 2)

	done := make(chan int, 1)
	go func() {
		buf := make([]byte, 32)
		var fb vm.Fakeubuf_t
		fb.Fake_init(buf)
		n, _ := s.Read(&fb)
		done <- n
	}()

	select {
	case <-done:
		t.Fatal("Read returned before any datagram was delivered")
	case <-time.After(20 * time.Millisecond):
	}

	for !func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.waiting
	}() {
		time.Sleep(time.Millisecond)
	}
	if !s.deliver([]byte("payload")) {
		t.Fatal("deliver refused a waiting socket")
	}

	select {
	case n := <-done:
		if n != len("payload") {
			t.Fatalf("Read returned %v bytes, want %v", n, len("payload"))
		}
	case <-time.After(time.Second):
		t.Fatal("Read did not return after delivery")
	}
}

func TestReceiveDeliversThroughRegistry(t *testing.T) {
	mem.Phys_init(64)
	tx := &nullTx{}
	dev := eth.Register("eth0", defs.Mac_t{1, 1, 1, 1, 1, 1}, tx)
	dev.Ip = defs.Ip4_t{10, 0, 0, 1}

	pid := defs.Pid_t(42)
	fdt := proc.NewNetFd(pid)
	s := fdt.Fops.(*Socket_t)
	defer s.Close()

	done := make(chan int, 1)
	go func() {
		buf := make([]byte, 32)
		var fb vm.Fakeubuf_t
		fb.Fake_init(buf)
		n, _ := s.Read(&fb)
		done <- n
	}()

	for !func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.waiting
	}() {
		time.Sleep(time.Millisecond)
	}

	ipHdr := ip.Build(HeaderSize+5, defs.Ip4_t{10, 0, 0, 2}, dev.Ip)
	udpHdr := make([]byte, HeaderSize)
	putBe16(udpHdr[0:2], 9000)
	putBe16(udpHdr[2:4], 9001)
	putBe16(udpHdr[4:6], HeaderSize+5)
	packet := append(append(ipHdr, udpHdr...), []byte("hello")...)
	Receive(packet, dev.ID)

	select {
	case n := <-done:
		if n != 5 {
			t.Fatalf("Read returned %v bytes, want 5", n)
		}
	case <-time.After(time.Second):
		t.Fatal("Read did not return after Receive delivered a datagram")
	}
}

func TestSendBuildsIpv4AndUdpHeaders(t *testing.T) {
	mem.Phys_init(64)
	tx := &nullTx{}
	dev := eth.Register("eth0", defs.Mac_t{1, 1, 1, 1, 1, 1}, tx)
	dev.Ip = defs.Ip4_t{10, 0, 0, 1}
	dev.SubnetMask = defs.Ip4_t{255, 255, 255, 0}
	dev.RouterMac = defs.Mac_t{2, 2, 2, 2, 2, 2}
	dev.RouterMacKnown = true

	dst := defs.Ip4_t{192, 168, 1, 1} // outside the subnet -> router path, no ARP spin
	if err := Send([]byte("hello"), 1234, dst, 80, dev.ID); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if tx.sent == nil {
		t.Fatal("expected a frame to be transmitted")
	}
	var gotDst defs.Mac_t
	copy(gotDst[:], tx.sent[:6])
	if gotDst != dev.RouterMac {
		t.Fatalf("dst mac = %v, want router mac %v", gotDst, dev.RouterMac)
	}
	ipHdr := tx.sent[14:]
	if string(ipHdr[len(ipHdr)-5:]) != "hello" {
		t.Fatalf("payload tail = %q", ipHdr[len(ipHdr)-5:])
	}
}
