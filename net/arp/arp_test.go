package arp

import "testing"

import "defs"
import "net/eth"
import "timer"

type nullTx struct{ last []byte }

func (n *nullTx) Transmit(frame []byte) error {
	n.last = append([]byte{}, frame...)
	return nil
}

func setupDevice(t *testing.T) (*eth.Device_t, *nullTx) {
	t.Helper()
	tx := &nullTx{}
	dev := eth.Register("eth0", defs.Mac_t{1, 2, 3, 4, 5, 6}, tx)
	dev.Ip = defs.Ip4_t{10, 0, 0, 1}
	return dev, tx
}

func TestLookupBroadcastAlwaysPresent(t *testing.T) {
	tbl := MkTable()
	mac, state := tbl.Lookup(defs.BroadcastIp, 1)
	if state != Present || mac != defs.BroadcastMac {
		t.Fatalf("lookup broadcast = %v,%v", mac, state)
	}
}

func TestLookupUnknownIsEmpty(t *testing.T) {
	tbl := MkTable()
	_, state := tbl.Lookup(defs.Ip4_t{1, 2, 3, 4}, 1)
	if state != Empty {
		t.Fatalf("state = %v, want Empty", state)
	}
}

func TestSendRequestThenSecondRequestDropped(t *testing.T) {
	dev, _ := setupDevice(t)
	tbl := MkTable()
	if err := tbl.SendRequest(defs.Ip4_t{10, 0, 0, 2}, dev.ID); err != nil {
		t.Fatalf("first request: %v", err)
	}
	if _, state := tbl.Lookup(defs.Ip4_t{10, 0, 0, 2}, dev.ID); state != Waiting {
		t.Fatalf("state after request = %v, want Waiting", state)
	}
	if err := tbl.SendRequest(defs.Ip4_t{10, 0, 0, 2}, dev.ID); err == nil {
		t.Fatal("expected second request to be dropped")
	}
}

func TestReceiveReplyInsertsPresentEntry(t *testing.T) {
	dev, _ := setupDevice(t)
	tbl := MkTable()
	senderMac := defs.Mac_t{9, 9, 9, 9, 9, 9}
	senderIp := defs.Ip4_t{10, 0, 0, 5}
	pkt := encode(opReply, senderMac, senderIp, dev.Mac, dev.Ip)
	tbl.Receive(pkt, senderMac, -1, dev.ID)

	mac, state := tbl.Lookup(senderIp, dev.ID)
	if state != Present || mac != senderMac {
		t.Fatalf("lookup = %v,%v want %v,Present", mac, state, senderMac)
	}
}

func TestReceiveRequestForOurIpSendsReply(t *testing.T) {
	dev, tx := setupDevice(t)
	tbl := MkTable()
	senderMac := defs.Mac_t{7, 7, 7, 7, 7, 7}
	senderIp := defs.Ip4_t{10, 0, 0, 9}
	pkt := encode(opRequest, senderMac, senderIp, defs.Mac_t{}, dev.Ip)
	tbl.Receive(pkt, senderMac, -1, dev.ID)
	if tx.last == nil {
		t.Fatal("expected an ARP reply to be transmitted")
	}
}

func TestReceiveEvictsOldestWhenFull(t *testing.T) {
	dev, _ := setupDevice(t)
	tbl := &Table_t{entries: make([]entry_t, 2)}
	for i := range tbl.entries {
		tbl.entries[i].state = Empty
	}
	timer.Ticks = 0
	tbl.entries[0] = entry_t{state: Present, added: 1, ip: defs.Ip4_t{1, 1, 1, 1}, deviceID: dev.ID}
	tbl.entries[1] = entry_t{state: Present, added: 5, ip: defs.Ip4_t{2, 2, 2, 2}, deviceID: dev.ID}

	newMac := defs.Mac_t{3, 3, 3, 3, 3, 3}
	newIp := defs.Ip4_t{3, 3, 3, 3}
	pkt := encode(opReply, newMac, newIp, dev.Mac, dev.Ip)
	tbl.Receive(pkt, newMac, -1, dev.ID)

	if _, state := tbl.Lookup(defs.Ip4_t{1, 1, 1, 1}, dev.ID); state != Empty {
		t.Fatal("expected the oldest entry to be evicted")
	}
	if _, state := tbl.Lookup(defs.Ip4_t{2, 2, 2, 2}, dev.ID); state != Present {
		t.Fatal("expected the newer entry to survive")
	}
	if mac, state := tbl.Lookup(newIp, dev.ID); state != Present || mac != newMac {
		t.Fatal("expected the replaced slot to hold the new entry")
	}
}
