// Package dhcp is the DHCP client state machine: DISCOVER/OFFER/
// REQUEST/ACK against a single Ethernet device. Grounded on the
// original kernel's dhcp.c, down to its hardcoded transaction id
// (0xDEADBEEF — "this should be a random new value each time, but for
// our purposes, it can be fixed") and its packed BOOTP packet layout.
// Registers itself against net/udp's port-68 special case in init() to
// avoid an import cycle (dhcp sends through udp, so udp cannot import
// dhcp back).
package dhcp

import "runtime"
import "time"

import "defs"
import "net/arp"
import "net/eth"
import "net/udp"

// DhcpState_t mirrors eth.Device_t.DhcpState's four values.
type DhcpState_t int

const (
	Uninit DhcpState_t = iota
	Selecting
	Requesting
	Bound
)

const (
	clientHwAddrSize = 16
	reservedBytes    = 192
	headerSize       = 4 + 4 + 2 + 2 + 4*4 + clientHwAddrSize + reservedBytes + 4 // 240

	discoverOptionsSize = 8
	requestOptionsSize  = 10
)

const (
	opcodeClient = 1
	opcodeServer = 2

	hwTypeEthernet = 1
	hwLenEthernet  = 6

	transactionID = 0xDEADBEEF
	magicCookie   = 0x63825363

	clientPort = 68
	serverPort = 67
)

const (
	optSubnetMask         = 1
	optRouter             = 3
	optMessageType        = 53
	optServerIdentifier   = 54
	optParameterRequest   = 55
	optEnd                = 255

	msgDiscover = 1
	msgOffer    = 2
	msgRequest  = 3
	msgAck      = 5
	msgNak      = 6
)

func init() {
	udp.DhcpReceiver = Receive
}

// SendDiscover broadcasts a DHCPDISCOVER on deviceID and transitions
// it from Uninit to Selecting. Refuses to run (matching the original's
// "already having an assigned address" check) unless the device is
// Uninit.
func SendDiscover(deviceID int) error {
	dev := eth.Get(deviceID)
	if dev == nil {
		return errNoDevice
	}
	if DhcpState_t(dev.DhcpState) != Uninit {
		return errWrongState
	}

	pkt := make([]byte, headerSize+discoverOptionsSize)
	fillHeader(pkt, dev.Mac, defs.Ip4_t{}, defs.Ip4_t{}, defs.Ip4_t{}, defs.Ip4_t{})
	opts := pkt[headerSize:]
	opts[0], opts[1], opts[2] = optMessageType, 1, msgDiscover
	opts[3], opts[4] = optParameterRequest, 2
	opts[5], opts[6] = optSubnetMask, optRouter
	opts[7] = optEnd

	if err := udp.Send(pkt, clientPort, defs.BroadcastIp, serverPort, deviceID); err != nil {
		return err
	}
	dev.DhcpState = int(Selecting)
	return nil
}

// fillHeader writes the fixed 240-byte BOOTP header shared by every
// outgoing packet this client sends.
func fillHeader(buf []byte, mac defs.Mac_t, clientIp, yourIp, serverIp, relayIp defs.Ip4_t) {
	buf[0] = opcodeClient
	buf[1] = hwTypeEthernet
	buf[2] = hwLenEthernet
	buf[3] = 0 // hops
	putBe32(buf[4:8], transactionID)
	putBe16(buf[8:10], 0)  // seconds
	putBe16(buf[10:12], 0) // flags
	copy(buf[12:16], clientIp[:])
	copy(buf[16:20], yourIp[:])
	copy(buf[20:24], serverIp[:])
	copy(buf[24:28], relayIp[:])
	copy(buf[28:28+eth.MacAddrSize], mac[:])
	// buf[28+MacAddrSize:44] and buf[44:236] (reserved) stay zero.
	putBe32(buf[236:240], magicCookie)
}

// sendRequest replies to an offer with a DHCPREQUEST naming the
// offering server, and transitions Selecting -> Requesting (or back to
// Uninit on send failure).
func sendRequest(dev *eth.Device_t, serverIp defs.Ip4_t, deviceID int) error {
	pkt := make([]byte, headerSize+requestOptionsSize)
	fillHeader(pkt, dev.Mac, defs.Ip4_t{}, defs.Ip4_t{}, serverIp, defs.Ip4_t{})
	opts := pkt[headerSize:]
	opts[0], opts[1], opts[2] = optMessageType, 1, msgRequest
	opts[3], opts[4] = optServerIdentifier, 4
	copy(opts[5:9], serverIp[:])
	opts[9] = optEnd

	err := udp.Send(pkt, clientPort, defs.BroadcastIp, serverPort, deviceID)
	if err != nil {
		dev.DhcpState = int(Uninit)
		return err
	}
	dev.DhcpState = int(Requesting)
	return nil
}

// Receive is net/udp's DhcpReceiver hook: it validates the fixed
// header fields, parses the options block, and dispatches on the
// message-type option. Installed automatically by this package's
// init().
func Receive(data []byte, deviceID int) {
	if len(data) < headerSize {
		return
	}
	dev := eth.Get(deviceID)
	if dev == nil {
		return
	}
	if data[0] != opcodeServer || data[1] != hwTypeEthernet || data[2] != hwLenEthernet {
		return
	}
	if be32(data[4:8]) != transactionID || be32(data[236:240]) != magicCookie {
		return
	}

	opts := parseOptions(data[headerSize:])
	msgType, ok := opts[optMessageType]
	if !ok || len(msgType) < 1 {
		return
	}

	switch msgType[0] {
	case msgOffer:
		receiveOffer(dev, data, deviceID)
	case msgAck:
		receiveAck(dev, data, opts, deviceID)
	case msgNak:
		dev.DhcpState = int(Uninit)
		SendDiscover(deviceID)
	}
}

// receiveOffer accepts the first offer it sees immediately, matching
// the original's "accept the offer immediately" comment: no
// lease-comparison logic, just request it.
func receiveOffer(dev *eth.Device_t, packet []byte, deviceID int) {
	if DhcpState_t(dev.DhcpState) != Selecting {
		return
	}
	var serverIp defs.Ip4_t
	copy(serverIp[:], packet[20:24])
	sendRequest(dev, serverIp, deviceID)
}

// receiveAck binds the offered lease: the device's IP comes from the
// packet's your_ip_addr field, and the subnet mask and router both
// have to come from options or the whole exchange is abandoned.
func receiveAck(dev *eth.Device_t, packet []byte, opts map[byte][]byte, deviceID int) {
	if DhcpState_t(dev.DhcpState) != Requesting {
		return
	}
	copy(dev.Ip[:], packet[16:20])

	mask, haveMask := opts[optSubnetMask]
	router, haveRouter := opts[optRouter]
	if !haveMask || len(mask) < 4 || !haveRouter || len(router) < 4 {
		dev.DhcpState = int(Uninit)
		return
	}
	copy(dev.SubnetMask[:], mask[:4])
	copy(dev.RouterIp[:], router[:4])
	dev.DhcpState = int(Bound)
	go resolveRouterMac(dev, deviceID)
}

// resolveRouterMac issues an ARP request for the newly bound router IP
// and spin-polls the table until it resolves or 2 seconds elapse,
// mirroring net/udp's own ARP wait loop. It runs off the packet
// delivery path since nothing here may block the receive dispatch.
func resolveRouterMac(dev *eth.Device_t, deviceID int) {
	mac, state := arp.Table.Lookup(dev.RouterIp, deviceID)
	if state == arp.Empty {
		arp.Table.SendRequest(dev.RouterIp, deviceID)
		mac, state = arp.Table.Lookup(dev.RouterIp, deviceID)
	}
	deadline := time.Now().Add(2 * time.Second)
	for state == arp.Waiting && time.Now().Before(deadline) {
		runtime.Gosched()
		mac, state = arp.Table.Lookup(dev.RouterIp, deviceID)
	}
	if state != arp.Present {
		return
	}
	dev.RouterMac = mac
	dev.RouterMacKnown = true
}

// parseOptions walks a DHCP options block defensively: a truncated
// length byte or a length that would run past the end of buf stops
// parsing at that point rather than rejecting the whole packet.
func parseOptions(buf []byte) map[byte][]byte {
	opts := make(map[byte][]byte)
	i := 0
	for i < len(buf) {
		tag := buf[i]
		if tag == optEnd {
			break
		}
		if i+1 >= len(buf) {
			break
		}
		length := int(buf[i+1])
		if i+2+length > len(buf) {
			break
		}
		opts[tag] = buf[i+2 : i+2+length]
		i += 2 + length
	}
	return opts
}

func be32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
func putBe32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}
func putBe16(b []byte, v int) { b[0] = byte(v >> 8); b[1] = byte(v) }

type netErr string

func (e netErr) Error() string { return string(e) }

const (
	errNoDevice   = netErr("dhcp: no such device")
	errWrongState = netErr("dhcp: device not in expected state")
)
