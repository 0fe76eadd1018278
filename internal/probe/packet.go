package probe

import (
	"encoding/binary"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

const (
	ipv6HeaderLen      = 40
	minIPv4HeaderLen   = 20
	echoHeaderLen      = 8
	echoTimestampBytes = 8
)

// marshalEcho encodes an Echo Request for the given family. The ICMPv6
// checksum is left to the kernel.
func marshalEcho(id, seq uint16, payload []byte, v6 bool) ([]byte, error) {
	var typ icmp.Type = ipv4.ICMPTypeEcho
	if v6 {
		typ = ipv6.ICMPTypeEchoRequest
	}

	msg := icmp.Message{
		Type: typ,
		Code: 0,
		Body: &icmp.Echo{
			ID:   int(id),
			Seq:  int(seq),
			Data: payload,
		},
	}
	return msg.Marshal(nil)
}

// quotedEcho extracts our original Echo Request from the datagram quoted in
// a Time Exceeded or Destination Unreachable message.
func quotedEcho(quoted []byte, v6 bool) (*icmp.Echo, error) {
	headerLen := ipv6HeaderLen
	proto := protocolICMPv6
	if !v6 {
		if len(quoted) < minIPv4HeaderLen {
			return nil, ErrInvalidPacket
		}
		headerLen = int(quoted[0]&0x0f) * 4
		proto = protocolICMP
	}
	if headerLen < minIPv4HeaderLen || len(quoted) < headerLen+echoHeaderLen {
		return nil, ErrInvalidPacket
	}

	msg, err := icmp.ParseMessage(proto, quoted[headerLen:])
	if err != nil {
		return nil, ErrInvalidPacket
	}
	if msg.Type != ipv4.ICMPTypeEcho && msg.Type != ipv6.ICMPTypeEchoRequest {
		return nil, ErrInvalidPacket
	}

	echo, ok := msg.Body.(*icmp.Echo)
	if !ok {
		return nil, ErrInvalidPacket
	}
	return echo, nil
}

// TimestampPayload returns a payload that starts with the send time in
// nanoseconds, followed by extra.
func TimestampPayload(extra []byte) []byte {
	payload := make([]byte, echoTimestampBytes+len(extra))
	binary.BigEndian.PutUint64(payload, uint64(time.Now().UnixNano()))
	copy(payload[echoTimestampBytes:], extra)
	return payload
}
