package probe

import (
	"encoding/binary"
	"testing"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// echoBytes encodes an Echo Request for use in quoted datagrams.
func echoBytes(id, seq uint16, v6 bool) []byte {
	data, err := marshalEcho(id, seq, nil, v6)
	if err != nil {
		panic(err)
	}
	return data
}

func TestMarshalEcho_IPv4(t *testing.T) {
	data, err := marshalEcho(0x1234, 7, []byte("payload"), false)
	if err != nil {
		t.Fatalf("marshalEcho() error = %v", err)
	}

	if len(data) != echoHeaderLen+len("payload") {
		t.Fatalf("len(data) = %d, want %d", len(data), echoHeaderLen+len("payload"))
	}
	if binary.BigEndian.Uint16(data[2:4]) == 0 {
		t.Error("IPv4 echo request has no checksum")
	}

	msg, err := icmp.ParseMessage(protocolICMP, data)
	if err != nil {
		t.Fatalf("ParseMessage() error = %v", err)
	}
	if msg.Type != ipv4.ICMPTypeEcho {
		t.Errorf("Type = %v, want %v", msg.Type, ipv4.ICMPTypeEcho)
	}
	echo, ok := msg.Body.(*icmp.Echo)
	if !ok {
		t.Fatalf("Body = %T, want *icmp.Echo", msg.Body)
	}
	if echo.ID != 0x1234 || echo.Seq != 7 || string(echo.Data) != "payload" {
		t.Errorf("Echo = %+v", echo)
	}
}

func TestMarshalEcho_IPv6LeavesChecksum(t *testing.T) {
	data := echoBytes(1, 1, true)

	if data[0] != byte(ipv6.ICMPTypeEchoRequest) {
		t.Errorf("type = %d, want %d", data[0], ipv6.ICMPTypeEchoRequest)
	}
	if data[2] != 0 || data[3] != 0 {
		t.Errorf("checksum = %x%x, want kernel-filled zero", data[2], data[3])
	}
}

func TestQuotedEcho(t *testing.T) {
	ipv4Header := make([]byte, 20)
	ipv4Header[0] = 0x45 // version 4, IHL 5

	got, err := quotedEcho(append(append([]byte(nil), ipv4Header...), echoBytes(99, 5, false)...), false)
	if err != nil {
		t.Fatalf("quotedEcho(v4) error = %v", err)
	}
	if got.ID != 99 || got.Seq != 5 {
		t.Errorf("quotedEcho(v4) = %d/%d, want 99/5", got.ID, got.Seq)
	}

	ipv6Header := make([]byte, 40)
	got, err = quotedEcho(append(ipv6Header, echoBytes(99, 6, true)...), true)
	if err != nil {
		t.Fatalf("quotedEcho(v6) error = %v", err)
	}
	if got.Seq != 6 {
		t.Errorf("quotedEcho(v6).Seq = %d, want 6", got.Seq)
	}

	if _, err := quotedEcho(ipv4Header, false); err == nil {
		t.Error("quotedEcho() should fail when the ICMP header is missing")
	}

	// A quoted UDP datagram is not ours.
	udp := append(append([]byte(nil), ipv4Header...), 0x82, 0x9a, 0x82, 0x9b, 0, 8, 0, 0)
	if _, err := quotedEcho(udp, false); err == nil {
		t.Error("quotedEcho() should reject non-echo payloads")
	}

	// Nor is an echo reply.
	reply := append(append([]byte(nil), ipv4Header...), 0, 0, 0, 0, 0, 99, 0, 5)
	if _, err := quotedEcho(reply, false); err == nil {
		t.Error("quotedEcho() should reject echo replies")
	}
}

func TestTimestampPayload(t *testing.T) {
	before := time.Now().UnixNano()
	payload := TimestampPayload([]byte("x"))

	if len(payload) != 9 {
		t.Fatalf("len(payload) = %d, want 9", len(payload))
	}
	stamp := int64(binary.BigEndian.Uint64(payload))
	if stamp < before {
		t.Errorf("timestamp %d earlier than %d", stamp, before)
	}
	if payload[8] != 'x' {
		t.Errorf("extra data not appended: %v", payload[8:])
	}
}

func BenchmarkMarshalEcho(b *testing.B) {
	payload := TimestampPayload(nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := marshalEcho(1, uint16(i), payload, false); err != nil {
			b.Fatal(err)
		}
	}
}
