package probe

import (
	"context"
	"errors"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// IANA protocol numbers passed to icmp.ParseMessage.
const (
	protocolICMP   = 1
	protocolICMPv6 = 58
)

// ICMPProber implements the Prober interface using ICMP Echo requests.
type ICMPProber struct {
	mu         sync.Mutex
	conn4      *icmp.PacketConn
	conn6      *icmp.PacketConn
	dgram4     bool // conn4 is an unprivileged datagram socket
	dgram6     bool
	identifier uint16
	sequence   uint32
	timeout    time.Duration
	lastV6     atomic.Bool // family of the most recent destination
	closed     bool
}

// ICMPProberConfig holds configuration for the ICMP prober.
type ICMPProberConfig struct {
	Timeout    time.Duration
	IPv6       bool
	Identifier uint16 // If 0, uses process ID
}

// NewICMPProber creates a new ICMP prober and opens the socket for the
// preferred family. The other family is opened on first use.
func NewICMPProber(config ICMPProberConfig) (*ICMPProber, error) {
	if config.Timeout == 0 {
		config.Timeout = 3 * time.Second
	}

	identifier := config.Identifier
	if identifier == 0 {
		identifier = uint16(os.Getpid() & 0xffff)
	}

	p := &ICMPProber{
		identifier: identifier,
		timeout:    config.Timeout,
	}
	p.lastV6.Store(config.IPv6)

	if _, err := p.connFor(config.IPv6); err != nil {
		return nil, err
	}
	return p, nil
}

// connFor returns the socket for the given family, opening it if needed.
// Raw sockets are tried first; unprivileged datagram ICMP is the fallback.
func (p *ICMPProber) connFor(v6 bool) (*icmp.PacketConn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrSocketClosed
	}

	if v6 {
		if p.conn6 == nil {
			conn, dgram, err := listen("ip6:ipv6-icmp", "udp6", "::")
			if err != nil {
				return nil, err
			}
			p.conn6, p.dgram6 = conn, dgram
		}
		return p.conn6, nil
	}

	if p.conn4 == nil {
		conn, dgram, err := listen("ip4:icmp", "udp4", "0.0.0.0")
		if err != nil {
			return nil, err
		}
		p.conn4, p.dgram4 = conn, dgram
	}
	return p.conn4, nil
}

func listen(rawNetwork, dgramNetwork, address string) (*icmp.PacketConn, bool, error) {
	conn, err := icmp.ListenPacket(rawNetwork, address)
	if err == nil {
		return conn, false, nil
	}

	conn, dgramErr := icmp.ListenPacket(dgramNetwork, address)
	if dgramErr == nil {
		return conn, true, nil
	}

	if errors.Is(err, os.ErrPermission) || errors.Is(dgramErr, os.ErrPermission) {
		return nil, false, ErrPermissionDenied
	}
	return nil, false, err
}

// Probe sends an ICMP Echo Request with the given TTL and waits for a response.
func (p *ICMPProber) Probe(ctx context.Context, dest net.IP, ttl int) (*Result, error) {
	if ttl < 1 || ttl > 255 {
		return nil, ErrInvalidTTL
	}

	v6 := dest.To4() == nil
	p.lastV6.Store(v6)

	conn, err := p.connFor(v6)
	if err != nil {
		return nil, err
	}

	if v6 {
		err = conn.IPv6PacketConn().SetHopLimit(ttl)
	} else {
		err = conn.IPv4PacketConn().SetTTL(ttl)
	}
	if err != nil {
		return nil, err
	}

	seq := uint16(atomic.AddUint32(&p.sequence, 1))
	packet, err := marshalEcho(p.identifier, seq, TimestampPayload(nil), v6)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(p.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, err
	}

	// Unblock the read below as soon as ctx is done.
	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Now())
	})
	defer stop()

	var dst net.Addr = &net.IPAddr{IP: dest}
	if p.isDatagram(v6) {
		dst = &net.UDPAddr{IP: dest}
	}

	sendTime := time.Now()
	if _, err := conn.WriteTo(packet, dst); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}

	return p.waitForResponse(ctx, conn, v6, dest, seq, sendTime)
}

func (p *ICMPProber) isDatagram(v6 bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if v6 {
		return p.dgram6
	}
	return p.dgram4
}

// waitForResponse reads until a message matching our probe arrives, the
// socket deadline passes or ctx is done. A read cut short by ctx returns
// ctx.Err(), never ErrTimeout.
func (p *ICMPProber) waitForResponse(ctx context.Context, conn *icmp.PacketConn, v6 bool,
	dest net.IP, seq uint16, sendTime time.Time) (*Result, error) {

	proto := protocolICMP
	if v6 {
		proto = protocolICMPv6
	}
	// Datagram sockets rewrite the echo identifier to the local port.
	checkID := !p.isDatagram(v6)

	buf := make([]byte, 1500)
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		n, peer, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if isTimeoutError(err) {
				return nil, ErrTimeout
			}
			return nil, err
		}
		rtt := time.Since(sendTime)

		msg, err := icmp.ParseMessage(proto, buf[:n])
		if err != nil {
			continue
		}

		m := matcher{id: p.identifier, seq: seq, checkID: checkID, v6: v6}
		if result, ok := m.match(msg, extractIP(peer), dest); ok {
			result.RTT = rtt
			return result, nil
		}
	}
}

// matcher decides whether an ICMP message answers a given probe.
type matcher struct {
	id      uint16
	seq     uint16
	checkID bool
	v6      bool
}

func (m matcher) match(msg *icmp.Message, peer, dest net.IP) (*Result, bool) {
	result := &Result{
		ResponseIP: peer,
		ICMPType:   icmpTypeNumber(msg.Type),
		ICMPCode:   msg.Code,
	}

	switch msg.Type {
	case ipv4.ICMPTypeEchoReply, ipv6.ICMPTypeEchoReply:
		echo, ok := msg.Body.(*icmp.Echo)
		if !ok || !m.owns(uint16(echo.ID), uint16(echo.Seq)) {
			return nil, false
		}
		result.Reached = true
		return result, true

	case ipv4.ICMPTypeTimeExceeded, ipv6.ICMPTypeTimeExceeded:
		body, ok := msg.Body.(*icmp.TimeExceeded)
		if !ok || !m.ownsQuoted(body.Data) {
			return nil, false
		}
		result.TTLExpired = true
		return result, true

	case ipv4.ICMPTypeDestinationUnreachable, ipv6.ICMPTypeDestinationUnreachable:
		body, ok := msg.Body.(*icmp.DstUnreach)
		if !ok || !m.ownsQuoted(body.Data) {
			return nil, false
		}
		// Only the target itself ends the trace; a router refusing to
		// forward is an ordinary hop.
		result.Reached = peer != nil && peer.Equal(dest)
		return result, true
	}

	return nil, false
}

func (m matcher) owns(id, seq uint16) bool {
	if m.checkID && id != m.id {
		return false
	}
	return seq == m.seq
}

func (m matcher) ownsQuoted(data []byte) bool {
	echo, err := quotedEcho(data, m.v6)
	if err != nil {
		return false
	}
	return m.owns(uint16(echo.ID), uint16(echo.Seq))
}

// Name returns the probe method name for the family of the most recent
// destination, or the configured family before the first probe.
func (p *ICMPProber) Name() string {
	if p.lastV6.Load() {
		return "icmp6"
	}
	return "icmp"
}

// Close releases resources held by the prober.
func (p *ICMPProber) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	var err error
	if p.conn4 != nil {
		err = p.conn4.Close()
		p.conn4 = nil
	}
	if p.conn6 != nil {
		if e := p.conn6.Close(); e != nil && err == nil {
			err = e
		}
		p.conn6 = nil
	}
	return err
}

func icmpTypeNumber(t icmp.Type) int {
	switch v := t.(type) {
	case ipv4.ICMPType:
		return int(v)
	case ipv6.ICMPType:
		return int(v)
	default:
		return -1
	}
}

func extractIP(addr net.Addr) net.IP {
	switch a := addr.(type) {
	case *net.IPAddr:
		return a.IP
	case *net.UDPAddr:
		return a.IP
	default:
		return nil
	}
}
