// Package transport wraps a single raw (or unprivileged datagram)
// ICMPv4 socket: one send side, one receive side, as required by C2.
// It never interprets packet contents beyond handing bytes to and
// from package icmpwire.
package transport

import (
	"errors"
	"fmt"
	"log"
	"net"
	"time"

	"golang.org/x/net/icmp"
)

func init() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}

// MaxRecvTimeout is the caller-visible clamp on recv_one's timeout.
// Exceeding it from a caller is a programming error, not a runtime
// fault, per §4.2/§5.
const MaxRecvTimeout = 5 * time.Second

// minRecvTimeout avoids a zero-length kernel wait turning into a
// busy-poll.
const minRecvTimeout = time.Microsecond

// ICMP4 owns one ICMPv4 socket. Requires elevated privileges or
// CAP_NET_RAW (or, on Linux, the unprivileged ICMP ping group range);
// that is a precondition of Listen, not an error path of Send/RecvOne.
type ICMP4 struct {
	conn *icmp.PacketConn
}

// Listen opens an ICMPv4 socket on the given local address ("" binds
// to all interfaces). It first tries the unprivileged "udp4" network
// (Linux ping sockets), and falls back to a raw "ip4:icmp" socket,
// which needs CAP_NET_RAW, only if that fails.
func Listen(laddr string) (*ICMP4, error) {
	conn, err := icmp.ListenPacket("udp4", laddr)
	if err != nil {
		conn, err = icmp.ListenPacket("ip4:icmp", laddr)
	}
	if err != nil {
		return nil, fmt.Errorf("icmp: socket acquisition failed: %w", err)
	}
	return &ICMP4{conn: conn}, nil
}

// Close releases the socket.
func (t *ICMP4) Close() error {
	return t.conn.Close()
}

// Send transmits packet to dstAddr (a dotted-quad IPv4 literal). It
// blocks only as long as the kernel needs and returns a SendError on
// kernel refusal (permission, unreachable); callers log and swallow
// per §7, never retry.
func (t *ICMP4) Send(packet []byte, dstAddr string) error {
	ip := net.ParseIP(dstAddr)
	var dst net.Addr = &net.UDPAddr{IP: ip}
	if _, raw := t.conn.LocalAddr().(*net.IPAddr); raw {
		dst = &net.IPAddr{IP: ip}
	}
	if _, err := t.conn.WriteTo(packet, dst); err != nil {
		return &SendError{Addr: dstAddr, Err: err}
	}
	return nil
}

// Received is one inbound ICMP datagram plus its source address.
type Received struct {
	Packet []byte
	Src    string
}

// RecvOne blocks for up to timeout waiting for one ICMP datagram. It
// returns (packet, true, nil) on success, (nil, false, nil) if the
// timeout elapsed with nothing to read, or (nil, false, err) — a
// RecvError — on a kernel-level failure. A timeout below
// minRecvTimeout is raised to it; a timeout above MaxRecvTimeout is a
// caller bug and panics.
func (t *ICMP4) RecvOne(timeout time.Duration) (Received, bool, error) {
	if timeout > MaxRecvTimeout {
		panic(fmt.Sprintf("transport: RecvOne timeout %s exceeds MaxRecvTimeout %s", timeout, MaxRecvTimeout))
	}
	if timeout < minRecvTimeout {
		timeout = minRecvTimeout
	}
	if err := t.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return Received{}, false, &RecvError{Err: err}
	}
	buf := make([]byte, 512)
	n, src, err := t.conn.ReadFrom(buf)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return Received{}, false, nil
		}
		return Received{}, false, &RecvError{Err: err}
	}
	return Received{Packet: buf[:n], Src: addrString(src)}, true, nil
}

func addrString(a net.Addr) string {
	switch v := a.(type) {
	case *net.UDPAddr:
		return v.IP.String()
	case *net.IPAddr:
		return v.IP.String()
	default:
		return a.String()
	}
}

// SendError wraps a kernel-level send failure for one packet.
type SendError struct {
	Addr string
	Err  error
}

func (e *SendError) Error() string { return fmt.Sprintf("icmp send to %s: %v", e.Addr, e.Err) }
func (e *SendError) Unwrap() error { return e.Err }

// RecvError wraps a kernel-level receive failure.
type RecvError struct {
	Err error
}

func (e *RecvError) Error() string { return fmt.Sprintf("icmp recv: %v", e.Err) }
func (e *RecvError) Unwrap() error { return e.Err }
