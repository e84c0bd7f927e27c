// Package pktinfo holds per-packet destination-address ancillary data
// captured off a UDP socket and reconstitutes it as a source-address hint
// on outbound replies.
package pktinfo

import (
	"net"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Family distinguishes which union member, if any, a PktInfo holds.
type Family int

const (
	Empty Family = iota
	V4
	V6
)

// PktInfo is a tagged union of an empty value, an IPv4 destination-address
// record, or an IPv6 destination-address record, as captured from a
// recvmsg ancillary-data buffer.
type PktInfo struct {
	family Family
	v4     unix.Inet4Pktinfo
	v6     unix.Inet6Pktinfo
}

// SetV4 replaces the value with an IPv4 destination-address record.
func (p *PktInfo) SetV4(info unix.Inet4Pktinfo) {
	p.family = V4
	p.v4 = info
	p.v6 = unix.Inet6Pktinfo{}
}

// SetV6 replaces the value with an IPv6 destination-address record.
func (p *PktInfo) SetV6(info unix.Inet6Pktinfo) {
	p.family = V6
	p.v6 = info
	p.v4 = unix.Inet4Pktinfo{}
}

// Clear empties the value.
func (p *PktInfo) Clear() {
	*p = PktInfo{}
}

// IsFull reports whether the value holds a v4 or v6 record.
func (p *PktInfo) IsFull() bool {
	return p.family != Empty
}

// Family reports which union member is populated.
func (p *PktInfo) Family() Family {
	return p.family
}

// Duplicate returns an independent copy; the returned value may be mutated
// or cleared without affecting the receiver.
func (p *PktInfo) Duplicate() *PktInfo {
	dup := *p
	return &dup
}

// Addr extracts the captured destination address as a net.IP. The port is
// undefined; callers combine this with the packet's own port as needed.
func (p *PktInfo) Addr() net.IP {
	switch p.family {
	case V4:
		return net.IPv4(p.v4.Addr[0], p.v4.Addr[1], p.v4.Addr[2], p.v4.Addr[3])
	case V6:
		ip := make(net.IP, net.IPv6len)
		copy(ip, p.v6.Addr[:])
		return ip
	default:
		return nil
	}
}

// CmsgV4 encodes the v4 record as an IP_PKTINFO ancillary-data message
// suitable for use as a source-address hint on an outbound sendmsg. Returns
// nil if the value does not hold a v4 record.
func (p *PktInfo) CmsgV4() []byte {
	if p.family != V4 {
		return nil
	}
	info := p.v4
	// Spec_dst is the interface's local address and is what the kernel
	// honors as a source-address hint on send; Addr carries the original
	// destination, which may differ on a multi-homed host.
	info.Spec_dst = info.Addr
	return unix.PktInfo4(&info)
}

// CmsgV6 encodes the v6 record as an IPV6_PKTINFO ancillary-data message
// suitable for use as a source-address hint on an outbound sendmsg. Returns
// nil if the value does not hold a v6 record.
func (p *PktInfo) CmsgV6() []byte {
	if p.family != V6 {
		return nil
	}
	info := p.v6
	return unix.PktInfo6(&info)
}

// Cmsg encodes whichever record is populated as ancillary data, or nil if
// the value is empty.
func (p *PktInfo) Cmsg() []byte {
	switch p.family {
	case V4:
		return p.CmsgV4()
	case V6:
		return p.CmsgV6()
	default:
		return nil
	}
}

// ParseControlMessage scans a recvmsg OOB buffer for IP_PKTINFO or
// IPV6_PKTINFO and returns a populated PktInfo. A buffer with neither
// returns an empty PktInfo and no error.
func ParseControlMessage(oob []byte) (*PktInfo, error) {
	out := &PktInfo{}
	if len(oob) == 0 {
		return out, nil
	}
	msgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return nil, err
	}
	for _, m := range msgs {
		switch {
		case m.Header.Level == unix.SOL_IP && m.Header.Type == unix.IP_PKTINFO:
			if len(m.Data) < unix.SizeofInet4Pktinfo {
				continue
			}
			var info unix.Inet4Pktinfo
			copy(structBytes(unsafe.Pointer(&info), unix.SizeofInet4Pktinfo), m.Data)
			out.SetV4(info)
		case m.Header.Level == unix.SOL_IPV6 && m.Header.Type == unix.IPV6_PKTINFO:
			if len(m.Data) < unix.SizeofInet6Pktinfo {
				continue
			}
			var info unix.Inet6Pktinfo
			copy(structBytes(unsafe.Pointer(&info), unix.SizeofInet6Pktinfo), m.Data)
			out.SetV6(info)
		}
	}
	return out, nil
}

// ParseTimestamp scans a recvmsg OOB buffer for a kernel-supplied SO_TIMESTAMP
// control message and returns it as a time.Time. Returns false if the buffer
// carries no timestamp, in which case the caller falls back to its own clock.
func ParseTimestamp(oob []byte) (time.Time, bool) {
	if len(oob) == 0 {
		return time.Time{}, false
	}
	msgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return time.Time{}, false
	}
	for _, m := range msgs {
		if m.Header.Level != unix.SOL_SOCKET || m.Header.Type != unix.SO_TIMESTAMP {
			continue
		}
		if len(m.Data) < unix.SizeofTimeval {
			continue
		}
		var tv unix.Timeval
		copy(structBytes(unsafe.Pointer(&tv), unix.SizeofTimeval), m.Data)
		return time.Unix(tv.Sec, int64(tv.Usec)*1000), true
	}
	return time.Time{}, false
}

// structBytes returns a byte-slice view over a fixed-size struct, used to
// populate Inet4Pktinfo/Inet6Pktinfo from a raw ancillary-data buffer
// without per-field reflection.
func structBytes(ptr unsafe.Pointer, size int) []byte {
	return unsafe.Slice((*byte)(ptr), size)
}
