package manager

import (
	"fmt"
	"net"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/go-spud/spud-go/internal/bufpool"
	"github.com/go-spud/spud-go/internal/pktinfo"
	"github.com/go-spud/spud-go/internal/tube"
	"github.com/go-spud/spud-go/internal/wire"
)

// Loop runs the manager's single-threaded reactor until Stop is called or a
// fatal error occurs (§4.5). It fires "loopstart" once, then repeatedly:
// drains due timers, waits on both UDP sockets and the self-pipe, and
// dispatches whatever became ready. Malformed datagrams and protocol
// violations (double-open, double-close, commands in the wrong state) are
// logged and dropped; only a select or recvmsg failure other than EINTR is
// fatal, and stops the loop with the error surfaced to the caller.
func (m *Manager) Loop() error {
	m.keepGoing.Store(true)
	m.fire(Event{Name: EventLoopStart})

	for m.keepGoing.Load() {
		m.drainTimers()

		n, rset, err := m.selectReady(m.waitTimeout())
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("manager: loop: select: %w", err)
		}
		if n == 0 {
			m.lastObserved = m.clock()
			continue
		}

		if m.pipeR >= 0 && fdIsSet(rset, m.pipeR) {
			m.drainInterrupt()
		}

		// v6 is examined before v4 every iteration; select is level-triggered
		// so a starved v4 socket still makes progress on the next pass (§4.5).
		switch {
		case m.sockV6 >= 0 && fdIsSet(rset, m.sockV6):
			if err := m.handleDatagram(m.sockV6); err != nil {
				return fmt.Errorf("manager: loop: recvmsg v6: %w", err)
			}
		case m.sockV4 >= 0 && fdIsSet(rset, m.sockV4):
			if err := m.handleDatagram(m.sockV4); err != nil {
				return fmt.Errorf("manager: loop: recvmsg v4: %w", err)
			}
		}
	}
	return nil
}

// drainTimers pops and invokes every timer entry due at or before the
// manager's last-observed time, never holding the queue's lock across a
// callback.
func (m *Manager) drainTimers() {
	for {
		e, ok := m.timers.PopIfDue(m.lastObserved)
		if !ok {
			return
		}
		e.Callback(m.lastObserved, e.Ctx)
	}
}

// waitTimeout computes the next select timeout from the timer queue's
// earliest deadline, or nil (block indefinitely) if the queue is empty.
func (m *Manager) waitTimeout() *unix.Timeval {
	deadline, ok := m.timers.Peek()
	if !ok {
		return nil
	}
	d := deadline.Sub(m.lastObserved)
	if d < 0 {
		d = 0
	}
	tv := unix.NsecToTimeval(d.Nanoseconds())
	return &tv
}

// selectReady waits on the v4/v6 sockets and the self-pipe read end,
// returning the number of ready descriptors and the resulting read set.
func (m *Manager) selectReady(timeout *unix.Timeval) (int, *unix.FdSet, error) {
	var rset unix.FdSet
	fdZero(&rset)
	nfds := 0
	for _, fd := range [3]int{m.sockV6, m.sockV4, m.pipeR} {
		if fd < 0 {
			continue
		}
		fdSet(&rset, fd)
		if fd+1 > nfds {
			nfds = fd + 1
		}
	}
	n, err := unix.Select(nfds, &rset, nil, nil, timeout)
	return n, &rset, err
}

// drainInterrupt reads the one-byte wake from the self-pipe and, if it
// matches a registered signal, invokes that signal's user callback
// synchronously on the loop thread. A byte matching no registration (the
// generic wake byte, or an unregistered value) is a no-op.
func (m *Manager) drainInterrupt() {
	var buf [1]byte
	n, err := unix.Read(m.pipeR, buf[:])
	if err != nil || n == 0 {
		return
	}
	if cb, ok := m.sigCallbacks[buf[0]]; ok {
		cb(syscall.Signal(buf[0]))
	}
}

// handleDatagram recvmsg's one datagram plus ancillary data off fd, parses
// it with the framer, and dispatches it to the tube table. recvmsg failures
// other than EAGAIN/EINTR are fatal; everything past that point (bad framing,
// unroutable tube, wrong-state command) is logged and dropped.
func (m *Manager) handleDatagram(fd int) error {
	buf := bufpool.GetDatagram()
	defer bufpool.PutDatagram(buf)
	oob := bufpool.GetOOB()
	defer bufpool.PutOOB(oob)

	n, oobn, _, from, err := unix.Recvmsg(fd, buf, oob, 0)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR {
			return nil
		}
		return err
	}

	if ts, ok := pktinfo.ParseTimestamp(oob[:oobn]); ok {
		m.lastObserved = ts
	} else {
		m.lastObserved = m.clock()
	}

	pi, err := pktinfo.ParseControlMessage(oob[:oobn])
	if err != nil {
		pi = &pktinfo.PktInfo{}
	}

	header, item, perr := wire.Parse(buf[:n])
	if perr != nil {
		if m.logger != nil {
			m.logger.Debugf("manager: loop: dropping malformed datagram from %v: %v", from, perr)
		}
		if m.observer != nil {
			m.observer.ObserveDrop("parse")
		}
		return nil
	}

	if m.observer != nil {
		m.observer.ObserveDatagramIn(uint64(n), byte(header.Command()))
	}

	m.dispatch(fd, header, item, sockaddrToUDPAddr(from), pi)
	return nil
}

// dispatch demuxes a parsed packet to its tube by identifier, creating a new
// responder-side tube on an unrecognized OPEN, and drives the per-tube state
// machine in §3 directly (the manager's loop is the sole dispatch point; see
// the "manager-only receipt" resolution in DESIGN.md).
func (m *Manager) dispatch(fd int, h wire.Header, item *wire.Item, peer net.Addr, pi *pktinfo.PktInfo) {
	t, exists := m.tubes[h.ID]
	if !exists {
		m.acceptNewTube(fd, h, peer, pi)
		return
	}

	switch h.Command() {
	case wire.CmdAck:
		if t.State == tube.StateOpening {
			t.State = tube.StateRunning
			m.fire(Event{Name: EventRunning, Tube: t, Header: &h})
			if m.observer != nil {
				m.observer.ObserveHandshake(uint64(m.clock().Sub(t.OpenedAt()).Nanoseconds()))
			}
		}
	case wire.CmdClose:
		if t.State != tube.StateUnknown {
			t.State = tube.StateUnknown
			m.fire(Event{Name: EventClose, Tube: t, Header: &h})
			if err := m.Remove(t); err != nil && m.logger != nil {
				m.logger.Printf("manager: loop: remove closed tube: %v", err)
			}
		}
		// else: double-close, silently dropped.
	case wire.CmdData:
		if t.State == tube.StateRunning {
			m.fire(Event{Name: EventData, Tube: t, Header: &h, Item: item})
		}
	case wire.CmdOpen:
		// Duplicate OPEN for an already-known identifier: no-op.
	}
}

// acceptNewTube handles an inbound packet for an identifier the table has
// never seen. Only a responder manager receiving OPEN accepts it (§4.5
// step g); anything else is an unroutable drop.
func (m *Manager) acceptNewTube(fd int, h wire.Header, peer net.Addr, pi *pktinfo.PktInfo) {
	if h.Command() != wire.CmdOpen || m.policy&PolicyWillRespond == 0 {
		if m.logger != nil {
			m.logger.Debugf("manager: loop: dropping %s for unknown tube %s", h.Command(), wire.IDToHex(h.ID))
		}
		if m.observer != nil {
			m.observer.ObserveDrop("unknown_tube")
		}
		return
	}

	id := h.ID
	t := tube.Create()
	t.SetInfo(fd, peer, &id)
	t.SetLocal(pi)

	if err := m.Add(t); err != nil {
		if m.logger != nil {
			m.logger.Printf("manager: loop: add responder tube: %v", err)
		}
		return
	}
	if err := t.Ack(id, peer); err != nil {
		if m.logger != nil {
			m.logger.Printf("manager: loop: send ack to %v: %v", peer, err)
		}
		return
	}
	if m.observer != nil {
		m.observer.ObserveHandshake(0)
	}
}

// fdZero, fdSet, and fdIsSet reimplement the classic FD_ZERO/FD_SET/FD_ISSET
// macros over unix.FdSet's bitmap, since x/sys/unix exposes only the raw
// struct.
func fdZero(set *unix.FdSet) {
	for i := range set.Bits {
		set.Bits[i] = 0
	}
}

func fdSet(set *unix.FdSet, fd int) {
	set.Bits[fd/64] |= 1 << (uint(fd) % 64)
}

func fdIsSet(set *unix.FdSet, fd int) bool {
	return set.Bits[fd/64]&(1<<(uint(fd)%64)) != 0
}
