// Package tube implements a single SPUD tube: its identity, peer address,
// local-interface pktinfo, and the small state machine that drives the
// open/acknowledge/data/close handshake.
package tube

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/go-spud/spud-go/internal/pktinfo"
	"github.com/go-spud/spud-go/internal/wire"
)

// State is one of the tube's lifecycle states.
type State int

const (
	// StateStart is reserved; a tube must never be observed in this state
	// once created.
	StateStart State = iota
	StateUnknown
	StateOpening
	StateRunning
	// StateResuming is reserved for future use.
	StateResuming
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "START"
	case StateUnknown:
		return "UNKNOWN"
	case StateOpening:
		return "OPENING"
	case StateRunning:
		return "RUNNING"
	case StateResuming:
		return "RESUMING"
	default:
		return "INVALID"
	}
}

// Sentinel errors surfaced by send/lifecycle operations, returned wrapped
// with fmt.Errorf the way the teacher's internal packages do. Neither the
// manager nor the public facade translates them into *spud.Error; callers
// match them with errors.Is.
var (
	ErrNoPeer       = errors.New("tube: no peer")
	ErrDetached     = errors.New("tube: not attached to a sender")
	ErrInvalidState = errors.New("tube: invalid state for operation")
)

// Sender is the manager's low-level datagram-write capability, injected into
// a tube at Add time. It keeps the tube from holding a full back-reference
// to its owning manager — only the one capability it actually needs.
type Sender interface {
	// SendTo writes buffers as a single scatter-gather datagram to peer,
	// attaching oob as ancillary data if non-empty.
	SendTo(peer net.Addr, oob []byte, buffers ...[]byte) error
}

// Tube is one logical bidirectional conversation multiplexed over a
// manager's UDP socket pair.
type Tube struct {
	ID       wire.ID
	Peer     net.Addr
	Local    *pktinfo.PktInfo
	Socket   int // family-selected fd, informational; the manager owns the real fd
	State    State
	UserData any

	sender   Sender
	openedAt time.Time
}

// Create allocates a new, unattached tube in state UNKNOWN.
func Create() *Tube {
	return &Tube{State: StateUnknown, Socket: -1}
}

// Destroy performs a best-effort close (ignoring any error) if the tube is
// RUNNING, then leaves it ready for garbage collection.
func (t *Tube) Destroy() {
	if t.State == StateRunning {
		_ = t.Close()
	}
}

// SetInfo updates the non-zero-value arguments. peer and id are applied only
// when non-nil/non-zero; socket is applied only when non-negative.
func (t *Tube) SetInfo(socket int, peer net.Addr, id *wire.ID) {
	if socket >= 0 {
		t.Socket = socket
	}
	if peer != nil {
		t.Peer = peer
	}
	if id != nil {
		t.ID = *id
	}
}

// SetLocal takes ownership of a duplicate of info as the tube's local
// source-address hint.
func (t *Tube) SetLocal(info *pktinfo.PktInfo) {
	if info == nil {
		t.Local = nil
		return
	}
	t.Local = info.Duplicate()
}

// SetSender attaches the manager's write capability; called by the manager's
// Add, and by OpenTube before it sends OPEN.
func (t *Tube) SetSender(s Sender) {
	t.sender = s
}

// Send assembles the 13-byte header and scatter-writes header+chunks via the
// attached Sender, attaching the tube's local pktinfo as ancillary data if
// present.
func (t *Tube) Send(cmd wire.Command, adec, pdec bool, chunks ...[]byte) error {
	if t.Peer == nil {
		return fmt.Errorf("tube %s: %w", wire.IDToHex(t.ID), ErrNoPeer)
	}
	if t.sender == nil {
		return fmt.Errorf("tube %s: %w", wire.IDToHex(t.ID), ErrDetached)
	}

	var flags byte
	flags = wire.SetCommand(flags, cmd)
	flags = wire.SetADEC(flags, adec)
	flags = wire.SetPDEC(flags, pdec)

	header := wire.EncodeHeader(t.ID, flags)

	var oob []byte
	if t.Local != nil && t.Local.IsFull() {
		oob = t.Local.Cmsg()
	}

	buffers := make([][]byte, 0, len(chunks)+1)
	buffers = append(buffers, header)
	buffers = append(buffers, chunks...)

	if err := t.sender.SendTo(t.Peer, oob, buffers...); err != nil {
		return fmt.Errorf("tube %s: send: %w", wire.IDToHex(t.ID), err)
	}
	return nil
}

// SendData sends a DATA packet whose CBOR payload is a single byte string;
// a zero-length payload sends a DATA packet with no CBOR body at all.
func (t *Tube) SendData(payload []byte) error {
	if len(payload) == 0 {
		return t.Send(wire.CmdData, false, false)
	}
	enc, err := wire.Encode(wire.NewBytes(payload))
	if err != nil {
		return fmt.Errorf("tube %s: encode data: %w", wire.IDToHex(t.ID), err)
	}
	return t.Send(wire.CmdData, false, false, enc)
}

// SendPDec sends a DATA packet with the PDEC bit set and ADEC equal to
// reflect, carrying item as its CBOR payload.
func (t *Tube) SendPDec(item *wire.Item, reflect bool) error {
	enc, err := wire.Encode(item)
	if err != nil {
		return fmt.Errorf("tube %s: encode pdec: %w", wire.IDToHex(t.ID), err)
	}
	return t.Send(wire.CmdData, reflect, true, enc)
}

// Open records peer, generates a fresh identifier, transitions
// UNKNOWN→OPENING, and sends OPEN.
func (t *Tube) Open(peer net.Addr) error {
	if t.State != StateUnknown {
		return fmt.Errorf("tube %s: open from %s: %w", wire.IDToHex(t.ID), t.State, ErrInvalidState)
	}
	id, err := wire.NewID()
	if err != nil {
		return fmt.Errorf("tube: open: %w", err)
	}
	t.ID = id
	t.Peer = peer
	t.State = StateOpening
	t.openedAt = time.Now()
	if err := t.Send(wire.CmdOpen, false, false); err != nil {
		return err
	}
	return nil
}

// OpenedAt returns the time Open sent this tube's OPEN packet, the zero
// value if Open was never called (e.g. a responder-side tube).
func (t *Tube) OpenedAt() time.Time {
	return t.openedAt
}

// Ack adopts id and peer, transitions to RUNNING, and sends ACK. Used by the
// manager on responder-side tube creation.
func (t *Tube) Ack(id wire.ID, peer net.Addr) error {
	t.ID = id
	t.Peer = peer
	t.State = StateRunning
	return t.Send(wire.CmdAck, false, false)
}

// Close transitions to UNKNOWN and sends CLOSE.
func (t *Tube) Close() error {
	t.State = StateUnknown
	return t.Send(wire.CmdClose, false, false)
}
