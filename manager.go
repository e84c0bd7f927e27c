// Package spud is the public API for the SPUD tube-multiplexing substrate:
// construct a Manager, open and accept tubes, bind its six events, and run
// its single-threaded loop. The protocol logic lives in this module's
// internal packages; this file is their public entry point, the same role
// the teacher's own root-package backend.go plays over its internal/queue
// and internal/ctrl.
package spud

import (
	"github.com/go-spud/spud-go/internal/interfaces"
	"github.com/go-spud/spud-go/internal/manager"
	"github.com/go-spud/spud-go/internal/tube"
)

// Manager owns a dual-stack UDP socket pair, the tube table, the event
// dispatcher, the timer queue, and the self-pipe. Construct one with New.
type Manager = manager.Manager

// Tube is one logical bidirectional conversation multiplexed over a
// manager's socket pair.
type Tube = tube.Tube

// Config carries a Manager's construction-time dependencies.
type Config = manager.Config

// Policy is a bitset of manager behaviors.
type Policy = manager.Policy

// PolicyWillRespond makes a manager accept inbound OPENs for unknown
// identifiers by creating a responder-side tube and replying with ACK.
const PolicyWillRespond = manager.PolicyWillRespond

// EventName identifies one of the manager's six well-known events.
type EventName = manager.EventName

const (
	EventLoopStart = manager.EventLoopStart
	EventRunning   = manager.EventRunning
	EventData      = manager.EventData
	EventClose     = manager.EventClose
	EventAdd       = manager.EventAdd
	EventRemove    = manager.EventRemove
)

// Event, EventCallback, and SignalCallback re-export the manager's event
// shape so callers never need to import internal/manager directly.
type (
	Event          = manager.Event
	EventCallback  = manager.EventCallback
	SignalCallback = manager.SignalCallback
)

// Logger and Observer are the pluggable hooks a Config accepts.
type (
	Logger   = interfaces.Logger
	Observer = interfaces.Observer
)

// State is a tube's lifecycle state.
type State = tube.State

const (
	StateUnknown  = tube.StateUnknown
	StateOpening  = tube.StateOpening
	StateRunning  = tube.StateRunning
	StateResuming = tube.StateResuming
)

// PathDeclaration and BuildPathDeclaration re-export the PDEC payload
// builder (§6); see internal/tube/pathdecl.go.
type PathDeclaration = tube.PathDeclaration

// BuildPathDeclaration renders d as the *wire.Item a Tube's SendPDec (or
// SendPathDeclaration) encodes onto the trailing CBOR.
func BuildPathDeclaration(d PathDeclaration) *Item {
	return tube.BuildPathDeclaration(d)
}

// New constructs a Manager, opening its dual-stack sockets and self-pipe.
// All setup errors abort construction; no resources leak on a failed New.
func New(cfg Config) (*Manager, error) {
	return manager.New(cfg)
}

// DefaultConfig returns a Config for an ephemeral-port, non-responder,
// unlogged, unobserved manager.
func DefaultConfig() Config {
	return manager.DefaultConfig()
}

// Sentinel errors surfaced by Manager operations.
var (
	ErrInvalidArg    = manager.ErrInvalidArg
	ErrInvalidState  = manager.ErrInvalidState
	ErrNotFound      = manager.ErrNotFound
	ErrDuplicateTube = manager.ErrDuplicateTube
	ErrUnknownEvent  = manager.ErrUnknownEvent
)
