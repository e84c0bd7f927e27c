// Package constants holds shared tuning knobs for the SPUD endpoint core.
package constants

import "time"

// Wire format sizes.
const (
	// HeaderSize is the fixed size of a SPUD packet header in bytes:
	// 4-byte magic, 8-byte tube identifier, 1-byte flags.
	HeaderSize = 13

	// IDSize is the length in bytes of a tube identifier.
	IDSize = 8
)

// Default manager tuning.
const (
	// DefaultResponderPort is the port manager.DefaultConfig binds; 0 means
	// "let the kernel assign a port", which does not by itself enable the
	// responder policy.
	DefaultResponderPort = 0

	// RecvBufferSize is the size of the scratch buffer used to recvmsg a
	// single UDP datagram. SPUD payloads are a single unfragmented
	// datagram, so this comfortably covers any realistic MTU.
	RecvBufferSize = 2048

	// RecvOOBBufferSize sizes the ancillary-data buffer for pktinfo plus a
	// receive timestamp control message.
	RecvOOBBufferSize = 256
)

// Self-pipe interrupt bytes. Spec reserves non-positive sentinel values for
// a generic wake and small positive values for signal numbers (§9 open
// questions).
const (
	// WakeByte is written to the self-pipe for a generic, non-signal wake
	// (timer scheduling, Stop, or an explicit Interrupt call).
	WakeByte byte = 0
)

// GettimeofdayFallbackInterval is a one-second staleness bound for the cached
// last-observed time. The manager loop does not read it: the select timeout
// derives from the timer queue alone, and with no timer pending the loop
// blocks without a timeout, so Now() is not refreshed until a datagram
// arrives or a timer is scheduled.
const GettimeofdayFallbackInterval = 1 * time.Second
