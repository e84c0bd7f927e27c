// Package interfaces provides internal interface definitions shared across
// the SPUD endpoint core. These are kept separate from the public package
// to avoid circular imports between the manager/tube packages and the root.
package interfaces

// Logger is the optional logging sink used throughout the loop and setup
// paths. *internal/logging.Logger, as returned by logging.NewLogger,
// satisfies it.
type Logger interface {
	Printf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// Observer receives metrics callbacks from the manager loop and tube send
// paths. Implementations must be thread-safe: ObserveDatagramIn and friends
// are called from the loop thread, but ObserveDatagramOut may be called from
// any thread that calls a tube's send operations.
type Observer interface {
	// ObserveDatagramIn is called once per datagram accepted by the loop,
	// after framer parse succeeds.
	ObserveDatagramIn(bytes uint64, cmd byte)
	// ObserveDatagramOut is called once per datagram written by a tube send.
	ObserveDatagramOut(bytes uint64, cmd byte)
	// ObserveHandshake is called when a tube reaches RUNNING, with the
	// elapsed time since OPEN was sent or received (0 for responder-side
	// immediate accept).
	ObserveHandshake(latencyNs uint64)
	// ObserveDrop is called for a malformed or unroutable datagram.
	ObserveDrop(reason string)
	// ObserveTubeCount is called whenever the tube table size changes.
	ObserveTubeCount(count uint32)
}
