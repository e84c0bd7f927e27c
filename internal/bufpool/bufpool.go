// Package bufpool provides pooled scratch buffers for the manager's recvmsg
// hot path, avoiding an allocation per datagram.
package bufpool

import (
	"sync"

	"github.com/go-spud/spud-go/internal/constants"
)

// Two buckets cover the loop's entire scratch-buffer need: one sized for a
// single UDP datagram, one sized for the ancillary-data (pktinfo + receive
// timestamp) buffer that rides alongside it.
var (
	datagramPool = sync.Pool{
		New: func() any {
			b := make([]byte, constants.RecvBufferSize)
			return &b
		},
	}
	oobPool = sync.Pool{
		New: func() any {
			b := make([]byte, constants.RecvOOBBufferSize)
			return &b
		},
	}
)

// GetDatagram returns a pooled buffer of exactly constants.RecvBufferSize
// bytes. Caller must call PutDatagram when done.
func GetDatagram() []byte {
	return *datagramPool.Get().(*[]byte)
}

// PutDatagram returns a buffer obtained from GetDatagram to the pool.
func PutDatagram(buf []byte) {
	if cap(buf) != constants.RecvBufferSize {
		return
	}
	buf = buf[:constants.RecvBufferSize]
	datagramPool.Put(&buf)
}

// GetOOB returns a pooled buffer of exactly constants.RecvOOBBufferSize
// bytes. Caller must call PutOOB when done.
func GetOOB() []byte {
	return *oobPool.Get().(*[]byte)
}

// PutOOB returns a buffer obtained from GetOOB to the pool.
func PutOOB(buf []byte) {
	if cap(buf) != constants.RecvOOBBufferSize {
		return
	}
	buf = buf[:constants.RecvOOBBufferSize]
	oobPool.Put(&buf)
}
