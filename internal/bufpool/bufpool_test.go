package bufpool

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-spud/spud-go/internal/constants"
)

func TestGetDatagramSize(t *testing.T) {
	b := GetDatagram()
	require.Len(t, b, constants.RecvBufferSize)
	PutDatagram(b)
}

func TestGetOOBSize(t *testing.T) {
	b := GetOOB()
	require.Len(t, b, constants.RecvOOBBufferSize)
	PutOOB(b)
}

func TestPutDatagramRoundTrip(t *testing.T) {
	b := GetDatagram()
	b[0] = 0xAB
	PutDatagram(b)

	b2 := GetDatagram()
	require.Len(t, b2, constants.RecvBufferSize)
}

func TestPutDatagramRejectsWrongCapacity(t *testing.T) {
	// Must not panic or corrupt the pool when handed a buffer of the wrong
	// size (defensive against caller error).
	PutDatagram(make([]byte, 4))
	b := GetDatagram()
	require.Len(t, b, constants.RecvBufferSize)
}
