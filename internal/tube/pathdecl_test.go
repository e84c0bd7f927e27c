package tube

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-spud/spud-go/internal/wire"
)

func TestBuildPathDeclarationRequiredFields(t *testing.T) {
	item := BuildPathDeclaration(PathDeclaration{
		IPAddr: []byte{127, 0, 0, 1},
		Token:  []byte("tok"),
		URL:    "https://example.test/",
	})

	ip, ok := item.GetText("ipaddr")
	require.True(t, ok)
	require.Equal(t, []byte{127, 0, 0, 1}, ip.Bytes)

	tok, ok := item.GetText("token")
	require.True(t, ok)
	require.Equal(t, []byte("tok"), tok.Bytes)

	url, ok := item.GetText("url")
	require.True(t, ok)
	require.Equal(t, "https://example.test/", url.Text())

	_, ok = item.GetText("description")
	require.False(t, ok, "optional fields left unset must not appear")
}

func TestBuildPathDeclarationOptionalFields(t *testing.T) {
	ttl := uint64(64)
	icmp := true
	item := BuildPathDeclaration(PathDeclaration{
		IPAddr:      []byte{10, 0, 0, 1},
		Token:       []byte("tok"),
		URL:         "https://example.test/",
		Description: "primary path",
		Caps:        []string{"reflect", "reprobe"},
		TTL:         &ttl,
		ICMP:        &icmp,
		Warning:     map[string]string{"en": "path degraded"},
	})

	desc, ok := item.GetText("description")
	require.True(t, ok)
	require.Equal(t, "primary path", desc.Text())

	ttlItem, ok := item.GetText("ttl")
	require.True(t, ok)
	require.Equal(t, uint64(64), ttlItem.Uint)

	icmpItem, ok := item.GetText("icmp")
	require.True(t, ok)
	require.True(t, icmpItem.Bool)

	caps, ok := item.GetText("caps")
	require.True(t, ok)
	require.Len(t, caps.Items, 2)
	require.Equal(t, "reflect", caps.Items[0].Text())

	warn, ok := item.GetText("warning")
	require.True(t, ok)
	msg, ok := warn.GetText("en")
	require.True(t, ok)
	require.Equal(t, "path degraded", msg.Text())
}

func TestSendPathDeclarationRoundTripsThroughWire(t *testing.T) {
	tb := Create()
	sender := &fakeSender{}
	tb.SetSender(sender)
	tb.ID = wire.ID{1, 2, 3, 4, 5, 6, 7, 8}
	tb.Peer = mustAddr(t, "198.51.100.1:4433")
	tb.State = StateRunning

	require.NoError(t, tb.SendPathDeclaration(PathDeclaration{
		IPAddr: []byte{198, 51, 100, 1},
		Token:  []byte("abc"),
		URL:    "https://example.test/",
	}, true))

	require.Len(t, sender.sent, 1)
	sent := sender.sent[0]
	header, item, err := wire.Parse(append(sent.buffers[0], sent.buffers[1]...))
	require.NoError(t, err)
	require.Equal(t, wire.CmdData, header.Command())
	require.True(t, header.ADEC())
	require.True(t, header.PDEC())

	url, ok := item.GetText("url")
	require.True(t, ok)
	require.Equal(t, "https://example.test/", url.Text())
}
