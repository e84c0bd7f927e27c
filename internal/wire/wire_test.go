package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsSpud(t *testing.T) {
	good := []byte{0xD8, 0x00, 0x00, 0xD8, 1, 2, 3, 4, 5, 6, 7, 8, 0}
	require.True(t, IsSpud(good))

	short := good[:12]
	require.False(t, IsSpud(short))

	badMagic := make([]byte, 13)
	require.False(t, IsSpud(badMagic))
}

func TestParseMinimalPacket(t *testing.T) {
	// D8 00 00 D8 01 02 03 04 05 06 07 08 00 A1 00 41 61
	b := []byte{
		0xD8, 0x00, 0x00, 0xD8,
		0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08,
		0x00,
		0xA1, 0x00, 0x41, 0x61,
	}
	h, item, err := Parse(b)
	require.NoError(t, err)
	require.Equal(t, CmdData, h.Command())
	require.False(t, h.ADEC())
	require.False(t, h.PDEC())
	require.Equal(t, ID{1, 2, 3, 4, 5, 6, 7, 8}, h.ID)

	require.NotNil(t, item)
	require.Equal(t, KindMap, item.Kind)
	val, ok := item.GetUint(0)
	require.True(t, ok)
	require.Equal(t, KindBytes, val.Kind)
	require.Equal(t, []byte("a"), val.Bytes)
}

func TestParseShortPacketRejected(t *testing.T) {
	b := []byte{0xD8, 0x00, 0x00, 0xD8, 1, 2, 3, 4, 5, 6, 7, 8}
	require.False(t, IsSpud(b))
	_, _, err := Parse(b)
	require.Error(t, err)
	var ce *CodecError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, "invalid_arg", ce.Code)
}

func TestParseBadMagicRejected(t *testing.T) {
	b := make([]byte, 13)
	_, _, err := Parse(b)
	require.Error(t, err)
	var ce *CodecError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, "bad_format", ce.Code)
}

func TestParseNoPayload(t *testing.T) {
	id := ID{1, 2, 3, 4, 5, 6, 7, 8}
	b := EncodeHeader(id, byte(CmdOpen))
	h, item, err := Parse(b)
	require.NoError(t, err)
	require.Nil(t, item)
	require.Equal(t, CmdOpen, h.Command())
}

func TestSetBits(t *testing.T) {
	var flags byte
	flags = SetCommand(flags, CmdClose)
	flags = SetADEC(flags, true)
	flags = SetPDEC(flags, true)
	require.Equal(t, CmdClose, Command(flags&0xC0))
	require.Equal(t, byte(0xB0), flags)

	flags = SetADEC(flags, false)
	require.Equal(t, byte(0x90), flags)
}

func TestNewIDUnique(t *testing.T) {
	a, err := NewID()
	require.NoError(t, err)
	b, err := NewID()
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestIDHexRoundTrip(t *testing.T) {
	id := ID{0xde, 0xad, 0xbe, 0xef, 0xca, 0xfe, 0xf0, 0x0d}
	hexStr := IDToHex(id)
	require.Equal(t, "deadbeefcafef00d", hexStr)

	back, err := HexToID(hexStr)
	require.NoError(t, err)
	require.Equal(t, id, back)

	_, err = HexToID("not-hex")
	require.Error(t, err)

	_, err = HexToID("deadbeef")
	require.Error(t, err)
}

func TestCBORRoundTripDefiniteLength(t *testing.T) {
	cases := []*Item{
		NewUint(0),
		NewUint(23),
		NewUint(24),
		NewUint(1000),
		NewUint(1 << 40),
		NewInt(-1),
		NewInt(-1000),
		NewBytes([]byte("hello")),
		NewText("hello"),
		NewArray(NewUint(1), NewUint(2), NewUint(3)),
		NewMap().Set(NewUint(0), NewBytes([]byte("a"))).Set(NewText("ipaddr"), NewBytes([]byte{127, 0, 0, 1})),
		NewBool(true),
		NewBool(false),
		NewNull(),
		NewUndefined(),
		NewFloat64(3.14159),
		NewFloat32(1.5),
		{Kind: KindTag, Uint: 55799, Items: []*Item{NewUint(42)}},
	}

	for _, item := range cases {
		enc, err := Encode(item)
		require.NoError(t, err)

		dec, err := Decode(enc)
		require.NoError(t, err)
		require.Equal(t, item.Kind, dec.Kind)

		reenc, err := Encode(dec)
		require.NoError(t, err)
		require.True(t, bytes.Equal(enc, reenc), "re-encoding must be byte-identical for definite-length input")
	}
}

func TestCBORIndefiniteLengthArray(t *testing.T) {
	// 0x9f 01 02 03 0xff -- indefinite array [1,2,3]
	b := []byte{0x9f, 0x01, 0x02, 0x03, 0xff}
	item, err := Decode(b)
	require.NoError(t, err)
	require.Equal(t, KindArray, item.Kind)
	require.True(t, item.Indefinite)
	require.Len(t, item.Items, 3)
}

func TestCBORIndefiniteLengthTextString(t *testing.T) {
	// 0x7f 62 "el" 62 "lo" 0xff -- indefinite text "el"+"lo"
	b := []byte{0x7f, 0x62, 'e', 'l', 0x62, 'l', 'o', 0xff}
	item, err := Decode(b)
	require.NoError(t, err)
	require.Equal(t, KindText, item.Kind)
	require.Equal(t, "ello", item.Text())
}

func TestCBOROddSizeIndefMap(t *testing.T) {
	// 0xbf 00 01 0xff -- map with a dangling key, no value
	b := []byte{0xbf, 0x00, 0x01, 0xff}
	_, err := Decode(b)
	require.Error(t, err)
	var ce *CodecError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, ErrOddSizeIndefMap, ce.CBOR)
}

func TestCBORBreakOutsideIndef(t *testing.T) {
	b := []byte{0xff}
	_, err := Decode(b)
	require.Error(t, err)
	var ce *CodecError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, ErrBreakOutsideIndef, ce.CBOR)
}

func TestCBORReservedAI(t *testing.T) {
	b := []byte{0x1C} // major 0, ai 28
	_, err := Decode(b)
	require.Error(t, err)
	var ce *CodecError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, ErrReservedAI, ce.CBOR)
}

func TestCBORMTUndefForIndefInteger(t *testing.T) {
	b := []byte{0x1F} // major 0, ai 31
	_, err := Decode(b)
	require.Error(t, err)
	var ce *CodecError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, ErrMTUndefForIndef, ce.CBOR)
}

func TestCBORWrongNestingInIndefString(t *testing.T) {
	// 0x7f (indefinite text) followed by a byte-string chunk (major 2) -- wrong type.
	b := []byte{0x7f, 0x41, 'a', 0xff}
	_, err := Decode(b)
	require.Error(t, err)
	var ce *CodecError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, ErrWrongNestingInIndefString, ce.CBOR)
}

func TestCBOROutOfData(t *testing.T) {
	b := []byte{0x18} // ai 24 needs one more byte
	_, err := Decode(b)
	require.Error(t, err)
	var ce *CodecError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, ErrOutOfData, ce.CBOR)
}

func TestCBORNotAllDataConsumed(t *testing.T) {
	b := []byte{0x01, 0x02} // one item (uint 1) followed by trailing byte
	_, err := Decode(b)
	require.Error(t, err)
	var ce *CodecError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, ErrNotAllDataConsumed, ce.CBOR)
}
