package spud

import "github.com/go-spud/spud-go/internal/wire"

// ID is an 8-byte tube identifier.
type ID = wire.ID

// Item is a decoded CBOR value in the subset this module understands; see
// internal/wire/item.go for its constructors (NewMap, NewText, ...).
type Item = wire.Item

// Command is the two-bit command carried in a SPUD header's flags byte.
type Command = wire.Command

const (
	CmdData  = wire.CmdData
	CmdOpen  = wire.CmdOpen
	CmdClose = wire.CmdClose
	CmdAck   = wire.CmdAck
)

// Header is a decoded 13-byte SPUD header.
type Header = wire.Header

// IsSpud reports whether b is long enough to hold a SPUD header and begins
// with the magic cookie (§4.1).
func IsSpud(b []byte) bool {
	return wire.IsSpud(b)
}

// Parse validates and decodes a SPUD packet: the fixed header, and, if any
// bytes follow, exactly one trailing CBOR item.
func Parse(b []byte) (Header, *Item, error) {
	return wire.Parse(b)
}

// EncodeHeader writes the 13-byte magic+id+flags header.
func EncodeHeader(id ID, flags byte) []byte {
	return wire.EncodeHeader(id, flags)
}

// SetCommand, SetADEC, and SetPDEC are bit operations over a header's flags
// byte.
func SetCommand(flags byte, cmd Command) byte { return wire.SetCommand(flags, cmd) }
func SetADEC(flags byte, on bool) byte         { return wire.SetADEC(flags, on) }
func SetPDEC(flags byte, on bool) byte         { return wire.SetPDEC(flags, on) }

// NewID draws a fresh 8-byte identifier from a cryptographic RNG (or the
// test hook installed via FixedIDSource.Install).
func NewID() (ID, error) {
	return wire.NewID()
}

// IDToHex renders an identifier as 16 lowercase hex characters.
func IDToHex(id ID) string {
	return wire.IDToHex(id)
}

// HexToID parses a 16-character hex string back into an identifier.
func HexToID(s string) (ID, error) {
	return wire.HexToID(s)
}
