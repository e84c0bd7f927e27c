// Package wire implements the SPUD wire format: the fixed 13-byte header
// and the CBOR subset carried as its trailing payload.
package wire

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/go-spud/spud-go/internal/constants"
)

// Magic is the four-byte cookie that opens every SPUD packet.
var Magic = [4]byte{0xD8, 0x00, 0x00, 0xD8}

// ID is an 8-byte tube identifier.
type ID [constants.IDSize]byte

// Command is the two-bit command carried in the top of the flags byte.
type Command byte

const (
	CmdData  Command = 0x00
	CmdOpen  Command = 0x40
	CmdClose Command = 0x80
	CmdAck   Command = 0xC0
)

const (
	cmdMask  byte = 0xC0
	flagADEC byte = 0x20
	flagPDEC byte = 0x10
)

// String renders a command as its wire-format name, for logging.
func (c Command) String() string {
	switch c {
	case CmdData:
		return "DATA"
	case CmdOpen:
		return "OPEN"
	case CmdClose:
		return "CLOSE"
	case CmdAck:
		return "ACK"
	default:
		return fmt.Sprintf("CMD(%#x)", byte(c))
	}
}

// Header is a decoded 13-byte SPUD header.
type Header struct {
	ID    ID
	Flags byte
}

// Command extracts the command bits from the header's flags.
func (h Header) Command() Command {
	return Command(h.Flags & cmdMask)
}

// ADEC reports whether the application-to-path declaration bit is set.
func (h Header) ADEC() bool {
	return h.Flags&flagADEC != 0
}

// PDEC reports whether the path-to-application declaration bit is set.
func (h Header) PDEC() bool {
	return h.Flags&flagPDEC != 0
}

// IsSpud reports whether b is long enough to hold a SPUD header and begins
// with the magic cookie.
func IsSpud(b []byte) bool {
	if len(b) < constants.HeaderSize {
		return false
	}
	return b[0] == Magic[0] && b[1] == Magic[1] && b[2] == Magic[2] && b[3] == Magic[3]
}

// SetCommand returns flags with its command bits replaced by cmd.
func SetCommand(flags byte, cmd Command) byte {
	return (flags &^ cmdMask) | byte(cmd)
}

// SetADEC returns flags with the ADEC bit set or cleared.
func SetADEC(flags byte, on bool) byte {
	if on {
		return flags | flagADEC
	}
	return flags &^ flagADEC
}

// SetPDEC returns flags with the PDEC bit set or cleared.
func SetPDEC(flags byte, on bool) byte {
	if on {
		return flags | flagPDEC
	}
	return flags &^ flagPDEC
}

// EncodeHeader writes the 13-byte magic+id+flags header.
func EncodeHeader(id ID, flags byte) []byte {
	buf := make([]byte, constants.HeaderSize)
	copy(buf[0:4], Magic[:])
	copy(buf[4:12], id[:])
	buf[12] = flags
	return buf
}

// Parse validates and decodes a SPUD packet: the fixed header, and, if any
// bytes follow, exactly one trailing CBOR item.
//
// A packet of exactly HeaderSize bytes parses with a nil payload, not an
// error. Reserved flag bits are ignored on receipt.
func Parse(b []byte) (Header, *Item, error) {
	if len(b) < constants.HeaderSize {
		return Header{}, nil, &CodecError{Op: "Parse", Code: "invalid_arg", Msg: "packet shorter than header"}
	}
	if !IsSpud(b) {
		return Header{}, nil, &CodecError{Op: "Parse", Code: "bad_format", Msg: "bad magic cookie"}
	}
	var h Header
	copy(h.ID[:], b[4:12])
	h.Flags = b[12]

	rest := b[constants.HeaderSize:]
	if len(rest) == 0 {
		return h, nil, nil
	}
	item, err := Decode(rest)
	if err != nil {
		return Header{}, nil, err
	}
	return h, item, nil
}

// RandRead is the entropy source behind NewID. Tests substitute a
// deterministic sequence here (see the root package's FixedIDSource) rather
// than drawing from crypto/rand, per §8's "injected via a hook" property.
var RandRead = rand.Read

// NewID draws a fresh 8-byte identifier from a cryptographic RNG.
func NewID() (ID, error) {
	var id ID
	if _, err := RandRead(id[:]); err != nil {
		return ID{}, &CodecError{Op: "NewID", Code: "no_entropy", Msg: err.Error(), Inner: err}
	}
	return id, nil
}

// IDToHex renders an identifier as 16 lowercase hex characters.
func IDToHex(id ID) string {
	return hex.EncodeToString(id[:])
}

// HexToID parses a 16-character hex string back into an identifier.
func HexToID(s string) (ID, error) {
	var id ID
	b, err := hex.DecodeString(s)
	if err != nil {
		return ID{}, &CodecError{Op: "HexToID", Code: "invalid_arg", Msg: err.Error(), Inner: err}
	}
	if len(b) != constants.IDSize {
		return ID{}, &CodecError{Op: "HexToID", Code: "invalid_arg", Msg: fmt.Sprintf("want %d bytes, got %d", constants.IDSize, len(b))}
	}
	copy(id[:], b)
	return id, nil
}
