package tube

import "github.com/go-spud/spud-go/internal/wire"

// PathDeclaration assembles the CBOR map a PDEC payload carries (§6):
// ipaddr, token, and url are required; every other field is applied only
// when non-zero/non-empty, so a caller can build a minimal declaration by
// leaving the optional fields unset.
type PathDeclaration struct {
	IPAddr []byte
	Token  []byte
	URL    string

	Warning                   map[string]string
	ICMP                      *bool
	ICMPType                  *uint64
	ICMPCode                  *uint64
	TranslatedExternalAddress []byte
	TranslatedExternalPort    *uint64
	InternalAddress           []byte
	InternalPort              *uint64
	InactivityTimer           *uint64
	Description               string
	Version                   string
	Caps                      []string
	TTL                       *uint64
	MTU                       *uint64
	MaxByteRate               *uint64
	MaxPacketRate             *uint64
	Latency                   *uint64
}

// BuildPathDeclaration renders a PathDeclaration as the wire.Item map that
// SendPDec encodes onto the trailing CBOR.
func BuildPathDeclaration(d PathDeclaration) *wire.Item {
	m := wire.NewMap()
	m.Set(wire.NewText("ipaddr"), wire.NewBytes(d.IPAddr))
	m.Set(wire.NewText("token"), wire.NewBytes(d.Token))
	m.Set(wire.NewText("url"), wire.NewText(d.URL))

	if len(d.Warning) > 0 {
		warn := wire.NewMap()
		for lang, msg := range d.Warning {
			warn.Set(wire.NewText(lang), wire.NewText(msg))
		}
		m.Set(wire.NewText("warning"), warn)
	}
	if d.ICMP != nil {
		m.Set(wire.NewText("icmp"), wire.NewBool(*d.ICMP))
	}
	if d.ICMPType != nil {
		m.Set(wire.NewText("icmp-type"), wire.NewUint(*d.ICMPType))
	}
	if d.ICMPCode != nil {
		m.Set(wire.NewText("icmp-code"), wire.NewUint(*d.ICMPCode))
	}
	if len(d.TranslatedExternalAddress) > 0 {
		m.Set(wire.NewText("translated-external-address"), wire.NewBytes(d.TranslatedExternalAddress))
	}
	if d.TranslatedExternalPort != nil {
		m.Set(wire.NewText("translated-external-port"), wire.NewUint(*d.TranslatedExternalPort))
	}
	if len(d.InternalAddress) > 0 {
		m.Set(wire.NewText("internal-address"), wire.NewBytes(d.InternalAddress))
	}
	if d.InternalPort != nil {
		m.Set(wire.NewText("internal-port"), wire.NewUint(*d.InternalPort))
	}
	if d.InactivityTimer != nil {
		m.Set(wire.NewText("inactivity-timer"), wire.NewUint(*d.InactivityTimer))
	}
	if d.Description != "" {
		m.Set(wire.NewText("description"), wire.NewText(d.Description))
	}
	if d.Version != "" {
		m.Set(wire.NewText("version"), wire.NewText(d.Version))
	}
	if len(d.Caps) > 0 {
		items := make([]*wire.Item, len(d.Caps))
		for i, c := range d.Caps {
			items[i] = wire.NewText(c)
		}
		m.Set(wire.NewText("caps"), wire.NewArray(items...))
	}
	if d.TTL != nil {
		m.Set(wire.NewText("ttl"), wire.NewUint(*d.TTL))
	}
	if d.MTU != nil {
		m.Set(wire.NewText("mtu"), wire.NewUint(*d.MTU))
	}
	if d.MaxByteRate != nil {
		m.Set(wire.NewText("max-byte-rate"), wire.NewUint(*d.MaxByteRate))
	}
	if d.MaxPacketRate != nil {
		m.Set(wire.NewText("max-packet-rate"), wire.NewUint(*d.MaxPacketRate))
	}
	if d.Latency != nil {
		m.Set(wire.NewText("latency"), wire.NewUint(*d.Latency))
	}
	return m
}

// SendPathDeclaration sends d as a PDEC payload, with ADEC equal to reflect.
func (t *Tube) SendPathDeclaration(d PathDeclaration, reflect bool) error {
	return t.SendPDec(BuildPathDeclaration(d), reflect)
}
