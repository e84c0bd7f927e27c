package wire

// Kind discriminates the CBOR subset this codec understands.
type Kind uint8

const (
	KindUint Kind = iota
	KindNegInt
	KindBytes
	KindText
	KindArray
	KindMap
	KindTag
	KindBool
	KindNull
	KindUndefined
	KindSimple
	KindFloat
)

// Pair is one key/value entry of a CBOR map, in encounter order.
type Pair struct {
	Key   *Item
	Value *Item
}

// Item is a single decoded CBOR value. Only the fields relevant to Kind are
// populated; the rest are zero.
type Item struct {
	Kind Kind

	// KindUint: the value itself. KindNegInt: the magnitude, so the actual
	// signed value is -1-Uint. KindTag: the tag number, with the tagged
	// content in Items[0].
	Uint uint64

	Bytes []byte // KindBytes, KindText
	Bool  bool   // KindBool
	Simple uint8  // KindSimple

	Float     float64 // KindFloat
	FloatBits uint8   // 16, 32, or 64; selects encoding width

	Items []*Item // KindArray; KindTag (exactly one element)
	Pairs []Pair  // KindMap

	// Indefinite marks KindBytes/KindText/KindArray/KindMap as using
	// indefinite-length encoding. Decoded items carry whatever the wire
	// used; encoding honors it verbatim.
	Indefinite bool
}

// Int returns the item's value as a signed int64. Valid for KindUint and
// KindNegInt only.
func (it *Item) Int() int64 {
	if it.Kind == KindNegInt {
		return -1 - int64(it.Uint)
	}
	return int64(it.Uint)
}

// NewUint builds an unsigned integer item.
func NewUint(v uint64) *Item { return &Item{Kind: KindUint, Uint: v} }

// NewInt builds an integer item, choosing KindUint or KindNegInt as needed.
func NewInt(v int64) *Item {
	if v >= 0 {
		return &Item{Kind: KindUint, Uint: uint64(v)}
	}
	return &Item{Kind: KindNegInt, Uint: uint64(-1 - v)}
}

// NewBytes builds a definite-length byte string item.
func NewBytes(b []byte) *Item { return &Item{Kind: KindBytes, Bytes: b} }

// NewText builds a definite-length text string item.
func NewText(s string) *Item { return &Item{Kind: KindText, Bytes: []byte(s)} }

// Text returns the string content of a KindText item.
func (it *Item) Text() string { return string(it.Bytes) }

// NewArray builds a definite-length array item.
func NewArray(items ...*Item) *Item { return &Item{Kind: KindArray, Items: items} }

// NewMap builds an empty definite-length map item; use Set to populate it.
func NewMap() *Item { return &Item{Kind: KindMap} }

// Set appends a key/value pair to a map item, preserving insertion order.
func (it *Item) Set(key, value *Item) *Item {
	it.Pairs = append(it.Pairs, Pair{Key: key, Value: value})
	return it
}

// GetUint looks up a map item by an unsigned integer key, mirroring the
// DATA-payload convention of a single integer key 0.
func (it *Item) GetUint(key uint64) (*Item, bool) {
	for _, p := range it.Pairs {
		if p.Key.Kind == KindUint && p.Key.Uint == key {
			return p.Value, true
		}
	}
	return nil, false
}

// GetText looks up a map item by a text-string key.
func (it *Item) GetText(key string) (*Item, bool) {
	for _, p := range it.Pairs {
		if p.Key.Kind == KindText && string(p.Key.Bytes) == key {
			return p.Value, true
		}
	}
	return nil, false
}

// NewBool builds a boolean item.
func NewBool(v bool) *Item { return &Item{Kind: KindBool, Bool: v} }

// NewNull builds the null item.
func NewNull() *Item { return &Item{Kind: KindNull} }

// NewUndefined builds the undefined item.
func NewUndefined() *Item { return &Item{Kind: KindUndefined} }

// NewFloat64 builds a double-precision float item.
func NewFloat64(f float64) *Item { return &Item{Kind: KindFloat, Float: f, FloatBits: 64} }

// NewFloat32 builds a single-precision float item.
func NewFloat32(f float32) *Item { return &Item{Kind: KindFloat, Float: float64(f), FloatBits: 32} }
