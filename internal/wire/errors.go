package wire

import "fmt"

// CBOREnum is the closed set of CBOR decode/encode failure reasons. The
// values mirror cn-cbor's enumerants so a caller speaking to both
// implementations sees the same taxonomy.
type CBOREnum string

const (
	ErrOutOfData                  CBOREnum = "out_of_data"
	ErrNotAllDataConsumed          CBOREnum = "not_all_data_consumed"
	ErrOddSizeIndefMap             CBOREnum = "odd_size_indef_map"
	ErrBreakOutsideIndef           CBOREnum = "break_outside_indef"
	ErrMTUndefForIndef             CBOREnum = "mt_undef_for_indef"
	ErrReservedAI                  CBOREnum = "reserved_ai"
	ErrWrongNestingInIndefString   CBOREnum = "wrong_nesting_in_indef_string"
	ErrInvalidParameter            CBOREnum = "invalid_parameter"
	ErrOutOfMemory                 CBOREnum = "out_of_memory"
)

// CodecError is returned by every wire operation: header parsing as well as
// CBOR encode/decode. Code is either a framer-level code ("invalid_arg",
// "bad_format", "no_entropy", ...) or, when CBOR is set, one of the CBOREnum
// values above.
type CodecError struct {
	Op    string
	Code  string
	CBOR  CBOREnum
	Msg   string
	Inner error
}

func (e *CodecError) Error() string {
	code := e.Code
	if e.CBOR != "" {
		code = string(e.CBOR)
	}
	return fmt.Sprintf("wire: %s: %s: %s", e.Op, code, e.Msg)
}

func (e *CodecError) Unwrap() error {
	return e.Inner
}

// cborErr builds a CodecError carrying a CBOR enumerant.
func cborErr(op string, code CBOREnum, msg string) *CodecError {
	return &CodecError{Op: op, CBOR: code, Msg: msg}
}
