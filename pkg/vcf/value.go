package vcf

import (
	"fmt"
	"strconv"
)

// Kind is the shape of a decoded INFO value.
type Kind uint8

const (
	KindMissing Kind = iota
	KindInteger
	KindFloat
	KindFlag
	KindCharacter
	KindString
	KindIntegerArray
	KindFloatArray
	KindCharacterArray
	KindStringArray
)

// String returns a readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindFlag:
		return "flag"
	case KindCharacter:
		return "character"
	case KindString:
		return "string"
	case KindIntegerArray:
		return "integer array"
	case KindFloatArray:
		return "float array"
	case KindCharacterArray:
		return "character array"
	case KindStringArray:
		return "string array"
	default:
		return "missing"
	}
}

// IsArray reports whether the kind is a list shape.
func (k Kind) IsArray() bool {
	return k >= KindIntegerArray
}

// NullInt32 is an integer element that may be missing (".").
type NullInt32 struct {
	Int32 int32
	Valid bool
}

// NullFloat32 is a float element that may be missing.
type NullFloat32 struct {
	Float32 float32
	Valid   bool
}

// NullString is a string or character element that may be missing.
type NullString struct {
	String string
	Valid  bool
}

// Value is a decoded INFO value. Scalars are stored as one-element lists so
// that accessors are shared between the scalar and array kinds.
type Value struct {
	kind   Kind
	ints   []NullInt32
	floats []NullFloat32
	strs   []NullString
}

// Kind returns the shape of the value.
func (v Value) Kind() Kind { return v.kind }

// Len returns the number of elements; 1 for scalars, 0 for missing and flags.
func (v Value) Len() int {
	switch v.kind {
	case KindInteger, KindIntegerArray:
		return len(v.ints)
	case KindFloat, KindFloatArray:
		return len(v.floats)
	case KindCharacter, KindString, KindCharacterArray, KindStringArray:
		return len(v.strs)
	default:
		return 0
	}
}

// Integers returns a copy of the integer elements.
func (v Value) Integers() []NullInt32 {
	return append([]NullInt32(nil), v.ints...)
}

// Floats returns a copy of the float elements.
func (v Value) Floats() []NullFloat32 {
	return append([]NullFloat32(nil), v.floats...)
}

// Strings returns a copy of the string or character elements.
func (v Value) Strings() []NullString {
	return append([]NullString(nil), v.strs...)
}

// IntegerArray builds an integer array value.
func IntegerArray(elems ...NullInt32) Value {
	return Value{kind: KindIntegerArray, ints: append([]NullInt32(nil), elems...)}
}

// StringArray builds a string array value.
func StringArray(elems ...NullString) Value {
	return Value{kind: KindStringArray, strs: append([]NullString(nil), elems...)}
}

// FloatArray builds a float array value.
func FloatArray(elems ...NullFloat32) Value {
	return Value{kind: KindFloatArray, floats: append([]NullFloat32(nil), elems...)}
}

// StringScalar builds a single string value.
func StringScalar(s string) Value {
	return Value{kind: KindString, strs: []NullString{{String: s, Valid: true}}}
}

// ValueError reports INFO text that does not match its declared type.
type ValueError struct {
	Key  string
	Text string
	Err  error
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("vcf: INFO %s: cannot decode %q: %v", e.Key, e.Text, e.Err)
}

func (e *ValueError) Unwrap() error { return e.Err }

// decodeValue decodes the raw text of one INFO entry using its definition.
// hasValue is false for a bare key without "=".
func decodeValue(def InfoDef, raw string, hasValue bool) (Value, error) {
	if def.Type == TypeFlag {
		return Value{kind: KindFlag}, nil
	}
	if !hasValue {
		return Value{}, &ValueError{Key: def.ID, Text: "", Err: fmt.Errorf("missing value for %s field", def.Type)}
	}

	if !def.IsArray() {
		if raw == "." {
			return Value{}, nil
		}
		v, err := decodeArray(def, []string{raw})
		if err != nil {
			return Value{}, err
		}
		v.kind = scalarKind(def.Type)
		return v, nil
	}

	return decodeArray(def, splitList(raw))
}

func decodeArray(def InfoDef, parts []string) (Value, error) {
	switch def.Type {
	case TypeInteger:
		out := make([]NullInt32, len(parts))
		for i, p := range parts {
			if p == "." {
				continue
			}
			n, err := strconv.ParseInt(p, 10, 32)
			if err != nil {
				return Value{}, &ValueError{Key: def.ID, Text: p, Err: err}
			}
			out[i] = NullInt32{Int32: int32(n), Valid: true}
		}
		return Value{kind: KindIntegerArray, ints: out}, nil

	case TypeFloat:
		out := make([]NullFloat32, len(parts))
		for i, p := range parts {
			if p == "." {
				continue
			}
			f, err := strconv.ParseFloat(p, 32)
			if err != nil {
				return Value{}, &ValueError{Key: def.ID, Text: p, Err: err}
			}
			out[i] = NullFloat32{Float32: float32(f), Valid: true}
		}
		return Value{kind: KindFloatArray, floats: out}, nil

	case TypeCharacter:
		out := make([]NullString, len(parts))
		for i, p := range parts {
			if p == "." {
				continue
			}
			if len([]rune(p)) != 1 {
				return Value{}, &ValueError{Key: def.ID, Text: p, Err: fmt.Errorf("not a single character")}
			}
			out[i] = NullString{String: p, Valid: true}
		}
		return Value{kind: KindCharacterArray, strs: out}, nil

	default:
		out := make([]NullString, len(parts))
		for i, p := range parts {
			if p == "." {
				continue
			}
			out[i] = NullString{String: unescapeInfo(p), Valid: true}
		}
		return Value{kind: KindStringArray, strs: out}, nil
	}
}

func scalarKind(t InfoType) Kind {
	switch t {
	case TypeInteger:
		return KindInteger
	case TypeFloat:
		return KindFloat
	case TypeCharacter:
		return KindCharacter
	default:
		return KindString
	}
}
