package vrs

import (
	"errors"
	"strconv"

	vrserrors "github.com/vrsindex/vrsindex/pkg/errors"
	"github.com/vrsindex/vrsindex/pkg/vcf"
)

// SequenceKind tags the element type of an ExtractedField.
type SequenceKind uint8

const (
	StringSequence SequenceKind = iota + 1
	IntegerSequence
)

func (k SequenceKind) String() string {
	switch k {
	case StringSequence:
		return "string sequence"
	case IntegerSequence:
		return "integer sequence"
	default:
		return "invalid sequence"
	}
}

// ExtractedField is the uniform result of extracting one VRS field: either
// a string sequence or an int32 sequence. It is immutable; accessors never
// expose the backing slices.
type ExtractedField struct {
	name FieldName
	kind SequenceKind
	strs []string
	ints []int32
}

// StringField builds a string sequence for name.
func StringField(name FieldName, values ...string) ExtractedField {
	return ExtractedField{name: name, kind: StringSequence, strs: append([]string(nil), values...)}
}

// IntegerField builds an integer sequence for name.
func IntegerField(name FieldName, values ...int32) ExtractedField {
	return ExtractedField{name: name, kind: IntegerSequence, ints: append([]int32(nil), values...)}
}

// Name returns the field the sequence was extracted from.
func (f ExtractedField) Name() FieldName { return f.name }

// Kind returns the sequence kind.
func (f ExtractedField) Kind() SequenceKind { return f.kind }

// Len returns the number of elements.
func (f ExtractedField) Len() int {
	if f.kind == IntegerSequence {
		return len(f.ints)
	}
	return len(f.strs)
}

// Strings returns a copy of a string sequence, nil for other kinds.
func (f ExtractedField) Strings() []string {
	if f.kind != StringSequence {
		return nil
	}
	return append([]string(nil), f.strs...)
}

// Integers returns a copy of an integer sequence, nil for other kinds.
func (f ExtractedField) Integers() []int32 {
	if f.kind != IntegerSequence {
		return nil
	}
	return append([]int32(nil), f.ints...)
}

// Extract resolves name in info using the header definition and returns its
// values as a typed sequence.
//
// String fields map null elements to "". Numeric fields accept a native
// Integer list or, for files written by older annotators, a String list of
// base-10 integers; null elements are an error there because a defaulted
// coordinate would silently corrupt the output.
func Extract(info vcf.Info, header *vcf.Header, name FieldName) (ExtractedField, error) {
	key := name.String()
	v, ok, err := info.Get(header, key)
	if !ok {
		return ExtractedField{}, vrserrors.FieldMissing(key)
	}
	if err != nil {
		var verr *vcf.ValueError
		if errors.As(err, &verr) && name.Kind() == IntegerSequence {
			return ExtractedField{}, vrserrors.MalformedNumber(key, verr.Text, verr.Err)
		}
		return ExtractedField{}, vrserrors.Wrap(err, vrserrors.CodeTypeMismatch, "undecodable annotation value").
			WithContext("field", key)
	}

	switch name.Kind() {
	case IntegerSequence:
		return extractIntegers(name, v)
	default:
		return extractStrings(name, v)
	}
}

// ExtractStrings extracts a string-valued field such as VRS_Allele_IDs.
func ExtractStrings(info vcf.Info, header *vcf.Header, name FieldName) ([]string, error) {
	if name.Kind() != StringSequence {
		return nil, vrserrors.TypeMismatch(name.String(), StringSequence.String(), name.Kind().String())
	}
	f, err := Extract(info, header, name)
	if err != nil {
		return nil, err
	}
	return f.Strings(), nil
}

// ExtractIntegers extracts a coordinate field such as VRS_Starts.
func ExtractIntegers(info vcf.Info, header *vcf.Header, name FieldName) ([]int32, error) {
	if name.Kind() != IntegerSequence {
		return nil, vrserrors.TypeMismatch(name.String(), IntegerSequence.String(), name.Kind().String())
	}
	f, err := Extract(info, header, name)
	if err != nil {
		return nil, err
	}
	return f.Integers(), nil
}

func extractStrings(name FieldName, v vcf.Value) (ExtractedField, error) {
	switch v.Kind() {
	case vcf.KindStringArray:
		elems := v.Strings()
		out := make([]string, len(elems))
		for i, e := range elems {
			if e.Valid {
				out[i] = e.String
			}
		}
		return ExtractedField{name: name, kind: StringSequence, strs: out}, nil
	default:
		return ExtractedField{}, vrserrors.TypeMismatch(name.String(), "string array", v.Kind().String())
	}
}

func extractIntegers(name FieldName, v vcf.Value) (ExtractedField, error) {
	switch v.Kind() {
	case vcf.KindIntegerArray:
		elems := v.Integers()
		out := make([]int32, len(elems))
		for i, e := range elems {
			if !e.Valid {
				return ExtractedField{}, vrserrors.NullElement(name.String(), i)
			}
			out[i] = e.Int32
		}
		return ExtractedField{name: name, kind: IntegerSequence, ints: out}, nil

	case vcf.KindStringArray:
		elems := v.Strings()
		out := make([]int32, len(elems))
		for i, e := range elems {
			if !e.Valid {
				return ExtractedField{}, vrserrors.NullElement(name.String(), i)
			}
			n, err := strconv.ParseInt(e.String, 10, 32)
			if err != nil {
				return ExtractedField{}, vrserrors.MalformedNumber(name.String(), e.String, err)
			}
			out[i] = int32(n)
		}
		return ExtractedField{name: name, kind: IntegerSequence, ints: out}, nil

	default:
		return ExtractedField{}, vrserrors.TypeMismatch(name.String(), "integer array", v.Kind().String())
	}
}
