// Package vrs turns the VRS annotation INFO fields of a VCF record into
// per-allele attributes and compact identifiers.
//
// The VRS annotator writes four parallel lists per record, each holding one
// entry per allele (REF first, then every ALT):
//
//	VRS_Allele_IDs=ga4gh:VA.xxx,ga4gh:VA.yyy
//	VRS_Starts=999,999
//	VRS_Ends=1000,1000
//	VRS_States=A,G
package vrs

// FieldName is one of the recognized VRS INFO keys.
type FieldName uint8

const (
	FieldAlleleIDs FieldName = iota
	FieldStarts
	FieldEnds
	FieldStates
)

// Fields lists the recognized keys in transposition order.
var Fields = []FieldName{FieldAlleleIDs, FieldStarts, FieldEnds, FieldStates}

// String returns the INFO key.
func (f FieldName) String() string {
	switch f {
	case FieldAlleleIDs:
		return "VRS_Allele_IDs"
	case FieldStarts:
		return "VRS_Starts"
	case FieldEnds:
		return "VRS_Ends"
	case FieldStates:
		return "VRS_States"
	default:
		return "unknown"
	}
}

// Kind returns the sequence kind the field is extracted as.
func (f FieldName) Kind() SequenceKind {
	switch f {
	case FieldStarts, FieldEnds:
		return IntegerSequence
	default:
		return StringSequence
	}
}

// ParseFieldName maps an INFO key to a FieldName. Matching is case sensitive.
func ParseFieldName(key string) (FieldName, bool) {
	for _, f := range Fields {
		if f.String() == key {
			return f, true
		}
	}
	return 0, false
}
