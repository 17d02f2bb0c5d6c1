package vrs

import (
	"iter"

	"github.com/vrsindex/vrsindex/internal/model"
	vrserrors "github.com/vrsindex/vrsindex/pkg/errors"
	"github.com/vrsindex/vrsindex/pkg/vcf"
)

// Transpose zips the four parallel VRS sequences of one record into one
// attribute tuple per allele. Element i of every input contributes to
// tuple i. Sequences of different lengths are rejected with LengthMismatch
// rather than truncated to the shortest one.
func Transpose(ids, starts, ends, states ExtractedField) (iter.Seq[model.VrsAlleleAttributes], error) {
	for _, f := range []struct {
		got  ExtractedField
		want SequenceKind
		name FieldName
	}{
		{ids, StringSequence, FieldAlleleIDs},
		{starts, IntegerSequence, FieldStarts},
		{ends, IntegerSequence, FieldEnds},
		{states, StringSequence, FieldStates},
	} {
		if f.got.Kind() != f.want {
			return nil, vrserrors.TypeMismatch(f.name.String(), f.want.String(), f.got.Kind().String())
		}
	}

	n := ids.Len()
	if starts.Len() != n || ends.Len() != n || states.Len() != n {
		return nil, vrserrors.New(vrserrors.CodeLengthMismatch, "VRS fields disagree on allele count").
			WithContext(FieldAlleleIDs.String(), n).
			WithContext(FieldStarts.String(), starts.Len()).
			WithContext(FieldEnds.String(), ends.Len()).
			WithContext(FieldStates.String(), states.Len())
	}

	return func(yield func(model.VrsAlleleAttributes) bool) {
		for i := 0; i < n; i++ {
			attrs := model.VrsAlleleAttributes{
				ID:    ids.strs[i],
				Start: starts.ints[i],
				End:   ends.ints[i],
				State: states.strs[i],
			}
			if !yield(attrs) {
				return
			}
		}
	}, nil
}

// TransposeRecord extracts the four VRS fields from info and transposes them.
// The first extraction failure is returned unchanged.
func TransposeRecord(info vcf.Info, header *vcf.Header) (iter.Seq[model.VrsAlleleAttributes], error) {
	var extracted [4]ExtractedField
	for i, name := range Fields {
		f, err := Extract(info, header, name)
		if err != nil {
			return nil, err
		}
		extracted[i] = f
	}
	return Transpose(extracted[0], extracted[1], extracted[2], extracted[3])
}
