package vrs

import (
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vrsindex/vrsindex/internal/model"
	vrserrors "github.com/vrsindex/vrsindex/pkg/errors"
	"github.com/vrsindex/vrsindex/pkg/vcf"
)

func vrsHeader(startsType vcf.InfoType) *vcf.Header {
	h := vcf.NewHeader()
	h.AddInfo(vcf.InfoDef{ID: "VRS_Allele_IDs", Number: "R", Type: vcf.TypeString})
	h.AddInfo(vcf.InfoDef{ID: "VRS_Starts", Number: "R", Type: startsType})
	h.AddInfo(vcf.InfoDef{ID: "VRS_Ends", Number: "R", Type: startsType})
	h.AddInfo(vcf.InfoDef{ID: "VRS_States", Number: "R", Type: vcf.TypeString})
	return h
}

func TestFieldName(t *testing.T) {
	for _, f := range Fields {
		parsed, ok := ParseFieldName(f.String())
		require.True(t, ok)
		assert.Equal(t, f, parsed)
	}

	_, ok := ParseFieldName("vrs_starts")
	assert.False(t, ok, "field names are case sensitive")
	assert.Equal(t, IntegerSequence, FieldEnds.Kind())
	assert.Equal(t, StringSequence, FieldStates.Kind())
}

func TestExtract_IntegersAreRepresentationInsensitive(t *testing.T) {
	native, err := Extract(vcf.NewInfo("VRS_Starts=10,20"), vrsHeader(vcf.TypeInteger), FieldStarts)
	require.NoError(t, err)

	legacy, err := Extract(vcf.NewInfo("VRS_Starts=10,20"), vrsHeader(vcf.TypeString), FieldStarts)
	require.NoError(t, err)

	assert.Equal(t, []int32{10, 20}, native.Integers())
	assert.Equal(t, []int32{10, 20}, legacy.Integers())
	assert.Equal(t, IntegerSequence, legacy.Kind())
}

func TestExtract_Errors(t *testing.T) {
	floatHeader := vrsHeader(vcf.TypeInteger)
	floatHeader.AddInfo(vcf.InfoDef{ID: "VRS_Ends", Number: "R", Type: vcf.TypeFloat})

	scalarHeader := vrsHeader(vcf.TypeInteger)
	scalarHeader.AddInfo(vcf.InfoDef{ID: "VRS_Allele_IDs", Number: "1", Type: vcf.TypeString})

	tests := []struct {
		name   string
		info   string
		header *vcf.Header
		field  FieldName
		want   *vrserrors.Error
	}{
		{"absent", "VRS_Starts=1", vrsHeader(vcf.TypeInteger), FieldEnds, vrserrors.ErrFieldMissing},
		{"scalar id", "VRS_Allele_IDs=ga4gh:VA.x", scalarHeader, FieldAlleleIDs, vrserrors.ErrTypeMismatch},
		{"float ends", "VRS_Ends=1.5", floatHeader, FieldEnds, vrserrors.ErrTypeMismatch},
		{"null native integer", "VRS_Starts=1,.", vrsHeader(vcf.TypeInteger), FieldStarts, vrserrors.ErrNullElement},
		{"null legacy integer", "VRS_Starts=.,2", vrsHeader(vcf.TypeString), FieldStarts, vrserrors.ErrNullElement},
		{"malformed legacy integer", "VRS_Starts=1,2x", vrsHeader(vcf.TypeString), FieldStarts, vrserrors.ErrMalformedNumber},
		{"malformed native integer", "VRS_Starts=1,2x", vrsHeader(vcf.TypeInteger), FieldStarts, vrserrors.ErrMalformedNumber},
		{"integer overflow", "VRS_Ends=4294967296", vrsHeader(vcf.TypeString), FieldEnds, vrserrors.ErrMalformedNumber},
		{"string field declared integer", "VRS_Allele_IDs=1,2", vrsHeaderWithIntegerIDs(), FieldAlleleIDs, vrserrors.ErrTypeMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Extract(vcf.NewInfo(tt.info), tt.header, tt.field)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func vrsHeaderWithIntegerIDs() *vcf.Header {
	h := vrsHeader(vcf.TypeInteger)
	h.AddInfo(vcf.InfoDef{ID: "VRS_Allele_IDs", Number: "R", Type: vcf.TypeInteger})
	return h
}

func TestExtract_MalformedNumberCarriesText(t *testing.T) {
	_, err := Extract(vcf.NewInfo("VRS_Starts=12a"), vrsHeader(vcf.TypeString), FieldStarts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"12a"`)
}

func TestExtract_NullStringBecomesEmpty(t *testing.T) {
	f, err := Extract(vcf.NewInfo("VRS_States=A,.,G"), vrsHeader(vcf.TypeInteger), FieldStates)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "", "G"}, f.Strings())
}

func TestExtract_DoesNotShareState(t *testing.T) {
	info := vcf.NewInfo("VRS_States=A,G")
	h := vrsHeader(vcf.TypeInteger)

	first, err := Extract(info, h, FieldStates)
	require.NoError(t, err)
	got := first.Strings()
	got[0] = "mutated"

	second, err := Extract(info, h, FieldStates)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "G"}, first.Strings())
	assert.Equal(t, []string{"A", "G"}, second.Strings())
	assert.Equal(t, "VRS_States=A,G", info.Raw())
}

func TestExtractHelpers(t *testing.T) {
	info := vcf.NewInfo("VRS_Allele_IDs=ga4gh:VA.a,ga4gh:VA.b;VRS_Ends=5,9")
	h := vrsHeader(vcf.TypeInteger)

	ids, err := ExtractStrings(info, h, FieldAlleleIDs)
	require.NoError(t, err)
	assert.Equal(t, []string{"ga4gh:VA.a", "ga4gh:VA.b"}, ids)

	ends, err := ExtractIntegers(info, h, FieldEnds)
	require.NoError(t, err)
	assert.Equal(t, []int32{5, 9}, ends)

	_, err = ExtractIntegers(info, h, FieldAlleleIDs)
	assert.True(t, errors.Is(err, vrserrors.ErrTypeMismatch))
	_, err = ExtractStrings(info, h, FieldStates)
	assert.True(t, errors.Is(err, vrserrors.ErrFieldMissing))
}

func TestTranspose(t *testing.T) {
	for _, n := range []int{0, 1, 5} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			ids := make([]string, n)
			starts := make([]int32, n)
			ends := make([]int32, n)
			states := make([]string, n)
			for i := 0; i < n; i++ {
				ids[i] = fmt.Sprintf("ga4gh:VA.%d", i)
				starts[i] = int32(100 + i)
				ends[i] = int32(200 + i)
				states[i] = string(rune('A' + i))
			}

			seq, err := Transpose(
				StringField(FieldAlleleIDs, ids...),
				IntegerField(FieldStarts, starts...),
				IntegerField(FieldEnds, ends...),
				StringField(FieldStates, states...),
			)
			require.NoError(t, err)

			got := slices.Collect(seq)
			require.Len(t, got, n)
			for i, a := range got {
				assert.Equal(t, model.VrsAlleleAttributes{ID: ids[i], Start: starts[i], End: ends[i], State: states[i]}, a)
			}
		})
	}
}

func TestTranspose_LengthMismatch(t *testing.T) {
	_, err := Transpose(
		StringField(FieldAlleleIDs, "ga4gh:VA.a", "ga4gh:VA.b", "ga4gh:VA.c"),
		IntegerField(FieldStarts, 1, 2),
		IntegerField(FieldEnds, 1, 2, 3),
		StringField(FieldStates, "A", "C", "G"),
	)
	require.Error(t, err)
	assert.True(t, errors.Is(err, vrserrors.ErrLengthMismatch))
	assert.Contains(t, err.Error(), "VRS_Starts=2")
}

func TestTranspose_KindMismatch(t *testing.T) {
	_, err := Transpose(
		StringField(FieldAlleleIDs, "ga4gh:VA.a"),
		StringField(FieldStarts, "1"),
		IntegerField(FieldEnds, 1),
		StringField(FieldStates, "A"),
	)
	assert.True(t, errors.Is(err, vrserrors.ErrTypeMismatch))
}

func TestTranspose_StopsEarly(t *testing.T) {
	seq, err := Transpose(
		StringField(FieldAlleleIDs, "a", "b", "c"),
		IntegerField(FieldStarts, 1, 2, 3),
		IntegerField(FieldEnds, 1, 2, 3),
		StringField(FieldStates, "A", "C", "G"),
	)
	require.NoError(t, err)

	var seen []string
	for a := range seq {
		seen = append(seen, a.ID)
		if len(seen) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"a", "b"}, seen)
}

func TestTransposeRecord(t *testing.T) {
	h := vrsHeader(vcf.TypeInteger)

	seq, err := TransposeRecord(vcf.NewInfo("VRS_Allele_IDs=ga4gh:VA.abc;VRS_Starts=999;VRS_Ends=1000;VRS_States=A"), h)
	require.NoError(t, err)
	assert.Equal(t, []model.VrsAlleleAttributes{{ID: "ga4gh:VA.abc", Start: 999, End: 1000, State: "A"}}, slices.Collect(seq))

	_, err = TransposeRecord(vcf.NewInfo("VRS_Allele_IDs=ga4gh:VA.abc;VRS_Starts=999;VRS_Ends=1000"), h)
	assert.True(t, errors.Is(err, vrserrors.ErrFieldMissing))
}

func TestCompact(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ga4gh:VA.abc123", "1abc123"},
		{"VA.abc123", "1abc123"},
		{"ga4gh:VA.", "1"},
		{"ga4gh:VA.Zm9vLmJhcg", "1Zm9vLmJhcg"},
	}
	for _, tt := range tests {
		got, err := Compact(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)

		again, err := Compact(tt.in)
		require.NoError(t, err)
		assert.Equal(t, got, again)
	}
}

func TestCompact_Unrecognized(t *testing.T) {
	for _, in := range []string{"ga4gh:CN.xyz", "ga4gh:SL.abc", "other:VA.abc", "VAabc", "", "ga4gh:va.abc"} {
		_, err := Compact(in)
		require.Error(t, err, in)
		assert.True(t, errors.Is(err, vrserrors.ErrUnrecognizedVariationType), in)
	}
}

func TestExpand_RoundTrip(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"ga4gh:VA.abc123", "ga4gh:VA.abc123"},
		{"VA.abc123", "ga4gh:VA.abc123"},
		{"ga4gh:VA.x.y", "ga4gh:VA.x.y"},
	}
	for _, tt := range tests {
		c, err := Compact(tt.id)
		require.NoError(t, err)

		expanded, err := Expand(c)
		require.NoError(t, err)
		assert.Equal(t, tt.want, expanded)
	}

	_, err := Expand("9abc")
	assert.True(t, errors.Is(err, vrserrors.ErrUnrecognizedVariationType))
	_, err = Expand("")
	assert.Error(t, err)
}

func TestIndexVariationTypes(t *testing.T) {
	_, _, err := indexVariationTypes(variationTypes)
	require.NoError(t, err)

	tests := []struct {
		name  string
		types []VariationType
	}{
		{"non digit code", []VariationType{{Name: "Allele", Token: "VA", Code: 'a'}}},
		{"duplicate code", []VariationType{{Name: "Allele", Token: "VA", Code: '1'}, {Name: "CopyNumberCount", Token: "CN", Code: '1'}}},
		{"duplicate token", []VariationType{{Name: "Allele", Token: "VA", Code: '1'}, {Name: "Other", Token: "VA", Code: '2'}}},
		{"dotted token", []VariationType{{Name: "Allele", Token: "V.A", Code: '1'}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := indexVariationTypes(tt.types)
			assert.Error(t, err)
		})
	}

	eleven := make([]VariationType, 11)
	for i := range eleven {
		eleven[i] = VariationType{Name: fmt.Sprintf("T%d", i), Token: fmt.Sprintf("T%d", i), Code: byte('0' + i)}
	}
	_, _, err = indexVariationTypes(eleven)
	assert.Error(t, err, "an eleventh kind has no single-digit code")
}
