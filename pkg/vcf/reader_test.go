package vcf

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleVCF = `##fileformat=VCFv4.2
##contig=<ID=1,length=248956422>
##INFO=<ID=VRS_Allele_IDs,Number=R,Type=String,Description="The computed identifiers for the GA4GH VRS Alleles corresponding to the GT indexes of the REF and ALT alleles">
##INFO=<ID=VRS_Starts,Number=R,Type=Integer,Description="Interresidue coordinates used as the location starts">
##INFO=<ID=VRS_Ends,Number=R,Type=Integer,Description="Interresidue coordinates used as the location ends">
##INFO=<ID=VRS_States,Number=R,Type=String,Description="The literal sequence states">
##INFO=<ID=DP,Number=1,Type=Integer,Description="Depth">
##INFO=<ID=DB,Number=0,Type=Flag,Description="dbSNP membership">
#CHROM	POS	ID	REF	ALT	QUAL	FILTER	INFO	FORMAT	S1
1	1000	rs1	A	G	50	PASS	VRS_Allele_IDs=ga4gh:VA.ref,ga4gh:VA.alt;VRS_Starts=999,999;VRS_Ends=1000,1000;VRS_States=A,G;DP=12;DB	GT	0/1
2	5	.	C	.	.	.	.
`

func TestNewReader_Header(t *testing.T) {
	r, err := NewReader(strings.NewReader(sampleVCF))
	require.NoError(t, err)

	h := r.Header()
	assert.Equal(t, "VCFv4.2", h.FileFormat)
	assert.Equal(t, []string{"S1"}, h.Samples)

	def, ok := h.Info("VRS_Starts")
	require.True(t, ok)
	assert.Equal(t, "R", def.Number)
	assert.Equal(t, TypeInteger, def.Type)
	assert.True(t, def.IsArray())
	assert.Equal(t, TypeFlag, h.Infos["DB"].Type)

	undeclared, ok := h.Info("NOPE")
	assert.False(t, ok)
	assert.False(t, undeclared.IsArray())
}

func TestReader_Next(t *testing.T) {
	r, err := NewReader(strings.NewReader(sampleVCF))
	require.NoError(t, err)
	ctx := context.Background()

	rec, err := r.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1", rec.Chrom)
	assert.Equal(t, uint32(1000), rec.Pos)
	assert.Equal(t, []string{"G"}, rec.Alt)
	assert.Equal(t, int64(10), rec.Line)
	assert.Equal(t, []string{"VRS_Allele_IDs", "VRS_Starts", "VRS_Ends", "VRS_States", "DP", "DB"}, rec.Info().Keys())

	starts, ok, err := rec.Info().Get(r.Header(), "VRS_Starts")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, KindIntegerArray, starts.Kind())
	assert.Equal(t, []NullInt32{{999, true}, {999, true}}, starts.Integers())

	dp, ok, err := rec.Info().Get(r.Header(), "DP")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, KindInteger, dp.Kind())

	db, ok, err := rec.Info().Get(r.Header(), "DB")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, KindFlag, db.Kind())

	_, ok, err = rec.Info().Get(r.Header(), "VRS_Missing")
	require.NoError(t, err)
	assert.False(t, ok)

	rec, err = r.Next(ctx)
	require.NoError(t, err)
	assert.Nil(t, rec.Alt)
	assert.Empty(t, rec.Info().Keys())

	_, err = r.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestInfo_GetDecoding(t *testing.T) {
	h := NewHeader()
	h.AddInfo(InfoDef{ID: "I", Number: ".", Type: TypeInteger})
	h.AddInfo(InfoDef{ID: "S", Number: "A", Type: TypeString})
	h.AddInfo(InfoDef{ID: "F", Number: "2", Type: TypeFloat})

	tests := []struct {
		name string
		raw  string
		key  string
		kind Kind
		len  int
	}{
		{"integer array with null", "I=1,.,3", "I", KindIntegerArray, 3},
		{"string array escaped", "S=a%3Bb,.", "S", KindStringArray, 2},
		{"float array", "F=0.5,1e3", "F", KindFloatArray, 2},
		{"undeclared key is scalar string", "X=abc", "X", KindString, 1},
		{"missing scalar", "X=.", "X", KindMissing, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok, err := NewInfo(tt.raw).Get(h, tt.key)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, tt.kind, v.Kind())
			assert.Equal(t, tt.len, v.Len())
		})
	}

	v, _, err := NewInfo("S=a%3Bb,.").Get(h, "S")
	require.NoError(t, err)
	assert.Equal(t, []NullString{{"a;b", true}, {"", false}}, v.Strings())
}

func TestInfo_GetDecodeError(t *testing.T) {
	h := NewHeader()
	h.AddInfo(InfoDef{ID: "I", Number: "R", Type: TypeInteger})

	_, ok, err := NewInfo("I=1,x2").Get(h, "I")
	assert.True(t, ok)

	var verr *ValueError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "x2", verr.Text)
}

func TestNewReader_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"no column header", "##fileformat=VCFv4.2\n"},
		{"data before header", "1\t10\t.\tA\tG\t.\t.\t.\n"},
		{"short column header", "#CHROM\tPOS\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewReader(strings.NewReader(tt.input))
			assert.Error(t, err)
		})
	}
}

func TestReader_MalformedRecord(t *testing.T) {
	input := "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n1\tNaN\t.\tA\tG\t.\t.\t.\n"
	r, err := NewReader(strings.NewReader(input))
	require.NoError(t, err)

	_, err = r.Next(context.Background())
	assert.ErrorContains(t, err, "line 2")

	var syntax *SyntaxError
	require.ErrorAs(t, err, &syntax)
	assert.Equal(t, int64(2), syntax.Line)
}

type failingReader struct{ err error }

func (f failingReader) Read([]byte) (int, error) { return 0, f.err }

func TestReader_ReadFailureIsNotSyntax(t *testing.T) {
	failure := errors.New("input/output error")
	header := "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n"
	r, err := NewReader(io.MultiReader(strings.NewReader(header+"1\t10\t."), failingReader{failure}))
	require.NoError(t, err)

	_, err = r.Next(context.Background())
	require.ErrorIs(t, err, failure)
	var syntax *SyntaxError
	assert.False(t, errors.As(err, &syntax))
}

func TestReader_NextHonorsCancellation(t *testing.T) {
	r, err := NewReader(strings.NewReader(sampleVCF))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = r.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpen_Gzip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.vcf.gz")

	// Two gzip members, as BGZF produces.
	var buf bytes.Buffer
	half := len(sampleVCF) / 2
	for _, part := range []string{sampleVCF[:half], sampleVCF[half:]} {
		zw := gzip.NewWriter(&buf)
		_, err := zw.Write([]byte(part))
		require.NoError(t, err)
		require.NoError(t, zw.Close())
	}
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	var progress bytes.Buffer
	r, err := Open(path, WithProgress(&progress))
	require.NoError(t, err)
	defer r.Close()

	n := 0
	for {
		_, err := r.Next(context.Background())
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		n++
	}
	assert.Equal(t, 2, n)
	assert.Equal(t, buf.Len(), progress.Len())
}

func TestOpen_Plain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.vcf")
	require.NoError(t, os.WriteFile(path, []byte(sampleVCF), 0o644))

	r, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, r.Close())

	_, err = Open(filepath.Join(t.TempDir(), "missing.vcf"))
	assert.Error(t, err)
}
