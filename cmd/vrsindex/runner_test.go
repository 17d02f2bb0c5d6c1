package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vrsindex/vrsindex/internal/logging"
	"github.com/vrsindex/vrsindex/pkg/config"
	vrserrors "github.com/vrsindex/vrsindex/pkg/errors"
	"github.com/vrsindex/vrsindex/pkg/telemetry"
)

const testVCF = `##fileformat=VCFv4.3
##INFO=<ID=VRS_Allele_IDs,Number=R,Type=String,Description="VRS allele ids">
##INFO=<ID=VRS_Starts,Number=R,Type=Integer,Description="Interresidue starts">
##INFO=<ID=VRS_Ends,Number=R,Type=Integer,Description="Interresidue ends">
##INFO=<ID=VRS_States,Number=R,Type=String,Description="Literal states">
#CHROM	POS	ID	REF	ALT	QUAL	FILTER	INFO
chr1	1000	.	A	G	.	.	VRS_Allele_IDs=ga4gh:VA.ref,ga4gh:VA.alt;VRS_Starts=999,999;VRS_Ends=1000,1000;VRS_States=A,G
chr1	2000	.	C	T	.	.	VRS_Allele_IDs=ga4gh:VA.bad;VRS_Starts=.;VRS_Ends=2000;VRS_States=T
`

func testRunner(t *testing.T) (*runner, string) {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.SetSourceID(4)
	cfg.Output.Path = filepath.Join(dir, "out.idx")
	cfg.Checkpoint.Dir = filepath.Join(dir, "checkpoints")
	cfg.Errors.Policy = config.PolicyQuarantine
	cfg.Errors.QuarantinePath = filepath.Join(dir, "rejected.jsonl")

	r, err := newRunner(context.Background(), cfg, logging.Nop(), telemetry.Noop().Tracer())
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })

	in := filepath.Join(dir, "in.vcf")
	require.NoError(t, os.WriteFile(in, []byte(testVCF), 0o644))
	return r, in
}

func TestRunner_ProcessFile(t *testing.T) {
	r, in := testRunner(t)
	ctx := context.Background()

	res, err := r.processFile(ctx, in)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, int64(2), res.Summary.RecordsRead)
	assert.Equal(t, int64(1), res.Summary.RecordsSkipped)
	assert.Equal(t, int64(2), res.Summary.AllelesWritten)

	want := "chr1-1000-4\n1ref0\n999-0\n1000-0\nchr1-1000-4\n1alt1\n999-1\n1000-1\n"
	got, err := os.ReadFile(r.cfg.Output.Path)
	require.NoError(t, err)
	assert.Equal(t, want, string(got))
	assert.Equal(t, 1, r.quar.Count())

	// A completed input is not indexed twice.
	res, err = r.processFile(ctx, in)
	require.NoError(t, err)
	assert.True(t, res.Skipped)

	r.fresh = true
	res, err = r.processFile(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), res.Summary.FirstCounter)
	assert.Equal(t, uint64(4), res.Summary.NextCounter)
}

func TestRunner_MissingInput(t *testing.T) {
	r, _ := testRunner(t)
	_, err := r.processFile(context.Background(), filepath.Join(t.TempDir(), "nope.vcf"))
	assert.ErrorIs(t, err, vrserrors.ErrIoFailure)
}

func TestNewRunner_RequiresSourceID(t *testing.T) {
	cfg := config.Default()
	cfg.Output.Path = filepath.Join(t.TempDir(), "out.idx")
	_, err := newRunner(context.Background(), cfg, logging.Nop(), telemetry.Noop().Tracer())
	assert.ErrorIs(t, err, vrserrors.ErrConfig)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 130, exitCode(vrserrors.Canceled("read record", context.Canceled)))
	assert.Equal(t, 2, exitCode(fmt.Errorf("x: %w", vrserrors.New(vrserrors.CodeConfig, "bad"))))
	assert.Equal(t, 1, exitCode(vrserrors.IoFailure("write", os.ErrClosed)))
}

func TestInspectCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.idx")
	require.NoError(t, os.WriteFile(path, []byte("chr1-10-1\n1abc0\n9-0\n10-0\nchr1-20"), 0o644))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"inspect", path, "--list", "5", "--recover"})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		inspectList, inspectRecover = 0, false
	})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "ga4gh:VA.abc")
	assert.Contains(t, out.String(), "clean")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "chr1-10-1\n1abc0\n9-0\n10-0\n", string(data))
}
