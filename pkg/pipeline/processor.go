package pipeline

import (
	"context"
	"errors"
	"io"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/vrsindex/vrsindex/internal/logging"
	"github.com/vrsindex/vrsindex/internal/model"
	"github.com/vrsindex/vrsindex/pkg/checkpoint"
	vrserrors "github.com/vrsindex/vrsindex/pkg/errors"
	"github.com/vrsindex/vrsindex/pkg/output"
	"github.com/vrsindex/vrsindex/pkg/telemetry"
	"github.com/vrsindex/vrsindex/pkg/vcf"
	"github.com/vrsindex/vrsindex/pkg/vrs"
)

// State is the position of a Processor in its record loop.
type State int

const (
	StateIdle State = iota
	StateReadNext
	StateExtractFields
	StateTranspose
	StatePerAllele
	StateClosed
	StateFlushed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReadNext:
		return "read_next"
	case StateExtractFields:
		return "extract_fields"
	case StateTranspose:
		return "transpose"
	case StatePerAllele:
		return "per_allele"
	case StateClosed:
		return "closed"
	case StateFlushed:
		return "flushed"
	default:
		return "unknown"
	}
}

// RecordSource yields VCF records in file order. Next returns io.EOF at the
// end of the stream.
type RecordSource interface {
	Header() *vcf.Header
	Next(ctx context.Context) (*vcf.Record, error)
}

// Options configures a Processor. Zero values are usable: skip policy, no
// logging, no tracing, no checkpoints.
type Options struct {
	SourceID uint8
	Input    string
	RunID    string

	Errors *ErrorHandler
	Logger *logging.Logger
	Tracer trace.Tracer

	// Checkpoint, when set, is updated at record boundaries and saved to
	// Checkpoints every CheckpointEvery records and when the run ends.
	Checkpoints     checkpoint.Backend
	Checkpoint      *checkpoint.Checkpoint
	CheckpointEvery int64

	// SkipRecords records are read and discarded before processing starts.
	SkipRecords int64
}

// Stats summarizes one Run.
type Stats struct {
	RecordsResumed int64
	RecordsRead    int64
	RecordsSkipped int64
	AllelesWritten int64
	FirstCounter   uint64
	NextCounter    uint64
	BytesWritten   int64
	Duration       time.Duration
}

// boundary is the durable progress after the last fully handled record.
type boundary struct {
	records int64
	skipped int64
	alleles int64
	counter uint64
	offset  int64
}

// Processor reads records, extracts and transposes their VRS fields,
// compacts each allele id and appends one group per allele.
//
// All groups of a record are built before the first one is written, so a
// record that fails compaction leaves nothing behind. A Processor runs once.
type Processor struct {
	src     RecordSource
	w       output.GroupWriter
	counter *output.Counter
	opts    Options

	state       State
	stats       Stats
	startOffset int64
	base        boundary
	last        boundary
	groups      []output.Group
}

// NewProcessor creates a processor that appends to w, keying groups with counter.
func NewProcessor(src RecordSource, w output.GroupWriter, counter *output.Counter, opts Options) *Processor {
	if opts.Errors == nil {
		opts.Errors = NewErrorHandler(ErrorPolicySkip)
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.Tracer == nil {
		opts.Tracer = noop.NewTracerProvider().Tracer(telemetry.InstrumentationName)
	}
	if opts.CheckpointEvery <= 0 {
		opts.CheckpointEvery = 10000
	}

	p := &Processor{
		src:     src,
		w:       w,
		counter: counter,
		opts:    opts,
		state:   StateIdle,
		groups:  make([]output.Group, 0, 4),
	}
	if cp := opts.Checkpoint; cp != nil {
		// Records are counted again while skipping; only the totals that
		// skipping cannot rebuild carry over.
		p.base = boundary{
			skipped: cp.RecordsSkipped,
			alleles: cp.AllelesWritten,
		}
	}
	return p
}

// State returns the current state.
func (p *Processor) State() State { return p.state }

// Run processes the source to the end. Record-level errors go to the error
// handler; write failures, malformed input and cancellation end the run.
// The writer is closed on every path and the processor always finishes in
// StateFlushed.
func (p *Processor) Run(ctx context.Context) (Stats, error) {
	if p.state != StateIdle {
		return p.stats, vrserrors.New(vrserrors.CodeUnknown, "processor already ran")
	}

	start := time.Now()
	ctx, span := p.opts.Tracer.Start(ctx, "vrsindex.run", trace.WithAttributes(
		attribute.String("vrsindex.input", p.opts.Input),
		attribute.String("vrsindex.run_id", p.opts.RunID),
		attribute.Int("vrsindex.source_id", int(p.opts.SourceID)),
		attribute.Int64("vrsindex.skip_records", p.opts.SkipRecords),
	))
	defer span.End()

	p.startOffset = p.w.Offset()
	p.stats.FirstCounter = p.counter.Peek()
	p.last = p.boundaryNow()

	err := p.skip(ctx)
	if err == nil {
		err = p.loop(ctx)
	}

	p.state = StateClosed
	if cerr := p.w.Close(); cerr != nil && err == nil {
		err = cerr
	}

	if cerr := p.finishCheckpoint(ctx, err); cerr != nil && err == nil {
		err = cerr
	}

	p.stats.NextCounter = p.counter.Peek()
	p.stats.BytesWritten = p.w.Offset() - p.startOffset
	p.stats.Duration = time.Since(start)
	p.state = StateFlushed

	span.SetAttributes(
		attribute.Int64("vrsindex.records_read", p.stats.RecordsRead),
		attribute.Int64("vrsindex.records_skipped", p.stats.RecordsSkipped),
		attribute.Int64("vrsindex.alleles_written", p.stats.AllelesWritten),
	)
	if err != nil {
		telemetry.RecordError(ctx, err)
	}
	return p.stats, err
}

// skip discards records already covered by a checkpoint.
func (p *Processor) skip(ctx context.Context) error {
	for p.stats.RecordsResumed < p.opts.SkipRecords {
		if err := ctx.Err(); err != nil {
			return vrserrors.Canceled("resume", err)
		}
		if _, err := p.src.Next(ctx); err != nil {
			if errors.Is(err, io.EOF) {
				return vrserrors.New(vrserrors.CodeCheckpoint, "input has fewer records than the checkpoint").
					WithContext("checkpoint_records", p.opts.SkipRecords).
					WithContext("input_records", p.stats.RecordsResumed)
			}
			return p.sourceError(err)
		}
		p.stats.RecordsResumed++
	}
	return nil
}

func (p *Processor) loop(ctx context.Context) error {
	for {
		p.state = StateReadNext
		if err := ctx.Err(); err != nil {
			return vrserrors.Canceled("read record", err)
		}

		rec, err := p.src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return p.sourceError(err)
		}
		p.stats.RecordsRead++

		if err := p.processRecord(ctx, rec); err != nil {
			if !vrserrors.IsRecoverable(err) {
				return err
			}
			if err := p.reject(ctx, rec, err); err != nil {
				return err
			}
		}

		p.last = p.boundaryNow()
		if p.opts.Checkpoint != nil && p.stats.RecordsRead%p.opts.CheckpointEvery == 0 {
			p.saveCheckpoint(ctx)
		}
	}
}

// processRecord runs one record through extraction, transposition,
// compaction and output.
func (p *Processor) processRecord(ctx context.Context, rec *vcf.Record) error {
	p.state = StateExtractFields
	info, header := rec.Info(), p.src.Header()
	var fields [4]vrs.ExtractedField
	for i, name := range vrs.Fields {
		f, err := vrs.Extract(info, header, name)
		if err != nil {
			return err
		}
		fields[i] = f
	}

	p.state = StateTranspose
	alleles, err := vrs.Transpose(fields[0], fields[1], fields[2], fields[3])
	if err != nil {
		return err
	}

	p.state = StatePerAllele
	locus := model.VariantLocus{Chromosome: rec.Chrom, Position: rec.Pos, SourceID: p.opts.SourceID}
	p.groups = p.groups[:0]
	for a := range alleles {
		compact, err := vrs.Compact(a.ID)
		if err != nil {
			return err
		}
		p.groups = append(p.groups, output.Group{
			Locus:     locus,
			CompactID: compact,
			Start:     a.Start,
			End:       a.End,
		})
	}

	for _, g := range p.groups {
		if err := p.w.Append(ctx, g, p.counter); err != nil {
			return err
		}
		p.stats.AllelesWritten++
	}
	return nil
}

func (p *Processor) reject(ctx context.Context, rec *vcf.Record, cause error) error {
	er := ErrorRecord{
		Input:     p.opts.Input,
		Line:      rec.Line,
		Chrom:     rec.Chrom,
		Pos:       rec.Pos,
		Code:      vrserrors.CodeOf(cause).Name(),
		Message:   cause.Error(),
		Info:      rec.Info().Raw(),
		Timestamp: time.Now().UTC(),
		Err:       cause,
	}
	p.opts.Logger.LogSkip(ctx, rec.Line, model.VariantLocus{Chromosome: rec.Chrom, Position: rec.Pos}, cause)
	telemetry.AddSpanEvent(ctx, "record.skipped",
		attribute.Int64("line", rec.Line),
		attribute.String("code", er.Code),
	)

	cont, err := p.opts.Errors.HandleError(er)
	if p.opts.Errors.Policy() != ErrorPolicyStrict {
		p.stats.RecordsSkipped++
	}
	if !cont {
		return err
	}
	return nil
}

// sourceError classifies an error from the record source.
func (p *Processor) sourceError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return vrserrors.Canceled("read record", err)
	}
	var syntax *vcf.SyntaxError
	if errors.As(err, &syntax) {
		return vrserrors.Wrap(err, vrserrors.CodeMalformedInput, "malformed VCF record").
			WithContext("line", syntax.Line)
	}
	var coded *vrserrors.Error
	if errors.As(err, &coded) {
		return err
	}
	return vrserrors.IoFailure("read input", err)
}

func (p *Processor) boundaryNow() boundary {
	return boundary{
		records: p.stats.RecordsResumed + p.stats.RecordsRead,
		skipped: p.base.skipped + p.stats.RecordsSkipped,
		alleles: p.base.alleles + p.stats.AllelesWritten,
		counter: p.counter.Peek(),
		offset:  p.w.Offset(),
	}
}

// saveCheckpoint stores the last record boundary. A failed save is logged
// and the run continues; the previous checkpoint still describes a valid
// prefix of the output.
func (p *Processor) saveCheckpoint(ctx context.Context) {
	cp := p.opts.Checkpoint
	cp.Update(p.last.records, p.last.skipped, p.last.alleles, p.last.counter, p.last.offset)
	if p.opts.Checkpoints == nil {
		return
	}
	if err := p.opts.Checkpoints.Save(ctx, cp); err != nil {
		p.opts.Logger.WarnContext(ctx, "checkpoint save failed", "id", cp.ID, "error", err)
	}
}

// finishCheckpoint records the final state. A successful run marks the
// checkpoint complete; a failed one leaves it at the last record boundary.
func (p *Processor) finishCheckpoint(ctx context.Context, runErr error) error {
	cp := p.opts.Checkpoint
	if cp == nil {
		return nil
	}
	cp.Update(p.last.records, p.last.skipped, p.last.alleles, p.last.counter, p.last.offset)
	if runErr == nil {
		cp.Complete()
	}
	if p.opts.Checkpoints == nil {
		return nil
	}

	// The run context may already be canceled; the final save must still land.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := p.opts.Checkpoints.Save(saveCtx, cp); err != nil {
		return vrserrors.Wrap(err, vrserrors.CodeCheckpoint, "save final checkpoint").WithContext("id", cp.ID)
	}
	return nil
}
