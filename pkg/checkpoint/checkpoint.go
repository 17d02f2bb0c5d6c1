// Package checkpoint persists run progress so an interrupted run can resume
// without duplicating or losing allele groups.
package checkpoint

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"time"
)

// Phase is the lifecycle stage of a run.
type Phase string

const (
	PhaseRunning  Phase = "running"
	PhaseComplete Phase = "complete"
)

// Checkpoint tracks how far a run got. RecordsRead, NextCounter and
// OutputBytes are always saved together and describe the same instant: the
// output held exactly OutputBytes bytes after RecordsRead input records, and
// the next group would be keyed NextCounter.
type Checkpoint struct {
	// Identification
	ID         string `json:"id"`
	RunID      string `json:"run_id"`
	InputPath  string `json:"input_path"`
	OutputPath string `json:"output_path"`

	// Progress
	RecordsRead    int64  `json:"records_read"`
	RecordsSkipped int64  `json:"records_skipped"`
	AllelesWritten int64  `json:"alleles_written"`
	NextCounter    uint64 `json:"next_counter"`
	OutputBytes    int64  `json:"output_bytes"`

	// Detached is set when another run appended to the output after this
	// checkpoint's boundary. The bytes past OutputBytes then belong to that
	// run, and this one continues at the end of the file.
	Detached bool `json:"detached,omitempty"`

	// State
	Phase       Phase      `json:"phase"`
	StartedAt   time.Time  `json:"started_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// New returns a running checkpoint for the (input, output) pair.
func New(runID, inputPath, outputPath string) *Checkpoint {
	now := time.Now().UTC()
	return &Checkpoint{
		ID:         IDFor(inputPath, outputPath),
		RunID:      runID,
		InputPath:  inputPath,
		OutputPath: outputPath,
		Phase:      PhaseRunning,
		StartedAt:  now,
		UpdatedAt:  now,
	}
}

// IDFor derives a stable checkpoint id from the input and output paths, so
// re-running the same command finds the same checkpoint.
func IDFor(inputPath, outputPath string) string {
	sum := sha256.Sum256([]byte(absPath(inputPath) + "\x00" + absPath(outputPath)))
	return "cp_" + hex.EncodeToString(sum[:12])
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// Update records progress.
func (c *Checkpoint) Update(recordsRead, recordsSkipped, allelesWritten int64, nextCounter uint64, outputBytes int64) {
	c.RecordsRead = recordsRead
	c.RecordsSkipped = recordsSkipped
	c.AllelesWritten = allelesWritten
	c.NextCounter = nextCounter
	c.OutputBytes = outputBytes
	c.UpdatedAt = time.Now().UTC()
}

// Complete marks the run finished.
func (c *Checkpoint) Complete() {
	now := time.Now().UTC()
	c.Phase = PhaseComplete
	c.UpdatedAt = now
	c.CompletedAt = &now
}

// Done reports whether the run finished.
func (c *Checkpoint) Done() bool {
	return c.Phase == PhaseComplete
}

// Detach marks that another run now owns the end of the output.
func (c *Checkpoint) Detach() {
	c.Detached = true
	c.UpdatedAt = time.Now().UTC()
}

// Writes reports whether the checkpoint belongs to a run into output.
func (c *Checkpoint) Writes(output string) bool {
	return absPath(c.OutputPath) == absPath(output)
}

// Duration returns how long the run has been going, or took.
func (c *Checkpoint) Duration() time.Duration {
	if c.CompletedAt != nil {
		return c.CompletedAt.Sub(c.StartedAt)
	}
	return time.Since(c.StartedAt)
}
