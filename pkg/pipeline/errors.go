// Package pipeline drives VRS records from a VCF stream into the index file.
package pipeline

import (
	"fmt"
	"sync"
	"time"

	vrserrors "github.com/vrsindex/vrsindex/pkg/errors"
)

// ErrorPolicy determines how record-level errors are handled.
type ErrorPolicy int

const (
	// ErrorPolicySkip logs bad records and continues processing.
	ErrorPolicySkip ErrorPolicy = iota
	// ErrorPolicyStrict aborts on the first bad record.
	ErrorPolicyStrict
	// ErrorPolicyQuarantine skips bad records and writes them to a side file.
	ErrorPolicyQuarantine
)

func (p ErrorPolicy) String() string {
	switch p {
	case ErrorPolicyStrict:
		return "strict"
	case ErrorPolicySkip:
		return "skip"
	case ErrorPolicyQuarantine:
		return "quarantine"
	default:
		return "unknown"
	}
}

// ParseErrorPolicy parses a policy name.
func ParseErrorPolicy(s string) (ErrorPolicy, error) {
	switch s {
	case "skip", "":
		return ErrorPolicySkip, nil
	case "strict":
		return ErrorPolicyStrict, nil
	case "quarantine":
		return ErrorPolicyQuarantine, nil
	default:
		return ErrorPolicySkip, vrserrors.New(vrserrors.CodeConfig, "unknown error policy").
			WithContext("policy", s)
	}
}

// ErrorRecord describes one record that failed extraction, transposition or
// compaction.
type ErrorRecord struct {
	Input     string    `json:"input"`
	Line      int64     `json:"line"`
	Chrom     string    `json:"chrom"`
	Pos       uint32    `json:"pos"`
	Code      string    `json:"code"`
	Message   string    `json:"error"`
	Info      string    `json:"info,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	Err error `json:"-"`
}

// Quarantine receives records rejected under ErrorPolicyQuarantine.
type Quarantine interface {
	Add(rec ErrorRecord) error
}

// ErrorHandler applies an ErrorPolicy and keeps error counts.
type ErrorHandler struct {
	mu sync.Mutex

	policy       ErrorPolicy
	maxErrors    int64 // Maximum errors before aborting (0 = unlimited)
	errorCount   int64
	skippedCount int64
	byCode       map[vrserrors.Code]int64

	// Collected errors (limited to avoid memory issues)
	errors    []ErrorRecord
	maxStored int

	onSkip     func(ErrorRecord)
	quarantine Quarantine
}

// NewErrorHandler creates a new error handler with the given policy.
func NewErrorHandler(policy ErrorPolicy) *ErrorHandler {
	return &ErrorHandler{
		policy:    policy,
		maxStored: 100,
		byCode:    make(map[vrserrors.Code]int64),
	}
}

// WithMaxErrors sets the maximum number of errors before aborting.
func (h *ErrorHandler) WithMaxErrors(max int64) *ErrorHandler {
	h.maxErrors = max
	return h
}

// WithOnSkip sets a callback for skipped records.
func (h *ErrorHandler) WithOnSkip(fn func(ErrorRecord)) *ErrorHandler {
	h.onSkip = fn
	return h
}

// WithQuarantine sets the sink for quarantined records.
func (h *ErrorHandler) WithQuarantine(q Quarantine) *ErrorHandler {
	h.quarantine = q
	return h
}

// Policy returns the configured policy.
func (h *ErrorHandler) Policy() ErrorPolicy { return h.policy }

// HandleError processes a record error according to the policy.
// Returns true if processing should continue; otherwise the returned error
// ends the run.
func (h *ErrorHandler) HandleError(rec ErrorRecord) (continueProcessing bool, returnErr error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.errorCount++
	h.byCode[vrserrors.CodeOf(rec.Err)]++
	if len(h.errors) < h.maxStored {
		h.errors = append(h.errors, rec)
	}

	if h.policy == ErrorPolicyStrict {
		return false, vrserrors.Wrapf(rec.Err, vrserrors.CodeOf(rec.Err),
			"record at line %d rejected under strict policy", rec.Line)
	}

	if h.policy == ErrorPolicyQuarantine && h.quarantine != nil {
		if err := h.quarantine.Add(rec); err != nil {
			return false, vrserrors.IoFailure("write quarantine record", err)
		}
	}

	h.skippedCount++
	if h.onSkip != nil {
		h.onSkip(rec)
	}

	if h.maxErrors > 0 && h.errorCount >= h.maxErrors {
		return false, vrserrors.Wrap(rec.Err, vrserrors.CodeOf(rec.Err),
			fmt.Sprintf("maximum error count (%d) reached at line %d", h.maxErrors, rec.Line))
	}
	return true, nil
}

// ErrorStats contains error processing statistics.
type ErrorStats struct {
	ErrorCount   int64
	SkippedCount int64
	ByCode       map[string]int64
	Policy       ErrorPolicy
}

// Stats returns error statistics keyed by error name.
func (h *ErrorHandler) Stats() ErrorStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	byCode := make(map[string]int64, len(h.byCode))
	for c, n := range h.byCode {
		byCode[c.Name()] = n
	}
	return ErrorStats{
		ErrorCount:   h.errorCount,
		SkippedCount: h.skippedCount,
		ByCode:       byCode,
		Policy:       h.policy,
	}
}

// Errors returns the first collected errors.
func (h *ErrorHandler) Errors() []ErrorRecord {
	h.mu.Lock()
	defer h.mu.Unlock()

	result := make([]ErrorRecord, len(h.errors))
	copy(result, h.errors)
	return result
}
