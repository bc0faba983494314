// Package engine realizes plan records against the archive tree.
//
// Apply mode stages a record's source bytes into a temporary file beside
// the final destination, flushes it, verifies the staged digest, and
// commits it with a single atomic rename. Observers therefore never see a
// partially written destination: each destination either does not exist,
// holds its previous content, or holds one writer's complete,
// hash-verified content. Verify-only mode re-hashes existing destinations
// and never writes.
package engine

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/CedarVault/core/digest"
	"github.com/FocuswithJustin/CedarVault/core/plan"
	"github.com/FocuswithJustin/CedarVault/internal/logging"
	"github.com/FocuswithJustin/CedarVault/internal/pathguard"
)

// osRename is a variable to allow testing of rename errors.
var osRename = os.Rename

// tempFileWrite is a function variable for staging writes (for testing).
var tempFileWrite = func(f *os.File, r io.Reader) (int64, error) {
	return io.Copy(f, r)
}

// tempFileSync is a function variable for flushing staged files (for testing).
var tempFileSync = func(f *os.File) error {
	return f.Sync()
}

// tempFileClose is a function variable for closing staged files (for testing).
var tempFileClose = func(f io.Closer) error {
	return f.Close()
}

// stagePattern names staging temp files. A crash leaves at most one of
// these behind; they are never visible at a destination path.
const stagePattern = ".stage-*"

// Mode selects what Run does with each record.
type Mode int

const (
	// ModeApply stages, verifies and commits each record.
	ModeApply Mode = iota
	// ModeVerify re-checks existing destinations without writing.
	ModeVerify
)

// String returns the mode name used in logs and the journal.
func (m Mode) String() string {
	if m == ModeApply {
		return "apply"
	}
	return "verify"
}

// Outcome is the terminal state of one record.
type Outcome int

const (
	// OutcomeCommitted means the staged content was verified and renamed into place.
	OutcomeCommitted Outcome = iota
	// OutcomeVerifiedOK means the existing destination matched its expected digest.
	OutcomeVerifiedOK
	// OutcomeRejected means the path guard refused the destination.
	OutcomeRejected
	// OutcomeApplyBad means staging or staged verification failed; the destination is untouched.
	OutcomeApplyBad
	// OutcomeVerifiedBad means the existing destination is missing, unreadable or tampered.
	OutcomeVerifiedBad
)

// OK reports whether the outcome counts toward the category's ok counter.
func (o Outcome) OK() bool {
	return o == OutcomeCommitted || o == OutcomeVerifiedOK
}

// String returns the outcome name used in logs and the journal.
func (o Outcome) String() string {
	switch o {
	case OutcomeCommitted:
		return "COMMITTED"
	case OutcomeVerifiedOK:
		return "VERIFIED_OK"
	case OutcomeRejected:
		return "REJECTED"
	case OutcomeApplyBad:
		return "APPLY_BAD"
	default:
		return "VERIFIED_BAD"
	}
}

// RecordResult is the evaluated outcome of one plan record.
type RecordResult struct {
	Record   plan.Record
	Category plan.Category
	Outcome  Outcome
	Detail   string // cause for bad outcomes, empty otherwise
}

// Executor evaluates a plan set against the archive roots.
type Executor struct {
	guard *pathguard.Guard
	mode  Mode
	runID string
}

// New creates an executor for the given guard and mode. Each executor
// carries a fresh run ID used in logs and the journal.
func New(guard *pathguard.Guard, mode Mode) *Executor {
	return &Executor{
		guard: guard,
		mode:  mode,
		runID: uuid.NewString(),
	}
}

// RunID returns the executor's run identifier.
func (e *Executor) RunID() string {
	return e.runID
}

// Mode returns the executor's mode.
func (e *Executor) Mode() Mode {
	return e.mode
}

// Run processes every record in order and returns the finalized summary
// together with per-record results. Per-record failures never abort the
// run; the only fatal errors happen before Run, while loading
// configuration. Each record mutates the summary exactly once.
func (e *Executor) Run(set *plan.Set) (*Summary, []RecordResult) {
	start := time.Now()
	logging.RunStart(e.runID, e.mode.String(), set.Len())

	summary := NewSummary(set)
	results := make([]RecordResult, 0, set.Len())
	for _, rec := range set.Records() {
		res := e.processRecord(rec)
		summary.Record(res.Category, res.Outcome.OK())
		results = append(results, res)

		if res.Detail != "" {
			logging.RecordOutcome(e.runID, rec.Destination, res.Category.String(), res.Outcome.String(), "detail", res.Detail)
		} else {
			logging.RecordOutcome(e.runID, rec.Destination, res.Category.String(), res.Outcome.String())
		}
	}

	summary.Finalize()
	logging.RunFinish(e.runID, summary.RC, summary.OK(), summary.Bad(), time.Since(start))
	return summary, results
}

// processRecord takes one record from PENDING to a terminal state.
func (e *Executor) processRecord(rec plan.Record) RecordResult {
	res := RecordResult{
		Record:   rec,
		Category: plan.Classify(rec.Destination),
	}

	resolved, err := e.guard.Authorize(rec.Destination)
	if err != nil {
		res.Outcome = OutcomeRejected
		res.Detail = err.Error()
		return res
	}

	if e.mode == ModeVerify {
		res.Outcome, res.Detail = verifyRecord(resolved, rec.ExpectedHash)
		return res
	}
	res.Outcome, res.Detail = applyRecord(rec.Source, resolved, rec.ExpectedHash)
	return res
}

// verifyRecord checks an existing destination against its expected digest.
func verifyRecord(resolved, expectedHash string) (Outcome, string) {
	result, err := digest.VerifyFile(resolved, expectedHash)
	switch result {
	case digest.Match:
		return OutcomeVerifiedOK, ""
	case digest.Mismatch:
		return OutcomeVerifiedBad, "destination content does not match expected hash"
	default:
		return OutcomeVerifiedBad, "destination unreadable: " + err.Error()
	}
}

// applyRecord stages source into a temp file beside resolved, verifies the
// staged bytes and commits them with one rename. Any failure removes the
// temp file and leaves the destination untouched.
func applyRecord(source, resolved, expectedHash string) (Outcome, string) {
	src, err := os.Open(source)
	if err != nil {
		return OutcomeApplyBad, "source unreadable: " + err.Error()
	}
	defer src.Close()

	destDir := filepath.Dir(resolved)
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return OutcomeApplyBad, "failed to create destination directory: " + err.Error()
	}

	// Stage in the destination directory so the commit rename stays on
	// one filesystem.
	tempFile, err := os.CreateTemp(destDir, stagePattern)
	if err != nil {
		return OutcomeApplyBad, "failed to create staging file: " + err.Error()
	}
	tempPath := tempFile.Name()

	if _, err := tempFileWrite(tempFile, src); err != nil {
		tempFileClose(tempFile)
		os.Remove(tempPath)
		return OutcomeApplyBad, "staging write failed: " + err.Error()
	}
	if err := tempFileSync(tempFile); err != nil {
		tempFileClose(tempFile)
		os.Remove(tempPath)
		return OutcomeApplyBad, "staging flush failed: " + err.Error()
	}
	if err := tempFileClose(tempFile); err != nil {
		os.Remove(tempPath)
		return OutcomeApplyBad, "staging close failed: " + err.Error()
	}

	// Re-read the staged bytes from disk before making them visible. A
	// mismatch here means the source changed since the plan was made or
	// the copy failed silently.
	result, err := digest.VerifyFile(tempPath, expectedHash)
	if result != digest.Match {
		os.Remove(tempPath)
		if result == digest.Mismatch {
			return OutcomeApplyBad, "staged content does not match expected hash"
		}
		return OutcomeApplyBad, "staged file unreadable: " + err.Error()
	}

	if err := osRename(tempPath, resolved); err != nil {
		os.Remove(tempPath)
		return OutcomeApplyBad, "commit rename failed: " + err.Error()
	}

	// The destination is committed; the sidecar is advisory.
	if err := digest.WriteSidecar(resolved, expectedHash); err != nil {
		logging.Warn("sidecar write failed", "destination", resolved, "error", err.Error())
	}

	return OutcomeCommitted, ""
}
