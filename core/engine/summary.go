package engine

import (
	"encoding/json"
	"io"

	"github.com/FocuswithJustin/CedarVault/core/plan"
)

// Process exit statuses. Translation from internal results to these
// values happens only at the command boundary.
const (
	// ExitOK means every record ended ok.
	ExitOK = 0
	// ExitRecordsBad means one or more records failed verification or application.
	ExitRecordsBad = 1
	// ExitConfigError means an infrastructure/configuration failure stopped
	// the run before any record was evaluated.
	ExitConfigError = 2
)

// Summary aggregates per-record outcomes into category counters. It is
// created once per run, mutated exactly once per record, and serialized
// exactly once as the run's sole structured output on the primary stream.
type Summary struct {
	RC int `json:"rc"`

	FullExpected int `json:"full_expected"`
	FullOK       int `json:"full_ok"`
	FullBad      int `json:"full_bad"`

	IncrExpected int `json:"incr_expected"`
	IncrOK       int `json:"incr_ok"`
	IncrBad      int `json:"incr_bad"`

	OtherExpected int `json:"other_expected"`
	OtherOK       int `json:"other_ok"`
	OtherBad      int `json:"other_bad"`
}

// NewSummary creates a summary with the expected counter of every
// category pre-filled from the plan, unconditionally: a record counts as
// expected whether or not it later fails.
func NewSummary(set *plan.Set) *Summary {
	s := &Summary{}
	for _, rec := range set.Records() {
		switch plan.Classify(rec.Destination) {
		case plan.CategoryFull:
			s.FullExpected++
		case plan.CategoryIncr:
			s.IncrExpected++
		default:
			s.OtherExpected++
		}
	}
	return s
}

// Record counts one record's terminal outcome in its category.
func (s *Summary) Record(category plan.Category, ok bool) {
	switch category {
	case plan.CategoryFull:
		if ok {
			s.FullOK++
		} else {
			s.FullBad++
		}
	case plan.CategoryIncr:
		if ok {
			s.IncrOK++
		} else {
			s.IncrBad++
		}
	default:
		if ok {
			s.OtherOK++
		} else {
			s.OtherBad++
		}
	}
}

// OK returns the total number of records that ended ok.
func (s *Summary) OK() int {
	return s.FullOK + s.IncrOK + s.OtherOK
}

// Bad returns the total number of records that ended bad.
func (s *Summary) Bad() int {
	return s.FullBad + s.IncrBad + s.OtherBad
}

// Finalize sets the summary's rc from the accumulated counters.
func (s *Summary) Finalize() {
	if s.Bad() > 0 {
		s.RC = ExitRecordsBad
	} else {
		s.RC = ExitOK
	}
}

// ExitCode returns the process exit status the finalized summary selects.
func (s *Summary) ExitCode() int {
	return s.RC
}

// Emit writes the summary as a single JSON record followed by a
// newline. Callers parsing the primary stream find exactly one such
// record per run.
func (s *Summary) Emit(w io.Writer) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
