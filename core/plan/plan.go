// Package plan provides the plan record model and loader.
// A plan is an ordered manifest of {source, expected_hash, destination}
// records describing what should be committed into the archive tree and
// what digest each destination must carry.
package plan

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/FocuswithJustin/CedarVault/core/errors"
)

// hashPattern matches a 256-bit digest as hex (case folded on input).
var hashPattern = regexp.MustCompile(`^[a-fA-F0-9]{64}$`)

// Record is one planned operation: commit source into destination, or
// verify that destination already holds content with the expected digest.
type Record struct {
	Source       string `json:"source"`
	ExpectedHash string `json:"expected_hash"`
	Destination  string `json:"destination"`
}

// Validate checks the record's fields. The hash is normalized to lowercase.
func (r *Record) Validate() error {
	if r.Source == "" {
		return errors.NewValidation("source", "must not be empty")
	}
	if !hashPattern.MatchString(r.ExpectedHash) {
		return errors.NewValidation("expected_hash", "must be 64 hex characters")
	}
	if r.Destination == "" {
		return errors.NewValidation("destination", "must not be empty")
	}
	r.ExpectedHash = strings.ToLower(r.ExpectedHash)
	return nil
}

// Set is a validated, ordered plan. Read-only after load.
type Set struct {
	records []Record
}

// Records returns the plan records in input order.
func (s *Set) Records() []Record {
	return s.records
}

// Len returns the number of records in the plan.
func (s *Set) Len() int {
	return len(s.records)
}

// Load parses a plan from r. Both encodings named by the input contract
// are accepted: a single JSON array of records, or newline-delimited JSON
// objects (one record per line, blank lines ignored). The first non-space
// byte selects the decoder. An empty or malformed plan fails the load;
// no partial plan is ever returned.
func Load(r io.Reader) (*Set, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.NewIO("read", "plan", err)
	}

	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, errors.NewParse("plan", "", "empty plan")
	}

	var records []Record
	if trimmed[0] == '[' {
		records, err = parseArray(trimmed)
	} else {
		records, err = parseLines(trimmed)
	}
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.NewParse("plan", "", "plan contains no records")
	}

	for i := range records {
		if err := records[i].Validate(); err != nil {
			return nil, errors.Wrapf(err, "plan record %d", i)
		}
	}

	return &Set{records: records}, nil
}

// LoadFile loads and validates a plan from the given path.
func LoadFile(path string) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	defer f.Close()

	set, err := Load(f)
	if err != nil {
		var parseErr *errors.ParseError
		if errors.As(err, &parseErr) && parseErr.Path == "" {
			parseErr.Path = path
		}
		return nil, err
	}
	return set, nil
}

// parseArray decodes a single JSON array of records.
func parseArray(data []byte) ([]Record, error) {
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, errors.NewParse("plan", "", err.Error())
	}
	return records, nil
}

// parseLines decodes newline-delimited JSON records.
func parseLines(data []byte) ([]Record, error) {
	var records []Record
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, errors.NewParse("plan", "", fmt.Sprintf("line %d: %v", lineNo, err))
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.NewParse("plan", "", err.Error())
	}
	return records, nil
}
