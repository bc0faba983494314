package plan

import (
	"path/filepath"
	"strings"
)

// Category groups records for reporting. It never affects correctness:
// a record in any category goes through the same guard, staging and
// verification path.
type Category int

const (
	// CategoryFull is a full snapshot destination.
	CategoryFull Category = iota
	// CategoryIncr is an incremental snapshot destination.
	CategoryIncr
	// CategoryOther is any destination that is neither.
	CategoryOther
)

// String returns the category name used in logs and the journal.
func (c Category) String() string {
	switch c {
	case CategoryFull:
		return "FULL"
	case CategoryIncr:
		return "INCR"
	default:
		return "OTHER"
	}
}

// Classify derives a record's category from its destination path.
// The base name's prefix wins; failing that, directory components are
// consulted, so both "FULL-20260830.tar" and "archive/FULL/a.bin"
// classify as FULL. Matching is case-insensitive.
func Classify(destination string) Category {
	if c, ok := classifyName(filepath.Base(destination)); ok {
		return c
	}
	dir := filepath.Dir(destination)
	for _, part := range strings.Split(filepath.ToSlash(dir), "/") {
		if c, ok := classifyName(part); ok {
			return c
		}
	}
	return CategoryOther
}

func classifyName(name string) (Category, bool) {
	upper := strings.ToUpper(name)
	switch {
	case strings.HasPrefix(upper, "FULL"):
		return CategoryFull, true
	case strings.HasPrefix(upper, "INCR"):
		return CategoryIncr, true
	}
	return CategoryOther, false
}
