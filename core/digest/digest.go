// Package digest computes and compares content digests for archive files.
// SHA-256 is the primary digest carried by plans; BLAKE3 is recorded
// alongside it in sidecar files for cross-checking by external tooling.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"strings"

	"github.com/zeebo/blake3"
)

// Result is the outcome of comparing a file against an expected digest.
type Result int

const (
	// Match means the file was read fully and its digest equals the expected one.
	Match Result = iota
	// Mismatch means the file was readable but holds different content.
	Mismatch
	// Unreadable means the file is absent, unreadable, or failed mid-read.
	Unreadable
)

// String returns the result name used in logs and diagnostics.
func (r Result) String() string {
	switch r {
	case Match:
		return "match"
	case Mismatch:
		return "mismatch"
	default:
		return "unreadable"
	}
}

// HashFile computes the SHA-256 digest of the file at path, streaming the
// content so memory stays bounded for large archives.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Blake3File computes the BLAKE3 digest of the file at path, streaming.
func Blake3File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// VerifyFile compares the file at path against an expected SHA-256 hex
// digest. The comparison is case-insensitive. The returned error is nil
// for Match and Mismatch; for Unreadable it carries the underlying cause.
func VerifyFile(path, expectedHex string) (Result, error) {
	actual, err := HashFile(path)
	if err != nil {
		return Unreadable, err
	}
	if strings.EqualFold(actual, expectedHex) {
		return Match, nil
	}
	return Mismatch, nil
}

// Sum computes the SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Blake3Sum computes the BLAKE3 digest of data.
func Blake3Sum(data []byte) string {
	h := blake3.Sum256(data)
	return hex.EncodeToString(h[:])
}
