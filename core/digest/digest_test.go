package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeTestFile creates a file with the given content under a fresh temp dir.
func writeTestFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	tempDir, err := os.MkdirTemp("", "digest-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	path := filepath.Join(tempDir, name)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	return path
}

// TestHashFile tests streaming hashing against a known digest.
func TestHashFile(t *testing.T) {
	content := []byte("cedar vault test content")
	path := writeTestFile(t, "a.bin", content)

	h := sha256.Sum256(content)
	want := hex.EncodeToString(h[:])

	got, err := HashFile(path)
	if err != nil {
		t.Fatalf("failed to hash file: %v", err)
	}
	if got != want {
		t.Errorf("hash mismatch: got %s, want %s", got, want)
	}
}

// TestHashFileLarge tests hashing content larger than one read buffer.
func TestHashFileLarge(t *testing.T) {
	content := make([]byte, 1<<20)
	for i := range content {
		content[i] = byte(i % 251)
	}
	path := writeTestFile(t, "big.bin", content)

	h := sha256.Sum256(content)
	want := hex.EncodeToString(h[:])

	got, err := HashFile(path)
	if err != nil {
		t.Fatalf("failed to hash file: %v", err)
	}
	if got != want {
		t.Errorf("hash mismatch on large file: got %s, want %s", got, want)
	}
}

// TestVerifyFileMatch tests the Match result, including case-insensitive comparison.
func TestVerifyFileMatch(t *testing.T) {
	content := []byte("matching content")
	path := writeTestFile(t, "a.bin", content)
	expected := Sum(content)

	result, err := VerifyFile(path, expected)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != Match {
		t.Errorf("expected Match, got %s", result)
	}

	result, err = VerifyFile(path, strings.ToUpper(expected))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != Match {
		t.Errorf("expected case-insensitive Match, got %s", result)
	}
}

// TestVerifyFileMismatch tests that wrong content reports Mismatch without error.
func TestVerifyFileMismatch(t *testing.T) {
	path := writeTestFile(t, "a.bin", []byte("actual content"))
	expected := Sum([]byte("planned content"))

	result, err := VerifyFile(path, expected)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != Mismatch {
		t.Errorf("expected Mismatch, got %s", result)
	}
}

// TestVerifyFileUnreadable tests that a missing file reports Unreadable with a cause.
func TestVerifyFileUnreadable(t *testing.T) {
	result, err := VerifyFile("/nonexistent/path/a.bin", Sum([]byte("x")))
	if result != Unreadable {
		t.Errorf("expected Unreadable, got %s", result)
	}
	if err == nil {
		t.Error("expected underlying error for Unreadable, got nil")
	}
}

// TestTamperDetection tests that a single flipped byte is detected.
func TestTamperDetection(t *testing.T) {
	content := []byte("pristine archive content")
	path := writeTestFile(t, "a.bin", content)
	expected := Sum(content)

	tampered := append([]byte(nil), content...)
	tampered[5] ^= 0x01
	if err := os.WriteFile(path, tampered, 0644); err != nil {
		t.Fatalf("failed to tamper file: %v", err)
	}

	result, err := VerifyFile(path, expected)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != Mismatch {
		t.Errorf("expected Mismatch after tampering, got %s", result)
	}
}

// TestBlake3File tests that the streaming BLAKE3 digest matches Blake3Sum.
func TestBlake3File(t *testing.T) {
	content := []byte("blake3 secondary digest")
	path := writeTestFile(t, "a.bin", content)

	got, err := Blake3File(path)
	if err != nil {
		t.Fatalf("failed to hash file: %v", err)
	}
	if want := Blake3Sum(content); got != want {
		t.Errorf("blake3 mismatch: got %s, want %s", got, want)
	}
}

// TestResultString tests the result names.
func TestResultString(t *testing.T) {
	if Match.String() != "match" || Mismatch.String() != "mismatch" || Unreadable.String() != "unreadable" {
		t.Error("unexpected result names")
	}
}
