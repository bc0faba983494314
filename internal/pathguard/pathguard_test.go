package pathguard

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/FocuswithJustin/CedarVault/core/errors"
)

// newTestGuard builds a guard over <temp>/archive and returns both paths.
func newTestGuard(t *testing.T) (*Guard, string) {
	t.Helper()
	tempDir := t.TempDir()
	root := filepath.Join(tempDir, "archive")
	if err := os.MkdirAll(filepath.Join(root, "FULL"), 0755); err != nil {
		t.Fatalf("failed to create root: %v", err)
	}
	guard, err := New(root)
	if err != nil {
		t.Fatalf("failed to create guard: %v", err)
	}
	return guard, tempDir
}

// TestAuthorizeInsideRoot tests that destinations under a root are authorized.
func TestAuthorizeInsideRoot(t *testing.T) {
	guard, tempDir := newTestGuard(t)

	dest := filepath.Join(tempDir, "archive", "FULL", "a.bin")
	resolved, err := guard.Authorize(dest)
	if err != nil {
		t.Fatalf("expected authorization, got %v", err)
	}
	if filepath.Base(resolved) != "a.bin" {
		t.Errorf("unexpected resolved path: %q", resolved)
	}
}

// TestAuthorizeMissingComponents tests that not-yet-existing subdirectories
// under the root are still authorized (apply creates them later).
func TestAuthorizeMissingComponents(t *testing.T) {
	guard, tempDir := newTestGuard(t)

	dest := filepath.Join(tempDir, "archive", "INCR", "2026", "b.bin")
	if _, err := guard.Authorize(dest); err != nil {
		t.Fatalf("expected authorization for missing subdirs, got %v", err)
	}
}

// TestRejectOutsideRoot tests that a destination outside every root is rejected.
func TestRejectOutsideRoot(t *testing.T) {
	guard, tempDir := newTestGuard(t)

	dest := filepath.Join(tempDir, "elsewhere", "a.bin")
	_, err := guard.Authorize(dest)
	if err == nil {
		t.Fatal("expected rejection, got nil")
	}
	if !errors.Is(err, errors.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

// TestRejectDotDotEscape tests that lexical traversal out of the root is rejected.
func TestRejectDotDotEscape(t *testing.T) {
	guard, tempDir := newTestGuard(t)

	dest := filepath.Join(tempDir, "archive", "FULL", "..", "..", "escape.bin")
	if _, err := guard.Authorize(dest); err == nil {
		t.Fatal("expected rejection of .. escape, got nil")
	}
}

// TestRejectSymlinkedDirectory tests that a symlinked directory component
// pointing outside the root is detected and rejected.
func TestRejectSymlinkedDirectory(t *testing.T) {
	guard, tempDir := newTestGuard(t)

	outside := filepath.Join(tempDir, "outside")
	if err := os.MkdirAll(outside, 0755); err != nil {
		t.Fatalf("failed to create outside dir: %v", err)
	}
	link := filepath.Join(tempDir, "archive", "sneaky")
	if err := os.Symlink(outside, link); err != nil {
		t.Fatalf("failed to create symlink: %v", err)
	}

	dest := filepath.Join(link, "a.bin")
	_, err := guard.Authorize(dest)
	if err == nil {
		t.Fatal("expected rejection of symlinked escape, got nil")
	}
	if !errors.Is(err, errors.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

// TestRejectSymlinkedFinalComponent tests that an existing destination that
// is itself a symlink out of the tree is rejected.
func TestRejectSymlinkedFinalComponent(t *testing.T) {
	guard, tempDir := newTestGuard(t)

	outsideFile := filepath.Join(tempDir, "victim.bin")
	if err := os.WriteFile(outsideFile, []byte("x"), 0644); err != nil {
		t.Fatalf("failed to write outside file: %v", err)
	}
	link := filepath.Join(tempDir, "archive", "FULL", "a.bin")
	if err := os.Symlink(outsideFile, link); err != nil {
		t.Fatalf("failed to create symlink: %v", err)
	}

	if _, err := guard.Authorize(link); err == nil {
		t.Fatal("expected rejection of symlinked destination, got nil")
	}
}

// TestSymlinkInsideRootAllowed tests that symlinks staying inside the root
// are authorized at their resolved path.
func TestSymlinkInsideRootAllowed(t *testing.T) {
	guard, tempDir := newTestGuard(t)

	realDir := filepath.Join(tempDir, "archive", "FULL")
	link := filepath.Join(tempDir, "archive", "latest")
	if err := os.Symlink(realDir, link); err != nil {
		t.Fatalf("failed to create symlink: %v", err)
	}

	resolved, err := guard.Authorize(filepath.Join(link, "a.bin"))
	if err != nil {
		t.Fatalf("expected authorization, got %v", err)
	}
	if want := filepath.Join(realDir, "a.bin"); resolved != want {
		// The root itself may sit behind a resolved temp path; compare suffixes.
		if filepath.Base(filepath.Dir(resolved)) != "FULL" {
			t.Errorf("expected resolution into FULL, got %q", resolved)
		}
	}
}

// TestMultipleRoots tests authorization against more than one root.
func TestMultipleRoots(t *testing.T) {
	tempDir := t.TempDir()
	rootA := filepath.Join(tempDir, "archive-a")
	rootB := filepath.Join(tempDir, "archive-b")
	for _, r := range []string{rootA, rootB} {
		if err := os.MkdirAll(r, 0755); err != nil {
			t.Fatalf("failed to create root: %v", err)
		}
	}

	guard, err := New(rootA, rootB)
	if err != nil {
		t.Fatalf("failed to create guard: %v", err)
	}

	if _, err := guard.Authorize(filepath.Join(rootB, "INCR", "x.bin")); err != nil {
		t.Errorf("expected authorization under second root, got %v", err)
	}
	if _, err := guard.Authorize(filepath.Join(tempDir, "x.bin")); err == nil {
		t.Error("expected rejection outside both roots")
	}
}

// TestNewMissingRoot tests that a missing archive root is a configuration error.
func TestNewMissingRoot(t *testing.T) {
	if _, err := New(filepath.Join(t.TempDir(), "does-not-exist")); err == nil {
		t.Fatal("expected error for missing root, got nil")
	}
}

// TestNewNoRoots tests that a guard requires at least one root.
func TestNewNoRoots(t *testing.T) {
	if _, err := New(); err == nil {
		t.Fatal("expected error for empty root list, got nil")
	}
}

// TestNewRootIsFile tests that a non-directory root is rejected.
func TestNewRootIsFile(t *testing.T) {
	tempDir := t.TempDir()
	file := filepath.Join(tempDir, "rootfile")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	if _, err := New(file); err == nil {
		t.Fatal("expected error for file root, got nil")
	}
}

// TestAuthorizeEmptyDestination tests the empty-destination validation error.
func TestAuthorizeEmptyDestination(t *testing.T) {
	guard, _ := newTestGuard(t)
	if _, err := guard.Authorize(""); err == nil {
		t.Fatal("expected error for empty destination, got nil")
	}
}
