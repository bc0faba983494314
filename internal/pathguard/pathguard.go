// Package pathguard prevents any operation whose effective destination
// would land outside the authorized archive roots, including via
// symbolic-link redirection of any path component. Plans may come from an
// external producer; without this guard a crafted or corrupted plan could
// direct writes outside the protected archive tree.
package pathguard

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/FocuswithJustin/CedarVault/core/errors"
)

// Guard authorizes destinations against a fixed set of archive roots.
type Guard struct {
	roots []string // absolute, symlink-resolved
}

// New creates a Guard for the given archive roots. Every root must exist:
// a missing root is a configuration error, not a per-record one.
func New(roots ...string) (*Guard, error) {
	if len(roots) == 0 {
		return nil, errors.NewValidation("roots", "at least one archive root is required")
	}

	resolved := make([]string, 0, len(roots))
	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, errors.NewIO("resolve", root, err)
		}
		real, err := filepath.EvalSymlinks(abs)
		if err != nil {
			return nil, errors.NewIO("resolve", root, err)
		}
		info, err := os.Stat(real)
		if err != nil {
			return nil, errors.NewIO("stat", root, err)
		}
		if !info.IsDir() {
			return nil, errors.NewValidation("roots", fmt.Sprintf("%s is not a directory", root))
		}
		resolved = append(resolved, real)
	}

	return &Guard{roots: resolved}, nil
}

// Roots returns the resolved archive roots.
func (g *Guard) Roots() []string {
	return g.roots
}

// Authorize resolves destination's full real path, following symlinks in
// every existing path component, and requires the result to be a
// descendant of one archive root. On success it returns the resolved
// path, which all subsequent I/O must use. Rejection never aborts the
// run; callers count the record as bad and continue.
func (g *Guard) Authorize(destination string) (string, error) {
	if destination == "" {
		return "", errors.NewValidation("destination", "must not be empty")
	}

	abs, err := filepath.Abs(destination)
	if err != nil {
		return "", errors.NewIO("resolve", destination, err)
	}

	resolved, err := resolve(abs)
	if err != nil {
		return "", &errors.PermissionError{
			Operation: "resolve",
			Resource:  destination,
			Reason:    "cannot resolve destination path",
			Err:       err,
		}
	}

	for _, root := range g.roots {
		if contains(root, resolved) {
			return resolved, nil
		}
	}

	return "", errors.NewPermission("write", destination, "destination resolves outside every archive root")
}

// resolve returns the real absolute path of p. Existing components are
// resolved with EvalSymlinks; components that do not exist yet cannot be
// symlinks and are rejoined verbatim.
func resolve(p string) (string, error) {
	real, err := filepath.EvalSymlinks(p)
	if err == nil {
		return real, nil
	}
	if !os.IsNotExist(err) {
		return "", err
	}

	parent := filepath.Dir(p)
	if parent == p {
		// Filesystem root does not exist; nothing more to resolve.
		return p, nil
	}
	realParent, err := resolve(parent)
	if err != nil {
		return "", err
	}
	return filepath.Join(realParent, filepath.Base(p)), nil
}

// contains reports whether path is root or a descendant of root.
func contains(root, path string) bool {
	if path == root {
		return true
	}
	return strings.HasPrefix(path, root+string(filepath.Separator))
}
