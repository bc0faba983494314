package digest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// SidecarSuffix is appended to a destination path to form its sidecar path.
const SidecarSuffix = ".digest.json"

// Sidecar is the digest record written next to a committed destination.
// It is advisory: verification always re-hashes the destination bytes and
// never trusts a sidecar.
type Sidecar struct {
	SHA256    string `json:"sha256"`
	BLAKE3    string `json:"blake3"`
	SizeBytes int64  `json:"size_bytes"`
	WrittenAt string `json:"written_at"`
}

// SidecarPath returns the sidecar path for a destination.
func SidecarPath(destination string) string {
	return destination + SidecarSuffix
}

// WriteSidecar writes the sidecar for a committed destination whose
// SHA-256 digest is already known. The BLAKE3 digest and size are taken
// from the destination file itself. The write uses a temp file and an
// atomic rename in the destination's directory, so readers never observe
// a partial sidecar.
func WriteSidecar(destination, sha256Hex string) error {
	b3, err := Blake3File(destination)
	if err != nil {
		return fmt.Errorf("failed to hash %s: %w", destination, err)
	}
	info, err := os.Stat(destination)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", destination, err)
	}

	sc := Sidecar{
		SHA256:    sha256Hex,
		BLAKE3:    b3,
		SizeBytes: info.Size(),
		WrittenAt: time.Now().UTC().Format(time.RFC3339),
	}
	data, err := json.Marshal(sc)
	if err != nil {
		return fmt.Errorf("failed to marshal sidecar: %w", err)
	}

	dir := filepath.Dir(destination)
	tempFile, err := os.CreateTemp(dir, ".sidecar-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write sidecar: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tempPath, SidecarPath(destination)); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename sidecar: %w", err)
	}
	return nil
}

// ReadSidecar reads the sidecar for a destination, if present.
func ReadSidecar(destination string) (*Sidecar, error) {
	data, err := os.ReadFile(SidecarPath(destination))
	if err != nil {
		return nil, err
	}
	var sc Sidecar
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("failed to parse sidecar: %w", err)
	}
	return &sc, nil
}
