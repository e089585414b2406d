package corpus

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

const fingerprintPrefix = "sha256:"

// Fingerprint returns a content hash of the file at path. The same bytes always yield
// the same fingerprint, so an unchanged corpus can be recognized without parsing it.
func Fingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open corpus: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash corpus: %w", err)
	}
	return fingerprintPrefix + hex.EncodeToString(h.Sum(nil)), nil
}
