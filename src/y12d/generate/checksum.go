package generate

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// NamedContent is one file to hash
type NamedContent struct {
	Name    string
	Content []byte
}

// SHA256Hex returns the hex sha256 of data
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Checksums hashes files and renders them in sha256sum format, keeping the
// input order so the text is stable.
func Checksums(files []NamedContent) (map[string]string, string) {
	sums := make(map[string]string, len(files))
	lines := make([]string, 0, len(files))
	for _, f := range files {
		h := SHA256Hex(f.Content)
		sums[f.Name] = h
		lines = append(lines, fmt.Sprintf("%s  %s", h, f.Name))
	}
	return sums, strings.Join(lines, "\n")
}
