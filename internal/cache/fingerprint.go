package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"sort"
)

// FileHasher computes content hashes for cache keys
type FileHasher struct{}

// NewFileHasher creates a new file hasher
func NewFileHasher() *FileHasher {
	return &FileHasher{}
}

// HashFile computes a SHA-256 hash of the file contents
func (fh *FileHasher) HashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// HashContent computes a SHA-256 hash of the given content
func (fh *FileHasher) HashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// HashFiles hashes every path. Unreadable files are returned as an error.
func (fh *FileHasher) HashFiles(paths []string) (map[string]string, error) {
	out := make(map[string]string, len(paths))
	for _, p := range paths {
		h, err := fh.HashFile(p)
		if err != nil {
			return nil, err
		}
		out[p] = h
	}
	return out, nil
}

// Fingerprint identifies the inputs of a generation pass: the tool version,
// the configuration and the content of every input file, in path order.
func Fingerprint(version string, config []byte, files map[string]string) string {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	h := sha256.New()
	io.WriteString(h, "version\x00"+version+"\x00")
	io.WriteString(h, "config\x00"+NewFileHasher().HashContent(config)+"\x00")
	for _, p := range paths {
		io.WriteString(h, p+"\x00"+files[p]+"\x00")
	}
	return hex.EncodeToString(h.Sum(nil))
}
