package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileHasher(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.go")
	require.NoError(t, os.WriteFile(path, []byte("package a\n"), 0o644))

	fh := NewFileHasher()
	h, err := fh.HashFile(path)
	require.NoError(t, err)
	assert.Equal(t, fh.HashContent([]byte("package a\n")), h)
	assert.Len(t, h, 64)

	_, err = fh.HashFiles([]string{path, filepath.Join(dir, "missing.go")})
	assert.Error(t, err)
}

func TestFingerprint(t *testing.T) {
	files := map[string]string{"a.go": "1", "b.go": "2"}
	base := Fingerprint("v1", []byte("output: ."), files)

	tests := []struct {
		name    string
		version string
		config  string
		files   map[string]string
		same    bool
	}{
		{"identical", "v1", "output: .", map[string]string{"b.go": "2", "a.go": "1"}, true},
		{"version", "v2", "output: .", files, false},
		{"config", "v1", "output: out", files, false},
		{"content", "v1", "output: .", map[string]string{"a.go": "1", "b.go": "3"}, false},
		{"added file", "v1", "output: .", map[string]string{"a.go": "1", "b.go": "2", "c.go": "3"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Fingerprint(tt.version, []byte(tt.config), tt.files)
			if tt.same {
				assert.Equal(t, base, got)
			} else {
				assert.NotEqual(t, base, got)
			}
		})
	}
}
