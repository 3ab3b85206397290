package generator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	diffpatch "github.com/sergi/go-diff/diffmatchpatch"
)

// ErrStale is returned by Check when generated files on disk are out of
// date.
var ErrStale = errors.New("generated files are out of date")

// FileDiff is one output file that differs from the file on disk.
type FileDiff struct {
	Path    string
	Missing bool
	Diff    string
}

// Check runs a pass in memory and compares its output with the files on
// disk. It returns ErrStale along with the differences when any file is
// missing or differs.
func (g *Generator) Check(ctx context.Context) ([]FileDiff, error) {
	res, err := g.Build(ctx)
	if err != nil {
		return nil, err
	}

	var diffs []FileDiff
	for _, d := range res.Domains {
		for _, f := range d.Files {
			path := filepath.Join(g.config.Output, f.Name)
			current, err := os.ReadFile(path)
			if errors.Is(err, os.ErrNotExist) {
				diffs = append(diffs, FileDiff{Path: path, Missing: true})
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", path, err)
			}
			if string(current) != f.Content {
				diffs = append(diffs, FileDiff{Path: path, Diff: LineDiff(string(current), f.Content)})
			}
		}
	}
	if len(diffs) > 0 {
		return diffs, ErrStale
	}
	return nil, nil
}

// LineDiff returns the changed lines between two texts, prefixed with "-"
// and "+", under "@@ -line +line @@" hunk headers.
func LineDiff(before, after string) string {
	dmp := diffpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var out strings.Builder
	oldLine, newLine := 1, 1
	inHunk := false
	for _, d := range diffs {
		text := splitLines(d.Text)
		switch d.Type {
		case diffpatch.DiffEqual:
			oldLine += len(text)
			newLine += len(text)
			inHunk = false
		case diffpatch.DiffDelete:
			if !inHunk {
				fmt.Fprintf(&out, "@@ -%d +%d @@\n", oldLine, newLine)
				inHunk = true
			}
			for _, l := range text {
				out.WriteString("-" + l + "\n")
			}
			oldLine += len(text)
		case diffpatch.DiffInsert:
			if !inHunk {
				fmt.Fprintf(&out, "@@ -%d +%d @@\n", oldLine, newLine)
				inHunk = true
			}
			for _, l := range text {
				out.WriteString("+" + l + "\n")
			}
			newLine += len(text)
		}
	}
	return out.String()
}

func splitLines(s string) []string {
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i := range lines {
		lines[i] = strings.TrimSuffix(lines[i], "\n")
	}
	return lines
}
