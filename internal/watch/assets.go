package watch

import (
	"path/filepath"
	"strings"
)

// ConfigFiles are the configuration file names a change of which is
// reported with ScopeConfig.
var ConfigFiles = []string{"apinni.yaml", "apinni.yml"}

// ImpactScope defines the scope of changes
type ImpactScope int

const (
	ScopeNone   ImpactScope = iota // Nothing to regenerate
	ScopeSource                    // Regenerate
	ScopeConfig                    // Reload configuration, then regenerate
)

// ChangeImpact represents the impact of file changes
type ChangeImpact struct {
	Scope   ImpactScope
	Sources []string
	Configs []string
}

// IsSourceFile reports whether path is a Go source file that can carry
// annotations.
func IsSourceFile(path string) bool {
	return strings.HasSuffix(path, ".go") && !strings.HasSuffix(path, "_test.go")
}

// IsConfigFile reports whether path is a configuration file.
func IsConfigFile(path string) bool {
	base := filepath.Base(path)
	for _, name := range ConfigFiles {
		if base == name {
			return true
		}
	}
	return false
}

// AnalyzeImpact analyzes the impact of file changes
func AnalyzeImpact(files []string) *ChangeImpact {
	impact := &ChangeImpact{}
	for _, file := range files {
		switch {
		case IsConfigFile(file):
			impact.Scope = ScopeConfig
			impact.Configs = append(impact.Configs, file)
		case IsSourceFile(file):
			if impact.Scope < ScopeSource {
				impact.Scope = ScopeSource
			}
			impact.Sources = append(impact.Sources, file)
		}
	}
	return impact
}
