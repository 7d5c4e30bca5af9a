// Package config — .txrecover.yaml configuration file support.
//
// When a .txrecover.yaml file exists in the workspace root, its values
// override the auto-detected ones: explicit source directories narrow
// the call-site scan, and history bounds tune how deep recovery digs.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the default config file name.
const FileName = ".txrecover.yaml"

// File is the top-level .txrecover.yaml structure.
type File struct {
	// SourceLocale is the locale recovered values are written to when
	// no locale is given on the command line (default "en").
	SourceLocale string `yaml:"source_locale,omitempty"`
	// Locales restricts the locale set; empty means all discovered.
	Locales []string `yaml:"locales,omitempty"`
	// SourceDirs are directories to scan for translation call sites,
	// relative to the workspace root.
	SourceDirs []string `yaml:"source_dirs,omitempty"`
	// DaysBack is the history lookback window in days (default 90).
	DaysBack int `yaml:"days_back,omitempty"`
	// MaxCommits caps commits examined per file (default 30).
	MaxCommits int `yaml:"max_commits,omitempty"`
	// ExtractRef pins a known-good commit checked before any history
	// scanning.
	ExtractRef string `yaml:"extract_ref,omitempty"`
	// Parallelism bounds concurrent file work in batch mode (default 3).
	Parallelism int `yaml:"parallelism,omitempty"`
	// GitTimeoutSeconds bounds each git invocation (default 5).
	GitTimeoutSeconds int `yaml:"git_timeout_seconds,omitempty"`
}

// Load reads and validates .txrecover.yaml from the given directory.
// Returns nil if no .txrecover.yaml exists.
func Load(rootDir string) (*File, error) {
	path := filepath.Join(rootDir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if f.SourceLocale == "" {
		f.SourceLocale = "en"
	}
	if f.DaysBack < 0 {
		return nil, fmt.Errorf("%s: days_back must not be negative", path)
	}
	if f.MaxCommits < 0 {
		return nil, fmt.Errorf("%s: max_commits must not be negative", path)
	}
	if f.Parallelism < 0 {
		return nil, fmt.Errorf("%s: parallelism must not be negative", path)
	}

	return &f, nil
}

// Apply overlays the file's explicit values onto the detected workspace.
func (f *File) Apply(w *Workspace) {
	if f == nil {
		return
	}
	if len(f.Locales) > 0 {
		w.Locales = append([]string(nil), f.Locales...)
	}
	if len(f.SourceDirs) > 0 {
		w.SourceDirs = append([]string(nil), f.SourceDirs...)
	}
}
