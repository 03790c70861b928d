package pipeline

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/backmassage/sdr2hdr/internal/config"
)

// DiscoverOptions controls which directory entries count as inputs.
type DiscoverOptions struct {
	Extensions      []string // with leading dot; empty selects config.DefaultExtensions
	Recursive       bool
	CaseInsensitive bool
}

// Match reports whether path has one of the configured extensions.
func (o DiscoverOptions) Match(path string) bool {
	exts := o.Extensions
	if len(exts) == 0 {
		exts = config.DefaultExtensions
	}
	ext := filepath.Ext(path)
	for _, e := range exts {
		if ext == e || (o.CaseInsensitive && strings.EqualFold(ext, e)) {
			return true
		}
	}
	return false
}

// Discover collects the matching files in dir, descending into
// subdirectories only when Recursive is set, and returns them sorted
// lexicographically for deterministic processing order.
func Discover(dir string, opts DiscoverOptions) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && !opts.Recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && opts.Match(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}
