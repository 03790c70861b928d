package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/backmassage/sdr2hdr/internal/config"
	"github.com/backmassage/sdr2hdr/internal/naming"
)

// ResolveOptions controls input expansion. Logger receives a warning for
// every path that does not exist; nil discards them.
type ResolveOptions struct {
	DiscoverOptions
	Logger hclog.Logger
}

// Target pairs an input file with the output it converts to.
type Target struct {
	Input  string
	Output string
}

// Resolve expands inputs into a de-duplicated list of files in argument
// order. Each argument may hold several ';'-separated paths. Directories
// contribute their matching files in sorted order; explicitly named files
// are taken as-is whatever their extension. Missing paths are skipped with a warning, and an empty
// result is an error wrapping config.ErrInvalidInput.
func Resolve(inputs []string, opts ResolveOptions) ([]string, error) {
	log := opts.Logger
	if log == nil {
		log = hclog.NewNullLogger()
	}

	seen := make(map[string]bool)
	var files []string
	add := func(p string) {
		p = filepath.Clean(p)
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}

	for _, arg := range inputs {
		for _, p := range strings.Split(arg, ";") {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			fi, err := os.Stat(p)
			if err != nil {
				log.Warn("skipping missing input", "path", p)
				continue
			}
			if !fi.IsDir() {
				add(p)
				continue
			}
			found, err := Discover(p, opts.DiscoverOptions)
			if err != nil {
				return nil, fmt.Errorf("scan %s: %w", p, err)
			}
			if len(found) == 0 {
				log.Warn("no matching videos in directory", "path", p)
			}
			for _, f := range found {
				add(f)
			}
		}
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no video files to convert", config.ErrInvalidInput)
	}
	return files, nil
}

// OutputPathFor returns the output for input. In batch mode output is a
// directory and the file keeps its basename, with a " - dupN" suffix when
// resolver already gave that name to another input. Otherwise output is
// returned unchanged.
func OutputPathFor(input, output string, batch bool, resolver *naming.CollisionResolver) string {
	if !batch {
		return output
	}
	return resolver.Resolve(input, naming.BatchOutputPath(input, output))
}

// planTargets pairs files with outputs. Single mode needs exactly one file;
// an existing directory as its output receives the file under its own name.
// Batch mode needs a directory output, which is created when missing.
// Writing over an input is refused. Every error wraps config.ErrInvalidInput.
func planTargets(files []string, output string, batch, fold bool, resolver *naming.CollisionResolver) ([]Target, error) {
	fi, statErr := os.Stat(output)

	if !batch {
		if len(files) != 1 {
			return nil, fmt.Errorf("%w: single-file mode needs exactly one input (got %d), use --batch", config.ErrInvalidInput, len(files))
		}
		out := output
		if statErr == nil && fi.IsDir() {
			out = naming.BatchOutputPath(files[0], output)
		}
		if samePath(files[0], out, fold) {
			return nil, fmt.Errorf("%w: output %s would overwrite its input", config.ErrInvalidInput, out)
		}
		return []Target{{Input: files[0], Output: out}}, nil
	}

	if statErr == nil && !fi.IsDir() {
		return nil, fmt.Errorf("%w: batch output %s is not a directory", config.ErrInvalidInput, output)
	}
	targets := make([]Target, 0, len(files))
	for _, f := range files {
		if samePath(f, naming.BatchOutputPath(f, output), fold) {
			return nil, fmt.Errorf("%w: output directory %s holds input %s", config.ErrInvalidInput, output, filepath.Base(f))
		}
	}
	if statErr != nil {
		if err := os.MkdirAll(output, 0o755); err != nil {
			return nil, fmt.Errorf("%w: create output directory: %v", config.ErrInvalidInput, err)
		}
	}
	for _, f := range files {
		targets = append(targets, Target{Input: f, Output: OutputPathFor(f, output, true, resolver)})
	}
	return targets, nil
}

func samePath(a, b string, fold bool) bool {
	if abs, err := filepath.Abs(a); err == nil {
		a = abs
	}
	if abs, err := filepath.Abs(b); err == nil {
		b = abs
	}
	if fold {
		return strings.EqualFold(a, b)
	}
	return a == b
}
