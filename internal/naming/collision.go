package naming

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
)

// CollisionResolver tracks output paths claimed by input files and resolves
// duplicates by appending " - dupN" suffixes. All methods are goroutine-safe.
//
// With fold set, paths differing only in letter case collide, matching the
// default filesystems of macOS and Windows.
type CollisionResolver struct {
	mu       sync.Mutex
	fold     bool
	owners   map[string]string // output key → input path that owns it
	counters map[string]int    // base output key → next dup counter
}

// NewCollisionResolver creates a ready-to-use resolver.
func NewCollisionResolver(fold bool) *CollisionResolver {
	return &CollisionResolver{
		fold:     fold,
		owners:   make(map[string]string),
		counters: make(map[string]int),
	}
}

func (cr *CollisionResolver) key(path string) string {
	path = filepath.Clean(path)
	if cr.fold {
		return strings.ToLower(path)
	}
	return path
}

// Resolve returns the final output path for input, handling collisions.
// If requestedOutput is unclaimed (or already owned by input), it is returned
// as-is. Otherwise a " - dupN" variant is generated.
func (cr *CollisionResolver) Resolve(input, requestedOutput string) string {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	k := cr.key(requestedOutput)
	owner, exists := cr.owners[k]
	if !exists || owner == input {
		cr.owners[k] = input
		return requestedOutput
	}

	dir := filepath.Dir(requestedOutput)
	base := filepath.Base(requestedOutput)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	counter := cr.counters[k]
	if counter == 0 {
		counter = 1
	}

	for {
		candidate := filepath.Join(dir, fmt.Sprintf("%s - dup%d%s", stem, counter, ext))
		ck := cr.key(candidate)
		cOwner, cExists := cr.owners[ck]
		if !cExists || cOwner == input {
			cr.counters[k] = counter + 1
			cr.owners[ck] = input
			return candidate
		}
		counter++
	}
}

// Claimed reports whether path is already the output of some input.
func (cr *CollisionResolver) Claimed(path string) bool {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	_, ok := cr.owners[cr.key(path)]
	return ok
}
