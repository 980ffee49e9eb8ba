package pathguard

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
)

var (
	// ErrInvalidPath is returned for paths that escape the root, contain
	// traversal segments, point at reserved names or cannot be resolved.
	ErrInvalidPath = errors.New("pathguard: invalid path")
	// ErrInvalidRoot is returned by New when the root is not a usable directory.
	ErrInvalidRoot = errors.New("pathguard: invalid root")
)

// Resolved is a path confined to the guard's root.
type Resolved struct {
	// Absolute is the canonical filesystem path.
	Absolute string
	// Relative is slash separated and relative to the root; "" is the root itself.
	Relative string
}

// Guard resolves relative paths inside a canonical root directory.
type Guard struct {
	root     string
	reserved map[string]struct{}
}

// Option configures a Guard.
type Option func(*Guard)

// WithReserved hides top-level names from clients, e.g. an internal work
// directory placed inside the root.
func WithReserved(names ...string) Option {
	return func(g *Guard) {
		for _, n := range names {
			if n = strings.Trim(filepath.ToSlash(n), "/"); n != "" {
				g.reserved[n] = struct{}{}
			}
		}
	}
}

// WithReservedDir reserves the top-level entry of root that contains dir.
// Directories outside root are ignored. dir must exist when New is called.
func WithReservedDir(dir string) Option {
	return func(g *Guard) {
		canonical, err := filepath.EvalSymlinks(dir)
		if err != nil || canonical == g.root || !within(g.root, canonical) {
			return
		}
		rel, err := filepath.Rel(g.root, canonical)
		if err != nil {
			return
		}
		top, _, _ := strings.Cut(filepath.ToSlash(rel), "/")
		g.reserved[top] = struct{}{}
	}
}

// New creates a Guard for root. Root must exist and be a directory.
func New(root string, opts ...Option) (*Guard, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("%w: empty root", ErrInvalidRoot)
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRoot, err)
	}
	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRoot, err)
	}
	info, err := os.Stat(canonical)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRoot, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrInvalidRoot, canonical)
	}

	g := &Guard{
		root:     canonical,
		reserved: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}

	return g, nil
}

// Root returns the canonical root directory.
func (g *Guard) Root() string {
	return g.root
}

// RootResolved returns the root as a Resolved value.
func (g *Guard) RootResolved() Resolved {
	return Resolved{Absolute: g.root}
}

// Resolve turns a client-supplied relative path into a confined canonical
// path. The target must exist.
func (g *Guard) Resolve(relative string) (Resolved, error) {
	segments, err := splitRelative(relative)
	if err != nil {
		return Resolved{}, err
	}

	candidate := filepath.Join(append([]string{g.root}, segments...)...)
	canonical, err := filepath.EvalSymlinks(candidate)
	if err != nil {
		return Resolved{}, fmt.Errorf("%w: %q: %w", ErrInvalidPath, relative, err)
	}

	return g.confine(canonical)
}

// MkdirAll creates relDir below base one segment at a time. After each
// segment is created (or found) the canonical result must still be inside
// the root and must be a directory.
func (g *Guard) MkdirAll(base Resolved, relDir string, perm os.FileMode) (Resolved, error) {
	res, _, err := g.MkdirAllTracked(base, relDir, perm)
	return res, err
}

// MkdirAllTracked is MkdirAll that also returns the directories it created,
// parents first. When it fails, those directories are removed again.
func (g *Guard) MkdirAllTracked(base Resolved, relDir string, perm os.FileMode) (_ Resolved, created []string, err error) {
	segments, err := splitRelative(relDir)
	if err != nil {
		return Resolved{}, nil, err
	}

	current, err := g.confine(base.Absolute)
	if err != nil {
		return Resolved{}, nil, err
	}

	defer func() {
		if err != nil {
			err = errors.Join(err, RemoveDirs(created))
			created = nil
		}
	}()

	for _, seg := range segments {
		if current.Relative == "" {
			if _, ok := g.reserved[seg]; ok {
				return Resolved{}, created, fmt.Errorf("%w: %q is reserved", ErrInvalidPath, seg)
			}
		}

		next := filepath.Join(current.Absolute, seg)
		switch err := os.Mkdir(next, perm); {
		case err == nil:
			created = append(created, next)
		case !errors.Is(err, os.ErrExist):
			return Resolved{}, created, err
		}

		canonical, err := filepath.EvalSymlinks(next)
		if err != nil {
			return Resolved{}, created, fmt.Errorf("%w: %q: %w", ErrInvalidPath, seg, err)
		}
		if !IsWithinRoot(g.root, canonical) {
			return Resolved{}, created, fmt.Errorf("%w: %q escapes the root", ErrInvalidPath, seg)
		}
		info, err := os.Stat(canonical)
		if err != nil {
			return Resolved{}, created, err
		}
		if !info.IsDir() {
			return Resolved{}, created, fmt.Errorf("%w: %q is not a directory", ErrInvalidPath, seg)
		}

		if current, err = g.confine(canonical); err != nil {
			return Resolved{}, created, err
		}
	}

	return current, created, nil
}

// RemoveDirs removes dirs deepest first, as returned by MkdirAllTracked.
// Directories that are no longer empty are kept: another request may have
// stored something in them meanwhile.
func RemoveDirs(dirs []string) error {
	var errs []error
	for _, dir := range slices.Backward(dirs) {
		if err := os.Remove(dir); err != nil && !errors.Is(err, os.ErrNotExist) && !isNotEmpty(err) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func isNotEmpty(err error) bool {
	return errors.Is(err, syscall.ENOTEMPTY) || errors.Is(err, syscall.EEXIST)
}

// IsWithinRoot reports whether candidate, after symlink resolution, is root
// or a descendant of root. Any resolution failure reports false.
func IsWithinRoot(root, candidate string) bool {
	r, err := filepath.EvalSymlinks(root)
	if err != nil {
		return false
	}
	c, err := filepath.EvalSymlinks(candidate)
	if err != nil {
		return false
	}
	return within(r, c)
}

func (g *Guard) confine(canonical string) (Resolved, error) {
	if !within(g.root, canonical) {
		return Resolved{}, fmt.Errorf("%w: outside of root", ErrInvalidPath)
	}

	rel, err := filepath.Rel(g.root, canonical)
	if err != nil {
		return Resolved{}, fmt.Errorf("%w: %w", ErrInvalidPath, err)
	}
	rel = filepath.ToSlash(rel)
	if rel == "." {
		rel = ""
	}

	if top, _, _ := strings.Cut(rel, "/"); top != "" {
		if _, ok := g.reserved[top]; ok {
			return Resolved{}, fmt.Errorf("%w: %q is reserved", ErrInvalidPath, top)
		}
	}

	return Resolved{Absolute: canonical, Relative: rel}, nil
}

// splitRelative normalizes separators and drops empty and "." segments.
// Any ".." segment or NUL byte rejects the whole path.
func splitRelative(relative string) ([]string, error) {
	if strings.ContainsRune(relative, 0) {
		return nil, fmt.Errorf("%w: contains NUL byte", ErrInvalidPath)
	}

	raw := strings.Split(strings.ReplaceAll(relative, `\`, "/"), "/")
	segments := make([]string, 0, len(raw))
	for _, s := range raw {
		switch s {
		case "", ".":
			continue
		case "..":
			return nil, fmt.Errorf("%w: %q contains a parent reference", ErrInvalidPath, relative)
		}
		segments = append(segments, s)
	}
	return segments, nil
}

func within(root, p string) bool {
	if p == root {
		return true
	}
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
