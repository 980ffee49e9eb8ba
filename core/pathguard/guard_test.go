package pathguard_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/filedrop/core/pathguard"
)

func newGuard(t *testing.T) (*pathguard.Guard, string) {
	t.Helper()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "docs", "2024"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".work", "chunks"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "docs", "a.txt"), []byte("a"), 0o644))

	g, err := pathguard.New(root, pathguard.WithReserved(".work"))
	require.NoError(t, err)
	return g, g.Root()
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("missing root", func(t *testing.T) {
		t.Parallel()
		_, err := pathguard.New(filepath.Join(t.TempDir(), "nope"))
		assert.ErrorIs(t, err, pathguard.ErrInvalidRoot)
	})

	t.Run("empty root", func(t *testing.T) {
		t.Parallel()
		_, err := pathguard.New("  ")
		assert.ErrorIs(t, err, pathguard.ErrInvalidRoot)
	})

	t.Run("file as root", func(t *testing.T) {
		t.Parallel()
		f := filepath.Join(t.TempDir(), "f")
		require.NoError(t, os.WriteFile(f, nil, 0o644))
		_, err := pathguard.New(f)
		assert.ErrorIs(t, err, pathguard.ErrInvalidRoot)
	})

	t.Run("root is canonicalized", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		realDir := filepath.Join(dir, "real")
		require.NoError(t, os.Mkdir(realDir, 0o755))
		link := filepath.Join(dir, "link")
		require.NoError(t, os.Symlink(realDir, link))

		g, err := pathguard.New(link)
		require.NoError(t, err)
		want, err := filepath.EvalSymlinks(realDir)
		require.NoError(t, err)
		assert.Equal(t, want, g.Root())
	})
}

func TestGuard_Resolve(t *testing.T) {
	t.Parallel()

	g, root := newGuard(t)

	valid := []struct {
		in  string
		rel string
	}{
		{in: "", rel: ""},
		{in: "/", rel: ""},
		{in: ".", rel: ""},
		{in: "docs", rel: "docs"},
		{in: "/docs/2024/", rel: "docs/2024"},
		{in: `docs\2024`, rel: "docs/2024"},
		{in: "docs/./2024", rel: "docs/2024"},
		{in: "docs/a.txt", rel: "docs/a.txt"},
	}
	for _, tt := range valid {
		res, err := g.Resolve(tt.in)
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.rel, res.Relative, "input %q", tt.in)
		assert.Equal(t, filepath.Join(root, filepath.FromSlash(tt.rel)), res.Absolute, "input %q", tt.in)
	}

	invalid := []string{
		"..",
		"../",
		"../etc",
		"docs/../../etc",
		"docs/..",
		`..\..\windows`,
		"docs/2024/../../..",
		"missing",
		"docs/missing/deeper",
		"docs\x00/a",
		".work",
		".work/chunks",
	}
	for _, in := range invalid {
		_, err := g.Resolve(in)
		assert.ErrorIs(t, err, pathguard.ErrInvalidPath, "input %q", in)
	}
}

func TestGuard_Resolve_SymlinkEscape(t *testing.T) {
	t.Parallel()

	g, root := newGuard(t)
	outside := t.TempDir()

	require.NoError(t, os.Symlink(outside, filepath.Join(root, "escape")))
	require.NoError(t, os.Symlink(filepath.Join(root, "docs"), filepath.Join(root, "inside")))
	require.NoError(t, os.Symlink(filepath.Join(root, "gone"), filepath.Join(root, "broken")))
	require.NoError(t, os.Symlink(filepath.Join(root, ".work"), filepath.Join(root, "sneaky")))

	_, err := g.Resolve("escape")
	assert.ErrorIs(t, err, pathguard.ErrInvalidPath)

	_, err = g.Resolve("broken")
	assert.ErrorIs(t, err, pathguard.ErrInvalidPath)

	_, err = g.Resolve("sneaky/chunks")
	assert.ErrorIs(t, err, pathguard.ErrInvalidPath)

	res, err := g.Resolve("inside/2024")
	require.NoError(t, err)
	assert.Equal(t, "docs/2024", res.Relative)
}

func TestIsWithinRoot(t *testing.T) {
	t.Parallel()

	_, root := newGuard(t)
	outside := t.TempDir()
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "escape")))

	assert.True(t, pathguard.IsWithinRoot(root, root))
	assert.True(t, pathguard.IsWithinRoot(root, filepath.Join(root, "docs", "2024")))
	assert.False(t, pathguard.IsWithinRoot(root, outside))
	assert.False(t, pathguard.IsWithinRoot(root, filepath.Join(root, "escape")))
	assert.False(t, pathguard.IsWithinRoot(root, filepath.Join(root, "missing")))
	assert.False(t, pathguard.IsWithinRoot(root, filepath.Dir(root)))
	assert.False(t, pathguard.IsWithinRoot(root+"-sibling", root))
}

func TestGuard_MkdirAll(t *testing.T) {
	t.Parallel()

	t.Run("creates nested directories", func(t *testing.T) {
		t.Parallel()
		g, root := newGuard(t)

		base, err := g.Resolve("docs")
		require.NoError(t, err)

		res, err := g.MkdirAll(base, "album/summer/day 1", 0o755)
		require.NoError(t, err)
		assert.Equal(t, "docs/album/summer/day 1", res.Relative)
		assert.DirExists(t, filepath.Join(root, "docs", "album", "summer", "day 1"))
	})

	t.Run("existing directories are reused", func(t *testing.T) {
		t.Parallel()
		g, _ := newGuard(t)

		res, err := g.MkdirAll(g.RootResolved(), "docs/2024", 0o755)
		require.NoError(t, err)
		assert.Equal(t, "docs/2024", res.Relative)
	})

	t.Run("empty relative dir returns base", func(t *testing.T) {
		t.Parallel()
		g, _ := newGuard(t)

		base, err := g.Resolve("docs")
		require.NoError(t, err)
		res, err := g.MkdirAll(base, "", 0o755)
		require.NoError(t, err)
		assert.Equal(t, base, res)
	})

	t.Run("symlinked intermediate escaping root", func(t *testing.T) {
		t.Parallel()
		g, root := newGuard(t)
		outside := t.TempDir()
		require.NoError(t, os.Symlink(outside, filepath.Join(root, "evil")))

		_, err := g.MkdirAll(g.RootResolved(), "evil/sub", 0o755)
		assert.ErrorIs(t, err, pathguard.ErrInvalidPath)
		assert.NoDirExists(t, filepath.Join(outside, "sub"))
	})

	t.Run("file in the way", func(t *testing.T) {
		t.Parallel()
		g, _ := newGuard(t)

		_, err := g.MkdirAll(g.RootResolved(), "docs/a.txt/sub", 0o755)
		assert.ErrorIs(t, err, pathguard.ErrInvalidPath)
	})

	t.Run("traversal rejected", func(t *testing.T) {
		t.Parallel()
		g, _ := newGuard(t)

		_, err := g.MkdirAll(g.RootResolved(), "a/../../b", 0o755)
		assert.ErrorIs(t, err, pathguard.ErrInvalidPath)
	})

	t.Run("reserved top-level name", func(t *testing.T) {
		t.Parallel()
		g, _ := newGuard(t)

		_, err := g.MkdirAll(g.RootResolved(), ".work/x", 0o755)
		assert.ErrorIs(t, err, pathguard.ErrInvalidPath)
	})
}

func TestGuard_MkdirAllTracked(t *testing.T) {
	t.Parallel()

	t.Run("reports created directories", func(t *testing.T) {
		t.Parallel()
		g, root := newGuard(t)

		res, created, err := g.MkdirAllTracked(g.RootResolved(), "docs/new/deeper", 0o755)
		require.NoError(t, err)
		assert.Equal(t, "docs/new/deeper", res.Relative)
		assert.Equal(t, []string{
			filepath.Join(root, "docs", "new"),
			filepath.Join(root, "docs", "new", "deeper"),
		}, created)

		require.NoError(t, pathguard.RemoveDirs(created))
		assert.NoDirExists(t, filepath.Join(root, "docs", "new"))
		assert.DirExists(t, filepath.Join(root, "docs"))
	})

	t.Run("non-empty directories survive removal", func(t *testing.T) {
		t.Parallel()
		g, root := newGuard(t)

		_, created, err := g.MkdirAllTracked(g.RootResolved(), "docs/new/deeper", 0o755)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(root, "docs", "new", "keep.txt"), []byte("x"), 0o600))

		require.NoError(t, pathguard.RemoveDirs(created))
		assert.NoDirExists(t, filepath.Join(root, "docs", "new", "deeper"))
		assert.FileExists(t, filepath.Join(root, "docs", "new", "keep.txt"))
	})

	t.Run("failure removes what was created", func(t *testing.T) {
		t.Parallel()
		g, root := newGuard(t)

		_, created, err := g.MkdirAllTracked(g.RootResolved(), "docs/new/"+strings.Repeat("n", 300), 0o755)
		require.Error(t, err)
		assert.Empty(t, created)
		assert.NoDirExists(t, filepath.Join(root, "docs", "new"))
	})
}

func TestWithReservedDir(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	work := filepath.Join(root, ".filedrop", "chunks")
	require.NoError(t, os.MkdirAll(work, 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(root, "public"), 0o755))

	g, err := pathguard.New(root,
		pathguard.WithReservedDir(work),
		pathguard.WithReservedDir(t.TempDir()),
		pathguard.WithReservedDir(root),
	)
	require.NoError(t, err)

	_, err = g.Resolve(".filedrop")
	assert.ErrorIs(t, err, pathguard.ErrInvalidPath)

	_, err = g.Resolve("")
	assert.NoError(t, err)

	_, err = g.Resolve("public")
	assert.NoError(t, err)
}
