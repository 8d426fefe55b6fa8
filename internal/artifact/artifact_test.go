package artifact

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var pathRe = regexp.MustCompile(`^plot_\d{8}_\d{6}_\d{6}_[0-9a-f]{8}\.png$`)

func TestNewPathFormatAndUniqueness(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "plots")
	fixed := time.Date(2024, 3, 9, 14, 5, 7, 123456000, time.UTC)
	s := Store{Dir: dir, Now: func() time.Time { return fixed }}

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		p, err := s.NewPath()
		require.NoError(t, err)
		assert.Equal(t, dir, filepath.Dir(p))
		base := filepath.Base(p)
		assert.Regexp(t, pathRe, base)
		assert.Contains(t, base, "plot_20240309_140507_123456_")
		assert.False(t, seen[p], "duplicate path %s", p)
		seen[p] = true
	}
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestRemoveIsIdempotent(t *testing.T) {
	p := filepath.Join(t.TempDir(), "plot_x.png")
	require.NoError(t, os.WriteFile(p, []byte("png"), 0o644))
	assert.True(t, Exists(p))

	require.NoError(t, Remove(p))
	assert.False(t, Exists(p))
	require.NoError(t, Remove(p))
	require.NoError(t, Remove(""))
}

func TestExistsIgnoresDirectories(t *testing.T) {
	assert.False(t, Exists(t.TempDir()))
}

func TestResolveRejectsTraversal(t *testing.T) {
	s := Store{Dir: "out"}
	p, err := s.Resolve("plot_a.png")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("out", "plot_a.png"), p)

	for _, bad := range []string{"", "..", "../secret", "a/b.png", `a\b.png`} {
		_, err := s.Resolve(bad)
		assert.Error(t, err, bad)
	}
}

func TestPruneRemovesOldPlotsOnly(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "plot_old.png")
	fresh := filepath.Join(dir, "plot_new.png")
	other := filepath.Join(dir, "notes.txt")
	for _, p := range []string{old, fresh, other} {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}
	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))
	require.NoError(t, os.Chtimes(other, past, past))

	n, err := Store{Dir: dir}.Prune(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, Exists(old))
	assert.True(t, Exists(fresh))
	assert.True(t, Exists(other))

	n, err = Store{Dir: filepath.Join(dir, "missing")}.Prune(time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)
}
