package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/dataloom-cli/internal/result"
	"github.com/KaramelBytes/dataloom-cli/internal/table"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMigrationsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	s1, err := Open(path)
	require.NoError(t, err)
	v1, err := s1.AppliedMigrations()
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()
	v2, err := s2.AppliedMigrations()
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
	assert.Equal(t, []int{1}, v2)
}

func TestAppendListNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, q := range []string{"first", "second", "third"} {
		require.NoError(t, s.Append(ctx, Entry{
			ID: q, SessionID: "s1", Query: q, Type: "dataframe", Content: "x",
			Timestamp: base.Add(time.Duration(i) * time.Second),
		}))
	}
	require.NoError(t, s.Append(ctx, Entry{ID: "other", SessionID: "s2", Query: "o", Type: "error", Timestamp: base.Add(time.Hour)}))

	got, err := s.List(ctx, "s1", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "third", got[0].Query)
	assert.Equal(t, "second", got[1].Query)
	assert.True(t, got[0].Timestamp.Equal(base.Add(2*time.Second)))

	all, err := s.List(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)
	assert.Equal(t, "other", all[0].ID)

	sessions, err := s.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "s2", sessions[0].ID)
	assert.Equal(t, 3, sessions[1].Entries)

	e, err := s.Get(ctx, "second")
	require.NoError(t, err)
	assert.Equal(t, "s1", e.SessionID)
	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := s.DeleteSession(ctx, "s1")
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func TestAppendRequiresIDs(t *testing.T) {
	s := openTestStore(t)
	assert.Error(t, s.Append(context.Background(), Entry{Query: "q"}))
}

func TestSessionRecordsAndPersists(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	sess := NewSession(s)
	require.NotEmpty(t, sess.ID)

	f := table.New("a")
	f.AddRow(1)
	_, err := sess.Record(ctx, "plot it", result.Plot("output_plots/p.png"))
	require.NoError(t, err)
	_, err = sess.Record(ctx, "describe", result.Data(f))
	require.NoError(t, err)
	_, err = sess.Record(ctx, "broken", result.Error("could not generate result"))
	require.NoError(t, err)

	entries := sess.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "output_plots/p.png", entries[0].Content)
	assert.Contains(t, entries[1].Content, "| a |")
	assert.Equal(t, "error", entries[2].Type)

	stored, err := s.List(ctx, sess.ID, 10)
	require.NoError(t, err)
	assert.Len(t, stored, 3)

	sess.Close()
	_, err = sess.Record(ctx, "late", result.Data(1))
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestSessionWithoutStore(t *testing.T) {
	sess := NewSession(nil)
	_, err := sess.Record(context.Background(), "q", result.Data(2.5))
	require.NoError(t, err)
	assert.Equal(t, "2.5", sess.Entries()[0].Content)
}
