package store

import (
	"context"
	"testing"

	"github.com/namelens/repolens/internal/config"
	"github.com/namelens/repolens/internal/core"
	"github.com/stretchr/testify/require"
)

func TestResolveLocation(t *testing.T) {
	t.Run("URLGetsAuthToken", func(t *testing.T) {
		loc, err := resolveLocation(config.StoreConfig{
			URL:       "libsql://example.turso.io",
			AuthToken: "token123",
		})
		require.NoError(t, err)
		require.True(t, loc.remote)
		require.Equal(t, "libsql://example.turso.io?authToken=token123", loc.dsn)
		require.Equal(t, "libsql://example.turso.io", loc.String())
	})

	t.Run("URLKeepsExistingQueryAndToken", func(t *testing.T) {
		loc, err := resolveLocation(config.StoreConfig{
			URL:       "libsql://example.turso.io?foo=bar",
			AuthToken: "token123",
		})
		require.NoError(t, err)
		require.Equal(t, "libsql://example.turso.io?authToken=token123&foo=bar", loc.dsn)
		require.Equal(t, "libsql://example.turso.io?foo=bar", loc.String())

		loc, err = resolveLocation(config.StoreConfig{
			URL:       "libsql://example.turso.io?authToken=mine",
			AuthToken: "token123",
		})
		require.NoError(t, err)
		require.Equal(t, "libsql://example.turso.io?authToken=mine", loc.dsn)
	})

	t.Run("URLWinsOverPath", func(t *testing.T) {
		loc, err := resolveLocation(config.StoreConfig{URL: "libsql://db.example", Path: "data/repolens.db"})
		require.NoError(t, err)
		require.True(t, loc.remote)
		require.Empty(t, loc.file)
	})

	t.Run("FilePrefix", func(t *testing.T) {
		loc, err := resolveLocation(config.StoreConfig{Path: "file:./repolens.db"})
		require.NoError(t, err)
		require.Equal(t, "file:./repolens.db", loc.dsn)
		require.Equal(t, "./repolens.db", loc.file)
	})

	t.Run("PlainPath", func(t *testing.T) {
		loc, err := resolveLocation(config.StoreConfig{Path: "data//repolens.db"})
		require.NoError(t, err)
		require.Equal(t, "file:data/repolens.db", loc.dsn)
		require.Equal(t, "data/repolens.db", loc.String())
	})

	t.Run("Memory", func(t *testing.T) {
		loc, err := resolveLocation(config.StoreConfig{Path: ":memory:"})
		require.NoError(t, err)
		require.True(t, loc.memory())
		require.Empty(t, loc.file)
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := resolveLocation(config.StoreConfig{})
		require.Error(t, err)
	})
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.StoreConfig{Driver: "postgres", Path: ":memory:"})
	require.ErrorContains(t, err, "unsupported store driver")
}

func TestNilStoreGuards(t *testing.T) {
	var s *Store

	require.Error(t, s.Migrate(context.Background()))
	require.Error(t, s.UpsertProjects(context.Background(), []core.Project{{ID: "R_1"}}))
	require.Error(t, s.RecordQuota(context.Background(), 0, core.QuotaSnapshot{}))
	require.Error(t, s.RecordRun(context.Background(), core.RunSummary{ID: "run"}))

	_, err := s.GetProject(context.Background(), "R_1")
	require.Error(t, err)
	_, err = s.ListRuns(context.Background(), 10)
	require.Error(t, err)
	require.Error(t, s.CheckHealth(context.Background()))
	require.NoError(t, s.Close())
	require.Equal(t, "", s.Driver())
	require.Equal(t, "", s.Location())
}

func TestQuotaQueryValidate(t *testing.T) {
	require.Error(t, QuotaQuery{}.Validate())
	require.NoError(t, QuotaQuery{All: true}.Validate())

	slot := 2
	where, args, err := QuotaQuery{Slot: &slot}.whereClause()
	require.NoError(t, err)
	require.Equal(t, "WHERE slot = ?", where)
	require.Equal(t, []any{2}, args)
}
