package identity

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finance-tower/pkg/utils"
)

func seededDB(t *testing.T) *SQLDirectory {
	t.Helper()
	ctx := context.Background()
	db, err := utils.OpenSQLite(ctx, filepath.Join(t.TempDir(), "identity.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, Migrate(ctx, db))
	require.NoError(t, Migrate(ctx, db))

	_, err = db.ExecContext(ctx, `
INSERT INTO users (id, display_name) VALUES ('u1', 'Ada'), ('u2', 'Grace');
INSERT INTO project_members (project_id, user_id, role) VALUES ('p1', 'u1', 'owner'), ('p1', 'u2', 'member');
`)
	require.NoError(t, err)
	return NewSQLDirectory(db)
}

func TestSQLDirectory_Names(t *testing.T) {
	dir := seededDB(t)

	names, err := dir.Names(context.Background(), []string{"u1", "u2", "ghost"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"u1": "Ada", "u2": "Grace"}, names)

	names, err = dir.Names(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestSQLMembership_ProjectRole(t *testing.T) {
	dir := seededDB(t)
	m := NewSQLMembership(dir.db)
	ctx := context.Background()

	role, err := m.ProjectRole(ctx, "p1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "owner", role)

	_, err = m.ProjectRole(ctx, "p2", "u1")
	assert.ErrorIs(t, err, ErrNotMember)
}

func TestStaticCollaborators(t *testing.T) {
	ctx := context.Background()

	names, err := StaticDirectory{"u1": "Ada"}.Names(ctx, []string{"u1", "u9"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"u1": "Ada"}, names)

	m := StaticMembership{"p1": {"u1": "member"}}
	role, err := m.ProjectRole(ctx, "p1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "member", role)
	_, err = m.ProjectRole(ctx, "p1", "u2")
	assert.ErrorIs(t, err, ErrNotMember)
}

func TestCachedDirectory_NilClientPassesThrough(t *testing.T) {
	c := NewCachedDirectory(StaticDirectory{"u1": "Ada"}, nil, 0)

	names, err := c.Names(context.Background(), []string{"u1"})
	require.NoError(t, err)
	assert.Equal(t, "Ada", names["u1"])
}

func TestCachedDirectory_UnreachableRedisFallsBack(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })
	c := NewCachedDirectory(StaticDirectory{"u1": "Ada"}, rdb, time.Minute)

	names, err := c.Names(context.Background(), []string{"u1", "u2"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"u1": "Ada"}, names)
}
