package sqldb_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafbgarcia/appctx"
	"github.com/rafbgarcia/appctx/resources/sqldb"
)

// setupBinder registers the sqldb resources and returns a config pointing at
// a fresh sqlite file.
func setupBinder(t *testing.T) (*appctx.Binder, appctx.Config) {
	t.Helper()
	b := appctx.NewBinder()
	require.NoError(t, sqldb.Register(b))
	cfg := appctx.MustConfig(map[string]any{
		sqldb.KeyDSN: filepath.Join(t.TempDir(), "test.db"),
	})
	return b, cfg
}

func seedPosts(t *testing.T, ctx context.Context, db *sql.DB) {
	t.Helper()
	_, err := db.ExecContext(ctx, `
		CREATE TABLE posts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			published BOOLEAN NOT NULL DEFAULT FALSE
		)`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `
		INSERT INTO posts (title, published) VALUES
			('First Post', true),
			('Draft Post', false)`)
	require.NoError(t, err)
}

func TestDB_OpenedLazilyAndClosedOnExit(t *testing.T) {
	b, cfg := setupBinder(t)

	var db *sql.DB
	err := appctx.Scope(context.Background(), b, cfg, func(ctx context.Context) error {
		f, err := appctx.Current(ctx)
		require.NoError(t, err)
		assert.Empty(t, f.Resources(), "nothing is opened before first use")

		db, err = sqldb.DB(ctx, b)
		require.NoError(t, err)
		require.NoError(t, db.PingContext(ctx))

		again, err := sqldb.DB(ctx, b)
		require.NoError(t, err)
		assert.Same(t, db, again)
		return nil
	})
	require.NoError(t, err)
	assert.ErrorContains(t, db.Ping(), "database is closed")
}

func TestDB_OutsideScope(t *testing.T) {
	b, _ := setupBinder(t)
	_, err := sqldb.DB(context.Background(), b)
	require.ErrorIs(t, err, appctx.ErrNoActiveContext)
}

func TestDB_MissingDSN(t *testing.T) {
	b, _ := setupBinder(t)
	err := appctx.Scope(context.Background(), b, appctx.Config{}, func(ctx context.Context) error {
		_, err := sqldb.DB(ctx, b)
		return err
	})
	var cerr *appctx.ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, sqldb.KeyDSN, cerr.Key)
}

func TestDB_InvalidDriver(t *testing.T) {
	b, cfg := setupBinder(t)
	cfg = cfg.Merge(appctx.MustConfig(map[string]any{sqldb.KeyDriver: "nonexistent"}))
	err := appctx.Scope(context.Background(), b, cfg, func(ctx context.Context) error {
		_, err := sqldb.DB(ctx, b)
		return err
	})
	var ferr *appctx.ResourceFactoryError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, sqldb.Name, ferr.Name)
}

func TestDB_ForeignKeysEnabledByDefault(t *testing.T) {
	b, cfg := setupBinder(t)
	check := func(cfg appctx.Config) int {
		var on int
		err := appctx.Scope(context.Background(), b, cfg, func(ctx context.Context) error {
			db, err := sqldb.DB(ctx, b)
			if err != nil {
				return err
			}
			return db.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&on)
		})
		require.NoError(t, err)
		return on
	}

	assert.Equal(t, 1, check(cfg))
	assert.Equal(t, 0, check(cfg.Merge(appctx.MustConfig(map[string]any{sqldb.KeyForeignKeys: false}))))
}

func TestDB_RawSQLAndTransactions(t *testing.T) {
	b, cfg := setupBinder(t)
	err := appctx.Scope(context.Background(), b, cfg, func(ctx context.Context) error {
		db, err := sqldb.DB(ctx, b)
		require.NoError(t, err)
		seedPosts(t, ctx, db)

		tx, err := db.BeginTx(ctx, nil)
		require.NoError(t, err)
		_, err = tx.ExecContext(ctx, "INSERT INTO posts (title, published) VALUES (?, ?)", "TX Post", true)
		require.NoError(t, err)
		require.NoError(t, tx.Commit())

		tx, err = db.BeginTx(ctx, nil)
		require.NoError(t, err)
		_, err = tx.ExecContext(ctx, "INSERT INTO posts (title, published) VALUES (?, ?)", "Rolled Back", true)
		require.NoError(t, err)
		require.NoError(t, tx.Rollback())

		var count int
		require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM posts WHERE published = ?", true).Scan(&count))
		assert.Equal(t, 2, count)
		return nil
	})
	require.NoError(t, err)
}

func TestX_SharesTheFramePool(t *testing.T) {
	b, cfg := setupBinder(t)

	type Post struct {
		ID        int    `db:"id"`
		Title     string `db:"title"`
		Published bool   `db:"published"`
	}

	err := appctx.Scope(context.Background(), b, cfg, func(ctx context.Context) error {
		x, err := sqldb.X(ctx, b)
		require.NoError(t, err)
		db, err := sqldb.DB(ctx, b)
		require.NoError(t, err)
		assert.Same(t, db, x.DB)
		seedPosts(t, ctx, db)

		var posts []Post
		require.NoError(t, x.SelectContext(ctx, &posts, "SELECT * FROM posts WHERE published = ?", true))
		require.Len(t, posts, 1)
		assert.Equal(t, "First Post", posts[0].Title)

		rows, err := x.NamedQueryContext(ctx, "SELECT * FROM posts WHERE published = :published",
			map[string]any{"published": false})
		require.NoError(t, err)
		defer rows.Close()
		var drafts []Post
		for rows.Next() {
			var p Post
			require.NoError(t, rows.StructScan(&p))
			drafts = append(drafts, p)
		}
		require.Len(t, drafts, 1)
		assert.Equal(t, "Draft Post", drafts[0].Title)

		f, err := appctx.Current(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{sqldb.Name, sqldb.NameX}, f.Resources())
		return nil
	})
	require.NoError(t, err)
}

func TestDB_NestedScopeGetsItsOwnPool(t *testing.T) {
	b, cfg := setupBinder(t)
	err := appctx.Scope(context.Background(), b, cfg, func(ctx context.Context) error {
		outer, err := sqldb.DB(ctx, b)
		require.NoError(t, err)

		err = appctx.Scope(ctx, b, appctx.Config{}, func(ctx context.Context) error {
			inner, err := sqldb.DB(ctx, b)
			require.NoError(t, err)
			assert.NotSame(t, outer, inner)
			return nil
		})
		require.NoError(t, err)
		return outer.PingContext(ctx)
	})
	require.NoError(t, err)
}
