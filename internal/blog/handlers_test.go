package blog_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafbgarcia/appctx"
	"github.com/rafbgarcia/appctx/internal/blog"
	"github.com/rafbgarcia/appctx/resources/sqldb"
	"github.com/rafbgarcia/appctx/router"
)

func newTestApp(t *testing.T) *appctx.App {
	t.Helper()
	app := appctx.NewApp(appctx.WithConfig(appctx.MustConfig(map[string]any{
		sqldb.KeyDSN: filepath.Join(t.TempDir(), "blog.db"),
	})))
	require.NoError(t, blog.Register(app))
	app.Binder().Seal()
	return app
}

func newServer(t *testing.T, app *appctx.App) http.Handler {
	t.Helper()
	r := router.New(app)
	blog.Routes(r)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestListJobs(t *testing.T) {
	h := newServer(t, newTestApp(t))
	rec := do(t, h, http.MethodGet, "/api/jobs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var jobs []blog.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &jobs))
	assert.Equal(t, blog.Jobs, jobs)
}

func TestUsersAndPosts(t *testing.T) {
	h := newServer(t, newTestApp(t))

	rec := do(t, h, http.MethodPost, "/api/users", `{"name":"Ada","email":"ada@example.com"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var user blog.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	assert.NotZero(t, user.ID)

	rec = do(t, h, http.MethodPost, "/api/users/1/posts", `{"title":"Hello","body":"first post"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/users/1/posts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var posts []blog.BlogPost
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &posts))
	require.Len(t, posts, 1)
	assert.Equal(t, "Hello", posts[0].Title)
	assert.Equal(t, user.ID, posts[0].UserID)

	rec = do(t, h, http.MethodGet, "/api/users", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var users []blog.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &users))
	require.Len(t, users, 1)
	assert.Equal(t, "Ada", users[0].Name)
}

func createUser(t *testing.T, h http.Handler, name string) blog.User {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/api/users", `{"name":"`+name+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var user blog.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	return user
}

func createPost(t *testing.T, h http.Handler, userID uint, title string) blog.BlogPost {
	t.Helper()
	rec := do(t, h, http.MethodPost, fmt.Sprintf("/api/users/%d/posts", userID), `{"title":"`+title+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var post blog.BlogPost
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &post))
	return post
}

func TestListUsers_Order(t *testing.T) {
	h := newServer(t, newTestApp(t))
	for _, name := range []string{"a", "b", "c"} {
		createUser(t, h, name)
	}

	names := func(query string) []string {
		rec := do(t, h, http.MethodGet, "/api/users"+query, "")
		require.Equal(t, http.StatusOK, rec.Code)
		var users []blog.User
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &users))
		var out []string
		for _, u := range users {
			out = append(out, u.Name)
		}
		return out
	}
	assert.Equal(t, []string{"a", "b", "c"}, names(""))
	assert.Equal(t, []string{"a", "b", "c"}, names("?order=asc"))
	assert.Equal(t, []string{"c", "b", "a"}, names("?order=desc"))
}

func TestGetUser_IncludesPosts(t *testing.T) {
	h := newServer(t, newTestApp(t))
	user := createUser(t, h, "Ada")
	createPost(t, h, user.ID, "one")
	createPost(t, h, user.ID, "two")

	rec := do(t, h, http.MethodGet, fmt.Sprintf("/api/users/%d", user.ID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got blog.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Ada", got.Name)
	require.Len(t, got.Posts, 2)
	assert.Equal(t, "one", got.Posts[0].Title)
	assert.Equal(t, "two", got.Posts[1].Title)
}

func TestPosts_GetAndDelete(t *testing.T) {
	h := newServer(t, newTestApp(t))
	user := createUser(t, h, "Ada")
	post := createPost(t, h, user.ID, "hello")
	path := fmt.Sprintf("/api/posts/%d", post.ID)

	rec := do(t, h, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got blog.BlogPost
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "hello", got.Title)

	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodDelete, path, "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, path, "").Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, fmt.Sprintf("/api/users/%d", user.ID), "").Code,
		"deleting a post leaves its user")
}

func TestDeleteUser_CascadesToPosts(t *testing.T) {
	app := newTestApp(t)
	h := newServer(t, app)
	ada := createUser(t, h, "Ada")
	bob := createUser(t, h, "Bob")
	createPost(t, h, ada.ID, "ada 1")
	createPost(t, h, ada.ID, "ada 2")
	kept := createPost(t, h, bob.ID, "bob 1")

	rec := do(t, h, http.MethodDelete, fmt.Sprintf("/api/users/%d", ada.ID), "")
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, fmt.Sprintf("/api/users/%d", ada.ID), "").Code)

	err := app.Run(context.Background(), appctx.Config{}, func(ctx context.Context) error {
		db, err := sqldb.DB(ctx, app.Binder())
		require.NoError(t, err)
		var ids []int64
		rows, err := db.QueryContext(ctx, "SELECT id FROM blog_post ORDER BY id")
		require.NoError(t, err)
		defer rows.Close()
		for rows.Next() {
			var id int64
			require.NoError(t, rows.Scan(&id))
			ids = append(ids, id)
		}
		assert.Equal(t, []int64{int64(kept.ID)}, ids)
		return rows.Err()
	})
	require.NoError(t, err)
}

func TestValidationAndMissingUser(t *testing.T) {
	h := newServer(t, newTestApp(t))

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"bad json", http.MethodPost, "/api/users", `{`, http.StatusBadRequest},
		{"missing name", http.MethodPost, "/api/users", `{"email":"x"}`, http.StatusBadRequest},
		{"missing title", http.MethodPost, "/api/users/1/posts", `{"body":"x"}`, http.StatusBadRequest},
		{"bad id", http.MethodGet, "/api/users/abc/posts", "", http.StatusBadRequest},
		{"unknown user posts", http.MethodGet, "/api/users/7/posts", "", http.StatusNotFound},
		{"post for unknown user", http.MethodPost, "/api/users/7/posts", `{"title":"x"}`, http.StatusNotFound},
		{"bad order", http.MethodGet, "/api/users?order=sideways", "", http.StatusBadRequest},
		{"unknown user", http.MethodGet, "/api/users/7", "", http.StatusNotFound},
		{"delete unknown user", http.MethodDelete, "/api/users/7", "", http.StatusNotFound},
		{"unknown post", http.MethodGet, "/api/posts/7", "", http.StatusNotFound},
		{"delete unknown post", http.MethodDelete, "/api/posts/7", "", http.StatusNotFound},
		{"bad post id", http.MethodDelete, "/api/posts/x", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestInitDB_CreatesTablesInsideItsOwnScope(t *testing.T) {
	app := newTestApp(t)
	require.NoError(t, blog.InitDB(context.Background(), app))

	err := app.Run(context.Background(), appctx.Config{}, func(ctx context.Context) error {
		db, err := sqldb.DB(ctx, app.Binder())
		require.NoError(t, err)
		var n int
		require.NoError(t, db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('user', 'blog_post')").Scan(&n))
		assert.Equal(t, 2, n)
		return nil
	})
	require.NoError(t, err)
}
