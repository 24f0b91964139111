package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bluesky-social/nestedset/catalog"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func testServer(t *testing.T) (*Server, *catalog.Catalog) {
	t.Helper()
	require := require.New(t)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(err)
	sqlDB, err := db.DB()
	require.NoError(err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cat, err := catalog.New(db, logger)
	require.NoError(err)
	require.NoError(cat.Migrate())

	return NewServer(Config{Logger: logger, Catalog: cat, Registerer: prometheus.NewRegistry()}), cat
}

func do(t *testing.T, srv *Server, method, path, body string, out any) int {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if out != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

func TestCategoryAPI(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	srv, _ := testServer(t)

	var health map[string]any
	assert.Equal(http.StatusOK, do(t, srv, "GET", "/_health", "", &health))
	assert.Equal("ok", health["status"])

	var root, a, b CategoryView
	require.Equal(http.StatusCreated, do(t, srv, "POST", "/categories", `{"name":"root"}`, &root))
	require.Equal(http.StatusCreated, do(t, srv, "POST", "/categories", `{"name":"a","parentId":1}`, &a))
	require.Equal(http.StatusCreated, do(t, srv, "POST", "/categories", `{"name":"b","parentId":1}`, &b))
	assert.Equal(int64(4), b.Left)
	assert.Equal(int64(1), b.Depth)

	var moved CategoryView
	require.Equal(http.StatusOK, do(t, srv, "POST", "/categories/3/move", `{"targetId":2,"position":"child"}`, &moved))
	assert.Equal(int64(3), moved.Left)
	assert.Equal(int64(4), moved.Right)
	assert.Equal(int64(2), moved.Depth)

	var path []CategoryView
	require.Equal(http.StatusOK, do(t, srv, "GET", "/categories/3/path", "", &path))
	require.Len(path, 3)
	assert.Equal("root", path[0].Name)
	assert.Equal("b", path[2].Name)

	var tree []*TreeView
	require.Equal(http.StatusOK, do(t, srv, "GET", "/categories?tree=true", "", &tree))
	require.Len(tree, 1)
	require.Len(tree[0].Children, 1)
	require.Len(tree[0].Children[0].Children, 1)
	assert.Equal("b", tree[0].Children[0].Children[0].Name)

	var renamed CategoryView
	require.Equal(http.StatusOK, do(t, srv, "PATCH", "/categories/3", `{"name":"bee"}`, &renamed))
	assert.Equal("bee", renamed.Name)

	var reparented CategoryView
	require.Equal(http.StatusOK, do(t, srv, "POST", "/categories/3/reparent", `{"parentId":null}`, &reparented))
	assert.Nil(reparented.ParentID)
	assert.Equal(int64(0), reparented.Depth)

	assert.Equal(http.StatusNoContent, do(t, srv, "DELETE", "/categories/2", "", nil))

	var list []CategoryView
	require.Equal(http.StatusOK, do(t, srv, "GET", "/categories", "", &list))
	assert.Len(list, 2)

	var check map[string]any
	require.Equal(http.StatusOK, do(t, srv, "GET", "/admin/check", "", &check))
	assert.Equal(true, check["ok"])
}

func TestCategoryAPIErrors(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	srv, _ := testServer(t)

	var root, child CategoryView
	require.Equal(http.StatusCreated, do(t, srv, "POST", "/categories", `{"name":"root"}`, &root))
	require.Equal(http.StatusCreated, do(t, srv, "POST", "/categories", `{"name":"child","parentId":1}`, &child))

	var e GenericError
	assert.Equal(http.StatusNotFound, do(t, srv, "GET", "/categories/42", "", &e))
	assert.Equal("NotFound", e.Error)

	assert.Equal(http.StatusBadRequest, do(t, srv, "GET", "/categories/abc", "", &e))
	assert.Equal(http.StatusBadRequest, do(t, srv, "POST", "/categories", `{"name":""}`, &e))

	assert.Equal(http.StatusBadRequest, do(t, srv, "POST", "/categories/2/move", `{"targetId":1,"position":"above"}`, &e))
	assert.Equal("InvalidRequest", e.Error)

	assert.Equal(http.StatusBadRequest, do(t, srv, "POST", "/categories/2/move", `{"targetId":99}`, &e))

	assert.Equal(http.StatusConflict, do(t, srv, "POST", "/categories/1/move", `{"targetId":2,"position":"child"}`, &e))
	assert.Equal("InvalidMove", e.Error)
	assert.Contains(e.Message, "own subtree")
}

func TestSeedCatalog(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	_, cat := testServer(t)

	created, err := seedCatalog(ctx, cat, gofakeit.New(7), seedParams{Count: 30, Roots: 2, MaxDepth: 3})
	require.NoError(err)
	assert.Equal(30, created)

	report, err := cat.Check(ctx)
	require.NoError(err)
	assert.True(report.OK(), "violations: %v", report.Violations)
	assert.Equal(30, report.Nodes)
	assert.Equal(2, report.Roots)

	cats, err := cat.List(ctx)
	require.NoError(err)
	for _, c := range cats {
		assert.LessOrEqual(c.Depth, int64(3))
	}
}

func TestErrorBodyWrittenOnce(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	srv, _ := testServer(t)

	for _, path := range []string{"/categories/42", "/categories/abc"} {
		req := httptest.NewRequest("GET", path, nil)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)

		dec := json.NewDecoder(rec.Body)
		var e GenericError
		require.NoError(dec.Decode(&e), path)
		assert.NotEmpty(e.Error, path)
		assert.False(dec.More(), "%s: trailing data after error body", path)
	}
}
