package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "crm.db")
	store, err := openStore(context.Background(), "", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.DB.Close() })
	return store
}

// newTestApp runs the real reconciler, backfill and seeders against a
// throwaway SQLite file and returns the app routed exactly as in
// production.
func newTestApp(t *testing.T) *App {
	t.Helper()
	store := newTestStore(t)
	require.NoError(t, initDatabase(context.Background(), store))
	return &App{Store: store, UploadDir: t.TempDir()}
}

func doRequest(t *testing.T, a *App, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	a.router().ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func createdID(t *testing.T, w *httptest.ResponseRecorder) int64 {
	t.Helper()
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return int64(decodeBody[map[string]float64](t, w)["id"])
}

// firstSKUIDs returns n ids from the seeded catalog.
func firstSKUIDs(t *testing.T, s *Store, n int) []int64 {
	t.Helper()
	rows, err := s.Query(context.Background(), `SELECT id FROM skus ORDER BY id LIMIT ?`, n)
	require.NoError(t, err)
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		require.NoError(t, rows.Scan(&id))
		ids = append(ids, id)
	}
	require.NoError(t, rows.Err())
	require.Len(t, ids, n)
	return ids
}
