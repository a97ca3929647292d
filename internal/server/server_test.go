package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Tomlord1122/todo-tracker/internal/blob"
	"github.com/Tomlord1122/todo-tracker/internal/config"
	"github.com/Tomlord1122/todo-tracker/internal/database"
	"github.com/Tomlord1122/todo-tracker/internal/domain"
	"github.com/Tomlord1122/todo-tracker/internal/metrics"
	"github.com/Tomlord1122/todo-tracker/internal/repository"
	"github.com/Tomlord1122/todo-tracker/internal/service"
)

const testSecret = "0123456789abcdef0123456789abcdef"

var pngData = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

// flakyStore wraps a store and fails deletes on demand.
type flakyStore struct {
	blob.Store
	deleteErr error
}

func (f *flakyStore) Delete(ctx context.Context, key string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.Store.Delete(ctx, key)
}

type testEnv struct {
	handler http.Handler
	auth    *Authenticator
	store   *flakyStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(database.SQLite(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	dbService := database.NewFromDB(db, nil)
	require.NoError(t, dbService.Migrate())

	disk, err := blob.NewDiskStore(filepath.Join(t.TempDir(), "public"), "/storage")
	require.NoError(t, err)
	store := &flakyStore{Store: disk}

	collector := metrics.NewCollector()
	auth := NewAuthenticator(config.AuthConfig{JWTSecret: testSecret, Issuer: "todo-tracker"})
	todoService := service.NewTodoService(repository.NewGormTodoRepository(db), store, collector)

	s := New(config.ServerConfig{AllowedOrigins: []string{"http://*"}}, Options{
		TodoService: todoService,
		DB:          dbService,
		Store:       store,
		Auth:        auth,
		Logger:      slog.New(slog.DiscardHandler),
		Metrics:     metrics.Handler(metrics.NewRegistry(collector)),
		Files:       disk.Handler(),
		FilesPrefix: "/storage",
	})

	return &testEnv{handler: s.RegisterRoutes(), auth: auth, store: store}
}

func (e *testEnv) token(t *testing.T, ownerID uint) string {
	t.Helper()
	token, err := e.auth.Issue(ownerID, time.Hour)
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, ownerID uint, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if ownerID != 0 {
		req.Header.Set("Authorization", "Bearer "+e.token(t, ownerID))
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) doJSON(t *testing.T, ownerID uint, method, target string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return e.do(t, ownerID, method, target, bytes.NewReader(body), "application/json")
}

func multipartBody(t *testing.T, fields map[string]string, cover []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if cover != nil {
		fw, err := mw.CreateFormFile("cover", "cover.png")
		require.NoError(t, err)
		_, err = fw.Write(cover)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

type envelope struct {
	Data     *todoResponse `json:"data"`
	Warnings []string      `json:"warnings"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (e *testEnv) create(t *testing.T, ownerID uint, title string) todoResponse {
	t.Helper()
	rec := e.doJSON(t, ownerID, http.MethodPost, "/todos", map[string]any{"title": title})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return *decode[envelope](t, rec).Data
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, 0, http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "up", decode[map[string]string](t, rec)["status"])
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	expiredAuth := NewAuthenticator(config.AuthConfig{JWTSecret: testSecret, Issuer: "todo-tracker"})
	expiredAuth.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := expiredAuth.Issue(1, time.Hour)
	require.NoError(t, err)

	otherIssuer, err := NewAuthenticator(config.AuthConfig{JWTSecret: testSecret, Issuer: "someone-else"}).Issue(1, time.Hour)
	require.NoError(t, err)

	otherSecret, err := NewAuthenticator(config.AuthConfig{JWTSecret: strings.Repeat("x", 32), Issuer: "todo-tracker"}).Issue(1, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "wrong scheme", header: "Basic dXNlcjpwYXNz"},
		{name: "garbage token", header: "Bearer not-a-jwt"},
		{name: "expired", header: "Bearer " + expired},
		{name: "wrong issuer", header: "Bearer " + otherIssuer},
		{name: "wrong secret", header: "Bearer " + otherSecret},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/todos", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			env.handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")
		})
	}
}

func TestAuthenticator(t *testing.T) {
	auth := NewAuthenticator(config.AuthConfig{JWTSecret: testSecret, Issuer: "todo-tracker"})

	token, err := auth.Issue(42, 0)
	require.NoError(t, err)
	ownerID, err := auth.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), ownerID)

	_, err = auth.Issue(0, time.Hour)
	assert.Error(t, err)

	t.Run("rejects unsigned tokens", func(t *testing.T) {
		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
			Subject: "42",
			Issuer:  "todo-tracker",
		}).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = auth.Verify(unsigned)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("rejects non numeric subjects", func(t *testing.T) {
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject: "alice",
			Issuer:  "todo-tracker",
		}).SignedString([]byte(testSecret))
		require.NoError(t, err)

		_, err = auth.Verify(signed)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestCreateTodo_JSON(t *testing.T) {
	env := newTestEnv(t)

	rec := env.doJSON(t, 1, http.MethodPost, "/todos", map[string]any{"title": "Buy milk"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	got := decode[envelope](t, rec)
	require.NotNil(t, got.Data)
	assert.NotZero(t, got.Data.ID)
	assert.Equal(t, uint(1), got.Data.UserID)
	assert.Equal(t, "pending", got.Data.Status)
	assert.Nil(t, got.Data.Note)
	assert.Nil(t, got.Data.Cover)
	assert.Nil(t, got.Data.CoverURL)
	assert.Empty(t, got.Warnings)

	_, err := time.Parse(time.RFC3339, got.Data.CreatedAt)
	assert.NoError(t, err)
}

func TestCreateTodo_MultipartWithCover(t *testing.T) {
	env := newTestEnv(t)

	body, contentType := multipartBody(t, map[string]string{"title": "Photo", "status": "completed", "note": "framed"}, pngData)
	rec := env.do(t, 1, http.MethodPost, "/todos", body, contentType)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	got := decode[envelope](t, rec).Data
	require.NotNil(t, got.Cover)
	require.NotNil(t, got.CoverURL)
	assert.Equal(t, "completed", got.Status)
	assert.Equal(t, "framed", *got.Note)
	assert.True(t, strings.HasSuffix(*got.Cover, ".png"))
	assert.Equal(t, "/storage/"+*got.Cover, *got.CoverURL)

	file := env.do(t, 0, http.MethodGet, *got.CoverURL, nil, "")
	require.Equal(t, http.StatusOK, file.Code)
	assert.Equal(t, pngData, file.Body.Bytes())
}

func TestCreateTodo_EmptyFileInputIsNoCover(t *testing.T) {
	env := newTestEnv(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("title", "No file chosen"))
	_, err := mw.CreateFormFile("cover", "")
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	rec := env.do(t, 1, http.MethodPost, "/todos", &buf, mw.FormDataContentType())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Nil(t, decode[envelope](t, rec).Data.Cover)
}

func TestCreateTodo_Errors(t *testing.T) {
	env := newTestEnv(t)

	t.Run("validation", func(t *testing.T) {
		body, contentType := multipartBody(t, map[string]string{"title": "", "status": "archived"}, []byte("not an image"))
		rec := env.do(t, 1, http.MethodPost, "/todos", body, contentType)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		got := decode[struct {
			Fields map[string]string `json:"fields"`
		}](t, rec)
		assert.Contains(t, got.Fields, "title")
		assert.Contains(t, got.Fields, "status")
		assert.Contains(t, got.Fields, "cover")
	})

	t.Run("cover over the body cap", func(t *testing.T) {
		huge := append(append([]byte{}, pngData...), bytes.Repeat([]byte{0}, maxBodySize)...)
		body, contentType := multipartBody(t, map[string]string{"title": "Huge"}, huge)
		rec := env.do(t, 1, http.MethodPost, "/todos", body, contentType)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

		got := decode[struct {
			Fields map[string]string `json:"fields"`
		}](t, rec)
		assert.Equal(t, service.MsgCoverSize, got.Fields["cover"])

		list := env.do(t, 1, http.MethodGet, "/todos?search=Huge", nil, "")
		require.Equal(t, http.StatusOK, list.Code)
		assert.Empty(t, decode[struct {
			Data []todoResponse `json:"data"`
		}](t, list).Data)
	})

	t.Run("JSON over the body cap", func(t *testing.T) {
		payload := `{"title":"` + strings.Repeat("a", maxBodySize) + `"}`
		rec := env.do(t, 1, http.MethodPost, "/todos", strings.NewReader(payload), "application/json")
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})

	t.Run("malformed JSON", func(t *testing.T) {
		rec := env.do(t, 1, http.MethodPost, "/todos", strings.NewReader(`{"title":`), "application/json")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown field", func(t *testing.T) {
		rec := env.doJSON(t, 1, http.MethodPost, "/todos", map[string]any{"title": "x", "owner": 2})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "unknown field")
	})

	t.Run("empty body", func(t *testing.T) {
		rec := env.do(t, 1, http.MethodPost, "/todos", strings.NewReader(""), "application/json")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetTodo(t *testing.T) {
	env := newTestEnv(t)
	todo := env.create(t, 1, "Mine")

	rec := env.do(t, 1, http.MethodGet, fmt.Sprintf("/todos/%d", todo.ID), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Mine", decode[envelope](t, rec).Data.Title)

	assert.Equal(t, http.StatusForbidden, env.do(t, 2, http.MethodGet, fmt.Sprintf("/todos/%d", todo.ID), nil, "").Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, 1, http.MethodGet, "/todos/9999", nil, "").Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, 1, http.MethodGet, "/todos/abc", nil, "").Code)
}

func TestUpdateTodo(t *testing.T) {
	env := newTestEnv(t)

	body, contentType := multipartBody(t, map[string]string{"title": "Photo"}, pngData)
	rec := env.do(t, 1, http.MethodPost, "/todos", body, contentType)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[envelope](t, rec).Data
	target := fmt.Sprintf("/todos/%d", created.ID)

	t.Run("fields without cover keep the cover", func(t *testing.T) {
		rec := env.doJSON(t, 1, http.MethodPut, target, map[string]any{"title": "Renamed", "status": "completed", "note": "done"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		got := decode[envelope](t, rec).Data
		assert.Equal(t, "Renamed", got.Title)
		assert.Equal(t, "completed", got.Status)
		require.NotNil(t, got.Cover)
		assert.Equal(t, *created.Cover, *got.Cover)
	})

	t.Run("new cover replaces the old one", func(t *testing.T) {
		body, contentType := multipartBody(t, map[string]string{"title": "Renamed"}, pngData)
		rec := env.do(t, 1, http.MethodPut, target, body, contentType)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		got := decode[envelope](t, rec).Data
		require.NotNil(t, got.Cover)
		assert.NotEqual(t, *created.Cover, *got.Cover)
		assert.Equal(t, "pending", got.Status, "an omitted status resets to pending")

		old := env.do(t, 0, http.MethodGet, *created.CoverURL, nil, "")
		assert.Equal(t, http.StatusNotFound, old.Code)
	})

	t.Run("not the owner", func(t *testing.T) {
		rec := env.doJSON(t, 2, http.MethodPut, target, map[string]any{"title": "Hijack"})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("validation", func(t *testing.T) {
		rec := env.doJSON(t, 1, http.MethodPut, target, map[string]any{"title": strings.Repeat("x", 256)})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})
}

func TestDeleteTodo(t *testing.T) {
	env := newTestEnv(t)

	t.Run("no content", func(t *testing.T) {
		todo := env.create(t, 1, "Gone soon")
		target := fmt.Sprintf("/todos/%d", todo.ID)

		assert.Equal(t, http.StatusForbidden, env.do(t, 2, http.MethodDelete, target, nil, "").Code)
		assert.Equal(t, http.StatusNoContent, env.do(t, 1, http.MethodDelete, target, nil, "").Code)
		assert.Equal(t, http.StatusNotFound, env.do(t, 1, http.MethodGet, target, nil, "").Code)
		assert.Equal(t, http.StatusNotFound, env.do(t, 1, http.MethodDelete, target, nil, "").Code)
	})

	t.Run("cover removal failure is a warning", func(t *testing.T) {
		body, contentType := multipartBody(t, map[string]string{"title": "Photo"}, pngData)
		rec := env.do(t, 1, http.MethodPost, "/todos", body, contentType)
		require.Equal(t, http.StatusCreated, rec.Code)
		todo := decode[envelope](t, rec).Data

		env.store.deleteErr = errors.New("permission denied")
		t.Cleanup(func() { env.store.deleteErr = nil })

		target := fmt.Sprintf("/todos/%d", todo.ID)
		rec = env.do(t, 1, http.MethodDelete, target, nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
		got := decode[envelope](t, rec)
		assert.Nil(t, got.Data)
		require.Len(t, got.Warnings, 1)
		assert.Contains(t, got.Warnings[0], *todo.Cover)

		assert.Equal(t, http.StatusNotFound, env.do(t, 1, http.MethodGet, target, nil, "").Code)
	})
}

func TestListTodos(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 25; i++ {
		env.create(t, 1, fmt.Sprintf("task %d", i))
	}
	env.create(t, 1, "groceries")
	env.create(t, 2, "task of someone else")

	t.Run("first page", func(t *testing.T) {
		rec := env.do(t, 1, http.MethodGet, "/todos", nil, "")
		require.Equal(t, http.StatusOK, rec.Code)

		got := decode[listResponse](t, rec)
		assert.Len(t, got.Data, service.PerPage)
		assert.Equal(t, 2, got.Pagination.LastPage)
		assert.EqualValues(t, 26, got.Pagination.Total)
		assert.EqualValues(t, 26, got.Stats.Total)
		assert.EqualValues(t, 26, got.Stats.Pending)
		for _, todo := range got.Data {
			assert.Equal(t, uint(1), todo.UserID)
		}
	})

	t.Run("links keep the query string", func(t *testing.T) {
		rec := env.do(t, 1, http.MethodGet, "/todos?search=task&status=pending&page=2", nil, "")
		require.Equal(t, http.StatusOK, rec.Code)

		got := decode[listResponse](t, rec)
		assert.Len(t, got.Data, 5)
		assert.Equal(t, 2, got.Pagination.CurrentPage)
		assert.Equal(t, service.TodoFilter{Search: "task", Status: "pending"}, got.Filters)
		assert.EqualValues(t, 26, got.Stats.Total, "stats ignore the search")

		links := got.Pagination.Links
		require.Len(t, links, 4)
		require.NotNil(t, links[0].URL)
		assert.Equal(t, "/todos?page=1&search=task&status=pending", *links[0].URL)
		assert.True(t, links[2].Active)
		assert.Nil(t, links[3].URL, "no next page")
	})

	t.Run("unparsable page is the first page", func(t *testing.T) {
		rec := env.do(t, 1, http.MethodGet, "/todos?page=abc", nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, decode[listResponse](t, rec).Pagination.CurrentPage)
	})

	t.Run("page beyond the last is empty", func(t *testing.T) {
		rec := env.do(t, 1, http.MethodGet, "/todos?page=9", nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
		got := decode[listResponse](t, rec)
		assert.Empty(t, got.Data)
		assert.Nil(t, got.Pagination.From)
	})
}

func TestMetricsRoute(t *testing.T) {
	env := newTestEnv(t)
	env.create(t, 1, "counted")

	rec := env.do(t, 0, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `todo_mutations_total{op="create"} 1`)
}

func TestStorageWarnings(t *testing.T) {
	t.Parallel()

	assert.Nil(t, storageWarnings(nil))
	assert.Nil(t, storageWarnings(errors.New("other")))

	joined := errors.Join(
		&domain.StorageError{Op: "delete", Key: "covers/a.png", Err: errors.New("denied")},
		&domain.StorageError{Op: "put", Err: errors.New("full")},
	)
	assert.Equal(t, []string{
		"The cover image covers/a.png could not be removed.",
		"The cover image could not be stored.",
	}, storageWarnings(joined))
}
