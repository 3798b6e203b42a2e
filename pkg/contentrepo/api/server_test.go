package api_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/jwtauth/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contentrepo/contentrepo/pkg/contentrepo"
	"github.com/contentrepo/contentrepo/pkg/contentrepo/api"
	memrepo "github.com/contentrepo/contentrepo/pkg/contentrepo/repo/memory"
	memstorage "github.com/contentrepo/contentrepo/pkg/contentrepo/storage/memory"
)

func newTestServer(t *testing.T, opts ...api.Option) *httptest.Server {
	t.Helper()
	svc, err := contentrepo.New(
		contentrepo.WithRepository(memrepo.New()),
		contentrepo.WithBlobStore("memory", memstorage.New()),
	)
	require.NoError(t, err)

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	server := api.NewServer(svc, append([]api.Option{api.WithLogger(quiet)}, opts...)...)
	ts := httptest.NewServer(server.Routes())
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, ts *httptest.Server, method, path, principal string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if principal != "" {
		req.Header.Set("X-Principal", principal)
	}
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func createFolder(t *testing.T, ts *httptest.Server, principal, name string) contentrepo.StoredObject {
	t.Helper()
	info := decode[map[string]any](t, doJSON(t, ts, http.MethodGet, "/api/v1/repository", principal, nil))
	resp := doJSON(t, ts, http.MethodPost, "/api/v1/folders", principal, map[string]any{
		"parent_id": info["root_folder_id"],
		"type_id":   contentrepo.TypeFolder,
		"name":      name,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[contentrepo.StoredObject](t, resp)
}

func TestHealthAndRepositoryInfo(t *testing.T) {
	ts := newTestServer(t)

	resp := doJSON(t, ts, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	info := decode[map[string]any](t, doJSON(t, ts, http.MethodGet, "/api/v1/repository", "", nil))
	assert.NotEmpty(t, info["root_folder_id"])
}

func TestFolderEndpoints(t *testing.T) {
	ts := newTestServer(t)
	folder := createFolder(t, ts, "alice", "projects")

	t.Run("GetByID", func(t *testing.T) {
		got := decode[contentrepo.StoredObject](t, doJSON(t, ts, http.MethodGet, "/api/v1/objects/"+folder.ID.String(), "alice", nil))
		assert.Equal(t, "projects", got.Name)
		assert.Equal(t, "alice", got.CreatedBy)
	})

	t.Run("GetByPath", func(t *testing.T) {
		got := decode[contentrepo.StoredObject](t, doJSON(t, ts, http.MethodGet, "/api/v1/objects/by-path?path=/projects", "alice", nil))
		assert.Equal(t, folder.ID, got.ID)
	})

	t.Run("Rename", func(t *testing.T) {
		resp := doJSON(t, ts, http.MethodPatch, "/api/v1/objects/"+folder.ID.String(), "alice", map[string]any{
			"change_token": folder.ChangeToken,
			"name":         "archive",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		got := decode[contentrepo.StoredObject](t, resp)
		assert.Equal(t, "archive", got.Name)
		assert.NotEqual(t, folder.ChangeToken, got.ChangeToken)

		// The original token is now stale.
		resp = doJSON(t, ts, http.MethodPatch, "/api/v1/objects/"+folder.ID.String(), "alice", map[string]any{
			"change_token": folder.ChangeToken,
			"name":         "again",
		})
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		body := decode[map[string]string](t, resp)
		assert.Equal(t, "update_conflict", body["kind"])
	})

	t.Run("NotFound", func(t *testing.T) {
		resp := doJSON(t, ts, http.MethodGet, "/api/v1/objects/00000000-0000-0000-0000-000000000001", "", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("BadObjectID", func(t *testing.T) {
		resp := doJSON(t, ts, http.MethodGet, "/api/v1/objects/not-a-uuid", "", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()
	})
}

func TestContentEndpoints(t *testing.T) {
	ts := newTestServer(t)
	folder := createFolder(t, ts, "alice", "docs")

	resp := doJSON(t, ts, http.MethodPost, "/api/v1/documents", "alice", map[string]any{
		"parent_id": folder.ID,
		"type_id":   contentrepo.TypeDocument,
		"name":      "hello.txt",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	doc := decode[contentrepo.StoredObject](t, resp)

	putContent := func(body, overwrite string) *http.Response {
		path := "/api/v1/objects/" + doc.ID.String() + "/content"
		if overwrite != "" {
			path += "?overwrite=" + overwrite
		}
		req, err := http.NewRequest(http.MethodPut, ts.URL+path, strings.NewReader(body))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "text/plain")
		req.Header.Set("X-Filename", "hello.txt")
		req.Header.Set("X-Principal", "alice")
		put, err := ts.Client().Do(req)
		require.NoError(t, err)
		return put
	}

	t.Run("PutAndGet", func(t *testing.T) {
		put := putContent("hello world", "")
		require.Equal(t, http.StatusOK, put.StatusCode)
		updated := decode[contentrepo.StoredObject](t, put)
		require.NotNil(t, updated.Content)
		assert.Equal(t, int64(11), updated.Content.Size)

		get := doJSON(t, ts, http.MethodGet, "/api/v1/objects/"+doc.ID.String()+"/content", "alice", nil)
		require.Equal(t, http.StatusOK, get.StatusCode)
		assert.Equal(t, "text/plain", get.Header.Get("Content-Type"))
		assert.Contains(t, get.Header.Get("Content-Disposition"), "hello.txt")
		data, err := io.ReadAll(get.Body)
		get.Body.Close()
		require.NoError(t, err)
		assert.Equal(t, "hello world", string(data))
	})

	t.Run("RangeRequest", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/v1/objects/"+doc.ID.String()+"/content", nil)
		require.NoError(t, err)
		req.Header.Set("X-Principal", "alice")
		req.Header.Set("Range", "bytes=6-10")
		resp, err := ts.Client().Do(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusPartialContent, resp.StatusCode)
		assert.Equal(t, "bytes 6-10/11", resp.Header.Get("Content-Range"))
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		require.NoError(t, err)
		assert.Equal(t, "world", string(data))

		req.Header.Set("Range", "bytes=6-")
		resp, err = ts.Client().Do(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusPartialContent, resp.StatusCode)
		data, err = io.ReadAll(resp.Body)
		resp.Body.Close()
		require.NoError(t, err)
		assert.Equal(t, "world", string(data))

		// Suffix ranges are not supported.
		req.Header.Set("Range", "bytes=-5")
		resp, err = ts.Client().Do(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("OverwriteRefused", func(t *testing.T) {
		put := putContent("other", "false")
		assert.Equal(t, http.StatusConflict, put.StatusCode)
		body := decode[map[string]string](t, put)
		assert.Equal(t, "content_already_exists", body["kind"])
	})

	t.Run("ContentURLUnsupported", func(t *testing.T) {
		resp := doJSON(t, ts, http.MethodGet, "/api/v1/objects/"+doc.ID.String()+"/content-url", "alice", nil)
		assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
		resp.Body.Close()
	})
}

func TestVersioningEndpoints(t *testing.T) {
	ts := newTestServer(t)
	folder := createFolder(t, ts, "alice", "specs")

	resp := doJSON(t, ts, http.MethodPost, "/api/v1/versioned-documents", "alice", map[string]any{
		"parent_id": folder.ID,
		"type_id":   contentrepo.TypeVersionableDocument,
		"name":      "design.md",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	series := decode[contentrepo.StoredObject](t, resp)
	require.NotNil(t, series.Series)

	t.Run("CheckOutAndIn", func(t *testing.T) {
		resp := doJSON(t, ts, http.MethodPost, "/api/v1/objects/"+series.ID.String()+"/checkout", "alice", nil)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		pwc := decode[contentrepo.StoredObject](t, resp)
		require.NotNil(t, pwc.Version)
		assert.True(t, pwc.Version.PWC)

		// A second checkout conflicts.
		resp = doJSON(t, ts, http.MethodPost, "/api/v1/objects/"+series.ID.String()+"/checkout", "bob", nil)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		resp.Body.Close()

		resp = doJSON(t, ts, http.MethodPost, "/api/v1/objects/"+series.ID.String()+"/checkin", "alice", map[string]any{
			"major":   true,
			"comment": "first release",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		version := decode[contentrepo.StoredObject](t, resp)
		assert.Equal(t, "1.0", version.Version.Label)
		assert.Equal(t, "first release", version.Version.CheckinComment)
	})

	t.Run("VersionListing", func(t *testing.T) {
		versions := decode[[]contentrepo.StoredObject](t, doJSON(t, ts, http.MethodGet, "/api/v1/objects/"+series.ID.String()+"/versions", "alice", nil))
		require.Len(t, versions, 2)
		assert.Equal(t, "1.0", versions[0].Version.Label)
		assert.Equal(t, "0.1", versions[1].Version.Label)

		latest := decode[contentrepo.StoredObject](t, doJSON(t, ts, http.MethodGet, "/api/v1/objects/"+series.ID.String()+"/versions/latest?major_only=true", "alice", nil))
		assert.Equal(t, "1.0", latest.Version.Label)
	})
}

func TestPermissionMapping(t *testing.T) {
	ts := newTestServer(t)
	folder := createFolder(t, ts, "alice", "private")

	resp := doJSON(t, ts, http.MethodPatch, "/api/v1/objects/"+folder.ID.String(), "mallory", map[string]any{
		"change_token": folder.ChangeToken,
		"name":         "mine-now",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	body := decode[map[string]string](t, resp)
	assert.Equal(t, "permission_denied", body["kind"])

	info := decode[map[string]any](t, doJSON(t, ts, http.MethodGet, "/api/v1/repository", "", nil))
	resp = doJSON(t, ts, http.MethodDelete, "/api/v1/objects/"+info["root_folder_id"].(string), "alice", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func TestTypeEndpoints(t *testing.T) {
	ts := newTestServer(t)

	t.Run("ListBuiltins", func(t *testing.T) {
		types := decode[[]contentrepo.TypeDefinition](t, doJSON(t, ts, http.MethodGet, "/api/v1/types", "", nil))
		assert.Len(t, types, 3)
	})

	t.Run("RegisterAndGet", func(t *testing.T) {
		resp := doJSON(t, ts, http.MethodPost, "/api/v1/types", "alice", map[string]any{
			"id":              "note",
			"base_type":       "document",
			"parent_type_id":  contentrepo.TypeDocument,
			"content_allowed": true,
			"property_defs": map[string]any{
				"note:topic": map[string]any{"type": "string"},
			},
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		def := decode[contentrepo.TypeDefinition](t, resp)
		assert.Equal(t, contentrepo.CardinalitySingle, def.PropertyDefs["note:topic"].Cardinality)

		got := decode[contentrepo.TypeDefinition](t, doJSON(t, ts, http.MethodGet, "/api/v1/types/note", "", nil))
		assert.Equal(t, "note", got.ID)

		resp = doJSON(t, ts, http.MethodGet, "/api/v1/types/no-such-type", "", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		resp.Body.Close()
	})
}

func TestJWTAuthentication(t *testing.T) {
	const secret = "test-secret"
	ts := newTestServer(t, api.WithJWTSecret(secret))

	t.Run("MissingToken", func(t *testing.T) {
		resp := doJSON(t, ts, http.MethodGet, "/api/v1/repository", "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("SubjectBecomesPrincipal", func(t *testing.T) {
		auth := jwtauth.New("HS256", []byte(secret), nil)
		_, token, err := auth.Encode(map[string]any{"sub": "alice"})
		require.NoError(t, err)

		req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/v1/repository", nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := ts.Client().Do(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		info := decode[map[string]any](t, resp)

		body, err := json.Marshal(map[string]any{
			"parent_id": info["root_folder_id"],
			"type_id":   contentrepo.TypeFolder,
			"name":      "alice-folder",
		})
		require.NoError(t, err)
		req, err = http.NewRequest(http.MethodPost, ts.URL+"/api/v1/folders", bytes.NewReader(body))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		// The header principal must not override the token subject.
		req.Header.Set("X-Principal", "mallory")
		resp, err = ts.Client().Do(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		folder := decode[contentrepo.StoredObject](t, resp)
		assert.Equal(t, "alice", folder.CreatedBy)
	})
}
