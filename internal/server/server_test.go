package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dativo-io/scrub/internal/audit"
	"github.com/dativo-io/scrub/internal/classifier"
	"github.com/dativo-io/scrub/internal/redact"
)

const testKey = "test-key"

func newTestServer(t *testing.T, opts ...Option) http.Handler {
	t.Helper()
	evaluator, err := redact.New(classifier.MustNew())
	require.NoError(t, err)
	return NewServer(evaluator, map[string]bool{testKey: true}, opts...).Routes()
}

func doRequest(t *testing.T, h http.Handler, method, path, key, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if key != "" {
		req.Header.Set("X-Scrub-Key", key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h := newTestServer(t)

	rec := doRequest(t, h, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestHealthDetail(t *testing.T) {
	h := newTestServer(t)

	rec := doRequest(t, h, http.MethodGet, "/health?detail=true", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Components map[string]string `json:"components"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Components["evaluator"])
	assert.Equal(t, "disabled", resp.Components["audit_store"])
}

func TestAuthRequired(t *testing.T) {
	h := newTestServer(t)

	rec := doRequest(t, h, http.MethodPost, "/v1/redact", "", `{"phone":"9876543210"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, h, http.MethodPost, "/v1/redact", "wrong-key", `{"phone":"9876543210"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthBearer(t *testing.T) {
	h := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/redact", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer "+testKey)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRedact(t *testing.T) {
	h := newTestServer(t)

	rec := doRequest(t, h, http.MethodPost, "/v1/redact", testKey,
		`{"phone":"9876543210","name":"Ravi Kumar","city":"Mumbai"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Redacted            json.RawMessage `json:"redacted"`
		IsPII               bool            `json:"is_pii"`
		StandaloneFields    []string        `json:"standalone_fields"`
		CombinatorialFields []string        `json:"combinatorial_fields"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.IsPII)
	assert.Equal(t, `{"phone":"98XXXXXX10","name":"Ravi Kumar","city":"Mumbai"}`, string(resp.Redacted))
	assert.Equal(t, []string{"phone"}, resp.StandaloneFields)
	assert.Equal(t, []string{"name"}, resp.CombinatorialFields)
}

func TestRedactInvalidBody(t *testing.T) {
	h := newTestServer(t)

	rec := doRequest(t, h, http.MethodPost, "/v1/redact", testKey, `[1,2,3]`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunsDisabledWithoutStore(t *testing.T) {
	h := newTestServer(t)

	rec := doRequest(t, h, http.MethodGet, "/v1/runs", testKey, "")
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestRunsEndpoints(t *testing.T) {
	store, err := audit.NewStore(filepath.Join(t.TempDir(), "audit.db"), strings.Repeat("k", 32))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	run := &audit.Run{
		ID:          "run-1",
		StartedAt:   time.Now().UTC(),
		InputPath:   "in.csv",
		OutputPath:  "out.csv",
		RowsWritten: 5,
		PIIRecords:  2,
	}
	require.NoError(t, store.Record(context.Background(), run))

	h := newTestServer(t, WithAuditStore(store))

	rec := doRequest(t, h, http.MethodGet, "/v1/runs", testKey, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Runs  []audit.Run `json:"runs"`
		Count int         `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "run-1", list.Runs[0].ID)

	rec = doRequest(t, h, http.MethodGet, "/v1/runs/run-1", testKey, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/v1/runs/run-1/verify", testKey, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var verify struct {
		Valid bool `json:"valid"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &verify))
	assert.True(t, verify.Valid)

	rec = doRequest(t, h, http.MethodGet, "/v1/runs/absent", testKey, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunsListBadParams(t *testing.T) {
	store, err := audit.NewStore(filepath.Join(t.TempDir(), "audit.db"), strings.Repeat("k", 32))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	h := newTestServer(t, WithAuditStore(store))

	rec := doRequest(t, h, http.MethodGet, "/v1/runs?limit=zero", testKey, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/v1/runs?from=yesterday", testKey, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestParseAPIKeys(t *testing.T) {
	assert.Empty(t, ParseAPIKeys(""))
	assert.Equal(t, map[string]bool{"a": true, "b": true}, ParseAPIKeys(" a , b ,"))
}
