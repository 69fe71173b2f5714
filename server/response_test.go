package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, writeJSON(rec, http.StatusCreated, map[string]string{"id": "abc"}))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "abc", body["id"])
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, http.StatusBadRequest, "bad input")

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "bad input", body["error"])
}

func TestReadJSONRejectsGarbage(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/targets", strings.NewReader("{not json"))

	var out map[string]string
	err := readJSON(rec, req, &out)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequireMethod(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	assert.True(t, requireMethod(rec, req, http.MethodGet))

	rec = httptest.NewRecorder()
	assert.False(t, requireMethod(rec, req, http.MethodPost))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestExtractPathParts(t *testing.T) {
	parts := extractPathParts("/api/batches/abc123", "/api/batches/")
	require.Len(t, parts, 1)
	assert.Equal(t, "abc123", parts[0])

	parts = extractPathParts("/api/targets/acct-1/extra", "/api/targets/")
	require.Len(t, parts, 2)
	assert.Equal(t, "acct-1", parts[0])
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "12345678", shortID("123456789abc"))
	assert.Equal(t, "abc", shortID("abc"))
}
