package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestCheckActivityRegistry(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	path := filepath.Join("..", "..", activityRegistryPath)

	checkActivityRegistry(path, []string{"generate-matches", "matching-stats"}, zap.New(core))
	assert.Equal(t, 0, logs.Len())

	checkActivityRegistry(path, []string{"generate-matches", "score-leads"}, zap.New(core))
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "Workers missing from activity registry", entry.Message)
	assert.Equal(t, []interface{}{"score-leads"}, entry.ContextMap()["taskTypes"])
}

func TestCheckActivityRegistry_MissingFile(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)

	checkActivityRegistry(filepath.Join(t.TempDir(), "none.json"), []string{"generate-matches"}, zap.New(core))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "Activity registry not loaded", logs.All()[0].Message)
}

func TestWriteStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	writeStatus(rec, http.StatusServiceUnavailable, "not ready", map[string]string{"postgres": "down"})

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, map[string]interface{}{"postgres": "down"}, body["checks"])
}
