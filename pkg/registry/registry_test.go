package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRegistry(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "activity-registry.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadRegistry(t *testing.T) {
	path := writeRegistry(t, `{
		"version": "1.0.0",
		"activities": [
			{"id": "generate-matches", "taskType": "generate-matches", "implementationStatus": "completed", "timeout": "30s"},
			{"id": "matching-stats", "taskType": "matching-stats", "implementationStatus": "verified"}
		]
	}`)

	reg, err := LoadRegistry(path)
	require.NoError(t, err)
	assert.Len(t, reg.Activities, 2)

	a, ok := reg.Find("generate-matches")
	require.True(t, ok)
	assert.Equal(t, "30s", a.Timeout)

	assert.Equal(t, []string{"a-task", "z-task"},
		reg.Undeclared([]string{"z-task", "matching-stats", "a-task"}))
}

func TestLoadRegistry_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"malformed", `{"activities": [`, "parse"},
		{"missing task type", `{"activities": [{"id": "x", "implementationStatus": "planned"}]}`, "taskType are required"},
		{"duplicate", `{"activities": [
			{"id": "a", "taskType": "t", "implementationStatus": "planned"},
			{"id": "b", "taskType": "t", "implementationStatus": "planned"}]}`, "duplicate task type"},
		{"status", `{"activities": [{"id": "a", "taskType": "t", "implementationStatus": "done"}]}`, "unknown status"},
		{"timeout", `{"activities": [{"id": "a", "taskType": "t", "implementationStatus": "planned", "timeout": "soon"}]}`, "activity a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadRegistry(writeRegistry(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestShippedRegistry(t *testing.T) {
	reg, err := LoadRegistry(filepath.Join("..", "..", "configs", "activity-registry.json"))
	require.NoError(t, err)
	assert.Empty(t, reg.Undeclared([]string{
		"generate-matches", "regenerate-matches", "get-recommendations", "matching-stats",
	}))
}
