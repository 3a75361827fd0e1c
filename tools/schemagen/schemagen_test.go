package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSchema_Result(t *testing.T) {
	t.Parallel()

	schema := generateSchema(documents["result"])

	assert.Equal(t, []string{"answers"}, schema.Required)
	require.Contains(t, schema.Properties, "answers")
	assert.Equal(t, "array", schema.Properties["answers"].Type)
	assert.Equal(t, "integer", schema.Properties["answers"].Items.Type)

	assert.Equal(t, "#/definitions/Stats", schema.Properties["stats"].Ref)
	require.Contains(t, schema.Definitions, "Stats")

	stats := schema.Definitions["Stats"]
	assert.ElementsMatch(t,
		[]string{"prepends", "appends", "queries", "length", "max_answer", "duration_ns"},
		stats.Required)
	assert.Equal(t, "Duration in nanoseconds", stats.Properties["duration_ns"].Description)
}

func TestGenerateSchema_Error(t *testing.T) {
	t.Parallel()

	schema := generateSchema(documents["error"])

	assert.Equal(t, []string{"error"}, schema.Required)
	assert.Equal(t, "integer", schema.Properties["line"].Type)
	assert.Empty(t, schema.Definitions)
}

func TestWriteSchema(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	require.NoError(t, writeSchema(dir, "error", generateSchema(documents["error"])))

	data, err := os.ReadFile(filepath.Join(dir, "error.json"))
	require.NoError(t, err)

	var decoded Schema

	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "shelfrank error", decoded.Title)
}
