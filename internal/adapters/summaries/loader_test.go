package summaries

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestLoad_SingleObjectAndArray(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "one.json", `{
		"file_name": "sales.xlsx",
		"sheet_name": "Q1",
		"text_summary": "quarterly sales",
		"columns": ["地区", "销售额"]
	}`)
	writeFile(t, dir, "two.json", `[
		{"file_name": "a.xlsx", "sheet_name": "S1", "columns": ["x"]},
		{"file_name": "a.xlsx", "sheet_name": "S2", "columns": ["y"]}
	]`)

	loaded, err := NewDirLoader(dir).Load(context.Background())

	require.NoError(t, err)
	require.Len(t, loaded, 3)
	assert.Equal(t, "sales.xlsx", loaded[0].FileName)
	assert.Equal(t, []string{"地区", "销售额"}, loaded[0].Columns)
	assert.Equal(t, "S2", loaded[2].SheetName)
}

func TestLoad_SkipsMalformedFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bad.json", `{not json`)
	writeFile(t, dir, "incomplete.json", `{"file_name": "x.xlsx"}`)
	writeFile(t, dir, "good.json", `{"file_name": "g.xlsx", "sheet_name": "S1", "columns": ["c"]}`)

	loaded, err := NewDirLoader(dir).Load(context.Background())

	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "g.xlsx", loaded[0].FileName)
}

func TestLoad_IgnoresNonJSONFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "readme.txt", "not a summary")
	writeFile(t, dir, "s.json", `{"file_name": "s.xlsx", "sheet_name": "S1", "columns": ["c"]}`)

	loaded, err := NewDirLoader(dir).Load(context.Background())

	require.NoError(t, err)
	assert.Len(t, loaded, 1)
}

func TestLoad_MissingDirectory(t *testing.T) {
	_, err := NewDirLoader(filepath.Join(t.TempDir(), "nope")).Load(context.Background())

	assert.Error(t, err)
}

func TestLoad_EmptyDirectory(t *testing.T) {
	loaded, err := NewDirLoader(t.TempDir()).Load(context.Background())

	require.NoError(t, err)
	assert.Empty(t, loaded)
}
