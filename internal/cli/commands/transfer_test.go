package commands

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportCommandRequiresTarget(t *testing.T) {
	setupWorkspaceEnv(t)

	_, err := execute(t, NewExportCommand())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--all")
}

func TestExportCommandAllMarkdown(t *testing.T) {
	dir := setupWorkspaceEnv(t)
	seedLibrary(t, dir, "Ordering Coffee", "Airport Check In")
	outDir := t.TempDir()

	out, err := execute(t, NewExportCommand(), "--all", "--format", "markdown", "--dir", outDir)
	require.NoError(t, err)
	assert.Contains(t, out, "Exported 2 script(s)")

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, ".md", filepath.Ext(e.Name()))
	}

	data, err := os.ReadFile(filepath.Join(outDir, entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(data), "I walk into the cafe every morning.")
}

func TestExportCommandSingleJSON(t *testing.T) {
	dir := setupWorkspaceEnv(t)
	seedLibrary(t, dir, "Ordering Coffee")
	outDir := t.TempDir()

	_, err := execute(t, NewExportCommand(), "coffee", "--dir", outDir)
	require.NoError(t, err)

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ".json", filepath.Ext(entries[0].Name()))
}

func TestExportCommandUnknownFormat(t *testing.T) {
	dir := setupWorkspaceEnv(t)
	seedLibrary(t, dir, "Ordering Coffee")

	_, err := execute(t, NewExportCommand(), "--all", "--format", "pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown export format")
}

func TestImportCommandNeedsExactlyOneSource(t *testing.T) {
	setupWorkspaceEnv(t)

	_, err := execute(t, NewImportCommand())
	require.Error(t, err)

	_, err = execute(t, NewImportCommand(), "--url", "http://example.com", "--file", "x.md")
	require.Error(t, err)
}

func TestImportCommandFileToStdout(t *testing.T) {
	setupWorkspaceEnv(t)

	src := filepath.Join(t.TempDir(), "material.md")
	require.NoError(t, os.WriteFile(src, []byte("# Coffee Notes\n\nBeans matter."), 0600))

	out, err := execute(t, NewImportCommand(), "--file", src, "--stdout")
	require.NoError(t, err)
	assert.Contains(t, out, "# Coffee Notes")
	assert.Contains(t, out, "Beans matter.")
}

func TestImportCommandSavesMaterial(t *testing.T) {
	dir := setupWorkspaceEnv(t)

	src := filepath.Join(t.TempDir(), "material.md")
	require.NoError(t, os.WriteFile(src, []byte("# Coffee Notes\n\nBeans matter."), 0600))

	out, err := execute(t, NewImportCommand(), "--file", src, "--name", "coffee-notes")
	require.NoError(t, err)
	assert.Contains(t, out, "Imported")

	saved := filepath.Join(dir, "imports", "coffee-notes.md")
	data, err := os.ReadFile(saved)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Beans matter.")
	assert.Contains(t, string(data), "title: Coffee Notes")
	assert.Contains(t, string(data), "source: ")
}

func TestImportCommandFromURL(t *testing.T) {
	setupWorkspaceEnv(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title>Coffee Culture</title></head><body><article><h1>Coffee Culture</h1><p>Seoul runs on espresso.</p></article></body></html>`))
	}))
	defer srv.Close()

	out, err := execute(t, NewImportCommand(), "--url", srv.URL, "--stdout")
	require.NoError(t, err)
	assert.Contains(t, out, "Coffee Culture")
	assert.Contains(t, out, "Seoul runs on espresso.")
}
