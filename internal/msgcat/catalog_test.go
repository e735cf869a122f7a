package msgcat

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedDefaults(t *testing.T) {
	c, err := New("")
	require.NoError(t, err)

	got, err := c.Render("errors.no_active_game", nil)
	require.NoError(t, err)
	assert.Equal(t, "No active game", got)

	got, err = c.Render("errors.bad_request", map[string]string{"Reason": "unexpected EOF"})
	require.NoError(t, err)
	assert.Equal(t, "Malformed request: unexpected EOF", got)
}

func TestMissingKeyAndData(t *testing.T) {
	c, err := New("")
	require.NoError(t, err)

	_, err = c.Render("errors.nope", nil)
	assert.Error(t, err)

	_, err = c.Render("status.checkmate", map[string]string{})
	assert.Error(t, err)

	assert.Equal(t, "fallback", c.Text("errors.nope", nil, "fallback"))

	var nilCatalog *Catalog
	assert.Equal(t, "x", nilCatalog.Text("errors.invalid_move", nil, "x"))
}

func TestOverridesFromDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("errors:\n  invalid_move: \"Illegal move\"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	c, err := New(dir)
	require.NoError(t, err)
	assert.Equal(t, "Illegal move", c.Text("errors.invalid_move", nil, ""))
	assert.Equal(t, "Cannot undo", c.Text("errors.cannot_undo", nil, ""))
}

func TestDuplicateOverrideKeys(t *testing.T) {
	dir := t.TempDir()
	body := []byte("errors:\n  cannot_undo: \"x\"\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), body, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yml"), body, 0o644))

	_, err := New(dir)
	assert.Error(t, err)
}

func TestNonStringLeafRejected(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("errors:\n  code: 12\n"), 0o644))

	_, err := New(dir)
	assert.Error(t, err)
}
