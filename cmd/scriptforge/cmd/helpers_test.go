package cmd

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfenderov/scriptforge/pkg/models"
)

func TestParseAssignments(t *testing.T) {
	values, err := parseAssignments([]string{"USERNAME=alice", "PASSWORD=a=b", " SEARCH_TERM =", "EMPTY="})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"USERNAME":    "alice",
		"PASSWORD":    "a=b",
		"SEARCH_TERM": "",
		"EMPTY":       "",
	}, values)

	for _, bad := range []string{"USERNAME", "=value", "  =x"} {
		_, err := parseAssignments([]string{bad})
		assert.True(t, errors.Is(err, models.ErrInvalidInput), bad)
	}
}

func TestCollectValues(t *testing.T) {
	fields := []models.ConfigField{
		{Name: "USERNAME", Value: "your_username_here", Required: true},
		{Name: "PASSWORD", Value: "your_password_here", Required: true, Input: models.InputSecret},
		{Name: "BASE_URL", Value: "https://portal.internal"},
		{Name: "TIMEOUT", Value: "30", Kind: models.KindNumber},
	}
	preset := map[string]string{"TIMEOUT": "60"}

	// USERNAME answered, PASSWORD skipped, BASE_URL keeps its default,
	// TIMEOUT keeps the preset.
	values, err := collectValues(strings.NewReader("alice\n\n\n\n"), fields, preset)
	require.NoError(t, err)

	assert.Equal(t, "alice", values["USERNAME"])
	assert.Equal(t, "", values["PASSWORD"], "placeholders are never offered as defaults")
	assert.Equal(t, "https://portal.internal", values["BASE_URL"])
	assert.Equal(t, "60", values["TIMEOUT"])
}

func TestCollectValues_EOF(t *testing.T) {
	fields := []models.ConfigField{
		{Name: "USERNAME", Value: "your_username_here", Required: true},
		{Name: "DOWNLOAD_DIR", Value: "/tmp/downloads"},
	}
	values, err := collectValues(strings.NewReader(""), fields, nil)
	require.NoError(t, err)
	assert.Equal(t, "", values["USERNAME"])
	assert.Equal(t, "/tmp/downloads", values["DOWNLOAD_DIR"])
}

func TestTerminalFD_NonTerminalInput(t *testing.T) {
	_, ok := terminalFD(strings.NewReader("secret\n"))
	assert.False(t, ok)

	r, w, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() {
		r.Close()
		w.Close()
	})
	_, ok = terminalFD(r)
	assert.False(t, ok, "piped input is read line by line")
}

func TestCollectValues_PipedSecret(t *testing.T) {
	fields := []models.ConfigField{
		{Name: "PASSWORD", Value: "your_password_here", Required: true, Input: models.InputSecret},
	}
	values, err := collectValues(strings.NewReader("hunter2\n"), fields, nil)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", values["PASSWORD"])
}

func TestDisplayValue(t *testing.T) {
	secret := models.ConfigField{Name: "PASSWORD", Input: models.InputSecret}
	plain := models.ConfigField{Name: "USERNAME", Input: models.InputPlain}

	assert.Equal(t, "********", displayValue(secret, "hunter2"))
	assert.Equal(t, "(empty)", displayValue(secret, ""))
	assert.Equal(t, "alice", displayValue(plain, "alice"))
}

func TestIndent(t *testing.T) {
	assert.Equal(t, "", indent("\n"))
	assert.Equal(t, "  step 1\n  step 2\n", indent("step 1\nstep 2\n"))
}

func TestWriteScripts(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	require.NoError(t, writeScripts(dir, models.ScriptPair{Primary: "print('selenium')"}))

	data, err := os.ReadFile(filepath.Join(dir, "selenium.py"))
	require.NoError(t, err)
	assert.Equal(t, "print('selenium')\n", string(data))

	_, err = os.Stat(filepath.Join(dir, "playwright.py"))
	assert.True(t, os.IsNotExist(err), "empty scripts are not written")
}
