package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigAppliesDefinedKeys(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "tlsdump.toml", `
schema = "schemas/hello.toml"
format = " HEX "
max_input = 1024
`)

	opts := defaultOptions()
	require.NoError(t, loadConfig(path, &opts))

	assert.Equal(t, filepath.Join(dir, "schemas", "hello.toml"), opts.Schema)
	assert.Equal(t, "hex", opts.Format)
	assert.Equal(t, "yaml", opts.Out, "undefined keys keep defaults")
	assert.False(t, opts.Zstd)
	assert.EqualValues(t, 1024, opts.MaxInput)
}

func TestLoadConfigAbsoluteSchema(t *testing.T) {
	dir := t.TempDir()
	abs := filepath.Join(t.TempDir(), "s.toml")
	path := writeFile(t, dir, "c.toml", "schema = \""+filepath.ToSlash(abs)+"\"\nzstd = true\nout = \"json\"\n")

	opts := defaultOptions()
	require.NoError(t, loadConfig(path, &opts))
	assert.Equal(t, filepath.ToSlash(abs), filepath.ToSlash(opts.Schema))
	assert.True(t, opts.Zstd)
	assert.Equal(t, "json", opts.Out)
}

func TestLoadConfigRejects(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"unknown key":  "colour = \"red\"\n",
		"zero max":     "max_input = 0\n",
		"negative max": "max_input = -5\n",
		"syntax":       "schema = \n",
	}
	for name, content := range cases {
		path := writeFile(t, dir, "bad.toml", content)
		opts := defaultOptions()
		assert.Error(t, loadConfig(path, &opts), name)
	}

	opts := defaultOptions()
	assert.Error(t, loadConfig(filepath.Join(dir, "missing.toml"), &opts))
}

func TestOptionsValidate(t *testing.T) {
	opts := defaultOptions()
	assert.Error(t, opts.validate(), "schema is required")

	opts.Schema = "s.toml"
	assert.NoError(t, opts.validate())

	bad := opts
	bad.Format = "base64"
	assert.Error(t, bad.validate())

	bad = opts
	bad.Out = "xml"
	assert.Error(t, bad.validate())
}
