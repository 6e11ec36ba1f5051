package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/ragchat/internal/config"
	appErr "github.com/xxxsen/ragchat/internal/pkg/errors"
)

func TestLoad_LocalText(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data.txt"), []byte("Amit is a backend engineer.\n"), 0o644))

	doc, err := Load(context.Background(), config.SourceConfig{
		Type: "local",
		Path: "data.txt",
		Data: map[string]interface{}{"dir": dir},
	})
	require.NoError(t, err)
	assert.Equal(t, "data.txt", doc.Source)
	assert.Equal(t, "Amit is a backend engineer.\n", doc.Content)
}

func TestLoad_MissingFileIsConfigurationError(t *testing.T) {
	_, err := Load(context.Background(), config.SourceConfig{
		Type: "local",
		Path: filepath.Join(t.TempDir(), "nope.txt"),
	})
	require.ErrorIs(t, err, appErr.ErrConfiguration)
}

func TestLoad_UnknownType(t *testing.T) {
	_, err := Load(context.Background(), config.SourceConfig{Type: "ftp", Path: "x"})
	require.ErrorIs(t, err, appErr.ErrConfiguration)
}

func TestLoad_InvalidUTF8(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bin.txt")
	require.NoError(t, os.WriteFile(path, []byte{0xff, 0xfe, 0x00}, 0o644))
	_, err := Load(context.Background(), config.SourceConfig{Type: "local", Path: path})
	require.ErrorIs(t, err, appErr.ErrConfiguration)
}

func TestLoad_MarkdownAuto(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.md")
	require.NoError(t, os.WriteFile(path, []byte("# About\n\nAmit uses **Go**.\n"), 0o644))
	doc, err := Load(context.Background(), config.SourceConfig{Type: "local", Path: path, Format: "auto"})
	require.NoError(t, err)
	assert.Equal(t, "About\n\nAmit uses Go.", doc.Content)

	// forcing text keeps the markup
	doc, err = Load(context.Background(), config.SourceConfig{Type: "local", Path: path, Format: "text"})
	require.NoError(t, err)
	assert.Contains(t, doc.Content, "**Go**")
}

func TestMarkdownToText(t *testing.T) {
	src := "# Title\n\nSome *bold* text\nnext line.\n\n- first\n- second\n\n```go\nfmt.Println(1)\n```\n\n<div>skip</div>\n"
	out, err := MarkdownToText([]byte(src))
	require.NoError(t, err)
	assert.Equal(t, "Title\n\nSome bold text next line.\n\nfirst\n\nsecond\n\nfmt.Println(1)", out)
}

func TestResolveFormat(t *testing.T) {
	assert.Equal(t, FormatMarkdown, resolveFormat("", "a/b.MD"))
	assert.Equal(t, FormatText, resolveFormat("auto", "a.txt"))
	assert.Equal(t, FormatMarkdown, resolveFormat("markdown", "a.txt"))
}

func TestS3Store_RequiresBucket(t *testing.T) {
	_, err := NewStore("s3", map[string]interface{}{"region": "us-east-1"})
	require.ErrorIs(t, err, appErr.ErrConfiguration)
}

func TestS3Store_ObjectKey(t *testing.T) {
	s := &s3Store{prefix: "docs"}
	assert.Equal(t, "docs/kb.txt", s.objectKey("/kb.txt"))
	s.prefix = ""
	assert.Equal(t, "kb.txt", s.objectKey("kb.txt"))
	assert.Equal(t, "https://minio:9000", normalizeEndpoint("minio:9000"))
}
