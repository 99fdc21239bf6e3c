package fs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"societycore/internal/blob/core"
)

func TestFilesystemStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s, err := New(filepath.Join(t.TempDir(), "blobs"))
	require.NoError(t, err)
	assert.Equal(t, core.DriverFilesystem, s.Driver())

	info, err := s.Put(ctx, "org-1/documents/doc-1/bylaws.pdf", strings.NewReader("bylaws"), core.PutOptions{
		ContentType: "application/pdf",
		Metadata:    map[string]string{"title": "Bylaws"},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 6, info.Size)
	assert.Len(t, info.ETag, 64)

	_, err = s.Put(ctx, "org-1/documents/doc-1/bylaws.pdf", strings.NewReader("again"), core.PutOptions{})
	require.ErrorIs(t, err, core.ErrExists)

	got, rc, err := s.Get(ctx, "org-1/documents/doc-1/bylaws.pdf")
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "bylaws", string(body))
	assert.Equal(t, "application/pdf", got.ContentType)
	assert.Equal(t, "Bylaws", got.Metadata["title"])

	head, err := s.Head(ctx, "org-1/documents/doc-1/bylaws.pdf")
	require.NoError(t, err)
	assert.Equal(t, info.ETag, head.ETag)

	_, err = s.Put(ctx, "org-2/documents/x.txt", strings.NewReader("x"), core.PutOptions{})
	require.NoError(t, err)
	list, err := s.List(ctx, "org-1/")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "org-1/documents/doc-1/bylaws.pdf", list[0].Key)
	all, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = s.PresignURL(ctx, "org-2/documents/x.txt", core.SignedURLOptions{})
	require.ErrorIs(t, err, core.ErrUnsupported)

	existed, err := s.Delete(ctx, "org-1/documents/doc-1/bylaws.pdf")
	require.NoError(t, err)
	assert.True(t, existed)
	existed, err = s.Delete(ctx, "org-1/documents/doc-1/bylaws.pdf")
	require.NoError(t, err)
	assert.False(t, existed)
	_, err = s.Head(ctx, "org-1/documents/doc-1/bylaws.pdf")
	require.ErrorIs(t, err, core.ErrNotFound)
	_, _, err = s.Get(ctx, "org-1/documents/doc-1/bylaws.pdf")
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestFilesystemStoreRejectsUnsafeKeys(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	for _, key := range []string{"", "  ", "../escape", "/abs/path", "a/b.meta"} {
		_, err := s.Put(ctx, key, strings.NewReader("x"), core.PutOptions{})
		assert.ErrorIs(t, err, core.ErrInvalidKey, key)
	}
}

func TestFilesystemStoreCorruptSidecar(t *testing.T) {
	root := t.TempDir()
	s, err := New(root)
	require.NoError(t, err)
	ctx := context.Background()
	_, err = s.Put(ctx, "k", strings.NewReader("v"), core.PutOptions{})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root, "k.meta"), []byte("{"), 0o600))
	_, err = s.Head(ctx, "k")
	require.ErrorContains(t, err, "decode k.meta")
	_, err = s.List(ctx, "")
	require.Error(t, err)
}

func TestFilesystemStoreHonoursCancelledContext(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Put(ctx, "k", strings.NewReader("v"), core.PutOptions{})
	require.ErrorIs(t, err, context.Canceled)
}
