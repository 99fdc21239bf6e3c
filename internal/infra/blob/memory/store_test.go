package memory

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"societycore/internal/blob/core"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()
	assert.Equal(t, core.DriverMemory, s.Driver())

	md := map[string]string{"uploaded_by": "p1"}
	info, err := s.Put(ctx, "org/documents/1/a.pdf", bytes.NewReader([]byte("pdf")), core.PutOptions{ContentType: "application/pdf", Metadata: md})
	require.NoError(t, err)
	assert.EqualValues(t, 3, info.Size)
	assert.Len(t, info.ETag, 64)
	md["uploaded_by"] = "mutated"

	_, err = s.Put(ctx, "org/../escape", bytes.NewReader(nil), core.PutOptions{})
	require.ErrorIs(t, err, core.ErrInvalidKey)

	_, err = s.Put(ctx, "org/documents/1/a.pdf", bytes.NewReader(nil), core.PutOptions{})
	require.ErrorIs(t, err, core.ErrExists)

	got, rc, err := s.Get(ctx, "org/documents/1/a.pdf")
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	assert.Equal(t, "pdf", string(body))
	assert.Equal(t, "p1", got.Metadata["uploaded_by"])

	_, err = s.Put(ctx, "other/x", bytes.NewReader([]byte("x")), core.PutOptions{})
	require.NoError(t, err)
	list, err := s.List(ctx, "org/")
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = s.PresignURL(ctx, "org/documents/1/a.pdf", core.SignedURLOptions{})
	require.ErrorIs(t, err, core.ErrUnsupported)

	existed, err := s.Delete(ctx, "org/documents/1/a.pdf")
	require.NoError(t, err)
	assert.True(t, existed)
	existed, _ = s.Delete(ctx, "org/documents/1/a.pdf")
	assert.False(t, existed)

	_, err = s.Head(ctx, "org/documents/1/a.pdf")
	require.ErrorIs(t, err, core.ErrNotFound)
	_, _, err = s.Get(ctx, "missing")
	require.ErrorIs(t, err, core.ErrNotFound)
}
