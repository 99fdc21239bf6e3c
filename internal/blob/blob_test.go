package blob

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"societycore/internal/blob/core"
	"societycore/internal/config"
)

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, config.Blob{Root: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, core.DriverFilesystem, s.Driver())

	s, err = Open(ctx, config.Blob{Driver: " Memory "})
	require.NoError(t, err)
	assert.Equal(t, core.DriverMemory, s.Driver())

	s, err = Open(ctx, config.Blob{Driver: "s3", Bucket: "docs", AccessKeyID: "a", SecretAccessKey: "b"})
	require.NoError(t, err)
	assert.Equal(t, core.DriverS3, s.Driver())

	_, err = Open(ctx, config.Blob{Driver: "s3"})
	require.ErrorContains(t, err, "bucket required")

	_, err = Open(ctx, config.Blob{Driver: "gcs"})
	require.ErrorContains(t, err, `unsupported blob driver "gcs"`)
}
