package main

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"societycore/internal/config"
	"societycore/pkg/logger"
)

func findCmd(cmd *cobra.Command, name string) *cobra.Command {
	for _, c := range cmd.Commands() {
		if c.Name() == name {
			return c
		}
	}
	return nil
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"serve", "bootstrap", "temp-password"} {
		assert.NotNil(t, findCmd(root, name), name)
	}
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
}

func TestTempPassword(t *testing.T) {
	out, err := run(t, "temp-password", "-n", "16")
	require.NoError(t, err)
	assert.Len(t, strings.TrimSpace(out), 16)

	_, err = run(t, "temp-password", "-n", "4")
	require.Error(t, err)
}

func TestBootstrapPersistsFirstAdmin(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SOCIETYCORE_STORAGE_DRIVER", "sqlite")
	t.Setenv("SOCIETYCORE_SQLITE_PATH", filepath.Join(dir, "state.db"))
	t.Setenv("SOCIETYCORE_BLOB_DRIVER", "fs")
	t.Setenv("SOCIETYCORE_BLOB_FS_ROOT", filepath.Join(dir, "blobs"))

	_, err := run(t, "bootstrap", "--org", "Lotus Enclave")
	require.ErrorContains(t, err, "email")

	out, err := run(t, "bootstrap", "--org", "Lotus Enclave", "--email", "Chair@Lotus.example", "--name", "Anil Kapoor")
	require.NoError(t, err, out)
	assert.Contains(t, out, "organization: Lotus Enclave")
	assert.Contains(t, out, "administrator: chair@lotus.example")
	var temp string
	for _, line := range strings.Split(out, "\n") {
		if v, ok := strings.CutPrefix(line, "temporary password: "); ok {
			temp = v
		}
	}
	require.NotEmpty(t, temp)

	cfg, err := config.Load("")
	require.NoError(t, err)
	a, err := openApp(context.Background(), cfg, logger.Test(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	outcome, err := a.directory.SignIn(context.Background(), "chair@lotus.example", temp)
	require.NoError(t, err)
	require.NotNil(t, outcome.Session)
	principal, err := a.directory.Authenticate(context.Background(), outcome.Session.Token)
	require.NoError(t, err)
	assert.Equal(t, "admin", string(principal.Role))
	assert.True(t, principal.MustChangePassword)
}

func TestServeStopsOnCancel(t *testing.T) {
	t.Setenv("SOCIETYCORE_STORAGE_DRIVER", "memory")
	t.Setenv("SOCIETYCORE_BLOB_DRIVER", "memory")
	cfg, err := config.Load("")
	require.NoError(t, err)
	lggr := logger.Test(t)
	a, err := openApp(context.Background(), cfg, lggr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, ln, a.handler(), cfg.HTTP, lggr) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get("http://" + ln.Addr().String() + "/metrics")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
