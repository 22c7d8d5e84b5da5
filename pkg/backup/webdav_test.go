package backup

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"quill/pkg/config"
	"quill/pkg/errors"
)

func webdavConfig(t *testing.T, url string) *config.Config {
	t.Helper()
	cfg := config.Defaults(t.TempDir())
	cfg.Sync.WebDAV = config.WebDAVSyncConfig{
		Enabled:  true,
		URL:      url,
		Path:     "/quill",
		Username: "journal",
		Password: "secret",
	}
	return cfg
}

func testArchive(t *testing.T) string {
	t.Helper()
	archive := filepath.Join(t.TempDir(), "journal-sync-test.zip")
	require.NoError(t, os.WriteFile(archive, []byte("zip bytes"), 0600))
	return archive
}

func TestSyncWebDAVUploads(t *testing.T) {
	var putBody []byte
	var putPath, authUser string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodHead:
			w.WriteHeader(http.StatusNotFound)
		case http.MethodPut:
			putPath = r.URL.Path
			authUser, _, _ = r.BasicAuth()
			putBody, _ = io.ReadAll(r.Body)
			w.WriteHeader(http.StatusCreated)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	defer server.Close()

	cfg := webdavConfig(t, server.URL)
	result, err := syncWebDAV(context.Background(), cfg, testArchive(t), false, false)
	require.NoError(t, err)

	require.Equal(t, BackendWebDAV, result.Backend)
	require.Equal(t, "/quill/journal-sync-test.zip", putPath)
	require.Equal(t, "journal", authUser)
	require.Equal(t, "zip bytes", string(putBody))
}

func TestSyncWebDAVConflict(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Target already exists.
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := webdavConfig(t, server.URL)
	_, err := syncWebDAV(context.Background(), cfg, testArchive(t), false, false)
	require.ErrorIs(t, err, errors.ErrSyncConflict)
}

func TestSyncWebDAVOverwriteSkipsProbe(t *testing.T) {
	headCalled := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			headCalled = true
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	cfg := webdavConfig(t, server.URL)
	_, err := syncWebDAV(context.Background(), cfg, testArchive(t), true, false)
	require.NoError(t, err)
	require.False(t, headCalled)
}

func TestSyncWebDAVRejectedUpload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusInsufficientStorage)
	}))
	defer server.Close()

	cfg := webdavConfig(t, server.URL)
	_, err := syncWebDAV(context.Background(), cfg, testArchive(t), false, false)
	require.Error(t, err)
}

func TestSyncWebDAVMisconfigured(t *testing.T) {
	cfg := config.Defaults(t.TempDir())
	archive := testArchive(t)

	_, err := syncWebDAV(context.Background(), cfg, archive, false, false)
	require.ErrorIs(t, err, errors.ErrSyncConfiguration)

	cfg.Sync.WebDAV.Enabled = true
	_, err = syncWebDAV(context.Background(), cfg, archive, false, false)
	require.ErrorIs(t, err, errors.ErrSyncConfiguration)
}

func TestSyncWebDAVDryRun(t *testing.T) {
	// No server: a dry run must not touch the network.
	cfg := webdavConfig(t, "http://127.0.0.1:1/dav")
	result, err := syncWebDAV(context.Background(), cfg, testArchive(t), false, true)
	require.NoError(t, err)
	require.True(t, result.DryRun)
	require.Equal(t, "http://127.0.0.1:1/dav/quill/journal-sync-test.zip", result.RemoteTarget)
}
