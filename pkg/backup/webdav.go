package backup

import (
	"context"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"quill/pkg/config"
	"quill/pkg/errors"
)

var webdavClient = &http.Client{Timeout: 30 * time.Second}

// syncWebDAV uploads the archive via HTTP PUT with basic auth. The conflict
// probe is a HEAD request: 200 means the target exists, 404 and 401 both let
// the upload proceed (some servers refuse HEAD to unauthenticated paths that
// PUT can still reach).
func syncWebDAV(ctx context.Context, cfg *config.Config, archive string, allowOverwrite, dryRun bool) (Result, error) {
	davCfg := cfg.Sync.WebDAV
	if !davCfg.Enabled {
		return Result{}, errors.ErrSyncConfiguration.WithContext("reason", "webdav backend is disabled")
	}
	if davCfg.URL == "" {
		return Result{}, errors.ErrSyncConfiguration.WithContext("reason", "webdav url is not configured")
	}

	target := strings.TrimRight(davCfg.URL, "/") + path.Join("/", davCfg.Path, filepath.Base(archive))
	result := Result{Archive: archive, Backend: BackendWebDAV, RemoteTarget: target, DryRun: dryRun}
	if dryRun {
		return result, nil
	}

	if !allowOverwrite {
		head, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
		if err != nil {
			return Result{}, errors.Wrap(err, errors.ErrTypeSync, "SYNC_FAILED", "failed to build webdav request")
		}
		if davCfg.Username != "" {
			head.SetBasicAuth(davCfg.Username, davCfg.Password)
		}
		resp, err := webdavClient.Do(head)
		if err != nil {
			return Result{}, errors.Wrap(err, errors.ErrTypeSync, "SYNC_FAILED", "webdav server unreachable").
				WithContext("destination", target)
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			return Result{}, errors.ErrSyncConflict.WithContext("destination", target)
		}
	}

	file, err := os.Open(archive)
	if err != nil {
		return Result{}, errors.Wrap(err, errors.ErrTypeSync, "SYNC_FAILED", "failed to open archive")
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return Result{}, errors.Wrap(err, errors.ErrTypeSync, "SYNC_FAILED", "failed to stat archive")
	}

	put, err := http.NewRequestWithContext(ctx, http.MethodPut, target, file)
	if err != nil {
		return Result{}, errors.Wrap(err, errors.ErrTypeSync, "SYNC_FAILED", "failed to build webdav request")
	}
	put.ContentLength = info.Size()
	put.Header.Set("Content-Type", "application/zip")
	if davCfg.Username != "" {
		put.SetBasicAuth(davCfg.Username, davCfg.Password)
	}

	resp, err := webdavClient.Do(put)
	if err != nil {
		return Result{}, errors.Wrap(err, errors.ErrTypeSync, "SYNC_FAILED", "webdav upload failed").
			WithContext("destination", target)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, errors.New(errors.ErrTypeSync, "SYNC_FAILED", "webdav server rejected upload").
			WithContext("status", resp.StatusCode).
			WithContext("destination", target)
	}
	return result, nil
}
