package backup

import (
	"io"
	"os"
	"path/filepath"

	"quill/pkg/config"
	"quill/pkg/errors"
)

// syncLocal copies the archive into the configured local directory, falling
// back to the backups directory from the path table.
func syncLocal(cfg *config.Config, archive string, allowOverwrite, dryRun bool) (Result, error) {
	destDir := cfg.Sync.Local.Path
	if destDir == "" {
		destDir = cfg.Paths.Backups
	}
	if destDir == "" {
		return Result{}, errors.ErrSyncConfiguration.WithContext("reason", "no local destination directory configured")
	}
	destination := filepath.Join(destDir, filepath.Base(archive))

	if _, err := os.Stat(destination); err == nil && !allowOverwrite {
		return Result{}, errors.ErrSyncConflict.WithContext("destination", destination)
	}

	result := Result{Archive: archive, Backend: BackendLocal, RemoteTarget: destination, DryRun: dryRun}
	if dryRun {
		return result, nil
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return Result{}, errors.Wrap(err, errors.ErrTypeFileSystem, "DIR_CREATE_FAILED", "failed to create backup directory").
			WithContext("dir", destDir)
	}
	src, err := os.Open(archive)
	if err != nil {
		return Result{}, errors.Wrap(err, errors.ErrTypeSync, "SYNC_FAILED", "failed to open archive")
	}
	defer src.Close()

	dst, err := os.Create(destination)
	if err != nil {
		return Result{}, errors.Wrap(err, errors.ErrTypeFileSystem, "FILE_WRITE_FAILED", "failed to create backup copy").
			WithContext("destination", destination)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return Result{}, errors.Wrap(err, errors.ErrTypeSync, "SYNC_FAILED", "failed to copy archive").
			WithContext("destination", destination)
	}
	return result, nil
}
