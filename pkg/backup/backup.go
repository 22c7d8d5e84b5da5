// Package backup packages the journal into an encrypted archive and ships it
// to a pluggable backend: local filesystem copy, S3-compatible object storage,
// or a WebDAV server.
package backup

import (
	"archive/zip"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"quill/pkg/config"
	"quill/pkg/crypto"
	"quill/pkg/errors"
	"quill/pkg/storage"
)

// Result carries the outcome details of a package or sync run.
type Result struct {
	Archive      string `json:"archive"`
	Backend      string `json:"backend"`
	RemoteTarget string `json:"remote_target,omitempty"`
	DryRun       bool   `json:"dry_run"`
}

// Options controls a sync run. Zero values defer to the configuration.
type Options struct {
	Backend             string
	AllowOverwrite      bool
	DryRun              bool
	SkipRestorePoint    bool
	IncludeRestorePoint bool
}

// Supported backend names.
const (
	BackendLocal  = "local"
	BackendS3     = "s3"
	BackendWebDAV = "webdav"
)

type archiveMetadata struct {
	Timestamp     string `json:"timestamp"`
	Source        string `json:"source"`
	ConfigVersion string `json:"config_version"`
	Backend       string `json:"backend"`
}

// Package builds the backup archive: an encrypted blob of the raw entries
// file plus a metadata descriptor, and optionally a plaintext restore point
// (the entries file and the full configuration). The restore point is a
// deliberate confidentiality/availability trade-off the operator opts into
// for disaster recovery when keys are lost.
//
// With dryRun the intended archive path is returned without any I/O.
func Package(cfg *config.Config, store *storage.Store, cipher *crypto.Cipher, includeRestorePoint, dryRun bool) (string, error) {
	stagingDir := filepath.Join(cfg.Paths.Cache, "sync")
	archivePath := filepath.Join(stagingDir,
		"journal-sync-"+time.Now().Format("20060102-150405")+".zip")
	if dryRun {
		return archivePath, nil
	}
	if cipher == nil {
		return "", errors.ErrSyncConfiguration.WithContext("reason", "no cipher available for archive encryption")
	}
	if err := os.MkdirAll(stagingDir, 0755); err != nil {
		return "", errors.Wrap(err, errors.ErrTypeFileSystem, "DIR_CREATE_FAILED", "failed to create staging directory")
	}

	payload, err := store.RawPayload()
	if err != nil {
		return "", err
	}
	encrypted, err := cipher.Encrypt(payload)
	if err != nil {
		return "", err
	}

	metadata, err := json.MarshalIndent(archiveMetadata{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Source:        store.EntriesPath(),
		ConfigVersion: cfg.Version,
		Backend:       cfg.Sync.Backend,
	}, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, errors.ErrTypeSync, "ARCHIVE_FAILED", "failed to marshal archive metadata")
	}

	zipFile, err := os.Create(archivePath)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrTypeFileSystem, "FILE_WRITE_FAILED", "failed to create archive")
	}
	defer zipFile.Close()

	zipWriter := zip.NewWriter(zipFile)
	defer zipWriter.Close()

	files := []struct {
		name string
		data []byte
	}{
		{"journal.enc", []byte(encrypted)},
		{"metadata.json", metadata},
	}
	if includeRestorePoint {
		configJSON, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return "", errors.Wrap(err, errors.ErrTypeSync, "ARCHIVE_FAILED", "failed to marshal configuration")
		}
		files = append(files,
			struct {
				name string
				data []byte
			}{"entries.json", payload},
			struct {
				name string
				data []byte
			}{"config.json", configJSON},
		)
	}

	for _, file := range files {
		w, err := zipWriter.Create(file.name)
		if err != nil {
			return "", errors.Wrap(err, errors.ErrTypeSync, "ARCHIVE_FAILED", "failed to add archive member").
				WithContext("member", file.name)
		}
		if _, err := w.Write(file.data); err != nil {
			return "", errors.Wrap(err, errors.ErrTypeSync, "ARCHIVE_FAILED", "failed to write archive member").
				WithContext("member", file.name)
		}
	}
	return archivePath, nil
}

// Perform packages the journal and dispatches the archive to the selected
// backend. Backends refuse to overwrite an existing destination unless
// AllowOverwrite is set, and compute their target without I/O under DryRun.
func Perform(ctx context.Context, cfg *config.Config, store *storage.Store, cipher *crypto.Cipher, opts Options) (Result, error) {
	backend := opts.Backend
	if backend == "" {
		backend = cfg.Sync.Backend
	}
	if backend != BackendLocal && backend != BackendS3 && backend != BackendWebDAV {
		return Result{}, errors.ErrSyncConfiguration.WithContext("backend", backend)
	}

	includeRestorePoint := cfg.Sync.RestorePoint && !opts.SkipRestorePoint
	if opts.IncludeRestorePoint {
		includeRestorePoint = true
	}
	dryRun := opts.DryRun || cfg.Sync.DryRun

	archive, err := Package(cfg, store, cipher, includeRestorePoint, dryRun)
	if err != nil {
		return Result{}, err
	}

	switch backend {
	case BackendLocal:
		return syncLocal(cfg, archive, opts.AllowOverwrite, dryRun)
	case BackendS3:
		return syncS3(ctx, cfg, archive, opts.AllowOverwrite, dryRun)
	default:
		return syncWebDAV(ctx, cfg, archive, opts.AllowOverwrite, dryRun)
	}
}
