package storage

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"quill/pkg/crypto"
	"quill/pkg/errors"
	"quill/pkg/models"
)

const entriesFilename = "entries.json"

// Store manages the append-only journal collection persisted as a single JSON
// array. Entries are only ever added; the store offers no update or delete.
//
// The store assumes a single process and a single user. A file watcher
// invalidates the in-memory cache when the entries file changes externally,
// but no locking protects against two concurrent writers.
type Store struct {
	dir     string
	file    string
	watcher *fsnotify.Watcher

	mu         sync.Mutex
	cache      []models.Entry
	cacheValid bool
}

// NewStore opens (creating if needed) the journal directory and starts
// watching it for external changes.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeFileSystem, "DIR_CREATE_FAILED",
			"failed to create journal directory").WithContext("dir", dir)
	}

	s := &Store{dir: dir, file: filepath.Join(dir, entriesFilename)}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("Warning: could not create file watcher: %v", err)
	} else {
		s.watcher = watcher
		if err := watcher.Add(dir); err != nil {
			log.Printf("Warning: could not watch journal directory: %v", err)
		}
		go s.watch()
	}

	return s, nil
}

// Dir returns the journal directory path.
func (s *Store) Dir() string {
	return s.dir
}

// EntriesPath returns the path of the backing entries file.
func (s *Store) EntriesPath() string {
	return s.file
}

func (s *Store) watch() {
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != entriesFilename {
				continue
			}
			s.mu.Lock()
			s.cacheValid = false
			s.mu.Unlock()
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Watcher error: %v", err)
		}
	}
}

// Close stops the file watcher.
func (s *Store) Close() error {
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

// loadRaw returns the on-disk entries exactly as stored, ciphertext included.
// A missing file is an empty store; corrupt JSON is logged and treated the
// same, keeping the unreadable file in place for manual inspection.
func (s *Store) loadRaw() []models.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadRawLocked()
}

func (s *Store) loadRawLocked() []models.Entry {
	if s.cacheValid {
		return append([]models.Entry(nil), s.cache...)
	}
	data, err := os.ReadFile(s.file)
	if err != nil {
		s.cache = nil
		s.cacheValid = true
		return nil
	}
	var entries []models.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		log.Printf("Warning: entries file is not valid JSON, treating store as empty: %v", err)
		s.cache = nil
		s.cacheValid = true
		return nil
	}
	s.cache = entries
	s.cacheValid = true
	return append([]models.Entry(nil), entries...)
}

// saveRawLocked rewrites the whole collection atomically: write to a
// temporary file in the same directory, then rename into place.
func (s *Store) saveRawLocked(entries []models.Entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrTypeFileSystem, "FILE_WRITE_FAILED", "failed to marshal entries")
	}
	tmp, err := os.CreateTemp(s.dir, ".entries-*.tmp")
	if err != nil {
		return errors.Wrap(err, errors.ErrTypeFileSystem, "FILE_WRITE_FAILED", "failed to create temp file")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, errors.ErrTypeFileSystem, "FILE_WRITE_FAILED", "failed to write entries")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, errors.ErrTypeFileSystem, "FILE_WRITE_FAILED", "failed to write entries")
	}
	if err := os.Rename(tmpName, s.file); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, errors.ErrTypeFileSystem, "FILE_WRITE_FAILED", "failed to replace entries file")
	}
	s.cache = entries
	s.cacheValid = true
	return nil
}

// AddOptions carries the optional parameters of Add.
type AddOptions struct {
	Tags   []string
	When   time.Time
	Cipher *crypto.Cipher
}

// Add constructs a new entry and appends it to the collection. When a cipher
// is supplied the content is encrypted at rest and the entry is flagged
// accordingly; otherwise the content is stored as-is.
func (s *Store) Add(content string, entryType models.EntryType, opts AddOptions) (models.Entry, error) {
	if !models.ValidEntryType(entryType) {
		return models.Entry{}, errors.New(errors.ErrTypeApp, "UNKNOWN_ENTRY_TYPE", "unknown entry type").
			WithContext("entry_type", string(entryType))
	}
	when := opts.When
	if when.IsZero() {
		when = time.Now()
	}

	entry := models.NewEntry(content, entryType, opts.Tags, when)
	if opts.Cipher != nil {
		token, err := opts.Cipher.EncryptString(content)
		if err != nil {
			return models.Entry{}, err
		}
		entry.Content = token
		entry.Encrypted = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.loadRawLocked()
	entries = append(entries, entry)
	if err := s.saveRawLocked(entries); err != nil {
		return models.Entry{}, err
	}
	return entry, nil
}

// Load returns all entries with transparent decrypt-on-read.
//
// Entries flagged encrypted are decrypted when a cipher is available. When
// decryption fails (wrong or missing key) the entry is either passed through
// with its ciphertext intact (includeEncrypted) or dropped from the result.
// An empty or corrupt store yields an empty list, never an error.
func (s *Store) Load(cipher *crypto.Cipher, includeEncrypted bool) []models.Entry {
	raw := s.loadRaw()
	out := make([]models.Entry, 0, len(raw))
	for _, entry := range raw {
		if !entry.Encrypted {
			out = append(out, entry)
			continue
		}
		if cipher != nil {
			plaintext, err := cipher.DecryptString(entry.Content)
			if err == nil {
				entry.Content = plaintext
				entry.Encrypted = false
				out = append(out, entry)
				continue
			}
		}
		if includeEncrypted {
			out = append(out, entry)
		}
	}
	return out
}

// RawPayload returns the backing file bytes without decryption, for the
// backup facade. A missing file yields an empty JSON array.
func (s *Store) RawPayload() ([]byte, error) {
	data, err := os.ReadFile(s.file)
	if os.IsNotExist(err) {
		return []byte("[]"), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeFileSystem, "FILE_READ_FAILED", "failed to read entries file")
	}
	return data, nil
}
