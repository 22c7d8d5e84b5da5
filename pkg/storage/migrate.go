package storage

import (
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"quill/pkg/crypto"
	"quill/pkg/models"
)

// legacySuffixes mark per-file entries produced by earlier storage schemes:
// headered plaintext (.txt) and whole-file encrypted variants (.enc, .solace).
var legacySuffixes = []string{".txt", ".enc", ".solace"}

// MigrateLegacy upgrades legacy per-file entries found in the journal
// directory into the entries collection, re-encrypting with the supplied
// cipher and deleting each original after a successful import. The operation
// is idempotent: once migrated the source files are gone, so a second run
// reports zero migrations.
//
// Encrypted legacy files that cannot be decrypted (wrong key, no cipher) are
// left in place and skipped.
func (s *Store) MigrateLegacy(cipher *crypto.Cipher) (int, error) {
	var candidates []string
	for _, suffix := range legacySuffixes {
		matches, err := filepath.Glob(filepath.Join(s.dir, "*"+suffix))
		if err != nil {
			continue
		}
		candidates = append(candidates, matches...)
	}
	sort.Strings(candidates)

	migrated := 0
	for _, path := range candidates {
		entry, ok := s.readLegacyFile(path, cipher)
		if !ok {
			continue
		}
		if _, err := s.Add(entry.content, entry.entryType, AddOptions{
			Tags:   entry.tags,
			When:   entry.when,
			Cipher: cipher,
		}); err != nil {
			return migrated, err
		}
		if err := os.Remove(path); err != nil {
			log.Printf("Warning: migrated %s but could not remove the original: %v", path, err)
		}
		migrated++
	}
	return migrated, nil
}

type legacyEntry struct {
	content   string
	entryType models.EntryType
	tags      []string
	when      time.Time
}

func (s *Store) readLegacyFile(path string, cipher *crypto.Cipher) (legacyEntry, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("Warning: could not read legacy file %s: %v", path, err)
		return legacyEntry{}, false
	}

	text := string(data)
	if ext := filepath.Ext(path); ext == ".enc" || ext == ".solace" {
		if cipher == nil {
			log.Printf("Skipping encrypted legacy file %s: no cipher available", path)
			return legacyEntry{}, false
		}
		plaintext, err := cipher.DecryptString(strings.TrimSpace(text))
		if err != nil {
			log.Printf("Skipping legacy file %s: %v", path, err)
			return legacyEntry{}, false
		}
		text = plaintext
	}

	return parseLegacyEntry(text), true
}

// parseLegacyEntry reads the old headered format:
//
//	Title: ...
//	Date: ...
//	Mood: ...
//	Tags: a b c
//	-------------------------
//	body
func parseLegacyEntry(text string) legacyEntry {
	lines := strings.Split(text, "\n")
	entry := legacyEntry{entryType: models.EntryTypeDiary, when: time.Now()}
	meta := map[string]string{}

	bodyStart := 0
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "Title:"):
			meta["title"] = strings.TrimSpace(line[len("Title:"):])
		case strings.HasPrefix(line, "Date:"):
			if ts := parseLegacyTimestamp(strings.TrimSpace(line[len("Date:"):])); !ts.IsZero() {
				entry.when = ts
			}
		case strings.HasPrefix(line, "Mood:"):
			meta["mood"] = strings.TrimSpace(line[len("Mood:"):])
		case strings.HasPrefix(line, "Tags:"):
			entry.tags = strings.Fields(line[len("Tags:"):])
		case strings.HasPrefix(line, "----"):
			bodyStart = i + 1
		}
		if bodyStart > 0 {
			break
		}
	}
	entry.content = strings.TrimSpace(strings.Join(lines[bodyStart:], "\n"))
	if title := meta["title"]; title != "" && entry.content == "" {
		entry.content = title
	}
	return entry
}

func parseLegacyTimestamp(value string) time.Time {
	for _, layout := range []string{models.TimestampLayout, time.RFC3339, models.DateLayout} {
		if ts, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return ts
		}
	}
	return time.Time{}
}
