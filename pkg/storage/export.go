package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"quill/pkg/crypto"
	"quill/pkg/errors"
	"quill/pkg/models"
)

// Export formats.
const (
	FormatMarkdown = "markdown"
	FormatText     = "text"
)

const textPageSize = 5

// Export renders the journal (decrypted where possible) into the requested
// format and writes it to dest. The written path is returned. Unknown formats
// are refused with ErrUnsupportedFormat rather than guessed.
func (s *Store) Export(dest, format string, cipher *crypto.Cipher) (string, error) {
	entries := s.Load(cipher, true)

	var rendered string
	switch format {
	case FormatMarkdown:
		rendered = renderMarkdown(entries)
	case FormatText:
		rendered = renderText(entries)
	default:
		return "", errors.ErrUnsupportedFormat.WithContext("format", format)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return "", errors.Wrap(err, errors.ErrTypeFileSystem, "DIR_CREATE_FAILED", "failed to create export directory")
	}
	if err := os.WriteFile(dest, []byte(rendered), 0600); err != nil {
		return "", errors.Wrap(err, errors.ErrTypeFileSystem, "FILE_WRITE_FAILED", "failed to write export")
	}
	return dest, nil
}

func titleCase(t models.EntryType) string {
	s := string(t)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func renderMarkdown(entries []models.Entry) string {
	var b strings.Builder
	b.WriteString("# Quill journal export\n\n")
	b.WriteString(fmt.Sprintf("Generated: %s\n\n", time.Now().Format(models.TimestampLayout)))
	for _, entry := range entries {
		b.WriteString(fmt.Sprintf("## %s — %s %s\n\n", titleCase(entry.EntryType), entry.Date, entry.Time))
		if len(entry.Tags) > 0 {
			b.WriteString(fmt.Sprintf("*Tags:* %s\n\n", strings.Join(entry.Tags, ", ")))
		}
		if entry.Encrypted {
			b.WriteString("_(encrypted entry: no key available)_\n\n")
			continue
		}
		b.WriteString(entry.Content)
		b.WriteString("\n\n")
	}
	return b.String()
}

// renderText produces a plain paginated document: fixed-size pages separated
// by form feeds, each with a page footer.
func renderText(entries []models.Entry) string {
	var b strings.Builder
	b.WriteString("Quill journal export\n")
	b.WriteString(strings.Repeat("=", 40) + "\n\n")

	page := 1
	for i, entry := range entries {
		b.WriteString(fmt.Sprintf("[%s] %s %s\n", titleCase(entry.EntryType), entry.Date, entry.Time))
		if len(entry.Tags) > 0 {
			b.WriteString("Tags: " + strings.Join(entry.Tags, ", ") + "\n")
		}
		if entry.Encrypted {
			b.WriteString("(encrypted entry: no key available)\n")
		} else {
			b.WriteString(entry.Content + "\n")
		}
		b.WriteString(strings.Repeat("-", 40) + "\n")
		if (i+1)%textPageSize == 0 && i+1 < len(entries) {
			b.WriteString(fmt.Sprintf("\nPage %d\n\f", page))
			page++
		}
	}
	b.WriteString(fmt.Sprintf("\nPage %d\n", page))
	return b.String()
}
