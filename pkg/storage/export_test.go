package storage_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"quill/pkg/errors"
	"quill/pkg/models"
	"quill/pkg/storage"
)

func TestExportMarkdown(t *testing.T) {
	s := testStore(t)
	_, err := s.Add("Exportable content", models.EntryTypeNotes, storage.AddOptions{Tags: []string{"share"}})
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "out", "journal.md")
	path, err := s.Export(dest, storage.FormatMarkdown, nil)
	require.NoError(t, err)
	require.Equal(t, dest, path)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	rendered := string(data)
	require.Contains(t, rendered, "# Quill journal export")
	require.Contains(t, rendered, "## Notes")
	require.Contains(t, rendered, "*Tags:* share")
	require.Contains(t, rendered, "Exportable content")
}

func TestExportTextPaginates(t *testing.T) {
	s := testStore(t)
	for i := 0; i < 7; i++ {
		_, err := s.Add("entry body", models.EntryTypeDiary, storage.AddOptions{})
		require.NoError(t, err)
	}

	dest := filepath.Join(t.TempDir(), "journal.txt")
	_, err := s.Export(dest, storage.FormatText, nil)
	require.NoError(t, err)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	rendered := string(data)
	require.Contains(t, rendered, "Page 1")
	require.Contains(t, rendered, "Page 2")
	require.Contains(t, rendered, "\f")
}

func TestExportMarksUndecryptableEntries(t *testing.T) {
	s := testStore(t)
	_, err := s.Add("hidden", models.EntryTypeDiary, storage.AddOptions{Cipher: testCipher(t, 1)})
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "journal.md")
	_, err = s.Export(dest, storage.FormatMarkdown, nil)
	require.NoError(t, err)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.NotContains(t, string(data), "hidden")
	require.Contains(t, string(data), "encrypted entry: no key available")
}

func TestExportRefusesUnknownFormat(t *testing.T) {
	s := testStore(t)
	_, err := s.Export(filepath.Join(t.TempDir(), "out.pdf"), "pdf", nil)
	require.ErrorIs(t, err, errors.ErrUnsupportedFormat)
}
