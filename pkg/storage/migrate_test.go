package storage_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"quill/pkg/models"
)

const legacyText = `Title: Old entry
Date: 2024-03-10T09:30:00
Mood: calm
Tags: morning coffee
-------------------------
Woke up early and watched the rain.`

func TestMigrateLegacyPlaintext(t *testing.T) {
	s := testStore(t)
	legacyPath := filepath.Join(s.Dir(), "2024-03-10.txt")
	require.NoError(t, os.WriteFile(legacyPath, []byte(legacyText), 0600))

	count, err := s.MigrateLegacy(nil)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	entries := s.Load(nil, true)
	require.Len(t, entries, 1)
	require.Equal(t, "Woke up early and watched the rain.", entries[0].Content)
	require.Equal(t, models.EntryTypeDiary, entries[0].EntryType)
	require.Equal(t, []string{"morning", "coffee"}, entries[0].Tags)
	require.Equal(t, "2024-03-10", entries[0].Date)

	// The original is consumed.
	_, err = os.Stat(legacyPath)
	require.True(t, os.IsNotExist(err))
}

func TestMigrateLegacyIsIdempotent(t *testing.T) {
	s := testStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "old.txt"), []byte(legacyText), 0600))

	count, err := s.MigrateLegacy(nil)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	count, err = s.MigrateLegacy(nil)
	require.NoError(t, err)
	require.Zero(t, count)
	require.Len(t, s.Load(nil, true), 1)
}

func TestMigrateLegacyEncrypted(t *testing.T) {
	s := testStore(t)
	cipher := testCipher(t, 1)

	token, err := cipher.EncryptString(legacyText)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "old.enc"), []byte(token), 0600))

	count, err := s.MigrateLegacy(cipher)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	entries := s.Load(cipher, true)
	require.Len(t, entries, 1)
	require.Equal(t, "Woke up early and watched the rain.", entries[0].Content)

	// The migrated entry is re-encrypted at rest.
	payload, err := s.RawPayload()
	require.NoError(t, err)
	require.NotContains(t, string(payload), "watched the rain")
	require.Contains(t, string(payload), "qj1:")
}

func TestMigrateLegacySkipsUndecryptable(t *testing.T) {
	s := testStore(t)
	cipher := testCipher(t, 1)

	token, err := cipher.EncryptString(legacyText)
	require.NoError(t, err)
	encPath := filepath.Join(s.Dir(), "old.solace")
	require.NoError(t, os.WriteFile(encPath, []byte(token), 0600))

	// Wrong key: the file is skipped and left in place.
	count, err := s.MigrateLegacy(testCipher(t, 2))
	require.NoError(t, err)
	require.Zero(t, count)
	_, err = os.Stat(encPath)
	require.NoError(t, err)
}
