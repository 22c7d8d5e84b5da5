package storage_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"quill/pkg/crypto"
	"quill/pkg/models"
	"quill/pkg/storage"
)

func testCipher(t *testing.T, b byte) *crypto.Cipher {
	t.Helper()
	key := make([]byte, crypto.KeyLength)
	for i := range key {
		key[i] = b
	}
	c, err := crypto.NewCipher(key)
	require.NoError(t, err)
	return c
}

func testStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.NewStore(filepath.Join(t.TempDir(), "journal"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAddAndLoadPlaintext(t *testing.T) {
	s := testStore(t)

	entry, err := s.Add("went for a long walk", models.EntryTypeDiary, storage.AddOptions{Tags: []string{"Health", " walking "}})
	require.NoError(t, err)
	require.NotEmpty(t, entry.Identifier)
	require.Equal(t, []string{"health", "walking"}, entry.Tags)
	require.False(t, entry.Encrypted)

	entries := s.Load(nil, true)
	require.Len(t, entries, 1)
	require.Equal(t, "went for a long walk", entries[0].Content)
}

func TestAddRejectsUnknownEntryType(t *testing.T) {
	s := testStore(t)
	_, err := s.Add("content", models.EntryType("scribble"), storage.AddOptions{})
	require.Error(t, err)
}

func TestEncryptedAtRestAndDecryptOnRead(t *testing.T) {
	s := testStore(t)
	cipher := testCipher(t, 1)

	_, err := s.Add("Private thoughts", models.EntryTypeDiary, storage.AddOptions{Cipher: cipher})
	require.NoError(t, err)

	// On disk the content is a ciphertext token, never plaintext.
	raw, err := os.ReadFile(s.EntriesPath())
	require.NoError(t, err)
	require.NotContains(t, string(raw), "Private thoughts")
	require.Contains(t, string(raw), "qj1:")

	entries := s.Load(cipher, true)
	require.Len(t, entries, 1)
	require.Equal(t, "Private thoughts", entries[0].Content)
	require.False(t, entries[0].Encrypted)
}

func TestLoadWithoutKey(t *testing.T) {
	s := testStore(t)
	cipher := testCipher(t, 1)

	_, err := s.Add("Private thoughts", models.EntryTypeDiary, storage.AddOptions{Cipher: cipher})
	require.NoError(t, err)

	// Without the key the entry is either dropped or passed through intact.
	require.Empty(t, s.Load(nil, false))

	passedThrough := s.Load(nil, true)
	require.Len(t, passedThrough, 1)
	require.True(t, passedThrough[0].Encrypted)
	require.True(t, crypto.IsToken(passedThrough[0].Content))

	// Same outcome with the wrong key: ciphertext, never garbage.
	wrongKey := s.Load(testCipher(t, 2), true)
	require.Len(t, wrongKey, 1)
	require.True(t, wrongKey[0].Encrypted)
}

func TestLoadEmptyAndCorruptStore(t *testing.T) {
	s := testStore(t)
	require.Empty(t, s.Load(nil, true))

	require.NoError(t, os.WriteFile(s.EntriesPath(), []byte("{broken"), 0600))
	require.Empty(t, s.Load(nil, true))

	// The corrupt file is left in place.
	data, err := os.ReadFile(s.EntriesPath())
	require.NoError(t, err)
	require.Equal(t, "{broken", string(data))
}

func TestAppendPreservesExistingEntries(t *testing.T) {
	s := testStore(t)

	_, err := s.Add("first", models.EntryTypeNotes, storage.AddOptions{})
	require.NoError(t, err)
	_, err = s.Add("second", models.EntryTypeNotes, storage.AddOptions{})
	require.NoError(t, err)

	entries := s.Load(nil, true)
	require.Len(t, entries, 2)
	require.Equal(t, "first", entries[0].Content)
	require.Equal(t, "second", entries[1].Content)
	require.NotEqual(t, entries[0].Identifier, entries[1].Identifier)
}

func TestRawPayload(t *testing.T) {
	s := testStore(t)

	payload, err := s.RawPayload()
	require.NoError(t, err)
	require.Equal(t, "[]", string(payload))

	_, err = s.Add("content", models.EntryTypeDiary, storage.AddOptions{})
	require.NoError(t, err)

	payload, err = s.RawPayload()
	require.NoError(t, err)
	require.Contains(t, string(payload), "content")
}
