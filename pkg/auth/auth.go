package auth

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"quill/pkg/config"
	"quill/pkg/crypto"
	"quill/pkg/errors"

	"golang.org/x/term"
)

const maxAttempts = 3

// readPassword is a test seam for term.ReadPassword.
// In tests you can replace it with a stub to avoid touching the terminal.
var readPassword = term.ReadPassword

// Manager owns the password lifecycle and cipher acquisition for one
// configuration. Prompts are written to Out and line input is read from In;
// hidden password input goes through the terminal unless stubbed.
type Manager struct {
	cfg *config.Config
	In  *bufio.Reader
	Out io.Writer
}

// NewManager creates an authentication manager bound to cfg, prompting on
// stdin/stdout.
func NewManager(cfg *config.Config) *Manager {
	return &Manager{cfg: cfg, In: bufio.NewReader(os.Stdin), Out: os.Stdout}
}

// HashPassword returns the one-way digest stored in place of the password.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

func (m *Manager) promptPassword(prompt string) (string, error) {
	if _, err := fmt.Fprint(m.Out, prompt); err != nil {
		return "", err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(m.Out)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}

// SetPassword runs the interactive enable/confirm flow. Declining clears the
// password settings; enabling stores only the hash and ensures a salt exists.
func (m *Manager) SetPassword() error {
	fmt.Fprint(m.Out, "Protect your journal with a password? (y/n) ")
	line, err := m.In.ReadString('\n')
	if err != nil && line == "" {
		return err
	}
	choice := strings.ToLower(strings.TrimSpace(line))
	if choice != "y" && choice != "yes" {
		m.cfg.Security.PasswordEnabled = false
		m.cfg.Security.PasswordHash = ""
		return m.cfg.Save()
	}

	for {
		pw, err := m.promptPassword("Choose a password (leave blank to cancel): ")
		if err != nil {
			return err
		}
		if pw == "" {
			fmt.Fprintln(m.Out, "Password unchanged.")
			return nil
		}
		confirm, err := m.promptPassword("Confirm password: ")
		if err != nil {
			return err
		}
		if pw != confirm {
			fmt.Fprintln(m.Out, "Passwords do not match. Try again.")
			continue
		}
		m.cfg.Security.PasswordEnabled = true
		m.cfg.Security.PasswordHash = HashPassword(pw)
		if _, err := m.cfg.EnsureSalt(); err != nil {
			return err
		}
		if err := m.cfg.Save(); err != nil {
			return err
		}
		fmt.Fprintln(m.Out, "Password saved.")
		return nil
	}
}

// VerifyPassword prompts for the password when one is enabled and returns the
// verified plaintext for downstream key derivation. Without a configured
// password it returns "" immediately. After three failed attempts it returns
// ErrAuthExhausted, which callers must treat as fatal to the session.
func (m *Manager) VerifyPassword() (string, error) {
	sec := m.cfg.Security
	if !sec.PasswordEnabled || sec.PasswordHash == "" {
		return "", nil
	}
	for attempt := 0; attempt < maxAttempts; attempt++ {
		guess, err := m.promptPassword("Enter journal password: ")
		if err != nil {
			return "", err
		}
		if HashPassword(guess) == sec.PasswordHash {
			return guess, nil
		}
		fmt.Fprintln(m.Out, "Incorrect password. Try again.")
	}
	return "", errors.ErrAuthExhausted
}

// GetCipher returns a ready-to-use cipher for the current configuration.
//
// Encryption must be enabled; otherwise ErrEncryptionDisabled is returned and
// the operation is refused rather than silently downgraded to plaintext. When
// a password is configured and none is supplied, the user is prompted. When no
// password is configured, the persisted key seed stands in as the secret.
func (m *Manager) GetCipher(password string) (*crypto.Cipher, error) {
	if !m.cfg.Security.EncryptionEnabled {
		return nil, errors.ErrEncryptionDisabled
	}
	if m.cfg.Security.PasswordEnabled {
		if password == "" {
			verified, err := m.VerifyPassword()
			if err != nil {
				return nil, err
			}
			password = verified
		} else if HashPassword(password) != m.cfg.Security.PasswordHash {
			return nil, errors.ErrInvalidPassword
		}
	} else {
		seed, err := m.cfg.EnsureKeySeed()
		if err != nil {
			return nil, err
		}
		password = seed
	}
	salt, err := m.cfg.EnsureSalt()
	if err != nil {
		return nil, err
	}
	return crypto.NewCipher(crypto.DeriveKey(password, salt))
}
