package errors

import (
	"fmt"
	"log"
	"strings"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	// Authentication errors
	ErrTypeAuth ErrorType = "authentication"
	// File system errors
	ErrTypeFileSystem ErrorType = "filesystem"
	// Configuration errors
	ErrTypeConfig ErrorType = "configuration"
	// Encryption/decryption errors
	ErrTypeCrypto ErrorType = "crypto"
	// Export/rendering errors
	ErrTypeExport ErrorType = "export"
	// Sync/backup errors
	ErrTypeSync ErrorType = "sync"
	// Generic application errors
	ErrTypeApp ErrorType = "application"
)

// AppError represents a structured application error
type AppError struct {
	Type        ErrorType              `json:"type"`
	Code        string                 `json:"code"`
	Message     string                 `json:"message"`
	UserMessage string                 `json:"userMessage"`
	InternalErr error                  `json:"-"`
	Context     map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.InternalErr != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Type, e.Code, e.Message, e.InternalErr)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

// Unwrap exposes the wrapped internal error to errors.Is/As chains.
func (e *AppError) Unwrap() error {
	return e.InternalErr
}

// Is matches AppErrors by type and code so that wrapped instances compare
// equal to the predefined sentinels below.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

// GetUserMessage returns a user-friendly error message
func (e *AppError) GetUserMessage() string {
	if e.UserMessage != "" {
		return e.UserMessage
	}
	return e.Message
}

// WithContext adds context information to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithUserMessage sets a user-friendly message
func (e *AppError) WithUserMessage(msg string) *AppError {
	e.UserMessage = msg
	return e
}

// Log logs the error with appropriate level
func (e *AppError) Log() {
	contextStr := ""
	if len(e.Context) > 0 {
		var parts []string
		for k, v := range e.Context {
			parts = append(parts, fmt.Sprintf("%s=%v", k, v))
		}
		contextStr = fmt.Sprintf(" [%s]", strings.Join(parts, ", "))
	}

	log.Printf("ERROR [%s:%s] %s%s", e.Type, e.Code, e.Error(), contextStr)
}

// New creates a new AppError
func New(errType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:    errType,
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:        errType,
		Code:        code,
		Message:     message,
		InternalErr: err,
	}
}

// Predefined errors for common scenarios
var (
	// Authentication errors
	ErrInvalidPassword = New(ErrTypeAuth, "INVALID_PASSWORD", "invalid password").
				WithUserMessage("Incorrect password. Please try again")

	ErrAuthExhausted = New(ErrTypeAuth, "AUTH_EXHAUSTED", "maximum password attempts exceeded").
				WithUserMessage("Too many failed password attempts")

	ErrPasswordMismatch = New(ErrTypeAuth, "PASSWORD_MISMATCH", "passwords do not match").
				WithUserMessage("Passwords do not match. Please try again")

	// Crypto errors
	ErrEncryptionDisabled = New(ErrTypeCrypto, "ENCRYPTION_DISABLED", "encryption disabled in config").
				WithUserMessage("Encryption is disabled. Enable it in the configuration first")

	ErrDecryptionFailed = New(ErrTypeCrypto, "DECRYPT_FAILED", "decryption failed").
				WithUserMessage("Unable to decrypt data. The password may be incorrect")

	ErrEncryptionFailed = New(ErrTypeCrypto, "ENCRYPT_FAILED", "encryption failed").
				WithUserMessage("Unable to encrypt data. Please try again")

	// Configuration errors
	ErrConfigCorrupt = New(ErrTypeConfig, "CONFIG_CORRUPT", "stored configuration is not valid JSON").
				WithUserMessage("Configuration file could not be read. Using defaults")

	ErrConfigSaveFailed = New(ErrTypeConfig, "CONFIG_SAVE_FAILED", "failed to save configuration").
				WithUserMessage("Unable to save settings. Check permissions")

	// Export errors
	ErrUnsupportedFormat = New(ErrTypeExport, "UNSUPPORTED_FORMAT", "unsupported export format").
				WithUserMessage("The requested export format is not supported")

	// Sync errors
	ErrSyncConflict = New(ErrTypeSync, "SYNC_CONFLICT", "destination already exists").
			WithUserMessage("The backup destination already exists. Pass allow-overwrite to replace it")

	ErrSyncConfiguration = New(ErrTypeSync, "SYNC_MISCONFIGURED", "sync backend misconfigured").
				WithUserMessage("The sync backend is disabled or missing required settings")

	// File system errors
	ErrFileWriteFailed = New(ErrTypeFileSystem, "FILE_WRITE_FAILED", "failed to write file").
				WithUserMessage("Unable to save file. Check disk space and permissions")
)
