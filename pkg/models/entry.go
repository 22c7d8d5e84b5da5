// Package models defines the journal entry types.
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// EntryType classifies an entry kind. The enumeration is closed at runtime.
type EntryType string

const (
	EntryTypeDiary EntryType = "diary"
	EntryTypeNotes EntryType = "notes"
	EntryTypeTodo  EntryType = "todo"
	EntryTypeQuote EntryType = "quote"
)

// EntryTypes lists the valid entry kinds.
var EntryTypes = []EntryType{EntryTypeDiary, EntryTypeNotes, EntryTypeTodo, EntryTypeQuote}

// ValidEntryType reports whether t names a known entry kind.
func ValidEntryType(t EntryType) bool {
	for _, known := range EntryTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Timestamp layouts. Date and Time are redundant human-readable projections
// of Timestamp and must stay consistent with it.
const (
	TimestampLayout = "2006-01-02T15:04:05"
	DateLayout      = "2006-01-02"
	TimeLayout      = "15:04"
)

// Entry is one journal record. Identifier and Timestamp never change once
// written; the store is append-only and offers no mutation of either.
type Entry struct {
	Identifier string                 `json:"identifier"`
	EntryType  EntryType              `json:"entry_type"`
	Timestamp  string                 `json:"timestamp"`
	Date       string                 `json:"date"`
	Time       string                 `json:"time"`
	Content    string                 `json:"content"`
	Tags       []string               `json:"tags"`
	Encrypted  bool                   `json:"encrypted"`
	Metadata   map[string]interface{} `json:"metadata"`
}

// NewEntry constructs an entry with a fresh identifier for the given creation
// instant. Tags are lowercased and trimmed.
func NewEntry(content string, entryType EntryType, tags []string, when time.Time) Entry {
	normalized := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag != "" {
			normalized = append(normalized, tag)
		}
	}
	return Entry{
		Identifier: uuid.NewString(),
		EntryType:  entryType,
		Timestamp:  when.Format(TimestampLayout),
		Date:       when.Format(DateLayout),
		Time:       when.Format(TimeLayout),
		Content:    content,
		Tags:       normalized,
		Metadata:   map[string]interface{}{},
	}
}

// ParseTimestamp returns the entry's creation instant, or the zero time when
// the stored value is unreadable.
func (e Entry) ParseTimestamp() time.Time {
	ts, err := time.ParseInLocation(TimestampLayout, e.Timestamp, time.Local)
	if err != nil {
		return time.Time{}
	}
	return ts
}

// HasTag reports whether the entry carries the given tag, case-insensitively.
func (e Entry) HasTag(tag string) bool {
	tag = strings.ToLower(tag)
	for _, t := range e.Tags {
		if strings.ToLower(t) == tag {
			return true
		}
	}
	return false
}
