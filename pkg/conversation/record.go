package conversation

import (
	"encoding/json"
	"errors"
	"time"
)

// errUnknownEncoding reports a stored record that matches neither the
// primary nor the legacy serialization.
var errUnknownEncoding = errors.New("unrecognized conversation record encoding")

// Record is the persisted mapping from a conversation fingerprint to the
// engine's conversation handle. Records are written once when the handle
// first becomes known and are only ever replaced wholesale; a fingerprint
// that later maps to a different handle is simply overwritten.
type Record struct {
	ConversationID string  `json:"conversation_id"`
	CreatedAt      float64 `json:"created_at"`
	UserID         string  `json:"user_id"`
}

// legacyRecord is an older serialization that stored created_at as an
// RFC 3339 string. Still readable so records written by earlier versions
// keep resolving.
type legacyRecord struct {
	ConversationID string `json:"conversation_id"`
	CreatedAt      string `json:"created_at"`
	UserID         string `json:"user_id"`
}

// NewRecord creates a Record stamped with the current time.
func NewRecord(conversationID, userID string) Record {
	return Record{
		ConversationID: conversationID,
		CreatedAt:      float64(time.Now().UnixMilli()) / 1000,
		UserID:         userID,
	}
}

// Encode serializes the record in the primary form.
func (r Record) Encode() ([]byte, error) {
	return json.Marshal(r)
}

// DecodeRecord deserializes a stored record, trying the primary form first
// and falling back to the legacy form. Returns an error when neither form
// yields a conversation id.
func DecodeRecord(data []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err == nil && rec.ConversationID != "" {
		return rec, nil
	}

	var legacy legacyRecord
	if err := json.Unmarshal(data, &legacy); err == nil && legacy.ConversationID != "" {
		rec := Record{
			ConversationID: legacy.ConversationID,
			UserID:         legacy.UserID,
		}
		if t, err := time.Parse(time.RFC3339, legacy.CreatedAt); err == nil {
			rec.CreatedAt = float64(t.UnixMilli()) / 1000
		}
		return rec, nil
	}

	return Record{}, errUnknownEncoding
}
