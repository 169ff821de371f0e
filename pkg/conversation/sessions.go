package conversation

import (
	"context"
	"errors"
	"log/slog"

	"github.com/difygate/difygate/pkg/kv"
	"github.com/difygate/difygate/pkg/observability"
)

// Sessions is a best-effort wrapper around the key-value capability.
// Every underlying failure mode is normalized to an optional result:
// lookups report absent, writes report unsuccessful, and nothing ever
// reaches the caller as an error. Conversation correlation is a
// convenience, not a correctness-critical store, so a persistence fault
// must never abort a user-facing request. Misses and faults are logged
// at different levels and counted separately so operators can tell them
// apart.
type Sessions struct {
	store  kv.Store
	logger *slog.Logger
}

// NewSessions creates a session store adapter over the given kv.Store.
func NewSessions(store kv.Store, logger *slog.Logger) *Sessions {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sessions{store: store, logger: logger}
}

// TryGet retrieves the raw bytes stored under key. A missing key and an
// underlying fault are both reported as absent.
func (s *Sessions) TryGet(ctx context.Context, key string) ([]byte, bool) {
	value, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			s.logger.Debug("no conversation record", "key", key)
			observability.SessionLookupsTotal.WithLabelValues("miss").Inc()
		} else {
			s.logger.Warn("conversation store get failed", "key", key, "error", err.Error())
			observability.SessionLookupsTotal.WithLabelValues("fault").Inc()
		}
		return nil, false
	}
	return value, true
}

// TrySet stores value under key, reporting success. Underlying faults are
// logged and swallowed.
func (s *Sessions) TrySet(ctx context.Context, key string, value []byte) bool {
	if err := s.store.Set(ctx, key, value); err != nil {
		s.logger.Warn("conversation store set failed", "key", key, "error", err.Error())
		observability.SessionSavesTotal.WithLabelValues("fault").Inc()
		return false
	}
	observability.SessionSavesTotal.WithLabelValues("ok").Inc()
	return true
}

// Lookup retrieves and decodes the record stored under the fingerprint.
// A corrupt record is treated the same as an absent one.
func (s *Sessions) Lookup(ctx context.Context, fingerprint string) (Record, bool) {
	data, ok := s.TryGet(ctx, fingerprint)
	if !ok {
		return Record{}, false
	}

	rec, err := DecodeRecord(data)
	if err != nil {
		s.logger.Warn("corrupt conversation record, treating as absent",
			"key", fingerprint, "error", err.Error())
		observability.SessionLookupsTotal.WithLabelValues("decode_error").Inc()
		return Record{}, false
	}

	observability.SessionLookupsTotal.WithLabelValues("hit").Inc()
	return rec, true
}

// Save encodes and stores the record under the fingerprint, reporting
// success. An empty conversation id is refused; persisting it would pin
// the fingerprint to a handle the engine never issued.
func (s *Sessions) Save(ctx context.Context, fingerprint string, rec Record) bool {
	if rec.ConversationID == "" {
		s.logger.Warn("refusing to save record without conversation id", "key", fingerprint)
		return false
	}

	data, err := rec.Encode()
	if err != nil {
		s.logger.Error("encoding conversation record failed", "key", fingerprint, "error", err.Error())
		return false
	}

	if !s.TrySet(ctx, fingerprint, data) {
		return false
	}

	s.logger.Info("conversation record saved",
		"key", fingerprint, "conversation_id", rec.ConversationID)
	return true
}
