package session

import (
	"context"
	"log/slog"

	"campus-assistant/internal/domain"
)

const (
	minRecentTurns = 1
	maxRecentTurns = 100
)

// Store is the persistent memory contract. Implementations may fail; Memory
// turns every failure into "no data".
type Store interface {
	Get(ctx context.Context, userID string) (domain.SessionAttributes, error)
	Put(ctx context.Context, userID string, attrs domain.SessionAttributes) error
	AppendTurn(ctx context.Context, userID, sessionID string, rec domain.TurnRecord) error
	QueryRecentTurns(ctx context.Context, userID, sessionID string, limit int) ([]domain.TurnRecord, error)
}

// Memory is a best-effort facade over a Store. A nil store disables
// persistence entirely.
type Memory struct {
	store   Store
	logger  *slog.Logger
	history bool
}

// NewMemory wraps store. When history is false AppendTurn and
// QueryRecentTurns are no-ops.
func NewMemory(store Store, history bool, logger *slog.Logger) *Memory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Memory{store: store, logger: logger, history: history}
}

// HistoryEnabled reports whether turn history is read and written.
func (m *Memory) HistoryEnabled() bool {
	return m != nil && m.store != nil && m.history
}

// Load returns the persisted snapshot for userID, or an empty map on any
// failure or missing record.
func (m *Memory) Load(ctx context.Context, userID string) domain.SessionAttributes {
	if m == nil || m.store == nil {
		return domain.SessionAttributes{}
	}
	attrs, err := m.store.Get(ctx, userID)
	if err != nil {
		m.logger.WarnContext(ctx, "memory load failed", "user_id", userID, "err", err)
		return domain.SessionAttributes{}
	}
	if attrs == nil {
		return domain.SessionAttributes{}
	}
	return attrs
}

// Save persists attrs with ephemeral keys removed.
func (m *Memory) Save(ctx context.Context, userID string, attrs domain.SessionAttributes) {
	if m == nil || m.store == nil {
		return
	}
	if err := m.store.Put(ctx, userID, PrepareForPersistence(attrs)); err != nil {
		m.logger.WarnContext(ctx, "memory save failed", "user_id", userID, "err", err)
	}
}

// AppendTurn records one turn in the session history.
func (m *Memory) AppendTurn(ctx context.Context, userID, sessionID string, rec domain.TurnRecord) {
	if !m.HistoryEnabled() {
		return
	}
	rec.SessionAttributes = PrepareForPersistence(rec.SessionAttributes)
	if err := m.store.AppendTurn(ctx, userID, sessionID, rec); err != nil {
		m.logger.WarnContext(ctx, "turn history append failed", "user_id", userID, "session_id", sessionID, "err", err)
	}
}

// RecentTurns returns up to limit turns for the session, most recent first.
func (m *Memory) RecentTurns(ctx context.Context, userID, sessionID string, limit int) []domain.TurnRecord {
	if !m.HistoryEnabled() {
		return nil
	}
	limit = max(minRecentTurns, min(maxRecentTurns, limit))
	turns, err := m.store.QueryRecentTurns(ctx, userID, sessionID, limit)
	if err != nil {
		m.logger.WarnContext(ctx, "turn history query failed", "user_id", userID, "session_id", sessionID, "err", err)
		return nil
	}
	return turns
}
