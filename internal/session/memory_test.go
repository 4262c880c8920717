package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"campus-assistant/internal/domain"
)

type fakeStore struct {
	attrs      domain.SessionAttributes
	turns      []domain.TurnRecord
	getErr     error
	putErr     error
	appendErr  error
	queryErr   error
	puts       []domain.SessionAttributes
	appended   []domain.TurnRecord
	queryLimit int
}

func (f *fakeStore) Get(_ context.Context, _ string) (domain.SessionAttributes, error) {
	return f.attrs, f.getErr
}

func (f *fakeStore) Put(_ context.Context, _ string, attrs domain.SessionAttributes) error {
	f.puts = append(f.puts, attrs)
	return f.putErr
}

func (f *fakeStore) AppendTurn(_ context.Context, _, _ string, rec domain.TurnRecord) error {
	f.appended = append(f.appended, rec)
	return f.appendErr
}

func (f *fakeStore) QueryRecentTurns(_ context.Context, _, _ string, limit int) ([]domain.TurnRecord, error) {
	f.queryLimit = limit
	return f.turns, f.queryErr
}

func TestMemory_LoadSwallowsErrors(t *testing.T) {
	m := NewMemory(&fakeStore{getErr: errors.New("corrupt record")}, true, nil)
	got := m.Load(context.Background(), "u1")
	require.NotNil(t, got)
	require.Empty(t, got)
}

func TestMemory_LoadMissingRecord(t *testing.T) {
	m := NewMemory(&fakeStore{}, true, nil)
	require.Empty(t, m.Load(context.Background(), "u1"))
}

func TestMemory_NilStoreIsNoop(t *testing.T) {
	m := NewMemory(nil, true, nil)
	require.False(t, m.HistoryEnabled())
	require.Empty(t, m.Load(context.Background(), "u1"))
	m.Save(context.Background(), "u1", domain.SessionAttributes{"a": "b"})
	m.AppendTurn(context.Background(), "u1", "s1", domain.TurnRecord{})
	require.Nil(t, m.RecentTurns(context.Background(), "u1", "s1", 5))
}

func TestMemory_SaveFiltersEphemeralKeys(t *testing.T) {
	store := &fakeStore{putErr: errors.New("throttled")}
	m := NewMemory(store, true, nil)

	attrs := domain.SessionAttributes{domain.AttrRecentContext: "ctx", domain.AttrLastIntent: domain.IntentFAQ}
	m.Save(context.Background(), "u1", attrs)
	m.Save(context.Background(), "u1", attrs)

	require.Len(t, store.puts, 2)
	require.Equal(t, store.puts[0], store.puts[1])
	require.NotContains(t, store.puts[0], domain.AttrRecentContext)
}

func TestMemory_HistoryDisabled(t *testing.T) {
	store := &fakeStore{turns: []domain.TurnRecord{{UserInput: "hi"}}}
	m := NewMemory(store, false, nil)
	m.AppendTurn(context.Background(), "u1", "s1", domain.TurnRecord{UserInput: "hi"})
	require.Empty(t, store.appended)
	require.Nil(t, m.RecentTurns(context.Background(), "u1", "s1", 5))
}

func TestMemory_AppendTurnFiltersAttributes(t *testing.T) {
	store := &fakeStore{appendErr: errors.New("boom")}
	m := NewMemory(store, true, nil)
	m.AppendTurn(context.Background(), "u1", "s1", domain.TurnRecord{
		UserInput:         "where is it",
		SessionAttributes: domain.SessionAttributes{domain.AttrRecentContext: "x", "k": "v"},
	})
	require.Len(t, store.appended, 1)
	require.Equal(t, domain.SessionAttributes{"k": "v"}, store.appended[0].SessionAttributes)
}

func TestMemory_RecentTurnsClampsLimit(t *testing.T) {
	store := &fakeStore{}
	m := NewMemory(store, true, nil)

	m.RecentTurns(context.Background(), "u1", "s1", 0)
	require.Equal(t, 1, store.queryLimit)
	m.RecentTurns(context.Background(), "u1", "s1", 500)
	require.Equal(t, 100, store.queryLimit)

	store.queryErr = errors.New("boom")
	require.Nil(t, m.RecentTurns(context.Background(), "u1", "s1", 5))
}
