package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"go-tour-auth/internal/event"
	"go-tour-auth/internal/model"
)

type mockAuditStore struct {
	mock.Mock
}

func (m *mockAuditStore) Log(ctx context.Context, entry model.AuditEntry) error {
	return m.Called(entry).Error(0)
}

func (m *mockAuditStore) Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	args := m.Called(query)
	return args.Get(0).([]model.AuditEntry), args.Get(1).(model.Meta), args.Error(2)
}

// channelBus hands Run a channel the test controls.
type channelBus struct {
	ch           chan event.Event
	unsubscribed chan struct{}
}

func (b *channelBus) Publish(e event.Event) { b.ch <- e }

func (b *channelBus) Subscribe() (<-chan event.Event, func()) {
	return b.ch, func() { close(b.unsubscribed) }
}

func TestAuditService_RunSurvivesStoreFailures(t *testing.T) {
	store := &mockAuditStore{}
	store.On("Log", mock.MatchedBy(func(e model.AuditEntry) bool { return e.Action == string(event.TypeLoginFailed) })).
		Return(errors.New("disk full")).Once()
	store.On("Log", mock.MatchedBy(func(e model.AuditEntry) bool { return e.Action == string(event.TypeLoggedOut) })).
		Return(nil).Once()

	bus := &channelBus{ch: make(chan event.Event, 2), unsubscribed: make(chan struct{})}
	failed := event.New(event.TypeLoginFailed, event.StatusFailure, "u-1")
	failed.Reason = "invalid_credentials"
	bus.Publish(failed)
	bus.Publish(event.New(event.TypeLoggedOut, event.StatusSuccess, "u-1"))
	close(bus.ch)

	NewAuditService(store).Run(context.Background(), bus)

	select {
	case <-bus.unsubscribed:
	case <-time.After(time.Second):
		t.Fatal("Run did not unsubscribe")
	}
	store.AssertExpectations(t)
}

func TestAuditService_RunStopsOnCancel(t *testing.T) {
	bus := &channelBus{ch: make(chan event.Event), unsubscribed: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		NewAuditService(&mockAuditStore{}).Run(ctx, bus)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run ignored cancellation")
	}
}

func TestEntryFromEvent(t *testing.T) {
	e := event.New(event.TypeRefreshRejected, event.StatusFailure, "u-9")
	e.ActorRole = "customer"
	e.IP = "198.51.100.2"
	e.Reason = "session_revoked"

	entry := entryFromEvent(e)
	assert.Equal(t, "auth.refresh_rejected", entry.Action)
	assert.Equal(t, "failure", entry.Status)
	assert.Equal(t, model.AuditActor{UserID: "u-9", Role: "customer", IP: "198.51.100.2"}, entry.Actor)
	assert.Equal(t, "session_revoked", entry.Error)

	parsed, err := time.Parse(time.RFC3339Nano, entry.OccurredAt)
	require.NoError(t, err)
	assert.WithinDuration(t, e.Timestamp, parsed, time.Millisecond)
}
