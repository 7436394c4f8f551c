package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go-tour-auth/internal/event"
	"go-tour-auth/internal/model"
	"go-tour-auth/pkg/apierror"
)

const auditWriteTimeout = 5 * time.Second

type AuditStore interface {
	Log(ctx context.Context, entry model.AuditEntry) error
	Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error)
}

// AuditService persists auth lifecycle events published on the bus.
type AuditService struct {
	store AuditStore
}

func NewAuditService(store AuditStore) *AuditService {
	return &AuditService{store: store}
}

// Run consumes events until ctx is cancelled or the subscription closes. Write failures are
// logged and skipped; auditing never blocks authentication.
func (s *AuditService) Run(ctx context.Context, bus event.Bus) {
	events, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			s.record(ctx, e)
		}
	}
}

func (s *AuditService) record(ctx context.Context, e event.Event) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
	defer cancel()

	if err := s.store.Log(writeCtx, entryFromEvent(e)); err != nil {
		slog.Warn("audit entry not persisted", "type", string(e.Type), "event_id", e.ID, "error", err)
	}
}

func entryFromEvent(e event.Event) model.AuditEntry {
	return model.AuditEntry{
		Action:     string(e.Type),
		OccurredAt: e.Timestamp.UTC().Format(time.RFC3339Nano),
		Actor: model.AuditActor{
			UserID: e.ActorID,
			Role:   e.ActorRole,
			IP:     e.IP,
		},
		Status:   string(e.Status),
		Resource: e.ActorID,
		Error:    e.Reason,
	}
}

func (s *AuditService) Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	for name, raw := range map[string]string{"from": query.From, "to": query.To} {
		if raw == "" {
			continue
		}
		if _, err := time.Parse(time.RFC3339, raw); err != nil {
			return nil, model.Meta{}, apierror.New("BAD_REQUEST", fmt.Sprintf("invalid '%s' datetime format", name), raw, http.StatusBadRequest)
		}
	}

	return s.store.Query(ctx, query)
}
