package event

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeRegistered      Type = "auth.register"
	TypeLoginSucceeded  Type = "auth.login"
	TypeLoginFailed     Type = "auth.login_failed"
	TypeRefreshed       Type = "auth.refresh"
	TypeRefreshRejected Type = "auth.refresh_rejected"
	TypeLoggedOut       Type = "auth.logout"
	TypeAccountDeleted  Type = "account.delete"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

type Event struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	ActorID   string    `json:"actor_id,omitempty"`
	ActorRole string    `json:"actor_role,omitempty"`
	IP        string    `json:"ip,omitempty"`
	// Reason is a short machine-readable cause on failures; never a credential.
	Reason string `json:"reason,omitempty"`
}

func New(typ Type, status Status, actorID string) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      typ,
		Status:    status,
		Timestamp: time.Now().UTC(),
		ActorID:   actorID,
	}
}

type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func())
}
