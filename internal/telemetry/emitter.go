// Package telemetry emits best-effort operational events (connects, auth
// outcomes) for export to a collector. Callers log and ignore errors.
package telemetry

import (
	"context"
	"time"
)

// EventType names a telemetry event.
type EventType string

const (
	EventConnect        EventType = "connect"
	EventDisconnect     EventType = "disconnect"
	EventLoginSuccess   EventType = "login_success"
	EventLoginFailure   EventType = "login_failure"
	EventRefreshSuccess EventType = "refresh_success"
	EventRefreshFailure EventType = "refresh_failure"
)

// Event is one operational event. UserID/Username are set only when the
// event is tied to a verified identity.
type Event struct {
	Type      EventType
	SessionID string
	UserID    string
	Username  string
	Detail    string
	CreatedAt time.Time
}

// EventEmitter emits telemetry events (e.g. to OTel Logs). Best-effort;
// callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *Event) error
}
