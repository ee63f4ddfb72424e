package audit

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Event types emitted by the engine and the HTTP layer.
const (
	EventLoginSuccess     = "login_success"
	EventLoginFailure     = "login_failure"
	EventRegister         = "register"
	EventRefreshRotated   = "refresh_rotated"
	EventRefreshRejected  = "refresh_rejected"
	EventSessionEvicted   = "session_evicted"
	EventLogout           = "logout"
	EventRateLimited      = "rate_limited"
	EventAccessDenied     = "access_denied"
	EventSessionsPurged   = "sessions_purged"
	EventSupervisorSeeded = "supervisor_seeded"
)

// Event is one security-relevant occurrence.
type Event struct {
	Timestamp     time.Time
	Type          string
	PrincipalKind string
	PrincipalID   string
	Role          string
	ClientAddress string
	Success       bool
	Reason        string
	Metadata      map[string]string
}

// Sink receives emitted audit events.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink drops audit events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink writes audit events into a buffered channel.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{events: make(chan Event, buffer)}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// ZapSink writes each event as one structured log entry.
type ZapSink struct {
	logger *zap.Logger
}

func NewZapSink(logger *zap.Logger) *ZapSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapSink{logger: logger.Named("audit")}
}

func (s *ZapSink) Emit(_ context.Context, event Event) {
	fields := []zap.Field{
		zap.String("event", event.Type),
		zap.Time("at", event.Timestamp),
		zap.Bool("success", event.Success),
	}
	if event.PrincipalID != "" {
		fields = append(fields,
			zap.String("principal_kind", event.PrincipalKind),
			zap.String("principal_id", event.PrincipalID))
	}
	if event.Role != "" {
		fields = append(fields, zap.String("role", event.Role))
	}
	if event.ClientAddress != "" {
		fields = append(fields, zap.String("client", event.ClientAddress))
	}
	if event.Reason != "" {
		fields = append(fields, zap.String("reason", event.Reason))
	}
	for k, v := range event.Metadata {
		fields = append(fields, zap.String("meta."+k, v))
	}
	if event.Success {
		s.logger.Info("audit", fields...)
		return
	}
	s.logger.Warn("audit", fields...)
}
