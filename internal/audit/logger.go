package audit

import (
	"context"
	"io"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// Audited actions.
const (
	ActionLogin              = "login"
	ActionLogout             = "logout"
	ActionProviderConnect    = "provider_connect"
	ActionProviderDisconnect = "provider_disconnect"
	ActionUserCreate         = "user_create"
	ActionUserDelete         = "user_delete"
	ActionPasswordChange     = "password_change"
)

// Event is one security relevant action. Secrets never go in here.
type Event struct {
	Action   string
	UserID   string
	Login    string
	Provider string
	// Reason is a short machine readable outcome, e.g. a callback reason code.
	Reason  string
	Success bool
	Err     error
}

// Recorder receives audit events.
type Recorder interface {
	Record(ctx context.Context, e Event)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Record(context.Context, Event) {}

// Logger writes events as JSON lines tagged with log=audit.
type Logger struct {
	logger zerolog.Logger
}

// NewLogger creates a Logger writing to w.
func NewLogger(w io.Writer) *Logger {
	return &Logger{logger: zerolog.New(w).With().Timestamp().Str("log", "audit").Logger()}
}

// Record writes the event to the audit trail.
func (l *Logger) Record(ctx context.Context, e Event) {
	ev := l.logger.Log().
		Str("action", e.Action).
		Bool("success", e.Success)

	if e.UserID != "" {
		ev = ev.Str("user_id", e.UserID)
	}
	if e.Login != "" {
		ev = ev.Str("login", e.Login)
	}
	if e.Provider != "" {
		ev = ev.Str("provider", e.Provider)
	}
	if e.Reason != "" {
		ev = ev.Str("reason", e.Reason)
	}
	if e.Err != nil {
		ev = ev.Str("error", e.Err.Error())
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		ev = ev.Str("trace_id", sc.TraceID().String())
	}

	ev.Msg("")
}
