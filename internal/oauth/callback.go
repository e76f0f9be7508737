package oauth

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/storrsec/internal/apipaths"
	"github.com/storrsec/internal/domain"
	"github.com/storrsec/internal/metrics"
	"github.com/storrsec/internal/session"
)

// CallbackState is where a callback visit leaves the visitor
type CallbackState int

const (
	// Unauthenticated means no credential was received
	Unauthenticated CallbackState = iota
	// AuthenticatedPending means a credential was stored but the Identity
	// is resolved later, by the destination page
	AuthenticatedPending
)

func (s CallbackState) String() string {
	switch s {
	case AuthenticatedPending:
		return "authenticated-pending"
	default:
		return "unauthenticated"
	}
}

// Outcome is the terminal state of a callback visit and the route to navigate to
type Outcome struct {
	State  CallbackState
	Target string
}

// CallbackHandler handles the browser returning from a provider
type CallbackHandler struct {
	sink session.DiagnosticSink
}

func NewCallbackHandler(sink session.DiagnosticSink) *CallbackHandler {
	return &CallbackHandler{sink: sink}
}

// Handle reads the token query parameter. A non-empty token is stored as
// the credential and routes to the dashboard; otherwise storage is left
// alone and the visitor goes to login. The token is not inspected.
func (h *CallbackHandler) Handle(ctx context.Context, slot session.CredentialSlot, query url.Values) Outcome {
	token := query.Get("token")
	if token == "" {
		h.report(ctx, slot, domain.ErrCallbackTokenMissing)
		metrics.RecordAuthOperation("oauth_callback", domain.ErrCallbackTokenMissing)
		return Outcome{State: Unauthenticated, Target: apipaths.Login}
	}

	if err := slot.Save(ctx, token); err != nil {
		h.report(ctx, slot, err)
		metrics.RecordAuthOperation("oauth_callback", err)
		return Outcome{State: Unauthenticated, Target: apipaths.Login}
	}

	slog.InfoContext(ctx, "stored credential from provider callback", "visitor", slot.Scope(), "token_length", len(token))
	metrics.RecordAuthOperation("oauth_callback", nil)
	return Outcome{State: AuthenticatedPending, Target: apipaths.Dashboard}
}

func (h *CallbackHandler) report(ctx context.Context, slot session.CredentialSlot, err error) {
	if h.sink == nil {
		slog.WarnContext(ctx, "oauth callback failed", "visitor", slot.Scope(), "error", err)
		return
	}
	h.sink.Report(ctx, session.NewDiagnostic(slot.Scope(), "oauth_callback", err))
}
