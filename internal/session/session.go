// Package session owns each visitor's authenticated identity: resolving a
// persisted credential into an Identity and the operations that change it.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/storrsec/internal/apipaths"
	"github.com/storrsec/internal/domain"
	"github.com/storrsec/internal/metrics"
)

// ProviderCatalog resolves a provider name to its initiation URL
type ProviderCatalog interface {
	InitiationURL(provider string) (string, error)
}

// Deps are the collaborators shared by every session
type Deps struct {
	API       domain.IdentityService
	Providers ProviderCatalog
	Sink      DiagnosticSink
	// ResolveTimeout bounds a resolution that runs detached from its request
	ResolveTimeout time.Duration
}

// State is a snapshot of a session
type State struct {
	Identity *domain.Identity
	Loading  bool
}

// Authenticated is derived from Identity, never stored
func (s State) Authenticated() bool {
	return s.Identity != nil
}

// Session is the explicit session-state container for one visitor. It is
// the only writer of its Identity.
type Session struct {
	slot CredentialSlot
	deps Deps

	mu       sync.Mutex
	identity *domain.Identity
	loading  bool
	seq      uint64
	// idle is closed when loading drops to false
	idle chan struct{}
}

// NewSession creates an unresolved, not loading session over slot
func NewSession(slot CredentialSlot, deps Deps) *Session {
	idle := make(chan struct{})
	close(idle)
	return &Session{slot: slot, deps: deps, idle: idle}
}

// Slot returns the visitor's credential slot
func (s *Session) Slot() CredentialSlot {
	return s.slot
}

// State returns the current snapshot without waiting
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{Identity: s.identity, Loading: s.loading}
}

// Wait blocks until no resolution is in flight, then returns the state.
// This is the loading gate pages render behind.
func (s *Session) Wait(ctx context.Context) (State, error) {
	for {
		s.mu.Lock()
		if !s.loading {
			state := State{Identity: s.identity, Loading: false}
			s.mu.Unlock()
			return state, nil
		}
		idle := s.idle
		s.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return s.State(), ctx.Err()
		}
	}
}

// begin starts a resolution attempt and returns its sequence number
func (s *Session) begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.setLoadingLocked(true)
	return s.seq
}

// finish applies a resolution outcome unless a newer attempt (or a logout)
// has started since seq was issued
func (s *Session) finish(seq uint64, identity *domain.Identity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.seq {
		return false
	}
	s.identity = identity
	s.setLoadingLocked(false)
	return true
}

func (s *Session) setLoadingLocked(loading bool) {
	if loading == s.loading {
		return
	}
	s.loading = loading
	if loading {
		s.idle = make(chan struct{})
	} else {
		close(s.idle)
	}
}

// Resolve turns the persisted credential into an Identity. Failures leave
// the session unauthenticated and go to the diagnostics sink; they are
// never returned. A rejected credential stays in storage.
func (s *Session) Resolve(ctx context.Context) State {
	s.resolve(ctx, s.begin())
	return s.State()
}

// detach keeps values of ctx but drops its cancellation, so a client that
// goes away does not abort a resolution
func (s *Session) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithoutCancel(ctx)
	if s.deps.ResolveTimeout > 0 {
		return context.WithTimeout(ctx, s.deps.ResolveTimeout)
	}
	return ctx, func() {}
}

func (s *Session) resolve(ctx context.Context, seq uint64) {
	credential, ok, err := s.slot.Load(ctx)
	if err != nil {
		s.complete(ctx, seq, nil, domain.WrapResolutionFailed(err))
		return
	}
	if !ok {
		s.complete(ctx, seq, nil, nil)
		return
	}

	identity, err := s.deps.API.Me(ctx, credential)
	if err != nil {
		s.complete(ctx, seq, nil, err)
		return
	}
	s.complete(ctx, seq, identity, nil)
}

func (s *Session) complete(ctx context.Context, seq uint64, identity *domain.Identity, err error) {
	applied := s.finish(seq, identity)
	if !applied {
		slog.DebugContext(ctx, "discarding superseded resolution", "visitor", s.slot.Scope(), "seq", seq)
		return
	}
	metrics.RecordAuthOperation("resolve", err)
	if err != nil {
		s.report(ctx, "resolve", err)
	}
}

// Login exchanges email and password for a credential, persists it and
// resolves the session from scratch. Remote errors are returned as-is and
// leave the session and storage untouched. Once the credential is stored the
// resolution runs to completion even if ctx is cancelled.
func (s *Session) Login(ctx context.Context, email, password string) error {
	credential, err := s.deps.API.Login(ctx, email, password)
	metrics.RecordAuthOperation("login", err)
	if err != nil {
		return err
	}

	if err := s.slot.Save(ctx, credential); err != nil {
		return err
	}

	resolveCtx, cancel := s.detach(ctx)
	defer cancel()
	s.Resolve(resolveCtx)
	return nil
}

// Signup registers an account and then logs in with the same values. A
// registration failure is returned without attempting the login.
func (s *Session) Signup(ctx context.Context, name, email, password string) error {
	err := s.deps.API.Register(ctx, name, email, password)
	metrics.RecordAuthOperation("register", err)
	if err != nil {
		return err
	}
	return s.Login(ctx, email, password)
}

// LoginWithOAuth returns the URL the browser must navigate to. Providers
// without an initiation endpoint return domain.ErrProviderNotImplemented,
// whose message is the notice to show.
func (s *Session) LoginWithOAuth(provider string) (string, error) {
	if s.deps.Providers == nil {
		return "", domain.WrapProviderUnknown(provider)
	}
	target, err := s.deps.Providers.InitiationURL(provider)
	metrics.RecordAuthOperation("oauth", err)
	return target, err
}

// Logout deletes the credential and clears the Identity regardless of the
// remote service. It returns the landing route. Safe to call repeatedly.
func (s *Session) Logout(ctx context.Context) string {
	if err := s.slot.Clear(ctx); err != nil {
		slog.WarnContext(ctx, "failed to delete credential on logout", "visitor", s.slot.Scope(), "error", err)
	}

	s.mu.Lock()
	// any resolution still in flight must not bring the identity back
	s.seq++
	s.identity = nil
	s.setLoadingLocked(false)
	s.mu.Unlock()

	metrics.RecordAuthOperation("logout", nil)
	return apipaths.Subscribe
}

// CompletePayment tells the remote service the subscription is active and
// marks the in-memory Identity as subscribed. Without an Identity or a
// credential it does nothing. Failures are reported, not returned.
func (s *Session) CompletePayment(ctx context.Context) {
	s.mu.Lock()
	current := s.identity
	s.mu.Unlock()
	if current == nil {
		return
	}

	credential, ok, err := s.slot.Load(ctx)
	if err != nil {
		s.report(ctx, "complete_payment", err)
		return
	}
	if !ok {
		return
	}

	err = s.deps.API.Subscribe(ctx, credential)
	metrics.RecordAuthOperation("subscribe", err)
	if err != nil {
		s.report(ctx, "complete_payment", err)
		return
	}

	s.mu.Lock()
	if s.identity == current {
		s.identity = current.WithSubscription(true)
	}
	s.mu.Unlock()
}

func (s *Session) report(ctx context.Context, op string, err error) {
	if s.deps.Sink == nil {
		return
	}
	s.deps.Sink.Report(ctx, NewDiagnostic(s.slot.Scope(), op, err))
}
