package session

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/storrsec/internal/domain"
	"github.com/storrsec/internal/metrics"
)

// Diagnostic describes a failure that was recovered locally instead of
// being returned to a caller
type Diagnostic struct {
	Kind  string
	Scope string
	Op    string
	Err   error
	At    time.Time
}

// Rejected reports whether the remote definitively refused the credential
func (d Diagnostic) Rejected() bool {
	return d.Kind == domain.ErrResolutionRejected.Code
}

// DiagnosticSink receives recovered failures. Report must not block.
type DiagnosticSink interface {
	Report(ctx context.Context, d Diagnostic)
}

// NewDiagnostic builds a diagnostic whose kind is the error's domain code
func NewDiagnostic(scope, op string, err error) Diagnostic {
	kind := "UNKNOWN"
	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		kind = domainErr.Code
	}
	return Diagnostic{Kind: kind, Scope: scope, Op: op, Err: err, At: time.Now()}
}

// LogSink writes diagnostics to a logger
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Report(ctx context.Context, d Diagnostic) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelWarn
	if d.Rejected() {
		// expired or revoked credentials are routine
		level = slog.LevelInfo
	}
	logger.Log(ctx, level, "session diagnostic",
		"kind", d.Kind,
		"op", d.Op,
		"visitor", d.Scope,
		"error", d.Err,
	)
}

// MetricsSink counts diagnostics by kind
type MetricsSink struct{}

func (MetricsSink) Report(_ context.Context, d Diagnostic) {
	metrics.RecordDiagnostic(d.Kind)
}

// ChannelSink forwards diagnostics to a buffered channel, dropping them
// when the reader falls behind
type ChannelSink struct {
	ch      chan Diagnostic
	dropped atomic.Int64
}

func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{ch: make(chan Diagnostic, buffer)}
}

func (s *ChannelSink) Report(_ context.Context, d Diagnostic) {
	select {
	case s.ch <- d:
	default:
		s.dropped.Add(1)
	}
}

// C returns the receive side of the channel
func (s *ChannelSink) C() <-chan Diagnostic {
	return s.ch
}

// Dropped returns how many diagnostics did not fit in the buffer
func (s *ChannelSink) Dropped() int64 {
	return s.dropped.Load()
}

// MultiSink fans a diagnostic out to every sink
type MultiSink []DiagnosticSink

func (m MultiSink) Report(ctx context.Context, d Diagnostic) {
	for _, sink := range m {
		if sink != nil {
			sink.Report(ctx, d)
		}
	}
}
