package payment

import (
	"context"
	"errors"
	"log/slog"

	"github.com/storrsec/internal/domain"
	"github.com/storrsec/internal/metrics"
	"github.com/storrsec/internal/session"
)

// Redirect tells the page how to reach the hosted checkout. When URL is
// set the browser is redirected to it; otherwise the page hands SessionID
// to Stripe.js with PublishableKey.
type Redirect struct {
	URL            string
	SessionID      string
	PublishableKey string
}

// Direct reports whether the browser can be redirected without Stripe.js
func (r Redirect) Direct() bool {
	return r.URL != ""
}

// Service starts hosted checkouts
type Service struct {
	checkout       domain.CheckoutService
	publishableKey string
}

func NewService(checkout domain.CheckoutService, publishableKey string) *Service {
	return &Service{checkout: checkout, publishableKey: publishableKey}
}

// StartCheckout creates a checkout session. The visitor's credential is
// attached when there is one; an unreadable slot is treated as empty.
func (s *Service) StartCheckout(ctx context.Context, slot session.CredentialSlot) (*Redirect, error) {
	credential, _, err := slot.Load(ctx)
	if err != nil {
		slog.WarnContext(ctx, "checkout without credential, storage unavailable", "visitor", slot.Scope(), "error", err)
		credential = ""
	}

	checkout, err := s.checkout.CreateCheckoutSession(ctx, credential)
	if err == nil && checkout.URL == "" && s.publishableKey == "" {
		err = domain.NewDomainError(domain.ErrCheckoutFailed.Code, domain.ErrCheckoutFailed.Message,
			errors.New("session has no url and no publishable key is configured"))
	}
	metrics.RecordAuthOperation("checkout", err)
	if err != nil {
		return nil, err
	}

	return &Redirect{
		URL:            checkout.URL,
		SessionID:      checkout.ID,
		PublishableKey: s.publishableKey,
	}, nil
}
