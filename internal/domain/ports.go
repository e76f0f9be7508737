package domain

import "context"

// ============================================================================
// Secondary Ports (Infrastructure Interfaces)
// ============================================================================

// IdentityService is the remote identity/subscription API consumed by the
// session subsystem.
type IdentityService interface {
	Me(ctx context.Context, credential string) (*Identity, error)
	Login(ctx context.Context, email, password string) (string, error)
	Register(ctx context.Context, name, email, password string) error
	Subscribe(ctx context.Context, credential string) error
}

// CheckoutService creates hosted checkout sessions on the remote service.
type CheckoutService interface {
	CreateCheckoutSession(ctx context.Context, credential string) (*CheckoutSession, error)
}

// KeyValueStore is durable, scope-partitioned key-value storage. A scope is
// the server-side stand-in for one browser origin's local storage.
type KeyValueStore interface {
	GetItem(ctx context.Context, scope, key string) (string, bool, error)
	SetItem(ctx context.Context, scope, key, value string) error
	RemoveItem(ctx context.Context, scope, key string) error
	Close() error
}

// CheckoutSession is the hosted checkout session issued by the payment
// provider through the remote service.
type CheckoutSession struct {
	ID  string `json:"id" validate:"required"`
	URL string `json:"url,omitempty"`
}
