package session

import (
	"context"

	"github.com/storrsec/internal/domain"
)

// CredentialSlot is the single persisted credential of one visitor scope
type CredentialSlot struct {
	store domain.KeyValueStore
	scope string
}

// NewCredentialSlot binds store to a visitor scope
func NewCredentialSlot(store domain.KeyValueStore, scope string) CredentialSlot {
	return CredentialSlot{store: store, scope: scope}
}

func (s CredentialSlot) Scope() string {
	return s.scope
}

// Load returns the stored credential and whether one exists
func (s CredentialSlot) Load(ctx context.Context) (string, bool, error) {
	return s.store.GetItem(ctx, s.scope, domain.CredentialKey)
}

// Save replaces the stored credential
func (s CredentialSlot) Save(ctx context.Context, credential string) error {
	return s.store.SetItem(ctx, s.scope, domain.CredentialKey, credential)
}

// Clear deletes the stored credential. Clearing an empty slot is not an error.
func (s CredentialSlot) Clear(ctx context.Context) error {
	return s.store.RemoveItem(ctx, s.scope, domain.CredentialKey)
}
