package domain

// CredentialKey is the single well-known storage key the bearer credential
// lives under inside a visitor's storage scope.
const CredentialKey = "token"

// Identity is the authenticated user record returned by the identity
// service. It is held in process memory only and re-derived from the
// persisted credential.
type Identity struct {
	ID           string `json:"id" validate:"required"`
	Email        string `json:"email" validate:"required"`
	Name         string `json:"name"`
	IsSubscribed bool   `json:"isSubscribed"`
}

// WithSubscription returns a copy of the identity with the subscription flag set.
func (i Identity) WithSubscription(active bool) *Identity {
	i.IsSubscribed = active
	return &i
}

// Initial returns the first rune of the display name, used by the navbar avatar.
func (i Identity) Initial() string {
	for _, r := range i.Name {
		return string(r)
	}
	return ""
}
