package session

import (
	"context"
	"sync"

	"github.com/storrsec/internal/domain"
)

// fakeAPI is an in-memory IdentityService. Me blocks on gates[credential]
// when one is set.
type fakeAPI struct {
	mu sync.Mutex

	profiles map[string]*domain.Identity
	meErr    error
	gates    map[string]chan struct{}

	loginToken  string
	loginErr    error
	registerErr error
	subErr      error

	meCalls       int
	loginCalls    int
	registerCalls int
	subCalls      int
	lastBearer    string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		profiles: make(map[string]*domain.Identity),
		gates:    make(map[string]chan struct{}),
	}
}

func (f *fakeAPI) Me(ctx context.Context, credential string) (*domain.Identity, error) {
	f.mu.Lock()
	f.meCalls++
	f.lastBearer = credential
	gate := f.gates[credential]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, domain.WrapResolutionFailed(ctx.Err())
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.meErr != nil {
		return nil, f.meErr
	}
	profile, ok := f.profiles[credential]
	if !ok {
		return nil, domain.WrapResolutionRejected(nil)
	}
	copied := *profile
	return &copied, nil
}

func (f *fakeAPI) Login(_ context.Context, email, password string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loginCalls++
	if f.loginErr != nil {
		return "", f.loginErr
	}
	return f.loginToken, nil
}

func (f *fakeAPI) Register(_ context.Context, name, email, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registerCalls++
	return f.registerErr
}

func (f *fakeAPI) Subscribe(_ context.Context, credential string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subCalls++
	f.lastBearer = credential
	return f.subErr
}

func (f *fakeAPI) calls() (me, login, register, sub int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.meCalls, f.loginCalls, f.registerCalls, f.subCalls
}

type fakeCatalog map[string]string

func (c fakeCatalog) InitiationURL(provider string) (string, error) {
	target, ok := c[provider]
	if !ok {
		return "", domain.WrapProviderUnknown(provider)
	}
	if target == "" {
		return "", domain.WrapProviderNotImplemented(provider)
	}
	return target, nil
}

// failingStore fails every operation
type failingStore struct{ err error }

func (s failingStore) GetItem(context.Context, string, string) (string, bool, error) {
	return "", false, domain.WrapCredentialStore("get", s.err)
}
func (s failingStore) SetItem(context.Context, string, string, string) error {
	return domain.WrapCredentialStore("set", s.err)
}
func (s failingStore) RemoveItem(context.Context, string, string) error {
	return domain.WrapCredentialStore("remove", s.err)
}
func (s failingStore) Close() error { return nil }
