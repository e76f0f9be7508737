package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/storrsec/internal/apiclient"
	"github.com/storrsec/internal/config"
	"github.com/storrsec/internal/credstore"
	"github.com/storrsec/internal/domain"
	"github.com/storrsec/internal/logger"
	"github.com/storrsec/internal/oauth"
	"github.com/storrsec/internal/payment"
	"github.com/storrsec/internal/session"
	"github.com/storrsec/internal/system"
	"github.com/storrsec/internal/visitor"
)

// fakeRemote is an in-memory identity/subscription service
type fakeRemote struct {
	mu sync.Mutex

	passwords  map[string]string
	names      map[string]string
	tokens     map[string]string
	subscribed map[string]bool

	registerStatus int
	checkoutStatus int
	checkoutURL    string

	calls   map[string]int
	bearers map[string]string
}

func newFakeRemote() *fakeRemote {
	f := &fakeRemote{
		passwords:  map[string]string{"alice@storrsec.test": "s3cret-Passw0rd!"},
		names:      map[string]string{"alice@storrsec.test": "Alice"},
		tokens:     make(map[string]string),
		subscribed: make(map[string]bool),
		calls:      make(map[string]int),
		bearers:    make(map[string]string),
	}
	return f
}

func (f *fakeRemote) record(r *http.Request) {
	f.calls[r.URL.Path]++
	f.bearers[r.URL.Path] = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

func (f *fakeRemote) caller(r *http.Request) (string, bool) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	email, ok := f.tokens[token]
	return email, ok
}

func (f *fakeRemote) callCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func (f *fakeRemote) bearer(path string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bearers[path]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeRemote) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.record(r)

		var body struct{ Email, Password string }
		_ = json.NewDecoder(r.Body).Decode(&body)
		if pw, ok := f.passwords[body.Email]; !ok || pw != body.Password {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid credentials"})
			return
		}
		token := "tok-" + body.Email
		f.tokens[token] = body.Email
		writeJSON(w, http.StatusOK, map[string]string{"token": token})
	})

	mux.HandleFunc("POST /api/auth/register", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.record(r)

		if f.registerStatus != 0 {
			writeJSON(w, f.registerStatus, map[string]string{"message": "Email already registered"})
			return
		}
		var body struct{ Name, Email, Password string }
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.passwords[body.Email] = body.Password
		f.names[body.Email] = body.Name
		writeJSON(w, http.StatusCreated, map[string]string{"message": "registered"})
	})

	mux.HandleFunc("GET /api/user/me", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.record(r)

		email, ok := f.caller(r)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
			return
		}
		writeJSON(w, http.StatusOK, domain.Identity{
			ID:           "u-" + email,
			Email:        email,
			Name:         f.names[email],
			IsSubscribed: f.subscribed[email],
		})
	})

	mux.HandleFunc("POST /api/user/subscribe", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.record(r)

		email, ok := f.caller(r)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
			return
		}
		f.subscribed[email] = true
		writeJSON(w, http.StatusOK, map[string]string{})
	})

	mux.HandleFunc("POST /api/payments/create-checkout-session", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.record(r)

		if f.checkoutStatus != 0 {
			writeJSON(w, f.checkoutStatus, map[string]string{"message": "stripe is down"})
			return
		}
		writeJSON(w, http.StatusOK, domain.CheckoutSession{ID: "cs_test_1", URL: f.checkoutURL})
	})

	mux.HandleFunc("/api/echo", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"authorization": r.Header.Get("Authorization"),
			"cookie":        r.Header.Get("Cookie"),
			"method":        r.Method,
		})
	})

	return mux
}

type testEnv struct {
	cfg     *config.Config
	remote  *fakeRemote
	api     *httptest.Server
	store   *credstore.MemoryStore
	manager *session.Manager
	sink    *session.ChannelSink
	issuer  *visitor.Issuer
	server  *Server
}

func newTestEnv(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()

	remote := newFakeRemote()
	api := httptest.NewServer(remote.handler())
	t.Cleanup(api.Close)

	cfg := &config.Config{
		Environment:   "test",
		ServerAddress: "127.0.0.1:0",
		CORS:          config.CORSConfig{AllowedOrigins: []string{"https://storrsec.test"}},
		API:           config.APIConfig{BaseURL: api.URL, Timeout: 5 * time.Second},
		Storage:       config.StorageConfig{Backend: config.StoreMemory},
		Visitor: config.VisitorConfig{
			Secret:     "test-visitor-secret",
			CookieName: "storrsec_visitor",
			CookieTTL:  time.Hour,
		},
		Session: config.SessionConfig{IdleTTL: time.Minute, SweepSchedule: "@every 1m"},
		Payment: config.PaymentConfig{StripePublishableKey: "pk_test_123"},
		Auth:    config.AuthConfig{RateLimitRPS: 100, RateLimitBurst: 100},
	}
	for _, m := range mutate {
		m(cfg)
	}

	client := apiclient.New(cfg.API.BaseURL, apiclient.Options{Timeout: cfg.API.Timeout, Breaker: cfg.API.Breaker})
	catalog, err := oauth.LoadCatalog(cfg.API.BaseURL, "")
	if err != nil {
		t.Fatalf("LoadCatalog failed: %v", err)
	}

	store := credstore.NewMemory()
	sink := session.NewChannelSink(64)
	manager := session.NewManager(session.ManagerOptions{
		Deps:    session.Deps{API: client, Providers: catalog, Sink: sink, ResolveTimeout: cfg.API.Timeout},
		Store:   store,
		IdleTTL: cfg.Session.IdleTTL,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = manager.Wait(ctx)
	})

	issuer := visitor.NewIssuer(cfg.Visitor)
	server, err := NewServer(Deps{
		Config:    cfg,
		Sessions:  manager,
		Visitors:  issuer,
		Providers: catalog,
		Callback:  oauth.NewCallbackHandler(sink),
		Payments:  payment.NewService(client, cfg.Payment.StripePublishableKey),
		Health:    system.NewCollector(manager, client),
		Logger:    logger.Discard(),
	})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}

	return &testEnv{
		cfg:     cfg,
		remote:  remote,
		api:     api,
		store:   store,
		manager: manager,
		sink:    sink,
		issuer:  issuer,
		server:  server,
	}
}

// browser keeps cookies between requests like a real user agent
type browser struct {
	env     *testEnv
	cookies map[string]*http.Cookie
}

func (e *testEnv) browser() *browser {
	return &browser{env: e, cookies: make(map[string]*http.Cookie)}
}

func (b *browser) do(req *http.Request) *httptest.ResponseRecorder {
	for _, c := range b.cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	b.env.server.Handler().ServeHTTP(w, req)
	for _, c := range w.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(b.cookies, c.Name)
			continue
		}
		b.cookies[c.Name] = c
	}
	return w
}

func (b *browser) get(target string) *httptest.ResponseRecorder {
	return b.do(httptest.NewRequest(http.MethodGet, target, nil))
}

func (b *browser) postForm(target string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

func (b *browser) postJSON(target string, body any) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return b.do(req)
}

// scope returns the visitor id carried by the browser's cookie
func (b *browser) scope(t *testing.T) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range b.cookies {
		req.AddCookie(c)
	}
	scope, err := b.env.issuer.Scope(httptest.NewRecorder(), req)
	if err != nil {
		t.Fatalf("Scope failed: %v", err)
	}
	return scope
}

func (b *browser) credential(t *testing.T) (string, bool) {
	t.Helper()
	value, ok, err := b.env.store.GetItem(context.Background(), b.scope(t), domain.CredentialKey)
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	return value, ok
}

func (b *browser) login(t *testing.T) {
	t.Helper()
	w := b.postForm("/login", url.Values{"email": {"alice@storrsec.test"}, "password": {"s3cret-Passw0rd!"}})
	if w.Code != http.StatusSeeOther {
		t.Fatalf("login: expected 303, got %d: %s", w.Code, w.Body.String())
	}
}

func assertStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, w.Code, w.Body.String())
	}
}

func assertLocation(t *testing.T, w *httptest.ResponseRecorder, want string) {
	t.Helper()
	if got := w.Header().Get("Location"); got != want {
		t.Errorf("expected Location %q, got %q", want, got)
	}
}

func assertContains(t *testing.T, w *httptest.ResponseRecorder, want ...string) {
	t.Helper()
	body := w.Body.String()
	for _, s := range want {
		if !strings.Contains(body, s) {
			t.Errorf("expected body to contain %q, got:\n%s", s, body)
		}
	}
}

func assertNotContains(t *testing.T, w *httptest.ResponseRecorder, unwanted ...string) {
	t.Helper()
	body := w.Body.String()
	for _, s := range unwanted {
		if strings.Contains(body, s) {
			t.Errorf("expected body not to contain %q", s)
		}
	}
}

func TestServer_HomeIssuesVisitorCookie(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser()

	w := b.get("/")
	assertStatus(t, w, http.StatusOK)
	if _, ok := b.cookies["storrsec_visitor"]; !ok {
		t.Fatal("expected a visitor cookie to be issued")
	}
	assertContains(t, w, "Home", "Solutions", "Company", "Services", `href="/login"`)
	assertNotContains(t, w, "My Page")

	if got := w.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("expected X-Frame-Options DENY, got %q", got)
	}

	first := b.scope(t)
	b.get("/solutions")
	if second := b.scope(t); second != first {
		t.Errorf("expected visitor scope to be stable, got %q then %q", first, second)
	}
	if env.manager.Len() != 1 {
		t.Errorf("expected one mounted session, got %d", env.manager.Len())
	}
}

func TestServer_StaticPagesRender(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser()

	for _, path := range []string{"/", "/solutions", "/company", "/services", "/subscribe"} {
		t.Run(path, func(t *testing.T) {
			assertStatus(t, b.get(path), http.StatusOK)
		})
	}
	if n := env.remote.callCount("/api/user/me"); n != 0 {
		t.Errorf("expected no profile lookups without a credential, got %d", n)
	}
}

func TestServer_HealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser()
	b.get("/")

	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assertStatus(t, w, http.StatusOK)
	if len(w.Result().Cookies()) != 0 {
		t.Error("expected health endpoint not to issue cookies")
	}

	var report system.HealthReport
	if err := json.Unmarshal(w.Body.Bytes(), &report); err != nil {
		t.Fatalf("failed to decode health report: %v", err)
	}
	if report.Status != system.StatusOK {
		t.Errorf("expected status ok, got %s", report.Status)
	}
	if report.Sessions != 1 {
		t.Errorf("expected 1 mounted session, got %d", report.Sessions)
	}
	if report.Breaker != "disabled" {
		t.Errorf("expected breaker disabled, got %s", report.Breaker)
	}

	w = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assertStatus(t, w, http.StatusOK)
	assertContains(t, w, "storrsec_http_requests_total")
}

func TestServer_CORS(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name       string
		origin     string
		wantOrigin string
	}{
		{"allowed origin", "https://storrsec.test", "https://storrsec.test"},
		{"other origin", "https://evil.test", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, "/login", nil)
			req.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()
			env.server.Handler().ServeHTTP(w, req)

			assertStatus(t, w, http.StatusNoContent)
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("expected Allow-Origin %q, got %q", tt.wantOrigin, got)
			}
		})
	}
}

func TestServer_CacheControl(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser()

	tests := []struct {
		path string
		want string
	}{
		{"/dashboard", "no-cache, no-store, must-revalidate"},
		{"/login", "no-cache, no-store, must-revalidate"},
		{"/", "private, no-cache"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := b.get(tt.path)
			if got := w.Header().Get("Cache-Control"); got != tt.want {
				t.Errorf("expected Cache-Control %q, got %q", tt.want, got)
			}
		})
	}
}

func TestServer_JSONBodyLimit(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/bff/password-strength", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	req.ContentLength = maxBodySize + 1
	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)

	assertStatus(t, w, http.StatusRequestEntityTooLarge)
}

func TestServer_UnknownRoute(t *testing.T) {
	env := newTestEnv(t)
	assertStatus(t, env.browser().get("/nope"), http.StatusNotFound)
}
