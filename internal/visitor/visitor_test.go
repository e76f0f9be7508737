package visitor

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/storrsec/internal/config"
)

func testConfig() config.VisitorConfig {
	return config.VisitorConfig{
		Secret:     "test-secret",
		CookieName: "storrsec_visitor",
		CookieTTL:  24 * time.Hour,
	}
}

func visitorCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == "storrsec_visitor" {
			return c
		}
	}
	return nil
}

func TestScope_IssuesAndReadsBack(t *testing.T) {
	issuer := NewIssuer(testConfig())

	w := httptest.NewRecorder()
	first, err := issuer.Scope(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cookie := visitorCookie(t, w)
	if cookie == nil {
		t.Fatal("expected a visitor cookie to be set")
	}
	if !cookie.HttpOnly {
		t.Error("expected visitor cookie to be HttpOnly")
	}

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(cookie)
	w = httptest.NewRecorder()
	second, err := issuer.Scope(w, r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second != first {
		t.Errorf("expected same scope %s, got %s", first, second)
	}
	if visitorCookie(t, w) != nil {
		t.Error("expected a fresh cookie not to be renewed")
	}
}

func TestScope_IgnoresCallbackTokenQuery(t *testing.T) {
	issuer := NewIssuer(testConfig())

	w := httptest.NewRecorder()
	scope, _ := issuer.Scope(w, httptest.NewRequest(http.MethodGet, "/", nil))
	cookie := visitorCookie(t, w)

	r := httptest.NewRequest(http.MethodGet, "/oauth-callback?token=T2", nil)
	r.AddCookie(cookie)
	got, err := issuer.Scope(httptest.NewRecorder(), r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != scope {
		t.Errorf("expected callback visit to keep scope %s, got %s", scope, got)
	}
}

func TestScope_RejectsForeignSignature(t *testing.T) {
	other := testConfig()
	other.Secret = "another-secret"
	foreign := NewIssuer(other)

	w := httptest.NewRecorder()
	foreignScope, _ := foreign.Scope(w, httptest.NewRequest(http.MethodGet, "/", nil))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(visitorCookie(t, w))
	got, err := NewIssuer(testConfig()).Scope(httptest.NewRecorder(), r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == foreignScope {
		t.Error("expected a cookie signed with another secret to be replaced")
	}
}

func TestScope_RenewsAgingCookie(t *testing.T) {
	issuer := NewIssuer(testConfig())
	start := time.Now()
	issuer.now = func() time.Time { return start.Add(-20 * time.Hour) }

	w := httptest.NewRecorder()
	scope, _ := issuer.Scope(w, httptest.NewRequest(http.MethodGet, "/", nil))
	cookie := visitorCookie(t, w)

	issuer.now = time.Now
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(cookie)
	w = httptest.NewRecorder()
	got, _ := issuer.Scope(w, r)

	if got != scope {
		t.Errorf("expected renewal to keep scope %s, got %s", scope, got)
	}
	if visitorCookie(t, w) == nil {
		t.Error("expected an aging cookie to be renewed")
	}
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(Middleware(NewIssuer(testConfig())))
	engine.GET("/", func(c *gin.Context) {
		scope, err := FromContext(c)
		if err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, scope)
	})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusOK || w.Body.Len() == 0 {
		t.Errorf("expected scope in body, got %d %q", w.Code, w.Body.String())
	}
}

func TestFromContext_Missing(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if _, err := FromContext(c); err != ErrNoScope {
		t.Errorf("expected ErrNoScope, got %v", err)
	}
}
