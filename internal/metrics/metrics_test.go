package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddleware_RecordsMatchedRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(Middleware())
	engine.GET("/login", func(c *gin.Context) { c.Status(http.StatusOK) })

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/login", "200"))

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/login", nil))

	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/login", "200"))
	if after-before != 1 {
		t.Errorf("expected counter to increase by 1, got %v", after-before)
	}
}

func TestMiddleware_UnmatchedRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(Middleware())

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "unmatched", "404"))

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))

	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "unmatched", "404"))
	if after-before != 1 {
		t.Errorf("expected unmatched counter to increase by 1, got %v", after-before)
	}
}

func TestRecordAuthOperation_Outcome(t *testing.T) {
	success := authOperationsTotal.WithLabelValues("login", OutcomeSuccess)
	failure := authOperationsTotal.WithLabelValues("login", OutcomeError)
	s0, f0 := testutil.ToFloat64(success), testutil.ToFloat64(failure)

	RecordAuthOperation("login", nil)
	RecordAuthOperation("login", errors.New("rejected"))
	RecordAuthOperation("login", errors.New("rejected"))

	if got := testutil.ToFloat64(success) - s0; got != 1 {
		t.Errorf("expected 1 success, got %v", got)
	}
	if got := testutil.ToFloat64(failure) - f0; got != 2 {
		t.Errorf("expected 2 errors, got %v", got)
	}
}

func TestHandler_ExposesSessionGauge(t *testing.T) {
	SetMountedSessions(3)

	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if !strings.Contains(w.Body.String(), "storrsec_mounted_sessions 3") {
		t.Errorf("expected gauge in exposition, got:\n%s", w.Body.String())
	}
}
