package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/storrsec/internal/config"
	"github.com/storrsec/internal/gateway"
	"github.com/storrsec/internal/metrics"
	"github.com/storrsec/internal/oauth"
	"github.com/storrsec/internal/payment"
	"github.com/storrsec/internal/session"
	"github.com/storrsec/internal/system"
	"github.com/storrsec/internal/visitor"
)

// Deps are the collaborators the HTTP layer consumes
type Deps struct {
	Config    *config.Config
	Sessions  *session.Manager
	Visitors  *visitor.Issuer
	Providers *oauth.Catalog
	Callback  *oauth.CallbackHandler
	Payments  *payment.Service
	Health    *system.Collector
	Logger    *slog.Logger
}

// Server wraps the HTTP server
type Server struct {
	config     *config.Config
	sessions   *session.Manager
	visitors   *visitor.Issuer
	providers  *oauth.Catalog
	callback   *oauth.CallbackHandler
	payments   *payment.Service
	health     *system.Collector
	proxy      *gateway.Proxy
	limiter    *RateLimiter
	logger     *slog.Logger
	engine     *gin.Engine
	httpServer *http.Server
}

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

const (
	maxBodySize  = 1 << 20           // 1MB, forms and small JSON only
	readTimeout  = 30 * time.Second  // 30s for reading request
	writeTimeout = 60 * time.Second  // remote calls are bounded by API_TIMEOUT
	idleTimeout  = 120 * time.Second // 2 minutes idle
	// limiterTTL is how long an idle client keeps its rate limit bucket
	limiterTTL = 10 * time.Minute
)

// NewServer creates a new HTTP server
func NewServer(deps Deps) (*Server, error) {
	cfg := deps.Config

	// Set Gin mode based on environment
	switch cfg.Environment {
	case "production":
		gin.SetMode(gin.ReleaseMode)
	case "development":
		gin.SetMode(gin.DebugMode)
	default:
		gin.SetMode(gin.TestMode)
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	// ClientIP feeds the rate limiter; never trust a forwarded header by default
	if err := engine.SetTrustedProxies(nil); err != nil {
		return nil, err
	}

	// Middleware - order matters
	engine.Use(securityHeadersMiddleware())
	engine.Use(corsMiddleware(cfg))
	engine.Use(cacheControlMiddleware())
	engine.Use(loggerMiddleware())
	engine.Use(jsonBodyLimitMiddleware(maxBodySize))
	engine.Use(metrics.Middleware())

	engine.MaxMultipartMemory = maxBodySize

	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	engine.SetHTMLTemplate(tmpl)

	proxy, err := gateway.NewProxy(cfg.API.BaseURL, credentialFromRequest, cfg.Visitor.CookieName, logger)
	if err != nil {
		return nil, err
	}

	server := &Server{
		config:    cfg,
		sessions:  deps.Sessions,
		visitors:  deps.Visitors,
		providers: deps.Providers,
		callback:  deps.Callback,
		payments:  deps.Payments,
		health:    deps.Health,
		proxy:     proxy,
		limiter:   NewRateLimiter(cfg.Auth.RateLimitRPS, cfg.Auth.RateLimitBurst, limiterTTL),
		logger:    logger,
		engine:    engine,
	}

	// Setup routes
	server.setupRoutes()

	addr := cfg.ServerAddress
	if addr == "" {
		addr = ":8080"
	}
	server.httpServer = &http.Server{
		Addr:           addr,
		Handler:        engine,
		ReadTimeout:    readTimeout,
		WriteTimeout:   writeTimeout,
		IdleTimeout:    idleTimeout,
		MaxHeaderBytes: 1 << 20, // 1MB max header size
	}

	return server, nil
}

// Handler returns the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Limiter returns the auth form rate limiter so its sweep can be scheduled
func (s *Server) Limiter() *RateLimiter {
	return s.limiter
}

// Run starts the HTTP server. It returns http.ErrServerClosed after Shutdown.
func (s *Server) Run() error {
	s.logger.Info("http server listening", "address", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown stops accepting connections and waits for in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
