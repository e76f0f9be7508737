// Package visitor identifies browsers with a signed, long-lived cookie. The
// visitor id is the scope under which a browser's credential is stored.
package visitor

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-pkgz/auth/token"
	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
	"github.com/storrsec/internal/config"
)

const (
	issuer = "storrsec"
	// contextKey holds the scope on the gin context
	contextKey = "visitor_scope"
	// queryParam is where go-pkgz/auth would look for a token in the URL.
	// It must not be "token", which the provider callback uses.
	queryParam = "visitor_token"
)

// Issuer reads and issues visitor cookies
type Issuer struct {
	tokens *token.Service
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer builds an issuer from the visitor cookie settings
func NewIssuer(cfg config.VisitorConfig) *Issuer {
	secret := cfg.Secret
	tokens := token.NewService(token.Opts{
		SecretReader: token.SecretFunc(func(string) (string, error) {
			return secret, nil
		}),
		TokenDuration:   cfg.CookieTTL,
		CookieDuration:  cfg.CookieTTL,
		Issuer:          issuer,
		JWTCookieName:   cfg.CookieName,
		JWTCookieDomain: cfg.CookieDomain,
		JWTQuery:        queryParam,
		SecureCookies:   cfg.SecureCookie,
		DisableXSRF:     true,
		// Lax so the cookie survives the top-level redirect back from a provider
		SameSite: http.SameSiteLaxMode,
	})
	return &Issuer{tokens: tokens, ttl: cfg.CookieTTL, now: time.Now}
}

// Scope returns the visitor id of r, issuing a new cookie when r has none
// or an unusable one. Cookies past half their lifetime are renewed with
// the same id.
func (i *Issuer) Scope(w http.ResponseWriter, r *http.Request) (string, error) {
	claims, _, err := i.tokens.Get(r)
	if err == nil && claims.Id != "" && claims.ExpiresAt > i.now().Unix() {
		remaining := time.Until(time.Unix(claims.ExpiresAt, 0))
		if remaining < i.ttl/2 {
			if err := i.issue(w, claims.Id); err != nil {
				// keep serving with the old cookie
				slog.WarnContext(r.Context(), "failed to renew visitor cookie", "error", err)
			}
		}
		return claims.Id, nil
	}

	id := uuid.NewString()
	if err := i.issue(w, id); err != nil {
		return "", err
	}
	return id, nil
}

func (i *Issuer) issue(w http.ResponseWriter, id string) error {
	now := i.now()
	_, err := i.tokens.Set(w, token.Claims{
		StandardClaims: jwt.StandardClaims{
			Id:        id,
			Issuer:    issuer,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(i.ttl).Unix(),
		},
	})
	return err
}

// Middleware attaches the visitor scope to every request
func Middleware(i *Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		scope, err := i.Scope(c.Writer, c.Request)
		if err != nil {
			slog.ErrorContext(c.Request.Context(), "failed to issue visitor cookie", "error", err)
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		c.Set(contextKey, scope)
		c.Next()
	}
}

// ErrNoScope is returned when the middleware did not run
var ErrNoScope = errors.New("no visitor scope on request")

// FromContext returns the scope set by Middleware
func FromContext(c *gin.Context) (string, error) {
	scope := c.GetString(contextKey)
	if scope == "" {
		return "", ErrNoScope
	}
	return scope, nil
}
