package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/storrsec/internal/session"
	"github.com/storrsec/internal/visitor"
)

const (
	sessionKey = "session"
	stateKey   = "session_state"
)

// sessionMiddleware mounts the visitor's session. The first request of a
// visitor starts its automatic resolution.
func (s *Server) sessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		scope, err := visitor.FromContext(c)
		if err != nil {
			slog.ErrorContext(c.Request.Context(), "session middleware without visitor scope", "error", err)
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		c.Set(sessionKey, s.sessions.Mount(c.Request.Context(), scope))
		c.Next()
	}
}

func sessionFrom(c *gin.Context) *session.Session {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil
	}
	sess, _ := v.(*session.Session)
	return sess
}

// gate waits for the session to stop loading. It aborts and returns false
// when the client went away first.
func (s *Server) gate(c *gin.Context) (session.State, bool) {
	if v, ok := c.Get(stateKey); ok {
		if state, ok := v.(session.State); ok {
			return state, true
		}
	}

	sess := sessionFrom(c)
	if sess == nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return session.State{}, false
	}

	state, err := sess.Wait(c.Request.Context())
	if err != nil {
		slog.DebugContext(c.Request.Context(), "client left before session resolved", "error", err)
		c.AbortWithStatus(http.StatusServiceUnavailable)
		return state, false
	}
	c.Set(stateKey, state)
	return state, true
}

// requireIdentity renders Access Denied unless the visitor is authenticated
func (s *Server) requireIdentity(notice string) gin.HandlerFunc {
	return func(c *gin.Context) {
		state, ok := s.gate(c)
		if !ok {
			return
		}
		if !state.Authenticated() {
			v := s.newView(c, state, "denied", "Access Denied")
			v.Notice = notice
			v.Next = c.Request.URL.Path
			s.render(c, http.StatusForbidden, "denied", v)
			c.Abort()
			return
		}
		c.Next()
	}
}

type credentialKey struct{}

func withCredential(ctx context.Context, credential string) context.Context {
	return context.WithValue(ctx, credentialKey{}, credential)
}

// credentialFromRequest feeds the API proxy
func credentialFromRequest(r *http.Request) string {
	credential, _ := r.Context().Value(credentialKey{}).(string)
	return credential
}
