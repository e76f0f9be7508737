package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/storrsec/internal/apiclient"
	"github.com/storrsec/internal/apipaths"
	"github.com/storrsec/internal/domain"
	"github.com/storrsec/internal/httputil"
	"github.com/storrsec/internal/oauth"
	"github.com/storrsec/internal/password"
	"github.com/storrsec/internal/session"
	"github.com/storrsec/internal/validation"
	"github.com/storrsec/internal/visitor"
)

const (
	loginFailedMessage  = "Invalid email or password. Please try again."
	signupFailedMessage = "Registration failed. Please try again."
	weakPasswordMessage = "Please choose a stronger password."
)

// LoginRequest represents a login form or JSON body
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Next     string `json:"next"`
}

// SignupRequest represents a signup form or JSON body
type SignupRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func isJSONBody(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Content-Type"), "application/json")
}

func bindLogin(c *gin.Context) (LoginRequest, error) {
	var req LoginRequest
	if isJSONBody(c) {
		if err := c.ShouldBindJSON(&req); err != nil {
			return req, domain.WrapValidationError("login", err)
		}
		req.Email = strings.TrimSpace(req.Email)
	} else {
		req.Email = httputil.PostForm(c, "email")
		req.Password = httputil.RawPostForm(c, "password")
		req.Next = httputil.PostForm(c, "next")
	}

	if err := validation.Struct(req); err != nil {
		return req, domain.WrapValidationError("login", err)
	}
	return req, nil
}

func bindSignup(c *gin.Context) (SignupRequest, error) {
	var req SignupRequest
	if isJSONBody(c) {
		if err := c.ShouldBindJSON(&req); err != nil {
			return req, domain.WrapValidationError("signup", err)
		}
		req.Name = strings.TrimSpace(req.Name)
		req.Email = strings.TrimSpace(req.Email)
	} else {
		req.Name = httputil.PostForm(c, "name")
		req.Email = httputil.PostForm(c, "email")
		req.Password = httputil.RawPostForm(c, "password")
	}

	if err := validation.Struct(req); err != nil {
		return req, domain.WrapValidationError("signup", err)
	}
	if err := validation.ValidateDisplayName(req.Name); err != nil {
		return req, domain.WrapValidationError("name", err)
	}
	return req, nil
}

// statusFor maps an auth or payment failure to a response status
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidationFailed):
		return http.StatusBadRequest
	case domain.IsRejected(err):
		return http.StatusUnauthorized
	case domain.IsInfrastructureError(err):
		return http.StatusServiceUnavailable
	}
	if code, ok := apiclient.StatusCode(err); ok && code >= 400 && code < 500 {
		return code
	}
	return http.StatusBadGateway
}

func (s *Server) authView(c *gin.Context, state session.State, page, title string) view {
	v := s.newView(c, state, page, title)
	v.Providers = s.providers.Providers()
	return v
}

func (s *Server) loginPage(c *gin.Context) {
	state, ok := s.gate(c)
	if !ok {
		return
	}
	v := s.authView(c, state, "login", "Sign in")
	if next := c.Query("next"); httputil.IsLocalPath(next) {
		v.Next = next
	}
	s.render(c, http.StatusOK, "login", v)
}

// login exchanges the form for a credential and resolves the session.
// Every failure shows the same message.
func (s *Server) login(c *gin.Context) {
	ctx := c.Request.Context()
	sess := sessionFrom(c)

	req, err := bindLogin(c)
	if err == nil {
		err = sess.Login(ctx, req.Email, req.Password)
	}
	if err != nil {
		logAuthFailure(c, "login", sess, err)
		status := statusFor(err)
		if httputil.WantsJSON(c) {
			c.JSON(status, ErrorResponse{Error: loginFailedMessage})
			return
		}
		state, ok := s.gate(c)
		if !ok {
			return
		}
		v := s.authView(c, state, "login", "Sign in")
		v.Error = loginFailedMessage
		v.Email = req.Email
		if httputil.IsLocalPath(req.Next) {
			v.Next = req.Next
		}
		s.render(c, status, "login", v)
		return
	}

	target := apipaths.Payment
	if httputil.IsLocalPath(req.Next) {
		target = req.Next
	}
	s.navigate(c, target, sess.State())
}

func (s *Server) signupPage(c *gin.Context) {
	state, ok := s.gate(c)
	if !ok {
		return
	}
	s.render(c, http.StatusOK, "signup", s.authView(c, state, "signup", "Sign up"))
}

// signup registers the account and logs in with the same values
func (s *Server) signup(c *gin.Context) {
	ctx := c.Request.Context()
	sess := sessionFrom(c)

	req, err := bindSignup(c)
	if err != nil {
		s.signupFailed(c, req, nil, http.StatusBadRequest, domain.PublicMessage(err))
		return
	}

	if minScore := s.config.Auth.PasswordMinScore; minScore > 0 {
		strength := password.Evaluate(req.Password, req.Name, req.Email)
		if strength.Score < minScore {
			s.signupFailed(c, req, &strength, http.StatusBadRequest, weakPasswordMessage)
			return
		}
	}

	if err := sess.Signup(ctx, req.Name, req.Email, req.Password); err != nil {
		logAuthFailure(c, "signup", sess, err)
		s.signupFailed(c, req, nil, statusFor(err), signupFailedMessage)
		return
	}

	s.navigate(c, apipaths.Payment, sess.State())
}

func (s *Server) signupFailed(c *gin.Context, req SignupRequest, strength *password.Result, status int, message string) {
	if httputil.WantsJSON(c) {
		c.JSON(status, ErrorResponse{Error: message})
		return
	}
	state, ok := s.gate(c)
	if !ok {
		return
	}
	v := s.authView(c, state, "signup", "Sign up")
	v.Error = message
	v.Name = req.Name
	v.Email = req.Email
	v.Strength = strength
	s.render(c, status, "signup", v)
}

// oauthStart sends the browser to the provider's initiation endpoint, or
// shows the provider notice
func (s *Server) oauthStart(c *gin.Context) {
	provider := c.Param("provider")
	sess := sessionFrom(c)

	var target string
	err := validation.ValidateProviderName(provider)
	if err != nil {
		err = domain.WrapProviderUnknown(provider)
	} else {
		target, err = sess.LoginWithOAuth(provider)
	}

	if err != nil {
		status := http.StatusNotFound
		if errors.Is(err, domain.ErrProviderNotImplemented) {
			status = http.StatusNotImplemented
		}
		slog.InfoContext(c.Request.Context(), "oauth login unavailable", "provider", provider, "error", err)

		if httputil.WantsJSON(c) {
			c.JSON(status, ErrorResponse{Error: domain.PublicMessage(err)})
			return
		}
		state, ok := s.gate(c)
		if !ok {
			return
		}
		v := s.authView(c, state, "login", "Sign in")
		v.Error = domain.PublicMessage(err)
		s.render(c, status, "login", v)
		return
	}

	if httputil.WantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{"redirect": target})
		return
	}
	c.Redirect(http.StatusSeeOther, target)
}

// oauthCallback stores the provider's token. The visitor's session is
// dropped so the destination page resolves it from the new credential.
func (s *Server) oauthCallback(c *gin.Context) {
	scope, err := visitor.FromContext(c)
	if err != nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	outcome := s.callback.Handle(c.Request.Context(), s.sessions.Slot(scope), c.Request.URL.Query())
	if outcome.State == oauth.AuthenticatedPending {
		s.sessions.Unmount(scope)
	}
	c.Redirect(http.StatusFound, outcome.Target)
}

// logout clears the credential whatever the remote service thinks
func (s *Server) logout(c *gin.Context) {
	sess := sessionFrom(c)
	target := sess.Logout(c.Request.Context())
	s.navigate(c, target, sess.State())
}

func logAuthFailure(c *gin.Context, op string, sess *session.Session, err error) {
	level := slog.LevelWarn
	if domain.IsRejected(err) || errors.Is(err, domain.ErrValidationFailed) {
		level = slog.LevelInfo
	}
	slog.Log(c.Request.Context(), level, op+" failed",
		"visitor", sess.Slot().Scope(),
		"error", err,
	)
}
