package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/storrsec/internal/password"
	"github.com/storrsec/internal/visitor"
)

// PasswordStrengthRequest is the body of a strength check
type PasswordStrengthRequest struct {
	Password string `json:"password" form:"password"`
	Name     string `json:"name" form:"name"`
	Email    string `json:"email" form:"email"`
}

// PasswordStrengthResponse is the strength result plus the signup threshold
type PasswordStrengthResponse struct {
	password.Result
	MinScore   int  `json:"minScore"`
	Acceptable bool `json:"acceptable"`
}

func (s *Server) passwordStrength(c *gin.Context) {
	var req PasswordStrengthRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request format"})
		return
	}

	var inputs []string
	for _, in := range []string{req.Name, req.Email} {
		if in != "" {
			inputs = append(inputs, in)
		}
	}

	result := password.Evaluate(req.Password, inputs...)
	minScore := s.config.Auth.PasswordMinScore
	c.JSON(http.StatusOK, PasswordStrengthResponse{
		Result:     result,
		MinScore:   minScore,
		Acceptable: !result.Empty && result.Score >= minScore,
	})
}

func (s *Server) getHealth(c *gin.Context) {
	c.JSON(http.StatusOK, s.health.Collect())
}

// proxyAPI forwards /api/* with the visitor's credential as bearer, so
// scripts can call the remote service without ever holding the token
func (s *Server) proxyAPI(c *gin.Context) {
	ctx := c.Request.Context()
	if scope, err := visitor.FromContext(c); err == nil {
		credential, ok, err := s.sessions.Slot(scope).Load(ctx)
		switch {
		case err != nil:
			slog.WarnContext(ctx, "proxying without credential, storage unavailable", "visitor", scope, "error", err)
		case ok:
			c.Request = c.Request.WithContext(withCredential(ctx, credential))
		}
	}
	s.proxy.ServeHTTP(c.Writer, c.Request)
}
