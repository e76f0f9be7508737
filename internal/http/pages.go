package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/storrsec/internal/apipaths"
	"github.com/storrsec/internal/domain"
	"github.com/storrsec/internal/httputil"
	"github.com/storrsec/internal/session"
)

// staticPage renders a content page that only depends on the navbar state
func (s *Server) staticPage(page, title string) gin.HandlerFunc {
	return func(c *gin.Context) {
		state, ok := s.gate(c)
		if !ok {
			return
		}
		s.render(c, http.StatusOK, "static", s.newView(c, state, page, title))
	}
}

func (s *Server) subscribePage(c *gin.Context) {
	state, ok := s.gate(c)
	if !ok {
		return
	}
	s.render(c, http.StatusOK, "subscribe", s.newView(c, state, "subscribe", "Subscribe"))
}

// subscribe sends anonymous visitors to login and everyone else to payment
func (s *Server) subscribe(c *gin.Context) {
	state, ok := s.gate(c)
	if !ok {
		return
	}

	target := apipaths.Payment
	if !state.Authenticated() {
		target = apipaths.Login
	}
	s.navigate(c, target, state)
}

func (s *Server) dashboard(c *gin.Context) {
	state, _ := s.gate(c)
	s.render(c, http.StatusOK, "dashboard", s.newView(c, state, "dashboard", "Dashboard"))
}

func (s *Server) userPage(c *gin.Context) {
	state, _ := s.gate(c)
	s.render(c, http.StatusOK, "user", s.newView(c, state, "user", "My Page"))
}

// getSessionState reports the session without waiting, so scripts can see
// a resolution in progress
func (s *Server) getSessionState(c *gin.Context) {
	sess := sessionFrom(c)
	state := sess.State()
	c.JSON(http.StatusOK, sessionResponse(state))
}

type sessionJSON struct {
	User            *domain.Identity `json:"user"`
	IsAuthenticated bool             `json:"isAuthenticated"`
	Loading         bool             `json:"loading"`
}

func sessionResponse(state session.State) sessionJSON {
	return sessionJSON{User: state.Identity, IsAuthenticated: state.Authenticated(), Loading: state.Loading}
}

// navigate ends a form post: a 303 for browsers, the target for scripts
func (s *Server) navigate(c *gin.Context, target string, state session.State) {
	if httputil.WantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{
			"redirect": target,
			"session":  sessionResponse(state),
		})
		return
	}
	c.Redirect(http.StatusSeeOther, target)
}

func (s *Server) notFound(c *gin.Context) {
	if httputil.WantsJSON(c) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Not found"})
		return
	}
	c.String(http.StatusNotFound, "404 page not found")
}

func (s *Server) tooManyRequests(c *gin.Context) {
	if httputil.WantsJSON(c) {
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "Too many requests"})
		return
	}
	v := view{Title: "Too many requests", Back: c.Request.URL.Path}
	v.Nav = newNav(session.State{}, "")
	v.Notice = "Too many attempts. Please wait a moment and try again."
	s.render(c, http.StatusTooManyRequests, "notice", v)
}
