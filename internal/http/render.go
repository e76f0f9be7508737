package http

import (
	"embed"
	"html/template"

	"github.com/gin-gonic/gin"
	"github.com/storrsec/internal/apipaths"
	"github.com/storrsec/internal/domain"
	"github.com/storrsec/internal/oauth"
	"github.com/storrsec/internal/password"
	"github.com/storrsec/internal/payment"
	"github.com/storrsec/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

func parseTemplates() (*template.Template, error) {
	return template.New("").ParseFS(templateFS, "templates/*.html")
}

type navLink struct {
	Label  string
	Path   string
	Active bool
}

type navState struct {
	Authenticated bool
	Name          string
	Initial       string
	Links         []navLink
}

var menu = []navLink{
	{Label: "Home", Path: apipaths.Home},
	{Label: "Solutions", Path: apipaths.Solutions},
	{Label: "Company", Path: apipaths.Company},
	{Label: "Services", Path: apipaths.Services},
}

// view is the data every template receives
type view struct {
	Title string
	Page  string
	Nav   navState
	User  *domain.Identity

	Error  string
	Notice string
	Next   string
	Back   string

	Name      string
	Email     string
	Providers []oauth.Provider
	Strength  *password.Result
	Checkout  *payment.Redirect
}

func newNav(state session.State, path string) navState {
	nav := navState{Authenticated: state.Authenticated()}
	if state.Identity != nil {
		nav.Name = state.Identity.Name
		nav.Initial = state.Identity.Initial()
	}
	nav.Links = make([]navLink, len(menu))
	for i, link := range menu {
		link.Active = link.Path == path
		nav.Links[i] = link
	}
	return nav
}

// newView builds the common part of a page from the resolved state
func (s *Server) newView(c *gin.Context, state session.State, page, title string) view {
	return view{
		Title: title,
		Page:  page,
		Nav:   newNav(state, c.Request.URL.Path),
		User:  state.Identity,
	}
}

func (s *Server) render(c *gin.Context, status int, name string, v view) {
	c.HTML(status, name, v)
}
