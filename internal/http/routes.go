package http

import (
	"github.com/gin-gonic/gin"
	"github.com/storrsec/internal/apipaths"
	"github.com/storrsec/internal/metrics"
	"github.com/storrsec/internal/visitor"
)

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	// Operational endpoints (no visitor cookie)
	s.engine.GET(apipaths.Health, s.getHealth)
	s.engine.GET(apipaths.Metrics, gin.WrapH(metrics.Handler()))

	site := s.engine.Group("/")
	site.Use(visitor.Middleware(s.visitors))
	{
		// These only touch storage; the session is resolved by the next page
		site.GET(apipaths.OAuthCallback, s.oauthCallback)
		site.Any(apipaths.APIPrefix+"*path", s.proxyAPI)
		site.POST(apipaths.PasswordCheck, s.passwordStrength)
	}

	pages := site.Group("/")
	pages.Use(s.sessionMiddleware())
	{
		s.setupPageRoutes(pages)
		s.setupAuthRoutes(pages)
		s.setupPaymentRoutes(pages)

		pages.GET(apipaths.SessionState, s.getSessionState)
	}

	s.engine.NoRoute(s.notFound)
}

func (s *Server) setupPageRoutes(pages *gin.RouterGroup) {
	pages.GET(apipaths.Home, s.staticPage("home", "Home"))
	pages.GET(apipaths.Solutions, s.staticPage("solutions", "Solutions"))
	pages.GET(apipaths.Company, s.staticPage("company", "Company"))
	pages.GET(apipaths.Services, s.staticPage("services", "Services"))
	pages.GET(apipaths.Subscribe, s.subscribePage)
	pages.POST(apipaths.Subscribe, s.subscribe)

	pages.GET(apipaths.Dashboard, s.requireIdentity("Please log in to view your dashboard"), s.dashboard)
	pages.GET(apipaths.User, s.requireIdentity("Please log in to view your page"), s.userPage)
}

func (s *Server) setupAuthRoutes(pages *gin.RouterGroup) {
	throttle := s.limiter.Middleware(s.tooManyRequests)

	pages.GET(apipaths.Login, s.loginPage)
	pages.POST(apipaths.Login, throttle, s.login)
	pages.GET(apipaths.Signup, s.signupPage)
	pages.POST(apipaths.Signup, throttle, s.signup)

	pages.GET(apipaths.SiteOAuthStart(":provider"), s.oauthStart)
	pages.POST(apipaths.SiteOAuthStart(":provider"), s.oauthStart)

	pages.POST(apipaths.Logout, s.logout)
}

func (s *Server) setupPaymentRoutes(pages *gin.RouterGroup) {
	pages.GET(apipaths.Payment, s.paymentPage)
	pages.POST(apipaths.PaymentStart, s.checkout)
	pages.GET(apipaths.PaymentReturn, s.paymentSuccess)
}
