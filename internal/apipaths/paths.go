package apipaths

// Remote identity/subscription service paths. Used by the API client and the
// pass-through proxy.

const (
	UserMe          = "/api/user/me"
	UserSubscribe   = "/api/user/subscribe"
	AuthLogin       = "/api/auth/login"
	AuthRegister    = "/api/auth/register"
	CheckoutSession = "/api/payments/create-checkout-session"
	APIPrefix       = "/api/"
)

// OAuthStart is the browser-navigation endpoint that begins a provider flow
func OAuthStart(provider string) string { return "/auth/" + provider }

// Site routes served by this process.

const (
	Home          = "/"
	Solutions     = "/solutions"
	Company       = "/company"
	Services      = "/services"
	Subscribe     = "/subscribe"
	Login         = "/login"
	Signup        = "/signup"
	Logout        = "/logout"
	Dashboard     = "/dashboard"
	User          = "/user"
	Payment       = "/payment"
	PaymentStart  = "/payment/checkout"
	PaymentReturn = "/payment/success"
	OAuthCallback = "/oauth-callback"
	Health        = "/healthz"
	Metrics       = "/metrics"
	SessionState  = "/bff/session"
	PasswordCheck = "/bff/password-strength"
)

// SiteOAuthStart is the local route a login button posts to for a provider
func SiteOAuthStart(provider string) string { return "/login/oauth/" + provider }
