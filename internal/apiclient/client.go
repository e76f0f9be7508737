package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/storrsec/internal/apipaths"
	"github.com/storrsec/internal/config"
	"github.com/storrsec/internal/domain"
	"github.com/storrsec/internal/metrics"
	"github.com/storrsec/internal/validation"
)

// maxBodyBytes caps how much of a remote response is read
const maxBodyBytes = 1 << 20

const breakerName = "identity-api"

// Operation names used in errors, logs and metrics
const (
	OpMe       = "user/me"
	OpLogin    = "auth/login"
	OpRegister = "auth/register"
	OpSub      = "user/subscribe"
	OpCheckout = "payments/create-checkout-session"
)

// Options configures a Client
type Options struct {
	Timeout   time.Duration
	Breaker   config.BreakerConfig
	Transport http.RoundTripper
}

// Client talks to the remote identity/subscription service
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
}

// New creates a client for the service rooted at baseURL
func New(baseURL string, opts Options) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: opts.Transport,
		},
	}

	if opts.Breaker.Enabled {
		cfg := opts.Breaker
		c.breaker = gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
			Name:        breakerName,
			MaxRequests: 1,
			Timeout:     cfg.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				if counts.Requests < cfg.MinRequests {
					return false
				}
				return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
			},
			IsSuccessful: func(err error) bool {
				// a caller giving up says nothing about the remote's health
				return err == nil || errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				slog.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
				metrics.SetBreakerState(name, float64(to))
			},
		})
		metrics.SetBreakerState(breakerName, float64(gobreaker.StateClosed))
	}

	return c
}

// BaseURL returns the service root without a trailing slash
func (c *Client) BaseURL() string {
	return c.baseURL
}

// OAuthURL is the absolute browser-navigation URL that starts a provider flow
func (c *Client) OAuthURL(path string) string {
	return c.baseURL + path
}

// BreakerState reports the circuit breaker state, or "disabled"
func (c *Client) BreakerState() string {
	if c.breaker == nil {
		return "disabled"
	}
	return c.breaker.State().String()
}

// Me exchanges a credential for the caller's profile. 401 and 403 are
// reported as a definitive rejection; anything else as a failure.
func (c *Client) Me(ctx context.Context, credential string) (*domain.Identity, error) {
	resp, err := c.do(ctx, OpMe, http.MethodGet, apipaths.UserMe, credential, nil)
	if err != nil {
		return nil, domain.WrapResolutionFailed(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, domain.WrapResolutionRejected(readError(OpMe, resp))
	}
	if !isSuccess(resp.StatusCode) {
		return nil, domain.WrapResolutionFailed(readError(OpMe, resp))
	}

	var identity domain.Identity
	if err := decode(resp, &identity); err != nil {
		return nil, domain.WrapResolutionFailed(domain.WrapMalformedResponse(OpMe, err))
	}
	if err := validation.Struct(identity); err != nil {
		return nil, domain.WrapResolutionFailed(domain.WrapMalformedResponse(OpMe, err))
	}

	return &identity, nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// Login trades an email and password for a credential
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	resp, err := c.do(ctx, OpLogin, http.MethodPost, apipaths.AuthLogin, "", loginRequest{Email: email, Password: password})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusBadRequest,
		resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden:
		return "", domain.NewDomainError(domain.ErrAuthRejected.Code, domain.ErrAuthRejected.Message, readError(OpLogin, resp))
	case !isSuccess(resp.StatusCode):
		return "", readError(OpLogin, resp)
	}

	var body loginResponse
	if err := decode(resp, &body); err != nil {
		return "", domain.WrapMalformedResponse(OpLogin, err)
	}
	if body.Token == "" {
		return "", domain.WrapMalformedResponse(OpLogin, errors.New("response carried no token"))
	}

	return body.Token, nil
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates an account. Any 2xx counts as success.
func (c *Client) Register(ctx context.Context, name, email, password string) error {
	resp, err := c.do(ctx, OpRegister, http.MethodPost, apipaths.AuthRegister, "", registerRequest{Name: name, Email: email, Password: password})
	if err != nil {
		return domain.NewDomainError(domain.ErrRegistrationFailed.Code, domain.ErrRegistrationFailed.Message, err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return domain.NewDomainError(domain.ErrRegistrationFailed.Code, domain.ErrRegistrationFailed.Message, readError(OpRegister, resp))
	}
	drain(resp)
	return nil
}

// Subscribe marks the credential's account as subscribed
func (c *Client) Subscribe(ctx context.Context, credential string) error {
	resp, err := c.do(ctx, OpSub, http.MethodPost, apipaths.UserSubscribe, credential, struct{}{})
	if err != nil {
		return domain.NewDomainError(domain.ErrPaymentCompletionFailed.Code, domain.ErrPaymentCompletionFailed.Message, err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return domain.NewDomainError(domain.ErrPaymentCompletionFailed.Code, domain.ErrPaymentCompletionFailed.Message, readError(OpSub, resp))
	}
	drain(resp)
	return nil
}

// CreateCheckoutSession asks the service for a hosted checkout session.
// The credential is optional.
func (c *Client) CreateCheckoutSession(ctx context.Context, credential string) (*domain.CheckoutSession, error) {
	resp, err := c.do(ctx, OpCheckout, http.MethodPost, apipaths.CheckoutSession, credential, struct{}{})
	if err != nil {
		return nil, domain.NewDomainError(domain.ErrCheckoutFailed.Code, domain.ErrCheckoutFailed.Message, err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return nil, domain.NewDomainError(domain.ErrCheckoutFailed.Code, domain.ErrCheckoutFailed.Message, readError(OpCheckout, resp))
	}

	var session domain.CheckoutSession
	if err := decode(resp, &session); err != nil {
		return nil, domain.NewDomainError(domain.ErrCheckoutFailed.Code, domain.ErrCheckoutFailed.Message, domain.WrapMalformedResponse(OpCheckout, err))
	}
	if err := validation.Struct(session); err != nil {
		return nil, domain.NewDomainError(domain.ErrCheckoutFailed.Code, domain.ErrCheckoutFailed.Message, domain.WrapMalformedResponse(OpCheckout, err))
	}

	return &session, nil
}

// do sends one request, through the breaker when enabled. 5xx answers come
// back as *Error; every other status is returned for the caller to judge.
func (c *Client) do(ctx context.Context, op, method, path, credential string, payload any) (*http.Response, error) {
	var body io.Reader = http.NoBody
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if credential != "" {
		req.Header.Set("Authorization", "Bearer "+credential)
	}

	start := time.Now()
	resp, err := c.execute(op, req)
	metrics.ObserveAPIRequest(op, err, time.Since(start))

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, domain.NewDomainError(domain.ErrRemoteUnavailable.Code, domain.ErrRemoteUnavailable.Message, err)
		}
		slog.DebugContext(ctx, "remote request failed", "op", op, "error", err)
		return nil, err
	}
	return resp, nil
}

func (c *Client) execute(op string, req *http.Request) (*http.Response, error) {
	send := func() (*http.Response, error) {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%s request failed: %w", op, err)
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			defer resp.Body.Close()
			return nil, readError(op, resp)
		}
		return resp, nil
	}

	if c.breaker == nil {
		return send()
	}
	return c.breaker.Execute(send)
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func decode(resp *http.Response, v any) error {
	return json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(v)
}

func readError(op string, resp *http.Response) *Error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	return &Error{Op: op, StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
}
