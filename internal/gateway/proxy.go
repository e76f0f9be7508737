package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// CredentialFunc returns the bearer credential to attach to r, or "" for none
type CredentialFunc func(r *http.Request) string

// Proxy forwards /api/* requests to the remote service, attaching the
// visitor's credential so browser scripts never hold it
type Proxy struct {
	target     *url.URL
	credential CredentialFunc
	// cookie that must not leave this site
	stripCookie string
	transport   http.RoundTripper
	logger      *slog.Logger
}

// NewProxy creates a proxy to baseURL
func NewProxy(baseURL string, credential CredentialFunc, stripCookie string, logger *slog.Logger) (*Proxy, error) {
	target, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, errors.New("proxy target must be an absolute URL")
	}
	return &Proxy{
		target:      target,
		credential:  credential,
		stripCookie: stripCookie,
		transport:   http.DefaultTransport,
		logger:      logger,
	}, nil
}

// ServeHTTP forwards the request and returns the response as-is
func (p *Proxy) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	outReq := req.Clone(req.Context())
	outReq.URL.Scheme = p.target.Scheme
	outReq.URL.Host = p.target.Host
	outReq.URL.Path = strings.TrimRight(p.target.Path, "/") + req.URL.Path
	outReq.URL.RawPath = ""
	outReq.URL.RawQuery = req.URL.RawQuery
	outReq.Host = p.target.Host
	outReq.RequestURI = ""
	if req.Body != nil {
		outReq.Body = req.Body
		outReq.ContentLength = req.ContentLength
		outReq.GetBody = req.GetBody
	}

	// Strip hop-by-hop headers that ReverseProxy would strip
	for _, h := range []string{"Connection", "Proxy-Connection", "Keep-Alive", "Transfer-Encoding", "Te", "Trailer", "Upgrade"} {
		outReq.Header.Del(h)
	}

	p.filterCookies(outReq)

	// a caller-supplied Authorization header wins
	attached := false
	if outReq.Header.Get("Authorization") == "" && p.credential != nil {
		if credential := p.credential(req); credential != "" {
			outReq.Header.Set("Authorization", "Bearer "+credential)
			attached = true
		}
	}

	if xff := req.Header.Get("X-Forwarded-For"); xff != "" {
		if firstIP := strings.TrimSpace(strings.Split(xff, ",")[0]); firstIP != "" {
			outReq.Header.Set("X-Forwarded-For", firstIP)
		}
	} else if host := remoteHost(req.RemoteAddr); host != "" {
		outReq.Header.Set("X-Forwarded-For", host)
	}
	outReq.Header.Set("X-Forwarded-Host", req.Host)
	if req.TLS != nil {
		outReq.Header.Set("X-Forwarded-Proto", "https")
	} else {
		outReq.Header.Set("X-Forwarded-Proto", "http")
	}

	p.logger.DebugContext(req.Context(), "proxy: forwarding request",
		"method", req.Method,
		"path", outReq.URL.Path,
		"bearer_attached", attached,
	)

	resp, err := p.transport.RoundTrip(outReq)
	if err != nil {
		// Client disconnect is normal; avoid noisy ERROR logs
		if errors.Is(err, context.Canceled) || req.Context().Err() == context.Canceled {
			p.logger.DebugContext(req.Context(), "proxy: upstream request canceled by client", "path", req.URL.Path)
		} else {
			p.logger.ErrorContext(req.Context(), "proxy: upstream request failed",
				"path", req.URL.Path,
				"error", err,
			)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"Upstream service unavailable"}`))
		return
	}
	defer resp.Body.Close()

	// Copy response headers (exclude hop-by-hop)
	for k, vv := range resp.Header {
		switch strings.ToLower(k) {
		case "connection", "keep-alive", "proxy-authenticate", "proxy-authorization", "te", "trailers", "transfer-encoding", "upgrade":
			continue
		}
		for _, v := range vv {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
}

// filterCookies drops the visitor cookie from the outgoing request
func (p *Proxy) filterCookies(outReq *http.Request) {
	if p.stripCookie == "" {
		return
	}
	cookies := outReq.Cookies()
	outReq.Header.Del("Cookie")
	for _, c := range cookies {
		if c.Name == p.stripCookie {
			continue
		}
		outReq.AddCookie(c)
	}
}

func remoteHost(addr string) string {
	if i := strings.LastIndex(addr, ":"); i > 0 {
		return strings.Trim(addr[:i], "[]")
	}
	return addr
}
