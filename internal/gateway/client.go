// Package gateway is the frontend's only path to backend data. Every call
// returns a Result; transport failures are classified, never raised.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"hospital-frontend/pkg/logger"
)

const (
	userAgent       = "Hospital-Management-Frontend/1.0"
	maxResponseBody = 10 << 20
	targetGateway   = "gateway"
)

// Recorder observes completed calls.
type Recorder interface {
	ObserveGateway(target, method, kind string, d time.Duration)
}

// Options configures a Client.
type Options struct {
	BaseURL       string
	Timeout       time.Duration
	DirectTimeout time.Duration

	// Services maps legacy backend names to base URLs; direct calls may only target these.
	Services map[string]string

	// Transport overrides the HTTP transport (tests).
	Transport http.RoundTripper
	Recorder  Recorder
}

// Client is stateless apart from its configuration and safe for concurrent use.
type Client struct {
	baseURL  string
	gateway  *http.Client
	direct   *http.Client
	services map[string]*url.URL
	recorder Recorder
}

func New(opts Options) (*Client, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("gateway: base url must be absolute, got %q", opts.BaseURL)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.DirectTimeout <= 0 {
		opts.DirectTimeout = 10 * time.Second
	}
	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	services := make(map[string]*url.URL, len(opts.Services))
	for name, raw := range opts.Services {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("gateway: service %q url must be absolute, got %q", name, raw)
		}
		services[name] = u
	}

	return &Client{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		gateway:  &http.Client{Timeout: opts.Timeout, Transport: transport},
		direct:   &http.Client{Timeout: opts.DirectTimeout, Transport: transport},
		services: services,
		recorder: opts.Recorder,
	}, nil
}

// Request calls path on the gateway. method must be GET, POST, PUT or DELETE;
// anything else is a programming error and panics. token is sent as a bearer
// credential when non-empty. body is JSON-encoded for POST and PUT only.
func (c *Client) Request(ctx context.Context, method, path, token string, body any, query url.Values) Result {
	mustSupport(method)
	return c.do(ctx, c.gateway, targetGateway, MsgGatewayDown, method, c.baseURL+path, token, body, query)
}

// DirectRequest calls an absolute URL on a configured legacy service,
// bypassing the gateway. Unknown hosts are rejected without a network call.
func (c *Client) DirectRequest(ctx context.Context, method, absURL, token string, body any, query url.Values) Result {
	mustSupport(method)
	name, u, ok := c.matchService(absURL)
	if !ok {
		logger.From(ctx).Warn("direct request rejected", slog.String("url", absURL))
		return failure(KindRejected, 0, MsgDirectNotAllowed)
	}
	return c.do(ctx, c.direct, name, "connection error to "+u.Host, method, absURL, token, body, query)
}

// ServiceURL joins path onto the named legacy service's base URL.
func (c *Client) ServiceURL(name, path string) (string, bool) {
	u, ok := c.services[name]
	if !ok {
		return "", false
	}
	return strings.TrimRight(u.String(), "/") + path, true
}

func (c *Client) matchService(raw string) (string, *url.URL, bool) {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() {
		return "", nil, false
	}
	for name, base := range c.services {
		if !strings.EqualFold(base.Scheme, u.Scheme) || !strings.EqualFold(base.Host, u.Host) {
			continue
		}
		prefix := strings.TrimRight(base.Path, "/")
		if prefix == "" || u.Path == prefix || strings.HasPrefix(u.Path, prefix+"/") {
			return name, u, true
		}
	}
	return "", nil, false
}

func (c *Client) do(ctx context.Context, hc *http.Client, target, connMsg, method, rawURL, token string, body any, query url.Values) Result {
	start := time.Now()
	log := logger.From(ctx).With(slog.String("target", target), slog.String("method", method))

	res := c.send(ctx, hc, connMsg, method, rawURL, token, body, query, log)

	if c.recorder != nil {
		c.recorder.ObserveGateway(target, method, string(res.Kind), time.Since(start))
	}
	switch res.Kind {
	case KindOK:
		log.Debug("gateway call", slog.Int("status", res.Status))
	case KindBackend:
		log.Info("gateway call failed", slog.Int("status", res.Status), slog.String("message", res.Envelope.Message))
	default:
		log.Error("gateway call failed", slog.String("kind", string(res.Kind)), slog.Int("status", res.Status))
	}
	return res
}

func (c *Client) send(ctx context.Context, hc *http.Client, connMsg, method, rawURL, token string, body any, query url.Values, log *slog.Logger) Result {
	u, err := url.Parse(rawURL)
	if err != nil {
		return failure(KindTransport, 0, "network error: invalid url")
	}
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	var reader io.Reader
	if body != nil && (method == http.MethodPost || method == http.MethodPut) {
		b, err := json.Marshal(body)
		if err != nil {
			log.Error("encode request body", slog.Any("err", err))
			return failure(KindTransport, 0, "network error: request body is not serializable")
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return failure(KindTransport, 0, "network error: "+err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if rid := logger.RequestID(ctx); rid != "" {
		req.Header.Set(logger.HeaderRequestID, rid)
	}

	resp, err := hc.Do(req)
	if err != nil {
		log.Warn("gateway transport error", slog.Any("err", err))
		return classify(err, connMsg)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody+1))
	if err != nil {
		if isTimeout(err) {
			return failure(KindTimeout, resp.StatusCode, MsgTimeout)
		}
		return Malformed(resp.StatusCode)
	}
	if len(raw) > maxResponseBody {
		return Malformed(resp.StatusCode)
	}
	return parseEnvelope(resp.StatusCode, raw)
}

func classify(err error, connMsg string) Result {
	if isTimeout(err) {
		return failure(KindTimeout, 0, MsgTimeout)
	}
	if errors.Is(err, context.Canceled) {
		return failure(KindTransport, 0, "network error: request canceled")
	}
	var dnsErr *net.DNSError
	var opErr *net.OpError
	if errors.As(err, &dnsErr) || (errors.As(err, &opErr) && opErr.Op == "dial") {
		return failure(KindConnection, 0, connMsg)
	}
	return failure(KindTransport, 0, "network error: "+err.Error())
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func mustSupport(method string) {
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete:
	default:
		panic(fmt.Sprintf("gateway: unsupported HTTP method %q", method))
	}
}
