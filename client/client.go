package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	maxBodyExcerpt = 512

	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:135.0) Gecko/20100101 Firefox/135.0"
)

var (
	rateLimiterCache = make(map[string]*rate.Limiter)

	// hostRateLimits throttles hosts known to reject bursts of requests
	hostRateLimits = map[string]rate.Limit{
		"corporate-card-bff.us.flashapp.services": rate.Every(time.Second),
	}
)

// Client issues instrumented JSON requests against provider APIs.
// Requests are rate limited per host and logged at debug level.
type Client struct {
	client    *http.Client
	logger    *zap.Logger
	userAgent string
}

// New creates a Client logging with the given logger
func New(logger *zap.Logger) *Client {
	return &Client{
		client:    &http.Client{Timeout: 30 * time.Second},
		logger:    logger,
		userAgent: defaultUserAgent,
	}
}

// Request describes a single JSON API call
type Request struct {
	Method string
	URL    string
	Query  url.Values
	Header http.Header
	// Body is JSON-encoded into the request body when non-nil
	Body interface{}
}

// JSON executes req and decodes the response body into v
func (c *Client) JSON(ctx context.Context, req Request, v interface{}) error {
	body, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errors.Wrapf(err, "Failed to parse response: %s", bodyExcerpt(body))
	}
	return nil
}

func (c *Client) do(ctx context.Context, req Request) ([]byte, error) {
	var bodyReader *bytes.Reader
	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return nil, errors.Wrap(err, "Failed to encode request body")
		}
		bodyReader = bytes.NewReader(encoded)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	httpReq, err := http.NewRequest(req.Method, req.URL, bodyReader)
	if err != nil {
		return nil, err
	}
	httpReq = httpReq.WithContext(ctx)
	if len(req.Query) > 0 {
		httpReq.URL.RawQuery = req.Query.Encode()
	}
	for key, values := range req.Header {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}
	if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}

	if err := c.wait(ctx, httpReq.URL); err != nil {
		return nil, err
	}

	if ce := c.logger.Check(zap.DebugLevel, "Sending request"); ce != nil {
		ce.Write(zap.String("method", req.Method), zap.String("url", httpReq.URL.String()))
	}
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "Error sending request")
	}
	defer resp.Body.Close()

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to read response body")
	}
	if ce := c.logger.Check(zap.DebugLevel, "Received response"); ce != nil {
		ce.Write(zap.Int("status", resp.StatusCode), zap.ByteString("body", body))
	}

	if resp.StatusCode/100 != 2 {
		return nil, errors.Errorf("Request status %s: %s", resp.Status, bodyExcerpt(body))
	}
	return body, nil
}

// wait blocks until the host's rate limiter permits another request
func (c *Client) wait(ctx context.Context, u *url.URL) error {
	limiter := limiterForHost(u.Hostname())
	reservation := limiter.Reserve()
	if !reservation.OK() {
		return errors.New("Cannot satisfy rate limiter burst condition")
	}
	delay := reservation.Delay()
	if delay == 0 {
		return nil
	}
	c.logger.Debug("Rate limiting", zap.Duration("delay", delay))
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		reservation.Cancel()
		return ctx.Err()
	}
}

func limiterForHost(host string) *rate.Limiter {
	if limiter, ok := rateLimiterCache[host]; ok {
		return limiter
	}
	limit, ok := hostRateLimits[host]
	if !ok {
		// don't save an "unlimited" limiter in the cache
		return rate.NewLimiter(rate.Inf, 0)
	}
	limiter := rate.NewLimiter(limit, 1)
	rateLimiterCache[host] = limiter
	return limiter
}

func bodyExcerpt(body []byte) string {
	if len(body) > maxBodyExcerpt {
		return string(body[:maxBodyExcerpt]) + "..."
	}
	return string(body)
}
