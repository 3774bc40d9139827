// Package streetview downloads images from the Google Street View Static API.
package streetview

import (
	"context"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://maps.googleapis.com/maps/api/streetview"

	// DefaultSize is the capture size in pixels, width x height.
	DefaultSize = "1200x800"
	// DefaultFOV is the horizontal field of view in degrees.
	DefaultFOV = 60

	// maxImageBytes bounds a single response body.
	maxImageBytes = 32 << 20
)

// Client fetches Street View captures.
type Client interface {
	// Fetch downloads one capture. Each call is a single attempt.
	Fetch(ctx context.Context, req Request) (*Image, error)
}

// Request identifies one capture.
type Request struct {
	Lat     float64
	Lon     float64
	Heading int
	Pitch   int
}

// Image is a downloaded capture.
type Image struct {
	Data        []byte
	ContentType string
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API endpoint.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit sets the requests-per-second limit. Non-positive values
// disable limiting.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithSize sets the capture size, e.g. "640x640".
func WithSize(size string) Option {
	return func(c *httpClient) {
		if size != "" {
			c.size = size
		}
	}
}

// WithFOV sets the horizontal field of view in degrees.
func WithFOV(fov int) Option {
	return func(c *httpClient) {
		if fov > 0 {
			c.fov = fov
		}
	}
}

type httpClient struct {
	apiKey   string
	baseURL  string
	size     string
	fov      int
	http     *http.Client
	limiter  *rate.Limiter
	maxBytes int64 // larger response bodies are rejected
}

// NewClient creates a Street View client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:   apiKey,
		baseURL:  defaultBaseURL,
		size:     DefaultSize,
		fov:      DefaultFOV,
		http:     &http.Client{Timeout: 30 * time.Second},
		limiter:  rate.NewLimiter(10, 10),
		maxBytes: maxImageBytes,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Fetch(ctx context.Context, req Request) (*Image, error) {
	if c.apiKey == "" {
		return nil, eris.New("streetview: api key not configured")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "streetview: rate limit")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.requestURL(req), nil)
	if err != nil {
		return nil, eris.Wrap(err, "streetview: create request")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "streetview: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, eris.Wrap(err, "streetview: read response")
	}
	if int64(len(body)) > c.maxBytes {
		return nil, eris.Errorf("streetview: response exceeds %d bytes", c.maxBytes)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("streetview: unexpected status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	ct := resp.Header.Get("Content-Type")
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil || !strings.HasPrefix(mediaType, "image/") {
		return nil, eris.Errorf("streetview: unexpected content type %q", ct)
	}

	return &Image{Data: body, ContentType: mediaType}, nil
}

func (c *httpClient) requestURL(req Request) string {
	params := url.Values{
		"size":     {c.size},
		"location": {formatCoord(req.Lat) + "," + formatCoord(req.Lon)},
		"fov":      {strconv.Itoa(c.fov)},
		"heading":  {strconv.Itoa(req.Heading)},
		"pitch":    {strconv.Itoa(req.Pitch)},
		"key":      {c.apiKey},
	}
	return c.baseURL + "?" + params.Encode()
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
