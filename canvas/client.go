// Copyright (c) Mural Authors
// SPDX-License-Identifier: MPL-2.0

package canvas

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-hclog"
	"github.com/muralhq/mural/helper/useragent"
	"github.com/muralhq/mural/structs"
	"golang.org/x/time/rate"
	"oss.indeed.com/go/libtime"
)

const (
	// maxTimeoutHTTP is a fail-safe for the HTTP client, ensuring the
	// scheduler does not leak goroutines hanging on an unresponsive canvas.
	maxTimeoutHTTP = 2 * time.Minute

	// maxBlobSize caps a snapshot response body. A 4096x4096 canvas is
	// 48MiB; anything past that is a misbehaving upstream.
	maxBlobSize = 64 << 20

	// requestsPerSecond paces all outbound calls in addition to the
	// server-advertised windows. Snapshot polls arrive every couple of
	// seconds, so this only smooths validator bursts.
	requestsPerSecond = 5
	requestsBurst     = 2

	endpointSize   = "/get_size"
	endpointPixels = "/get_pixels"
	endpointPixel  = "/get_pixel"
)

// Config configures a canvas Client.
type Config struct {
	// BaseURL is the root of the remote pixel API.
	BaseURL string

	// Token is the bearer token expected by the remote API.
	Token string

	// Logger is the parent logger; the client logs under "canvas".
	Logger hclog.Logger

	// HTTPClient overrides the pooled default, mainly for tests.
	HTTPClient *http.Client

	// Clock overrides wall time, mainly for tests.
	Clock libtime.Clock
}

// Client talks to the remote canvas. All methods are safe for concurrent
// use; the rate window bookkeeping is shared across callers.
type Client struct {
	log        hclog.Logger
	base       *url.URL
	token      string
	httpClient *http.Client
	clock      libtime.Clock
	limiter    *rate.Limiter
	windows    *windows
}

// NewClient validates the config and returns a ready client.
func NewClient(config *Config) (*Client, error) {
	base, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid canvas base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid canvas base url %q: scheme and host are required", config.BaseURL)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = cleanhttp.DefaultPooledClient()
		httpClient.Timeout = maxTimeoutHTTP
	}
	clock := config.Clock
	if clock == nil {
		clock = libtime.SystemClock()
	}
	logger := config.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	return &Client{
		log:        logger.Named("canvas"),
		base:       base,
		token:      config.Token,
		httpClient: httpClient,
		clock:      clock,
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), requestsBurst),
		windows:    newWindows(clock),
	}, nil
}

// sizeResponse is the wire form of the /get_size endpoint.
type sizeResponse struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// pixelResponse is the wire form of the /get_pixel endpoint.
type pixelResponse struct {
	X   int    `json:"x"`
	Y   int    `json:"y"`
	RGB string `json:"rgb"`
}

// GetSize fetches the canvas dimensions.
func (c *Client) GetSize(ctx context.Context) (int, int, error) {
	body, _, err := c.do(ctx, http.MethodGet, endpointSize, nil)
	if err != nil {
		return 0, 0, err
	}
	var size sizeResponse
	if err := json.Unmarshal(body, &size); err != nil {
		return 0, 0, fmt.Errorf("%w: malformed size response: %v", structs.ErrCanvasUnavailable, err)
	}
	if size.Width <= 0 || size.Height <= 0 {
		return 0, 0, fmt.Errorf("%w: nonsense canvas size %dx%d", structs.ErrCanvasUnavailable, size.Width, size.Height)
	}
	return size.Width, size.Height, nil
}

// GetCanvas fetches a full snapshot of the canvas.
func (c *Client) GetCanvas(ctx context.Context) (*Canvas, error) {
	width, height, err := c.GetSize(ctx)
	if err != nil {
		return nil, err
	}

	blob, _, err := c.do(ctx, http.MethodGet, endpointPixels, nil)
	if err != nil {
		return nil, err
	}

	snap, err := decodeBlob(width, height, blob)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", structs.ErrCanvasUnavailable, err)
	}
	return snap, nil
}

// GetPixel fetches a single pixel. The caller is expected to consult
// PixelWaitTime first; the client does not sleep out advertised windows on
// its own.
func (c *Client) GetPixel(ctx context.Context, x, y int) (structs.RGB, error) {
	q := url.Values{
		"x": []string{strconv.Itoa(x)},
		"y": []string{strconv.Itoa(y)},
	}
	body, _, err := c.do(ctx, http.MethodGet, endpointPixel, q)
	if err != nil {
		return structs.RGB{}, err
	}

	var pix pixelResponse
	if err := json.Unmarshal(body, &pix); err != nil {
		return structs.RGB{}, fmt.Errorf("%w: malformed pixel response: %v", structs.ErrCanvasUnavailable, err)
	}
	rgb, err := structs.ParseRGB(pix.RGB)
	if err != nil {
		return structs.RGB{}, fmt.Errorf("%w: %v", structs.ErrCanvasUnavailable, err)
	}
	return rgb, nil
}

// HeadPixel is a side-effect-only preflight: it refreshes the advertised
// rate window for the pixel endpoint without consuming the body.
func (c *Client) HeadPixel(ctx context.Context, x, y int) error {
	q := url.Values{
		"x": []string{strconv.Itoa(x)},
		"y": []string{strconv.Itoa(y)},
	}
	_, _, err := c.do(ctx, http.MethodHead, endpointPixel, q)
	return err
}

// PixelWaitTime reports how long a caller must wait until GetPixel is
// allowed under the advertised rate window. Zero means immediately.
func (c *Client) PixelWaitTime() time.Duration {
	return c.windows.waitTime(endpointPixel)
}

// do issues one request against an endpoint, folding response headers into
// the endpoint's rate window regardless of status.
func (c *Client) do(ctx context.Context, method, endpoint string, query url.Values) ([]byte, int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, err
	}

	u := *c.base
	u.Path = u.Path + endpoint
	if query != nil {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set(useragent.Header, useragent.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %s %s: %v", structs.ErrCanvasUnavailable, method, endpoint, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	c.windows.update(endpoint, resp.StatusCode, resp.Header)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		c.log.Warn("rate limited by canvas", "endpoint", endpoint, "wait", c.windows.waitTime(endpoint))
		return nil, resp.StatusCode, fmt.Errorf("%w: %s %s: rate limited", structs.ErrCanvasUnavailable, method, endpoint)
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, resp.StatusCode, fmt.Errorf("%w: %s %s: upstream status %d", structs.ErrCanvasUnavailable, method, endpoint, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, resp.StatusCode, fmt.Errorf("canvas: %s %s: unexpected status %d", method, endpoint, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBlobSize))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%w: %s %s: reading body: %v", structs.ErrCanvasUnavailable, method, endpoint, err)
	}
	return body, resp.StatusCode, nil
}
