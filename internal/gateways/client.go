package gateway

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	retry "github.com/sethvargo/go-retry"
	"github.com/valyala/fasthttp"
)

const (
	// DefaultTimeout bounds every provider call. The upstream design left
	// this open; ten seconds keeps a stuck provider from pinning a worker.
	DefaultTimeout = 10 * time.Second

	defaultMaxRetries = 3
	retryBaseDelay    = 500 * time.Millisecond
)

var (
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrInvalidRecipient    = errors.New("invalid recipient")
)

// transientStatus reports whether an HTTP status from the provider is worth
// retrying. 4xx responses are permanent: the request itself is wrong.
func transientStatus(code int) bool {
	return code >= 500 || code == fasthttp.StatusTooManyRequests
}

type httpClient struct {
	base       string
	client     *fasthttp.Client
	timeout    time.Duration
	maxRetries uint64
}

func newHTTPClient(baseURL string, timeout time.Duration) *httpClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &httpClient{
		base: strings.TrimRight(baseURL, "/"),
		client: &fasthttp.Client{
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxIdleConnDuration: 60 * time.Second,
		},
		timeout:    timeout,
		maxRetries: defaultMaxRetries,
	}
}

// postJSON sends the body and retries transient failures with fibonacci
// backoff. The response body is copied out before the fasthttp buffers are
// released.
func (c *httpClient) postJSON(ctx context.Context, path string, body []byte) ([]byte, error) {
	var result []byte

	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewFibonacci(retryBaseDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req := fasthttp.AcquireRequest()
		resp := fasthttp.AcquireResponse()
		defer fasthttp.ReleaseRequest(req)
		defer fasthttp.ReleaseResponse(resp)

		req.SetRequestURI(c.base + path)
		req.Header.SetMethod(fasthttp.MethodPost)
		req.Header.SetContentType("application/json")
		req.SetBody(body)

		deadline, ok := ctx.Deadline()
		if !ok {
			deadline = time.Now().Add(c.timeout)
		}
		if err := c.client.DoDeadline(req, resp, deadline); err != nil {
			return retry.RetryableError(fmt.Errorf("%w: %v", ErrProviderUnavailable, err))
		}

		code := resp.StatusCode()
		if code != fasthttp.StatusOK && code != fasthttp.StatusAccepted {
			err := fmt.Errorf("provider returned status %d: %s", code, resp.Body())
			if transientStatus(code) {
				return retry.RetryableError(err)
			}
			return err
		}

		result = append(result[:0], resp.Body()...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *httpClient) get(ctx context.Context, path string) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.base + path)
	req.Header.SetMethod(fasthttp.MethodGet)

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.timeout)
	}
	if err := c.client.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("provider returned status %d", resp.StatusCode())
	}

	out := make([]byte, len(resp.Body()))
	copy(out, resp.Body())
	return out, nil
}

var nonDigits = regexp.MustCompile(`[^\d+]`)

// NormalizePhone strips formatting and coerces the number into E.164. Bare
// ten-digit numbers are assumed to be US/Canada.
func NormalizePhone(raw string) (string, error) {
	s := nonDigits.ReplaceAllString(strings.TrimSpace(raw), "")
	if s == "" {
		return "", ErrInvalidRecipient
	}

	if strings.HasPrefix(s, "+") {
		digits := s[1:]
		if len(digits) < 8 || len(digits) > 15 {
			return "", ErrInvalidRecipient
		}
		return s, nil
	}

	switch {
	case len(s) == 10:
		return "+1" + s, nil
	case len(s) == 11 && strings.HasPrefix(s, "1"):
		return "+" + s, nil
	case len(s) >= 8 && len(s) <= 15:
		return "+" + s, nil
	default:
		return "", ErrInvalidRecipient
	}
}
