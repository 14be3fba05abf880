// internal/common/http/client.go
package http

import (
	"context"
	"crypto/x509"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	defaultRetryWaitMin = 500 * time.Millisecond
	defaultRetryWaitMax = 5 * time.Second
)

// Options configures the retrying client. A zero RetryMax disables retries.
type Options struct {
	Timeout      time.Duration
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

// Client is a *http.Client whose transport retries transport errors, 429 and
// 5xx responses with exponential backoff.
type Client struct {
	httpClient *http.Client
}

func NewClient(opts Options) *Client {
	base := &http.Client{Timeout: opts.Timeout}
	if opts.RetryMax <= 0 {
		return &Client{httpClient: base}
	}

	waitMin := opts.RetryWaitMin
	if waitMin == 0 {
		waitMin = defaultRetryWaitMin
	}
	waitMax := opts.RetryWaitMax
	if waitMax == 0 {
		waitMax = defaultRetryWaitMax
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient = base
	rc.Logger = nil
	rc.RetryMax = opts.RetryMax
	rc.RetryWaitMin = waitMin
	rc.RetryWaitMax = waitMax
	rc.CheckRetry = checkRetry
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{httpClient: rc.StandardClient()}
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req)
}

// checkRetry follows retryablehttp.DefaultRetryPolicy but stops on context
// errors and certificate failures.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			var unknownAuthority x509.UnknownAuthorityError
			if errors.As(urlErr.Err, &unknownAuthority) {
				return false, err
			}
		}
		return true, nil
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return true, nil
	}
	if resp.StatusCode == 0 || (resp.StatusCode >= 500 && resp.StatusCode != http.StatusNotImplemented) {
		return true, nil
	}
	return false, nil
}
