package recognizers

import (
	"context"
	"net/http"
	"net/http/httptrace"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/httptrace/otelhttptrace"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/veilpii/veil/internal"
)

// NewRetryableHTTPClient returns a plain *http.Client that retries with
// backoff and records an OpenTelemetry span per attempt.
func NewRetryableHTTPClient(retryMax int, timeout time.Duration) *http.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = retryMax
	rc.HTTPClient.Timeout = timeout
	rc.Logger = internal.NewLeveledLogrus(log)
	rc.Backoff = retryablehttp.DefaultBackoff
	rc.CheckRetry = retryPolicy

	return &http.Client{
		Transport: otelhttp.NewTransport(
			rc.StandardClient().Transport,
			otelhttp.WithClientTrace(func(ctx context.Context) *httptrace.ClientTrace {
				return otelhttptrace.NewClientTrace(ctx)
			}),
		),
	}
}

// retryPolicy gives up on cancelled contexts and on client errors, which a
// retry would only repeat.
func retryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if resp != nil && resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}
