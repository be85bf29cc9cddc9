package remote

import (
	"bytes"
	"crypto/rand"
	"io"
	"math"
	"math/big"
	"net/http"
	"time"
)

// retryDo executes an HTTP request with exponential backoff retry:
// delay = base * 2^attempt + jitter(1..10ms). Retries only on network errors,
// HTTP 429, and HTTP 5xx responses; 4xx client errors are returned as-is.
// For requests with a body, the body is buffered and replayed on retry.
// When the last attempt still gets a retryable status, that response is
// returned with its body unread.
func retryDo(client *http.Client, req *http.Request, maxAttempts int) (*http.Response, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var bodyBytes []byte
	if req.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		req.Body.Close()
	}

	const base = 500 * time.Millisecond

	var lastResp *http.Response
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(backoffDelay(base, attempt))
		}

		if bodyBytes != nil {
			req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
			req.ContentLength = int64(len(bodyBytes))
		}

		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			lastResp = nil
			continue
		}

		if !isRetryableStatus(resp.StatusCode) || attempt == maxAttempts-1 {
			return resp, nil
		}

		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		lastResp = resp
		lastErr = nil
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return lastResp, nil
}

// backoffDelay computes base*2^attempt plus 1-10ms of jitter.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	scaled := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	return scaled + jitter()
}

func jitter() time.Duration {
	n, err := rand.Int(rand.Reader, big.NewInt(10))
	if err != nil {
		return time.Millisecond
	}
	return time.Duration(n.Int64()+1) * time.Millisecond
}

// isRetryableStatus returns true for HTTP status codes that should be
// retried: 429 and any 5xx.
func isRetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}
