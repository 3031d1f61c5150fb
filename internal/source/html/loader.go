package html

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"hermannm.dev/wrap"

	"observatory/internal/config"
	"observatory/internal/metrics"
)

// Loader fetches HTML from a local file or an http(s) URL with a consistent
// timeout policy.
type Loader struct {
	client  *http.Client
	timeout time.Duration
}

// NewLoader creates a Loader. If client is nil, http.DefaultClient is used.
func NewLoader(client *http.Client, timeout time.Duration) *Loader {
	if client == nil {
		client = http.DefaultClient
	}
	return &Loader{client: client, timeout: timeout}
}

// Load returns the document at path.
//
// On non-2xx HTTP responses, Load returns an error that includes the status
// code and up to 4KB of the response body.
func (l *Loader) Load(ctx context.Context, path string) ([]byte, error) {
	if !config.IsRemote(path) {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, wrap.Error(err, "read file")
		}
		return b, nil
	}

	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, wrap.Error(err, "new request")
	}
	req.Header.Set("User-Agent", "observatory/1.0")

	start := time.Now()
	resp, err := l.client.Do(req)
	if err != nil {
		metrics.RecordHTTP(0, time.Since(start), err)
		return nil, wrap.Error(err, "http get")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		metrics.RecordHTTP(resp.StatusCode, time.Since(start), nil)
		return nil, fmt.Errorf("http status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	b, err := io.ReadAll(resp.Body)
	metrics.RecordHTTP(resp.StatusCode, time.Since(start), err)
	if err != nil {
		return nil, wrap.Error(err, "read body")
	}
	return b, nil
}
