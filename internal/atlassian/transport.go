package atlassian

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// LoggingTransport records method, path, status and latency of every request at
// debug level. Query strings and headers are left out of the log.
type LoggingTransport struct {
	base http.RoundTripper
	log  zerolog.Logger
}

func NewLoggingTransport(base http.RoundTripper, log zerolog.Logger) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &LoggingTransport{base: base, log: log}
}

func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, fmt.Errorf("atlassian: nil request")
	}
	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	ev := t.log.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Dur("duration", time.Since(start))
	if err != nil {
		ev.Err(err).Msg("http request failed")
		return nil, err
	}
	ev.Int("status", resp.StatusCode).Msg("http request")
	return resp, nil
}
