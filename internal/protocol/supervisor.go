package protocol

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"pumpsubscriber/internal/logging"
	"pumpsubscriber/internal/metrics"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// userAgent mirrors a current desktop Chrome build, matching the
// handshake headers spec.md §6 lists for the upstream broker.
const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// Dialer opens one WebSocket connection to url. Exposed as a field on
// Supervisor so tests can substitute a fake transport.
type Dialer func(ctx context.Context, url, bearer string) (WSConn, error)

// DefaultDialer dials with gorilla/websocket, sending the handshake
// headers spec.md §6 requires, the same pattern as the teacher's
// loadtest/main.go Connection.Connect (custom Dialer, custom header set).
func DefaultDialer(ctx context.Context, url, bearer string) (WSConn, error) {
	headers := http.Header{}
	headers.Set("Sec-WebSocket-Protocol", "nats")
	headers.Set("Origin", "https://pump.fun")
	headers.Set("Pragma", "no-cache")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Accept-Encoding", "gzip, deflate, br, zstd")
	headers.Set("Accept-Language", "zh-CN,zh;q=0.9")
	headers.Set("User-Agent", userAgent)
	if bearer != "" {
		headers.Set("Authorization", "Bearer "+bearer)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, headers)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Supervisor owns the reconnect loop: construct a Session, run it to
// completion, sleep with exponential backoff, repeat. Grounded on
// original_source/src/main.rs's outer reconnect loop and the teacher's
// pkg/nats/client.go reconnect/disconnect handler logging convention.
type Supervisor struct {
	URL    string
	Creds  Credentials
	Bearer string

	Printer *logging.Printer
	Metrics *metrics.Metrics
	Dial    Dialer
}

// NewSupervisor builds a Supervisor with the default gorilla/websocket dialer.
func NewSupervisor(url string, creds Credentials, bearer string, printer *logging.Printer, m *metrics.Metrics) *Supervisor {
	return &Supervisor{
		URL:     url,
		Creds:   creds,
		Bearer:  bearer,
		Printer: printer,
		Metrics: m,
		Dial:    DefaultDialer,
	}
}

// Run loops until ctx is cancelled. onMessage receives every dispatched
// Message and onInfo (optional) receives each connection's raw first-INFO
// JSON body, across every connection's lifetime.
func (s *Supervisor) Run(ctx context.Context, onMessage func(Message), onInfo func([]byte)) {
	backoff := initialBackoff

	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := s.Dial(ctx, s.URL, s.Bearer)
		if err != nil {
			backoff = s.reconnect(ctx, err, backoff)
			continue
		}

		session := NewSession(conn, s.Creds, s.Printer, s.Metrics, onInfo)
		runErr := session.Run(onMessage)
		if s.Metrics != nil {
			s.Metrics.SetSessionConnected(false)
		}

		if runErr == nil {
			// Dead in practice: Session.Run always returns a non-nil error.
			// Preserved for parity with original_source's backoff-reset-on-Ok
			// branch (see DESIGN.md).
			backoff = initialBackoff
			continue
		}
		backoff = s.reconnect(ctx, runErr, backoff)
	}
}

func (s *Supervisor) reconnect(ctx context.Context, cause error, backoff time.Duration) time.Duration {
	if s.Metrics != nil {
		s.Metrics.Reconnected(backoff)
	}
	if s.Printer != nil {
		s.Printer.Log(
			logging.F("event", "reconnect"),
			logging.F("error", cause.Error()),
			logging.F("backoff_s", backoff.Seconds()),
		)
	}

	timer := time.NewTimer(backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}

	next := backoff * 2
	if next > maxBackoff {
		next = maxBackoff
	}
	return next
}
