package protocol

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/gorilla/websocket"

	"pumpsubscriber/internal/logging"
	"pumpsubscriber/internal/metrics"
)

// WSConn is the subset of *websocket.Conn the Session drives. Narrowed to
// an interface so tests can supply a fake without standing up a real
// listener, the way the teacher's pkg/websocket/client.go keeps its
// dialer behind a small seam.
type WSConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Session drives one broker connection end to end: handshake, PING/PONG,
// and dispatch. One Session instance is good for exactly one connection;
// the Supervisor constructs a fresh one per reconnect.
type Session struct {
	conn    WSConn
	framer  *Framer
	creds   Credentials
	printer *logging.Printer
	metrics *metrics.Metrics
	onInfo  func([]byte)

	handshakeDone bool
}

// NewSession wraps conn for one connection's lifetime. onInfo, if
// non-nil, receives the raw INFO JSON body once, before CONNECT is sent —
// it is the Payload Dispatcher's hook for the require_info_keys check
// (spec.md §4.4.1).
func NewSession(conn WSConn, creds Credentials, printer *logging.Printer, m *metrics.Metrics, onInfo func([]byte)) *Session {
	return &Session{
		conn:    conn,
		framer:  NewFramer(),
		creds:   creds,
		printer: printer,
		metrics: m,
		onInfo:  onInfo,
	}
}

// Run reads frames until a fatal condition, forwarding every delivered
// Message to onMessage. It always returns a non-nil error — a clean
// broker-initiated close still surfaces as an error from conn.ReadMessage,
// per spec.md §4.2's fatal-conditions list.
func (s *Session) Run(onMessage func(Message)) error {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("websocket read: %w", err)
		}
		s.framer.Feed(data)

		for {
			ev, ok, err := s.framer.Next()
			if err != nil {
				return fmt.Errorf("frame parse: %w", err)
			}
			if !ok {
				break
			}
			if err := s.handle(ev, onMessage); err != nil {
				return err
			}
		}
	}
}

func (s *Session) handle(ev Event, onMessage func(Message)) error {
	switch ev.Kind {
	case EventInfo:
		s.count("info")
		if !s.handshakeDone {
			s.logInfoSnapshot(ev.InfoRaw)
			if s.onInfo != nil {
				s.onInfo(ev.InfoRaw)
			}
			if err := s.handshake(); err != nil {
				return fmt.Errorf("handshake: %w", err)
			}
			s.handshakeDone = true
			if s.metrics != nil {
				s.metrics.SetSessionConnected(true)
			}
		}
	case EventPing:
		s.count("ping")
		if err := s.send([]byte("PONG\r\n")); err != nil {
			return fmt.Errorf("pong reply: %w", err)
		}
	case EventPong:
		s.count("pong")
	case EventErr:
		s.count("err")
		return fmt.Errorf("broker error: %s", ev.ErrText)
	case EventMessage:
		s.count("msg")
		onMessage(ev.Message)
	}
	return nil
}

func (s *Session) count(kind string) {
	if s.metrics != nil {
		s.metrics.FrameParsed(kind)
	}
}

// logInfoSnapshot logs the sorted key set of the server's INFO payload,
// per spec.md §4.2 ("log a snapshot of the JSON keys (sorted, for
// diagnostics)"). The INFO body itself is not otherwise inspected.
func (s *Session) logInfoSnapshot(raw []byte) {
	if s.printer == nil {
		return
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		s.printer.Log(
			logging.F("event", "info_parse_error"),
			logging.F("error", err.Error()),
		)
		return
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	s.printer.Log(
		logging.F("event", "info_received"),
		logging.F("keys", keys),
	)
}

// handshake sends CONNECT, the two fixed subscriptions, and an initial
// PING, in the order spec.md §4.2 mandates.
func (s *Session) handshake() error {
	connectLine, err := EncodeConnectLine(BuildConnectOptions(s.creds))
	if err != nil {
		return err
	}
	if err := s.send(connectLine); err != nil {
		return err
	}
	if err := s.send([]byte("SUB advancedNewCoinCreated 4\r\n")); err != nil {
		return err
	}
	if err := s.send([]byte("SUB coinImageUpdated.> 2\r\n")); err != nil {
		return err
	}
	return s.send([]byte("PING\r\n"))
}

func (s *Session) send(data []byte) error {
	return s.conn.WriteMessage(websocket.TextMessage, data)
}
