package protocol

import (
	"errors"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
)

// fakeConn is a minimal WSConn fake: reads come from a queue of frames,
// writes are recorded for assertions.
type fakeConn struct {
	mu      sync.Mutex
	reads   [][]byte
	readPos int
	writes  [][]byte
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readPos >= len(f.reads) {
		return 0, nil, errors.New("fakeConn: no more reads")
	}
	data := f.reads[f.readPos]
	f.readPos++
	return websocket.TextMessage, data, nil
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	f.writes = append(f.writes, cp)
	return nil
}

func (f *fakeConn) Close() error { return nil }

func TestSessionHandshakeOrder(t *testing.T) {
	conn := &fakeConn{reads: [][]byte{[]byte("INFO {}\r\n")}}
	session := NewSession(conn, Credentials{User: "u", Pass: "p"}, nil, nil, nil)

	err := session.Run(func(Message) {})
	if err == nil {
		t.Fatal("expected Run to return an error once reads are exhausted")
	}

	conn.mu.Lock()
	defer conn.mu.Unlock()
	if len(conn.writes) != 4 {
		t.Fatalf("expected 4 outbound writes, got %d: %q", len(conn.writes), conn.writes)
	}
	if string(conn.writes[0][:8]) != "CONNECT " {
		t.Fatalf("expected CONNECT first, got %q", conn.writes[0])
	}
	if string(conn.writes[1]) != "SUB advancedNewCoinCreated 4\r\n" {
		t.Fatalf("expected first SUB, got %q", conn.writes[1])
	}
	if string(conn.writes[2]) != "SUB coinImageUpdated.> 2\r\n" {
		t.Fatalf("expected second SUB, got %q", conn.writes[2])
	}
	if string(conn.writes[3]) != "PING\r\n" {
		t.Fatalf("expected PING last, got %q", conn.writes[3])
	}
}

func TestSessionRepliesPongToPing(t *testing.T) {
	conn := &fakeConn{reads: [][]byte{[]byte("INFO {}\r\nPING\r\n")}}
	session := NewSession(conn, Credentials{User: "u", Pass: "p"}, nil, nil, nil)

	_ = session.Run(func(Message) {})

	conn.mu.Lock()
	defer conn.mu.Unlock()
	last := conn.writes[len(conn.writes)-1]
	if string(last) != "PONG\r\n" {
		t.Fatalf("expected trailing PONG reply, got %q", last)
	}
}

func TestSessionDispatchesMessage(t *testing.T) {
	conn := &fakeConn{reads: [][]byte{[]byte("INFO {}\r\nMSG coinImageUpdated.x 2 5\r\nhello\r\n")}}
	session := NewSession(conn, Credentials{User: "u", Pass: "p"}, nil, nil, nil)

	var got Message
	var called bool
	_ = session.Run(func(m Message) {
		got = m
		called = true
	})

	if !called {
		t.Fatal("expected onMessage to be invoked")
	}
	if got.Subject != "coinImageUpdated.x" || string(got.Body) != "hello" {
		t.Fatalf("unexpected message: %+v", got)
	}
}

func TestSessionErrFrameIsFatal(t *testing.T) {
	conn := &fakeConn{reads: [][]byte{[]byte("INFO {}\r\n-ERR 'Authorization Violation'\r\n")}}
	session := NewSession(conn, Credentials{User: "u", Pass: "p"}, nil, nil, nil)

	err := session.Run(func(Message) {})
	if err == nil {
		t.Fatal("expected -ERR to surface as a fatal error")
	}
}

func TestSessionOnInfoHookFires(t *testing.T) {
	conn := &fakeConn{reads: [][]byte{[]byte(`INFO {"server_id":"x"}` + "\r\n")}}
	var gotRaw []byte
	session := NewSession(conn, Credentials{User: "u", Pass: "p"}, nil, nil, func(raw []byte) {
		gotRaw = raw
	})

	_ = session.Run(func(Message) {})

	if string(gotRaw) != `{"server_id":"x"}` {
		t.Fatalf("unexpected onInfo payload: %q", gotRaw)
	}
}
