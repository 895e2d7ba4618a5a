// Package protocol implements the framed text protocol engine: the
// Framer (byte-stream to broker frames), the Session (handshake,
// subscriptions, heartbeat, dispatch) and the Supervisor (reconnect with
// backoff). Grounded primarily on original_source/src/smart_fetcher.rs's
// run_once state machine, reshaped into Go's buffer/slice idiom the way
// the teacher's pkg/websocket/client.go reshapes a read-pump into
// goroutines and channels.
package protocol

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/nats-io/nats.go"
)

// EventKind discriminates the broker frames the Framer can emit.
type EventKind int

const (
	EventInfo EventKind = iota
	EventPing
	EventPong
	EventErr
	EventMessage
)

// Message is one delivered MSG/HMSG payload: subject, optional headers,
// and body. Headers reuse nats.go's exported Header type (a
// map[string][]string) so the NATS/1.0 header wire format our HMSG
// frames carry needs no translation for a caller already using nats.go
// elsewhere — see DESIGN.md for why nats.Conn itself is not used.
type Message struct {
	Subject string
	SID     string
	Reply   string
	Headers nats.Header
	Body    []byte
}

// Event is one frame surfaced by the Framer.
type Event struct {
	Kind    EventKind
	InfoRaw []byte // EventInfo: the raw JSON suffix of the INFO line
	ErrText string // EventErr
	Message Message // EventMessage
}

// pendingMsg tracks an in-flight MSG/HMSG control line awaiting its
// payload bytes.
type pendingMsg struct {
	subject    string
	sid        string
	reply      string
	headerLen  int
	payloadLen int
}

// Framer turns a byte stream into a sequence of Events. It is
// transport-agnostic: callers Feed it bytes from either WebSocket text or
// binary frames, in any fragmentation, and it never emits an Event before
// the event's payload (if any) is fully buffered.
type Framer struct {
	buf     []byte
	pending *pendingMsg
}

// NewFramer returns an empty Framer.
func NewFramer() *Framer {
	return &Framer{}
}

// Feed appends newly received bytes to the internal buffer.
func (f *Framer) Feed(data []byte) {
	f.buf = append(f.buf, data...)
}

// Next attempts to produce the next Event from buffered bytes. It returns
// ok=false when more input is needed (the caller should Feed more bytes
// and call Next again); it returns a non-nil error only for a malformed
// MSG/HMSG control line, which is fatal for the connection per spec.md §7.
func (f *Framer) Next() (Event, bool, error) {
	for {
		if f.pending != nil {
			ev, ok, err := f.tryCompletePayload()
			if err != nil || !ok {
				return Event{}, ok, err
			}
			return ev, true, nil
		}

		idx := bytes.Index(f.buf, []byte("\r\n"))
		if idx < 0 {
			return Event{}, false, nil
		}
		line := f.buf[:idx]
		f.buf = f.buf[idx+2:]

		if len(line) == 0 {
			continue
		}

		ev, pending, err := classifyLine(line)
		if err != nil {
			return Event{}, false, err
		}
		if pending != nil {
			f.pending = pending
			continue
		}
		if ev != nil {
			return *ev, true, nil
		}
		// Unrecognized control line: skip.
	}
}

func (f *Framer) tryCompletePayload() (Event, bool, error) {
	p := f.pending
	need := p.payloadLen + 2
	if len(f.buf) < need {
		return Event{}, false, nil
	}

	payload := f.buf[:p.payloadLen]
	if f.buf[p.payloadLen] == '\r' && f.buf[p.payloadLen+1] == '\n' {
		f.buf = f.buf[need:]
	} else {
		f.buf = f.buf[p.payloadLen:]
	}

	msg := Message{
		Subject: p.subject,
		SID:     p.sid,
		Reply:   p.reply,
	}
	if p.headerLen > 0 {
		msg.Headers = parseHeaders(payload[:p.headerLen])
		msg.Body = payload[p.headerLen:]
	} else {
		msg.Body = payload
	}

	f.pending = nil
	return Event{Kind: EventMessage, Message: msg}, true, nil
}

func classifyLine(line []byte) (*Event, *pendingMsg, error) {
	s := string(line)

	switch {
	case strings.HasPrefix(s, "PING"):
		return &Event{Kind: EventPing}, nil, nil
	case strings.HasPrefix(s, "PONG"):
		return &Event{Kind: EventPong}, nil, nil
	case strings.HasPrefix(s, "-ERR"):
		return &Event{Kind: EventErr, ErrText: s}, nil, nil
	case strings.HasPrefix(s, "INFO "):
		return &Event{Kind: EventInfo, InfoRaw: []byte(s[5:])}, nil, nil
	case strings.HasPrefix(s, "MSG "):
		p, err := parseMSG(s)
		if err != nil {
			return nil, nil, err
		}
		return nil, p, nil
	case strings.HasPrefix(s, "HMSG "):
		p, err := parseHMSG(s)
		if err != nil {
			return nil, nil, err
		}
		return nil, p, nil
	default:
		return nil, nil, nil
	}
}

// parseMSG handles "MSG subject sid [reply] payload-len": 4 tokens with
// no reply, 5 with one.
func parseMSG(line string) (*pendingMsg, error) {
	tokens := strings.Fields(line)
	var subject, sid, reply, lenTok string
	switch len(tokens) {
	case 4:
		subject, sid, lenTok = tokens[1], tokens[2], tokens[3]
	case 5:
		subject, sid, reply, lenTok = tokens[1], tokens[2], tokens[3], tokens[4]
	default:
		return nil, fmt.Errorf("bad MSG header: %s", line)
	}

	payloadLen, err := strconv.Atoi(lenTok)
	if err != nil {
		return nil, fmt.Errorf("invalid length in MSG: %s", line)
	}
	return &pendingMsg{subject: subject, sid: sid, reply: reply, payloadLen: payloadLen}, nil
}

// parseHMSG handles "HMSG subject sid [reply] header-len total-len": 5
// tokens with no reply, 6 with one.
func parseHMSG(line string) (*pendingMsg, error) {
	tokens := strings.Fields(line)
	var subject, sid, reply, hdrTok, totalTok string
	switch len(tokens) {
	case 5:
		subject, sid, hdrTok, totalTok = tokens[1], tokens[2], tokens[3], tokens[4]
	case 6:
		subject, sid, reply, hdrTok, totalTok = tokens[1], tokens[2], tokens[3], tokens[4], tokens[5]
	default:
		return nil, fmt.Errorf("bad HMSG header: %s", line)
	}

	headerLen, err := strconv.Atoi(hdrTok)
	if err != nil {
		return nil, fmt.Errorf("invalid hdr_len in HMSG: %s", line)
	}
	totalLen, err := strconv.Atoi(totalTok)
	if err != nil {
		return nil, fmt.Errorf("invalid total_len in HMSG: %s", line)
	}
	return &pendingMsg{subject: subject, sid: sid, reply: reply, headerLen: headerLen, payloadLen: totalLen}, nil
}

// parseHeaders decodes a NATS/1.0 header block ("NATS/1.0\r\nKey: Val\r\n\r\n")
// into a nats.Header. Malformed lines are skipped rather than treated as
// fatal — header parsing is a diagnostic aid, not load-bearing for the
// dispatch path, which only needs the body.
func parseHeaders(data []byte) nats.Header {
	h := nats.Header{}
	lines := strings.Split(string(data), "\r\n")
	if len(lines) == 0 {
		return h
	}
	for _, line := range lines[1:] {
		if line == "" {
			break
		}
		idx := strings.IndexByte(line, ':')
		if idx < 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		val := strings.TrimSpace(line[idx+1:])
		h[key] = append(h[key], val)
	}
	return h
}
