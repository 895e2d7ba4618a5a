// Package logging implements the Structured Printer: every record the
// system emits is a single JSON object with an inserted ts field, written
// atomically so concurrent fetch goroutines never interleave partial lines.
package logging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

const timeLayout = "2006-01-02 15:04:05.000"

// Printer serializes JSON-line writes to an underlying io.Writer.
type Printer struct {
	mu        sync.Mutex
	w         io.Writer
	tsPrefix  bool
	now       func() time.Time
}

// NewPrinter builds a Printer writing to w. If tsPrefix is set, each line
// is additionally prefixed with "[ts] ", matching the smart-fetcher
// binary's convention in original_source/src/smart_fetcher.rs.
func NewPrinter(w io.Writer, tsPrefix bool) *Printer {
	return &Printer{w: w, tsPrefix: tsPrefix, now: time.Now}
}

// NewStdoutPrinter is the common case: write to os.Stdout.
func NewStdoutPrinter(tsPrefix bool) *Printer {
	return NewPrinter(os.Stdout, tsPrefix)
}

// Fields is a single log record's key/value pairs, in insertion order.
type Fields []Field

// Field is one key/value pair of a log record.
type Field struct {
	Key   string
	Value interface{}
}

// F is shorthand for constructing a Field.
func F(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Log emits one JSON-line record with a ts field inserted first, followed
// by fields in the order given.
func (p *Printer) Log(fields ...Field) {
	ts := p.now().Format(timeLayout)

	buf := &bytes.Buffer{}
	buf.WriteByte('{')
	writeJSONField(buf, "ts", ts, true)
	for _, f := range fields {
		writeJSONField(buf, f.Key, f.Value, false)
	}
	buf.WriteByte('}')

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tsPrefix {
		fmt.Fprintf(p.w, "[%s] %s\n", ts, buf.String())
		return
	}
	fmt.Fprintf(p.w, "%s\n", buf.String())
}

func writeJSONField(buf *bytes.Buffer, key string, value interface{}, first bool) {
	if !first {
		buf.WriteByte(',')
	}
	k, _ := json.Marshal(key)
	buf.Write(k)
	buf.WriteByte(':')
	v, err := json.Marshal(value)
	if err != nil {
		v, _ = json.Marshal(fmt.Sprintf("%v", value))
	}
	buf.Write(v)
}
