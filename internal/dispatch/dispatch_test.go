package dispatch

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"pumpsubscriber/internal/config"
	"pumpsubscriber/internal/logging"
	"pumpsubscriber/internal/metrics"
)

// testMetrics is shared by every test: metrics.New registers its
// collectors on the default Prometheus registry, which panics if done twice.
var testMetrics = metrics.New()

func newTestDispatcher(policy config.ValidateConfig, fetchEnabled bool, onImage ImageUpdateHandler) (*Dispatcher, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	printer := logging.NewPrinter(buf, false)
	return New(printer, testMetrics, policy, fetchEnabled, onImage), buf
}

func lastLine(buf *bytes.Buffer) map[string]interface{} {
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var m map[string]interface{}
	json.Unmarshal([]byte(lines[len(lines)-1]), &m)
	return m
}

func TestDispatchQuotedPayloadUnwrap(t *testing.T) {
	var gotSubject, gotMint, gotCID string
	d, _ := newTestDispatcher(config.ValidateConfig{}, true, func(subject, mint, cid string) {
		gotSubject, gotMint, gotCID = subject, mint, cid
	})

	body := []byte(`"{\"mint\":\"X\",\"image\":\"ipfs://bafy/\"}"`)
	d.Handle("coinImageUpdated.x", body)

	if gotSubject != "coinImageUpdated.x" || gotMint != "X" || gotCID != "bafy" {
		t.Fatalf("got subject=%q mint=%q cid=%q", gotSubject, gotMint, gotCID)
	}
}

func TestDispatchNonObjectPayload(t *testing.T) {
	d, buf := newTestDispatcher(config.ValidateConfig{}, false, nil)
	d.Handle("advancedNewCoinCreated", []byte(`[1,2,3]`))

	line := lastLine(buf)
	if line["non_object"] != true {
		t.Fatalf("expected non_object record, got %v", line)
	}
}

func TestDispatchParseError(t *testing.T) {
	d, buf := newTestDispatcher(config.ValidateConfig{}, false, nil)
	d.Handle("advancedNewCoinCreated", []byte(`{not json`))

	line := lastLine(buf)
	if line["error"] == nil {
		t.Fatalf("expected an error field, got %v", line)
	}
}

func TestDispatchSkipNoImage(t *testing.T) {
	called := false
	d, buf := newTestDispatcher(config.ValidateConfig{}, true, func(string, string, string) { called = true })
	d.Handle("coinImageUpdated.x", []byte(`{"mint":"X"}`))

	if called {
		t.Fatal("onImage should not fire with no image field")
	}
	line := lastLine(buf)
	if line["event"] != "smart_ipfs_skip" || line["reason"] != "no_image" {
		t.Fatalf("expected smart_ipfs_skip/no_image, got %v", line)
	}
	if line["mint"] != "X" {
		t.Fatalf("expected mint to be carried on the skip record, got %v", line)
	}
}

func TestDispatchSkipNoCID(t *testing.T) {
	d, buf := newTestDispatcher(config.ValidateConfig{}, true, nil)
	d.Handle("coinImageUpdated.x", []byte(`{"mint":"X","image":"https://example.com/not-ipfs"}`))

	line := lastLine(buf)
	if line["event"] != "smart_ipfs_skip" || line["reason"] != "no_cid" {
		t.Fatalf("expected smart_ipfs_skip/no_cid, got %v", line)
	}
	if line["mint"] != "X" {
		t.Fatalf("expected mint to be carried on the skip record, got %v", line)
	}
	if line["image_preview"] != "https://example.com/not-ipfs" {
		t.Fatalf("expected image_preview on the skip record, got %v", line)
	}
}

func TestDispatchSkipParseError(t *testing.T) {
	d, buf := newTestDispatcher(config.ValidateConfig{}, true, nil)
	d.Handle("coinImageUpdated.x", []byte(`{not json`))

	line := lastLine(buf)
	if line["event"] != "smart_ipfs_skip" || line["reason"] != "json_parse_error" {
		t.Fatalf("expected smart_ipfs_skip/json_parse_error, got %v", line)
	}
	if line["error"] == nil {
		t.Fatalf("expected error field on the skip record, got %v", line)
	}
}

func TestPreviewTruncatesByRuneNotByte(t *testing.T) {
	// 250 multi-byte runes: a byte-based slice at 200 bytes would cut a
	// rune in half and corrupt the output (or panic on invalid UTF-8
	// round-tripping through string()).
	text := strings.Repeat("é", 250)
	got := preview([]byte(text))
	want := strings.Repeat("é", payloadPreviewLen)
	if got != want {
		t.Fatalf("expected %d-rune preview, got %d runes", payloadPreviewLen, len([]rune(got)))
	}
}

func TestDispatchValidationMissingMint(t *testing.T) {
	policy := config.ValidateConfig{Enabled: true, RequireMint: true}
	d, buf := newTestDispatcher(policy, false, nil)
	d.Handle("advancedNewCoinCreated", []byte(`{"image":"ipfs://x"}`))

	line := lastLine(buf)
	if line["event"] != "validation_error" || line["reason"] != "missing_mint" {
		t.Fatalf("expected missing_mint validation_error, got %v", line)
	}
}

func TestDispatchValidationSubjectDisallowed(t *testing.T) {
	policy := config.ValidateConfig{Enabled: true, AllowedSubjectPrefixes: []string{"advancedNewCoinCreated"}}
	d, buf := newTestDispatcher(policy, false, nil)
	d.Handle("somethingElse", []byte(`{"mint":"X"}`))

	line := lastLine(buf)
	if line["event"] != "validation_error" || line["reason"] != "subject_disallowed" {
		t.Fatalf("expected subject_disallowed, got %v", line)
	}
}

func TestValidateInfoKeysMissing(t *testing.T) {
	policy := config.ValidateConfig{Enabled: true, RequireInfoKeys: []string{"server_id", "version"}}
	d, buf := newTestDispatcher(policy, false, nil)
	d.ValidateInfoKeys([]byte(`{"server_id":"x"}`))

	line := lastLine(buf)
	if line["event"] != "validation_error" || line["reason"] != "info_key_missing" || line["key"] != "version" {
		t.Fatalf("expected info_key_missing for version, got %v", line)
	}
}
