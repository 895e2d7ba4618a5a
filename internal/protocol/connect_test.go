package protocol

import (
	"encoding/json"
	"testing"
)

func TestConnectCredentialPrecedence(t *testing.T) {
	creds := Credentials{
		HasJWT:   true,
		JWT:      "jwt-value",
		Sig:      "sig-value",
		HasToken: true,
		Token:    "token-value",
		User:     "user-value",
		Pass:     "pass-value",
	}

	opts := BuildConnectOptions(creds)
	body, err := json.Marshal(opts)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(body, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if m["jwt"] != "jwt-value" {
		t.Fatalf("expected jwt in CONNECT JSON, got %v", m["jwt"])
	}
	for _, key := range []string{"auth_token", "user", "pass"} {
		if _, present := m[key]; present {
			t.Fatalf("expected %q absent when jwt is set, got %v", key, m[key])
		}
	}
}

func TestConnectTokenBeatsUserPass(t *testing.T) {
	creds := Credentials{HasToken: true, Token: "tok", User: "u", Pass: "p"}
	opts := BuildConnectOptions(creds)
	if opts.Auth != "tok" {
		t.Fatalf("expected auth_token selected, got %+v", opts)
	}
	if opts.User != "" || opts.Pass != "" {
		t.Fatalf("expected user/pass unset, got %+v", opts)
	}
}

func TestConnectUserPassFallback(t *testing.T) {
	creds := Credentials{User: "u", Pass: "p"}
	opts := BuildConnectOptions(creds)
	if opts.User != "u" || opts.Pass != "p" {
		t.Fatalf("expected user/pass, got %+v", opts)
	}
}

func TestEncodeConnectLineEndsWithCRLF(t *testing.T) {
	line, err := EncodeConnectLine(BuildConnectOptions(Credentials{User: "u", Pass: "p"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(line) < 2 || string(line[len(line)-2:]) != "\r\n" {
		t.Fatalf("expected CRLF terminator, got %q", line)
	}
	if string(line[:8]) != "CONNECT " {
		t.Fatalf("expected CONNECT prefix, got %q", line[:8])
	}
}
