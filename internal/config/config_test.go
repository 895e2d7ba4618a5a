package config

import (
	"os"
	"testing"
)

func clearCredEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"PUMP_NATS_USER", "PUMP_NATS_PASS", "PUMP_NATS_PASSWORD", "PUMP_NATS_TOKEN", "PUMP_NATS_JWT", "PUMP_NATS_SIG"} {
		os.Unsetenv(k)
	}
}

func TestLoadCredentialsDefaults(t *testing.T) {
	clearCredEnv(t)
	c := loadCredentials()
	if c.User != "subscriber" || c.Pass != "OktDhmZ2D3CtYUiM" {
		t.Fatalf("expected default credentials, got %+v", c)
	}
	if c.HasJWT || c.HasToken {
		t.Fatalf("expected no jwt/token selected, got %+v", c)
	}
}

func TestLoadCredentialsPasswordAlias(t *testing.T) {
	clearCredEnv(t)
	os.Setenv("PUMP_NATS_PASSWORD", "alias-pass")
	defer os.Unsetenv("PUMP_NATS_PASSWORD")

	c := loadCredentials()
	if c.Pass != "alias-pass" {
		t.Fatalf("expected alias password, got %q", c.Pass)
	}
}

func TestLoadCredentialsPassTakesPrecedenceOverAlias(t *testing.T) {
	clearCredEnv(t)
	os.Setenv("PUMP_NATS_PASS", "primary-pass")
	os.Setenv("PUMP_NATS_PASSWORD", "alias-pass")
	defer os.Unsetenv("PUMP_NATS_PASS")
	defer os.Unsetenv("PUMP_NATS_PASSWORD")

	c := loadCredentials()
	if c.Pass != "primary-pass" {
		t.Fatalf("expected primary password to win, got %q", c.Pass)
	}
}

func TestLoadCredentialsJWTPrecedence(t *testing.T) {
	clearCredEnv(t)
	os.Setenv("PUMP_NATS_JWT", "jwt-val")
	os.Setenv("PUMP_NATS_TOKEN", "token-val")
	defer os.Unsetenv("PUMP_NATS_JWT")
	defer os.Unsetenv("PUMP_NATS_TOKEN")

	c := loadCredentials()
	if !c.HasJWT || c.JWT != "jwt-val" {
		t.Fatalf("expected jwt selected, got %+v", c)
	}
}

func TestEnvBoolParsing(t *testing.T) {
	os.Setenv("TEST_BOOL", "YES")
	defer os.Unsetenv("TEST_BOOL")
	if !envBool("TEST_BOOL", false) {
		t.Fatal("expected YES to parse true")
	}
	if envBool("TEST_BOOL_UNSET", true) != true {
		t.Fatal("expected default to pass through when unset")
	}
}

func TestEnvCSVTrimsAndDrops(t *testing.T) {
	os.Setenv("TEST_CSV", " a, b ,, c")
	defer os.Unsetenv("TEST_CSV")
	got := envCSV("TEST_CSV")
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestEnvInt64FallsBackOnParseFailure(t *testing.T) {
	os.Setenv("TEST_INT", "not-a-number")
	defer os.Unsetenv("TEST_INT")
	if got := envInt64("TEST_INT", 42); got != 42 {
		t.Fatalf("expected fallback to default, got %d", got)
	}
}
