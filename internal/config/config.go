// Package config loads the environment-variable configuration inputs
// named in spec.md section 6, following the teacher's cmd/main.go
// applyEnvOverrides/getEnv pattern: read os.Getenv, fall back to a
// default, never error.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const DefaultNATSWSURL = "wss://prod-advanced.nats.realtime.pump.fun/"

// Credentials holds every CONNECT credential input side by side; the
// precedence (jwt[+sig] > token > user/pass) is applied later, by
// protocol.BuildConnectOptions.
type Credentials struct {
	JWT      string
	Sig      string
	Token    string
	User     string
	Pass     string
	HasJWT   bool
	HasToken bool
}

// Config is the full effective configuration for one process run.
type Config struct {
	NATSWSURL   string
	Credentials Credentials
	WSBearer    string

	Validate ValidateConfig
	Fetch    FetchConfig

	MetricsAddr           string
	SystemMetricsInterval time.Duration
	LogTSPrefix           bool
}

// ValidateConfig is the optional validation policy (spec.md §4.4.1).
type ValidateConfig struct {
	Enabled               bool
	AllowedSubjectPrefixes []string
	RequireMint           bool
	RequireImage          bool
	RequireInfoKeys       []string
}

// FetchConfig is the Hedged Fetch Engine's configuration (spec.md §3).
type FetchConfig struct {
	Enabled              bool
	LocalGatewayURL      string
	PublicGatewayURLs    []string
	LocalTimeout         time.Duration
	PublicTimeout        time.Duration
	MaxBytes             int64
	FallbackThreshold    time.Duration
}

var defaultPublicGateways = []string{
	"https://ipfs.io/ipfs",
	"https://gateway.pinata.cloud/ipfs",
	"https://cloudflare-ipfs.com/ipfs",
	"https://dweb.link/ipfs",
}

// Load reads the full configuration from the process environment.
func Load() Config {
	return Config{
		NATSWSURL:   envString("NATS_WS_URL", DefaultNATSWSURL),
		Credentials: loadCredentials(),
		WSBearer:    os.Getenv("PUMP_WS_BEARER"),

		Validate: ValidateConfig{
			Enabled:                envBool("VALIDATE_ENABLED", false),
			AllowedSubjectPrefixes: envCSV("VALIDATE_ALLOWED_SUBJECTS"),
			RequireMint:            envBool("VALIDATE_REQUIRE_MINT", false),
			RequireImage:           envBool("VALIDATE_REQUIRE_IMAGE", false),
			RequireInfoKeys:        envCSV("VALIDATE_INFO_KEYS"),
		},

		Fetch: FetchConfig{
			Enabled:           envBool("SMART_IPFS_ENABLED", true),
			LocalGatewayURL:   envString("SMART_IPFS_LOCAL_GATEWAY", "http://localhost:8080/ipfs"),
			PublicGatewayURLs: envCSVOrDefault("SMART_IPFS_PUBLIC_GATEWAYS", defaultPublicGateways),
			LocalTimeout:      envMillis("SMART_IPFS_LOCAL_TIMEOUT_MS", 5000),
			PublicTimeout:     envMillis("SMART_IPFS_PUBLIC_TIMEOUT_MS", 30000),
			MaxBytes:          envInt64("SMART_IPFS_MAX_BYTES", 20*1024*1024),
			FallbackThreshold: envMillis("SMART_IPFS_FALLBACK_THRESHOLD_MS", 200),
		},

		MetricsAddr:           os.Getenv("METRICS_ADDR"),
		SystemMetricsInterval: envMillis("SYSTEM_METRICS_INTERVAL_MS", 5000),
		LogTSPrefix:           envBool("LOG_TS_PREFIX", false),
	}
}

// loadCredentials reads the inputs of the CONNECT credential precedence
// table (jwt (+optional sig) > token > user/pass); HasJWT/HasToken record
// which tiers were set. original_source also accepts
// PUMP_NATS_PASSWORD as an alias for PUMP_NATS_PASS (SPEC_FULL.md §12).
func loadCredentials() Credentials {
	c := Credentials{
		User: envString("PUMP_NATS_USER", "subscriber"),
		Pass: firstNonEmpty(os.Getenv("PUMP_NATS_PASS"), os.Getenv("PUMP_NATS_PASSWORD"), "OktDhmZ2D3CtYUiM"),
	}

	if token, ok := os.LookupEnv("PUMP_NATS_TOKEN"); ok {
		c.Token = token
		c.HasToken = true
	}

	if jwt, ok := os.LookupEnv("PUMP_NATS_JWT"); ok {
		c.JWT = jwt
		c.HasJWT = true
		c.Sig = os.Getenv("PUMP_NATS_SIG")
	}

	return c
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func envString(name, def string) string {
	if v, ok := os.LookupEnv(name); ok {
		return v
	}
	return def
}

// envBool mirrors original_source's env_bool: case-insensitive
// 1|true|yes|on is true, any other set value is false; def applies only
// when the variable is unset.
func envBool(name string, def bool) bool {
	v, ok := os.LookupEnv(name)
	if !ok {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// envCSV mirrors original_source's env_csv: comma-split, trimmed, empty
// entries dropped. Returns nil (not an error) if the var is unset.
func envCSV(name string) []string {
	v, ok := os.LookupEnv(name)
	if !ok {
		return nil
	}
	return splitCSV(v)
}

func envCSVOrDefault(name string, def []string) []string {
	v, ok := os.LookupEnv(name)
	if !ok {
		return def
	}
	out := splitCSV(v)
	if len(out) == 0 {
		return def
	}
	return out
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// envInt64/envMillis silently fall back to the default on parse failure,
// per spec.md §7: "Config errors: invalid numeric env vars silently fall
// back to defaults."
func envInt64(name string, def int64) int64 {
	v, ok := os.LookupEnv(name)
	if !ok {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envMillis(name string, defMillis int64) time.Duration {
	return time.Duration(envInt64(name, defMillis)) * time.Millisecond
}
