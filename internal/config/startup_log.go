package config

import "pumpsubscriber/internal/logging"

// LogStartupConfig prints a single smart_fetcher_startup_config record
// summarizing every effective env-derived setting, matching
// original_source/src/smart_fetcher.rs main()'s startup echo
// (SPEC_FULL.md §12).
func LogStartupConfig(p *logging.Printer, cfg Config) {
	p.Log(
		logging.F("event", "smart_fetcher_startup_config"),
		logging.F("NATS_WS_URL", cfg.NATSWSURL),
		logging.F("VALIDATE_ENABLED", cfg.Validate.Enabled),
		logging.F("VALIDATE_ALLOWED_SUBJECTS", cfg.Validate.AllowedSubjectPrefixes),
		logging.F("VALIDATE_REQUIRE_MINT", cfg.Validate.RequireMint),
		logging.F("VALIDATE_REQUIRE_IMAGE", cfg.Validate.RequireImage),
		logging.F("VALIDATE_INFO_KEYS", cfg.Validate.RequireInfoKeys),
		logging.F("SMART_IPFS_ENABLED", cfg.Fetch.Enabled),
		logging.F("SMART_IPFS_LOCAL_GATEWAY", cfg.Fetch.LocalGatewayURL),
		logging.F("SMART_IPFS_PUBLIC_GATEWAYS", cfg.Fetch.PublicGatewayURLs),
		logging.F("SMART_IPFS_LOCAL_TIMEOUT_MS", cfg.Fetch.LocalTimeout.Milliseconds()),
		logging.F("SMART_IPFS_PUBLIC_TIMEOUT_MS", cfg.Fetch.PublicTimeout.Milliseconds()),
		logging.F("SMART_IPFS_MAX_BYTES", cfg.Fetch.MaxBytes),
		logging.F("SMART_IPFS_FALLBACK_THRESHOLD_MS", cfg.Fetch.FallbackThreshold.Milliseconds()),
	)
}
