// Package auth provides a best-effort, unverified decode of an
// operator-supplied NATS JWT credential, for startup diagnostics only.
// We never hold the broker's signing key, so there is nothing to verify;
// this adapts the teacher's internal/auth/jwt.go (which generated and
// verified HS256 tokens for inbound server auth) into a read-only claims
// preview.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims mirrors the subset of registered claims worth logging. Unknown
// or missing fields are left at their zero value; decoding is always
// best-effort.
type Claims struct {
	jwt.RegisteredClaims
}

// ClaimsPreview is the loggable summary of a decoded JWT.
type ClaimsPreview struct {
	Subject   string
	Issuer    string
	ExpiresAt *time.Time
	Valid     bool
	Error     string
}

// DescribeJWT decodes (without verifying) the given JWT string and returns
// a summary suitable for a diagnostic log line. It never fails the caller:
// parse errors are carried in the returned Error field.
func DescribeJWT(token string) ClaimsPreview {
	if token == "" {
		return ClaimsPreview{}
	}

	var claims Claims
	_, _, err := jwt.NewParser().ParseUnverified(token, &claims)
	if err != nil {
		return ClaimsPreview{Error: err.Error()}
	}

	preview := ClaimsPreview{
		Subject: claims.Subject,
		Issuer:  claims.Issuer,
		Valid:   true,
	}
	if claims.ExpiresAt != nil {
		t := claims.ExpiresAt.Time
		preview.ExpiresAt = &t
	}
	return preview
}
