// Package credential formats and parses the bearer credential carried by
// every protected API call. The same environment switch drives both sides.
package credential

import (
	"errors"
	"strings"
)

// EnvProd is the production environment. Every other value is treated as a
// demo environment whose tokens carry DemoPrefix.
const EnvProd = "prod"

// DemoPrefix marks non-production tokens.
const DemoPrefix = "demo:"

// ErrMissingToken is returned when the header carries no usable credential.
var ErrMissingToken = errors.New("missing bearer token")

// IsProd reports whether env is the production environment.
func IsProd(env string) bool {
	return strings.EqualFold(strings.TrimSpace(env), EnvProd)
}

// BearerToken returns the token for roleID in env, without the "Bearer "
// scheme.
func BearerToken(roleID, env string) string {
	if roleID == "" {
		return ""
	}
	if IsProd(env) {
		return roleID
	}
	return DemoPrefix + roleID
}

// Header returns the full Authorization header value, or "" when roleID is empty.
func Header(roleID, env string) string {
	tok := BearerToken(roleID, env)
	if tok == "" {
		return ""
	}
	return "Bearer " + tok
}

// ParseBearer extracts the role_id from an Authorization header. In prod only
// bare tokens are accepted; elsewhere the demo prefix is required.
func ParseBearer(header, env string) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", ErrMissingToken
	}
	token = strings.TrimSpace(token)

	if IsProd(env) {
		if token == "" || strings.HasPrefix(strings.ToLower(token), DemoPrefix) {
			return "", ErrMissingToken
		}
		return token, nil
	}

	if len(token) < len(DemoPrefix) || !strings.EqualFold(token[:len(DemoPrefix)], DemoPrefix) {
		return "", ErrMissingToken
	}
	id := strings.TrimSpace(token[len(DemoPrefix):])
	if id == "" {
		return "", ErrMissingToken
	}
	return id, nil
}
