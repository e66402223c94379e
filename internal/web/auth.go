package web

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
)

// GenerateToken returns a fresh 32-byte hex access token.
func GenerateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// TokenFingerprint renders a token as "head...tail" safe for logs. Each side
// shows a quarter of the token, capped at eight characters.
func TokenFingerprint(token string) string {
	if token == "" {
		return ""
	}
	n := len(token) / 4
	if n > 8 {
		n = 8
	}
	if n == 0 {
		return "***"
	}
	return token[:n] + "..." + token[len(token)-n:]
}

// RedactURL rewrites a URL's token query value to REDACTED while keeping
// every other parameter, and their order, intact.
func RedactURL(raw string) string {
	base, query, found := strings.Cut(raw, "?")
	if !found {
		return raw
	}
	parts := strings.Split(query, "&")
	for i, part := range parts {
		if part == "token" || strings.HasPrefix(part, "token=") {
			parts[i] = "token=REDACTED"
		}
	}
	return base + "?" + strings.Join(parts, "&")
}

// BuildTargetURL renders the browser entry URL for a server address.
func BuildTargetURL(base, token string) string {
	return strings.TrimRight(base, "/") + "/?token=" + token
}

// ResolveToken picks the access token from the highest-priority source:
// the -token flag, then SPLITDECK_TOKEN, then AUTH_TOKEN, then the config
// file, else a generated one. The returned source names where it came from.
func ResolveToken(flagToken, configToken string) (token, source string, err error) {
	if flagToken != "" {
		return flagToken, "flag", nil
	}
	if v := os.Getenv("SPLITDECK_TOKEN"); v != "" {
		return v, "SPLITDECK_TOKEN", nil
	}
	if v := os.Getenv("AUTH_TOKEN"); v != "" {
		return v, "AUTH_TOKEN", nil
	}
	if configToken != "" {
		return configToken, "config", nil
	}
	token, err = GenerateToken()
	if err != nil {
		return "", "", err
	}
	return token, "generated", nil
}
