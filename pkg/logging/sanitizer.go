package logging

import (
	"regexp"
	"unicode/utf8"
)

// RedactedText is the replacement text for sensitive data
const RedactedText = "[REDACTED]"

var (
	// password=xxx, pwd=xxx, pass=xxx (until next delimiter)
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	// Bearer tokens and Anthropic/OpenAI style secret keys echoed back in errors
	bearerPattern    = regexp.MustCompile(`Bearer\s+[A-Za-z0-9\-_.]+`)
	secretKeyPattern = regexp.MustCompile(`sk-[A-Za-z0-9\-_]{16,}`)

	// user:pass@host format
	connStringPattern = regexp.MustCompile(`://[^:/\s]+:[^@]+@[^/\s]+`)
)

// SanitizeConnectionString removes credentials from a database DSN or URL.
// Use this before logging any connection string.
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}

	sanitized := passwordPattern.ReplaceAllString(connStr, "${1}="+RedactedText)
	sanitized = connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)

	return sanitized
}

// SanitizeError returns the error message with credentials and API keys removed.
// Generator and store errors may echo request headers or DSNs.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}

	sanitized := passwordPattern.ReplaceAllString(err.Error(), "${1}="+RedactedText)
	sanitized = bearerPattern.ReplaceAllString(sanitized, "Bearer "+RedactedText)
	sanitized = secretKeyPattern.ReplaceAllString(sanitized, RedactedText)
	sanitized = connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)

	return sanitized
}

// TruncateString shortens s to at most maxLen runes, adding "..." if truncated.
// Descriptions are Swedish text, so truncation never splits a multi-byte rune.
func TruncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen]) + "..."
}
