package server

import (
	"regexp"
)

var credentialPatterns = []struct {
	regex       *regexp.Regexp
	replacement string
}{
	{regex: regexp.MustCompile(`(?i)(client_?secret|secret_?text|api[_-]?key|password|jwt_secret)(\s*[=:]\s*)"?[^\s",]+"?`), replacement: "$1$2[redacted]"},
	{regex: regexp.MustCompile(`(?i)"(clientSecret|secretText|api-key|apiKey|password)"\s*:\s*"[^"]*"`), replacement: `"$1":"[redacted]"`},
	{regex: regexp.MustCompile(`(?i)(access_?token|refresh_?token|id_?token)=[^\s&]+`), replacement: "$1=[redacted]"},
	{regex: regexp.MustCompile(`(?i)authorization:\s*bearer\s+[a-z0-9\-._~+/=]+`), replacement: "authorization: Bearer [redacted]"},
	{regex: regexp.MustCompile(`(?i)bearer\s+eyJ[a-z0-9\-_]+\.[a-z0-9\-_]+\.[a-z0-9\-_]*`), replacement: "Bearer [redacted]"},
	{regex: regexp.MustCompile(`eyJ[A-Za-z0-9\-_]{10,}\.[A-Za-z0-9\-_]{10,}\.[A-Za-z0-9\-_]+`), replacement: "[redacted jwt]"},
	{regex: regexp.MustCompile(`(?i)([?&]sig=)[^&\s]+`), replacement: "${1}[redacted]"},
	{regex: regexp.MustCompile(`(?i)https?://[^:@\s/]+:[^@\s]+@`), replacement: "https://[redacted]:[redacted]@"},
	{regex: regexp.MustCompile(`(?i)-----BEGIN( RSA| EC)? PRIVATE KEY-----[\s\S]+?-----END( RSA| EC)? PRIVATE KEY-----`), replacement: "[redacted private key]"},
}

// SanitizeLogLines redacts credentials from log lines before they leave the process.
func SanitizeLogLines(lines []string) []string {
	if len(lines) == 0 {
		return lines
	}
	out := make([]string, len(lines))
	for i, l := range lines {
		for _, pattern := range credentialPatterns {
			l = pattern.regex.ReplaceAllString(l, pattern.replacement)
		}
		out[i] = l
	}
	return out
}
