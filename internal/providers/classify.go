package providers

import (
	"net/http"
	"strings"
)

// substringRules is the single fallback tier for error classification.
// Structured information (HTTP status, backend error codes) always wins;
// these rules fire only when nothing structured matched. First hit wins.
var substringRules = []struct {
	needle string
	kind   ErrorKind
}{
	{"api_key_invalid", KindAuthInvalid},
	{"api key not valid", KindAuthInvalid},
	{"invalid api key", KindAuthInvalid},
	{"incorrect api key", KindAuthInvalid},
	{"insufficient_quota", KindQuotaExceeded},
	{"quota", KindQuotaExceeded},
	{"billing", KindQuotaExceeded},
	{"rate limit", KindRateLimited},
	{"resource_exhausted", KindRateLimited},
	{"too many requests", KindRateLimited},
	{"invalid_argument", KindInvalidArgument},
	{"model_not_found", KindInvalidArgument},
	{"is not found", KindInvalidArgument},
	{"does not exist", KindInvalidArgument},
}

// ClassifyMessage maps an error message onto the taxonomy using the
// substring table. Reported ok=false when no rule matched.
func ClassifyMessage(msg string) (ErrorKind, bool) {
	lower := strings.ToLower(msg)
	for _, rule := range substringRules {
		if strings.Contains(lower, rule.needle) {
			return rule.kind, true
		}
	}
	return KindUnexpected, false
}

// ClassifyStatus maps an HTTP status onto the taxonomy. Backends refine
// this with their structured error payloads before falling back here.
func ClassifyStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuthInvalid
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status == http.StatusBadRequest || status == http.StatusNotFound:
		return KindInvalidArgument
	case status >= 500:
		return KindBackendFault
	default:
		return KindUnexpected
	}
}
