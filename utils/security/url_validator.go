// Package security provides URL validation and SSRF protection for upstream
// image fetching. Validation gates run in a fixed order so a given URL always
// fails with the same code.
package security

import (
	"net/http"
	"net/url"
	"strings"

	apperrors "imgcdn/utils/errors"
)

// MaxURLLength is the longest candidate URL the validator accepts.
const MaxURLLength = 4096

// URLValidator gates inbound and redirect-target URLs against the configured
// allowed-host set.
type URLValidator struct {
	allowed     map[string]struct{}
	testingMode bool
}

// NewURLValidator creates a validator for the given allowed hosts.
// Matching is case-insensitive and exact: no suffix or wildcard expansion.
func NewURLValidator(allowedHosts []string) *URLValidator {
	allowed := make(map[string]struct{}, len(allowedHosts))
	for _, host := range allowedHosts {
		host = strings.ToLower(strings.TrimSpace(host))
		if host != "" {
			allowed[host] = struct{}{}
		}
	}
	return &URLValidator{allowed: allowed}
}

// SetTestingMode relaxes the HTTPS and private-host gates so unit tests can
// target local httptest servers. Never enabled in production wiring.
func (v *URLValidator) SetTestingMode(enabled bool) {
	v.testingMode = enabled
}

// Validate runs the ordered gates and returns nil when the URL is safe to
// fetch. The first failing gate determines the error code.
func (v *URLValidator) Validate(rawURL string) *apperrors.ProxyError {
	if strings.TrimSpace(rawURL) == "" {
		return apperrors.New(http.StatusBadRequest, apperrors.CodeMissingURL, "url parameter is required")
	}
	if len(rawURL) > MaxURLLength {
		return apperrors.New(http.StatusBadRequest, apperrors.CodeURLTooLong, "url exceeds maximum length")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return apperrors.New(http.StatusBadRequest, apperrors.CodeInvalidURL, "url is not parseable")
	}

	if parsed.Scheme != "https" && !(v.testingMode && parsed.Scheme == "http") {
		return apperrors.New(http.StatusBadRequest, apperrors.CodeHTTPSRequired, "only https urls are allowed")
	}

	if parsed.User != nil {
		return apperrors.New(http.StatusBadRequest, apperrors.CodeCredentialsInURL, "urls with embedded credentials are not allowed")
	}

	hostname := strings.ToLower(parsed.Hostname())
	if !v.testingMode && IsPrivateHost(hostname) {
		return apperrors.New(http.StatusForbidden, apperrors.CodePrivateHost, "access to private hosts is not allowed")
	}

	if _, ok := v.allowed[hostname]; !ok {
		return apperrors.New(http.StatusForbidden, apperrors.CodeDomainNotAllowed, "domain is not in the allowlist")
	}

	return nil
}
