package domain

import (
	"net/url"
	"strings"
)

// CanonicalUpstreamHost is the host used when reconstructing a base URL from
// a stable path. It is also the default entry of the allowed-domain set.
const CanonicalUpstreamHost = "prod-files-secure.s3.us-west-2.amazonaws.com"

// ParsedUpstreamURL is the routing identity extracted from a recognised
// upstream URL.
type ParsedUpstreamURL struct {
	WorkspaceID string
	BlockID     string
	Filename    string
	BaseURL     string
	FullURL     string
}

// ParseUpstreamURL extracts (workspace, block, filename) from the known
// upstream hostname families. Parsing is total: unrecognised shapes return
// ok=false and the caller proceeds with an opaque base URL.
//
// Recognised families:
//   - virtual-hosted S3:  <bucket>.s3.<region>.amazonaws.com/<ws>/<block>/<file>
//   - path-style S3:      s3.<region>.amazonaws.com/<bucket>/<ws>/<block>/<file>
//   - platform direct:    file.notion.so/f/<ws>/<block>/<file>
//   - encoded-key front:  www.notion.so/image/<url-encoded upstream URL>
func ParseUpstreamURL(rawURL string) (*ParsedUpstreamURL, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, false
	}

	host := strings.ToLower(u.Hostname())
	segments := splitPath(u.EscapedPath())

	switch {
	case isVirtualHostedS3(host):
		if len(segments) != 3 {
			return nil, false
		}
		return newParsed(u, segments[0], segments[1], segments[2]), true

	case isPathStyleS3(host):
		if len(segments) != 4 {
			return nil, false
		}
		return newParsed(u, segments[1], segments[2], segments[3]), true

	case host == "file.notion.so":
		if len(segments) != 4 || segments[0] != "f" {
			return nil, false
		}
		return newParsed(u, segments[1], segments[2], segments[3]), true

	case host == "www.notion.so" || host == "notion.so":
		if len(segments) < 2 || segments[0] != "image" {
			return nil, false
		}
		inner, err := url.PathUnescape(segments[1])
		if err != nil {
			return nil, false
		}
		parsed, ok := ParseUpstreamURL(inner)
		if !ok {
			return nil, false
		}
		// Identity follows the embedded URL; the front URL is what was seen.
		parsed.FullURL = rawURL
		return parsed, true
	}

	return nil, false
}

// StablePathBaseURL reconstructs the deterministic base URL for the stable
// path route.
func StablePathBaseURL(workspaceID, blockID, filename string) string {
	return "https://" + CanonicalUpstreamHost + "/" +
		url.PathEscape(workspaceID) + "/" +
		url.PathEscape(blockID) + "/" +
		url.PathEscape(filename)
}

// StripQuery removes the query string and fragment, yielding the cache
// identity of an opaque upstream URL.
func StripQuery(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

func newParsed(u *url.URL, workspaceID, blockID, filename string) *ParsedUpstreamURL {
	base := *u
	base.RawQuery = ""
	base.Fragment = ""

	ws, _ := url.PathUnescape(workspaceID)
	block, _ := url.PathUnescape(blockID)
	name, _ := url.PathUnescape(filename)

	return &ParsedUpstreamURL{
		WorkspaceID: ws,
		BlockID:     block,
		Filename:    name,
		BaseURL:     base.String(),
		FullURL:     u.String(),
	}
}

func splitPath(escapedPath string) []string {
	trimmed := strings.Trim(escapedPath, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func isVirtualHostedS3(host string) bool {
	idx := strings.Index(host, ".s3.")
	if idx <= 0 {
		return false
	}
	return strings.HasSuffix(host, ".amazonaws.com")
}

func isPathStyleS3(host string) bool {
	return strings.HasPrefix(host, "s3.") && strings.HasSuffix(host, ".amazonaws.com")
}
