package domain

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUpstreamURL(t *testing.T) {
	tests := []struct {
		name          string
		rawURL        string
		wantOK        bool
		wantWorkspace string
		wantBlock     string
		wantFilename  string
		wantBaseURL   string
	}{
		{
			name:          "virtual-hosted S3",
			rawURL:        "https://prod-files-secure.s3.us-west-2.amazonaws.com/ws-1/block-2/photo.jpg?X-Amz-Signature=abc&X-Amz-Expires=3600",
			wantOK:        true,
			wantWorkspace: "ws-1",
			wantBlock:     "block-2",
			wantFilename:  "photo.jpg",
			wantBaseURL:   "https://prod-files-secure.s3.us-west-2.amazonaws.com/ws-1/block-2/photo.jpg",
		},
		{
			name:          "path-style S3",
			rawURL:        "https://s3.us-west-2.amazonaws.com/prod-files-secure/ws-1/block-2/photo.png?sig=x",
			wantOK:        true,
			wantWorkspace: "ws-1",
			wantBlock:     "block-2",
			wantFilename:  "photo.png",
			wantBaseURL:   "https://s3.us-west-2.amazonaws.com/prod-files-secure/ws-1/block-2/photo.png",
		},
		{
			name:          "platform direct link",
			rawURL:        "https://file.notion.so/f/ws-1/block-2/diagram.webp?table=block&id=x",
			wantOK:        true,
			wantWorkspace: "ws-1",
			wantBlock:     "block-2",
			wantFilename:  "diagram.webp",
			wantBaseURL:   "https://file.notion.so/f/ws-1/block-2/diagram.webp",
		},
		{
			name:          "encoded-key front",
			rawURL:        "https://www.notion.so/image/" + url.PathEscape("https://prod-files-secure.s3.us-west-2.amazonaws.com/ws-1/block-2/photo.jpg") + "?cache=v2",
			wantOK:        true,
			wantWorkspace: "ws-1",
			wantBlock:     "block-2",
			wantFilename:  "photo.jpg",
			wantBaseURL:   "https://prod-files-secure.s3.us-west-2.amazonaws.com/ws-1/block-2/photo.jpg",
		},
		{
			name:   "unknown host",
			rawURL: "https://images.example.com/a/b/c.jpg",
			wantOK: false,
		},
		{
			name:   "virtual-hosted with wrong segment count",
			rawURL: "https://prod-files-secure.s3.us-west-2.amazonaws.com/only-two/segments",
			wantOK: false,
		},
		{
			name:   "direct link without f prefix",
			rawURL: "https://file.notion.so/x/ws/block/file.jpg",
			wantOK: false,
		},
		{
			name:   "encoded front with non-upstream inner URL",
			rawURL: "https://www.notion.so/image/" + url.PathEscape("https://evil.example/a/b/c.jpg"),
			wantOK: false,
		},
		{
			name:   "not a URL",
			rawURL: "not a url at all",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, ok := ParseUpstreamURL(tt.rawURL)

			if !tt.wantOK {
				assert.False(t, ok)
				return
			}

			require.True(t, ok)
			assert.Equal(t, tt.wantWorkspace, parsed.WorkspaceID)
			assert.Equal(t, tt.wantBlock, parsed.BlockID)
			assert.Equal(t, tt.wantFilename, parsed.Filename)
			assert.Equal(t, tt.wantBaseURL, parsed.BaseURL)
		})
	}
}

func TestParseUpstreamURL_SignatureDoesNotChangeBaseURL(t *testing.T) {
	withSigA, ok := ParseUpstreamURL("https://prod-files-secure.s3.us-west-2.amazonaws.com/w/b/f.jpg?X-Amz-Signature=aaa")
	require.True(t, ok)
	withSigB, ok := ParseUpstreamURL("https://prod-files-secure.s3.us-west-2.amazonaws.com/w/b/f.jpg?X-Amz-Signature=bbb")
	require.True(t, ok)

	assert.Equal(t, withSigA.BaseURL, withSigB.BaseURL)
}

func TestStablePathBaseURL(t *testing.T) {
	got := StablePathBaseURL("ws-1", "block-2", "photo.jpg")

	assert.Equal(t, "https://prod-files-secure.s3.us-west-2.amazonaws.com/ws-1/block-2/photo.jpg", got)
}

func TestStablePathBaseURL_MatchesParsedUpstream(t *testing.T) {
	parsed, ok := ParseUpstreamURL("https://prod-files-secure.s3.us-west-2.amazonaws.com/ws-1/block-2/photo.jpg?sig=zzz")
	require.True(t, ok)

	assert.Equal(t, parsed.BaseURL, StablePathBaseURL(parsed.WorkspaceID, parsed.BlockID, parsed.Filename))
}

func TestStripQuery(t *testing.T) {
	got, err := StripQuery("https://example.com/a/b.jpg?sig=1#frag")

	require.NoError(t, err)
	assert.Equal(t, "https://example.com/a/b.jpg", got)
}
