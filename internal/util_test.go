package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractHostname(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://Ads.Example.com/path?q=1", "ads.example.com"},
		{"http://user:pw@tracker.example:8080/p", "tracker.example"},
		{"https://[::1]:443/", "::1"},
		{"https://example.com./", "example.com"},
		// url.Parse rejects these, the fallback still finds a host
		{"http://bad host.example/%zz", ""},
		{"https://cdn.example/%zz", "cdn.example"},
		{"//cdn.example/lib.js", "cdn.example"},
		{"ads.example.com/banner", "ads.example.com"},
		{"127.0.0.1/x", "127.0.0.1"},
		{"not a url", ""},
		{"about:blank", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractHostname(tt.in), "input %q", tt.in)
	}
}

func TestIsValidDomain(t *testing.T) {
	assert.True(t, IsValidDomain("example.com"))
	assert.True(t, IsValidDomain("a-b.example.co.uk."))
	assert.False(t, IsValidDomain("localhost"))
	assert.False(t, IsValidDomain("-bad.example"))
	assert.False(t, IsValidDomain("bad..example"))
	assert.False(t, IsValidDomain("sp ace.example"))
}
