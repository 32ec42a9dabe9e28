package metadata

import (
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"registrar/pkg/requestcontext"
)

func TestParseTrustedProxies(t *testing.T) {
	prefixes, err := ParseTrustedProxies([]string{"10.0.0.0/8", " 192.0.2.10 ", "", "::1"})
	require.NoError(t, err)
	assert.Equal(t, []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("192.0.2.10/32"),
		netip.MustParsePrefix("::1/128"),
	}, prefixes)

	_, err = ParseTrustedProxies([]string{"proxy.internal"})
	assert.Error(t, err)
	_, err = ParseTrustedProxies([]string{"10.0.0.0/33"})
	assert.Error(t, err)
}

func TestClientIPFromRequest(t *testing.T) {
	trusted := []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}

	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		trusted    []netip.Prefix
		expected   string
	}{
		{name: "ipv4 remote addr", remoteAddr: "192.0.2.1:5555", expected: "192.0.2.1"},
		{name: "ipv6 remote addr", remoteAddr: "[::1]:5555", expected: "::1"},
		{name: "nothing available", remoteAddr: "", expected: "unknown"},
		{
			name:       "forwarded header from untrusted peer is ignored",
			headers:    map[string]string{"X-Forwarded-For": "1.1.1.1"},
			remoteAddr: "203.0.113.7:5555",
			expected:   "203.0.113.7",
		},
		{
			name:       "real ip from untrusted peer is ignored",
			headers:    map[string]string{"X-Real-IP": "1.1.1.1"},
			remoteAddr: "203.0.113.7:5555",
			trusted:    trusted,
			expected:   "203.0.113.7",
		},
		{
			name:       "trusted proxy reports the client",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.2"},
			remoteAddr: "10.0.0.5:443",
			trusted:    trusted,
			expected:   "198.51.100.2",
		},
		{
			name:       "client prepended entries are skipped",
			headers:    map[string]string{"X-Forwarded-For": "1.1.1.1, 198.51.100.2, 10.0.0.9"},
			remoteAddr: "10.0.0.5:443",
			trusted:    trusted,
			expected:   "198.51.100.2",
		},
		{
			name:       "garbage hop stops the walk",
			headers:    map[string]string{"X-Forwarded-For": "not-an-ip"},
			remoteAddr: "10.0.0.5:443",
			trusted:    trusted,
			expected:   "10.0.0.5",
		},
		{
			name:       "real ip header behind trusted proxy",
			headers:    map[string]string{"X-Real-IP": "198.51.100.3"},
			remoteAddr: "10.0.0.5:443",
			trusted:    trusted,
			expected:   "198.51.100.3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.expected, ClientIPFromRequest(r, tt.trusted))
		})
	}
}

func TestClientMetadataPopulatesContext(t *testing.T) {
	var gotIP, gotUA string
	h := ClientMetadata(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIP = requestcontext.ClientIP(r.Context())
		gotUA = requestcontext.UserAgent(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.1:1234"
	r.Header.Set("User-Agent", "curl/8.0")
	r.Header.Set("X-Forwarded-For", "1.1.1.1")
	h.ServeHTTP(httptest.NewRecorder(), r)

	assert.Equal(t, "192.0.2.1", gotIP)
	assert.Equal(t, "curl/8.0", gotUA)
}
