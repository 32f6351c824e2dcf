package gemini

import (
	"errors"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadRequestLine(t *testing.T) {
	t.Run("simple", func(t *testing.T) {
		line, err := ReadRequestLine(strings.NewReader("gemini://example.org/\r\n"))
		require.NoError(t, err)
		assert.Equal(t, "gemini://example.org/", line)
	})

	t.Run("bytes after terminator are ignored", func(t *testing.T) {
		line, err := ReadRequestLine(strings.NewReader("gemini://example.org/\r\ntrailing garbage"))
		require.NoError(t, err)
		assert.Equal(t, "gemini://example.org/", line)
	})

	t.Run("one byte at a time", func(t *testing.T) {
		r := iotest.OneByteReader(strings.NewReader("gemini://example.org/slow\r\n"))
		line, err := ReadRequestLine(r)
		require.NoError(t, err)
		assert.Equal(t, "gemini://example.org/slow", line)
	})

	t.Run("line at exactly the limit", func(t *testing.T) {
		in := strings.Repeat("a", MaxRequestLen-2) + "\r\n"
		line, err := ReadRequestLine(strings.NewReader(in))
		require.NoError(t, err)
		assert.Len(t, line, MaxRequestLen-2)
	})

	t.Run("too long", func(t *testing.T) {
		in := strings.Repeat("a", MaxRequestLen) + "\r\n"
		_, err := ReadRequestLine(strings.NewReader(in))
		assert.ErrorIs(t, err, ErrRequestTooLong)
	})

	t.Run("limit hit then peer closes", func(t *testing.T) {
		// Still too long: the cap was reached without a terminator.
		_, err := ReadRequestLine(strings.NewReader(strings.Repeat("a", MaxRequestLen)))
		assert.ErrorIs(t, err, ErrRequestTooLong)
	})

	t.Run("peer closes mid-line", func(t *testing.T) {
		_, err := ReadRequestLine(strings.NewReader("gemini://example.org/trunc"))
		assert.ErrorIs(t, err, ErrRequestRead)
		assert.NotErrorIs(t, err, ErrRequestTooLong)
	})

	t.Run("transport error", func(t *testing.T) {
		broken := errors.New("connection reset")
		_, err := ReadRequestLine(iotest.ErrReader(broken))
		assert.ErrorIs(t, err, ErrRequestRead)
	})
}

func TestParseRequest(t *testing.T) {
	tests := []struct {
		name       string
		line       string
		wantPath   string
		wantStatus Status
	}{
		{"root without slash", "gemini://example.org", "", 0},
		{"root with slash", "gemini://example.org/", "", 0},
		{"file", "gemini://example.org/docs/page.gmi", "docs/page.gmi", 0},
		{"trailing slash kept", "gemini://example.org/docs/", "docs/", 0},
		{"percent decoded", "gemini://example.org/with%20space.txt", "with space.txt", 0},
		{"query", "gemini://example.org/search?q=zip", "", StatusBadRequest},
		{"empty query", "gemini://example.org/search?", "", StatusBadRequest},
		{"fragment", "gemini://example.org/page.gmi#top", "", StatusBadRequest},
		{"userinfo", "gemini://user@example.org/", "", StatusBadRequest},
		{"relative", "/docs/page.gmi", "", StatusBadRequest},
		{"bare word", "docs", "", StatusBadRequest},
		{"bad percent encoding", "gemini://example.org/%zz", "", StatusBadRequest},
		{"not utf8", "gemini://example.org/\xff\xfe", "", StatusBadRequest},
		{"http scheme", "http://example.org/", "", StatusProxyRefused},
		{"gopher scheme", "gopher://example.org/", "", StatusProxyRefused},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := ParseRequest(tt.line)
			if tt.wantStatus != 0 {
				var se *StatusError
				require.ErrorAs(t, err, &se)
				assert.Equal(t, tt.wantStatus, se.Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPath, req.Path)
			assert.Equal(t, Scheme, req.Scheme)
		})
	}
}
