package gemini

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"unicode/utf8"
)

// MaxRequestLen is the maximum length of a request line in bytes,
// including the terminating CRLF.
const MaxRequestLen = 1024

// Scheme is the only URL scheme this server answers with content.
const Scheme = "gemini"

// Request-line reading errors. These are deliberately distinct: a dropped
// connection must never be misreported as an over-long line.
var (
	// ErrRequestTooLong is returned when MaxRequestLen bytes arrive
	// without a CRLF.
	ErrRequestTooLong = errors.New("gemini: request line too long")

	// ErrRequestRead is returned when the transport fails or the peer
	// closes before a CRLF is seen.
	ErrRequestRead = errors.New("gemini: request read failed")
)

var crlf = []byte("\r\n")

// ReadRequestLine reads one request line from r, up to and excluding the
// CRLF terminator.
func ReadRequestLine(r io.Reader) (string, error) {
	buf := make([]byte, MaxRequestLen)
	n := 0
	for {
		m, err := r.Read(buf[n:])
		n += m
		if i := bytes.Index(buf[:n], crlf); i >= 0 {
			return string(buf[:i]), nil
		}
		if n == len(buf) {
			return "", ErrRequestTooLong
		}
		if err != nil {
			return "", fmt.Errorf("%w: %s", ErrRequestRead, err)
		}
	}
}

// Request is one parsed, validated request.
type Request struct {
	Scheme string
	Host   string

	// Path is percent-decoded and normalized to the index form: forward
	// slashes, no leading slash, trailing slash preserved. The root is
	// the empty string.
	Path string
}

// ParseRequest validates a request line and extracts the requested path.
//
// Rejections are returned as *StatusError: malformed or relative URLs,
// userinfo, query strings and fragments answer 59, and non-gemini schemes
// answer 53.
func ParseRequest(line string) (*Request, error) {
	if !utf8.ValidString(line) {
		return nil, &StatusError{StatusBadRequest, "request is not valid UTF-8"}
	}

	u, err := url.Parse(line)
	if err != nil {
		return nil, &StatusError{StatusBadRequest, "cannot parse URL"}
	}
	if !u.IsAbs() {
		return nil, &StatusError{StatusBadRequest, "absolute URL required"}
	}
	if u.Scheme != Scheme {
		return nil, &StatusError{StatusProxyRefused, "gemini scheme required"}
	}
	if u.User != nil {
		return nil, &StatusError{StatusBadRequest, "URL must not carry userinfo"}
	}
	if u.ForceQuery || u.RawQuery != "" {
		return nil, &StatusError{StatusBadRequest, "query strings are not accepted"}
	}
	if u.Fragment != "" || u.RawFragment != "" {
		return nil, &StatusError{StatusBadRequest, "fragments are not accepted"}
	}

	return &Request{
		Scheme: u.Scheme,
		Host:   u.Host,
		Path:   strings.TrimPrefix(u.Path, "/"),
	}, nil
}
