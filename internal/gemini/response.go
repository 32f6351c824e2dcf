package gemini

import (
	"fmt"
	"io"
	"strings"
)

// Response is one framed reply: a status line and, for successes, a lazy
// body stream consumed exactly once.
type Response struct {
	Status Status
	Meta   string
	Body   io.ReadCloser
}

// Failure returns a body-less response for the given status.
func Failure(status Status, meta string) *Response {
	return &Response{Status: status, Meta: meta}
}

// Close releases the body stream, if any.
func (r *Response) Close() error {
	if r.Body == nil {
		return nil
	}
	return r.Body.Close()
}

// WriteResponse frames resp onto w: "<status> <meta>\r\n" followed by the
// body bytes when present. The body is not closed.
//
// A body error after the status line has been written cannot be reported
// to the client in-band; it is returned so the caller can abort the
// connection without a clean close.
func WriteResponse(w io.Writer, resp *Response) error {
	if _, err := fmt.Fprintf(w, "%d %s\r\n", int(resp.Status), sanitizeMeta(resp.Meta)); err != nil {
		return fmt.Errorf("write status line: %w", err)
	}
	if resp.Body == nil {
		return nil
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	return nil
}

// sanitizeMeta keeps the meta a single line.
func sanitizeMeta(meta string) string {
	meta = strings.ReplaceAll(meta, "\r", " ")
	return strings.ReplaceAll(meta, "\n", " ")
}
