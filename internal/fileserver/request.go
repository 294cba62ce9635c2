package fileserver

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const (
	MethodGet  = "GET"
	MethodHead = "HEAD"
)

// ErrMalformedRequest is returned for a GET or HEAD request line whose
// target cannot be located or percent-decoded.
var ErrMalformedRequest = errors.New("malformed request line")

// Request is what the server reads out of the first line of a connection.
type Request struct {
	Method string
	// Path is the percent-decoded target without its leading slash.
	Path  string
	Query string
}

// Allowed reports whether the method is one the server answers.
func (r Request) Allowed() bool {
	return r.Method == MethodGet || r.Method == MethodHead
}

// ParseRequest interprets the first line of raw, which may be zero-padded.
// Only GET and HEAD requests have their target parsed; for any other method
// the returned Request carries just the method token.
func ParseRequest(raw []byte) (Request, error) {
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		raw = raw[:i]
	}

	line := string(raw)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimRight(line, "\r")

	method := line
	if i := strings.IndexByte(line, ' '); i >= 0 {
		method = line[:i]
	}

	req := Request{Method: method}
	if !req.Allowed() {
		return req, nil
	}

	slash := strings.IndexByte(line, '/')
	proto := strings.LastIndex(line, " HTTP")
	if slash < 0 || proto < slash {
		return req, fmt.Errorf("%w: %q", ErrMalformedRequest, line)
	}

	target := strings.TrimSpace(line[slash+1 : proto])
	if i := strings.IndexByte(target, '?'); i >= 0 {
		req.Query = target[i+1:]
		target = target[:i]
	}

	decoded, err := url.PathUnescape(target)
	if err != nil {
		return req, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}
	if strings.IndexByte(decoded, 0) >= 0 {
		return req, fmt.Errorf("%w: NUL in path", ErrMalformedRequest)
	}

	req.Path = decoded
	return req, nil
}
