package fileserver

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"
)

const crlf = "\r\n"

// Response is everything written back for one request. A 200 for GET
// carries the open File and streams exactly ContentLength bytes from it;
// error pages carry Body. HEAD responses carry neither.
type Response struct {
	Status        int
	MimeType      string
	ContentLength int64
	Body          []byte
	File          *os.File
}

// StatusLine returns e.g. "HTTP/1.1 404 Not Found".
func StatusLine(status int) string {
	return "HTTP/1.1 " + strconv.Itoa(status) + " " + http.StatusText(status)
}

// BodyLength is the number of body bytes WriteTo sends.
func (r Response) BodyLength() int64 {
	switch {
	case r.File != nil:
		return r.ContentLength
	default:
		return int64(len(r.Body))
	}
}

// Close releases the file, if any.
func (r Response) Close() error {
	if r.File == nil {
		return nil
	}
	return r.File.Close()
}

// WriteTo writes the header block followed by the body, if any. A file that
// shrinks after its size was taken fails with io.ErrUnexpectedEOF rather than
// sending fewer bytes than Content-Length announced.
func (r Response) WriteTo(w io.Writer, serverName string, now time.Time) (int64, error) {
	var header bytes.Buffer

	header.WriteString(StatusLine(r.Status) + crlf)
	fmt.Fprintf(&header, "Server: %s%s", serverName, crlf)
	fmt.Fprintf(&header, "Content-Type: %s%s", r.MimeType, crlf)
	fmt.Fprintf(&header, "Date: %s%s", now.UTC().Format(http.TimeFormat), crlf)
	header.WriteString("Connection: close" + crlf)
	fmt.Fprintf(&header, "Content-Length: %d%s", r.ContentLength, crlf)
	header.WriteString(crlf)

	n, err := w.Write(header.Bytes())
	written := int64(n)
	if err != nil {
		return written, fmt.Errorf("write header: %w", err)
	}

	if r.File != nil {
		copied, err := io.CopyN(w, r.File, r.ContentLength)
		written += copied
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		if err != nil {
			return written, fmt.Errorf("write body: %w", err)
		}
		return written, nil
	}

	if len(r.Body) == 0 {
		return written, nil
	}

	n, err = w.Write(r.Body)
	written += int64(n)
	if err != nil {
		return written, fmt.Errorf("write body: %w", err)
	}

	return written, nil
}
