package http

import (
	"io"
	"net/http"
	"strconv"
	"strings"
)

// Response is a completed HTTP exchange with the body already loaded.
// It does not change after construction.
type Response struct {
	Data    []byte
	Header  http.Header
	Status  int
	Version int // 10 for HTTP/1.0, 11 for HTTP/1.1
	Reason  string
	Strict  bool
}

// NewResponse reads and closes raw.Body and copies the rest of raw into a
// Response. The read leaves raw's connection ready for the next request.
func NewResponse(raw *http.Response) (*Response, error) {
	defer raw.Body.Close()

	data, err := io.ReadAll(raw.Body)
	if err != nil {
		return nil, err
	}

	return &Response{
		Data:    data,
		Header:  raw.Header.Clone(),
		Status:  raw.StatusCode,
		Version: raw.ProtoMajor*10 + raw.ProtoMinor,
		Reason:  reasonPhrase(raw),
		// http.ReadResponse rejects malformed status lines
		Strict: true,
	}, nil
}

func reasonPhrase(raw *http.Response) string {
	code := strconv.Itoa(raw.StatusCode)
	if reason, ok := strings.CutPrefix(raw.Status, code); ok {
		return strings.TrimSpace(reason)
	}
	return raw.Status
}

// GetHeader returns the value of the named header, or def when absent.
func (r *Response) GetHeader(name, def string) string {
	if values, ok := r.Header[http.CanonicalHeaderKey(name)]; ok && len(values) > 0 {
		return values[0]
	}
	return def
}

// Headers returns a copy of the response headers.
func (r *Response) Headers() http.Header {
	return r.Header.Clone()
}

// String returns the body as text.
func (r *Response) String() string {
	return string(r.Data)
}
