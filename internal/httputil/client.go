package httputil

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/andybalholm/brotli"
)

// MaxBodyBytes caps how much of an upstream response is read. CSV exports of
// 60k rows stay well below it.
const MaxBodyBytes = 64 << 20

// ErrBodyTooLarge is returned when a response body exceeds the read limit.
var ErrBodyTooLarge = errors.New("response body too large")

// NewHTTPClient creates an HTTP client with pooled connections.
// An optional RoundTripper (e.g. throttle.Transport) can be injected; when
// nil a pooled *http.Transport is used. A zero timeout leaves deadlines to the
// request context.
func NewHTTPClient(transport http.RoundTripper, timeout time.Duration) *http.Client {
	if transport == nil {
		transport = NewTransport()
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// NewTransport returns the pooled base transport.
func NewTransport() *http.Transport {
	return &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
}

// ReadBody reads and decompresses an HTTP response body of at most
// MaxBodyBytes. Requests that set Accept-Encoding themselves get no
// transparent gzip from net/http, so both encodings are decoded here.
func ReadBody(resp *http.Response) ([]byte, error) {
	return ReadBodyLimit(resp, MaxBodyBytes)
}

// ReadBodyLimit is ReadBody with an explicit limit on the decoded size.
func ReadBodyLimit(resp *http.Response, limit int64) ([]byte, error) {
	var reader io.Reader
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		defer gz.Close()
		reader = gz
	case "br":
		reader = brotli.NewReader(resp.Body)
	default:
		reader = resp.Body
	}
	body, err := io.ReadAll(io.LimitReader(reader, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, limit)
	}
	return body, nil
}
