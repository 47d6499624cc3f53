// Package http provides the fluent outbound HTTP client used by the scraper
// adapter and the image proxy.
//
//	resp, err := http.Post(webhook).
//	    WithContext(ctx).
//	    Body(map[string]string{"url": source}).
//	    Send()
//
//	resp, err := http.Get(imageURL).
//	    WithContext(ctx).
//	    Browser().
//	    Header("Referer", "https://shopee.co.id/").
//	    Send()
//
// Send returns an error only when no HTTP response was obtained (DNS, dial,
// TLS, timeout, cancellation, oversized or undecodable body). A non-2xx
// status is a normal *Response; inspect OK. Requests are sent once.
package http

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	gohttp "net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
)

// BrowserUserAgent is a desktop Chrome UA accepted by marketplace CDNs.
const BrowserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36"

// DefaultMaxBytes caps a decoded response body.
const DefaultMaxBytes = 16 << 20

var (
	// ErrTransport marks failures where the remote never produced a response.
	ErrTransport = errors.New("http: transport failure")
	// ErrBodyTooLarge is returned when the decoded body exceeds MaxBytes.
	ErrBodyTooLarge = errors.New("http: response body too large")
)

// defaultTransport is the pooled transport used in production. Compression is
// negotiated by hand so br can be offered alongside gzip.
var defaultTransport = &gohttp.Transport{
	Proxy:               gohttp.ProxyFromEnvironment,
	MaxIdleConns:        100,
	MaxIdleConnsPerHost: 20,
	IdleConnTimeout:     90 * time.Second,
	DisableCompression:  true,
}

// DefaultClient is shared by all outgoing requests. Tests swap its Transport:
//
//	http.DefaultClient.Transport = mock
//	defer http.ResetTransport()
var DefaultClient = &gohttp.Client{
	Transport: defaultTransport,
}

// ResetTransport restores the production transport on DefaultClient.
func ResetTransport() {
	DefaultClient.Transport = defaultTransport
}

// ------------------- Request -------------------

// Request is a fluent HTTP request builder.
type Request struct {
	method  string
	url     string
	headers map[string]string
	body    interface{}
	timeout  time.Duration
	maxBytes int64
	ctx      context.Context
}

// Get starts a GET request.
func Get(url string) *Request { return newRequest(gohttp.MethodGet, url) }

// Post starts a POST request.
func Post(url string) *Request { return newRequest(gohttp.MethodPost, url) }

func newRequest(method, url string) *Request {
	return &Request{
		method: method,
		url:    url,
		headers: map[string]string{
			"Accept":          "*/*",
			"Accept-Encoding": "gzip, br",
		},
		timeout:  30 * time.Second,
		maxBytes: DefaultMaxBytes,
		ctx:      context.Background(),
	}
}

// Header sets a single header on the request.
func (r *Request) Header(key, value string) *Request {
	r.headers[key] = value
	return r
}

// Headers merges a map of headers.
func (r *Request) Headers(h map[string]string) *Request {
	for k, v := range h {
		r.headers[k] = v
	}
	return r
}

// Browser makes the request look like a desktop Chrome image fetch.
func (r *Request) Browser() *Request {
	return r.Headers(map[string]string{
		"User-Agent":         BrowserUserAgent,
		"Accept":             "image/avif,image/webp,image/apng,image/*,*/*;q=0.8",
		"Accept-Language":    "id-ID,id;q=0.9,en-US;q=0.8,en;q=0.7",
		"Sec-Ch-Ua":          `"Chromium";v="133", "Not(A:Brand";v="99", "Google Chrome";v="133"`,
		"Sec-Ch-Ua-Mobile":   "?0",
		"Sec-Ch-Ua-Platform": `"Windows"`,
		"Sec-Fetch-Dest":     "image",
		"Sec-Fetch-Mode":     "no-cors",
		"Sec-Fetch-Site":     "cross-site",
	})
}

// Body sets the request body. Strings and []byte are sent raw; anything else
// is marshalled to JSON.
func (r *Request) Body(v interface{}) *Request {
	r.body = v
	return r
}

// Timeout bounds the whole exchange, body read included.
func (r *Request) Timeout(d time.Duration) *Request {
	r.timeout = d
	return r
}

// MaxBytes caps the decoded response body.
func (r *Request) MaxBytes(n int64) *Request {
	r.maxBytes = n
	return r
}

// WithContext sets the parent context. Cancelling it aborts the request.
func (r *Request) WithContext(ctx context.Context) *Request {
	r.ctx = ctx
	return r
}

// ------------------- Send -------------------

// Send executes the request once and returns the fully-read Response.
func (r *Request) Send() (*Response, error) {
	body, ct, err := r.buildBody()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(r.ctx, r.timeout)
	defer cancel()

	req, err := gohttp.NewRequestWithContext(ctx, r.method, r.url, body)
	if err != nil {
		return nil, fmt.Errorf("http: build request: %w", err)
	}

	if ct != "" {
		req.Header.Set("Content-Type", ct)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	resp, err := DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrTransport, r.method, r.url, err)
	}
	defer resp.Body.Close()

	raw, err := readBody(resp, r.maxBytes)
	if err != nil {
		if errors.Is(err, ErrBodyTooLarge) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: read body: %w", ErrTransport, err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Raw:        raw,
	}, nil
}

func (r *Request) buildBody() (io.Reader, string, error) {
	if r.body == nil {
		return nil, "", nil
	}
	switch v := r.body.(type) {
	case string:
		return strings.NewReader(v), "text/plain; charset=utf-8", nil
	case []byte:
		return bytes.NewReader(v), "application/octet-stream", nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, "", fmt.Errorf("http: marshal body: %w", err)
		}
		return bytes.NewReader(b), "application/json", nil
	}
}

// readBody decodes gzip/br bodies and enforces max.
func readBody(resp *gohttp.Response, max int64) ([]byte, error) {
	var reader io.Reader = resp.Body
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		defer zr.Close()
		reader = zr
	case "br":
		reader = brotli.NewReader(resp.Body)
	}

	if max <= 0 {
		return io.ReadAll(reader)
	}
	raw, err := io.ReadAll(io.LimitReader(reader, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(raw)) > max {
		return nil, ErrBodyTooLarge
	}
	return raw, nil
}

// ------------------- Response -------------------

// Response is a fully-read HTTP response.
type Response struct {
	StatusCode int
	Headers    gohttp.Header
	Raw        []byte
}

// OK reports whether the status code is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Header returns a single response header value.
func (r *Response) Header(key string) string {
	return r.Headers.Get(key)
}

