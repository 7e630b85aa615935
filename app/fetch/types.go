package fetch

import (
	"context"
	"net/http"
)

type Expect int

const (
	ExpectAny Expect = iota
	ExpectXML
)

type Method string

const (
	MethodHTTP        Method = "http"
	MethodInsecureTLS Method = "http_insecure_tls"
	MethodBrowser     Method = "browser"
)

// Outcome describes how a fetch went. A failed fetch is an Outcome with OK
// false and a non-empty Error, never a Go error.
type Outcome struct {
	OK              bool
	Status          int
	FinalURL        string
	Method          Method
	ContentType     string
	ContentEncoding string
	Charset         string
	InsecureTLS     bool
	Binary          bool
	Blocked         bool
	Error           string
	Sniff           string
}

type Result struct {
	Outcome
	Body []byte
	Text string
}

// XMLish reports whether the payload is XML by content type or by its opening bytes.
func (r *Result) XMLish() bool {
	return ContentTypeIsXMLish(r.ContentType) || LooksLikeXML(r.Body)
}

// RawResponse is what an alternate transport hands back before decoding.
type RawResponse struct {
	Status   int
	FinalURL string
	Header   http.Header
	Body     []byte
}

// Impersonator is a browser-like transport used when plain requests are
// blocked or fail TLS verification.
type Impersonator interface {
	Fetch(ctx context.Context, url string, header http.Header) (*RawResponse, error)
	Close() error
}
