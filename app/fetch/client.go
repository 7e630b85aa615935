package fetch

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/lysyi3m/threat-comb/app/article"
	"github.com/lysyi3m/threat-comb/app/telemetry"
)

const (
	DefaultRetries = 3
	DefaultTimeout = 30 * time.Second
	backoffBase    = 1.7
)

type Options struct {
	Timeout      time.Duration
	ProxyURL     string
	HostRate     float64
	Retries      int
	Impersonator Impersonator
}

// Client performs robust GETs: retries with backoff, rotating browser
// headers, a TLS downgrade path and an optional browser transport for pages
// that block plain requests.
type Client struct {
	secure       *http.Client
	insecure     *http.Client
	impersonator Impersonator
	limiter      *hostLimiter
	timeout      time.Duration
	retries      int
	backoff      func(attempt int) time.Duration
}

func NewClient(opts Options) (*Client, error) {
	secureTransport, err := newTransport(opts.ProxyURL, false)
	if err != nil {
		return nil, err
	}
	insecureTransport, err := newTransport(opts.ProxyURL, true)
	if err != nil {
		return nil, err
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	retries := opts.Retries
	if retries <= 0 {
		retries = DefaultRetries
	}

	return &Client{
		secure:       &http.Client{Transport: secureTransport},
		insecure:     &http.Client{Transport: insecureTransport},
		impersonator: opts.Impersonator,
		limiter:      newHostLimiter(opts.HostRate, 1),
		timeout:      timeout,
		retries:      retries,
		backoff:      defaultBackoff,
	}, nil
}

func defaultBackoff(attempt int) time.Duration {
	seconds := math.Pow(backoffBase, float64(attempt)) + rand.Float64()*0.25
	return time.Duration(seconds * float64(time.Second))
}

func (c *Client) Timeout() time.Duration {
	return c.timeout
}

func (c *Client) Close() error {
	c.secure.CloseIdleConnections()
	c.insecure.CloseIdleConnections()
	if c.impersonator != nil {
		return c.impersonator.Close()
	}
	return nil
}

// Get fetches target. It never returns a Go error: exhausted retries and
// content-shape problems come back as a failed Outcome.
func (c *Client) Get(ctx context.Context, target string, expect Expect) *Result {
	target = article.NormalizeURL(target)

	var lastErr string
	insecureUsed := false

	for attempt := 1; attempt <= c.retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return failed(MethodHTTP, err.Error())
		}
		if err := c.limiter.Wait(ctx, target); err != nil {
			return failed(MethodHTTP, err.Error())
		}

		header := BrowserHeaders(target)
		raw, err := c.do(ctx, c.secure, target, header)

		switch {
		case err != nil && isTLSError(err) && !insecureUsed:
			lastErr = err.Error()
			if res := c.viaImpersonator(ctx, target, header); res.OK && (expect != ExpectXML || res.XMLish()) {
				return res
			}

			insecureUsed = true
			slog.Warn("TLS verification failed, retrying without verification", "url", target, "error", err)
			raw, err = c.do(ctx, c.insecure, target, BrowserHeaders(target))
			if err != nil {
				lastErr = fmt.Sprintf("TLS verify failed then insecure failed: %v", err)
				break
			}
			res := c.finish(raw, MethodInsecureTLS)
			res.InsecureTLS = true
			if !statusOK(raw.Status) {
				res.OK = false
				res.Error = fmt.Sprintf("HTTP %d", raw.Status)
			}
			return c.record(res)

		case err != nil:
			lastErr = err.Error()
			if expect == ExpectXML && isConnectionError(err) {
				if res := c.viaImpersonator(ctx, target, header); res.OK && res.XMLish() {
					return res
				}
			}

		case !statusOK(raw.Status):
			if raw.Status == http.StatusForbidden || raw.Status == http.StatusTooManyRequests {
				if res := c.viaImpersonator(ctx, target, header); res.OK && len(res.Body) > 0 {
					return res
				}
			}
			lastErr = fmt.Sprintf("HTTP %d", raw.Status)

		default:
			res := c.finish(raw, MethodHTTP)
			if res.Error == "empty response body" {
				lastErr = res.Error
				break
			}
			if expect == ExpectXML && !res.XMLish() && LooksLikeHTML(res.Body) {
				if alt := c.viaImpersonator(ctx, target, header); alt.OK && alt.XMLish() {
					return alt
				}
				res.OK = false
				res.Error = "Expected XML but received HTML/blocked page"
			}
			return c.record(res)
		}

		telemetry.FetchRequests.WithLabelValues(string(MethodHTTP), "error").Inc()
		slog.Debug("Fetch attempt failed", "url", target, "attempt", attempt, "error", lastErr)

		if attempt < c.retries {
			select {
			case <-ctx.Done():
				return failed(MethodHTTP, ctx.Err().Error())
			case <-time.After(c.backoff(attempt)):
			}
		}
	}

	return failed(MethodHTTP, lastErr)
}

func (c *Client) do(ctx context.Context, client *http.Client, target string, header http.Header) (*RawResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header = header

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &RawResponse{
		Status:   resp.StatusCode,
		FinalURL: resp.Request.URL.String(),
		Header:   resp.Header,
		Body:     body,
	}, nil
}

func (c *Client) viaImpersonator(ctx context.Context, target string, header http.Header) *Result {
	if c.impersonator == nil {
		return failed(MethodBrowser, "browser transport not available")
	}

	raw, err := c.impersonator.Fetch(ctx, target, header)
	if err != nil {
		telemetry.FetchRequests.WithLabelValues(string(MethodBrowser), "error").Inc()
		return failed(MethodBrowser, fmt.Sprintf("browser fetch failed: %v", err))
	}

	res := c.finish(raw, MethodBrowser)
	if !statusOK(raw.Status) {
		res.OK = false
		res.Error = fmt.Sprintf("browser HTTP %d", raw.Status)
	}
	return c.record(res)
}

// finish decompresses, classifies and decodes a raw response.
func (c *Client) finish(raw *RawResponse, method Method) *Result {
	contentType := strings.TrimSpace(raw.Header.Get("Content-Type"))
	contentEncoding := strings.TrimSpace(raw.Header.Get("Content-Encoding"))

	res := &Result{Outcome: Outcome{
		Status:          raw.Status,
		FinalURL:        raw.FinalURL,
		Method:          method,
		ContentType:     contentType,
		ContentEncoding: contentEncoding,
	}}

	body := Decompress(raw.Body, contentEncoding)
	res.Body = body

	if len(body) == 0 {
		res.Error = "empty response body"
		return res
	}

	if !ContentTypeIsTextLike(contentType) && LooksBinary(body) {
		res.Binary = true
		res.Error = "non-text response: Content-Type=" + contentType
		return res
	}

	res.Text, res.Charset = Decode(body, contentType)
	res.Sniff = Sniff(res.Text, sniffLength)
	res.Blocked = LooksLikeBlockPage(res.Text)
	res.OK = true
	return res
}

func (c *Client) record(res *Result) *Result {
	telemetry.FetchRequests.WithLabelValues(string(res.Method), telemetry.Result(res.OK)).Inc()
	return res
}

func failed(method Method, msg string) *Result {
	return &Result{Outcome: Outcome{Method: method, Error: msg}}
}

func statusOK(status int) bool {
	return status >= 200 && status < 400
}

func isTLSError(err error) bool {
	var verifyErr *tls.CertificateVerificationError
	var unknownAuthority x509.UnknownAuthorityError
	var hostnameErr x509.HostnameError
	var invalidErr x509.CertificateInvalidError
	if errors.As(err, &verifyErr) || errors.As(err, &unknownAuthority) ||
		errors.As(err, &hostnameErr) || errors.As(err, &invalidErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "certificate") || strings.Contains(msg, "tls: ")
}

func isConnectionError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
