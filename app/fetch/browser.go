package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Browser drives a headless Chromium through the DevTools protocol. It is
// started lazily on the first request and reused until Close.
type Browser struct {
	controlURL string
	proxyURL   string
	timeout    time.Duration

	browser  *rod.Browser
	launcher *launcher.Launcher
	mu       sync.Mutex
}

// NewBrowser returns a browser transport. With an empty controlURL a local
// headless browser is launched on demand.
func NewBrowser(controlURL, proxyURL string, timeout time.Duration) *Browser {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Browser{
		controlURL: controlURL,
		proxyURL:   proxyURL,
		timeout:    timeout,
	}
}

func (b *Browser) connect() (*rod.Browser, error) {
	if b.browser != nil {
		return b.browser, nil
	}

	controlURL := b.controlURL
	if controlURL == "" {
		l := launcher.New().
			Headless(true).
			NoSandbox(true).
			Set("disable-blink-features", "AutomationControlled").
			Set("disable-dev-shm-usage").
			Set("disable-gpu")
		if b.proxyURL != "" {
			l = l.Proxy(b.proxyURL)
		}

		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("failed to launch browser: %w", err)
		}
		b.launcher = l
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	slog.Info("Browser transport connected", "control_url", controlURL)
	b.browser = browser
	return browser, nil
}

func (b *Browser) Fetch(ctx context.Context, target string, header http.Header) (*RawResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	browser, err := b.connect()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	page, err := browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	defer page.Close()

	if ua := header.Get("User-Agent"); ua != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      ua,
			AcceptLanguage: header.Get("Accept-Language"),
		}); err != nil {
			return nil, fmt.Errorf("failed to set user agent: %w", err)
		}
	}

	var status int
	var mimeType string
	waitDocument := page.EachEvent(func(e *proto.NetworkResponseReceived) bool {
		if e.Type != proto.NetworkResourceTypeDocument {
			return false
		}
		status = e.Response.Status
		mimeType = e.Response.MIMEType
		return true
	})

	if err := page.Navigate(target); err != nil {
		return nil, fmt.Errorf("failed to navigate: %w", err)
	}
	waitDocument()

	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("failed to wait for page load: %w", err)
	}

	var body string
	if strings.Contains(strings.ToLower(mimeType), "xml") {
		res, err := page.Eval(`() => new XMLSerializer().serializeToString(document)`)
		if err != nil {
			return nil, fmt.Errorf("failed to read document: %w", err)
		}
		body = res.Value.Str()
	} else {
		body, err = page.HTML()
		if err != nil {
			return nil, fmt.Errorf("failed to read document: %w", err)
		}
	}

	finalURL := target
	if info, err := page.Info(); err == nil && info.URL != "" {
		finalURL = info.URL
	}

	if status == 0 {
		status = http.StatusOK
	}

	h := http.Header{}
	if mimeType != "" {
		h.Set("Content-Type", mimeType+"; charset=utf-8")
	}

	return &RawResponse{
		Status:   status,
		FinalURL: finalURL,
		Header:   h,
		Body:     []byte(body),
	}, nil
}

func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var err error
	if b.browser != nil {
		err = b.browser.Close()
		b.browser = nil
	}
	if b.launcher != nil {
		b.launcher.Cleanup()
		b.launcher = nil
	}
	return err
}
