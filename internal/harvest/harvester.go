// Package harvest obtains the short-lived bearer token the swish API
// requires. There is no token endpoint: the only way in is to load the
// federation's widget page in a real browser and capture the Authorization
// header of the widget's own API traffic.
package harvest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"golang.org/x/sync/singleflight"
)

// ErrTokenAcquisition reports that no token could be captured: the page
// failed to load, the widget changed shape, or the timeout elapsed.
var ErrTokenAcquisition = errors.New("harvest: token acquisition failed")

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Harvester drives a headless Chromium to the widget page and intercepts
// the first authenticated request to the API host. Tokens are opaque and
// short-lived; expiry is detected reactively by the upstream returning 401,
// never predicted here.
type Harvester struct {
	widgetURL string
	apiHost   string
	headless  bool
	timeout   time.Duration
	logger    *slog.Logger

	// group collapses concurrent acquisitions: one browser launch serves
	// every caller that joins while it is in flight.
	group singleflight.Group

	// acquireFn is swapped out by tests; production uses the browser.
	acquireFn func(ctx context.Context) (string, error)
}

// New creates a harvester. apiHost is the host whose requests carry the
// token (the swish API), widgetURL the page that embeds the widget.
func New(widgetURL, apiHost string, headless bool, timeout time.Duration, logger *slog.Logger) *Harvester {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	h := &Harvester{
		widgetURL: widgetURL,
		apiHost:   strings.TrimPrefix(strings.TrimPrefix(apiHost, "https://"), "http://"),
		headless:  headless,
		timeout:   timeout,
		logger:    logger,
	}
	h.acquireFn = h.browserAcquire
	return h
}

// AcquireToken returns a fresh bearer token, verbatim as the widget sent it
// (scheme prefix included). Concurrent callers share a single in-flight
// acquisition and all receive the same token or the same error.
func (h *Harvester) AcquireToken(ctx context.Context) (string, error) {
	v, err, shared := h.group.Do("token", func() (any, error) {
		return h.acquireFn(ctx)
	})
	if err != nil {
		return "", err
	}
	if shared {
		h.logger.Debug("token acquisition shared with concurrent caller")
	}
	return v.(string), nil
}

// browserAcquire launches Chromium, registers a network listener, navigates
// to the widget page, and waits for the first Authorization header bound for
// the API host. The browser is torn down on every exit path.
func (h *Harvester) browserAcquire(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", h.headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.WindowSize(1280, 900),
		chromedp.UserAgent(userAgent),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	tokenCh := make(chan string, 1)
	chromedp.ListenTarget(browserCtx, func(ev any) {
		e, ok := ev.(*network.EventRequestWillBeSent)
		if !ok || !strings.Contains(e.Request.URL, h.apiHost) {
			return
		}
		if tok := authorizationHeader(e.Request.Headers); tok != "" {
			select {
			case tokenCh <- tok:
			default:
			}
		}
	})

	h.logger.Info("loading widget page", slog.String("url", h.widgetURL), slog.Bool("headless", h.headless))
	start := time.Now()
	if err := chromedp.Run(browserCtx,
		network.Enable(),
		emulation.SetLocaleOverride().WithLocale("he-IL"),
		emulation.SetTimezoneOverride("Asia/Jerusalem"),
		chromedp.Navigate(h.widgetURL),
	); err != nil {
		return "", fmt.Errorf("%w: load widget page: %v", ErrTokenAcquisition, err)
	}

	select {
	case tok := <-tokenCh:
		h.logger.Info("token captured",
			slog.Duration("elapsed", time.Since(start).Round(time.Millisecond)),
			slog.String("prefix", redact(tok)))
		return tok, nil
	case <-ctx.Done():
		return "", fmt.Errorf("%w: no authenticated widget request within %s", ErrTokenAcquisition, h.timeout)
	}
}

// authorizationHeader pulls the Authorization value out of a CDP header map,
// whichever casing the browser reported it with.
func authorizationHeader(headers network.Headers) string {
	for k, v := range headers {
		if !strings.EqualFold(k, "Authorization") {
			continue
		}
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// redact keeps enough of a token to correlate log lines without leaking it.
func redact(tok string) string {
	if len(tok) <= 12 {
		return "***"
	}
	return tok[:12] + "..."
}
