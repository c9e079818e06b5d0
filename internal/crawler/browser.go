package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/IliaW/jamaah-scrape-worker/config"
	"github.com/IliaW/jamaah-scrape-worker/internal/extractor"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

var ErrSessionClosed = errors.New("rendering session is closed")

// Browser launches headless Chrome sessions. One session serves one scrape run.
type Browser struct {
	cfg *config.BrowserConfig
	log *slog.Logger
}

func NewBrowser(cfg *config.BrowserConfig, log *slog.Logger) *Browser {
	return &Browser{cfg: cfg, log: log}
}

// BrowserSession owns one browser process. Pages are rendered one at a time, each in its own tab.
type BrowserSession struct {
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
	cfg           *config.BrowserConfig
	log           *slog.Logger
	mu            sync.Mutex
	closed        bool
}

// Open starts the browser. The session must be released with Close.
func (b *Browser) Open(ctx context.Context) (*BrowserSession, error) {
	b.log.Debug("starting headless browser.")
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", b.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if b.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(b.cfg.UserAgent))
	}
	if b.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(b.cfg.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	// the first Run on a fresh context launches the browser
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	return &BrowserSession{
		browserCtx:    browserCtx,
		cancelBrowser: cancelBrowser,
		cancelAlloc:   cancelAlloc,
		cfg:           b.cfg,
		log:           b.log,
	}, nil
}

// Render loads url in a new tab and returns the visible body text and the document HTML.
// A navigation that does not finish within the navigation timeout is not an error: whatever
// has loaded by then is extracted.
func (s *BrowserSession) Render(ctx context.Context, url string) (*extractor.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}

	tabCtx, cancelTab := chromedp.NewContext(s.browserCtx)
	defer cancelTab()
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()
	if err := chromedp.Run(tabCtx); err != nil {
		return nil, fmt.Errorf("open tab: %w", err)
	}

	navCtx, cancelNav := context.WithTimeout(tabCtx, s.cfg.NavigationTimeout)
	err := chromedp.Run(navCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(map[string]interface{}{
			"User-Agent": s.cfg.UserAgent,
		}),
		enableLifeCycleEvents(),
		navigateAndWaitFor(url, "DOMContentLoaded"),
	)
	cancelNav()
	if err != nil {
		s.log.Warn("navigation did not complete. Extracting loaded content.", slog.String("url", url),
			slog.String("err", err.Error()))
	}

	p := &extractor.Page{URL: url}
	exCtx, cancelEx := context.WithTimeout(tabCtx, s.cfg.ExtractTimeout)
	defer cancelEx()
	err = chromedp.Run(exCtx,
		chromedp.Evaluate(`document.body ? document.body.innerText : ""`, &p.Text),
		chromedp.ActionFunc(func(ctx context.Context) error {
			rootNode, err := dom.GetDocument().Do(ctx)
			if err != nil {
				return err
			}
			p.HTML, err = dom.GetOuterHTML().WithNodeID(rootNode.NodeID).Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("read page content: %w", err)
	}

	return p, nil
}

// Close shuts the browser down. It is safe to call more than once.
func (s *BrowserSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.log.Debug("closing headless browser.")
	if err := chromedp.Cancel(s.browserCtx); err != nil {
		s.log.Warn("failed to close browser gracefully.", slog.String("err", err.Error()))
	}
	s.cancelBrowser()
	s.cancelAlloc()
}

func enableLifeCycleEvents() chromedp.ActionFunc {
	return func(ctx context.Context) error {
		err := page.Enable().Do(ctx)
		if err != nil {
			return err
		}
		return page.SetLifecycleEventsEnabled(true).Do(ctx)
	}
}

func navigateAndWaitFor(url string, eventName string) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		// subscribe before navigating so a fast page cannot fire the event unseen
		ch := make(chan struct{})
		lctx, cancel := context.WithCancel(ctx)
		defer cancel()
		var once sync.Once
		chromedp.ListenTarget(lctx, func(ev interface{}) {
			if e, ok := ev.(*page.EventLifecycleEvent); ok && e.Name == eventName {
				once.Do(func() { close(ch) })
			}
		})

		_, _, errText, err := page.Navigate(url).Do(ctx)
		if err != nil {
			return err
		}
		if errText != "" {
			return fmt.Errorf("navigate: %s", errText)
		}
		select {
		case <-ch:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
