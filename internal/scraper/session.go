package scraper

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"golang.org/x/time/rate"

	"sjsage522/placeworker/logger"
	"sjsage522/placeworker/pkg/errors"
)

// SessionConfig controls how browser sessions are launched
type SessionConfig struct {
	Headless       bool
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	// LaunchTimeout bounds the initial browser process start
	LaunchTimeout time.Duration
	// NavTimeout bounds a single navigation
	NavTimeout time.Duration
	// SettleDelay is waited after navigation so dynamic content can render
	SettleDelay time.Duration
	// OpsPerSecond paces browser operations against flaky dynamic pages
	OpsPerSecond float64
	// ProxyServer is passed to Chrome verbatim when non-empty
	ProxyServer string
}

// DefaultSessionConfig returns the launch configuration used in production
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Headless:       true,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		LaunchTimeout:  5 * time.Minute,
		NavTimeout:     30 * time.Second,
		SettleDelay:    1500 * time.Millisecond,
		OpsPerSecond:   2.0,
	}
}

// ChromeSessionFactory launches headless Chrome sessions via chromedp
type ChromeSessionFactory struct {
	cfg SessionConfig
	log *logger.Logger
}

var _ SessionFactory = (*ChromeSessionFactory)(nil)

// NewChromeSessionFactory creates a factory with the given launch configuration
func NewChromeSessionFactory(cfg SessionConfig) *ChromeSessionFactory {
	return &ChromeSessionFactory{
		cfg: cfg,
		log: logger.ForSession(),
	}
}

// Acquire launches a browser process and one browsing context. A launch
// failure aborts the current attempt only; the orchestrator decides whether
// to retry.
func (f *ChromeSessionFactory) Acquire(ctx context.Context) (Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", f.cfg.Headless),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-gpu", true),
		// Required inside restricted containers
		chromedp.Flag("no-sandbox", true),
		chromedp.UserAgent(f.cfg.UserAgent),
		chromedp.WindowSize(f.cfg.ViewportWidth, f.cfg.ViewportHeight),
	)
	if f.cfg.ProxyServer != "" {
		opts = append(opts, chromedp.ProxyServer(f.cfg.ProxyServer))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Run a no-op task so the process actually starts here and launch errors
	// surface before the strategy begins navigating.
	startCtx, startCancel := context.WithTimeout(browserCtx, f.cfg.LaunchTimeout)
	defer startCancel()
	if err := chromedp.Run(startCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, errors.NewSession("chrome", "failed to launch browser", err)
	}

	f.log.Debug().
		Bool("headless", f.cfg.Headless).
		Int("viewport_width", f.cfg.ViewportWidth).
		Int("viewport_height", f.cfg.ViewportHeight).
		Msg("Browser session acquired")

	return &chromeSession{
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
		limiter:       rate.NewLimiter(rate.Limit(f.cfg.OpsPerSecond), 1),
		navTimeout:    f.cfg.NavTimeout,
		settleDelay:   f.cfg.SettleDelay,
		log:           f.log,
	}, nil
}

// chromeSession is one live browser process plus one browsing context
type chromeSession struct {
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
	limiter       *rate.Limiter
	navTimeout    time.Duration
	settleDelay   time.Duration
	log           *logger.Logger
	releaseOnce   sync.Once
}

var _ Session = (*chromeSession)(nil)

// HTML navigates to the URL and returns the rendered markup
func (s *chromeSession) HTML(ctx context.Context, url string) (string, error) {
	// Pace operations; flaky dynamic pages misbehave under rapid-fire CDP
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}

	navCtx, cancel := context.WithTimeout(s.browserCtx, s.navTimeout)
	defer cancel()

	var html string
	err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.Sleep(s.settleDelay),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", errors.NewNavigation(url, "failed to render page", err)
	}
	return html, nil
}

// Release closes the browsing context and browser process. Close failures are
// logged only; they must never override the outcome of the attempt.
func (s *chromeSession) Release() {
	s.releaseOnce.Do(func() {
		if err := chromedp.Cancel(s.browserCtx); err != nil {
			s.log.Warn().Err(err).Msg("Browser close failed")
		}
		s.browserCancel()
		s.allocCancel()
		s.log.Debug().Msg("Browser session released")
	})
}
