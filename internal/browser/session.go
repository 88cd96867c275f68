package browser

import (
	"fmt"
	"sync"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/sitelens/sitelens/internal/config"
	"github.com/sitelens/sitelens/internal/observability"
)

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 SiteLens/1.0"

// Session owns the process-wide headless browser. The browser is launched
// lazily on first use and relaunched if the connection drops; it is never
// closed between audits because launch costs seconds while an audit needs
// milliseconds. Contexts and pages are per-audit and always closed.
type Session struct {
	cfg    config.BrowserConfig
	logger *zap.Logger

	mu      sync.Mutex
	pw      *playwright.Playwright
	browser playwright.Browser
}

// NewSession prepares a lazily-launched browser session.
func NewSession(cfg config.BrowserConfig, logger *zap.Logger) *Session {
	return &Session{cfg: cfg, logger: logger}
}

// acquire returns a connected browser, launching or relaunching as needed.
// Callers hold no lock afterwards; playwright.Browser is safe for concurrent
// context creation.
func (s *Session) acquire() (playwright.Browser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.browser != nil && s.browser.IsConnected() {
		return s.browser, nil
	}

	if s.browser != nil {
		s.logger.Warn("browser connection lost, relaunching")
		observability.GetMetrics().BrowserRelaunches.Inc()
		s.browser = nil
	}

	if s.pw == nil {
		pw, err := playwright.Run()
		if err != nil {
			return nil, fmt.Errorf("starting playwright: %w", err)
		}
		s.pw = pw
	}

	browser, err := s.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(s.cfg.Headless),
		Args: []string{
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	s.logger.Info("browser launched", zap.Bool("headless", s.cfg.Headless))
	s.browser = browser
	return browser, nil
}

// NewPage creates a fresh context and page at the desktop viewport. The
// returned cleanup closes both and must be called exactly once.
func (s *Session) NewPage() (playwright.Page, func(), error) {
	browser, err := s.acquire()
	if err != nil {
		return nil, nil, err
	}

	browserCtx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  s.cfg.DesktopWidth,
			Height: s.cfg.DesktopHeight,
		},
		UserAgent: playwright.String(userAgent),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("creating browser context: %w", err)
	}

	page, err := browserCtx.NewPage()
	if err != nil {
		browserCtx.Close()
		return nil, nil, fmt.Errorf("creating page: %w", err)
	}

	cleanup := func() {
		page.Close()
		browserCtx.Close()
	}
	return page, cleanup, nil
}

// Stop tears the whole session down. Only process shutdown calls this.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.browser != nil {
		s.browser.Close()
		s.browser = nil
	}
	if s.pw != nil {
		err := s.pw.Stop()
		s.pw = nil
		return err
	}
	return nil
}
