package browser

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/sitelens/sitelens/internal/config"
	"github.com/sitelens/sitelens/internal/domain"
	"github.com/sitelens/sitelens/internal/observability"
)

// LoadStrategy is one rung of the navigation escalation ladder. Strategies
// run in order; the first one whose wait condition is met wins.
type LoadStrategy struct {
	Name      string
	WaitUntil *playwright.WaitUntilState
	Timeout   time.Duration

	// RetryOnClosed allows one page recreation when the browser target died
	// under this strategy. Only the first rung carries it; by the later rungs
	// a dying target means the site itself is hostile to automation.
	RetryOnClosed bool
}

func defaultStrategies() []LoadStrategy {
	return []LoadStrategy{
		{Name: "domcontentloaded", WaitUntil: playwright.WaitUntilStateDomcontentloaded, Timeout: 45 * time.Second, RetryOnClosed: true},
		{Name: "load", WaitUntil: playwright.WaitUntilStateLoad, Timeout: 60 * time.Second},
		{Name: "networkidle", WaitUntil: playwright.WaitUntilStateNetworkidle, Timeout: 90 * time.Second},
		{Name: "commit", WaitUntil: playwright.WaitUntilStateCommit, Timeout: 30 * time.Second},
	}
}

// Heavy resource types blocked on every load; images and stylesheets are
// additionally blocked when only metrics are needed, since no screenshot
// will be taken.
var (
	alwaysBlocked      = map[string]bool{"media": true, "font": true}
	metricsOnlyBlocked = map[string]bool{"media": true, "font": true, "image": true, "stylesheet": true}
)

// Loader drives a page to a usable render using escalating strategies.
type Loader struct {
	session    *Session
	cfg        config.BrowserConfig
	strategies []LoadStrategy
	newPage    func() (playwright.Page, func(), error)
	logger     *zap.Logger
}

func NewLoader(session *Session, cfg config.BrowserConfig, logger *zap.Logger) *Loader {
	return &Loader{
		session:    session,
		cfg:        cfg,
		strategies: defaultStrategies(),
		newPage:    session.NewPage,
		logger:     logger,
	}
}

// Load navigates to targetURL and returns a page with a settled render. The
// returned cleanup closes the page and its context; it is non-nil whenever
// the error is nil. MetricsOnly loads block renderable assets too.
func (l *Loader) Load(ctx context.Context, targetURL string, metricsOnly bool) (playwright.Page, func(), error) {
	page, cleanup, err := l.newRoutedPage(metricsOnly)
	if err != nil {
		return nil, nil, &domain.DomainError{
			Code:    domain.ErrCodeLoadFailure,
			Message: "browser-init-error",
			Hint:    "The headless browser could not be started. Check the playwright installation.",
			Err:     err,
		}
	}

	navigate := func(s LoadStrategy) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, err := page.Goto(targetURL, playwright.PageGotoOptions{
			WaitUntil: s.WaitUntil,
			Timeout:   playwright.Float(float64(s.Timeout.Milliseconds())),
		})
		return err
	}
	recreate := func() error {
		cleanup()
		var err error
		page, cleanup, err = l.newRoutedPage(metricsOnly)
		return err
	}

	start := time.Now()
	winner, err := escalate(l.strategies, navigate, recreate, l.logger.With(zap.String("url", targetURL)))
	if err != nil {
		observability.GetMetrics().RecordPageLoad("exhausted", "error", time.Since(start))
		if cleanup != nil {
			cleanup()
		}
		return nil, nil, domain.LoadFailureError(targetURL, err)
	}
	observability.GetMetrics().RecordPageLoad(winner.Name, "success", time.Since(start))

	// Late-rendering frameworks need a beat after the wait condition fires.
	page.WaitForTimeout(float64(l.cfg.SettleDelay.Milliseconds()))

	l.logger.Info("page loaded",
		zap.String("url", targetURL),
		zap.String("strategy", winner.Name),
		zap.Bool("metrics_only", metricsOnly))
	return page, cleanup, nil
}

// newRoutedPage is the single constructor for pages handed to the ladder.
// Recreated pages go through here too, so a retry after a dead target keeps
// the same resource interception as the page it replaces.
func (l *Loader) newRoutedPage(metricsOnly bool) (playwright.Page, func(), error) {
	page, cleanup, err := l.newPage()
	if err != nil {
		return nil, nil, err
	}
	l.installBlocking(page, metricsOnly)
	return page, cleanup, nil
}

func (l *Loader) installBlocking(page playwright.Page, metricsOnly bool) {
	if !l.cfg.BlockHeavy {
		return
	}
	blocked := alwaysBlocked
	if metricsOnly {
		blocked = metricsOnlyBlocked
	}
	if err := page.Route("**/*", func(route playwright.Route) {
		if blocked[route.Request().ResourceType()] {
			route.Abort()
			return
		}
		route.Continue()
	}); err != nil {
		l.logger.Warn("route blocking unavailable", zap.Error(err))
	}
}

type navigateFunc func(s LoadStrategy) error

type recreateFunc func() error

// escalate runs the strategy ladder until one navigation succeeds. A dead
// target under a RetryOnClosed strategy triggers one page recreation and a
// retry of the same rung. Context cancellation aborts the ladder.
func escalate(strategies []LoadStrategy, navigate navigateFunc, recreate recreateFunc, logger *zap.Logger) (LoadStrategy, error) {
	var lastErr error
	for _, s := range strategies {
		err := navigate(s)
		if err == nil {
			return s, nil
		}
		if ctxErr := contextError(err); ctxErr != nil {
			return LoadStrategy{}, ctxErr
		}
		if s.RetryOnClosed && isTargetClosed(err) {
			logger.Warn("browser target died, recreating page", zap.String("strategy", s.Name), zap.Error(err))
			if rerr := recreate(); rerr != nil {
				return LoadStrategy{}, rerr
			}
			if err = navigate(s); err == nil {
				return s, nil
			}
		}
		logger.Warn("load strategy failed",
			zap.String("strategy", s.Name),
			zap.String("reason", classifyNavError(err)),
			zap.Error(err))
		lastErr = err
	}
	return LoadStrategy{}, lastErr
}

func contextError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

func isTargetClosed(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "target closed") ||
		strings.Contains(msg, "target page, context or browser has been closed") ||
		strings.Contains(msg, "browser has been closed")
}

func isTimeout(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out")
}

func classifyNavError(err error) string {
	switch {
	case isTimeout(err):
		return "timeout"
	case isTargetClosed(err):
		return "browser-init-error"
	default:
		return "navigation-error"
	}
}
