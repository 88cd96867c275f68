package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/sitelens/sitelens/internal/config"
)

func testStrategies() []LoadStrategy {
	return []LoadStrategy{
		{Name: "domcontentloaded", Timeout: time.Second, RetryOnClosed: true},
		{Name: "load", Timeout: time.Second},
		{Name: "networkidle", Timeout: time.Second},
		{Name: "commit", Timeout: time.Second},
	}
}

func TestEscalateFirstStrategyWins(t *testing.T) {
	var attempts []string
	navigate := func(s LoadStrategy) error {
		attempts = append(attempts, s.Name)
		return nil
	}

	winner, err := escalate(testStrategies(), navigate, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("escalate error: %v", err)
	}
	if winner.Name != "domcontentloaded" {
		t.Errorf("winner = %q, want domcontentloaded", winner.Name)
	}
	if len(attempts) != 1 {
		t.Errorf("attempts = %v, want exactly one", attempts)
	}
}

func TestEscalateFallsThroughToLaterStrategy(t *testing.T) {
	var attempts []string
	navigate := func(s LoadStrategy) error {
		attempts = append(attempts, s.Name)
		if s.Name == "networkidle" {
			return nil
		}
		return errors.New("Timeout 1000ms exceeded")
	}

	winner, err := escalate(testStrategies(), navigate, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("escalate error: %v", err)
	}
	if winner.Name != "networkidle" {
		t.Errorf("winner = %q, want networkidle", winner.Name)
	}
	want := []string{"domcontentloaded", "load", "networkidle"}
	if len(attempts) != len(want) {
		t.Fatalf("attempts = %v, want %v", attempts, want)
	}
	for i := range want {
		if attempts[i] != want[i] {
			t.Errorf("attempt %d = %q, want %q (strict ladder order)", i, attempts[i], want[i])
		}
	}
}

func TestEscalateRecreatesOnDeadTarget(t *testing.T) {
	recreated := 0
	calls := 0
	navigate := func(s LoadStrategy) error {
		calls++
		if calls == 1 {
			return errors.New("Target page, context or browser has been closed")
		}
		return nil
	}
	recreate := func() error {
		recreated++
		return nil
	}

	winner, err := escalate(testStrategies(), navigate, recreate, zap.NewNop())
	if err != nil {
		t.Fatalf("escalate error: %v", err)
	}
	if recreated != 1 {
		t.Errorf("recreate called %d times, want 1", recreated)
	}
	if winner.Name != "domcontentloaded" {
		t.Errorf("winner = %q, want the retried first rung", winner.Name)
	}
}

func TestEscalateNoRecreateOnLaterRungs(t *testing.T) {
	recreated := 0
	navigate := func(s LoadStrategy) error {
		if s.Name == "domcontentloaded" {
			return errors.New("Timeout 1000ms exceeded")
		}
		if s.Name == "load" {
			return errors.New("Target page, context or browser has been closed")
		}
		return nil
	}
	recreate := func() error {
		recreated++
		return nil
	}

	winner, err := escalate(testStrategies(), navigate, recreate, zap.NewNop())
	if err != nil {
		t.Fatalf("escalate error: %v", err)
	}
	if recreated != 0 {
		t.Errorf("recreate called %d times, want 0 (only the first rung retries)", recreated)
	}
	if winner.Name != "networkidle" {
		t.Errorf("winner = %q, want networkidle", winner.Name)
	}
}

func TestEscalateExhaustionReturnsLastError(t *testing.T) {
	lastErr := errors.New("net::ERR_CONNECTION_REFUSED")
	navigate := func(s LoadStrategy) error {
		if s.Name == "commit" {
			return lastErr
		}
		return errors.New("Timeout 1000ms exceeded")
	}

	_, err := escalate(testStrategies(), navigate, nil, zap.NewNop())
	if !errors.Is(err, lastErr) {
		t.Errorf("err = %v, want the final rung's error", err)
	}
}

func TestEscalateAbortsOnContextCancel(t *testing.T) {
	calls := 0
	navigate := func(s LoadStrategy) error {
		calls++
		return context.Canceled
	}

	_, err := escalate(testStrategies(), navigate, nil, zap.NewNop())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("navigate called %d times after cancellation, want 1", calls)
	}
}

func TestEscalateRecreateFailureAborts(t *testing.T) {
	recreateErr := errors.New("browser is gone")
	navigate := func(s LoadStrategy) error {
		return errors.New("target closed")
	}
	recreate := func() error {
		return recreateErr
	}

	_, err := escalate(testStrategies(), navigate, recreate, zap.NewNop())
	if !errors.Is(err, recreateErr) {
		t.Errorf("err = %v, want the recreate failure", err)
	}
}

// stubPage overrides only the methods Load touches; everything else panics
// through the embedded nil interface, which no test path reaches.
type stubPage struct {
	playwright.Page
	routes  int
	gotos   int
	gotoErr error
}

func (p *stubPage) Route(url interface{}, handler func(playwright.Route), times ...int) error {
	p.routes++
	return nil
}

func (p *stubPage) Goto(url string, options ...playwright.PageGotoOptions) (playwright.Response, error) {
	p.gotos++
	return nil, p.gotoErr
}

func (p *stubPage) WaitForTimeout(timeout float64) {}

func TestLoadReinstallsBlockingAfterRecreate(t *testing.T) {
	first := &stubPage{gotoErr: errors.New("Target page, context or browser has been closed")}
	second := &stubPage{}
	pages := []*stubPage{first, second}
	created := 0
	firstClosed := false

	l := &Loader{
		cfg:        config.BrowserConfig{BlockHeavy: true},
		strategies: testStrategies(),
		newPage: func() (playwright.Page, func(), error) {
			p := pages[created]
			created++
			return p, func() {
				if p == first {
					firstClosed = true
				}
			}, nil
		},
		logger: zap.NewNop(),
	}

	page, cleanup, err := l.Load(context.Background(), "https://example.com", false)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	defer cleanup()

	if created != 2 {
		t.Fatalf("pages created = %d, want 2 (initial plus one recreate)", created)
	}
	if !firstClosed {
		t.Error("dead page was not closed before the recreate")
	}
	if got, ok := page.(*stubPage); !ok || got != second {
		t.Errorf("Load returned page %v, want the recreated one", page)
	}
	if first.routes != 1 {
		t.Errorf("initial page route installs = %d, want 1", first.routes)
	}
	if second.routes != 1 {
		t.Errorf("recreated page route installs = %d, want 1 (blocking must survive a recreate)", second.routes)
	}
	if first.gotos != 1 || second.gotos != 1 {
		t.Errorf("navigations = %d/%d, want one per page", first.gotos, second.gotos)
	}
}

func TestClassifyNavError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{errors.New("Timeout 45000ms exceeded"), "timeout"},
		{errors.New("navigation timed out"), "timeout"},
		{errors.New("Target page, context or browser has been closed"), "browser-init-error"},
		{errors.New("net::ERR_NAME_NOT_RESOLVED"), "navigation-error"},
	}

	for _, tt := range tests {
		if got := classifyNavError(tt.err); got != tt.want {
			t.Errorf("classifyNavError(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
