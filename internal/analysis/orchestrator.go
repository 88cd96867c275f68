package analysis

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/sitelens/sitelens/internal/domain"
	"github.com/sitelens/sitelens/internal/observability"
	"github.com/sitelens/sitelens/internal/provider"
	"github.com/sitelens/sitelens/internal/resilience"
)

// Orchestrator drives the provider fallback chain: providers are attempted
// strictly in priority order, one attempt each, stopping at the first
// success. Unconfigured providers are skipped outright and never count as
// failed attempts.
type Orchestrator struct {
	providers []provider.Client
	breakers  *resilience.CircuitBreakerManager
	logger    *zap.Logger
}

// NewOrchestrator creates an orchestrator over providers in priority order.
func NewOrchestrator(providers []provider.Client, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		providers: providers,
		breakers:  resilience.NewCircuitBreakerManager(),
		logger:    logger,
	}
}

// Analyze runs the fallback chain for one image and normalizes the first
// successful answer. When every provider fails or is skipped it returns an
// ANALYSIS_UNAVAILABLE error that enumerates exactly what went wrong.
func (o *Orchestrator) Analyze(ctx context.Context, img provider.Image, prompt string) (domain.NormalizedAnalysis, error) {
	var missingCreds []string
	providerErrors := make(map[string]string)

	for _, client := range o.providers {
		if !client.Configured() {
			missingCreds = append(missingCreds, client.Name())
			continue
		}

		breaker := o.breakers.GetOrCreate(client.Name())
		start := time.Now()
		resultAny, err := breaker.ExecuteWithContext(ctx, func(ctx context.Context) (interface{}, error) {
			return client.Analyze(ctx, img, prompt)
		})
		if err != nil {
			reason := failureReason(err)
			providerErrors[client.Name()] = reason
			observability.GetMetrics().RecordProviderRequest(client.Name(), "error", time.Since(start))
			observability.GetMetrics().RecordProviderFallback(client.Name(), reason)
			o.logger.Warn("Vision provider failed, falling back",
				zap.String("provider", client.Name()),
				zap.String("reason", reason),
			)
			continue
		}
		observability.GetMetrics().RecordProviderRequest(client.Name(), "success", time.Since(start))

		result := resultAny.(*provider.Result)
		o.logger.Info("Vision provider succeeded",
			zap.String("provider", client.Name()),
			zap.Int("response_chars", len(result.Text)),
		)

		if DetectCaptcha(result.Text) {
			o.logger.Warn("Bot challenge detected in provider output",
				zap.String("provider", client.Name()),
			)
			return CaptchaResult(), nil
		}

		return Normalize(result.Text), nil
	}

	return domain.NormalizedAnalysis{}, domain.AnalysisUnavailableError(missingCreds, providerErrors)
}

// failureReason reduces an error to the classified reason string carried in
// the final ANALYSIS_UNAVAILABLE message.
func failureReason(err error) string {
	var provErr *provider.Error
	if errors.As(err, &provErr) {
		return string(provErr.Kind)
	}
	if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyRequests) {
		return string(provider.FailureUnavailable)
	}
	return err.Error()
}
