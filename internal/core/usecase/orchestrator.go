package usecase

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/mkoval/chatpoint/internal/core/domain"
	"github.com/mkoval/chatpoint/internal/core/ports"
)

const usageFeatureChatResponse = "chat_response"

// GenerationOrchestrator drives the prioritized provider chain. Providers
// are tried one at a time in ascending priority order; an unavailable
// provider is skipped without counting as a failure, a failing one is
// recorded and never retried within the same call.
type GenerationOrchestrator struct {
	providers    []ports.Provider
	tracker      ports.UsageTracker
	trackTimeout time.Duration
}

func NewGenerationOrchestrator(providers []ports.Provider, tracker ports.UsageTracker) *GenerationOrchestrator {
	sorted := make([]ports.Provider, len(providers))
	copy(sorted, providers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() < sorted[j].Priority()
	})
	return &GenerationOrchestrator{
		providers:    sorted,
		tracker:      tracker,
		trackTimeout: 5 * time.Second,
	}
}

func (o *GenerationOrchestrator) Generate(
	ctx context.Context,
	systemPrompt, userPrompt string,
	opts domain.GenerationOptions,
) (*domain.GenerationResult, error) {
	failures := make([]domain.ProviderFailure, 0, len(o.providers))

	for _, provider := range o.providers {
		if !provider.Available() {
			slog.Debug("provider skipped: unavailable", "provider", provider.Name())
			continue
		}

		result, err := provider.Generate(ctx, systemPrompt, userPrompt, opts)
		if err != nil {
			slog.Warn("provider generate failed",
				"provider", provider.Name(),
				"model", provider.Model(),
				"error", err,
			)
			failures = append(failures, domain.ProviderFailure{
				Provider: provider.Name(),
				Model:    provider.Model(),
				Message:  err.Error(),
			})
			continue
		}

		o.trackAsync(opts, result)
		return result, nil
	}

	return nil, &domain.ProviderChainError{Failures: failures}
}

// trackAsync emits the usage event on a detached goroutine with its own
// deadline and error boundary. The reply path never waits on it.
func (o *GenerationOrchestrator) trackAsync(opts domain.GenerationOptions, result *domain.GenerationResult) {
	if o.tracker == nil {
		return
	}

	event := domain.UsageEvent{
		TenantID:     opts.TenantID,
		Provider:     result.Provider,
		Model:        result.Model,
		FeatureType:  usageFeatureChatResponse,
		Channel:      string(opts.Channel),
		InputTokens:  result.InputTokens,
		OutputTokens: result.OutputTokens,
		CreatedAt:    time.Now().UTC().Format(time.RFC3339),
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("usage tracking panic", "panic", r)
			}
		}()
		trackCtx, cancel := context.WithTimeout(context.Background(), o.trackTimeout)
		defer cancel()
		if err := o.tracker.Track(trackCtx, event); err != nil {
			slog.Warn("usage tracking failed",
				"tenant_id", event.TenantID,
				"provider", event.Provider,
				"error", err,
			)
		}
	}()
}
