package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pilarhub/eventcore/internal/config"
	"github.com/pilarhub/eventcore/internal/delivery"
	"github.com/pilarhub/eventcore/internal/delivery/email"
	"github.com/pilarhub/eventcore/internal/delivery/email/provider"
	"github.com/pilarhub/eventcore/internal/delivery/push"
	"github.com/pilarhub/eventcore/internal/rules"
)

// newDeliveryPool registers the configured channels and builds the pool.
// Channels without configuration are left out; requests for them are skipped.
func newDeliveryPool(ctx context.Context, cfg *config.Config, m delivery.Recorder) (*delivery.Pool, error) {
	registry := delivery.NewRegistry()

	if cfg.PushGatewayURL != "" {
		sender, err := push.NewSender(cfg.PushGatewayURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create push sender: %w", err)
		}
		registry.Register(sender)
	} else {
		slog.Warn("No push gateway configured, push delivery disabled")
	}

	if cfg.EmailEnabled {
		providers := provider.NewRegistry()
		providers.Register(provider.NewSES(ctx, cfg.AWSRegion))
		providers.Register(provider.NewResend(cfg.ResendAPIKey))
		if err := providers.SetOrder("ses", "resend"); err != nil {
			return nil, err
		}
		if len(providers.Available()) == 0 {
			slog.Warn("Email enabled but no provider is configured, email will fail")
		}
		registry.Register(email.NewSender(cfg.EmailFrom, providers))
	}

	return delivery.NewPool(registry, delivery.PoolOptions{
		Workers:   cfg.DeliveryWorkers,
		QueueSize: cfg.DeliveryQueueSize,
		Metrics:   m,
	}), nil
}

// runReprocessor periodically classifies notifications the rule engine has
// not seen yet, such as those created while rule evaluation was failing.
func runReprocessor(ctx context.Context, engine *rules.Engine, interval time.Duration) {
	slog.Info("Starting rule reprocessing sweep", "interval", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Rule reprocessing sweep stopped")
			return
		case <-ticker.C:
			result, err := engine.ReprocessPending(ctx, "", rules.DefaultReprocessLimit)
			if err != nil {
				slog.Error("Rule reprocessing failed", "error", err)
				continue
			}
			if len(result.Errors) > 0 {
				slog.Warn("Rule reprocessing finished with errors",
					"processed", result.Processed,
					"errors", len(result.Errors),
				)
			}
		}
	}
}
