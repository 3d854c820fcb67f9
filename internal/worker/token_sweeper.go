package worker

import (
	"context"
	"log/slog"
	"time"

	"auth-service/internal/domain/user"
	"auth-service/internal/retry"
)

// TokenSweeper periodically clears expired password-reset tokens.
// Lookups already check expiry, so the sweep only keeps the table tidy
// and never changes observable behavior.
type TokenSweeper struct {
	repo     user.Repository
	interval time.Duration
	logger   *slog.Logger
}

func NewTokenSweeper(repo user.Repository, interval time.Duration, logger *slog.Logger) *TokenSweeper {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenSweeper{repo: repo, interval: interval, logger: logger}
}

func (w *TokenSweeper) Run(ctx context.Context) {
	w.logger.Info("token sweeper started", "interval", w.interval.String())
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("token sweeper stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *TokenSweeper) sweep(ctx context.Context) {
	var cleared int64
	err := retry.Do(ctx, 3, time.Second, func() error {
		n, err := w.repo.ClearExpiredResetTokens(ctx, time.Now())
		cleared = n
		return err
	})
	if err != nil {
		w.logger.Error("token sweep failed", "err", err)
		return
	}
	if cleared > 0 {
		w.logger.Info("cleared expired reset tokens", "count", cleared)
	}
}
