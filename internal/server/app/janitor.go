package app

import (
	"context"
	"log/slog"
	"time"
)

// runJanitor периодически удаляет просроченные refresh записи.
// На валидность токенов это не влияет: её определяют подпись, срок и совпадение с хранилищем
func (a *App) runJanitor(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.pruneExpired(ctx)
		}
	}
}

func (a *App) pruneExpired(ctx context.Context) {
	n, err := a.sessions.PruneExpired(ctx)
	if err != nil {
		a.logger.ErrorContext(ctx, "failed to prune expired refresh tokens", slog.Any("error", err))
		return
	}
	if n > 0 {
		a.logger.InfoContext(ctx, "expired refresh tokens pruned", slog.Int("count", n))
	}
}
