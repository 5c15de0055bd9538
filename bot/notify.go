package bot

import (
	"context"

	"go.uber.org/zap"
)

// Notifier delivers operator alerts.
type Notifier interface {
	Notify(ctx context.Context, msg string)
}

// LogNotifier writes alerts to a zap logger.
type LogNotifier struct {
	Log *zap.Logger
}

func (n LogNotifier) Notify(ctx context.Context, msg string) {
	if n.Log == nil {
		return
	}
	n.Log.Info("notify", zap.String("alert", msg))
}
