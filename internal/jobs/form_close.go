package jobs

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Genzhalo/idp-console/internal/config"
)

// FormCloser closes open forms whose end date has passed.
type FormCloser interface {
	CloseExpiredForms(ctx context.Context) (int, error)
}

// StartFormCloseJob runs closer on a ticker until ctx ends. It returns false when the
// job is disabled.
func StartFormCloseJob(ctx context.Context, cfg config.Config, closer FormCloser, log *logrus.Logger) bool {
	if !cfg.FormCloseJob {
		return false
	}
	if closer == nil {
		log.Warn("form close job disabled: no closer configured")
		return false
	}
	interval := cfg.FormCloseInterval
	if interval <= 0 {
		interval = time.Minute
	}
	timeout := cfg.FormCloseTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tickCtx, cancel := context.WithTimeout(ctx, timeout)
				closed, err := closer.CloseExpiredForms(tickCtx)
				cancel()
				if err != nil {
					log.WithError(err).Error("form close job failed")
					continue
				}
				if closed > 0 {
					log.WithField("closed", closed).Info("form close job closed forms")
				}
			}
		}
	}()
	return true
}
