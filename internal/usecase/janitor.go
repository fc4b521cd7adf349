package usecase

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"shopstream/internal/domain"
)

// Janitor periodically sweeps expired sessions and their conversations out
// of the store.
type Janitor struct {
	store  domain.ConversationStore
	logger *slog.Logger
	cron   *cron.Cron
	spec   string
}

// NewJanitor creates a janitor on the given cron spec (standard five-field
// syntax, e.g. "*/15 * * * *").
func NewJanitor(store domain.ConversationStore, logger *slog.Logger, spec string) *Janitor {
	return &Janitor{
		store:  store,
		logger: logger,
		cron:   cron.New(),
		spec:   spec,
	}
}

// Start schedules the sweep and begins running it in the background.
func (j *Janitor) Start(ctx context.Context) error {
	_, err := j.cron.AddFunc(j.spec, func() {
		j.Sweep(ctx)
	})
	if err != nil {
		return domain.WrapOp("schedule session sweep", err)
	}
	j.cron.Start()
	j.logger.Info("session janitor started", "spec", j.spec)
	return nil
}

// Sweep runs one sweep immediately.
func (j *Janitor) Sweep(ctx context.Context) {
	removed, err := j.store.SweepExpired(ctx)
	if err != nil {
		j.logger.Error("session sweep failed", "error", err)
		return
	}
	if removed > 0 {
		j.logger.Info("swept expired sessions", "removed", removed)
	}
}

// Stop halts the schedule and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}
