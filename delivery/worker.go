package delivery

import (
	"context"
	"time"

	"github.com/jmhodges/clock"
	"go.uber.org/zap"

	"remindbot/db"
)

// Sender delivers one rendered message to a chat. Errors are per-destination
// and must not be fatal to the process.
type Sender interface {
	Send(chatID int64, text string) error
}

// Worker is the background loop that finds due reminders and delivers them.
// Exactly one Worker runs for the process lifetime.
type Worker struct {
	store      *db.Store
	sender     Sender
	logger     *zap.SugaredLogger
	clk        clock.Clock
	interval   time.Duration
	batchLimit int
}

func NewWorker(store *db.Store, sender Sender, logger *zap.SugaredLogger, interval time.Duration, batchLimit int) *Worker {
	return &Worker{
		store:      store,
		sender:     sender,
		logger:     logger,
		clk:        clock.New(),
		interval:   interval,
		batchLimit: batchLimit,
	}
}

// Run polls until ctx is cancelled. Cancellation is honored between ticks, so
// an in-flight batch always finishes committing its outcomes.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Infof("delivery loop started, polling every %s", w.interval)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("delivery loop stopped")
			return
		case <-ticker.C:
			w.tick()
		}
	}
}

// tick processes one batch of due reminders. A failed send marks that one
// reminder failed immediately and never aborts the rest of the batch; the
// successes are committed together afterwards.
func (w *Worker) tick() {
	now := w.clk.Now()

	due, err := w.store.Due(now, w.batchLimit)
	if err != nil {
		// Store trouble is retried on the next tick rather than crashing.
		w.logger.Errorw("failed fetching due reminders", "err", err)
		return
	}

	var sent []int64
	for _, r := range due {
		if err := w.sender.Send(r.ChatID, RenderNotification(r)); err != nil {
			w.logger.Warnw("failed delivering reminder", "id", r.ID, "chat", r.ChatID, "err", err)
			if err := w.store.MarkFailed(r.ID); err != nil {
				w.logger.Errorw("failed marking reminder failed", "id", r.ID, "err", err)
			}
			continue
		}
		sent = append(sent, r.ID)
	}

	if len(sent) == 0 {
		return
	}

	if err := w.store.MarkSent(sent); err != nil {
		w.logger.Errorw("failed marking reminders sent", "ids", sent, "err", err)
		return
	}

	w.logger.Infof("delivered %d of %d due reminders", len(sent), len(due))
}
