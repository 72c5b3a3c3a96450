package delivery

import (
	"time"

	"github.com/jmhodges/clock"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"remindbot/db"
)

const digestWindow = 24 * time.Hour

// Digest sends each chat a daily summary of its reminders scheduled within
// the next 24 hours. It never mutates reminder state.
type Digest struct {
	store    *db.Store
	sender   Sender
	logger   *zap.SugaredLogger
	clk      clock.Clock
	schedule string
	cron     *cron.Cron
}

func NewDigest(store *db.Store, sender Sender, logger *zap.SugaredLogger, schedule string) *Digest {
	return &Digest{
		store:    store,
		sender:   sender,
		logger:   logger,
		clk:      clock.New(),
		schedule: schedule,
	}
}

// Start registers the digest job and starts the scheduler. An empty schedule
// disables the digest.
func (d *Digest) Start() error {
	if d.schedule == "" {
		d.logger.Info("daily digest disabled")
		return nil
	}

	d.cron = cron.New()
	if _, err := d.cron.AddFunc(d.schedule, d.run); err != nil {
		return err
	}
	d.cron.Start()

	d.logger.Infof("daily digest scheduled at %q", d.schedule)
	return nil
}

// Stop stops the scheduler and waits for a running digest to finish.
func (d *Digest) Stop() {
	if d.cron == nil {
		return
	}
	<-d.cron.Stop().Done()
}

func (d *Digest) run() {
	now := d.clk.Now()

	upcoming, err := d.store.Upcoming(now, now.Add(digestWindow))
	if err != nil {
		d.logger.Errorw("failed fetching upcoming reminders", "err", err)
		return
	}
	if len(upcoming) == 0 {
		return
	}

	for _, batch := range groupByChat(upcoming) {
		if err := d.sender.Send(batch[0].ChatID, RenderDigest(batch)); err != nil {
			d.logger.Warnw("failed sending digest", "chat", batch[0].ChatID, "err", err)
		}
	}
}

// groupByChat splits reminders, already ordered by chat, into per-chat runs.
func groupByChat(reminders []db.Reminder) [][]db.Reminder {
	var groups [][]db.Reminder
	start := 0
	for i := 1; i <= len(reminders); i++ {
		if i == len(reminders) || reminders[i].ChatID != reminders[start].ChatID {
			groups = append(groups, reminders[start:i])
			start = i
		}
	}
	return groups
}
