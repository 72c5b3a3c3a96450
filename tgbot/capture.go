package tgbot

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jmhodges/clock"
	"github.com/pkg/errors"

	"remindbot/db"
)

type captureStage int

const (
	stageText captureStage = iota
	stageDateTime
	stageMention
)

type captureKey struct {
	chat int64
	user int64
}

// draft is the in-progress reminder a participant is dictating. It only ever
// lives in memory; a restart mid-capture loses the draft, never a committed
// reminder.
type draft struct {
	stage    captureStage
	text     string
	remindAt time.Time
}

// Capture runs the three-step reminder dialog, one draft per (chat, user).
type Capture struct {
	store *db.Store
	clk   clock.Clock

	mu     sync.Mutex
	drafts map[captureKey]*draft
}

func NewCapture(store *db.Store) *Capture {
	return &Capture{
		store:  store,
		clk:    clock.New(),
		drafts: make(map[captureKey]*draft),
	}
}

// Outcome is what one Advance step produced: the reply to show the user and,
// when the dialog finished, the committed reminder ID.
type Outcome struct {
	Reply      string
	Committed  bool
	ReminderID int64
}

// Start opens (or restarts) a capture dialog and returns the first prompt.
func (c *Capture) Start(chatID, userID int64) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.drafts[captureKey{chatID, userID}] = &draft{stage: stageText}
	return txtAskText
}

// Active reports whether the participant has a dialog in progress.
func (c *Capture) Active(chatID, userID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.drafts[captureKey{chatID, userID}]
	return ok
}

// Reset discards the participant's draft, if any.
func (c *Capture) Reset(chatID, userID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.drafts, captureKey{chatID, userID})
}

// Advance feeds one inbound message into the dialog. Invalid input re-prompts
// without changing state. The final step commits through the store and
// discards the draft whether or not the commit succeeds.
func (c *Capture) Advance(chatID, userID int64, text string, mention db.Mention) (Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := captureKey{chatID, userID}
	d, ok := c.drafts[key]
	if !ok {
		return Outcome{}, errors.New("no capture in progress")
	}

	switch d.stage {
	case stageText:
		if strings.TrimSpace(text) == "" {
			return Outcome{Reply: txtAskText}, nil
		}
		d.text = text
		d.stage = stageDateTime
		return Outcome{Reply: txtAskWhen}, nil

	case stageDateTime:
		remindAt, err := parseDateTime(text)
		if err != nil || !remindAt.After(c.clk.Now()) {
			return Outcome{Reply: txtBadDateTime}, nil
		}
		d.remindAt = remindAt
		d.stage = stageMention
		return Outcome{Reply: txtAskMention}, nil

	case stageMention:
		delete(c.drafts, key)

		id, err := c.store.Add(chatID, userID, d.text, d.remindAt, mention)
		if err != nil {
			return Outcome{Reply: txtFailedSave}, errors.Wrap(err, "failed committing captured reminder")
		}

		var note string
		if mention.Kind != db.MentionNone {
			note = fmt.Sprintf(fmtMentionNote, mention.Name)
		}
		reply := fmt.Sprintf(fmtSaved, id, note, d.remindAt.Format(db.TimeLayout))
		return Outcome{Reply: reply, Committed: true, ReminderID: id}, nil
	}

	return Outcome{}, errors.Errorf("unexpected capture stage %d", d.stage)
}

// parseDateTime accepts exactly one pattern, YYYY-MM-DD HH:MM on a 24-hour
// clock, in naive local time.
func parseDateTime(text string) (time.Time, error) {
	t, err := time.ParseInLocation(db.TimeLayout, strings.TrimSpace(text), time.Local)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "unrecognized date/time")
	}
	return t, nil
}
