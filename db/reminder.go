package db

import (
	"database/sql"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Validation errors surfaced back to the user with a re-prompt.
var (
	ErrEmptyText = errors.New("reminder text is empty")
	ErrPastTime  = errors.New("remind time must be in the future")
)

const reminderColumns = `id, chat_id, creator_id, text, remind_at, status, mention_target_id, mention_target_name, created_at`

// Add stores a new reminder in the scheduled state and returns its ID.
// The remind time is kept with minute precision.
func (s *Store) Add(chatID, creatorID int64, text string, remindAt time.Time, mention Mention) (int64, error) {
	if strings.TrimSpace(text) == "" {
		return 0, ErrEmptyText
	}
	if !remindAt.After(s.clk.Now()) {
		return 0, ErrPastTime
	}

	var mentionID sql.NullInt64
	var mentionName sql.NullString
	switch mention.Kind {
	case MentionByID:
		mentionID = sql.NullInt64{Int64: mention.UserID, Valid: true}
		mentionName = sql.NullString{String: mention.Name, Valid: mention.Name != ""}
	case MentionByName:
		mentionName = sql.NullString{String: mention.Name, Valid: true}
	}

	res, err := s.db.Exec(`INSERT INTO reminders(chat_id, creator_id, text, remind_at, status, mention_target_id, mention_target_name, created_at)
VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		chatID, creatorID, text, formatMinute(remindAt), StatusScheduled,
		mentionID, mentionName, s.clk.Now().Format(createdAtLayout))
	if err != nil {
		return 0, errors.Wrap(err, "failed adding reminder")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, "failed reading new reminder ID")
	}
	return id, nil
}

// Due returns scheduled reminders whose remind time has passed, earliest
// first, capped at limit. Each call recomputes from current state.
func (s *Store) Due(now time.Time, limit int) ([]Reminder, error) {
	rows, err := s.db.Query(`SELECT `+reminderColumns+`
FROM reminders
WHERE status=? AND remind_at<=?
ORDER BY remind_at ASC
LIMIT ?`, StatusScheduled, formatMinute(now), limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed querying due reminders")
	}
	defer rows.Close()

	return scanReminders(rows)
}

// MarkSent transitions the listed reminders from scheduled to sent. IDs that
// are no longer scheduled are left untouched, so the call is idempotent and
// never fails the whole batch over one stale ID.
func (s *Store) MarkSent(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	args := make([]any, 0, len(ids)+2)
	args = append(args, StatusSent, StatusScheduled)
	for _, id := range ids {
		args = append(args, id)
	}

	query := `UPDATE reminders SET status=?, is_sent=1 WHERE status=? AND id IN (?` +
		strings.Repeat(", ?", len(ids)-1) + `)`
	if _, err := s.db.Exec(query, args...); err != nil {
		return errors.Wrap(err, "failed marking reminders sent")
	}
	return nil
}

// MarkFailed transitions one reminder from scheduled to failed after a
// delivery error. Failed reminders are terminal until the user acts.
func (s *Store) MarkFailed(id int64) error {
	if _, err := s.db.Exec(`UPDATE reminders SET status=?, is_sent=0 WHERE id=? AND status=?`,
		StatusFailed, id, StatusScheduled); err != nil {
		return errors.Wrap(err, "failed marking reminder failed")
	}
	return nil
}

// Cancel transitions a scheduled reminder to cancelled. It reports false when
// the reminder doesn't exist, belongs to someone else, or left the scheduled
// state already; callers can't tell those apart on purpose.
func (s *Store) Cancel(id, chatID, creatorID int64) (bool, error) {
	res, err := s.db.Exec(`UPDATE reminders SET status=?, is_sent=0
WHERE id=? AND chat_id=? AND creator_id=? AND status=?`,
		StatusCancelled, id, chatID, creatorID, StatusScheduled)
	if err != nil {
		return false, errors.Wrap(err, "failed cancelling reminder")
	}
	return oneRowChanged(res)
}

// Complete transitions a scheduled or sent reminder to completed.
func (s *Store) Complete(id, chatID, creatorID int64) (bool, error) {
	res, err := s.db.Exec(`UPDATE reminders SET status=?, is_sent=0
WHERE id=? AND chat_id=? AND creator_id=? AND status IN (?, ?)`,
		StatusCompleted, id, chatID, creatorID, StatusScheduled, StatusSent)
	if err != nil {
		return false, errors.Wrap(err, "failed completing reminder")
	}
	return oneRowChanged(res)
}

// Reschedule moves a still-scheduled reminder to a new future time. The ID
// and status are unchanged.
func (s *Store) Reschedule(id, chatID, creatorID int64, newRemindAt time.Time) (bool, error) {
	if !newRemindAt.After(s.clk.Now()) {
		return false, ErrPastTime
	}

	res, err := s.db.Exec(`UPDATE reminders SET remind_at=?
WHERE id=? AND chat_id=? AND creator_id=? AND status=?`,
		formatMinute(newRemindAt), id, chatID, creatorID, StatusScheduled)
	if err != nil {
		return false, errors.Wrap(err, "failed rescheduling reminder")
	}
	return oneRowChanged(res)
}

// List returns the creator's reminders in the given chat, newest first.
func (s *Store) List(chatID, creatorID int64, limit int) ([]Reminder, error) {
	rows, err := s.db.Query(`SELECT `+reminderColumns+`
FROM reminders
WHERE chat_id=? AND creator_id=?
ORDER BY created_at DESC, id DESC
LIMIT ?`, chatID, creatorID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed listing reminders")
	}
	defer rows.Close()

	return scanReminders(rows)
}

// Upcoming returns scheduled reminders due after from and no later than to,
// grouped by chat for digest rendering.
func (s *Store) Upcoming(from, to time.Time) ([]Reminder, error) {
	rows, err := s.db.Query(`SELECT `+reminderColumns+`
FROM reminders
WHERE status=? AND remind_at>? AND remind_at<=?
ORDER BY chat_id ASC, remind_at ASC`, StatusScheduled, formatMinute(from), formatMinute(to))
	if err != nil {
		return nil, errors.Wrap(err, "failed querying upcoming reminders")
	}
	defer rows.Close()

	return scanReminders(rows)
}

func scanReminders(rows *sql.Rows) ([]Reminder, error) {
	var reminders []Reminder
	for rows.Next() {
		var (
			r           Reminder
			remindAt    string
			createdAt   string
			mentionID   sql.NullInt64
			mentionName sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.ChatID, &r.CreatorID, &r.Text, &remindAt,
			&r.Status, &mentionID, &mentionName, &createdAt); err != nil {
			return nil, errors.Wrap(err, "failed scanning reminder")
		}

		var err error
		r.RemindAt, err = time.ParseInLocation(TimeLayout, remindAt, time.Local)
		if err != nil {
			return nil, errors.Wrapf(err, "bad remind_at on reminder %d", r.ID)
		}
		r.CreatedAt, err = time.ParseInLocation(createdAtLayout, createdAt, time.Local)
		if err != nil {
			return nil, errors.Wrapf(err, "bad created_at on reminder %d", r.ID)
		}

		switch {
		case mentionID.Valid:
			r.Mention = MentionUser(mentionID.Int64, mentionName.String)
		case mentionName.Valid:
			r.Mention = MentionName(mentionName.String)
		}

		reminders = append(reminders, r)
	}

	return reminders, rows.Err()
}

func oneRowChanged(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed reading rows affected")
	}
	return n > 0, nil
}
