package db

import "time"

// Timestamp layouts used in the reminders table. remind_at is stored with
// minute precision; the zero-padded layout keeps string comparison in SQL
// consistent with time comparison.
const (
	TimeLayout      = "2006-01-02 15:04"
	createdAtLayout = "2006-01-02 15:04:05"
)

// Status is the lifecycle state of a reminder.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusSent      Status = "sent"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

// MentionKind tags the Mention variant.
type MentionKind int

const (
	MentionNone MentionKind = iota
	MentionByName
	MentionByID
)

// Mention is an optional callout of a chat participant. A resolvable user ID
// takes precedence over a bare display name.
type Mention struct {
	Kind   MentionKind
	UserID int64  // set when Kind == MentionByID
	Name   string // display name or handle; set for MentionByID and MentionByName
}

// MentionUser builds a mention with a resolvable user ID.
func MentionUser(id int64, name string) Mention {
	return Mention{Kind: MentionByID, UserID: id, Name: name}
}

// MentionName builds a plain-text mention.
func MentionName(name string) Mention {
	return Mention{Kind: MentionByName, Name: name}
}

// Reminder is one scheduled notification.
type Reminder struct {
	ID        int64
	ChatID    int64
	CreatorID int64
	Text      string
	RemindAt  time.Time
	Status    Status
	Mention   Mention
	CreatedAt time.Time
}
