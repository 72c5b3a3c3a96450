package tgbot

import (
	"testing"
	"time"

	tg "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remindbot/db"
)

func TestParseID(t *testing.T) {
	tests := []struct {
		in string
		id int64
		ok bool
	}{
		{"7", 7, true},
		{"  42 ", 42, true},
		{"0", 0, false},
		{"-3", 0, false},
		{"abc", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		id, ok := parseID(tt.in)
		assert.Equal(t, tt.ok, ok, "input %q", tt.in)
		assert.Equal(t, tt.id, id, "input %q", tt.in)
	}
}

func TestParseMoveArgs(t *testing.T) {
	id, at, ok := parseMoveArgs("7 2030-12-31 18:30")
	require.True(t, ok)
	assert.Equal(t, int64(7), id)
	assert.Equal(t, time.Date(2030, 12, 31, 18, 30, 0, 0, time.Local), at)

	for _, bad := range []string{"", "7", "x 2030-12-31 18:30", "7 tomorrow"} {
		_, _, ok := parseMoveArgs(bad)
		assert.False(t, ok, "args %q", bad)
	}
}

func TestStatusIcon(t *testing.T) {
	assert.Equal(t, "🟢", statusIcon(db.StatusScheduled))
	assert.Equal(t, "📨", statusIcon(db.StatusSent))
	assert.Equal(t, "✅", statusIcon(db.StatusCompleted))
	assert.Equal(t, "🚫", statusIcon(db.StatusCancelled))
	assert.Equal(t, "⚠️", statusIcon(db.StatusFailed))
}

func TestReminderKeyboard(t *testing.T) {
	assert.Nil(t, reminderKeyboard(1, db.StatusCompleted))
	assert.Nil(t, reminderKeyboard(1, db.StatusCancelled))
	assert.Nil(t, reminderKeyboard(1, db.StatusFailed))

	sent := reminderKeyboard(5, db.StatusSent)
	require.NotNil(t, sent)
	require.Len(t, sent.InlineKeyboard, 1)
	require.Len(t, sent.InlineKeyboard[0], 1)
	assert.Equal(t, "reminder:done:5", *sent.InlineKeyboard[0][0].CallbackData)

	scheduled := reminderKeyboard(5, db.StatusScheduled)
	require.NotNil(t, scheduled)
	require.Len(t, scheduled.InlineKeyboard, 2)
	assert.Equal(t, "reminder:done:5", *scheduled.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "reminder:cancel:5", *scheduled.InlineKeyboard[0][1].CallbackData)
	require.NotNil(t, scheduled.InlineKeyboard[1][0].SwitchInlineQueryCurrentChat)
	assert.Equal(t, "/move 5 ", *scheduled.InlineKeyboard[1][0].SwitchInlineQueryCurrentChat)
}

func TestExtractMentionTextMention(t *testing.T) {
	msg := &tg.Message{
		Text: "Ann",
		Entities: []tg.MessageEntity{{
			Type:   "text_mention",
			Offset: 0,
			Length: 3,
			User:   &tg.User{ID: 99, FirstName: "Ann", LastName: "Lee"},
		}},
	}

	m := extractMention(msg)
	assert.Equal(t, db.MentionByID, m.Kind)
	assert.Equal(t, int64(99), m.UserID)
	assert.Equal(t, "Ann Lee", m.Name)
}

func TestExtractMentionHandle(t *testing.T) {
	msg := &tg.Message{
		Text: "@ann",
		Entities: []tg.MessageEntity{{
			Type:   "mention",
			Offset: 0,
			Length: 4,
		}},
	}

	m := extractMention(msg)
	assert.Equal(t, db.MentionByName, m.Kind)
	assert.Equal(t, "@ann", m.Name)
}

func TestExtractMentionHandleAfterEmoji(t *testing.T) {
	// emoji in front shifts the entity offset; offsets count UTF-16 units
	msg := &tg.Message{
		Text: "🙂 @ann",
		Entities: []tg.MessageEntity{{
			Type:   "mention",
			Offset: 3,
			Length: 4,
		}},
	}

	m := extractMention(msg)
	assert.Equal(t, db.MentionByName, m.Kind)
	assert.Equal(t, "@ann", m.Name)
}

func TestExtractMentionPlainName(t *testing.T) {
	m := extractMention(&tg.Message{Text: "  Grandma  "})
	assert.Equal(t, db.MentionByName, m.Kind)
	assert.Equal(t, "Grandma", m.Name)
}

func TestExtractMentionNone(t *testing.T) {
	for _, text := range []string{"-", "—", "", "   "} {
		m := extractMention(&tg.Message{Text: text})
		assert.Equal(t, db.MentionNone, m.Kind, "text %q", text)
	}
}

func TestUserDisplayName(t *testing.T) {
	assert.Equal(t, "Ann Lee", userDisplayName(&tg.User{FirstName: "Ann", LastName: "Lee"}))
	assert.Equal(t, "Ann", userDisplayName(&tg.User{FirstName: "Ann"}))
	assert.Equal(t, "ann_l", userDisplayName(&tg.User{UserName: "ann_l"}))
}

func TestEntityText(t *testing.T) {
	text := "🙂 @ann hi"

	assert.Equal(t, "@ann", entityText(text, tg.MessageEntity{Offset: 3, Length: 4}))
	assert.Equal(t, "🙂", entityText(text, tg.MessageEntity{Offset: 0, Length: 2}))

	// out-of-range entities are dropped, not sliced out of bounds
	assert.Equal(t, "", entityText(text, tg.MessageEntity{Offset: 8, Length: 10}))
	assert.Equal(t, "", entityText(text, tg.MessageEntity{Offset: -1, Length: 2}))
	assert.Equal(t, "", entityText(text, tg.MessageEntity{Offset: 3, Length: 0}))
}

func TestRobustExecute(t *testing.T) {
	calls := 0
	ok := robustExecute(3, 0, func() bool {
		calls++
		return calls == 2
	})
	assert.True(t, ok)
	assert.Equal(t, 2, calls)

	calls = 0
	ok = robustExecute(3, 0, func() bool {
		calls++
		return false
	})
	assert.False(t, ok)
	assert.Equal(t, 3, calls)
}
