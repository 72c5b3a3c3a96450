package delivery

import (
	"fmt"
	"html"
	"strings"

	"remindbot/db"
)

// RenderNotification builds the HTML message for one due reminder: the
// mention prefix when there is one, the reminder text, and the originally
// scheduled time.
func RenderNotification(r db.Reminder) string {
	return fmt.Sprintf("🔔 Reminder!\n%s%s\nScheduled for: %s",
		renderMention(r.Mention), html.EscapeString(r.Text), r.RemindAt.Format(db.TimeLayout))
}

// renderMention renders the tagged mention variant: a tg://user link for a
// resolvable ID, the plain name otherwise, nothing when absent.
func renderMention(m db.Mention) string {
	switch m.Kind {
	case db.MentionByID:
		name := m.Name
		if name == "" {
			name = "you"
		}
		return fmt.Sprintf(`<a href="tg://user?id=%d">%s</a>, `, m.UserID, html.EscapeString(name))
	case db.MentionByName:
		return html.EscapeString(m.Name) + ", "
	default:
		return ""
	}
}

// RenderDigest builds one chat's daily summary of reminders coming up within
// the digest window.
func RenderDigest(reminders []db.Reminder) string {
	var sb strings.Builder
	sb.WriteString("🗓 Coming up in the next 24 hours:\n")
	for _, r := range reminders {
		sb.WriteString(fmt.Sprintf("• %s — %s\n", r.RemindAt.Format(db.TimeLayout), html.EscapeString(r.Text)))
	}
	return sb.String()
}
