package tgbot

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"

	tg "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"remindbot/db"
)

const listLimit = 20

const (
	btnNew  = "⏰ New reminder"
	btnList = "🗒 My reminders"
)

const (
	txtWelcomeMessage = "📢 Hi! I help remind about important events in this chat.\nPress \"⏰ New reminder\" or use /new to create a reminder.\nDate format: YYYY-MM-DD HH:MM (24-hour clock)."
	txtHelpMessage    = `/new - create a reminder for this chat (works in groups too)
/list - show your reminders in this chat
/cancel <id> - cancel a scheduled reminder
/done <id> - mark a reminder as completed
/move <id> YYYY-MM-DD HH:MM - reschedule a reminder
Keep the bot in the group so it can deliver notifications.`
	txtUnknownCommand = "I don't know this command. Use /help to see what I can do"
	txtAskText        = "📝 What should I remind about? Describe it in one message."
	txtAskWhen        = "🕐 When should I remind?\nEnter date and time like 2024-12-31 18:30"
	txtBadDateTime    = "❌ I need a future date and time. Try again in the format 2024-12-31 18:30"
	txtAskMention     = "Who should I mention in the notification?\nSend @username or a name. If nobody - send '-'"
	txtFailedSave     = "I couldn't save the reminder. Please start over with /new"
	txtNoReminders    = "You have no reminders in this chat yet."
	txtYourReminders  = "🗒 Your reminders:"
	txtCancelUsage    = "Usage: /cancel <id>"
	txtDoneUsage      = "Usage: /done <id>"
	txtMoveUsage      = "Usage: /move <id> YYYY-MM-DD HH:MM"
	txtCancelFailed   = "Couldn't cancel: check the ID and the reminder status."
	txtDoneFailed     = "Couldn't update: check the ID and the reminder status."
	txtMoveFailed     = "Couldn't reschedule: check the ID and the reminder status."
	txtBadCallback    = "This button doesn't work anymore."

	fmtSaved       = "✅ Reminder saved (ID: %d).%s\n⏰ I'll remind on %s."
	fmtMentionNote = " I'll mention %s."
	fmtCancelled   = "Reminder #%d cancelled."
	fmtCompleted   = "Reminder #%d marked as completed."
	fmtMoved       = "Reminder #%d moved to %s."
	fmtListItem    = "%s #%d — %s\n⏰ %s%s"
	fmtMentionInfo = " (mention: %s)"
)

const (
	cbqDone   = "reminder:done:"
	cbqCancel = "reminder:cancel:"
)

var mainKeyboard = func() tg.ReplyKeyboardMarkup {
	kb := tg.NewReplyKeyboard(
		tg.NewKeyboardButtonRow(
			tg.NewKeyboardButton(btnNew),
			tg.NewKeyboardButton(btnList),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = false
	return kb
}()

// TBot wires the Telegram transport to the reminder store and the capture
// dialog. It also implements the delivery loop's Sender.
type TBot struct {
	Bot           *tg.BotAPI
	Store         *db.Store
	Logger        *zap.SugaredLogger
	Capture       *Capture
	RetryAttempts int
	RetryDelay    time.Duration
}

func NewTBot(tgtoken string, store *db.Store, logger *zap.SugaredLogger) (*TBot, error) {
	b, err := tg.NewBotAPI(tgtoken)
	if err != nil {
		logger.Errorw("failed to initialize Telegram Bot", "err", err)
		return nil, err
	}

	b.Debug = false

	logger.Infof("authorized on account %q (%q, %d)", b.Self.FirstName, b.Self.UserName, b.Self.ID)

	t := &TBot{
		Bot:           b,
		Store:         store,
		Logger:        logger,
		Capture:       NewCapture(store),
		RetryAttempts: 3,
		RetryDelay:    1 * time.Second,
	}

	if err := t.setCommands(); err != nil {
		logger.Warnw("failed registering bot commands", "err", err)
	}

	return t, nil
}

func (b *TBot) setCommands() error {
	cfg := tg.NewSetMyCommands(
		tg.BotCommand{Command: "start", Description: "Start working with the bot"},
		tg.BotCommand{Command: "new", Description: "Create a reminder"},
		tg.BotCommand{Command: "list", Description: "List my reminders"},
		tg.BotCommand{Command: "cancel", Description: "Cancel a reminder by ID"},
		tg.BotCommand{Command: "done", Description: "Mark a reminder as completed"},
		tg.BotCommand{Command: "move", Description: "Reschedule a reminder"},
		tg.BotCommand{Command: "help", Description: "How to use the bot"},
	)
	_, err := b.Bot.Request(cfg)
	return err
}

// Run handles updates until ctx is cancelled.
func (b *TBot) Run(ctx context.Context) {
	uCfg := tg.NewUpdate(0)
	uCfg.Timeout = 60

	updates := b.Bot.GetUpdatesChan(uCfg)
	go func() {
		<-ctx.Done()
		b.Bot.StopReceivingUpdates()
	}()

	for u := range updates {
		switch {
		case u.CallbackQuery != nil:
			b.HandleCallback(u.CallbackQuery)
		case u.Message != nil && u.Message.From != nil:
			if u.Message.IsCommand() {
				b.HandleCommand(u.Message)
			} else {
				b.HandleMessage(u.Message)
			}
		}
	}
}

func (b *TBot) HandleCommand(msg *tg.Message) {
	cht := msg.Chat.ID
	usr := msg.From.ID

	// Commands interrupt any ongoing capture dialog
	b.Capture.Reset(cht, usr)

	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start":
		b.sendWithKeyboard(cht, txtWelcomeMessage)

	case "help":
		b.send(cht, txtHelpMessage)

	case "new":
		b.sendWithKeyboard(cht, b.Capture.Start(cht, usr))

	case "list":
		b.sendList(cht, usr)

	case "cancel":
		id, ok := parseID(args)
		if !ok {
			b.send(cht, txtCancelUsage)
			return
		}
		b.cancelReminder(cht, usr, id)

	case "done":
		id, ok := parseID(args)
		if !ok {
			b.send(cht, txtDoneUsage)
			return
		}
		b.completeReminder(cht, usr, id)

	case "move":
		id, at, ok := parseMoveArgs(args)
		if !ok {
			b.send(cht, txtMoveUsage)
			return
		}
		b.moveReminder(cht, usr, id, at)

	default:
		b.send(cht, txtUnknownCommand)
	}
}

func (b *TBot) HandleMessage(msg *tg.Message) {
	cht := msg.Chat.ID
	usr := msg.From.ID

	switch {
	case msg.Text == btnNew:
		b.Capture.Reset(cht, usr)
		b.sendWithKeyboard(cht, b.Capture.Start(cht, usr))

	case msg.Text == btnList:
		b.Capture.Reset(cht, usr)
		b.sendList(cht, usr)

	case b.Capture.Active(cht, usr):
		out, err := b.Capture.Advance(cht, usr, msg.Text, extractMention(msg))
		if err != nil {
			b.Logger.Errorw("capture step failed", "chat", cht, "user", usr, "err", err)
		}
		if out.Reply == "" {
			return
		}
		if out.Committed {
			b.sendWithKeyboard(cht, out.Reply)
		} else {
			b.send(cht, out.Reply)
		}
	}
}

func (b *TBot) HandleCallback(cbq *tg.CallbackQuery) {
	if cbq.Message == nil {
		b.answerCallback(cbq.ID, txtBadCallback, true)
		return
	}

	cht := cbq.Message.Chat.ID
	usr := cbq.From.ID

	var (
		ok          bool
		err         error
		answer      string
		statusLabel string
	)

	switch {
	case strings.HasPrefix(cbq.Data, cbqDone):
		id, valid := parseID(strings.TrimPrefix(cbq.Data, cbqDone))
		if !valid {
			b.answerCallback(cbq.ID, txtBadCallback, true)
			return
		}
		ok, err = b.Store.Complete(id, cht, usr)
		answer = fmt.Sprintf(fmtCompleted, id)
		statusLabel = "✅ Status: completed"

	case strings.HasPrefix(cbq.Data, cbqCancel):
		id, valid := parseID(strings.TrimPrefix(cbq.Data, cbqCancel))
		if !valid {
			b.answerCallback(cbq.ID, txtBadCallback, true)
			return
		}
		ok, err = b.Store.Cancel(id, cht, usr)
		answer = fmt.Sprintf(fmtCancelled, id)
		statusLabel = "🚫 Status: cancelled"

	default:
		b.answerCallback(cbq.ID, txtBadCallback, true)
		return
	}

	if err != nil {
		b.Logger.Errorw("failed updating reminder from callback", "data", cbq.Data, "err", err)
		b.answerCallback(cbq.ID, txtDoneFailed, true)
		return
	}
	if !ok {
		b.answerCallback(cbq.ID, txtDoneFailed, true)
		return
	}

	edit := tg.NewEditMessageText(cht, cbq.Message.MessageID, cbq.Message.Text+"\n\n"+statusLabel)
	if _, err := b.Bot.Request(edit); err != nil {
		b.Logger.Warnw("failed editing reminder message", "err", err)
	}
	b.answerCallback(cbq.ID, answer, false)
}

func (b *TBot) cancelReminder(cht, usr, id int64) {
	ok, err := b.Store.Cancel(id, cht, usr)
	if err != nil {
		b.Logger.Errorw("failed cancelling reminder", "id", id, "err", err)
		b.send(cht, txtCancelFailed)
		return
	}
	if !ok {
		b.send(cht, txtCancelFailed)
		return
	}
	b.send(cht, fmt.Sprintf(fmtCancelled, id))
}

func (b *TBot) completeReminder(cht, usr, id int64) {
	ok, err := b.Store.Complete(id, cht, usr)
	if err != nil {
		b.Logger.Errorw("failed completing reminder", "id", id, "err", err)
		b.send(cht, txtDoneFailed)
		return
	}
	if !ok {
		b.send(cht, txtDoneFailed)
		return
	}
	b.send(cht, fmt.Sprintf(fmtCompleted, id))
}

func (b *TBot) moveReminder(cht, usr, id int64, at time.Time) {
	ok, err := b.Store.Reschedule(id, cht, usr, at)
	if err == db.ErrPastTime {
		b.send(cht, txtBadDateTime)
		return
	}
	if err != nil {
		b.Logger.Errorw("failed rescheduling reminder", "id", id, "err", err)
		b.send(cht, txtMoveFailed)
		return
	}
	if !ok {
		b.send(cht, txtMoveFailed)
		return
	}
	b.send(cht, fmt.Sprintf(fmtMoved, id, at.Format(db.TimeLayout)))
}

func (b *TBot) sendList(cht, usr int64) {
	reminders, err := b.Store.List(cht, usr, listLimit)
	if err != nil {
		b.Logger.Errorw("failed listing reminders", "chat", cht, "user", usr, "err", err)
		b.send(cht, txtNoReminders)
		return
	}

	if len(reminders) == 0 {
		b.sendWithKeyboard(cht, txtNoReminders)
		return
	}

	b.sendWithKeyboard(cht, txtYourReminders)
	for _, r := range reminders {
		var mentionInfo string
		if r.Mention.Kind != db.MentionNone {
			mentionInfo = fmt.Sprintf(fmtMentionInfo, html.EscapeString(r.Mention.Name))
		}

		txt := fmt.Sprintf(fmtListItem, statusIcon(r.Status), r.ID,
			html.EscapeString(r.Text), r.RemindAt.Format(db.TimeLayout), mentionInfo)
		b.sendMessage(cht, txt, reminderKeyboard(r.ID, r.Status))
	}
}

// statusIcon maps a status to the icon shown in lists. Informational only.
func statusIcon(s db.Status) string {
	switch s {
	case db.StatusScheduled:
		return "🟢"
	case db.StatusSent:
		return "📨"
	case db.StatusCompleted:
		return "✅"
	case db.StatusCancelled:
		return "🚫"
	case db.StatusFailed:
		return "⚠️"
	default:
		return "ℹ️"
	}
}

// reminderKeyboard builds the inline actions for one listed reminder. Only
// actionable states get buttons: a scheduled reminder can be completed,
// cancelled or moved; a sent one can only be completed.
func reminderKeyboard(id int64, status db.Status) *tg.InlineKeyboardMarkup {
	if status != db.StatusScheduled && status != db.StatusSent {
		return nil
	}

	doneBtn := tg.NewInlineKeyboardButtonData("✅ Done", fmt.Sprintf("%s%d", cbqDone, id))
	if status == db.StatusSent {
		kb := tg.NewInlineKeyboardMarkup(tg.NewInlineKeyboardRow(doneBtn))
		return &kb
	}

	moveQuery := fmt.Sprintf("/move %d ", id)
	kb := tg.NewInlineKeyboardMarkup(
		tg.NewInlineKeyboardRow(
			doneBtn,
			tg.NewInlineKeyboardButtonData("🚫 Cancel", fmt.Sprintf("%s%d", cbqCancel, id)),
		),
		tg.NewInlineKeyboardRow(
			tg.InlineKeyboardButton{Text: "🗓 Move", SwitchInlineQueryCurrentChat: &moveQuery},
		),
	)
	return &kb
}

// Send implements delivery.Sender.
func (b *TBot) Send(cht int64, txt string) error {
	return b.sendMessage(cht, txt, nil)
}

func (b *TBot) send(cht int64, txt string) {
	_ = b.sendMessage(cht, txt, nil)
}

func (b *TBot) sendWithKeyboard(cht int64, txt string) {
	m := tg.NewMessage(cht, txt)
	m.ParseMode = tg.ModeHTML
	m.DisableWebPagePreview = true
	m.ReplyMarkup = mainKeyboard
	b.request(m)
}

func (b *TBot) sendMessage(cht int64, txt string, kbMarkup *tg.InlineKeyboardMarkup) error {
	m := tg.NewMessage(cht, txt)
	m.ParseMode = tg.ModeHTML
	m.DisableWebPagePreview = true
	if kbMarkup != nil {
		m.ReplyMarkup = kbMarkup
	}
	return b.request(m)
}

func (b *TBot) request(c tg.Chattable) error {
	var err error
	robustExecute(b.RetryAttempts, b.RetryDelay, func() bool {
		_, err = b.Bot.Request(c)
		return err == nil
	})
	if err != nil {
		b.Logger.Errorw("failed sending message", "err", err)
	}
	return err
}

func (b *TBot) answerCallback(id, txt string, alert bool) {
	var cb tg.CallbackConfig
	if alert {
		cb = tg.NewCallbackWithAlert(id, txt)
	} else {
		cb = tg.NewCallback(id, txt)
	}
	if _, err := b.Bot.Request(cb); err != nil {
		b.Logger.Warnw("failed answering callback", "err", err)
	}
}

// robustExecute retries f up to n times with a fixed delay between attempts.
func robustExecute(n int, d time.Duration, f func() bool) bool {
	for i := 0; i < n; i++ {
		if f() {
			return true
		}
		time.Sleep(d)
	}
	return false
}

// extractMention reads the mention step's input: a resolvable user from
// message entities wins over a bare @handle, which wins over plain text.
// "-" (or an em dash, or nothing) means no mention.
func extractMention(msg *tg.Message) db.Mention {
	for _, e := range msg.Entities {
		switch e.Type {
		case "text_mention":
			if e.User != nil {
				return db.MentionUser(e.User.ID, userDisplayName(e.User))
			}
		case "mention":
			if handle := entityText(msg.Text, e); handle != "" {
				return db.MentionName(handle)
			}
		}
	}

	cleaned := strings.TrimSpace(msg.Text)
	if cleaned == "" || cleaned == "-" || cleaned == "—" {
		return db.Mention{}
	}
	return db.MentionName(cleaned)
}

func userDisplayName(u *tg.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.UserName
	}
	return name
}

// entityText slices an entity out of the message text. Entity offsets count
// UTF-16 code units, not bytes or runes.
func entityText(text string, e tg.MessageEntity) string {
	u := utf16.Encode([]rune(text))
	if e.Offset < 0 || e.Length <= 0 || e.Offset+e.Length > len(u) {
		return ""
	}
	return string(utf16.Decode(u[e.Offset : e.Offset+e.Length]))
}

func parseID(txt string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(txt), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// parseMoveArgs splits "<id> YYYY-MM-DD HH:MM" into its parts.
func parseMoveArgs(args string) (int64, time.Time, bool) {
	parts := strings.SplitN(args, " ", 2)
	if len(parts) != 2 {
		return 0, time.Time{}, false
	}

	id, ok := parseID(parts[0])
	if !ok {
		return 0, time.Time{}, false
	}

	at, err := parseDateTime(parts[1])
	if err != nil {
		return 0, time.Time{}, false
	}

	return id, at, true
}
