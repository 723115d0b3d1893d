package handlers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"chime-server/models"
	"chime-server/schedule"
	"chime-server/store"
)

// CommandPrefix triggers bot command handling on a posted message.
const CommandPrefix = "!"

// userDirectory is the slice of the chat store the command surface needs.
type userDirectory interface {
	GetUserByID(id string) (*models.User, error)
}

// BotCommands implements the textual reminder command surface. HandleMessage
// is called for every posted message; a recognized command produces a bot
// reply, anything else passes through untouched.
type BotCommands struct {
	users     userDirectory
	reminders store.ReminderStore
}

func NewBotCommands(users userDirectory, reminders store.ReminderStore) *BotCommands {
	return &BotCommands{users: users, reminders: reminders}
}

func (b *BotCommands) HandleMessage(userID, content string) (string, bool) {
	if !strings.HasPrefix(content, CommandPrefix) {
		return "", false
	}

	name, args, _ := strings.Cut(strings.TrimPrefix(content, CommandPrefix), " ")
	args = strings.TrimSpace(args)

	switch name {
	case "remind":
		return b.remind(userID, args), true
	case "reminders":
		return b.list(userID), true
	case "remindremove":
		return b.remove(userID, args), true
	case "remindedit":
		return b.edit(userID, args), true
	}
	return "", false
}

func (b *BotCommands) isAdmin(userID string) bool {
	user, err := b.users.GetUserByID(userID)
	return err == nil && user.IsAdmin
}

func (b *BotCommands) remind(userID, args string) string {
	r, err := schedule.ParseReminder(args, userID)
	switch {
	case errors.Is(err, schedule.ErrBadSyntax):
		return "❌ " + schedule.Usage
	case errors.Is(err, schedule.ErrUnknownTimezone):
		return "❌ Invalid timezone abbreviation. Try PST, EST, UTC, etc."
	case errors.Is(err, schedule.ErrInvalidWeekday):
		return "❌ Invalid weekday. Use 3-letter day names like Mon, Wed."
	case errors.Is(err, schedule.ErrInvalidDatetime):
		return "❌ Invalid datetime or timezone."
	case err != nil:
		return "❌ " + err.Error()
	}

	if err := b.reminders.Append(r); err != nil {
		return "❌ Failed to save reminder."
	}

	if r.Kind == models.ReminderWeekly {
		return fmt.Sprintf("✅ Weekly reminder set for %s at %02d:%02d %s → %s",
			strings.Join(r.Weekdays, ", "), r.Hour, r.Minute, r.TZAbbr, r.Message)
	}
	return fmt.Sprintf("✅ One-time reminder set for %s → %s", r.Schedule(), r.Message)
}

func (b *BotCommands) list(userID string) string {
	reminders, err := b.reminders.ListFor(userID, b.isAdmin(userID))
	if err != nil {
		return "❌ Failed to fetch reminders."
	}
	if len(reminders) == 0 {
		return "📭 No active reminders."
	}

	var sb strings.Builder
	sb.WriteString("📝 Active reminders:\n")
	for i, r := range reminders {
		fmt.Fprintf(&sb, "`%d` [%s] → %s → %s\n", i, r.ShortID(), r.Schedule(), r.Message)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (b *BotCommands) remove(userID, args string) string {
	if args == "" {
		return "❌ Usage: `!remindremove <index|id>`"
	}

	admin := b.isAdmin(userID)
	var err error
	if index, convErr := strconv.Atoi(args); convErr == nil {
		err = b.reminders.RemoveAt(userID, admin, index)
	} else {
		err = b.reminders.Remove(userID, admin, args)
	}
	if err != nil {
		return "❌ Invalid reminder index."
	}
	return "🗑️ Reminder removed."
}

func (b *BotCommands) edit(userID, args string) string {
	ref, newMessage, _ := strings.Cut(args, " ")
	newMessage = strings.TrimSpace(newMessage)
	if ref == "" || newMessage == "" {
		return "❌ Usage: `!remindedit <index|id> <new message>`"
	}

	var err error
	if index, convErr := strconv.Atoi(ref); convErr == nil {
		err = b.reminders.EditMessageAt(userID, index, newMessage)
	} else {
		err = b.reminders.EditMessage(userID, ref, newMessage)
	}
	if err != nil {
		return "❌ Invalid index or no permission."
	}
	return "✏️ Reminder updated."
}
