package handlers

import (
	"errors"
	"strings"
	"testing"

	"chime-server/models"
	"chime-server/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUsers struct {
	users map[string]*models.User
}

func (f *fakeUsers) GetUserByID(id string) (*models.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, errors.New("user not found")
	}
	return user, nil
}

func newTestCommands() (*BotCommands, store.ReminderStore) {
	users := &fakeUsers{users: map[string]*models.User{
		"alice": {ID: "alice", Username: "alice"},
		"bob":   {ID: "bob", Username: "bob"},
		"admin": {ID: "admin", Username: "admin", IsAdmin: true},
	}}
	reminders := store.NewMemoryReminderStore()
	return NewBotCommands(users, reminders), reminders
}

func TestHandleMessageIgnoresNonCommands(t *testing.T) {
	b, _ := newTestCommands()

	for _, content := range []string{"hello there", "remind without prefix", "!unknowncommand foo"} {
		reply, handled := b.HandleMessage("alice", content)
		assert.False(t, handled, "content %q", content)
		assert.Empty(t, reply)
	}
}

func TestRemindOnceCommand(t *testing.T) {
	b, reminders := newTestCommands()

	reply, handled := b.HandleMessage("alice", "!remind 2025-05-10 20:00 PST once @everyone Submit your assignment")
	require.True(t, handled)
	assert.Equal(t, "✅ One-time reminder set for 2025-05-11 03:00 UTC → Submit your assignment", reply)

	view, err := reminders.ListFor("alice", false)
	require.NoError(t, err)
	require.Len(t, view, 1)
	assert.Equal(t, models.ReminderOnce, view[0].Kind)
}

func TestRemindWeeklyCommand(t *testing.T) {
	b, reminders := newTestCommands()

	reply, handled := b.HandleMessage("alice", "!remind Mon,Wed 08:30 EST weekly @everyone Gym time!")
	require.True(t, handled)
	assert.Equal(t, "✅ Weekly reminder set for Mon, Wed at 08:30 EST → Gym time!", reply)

	view, err := reminders.ListFor("alice", false)
	require.NoError(t, err)
	require.Len(t, view, 1)
	assert.Equal(t, models.ReminderWeekly, view[0].Kind)
}

func TestRemindErrorReplies(t *testing.T) {
	b, _ := newTestCommands()

	reply, handled := b.HandleMessage("alice", "!remind tomorrow at nine")
	require.True(t, handled)
	assert.Contains(t, reply, "Invalid format")

	reply, _ = b.HandleMessage("alice", "!remind 2025-01-01 09:00 XYZ once @dm hello")
	assert.Contains(t, reply, "Invalid timezone abbreviation")

	reply, _ = b.HandleMessage("alice", "!remind 2025-02-30 09:00 UTC once @dm hello")
	assert.Contains(t, reply, "Invalid datetime")

	reply, _ = b.HandleMessage("alice", "!remind Foo 09:00 UTC weekly @dm hello")
	assert.Contains(t, reply, "Invalid weekday")
}

func TestListRemindersCommand(t *testing.T) {
	b, _ := newTestCommands()

	reply, handled := b.HandleMessage("alice", "!reminders")
	require.True(t, handled)
	assert.Equal(t, "📭 No active reminders.", reply)

	b.HandleMessage("alice", "!remind 2025-05-10 20:00 UTC once @dm First thing")
	b.HandleMessage("alice", "!remind Mon 09:00 UTC weekly @everyone Standup")

	reply, _ = b.HandleMessage("alice", "!reminders")
	assert.Contains(t, reply, "📝 Active reminders:")
	assert.Contains(t, reply, "`0`")
	assert.Contains(t, reply, "`1`")
	assert.Contains(t, reply, "First thing")
	assert.Contains(t, reply, "Weekly on Mon at 09:00 (UTC)")
	assert.Equal(t, 3, len(strings.Split(reply, "\n")))
}

func TestListVisibilityByRole(t *testing.T) {
	b, _ := newTestCommands()

	b.HandleMessage("alice", "!remind 2025-05-10 20:00 UTC once @dm Alice's secret")

	reply, _ := b.HandleMessage("bob", "!reminders")
	assert.Equal(t, "📭 No active reminders.", reply)

	reply, _ = b.HandleMessage("admin", "!reminders")
	assert.Contains(t, reply, "Alice's secret")
}

func TestRemoveCommandByIndex(t *testing.T) {
	b, _ := newTestCommands()

	b.HandleMessage("alice", "!remind 2025-05-10 20:00 UTC once @dm First")
	b.HandleMessage("alice", "!remind 2025-05-11 20:00 UTC once @dm Second")

	reply, handled := b.HandleMessage("alice", "!remindremove 0")
	require.True(t, handled)
	assert.Equal(t, "🗑️ Reminder removed.", reply)

	// The former index 1 is now index 0.
	reply, _ = b.HandleMessage("alice", "!reminders")
	assert.Contains(t, reply, "`0`")
	assert.Contains(t, reply, "Second")
	assert.NotContains(t, reply, "First")

	reply, _ = b.HandleMessage("alice", "!remindremove 5")
	assert.Equal(t, "❌ Invalid reminder index.", reply)
}

func TestRemoveCommandByID(t *testing.T) {
	b, reminders := newTestCommands()

	b.HandleMessage("alice", "!remind 2025-05-10 20:00 UTC once @dm By id")
	view, err := reminders.ListFor("alice", false)
	require.NoError(t, err)
	require.Len(t, view, 1)

	reply, _ := b.HandleMessage("alice", "!remindremove "+view[0].ShortID())
	assert.Equal(t, "🗑️ Reminder removed.", reply)

	reply, _ = b.HandleMessage("alice", "!reminders")
	assert.Equal(t, "📭 No active reminders.", reply)
}

func TestEditCommand(t *testing.T) {
	b, reminders := newTestCommands()

	b.HandleMessage("alice", "!remind 2025-05-10 20:00 UTC once @dm Old message")

	reply, handled := b.HandleMessage("alice", "!remindedit 0 New message text")
	require.True(t, handled)
	assert.Equal(t, "✏️ Reminder updated.", reply)

	view, err := reminders.ListFor("alice", false)
	require.NoError(t, err)
	require.Len(t, view, 1)
	assert.Equal(t, "New message text", view[0].Message)

	// Others cannot edit alice's records, not even admins.
	reply, _ = b.HandleMessage("admin", "!remindedit 0 hijacked")
	assert.Equal(t, "❌ Invalid index or no permission.", reply)

	reply, _ = b.HandleMessage("alice", "!remindedit 7 out of range")
	assert.Equal(t, "❌ Invalid index or no permission.", reply)

	reply, _ = b.HandleMessage("alice", "!remindedit 0")
	assert.Contains(t, reply, "Usage")
}
