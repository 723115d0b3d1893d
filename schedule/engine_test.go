package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"chime-server/models"
	"chime-server/store"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDispatcher struct {
	mu          sync.Mutex
	channel     []string
	direct      []string
	failChannel bool
}

func (f *fakeDispatcher) SendToChannel(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failChannel {
		return errors.New("channel unavailable")
	}
	f.channel = append(f.channel, text)
	return nil
}

func (f *fakeDispatcher) SendDirect(userID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.direct = append(f.direct, userID+": "+text)
	return nil
}

func (f *fakeDispatcher) ResolveUser(userID string) (string, error) {
	return userID, nil
}

func (f *fakeDispatcher) channelMessages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.channel...)
}

func (f *fakeDispatcher) directMessages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.direct...)
}

func (f *fakeDispatcher) setFailChannel(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failChannel = fail
}

func onceReminder(authorID, mention, message string, fireAt time.Time) *models.Reminder {
	return &models.Reminder{
		ID:        uuid.New().String(),
		Kind:      models.ReminderOnce,
		AuthorID:  authorID,
		Message:   message,
		Mention:   mention,
		FireAt:    fireAt,
		CreatedAt: time.Now().UTC(),
	}
}

func weeklyReminder(authorID, mention, message string, weekdays []string, hour, minute int, tz string) *models.Reminder {
	return &models.Reminder{
		ID:        uuid.New().String(),
		Kind:      models.ReminderWeekly,
		AuthorID:  authorID,
		Message:   message,
		Mention:   mention,
		Weekdays:  weekdays,
		Hour:      hour,
		Minute:    minute,
		Timezone:  tz,
		CreatedAt: time.Now().UTC(),
	}
}

func TestOnceReminderFiresExactlyOnce(t *testing.T) {
	rs := store.NewMemoryReminderStore()
	d := &fakeDispatcher{}
	e := NewEngine(rs, d, nil)

	fireAt := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, rs.Append(onceReminder("user-1", models.TargetDM, "Wake up", fireAt)))

	e.Tick(fireAt.Add(-time.Minute))
	assert.Empty(t, d.directMessages())

	e.Tick(fireAt.Add(30 * time.Second)) // seconds are truncated away
	require.Equal(t, []string{"user-1: 🔔 Reminder: Wake up"}, d.directMessages())
	assert.Equal(t, []string{"👍"}, d.channelMessages())

	// Fired: gone from the active set, never dispatched again.
	active, err := rs.Active()
	require.NoError(t, err)
	assert.Empty(t, active)

	e.Tick(fireAt.Add(time.Minute))
	assert.Len(t, d.directMessages(), 1)
}

func TestOnceReminderFiresLateAfterSkippedTicks(t *testing.T) {
	rs := store.NewMemoryReminderStore()
	d := &fakeDispatcher{}
	e := NewEngine(rs, d, nil)

	fireAt := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, rs.Append(onceReminder("user-1", "@everyone", "Deploy window", fireAt)))

	// The exact minute was skipped (process pause); the reminder still fires.
	e.Tick(fireAt.Add(7 * time.Minute))
	require.Equal(t, []string{"🔔 @everyone Reminder: Deploy window", "👍"}, d.channelMessages())
}

func TestOnceReminderRetriesAfterDeliveryFailure(t *testing.T) {
	rs := store.NewMemoryReminderStore()
	d := &fakeDispatcher{}
	e := NewEngine(rs, d, nil)

	fireAt := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, rs.Append(onceReminder("user-1", "@everyone", "Standup", fireAt)))

	d.setFailChannel(true)
	e.Tick(fireAt)
	assert.Empty(t, d.channelMessages())

	// Still armed after the failed delivery.
	active, err := rs.Active()
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.False(t, active[0].Fired)

	d.setFailChannel(false)
	e.Tick(fireAt.Add(time.Minute))
	require.Equal(t, []string{"🔔 @everyone Reminder: Standup", "👍"}, d.channelMessages())

	active, err = rs.Active()
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestWeeklyReminderFiresEveryMatchingWeek(t *testing.T) {
	rs := store.NewMemoryReminderStore()
	d := &fakeDispatcher{}
	e := NewEngine(rs, d, nil)

	require.NoError(t, rs.Append(weeklyReminder("user-1", "@everyone", "Standup",
		[]string{"Mon"}, 9, 0, "America/New_York")))

	// Three consecutive Mondays, 09:00 EST == 14:00 UTC.
	mondays := []time.Time{
		time.Date(2025, 1, 6, 14, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 13, 14, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 20, 14, 0, 0, 0, time.UTC),
	}
	for _, now := range mondays {
		e.Tick(now)
		e.Tick(now.Add(time.Minute)) // next minute never re-fires
	}

	want := []string{
		"🔔 @everyone Weekly Reminder: Standup", "👍",
		"🔔 @everyone Weekly Reminder: Standup", "👍",
		"🔔 @everyone Weekly Reminder: Standup", "👍",
	}
	assert.Equal(t, want, d.channelMessages())

	// Weekly reminders stay armed forever.
	active, err := rs.Active()
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.False(t, active[0].Fired)
}

func TestWeeklyReminderFollowsDSTTransition(t *testing.T) {
	rs := store.NewMemoryReminderStore()
	d := &fakeDispatcher{}
	e := NewEngine(rs, d, nil)

	require.NoError(t, rs.Append(weeklyReminder("user-1", "@everyone", "Standup",
		[]string{"Mon"}, 9, 0, "America/New_York")))

	// Mon Mar 3 2025: still EST, 09:00 local == 14:00 UTC.
	e.Tick(time.Date(2025, 3, 3, 14, 0, 0, 0, time.UTC))
	assert.Len(t, d.channelMessages(), 2)

	// DST starts Mar 9. Mon Mar 10: 14:00 UTC is 10:00 EDT, not due.
	e.Tick(time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC))
	assert.Len(t, d.channelMessages(), 2)

	// 13:00 UTC is 09:00 EDT, due.
	e.Tick(time.Date(2025, 3, 10, 13, 0, 0, 0, time.UTC))
	assert.Len(t, d.channelMessages(), 4)
}

func TestWeeklyReminderIgnoresOtherDays(t *testing.T) {
	rs := store.NewMemoryReminderStore()
	d := &fakeDispatcher{}
	e := NewEngine(rs, d, nil)

	require.NoError(t, rs.Append(weeklyReminder("user-1", "@everyone", "Retro",
		[]string{"Tue", "Fri"}, 14, 0, "UTC")))

	// Monday at the right time: not due.
	e.Tick(time.Date(2025, 1, 6, 14, 0, 0, 0, time.UTC))
	assert.Empty(t, d.channelMessages())

	// Tuesday: due.
	e.Tick(time.Date(2025, 1, 7, 14, 0, 0, 0, time.UTC))
	assert.Len(t, d.channelMessages(), 2)
}

func TestRunDrivesTicksFromClock(t *testing.T) {
	rs := store.NewMemoryReminderStore()
	d := &fakeDispatcher{}

	mock := clock.NewMock()
	start := time.Date(2025, 1, 1, 8, 59, 0, 0, time.UTC)
	mock.Set(start)

	require.NoError(t, rs.Append(onceReminder("user-1", models.TargetDM, "Wake up",
		time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC))))

	e := NewEngine(rs, d, mock)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)

	// Let Run set up its ticker before advancing the clock.
	time.Sleep(10 * time.Millisecond)
	mock.Add(time.Minute)

	require.Eventually(t, func() bool {
		return len(d.directMessages()) == 1
	}, time.Second, 5*time.Millisecond)

	mock.Add(time.Minute)
	time.Sleep(10 * time.Millisecond)
	assert.Len(t, d.directMessages(), 1)
}
