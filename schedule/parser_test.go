package schedule

import (
	"testing"
	"time"

	"chime-server/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOnceConvertsToUTC(t *testing.T) {
	// May 10 is during daylight saving, so PST resolves to UTC-7.
	r, err := ParseReminder("2025-05-10 20:00 PST once @everyone Submit your assignment", "user-1")
	require.NoError(t, err)

	assert.Equal(t, models.ReminderOnce, r.Kind)
	assert.Equal(t, "user-1", r.AuthorID)
	assert.Equal(t, "@everyone", r.Mention)
	assert.Equal(t, "Submit your assignment", r.Message)
	assert.Equal(t, "PST", r.TZAbbr)
	assert.False(t, r.Fired)
	assert.NotEmpty(t, r.ID)

	want := time.Date(2025, 5, 11, 3, 0, 0, 0, time.UTC)
	assert.True(t, r.FireAt.Equal(want), "got %s, want %s", r.FireAt, want)
}

func TestParseOnceStandardTimeOffset(t *testing.T) {
	// January is outside daylight saving: EST is UTC-5.
	r, err := ParseReminder("2025-01-15 09:00 EST once @dm Wake up", "user-1")
	require.NoError(t, err)

	want := time.Date(2025, 1, 15, 14, 0, 0, 0, time.UTC)
	assert.True(t, r.FireAt.Equal(want), "got %s, want %s", r.FireAt, want)
	assert.True(t, r.IsDM())
}

func TestParseOnceSingleDigitHour(t *testing.T) {
	r, err := ParseReminder("2025-01-01 9:05 UTC once @here check in", "user-1")
	require.NoError(t, err)
	want := time.Date(2025, 1, 1, 9, 5, 0, 0, time.UTC)
	assert.True(t, r.FireAt.Equal(want))
}

func TestParseWeekly(t *testing.T) {
	r, err := ParseReminder("mon,WED 08:30 est weekly @123456789 Gym time!", "user-2")
	require.NoError(t, err)

	assert.Equal(t, models.ReminderWeekly, r.Kind)
	assert.Equal(t, []string{"Mon", "Wed"}, r.Weekdays)
	assert.Equal(t, 8, r.Hour)
	assert.Equal(t, 30, r.Minute)
	assert.Equal(t, "America/New_York", r.Timezone)
	assert.Equal(t, "EST", r.TZAbbr)
	assert.Equal(t, "@123456789", r.Mention)
	assert.Equal(t, "Gym time!", r.Message)
	assert.True(t, r.FireAt.IsZero())
}

func TestParseGrammarErrors(t *testing.T) {
	inputs := []string{
		"",
		"remind me tomorrow",
		"2025-01-01 09:00 UTC @dm missing keyword",
		"2025-01-01 09:00 UTC once @dm",      // no message
		"Mon 09:00 UTC weekly @dm",           // no message
		"2025-01-01 09:00 UTC once no-at-target hello",
		"Monday 09:00 UTC weekly @dm hello",  // 6-letter day token
		"09:00 UTC once @dm hello",           // no date
	}
	for _, input := range inputs {
		_, err := ParseReminder(input, "user-1")
		assert.ErrorIs(t, err, ErrBadSyntax, "input %q", input)
	}
}

func TestParseUnknownTimezoneIsSemantic(t *testing.T) {
	_, err := ParseReminder("2025-01-01 09:00 XYZ once @dm hello", "user-1")
	assert.ErrorIs(t, err, ErrUnknownTimezone)

	_, err = ParseReminder("Mon 09:00 XYZ weekly @dm hello", "user-1")
	assert.ErrorIs(t, err, ErrUnknownTimezone)
}

func TestParseInvalidDatetime(t *testing.T) {
	_, err := ParseReminder("2025-02-30 09:00 UTC once @dm hello", "user-1")
	assert.ErrorIs(t, err, ErrInvalidDatetime)

	_, err = ParseReminder("2025-01-01 25:00 UTC once @dm hello", "user-1")
	assert.ErrorIs(t, err, ErrInvalidDatetime)

	_, err = ParseReminder("Mon 24:00 UTC weekly @dm hello", "user-1")
	assert.ErrorIs(t, err, ErrInvalidDatetime)

	_, err = ParseReminder("Mon 09:61 UTC weekly @dm hello", "user-1")
	assert.ErrorIs(t, err, ErrInvalidDatetime)
}

func TestParseInvalidWeekday(t *testing.T) {
	_, err := ParseReminder("Xyz 09:00 UTC weekly @dm hello", "user-1")
	assert.ErrorIs(t, err, ErrInvalidWeekday)

	_, err = ParseReminder("Mon,Foo 09:00 UTC weekly @dm hello", "user-1")
	assert.ErrorIs(t, err, ErrInvalidWeekday)
}
