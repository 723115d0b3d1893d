package schedule

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"chime-server/models"

	"github.com/google/uuid"
)

var (
	// ErrBadSyntax means the input matched neither reminder form. The reply
	// for it is Usage, so the user sees the two accepted shapes.
	ErrBadSyntax = errors.New("input matches neither reminder form")
	// ErrInvalidDatetime means the shape was fine but the date, hour or
	// minute values do not form a valid calendar datetime.
	ErrInvalidDatetime = errors.New("invalid date or time")
	// ErrInvalidWeekday means a day token is not a 3-letter weekday name.
	ErrInvalidWeekday = errors.New("invalid weekday")
)

// Usage is the reply shown when a remind command matches neither grammar.
const Usage = "Invalid format. Use: `!remind YYYY-MM-DD HH:MM TZ once @mention Message` or `!remind Mon,Wed HH:MM TZ weekly @mention Message`"

var (
	weeklyPattern = regexp.MustCompile(`^([A-Za-z]{3}(?:,[A-Za-z]{3})*)\s+(\d{1,2}):(\d{2})\s+(\w+)\s+weekly\s+(@\S+)\s+(.+)$`)
	oncePattern   = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})\s+(\d{1,2}:\d{2})\s+(\w+)\s+once\s+(@\S+)\s+(.+)$`)
)

var validWeekdays = map[string]bool{
	"Mon": true, "Tue": true, "Wed": true, "Thu": true,
	"Fri": true, "Sat": true, "Sun": true,
}

// ParseReminder turns a remind command body into a validated reminder record.
// The weekly grammar is tried first; its leading day-list is lexically
// distinct from the once grammar's date.
func ParseReminder(input, authorID string) (*models.Reminder, error) {
	input = strings.TrimSpace(input)

	if m := weeklyPattern.FindStringSubmatch(input); m != nil {
		return parseWeekly(m, authorID)
	}
	if m := oncePattern.FindStringSubmatch(input); m != nil {
		return parseOnce(m, authorID)
	}
	return nil, ErrBadSyntax
}

func parseWeekly(m []string, authorID string) (*models.Reminder, error) {
	days := strings.Split(m[1], ",")
	weekdays := make([]string, len(days))
	for i, d := range days {
		d = strings.ToUpper(d[:1]) + strings.ToLower(d[1:])
		if !validWeekdays[d] {
			return nil, fmt.Errorf("%w: %s", ErrInvalidWeekday, d)
		}
		weekdays[i] = d
	}

	hour, _ := strconv.Atoi(m[2])
	minute, _ := strconv.Atoi(m[3])
	if hour > 23 || minute > 59 {
		return nil, fmt.Errorf("%w: %s:%s", ErrInvalidDatetime, m[2], m[3])
	}

	tzName, _, err := ResolveTimezone(m[4])
	if err != nil {
		return nil, err
	}

	return &models.Reminder{
		ID:        uuid.New().String(),
		Kind:      models.ReminderWeekly,
		AuthorID:  authorID,
		Message:   strings.TrimSpace(m[6]),
		Mention:   m[5],
		Weekdays:  weekdays,
		Hour:      hour,
		Minute:    minute,
		Timezone:  tzName,
		TZAbbr:    strings.ToUpper(m[4]),
		CreatedAt: time.Now().UTC(),
	}, nil
}

func parseOnce(m []string, authorID string) (*models.Reminder, error) {
	_, loc, err := ResolveTimezone(m[3])
	if err != nil {
		return nil, err
	}

	// Localize the naive datetime in the resolved zone, then pin it to UTC.
	local, err := time.ParseInLocation("2006-01-02 15:04", m[1]+" "+m[2], loc)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s", ErrInvalidDatetime, m[1], m[2])
	}

	return &models.Reminder{
		ID:        uuid.New().String(),
		Kind:      models.ReminderOnce,
		AuthorID:  authorID,
		Message:   strings.TrimSpace(m[5]),
		Mention:   m[4],
		FireAt:    local.UTC().Truncate(time.Minute),
		TZAbbr:    strings.ToUpper(m[3]),
		CreatedAt: time.Now().UTC(),
	}, nil
}
