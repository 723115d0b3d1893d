package models

import (
	"fmt"
	"strings"
	"time"
)

type ReminderKind string

const (
	ReminderOnce   ReminderKind = "once"
	ReminderWeekly ReminderKind = "weekly"
)

// TargetDM is the mention token that routes a reminder to the author's DMs
// instead of the broadcast channel.
const TargetDM = "@dm"

// Reminder is a scheduled notification. A once reminder carries an absolute
// UTC instant in FireAt; a weekly reminder carries a local wall-clock schedule
// (Weekdays/Hour/Minute) that is re-evaluated in Timezone on every tick.
type Reminder struct {
	ID       string       `json:"id"`
	Kind     ReminderKind `json:"kind"`
	AuthorID string       `json:"author_id"`
	Message  string       `json:"message"`
	Mention  string       `json:"mention"`
	Fired    bool         `json:"fired"`

	FireAt time.Time `json:"fire_at"`

	Weekdays []string `json:"weekdays,omitempty"`
	Hour     int      `json:"hour,omitempty"`
	Minute   int      `json:"minute,omitempty"`
	Timezone string   `json:"timezone,omitempty"` // IANA zone name
	TZAbbr   string   `json:"tz_abbr,omitempty"`  // abbreviation the user typed

	CreatedAt time.Time `json:"created_at"`
}

func (r *Reminder) IsDM() bool {
	return r.Mention == TargetDM
}

// ShortID is the ID prefix shown in listings; long enough to be unambiguous
// at any realistic reminder count.
func (r *Reminder) ShortID() string {
	if len(r.ID) > 8 {
		return r.ID[:8]
	}
	return r.ID
}

// Schedule renders the schedule for confirmations and listings.
func (r *Reminder) Schedule() string {
	if r.Kind == ReminderWeekly {
		return fmt.Sprintf("Weekly on %s at %02d:%02d (%s)",
			strings.Join(r.Weekdays, ", "), r.Hour, r.Minute, r.Timezone)
	}
	return r.FireAt.UTC().Format("2006-01-02 15:04") + " UTC"
}

const (
	WSTypeReminder = "reminder"
)
