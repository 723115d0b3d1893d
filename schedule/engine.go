package schedule

import (
	"context"
	"fmt"
	"log"
	"time"

	"chime-server/models"
	"chime-server/store"

	"github.com/benbjohnson/clock"
)

// Dispatcher is the delivery boundary the engine hands due reminders to.
type Dispatcher interface {
	SendToChannel(text string) error
	SendDirect(userID, text string) error
	ResolveUser(userID string) (string, error)
}

const tickInterval = time.Minute

// Engine evaluates reminder due-ness once per tick. Once reminders fire at
// most once and only transition to fired after a successful delivery; weekly
// reminders re-arm on every matching local weekday/time, indefinitely.
type Engine struct {
	store      store.ReminderStore
	dispatcher Dispatcher
	clock      clock.Clock
}

func NewEngine(s store.ReminderStore, d Dispatcher, clk clock.Clock) *Engine {
	if clk == nil {
		clk = clock.New()
	}
	return &Engine{store: s, dispatcher: d, clock: clk}
}

// Run evaluates reminders once per minute until ctx is cancelled. Blocking;
// call in a goroutine.
func (e *Engine) Run(ctx context.Context) {
	t := e.clock.Ticker(tickInterval)
	defer t.Stop()

	log.Printf("[SCHED] scheduler started (interval %s)", tickInterval)
	for {
		select {
		case <-ctx.Done():
			log.Printf("[SCHED] scheduler stopped: %v", ctx.Err())
			return
		case <-t.C:
			e.Tick(e.clock.Now())
		}
	}
}

// Tick runs one due-ness pass over every armed reminder. now is truncated to
// the minute in UTC before any comparison.
func (e *Engine) Tick(now time.Time) {
	nowUTC := now.UTC().Truncate(time.Minute)

	active, err := e.store.Active()
	if err != nil {
		log.Printf("[SCHED] tick aborted, store error: %v", err)
		return
	}

	for i := range active {
		r := &active[i]
		switch r.Kind {
		case models.ReminderOnce:
			// Not strict minute equality: a minute lost to a process
			// pause still fires late rather than never.
			if r.FireAt.Truncate(time.Minute).After(nowUTC) {
				continue
			}
			if err := e.deliver(r, "Reminder"); err != nil {
				log.Printf("[SCHED] delivery failed for reminder %s, will retry next tick: %v", r.ID, err)
				continue
			}
			if err := e.store.MarkFired(r.ID); err != nil {
				log.Printf("[SCHED] failed to mark reminder %s fired: %v", r.ID, err)
			}

		case models.ReminderWeekly:
			loc, err := time.LoadLocation(r.Timezone)
			if err != nil {
				log.Printf("[SCHED] bad timezone %q on reminder %s: %v", r.Timezone, r.ID, err)
				continue
			}
			local := nowUTC.In(loc)
			if !containsDay(r.Weekdays, local.Format("Mon")) ||
				local.Hour() != r.Hour || local.Minute() != r.Minute {
				continue
			}
			if err := e.deliver(r, "Weekly Reminder"); err != nil {
				log.Printf("[SCHED] delivery failed for weekly reminder %s: %v", r.ID, err)
			}
		}
	}
}

func (e *Engine) deliver(r *models.Reminder, label string) error {
	if r.IsDM() {
		if _, err := e.dispatcher.ResolveUser(r.AuthorID); err != nil {
			return fmt.Errorf("resolve user %s: %w", r.AuthorID, err)
		}
		if err := e.dispatcher.SendDirect(r.AuthorID, "🔔 "+label+": "+r.Message); err != nil {
			return err
		}
	} else {
		if err := e.dispatcher.SendToChannel("🔔 "+r.Mention+" "+label+": "+r.Message); err != nil {
			return err
		}
	}

	// Delivery acknowledgement in the broadcast channel. Failing to ack does
	// not undo a delivery that already happened.
	if err := e.dispatcher.SendToChannel("👍"); err != nil {
		log.Printf("[SCHED] ack failed for reminder %s: %v", r.ID, err)
	}
	return nil
}

func containsDay(days []string, day string) bool {
	for _, d := range days {
		if d == day {
			return true
		}
	}
	return false
}
