package store

import (
	"errors"

	"chime-server/models"
)

var (
	ErrIndexOutOfRange = errors.New("reminder index out of range")
	ErrNotFound        = errors.New("reminder not found")
)

// ReminderStore tracks reminder records. Listing and index-addressed
// operations work on a filtered view in append order: admins see every
// unfired record, everyone else sees only their own. A record's visible
// index shifts when records ahead of it fire or are removed, so callers
// should re-list before acting on an index from a stale listing; the
// stable-ID variants avoid that hazard.
type ReminderStore interface {
	Append(r *models.Reminder) error
	ListFor(viewerID string, isAdmin bool) ([]models.Reminder, error)

	RemoveAt(viewerID string, isAdmin bool, index int) error
	Remove(viewerID string, isAdmin bool, id string) error

	// Edits are restricted to the author's own view; admins get no override.
	EditMessageAt(authorID string, index int, newMessage string) error
	EditMessage(authorID, id, newMessage string) error

	// Active returns a snapshot of every unfired record for the scheduler.
	Active() ([]models.Reminder, error)
	MarkFired(id string) error
}

// matchReminderID finds the record in view whose ID equals, or uniquely
// starts with, id.
func matchReminderID(view []*models.Reminder, id string) (*models.Reminder, error) {
	var found *models.Reminder
	for _, r := range view {
		if r.ID == id {
			return r, nil
		}
		if len(id) > 0 && len(id) < len(r.ID) && r.ID[:len(id)] == id {
			if found != nil {
				// Ambiguous prefix.
				return nil, ErrNotFound
			}
			found = r
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}
