package store

import (
	"sync"

	"chime-server/models"
)

// MemoryReminderStore is the default ReminderStore: reminders live for the
// process lifetime only. A single mutex guards every operation so neither
// command handlers nor the scheduler tick observe a half-mutated record.
type MemoryReminderStore struct {
	mu        sync.RWMutex
	reminders []*models.Reminder
}

func NewMemoryReminderStore() *MemoryReminderStore {
	return &MemoryReminderStore{}
}

func (s *MemoryReminderStore) Append(r *models.Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.reminders = append(s.reminders, &cp)
	return nil
}

// visible returns the viewer's filtered view in append order. Callers hold
// the lock.
func (s *MemoryReminderStore) visible(viewerID string, isAdmin bool) []*models.Reminder {
	var view []*models.Reminder
	for _, r := range s.reminders {
		if r.Fired {
			continue
		}
		if !isAdmin && r.AuthorID != viewerID {
			continue
		}
		view = append(view, r)
	}
	return view
}

func (s *MemoryReminderStore) ListFor(viewerID string, isAdmin bool) ([]models.Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	view := s.visible(viewerID, isAdmin)
	out := make([]models.Reminder, len(view))
	for i, r := range view {
		out[i] = *r
	}
	return out, nil
}

func (s *MemoryReminderStore) RemoveAt(viewerID string, isAdmin bool, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	view := s.visible(viewerID, isAdmin)
	if index < 0 || index >= len(view) {
		return ErrIndexOutOfRange
	}
	return s.removeLocked(view[index].ID)
}

func (s *MemoryReminderStore) Remove(viewerID string, isAdmin bool, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := matchReminderID(s.visible(viewerID, isAdmin), id)
	if err != nil {
		return err
	}
	return s.removeLocked(r.ID)
}

func (s *MemoryReminderStore) removeLocked(id string) error {
	for i, r := range s.reminders {
		if r.ID == id {
			s.reminders = append(s.reminders[:i], s.reminders[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryReminderStore) EditMessageAt(authorID string, index int, newMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	view := s.visible(authorID, false)
	if index < 0 || index >= len(view) {
		return ErrIndexOutOfRange
	}
	view[index].Message = newMessage
	return nil
}

func (s *MemoryReminderStore) EditMessage(authorID, id, newMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := matchReminderID(s.visible(authorID, false), id)
	if err != nil {
		return err
	}
	r.Message = newMessage
	return nil
}

func (s *MemoryReminderStore) Active() ([]models.Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Reminder
	for _, r := range s.reminders {
		if !r.Fired {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *MemoryReminderStore) MarkFired(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.reminders {
		if r.ID == id {
			r.Fired = true
			return nil
		}
	}
	return ErrNotFound
}
