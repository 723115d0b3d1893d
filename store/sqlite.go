package store

import (
	"database/sql"
	"strings"
	"sync"
	"time"

	"chime-server/models"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	store := &Store{db: db}
	if err := store.init(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *Store) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT UNIQUE NOT NULL,
		display_name TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		is_admin BOOLEAN DEFAULT FALSE,
		status TEXT DEFAULT 'offline',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS channels (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		is_direct BOOLEAN DEFAULT FALSE,
		created_by TEXT REFERENCES users(id),
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS channel_members (
		channel_id TEXT REFERENCES channels(id),
		user_id TEXT REFERENCES users(id),
		joined_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (channel_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		channel_id TEXT REFERENCES channels(id),
		user_id TEXT REFERENCES users(id),
		content TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_messages_channel ON messages(channel_id);
	CREATE INDEX IF NOT EXISTS idx_channel_members_user ON channel_members(user_id);

	CREATE TABLE IF NOT EXISTS reminders (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		author_id TEXT REFERENCES users(id),
		message TEXT NOT NULL,
		mention TEXT NOT NULL,
		fired BOOLEAN DEFAULT FALSE,
		fire_at DATETIME,
		weekdays TEXT,
		hour INTEGER DEFAULT 0,
		minute INTEGER DEFAULT 0,
		timezone TEXT,
		tz_abbr TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_reminders_author ON reminders(author_id);
	CREATE INDEX IF NOT EXISTS idx_reminders_fired ON reminders(fired);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Chimebot is the system user that posts reminders and command replies.

func (s *Store) GetChimebot() (*models.User, error) {
	return s.GetUserByUsername("chimebot")
}

func (s *Store) EnsureChimebot() (*models.User, error) {
	bot, err := s.GetChimebot()
	if err == nil {
		s.UpdateUserStatus(bot.ID, "online")
		return bot, nil
	}
	return s.CreateUser("chimebot", "Chime Bot", uuid.New().String())
}

// GetOrCreateChimebotDM gets or creates a DM channel between Chimebot and a user.
func (s *Store) GetOrCreateChimebotDM(userID string) (*models.Channel, error) {
	bot, err := s.GetChimebot()
	if err != nil {
		return nil, err
	}

	var channelID string
	err = s.db.QueryRow(`
		SELECT c.id FROM channels c
		JOIN channel_members cm1 ON c.id = cm1.channel_id AND cm1.user_id = ?
		JOIN channel_members cm2 ON c.id = cm2.channel_id AND cm2.user_id = ?
		WHERE c.is_direct = TRUE
	`, bot.ID, userID).Scan(&channelID)

	if err == nil {
		return s.GetChannel(channelID)
	}

	channelName := "dm-chimebot-" + userID[:8]
	channel, err := s.CreateChannel(channelName, "", bot.ID, true)
	if err != nil {
		return nil, err
	}

	s.JoinChannel(channel.ID, userID)

	return channel, nil
}

// User operations

func (s *Store) CreateUser(username, displayName, password string) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:           uuid.New().String(),
		Username:     username,
		DisplayName:  displayName,
		PasswordHash: string(hash),
		Status:       "online",
		CreatedAt:    time.Now(),
	}

	_, err = s.db.Exec(`
		INSERT INTO users (id, username, display_name, password_hash, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, user.ID, user.Username, user.DisplayName, user.PasswordHash, user.Status, user.CreatedAt)

	if err != nil {
		return nil, err
	}

	return user, nil
}

func (s *Store) CountUsers() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM users").Scan(&count)
	return count, err
}

func (s *Store) SetUserAdmin(userID string, admin bool) error {
	_, err := s.db.Exec("UPDATE users SET is_admin = ? WHERE id = ?", admin, userID)
	return err
}

func (s *Store) GetUserByUsername(username string) (*models.User, error) {
	user := &models.User{}
	err := s.db.QueryRow(`
		SELECT id, username, display_name, password_hash, is_admin, status, created_at
		FROM users WHERE username = ?
	`, username).Scan(&user.ID, &user.Username, &user.DisplayName, &user.PasswordHash, &user.IsAdmin, &user.Status, &user.CreatedAt)

	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Store) GetUserByID(id string) (*models.User, error) {
	user := &models.User{}
	err := s.db.QueryRow(`
		SELECT id, username, display_name, password_hash, is_admin, status, created_at
		FROM users WHERE id = ?
	`, id).Scan(&user.ID, &user.Username, &user.DisplayName, &user.PasswordHash, &user.IsAdmin, &user.Status, &user.CreatedAt)

	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Store) GetAllUsers() ([]models.User, error) {
	rows, err := s.db.Query(`
		SELECT id, username, display_name, password_hash, is_admin, status, created_at
		FROM users ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.DisplayName, &u.PasswordHash, &u.IsAdmin, &u.Status, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

func (s *Store) UpdateUserStatus(userID, status string) error {
	_, err := s.db.Exec("UPDATE users SET status = ? WHERE id = ?", status, userID)
	return err
}

func (s *Store) ValidatePassword(user *models.User, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password))
	return err == nil
}

// Channel operations

func (s *Store) CreateChannel(name, description, createdBy string, isDirect bool) (*models.Channel, error) {
	channel := &models.Channel{
		ID:          uuid.New().String(),
		Name:        name,
		Description: description,
		IsDirect:    isDirect,
		CreatedBy:   createdBy,
		CreatedAt:   time.Now(),
	}

	_, err := s.db.Exec(`
		INSERT INTO channels (id, name, description, is_direct, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, channel.ID, channel.Name, channel.Description, channel.IsDirect, channel.CreatedBy, channel.CreatedAt)

	if err != nil {
		return nil, err
	}

	// Creator auto-joins
	s.JoinChannel(channel.ID, createdBy)

	return channel, nil
}

// EnsureChannel creates the channel with the given fixed ID if it does not
// exist yet. Used for the configured broadcast channel at startup.
func (s *Store) EnsureChannel(id, name, createdBy string) (*models.Channel, error) {
	channel, err := s.GetChannel(id)
	if err == nil {
		return channel, nil
	}

	channel = &models.Channel{
		ID:        id,
		Name:      name,
		CreatedBy: createdBy,
		CreatedAt: time.Now(),
	}

	_, err = s.db.Exec(`
		INSERT INTO channels (id, name, description, is_direct, created_by, created_at)
		VALUES (?, ?, '', FALSE, ?, ?)
	`, channel.ID, channel.Name, channel.CreatedBy, channel.CreatedAt)

	if err != nil {
		return nil, err
	}

	s.JoinChannel(channel.ID, createdBy)

	return channel, nil
}

func (s *Store) GetChannel(id string) (*models.Channel, error) {
	channel := &models.Channel{}
	err := s.db.QueryRow(`
		SELECT id, name, COALESCE(description, ''), is_direct, created_by, created_at
		FROM channels WHERE id = ?
	`, id).Scan(&channel.ID, &channel.Name, &channel.Description, &channel.IsDirect, &channel.CreatedBy, &channel.CreatedAt)

	if err != nil {
		return nil, err
	}
	return channel, nil
}

func (s *Store) GetChannelsForUser(userID string) ([]models.Channel, error) {
	rows, err := s.db.Query(`
		SELECT c.id, c.name, COALESCE(c.description, ''), c.is_direct, c.created_by, c.created_at
		FROM channels c
		JOIN channel_members cm ON c.id = cm.channel_id
		WHERE cm.user_id = ?
		ORDER BY c.created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var channels []models.Channel
	for rows.Next() {
		var c models.Channel
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.IsDirect, &c.CreatedBy, &c.CreatedAt); err != nil {
			return nil, err
		}
		channels = append(channels, c)
	}
	return channels, nil
}

func (s *Store) GetPublicChannels() ([]models.Channel, error) {
	rows, err := s.db.Query(`
		SELECT id, name, COALESCE(description, ''), is_direct, created_by, created_at
		FROM channels WHERE is_direct = FALSE
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var channels []models.Channel
	for rows.Next() {
		var c models.Channel
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.IsDirect, &c.CreatedBy, &c.CreatedAt); err != nil {
			return nil, err
		}
		channels = append(channels, c)
	}
	return channels, nil
}

func (s *Store) JoinChannel(channelID, userID string) error {
	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO channel_members (channel_id, user_id)
		VALUES (?, ?)
	`, channelID, userID)
	return err
}

func (s *Store) GetChannelMembers(channelID string) ([]models.User, error) {
	rows, err := s.db.Query(`
		SELECT u.id, u.username, u.display_name, u.password_hash, u.is_admin, u.status, u.created_at
		FROM users u
		JOIN channel_members cm ON u.id = cm.user_id
		WHERE cm.channel_id = ?
		ORDER BY u.username
	`, channelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.DisplayName, &u.PasswordHash, &u.IsAdmin, &u.Status, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

func (s *Store) GetOrCreateDMChannel(user1ID, user2ID string) (*models.Channel, error) {
	var channelID string
	err := s.db.QueryRow(`
		SELECT c.id FROM channels c
		JOIN channel_members cm1 ON c.id = cm1.channel_id AND cm1.user_id = ?
		JOIN channel_members cm2 ON c.id = cm2.channel_id AND cm2.user_id = ?
		WHERE c.is_direct = TRUE
	`, user1ID, user2ID).Scan(&channelID)

	if err == nil {
		return s.GetChannel(channelID)
	}

	channelName := "dm-" + user1ID[:8] + "-" + user2ID[:8]
	channel, err := s.CreateChannel(channelName, "", user1ID, true)
	if err != nil {
		return nil, err
	}

	s.JoinChannel(channel.ID, user2ID)

	return channel, nil
}

// Message operations

func (s *Store) CreateMessage(channelID, userID, content string) (*models.Message, error) {
	msg := &models.Message{
		ID:        uuid.New().String(),
		ChannelID: channelID,
		UserID:    userID,
		Content:   content,
		CreatedAt: time.Now(),
	}

	_, err := s.db.Exec(`
		INSERT INTO messages (id, channel_id, user_id, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, msg.ID, msg.ChannelID, msg.UserID, msg.Content, msg.CreatedAt)

	if err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *Store) GetChannelMessages(channelID string, limit int) ([]models.MessageWithUser, error) {
	rows, err := s.db.Query(`
		SELECT m.id, m.channel_id, m.user_id, m.content, m.created_at,
		       u.id, u.username, u.display_name, u.is_admin, u.status, u.created_at
		FROM messages m
		JOIN users u ON m.user_id = u.id
		WHERE m.channel_id = ?
		ORDER BY m.created_at DESC
		LIMIT ?
	`, channelID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.MessageWithUser
	for rows.Next() {
		var m models.MessageWithUser
		err := rows.Scan(&m.ID, &m.ChannelID, &m.UserID, &m.Content, &m.CreatedAt,
			&m.User.ID, &m.User.Username, &m.User.DisplayName, &m.User.IsAdmin, &m.User.Status, &m.User.CreatedAt)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}

	// Oldest first for display
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// Reminder operations. SQLReminderStore is the persistent ReminderStore
// implementation; the mutex keeps view-index reads and the mutation they
// address atomic with respect to each other.

type SQLReminderStore struct {
	db *sql.DB
	mu sync.Mutex
}

func (s *Store) Reminders() *SQLReminderStore {
	return &SQLReminderStore{db: s.db}
}

func (s *SQLReminderStore) Append(r *models.Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO reminders (id, kind, author_id, message, mention, fired, fire_at, weekdays, hour, minute, timezone, tz_abbr, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, string(r.Kind), r.AuthorID, r.Message, r.Mention, r.Fired, r.FireAt,
		strings.Join(r.Weekdays, ","), r.Hour, r.Minute, r.Timezone, r.TZAbbr, r.CreatedAt)
	return err
}

// viewLocked loads the viewer's filtered view in append order.
func (s *SQLReminderStore) viewLocked(viewerID string, isAdmin bool) ([]*models.Reminder, error) {
	q := `
		SELECT id, kind, author_id, message, mention, fired, fire_at, weekdays, hour, minute, COALESCE(timezone, ''), COALESCE(tz_abbr, ''), created_at
		FROM reminders
		WHERE fired = FALSE`
	args := []interface{}{}
	if !isAdmin {
		q += " AND author_id = ?"
		args = append(args, viewerID)
	}
	q += " ORDER BY created_at, rowid"

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reminders []*models.Reminder
	for rows.Next() {
		r := &models.Reminder{}
		var kind, weekdays string
		var fireAt sql.NullTime
		err := rows.Scan(&r.ID, &kind, &r.AuthorID, &r.Message, &r.Mention, &r.Fired,
			&fireAt, &weekdays, &r.Hour, &r.Minute, &r.Timezone, &r.TZAbbr, &r.CreatedAt)
		if err != nil {
			return nil, err
		}
		r.Kind = models.ReminderKind(kind)
		if fireAt.Valid {
			r.FireAt = fireAt.Time
		}
		if weekdays != "" {
			r.Weekdays = strings.Split(weekdays, ",")
		}
		reminders = append(reminders, r)
	}
	return reminders, rows.Err()
}

func (s *SQLReminderStore) ListFor(viewerID string, isAdmin bool) ([]models.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	view, err := s.viewLocked(viewerID, isAdmin)
	if err != nil {
		return nil, err
	}
	out := make([]models.Reminder, len(view))
	for i, r := range view {
		out[i] = *r
	}
	return out, nil
}

func (s *SQLReminderStore) RemoveAt(viewerID string, isAdmin bool, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	view, err := s.viewLocked(viewerID, isAdmin)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(view) {
		return ErrIndexOutOfRange
	}
	_, err = s.db.Exec("DELETE FROM reminders WHERE id = ?", view[index].ID)
	return err
}

func (s *SQLReminderStore) Remove(viewerID string, isAdmin bool, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	view, err := s.viewLocked(viewerID, isAdmin)
	if err != nil {
		return err
	}
	r, err := matchReminderID(view, id)
	if err != nil {
		return err
	}
	_, err = s.db.Exec("DELETE FROM reminders WHERE id = ?", r.ID)
	return err
}

func (s *SQLReminderStore) EditMessageAt(authorID string, index int, newMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	view, err := s.viewLocked(authorID, false)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(view) {
		return ErrIndexOutOfRange
	}
	_, err = s.db.Exec("UPDATE reminders SET message = ? WHERE id = ?", newMessage, view[index].ID)
	return err
}

func (s *SQLReminderStore) EditMessage(authorID, id, newMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	view, err := s.viewLocked(authorID, false)
	if err != nil {
		return err
	}
	r, err := matchReminderID(view, id)
	if err != nil {
		return err
	}
	_, err = s.db.Exec("UPDATE reminders SET message = ? WHERE id = ?", newMessage, r.ID)
	return err
}

func (s *SQLReminderStore) Active() ([]models.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	view, err := s.viewLocked("", true)
	if err != nil {
		return nil, err
	}
	out := make([]models.Reminder, len(view))
	for i, r := range view {
		out[i] = *r
	}
	return out, nil
}

func (s *SQLReminderStore) MarkFired(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("UPDATE reminders SET fired = TRUE WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
