// Package store is the persistence gateway: sqlite-backed storage for
// users, messages and call logs. It owns no concurrency beyond the
// database/sql pool; callers decide what gates protocol progress.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/okulov/parley/internal/domain"
)

var ErrNotFound = errors.New("not found")

type Store struct {
	conn *sql.DB
}

func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite3", path+"?_foreign_keys=1&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	s := &Store{conn: conn}
	if err := s.init(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) init() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT UNIQUE NOT NULL,
			email TEXT UNIQUE NOT NULL,
			password TEXT NOT NULL,
			avatar TEXT DEFAULT NULL,
			status TEXT DEFAULT 'offline',
			last_seen DATETIME DEFAULT CURRENT_TIMESTAMP,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			sender_id INTEGER NOT NULL,
			receiver_id INTEGER,
			message TEXT NOT NULL,
			message_type TEXT DEFAULT 'text',
			file_url TEXT DEFAULT NULL,
			is_read BOOLEAN DEFAULT FALSE,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (sender_id) REFERENCES users (id)
		)`,
		`CREATE TABLE IF NOT EXISTS call_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			caller_id INTEGER NOT NULL,
			receiver_id INTEGER NOT NULL,
			call_type TEXT DEFAULT 'audio',
			status TEXT DEFAULT 'missed',
			duration INTEGER DEFAULT 0,
			started_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			ended_at DATETIME,
			FOREIGN KEY (caller_id) REFERENCES users (id),
			FOREIGN KEY (receiver_id) REFERENCES users (id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages(sender_id, receiver_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_call_logs_caller ON call_logs(caller_id, started_at)`,
	}
	for _, q := range queries {
		if _, err := s.conn.Exec(q); err != nil {
			return fmt.Errorf("store init: %w", err)
		}
	}
	return nil
}

func (s *Store) CreateUser(ctx context.Context, username, email, hashedPassword string) (int64, error) {
	res, err := s.conn.ExecContext(ctx,
		`INSERT INTO users (username, email, password) VALUES (?, ?, ?)`,
		username, email, hashedPassword)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

type userRow struct {
	domain.User
	Password string
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, string, error) {
	var u userRow
	var avatar sql.NullString
	err := s.conn.QueryRowContext(ctx,
		`SELECT id, username, email, password, avatar, status FROM users WHERE email = ?`,
		email).Scan(&u.ID, &u.Username, &u.Email, &u.Password, &avatar, &u.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", err
	}
	u.Avatar = avatar.String
	return &u.User, u.Password, nil
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	var u domain.User
	var avatar sql.NullString
	err := s.conn.QueryRowContext(ctx,
		`SELECT id, username, email, avatar, status, last_seen FROM users WHERE id = ?`,
		id).Scan(&u.ID, &u.Username, &u.Email, &avatar, &u.Status, &u.LastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Avatar = avatar.String
	return &u, nil
}

func (s *Store) UpdateStatus(ctx context.Context, userID int64, status string) error {
	_, err := s.conn.ExecContext(ctx,
		`UPDATE users SET status = ?, last_seen = CURRENT_TIMESTAMP WHERE id = ?`,
		status, userID)
	return err
}

func (s *Store) OnlineUsers(ctx context.Context) ([]domain.PresenceEntry, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, username, status FROM users WHERE status = 'online'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PresenceEntry
	for rows.Next() {
		var e domain.PresenceEntry
		if err := rows.Scan(&e.ID, &e.Username, &e.Status); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SaveMessage persists a message and returns its id. Durability precedes
// delivery: the hub will not forward a message this call rejected.
func (s *Store) SaveMessage(ctx context.Context, senderID, receiverID int64, body, messageType, fileURL string) (int64, error) {
	var file sql.NullString
	if fileURL != "" {
		file = sql.NullString{String: fileURL, Valid: true}
	}
	res, err := s.conn.ExecContext(ctx,
		`INSERT INTO messages (sender_id, receiver_id, message, message_type, file_url) VALUES (?, ?, ?, ?, ?)`,
		senderID, receiverID, body, messageType, file)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) MessagesBetween(ctx context.Context, userA, userB int64, limit int) ([]domain.Message, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT m.id, m.sender_id, m.receiver_id, m.message, m.message_type,
		       COALESCE(m.file_url, ''), m.is_read, m.created_at, u.username
		FROM messages m
		JOIN users u ON m.sender_id = u.id
		WHERE (m.sender_id = ? AND m.receiver_id = ?)
		   OR (m.sender_id = ? AND m.receiver_id = ?)
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT ?`,
		userA, userB, userB, userA, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Body, &m.MessageType,
			&m.FileURL, &m.IsRead, &m.CreatedAt, &m.SenderUsername); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) MarkMessagesRead(ctx context.Context, senderID, receiverID int64) error {
	_, err := s.conn.ExecContext(ctx,
		`UPDATE messages SET is_read = TRUE WHERE sender_id = ? AND receiver_id = ?`,
		senderID, receiverID)
	return err
}

func (s *Store) SaveCallLog(ctx context.Context, callerID, receiverID int64, callType, status string, durationSeconds int) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO call_logs (caller_id, receiver_id, call_type, status, duration, ended_at)
		 VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)`,
		callerID, receiverID, callType, status, durationSeconds)
	return err
}

func (s *Store) CallHistory(ctx context.Context, userID int64, limit int) ([]domain.CallLog, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, caller_id, receiver_id, call_type, status, duration, started_at, ended_at
		FROM call_logs
		WHERE caller_id = ? OR receiver_id = ?
		ORDER BY started_at DESC
		LIMIT ?`,
		userID, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.CallLog
	for rows.Next() {
		var c domain.CallLog
		var ended sql.NullTime
		if err := rows.Scan(&c.ID, &c.CallerID, &c.ReceiverID, &c.CallType, &c.Status,
			&c.Duration, &c.StartedAt, &ended); err != nil {
			return nil, err
		}
		if ended.Valid {
			c.EndedAt = ended.Time
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
