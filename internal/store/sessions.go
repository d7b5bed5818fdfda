package store

import (
	"database/sql"
	"time"

	"github.com/pontifexx/supplier-portal/internal/models"
)

func (db *DB) CreateSession(s *models.Session) error {
	_, err := db.Exec(`
		INSERT INTO sessions (token, email, is_admin, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)`,
		s.Token, s.Email, s.IsAdmin, s.CreatedAt, s.ExpiresAt)
	return err
}

// SessionByToken returns the session for a bearer token, treating expired
// sessions as missing.
func (db *DB) SessionByToken(token string, now time.Time) (*models.Session, error) {
	var s models.Session
	err := db.Get(&s, `
		SELECT token, email, is_admin, created_at, expires_at
		FROM sessions WHERE token = ? AND expires_at > ?`, token, now)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (db *DB) DeleteSession(token string) error {
	_, err := db.Exec(`DELETE FROM sessions WHERE token = ?`, token)
	return err
}

// DeleteExpiredSessions purges rows past their expiry so the table does not
// grow without bound. Run on each login.
func (db *DB) DeleteExpiredSessions(now time.Time) error {
	_, err := db.Exec(`DELETE FROM sessions WHERE expires_at <= ?`, now)
	return err
}
