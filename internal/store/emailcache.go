package store

import (
	"database/sql"
	"time"
)

// EmailVerification returns the memoized supplier check for the email. A hit
// is only honored when it was recorded after the given cutoff; older entries
// are reported as missing so callers recompute.
func (db *DB) EmailVerification(email string, cutoff time.Time) (verified bool, found bool, err error) {
	err = db.Get(&verified, `
		SELECT verified FROM email_verifications
		WHERE email = ? AND checked_at > ?`, email, cutoff)
	if err == sql.ErrNoRows {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return verified, true, nil
}

// SaveEmailVerification records the outcome of a supplier check, positive or
// negative, replacing any previous entry.
func (db *DB) SaveEmailVerification(email string, verified bool, checkedAt time.Time) error {
	_, err := db.Exec(`
		INSERT OR REPLACE INTO email_verifications (email, verified, checked_at)
		VALUES (?, ?, ?)`, email, verified, checkedAt)
	return err
}
