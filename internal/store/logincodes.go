package store

import (
	"time"
)

func (db *DB) CreateLoginCode(email, code string, createdAt time.Time) error {
	_, err := db.Exec(`INSERT INTO login_codes (email, code, created_at, used) VALUES (?, ?, ?, 0)`,
		email, code, createdAt)
	return err
}

// ConsumeLoginCode atomically marks the newest unused, unexpired code matching
// the exact email+code pair as used. It returns false when no such code
// exists, which also covers replay of an already-consumed code.
func (db *DB) ConsumeLoginCode(email, code string, cutoff time.Time) (bool, error) {
	res, err := db.Exec(`
		UPDATE login_codes SET used = 1
		WHERE id = (
			SELECT id FROM login_codes
			WHERE email = ? AND code = ? AND used = 0 AND created_at > ?
			ORDER BY created_at DESC LIMIT 1
		)`, email, code, cutoff)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
