package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/pontifexx/supplier-portal/internal/constants"
	"github.com/pontifexx/supplier-portal/internal/models"
)

// SyncControl returns the singleton control row, creating the default row if
// it is somehow missing.
func (db *DB) SyncControl() (*models.SyncControl, error) {
	var ctl models.SyncControl
	err := db.Get(&ctl, `
		SELECT id, force_sync, in_progress, last_sync, sync_interval
		FROM sync_control WHERE id = 1`)
	if err == sql.ErrNoRows {
		_, err = db.Exec(`
			INSERT INTO sync_control (id, force_sync, in_progress, last_sync, sync_interval)
			VALUES (1, 0, 0, NULL, ?)`, constants.DefaultSyncInterval)
		if err != nil {
			return nil, err
		}
		return &models.SyncControl{ID: 1, SyncInterval: constants.DefaultSyncInterval}, nil
	}
	if err != nil {
		return nil, err
	}
	return &ctl, nil
}

// ClaimSync transitions the control row from idle to syncing, consuming any
// pending force request in the same statement. It returns false when another
// claimant already holds the in-progress flag.
func (db *DB) ClaimSync() (bool, error) {
	res, err := db.Exec(`
		UPDATE sync_control SET in_progress = 1, force_sync = 0
		WHERE id = 1 AND in_progress = 0`)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// FinishSync transitions back to idle and records the completion time.
func (db *DB) FinishSync(completedAt time.Time) error {
	_, err := db.Exec(`UPDATE sync_control SET in_progress = 0, last_sync = ? WHERE id = 1`,
		completedAt)
	return err
}

// ReleaseSync clears the in-progress flag without recording a completion.
// Used on the failure path only.
func (db *DB) ReleaseSync() error {
	_, err := db.Exec(`UPDATE sync_control SET in_progress = 0 WHERE id = 1`)
	return err
}

// RequestForceSync asks the poller to refresh on its next tick.
func (db *DB) RequestForceSync() error {
	_, err := db.Exec(`UPDATE sync_control SET force_sync = 1 WHERE id = 1`)
	return err
}

func (db *DB) SetSyncInterval(seconds int) error {
	if seconds <= 0 {
		return fmt.Errorf("sync interval must be positive, got %d", seconds)
	}
	_, err := db.Exec(`UPDATE sync_control SET sync_interval = ? WHERE id = 1`, seconds)
	return err
}
