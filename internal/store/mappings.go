package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/pontifexx/supplier-portal/internal/models"
)

// ErrDuplicateMapping is returned when a customer already has a mapping for
// the given from-status. The existing mapping is left untouched.
var ErrDuplicateMapping = errors.New("a mapping for this from-status already exists")

func (db *DB) CreateStatusMapping(customerID int64, fromStatus, toStatus string) (int64, error) {
	var count int
	err := db.Get(&count,
		`SELECT COUNT(*) FROM status_mappings WHERE customer_id = ? AND from_status = ?`,
		customerID, fromStatus)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		return 0, ErrDuplicateMapping
	}

	res, err := db.Exec(
		`INSERT INTO status_mappings (customer_id, from_status, to_status) VALUES (?, ?, ?)`,
		customerID, fromStatus, toStatus)
	if err != nil {
		// The UNIQUE constraint backs up the precheck against races.
		return 0, fmt.Errorf("failed to create status mapping: %w", err)
	}
	return res.LastInsertId()
}

func (db *DB) ListStatusMappings(customerID int64) ([]models.StatusMapping, error) {
	var mappings []models.StatusMapping
	err := db.Select(&mappings,
		`SELECT id, customer_id, from_status, to_status FROM status_mappings
		 WHERE customer_id = ? ORDER BY from_status`, customerID)
	return mappings, err
}

// MappingFor returns the admin-configured target status for a job currently
// in fromStatus, or ok=false when the customer has no such mapping.
func (db *DB) MappingFor(customerID int64, fromStatus string) (string, bool, error) {
	var toStatus string
	err := db.Get(&toStatus,
		`SELECT to_status FROM status_mappings WHERE customer_id = ? AND from_status = ?`,
		customerID, fromStatus)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return toStatus, true, nil
}

// MappingsForCustomers returns every mapping for the given customers as a
// customer-id -> from-status -> to-status lookup.
func (db *DB) MappingsForCustomers(customerIDs []int64) (map[int64]map[string]string, error) {
	result := make(map[int64]map[string]string)
	if len(customerIDs) == 0 {
		return result, nil
	}

	query, args, err := sqlx.In(
		`SELECT id, customer_id, from_status, to_status FROM status_mappings WHERE customer_id IN (?)`,
		customerIDs)
	if err != nil {
		return nil, err
	}

	var mappings []models.StatusMapping
	if err := db.Select(&mappings, db.Rebind(query), args...); err != nil {
		return nil, err
	}

	for _, m := range mappings {
		if result[m.CustomerID] == nil {
			result[m.CustomerID] = make(map[string]string)
		}
		result[m.CustomerID][m.FromStatus] = m.ToStatus
	}
	return result, nil
}

func (db *DB) DeleteStatusMapping(customerID, id int64) error {
	res, err := db.Exec(`DELETE FROM status_mappings WHERE id = ? AND customer_id = ?`, id, customerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
