package store

import (
	"database/sql"
	"fmt"

	"github.com/pontifexx/supplier-portal/internal/models"
)

// SupplierJobRow is a cached job joined with its owning customer's name.
type SupplierJobRow struct {
	models.CachedJob
	CustomerName string `db:"customer_name"`
}

// SupplierAccessRow summarizes one contact email's access for the admin
// overview.
type SupplierAccessRow struct {
	Email      string `db:"email" json:"email"`
	Name       string `db:"name" json:"name"`
	VendorID   string `db:"vendor_id" json:"vendor_id"`
	VendorName string `db:"vendor_name" json:"vendor_name"`
	JobCount   int    `db:"job_count" json:"job_count"`
}

// UpsertCachedJob inserts or replaces a cached job and rebuilds its slice of
// the contact-email index in one transaction.
func (db *DB) UpsertCachedJob(job *models.CachedJob, contacts []models.JobContact) error {
	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	_, err = tx.Exec(`
		INSERT OR REPLACE INTO cached_jobs
		(id, customer_id, description, equipment_description,
		 process_function_description, progress_status, vendor_id,
		 record_change_date, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.CustomerID, job.Description, job.EquipmentDescription,
		job.ProcessFunctionDescription, job.ProgressStatus, job.VendorID,
		job.RecordChangeDate, job.Data)
	if err != nil {
		return fmt.Errorf("failed to upsert cached job %s: %w", job.ID, err)
	}

	if _, err := tx.Exec(`DELETE FROM job_contacts WHERE job_id = ?`, job.ID); err != nil {
		return err
	}
	for _, c := range contacts {
		_, err := tx.Exec(`
			INSERT OR REPLACE INTO job_contacts
			(job_id, customer_id, email, name, vendor_id, vendor_name)
			VALUES (?, ?, ?, ?, ?, ?)`,
			job.ID, job.CustomerID, c.Email, c.Name, c.VendorID, c.VendorName)
		if err != nil {
			return fmt.Errorf("failed to index contact %s for job %s: %w", c.Email, job.ID, err)
		}
	}

	return tx.Commit()
}

func (db *DB) CachedJob(id string) (*models.CachedJob, error) {
	var job models.CachedJob
	err := db.Get(&job, `
		SELECT id, customer_id, description, equipment_description,
		       process_function_description, progress_status, vendor_id,
		       record_change_date, data
		FROM cached_jobs WHERE id = ?`, id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// JobsForContactEmail returns every cached job whose vendor contacts include
// the given email, joined with customer names. Matching is case-sensitive.
func (db *DB) JobsForContactEmail(email string) ([]SupplierJobRow, error) {
	var rows []SupplierJobRow
	err := db.Select(&rows, `
		SELECT jc.id, jc.customer_id, jc.description, jc.equipment_description,
		       jc.process_function_description, jc.progress_status, jc.vendor_id,
		       jc.record_change_date, jc.data, c.name AS customer_name
		FROM cached_jobs jc
		JOIN customers c ON jc.customer_id = c.id
		JOIN job_contacts ct ON ct.job_id = jc.id
		WHERE ct.email = ?
		ORDER BY c.name, jc.id`, email)
	return rows, err
}

// JobHasContact reports whether the given email is a vendor contact on the job.
func (db *DB) JobHasContact(jobID, email string) (bool, error) {
	var count int
	err := db.Get(&count, `SELECT COUNT(*) FROM job_contacts WHERE job_id = ? AND email = ?`,
		jobID, email)
	return count > 0, err
}

// EmailHasJobContact reports whether the email appears in any cached job's
// vendor contact list.
func (db *DB) EmailHasJobContact(email string) (bool, error) {
	var count int
	err := db.Get(&count, `SELECT COUNT(*) FROM job_contacts WHERE email = ?`, email)
	return count > 0, err
}

// JobWatermark returns the most recent upstream change timestamp seen for a
// customer's cached jobs, or "" when the customer has none.
func (db *DB) JobWatermark(customerID int64) (string, error) {
	var watermark sql.NullString
	err := db.Get(&watermark,
		`SELECT MAX(record_change_date) FROM cached_jobs WHERE customer_id = ?`, customerID)
	if err != nil {
		return "", err
	}
	return watermark.String, nil
}

// UpdateCachedJobStatus applies a confirmed upstream status change to the
// local cache row.
func (db *DB) UpdateCachedJobStatus(jobID string, customerID int64, status string, data []byte) error {
	res, err := db.Exec(`
		UPDATE cached_jobs SET progress_status = ?, data = ?
		WHERE id = ? AND customer_id = ?`,
		status, data, jobID, customerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SupplierAccessOverview lists distinct contact emails with vendor info and
// job counts, optionally filtered to one customer (0 = all).
func (db *DB) SupplierAccessOverview(customerID int64) ([]SupplierAccessRow, error) {
	query := `
		SELECT email, MAX(name) AS name, MAX(vendor_id) AS vendor_id,
		       MAX(vendor_name) AS vendor_name, COUNT(DISTINCT job_id) AS job_count
		FROM job_contacts`
	args := []interface{}{}
	if customerID != 0 {
		query += ` WHERE customer_id = ?`
		args = append(args, customerID)
	}
	query += ` GROUP BY email ORDER BY email`

	var rows []SupplierAccessRow
	err := db.Select(&rows, query, args...)
	return rows, err
}
