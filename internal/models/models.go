package models

import (
	"time"
)

// Customer is one connected Ultimo ERP tenant, addressed by its own domain
// and API key.
type Customer struct {
	ID     int64  `db:"id" json:"id"`
	Name   string `db:"name" json:"name"`
	Domain string `db:"domain" json:"domain"`
	APIKey string `db:"api_key" json:"-"`
}

// StatusMapping permits a supplier to move a job from one progress status to
// another. At most one mapping exists per (customer, from_status) pair.
type StatusMapping struct {
	ID         int64  `db:"id" json:"id"`
	CustomerID int64  `db:"customer_id" json:"customer_id"`
	FromStatus string `db:"from_status" json:"from_status"`
	ToStatus   string `db:"to_status" json:"to_status"`
}

// CachedJob is the local mirror of an upstream job. The flattened columns
// cover what the portal renders; Data keeps the full upstream payload for
// nested vendor and contact information.
type CachedJob struct {
	ID                         string `db:"id" json:"id"`
	CustomerID                 int64  `db:"customer_id" json:"customer_id"`
	Description                string `db:"description" json:"description"`
	EquipmentDescription       string `db:"equipment_description" json:"equipment_description"`
	ProcessFunctionDescription string `db:"process_function_description" json:"process_function_description"`
	ProgressStatus             string `db:"progress_status" json:"progress_status"`
	VendorID                   string `db:"vendor_id" json:"vendor_id"`
	// RecordChangeDate is the upstream-authoritative change timestamp, kept as
	// the raw string and used as the incremental-sync watermark.
	RecordChangeDate string `db:"record_change_date" json:"record_change_date"`
	Data             []byte `db:"data" json:"-"`
}

// JobContact is one row of the contact-email index derived from a cached
// job's vendor contacts, maintained at upsert time.
type JobContact struct {
	JobID      string `db:"job_id" json:"job_id"`
	CustomerID int64  `db:"customer_id" json:"customer_id"`
	Email      string `db:"email" json:"email"`
	Name       string `db:"name" json:"name"`
	VendorID   string `db:"vendor_id" json:"vendor_id"`
	VendorName string `db:"vendor_name" json:"vendor_name"`
}

// LoginCode is a one-time login code. A code is valid only while unused and
// younger than fifteen minutes.
type LoginCode struct {
	ID        int64     `db:"id"`
	Email     string    `db:"email"`
	Code      string    `db:"code"`
	CreatedAt time.Time `db:"created_at"`
	Used      bool      `db:"used"`
}

// EmailVerification memoizes whether an email appears in any cached job's
// vendor contact list. Entries are honored for 24 hours.
type EmailVerification struct {
	Email     string    `db:"email"`
	Verified  bool      `db:"verified"`
	CheckedAt time.Time `db:"checked_at"`
}

// SyncControl is the singleton control row consulted by the sync poller.
type SyncControl struct {
	ID           int64      `db:"id" json:"-"`
	ForceSync    bool       `db:"force_sync" json:"force_sync"`
	InProgress   bool       `db:"in_progress" json:"in_progress"`
	LastSync     *time.Time `db:"last_sync" json:"last_sync"`
	SyncInterval int        `db:"sync_interval" json:"sync_interval"`
}

// Session is a bearer session issued after a successful code verification.
type Session struct {
	Token     string    `db:"token" json:"token"`
	Email     string    `db:"email" json:"email"`
	IsAdmin   bool      `db:"is_admin" json:"is_admin"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
}
