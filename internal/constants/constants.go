// Package constants contains application-wide constants to avoid magic numbers and strings.
package constants

import "time"

// Application defaults
const (
	DefaultPort       = "8080"
	DefaultDBPath     = "portal.db"
	DefaultAdminEmail = "admin@example.com"
)

// Sync controller
const (
	// SyncTickInterval is how often the poller wakes up to consult the control
	// row. The configured sync interval only gates whether a refresh actually
	// happens on a given tick.
	SyncTickInterval = time.Minute

	// DefaultSyncInterval is the refresh interval in seconds when the control
	// row has never been configured.
	DefaultSyncInterval = 3600
)

// Ultimo API
const (
	ConnectTimeout     = 10 * time.Second
	DefaultHTTPTimeout = 60 * time.Second
	MaxFeedbackLength  = 2000
	MaxImagesPerJob    = 4
)

// Access layer
const (
	LoginCodeTTL         = 15 * time.Minute
	EmailVerificationTTL = 24 * time.Hour
	SessionTTL           = 12 * time.Hour
)
