// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Face matching constants
const (
	// DefaultSimilarityThreshold is the minimum cosine similarity between a registered
	// face and a selfie face for the roll to be marked present. Calibrated for
	// buffalo_l embeddings; the config value MATCH_THRESHOLD defaults to this.
	DefaultSimilarityThreshold = 0.35
)

// Fetch constants
const (
	// DefaultFetchTimeout bounds a single image download, retries included
	DefaultFetchTimeout = 15 * time.Second

	// DefaultSignedURLTTL is the lifetime of presigned registration image URLs
	DefaultSignedURLTTL = 60 * time.Second

	// DefaultFetchRetries is the number of retries for transient download failures
	DefaultFetchRetries = 2

	// MaxImageBytes caps the size of a downloaded image (20MB)
	MaxImageBytes = 20 << 20
)

// Processing constants
const (
	// RegistrationWorkers is the number of registration images fetched and embedded in parallel
	RegistrationWorkers = 8

	// DefaultEmbeddingTimeout bounds one call to the face embedding server
	DefaultEmbeddingTimeout = 30 * time.Second
)

// Attendance constants
const (
	// StatusPresent is the only status this service writes
	StatusPresent = "present"

	// StatusAbsent is reported in responses but never persisted
	StatusAbsent = "absent"

	// DefaultAttendanceTimezone is used to compute attendance_date
	DefaultAttendanceTimezone = "UTC"
)
