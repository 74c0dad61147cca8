package constants

import "time"

const (
	RequestTimeout  = 30 * time.Second
	ShutdownTimeout = 5 * time.Second
)

const (
	// Concurrent partition downloads within a single refresh.
	PartitionFetchConcurrency = 4

	ManifestRetryAttempts = 2
	ManifestRetryBase     = 500 * time.Millisecond
)

const (
	// Floor for the Retry-After hint handed to callers when no snapshot
	// can be served.
	MinRetryAfter = 30 * time.Second
)

const (
	DefaultAnalysisLimit = 1000
	MaxAnalysisLimit     = 50000
)
