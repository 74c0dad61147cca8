package feed

import (
	"fmt"
	"time"
)

// TransportError is a network-level failure reaching the feed: connection
// errors, timeouts, non-2xx responses. Recoverable on the next refresh and
// never corrupts an already-served snapshot.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("feed transport error fetching %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// FormatError means a fetched body could not be decompressed or parsed. The
// affected partition is skipped; ingestion continues with the rest.
type FormatError struct {
	URL string
	Err error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("feed format error in %s: %v", e.URL, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// PartitionError ties a fetch or parse failure to the partition it affected.
type PartitionError struct {
	Date string
	Err  error
}

func (e *PartitionError) Error() string {
	return fmt.Sprintf("partition %s: %v", e.Date, e.Err)
}

func (e *PartitionError) Unwrap() error { return e.Err }

// FeedUnavailableError is the only error surfaced to query callers. It is
// returned when no usable snapshot exists at all (never loaded, or expired)
// and the fetch that would have produced one failed. RetryAfter is the hint
// callers should put in a Retry-After response header.
type FeedUnavailableError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *FeedUnavailableError) Error() string {
	return fmt.Sprintf("feed unavailable, retry after %s: %v", e.RetryAfter, e.Err)
}

func (e *FeedUnavailableError) Unwrap() error { return e.Err }
