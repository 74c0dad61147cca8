package feed

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"arena-tracker/internal/config"
	"arena-tracker/internal/constants"
	"arena-tracker/internal/store"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// State is the freshness of the cached snapshot.
type State string

const (
	StateEmpty   State = "empty"
	StateFresh   State = "fresh"
	StateStale   State = "stale"
	StateExpired State = "expired"
)

// Source produces one complete feed fetch. *Fetcher is the production
// implementation.
type Source interface {
	FetchAll(ctx context.Context) (*FetchResult, error)
}

// Coordinator owns the cached snapshot's freshness lifecycle. Readers get
// the current snapshot through an atomic pointer and never block each other;
// at most one refresh runs at a time, deduplicated through singleflight.
//
// Fresh snapshots are served as-is. Stale ones (past TTL, within the grace
// window) are served immediately while a background refresh runs. With no
// usable snapshot (never loaded, or past the grace window) callers block on
// the shared refresh and a failure surfaces as FeedUnavailableError.
type Coordinator struct {
	source  Source
	baseURL string
	ttl     time.Duration
	grace   time.Duration
	logger  zerolog.Logger

	entry atomic.Pointer[cacheEntry]
	group singleflight.Group

	mu      sync.Mutex
	lastErr error

	baseCtx context.Context
	cancel  context.CancelFunc

	now func() time.Time
}

type cacheEntry struct {
	snap      *store.Snapshot
	fetchedAt time.Time
}

func NewCoordinator(source Source, cfg *config.Config, logger zerolog.Logger) *Coordinator {
	baseCtx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		source:  source,
		baseURL: cfg.FeedBaseURL,
		ttl:     cfg.FeedTTL,
		grace:   cfg.StaleGrace,
		logger:  logger,
		baseCtx: baseCtx,
		cancel:  cancel,
		now:     time.Now,
	}
}

// Snapshot returns the snapshot to serve the current query from, together
// with its freshness state and age. The only error returned is
// *FeedUnavailableError.
func (c *Coordinator) Snapshot(ctx context.Context) (*store.Snapshot, State, time.Duration, error) {
	entry := c.entry.Load()
	state, age := c.classify(entry)

	switch state {
	case StateFresh:
		return entry.snap, state, age, nil

	case StateStale:
		c.logger.Debug().Dur("age", age).Msg("serving stale snapshot, refreshing in background")
		c.group.DoChan(refreshKey, c.refresh)
		return entry.snap, state, age, nil

	default: // StateEmpty, StateExpired
		if err := c.awaitRefresh(ctx); err != nil {
			return nil, state, age, &FeedUnavailableError{RetryAfter: c.retryAfter(age), Err: err}
		}
		entry = c.entry.Load()
		state, age = c.classify(entry)
		return entry.snap, state, age, nil
	}
}

// State reports the current freshness without triggering a refresh.
func (c *Coordinator) State() (State, time.Duration) {
	return c.classify(c.entry.Load())
}

// HealthInfo is the coordinator's status surface for the health endpoint.
type HealthInfo struct {
	State             State   `json:"state"`
	AgeSeconds        float64 `json:"age_seconds"`
	MatchesLoaded     int     `json:"matches_loaded"`
	ScheduledMatches  int     `json:"scheduled_matches"`
	ScoredMatches     int     `json:"scored_matches"`
	ChampionsTracked  int     `json:"champions_tracked"`
	CumulativePlayers int     `json:"cumulative_players"`
	QuarantinedRows   int     `json:"quarantined_rows"`
	LastError         string  `json:"last_error,omitempty"`
	FeedBaseURL       string  `json:"feed_base_url"`
}

func (c *Coordinator) Health() HealthInfo {
	entry := c.entry.Load()
	state, age := c.classify(entry)

	info := HealthInfo{
		State:       state,
		AgeSeconds:  age.Seconds(),
		FeedBaseURL: c.baseURL,
	}
	if entry != nil {
		info.MatchesLoaded = entry.snap.MatchCount()
		info.ScheduledMatches = len(entry.snap.ScheduledMatchIDs())
		info.ScoredMatches = len(entry.snap.ScoredMatchIDs())
		info.ChampionsTracked = entry.snap.ChampionCount()
		info.CumulativePlayers = entry.snap.CumulativeCount()
		info.QuarantinedRows = entry.snap.QuarantinedCount()
	}

	c.mu.Lock()
	if c.lastErr != nil {
		info.LastError = c.lastErr.Error()
	}
	c.mu.Unlock()

	return info
}

// Close abandons any in-flight refresh. The currently served snapshot stays
// valid; only the fetch is canceled.
func (c *Coordinator) Close() {
	c.cancel()
}

const refreshKey = "refresh"

// awaitRefresh joins the single in-flight refresh (starting one if needed)
// and waits for its shared result or the caller's deadline.
func (c *Coordinator) awaitRefresh(ctx context.Context) error {
	ch := c.group.DoChan(refreshKey, c.refresh)
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// refresh runs one fetch + rebuild + swap cycle. It runs on the app
// lifecycle context, not a request context, so one impatient caller cannot
// cancel a refresh other callers are waiting on.
func (c *Coordinator) refresh() (any, error) {
	runID, _ := gonanoid.New(10)
	log := c.logger.With().Str("refresh_id", runID).Logger()
	start := c.now()

	result, err := c.source.FetchAll(c.baseCtx)
	if err != nil {
		c.recordError(err)
		log.Error().Err(err).Msg("feed refresh failed")
		return nil, err
	}

	var prev *store.Snapshot
	if entry := c.entry.Load(); entry != nil {
		prev = entry.snap
	}

	builder := store.NewBuilder(prev, log)
	for _, p := range result.Partitions {
		builder.AddPartition(p.Date, p.Matches)
	}
	builder.AddQuarantined(result.Quarantined)
	if len(result.Cumulative) > 0 {
		builder.SetCumulative(result.Cumulative)
	}
	snap := builder.Build()

	c.entry.Store(&cacheEntry{snap: snap, fetchedAt: c.now()})
	c.recordError(nil)

	log.Info().
		Dur("took", c.now().Sub(start)).
		Int("partitions", len(result.Partitions)).
		Int("partition_errors", len(result.Errors)).
		Int("matches", snap.MatchCount()).
		Msg("feed refresh complete")
	return nil, nil
}

func (c *Coordinator) classify(entry *cacheEntry) (State, time.Duration) {
	if entry == nil {
		return StateEmpty, 0
	}
	age := c.now().Sub(entry.fetchedAt)
	switch {
	case age < c.ttl:
		return StateFresh, age
	case age < c.ttl+c.grace:
		return StateStale, age
	default:
		return StateExpired, age
	}
}

// retryAfter derives the Retry-After hint from how far past freshness the
// cache is, floored so callers do not hammer a failing feed.
func (c *Coordinator) retryAfter(age time.Duration) time.Duration {
	ra := c.ttl - age
	if ra < constants.MinRetryAfter {
		ra = constants.MinRetryAfter
	}
	if ra > c.ttl {
		ra = c.ttl
	}
	return ra
}

func (c *Coordinator) recordError(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}
