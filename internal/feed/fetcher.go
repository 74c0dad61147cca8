package feed

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"arena-tracker/internal/config"
	"arena-tracker/internal/constants"
	"arena-tracker/internal/domain"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// FetchedPartition is one successfully retrieved and parsed partition.
type FetchedPartition struct {
	Date    string
	Matches []domain.Match
}

// FetchResult is the outcome of one full feed fetch. Partitions holds the
// successfully parsed subset in date-ascending order so the newest partition
// wins a merge conflict; Errors lists the partitions that failed. Cumulative
// may be empty when the totals document could not be fetched.
type FetchResult struct {
	Partitions  []FetchedPartition
	Cumulative  []domain.CumulativeTotals
	Errors      []*PartitionError
	Quarantined int
}

// Fetcher retrieves a bounded window of recent partitions plus the
// cumulative totals in one pass.
type Fetcher struct {
	client        *Client
	maxPartitions int
	logger        zerolog.Logger
}

func NewFetcher(client *Client, cfg *config.Config, logger zerolog.Logger) *Fetcher {
	return &Fetcher{client: client, maxPartitions: cfg.MaxPartitions, logger: logger}
}

// FetchAll runs one complete fetch: manifest, then the selected partitions
// concurrently, then cumulative totals. A failing partition is recorded and
// skipped, never aborting the rest; the fetch as a whole fails only when the
// manifest is unreachable or no partition at all could be loaded.
func (f *Fetcher) FetchAll(ctx context.Context) (*FetchResult, error) {
	manifest, err := f.client.FetchManifest(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch manifest: %w", err)
	}

	selected := f.selectPartitions(manifest)
	f.logger.Info().
		Int("selected", len(selected)).
		Int("available", len(manifest.Partitions)).
		Msg("fetching partitions")

	result := &FetchResult{}
	var mu sync.Mutex

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(constants.PartitionFetchConcurrency)

	for _, desc := range selected {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			matches, dropped, err := f.client.FetchPartition(gCtx, desc)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if ctxErr := gCtx.Err(); ctxErr != nil {
					return ctxErr
				}
				f.logger.Warn().Err(err).Str("partition", desc.Date).Msg("failed to load partition")
				result.Errors = append(result.Errors, &PartitionError{Date: desc.Date, Err: err})
				return nil
			}
			result.Partitions = append(result.Partitions, FetchedPartition{Date: desc.Date, Matches: matches})
			result.Quarantined += dropped
			return nil
		})
	}

	// Workers swallow per-partition failures and abort only on
	// cancellation, so Wait reports shutdown rather than a bad partition.
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("partition fetch canceled: %w", err)
	}

	if len(selected) > 0 && len(result.Partitions) == 0 {
		return nil, fmt.Errorf("all %d partitions failed to load: %w", len(selected), result.Errors[0])
	}

	// Merge order: oldest first, so a later partition's version of a match
	// replaces an earlier one.
	sort.Slice(result.Partitions, func(i, j int) bool {
		return result.Partitions[i].Date < result.Partitions[j].Date
	})

	cumulative, err := f.client.FetchCumulative(ctx)
	if err != nil {
		f.logger.Warn().Err(err).Msg("failed to load cumulative totals, career defaults will apply")
	} else {
		result.Cumulative = cumulative
	}

	return result, nil
}

// selectPartitions keeps the most recent maxPartitions entries.
func (f *Fetcher) selectPartitions(manifest *domain.Manifest) []domain.PartitionDescriptor {
	selected := make([]domain.PartitionDescriptor, len(manifest.Partitions))
	copy(selected, manifest.Partitions)

	sort.Slice(selected, func(i, j int) bool {
		return selected[i].Date > selected[j].Date
	})
	if len(selected) > f.maxPartitions {
		selected = selected[:f.maxPartitions]
	}
	return selected
}
