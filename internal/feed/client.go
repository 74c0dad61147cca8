package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"arena-tracker/internal/config"
	"arena-tracker/internal/constants"
	"arena-tracker/internal/domain"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"github.com/valyala/fasthttp"
)

// Client fetches manifest, partition and cumulative documents from the feed.
type Client struct {
	baseURL string
	client  *fasthttp.Client
	timeout time.Duration
	logger  zerolog.Logger
}

func NewClient(cfg *config.Config, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.FeedBaseURL, "/"),
		client: &fasthttp.Client{
			MaxConnsPerHost:     100,
			ReadTimeout:         cfg.HTTPTimeout,
			WriteTimeout:        cfg.HTTPTimeout,
			MaxIdleConnDuration: 1 * time.Minute,
		},
		timeout: cfg.HTTPTimeout,
		logger:  logger,
	}
}

// FetchManifest retrieves latest.json. Transport failures are retried with a
// short backoff since the manifest gates the whole refresh.
func (c *Client) FetchManifest(ctx context.Context) (*domain.Manifest, error) {
	var manifest domain.Manifest

	backoff := retry.WithMaxRetries(constants.ManifestRetryAttempts, retry.NewFibonacci(constants.ManifestRetryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		body, err := c.get(ctx, "latest.json")
		if err != nil {
			c.logger.Warn().Err(err).Msg("manifest fetch attempt failed")
			return retry.RetryableError(err)
		}
		if err := json.Unmarshal(body, &manifest); err != nil {
			return &FormatError{URL: c.url("latest.json"), Err: err}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &manifest, nil
}

// FetchPartition retrieves and decompresses one dated partition, parsing its
// records into typed matches. Malformed records are quarantined at this
// boundary rather than propagated; the dropped count is returned alongside.
func (c *Client) FetchPartition(ctx context.Context, desc domain.PartitionDescriptor) ([]domain.Match, int, error) {
	body, err := c.getGzip(ctx, desc.URL)
	if err != nil {
		return nil, 0, err
	}

	var records []partitionRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, 0, &FormatError{URL: c.url(desc.URL), Err: err}
	}

	matches := make([]domain.Match, 0, len(records))
	dropped := 0
	for _, rec := range records {
		m, ok := rec.toMatch()
		if !ok {
			dropped++
			continue
		}
		matches = append(matches, m)
	}
	if dropped > 0 {
		c.logger.Warn().
			Str("partition", desc.Date).
			Int("dropped", dropped).
			Msg("quarantined records with invalid match envelope")
	}
	return matches, dropped, nil
}

// FetchCumulative retrieves the precomputed career totals document.
func (c *Client) FetchCumulative(ctx context.Context) ([]domain.CumulativeTotals, error) {
	const path = "cumulative/current_totals.json.gz"

	body, err := c.getGzip(ctx, path)
	if err != nil {
		return nil, err
	}

	var records []cumulativeRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, &FormatError{URL: c.url(path), Err: err}
	}

	totals := make([]domain.CumulativeTotals, 0, len(records))
	for _, rec := range records {
		if rec.TokenID == 0 {
			continue
		}
		totals = append(totals, domain.CumulativeTotals{
			TokenID:      rec.TokenID,
			Games:        rec.GamesPlayed,
			Wins:         rec.Wins,
			Eliminations: rec.Eliminations,
			Deposits:     rec.Deposits,
			WartDistance: rec.WartDistance,
		})
	}
	return totals, nil
}

func (c *Client) url(path string) string {
	return fmt.Sprintf("%s/%s", c.baseURL, strings.TrimLeft(path, "/"))
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	url := c.url(path)

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.client.DoDeadline(req, resp, deadline); err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, &TransportError{URL: url, Err: fmt.Errorf("unexpected status %d", resp.StatusCode())}
	}

	// The response body is pooled with the fasthttp response.
	body := make([]byte, len(resp.Body()))
	copy(body, resp.Body())
	return body, nil
}

func (c *Client) getGzip(ctx context.Context, path string) ([]byte, error) {
	compressed, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}

	gz, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, &FormatError{URL: c.url(path), Err: err}
	}
	defer gz.Close()

	body, err := io.ReadAll(gz)
	if err != nil {
		return nil, &FormatError{URL: c.url(path), Err: err}
	}
	return body, nil
}

type partitionRecord struct {
	Match struct {
		MatchID   string `json:"match_id"`
		MatchDate string `json:"match_date"`
		TeamWon   *int   `json:"team_won"`
		WinType   string `json:"win_type"`
		State     string `json:"state"`
	} `json:"match"`
	Players []struct {
		TokenID    int    `json:"token_id"`
		Name       string `json:"name"`
		Class      string `json:"class"`
		Team       int    `json:"team"`
		IsChampion bool   `json:"is_champion"`
	} `json:"players"`
	Performances []struct {
		TokenID      int     `json:"token_id"`
		Eliminations float64 `json:"eliminations"`
		Deposits     float64 `json:"deposits"`
		WartDistance float64 `json:"wart_distance"`
	} `json:"performances"`
}

// toMatch validates the record envelope and converts it into a typed match.
// Players and performances without a token id reference nothing usable and
// are dropped with their rows intact for the rest of the record.
func (r partitionRecord) toMatch() (domain.Match, bool) {
	if r.Match.MatchID == "" || r.Match.MatchDate == "" {
		return domain.Match{}, false
	}

	state := domain.MatchState(r.Match.State)
	if state != domain.MatchScheduled && state != domain.MatchScored {
		return domain.Match{}, false
	}

	m := domain.Match{
		MatchID: r.Match.MatchID,
		Date:    r.Match.MatchDate,
		WinType: r.Match.WinType,
		State:   state,
	}
	if r.Match.TeamWon != nil {
		m.TeamWon = *r.Match.TeamWon
	}

	for _, p := range r.Players {
		if p.TokenID == 0 || (p.Team != 1 && p.Team != 2) {
			continue
		}
		m.Players = append(m.Players, domain.Participant{
			TokenID:    p.TokenID,
			Name:       p.Name,
			Class:      p.Class,
			Team:       p.Team,
			IsChampion: p.IsChampion,
		})
	}
	for _, p := range r.Performances {
		if p.TokenID == 0 {
			continue
		}
		m.Performances = append(m.Performances, domain.Performance{
			TokenID:      p.TokenID,
			Eliminations: p.Eliminations,
			Deposits:     p.Deposits,
			WartDistance: p.WartDistance,
		})
	}
	return m, true
}

type cumulativeRecord struct {
	TokenID      int     `json:"token_id"`
	GamesPlayed  int     `json:"games_played_cum"`
	Wins         int     `json:"wins_cum"`
	Eliminations float64 `json:"eliminations_cum"`
	Deposits     float64 `json:"deposits_cum"`
	WartDistance float64 `json:"wart_distance_cum"`
}
