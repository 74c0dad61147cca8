package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"arena-tracker/internal/config"
	"arena-tracker/internal/domain"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
)

func gzipJSON(t *testing.T, v any) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(raw); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	cfg := &config.Config{
		FeedBaseURL: baseURL,
		HTTPTimeout: 2 * time.Second,
	}
	return NewClient(cfg, zerolog.Nop())
}

func partitionDoc(records ...map[string]any) []map[string]any {
	return records
}

func validRecord(id, date, state string) map[string]any {
	return map[string]any{
		"match": map[string]any{
			"match_id":   id,
			"match_date": date,
			"team_won":   1,
			"win_type":   "elimination",
			"state":      state,
		},
		"players": []map[string]any{
			{"token_id": 1, "name": "Aro", "class": "Striker", "team": 1, "is_champion": true},
			{"token_id": 2, "name": "Bel", "class": "Defender", "team": 2, "is_champion": true},
			{"token_id": 3, "name": "Cid", "class": "Runner", "team": 1, "is_champion": false},
		},
		"performances": []map[string]any{
			{"token_id": 1, "eliminations": 2, "deposits": 1, "wart_distance": 40},
		},
	}
}

func TestFetchManifest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/latest.json" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(domain.Manifest{Partitions: []domain.PartitionDescriptor{
			{Date: "2026-02-01", URL: "partitions/2026-02-01.json.gz"},
			{Date: "2026-02-02", URL: "partitions/2026-02-02.json.gz"},
		}})
	}))
	defer srv.Close()

	manifest, err := newTestClient(t, srv.URL).FetchManifest(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(manifest.Partitions) != 2 {
		t.Fatalf("partitions: got %d, want 2", len(manifest.Partitions))
	}
	if manifest.Partitions[1].URL != "partitions/2026-02-02.json.gz" {
		t.Errorf("partition url: got %q", manifest.Partitions[1].URL)
	}
}

func TestFetchManifestRetriesTransportFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(domain.Manifest{Partitions: []domain.PartitionDescriptor{
			{Date: "2026-02-01", URL: "partitions/2026-02-01.json.gz"},
		}})
	}))
	defer srv.Close()

	manifest, err := newTestClient(t, srv.URL).FetchManifest(context.Background())
	if err != nil {
		t.Fatalf("expected retries to recover, got: %v", err)
	}
	if len(manifest.Partitions) != 1 {
		t.Errorf("partitions: got %d, want 1", len(manifest.Partitions))
	}
	if got := hits.Load(); got != 3 {
		t.Errorf("request count: got %d, want 3", got)
	}
}

func TestFetchManifestMalformedIsFormatError(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"partitions": [`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).FetchManifest(context.Background())
	var formatErr *FormatError
	if !errors.As(err, &formatErr) {
		t.Fatalf("expected FormatError, got %v", err)
	}
	// Bad payloads are not transient, so no retry.
	if got := hits.Load(); got != 1 {
		t.Errorf("request count: got %d, want 1", got)
	}
}

func TestFetchPartition(t *testing.T) {
	doc := partitionDoc(
		validRecord("m1", "2026-02-01", "scored"),
		validRecord("m2", "2026-02-01", "scheduled"),
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(gzipJSON(t, doc))
	}))
	defer srv.Close()

	desc := domain.PartitionDescriptor{Date: "2026-02-01", URL: "partitions/2026-02-01.json.gz"}
	matches, dropped, err := newTestClient(t, srv.URL).FetchPartition(context.Background(), desc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dropped != 0 {
		t.Errorf("dropped: got %d, want 0", dropped)
	}
	if len(matches) != 2 {
		t.Fatalf("matches: got %d, want 2", len(matches))
	}
	m := matches[0]
	if m.MatchID != "m1" || m.Date != "2026-02-01" || !m.Scored() || m.TeamWon != 1 {
		t.Errorf("match envelope not parsed: %+v", m)
	}
	if len(m.Players) != 3 || len(m.Performances) != 1 {
		t.Errorf("rows: got %d players, %d performances", len(m.Players), len(m.Performances))
	}
	if !m.Players[0].IsChampion || m.Players[2].IsChampion {
		t.Error("champion flags not carried through")
	}
	if matches[1].State != domain.MatchScheduled {
		t.Errorf("second match state: got %s", matches[1].State)
	}
}

func TestFetchPartitionQuarantinesInvalidRecords(t *testing.T) {
	doc := partitionDoc(
		validRecord("m1", "2026-02-01", "scored"),
		validRecord("", "2026-02-01", "scored"),  // missing match id
		validRecord("m3", "", "scored"),          // missing date
		validRecord("m4", "2026-02-01", "limbo"), // unknown state
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(gzipJSON(t, doc))
	}))
	defer srv.Close()

	desc := domain.PartitionDescriptor{Date: "2026-02-01", URL: "partitions/2026-02-01.json.gz"}
	matches, dropped, err := newTestClient(t, srv.URL).FetchPartition(context.Background(), desc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 1 || matches[0].MatchID != "m1" {
		t.Errorf("surviving matches: got %d", len(matches))
	}
	if dropped != 3 {
		t.Errorf("dropped: got %d, want 3", dropped)
	}
}

func TestFetchPartitionDropsUnusablePlayerRows(t *testing.T) {
	rec := validRecord("m1", "2026-02-01", "scored")
	rec["players"] = []map[string]any{
		{"token_id": 1, "name": "Aro", "class": "Striker", "team": 1, "is_champion": true},
		{"token_id": 0, "name": "Ghost", "class": "Runner", "team": 1},
		{"token_id": 9, "name": "Lost", "class": "Runner", "team": 3},
	}
	rec["performances"] = []map[string]any{
		{"token_id": 1, "eliminations": 2, "deposits": 1, "wart_distance": 40},
		{"token_id": 0, "eliminations": 5},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(gzipJSON(t, partitionDoc(rec)))
	}))
	defer srv.Close()

	desc := domain.PartitionDescriptor{Date: "2026-02-01", URL: "partitions/2026-02-01.json.gz"}
	matches, dropped, err := newTestClient(t, srv.URL).FetchPartition(context.Background(), desc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Bad rows are dropped without quarantining the whole record.
	if dropped != 0 {
		t.Errorf("dropped: got %d, want 0", dropped)
	}
	if len(matches[0].Players) != 1 || len(matches[0].Performances) != 1 {
		t.Errorf("rows: got %d players, %d performances, want 1 each",
			len(matches[0].Players), len(matches[0].Performances))
	}
}

func TestFetchPartitionBadGzipIsFormatError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not a gzip stream"))
	}))
	defer srv.Close()

	desc := domain.PartitionDescriptor{Date: "2026-02-01", URL: "partitions/2026-02-01.json.gz"}
	_, _, err := newTestClient(t, srv.URL).FetchPartition(context.Background(), desc)
	var formatErr *FormatError
	if !errors.As(err, &formatErr) {
		t.Fatalf("expected FormatError, got %v", err)
	}
}

func TestFetchPartitionTimeoutIsTransportError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	cfg := &config.Config{FeedBaseURL: srv.URL, HTTPTimeout: 200 * time.Millisecond}
	client := NewClient(cfg, zerolog.Nop())

	desc := domain.PartitionDescriptor{Date: "2026-02-01", URL: "partitions/2026-02-01.json.gz"}
	start := time.Now()
	_, _, err := client.FetchPartition(context.Background(), desc)

	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected TransportError from stalled feed, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("timeout not enforced: call took %v", elapsed)
	}
}

func TestFetchPartitionMissingIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(http.NotFound))
	defer srv.Close()

	desc := domain.PartitionDescriptor{Date: "2026-02-01", URL: "partitions/2026-02-01.json.gz"}
	_, _, err := newTestClient(t, srv.URL).FetchPartition(context.Background(), desc)
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
}

func TestFetchCumulative(t *testing.T) {
	doc := []map[string]any{
		{"token_id": 1, "games_played_cum": 10, "wins_cum": 6, "eliminations_cum": 20.0, "deposits_cum": 10.0, "wart_distance_cum": 400.0},
		{"token_id": 0, "games_played_cum": 3}, // unusable, no token
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cumulative/current_totals.json.gz" {
			http.NotFound(w, r)
			return
		}
		w.Write(gzipJSON(t, doc))
	}))
	defer srv.Close()

	totals, err := newTestClient(t, srv.URL).FetchCumulative(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(totals) != 1 {
		t.Fatalf("totals: got %d, want 1", len(totals))
	}
	got := totals[0]
	if got.TokenID != 1 || got.Games != 10 || got.Wins != 6 {
		t.Errorf("totals not mapped: %+v", got)
	}
	if got.AvgEliminations() != 2.0 || got.AvgDeposits() != 1.0 || got.AvgDistance() != 40.0 {
		t.Errorf("averages: got %v/%v/%v", got.AvgEliminations(), got.AvgDeposits(), got.AvgDistance())
	}
}
