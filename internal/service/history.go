package service

import (
	"context"

	"arena-tracker/internal/constants"
	"arena-tracker/internal/scoring"
	"arena-tracker/internal/store"

	"github.com/rs/zerolog"
)

// BacktestGame is one scored game with the matchup score it would have been
// given before it was played.
type BacktestGame struct {
	MatchID       string  `json:"match_id"`
	Date          string  `json:"date"`
	Champion      string  `json:"champion"`
	ChampionClass string  `json:"champion_class"`
	Opponent      string  `json:"opponent"`
	OpponentClass string  `json:"opponent_class"`
	MatchupScore  float64 `json:"matchup_score"`
	Result        string  `json:"result"`
	WinType       string  `json:"win_type"`
}

// BucketStat is the realized win rate inside one matchup-score band.
type BucketStat struct {
	Range   string  `json:"range"`
	Games   int     `json:"games"`
	Wins    int     `json:"wins"`
	WinRate float64 `json:"win_rate"`
}

// AnalysisResult is the backtest output: the rescored games and the win rate
// per score band, which is how the formula's calibration is judged.
type AnalysisResult struct {
	Games       []BacktestGame `json:"games"`
	BucketStats []BucketStat   `json:"bucket_stats"`
}

// HistoryService rescores past games using only information available before
// each game was played. Every input is point-in-time filtered: champion win
// rate, supporter averages and the class matchup table all use the game's
// own date as cutoff, so games never see their own outcome.
type HistoryService struct {
	provider SnapshotProvider
	weights  scoring.Weights
	logger   zerolog.Logger
}

func NewHistoryService(provider SnapshotProvider, logger zerolog.Logger) *HistoryService {
	return &HistoryService{provider: provider, weights: scoring.DefaultWeights(), logger: logger}
}

var bucketOrder = []string{"80+", "70-79", "60-69", "50-59", "40-49", "<40"}

// Analysis backtests the matchup-score formula over the most recent scored
// games, newest first.
func (s *HistoryService) Analysis(ctx context.Context, limit int) (*AnalysisResult, error) {
	if limit <= 0 {
		limit = constants.DefaultAnalysisLimit
	}
	if limit > constants.MaxAnalysisLimit {
		limit = constants.MaxAnalysisLimit
	}

	snap, _, _, err := s.provider.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	scored := snap.ScoredMatchIDs()
	buckets := make(map[string]*BucketStat, len(bucketOrder))
	for _, name := range bucketOrder {
		buckets[name] = &BucketStat{Range: name}
	}

	games := []BacktestGame{}

	// Newest first, stopping after limit matches.
	taken := 0
	for i := len(scored) - 1; i >= 0 && taken < limit; i-- {
		m, ok := snap.Match(scored[i])
		if !ok {
			continue
		}
		teams, ok := matchLineups(m)
		if !ok {
			continue
		}
		taken++

		for _, sides := range [][2]int{{1, 2}, {2, 1}} {
			mine, opp := teams[sides[0]], teams[sides[1]]

			myWR := snap.ChampionWinRateBefore(mine.champion.TokenID, m.Date)
			myElims, myDeps := supporterAverages(mine.supporters, func(id int) careerStats {
				return careerBefore(snap, id, m.Date)
			})
			oppElims, _ := supporterAverages(opp.supporters, func(id int) careerStats {
				return careerBefore(snap, id, m.Date)
			})

			score := scoring.MatchupScore(scoring.MatchupInputs{
				BaseWinRate:    myWR,
				ClassMatchup:   snap.ClassMatchupRateBefore(mine.champion.Class, opp.champion.Class, m.Date),
				OwnAvgElims:    myElims,
				OwnAvgDeposits: myDeps,
				OppAvgElims:    oppElims,
				OwnClass:       mine.champion.Class,
			}, s.weights)
			score = scoring.Round1(score)

			won := m.TeamWon == sides[0]
			bucket := buckets[bucketFor(score)]
			bucket.Games++
			if won {
				bucket.Wins++
			}

			result := "L"
			if won {
				result = "W"
			}
			games = append(games, BacktestGame{
				MatchID:       m.MatchID,
				Date:          m.Date,
				Champion:      mine.champion.Name,
				ChampionClass: mine.champion.Class,
				Opponent:      opp.champion.Name,
				OpponentClass: opp.champion.Class,
				MatchupScore:  score,
				Result:        result,
				WinType:       m.WinType,
			})
		}
	}

	stats := make([]BucketStat, 0, len(bucketOrder))
	for _, name := range bucketOrder {
		b := buckets[name]
		if b.Games > 0 {
			b.WinRate = scoring.Round1(100 * float64(b.Wins) / float64(b.Games))
		}
		stats = append(stats, *b)
	}

	s.logger.Info().Int("games", len(games)).Msg("backtest analysis computed")
	return &AnalysisResult{Games: games, BucketStats: stats}, nil
}

// ClassChanges lists champions whose class label changed between scored
// matches.
func (s *HistoryService) ClassChanges(ctx context.Context) ([]store.ClassChange, error) {
	snap, _, _, err := s.provider.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.ClassChanges(), nil
}

func bucketFor(score float64) string {
	switch {
	case score >= 80:
		return "80+"
	case score >= 70:
		return "70-79"
	case score >= 60:
		return "60-69"
	case score >= 50:
		return "50-59"
	case score >= 40:
		return "40-49"
	default:
		return "<40"
	}
}
