package service

import (
	"context"
	"sort"

	"arena-tracker/internal/scoring"

	"github.com/rs/zerolog"
)

// ChampionSummary aggregates a champion's projected performance over its
// scheduled matches.
type ChampionSummary struct {
	TokenID        int     `json:"token_id"`
	Name           string  `json:"name"`
	Class          string  `json:"class"`
	BaseWinRate    float64 `json:"base_win_rate"`
	Games          int     `json:"games"`
	AvgScore       float64 `json:"avg_score"`
	ExpectedWins   float64 `json:"expected_wins"`
	Favorable      int     `json:"favorable"`
	Unfavorable    int     `json:"unfavorable"`
	AvgProjectedFP float64 `json:"avg_projected_fp"`
}

// UpcomingService projects matchup scores for every champion's scheduled
// matches.
type UpcomingService struct {
	provider SnapshotProvider
	weights  scoring.Weights
	points   scoring.PointWeights
	logger   zerolog.Logger
}

func NewUpcomingService(provider SnapshotProvider, logger zerolog.Logger) *UpcomingService {
	return &UpcomingService{
		provider: provider,
		weights:  scoring.DefaultWeights(),
		points:   scoring.DefaultPointWeights(),
		logger:   logger,
	}
}

// Summary scores both sides of every scheduled match and rolls the results
// up per champion, ordered by expected wins.
func (s *UpcomingService) Summary(ctx context.Context) ([]ChampionSummary, error) {
	snap, _, _, err := s.provider.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	scores := make(map[int][]float64)
	projections := make(map[int][]float64)
	info := make(map[int]ChampionSummary)

	for _, id := range snap.ScheduledMatchIDs() {
		m, ok := snap.Match(id)
		if !ok {
			continue
		}
		teams, ok := matchLineups(m)
		if !ok {
			continue
		}

		for _, sides := range [][2]int{{1, 2}, {2, 1}} {
			mine, opp := teams[sides[0]], teams[sides[1]]
			tokenID := mine.champion.TokenID

			baseWR := baseWinRate(snap, tokenID)
			myElims, myDeps := supporterAverages(mine.supporters, func(id int) careerStats {
				return currentCareer(snap, id)
			})
			oppElims, _ := supporterAverages(opp.supporters, func(id int) careerStats {
				return currentCareer(snap, id)
			})

			score := scoring.MatchupScore(scoring.MatchupInputs{
				BaseWinRate:    baseWR,
				ClassMatchup:   snap.ClassMatchupRate(mine.champion.Class, opp.champion.Class),
				OwnAvgElims:    myElims,
				OwnAvgDeposits: myDeps,
				OppAvgElims:    oppElims,
				OwnClass:       mine.champion.Class,
			}, s.weights)
			scores[tokenID] = append(scores[tokenID], score)

			champCareer := currentCareer(snap, tokenID)
			projections[tokenID] = append(projections[tokenID],
				scoring.ProjectedPoints(champCareer.Elims, champCareer.Deps, champCareer.Distance, score, s.points))

			if _, seen := info[tokenID]; !seen {
				info[tokenID] = ChampionSummary{
					TokenID:     tokenID,
					Name:        mine.champion.Name,
					Class:       mine.champion.Class,
					BaseWinRate: baseWR,
				}
			}
		}
	}

	results := make([]ChampionSummary, 0, len(scores))
	for tokenID, ss := range scores {
		summary := info[tokenID]
		var total, expected, projected float64
		for _, score := range ss {
			total += score
			expected += score / 100
			if score >= 60 {
				summary.Favorable++
			}
			if score < 40 {
				summary.Unfavorable++
			}
		}
		for _, fp := range projections[tokenID] {
			projected += fp
		}
		summary.Games = len(ss)
		summary.AvgScore = scoring.Round1(total / float64(len(ss)))
		summary.ExpectedWins = scoring.Round1(expected)
		summary.AvgProjectedFP = scoring.Round1(projected / float64(len(ss)))
		results = append(results, summary)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].ExpectedWins != results[j].ExpectedWins {
			return results[i].ExpectedWins > results[j].ExpectedWins
		}
		return results[i].TokenID < results[j].TokenID
	})

	s.logger.Info().Int("champions", len(results)).Msg("upcoming summary computed")
	return results, nil
}
