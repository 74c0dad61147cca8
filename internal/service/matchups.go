package service

import (
	"context"
	"sort"

	"arena-tracker/internal/domain"
	"arena-tracker/internal/scoring"
	"arena-tracker/internal/store"

	"github.com/rs/zerolog"
)

// ChampionDetail identifies the champion a matchup breakdown is for.
type ChampionDetail struct {
	TokenID     int     `json:"token_id"`
	Name        string  `json:"name"`
	Class       string  `json:"class"`
	BaseWinRate float64 `json:"base_win_rate"`
}

// SupporterDetail is one supporter's career line inside a matchup.
type SupporterDetail struct {
	TokenID     int     `json:"token_id"`
	Name        string  `json:"name"`
	Class       string  `json:"class"`
	CareerElims float64 `json:"career_elims"`
	CareerDeps  float64 `json:"career_deps"`
	CareerWart  float64 `json:"career_wart"`
}

// Matchup is one scheduled match from the champion's perspective.
type Matchup struct {
	Date            string            `json:"date"`
	Opponent        string            `json:"opponent"`
	OpponentClass   string            `json:"opponent_class"`
	OpponentWinRate float64           `json:"opponent_win_rate"`
	MySupporters    []SupporterDetail `json:"my_supporters"`
	OppSupporters   []SupporterDetail `json:"opp_supporters"`
	MyAvgElims      float64           `json:"my_avg_elims"`
	MyAvgDeps       float64           `json:"my_avg_deps"`
	OppAvgElims     float64           `json:"opp_avg_elims"`
	OppAvgDeps      float64           `json:"opp_avg_deps"`
	Score           float64           `json:"score"`
	Edge            string            `json:"edge"`
	ProjectedFP     float64           `json:"projected_fp"`
}

// ChampionMatchups is the full breakdown for one champion.
type ChampionMatchups struct {
	Champion ChampionDetail `json:"champion"`
	Matchups []Matchup      `json:"matchups"`
}

// MatchupService builds per-champion matchup breakdowns for scheduled
// matches.
type MatchupService struct {
	provider SnapshotProvider
	weights  scoring.Weights
	points   scoring.PointWeights
	logger   zerolog.Logger
}

func NewMatchupService(provider SnapshotProvider, logger zerolog.Logger) *MatchupService {
	return &MatchupService{
		provider: provider,
		weights:  scoring.DefaultWeights(),
		points:   scoring.DefaultPointWeights(),
		logger:   logger,
	}
}

// ForChampion returns every scheduled matchup for the given token, scored
// from its perspective. A nil result with nil error means the token is not a
// known champion.
func (s *MatchupService) ForChampion(ctx context.Context, tokenID int) (*ChampionMatchups, error) {
	snap, _, _, err := s.provider.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	champ, ok := snap.Champion(tokenID)
	if !ok {
		return nil, nil
	}

	result := &ChampionMatchups{
		Champion: ChampionDetail{
			TokenID:     tokenID,
			Name:        champ.Name,
			Class:       champ.Class,
			BaseWinRate: champ.WinRate,
		},
		Matchups: []Matchup{},
	}

	for _, id := range snap.EntityMatchIDs(tokenID) {
		m, ok := snap.Match(id)
		if !ok || m.Scored() {
			continue
		}
		teams, ok := matchLineups(m)
		if !ok {
			continue
		}

		var mine, opp *lineup
		for team, l := range teams {
			if l.champion.TokenID == tokenID {
				mine = l
				opp = teams[3-team]
			}
		}
		if mine == nil {
			// Token appears as a supporter here.
			continue
		}

		mySupp := supporterDetails(snap, mine.supporters)
		oppSupp := supporterDetails(snap, opp.supporters)
		myElims, myDeps := supporterAverages(mine.supporters, func(id int) careerStats {
			return currentCareer(snap, id)
		})
		oppElims, oppDeps := supporterAverages(opp.supporters, func(id int) careerStats {
			return currentCareer(snap, id)
		})

		score := scoring.MatchupScore(scoring.MatchupInputs{
			BaseWinRate:    champ.WinRate,
			ClassMatchup:   snap.ClassMatchupRate(champ.Class, opp.champion.Class),
			OwnAvgElims:    myElims,
			OwnAvgDeposits: myDeps,
			OppAvgElims:    oppElims,
			OwnClass:       champ.Class,
		}, s.weights)

		champCareer := currentCareer(snap, tokenID)

		result.Matchups = append(result.Matchups, Matchup{
			Date:            m.Date,
			Opponent:        opp.champion.Name,
			OpponentClass:   opp.champion.Class,
			OpponentWinRate: baseWinRate(snap, opp.champion.TokenID),
			MySupporters:    mySupp,
			OppSupporters:   oppSupp,
			MyAvgElims:      scoring.Round2(myElims),
			MyAvgDeps:       scoring.Round2(myDeps),
			OppAvgElims:     scoring.Round2(oppElims),
			OppAvgDeps:      scoring.Round2(oppDeps),
			Score:           scoring.Round1(score),
			Edge:            scoring.EdgeLabel(score),
			ProjectedFP:     scoring.ProjectedPoints(champCareer.Elims, champCareer.Deps, champCareer.Distance, score, s.points),
		})
	}

	sort.Slice(result.Matchups, func(i, j int) bool {
		return result.Matchups[i].Date < result.Matchups[j].Date
	})

	s.logger.Debug().Int("token_id", tokenID).Int("matchups", len(result.Matchups)).Msg("matchups computed")
	return result, nil
}

func supporterDetails(snap *store.Snapshot, supporters []domain.Participant) []SupporterDetail {
	details := make([]SupporterDetail, 0, len(supporters))
	for _, p := range supporters {
		c := currentCareer(snap, p.TokenID)
		details = append(details, SupporterDetail{
			TokenID:     p.TokenID,
			Name:        p.Name,
			Class:       p.Class,
			CareerElims: scoring.Round2(c.Elims),
			CareerDeps:  scoring.Round2(c.Deps),
			CareerWart:  scoring.Round2(c.Distance),
		})
	}
	return details
}
