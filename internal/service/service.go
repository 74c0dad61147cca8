package service

import (
	"context"
	"time"

	"arena-tracker/internal/domain"
	"arena-tracker/internal/feed"
	"arena-tracker/internal/store"
)

// SnapshotProvider hands out the snapshot a query should run against.
// *feed.Coordinator is the production implementation.
type SnapshotProvider interface {
	Snapshot(ctx context.Context) (*store.Snapshot, feed.State, time.Duration, error)
}

// lineup is one team's champion and supporters within a match.
type lineup struct {
	champion   domain.Participant
	supporters []domain.Participant
}

// matchLineups splits a match's players into per-team lineups. ok is false
// unless both teams have a champion.
func matchLineups(m domain.Match) (map[int]*lineup, bool) {
	teams := map[int]*lineup{1: {}, 2: {}}
	found := map[int]bool{}

	for _, p := range m.Players {
		team, ok := teams[p.Team]
		if !ok {
			continue
		}
		if p.IsChampion {
			team.champion = p
			found[p.Team] = true
		} else {
			team.supporters = append(team.supporters, p)
		}
	}
	return teams, found[1] && found[2]
}

// careerStats are per-game averages feeding the projector.
type careerStats struct {
	Elims    float64
	Deps     float64
	Distance float64
}

func defaultCareer() careerStats {
	return careerStats{
		Elims:    domain.DefaultAvgEliminations,
		Deps:     domain.DefaultAvgDeposits,
		Distance: domain.DefaultAvgDistance,
	}
}

// currentCareer reads a token's averages from the published cumulative
// totals, falling back to league defaults for unknown tokens.
func currentCareer(snap *store.Snapshot, tokenID int) careerStats {
	if c, ok := snap.Cumulative(tokenID); ok {
		return careerStats{Elims: c.AvgEliminations(), Deps: c.AvgDeposits(), Distance: c.AvgDistance()}
	}
	return defaultCareer()
}

// careerBefore computes a token's averages from matches dated strictly
// before cutoff, falling back to league defaults when it has no history yet.
func careerBefore(snap *store.Snapshot, tokenID int, cutoff string) careerStats {
	agg := snap.Aggregate(tokenID, cutoff)
	if agg.Games == 0 {
		return defaultCareer()
	}
	return careerStats{Elims: agg.AvgEliminations, Deps: agg.AvgDeposits, Distance: agg.AvgDistance}
}

// supporterAverages averages supporter careers for one side of a matchup.
// An empty supporter list yields league defaults.
func supporterAverages(supporters []domain.Participant, career func(tokenID int) careerStats) (avgElims, avgDeps float64) {
	if len(supporters) == 0 {
		return domain.DefaultAvgEliminations, domain.DefaultAvgDeposits
	}
	var elims, deps float64
	for _, s := range supporters {
		c := career(s.TokenID)
		elims += c.Elims
		deps += c.Deps
	}
	n := float64(len(supporters))
	return elims / n, deps / n
}

// baseWinRate is a champion's all-time win rate, neutral for unknowns.
func baseWinRate(snap *store.Snapshot, tokenID int) float64 {
	if champ, ok := snap.Champion(tokenID); ok {
		return champ.WinRate
	}
	return domain.NeutralWinRate
}
