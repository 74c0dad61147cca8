package store

import (
	"sort"

	"arena-tracker/internal/domain"
	"arena-tracker/internal/scoring"
)

// Point-in-time queries. Every function here filters to matches dated
// strictly before the caller's cutoff, so a match's own outcome can never
// leak into a projection made for it. Results are pure functions of
// (snapshot, arguments); nothing is memoized across cutoffs.

// Aggregate computes a token's career aggregate over scored matches dated
// strictly before cutoff: games and wins over every appearance, stat means
// over the token's performance rows. Zero games yields explicit zeros, never
// a division.
func (s *Snapshot) Aggregate(tokenID int, cutoff string) domain.CareerAggregate {
	agg := domain.CareerAggregate{TokenID: tokenID}

	var elims, deps, dist float64
	statRows := 0

	for _, id := range s.entityMatchesBefore(tokenID, cutoff) {
		m := s.matches[id]
		if !m.Scored() {
			continue
		}

		for _, p := range m.Players {
			if p.TokenID != tokenID {
				continue
			}
			agg.Games++
			if m.TeamWon == p.Team {
				agg.Wins++
			}
			break
		}

		for _, perf := range m.Performances {
			if perf.TokenID != tokenID {
				continue
			}
			elims += perf.Eliminations
			deps += perf.Deposits
			dist += perf.WartDistance
			statRows++
		}
	}

	if agg.Games > 0 {
		agg.WinRate = scoring.Round1(100 * float64(agg.Wins) / float64(agg.Games))
	}
	if statRows > 0 {
		agg.AvgEliminations = elims / float64(statRows)
		agg.AvgDeposits = deps / float64(statRows)
		agg.AvgDistance = dist / float64(statRows)
	}
	return agg
}

// ChampionWinRateBefore returns a token's win percentage over scored
// champion appearances dated strictly before cutoff. A token with no such
// appearances reports the neutral rate, matching what the projector expects
// for a debut.
func (s *Snapshot) ChampionWinRateBefore(tokenID int, cutoff string) float64 {
	wins, games := 0, 0
	for _, id := range s.entityMatchesBefore(tokenID, cutoff) {
		m := s.matches[id]
		if !m.Scored() {
			continue
		}
		for _, p := range m.Players {
			if p.TokenID != tokenID || !p.IsChampion {
				continue
			}
			games++
			if m.TeamWon == p.Team {
				wins++
			}
			break
		}
	}
	if games == 0 {
		return domain.NeutralWinRate
	}
	return scoring.Round1(100 * float64(wins) / float64(games))
}

// ClassMatchupRateBefore returns the win percentage of class mine against
// class opponent over scored matches dated strictly before cutoff. Pairings
// with too few games report the neutral rate.
func (s *Snapshot) ClassMatchupRateBefore(mine, opponent, cutoff string) float64 {
	wins, games := 0, 0
	for _, id := range s.scoredBefore(cutoff) {
		m := s.matches[id]
		first, second, ok := championPair(m)
		if !ok {
			continue
		}
		for _, view := range [][2]domain.Participant{{first, second}, {second, first}} {
			me, opp := view[0], view[1]
			if me.Class != mine || opp.Class != opponent {
				continue
			}
			games++
			if m.TeamWon == me.Team {
				wins++
			}
		}
	}
	if games < minClassMatchupGames {
		return domain.NeutralWinRate
	}
	return scoring.Round1(100 * float64(wins) / float64(games))
}

// entityMatchesBefore returns the date-ordered prefix of a token's matches
// with date < cutoff.
func (s *Snapshot) entityMatchesBefore(tokenID int, cutoff string) []string {
	return s.prefixBefore(s.byEntity[tokenID], cutoff)
}

// scoredBefore returns the date-ordered prefix of scored matches with
// date < cutoff.
func (s *Snapshot) scoredBefore(cutoff string) []string {
	return s.prefixBefore(s.scored, cutoff)
}

// prefixBefore binary-searches a (date, id)-ordered id list for the first
// match dated at or past cutoff. Calendar dates are YYYY-MM-DD, so string
// order is date order.
func (s *Snapshot) prefixBefore(ids []string, cutoff string) []string {
	n := sort.Search(len(ids), func(i int) bool {
		return s.matches[ids[i]].Date >= cutoff
	})
	return ids[:n]
}
