package store

import (
	"sort"

	"arena-tracker/internal/domain"
)

// Snapshot is an immutable view of every loaded match plus the indexes and
// precomputed tables queries read from. A snapshot is built once by a
// Builder and never mutated afterwards, so concurrent readers need no
// locking; a refresh swaps in a whole new snapshot.
type Snapshot struct {
	matches    map[string]domain.Match
	byEntity   map[int][]string
	byDate     map[string][]string
	scheduled  []string
	scored     []string
	cumulative map[int]domain.CumulativeTotals

	champions     map[int]Champion
	classMatchups map[classPair]float64
	classHistory  map[int][]ClassStint

	quarantined int
}

// Champion is the all-time record of a token that has appeared as a
// champion. WinRate is neutral (50) until the token has scored games.
type Champion struct {
	TokenID int
	Name    string
	Class   string
	Games   int
	Wins    int
	WinRate float64
}

// ClassStint is one scored champion appearance used for class-change
// detection.
type ClassStint struct {
	Date  string
	Class string
}

// ClassChange is a detected change of a champion's class label between two
// scored matches.
type ClassChange struct {
	TokenID        int    `json:"token_id"`
	Name           string `json:"name"`
	OldClass       string `json:"old_class"`
	NewClass       string `json:"new_class"`
	ChangeDate     string `json:"change_date"`
	LastMatchAsOld string `json:"last_match_as_old"`
}

type classPair struct {
	Mine     string
	Opponent string
}

// Matchups below this many scored games are considered noise and report the
// neutral rate instead.
const minClassMatchupGames = 10

// Match returns the match with the given id.
func (s *Snapshot) Match(id string) (domain.Match, bool) {
	m, ok := s.matches[id]
	return m, ok
}

func (s *Snapshot) MatchCount() int { return len(s.matches) }

// ScheduledMatchIDs returns ids of matches without a result yet, ordered by
// (date, id). The returned slice is shared and must not be modified.
func (s *Snapshot) ScheduledMatchIDs() []string { return s.scheduled }

// ScoredMatchIDs returns ids of completed matches, ordered by (date, id).
// The returned slice is shared and must not be modified.
func (s *Snapshot) ScoredMatchIDs() []string { return s.scored }

// EntityMatchIDs returns every match the token appeared in, ordered by
// (date, id).
func (s *Snapshot) EntityMatchIDs(tokenID int) []string { return s.byEntity[tokenID] }

// MatchIDsOn returns every match played on the given calendar day.
func (s *Snapshot) MatchIDsOn(date string) []string { return s.byDate[date] }

// Cumulative returns the published career totals for a token, if any.
func (s *Snapshot) Cumulative(tokenID int) (domain.CumulativeTotals, bool) {
	c, ok := s.cumulative[tokenID]
	return c, ok
}

func (s *Snapshot) CumulativeCount() int { return len(s.cumulative) }

// Champion returns the all-time record for a token that has appeared as a
// champion.
func (s *Snapshot) Champion(tokenID int) (Champion, bool) {
	c, ok := s.champions[tokenID]
	return c, ok
}

func (s *Snapshot) ChampionCount() int { return len(s.champions) }

// ClassMatchupRate returns the all-time win percentage of class mine against
// class opponent, or the neutral rate when the pairing has too few games.
func (s *Snapshot) ClassMatchupRate(mine, opponent string) float64 {
	if rate, ok := s.classMatchups[classPair{Mine: mine, Opponent: opponent}]; ok {
		return rate
	}
	return domain.NeutralWinRate
}

// QuarantinedCount reports how many feed records were dropped at ingest for
// failing envelope validation.
func (s *Snapshot) QuarantinedCount() int { return s.quarantined }

// ClassChanges lists champions whose class label changed between scored
// matches, most recent change first.
func (s *Snapshot) ClassChanges() []ClassChange {
	var changes []ClassChange
	for tokenID, stints := range s.classHistory {
		if len(stints) < 2 {
			continue
		}
		for i := 1; i < len(stints); i++ {
			prev, curr := stints[i-1], stints[i]
			if prev.Class == curr.Class || prev.Class == "" || curr.Class == "" {
				continue
			}
			name := ""
			if champ, ok := s.champions[tokenID]; ok {
				name = champ.Name
			}
			changes = append(changes, ClassChange{
				TokenID:        tokenID,
				Name:           name,
				OldClass:       prev.Class,
				NewClass:       curr.Class,
				ChangeDate:     curr.Date,
				LastMatchAsOld: prev.Date,
			})
		}
	}
	sort.Slice(changes, func(i, j int) bool {
		if changes[i].ChangeDate != changes[j].ChangeDate {
			return changes[i].ChangeDate > changes[j].ChangeDate
		}
		return changes[i].TokenID < changes[j].TokenID
	})
	return changes
}
