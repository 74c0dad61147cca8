package store

import (
	"sort"

	"arena-tracker/internal/domain"
	"arena-tracker/internal/scoring"

	"github.com/rs/zerolog"
)

// Builder accumulates partitions on top of a previous snapshot and produces
// a new immutable Snapshot. Matches merge by upsert on match id: the last
// partition added wins a conflict, except that a scored match is never
// replaced by a scheduled version of itself. Re-adding an identical
// partition is a no-op.
type Builder struct {
	matches     map[string]domain.Match
	cumulative  map[int]domain.CumulativeTotals
	quarantined int
	logger      zerolog.Logger
}

// NewBuilder seeds a builder with the contents of prev, which may be nil for
// a first load. prev itself is never modified.
func NewBuilder(prev *Snapshot, logger zerolog.Logger) *Builder {
	b := &Builder{
		matches:    make(map[string]domain.Match),
		cumulative: make(map[int]domain.CumulativeTotals),
		logger:     logger,
	}
	if prev != nil {
		for id, m := range prev.matches {
			b.matches[id] = m
		}
		for id, c := range prev.cumulative {
			b.cumulative[id] = c
		}
	}
	return b
}

// AddPartition merges one partition's matches into the builder.
func (b *Builder) AddPartition(date string, matches []domain.Match) {
	added, updated, kept := 0, 0, 0
	for _, m := range matches {
		existing, ok := b.matches[m.MatchID]
		switch {
		case !ok:
			added++
		case existing.Scored() && !m.Scored():
			// Results never regress to scheduled.
			kept++
			continue
		default:
			updated++
		}
		b.matches[m.MatchID] = m
	}
	b.logger.Debug().
		Str("partition", date).
		Int("added", added).
		Int("updated", updated).
		Int("kept_scored", kept).
		Msg("merged partition")
}

// AddQuarantined records how many feed records were dropped before reaching
// the builder.
func (b *Builder) AddQuarantined(n int) { b.quarantined += n }

// SetCumulative replaces the career totals table.
func (b *Builder) SetCumulative(totals []domain.CumulativeTotals) {
	b.cumulative = make(map[int]domain.CumulativeTotals, len(totals))
	for _, t := range totals {
		b.cumulative[t.TokenID] = t
	}
}

// Build materializes the snapshot: derives every index and precomputed table
// from the merged match set. The builder can keep accumulating afterwards;
// the returned snapshot is detached.
func (b *Builder) Build() *Snapshot {
	s := &Snapshot{
		matches:       make(map[string]domain.Match, len(b.matches)),
		byEntity:      make(map[int][]string),
		byDate:        make(map[string][]string),
		cumulative:    make(map[int]domain.CumulativeTotals, len(b.cumulative)),
		champions:     make(map[int]Champion),
		classMatchups: make(map[classPair]float64),
		classHistory:  make(map[int][]ClassStint),
		quarantined:   b.quarantined,
	}
	for id, m := range b.matches {
		s.matches[id] = m
	}
	for id, c := range b.cumulative {
		s.cumulative[id] = c
	}

	for id, m := range s.matches {
		s.byDate[m.Date] = append(s.byDate[m.Date], id)
		for _, p := range m.Players {
			s.byEntity[p.TokenID] = append(s.byEntity[p.TokenID], id)
		}
		if m.Scored() {
			s.scored = append(s.scored, id)
		} else {
			s.scheduled = append(s.scheduled, id)
		}
	}

	byDateID := func(ids []string) {
		sort.Slice(ids, func(i, j int) bool {
			a, z := s.matches[ids[i]], s.matches[ids[j]]
			if a.Date != z.Date {
				return a.Date < z.Date
			}
			return a.MatchID < z.MatchID
		})
	}
	byDateID(s.scheduled)
	byDateID(s.scored)
	for _, ids := range s.byEntity {
		byDateID(ids)
	}
	for _, ids := range s.byDate {
		sort.Strings(ids)
	}

	b.buildChampions(s)
	b.buildClassMatchups(s)
	b.buildClassHistory(s)

	b.logger.Info().
		Int("matches", len(s.matches)).
		Int("scheduled", len(s.scheduled)).
		Int("scored", len(s.scored)).
		Int("champions", len(s.champions)).
		Int("class_matchups", len(s.classMatchups)).
		Int("quarantined", s.quarantined).
		Msg("snapshot built")

	return s
}

// buildChampions collects name and class from every appearance, then counts
// wins over scored matches only. Scheduled matches contribute identity so a
// debut champion still resolves. Appearances are walked in date order so the
// most recent name and class label win.
func (b *Builder) buildChampions(s *Snapshot) {
	ordered := make([]string, 0, len(s.scored)+len(s.scheduled))
	ordered = append(ordered, s.scored...)
	ordered = append(ordered, s.scheduled...)

	for _, id := range ordered {
		m := s.matches[id]
		for _, p := range m.Players {
			if !p.IsChampion {
				continue
			}
			champ := s.champions[p.TokenID]
			champ.TokenID = p.TokenID
			if p.Name != "" {
				champ.Name = p.Name
			}
			if p.Class != "" {
				champ.Class = p.Class
			}
			s.champions[p.TokenID] = champ
		}
	}

	for _, id := range s.scored {
		m := s.matches[id]
		for _, p := range m.Players {
			if !p.IsChampion {
				continue
			}
			champ := s.champions[p.TokenID]
			champ.Games++
			if m.TeamWon == p.Team {
				champ.Wins++
			}
			s.champions[p.TokenID] = champ
		}
	}

	for tokenID, champ := range s.champions {
		if champ.Games > 0 {
			champ.WinRate = scoring.Round1(100 * float64(champ.Wins) / float64(champ.Games))
		} else {
			champ.WinRate = domain.NeutralWinRate
		}
		s.champions[tokenID] = champ
	}
}

func (b *Builder) buildClassMatchups(s *Snapshot) {
	type tally struct{ wins, games int }
	tallies := make(map[classPair]*tally)

	for _, id := range s.scored {
		m := s.matches[id]
		first, second, ok := championPair(m)
		if !ok {
			continue
		}
		for _, view := range [][2]domain.Participant{{first, second}, {second, first}} {
			mine, opp := view[0], view[1]
			key := classPair{Mine: mine.Class, Opponent: opp.Class}
			t := tallies[key]
			if t == nil {
				t = &tally{}
				tallies[key] = t
			}
			t.games++
			if m.TeamWon == mine.Team {
				t.wins++
			}
		}
	}

	for key, t := range tallies {
		if t.games < minClassMatchupGames {
			continue
		}
		s.classMatchups[key] = scoring.Round1(100 * float64(t.wins) / float64(t.games))
	}
}

func (b *Builder) buildClassHistory(s *Snapshot) {
	for _, id := range s.scored {
		m := s.matches[id]
		for _, p := range m.Players {
			if !p.IsChampion || p.Class == "" {
				continue
			}
			s.classHistory[p.TokenID] = append(s.classHistory[p.TokenID], ClassStint{Date: m.Date, Class: p.Class})
		}
	}
	// s.scored is date-ordered, so each history already is too.
}

// championPair extracts the two champions of a match in team order.
func championPair(m domain.Match) (domain.Participant, domain.Participant, bool) {
	var champs []domain.Participant
	for _, p := range m.Players {
		if p.IsChampion {
			champs = append(champs, p)
		}
	}
	if len(champs) != 2 {
		return domain.Participant{}, domain.Participant{}, false
	}
	if champs[0].Team > champs[1].Team {
		champs[0], champs[1] = champs[1], champs[0]
	}
	return champs[0], champs[1], true
}
