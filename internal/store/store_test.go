package store

import (
	"testing"

	"arena-tracker/internal/domain"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
)

func nopLogger() zerolog.Logger { return zerolog.Nop() }

func champion(tokenID int, name, class string, team int) domain.Participant {
	return domain.Participant{TokenID: tokenID, Name: name, Class: class, Team: team, IsChampion: true}
}

func supporter(tokenID int, name, class string, team int) domain.Participant {
	return domain.Participant{TokenID: tokenID, Name: name, Class: class, Team: team}
}

func scoredMatch(id, date string, teamWon int, players ...domain.Participant) domain.Match {
	return domain.Match{
		MatchID: id,
		Date:    date,
		TeamWon: teamWon,
		WinType: "elimination",
		State:   domain.MatchScored,
		Players: players,
	}
}

func scheduledMatch(id, date string, players ...domain.Participant) domain.Match {
	return domain.Match{MatchID: id, Date: date, State: domain.MatchScheduled, Players: players}
}

func TestBuilderIdempotentIngest(t *testing.T) {
	partition := []domain.Match{
		scoredMatch("m1", "2026-02-01", 1, champion(1, "Aro", "Striker", 1), champion(2, "Bel", "Defender", 2)),
		scoredMatch("m2", "2026-02-01", 2, champion(1, "Aro", "Striker", 1), champion(3, "Cor", "Bruiser", 2)),
	}

	once := NewBuilder(nil, nopLogger())
	once.AddPartition("2026-02-01", partition)
	snapOnce := once.Build()

	twice := NewBuilder(nil, nopLogger())
	twice.AddPartition("2026-02-01", partition)
	twice.AddPartition("2026-02-01", partition)
	snapTwice := twice.Build()

	if snapOnce.MatchCount() != snapTwice.MatchCount() {
		t.Fatalf("match count changed on re-ingest: %d vs %d", snapOnce.MatchCount(), snapTwice.MatchCount())
	}
	if diff := cmp.Diff(snapOnce.EntityMatchIDs(1), snapTwice.EntityMatchIDs(1)); diff != "" {
		t.Errorf("entity index differs after re-ingest (-once +twice):\n%s", diff)
	}
	if diff := cmp.Diff(snapOnce.ScoredMatchIDs(), snapTwice.ScoredMatchIDs()); diff != "" {
		t.Errorf("scored index differs after re-ingest (-once +twice):\n%s", diff)
	}
}

func TestBuilderRescoreReplacesScheduled(t *testing.T) {
	b := NewBuilder(nil, nopLogger())
	b.AddPartition("2026-02-01", []domain.Match{
		scheduledMatch("m1", "2026-02-01", champion(1, "Aro", "Striker", 1), champion(2, "Bel", "Defender", 2)),
	})
	b.AddPartition("2026-02-02", []domain.Match{
		scoredMatch("m1", "2026-02-01", 2, champion(1, "Aro", "Striker", 1), champion(2, "Bel", "Defender", 2)),
	})
	snap := b.Build()

	m, ok := snap.Match("m1")
	if !ok {
		t.Fatal("match m1 missing")
	}
	if !m.Scored() || m.TeamWon != 2 {
		t.Errorf("expected rescored match with team 2 winning, got state=%s team_won=%d", m.State, m.TeamWon)
	}
	if len(snap.ScheduledMatchIDs()) != 0 {
		t.Errorf("rescored match still listed as scheduled")
	}
}

func TestBuilderScoredNeverRegresses(t *testing.T) {
	b := NewBuilder(nil, nopLogger())
	b.AddPartition("2026-02-01", []domain.Match{
		scoredMatch("m1", "2026-02-01", 1, champion(1, "Aro", "Striker", 1), champion(2, "Bel", "Defender", 2)),
	})
	b.AddPartition("2026-02-02", []domain.Match{
		scheduledMatch("m1", "2026-02-01", champion(1, "Aro", "Striker", 1), champion(2, "Bel", "Defender", 2)),
	})
	snap := b.Build()

	m, _ := snap.Match("m1")
	if !m.Scored() || m.TeamWon != 1 {
		t.Errorf("scored match regressed: state=%s team_won=%d", m.State, m.TeamWon)
	}
}

func TestBuilderSeedsFromPrevious(t *testing.T) {
	first := NewBuilder(nil, nopLogger())
	first.AddPartition("2026-02-01", []domain.Match{
		scoredMatch("m1", "2026-02-01", 1, champion(1, "Aro", "Striker", 1), champion(2, "Bel", "Defender", 2)),
	})
	prev := first.Build()

	second := NewBuilder(prev, nopLogger())
	second.AddPartition("2026-02-02", []domain.Match{
		scoredMatch("m2", "2026-02-02", 2, champion(1, "Aro", "Striker", 1), champion(2, "Bel", "Defender", 2)),
	})
	next := second.Build()

	if next.MatchCount() != 2 {
		t.Errorf("expected merged snapshot with 2 matches, got %d", next.MatchCount())
	}
	if prev.MatchCount() != 1 {
		t.Errorf("previous snapshot mutated: %d matches", prev.MatchCount())
	}
}

func TestEntityIndexOrdering(t *testing.T) {
	b := NewBuilder(nil, nopLogger())
	b.AddPartition("2026-02-03", []domain.Match{
		scoredMatch("m9", "2026-02-03", 1, champion(1, "Aro", "Striker", 1), champion(2, "Bel", "Defender", 2)),
		scoredMatch("m2", "2026-02-01", 1, champion(1, "Aro", "Striker", 1), champion(2, "Bel", "Defender", 2)),
		scoredMatch("m1", "2026-02-01", 2, champion(1, "Aro", "Striker", 1), champion(2, "Bel", "Defender", 2)),
	})
	snap := b.Build()

	want := []string{"m1", "m2", "m9"}
	if diff := cmp.Diff(want, snap.EntityMatchIDs(1)); diff != "" {
		t.Errorf("entity index order (-want +got):\n%s", diff)
	}
}

func TestChampionWinRates(t *testing.T) {
	b := NewBuilder(nil, nopLogger())
	matches := []domain.Match{
		scheduledMatch("s1", "2026-03-01", champion(3, "Newcomer", "Sprinter", 1), champion(1, "Aro", "Striker", 2)),
	}
	for i := 0; i < 4; i++ {
		won := 2
		if i < 3 {
			won = 1
		}
		matches = append(matches, scoredMatch(
			matchID("w", i), "2026-02-01", won,
			champion(1, "Aro", "Striker", 1), champion(2, "Bel", "Defender", 2),
		))
	}
	b.AddPartition("2026-02-01", matches)
	snap := b.Build()

	aro, ok := snap.Champion(1)
	if !ok {
		t.Fatal("champion 1 missing")
	}
	if aro.Games != 4 || aro.Wins != 3 || aro.WinRate != 75.0 {
		t.Errorf("champion 1: got games=%d wins=%d rate=%v, want 4/3/75", aro.Games, aro.Wins, aro.WinRate)
	}

	debut, ok := snap.Champion(3)
	if !ok {
		t.Fatal("scheduled-only champion should still be tracked")
	}
	if debut.Games != 0 || debut.WinRate != domain.NeutralWinRate {
		t.Errorf("debut champion: got games=%d rate=%v, want 0 games at neutral rate", debut.Games, debut.WinRate)
	}
	if debut.Name != "Newcomer" || debut.Class != "Sprinter" {
		t.Errorf("debut champion identity not collected: %+v", debut)
	}
}

func TestClassMatchupTableMinGames(t *testing.T) {
	b := NewBuilder(nil, nopLogger())

	var matches []domain.Match
	// 12 Striker vs Defender games, Striker wins 9.
	for i := 0; i < 12; i++ {
		won := 2
		if i < 9 {
			won = 1
		}
		matches = append(matches, scoredMatch(
			matchID("m", i), "2026-02-01", won,
			champion(1, "Aro", "Striker", 1), champion(2, "Bel", "Defender", 2),
		))
	}
	// Only 2 Bruiser vs Sprinter games: below threshold.
	for i := 0; i < 2; i++ {
		matches = append(matches, scoredMatch(
			matchID("r", i), "2026-02-01", 1,
			champion(3, "Cor", "Bruiser", 1), champion(4, "Dax", "Sprinter", 2),
		))
	}
	b.AddPartition("2026-02-01", matches)
	snap := b.Build()

	if got := snap.ClassMatchupRate("Striker", "Defender"); got != 75.0 {
		t.Errorf("Striker vs Defender: got %v, want 75", got)
	}
	if got := snap.ClassMatchupRate("Defender", "Striker"); got != 25.0 {
		t.Errorf("Defender vs Striker: got %v, want 25", got)
	}
	if got := snap.ClassMatchupRate("Bruiser", "Sprinter"); got != domain.NeutralWinRate {
		t.Errorf("below-threshold matchup should be neutral, got %v", got)
	}
	if got := snap.ClassMatchupRate("Striker", "Grinder"); got != domain.NeutralWinRate {
		t.Errorf("unknown matchup should be neutral, got %v", got)
	}
}

func TestClassChanges(t *testing.T) {
	b := NewBuilder(nil, nopLogger())
	b.AddPartition("2026-02-01", []domain.Match{
		scoredMatch("m1", "2026-02-01", 1, champion(1, "Aro", "Striker", 1), champion(2, "Bel", "Defender", 2)),
		scoredMatch("m2", "2026-02-10", 1, champion(1, "Aro", "Bruiser", 1), champion(2, "Bel", "Defender", 2)),
	})
	snap := b.Build()

	changes := snap.ClassChanges()
	if len(changes) != 1 {
		t.Fatalf("expected 1 class change, got %d", len(changes))
	}
	got := changes[0]
	if got.TokenID != 1 || got.OldClass != "Striker" || got.NewClass != "Bruiser" {
		t.Errorf("unexpected change: %+v", got)
	}
	if got.ChangeDate != "2026-02-10" || got.LastMatchAsOld != "2026-02-01" {
		t.Errorf("unexpected change dates: %+v", got)
	}
}

func TestQuarantinedCountSurvivesBuild(t *testing.T) {
	b := NewBuilder(nil, nopLogger())
	b.AddQuarantined(3)
	snap := b.Build()
	if snap.QuarantinedCount() != 3 {
		t.Errorf("quarantined count: got %d, want 3", snap.QuarantinedCount())
	}
}

func matchID(prefix string, i int) string {
	return prefix + string(rune('a'+i))
}
