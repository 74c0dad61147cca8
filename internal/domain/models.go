package domain

type MatchState string

const (
	MatchScheduled MatchState = "scheduled"
	MatchScored    MatchState = "scored"
)

// Match is a single arena match as published by the feed. Dates are calendar
// days in YYYY-MM-DD form; the feed gives no intra-day ordering beyond the
// match id. A match is immutable once scored.
type Match struct {
	MatchID      string
	Date         string
	TeamWon      int // 1 or 2, 0 until scored
	WinType      string
	State        MatchState
	Players      []Participant
	Performances []Performance
}

// Scored reports whether the match has a final result.
func (m Match) Scored() bool {
	return m.State == MatchScored
}

// Participant is one token's appearance in a match, either as the team's
// champion or as a supporter.
type Participant struct {
	TokenID    int
	Name       string
	Class      string
	Team       int // 1 or 2
	IsChampion bool
}

// Performance holds per-game stat lines. Present only for scored matches,
// one row per participant.
type Performance struct {
	TokenID      int
	Eliminations float64
	Deposits     float64
	WartDistance float64
}

// CareerAggregate is a point-in-time view of a token's history: counts and
// stat means over scored matches dated strictly before a cutoff. WinRate is
// a percentage and is 0 when Games is 0.
type CareerAggregate struct {
	TokenID         int
	Games           int
	Wins            int
	WinRate         float64
	AvgEliminations float64
	AvgDeposits     float64
	AvgDistance     float64
}

// CumulativeTotals are the precomputed career totals published alongside the
// partitions, used as a cheap fallback for current career averages.
type CumulativeTotals struct {
	TokenID      int
	Games        int
	Wins         int
	Eliminations float64
	Deposits     float64
	WartDistance float64
}

// AvgEliminations returns the per-game mean, or the league default for a
// token with no recorded games.
func (c CumulativeTotals) AvgEliminations() float64 {
	if c.Games == 0 {
		return DefaultAvgEliminations
	}
	return c.Eliminations / float64(c.Games)
}

func (c CumulativeTotals) AvgDeposits() float64 {
	if c.Games == 0 {
		return DefaultAvgDeposits
	}
	return c.Deposits / float64(c.Games)
}

func (c CumulativeTotals) AvgDistance() float64 {
	if c.Games == 0 {
		return DefaultAvgDistance
	}
	return c.WartDistance / float64(c.Games)
}

// League-wide fallbacks applied when a token has no usable history. The
// projector needs non-degenerate inputs for debut tokens.
const (
	DefaultAvgEliminations = 1.0
	DefaultAvgDeposits     = 1.5
	DefaultAvgDistance     = 0.0
	NeutralWinRate         = 50.0
)

// PartitionDescriptor is one entry of the feed manifest.
type PartitionDescriptor struct {
	Date string `json:"date"`
	URL  string `json:"url"`
}

// Manifest is the latest.json document listing available partitions.
type Manifest struct {
	Partitions []PartitionDescriptor `json:"partitions"`
}
