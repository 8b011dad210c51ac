package strategy

import (
	"testing"

	"github.com/betbot/bjadvisor/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 庄家列 2..10、A
var dealerRanks = []domain.Rank{
	domain.Two, domain.Three, domain.Four, domain.Five, domain.Six,
	domain.Seven, domain.Eight, domain.Nine, domain.Ten, domain.Ace,
}

func newS17(deviations bool) *BasicStrategy {
	return New(Options{Rules: "s17_das", DeviationsEnabled: deviations, Illustrious18: true, Fab4: true})
}

func TestChartsAreComplete(t *testing.T) {
	for cat, chart := range charts {
		_, err := buildTable(chart)
		require.NoError(t, err, cat.String())
	}
	b := newS17(false)
	for total := minTotal; total <= maxTotal; total++ {
		for d := minDealer; d <= maxDealer; d++ {
			_, ok := b.Lookup(CategoryHard, total, d)
			assert.True(t, ok, "hard %d vs %d", total, d)
		}
	}
}

func TestGetActionHard11AlwaysDoubles(t *testing.T) {
	b := newS17(false)
	for _, r := range dealerRanks {
		assert.Equal(t, domain.Double, b.GetAction(11, r, false, true, false), "vs %s", r)
		assert.Equal(t, domain.Hit, b.GetAction(11, r, false, false, false), "no double vs %s", r)
	}
}

func TestGetActionHard20AlwaysStands(t *testing.T) {
	b := newS17(false)
	for _, r := range dealerRanks {
		assert.Equal(t, domain.Stand, b.GetAction(20, r, false, true, false), "vs %s", r)
	}
	assert.Equal(t, domain.Stand, b.GetAction(20, domain.King, false, true, false))
}

func TestGetActionOutOfRangeStands(t *testing.T) {
	b := newS17(false)
	assert.Equal(t, domain.Stand, b.GetAction(3, domain.Five, false, true, false))
	assert.Equal(t, domain.Stand, b.GetAction(22, domain.Five, false, true, false))
	assert.Equal(t, domain.Stand, b.GetAction(10, domain.Rank(0), false, true, false))
}

func TestGetActionChart(t *testing.T) {
	b := newS17(false)
	tests := []struct {
		name   string
		total  int
		dealer domain.Rank
		soft   bool
		split  bool
		want   domain.Action
	}{
		{"hard 12 vs 3 hits", 12, domain.Three, false, false, domain.Hit},
		{"hard 12 vs 4 stands", 12, domain.Four, false, false, domain.Stand},
		{"hard 16 vs 10 hits", 16, domain.Ten, false, false, domain.Hit},
		{"hard 13 vs 6 stands", 13, domain.Six, false, false, domain.Stand},
		{"hard 10 vs A hits", 10, domain.Ace, false, false, domain.Hit},
		{"hard 9 vs 3 doubles", 9, domain.Three, false, false, domain.Double},
		{"soft 18 vs 2 doubles", 18, domain.Two, true, false, domain.Double},
		{"soft 18 vs 8 stands", 18, domain.Eight, true, false, domain.Stand},
		{"soft 18 vs 9 hits", 18, domain.Nine, true, false, domain.Hit},
		{"soft 17 vs 2 hits", 17, domain.Two, true, false, domain.Hit},
		{"soft 13 vs 5 doubles", 13, domain.Five, true, false, domain.Double},
		{"soft 21 stands", 21, domain.Seven, true, false, domain.Stand},
		{"A,A splits", 12, domain.Ten, true, true, domain.Split},
		{"A,A without split hits", 12, domain.Six, true, false, domain.Hit},
		{"8,8 vs A splits", 16, domain.Ace, false, true, domain.Split},
		{"9,9 vs 7 stands", 18, domain.Seven, false, true, domain.Stand},
		{"9,9 vs 6 splits", 18, domain.Six, false, true, domain.Split},
		{"6,6 vs 7 hits", 12, domain.Seven, false, true, domain.Hit},
		{"5,5 vs 6 doubles", 10, domain.Six, false, true, domain.Double},
		{"10,10 stands", 20, domain.Six, false, true, domain.Stand},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, b.GetAction(tt.total, tt.dealer, tt.soft, true, tt.split))
		})
	}
}

func TestGetHandAction(t *testing.T) {
	b := newS17(false)
	aa := domain.NewHand(0, domain.Card{Rank: domain.Ace}, domain.Card{Rank: domain.Ace, Suit: domain.Spades})
	assert.Equal(t, domain.Split, b.GetHandAction(aa, domain.Five))

	three := domain.NewHand(0, domain.Card{Rank: domain.Five}, domain.Card{Rank: domain.Two}, domain.Card{Rank: domain.Four})
	assert.Equal(t, domain.Hit, b.GetHandAction(three, domain.Six), "hard 11 with three cards cannot double")
}
