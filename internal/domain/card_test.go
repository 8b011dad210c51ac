package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCardIDRoundTrip(t *testing.T) {
	for id := uint8(0); id < DeckSize; id++ {
		c, ok := CardFromID(id)
		require.True(t, ok)
		require.True(t, c.Valid(), "id=%d", id)
		require.Equal(t, id, c.ID())
	}
	_, ok := CardFromID(DeckSize)
	assert.False(t, ok)
}

func TestCardFromIDLayout(t *testing.T) {
	c, _ := CardFromID(0)
	assert.Equal(t, Card{Rank: Ace, Suit: Hearts}, c)
	c, _ = CardFromID(12)
	assert.Equal(t, Card{Rank: King, Suit: Hearts}, c)
	c, _ = CardFromID(13)
	assert.Equal(t, Card{Rank: Ace, Suit: Diamonds}, c)
	c, _ = CardFromID(51)
	assert.Equal(t, Card{Rank: King, Suit: Spades}, c)
}

func TestHiLoValues(t *testing.T) {
	for r := Two; r <= Six; r++ {
		assert.Equal(t, 1, r.HiLo(), r.String())
	}
	for r := Seven; r <= Nine; r++ {
		assert.Equal(t, 0, r.HiLo(), r.String())
	}
	for _, r := range []Rank{Ten, Jack, Queen, King, Ace} {
		assert.Equal(t, -1, r.HiLo(), r.String())
	}

	// 一整副牌的 Hi-Lo 总和为 0
	sum := 0
	for id := uint8(0); id < DeckSize; id++ {
		c, _ := CardFromID(id)
		sum += c.Rank.HiLo()
	}
	assert.Equal(t, 0, sum)
}

func TestCardValue(t *testing.T) {
	assert.Equal(t, 11, Card{Rank: Ace}.Value())
	assert.Equal(t, 10, Card{Rank: King}.Value())
	assert.Equal(t, 10, Card{Rank: Ten}.Value())
	assert.Equal(t, 7, Card{Rank: Seven}.Value())
	assert.Equal(t, "10s", Card{Rank: Ten, Suit: Spades}.String())
}

func TestDetectionCard(t *testing.T) {
	c, ok := Detection{CardID: 22, Confidence: 0.9}.Card()
	require.True(t, ok)
	assert.Equal(t, Ten, c.Rank)
	assert.Equal(t, Diamonds, c.Suit)
	assert.Equal(t, 0.9, c.Confidence)

	_, ok = Detection{CardID: 60}.Card()
	assert.False(t, ok)
}

func TestAlertForAction(t *testing.T) {
	assert.Equal(t, AlertNone, AlertForAction(Stand))
	assert.Equal(t, AlertHit, AlertForAction(Hit))
	assert.Equal(t, AlertDouble, AlertForAction(Double))
	assert.Equal(t, AlertSplit, AlertForAction(Split))
	assert.Equal(t, AlertSurrender, AlertForAction(Surrender))
}

func TestParseAction(t *testing.T) {
	a, err := ParseAction("double")
	require.NoError(t, err)
	assert.Equal(t, Double, a)
	a, err = ParseAction("P")
	require.NoError(t, err)
	assert.Equal(t, Split, a)
	_, err = ParseAction("fold")
	assert.Error(t, err)
}

func TestAlertTypeText(t *testing.T) {
	var a AlertType
	require.NoError(t, a.UnmarshalText([]byte("high_count")))
	assert.Equal(t, AlertHighCount, a)
	b, err := a.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "high_count", string(b))
	assert.Error(t, a.UnmarshalText([]byte("beep")))
}
