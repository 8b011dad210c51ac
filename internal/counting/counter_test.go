package counting

import (
	"testing"

	"github.com/betbot/bjadvisor/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustCard(t *testing.T, id uint8) domain.Card {
	t.Helper()
	c, ok := domain.CardFromID(id)
	require.True(t, ok)
	return c
}

func TestCounterTrueCountStartsAtZero(t *testing.T) {
	c := NewCounter(6)
	assert.Equal(t, 0.0, c.TrueCount())
	assert.Equal(t, 0.0, c.Penetration())
	assert.Equal(t, 1.0, c.Confidence())
}

func TestCounterRunningAndTrueCount(t *testing.T) {
	c := NewCounter(1)
	// 2h 3h 4h 5h：RC=+4
	for id := uint8(1); id <= 4; id++ {
		c.AddCard(mustCard(t, id))
	}
	assert.Equal(t, 4, c.RunningCount())
	assert.Equal(t, 4, c.CardsPlayed())
	assert.InDelta(t, 4.0/(48.0/52.0), c.TrueCount(), 1e-9)
	assert.InDelta(t, 4.0/52.0, c.Penetration(), 1e-9)
}

func TestCounterFullShoeTrueCountIsZero(t *testing.T) {
	c := NewCounter(1)
	for id := uint8(0); id < domain.DeckSize; id++ {
		c.AddCard(mustCard(t, id))
	}
	assert.Equal(t, 0, c.RunningCount())
	assert.Equal(t, 0, c.CardsRemaining())
	assert.Equal(t, 0.0, c.TrueCount())

	// 超出整靴后剩余仍为 0，不会除零
	c.AddCard(mustCard(t, 1))
	assert.Equal(t, 1, c.RunningCount())
	assert.Equal(t, 0.0, c.TrueCount())
}

func TestCounterCountOnceDedupAndReset(t *testing.T) {
	c := NewCounter(6)
	king := mustCard(t, 12)

	assert.True(t, c.CountOnce(king))
	assert.False(t, c.CountOnce(king))
	assert.Equal(t, -1, c.RunningCount())
	assert.Equal(t, 1, c.CardsSeen(12))

	c.Reset()
	assert.Equal(t, 0, c.RunningCount())
	assert.Equal(t, 0, c.CardsSeen(12))
	assert.True(t, c.CountOnce(king), "dedup set is cleared by Reset")
}
