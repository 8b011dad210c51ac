package counting

import (
	"testing"
	"time"

	"github.com/betbot/bjadvisor/internal/common"
	"github.com/betbot/bjadvisor/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frame(ids ...uint8) []domain.Detection {
	out := make([]domain.Detection, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.Detection{CardID: id, Confidence: 0.9})
	}
	return out
}

func idRange(from, to uint8) []uint8 {
	var ids []uint8
	for id := from; id < to; id++ {
		ids = append(ids, id)
	}
	return ids
}

// offTable 连续 n 个空帧，让桌上的牌全部离场
func offTable(s *ShuffleDetector, n int) {
	for i := 0; i < n; i++ {
		s.Update(nil)
	}
}

func newDetector(cfg ShuffleConfig) (*ShuffleDetector, *common.FakeClock) {
	clk := common.NewFakeClock(time.Unix(1_700_000_000, 0))
	return NewShuffleDetector(cfg, clk.Now), clk
}

func TestInventoryIsImpossible(t *testing.T) {
	inv := NewInventory(2)
	assert.False(t, inv.IsImpossible())

	inv.Add(5)
	inv.Add(5)
	assert.False(t, inv.IsImpossible(), "count == deck_count is still possible")
	inv.Add(5)
	assert.True(t, inv.IsImpossible(), "count > deck_count")

	inv.Reset()
	for i := 0; i < 2; i++ {
		for id := uint8(0); id < domain.DeckSize; id++ {
			inv.Add(id)
		}
	}
	assert.Equal(t, 104, inv.TotalSeen())
	assert.False(t, inv.IsImpossible())
	assert.Equal(t, 1.0, inv.Penetration())

	assert.False(t, inv.Add(52))
}

func TestInventoryTotalOverCapacity(t *testing.T) {
	inv := &Inventory{DeckCount: 0}
	inv.Add(1)
	assert.True(t, inv.IsImpossible())
}

func TestShuffleDetectorPenetration(t *testing.T) {
	s, _ := newDetector(ShuffleConfig{DeckCount: 1})

	s.Update(frame(idRange(0, 38)...))
	assert.False(t, s.IsShuffleDetected(), "38/52 is below the limit")

	s.Update(frame(idRange(0, 39)...))
	require.True(t, s.IsShuffleDetected())
	assert.Equal(t, IndicatorPenetrationReached, s.LastIndicator())
}

func TestShuffleDetectorInventoryCountsFirstSeenOnly(t *testing.T) {
	s, _ := newDetector(ShuffleConfig{DeckCount: 1})
	for i := 0; i < 10; i++ {
		s.Update(frame(1, 2, 3))
	}
	assert.Equal(t, 3, s.Inventory().TotalSeen())
	assert.False(t, s.IsShuffleDetected())
}

func TestShuffleDetectorLongPause(t *testing.T) {
	s, clk := newDetector(DefaultShuffleConfig())
	s.Update(frame(idRange(0, 26)...))
	require.False(t, s.IsShuffleDetected())

	clk.Advance(29 * time.Second)
	s.Update(nil)
	assert.False(t, s.IsShuffleDetected())

	clk.Advance(time.Second)
	s.Update(nil)
	require.True(t, s.IsShuffleDetected())
	assert.Equal(t, IndicatorLongPause, s.LastIndicator())
}

func TestShuffleDetectorLongPauseNeedsMinimumCards(t *testing.T) {
	s, clk := newDetector(DefaultShuffleConfig())
	s.Update(frame(idRange(0, 25)...))
	clk.Advance(time.Minute)
	s.Update(nil)
	assert.False(t, s.IsShuffleDetected())
}

func TestShuffleDetectorAllCardsGone(t *testing.T) {
	cfg := DefaultShuffleConfig()
	cfg.InactivityThreshold = time.Hour
	s, _ := newDetector(cfg)
	s.Update(frame(idRange(0, 26)...))

	for i := 0; i < 59; i++ {
		s.Update(nil)
	}
	assert.False(t, s.IsShuffleDetected())
	s.Update(nil)
	require.True(t, s.IsShuffleDetected())
	assert.Equal(t, IndicatorAllCardsGone, s.LastIndicator())
}

func TestShuffleDetectorEmptyFramesWithoutCardsDoNotTrigger(t *testing.T) {
	s, _ := newDetector(DefaultShuffleConfig())
	for i := 0; i < 200; i++ {
		s.Update(nil)
	}
	assert.False(t, s.IsShuffleDetected())
}

func TestShuffleDetectorDuplicateCard(t *testing.T) {
	s, _ := newDetector(DefaultShuffleConfig())
	// 12 张牌依次出现后离场
	for id := uint8(0); id < 12; id++ {
		s.Update(frame(id))
	}
	require.False(t, s.IsShuffleDetected())

	// card 0 离场满 GoneFrames 帧后再次出现即为重复
	offTable(s, DefaultShuffleConfig().GoneFrames)
	s.Update(frame(0))
	require.True(t, s.IsShuffleDetected())
	assert.Equal(t, IndicatorDuplicateCard, s.LastIndicator())
}

func TestShuffleDetectorPersistentCardIsNotDuplicate(t *testing.T) {
	s, _ := newDetector(DefaultShuffleConfig())
	for i := 0; i < 100; i++ {
		s.Update(frame(0, 9, 19))
	}
	assert.False(t, s.IsShuffleDetected())
}

func TestShuffleDetectorBriefOcclusionIsNotDuplicate(t *testing.T) {
	s, _ := newDetector(DefaultShuffleConfig())
	// 12 张牌逐张上桌，每张稳定 3 帧
	for n := uint8(1); n <= 12; n++ {
		for i := 0; i < 3; i++ {
			s.Update(frame(idRange(0, n)...))
		}
	}
	require.Equal(t, 12, s.Inventory().TotalSeen())

	// card 1 被手挡住不到 GoneFrames 帧后重新出现
	others := append([]uint8{0}, idRange(2, 12)...)
	for i := 0; i < DefaultShuffleConfig().GoneFrames-1; i++ {
		s.Update(frame(others...))
	}
	s.Update(frame(idRange(0, 12)...))
	assert.False(t, s.IsShuffleDetected())
	assert.Equal(t, 12, s.Inventory().TotalSeen())
}

func TestShuffleDetectorDuplicateNeedsWarmup(t *testing.T) {
	s, _ := newDetector(DefaultShuffleConfig())
	for id := uint8(0); id < 5; id++ {
		s.Update(frame(id))
	}
	offTable(s, DefaultShuffleConfig().GoneFrames)
	s.Update(frame(0))
	assert.False(t, s.IsShuffleDetected())
}

func TestShuffleDetectorLatchHoldsUntilReset(t *testing.T) {
	s, clk := newDetector(ShuffleConfig{DeckCount: 1})
	for id := uint8(0); id < 12; id++ {
		s.Update(frame(id))
	}
	offTable(s, DefaultShuffleConfig().GoneFrames)
	s.Update(frame(0))
	require.Equal(t, IndicatorDuplicateCard, s.LastIndicator())

	// 之后再满足渗透率和长停顿条件，锁存的信号不变
	s.Update(frame(idRange(0, 52)...))
	clk.Advance(time.Hour)
	s.Update(nil)
	assert.True(t, s.IsShuffleDetected())
	assert.Equal(t, IndicatorDuplicateCard, s.LastIndicator())

	s.ForceReset()
	assert.False(t, s.IsShuffleDetected())
	assert.Equal(t, IndicatorNone, s.LastIndicator())
	assert.Equal(t, 0, s.Inventory().TotalSeen())
}
