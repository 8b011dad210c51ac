package advisor

import (
	"testing"
	"time"

	"github.com/betbot/bjadvisor/internal/common"
	"github.com/betbot/bjadvisor/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	alerts []domain.AlertType
}

func (s *recordingSink) Play(a domain.AlertType) { s.alerts = append(s.alerts, a) }

func (s *recordingSink) count(a domain.AlertType) int {
	n := 0
	for _, x := range s.alerts {
		if x == a {
			n++
		}
	}
	return n
}

type memoryRecorder struct {
	decisions []domain.Decision
}

func (r *memoryRecorder) RecordDecision(d domain.Decision) { r.decisions = append(r.decisions, d) }

type fixture struct {
	adv   *Advisor
	sink  *recordingSink
	rec   *memoryRecorder
	clock *common.FakeClock
}

func newFixture(t *testing.T, deckCount int) *fixture {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DeckCount = deckCount
	f := &fixture{
		sink:  &recordingSink{},
		rec:   &memoryRecorder{},
		clock: common.NewFakeClock(time.Unix(1_700_000_000, 0)),
	}
	f.adv = New(cfg, Deps{Alerts: f.sink, Recorder: f.rec, Clock: f.clock.Now})
	return f
}

func dets(ids ...uint8) []domain.Detection {
	out := make([]domain.Detection, len(ids))
	for i, id := range ids {
		out[i] = domain.Detection{CardID: id, Confidence: 0.9}
	}
	return out
}

const (
	aceHearts  uint8 = 0
	tenSpades  uint8 = 9 + 3*13
	sevenClubs uint8 = 6 + 2*13
	aceSpades  uint8 = 3 * 13
	eightHrt   uint8 = 7
	nineHrt    uint8 = 8
)

func (f *fixture) feed(n int, ids ...uint8) {
	for i := 0; i < n; i++ {
		f.adv.ProcessFrame(dets(ids...))
	}
}

func TestEndToEndStandOnTwentyOne(t *testing.T) {
	f := newFixture(t, 6)
	f.feed(3, aceHearts, tenSpades, sevenClubs)

	require.Equal(t, []domain.AlertType{domain.AlertNone}, f.sink.alerts)
	require.Len(t, f.rec.decisions, 1)
	d := f.rec.decisions[0]
	assert.Equal(t, domain.Stand, d.Action)
	assert.Equal(t, 21, d.PlayerTotal)
	assert.Equal(t, domain.Seven, d.DealerUpcard.Rank)
	assert.Equal(t, -2, d.RunningCount)
	assert.Equal(t, 1, d.Seq)
	assert.Equal(t, 10.0, d.RecommendedBet)

	// 防抖窗口内相同的帧不再提示
	f.feed(1, aceHearts, tenSpades, sevenClubs)
	assert.Len(t, f.sink.alerts, 1)
	assert.Len(t, f.rec.decisions, 1)
	assert.Equal(t, -2, f.adv.RunningCount(), "cards are counted once per shoe")

	st := f.adv.Status()
	assert.Equal(t, 1, st.SeenByRank[0])
	assert.Equal(t, 1, st.SeenByRank[6])
	assert.Equal(t, 1, st.SeenByRank[9])
	assert.False(t, st.PenetrationReached)
}

func TestEmptyFrameHasNoSideEffects(t *testing.T) {
	f := newFixture(t, 6)
	before := f.adv.Status()
	f.adv.ProcessFrame(nil)
	after := f.adv.Status()
	assert.Equal(t, before.Phase, after.Phase)
	assert.Equal(t, before.CardsPlayed, after.CardsPlayed)
	assert.Empty(t, f.sink.alerts)
}

func TestHighCountAlertIsRateLimited(t *testing.T) {
	f := newFixture(t, 1)
	lows := []uint8{1, 2, 3, 4, 14, 15, 16, 17}

	f.feed(1, lows...)
	assert.Equal(t, 1, f.sink.count(domain.AlertHighCount))
	assert.GreaterOrEqual(t, f.adv.TrueCount(), 3.0)

	f.clock.Advance(4 * time.Second)
	f.feed(1, lows...)
	assert.Equal(t, 1, f.sink.count(domain.AlertHighCount))

	f.clock.Advance(time.Second)
	f.feed(1, lows...)
	assert.Equal(t, 2, f.sink.count(domain.AlertHighCount))
}

func TestInsuranceWhenDealerShowsAceAtHighCount(t *testing.T) {
	f := newFixture(t, 1)
	ids := []uint8{eightHrt, nineHrt, aceSpades, 1, 2, 3, 4, 14, 15, 16, 17}
	f.feed(3, ids...)

	require.Len(t, f.rec.decisions, 1)
	d := f.rec.decisions[0]
	assert.True(t, d.Insurance)
	assert.Equal(t, domain.AlertInsurance, d.Alert)
	assert.Equal(t, 1, f.sink.count(domain.AlertInsurance))
	assert.Equal(t, 0, f.sink.count(domain.AlertNone), "no action alert after insurance")
	assert.Equal(t, "INSURANCE", f.adv.Status().LastAction)
}

func TestShuffleLatchResetsEverything(t *testing.T) {
	f := newFixture(t, 1)
	for id := uint8(0); id < 12; id++ {
		f.adv.ProcessFrame(dets(id))
	}
	require.NotZero(t, f.adv.Status().CardsPlayed)
	assert.Empty(t, f.adv.Status().LastReset)

	// 离场后重复出现 -> 洗牌
	for i := 0; i < f.adv.Config().Shuffle.GoneFrames; i++ {
		f.adv.ProcessIdle()
	}
	f.clock.Advance(time.Second)
	f.adv.ProcessFrame(dets(0))
	assert.Equal(t, 1, f.sink.count(domain.AlertNewShoe))
	assert.Equal(t, domain.AlertNewShoe, f.sink.alerts[len(f.sink.alerts)-1])

	st := f.adv.Status()
	assert.Equal(t, 0, st.RunningCount)
	assert.Equal(t, 0, st.CardsPlayed)
	assert.False(t, st.ShuffleDetected)
	assert.Equal(t, "duplicate_card", st.LastReset)
	assert.Equal(t, f.clock.Now(), st.LastResetAt)
	assert.Equal(t, 1, st.ShoesFinished)
	assert.Equal(t, domain.NewShoe, f.adv.Phase())

	f.clock.Advance(2 * time.Second)
	f.adv.ProcessFrame(dets(5))
	assert.Equal(t, domain.WaitingForCards, f.adv.Phase())
	st = f.adv.Status()
	assert.Equal(t, 1, st.CardsPlayed)
	assert.Equal(t, "duplicate_card", st.LastReset, "reason survives the detector reset")
	assert.Equal(t, 2*time.Second, st.SinceLastReset)
}

func TestBriefOcclusionKeepsCount(t *testing.T) {
	f := newFixture(t, 6)
	var table []uint8
	for id := uint8(0); id < 12; id++ {
		table = append(table, id)
		f.feed(3, table...)
	}
	require.Equal(t, 12, f.adv.Status().CardsPlayed)
	require.Equal(t, 1, f.adv.RunningCount())

	// card 1 被挡住几帧后重新出现，不能当作洗牌
	hidden := append([]uint8{0}, table[2:]...)
	f.feed(3, hidden...)
	f.feed(1, table...)

	assert.Zero(t, f.sink.count(domain.AlertNewShoe))
	assert.Equal(t, 1, f.adv.RunningCount())
	assert.Equal(t, 12, f.adv.Status().CardsPlayed)
	assert.Empty(t, f.adv.Status().LastReset)
}

func TestProcessIdleDrivesAllCardsGone(t *testing.T) {
	f := newFixture(t, 6)
	var ids []uint8
	for id := uint8(0); id < 26; id++ {
		ids = append(ids, id)
	}
	f.adv.ProcessFrame(dets(ids...))

	for i := 0; i < 59; i++ {
		f.adv.ProcessIdle()
	}
	assert.Zero(t, f.sink.count(domain.AlertNewShoe))
	f.adv.ProcessIdle()
	assert.Equal(t, 1, f.sink.count(domain.AlertNewShoe))
	assert.Equal(t, 0, f.adv.Status().CardsPlayed)
}

func TestManualControls(t *testing.T) {
	f := newFixture(t, 6)
	assert.False(t, f.adv.ForceDecision(), "no cards yet")

	f.feed(3, aceHearts, tenSpades, sevenClubs)
	require.Len(t, f.rec.decisions, 1)

	assert.True(t, f.adv.ForceDecision())
	require.Len(t, f.rec.decisions, 2)
	assert.True(t, f.rec.decisions[1].Forced)

	f.adv.MarkHandComplete()
	assert.Equal(t, domain.HandComplete, f.adv.Phase())

	f.adv.NextHand()
	assert.Equal(t, domain.WaitingForCards, f.adv.Phase())
	assert.Empty(t, f.adv.Status().DealerUpcard)

	f.adv.ResetCount()
	assert.Equal(t, domain.AlertCountReset, f.sink.alerts[len(f.sink.alerts)-1])
	assert.Equal(t, ResetManual, f.adv.Status().LastReset)
	assert.Equal(t, 0, f.adv.RunningCount())
	assert.Equal(t, domain.NewShoe, f.adv.Phase())

	// 去重集合随重置清空，同一张牌可以再次计入
	f.feed(1, tenSpades)
	assert.Equal(t, -1, f.adv.RunningCount())
}

func TestBankrollDrivesRecommendedBet(t *testing.T) {
	f := newFixture(t, 1)
	f.feed(1, 1, 2, 3, 4, 14, 15, 16, 17)
	tc := f.adv.TrueCount()

	f.adv.SetBankroll(100000)
	want := 100000 * (0.005 * tc / 1.3225) * 0.25
	if want > 500 {
		want = 500
	}
	assert.InDelta(t, want, f.adv.RecommendedBet(), 1e-9)

	assert.Equal(t, 100000.0, f.adv.Status().Bankroll)
}
