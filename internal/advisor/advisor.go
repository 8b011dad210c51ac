package advisor

import (
	"time"

	"github.com/betbot/bjadvisor/internal/common"
	"github.com/betbot/bjadvisor/internal/counting"
	"github.com/betbot/bjadvisor/internal/domain"
	"github.com/betbot/bjadvisor/internal/gamestate"
	"github.com/betbot/bjadvisor/internal/ports"
	"github.com/betbot/bjadvisor/internal/strategy"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "advisor")

// Config 编排器参数，构造后不可变
type Config struct {
	DeckCount int
	Shuffle   counting.ShuffleConfig
	Hand      gamestate.Config
	Strategy  strategy.Options
	Betting   strategy.BettingConfig

	HighCountThreshold float64       // 默认 +3
	HighCountInterval  time.Duration // 默认 5s
	InsuranceThreshold float64       // 默认 +3
}

// DefaultConfig 默认参数（6 副牌、S17 DAS、四分之一 Kelly）
func DefaultConfig() Config {
	return Config{
		DeckCount: 6,
		Shuffle:   counting.DefaultShuffleConfig(),
		Hand:      gamestate.DefaultConfig(),
		Strategy: strategy.Options{
			Rules:             "s17_das",
			DeviationsEnabled: true,
			Illustrious18:     true,
			Fab4:              true,
		},
		Betting: strategy.BettingConfig{
			MinBet:        10,
			MaxBet:        500,
			KellyFraction: 0.25,
			Spread:        strategy.DefaultSpread,
			Bankroll:      10000,
		},
		HighCountThreshold: 3,
		HighCountInterval:  5 * time.Second,
		InsuranceThreshold: 3,
	}
}

// ResetManual 人工重置时 Status.LastReset 的取值
const ResetManual = "manual"

// Deps 外部协作者，均可为空
type Deps struct {
	Alerts   ports.AlertSink
	Recorder ports.DecisionRecorder
	Clock    common.Clock
}

// Advisor 每帧驱动一次的决策编排器。
//
// 不做内部加锁：ProcessFrame/ProcessIdle 与人工控制必须由调用方串行化（见 session 包）。
type Advisor struct {
	cfg   Config
	clock common.Clock

	counter  *counting.Counter
	shuffle  *counting.ShuffleDetector
	tracker  *gamestate.Tracker
	strategy *strategy.BasicStrategy
	betting  *strategy.Betting

	alerts   ports.AlertSink
	recorder ports.DecisionRecorder

	highCount *common.Debouncer

	decisions    int
	shoes        int
	lastDecision domain.Decision
	hasDecision  bool
	lastAlert    domain.AlertType

	// 最近一次重置的原因（洗牌信号名或 manual）及时间，检测器重置后仍保留
	lastReset   string
	lastResetAt time.Time
}

// New 组装各组件
func New(cfg Config, deps Deps) *Advisor {
	d := DefaultConfig()
	if cfg.DeckCount <= 0 {
		cfg.DeckCount = d.DeckCount
	}
	cfg.Shuffle.DeckCount = cfg.DeckCount
	if cfg.HighCountThreshold == 0 {
		cfg.HighCountThreshold = d.HighCountThreshold
	}
	if cfg.HighCountInterval <= 0 {
		cfg.HighCountInterval = d.HighCountInterval
	}
	if cfg.InsuranceThreshold == 0 {
		cfg.InsuranceThreshold = d.InsuranceThreshold
	}

	clock := deps.Clock.OrSystem()
	a := &Advisor{
		cfg:       cfg,
		clock:     clock,
		counter:   counting.NewCounter(cfg.DeckCount),
		shuffle:   counting.NewShuffleDetector(cfg.Shuffle, clock),
		tracker:   gamestate.New(cfg.Hand, clock),
		strategy:  strategy.New(cfg.Strategy),
		betting:   strategy.NewBetting(cfg.Betting),
		alerts:    deps.Alerts,
		recorder:  deps.Recorder,
		highCount: common.NewDebouncer(cfg.HighCountInterval, clock),
		lastAlert: domain.AlertNone,
	}
	log.Infof("实时建议器已就绪: %d 副牌, 规则 %s, 偏离规则 %d 条",
		cfg.DeckCount, a.strategy.Rules(), len(a.strategy.Deviations()))
	return a
}

// ProcessFrame 处理一帧检测结果。空帧直接返回，不产生任何副作用（空帧请走 ProcessIdle）。
func (a *Advisor) ProcessFrame(detections []domain.Detection) {
	if len(detections) == 0 {
		return
	}

	a.tracker.UpdateDetectedCards(detections)
	for _, det := range detections {
		card, ok := det.Card()
		if !ok {
			log.Debugf("忽略非法 card_id=%d", det.CardID)
			continue
		}
		a.counter.CountOnce(card)
	}
	a.shuffle.Update(detections)
	if a.handleShuffle() {
		return
	}

	if a.tracker.ShouldProcessDecision() {
		a.makeDecision(false)
	}
	a.checkHighCount()
}

// ProcessIdle 没有检测结果的帧：只推进洗牌检测的空帧计数和长停顿判断
func (a *Advisor) ProcessIdle() {
	a.shuffle.Update(nil)
	a.handleShuffle()
}

// handleShuffle 洗牌锁存后重置计数、检测器和牌局，并发出新牌靴提示
func (a *Advisor) handleShuffle() bool {
	if !a.shuffle.IsShuffleDetected() {
		return false
	}
	indicator := a.shuffle.LastIndicator()
	log.WithFields(logrus.Fields{
		"indicator":     indicator.String(),
		"running_count": a.counter.RunningCount(),
		"cards_played":  a.counter.CardsPlayed(),
	}).Info("检测到洗牌，自动重置")

	a.resetShoe(false)
	a.lastReset, a.lastResetAt = indicator.String(), a.clock()
	a.emit(domain.AlertNewShoe)
	return true
}

func (a *Advisor) resetShoe(manual bool) {
	a.counter.Reset()
	if manual {
		a.shuffle.ForceReset()
	} else {
		a.shuffle.Reset()
	}
	a.tracker.ResetForNewShoe()
	a.highCount.Reset()
	a.shoes++
}

func (a *Advisor) makeDecision(forced bool) bool {
	hand, ok := a.tracker.ActiveHand()
	dealer, hasDealer := a.tracker.DealerUpcard()
	if !ok || len(hand.Cards) < 2 || !hasDealer {
		log.Warn("缺少玩家手牌或庄家明牌，跳过决策")
		return false
	}

	tc := a.counter.TrueCount()
	d := domain.Decision{
		HandIndex:    hand.Index,
		PlayerCards:  append([]domain.Card(nil), hand.Cards...),
		PlayerTotal:  hand.Total,
		IsSoft:       hand.IsSoft,
		DealerUpcard: dealer,
		RunningCount: a.counter.RunningCount(),
		TrueCount:    tc,
		Forced:       forced,
		At:           a.clock(),
	}

	if dealer.Rank == domain.Ace && tc >= a.cfg.InsuranceThreshold {
		d.Insurance = true
		d.Alert = domain.AlertInsurance
		log.Infof("建议: 买保险 (TC=%.1f)", tc)
	} else {
		d.Action = a.strategy.Decide(hand, dealer.Rank, tc)
		d.Alert = domain.AlertForAction(d.Action)
		log.WithFields(logrus.Fields{
			"hand":   hand.String(),
			"dealer": dealer.String(),
			"rc":     d.RunningCount,
			"tc":     tc,
		}).Infof("建议: %s", d.Action)
	}
	d.RecommendedBet = a.betting.CalculateBet(tc, a.betting.Bankroll())
	d.CamouflageBet = a.betting.CamouflageBet(tc)

	a.decisions++
	d.Seq = a.decisions
	a.lastDecision, a.hasDecision = d, true

	a.emit(d.Alert)
	if a.recorder != nil {
		a.recorder.RecordDecision(d)
	}
	a.tracker.CompleteCurrentHand()
	return true
}

func (a *Advisor) checkHighCount() {
	tc := a.counter.TrueCount()
	if tc < a.cfg.HighCountThreshold {
		return
	}
	if a.highCount.TryMark() {
		log.Infof("高真数 TC=%.1f，考虑加注", tc)
		a.emit(domain.AlertHighCount)
	}
}

func (a *Advisor) emit(alert domain.AlertType) {
	a.lastAlert = alert
	if a.alerts != nil {
		a.alerts.Play(alert)
	}
}

// ResetCount 人工重置：清零计数、洗牌检测和牌局，发出 CountReset
func (a *Advisor) ResetCount() {
	log.Info("人工重置计数")
	a.resetShoe(true)
	a.lastReset, a.lastResetAt = ResetManual, a.clock()
	a.emit(domain.AlertCountReset)
}

// NextHand 分牌后还有下一手则切换，否则开始新的一手
func (a *Advisor) NextHand() {
	if a.tracker.HasMoreHands() {
		a.tracker.AdvanceToNextHand()
		return
	}
	a.tracker.StartNewHand()
}

// ForceDecision 跳过防抖和重复决策闸门，但仍要求手牌和庄家明牌齐全
func (a *Advisor) ForceDecision() bool {
	if !a.tracker.HasDecisionInputs() {
		log.Warn("强制决策失败: 牌不完整")
		return false
	}
	return a.makeDecision(true)
}

// MarkHandComplete 人工标记本手结束
func (a *Advisor) MarkHandComplete() { a.tracker.MarkHandComplete() }

// ResumeFrom 续接已恢复的会话：之后的决策编号从 lastSeq+1 开始
func (a *Advisor) ResumeFrom(lastSeq int) {
	if lastSeq > a.decisions {
		a.decisions = lastSeq
	}
}

// SetBankroll 设置资金（影响之后的 Kelly 注码）
func (a *Advisor) SetBankroll(v float64) { a.betting.SetBankroll(v) }
