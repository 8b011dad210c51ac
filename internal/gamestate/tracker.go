package gamestate

import (
	"time"

	"github.com/betbot/bjadvisor/internal/common"
	"github.com/betbot/bjadvisor/internal/domain"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "gamestate")

// Config 状态机参数
type Config struct {
	StabilityFrames  int           // 连续出现多少帧才算稳定，默认 3
	DecisionDebounce time.Duration // 两次决策的最小间隔，默认 1s
}

// DefaultConfig 默认参数
func DefaultConfig() Config {
	return Config{StabilityFrames: 3, DecisionDebounce: time.Second}
}

type stability struct {
	card   domain.Card
	frames int
}

// Tracker 单手牌状态机。
//
// 阶段：WaitingForCards -> PlayerTurn -> HandComplete；重置整靴时经过 NewShoe 回到 WaitingForCards。
// 牌的归属按首次出现顺序：前两张稳定的牌给玩家，第三张为庄家明牌。
// 不是并发安全的，调用方负责串行化。
type Tracker struct {
	cfg   Config
	clock common.Clock

	phase  domain.GamePhase
	hands  []domain.Hand
	active int

	dealer    domain.Card
	hasDealer bool

	order  []uint8 // 首次出现顺序
	stable map[uint8]*stability

	decisionMade bool
	debounce     *common.Debouncer
	lastUpdate   time.Time
}

// New 创建状态机，clock 为 nil 时使用系统时钟
func New(cfg Config, clock common.Clock) *Tracker {
	d := DefaultConfig()
	if cfg.StabilityFrames <= 0 {
		cfg.StabilityFrames = d.StabilityFrames
	}
	if cfg.DecisionDebounce < 0 {
		cfg.DecisionDebounce = d.DecisionDebounce
	}
	clock = clock.OrSystem()
	t := &Tracker{
		cfg:        cfg,
		clock:      clock,
		debounce:   common.NewDebouncer(cfg.DecisionDebounce, clock),
		lastUpdate: clock(),
	}
	t.reset()
	return t
}

func (t *Tracker) reset() {
	t.hands = []domain.Hand{{Index: 0}}
	t.active = 0
	t.dealer = domain.Card{}
	t.hasDealer = false
	t.order = t.order[:0]
	t.stable = make(map[uint8]*stability)
	t.phase = domain.WaitingForCards
	t.decisionMade = false
}

// StartNewHand 清空手牌、庄家明牌和稳定计数，回到 WaitingForCards
func (t *Tracker) StartNewHand() {
	log.Info("开始新的一手")
	t.reset()
}

// ResetForNewShoe 清空一切并进入 NewShoe；下一次 UpdateDetectedCards 时回到 WaitingForCards
func (t *Tracker) ResetForNewShoe() {
	log.Info("新牌靴，重置牌局状态")
	t.reset()
	t.phase = domain.NewShoe
}

// UpdateDetectedCards 喂入一帧检测结果
func (t *Tracker) UpdateDetectedCards(detections []domain.Detection) {
	t.lastUpdate = t.clock()
	if t.phase == domain.NewShoe {
		t.phase = domain.WaitingForCards
	}

	present := make(map[uint8]struct{}, len(detections))
	for _, det := range detections {
		card, ok := det.Card()
		if !ok {
			continue
		}
		if _, dup := present[det.CardID]; dup {
			continue
		}
		present[det.CardID] = struct{}{}

		s, ok := t.stable[det.CardID]
		if !ok {
			s = &stability{card: card}
			t.stable[det.CardID] = s
			t.order = append(t.order, det.CardID)
		}
		s.frames++
	}
	for id, s := range t.stable {
		if _, ok := present[id]; !ok {
			s.frames = 0
		}
	}

	if t.phase != domain.WaitingForCards {
		return
	}
	stable := t.StableCards()
	if len(stable) < 3 {
		return
	}

	t.hands[0] = domain.NewHand(0, stable[0], stable[1])
	t.dealer, t.hasDealer = stable[2], true
	t.active = 0
	t.phase = domain.PlayerTurn
	t.decisionMade = false

	log.WithFields(logrus.Fields{
		"hand":   t.hands[0].String(),
		"dealer": t.dealer.String(),
	}).Info("首发牌已识别，轮到玩家")
}

// StableCards 当前稳定的牌，按首次出现顺序
func (t *Tracker) StableCards() []domain.Card {
	var out []domain.Card
	for _, id := range t.order {
		if s := t.stable[id]; s.frames >= t.cfg.StabilityFrames {
			out = append(out, s.card)
		}
	}
	return out
}

// Phase 当前阶段
func (t *Tracker) Phase() domain.GamePhase { return t.phase }

// ActiveHand 当前手牌
func (t *Tracker) ActiveHand() (domain.Hand, bool) {
	if t.active < 0 || t.active >= len(t.hands) {
		return domain.Hand{}, false
	}
	return t.hands[t.active], true
}

// Hands 全部手牌（拷贝）
func (t *Tracker) Hands() []domain.Hand {
	return append([]domain.Hand(nil), t.hands...)
}

// ActiveIndex 当前手牌序号
func (t *Tracker) ActiveIndex() int { return t.active }

// DealerUpcard 庄家明牌
func (t *Tracker) DealerUpcard() (domain.Card, bool) { return t.dealer, t.hasDealer }

// InitialCardsDetected 首手至少两张牌且庄家明牌已知
func (t *Tracker) InitialCardsDetected() bool {
	return len(t.hands) > 0 && len(t.hands[0].Cards) >= 2 && t.hasDealer
}

// HasDecisionInputs 当前手牌和庄家明牌是否都已就绪（强制决策也需要满足）
func (t *Tracker) HasDecisionInputs() bool {
	h, ok := t.ActiveHand()
	return ok && len(h.Cards) >= 2 && t.hasDealer
}

// ShouldProcessDecision PlayerTurn、牌已就绪、本手尚未决策且距上次决策超过防抖间隔
func (t *Tracker) ShouldProcessDecision() bool {
	if t.phase != domain.PlayerTurn {
		return false
	}
	if !t.InitialCardsDetected() || !t.HasDecisionInputs() {
		return false
	}
	if t.decisionMade {
		return false
	}
	ready, _ := t.debounce.Ready()
	return ready
}

// DecisionMade 当前手牌是否已决策
func (t *Tracker) DecisionMade() bool { return t.decisionMade }

// CompleteCurrentHand 标记当前手牌已决策并记录时间
func (t *Tracker) CompleteCurrentHand() {
	if t.active >= 0 && t.active < len(t.hands) {
		t.hands[t.active].IsCompleted = true
	}
	t.decisionMade = true
	t.debounce.Mark()
}

// HasMoreHands 分牌后是否还有下一手
func (t *Tracker) HasMoreHands() bool { return t.active+1 < len(t.hands) }

// AdvanceToNextHand 切到下一手；没有则进入 HandComplete
func (t *Tracker) AdvanceToNextHand() {
	if !t.HasMoreHands() {
		t.phase = domain.HandComplete
		return
	}
	t.active++
	t.decisionMade = false
	log.Infof("切换到分牌后的第 %d 手", t.active+1)
}

// AddSplitHand 分牌后追加一手。核心流程不会调用它，由能判断牌归属的上层填充。
func (t *Tracker) AddSplitHand(cards ...domain.Card) int {
	idx := len(t.hands)
	t.hands = append(t.hands, domain.NewHand(idx, cards...))
	return idx
}

// MarkHandComplete 人工标记本手结束
func (t *Tracker) MarkHandComplete() {
	log.Info("人工标记本手结束")
	t.phase = domain.HandComplete
}

// TimeSinceLastUpdate 距上一次 UpdateDetectedCards 的时长
func (t *Tracker) TimeSinceLastUpdate() time.Duration {
	return t.clock().Sub(t.lastUpdate)
}

// LastDecisionAt 上一次决策时间（零值表示还没有）
func (t *Tracker) LastDecisionAt() time.Time { return t.debounce.Last() }
