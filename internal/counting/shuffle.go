package counting

import (
	"time"

	"github.com/betbot/bjadvisor/internal/common"
	"github.com/betbot/bjadvisor/internal/domain"
	"github.com/sirupsen/logrus"
)

// ShuffleIndicator 触发洗牌判定的信号
type ShuffleIndicator int

const (
	IndicatorNone ShuffleIndicator = iota
	IndicatorCardDepletion
	IndicatorPenetrationReached
	IndicatorLongPause
	IndicatorAllCardsGone
	IndicatorDuplicateCard
)

func (s ShuffleIndicator) String() string {
	switch s {
	case IndicatorCardDepletion:
		return "card_depletion"
	case IndicatorPenetrationReached:
		return "penetration_reached"
	case IndicatorLongPause:
		return "long_pause"
	case IndicatorAllCardsGone:
		return "all_cards_gone"
	case IndicatorDuplicateCard:
		return "duplicate_card"
	}
	return "none"
}

// ShuffleConfig 洗牌检测参数
type ShuffleConfig struct {
	DeckCount            int
	PenetrationLimit     float64       // 默认 0.75
	MinCardsBeforeChecks int           // 默认 26，渗透率/停顿/空帧检查的最低已见张数
	InactivityThreshold  time.Duration // 默认 30s
	EmptyFramesThreshold int           // 默认 60（30fps 约 2 秒）
	RecentWindow         int           // 最近出现记录的容量，默认 20
	DuplicateWarmup      int           // 重复牌检查前至少观察到的出现次数，默认 10
	GoneFrames           int           // 连续缺席多少帧视为离场，默认 30（30fps 约 1 秒），短暂遮挡不算离场
}

// DefaultShuffleConfig 默认参数
func DefaultShuffleConfig() ShuffleConfig {
	return ShuffleConfig{
		DeckCount:            6,
		PenetrationLimit:     0.75,
		MinCardsBeforeChecks: 26,
		InactivityThreshold:  30 * time.Second,
		EmptyFramesThreshold: 60,
		RecentWindow:         20,
		DuplicateWarmup:      10,
		GoneFrames:           30,
	}
}

func (c ShuffleConfig) withDefaults() ShuffleConfig {
	d := DefaultShuffleConfig()
	if c.DeckCount <= 0 {
		c.DeckCount = d.DeckCount
	}
	if c.PenetrationLimit <= 0 {
		c.PenetrationLimit = d.PenetrationLimit
	}
	if c.MinCardsBeforeChecks <= 0 {
		c.MinCardsBeforeChecks = d.MinCardsBeforeChecks
	}
	if c.InactivityThreshold <= 0 {
		c.InactivityThreshold = d.InactivityThreshold
	}
	if c.EmptyFramesThreshold <= 0 {
		c.EmptyFramesThreshold = d.EmptyFramesThreshold
	}
	if c.RecentWindow <= 0 {
		c.RecentWindow = d.RecentWindow
	}
	if c.DuplicateWarmup <= 0 {
		c.DuplicateWarmup = d.DuplicateWarmup
	}
	if c.GoneFrames <= 0 {
		c.GoneFrames = d.GoneFrames
	}
	return c
}

// ShuffleDetector 多信号洗牌检测。任一信号触发后锁存，直到 Reset/ForceReset。
type ShuffleDetector struct {
	cfg   ShuffleConfig
	clock common.Clock

	inventory *Inventory
	firstSeen map[uint8]struct{} // 库存按 card_id 首次出现计数，随 Reset 清空

	// 出现记录：某张牌离场 GoneFrames 帧后再次出现才算一次新的出现
	recent  []uint8
	absent  map[uint8]int // card_id -> 连续缺席帧数
	visible map[uint8]bool

	lastCardAt       time.Time
	consecutiveEmpty int
	detected         bool
	indicator        ShuffleIndicator
}

// NewShuffleDetector 创建检测器，clock 为 nil 时使用系统时钟
func NewShuffleDetector(cfg ShuffleConfig, clock common.Clock) *ShuffleDetector {
	cfg = cfg.withDefaults()
	s := &ShuffleDetector{
		cfg:       cfg,
		clock:     clock.OrSystem(),
		inventory: NewInventory(cfg.DeckCount),
	}
	s.Reset()
	log.Infof("洗牌检测初始化: %d 副牌, 渗透率上限 %.0f%%", cfg.DeckCount, cfg.PenetrationLimit*100)
	return s
}

// Reset 清空库存、锁存状态和出现记录
func (s *ShuffleDetector) Reset() {
	s.inventory.Reset()
	s.firstSeen = make(map[uint8]struct{})
	s.recent = s.recent[:0]
	s.absent = make(map[uint8]int)
	s.visible = make(map[uint8]bool)
	s.consecutiveEmpty = 0
	s.detected = false
	s.indicator = IndicatorNone
	s.lastCardAt = s.clock()
}

// ForceReset 人工覆盖，等同 Reset
func (s *ShuffleDetector) ForceReset() {
	log.Info("人工重置洗牌检测")
	s.Reset()
}

// Update 每帧调用一次（空帧也要调用，空帧计数和长停顿依赖它）
func (s *ShuffleDetector) Update(detections []domain.Detection) {
	now := s.clock()
	if len(detections) > 0 {
		s.lastCardAt = now
		s.consecutiveEmpty = 0
	} else {
		s.consecutiveEmpty++
	}

	present := make(map[uint8]bool, len(detections))
	for _, det := range detections {
		id := det.CardID
		if id >= domain.DeckSize {
			continue
		}
		present[id] = true

		if _, ok := s.firstSeen[id]; !ok {
			s.firstSeen[id] = struct{}{}
			s.inventory.Add(id)
		}

		if !s.visible[id] {
			s.visible[id] = true
			s.checkDuplicate(id)
			s.pushRecent(id)
		}
		s.absent[id] = 0
	}

	for id := range s.visible {
		if present[id] {
			continue
		}
		s.absent[id]++
		if s.absent[id] >= s.cfg.GoneFrames {
			delete(s.visible, id)
			delete(s.absent, id)
		}
	}

	s.checkDepletion()
	s.checkPenetration()
	s.checkInactivity(now)
	s.checkDisappearance()
}

func (s *ShuffleDetector) pushRecent(id uint8) {
	s.recent = append(s.recent, id)
	if over := len(s.recent) - s.cfg.RecentWindow; over > 0 {
		s.recent = append(s.recent[:0], s.recent[over:]...)
	}
}

func (s *ShuffleDetector) enoughCards() bool {
	return s.inventory.TotalSeen() >= s.cfg.MinCardsBeforeChecks
}

func (s *ShuffleDetector) checkDuplicate(id uint8) {
	if len(s.recent) < s.cfg.DuplicateWarmup {
		return
	}
	for _, seen := range s.recent {
		if seen == id {
			log.Warnf("重复牌: card_id=%d 在近期记录中再次出现", id)
			s.trigger(IndicatorDuplicateCard)
			return
		}
	}
}

func (s *ShuffleDetector) checkDepletion() {
	if s.inventory.IsImpossible() {
		log.Warn("牌数不可能: 库存超出整靴上限")
		s.trigger(IndicatorCardDepletion)
	}
}

func (s *ShuffleDetector) checkPenetration() {
	if !s.enoughCards() {
		return
	}
	if s.inventory.ReachedPenetration(s.cfg.PenetrationLimit) {
		s.trigger(IndicatorPenetrationReached)
	}
}

func (s *ShuffleDetector) checkInactivity(now time.Time) {
	if !s.enoughCards() {
		return
	}
	if now.Sub(s.lastCardAt) >= s.cfg.InactivityThreshold {
		s.trigger(IndicatorLongPause)
	}
}

func (s *ShuffleDetector) checkDisappearance() {
	if s.consecutiveEmpty < s.cfg.EmptyFramesThreshold {
		return
	}
	if s.enoughCards() {
		s.trigger(IndicatorAllCardsGone)
	}
	// 清零避免每帧重复触发
	s.consecutiveEmpty = 0
}

func (s *ShuffleDetector) trigger(ind ShuffleIndicator) {
	if s.detected {
		return
	}
	s.detected = true
	s.indicator = ind
	log.WithFields(logrus.Fields{
		"indicator":   ind.String(),
		"cards_seen":  s.inventory.TotalSeen(),
		"penetration": s.inventory.Penetration(),
	}).Info("检测到洗牌，需要重置计数")
}

// IsShuffleDetected 是否已锁存
func (s *ShuffleDetector) IsShuffleDetected() bool { return s.detected }

// LastIndicator 锁存的信号
func (s *ShuffleDetector) LastIndicator() ShuffleIndicator { return s.indicator }

// Penetration 库存渗透率
func (s *ShuffleDetector) Penetration() float64 { return s.inventory.Penetration() }

// PenetrationLimitReached 是否已达渗透率上限（不考虑最低张数门槛）
func (s *ShuffleDetector) PenetrationLimitReached() bool {
	return s.inventory.ReachedPenetration(s.cfg.PenetrationLimit)
}

// TimeSinceLastCard 距上一个非空帧的时长
func (s *ShuffleDetector) TimeSinceLastCard() time.Duration {
	return s.clock().Sub(s.lastCardAt)
}

// Inventory 只读访问库存（测试与状态展示用）
func (s *ShuffleDetector) Inventory() *Inventory { return s.inventory }
