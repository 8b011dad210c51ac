package advisor

import (
	"time"

	"github.com/betbot/bjadvisor/internal/domain"
)

// Status 只读状态快照，供状态栏、TUI 和 HTTP 使用
type Status struct {
	Phase          string  `json:"phase"`
	RunningCount   int     `json:"running_count"`
	TrueCount      float64 `json:"true_count"`
	Penetration    float64 `json:"penetration"`
	DecksRemaining float64 `json:"decks_remaining"`
	CardsPlayed    int     `json:"cards_played"`
	Confidence     float64 `json:"confidence"`
	// SeenByRank 本靴已计入的张数，下标 0 为 A，12 为 K
	SeenByRank [13]int `json:"seen_by_rank"`

	RecommendedBet float64 `json:"recommended_bet"`
	CamouflageBet  float64 `json:"camouflage_bet"`
	Bankroll       float64 `json:"bankroll"`

	PlayerHand   string `json:"player_hand,omitempty"`
	PlayerTotal  int    `json:"player_total,omitempty"`
	DealerUpcard string `json:"dealer_upcard,omitempty"`
	HandIndex    int    `json:"hand_index"`
	HandCount    int    `json:"hand_count"`

	LastAction    string `json:"last_action,omitempty"`
	LastAlert     string `json:"last_alert"`
	Decisions     int    `json:"decisions"`
	ShoesFinished int    `json:"shoes_finished"`

	ShuffleDetected      bool          `json:"shuffle_detected"`
	ShuffleIndicator     string        `json:"shuffle_indicator"`
	InventoryPenetration float64       `json:"inventory_penetration"`
	PenetrationReached   bool          `json:"penetration_reached"`
	LastReset            string        `json:"last_reset,omitempty"` // 洗牌信号名或 manual
	LastResetAt          time.Time     `json:"last_reset_at"`
	SinceLastReset       time.Duration `json:"since_last_reset"`
	SinceLastCard        time.Duration `json:"since_last_card"`
	SinceLastFrame       time.Duration `json:"since_last_frame"`
	HighCountThreshold   float64       `json:"high_count_threshold"`
}

// Status 当前快照
func (a *Advisor) Status() Status {
	tc := a.counter.TrueCount()
	s := Status{
		Phase:                a.tracker.Phase().String(),
		RunningCount:         a.counter.RunningCount(),
		TrueCount:            tc,
		Penetration:          a.counter.Penetration(),
		DecksRemaining:       a.counter.DecksRemaining(),
		CardsPlayed:          a.counter.CardsPlayed(),
		Confidence:           a.counter.Confidence(),
		RecommendedBet:       a.betting.CalculateBet(tc, a.betting.Bankroll()),
		CamouflageBet:        a.betting.CamouflageBet(tc),
		Bankroll:             a.betting.Bankroll(),
		HandIndex:            a.tracker.ActiveIndex(),
		HandCount:            len(a.tracker.Hands()),
		LastAlert:            a.lastAlert.String(),
		Decisions:            a.decisions,
		ShoesFinished:        a.shoes,
		ShuffleDetected:      a.shuffle.IsShuffleDetected(),
		ShuffleIndicator:     a.shuffle.LastIndicator().String(),
		InventoryPenetration: a.shuffle.Penetration(),
		PenetrationReached:   a.shuffle.PenetrationLimitReached(),
		SinceLastCard:        a.shuffle.TimeSinceLastCard(),
		SinceLastFrame:       a.tracker.TimeSinceLastUpdate(),
		HighCountThreshold:   a.cfg.HighCountThreshold,
	}
	if a.lastReset != "" {
		s.LastReset = a.lastReset
		s.LastResetAt = a.lastResetAt
		s.SinceLastReset = a.clock().Sub(a.lastResetAt)
	}
	for id := uint8(0); id < domain.DeckSize; id++ {
		if c, ok := domain.CardFromID(id); ok {
			s.SeenByRank[c.Rank-domain.Ace] += a.counter.CardsSeen(id)
		}
	}
	if h, ok := a.tracker.ActiveHand(); ok && len(h.Cards) > 0 {
		s.PlayerHand = h.String()
		s.PlayerTotal = h.Total
	}
	if d, ok := a.tracker.DealerUpcard(); ok {
		s.DealerUpcard = d.String()
	}
	if a.hasDecision {
		if a.lastDecision.Insurance {
			s.LastAction = "INSURANCE"
		} else {
			s.LastAction = a.lastDecision.Action.String()
		}
	}
	return s
}

// LastDecision 最近一次建议
func (a *Advisor) LastDecision() (domain.Decision, bool) { return a.lastDecision, a.hasDecision }

// RunningCount 当前 running count
func (a *Advisor) RunningCount() int { return a.counter.RunningCount() }

// TrueCount 当前 true count
func (a *Advisor) TrueCount() float64 { return a.counter.TrueCount() }

// Penetration 已发牌比例
func (a *Advisor) Penetration() float64 { return a.counter.Penetration() }

// RecommendedBet 以当前真数和资金计算的下一手注码
func (a *Advisor) RecommendedBet() float64 {
	return a.betting.CalculateBet(a.counter.TrueCount(), a.betting.Bankroll())
}

// Phase 当前牌局阶段
func (a *Advisor) Phase() domain.GamePhase { return a.tracker.Phase() }

// Config 构造时的参数
func (a *Advisor) Config() Config { return a.cfg }
