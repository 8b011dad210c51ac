package recorder

import (
	"strings"
	"time"

	"github.com/betbot/bjadvisor/internal/domain"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Outcome 一手牌的结算结果
type Outcome string

const (
	OutcomePending   Outcome = ""
	OutcomeWin       Outcome = "win"
	OutcomeLoss      Outcome = "loss"
	OutcomePush      Outcome = "push"
	OutcomeBlackjack Outcome = "blackjack"
	OutcomeSurrender Outcome = "surrender"
)

// ParseOutcome 解析结算结果
func ParseOutcome(s string) (Outcome, error) {
	switch o := Outcome(strings.ToLower(strings.TrimSpace(s))); o {
	case OutcomeWin, OutcomeLoss, OutcomePush, OutcomeBlackjack, OutcomeSurrender:
		return o, nil
	}
	return OutcomePending, errors.Errorf("unknown outcome %q", s)
}

// Won 是否计为赢（含 blackjack）
func (o Outcome) Won() bool { return o == OutcomeWin || o == OutcomeBlackjack }

// Lost 是否计为输（含投降）
func (o Outcome) Lost() bool { return o == OutcomeLoss || o == OutcomeSurrender }

// HandRecord 一次决策及其结算
type HandRecord struct {
	ID           string          `json:"id"`
	SessionID    string          `json:"session_id"`
	HandNumber   int             `json:"hand_number"`
	HandIndex    int             `json:"hand_index"`
	PlayerCards  []string        `json:"player_cards"`
	PlayerTotal  int             `json:"player_total"`
	IsSoft       bool            `json:"is_soft"`
	DealerUpcard string          `json:"dealer_upcard"`
	RunningCount int             `json:"running_count"`
	TrueCount    float64         `json:"true_count"`
	Insurance    bool            `json:"insurance"`
	Recommended  *domain.Action  `json:"recommended,omitempty"` // 保险手为空
	Actual       *domain.Action  `json:"actual,omitempty"`
	Bet          decimal.Decimal `json:"bet"`
	Outcome      Outcome         `json:"outcome,omitempty"`
	Payout       decimal.Decimal `json:"payout"`
	Forced       bool            `json:"forced,omitempty"`
	DecidedAt    time.Time       `json:"decided_at"`
	SettledAt    *time.Time      `json:"settled_at,omitempty"`
}

// Settled 是否已结算
func (r HandRecord) Settled() bool { return r.Outcome != OutcomePending }

// Recommendation 建议的文字形式，保险手为 INSURANCE
func (r HandRecord) Recommendation() string {
	switch {
	case r.Insurance:
		return "INSURANCE"
	case r.Recommended == nil:
		return ""
	}
	return r.Recommended.String()
}

// Followed 实际动作是否与建议一致。保险手或未填写实际动作时 known 为 false
func (r HandRecord) Followed() (followed, known bool) {
	if r.Actual == nil || r.Recommended == nil || r.Insurance {
		return false, false
	}
	return *r.Actual == *r.Recommended, true
}

func newHandRecord(sessionID string, d domain.Decision) HandRecord {
	cards := make([]string, 0, len(d.PlayerCards))
	for _, c := range d.PlayerCards {
		cards = append(cards, c.String())
	}
	rec := HandRecord{
		ID:           uuid.NewString(),
		SessionID:    sessionID,
		HandNumber:   d.Seq,
		HandIndex:    d.HandIndex,
		PlayerCards:  cards,
		PlayerTotal:  d.PlayerTotal,
		IsSoft:       d.IsSoft,
		DealerUpcard: d.DealerUpcard.String(),
		RunningCount: d.RunningCount,
		TrueCount:    d.TrueCount,
		Insurance:    d.Insurance,
		Bet:          decimal.NewFromFloat(d.RecommendedBet).Round(2),
		Forced:       d.Forced,
		DecidedAt:    d.At,
	}
	if !d.Insurance {
		action := d.Action
		rec.Recommended = &action
	}
	return rec
}
