package recorder

import (
	"math"
	"time"

	"github.com/betbot/bjadvisor/internal/domain"
	"github.com/shopspring/decimal"
)

// Summary 会话统计
type Summary struct {
	SessionID string        `json:"session_id" yaml:"session_id"`
	StartedAt time.Time     `json:"started_at" yaml:"started_at"`
	EndedAt   time.Time     `json:"ended_at,omitempty" yaml:"ended_at,omitempty"`
	Duration  time.Duration `json:"duration" yaml:"duration"`

	Hands      int `json:"hands" yaml:"hands"`
	Settled    int `json:"settled" yaml:"settled"`
	Wins       int `json:"wins" yaml:"wins"`
	Losses     int `json:"losses" yaml:"losses"`
	Pushes     int `json:"pushes" yaml:"pushes"`
	Blackjacks int `json:"blackjacks" yaml:"blackjacks"`

	TotalWagered  decimal.Decimal `json:"total_wagered" yaml:"total_wagered"`
	NetProfit     decimal.Decimal `json:"net_profit" yaml:"net_profit"`
	MaxWin        decimal.Decimal `json:"max_win" yaml:"max_win"`
	MaxLoss       decimal.Decimal `json:"max_loss" yaml:"max_loss"`
	MaxDrawdown   decimal.Decimal `json:"max_drawdown" yaml:"max_drawdown"`
	StartBankroll decimal.Decimal `json:"start_bankroll" yaml:"start_bankroll"`
	FinalBankroll decimal.Decimal `json:"final_bankroll" yaml:"final_bankroll"`

	AvgTrueCount float64 `json:"avg_true_count" yaml:"avg_true_count"`
	MinTrueCount float64 `json:"min_true_count" yaml:"min_true_count"`
	MaxTrueCount float64 `json:"max_true_count" yaml:"max_true_count"`

	Insurances int `json:"insurances" yaml:"insurances"`
	Doubles    int `json:"doubles" yaml:"doubles"`
	Splits     int `json:"splits" yaml:"splits"`
	Surrenders int `json:"surrenders" yaml:"surrenders"`

	// Adherence 实际动作与建议一致的比例（只统计填写了实际动作的手牌）
	Adherence float64 `json:"adherence" yaml:"adherence"`
	WinRate   float64 `json:"win_rate" yaml:"win_rate"`
	ROI       float64 `json:"roi" yaml:"roi"`

	BankrollHistory []decimal.Decimal `json:"bankroll_history" yaml:"bankroll_history"`
}

// Summary 汇总当前会话
func (r *Recorder) Summary() Summary {
	r.mu.Lock()
	s := Summary{
		SessionID:     r.sessionID,
		StartedAt:     r.startedAt,
		EndedAt:       r.endedAt,
		StartBankroll: r.start,
		FinalBankroll: r.bankroll,
	}
	end := r.endedAt
	if end.IsZero() {
		end = r.clock()
	}
	s.Duration = end.Sub(r.startedAt)
	s.BankrollHistory = append([]decimal.Decimal(nil), r.history...)
	records := append([]HandRecord(nil), r.records...)
	r.mu.Unlock()

	summarize(&s, records)
	return s
}

func summarize(s *Summary, records []HandRecord) {
	s.Hands = len(records)
	var (
		tcSum            float64
		followed, actual int
	)
	s.MinTrueCount = math.Inf(1)
	s.MaxTrueCount = math.Inf(-1)

	for _, rec := range records {
		tcSum += rec.TrueCount
		s.MinTrueCount = math.Min(s.MinTrueCount, rec.TrueCount)
		s.MaxTrueCount = math.Max(s.MaxTrueCount, rec.TrueCount)

		if rec.Insurance {
			s.Insurances++
		} else if rec.Recommended != nil {
			switch *rec.Recommended {
			case domain.Double:
				s.Doubles++
			case domain.Split:
				s.Splits++
			case domain.Surrender:
				s.Surrenders++
			}
		}

		if ok, known := rec.Followed(); known {
			actual++
			if ok {
				followed++
			}
		}

		if !rec.Settled() {
			continue
		}
		s.Settled++
		s.TotalWagered = s.TotalWagered.Add(rec.Bet)
		s.NetProfit = s.NetProfit.Add(rec.Payout)
		switch {
		case rec.Outcome.Won():
			s.Wins++
			if rec.Outcome == OutcomeBlackjack {
				s.Blackjacks++
			}
		case rec.Outcome.Lost():
			s.Losses++
		default:
			s.Pushes++
		}
		if rec.Payout.GreaterThan(s.MaxWin) {
			s.MaxWin = rec.Payout
		}
		if loss := rec.Payout.Neg(); loss.GreaterThan(s.MaxLoss) {
			s.MaxLoss = loss
		}
	}

	if s.Hands == 0 {
		s.MinTrueCount, s.MaxTrueCount = 0, 0
	} else {
		s.AvgTrueCount = tcSum / float64(s.Hands)
	}
	if actual > 0 {
		s.Adherence = float64(followed) / float64(actual)
	}
	if s.Settled > 0 {
		s.WinRate = float64(s.Wins) / float64(s.Settled)
	}
	if s.TotalWagered.IsPositive() {
		s.ROI = s.NetProfit.Div(s.TotalWagered).InexactFloat64()
	}
	s.MaxDrawdown = maxDrawdown(s.BankrollHistory)
}

// maxDrawdown 资金曲线从峰值的最大回撤（绝对值）
func maxDrawdown(history []decimal.Decimal) decimal.Decimal {
	var dd decimal.Decimal
	if len(history) == 0 {
		return dd
	}
	peak := history[0]
	for _, b := range history[1:] {
		if b.GreaterThan(peak) {
			peak = b
			continue
		}
		if d := peak.Sub(b); d.GreaterThan(dd) {
			dd = d
		}
	}
	return dd
}
