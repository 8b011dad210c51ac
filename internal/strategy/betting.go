package strategy

import "math"

const (
	// EdgePerTrueCount 每 1 个真数约 0.5% 玩家优势
	EdgePerTrueCount = 0.005
	// BlackjackVariance 单手方差（标准差 1.15 的平方）
	BlackjackVariance = 1.3225
)

// DefaultSpread 默认伪装注码单位：TC<=0, [1,2), [2,3), [3,4), >=4
var DefaultSpread = [5]int{1, 2, 4, 8, 12}

// BettingConfig 下注参数
type BettingConfig struct {
	MinBet        float64
	MaxBet        float64
	KellyFraction float64 // 默认 0.25
	Spread        [5]int
	Bankroll      float64
}

// Betting Kelly 下注与伪装注码。bankroll 可在运行中更新，不加锁，由调用方串行化。
type Betting struct {
	cfg      BettingConfig
	bankroll float64
}

// NewBetting 创建下注策略，零值参数使用默认
func NewBetting(cfg BettingConfig) *Betting {
	if cfg.KellyFraction <= 0 {
		cfg.KellyFraction = 0.25
	}
	if cfg.Spread == ([5]int{}) {
		cfg.Spread = DefaultSpread
	}
	if cfg.MaxBet < cfg.MinBet {
		cfg.MaxBet = cfg.MinBet
	}
	log.Infof("下注配置: min=%.2f max=%.2f kelly=%.2f spread=%v", cfg.MinBet, cfg.MaxBet, cfg.KellyFraction, cfg.Spread)
	return &Betting{cfg: cfg, bankroll: cfg.Bankroll}
}

// Config 只读配置
func (b *Betting) Config() BettingConfig { return b.cfg }

// Bankroll 当前资金
func (b *Betting) Bankroll() float64 { return b.bankroll }

// SetBankroll 更新资金
func (b *Betting) SetBankroll(v float64) { b.bankroll = v }

// CalculateBet 真数 <= 0 时返回最小注；否则按分数 Kelly 计算并夹在 [min, max]
func (b *Betting) CalculateBet(trueCount, bankroll float64) float64 {
	if trueCount <= 0 {
		return b.cfg.MinBet
	}
	bet := b.KellyBet(EdgePerTrueCount*trueCount, bankroll)
	return clamp(bet, b.cfg.MinBet, b.cfg.MaxBet)
}

// KellyBet 未夹取的分数 Kelly 注码：bankroll * (edge / variance) * fraction
func (b *Betting) KellyBet(edge, bankroll float64) float64 {
	fullKelly := edge / BlackjackVariance
	bet := bankroll * fullKelly * b.cfg.KellyFraction
	log.Debugf("Kelly: edge=%.3f%% full=%.3f%% bet=%.2f", edge*100, fullKelly*100, bet)
	return bet
}

// CamouflageBet 按真数区间取注码单位，bet = minBet * units，不超过 maxBet
func (b *Betting) CamouflageBet(trueCount float64) float64 {
	units := b.cfg.Spread[SpreadIndex(trueCount)]
	return math.Min(b.cfg.MinBet*float64(units), b.cfg.MaxBet)
}

// SpreadIndex 真数所在区间；0 < TC < 1 与 TC <= 0 同属第一档
func SpreadIndex(trueCount float64) int {
	switch {
	case trueCount < 1:
		return 0
	case trueCount < 2:
		return 1
	case trueCount < 3:
		return 2
	case trueCount < 4:
		return 3
	default:
		return 4
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
