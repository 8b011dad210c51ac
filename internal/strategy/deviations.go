package strategy

import (
	"strings"

	"github.com/betbot/bjadvisor/internal/domain"
)

// DeviationGroup 偏离所属的指数打法集合
type DeviationGroup int

const (
	Illustrious18 DeviationGroup = iota
	Fab4
)

func (g DeviationGroup) String() string {
	if g == Fab4 {
		return "fab4"
	}
	return "illustrious18"
}

// Deviation 一条指数打法：硬 Total 对庄家 Dealer，真数 >= Threshold 时取 Action，否则 Otherwise。
// Rule 非空时只在规则标签包含它时生效。
type Deviation struct {
	Group     DeviationGroup
	Total     int
	Dealer    int
	Rule      string
	Threshold float64
	Action    domain.Action
	Otherwise domain.Action
}

func (d Deviation) appliesTo(rules string) bool {
	return d.Rule == "" || strings.Contains(strings.ToLower(rules), d.Rule)
}

// 按顺序匹配，先命中者生效。保险（庄家 A、TC>=+3）由编排层单独处理；
// 10,10 分牌的两条属于对子路径，不在此表中。
var deviationTable = []Deviation{
	{Illustrious18, 16, 10, "", 0, domain.Stand, domain.Hit},
	{Illustrious18, 15, 10, "", 0, domain.Surrender, domain.Hit},
	{Illustrious18, 16, 9, "", 5, domain.Stand, domain.Hit},
	{Illustrious18, 13, 2, "", -1, domain.Stand, domain.Hit},
	{Illustrious18, 13, 3, "", -2, domain.Stand, domain.Hit},
	{Illustrious18, 11, 11, "", 1, domain.Double, domain.Hit},
	{Illustrious18, 10, 10, "", 4, domain.Double, domain.Hit},
	{Illustrious18, 10, 11, "", 4, domain.Double, domain.Hit},
	{Illustrious18, 9, 2, "", 1, domain.Double, domain.Hit},
	{Illustrious18, 9, 7, "", 3, domain.Double, domain.Hit},
	{Illustrious18, 12, 3, "", 2, domain.Stand, domain.Hit},
	{Illustrious18, 12, 2, "", 3, domain.Stand, domain.Hit},
	{Illustrious18, 15, 11, "h17", 1, domain.Stand, domain.Hit},
	{Illustrious18, 16, 11, "", 2, domain.Stand, domain.Hit},
	{Illustrious18, 12, 4, "", 0, domain.Stand, domain.Hit},

	{Fab4, 14, 10, "", 3, domain.Surrender, domain.Hit},
	{Fab4, 15, 9, "", 2, domain.Surrender, domain.Hit},
	{Fab4, 15, 11, "s17", 1, domain.Surrender, domain.Hit},
	{Fab4, 15, 11, "h17", -1, domain.Surrender, domain.Hit},
}

func selectDeviations(opts Options) []Deviation {
	if !opts.DeviationsEnabled {
		return nil
	}
	var out []Deviation
	for _, d := range deviationTable {
		if d.Group == Illustrious18 && !opts.Illustrious18 {
			continue
		}
		if d.Group == Fab4 && !opts.Fab4 {
			continue
		}
		if !d.appliesTo(opts.Rules) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// GetDeviationAction 按真数应用指数打法，未命中时退回
// GetAction(total, dealer, isSoft=false, canDouble=true, canSplit=false)。
// 只按硬牌、不可分牌的语境评估。
func (b *BasicStrategy) GetDeviationAction(total int, dealerUpcard domain.Rank, trueCount float64) domain.Action {
	dealer := DealerValue(dealerUpcard)
	for _, d := range b.deviations {
		if d.Total != total || d.Dealer != dealer {
			continue
		}
		if trueCount >= d.Threshold {
			log.Debugf("偏离 %s: %d vs %d TC=%.1f -> %s", d.Group, total, dealer, trueCount, d.Action)
			return d.Action
		}
		return d.Otherwise
	}
	return b.GetAction(total, dealerUpcard, false, true, false)
}

// Decide 编排层使用的入口：启用偏离时，硬牌且非对子走偏离路径，其余走基础策略
func (b *BasicStrategy) Decide(h domain.Hand, dealerUpcard domain.Rank, trueCount float64) domain.Action {
	if len(b.deviations) > 0 && !h.IsSoft && !h.CanSplit {
		a := b.GetDeviationAction(h.Total, dealerUpcard, trueCount)
		if a == domain.Double && !h.CanDouble {
			return domain.Hit
		}
		return a
	}
	return b.GetHandAction(h, dealerUpcard)
}
