package strategy

import (
	"fmt"

	"github.com/betbot/bjadvisor/internal/domain"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "strategy")

// Category 策略表类别
type Category int

const (
	CategoryHard Category = iota
	CategorySoft
	CategoryPair
)

func (c Category) String() string {
	switch c {
	case CategoryHard:
		return "hard"
	case CategorySoft:
		return "soft"
	case CategoryPair:
		return "pair"
	}
	return fmt.Sprintf("Category(%d)", int(c))
}

const (
	minDealer = 2
	maxDealer = 11
	minTotal  = 4
	maxTotal  = 21
)

// 基础策略图（S17 + DAS）。每行 10 列，依次对应庄家 2 3 4 5 6 7 8 9 10 A。
// H=Hit S=Stand D=Double(不能加倍时 Hit) P=Split R=Surrender
//
// 对子表按单张牌值索引（A=11）；对子表里只有 P 有意义，其余格子落回软/硬表。
var charts = map[Category]map[int]string{
	CategoryHard: {
		4:  "HHHHHHHHHH",
		5:  "HHHHHHHHHH",
		6:  "HHHHHHHHHH",
		7:  "HHHHHHHHHH",
		8:  "HHHHHHHHHH",
		9:  "HDDDDHHHHH",
		10: "DDDDDDDDHH",
		11: "DDDDDDDDDD",
		12: "HHSSSHHHHH",
		13: "SSSSSHHHHH",
		14: "SSSSSHHHHH",
		15: "SSSSSHHHHH",
		16: "SSSSSHHHHH",
		17: "SSSSSSSSSS",
		18: "SSSSSSSSSS",
		19: "SSSSSSSSSS",
		20: "SSSSSSSSSS",
		21: "SSSSSSSSSS",
	},
	CategorySoft: {
		12: "HHHHHHHHHH", // A,A 不分牌时
		13: "HHHDDHHHHH",
		14: "HHHDDHHHHH",
		15: "HHDDDHHHHH",
		16: "HHDDDHHHHH",
		17: "HDDDDHHHHH",
		18: "DDDDDSSHHH",
		19: "SSSSSSSSSS",
		20: "SSSSSSSSSS",
		21: "SSSSSSSSSS",
	},
	CategoryPair: {
		2:  "PPPPPPHHHH",
		3:  "PPPPPPHHHH",
		4:  "HHHHHHHHHH",
		5:  "HHHHHHHHHH",
		6:  "PPPPPHHHHH",
		7:  "PPPPPPHHHH",
		8:  "PPPPPPPPPP",
		9:  "PPPPPSPPSS",
		10: "HHHHHHHHHH",
		11: "PPPPPPPPPP",
	},
}

var chartCodes = map[byte]domain.Action{
	'H': domain.Hit,
	'S': domain.Stand,
	'D': domain.Double,
	'P': domain.Split,
	'R': domain.Surrender,
}

// table 一张 [total][dealer] 查找表，present 标记该格子是否在图中出现
type table struct {
	action  [maxTotal + 1][maxDealer + 1]domain.Action
	present [maxTotal + 1][maxDealer + 1]bool
}

func (t *table) lookup(row, dealer int) (domain.Action, bool) {
	if row < 0 || row > maxTotal || dealer < minDealer || dealer > maxDealer {
		return domain.Stand, false
	}
	return t.action[row][dealer], t.present[row][dealer]
}

func buildTable(chart map[int]string) (*table, error) {
	t := &table{}
	for row, line := range chart {
		if row < 0 || row > maxTotal {
			return nil, errors.Errorf("row %d out of range", row)
		}
		if len(line) != maxDealer-minDealer+1 {
			return nil, errors.Errorf("row %d: want %d columns, got %d", row, maxDealer-minDealer+1, len(line))
		}
		for i := 0; i < len(line); i++ {
			a, ok := chartCodes[line[i]]
			if !ok {
				return nil, errors.Errorf("row %d: unknown code %q", row, line[i])
			}
			t.action[row][minDealer+i] = a
			t.present[row][minDealer+i] = true
		}
	}
	return t, nil
}

// DealerValue 庄家明牌在表中的列：2-10 原值，J/Q/K 为 10，A 为 11
func DealerValue(r domain.Rank) int { return r.Value() }

// Options 策略配置
type Options struct {
	Rules             string // 规则标签，如 "s17_das"、"h17"
	DeviationsEnabled bool
	Illustrious18     bool
	Fab4              bool
}

// BasicStrategy 基础策略 + 按真数偏离。构造后只读。
type BasicStrategy struct {
	rules      string
	tables     map[Category]*table
	deviations []Deviation
}

// New 构建策略表。图是包内常量，解析失败属于程序错误，直接 panic。
func New(opts Options) *BasicStrategy {
	b := &BasicStrategy{
		rules:  opts.Rules,
		tables: make(map[Category]*table, len(charts)),
	}
	for cat, chart := range charts {
		t, err := buildTable(chart)
		if err != nil {
			panic(fmt.Sprintf("strategy: %s chart: %v", cat, err))
		}
		b.tables[cat] = t
	}
	b.deviations = selectDeviations(opts)

	log.WithFields(logrus.Fields{
		"rules":      opts.Rules,
		"i18":        opts.DeviationsEnabled && opts.Illustrious18,
		"fab4":       opts.DeviationsEnabled && opts.Fab4,
		"deviations": len(b.deviations),
	}).Info("基础策略已加载")
	return b
}

// Rules 规则标签
func (b *BasicStrategy) Rules() string { return b.rules }

// Deviations 当前启用的偏离条目（按匹配顺序）
func (b *BasicStrategy) Deviations() []Deviation {
	return append([]Deviation(nil), b.deviations...)
}

// Lookup 直接查表，ok=false 表示该格子不在图中
func (b *BasicStrategy) Lookup(cat Category, row, dealerValue int) (domain.Action, bool) {
	t, ok := b.tables[cat]
	if !ok {
		return domain.Stand, false
	}
	return t.lookup(row, dealerValue)
}

// GetAction 基础策略动作。
//   - 越界的点数（<4 或 >21）或庄家值返回 Stand
//   - canSplit 且对子表给出 Split 时直接返回 Split
//   - 否则按 isSoft 查软/硬表；Double 但不能加倍时降为 Hit
//
// 对子按单张牌值查表：软 12 的对子只能是 A,A。
func (b *BasicStrategy) GetAction(total int, dealerUpcard domain.Rank, isSoft, canDouble, canSplit bool) domain.Action {
	dealer := DealerValue(dealerUpcard)
	if total < minTotal || total > maxTotal || dealer < minDealer || dealer > maxDealer {
		return domain.Stand
	}

	if canSplit {
		pairValue := total / 2
		if isSoft && total == 12 {
			pairValue = 11
		}
		if a, ok := b.Lookup(CategoryPair, pairValue, dealer); ok && a == domain.Split {
			return domain.Split
		}
	}

	cat := CategoryHard
	if isSoft {
		cat = CategorySoft
	}
	action, ok := b.Lookup(cat, total, dealer)
	if !ok {
		// 软牌图外（理论上不会出现）按硬牌处理
		action, _ = b.Lookup(CategoryHard, total, dealer)
	}

	if action == domain.Double && !canDouble {
		return domain.Hit
	}
	return action
}

// GetHandAction 对一手牌求基础策略动作
func (b *BasicStrategy) GetHandAction(h domain.Hand, dealerUpcard domain.Rank) domain.Action {
	return b.GetAction(h.Total, dealerUpcard, h.IsSoft, h.CanDouble, h.CanSplit)
}
