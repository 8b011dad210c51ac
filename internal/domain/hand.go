package domain

import (
	"strconv"
	"strings"
)

// Hand 玩家的一手牌（分牌后会有多手）
type Hand struct {
	Cards       []Card
	Total       int
	IsSoft      bool
	IsPair      bool
	CanDouble   bool
	CanSplit    bool
	IsBlackjack bool
	IsBusted    bool
	IsCompleted bool
	Index       int // 0 = 首手，1+ = 分牌后的手
}

// NewHand 用给定的牌创建一手牌并计算点数和标记
func NewHand(index int, cards ...Card) Hand {
	h := Hand{Index: index, Cards: append([]Card(nil), cards...)}
	h.Evaluate()
	return h
}

// Evaluate 重新计算点数和各项标记。
// A 先按 11 计，超过 21 时逐张把 A 改按 1 计（减 10），直到不超 21 或没有可转换的 A。
func (h *Hand) Evaluate() {
	total, softAces := 0, 0
	for _, c := range h.Cards {
		if c.Rank == Ace {
			softAces++
		}
		total += c.Value()
	}
	for total > 21 && softAces > 0 {
		total -= 10
		softAces--
	}

	h.Total = total
	h.IsSoft = softAces > 0
	h.IsBusted = total > 21

	two := len(h.Cards) == 2
	h.IsBlackjack = two && total == 21
	h.CanDouble = two
	h.IsPair = two && h.Cards[0].Rank == h.Cards[1].Rank
	h.CanSplit = h.IsPair
}

// String 例如 "Ah 10s (21 soft)"
func (h Hand) String() string {
	parts := make([]string, 0, len(h.Cards))
	for _, c := range h.Cards {
		parts = append(parts, c.String())
	}
	kind := "hard"
	if h.IsSoft {
		kind = "soft"
	}
	return strings.Join(parts, " ") + " (" + strconv.Itoa(h.Total) + " " + kind + ")"
}
