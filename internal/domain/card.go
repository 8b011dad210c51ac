package domain

import (
	"fmt"
	"time"
)

// Rank 牌面点数（Ace=1 ... King=13）
type Rank uint8

const (
	Ace Rank = iota + 1
	Two
	Three
	Four
	Five
	Six
	Seven
	Eight
	Nine
	Ten
	Jack
	Queen
	King
)

// Suit 花色
type Suit uint8

const (
	Hearts Suit = iota
	Diamonds
	Clubs
	Spades
)

// DeckSize 一副牌的张数，同时也是 card_id 的取值上限
const DeckSize = 52

// ranksPerSuit 每种花色的点数个数
const ranksPerSuit = 13

// Card 一张已识别的牌
type Card struct {
	Rank       Rank
	Suit       Suit
	Confidence float64   // 识别置信度 [0,1]
	Timestamp  time.Time // 识别时间
}

// CardFromID 把 card_id ∈ [0,52) 解码为点数和花色。
// 编码约定：card_id = (rank-1) + suit*13，全项目只允许通过这里和 Card.ID 做转换。
func CardFromID(id uint8) (Card, bool) {
	if id >= DeckSize {
		return Card{}, false
	}
	return Card{
		Rank: Rank(id%ranksPerSuit) + 1,
		Suit: Suit(id / ranksPerSuit),
	}, true
}

// ID 返回该牌的 card_id（CardFromID 的逆运算）
func (c Card) ID() uint8 {
	return uint8(c.Rank-1) + uint8(c.Suit)*ranksPerSuit
}

// Valid 点数和花色是否都在合法范围内
func (c Card) Valid() bool {
	return c.Rank >= Ace && c.Rank <= King && c.Suit <= Spades
}

// Value 21 点牌值：A 先按 11，J/Q/K 按 10
func (c Card) Value() int { return c.Rank.Value() }

// Value 点数对应的牌值，A 为 11
func (r Rank) Value() int {
	switch {
	case r == Ace:
		return 11
	case r >= Ten:
		return 10
	default:
		return int(r)
	}
}

// DealerValue 庄家明牌在策略表中的列值（A 映射为 11）
func (c Card) DealerValue() int {
	return c.Value()
}

// HiLo 返回 Hi-Lo 计数值：2-6 为 +1，7-9 为 0，10/J/Q/K/A 为 -1
func (r Rank) HiLo() int {
	switch {
	case r >= Two && r <= Six:
		return 1
	case r >= Ten || r == Ace:
		return -1
	default:
		return 0
	}
}

var rankNames = [...]string{"?", "A", "2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K"}

func (r Rank) String() string {
	if int(r) < len(rankNames) {
		return rankNames[r]
	}
	return fmt.Sprintf("Rank(%d)", uint8(r))
}

var suitSymbols = [...]string{"h", "d", "c", "s"}

func (s Suit) String() string {
	if int(s) < len(suitSymbols) {
		return suitSymbols[s]
	}
	return fmt.Sprintf("Suit(%d)", uint8(s))
}

// String 例如 "Ah"、"10s"
func (c Card) String() string {
	return c.Rank.String() + c.Suit.String()
}
