package counting

import (
	"github.com/betbot/bjadvisor/internal/domain"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "counting")

// Counter Hi-Lo 计数器（running count / true count）。
//
// AddCard 不做去重；同一张实体牌在一靴内只能提交一次，
// 调用方通过 CountOnce 使用计数器自带的会话去重集合，该集合随 Reset 一起清空。
type Counter struct {
	deckCount    int
	runningCount int
	cardsPlayed  int
	cardsSeen    [domain.DeckSize]int
	counted      map[uint8]struct{}
}

// NewCounter 创建 deckCount 副牌的计数器
func NewCounter(deckCount int) *Counter {
	if deckCount <= 0 {
		deckCount = 1
	}
	c := &Counter{deckCount: deckCount}
	c.Reset()
	return c
}

// AddCard 累加一张牌的 Hi-Lo 值
func (c *Counter) AddCard(card domain.Card) {
	c.runningCount += card.Rank.HiLo()
	c.cardsPlayed++
	if card.Valid() {
		c.cardsSeen[card.ID()]++
	}
}

// CountOnce 本靴内第一次见到该 card_id 时计数，返回是否计入
func (c *Counter) CountOnce(card domain.Card) bool {
	id := card.ID()
	if _, ok := c.counted[id]; ok {
		return false
	}
	c.counted[id] = struct{}{}
	c.AddCard(card)
	log.Debugf("计入 %s | RC=%d TC=%.1f", card, c.runningCount, c.TrueCount())
	return true
}

// Reset 清零全部计数和去重集合（每靴一次）
func (c *Counter) Reset() {
	c.runningCount = 0
	c.cardsPlayed = 0
	c.cardsSeen = [domain.DeckSize]int{}
	c.counted = make(map[uint8]struct{})
}

// RunningCount 当前 running count
func (c *Counter) RunningCount() int { return c.runningCount }

// CardsPlayed 已计入的牌数
func (c *Counter) CardsPlayed() int { return c.cardsPlayed }

// DeckCount 副数
func (c *Counter) DeckCount() int { return c.deckCount }

// CardsSeen 某个 card_id 已计入的次数
func (c *Counter) CardsSeen(id uint8) int {
	if id >= domain.DeckSize {
		return 0
	}
	return c.cardsSeen[id]
}

// CardsRemaining 剩余张数，不小于 0
func (c *Counter) CardsRemaining() int {
	total := c.deckCount * domain.DeckSize
	if c.cardsPlayed >= total {
		return 0
	}
	return total - c.cardsPlayed
}

// DecksRemaining 剩余副数
func (c *Counter) DecksRemaining() float64 {
	return float64(c.CardsRemaining()) / domain.DeckSize
}

// TrueCount = RC / 剩余副数；剩余为 0 时定义为 0
func (c *Counter) TrueCount() float64 {
	decks := c.DecksRemaining()
	if decks == 0 {
		return 0
	}
	return float64(c.runningCount) / decks
}

// Penetration 已发出牌占整靴的比例
func (c *Counter) Penetration() float64 {
	return float64(c.cardsPlayed) / float64(c.deckCount*domain.DeckSize)
}

// Confidence 计数可信度，随渗透率线性下降：1 - 0.5*penetration
func (c *Counter) Confidence() float64 {
	return 1 - c.Penetration()*0.5
}
