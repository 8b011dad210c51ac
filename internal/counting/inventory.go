package counting

import "github.com/betbot/bjadvisor/internal/domain"

// Inventory 本靴已见牌的库存（按 card_id 计数）。
// 合法的一靴中任何 card_id 的次数都不会超过副数，总数也不会超过 副数*52；
// 一旦超过即为“不可能”，说明漏掉了一次洗牌。
type Inventory struct {
	DeckCount int
	seen      [domain.DeckSize]int
	total     int
}

// NewInventory 创建 deckCount 副牌的库存
func NewInventory(deckCount int) *Inventory {
	return &Inventory{DeckCount: deckCount}
}

// Add 记录一张牌，card_id 越界时忽略并返回 false
func (inv *Inventory) Add(id uint8) bool {
	if id >= domain.DeckSize {
		return false
	}
	inv.seen[id]++
	inv.total++
	return true
}

// Reset 清空库存
func (inv *Inventory) Reset() {
	inv.seen = [domain.DeckSize]int{}
	inv.total = 0
}

// Count 某个 card_id 的次数
func (inv *Inventory) Count(id uint8) int {
	if id >= domain.DeckSize {
		return 0
	}
	return inv.seen[id]
}

// TotalSeen 总张数
func (inv *Inventory) TotalSeen() int { return inv.total }

// Capacity 整靴张数
func (inv *Inventory) Capacity() int { return inv.DeckCount * domain.DeckSize }

// IsImpossible 任一 card_id 次数超过副数，或总数超过整靴张数
func (inv *Inventory) IsImpossible() bool {
	for _, n := range inv.seen {
		if n > inv.DeckCount {
			return true
		}
	}
	return inv.total > inv.Capacity()
}

// Penetration 已见张数 / 整靴张数
func (inv *Inventory) Penetration() float64 {
	capacity := inv.Capacity()
	if capacity == 0 {
		return 0
	}
	return float64(inv.total) / float64(capacity)
}

// ReachedPenetration 渗透率是否达到 limit
func (inv *Inventory) ReachedPenetration(limit float64) bool {
	return inv.Penetration() >= limit
}
