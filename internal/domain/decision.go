package domain

import "time"

// Decision 一次建议的快照，交给记录模块
type Decision struct {
	Seq            int       `json:"seq"` // 本会话第几次决策，从 1 开始
	HandIndex      int       `json:"hand_index"`
	PlayerCards    []Card    `json:"-"`
	PlayerTotal    int       `json:"player_total"`
	IsSoft         bool      `json:"is_soft"`
	DealerUpcard   Card      `json:"-"`
	RunningCount   int       `json:"running_count"`
	TrueCount      float64   `json:"true_count"`
	Insurance      bool      `json:"insurance"`
	Action         Action    `json:"action"`
	Alert          AlertType `json:"alert"`
	RecommendedBet float64   `json:"recommended_bet"`
	CamouflageBet  float64   `json:"camouflage_bet"`
	Forced         bool      `json:"forced"`
	At             time.Time `json:"at"`
}
