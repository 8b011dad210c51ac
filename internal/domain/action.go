package domain

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Action 玩家动作
type Action int

const (
	Hit Action = iota
	Stand
	Double
	Split
	Surrender
)

var actionNames = map[Action]string{
	Hit:       "HIT",
	Stand:     "STAND",
	Double:    "DOUBLE",
	Split:     "SPLIT",
	Surrender: "SURRENDER",
}

func (a Action) String() string {
	if s, ok := actionNames[a]; ok {
		return s
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// ParseAction 解析动作名（大小写不敏感，支持 H/S/D/P/R 缩写）
func ParseAction(s string) (Action, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "HIT", "H":
		return Hit, nil
	case "STAND", "S":
		return Stand, nil
	case "DOUBLE", "D":
		return Double, nil
	case "SPLIT", "P":
		return Split, nil
	case "SURRENDER", "R":
		return Surrender, nil
	}
	return Hit, errors.Errorf("unknown action %q", s)
}

// MarshalText 让 Action 在 JSON/YAML 中以名字出现
func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText 见 ParseAction
func (a *Action) UnmarshalText(b []byte) error {
	v, err := ParseAction(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// GamePhase 当前一手牌所处的阶段
type GamePhase int

const (
	WaitingForCards GamePhase = iota
	PlayerTurn
	DealerTurn // 预留：目前没有任何状态转移会进入该阶段
	HandComplete
	NewShoe
)

func (p GamePhase) String() string {
	switch p {
	case WaitingForCards:
		return "WaitingForCards"
	case PlayerTurn:
		return "PlayerTurn"
	case DealerTurn:
		return "DealerTurn"
	case HandComplete:
		return "HandComplete"
	case NewShoe:
		return "NewShoe"
	}
	return fmt.Sprintf("GamePhase(%d)", int(p))
}
