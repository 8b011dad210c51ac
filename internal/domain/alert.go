package domain

import (
	"fmt"

	"github.com/pkg/errors"
)

// AlertType 发给提示音模块的告警码，语义固定
type AlertType int

const (
	AlertNone       AlertType = iota // Stand：静音
	AlertHit                         // 1 声
	AlertDouble                      // 2 声
	AlertSplit                       // 3 声
	AlertSurrender                   // 4 声
	AlertInsurance                   // 5 声快速
	AlertCountReset                  // 1 声长音
	AlertNewShoe                     // 2 声长音
	AlertHighCount                   // 上升双音
)

var alertNames = [...]string{
	"none", "hit", "double", "split", "surrender", "insurance", "count_reset", "new_shoe", "high_count",
}

func (a AlertType) String() string {
	if a >= 0 && int(a) < len(alertNames) {
		return alertNames[a]
	}
	return fmt.Sprintf("AlertType(%d)", int(a))
}

// MarshalText 告警码以名字序列化
func (a AlertType) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText 按名字解析
func (a *AlertType) UnmarshalText(b []byte) error {
	for i, n := range alertNames {
		if n == string(b) {
			*a = AlertType(i)
			return nil
		}
	}
	return errors.Errorf("unknown alert %q", string(b))
}

// AlertForAction 动作到告警码的映射（Stand 静音）
func AlertForAction(a Action) AlertType {
	switch a {
	case Hit:
		return AlertHit
	case Double:
		return AlertDouble
	case Split:
		return AlertSplit
	case Surrender:
		return AlertSurrender
	default:
		return AlertNone
	}
}
