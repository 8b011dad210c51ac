package ports

import (
	"github.com/betbot/bjadvisor/internal/domain"
)

// AlertSink 接收告警码（提示音、终端、websocket 推送等）。
//
// NOTE: 接口放在中立包里，advisor 与 alerts/server 都只依赖这里，避免循环依赖。
// 实现方不得阻塞调用线程，Stand 对应的 AlertNone 应当静音。
type AlertSink interface {
	Play(alert domain.AlertType)
}

// AlertSinkFunc 函数适配器
type AlertSinkFunc func(alert domain.AlertType)

// Play 实现 AlertSink
func (f AlertSinkFunc) Play(alert domain.AlertType) { f(alert) }

// DecisionRecorder 接收每一次建议（手牌记录的来源）
type DecisionRecorder interface {
	RecordDecision(d domain.Decision)
}

// DecisionRecorderFunc 函数适配器
type DecisionRecorderFunc func(d domain.Decision)

// RecordDecision 实现 DecisionRecorder
func (f DecisionRecorderFunc) RecordDecision(d domain.Decision) { f(d) }
