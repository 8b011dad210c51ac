package dashboard

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/betbot/bjadvisor/internal/advisor"
)

// Controller TUI 与无界面按键共用的控制接口，由 session.Runner 实现
type Controller interface {
	Status() advisor.Status
	ResetCount()
	NextHand()
	ForceDecision() bool
	MarkHandComplete()
}

// HelpText 按键说明
const HelpText = "R 重置计数 | N 下一手 | D 强制决策 | C 本手结束 | S 状态 | H 帮助 | Q 退出"

// HandleKey 执行一个按键，返回提示信息；quit 表示应退出
func HandleKey(ctl Controller, key string) (msg string, quit bool) {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "r":
		ctl.ResetCount()
		return "计数已重置", false
	case "n":
		ctl.NextHand()
		return "下一手", false
	case "d":
		if ctl.ForceDecision() {
			return "已强制决策: " + ctl.Status().LastAction, false
		}
		return "无法决策：手牌或庄家明牌不完整", false
	case "c":
		ctl.MarkHandComplete()
		return "本手已结束", false
	case "s":
		return FormatStatus(ctl.Status()), false
	case "h", "?":
		return HelpText, false
	case "q", "ctrl+c":
		return "退出", true
	case "":
		return "", false
	}
	return fmt.Sprintf("未知按键 %q，按 H 查看帮助", key), false
}

// FormatStatus 单行状态
func FormatStatus(s advisor.Status) string {
	line := fmt.Sprintf("RC %+d | TC %+.2f | 剩余 %.1f 副 | 渗透 %.0f%% | 注码 $%.2f (伪装 $%.0f) | 资金 $%.2f | %s",
		s.RunningCount, s.TrueCount, s.DecksRemaining, s.Penetration*100,
		s.RecommendedBet, s.CamouflageBet, s.Bankroll, s.Phase)
	if s.PlayerHand != "" {
		line += fmt.Sprintf(" | 玩家 %s (%d)", s.PlayerHand, s.PlayerTotal)
	}
	if s.DealerUpcard != "" {
		line += " | 庄家 " + s.DealerUpcard
	}
	if s.LastAction != "" {
		line += " | 建议 " + s.LastAction
	}
	return line
}

// RunHeadless 无终端界面时从 r 逐行读取按键（例如 stdin），结果写到 out。
// 读到 Q、EOF 或 ctx 取消时返回
func RunHeadless(ctx context.Context, ctl Controller, r io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	errs := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		errs <- sc.Err()
	}()

	fmt.Fprintln(out, HelpText)
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errs:
			return err
		case line := <-lines:
			msg, quit := HandleKey(ctl, line)
			if msg != "" {
				fmt.Fprintln(out, msg)
			}
			if quit {
				return nil
			}
		}
	}
}
