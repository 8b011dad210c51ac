package dashboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/betbot/bjadvisor/internal/advisor"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	accent      = lipgloss.Color("39")
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(accent)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(accent).Padding(0, 1)
	panelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(accent).Padding(0, 1)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	goodStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("46"))
	badStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	warnStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("226"))
)

// actionStyles 建议动作的颜色
var actionStyles = map[string]lipgloss.Style{
	"HIT":       warnStyle,
	"STAND":     goodStyle,
	"DOUBLE":    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("51")),
	"SPLIT":     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("207")),
	"SURRENDER": badStyle,
	"INSURANCE": lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("208")),
}

type tickMsg time.Time

type model struct {
	ctl      Controller
	title    string
	refresh  time.Duration
	status   advisor.Status
	message  string
	showHelp bool
	quitting bool
	onQuit   func()
	width    int
	height   int
}

func newModel(ctl Controller, opts Options) model {
	return model{
		ctl:     ctl,
		title:   opts.Title,
		refresh: opts.Refresh,
		status:  ctl.Status(),
		onQuit:  opts.OnQuit,
	}
}

func (m model) Init() tea.Cmd {
	return m.tick()
}

func (m model) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		key := msg.String()
		if key == "h" || key == "?" {
			m.showHelp = !m.showHelp
			return m, nil
		}
		text, quit := HandleKey(m.ctl, key)
		if quit {
			m.quitting = true
			if m.onQuit != nil {
				m.onQuit()
			}
			return m, tea.Quit
		}
		m.message = text
		m.status = m.ctl.Status()
		return m, nil
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tickMsg:
		m.status = m.ctl.Status()
		return m, m.tick()
	}
	return m, nil
}

func (m model) View() string {
	if m.quitting {
		return ""
	}
	width := m.width - 4
	if width < 72 {
		width = 72
	}
	half := width/2 - 1

	left := lipgloss.JoinVertical(lipgloss.Left, m.renderCount(half), m.renderHand(half))
	right := lipgloss.JoinVertical(lipgloss.Left, m.renderDecision(half), m.renderBetting(half))
	body := lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right)

	footer := mutedStyle.Render(HelpText)
	if m.showHelp {
		footer = helpPanel()
	}
	parts := []string{m.renderHeader(), body}
	if m.message != "" {
		parts = append(parts, " "+m.message)
	}
	parts = append(parts, footer)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m model) renderHeader() string {
	title := m.title
	if strings.TrimSpace(title) == "" {
		title = "Blackjack Advisor"
	}
	return headerStyle.Render(fmt.Sprintf("%s | %s | %s", title, m.status.Phase, time.Now().Format("15:04:05")))
}

func panel(width int, title string, lines ...string) string {
	content := append([]string{titleStyle.Render(title), strings.Repeat("─", width-4)}, lines...)
	return panelStyle.Width(width).Render(strings.Join(content, "\n"))
}

func (m model) renderCount(width int) string {
	s := m.status
	tc := fmt.Sprintf("%+.2f", s.TrueCount)
	switch {
	case s.TrueCount >= s.HighCountThreshold && s.HighCountThreshold > 0:
		tc = goodStyle.Render(tc)
	case s.TrueCount < 0:
		tc = badStyle.Render(tc)
	}
	var lowSeen, highSeen int
	for i, n := range s.SeenByRank {
		switch r := i + 1; {
		case r >= 2 && r <= 6:
			lowSeen += n
		case r == 1 || r >= 10:
			highSeen += n
		}
	}
	shuffle := "-"
	switch {
	case s.ShuffleDetected:
		shuffle = warnStyle.Render(s.ShuffleIndicator)
	case s.LastReset != "":
		shuffle = fmt.Sprintf("last %s %s ago", warnStyle.Render(s.LastReset), formatDuration(s.SinceLastReset))
	}
	return panel(width, "Count",
		fmt.Sprintf("Running  %+d", s.RunningCount),
		"True     "+tc,
		fmt.Sprintf("Decks    %.2f left  (%d played)", s.DecksRemaining, s.CardsPlayed),
		fmt.Sprintf("Pen      %.1f%%  conf %.2f", s.Penetration*100, s.Confidence),
		fmt.Sprintf("Seen     low %d  high %d", lowSeen, highSeen),
		fmt.Sprintf("Shuffle  %s  shoes %d", shuffle, s.ShoesFinished),
	)
}

func (m model) renderHand(width int) string {
	s := m.status
	player := "-"
	if s.PlayerHand != "" {
		player = fmt.Sprintf("%s (%d)", s.PlayerHand, s.PlayerTotal)
	}
	dealer := "-"
	if s.DealerUpcard != "" {
		dealer = s.DealerUpcard
	}
	return panel(width, "Hand",
		"Player   "+player,
		"Dealer   "+dealer,
		fmt.Sprintf("Hand     %d/%d", s.HandIndex+1, max(s.HandCount, 1)),
		"Idle     "+formatDuration(s.SinceLastFrame),
	)
}

func (m model) renderDecision(width int) string {
	s := m.status
	action := "-"
	if s.LastAction != "" {
		style, ok := actionStyles[s.LastAction]
		if !ok {
			style = titleStyle
		}
		action = style.Render(s.LastAction)
	}
	return panel(width, "Decision",
		"Action   "+action,
		"Alert    "+s.LastAlert,
		fmt.Sprintf("Count    %d decisions", s.Decisions),
	)
}

func (m model) renderBetting(width int) string {
	s := m.status
	return panel(width, "Betting",
		fmt.Sprintf("Kelly    $%.2f", s.RecommendedBet),
		fmt.Sprintf("Spread   $%.0f", s.CamouflageBet),
		fmt.Sprintf("Bankroll $%.2f", s.Bankroll),
	)
}

func helpPanel() string {
	rows := []string{
		"R  重置计数（人工洗牌）",
		"N  下一手 / 切换到下一个分牌手",
		"D  立即给出建议（跳过防抖）",
		"C  标记本手结束",
		"S  在下方显示单行状态",
		"H  显示/隐藏帮助",
		"Q  退出并导出会话",
	}
	return panelStyle.Render(strings.Join(rows, "\n"))
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
}
