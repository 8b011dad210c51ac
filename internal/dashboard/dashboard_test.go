package dashboard

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/betbot/bjadvisor/internal/advisor"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeController struct {
	status   advisor.Status
	resets   int
	nexts    int
	forces   int
	complete int
	canForce bool
}

func (f *fakeController) Status() advisor.Status { return f.status }
func (f *fakeController) ResetCount()            { f.resets++ }
func (f *fakeController) NextHand()              { f.nexts++ }
func (f *fakeController) MarkHandComplete()      { f.complete++ }
func (f *fakeController) ForceDecision() bool {
	f.forces++
	if f.canForce {
		f.status.LastAction = "DOUBLE"
	}
	return f.canForce
}

func keyMsg(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func sampleStatus() advisor.Status {
	return advisor.Status{
		Phase:              "Decision",
		RunningCount:       7,
		TrueCount:          2.5,
		DecksRemaining:     2.8,
		Penetration:        0.46,
		RecommendedBet:     40,
		CamouflageBet:      50,
		Bankroll:           1000,
		PlayerHand:         "10h 6s",
		PlayerTotal:        16,
		DealerUpcard:       "10c",
		HandCount:          1,
		LastAction:         "SURRENDER",
		LastAlert:          "SURRENDER",
		HighCountThreshold: 2,
	}
}

func TestHandleKey(t *testing.T) {
	ctl := &fakeController{status: sampleStatus()}

	msg, quit := HandleKey(ctl, "R")
	assert.False(t, quit)
	assert.Equal(t, 1, ctl.resets)
	assert.NotEmpty(t, msg)

	HandleKey(ctl, "n")
	assert.Equal(t, 1, ctl.nexts)

	HandleKey(ctl, "c")
	assert.Equal(t, 1, ctl.complete)

	msg, _ = HandleKey(ctl, "d")
	assert.Equal(t, 1, ctl.forces)
	assert.Contains(t, msg, "不完整")

	ctl.canForce = true
	msg, _ = HandleKey(ctl, "d")
	assert.Contains(t, msg, "DOUBLE")

	msg, _ = HandleKey(ctl, "s")
	assert.Contains(t, msg, "RC +7")
	assert.Contains(t, msg, "10c")

	_, quit = HandleKey(ctl, "q")
	assert.True(t, quit)
	_, quit = HandleKey(ctl, "ctrl+c")
	assert.True(t, quit)

	msg, quit = HandleKey(ctl, "x")
	assert.False(t, quit)
	assert.Contains(t, msg, "未知按键")

	msg, _ = HandleKey(ctl, "  ")
	assert.Empty(t, msg)
}

func TestFormatStatus(t *testing.T) {
	line := FormatStatus(sampleStatus())
	assert.Contains(t, line, "TC +2.50")
	assert.Contains(t, line, "$40.00")
	assert.Contains(t, line, "10h 6s (16)")
	assert.Contains(t, line, "SURRENDER")

	empty := FormatStatus(advisor.Status{Phase: "Waiting"})
	assert.NotContains(t, empty, "玩家")
	assert.NotContains(t, empty, "建议")
}

func TestModelKeysCallController(t *testing.T) {
	ctl := &fakeController{status: sampleStatus()}
	m := newModel(ctl, Options{Refresh: time.Second})

	next, cmd := m.Update(keyMsg('r'))
	assert.Nil(t, cmd)
	assert.Equal(t, 1, ctl.resets)
	assert.Equal(t, "计数已重置", next.(model).message)

	next, _ = next.Update(keyMsg('n'))
	assert.Equal(t, 1, ctl.nexts)

	next, _ = next.Update(keyMsg('h'))
	assert.True(t, next.(model).showHelp)
	next, _ = next.Update(keyMsg('h'))
	assert.False(t, next.(model).showHelp)
}

func TestModelQuit(t *testing.T) {
	ctl := &fakeController{status: sampleStatus()}
	quitCalled := false
	m := newModel(ctl, Options{Refresh: time.Second, OnQuit: func() { quitCalled = true }})

	next, cmd := m.Update(keyMsg('q'))
	require.NotNil(t, cmd)
	assert.True(t, quitCalled)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, next.View())
}

func TestModelTickRefreshesStatus(t *testing.T) {
	ctl := &fakeController{status: advisor.Status{Phase: "Waiting"}}
	m := newModel(ctl, Options{Refresh: time.Second})
	ctl.status = sampleStatus()

	next, cmd := m.Update(tickMsg(time.Now()))
	assert.NotNil(t, cmd)
	assert.Equal(t, 7, next.(model).status.RunningCount)
}

func TestModelView(t *testing.T) {
	ctl := &fakeController{status: sampleStatus()}
	m := newModel(ctl, Options{Title: "Table 3", Refresh: time.Second})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})

	view := next.View()
	for _, want := range []string{"Table 3", "Decision", "Count", "Hand", "Betting", "+7", "10h 6s (16)", "10c", "SURRENDER", "$1000.00"} {
		assert.Contains(t, view, want)
	}

	next, _ = next.Update(keyMsg('h'))
	assert.Contains(t, next.View(), "退出并导出会话")
}

func TestModelViewShowsLastReset(t *testing.T) {
	st := sampleStatus()
	st.LastReset = "duplicate_card"
	st.SinceLastReset = 125 * time.Second
	ctl := &fakeController{status: st}
	m := newModel(ctl, Options{Refresh: time.Second})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})

	view := next.View()
	assert.Contains(t, view, "duplicate_card")
	assert.Contains(t, view, "2m05s ago")
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "-", formatDuration(0))
	assert.Equal(t, "1.5s", formatDuration(1500*time.Millisecond))
	assert.Equal(t, "2m05s", formatDuration(125*time.Second))
}

func TestRunHeadless(t *testing.T) {
	ctl := &fakeController{status: sampleStatus()}
	in := strings.NewReader("r\nn\ns\nq\nr\n")
	var out bytes.Buffer

	require.NoError(t, RunHeadless(context.Background(), ctl, in, &out))
	assert.Equal(t, 1, ctl.resets, "keys after q are ignored")
	assert.Equal(t, 1, ctl.nexts)
	assert.Contains(t, out.String(), HelpText)
	assert.Contains(t, out.String(), "RC +7")
}

func TestRunHeadlessEOF(t *testing.T) {
	ctl := &fakeController{}
	var out bytes.Buffer
	require.NoError(t, RunHeadless(context.Background(), ctl, strings.NewReader("n\n"), &out))
	assert.Equal(t, 1, ctl.nexts)
}

func TestRunNotTerminal(t *testing.T) {
	if IsTerminal() {
		t.Skip("stdout is a terminal")
	}
	d := New(&fakeController{}, Options{})
	assert.ErrorIs(t, d.Run(context.Background()), ErrNotTerminal)
	d.Stop()
}
