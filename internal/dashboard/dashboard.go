// Package dashboard 终端状态界面（bubbletea），以及无终端时的按键输入。
package dashboard

import (
	"context"
	"os"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

var log = logrus.WithField("module", "dashboard")

// ErrNotTerminal stdout 不是终端
var ErrNotTerminal = errors.New("dashboard: stdout is not a terminal")

type Options struct {
	Title   string
	Refresh time.Duration // 默认 200ms
	// OnQuit 用户按 Q 时调用；nil 时向自身发送 SIGINT，走统一的优雅退出
	OnQuit func()
}

type Dashboard struct {
	ctl  Controller
	opts Options

	mu      sync.Mutex
	program *tea.Program
}

func New(ctl Controller, opts Options) *Dashboard {
	if opts.Refresh <= 0 {
		opts.Refresh = 200 * time.Millisecond
	}
	if opts.OnQuit == nil {
		opts.OnQuit = interruptSelf
	}
	return &Dashboard{ctl: ctl, opts: opts}
}

// IsTerminal stdout 是否为终端
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// StdinIsTerminal stdin 是否为终端（无界面按键输入的前提）
func StdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// Run 阻塞运行界面，直到用户退出或 ctx 取消
func (d *Dashboard) Run(ctx context.Context) error {
	if !IsTerminal() {
		return ErrNotTerminal
	}
	d.mu.Lock()
	if d.program != nil {
		d.mu.Unlock()
		return errors.New("dashboard: already running")
	}
	p := tea.NewProgram(newModel(d.ctl, d.opts), tea.WithAltScreen(), tea.WithContext(ctx))
	d.program = p
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.program = nil
		d.mu.Unlock()
	}()

	_, err := p.Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) && ctx.Err() == nil {
		return errors.Wrap(err, "run dashboard")
	}
	return nil
}

// Stop 退出界面（可在任意 goroutine 调用）
func (d *Dashboard) Stop() {
	d.mu.Lock()
	p := d.program
	d.mu.Unlock()
	if p != nil {
		p.Quit()
	}
}

func interruptSelf() {
	if err := sendInterrupt(); err != nil {
		log.WithError(err).Warn("发送退出信号失败")
	}
}
