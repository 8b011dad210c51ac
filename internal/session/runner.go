// Package session 把帧来源、建议器和记录器串成一次完整的会话，
// 并把所有对建议器的访问串行化（建议器本身不加锁）。
package session

import (
	"context"
	"sync"
	"time"

	"github.com/betbot/bjadvisor/internal/advisor"
	"github.com/betbot/bjadvisor/internal/common"
	"github.com/betbot/bjadvisor/internal/domain"
	"github.com/betbot/bjadvisor/internal/recorder"
	"github.com/betbot/bjadvisor/internal/vision"
	"github.com/betbot/bjadvisor/pkg/persistence"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "session")

// Options 会话参数
type Options struct {
	ID       string
	Source   vision.Source
	Advisor  *advisor.Advisor
	Recorder *recorder.Recorder

	Snapshots        persistence.Service // 可为空
	SnapshotInterval time.Duration       // 0 表示只在结束时保存
	ExportDir        string
	ExportFormats    []recorder.Format

	Clock common.Clock
}

// Info 会话概况
type Info struct {
	ID         string           `json:"id"`
	StartedAt  time.Time        `json:"started_at"`
	Frames     uint64           `json:"frames"`
	IdleFrames uint64           `json:"idle_frames"`
	Recording  bool             `json:"recording"`
	Summary    recorder.Summary `json:"summary"`
}

// Snapshot 定期落盘的会话状态
type Snapshot struct {
	ID        string         `json:"id"`
	StartedAt time.Time      `json:"started_at"`
	SavedAt   time.Time      `json:"saved_at"`
	Frames    uint64         `json:"frames"`
	Status    advisor.Status `json:"status"`
}

// Runner 会话主循环
type Runner struct {
	mu sync.Mutex

	id        string
	source    vision.Source
	advisor   *advisor.Advisor
	recorder  *recorder.Recorder
	snapshots persistence.Store
	interval  time.Duration
	exportDir string
	formats   []recorder.Format
	clock     common.Clock

	startedAt  time.Time
	frames     uint64
	idleFrames uint64
	lastSaved  *common.Debouncer
	finished   bool
}

// New 校验并创建会话
func New(opts Options) (*Runner, error) {
	if opts.Advisor == nil {
		return nil, errors.New("session: advisor is required")
	}
	if opts.Recorder == nil {
		return nil, errors.New("session: recorder is required")
	}
	if opts.ID == "" {
		opts.ID = opts.Recorder.SessionID()
	}
	clock := opts.Clock.OrSystem()
	r := &Runner{
		id:        opts.ID,
		source:    opts.Source,
		advisor:   opts.Advisor,
		recorder:  opts.Recorder,
		interval:  opts.SnapshotInterval,
		exportDir: opts.ExportDir,
		formats:   opts.ExportFormats,
		clock:     clock,
		startedAt: clock(),
		lastSaved: common.NewDebouncer(opts.SnapshotInterval, clock),
	}
	if opts.Snapshots != nil {
		r.snapshots = opts.Snapshots.NewStore("session", opts.ID, "snapshot")
	}
	// 记录器里已有恢复的手牌时，编号和资金从恢复处续接
	if last := opts.Recorder.LastHandNumber(); last > 0 {
		opts.Advisor.ResumeFrom(last)
		opts.Advisor.SetBankroll(opts.Recorder.Bankroll().InexactFloat64())
		log.Infof("会话 %s 续接: 从第 %d 手之后开始编号", opts.ID, last)
	}
	return r, nil
}

// ID 会话 id
func (r *Runner) ID() string { return r.id }

// Run 从来源读帧直到来源结束或 ctx 取消。来源读错误视为致命，直接返回
func (r *Runner) Run(ctx context.Context) error {
	if r.source == nil {
		return errors.New("session: no frame source")
	}
	log.Infof("会话 %s 开始", r.id)
	for {
		f, err := r.source.Next(ctx)
		if err != nil {
			switch {
			case errors.Is(err, vision.ErrSourceClosed):
				log.Info("帧来源已结束")
				return nil
			case ctx.Err() != nil:
				return nil
			}
			return errors.Wrap(err, "read frame")
		}
		r.Process(f)
		r.maybeSnapshot()
	}
}

// Process 处理一帧；空帧交给 ProcessIdle 计入空帧计数
func (r *Runner) Process(f domain.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames++
	if len(f.Detections) == 0 {
		r.idleFrames++
		r.advisor.ProcessIdle()
		return
	}
	r.advisor.ProcessFrame(f.Detections)
}

func (r *Runner) maybeSnapshot() {
	if r.snapshots == nil || r.interval <= 0 {
		return
	}
	if !r.lastSaved.TryMark() {
		return
	}
	if err := r.SaveSnapshot(); err != nil {
		log.WithError(err).Warn("保存会话快照失败")
	}
}

// Status 建议器状态
func (r *Runner) Status() advisor.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.advisor.Status()
}

// LastDecision 最近一次决策
func (r *Runner) LastDecision() (domain.Decision, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.advisor.LastDecision()
}

// ResetCount R 键
func (r *Runner) ResetCount() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.advisor.ResetCount()
}

// NextHand N 键
func (r *Runner) NextHand() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.advisor.NextHand()
}

// ForceDecision D 键
func (r *Runner) ForceDecision() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.advisor.ForceDecision()
}

// MarkHandComplete 标记本手结束
func (r *Runner) MarkHandComplete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.advisor.MarkHandComplete()
}

// SetBankroll 设置资金，记录器的资金曲线同步校正
func (r *Runner) SetBankroll(v float64) {
	r.recorder.SetBankroll(v)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.advisor.SetBankroll(v)
}

// Settle 记录结算并把输赢计入建议器的资金
func (r *Runner) Settle(ctx context.Context, handNumber int, actual domain.Action, outcome recorder.Outcome, payout float64) (recorder.HandRecord, error) {
	rec, err := r.recorder.Settle(ctx, handNumber, actual, outcome, payout)
	if err != nil && rec.ID == "" {
		return rec, err
	}
	r.mu.Lock()
	r.advisor.SetBankroll(r.recorder.Bankroll().InexactFloat64())
	r.mu.Unlock()
	return rec, err
}

// Info 会话概况
func (r *Runner) Info() Info {
	r.mu.Lock()
	info := Info{ID: r.id, StartedAt: r.startedAt, Frames: r.frames, IdleFrames: r.idleFrames}
	r.mu.Unlock()
	info.Summary = r.recorder.Summary()
	info.Recording = r.recorder.Recording()
	return info
}

// SaveSnapshot 立即保存快照
func (r *Runner) SaveSnapshot() error {
	if r.snapshots == nil {
		return nil
	}
	r.mu.Lock()
	snap := Snapshot{
		ID:        r.id,
		StartedAt: r.startedAt,
		SavedAt:   r.clock(),
		Frames:    r.frames,
		Status:    r.advisor.Status(),
	}
	r.mu.Unlock()
	return errors.Wrap(r.snapshots.Save(snap), "save snapshot")
}

// LoadSnapshot 读取上次保存的快照
func (r *Runner) LoadSnapshot() (Snapshot, error) {
	var snap Snapshot
	if r.snapshots == nil {
		return snap, persistence.ErrNotExists
	}
	err := r.snapshots.Load(&snap)
	return snap, err
}

// Finish 结束会话：停止记录、导出、保存快照。可重复调用
func (r *Runner) Finish(ctx context.Context) error {
	r.mu.Lock()
	if r.finished {
		r.mu.Unlock()
		return nil
	}
	r.finished = true
	frames := r.frames
	r.mu.Unlock()

	r.recorder.Stop()
	var firstErr error
	if r.exportDir != "" {
		for _, f := range r.formats {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, err := r.recorder.ExportFile(r.exportDir, f); err != nil {
				log.WithError(err).Errorf("导出 %s 失败", f)
				if firstErr == nil {
					firstErr = err
				}
			}
		}
	}
	if err := r.SaveSnapshot(); err != nil && firstErr == nil {
		firstErr = err
	}
	s := r.recorder.Summary()
	log.WithFields(logrus.Fields{
		"hands":  s.Hands,
		"profit": s.NetProfit.String(),
		"frames": frames,
	}).Infof("会话 %s 结束", r.id)
	return firstErr
}
