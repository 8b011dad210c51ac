package recorder

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/betbot/bjadvisor/internal/common"
	"github.com/betbot/bjadvisor/internal/domain"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "recorder")

var (
	// ErrNotRecording 会话已停止
	ErrNotRecording = errors.New("recorder: session is not recording")
	// ErrUnknownHand 找不到对应编号的手牌
	ErrUnknownHand = errors.New("recorder: unknown hand")
)

// Store 手牌记录的持久化后端
type Store interface {
	// Put 按 ID 写入或覆盖
	Put(ctx context.Context, rec HandRecord) error
	// List 返回会话的全部记录，按手牌编号排序
	List(ctx context.Context, sessionID string) ([]HandRecord, error)
	// Sessions 返回已有记录的会话 id，按字典序
	Sessions(ctx context.Context) ([]string, error)
	Close() error
}

// Recorder 记录每次决策，并在结算后维护资金曲线。实现 ports.DecisionRecorder。
type Recorder struct {
	mu sync.Mutex

	sessionID string
	store     Store
	clock     common.Clock

	startedAt time.Time
	endedAt   time.Time
	recording bool

	records  []HandRecord
	bySeq    map[int]int // HandNumber -> records 下标
	start    decimal.Decimal
	bankroll decimal.Decimal
	history  []decimal.Decimal
}

// New 创建记录器。store 可为 nil（只保存在内存中）
func New(sessionID string, bankroll float64, store Store, clock common.Clock) *Recorder {
	clock = clock.OrSystem()
	b := decimal.NewFromFloat(bankroll)
	return &Recorder{
		sessionID: sessionID,
		store:     store,
		clock:     clock,
		startedAt: clock(),
		recording: true,
		bySeq:     make(map[int]int),
		start:     b,
		bankroll:  b,
		history:   []decimal.Decimal{b},
	}
}

// SessionID 会话 id
func (r *Recorder) SessionID() string { return r.sessionID }

// RecordDecision 实现 ports.DecisionRecorder。存储失败只记日志，不影响实时决策
func (r *Recorder) RecordDecision(d domain.Decision) {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		log.Debugf("会话已停止，忽略决策 #%d", d.Seq)
		return
	}
	rec := newHandRecord(r.sessionID, d)
	if i, ok := r.bySeq[d.Seq]; ok {
		// 同一编号重复提交时保留原 ID
		rec.ID = r.records[i].ID
		r.records[i] = rec
	} else {
		r.bySeq[d.Seq] = len(r.records)
		r.records = append(r.records, rec)
	}
	r.mu.Unlock()

	r.persist(context.Background(), rec)
}

func (r *Recorder) persist(ctx context.Context, rec HandRecord) {
	if r.store == nil {
		return
	}
	if err := r.store.Put(ctx, rec); err != nil {
		log.WithError(err).Warnf("保存手牌 #%d 失败", rec.HandNumber)
	}
}

// Settle 填写实际动作与结算结果。payout 为净输赢（赢为正），会计入资金
func (r *Recorder) Settle(ctx context.Context, handNumber int, actual domain.Action, outcome Outcome, payout float64) (HandRecord, error) {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return HandRecord{}, ErrNotRecording
	}
	i, ok := r.bySeq[handNumber]
	if !ok {
		r.mu.Unlock()
		return HandRecord{}, errors.Wrapf(ErrUnknownHand, "hand #%d", handNumber)
	}
	if outcome == OutcomePending {
		r.mu.Unlock()
		return HandRecord{}, errors.New("recorder: outcome is required")
	}

	rec := r.records[i]
	p := decimal.NewFromFloat(payout).Round(2)
	if rec.Settled() {
		// 重新结算：先撤销旧的输赢
		r.bankroll = r.bankroll.Sub(rec.Payout)
	}
	now := r.clock()
	a := actual
	rec.Actual = &a
	rec.Outcome = outcome
	rec.Payout = p
	rec.SettledAt = &now
	r.records[i] = rec

	r.bankroll = r.bankroll.Add(p)
	r.history = append(r.history, r.bankroll)
	r.mu.Unlock()

	log.WithFields(logrus.Fields{"hand": handNumber, "outcome": outcome, "payout": p.String()}).Info("手牌结算")
	if r.store != nil {
		if err := r.store.Put(ctx, rec); err != nil {
			return rec, errors.Wrapf(err, "store hand #%d", handNumber)
		}
	}
	return rec, nil
}

// Stop 结束会话，之后的决策与结算都被拒绝
func (r *Recorder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return
	}
	r.recording = false
	r.endedAt = r.clock()
}

// Recording 是否仍在记录
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Bankroll 当前资金
func (r *Recorder) Bankroll() decimal.Decimal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bankroll
}

// SetBankroll 手动校正资金（加注码、取款），计入资金曲线但不计入盈亏
func (r *Recorder) SetBankroll(v float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bankroll = decimal.NewFromFloat(v).Round(2)
	r.history = append(r.history, r.bankroll)
}

// Hands 记录副本，按手牌编号排序
func (r *Recorder) Hands() []HandRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]HandRecord, len(r.records))
	copy(out, r.records)
	sort.SliceStable(out, func(i, j int) bool { return out[i].HandNumber < out[j].HandNumber })
	return out
}

// Hand 按编号查找
func (r *Recorder) Hand(handNumber int) (HandRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.bySeq[handNumber]
	if !ok {
		return HandRecord{}, false
	}
	return r.records[i], true
}

// LastHandNumber 已记录的最大手牌编号，没有记录时为 0
func (r *Recorder) LastHandNumber() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	last := 0
	for n := range r.bySeq {
		last = max(last, n)
	}
	return last
}

// Restore 从存储恢复同一会话的记录（重启后续用）
func (r *Recorder) Restore(ctx context.Context) (int, error) {
	if r.store == nil {
		return 0, nil
	}
	recs, err := r.store.List(ctx, r.sessionID)
	if err != nil {
		return 0, errors.Wrap(err, "restore hands")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range recs {
		if _, ok := r.bySeq[rec.HandNumber]; ok {
			continue
		}
		r.bySeq[rec.HandNumber] = len(r.records)
		r.records = append(r.records, rec)
		if rec.Settled() {
			r.bankroll = r.bankroll.Add(rec.Payout)
			r.history = append(r.history, r.bankroll)
		}
	}
	return len(recs), nil
}

// Close 停止记录并关闭存储
func (r *Recorder) Close() error {
	r.Stop()
	if r.store == nil {
		return nil
	}
	return r.store.Close()
}
