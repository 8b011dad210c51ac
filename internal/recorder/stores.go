package recorder

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/betbot/bjadvisor/pkg/kvstore"
	"github.com/betbot/bjadvisor/pkg/persistence"
	"github.com/pkg/errors"
)

func sortHands(recs []HandRecord) {
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].HandNumber < recs[j].HandNumber })
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// MemoryStore 内存存储，测试与 store=none 时使用
type MemoryStore struct {
	mu   sync.Mutex
	byID map[string]HandRecord
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]HandRecord)}
}

func (m *MemoryStore) Put(_ context.Context, rec HandRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[rec.ID] = rec
	return nil
}

func (m *MemoryStore) List(_ context.Context, sessionID string) ([]HandRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []HandRecord
	for _, rec := range m.byID {
		if rec.SessionID == sessionID {
			out = append(out, rec)
		}
	}
	sortHands(out)
	return out, nil
}

func (m *MemoryStore) Sessions(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]struct{})
	for _, rec := range m.byID {
		seen[rec.SessionID] = struct{}{}
	}
	return sortedKeys(seen), nil
}

func (m *MemoryStore) Close() error { return nil }

// JSONStore 每个会话一个 JSON 文件：hands_<session>_records.json。
// 每次 Put 重写整个文件，适合一局几百手的规模。
type JSONStore struct {
	mu      sync.Mutex
	service persistence.Service
	cache   map[string][]HandRecord
}

// NewJSONStore 基于持久化服务
func NewJSONStore(service persistence.Service) *JSONStore {
	return &JSONStore{service: service, cache: make(map[string][]HandRecord)}
}

func (s *JSONStore) load(sessionID string) ([]HandRecord, error) {
	if recs, ok := s.cache[sessionID]; ok {
		return recs, nil
	}
	var recs []HandRecord
	err := s.service.NewStore("hands", sessionID, "records").Load(&recs)
	if err != nil && !errors.Is(err, persistence.ErrNotExists) {
		return nil, err
	}
	s.cache[sessionID] = recs
	return recs, nil
}

func (s *JSONStore) Put(_ context.Context, rec HandRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs, err := s.load(rec.SessionID)
	if err != nil {
		return err
	}
	replaced := false
	for i := range recs {
		if recs[i].ID == rec.ID {
			recs[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		recs = append(recs, rec)
	}
	sortHands(recs)
	s.cache[rec.SessionID] = recs
	return s.service.NewStore("hands", rec.SessionID, "records").Save(recs)
}

func (s *JSONStore) List(_ context.Context, sessionID string) ([]HandRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs, err := s.load(sessionID)
	if err != nil {
		return nil, err
	}
	return append([]HandRecord(nil), recs...), nil
}

func (s *JSONStore) Sessions(_ context.Context) ([]string, error) {
	return s.service.IDs("hands")
}

func (s *JSONStore) Close() error { return nil }

// BadgerStore 键为 hand/<session>/<编号补零>，按键序遍历即为手牌顺序
type BadgerStore struct {
	kv *kvstore.Store
}

// NewBadgerStore 使用已打开的 kvstore，Close 时一并关闭
func NewBadgerStore(kv *kvstore.Store) *BadgerStore {
	return &BadgerStore{kv: kv}
}

func badgerPrefix(sessionID string) string { return "hand/" + sessionID + "/" }

func badgerKey(rec HandRecord) string {
	return fmt.Sprintf("%s%08d/%02d", badgerPrefix(rec.SessionID), rec.HandNumber, rec.HandIndex)
}

func (b *BadgerStore) Put(_ context.Context, rec HandRecord) error {
	return errors.Wrapf(b.kv.PutJSON(badgerKey(rec), rec), "put hand #%d", rec.HandNumber)
}

func (b *BadgerStore) List(ctx context.Context, sessionID string) ([]HandRecord, error) {
	var out []HandRecord
	err := b.kv.Scan(badgerPrefix(sessionID), func(key string, raw []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		var rec HandRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return errors.Wrapf(err, "decode %s", key)
		}
		out = append(out, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *BadgerStore) Sessions(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	err := b.kv.Scan("hand/", func(key string, _ []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		rest := strings.TrimPrefix(key, "hand/")
		if i := strings.Index(rest, "/"); i > 0 {
			seen[rest[:i]] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sortedKeys(seen), nil
}

func (b *BadgerStore) Close() error { return b.kv.Close() }

// OpenOptions 按配置选择存储
type OpenOptions struct {
	Kind          string // json | badger | sqlite | none
	DataDir       string
	EncryptionKey []byte // 仅 badger
}

// OpenStore 打开存储后端
func OpenStore(opts OpenOptions) (Store, error) {
	switch strings.ToLower(opts.Kind) {
	case "", "none":
		return NewMemoryStore(), nil
	case "json":
		return NewJSONStore(persistence.NewJSONFileService(filepath.Join(opts.DataDir, "hands"))), nil
	case "badger":
		kv, err := kvstore.Open(kvstore.OpenOptions{
			Path:          filepath.Join(opts.DataDir, "badger"),
			EncryptionKey: opts.EncryptionKey,
		})
		if err != nil {
			return nil, err
		}
		return NewBadgerStore(kv), nil
	case "sqlite":
		db, err := OpenSQLiteStore(filepath.Join(opts.DataDir, "hands.db"))
		if err != nil {
			return nil, err
		}
		return db, nil
	}
	return nil, errors.Errorf("unknown store %q", opts.Kind)
}
