package persistence

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/betbot/bjadvisor/pkg/logger"
	"github.com/pkg/errors"
)

// Service 持久化服务接口
type Service interface {
	NewStore(prefix, id, tag string) Store
	// IDs 列出某个前缀下已保存的 id（按字典序）
	IDs(prefix string) ([]string, error)
}

// Store 存储接口
type Store interface {
	Save(data interface{}) error
	Load(data interface{}) error
	Delete() error
}

// ErrNotExists 表示数据不存在
var ErrNotExists = errors.New("persistence data not exists")

// JSONFileService 基于 JSON 文件的持久化服务
type JSONFileService struct {
	baseDir string
}

// NewJSONFileService 创建 JSON 文件持久化服务
func NewJSONFileService(baseDir string) *JSONFileService {
	return &JSONFileService{
		baseDir: baseDir,
	}
}

// BaseDir 根目录
func (s *JSONFileService) BaseDir() string { return s.baseDir }

// NewStore 创建新的存储，文件名为 <prefix>_<id>_<tag>.json
func (s *JSONFileService) NewStore(prefix, id, tag string) Store {
	return &JSONFileStore{
		service: s,
		prefix:  prefix,
		id:      id,
		tag:     tag,
	}
}

// IDs 扫描目录，返回 prefix 下的全部 id
func (s *JSONFileService) IDs(prefix string) ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "read persistence dir")
	}
	head := sanitize(prefix) + "_"
	seen := make(map[string]struct{})
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, head) || !strings.HasSuffix(name, ".json") {
			continue
		}
		rest := strings.TrimSuffix(strings.TrimPrefix(name, head), ".json")
		if i := strings.LastIndex(rest, "_"); i > 0 {
			rest = rest[:i]
		}
		seen[rest] = struct{}{}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// JSONFileStore JSON 文件存储实现
type JSONFileStore struct {
	service *JSONFileService
	prefix  string
	id      string
	tag     string
}

var keySanitizer = regexp.MustCompile(`[^a-zA-Z0-9.-]+`)

func sanitize(s string) string {
	return keySanitizer.ReplaceAllString(s, "-")
}

func (s *JSONFileStore) key() string {
	return s.prefix + ":" + s.id + ":" + s.tag
}

func (s *JSONFileStore) filePath() string {
	// 各段单独做文件名安全化，段内不允许出现分隔符 "_"
	name := sanitize(s.prefix) + "_" + sanitize(s.id) + "_" + sanitize(s.tag) + ".json"
	return filepath.Join(s.service.baseDir, name)
}

// Save 原子写入（先写临时文件再 rename）
func (s *JSONFileStore) Save(data interface{}) error {
	logger.Debugf("[persistence] Save: key=%s", s.key())
	if err := os.MkdirAll(s.service.baseDir, 0o755); err != nil {
		return errors.Wrap(err, "create persistence dir")
	}

	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "marshal %s", s.key())
	}

	path := s.filePath()
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return errors.Wrapf(err, "write %s", tmp)
	}
	return errors.Wrapf(os.Rename(tmp, path), "rename %s", tmp)
}

// Load 加载数据，文件不存在或为空时返回 ErrNotExists
func (s *JSONFileStore) Load(data interface{}) error {
	logger.Debugf("[persistence] Load: key=%s", s.key())
	b, err := os.ReadFile(s.filePath())
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotExists
		}
		return errors.Wrapf(err, "read %s", s.key())
	}
	if len(b) == 0 {
		return ErrNotExists
	}
	return errors.Wrapf(json.Unmarshal(b, data), "unmarshal %s", s.key())
}

// Delete 删除数据，不存在时不报错
func (s *JSONFileStore) Delete() error {
	err := os.Remove(s.filePath())
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "delete %s", s.key())
	}
	return nil
}
