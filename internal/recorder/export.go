package recorder

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Format 导出格式
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatYAML Format = "yaml"
)

// ParseFormat 解析导出格式（yml 视为 yaml）
func ParseFormat(s string) (Format, error) {
	switch f := strings.ToLower(strings.TrimSpace(s)); f {
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", errors.Errorf("unknown export format %q", s)
}

// Report 导出内容：统计 + 全部手牌
type Report struct {
	Summary Summary      `json:"summary" yaml:"summary"`
	Hands   []HandRecord `json:"hands" yaml:"-"`
}

var csvHeader = []string{
	"hand_number", "hand_index", "decided_at", "player_cards", "player_total", "is_soft", "dealer_upcard",
	"running_count", "true_count", "insurance", "recommended", "actual", "bet", "outcome", "payout", "forced",
}

// Export 写出会话。CSV 每手一行；YAML 只写统计；JSON 写统计和手牌
func (r *Recorder) Export(w io.Writer, f Format) error {
	rep := Report{Summary: r.Summary(), Hands: r.Hands()}
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(rep), "encode json")
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rep); err != nil {
			return errors.Wrap(err, "encode yaml")
		}
		return errors.Wrap(enc.Close(), "encode yaml")
	case FormatCSV:
		return writeCSV(w, rep.Hands)
	}
	return errors.Errorf("unknown export format %q", f)
}

func writeCSV(w io.Writer, hands []HandRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return errors.Wrap(err, "write csv header")
	}
	for _, h := range hands {
		actual := ""
		if h.Actual != nil {
			actual = h.Actual.String()
		}
		row := []string{
			strconv.Itoa(h.HandNumber),
			strconv.Itoa(h.HandIndex),
			h.DecidedAt.Format("2006-01-02T15:04:05.000Z07:00"),
			strings.Join(h.PlayerCards, " "),
			strconv.Itoa(h.PlayerTotal),
			strconv.FormatBool(h.IsSoft),
			h.DealerUpcard,
			strconv.Itoa(h.RunningCount),
			strconv.FormatFloat(h.TrueCount, 'f', 2, 64),
			strconv.FormatBool(h.Insurance),
			h.Recommendation(),
			actual,
			h.Bet.StringFixed(2),
			string(h.Outcome),
			h.Payout.StringFixed(2),
			strconv.FormatBool(h.Forced),
		}
		if err := cw.Write(row); err != nil {
			return errors.Wrapf(err, "write csv row %d", h.HandNumber)
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flush csv")
}

// ExportFile 写到 dir/session_<id>.<ext>，返回文件路径
func (r *Recorder) ExportFile(dir string, f Format) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "create export dir")
	}
	path := filepath.Join(dir, fmt.Sprintf("session_%s.%s", r.sessionID, f))
	file, err := os.Create(path)
	if err != nil {
		return "", errors.Wrapf(err, "create %s", path)
	}
	if err := r.Export(file, f); err != nil {
		file.Close()
		return "", err
	}
	if err := file.Close(); err != nil {
		return "", errors.Wrapf(err, "close %s", path)
	}
	log.Infof("会话已导出: %s", path)
	return path, nil
}
