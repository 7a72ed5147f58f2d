package decisionlog

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/0Papitchu/GBPBot-sub001/internal/types"
)

var mu sync.Mutex

// Entry is one scored subject with its gate outcome, appended as a JSON line
// to the daily file.
type Entry struct {
	Time        string  `json:"time"`
	Token       string  `json:"token"`
	Pair        string  `json:"pair,omitempty"`
	Score       int     `json:"score"`
	Confidence  float64 `json:"confidence"`
	ProviderID  string  `json:"provider_id"`
	Volatility  string  `json:"volatility"`
	Admit       bool    `json:"admit"`
	Review      bool    `json:"review,omitempty"`
	SlippageBps float64 `json:"slippage_bps,omitempty"`
	Rationale   string  `json:"rationale,omitempty"`

	Extra map[string]any `json:"extra,omitempty"`
}

func logDir() string {
	if v := os.Getenv("GBPBOT_LOG_DIR"); v != "" {
		return v
	}
	return "logs"
}

func dailyFilepath(t time.Time) string {
	d := t.UTC().Format("2006-01-02")
	return filepath.Join(logDir(), "decisions", d+".txt")
}

// Append writes one decision entry to the daily decisions file.
func Append(rec types.DecisionRecord, subject types.Subject, params types.ExecutionParams) error {
	mu.Lock()
	defer mu.Unlock()

	now := time.Now().UTC()
	e := Entry{
		Time:        now.Format("2006-01-02 15:04:05"),
		Token:       subject.TokenAddress,
		Pair:        subject.PairAddress,
		Score:       rec.Score,
		Confidence:  rec.Confidence,
		ProviderID:  rec.ProviderID,
		Volatility:  string(rec.Volatility),
		Admit:       params.Admit,
		Review:      params.Review,
		SlippageBps: params.SlippageBps,
		Rationale:   rec.Rationale,
	}

	p := dailyFilepath(now)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	b, _ := json.Marshal(e)
	_, err = fmt.Fprintln(f, string(b))
	return err
}

// CompressOlder gzips daily files older than retentionDays and removes the
// originals. A zero or negative retention disables compression.
func CompressOlder(retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	root := logDir()
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	return filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(p) != ".txt" {
			return nil
		}
		info, er := os.Stat(p)
		if er != nil || !info.ModTime().Before(cutoff) {
			return nil
		}

		gz := p + ".gz"
		if _, e2 := os.Stat(gz); e2 == nil {
			// Already compressed on a previous pass.
			return os.Remove(p)
		}

		in, e3 := os.Open(p)
		if e3 != nil {
			return nil
		}
		defer in.Close()

		out, e4 := os.OpenFile(gz, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if e4 != nil {
			return nil
		}
		gw := gzip.NewWriter(out)
		_, copyErr := io.Copy(gw, in)
		_ = gw.Close()
		_ = out.Close()
		if copyErr == nil {
			_ = os.Remove(p)
		}
		return nil
	})
}
