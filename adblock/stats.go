package adblock

import (
	"time"
)

// LoadReport 描述一次规则加载的结果
type LoadReport struct {
	Lines           int                `json:"lines"`
	Inserted        int                `json:"inserted"`
	Patterns        int                `json:"patterns"`
	Skipped         map[SkipReason]int `json:"skipped"`
	Exceptions      int                `json:"exceptions"`
	Sources         int                `json:"sources"`
	FailedSources   []string           `json:"failed_sources"`
	LastUpdate      time.Time          `json:"last_update"`
	DurationSeconds float64            `json:"duration_seconds"`
}

func newLoadReport() LoadReport {
	return LoadReport{Skipped: make(map[SkipReason]int)}
}

// record 统计一行的处理结果
func (r *LoadReport) record(reason SkipReason) {
	r.Lines++
	if reason != SkipNone {
		r.Skipped[reason]++
	}
}

// SkippedTotal 返回被跳过的行数
func (r LoadReport) SkippedTotal() int {
	total := 0
	for _, n := range r.Skipped {
		total += n
	}
	return total
}
