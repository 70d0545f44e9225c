package adblock

import (
	"context"
	"runtime"
	"time"
)

// Build 分块解析规则行并构建 PatternStore
// 每处理完一块就让出调度并检查 ctx，使大规则集的构建不会长时间占用 CPU。
// ctx 取消时返回已插入部分和 ctx 错误。
func Build(ctx context.Context, lines []string, c *Categorizer, chunkSize int) (*PatternStore, LoadReport, error) {
	start := time.Now()
	if chunkSize <= 0 {
		chunkSize = len(lines)
	}

	store := NewPatternStore()
	report := newLoadReport()
	batch := make([]Rule, 0, min(chunkSize, len(lines)))

	for begin := 0; begin < len(lines); begin += chunkSize {
		if err := ctx.Err(); err != nil {
			report.Patterns = store.Len()
			return store, report, err
		}

		end := min(begin+chunkSize, len(lines))
		batch = batch[:0]
		for _, line := range lines[begin:end] {
			rule, reason := c.ParseLine(line)
			report.record(reason)
			if reason == SkipNone {
				batch = append(batch, rule)
			}
		}
		report.Inserted += store.InsertBatch(batch)

		runtime.Gosched()
	}

	report.Patterns = store.Len()
	report.LastUpdate = time.Now()
	report.DurationSeconds = time.Since(start).Seconds()
	return store, report, nil
}
