package webapi

import (
	"net/http"

	"trackerlens/engine"
	"trackerlens/stats"
)

// handleTotal 处理全局累计数请求
func (s *Server) handleTotal(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.Execute(r.Context(), engine.GetGlobalTotal{})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSONSuccess(w, "Global total retrieved", res)
}

// handleCounters 处理全局计数请求
func (s *Server) handleCounters(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.Execute(r.Context(), engine.GetGlobalCounters{})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSONSuccess(w, "Global counters retrieved", res)
}

// handleSetEnabled 启用或禁用请求观察
func (s *Server) handleSetEnabled(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Enabled *bool `json:"enabled"`
	}
	if !s.decodeJSON(w, r, &payload) {
		return
	}
	if payload.Enabled == nil {
		s.writeJSONError(w, "enabled is required", http.StatusBadRequest)
		return
	}

	res, err := s.engine.Execute(r.Context(), engine.SetEnabled{Enabled: *payload.Enabled})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	log.Infof("observation enabled set to %v via API", *payload.Enabled)
	s.writeJSONSuccess(w, "Enabled state updated", res)
}

// handleReset 清空全部会话、计数和持久化状态
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.Execute(r.Context(), engine.ResetAll{})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	log.Infof("all state reset via API")
	s.writeJSONSuccess(w, "All state reset", res)
}

// handleTestURL 诊断一个 URL 是否命中规则，不记录任何事件
func (s *Server) handleTestURL(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		s.writeJSONError(w, "Missing url parameter", http.StatusBadRequest)
		return
	}
	res, err := s.engine.Execute(r.Context(), engine.TestURL{URL: url})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSONSuccess(w, "URL tested", res)
}

// StatsResponse /api/stats 的返回内容
type StatsResponse struct {
	Stats    stats.Snapshot        `json:"stats"`
	Cache    interface{}           `json:"match_cache"`
	Counters engine.GlobalCounters `json:"counters"`
	Rules    interface{}           `json:"rules"`
}

// handleStats 处理统计信息请求
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	cacheStats, err := s.engine.CacheStats(r.Context())
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	counters, err := s.engine.Counters(r.Context())
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	resp := StatsResponse{
		Stats:    s.stats.GetStats(queryInt(r, "limit", 10)),
		Cache:    cacheStats,
		Counters: counters,
	}
	if s.rules != nil {
		resp.Rules = s.rules.LastReport()
	}
	s.writeJSONSuccess(w, "Stats retrieved", resp)
}

// handleHealth 处理健康检查请求
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"healthy"}`))
}
