package webapi

import (
	"net/http"
)

// handleRulesStatus 返回最近一次规则构建的报告
func (s *Server) handleRulesStatus(w http.ResponseWriter, r *http.Request) {
	if s.rules == nil {
		s.writeJSONError(w, "Rule manager is not available", http.StatusServiceUnavailable)
		return
	}
	s.writeJSONSuccess(w, "Rule status retrieved", s.rules.LastReport())
}

// handleRuleSources 列出规则源及其状态
func (s *Server) handleRuleSources(w http.ResponseWriter, r *http.Request) {
	if s.rules == nil {
		s.writeJSONError(w, "Rule manager is not available", http.StatusServiceUnavailable)
		return
	}
	s.writeJSONSuccess(w, "Rule sources retrieved", s.rules.GetSources())
}

// handleToggleRuleSource 启用或禁用规则源，随后在后台重建规则集
func (s *Server) handleToggleRuleSource(w http.ResponseWriter, r *http.Request) {
	if s.rules == nil {
		s.writeJSONError(w, "Rule manager is not available", http.StatusServiceUnavailable)
		return
	}

	var payload struct {
		URL     string `json:"url"`
		Enabled bool   `json:"enabled"`
	}
	if !s.decodeJSON(w, r, &payload) {
		return
	}
	if payload.URL == "" {
		s.writeJSONError(w, "URL cannot be empty", http.StatusBadRequest)
		return
	}
	if err := s.rules.SetSourceEnabled(payload.URL, payload.Enabled); err != nil {
		log.Errorf("failed to set source %s enabled to %v: %v", payload.URL, payload.Enabled, err)
		s.writeJSONError(w, "Failed to update source: "+err.Error(), http.StatusNotFound)
		return
	}

	s.reloadInBackground(false)
	s.writeJSONSuccess(w, "Rule source updated, rebuild started", nil)
}

// handleRulesUpdate 在后台重新下载并构建规则集
func (s *Server) handleRulesUpdate(w http.ResponseWriter, r *http.Request) {
	if s.rules == nil {
		s.writeJSONError(w, "Rule manager is not available", http.StatusServiceUnavailable)
		return
	}
	log.Infof("rule update requested via API")
	s.reloadInBackground(true)
	s.writeJSONSuccess(w, "Rule update started in background", nil)
}
