package webapi

import (
	"net/http"
	"os"
	"path/filepath"
)

// handleGetCustomRules 读取自定义规则文件
func (s *Server) handleGetCustomRules(w http.ResponseWriter, r *http.Request) {
	s.customRulesMutex.RLock()
	defer s.customRulesMutex.RUnlock()

	content, err := os.ReadFile(s.cfg.Rules.CustomRulesFile)
	if err != nil {
		if os.IsNotExist(err) {
			s.writeJSONSuccess(w, "Custom rules", map[string]string{"content": ""})
			return
		}
		s.writeJSONError(w, "Failed to read custom rules file: "+err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSONSuccess(w, "Custom rules retrieved", map[string]string{"content": string(content)})
}

// handleSaveCustomRules 写入自定义规则文件并在后台重建规则集
func (s *Server) handleSaveCustomRules(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Content string `json:"content"`
	}
	if !s.decodeJSON(w, r, &payload) {
		return
	}

	s.customRulesMutex.Lock()
	defer s.customRulesMutex.Unlock()

	customRulesFile := s.cfg.Rules.CustomRulesFile
	if err := os.MkdirAll(filepath.Dir(customRulesFile), 0755); err != nil {
		s.writeJSONError(w, "Failed to create directory: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if err := os.WriteFile(customRulesFile, []byte(payload.Content), 0644); err != nil {
		s.writeJSONError(w, "Failed to write custom rules file: "+err.Error(), http.StatusInternalServerError)
		return
	}

	if s.rules != nil {
		s.reloadInBackground(false)
	}
	s.writeJSONSuccess(w, "Custom rules saved and rebuild triggered", nil)
}
