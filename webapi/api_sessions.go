package webapi

import (
	"net/http"

	"trackerlens/engine"
)

type urlPayload struct {
	URL string `json:"url"`
}

// handleGetSession 返回会话的最近事件和计数
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.Execute(r.Context(), engine.GetSessionState{Handle: r.PathValue("handle")})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSONSuccess(w, "Session state retrieved", res)
}

// handleClearSession 清空会话的事件列表，计数保留
func (s *Server) handleClearSession(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.Execute(r.Context(), engine.ClearSessionLog{Handle: r.PathValue("handle")})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSONSuccess(w, "Session log cleared", res)
}

// handleObserve 上报一次出站请求
func (s *Server) handleObserve(w http.ResponseWriter, r *http.Request) {
	var payload urlPayload
	if !s.decodeJSON(w, r, &payload) {
		return
	}
	if payload.URL == "" {
		s.writeJSONError(w, "URL cannot be empty", http.StatusBadRequest)
		return
	}

	res, err := s.engine.Observe(r.Context(), r.PathValue("handle"), payload.URL)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSONSuccess(w, "Request observed", res)
}

// handleNavigate 上报会话的顶层导航
func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	var payload urlPayload
	if !s.decodeJSON(w, r, &payload) {
		return
	}

	if err := s.engine.Navigate(r.Context(), r.PathValue("handle"), payload.URL); err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSONSuccess(w, "Navigation recorded", engine.Ack{OK: true})
}

// handleCloseSession 丢弃会话
func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.CloseSession(r.Context(), r.PathValue("handle")); err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSONSuccess(w, "Session closed", engine.Ack{OK: true})
}

// handleBadgeRefresh 请求刷新角标；不带 handle 时刷新所有会话
func (s *Server) handleBadgeRefresh(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.Execute(r.Context(), engine.RequestBadgeRefresh{Handle: r.PathValue("handle")})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSONSuccess(w, "Badge refresh scheduled", res)
}
