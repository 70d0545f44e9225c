package webapi

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"trackerlens/adblock"
	"trackerlens/config"
	"trackerlens/engine"
	"trackerlens/logger"
	"trackerlens/stats"
)

var log = logger.With("WebAPI")

// APIResponse 统一的 API 响应格式
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Server Web API 服务器
// 会话命令、规则管理和运行统计都通过它对外暴露。
type Server struct {
	cfg      *config.Config
	engine   *engine.Engine
	rules    *adblock.Manager
	stats    *stats.Stats
	listener http.Server

	customRulesMutex sync.RWMutex

	// 后台规则重载使用的上下文，Stop 时取消
	baseCtx    context.Context
	cancelBase context.CancelFunc
	background sync.WaitGroup
}

// NewServer 创建新的 Web API 服务器
func NewServer(cfg *config.Config, eng *engine.Engine, rules *adblock.Manager, st *stats.Stats) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:        cfg,
		engine:     eng,
		rules:      rules,
		stats:      st,
		baseCtx:    ctx,
		cancelBase: cancel,
	}
}

// Handler 返回注册了全部路由的处理器
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// 会话
	mux.HandleFunc("GET /api/sessions/{handle}", s.handleGetSession)
	mux.HandleFunc("DELETE /api/sessions/{handle}", s.handleCloseSession)
	mux.HandleFunc("POST /api/sessions/{handle}/clear", s.handleClearSession)
	mux.HandleFunc("POST /api/sessions/{handle}/observe", s.handleObserve)
	mux.HandleFunc("POST /api/sessions/{handle}/navigate", s.handleNavigate)
	mux.HandleFunc("POST /api/sessions/{handle}/badge", s.handleBadgeRefresh)
	mux.HandleFunc("POST /api/badges/refresh", s.handleBadgeRefresh)

	// 全局状态
	mux.HandleFunc("GET /api/total", s.handleTotal)
	mux.HandleFunc("GET /api/counters", s.handleCounters)
	mux.HandleFunc("POST /api/enabled", s.handleSetEnabled)
	mux.HandleFunc("POST /api/reset", s.handleReset)
	mux.HandleFunc("GET /api/test", s.handleTestURL)
	mux.HandleFunc("GET /api/stats", s.handleStats)

	// 规则
	mux.HandleFunc("GET /api/rules/status", s.handleRulesStatus)
	mux.HandleFunc("GET /api/rules/sources", s.handleRuleSources)
	mux.HandleFunc("PUT /api/rules/sources", s.handleToggleRuleSource)
	mux.HandleFunc("POST /api/rules/update", s.handleRulesUpdate)
	mux.HandleFunc("GET /api/rules/custom", s.handleGetCustomRules)
	mux.HandleFunc("POST /api/rules/custom", s.handleSaveCustomRules)

	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /health", s.handleHealth)

	return s.corsMiddleware(mux)
}

// Start 启动 Web API 服务，阻塞直到 Stop
func (s *Server) Start() error {
	if !s.cfg.WebAPI.Enabled {
		log.Infof("WebAPI is disabled")
		return nil
	}

	s.listener = http.Server{
		Addr:              s.cfg.WebAPI.ListenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Infof("Web API server listening on %s", s.cfg.WebAPI.ListenAddr)
	if err := s.listener.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop 关闭 HTTP 服务并等待后台规则重载结束
func (s *Server) Stop(ctx context.Context) error {
	err := s.listener.Shutdown(ctx)
	s.cancelBase()
	s.background.Wait()
	return err
}

// reloadInBackground 在后台重新构建规则集
func (s *Server) reloadInBackground(fetch bool) {
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		if _, err := s.engine.ReloadRules(s.baseCtx, s.rules, fetch); err != nil {
			log.Errorf("background rule reload failed: %v", err)
		}
	}()
}
