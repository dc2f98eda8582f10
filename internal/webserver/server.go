package webserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/ph8tel/vr-telepresence/internal/config"
	"github.com/ph8tel/vr-telepresence/internal/session"
)

// Server 信令Web服务器
// 承载会话协商面：一个端点返回本地生成的 offer，一个端点接受远端
// answer。描述的具体承载（HTTP 或 WebSocket）都走这里。
type Server struct {
	config   *config.WebServerConfig
	sessions *session.Manager
	server   *http.Server
	router   *mux.Router
	logger   *logrus.Entry

	mutex     sync.RWMutex
	running   bool
	startTime time.Time
}

// answerRequest 远端 answer 的请求体
type answerRequest struct {
	SDP  string `json:"sdp"`
	Type string `json:"type"`
}

// offerResponse offer 端点的响应体
type offerResponse struct {
	SDP  string `json:"sdp"`
	Type string `json:"type"`
}

// NewServer 创建信令服务器
func NewServer(cfg *config.WebServerConfig, sessions *session.Manager) (*Server, error) {
	if cfg == nil {
		cfg = config.DefaultWebServerConfig()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid webserver config: %w", err)
	}

	if sessions == nil {
		return nil, fmt.Errorf("session manager is required")
	}

	s := &Server{
		config:   cfg,
		sessions: sessions,
		router:   mux.NewRouter(),
		logger:   config.GetLoggerWithPrefix("webserver"),
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// setupRoutes 注册路由和中间件
func (s *Server) setupRoutes() {
	if s.config.EnableCORS {
		s.router.Use(s.corsMiddleware)
	}
	s.router.Use(s.loggingMiddleware)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/offer", s.handleOffer).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/answer", s.handleAnswer).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/ws", s.handleWebSocket).Methods(http.MethodGet)

	if s.config.StaticDir != "" {
		s.router.PathPrefix("/").Handler(http.FileServer(http.Dir(s.config.StaticDir)))
	}
}

// handleOffer 创建会话并返回本地生成的 offer
func (s *Server) handleOffer(w http.ResponseWriter, r *http.Request) {
	offer, err := s.sessions.CreateSession()
	if err != nil {
		if err == session.ErrSessionBusy {
			s.writeError(w, http.StatusConflict, "another session is active")
			return
		}
		s.logger.Errorf("Offer creation failed: %v", err)
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, offerResponse{
		SDP:  offer.SDP,
		Type: offer.Type.String(),
	})
}

// handleAnswer 接受远端 answer 并应用
func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid answer body")
		return
	}

	if req.SDP == "" {
		s.writeError(w, http.StatusBadRequest, "missing sdp")
		return
	}

	if err := s.sessions.HandleAnswer(req.SDP); err != nil {
		if err == session.ErrNoSession {
			s.writeError(w, http.StatusConflict, "no active session")
			return
		}
		s.logger.Errorf("Answer processing failed: %v", err)
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStatus 会话与采集状态
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mutex.RLock()
	uptime := time.Since(s.startTime).Seconds()
	s.mutex.RUnlock()

	status := map[string]interface{}{
		"uptime":  uptime,
		"session": s.sessions.GetStats(),
	}

	s.writeJSON(w, http.StatusOK, status)
}

// handleHealth 健康检查端点
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Start 启动服务器
func (s *Server) Start(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.running {
		return fmt.Errorf("webserver already running")
	}

	s.running = true
	s.startTime = time.Now()

	go func() {
		s.logger.Infof("Signaling server listening on %s", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Errorf("Webserver error: %v", err)
		}
	}()

	return nil
}

// Stop 优雅停止服务器
func (s *Server) Stop(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.running {
		return nil
	}

	s.running = false
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown webserver: %w", err)
	}

	s.logger.Info("Webserver stopped")
	return nil
}

// IsRunning 检查服务器是否运行
func (s *Server) IsRunning() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.running
}

// Router 获取路由器实例（测试用）
func (s *Server) Router() *mux.Router {
	return s.router
}

// writeJSON 写JSON响应
func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warnf("Failed to encode response: %v", err)
	}
}

// writeError 写JSON错误响应
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// corsMiddleware CORS中间件
// 远端观看页面通常跨域访问信令端点，原始实现同样全放开。
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware 请求日志中间件
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debugf("%s %s %v", r.Method, r.URL.Path, time.Since(start))
	})
}
