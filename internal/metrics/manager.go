package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/ph8tel/vr-telepresence/internal/config"
)

// Manager 监控组件管理器
// 持有 Prometheus 注册表和领域指标收集器，并在独立端口上暴露 /metrics。
type Manager struct {
	config    *config.MetricsConfig
	registry  *prometheus.Registry
	collector *Collector
	server    *http.Server
	logger    *logrus.Entry
	running   bool
	mutex     sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewManager 创建监控管理器
func NewManager(ctx context.Context, cfg *config.MetricsConfig) (*Manager, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context is required")
	}

	if cfg == nil {
		cfg = config.DefaultMetricsConfig()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid metrics config: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	collector, err := NewCollector(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to register domain collectors: %w", err)
	}

	childCtx, cancel := context.WithCancel(ctx)

	return &Manager{
		config:    cfg,
		registry:  registry,
		collector: collector,
		logger:    config.GetLoggerWithPrefix("metrics"),
		ctx:       childCtx,
		cancel:    cancel,
	}, nil
}

// Collector 获取领域指标收集器
// 监控被禁用时仍返回有效的收集器，指标只是不对外暴露。
func (m *Manager) Collector() *Collector {
	return m.collector
}

// Registry 获取 Prometheus 注册表
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Start 启动监控HTTP服务
func (m *Manager) Start(ctx context.Context) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if !m.config.Enabled {
		m.logger.Info("Metrics endpoint disabled, collectors remain local")
		return nil
	}

	if m.running {
		return fmt.Errorf("metrics manager already running")
	}

	handler := http.NewServeMux()
	handler.Handle(m.config.Path, promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	m.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", m.config.Host, m.config.Port),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		m.logger.Infof("Metrics endpoint listening on %s%s", m.server.Addr, m.config.Path)
		if err := m.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			m.logger.Errorf("Metrics server error: %v", err)
		}
	}()

	m.running = true
	return nil
}

// Stop 停止监控HTTP服务
func (m *Manager) Stop(ctx context.Context) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.cancel()

	if !m.running {
		return nil
	}

	m.running = false
	if m.server != nil {
		if err := m.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown metrics server: %w", err)
		}
	}

	m.logger.Info("Metrics manager stopped")
	return nil
}

// IsRunning 检查服务是否运行
func (m *Manager) IsRunning() bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.running
}

// IsEnabled 检查监控是否启用
func (m *Manager) IsEnabled() bool {
	return m.config.Enabled
}
