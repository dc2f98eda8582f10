package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ph8tel/vr-telepresence/internal/capture"
	"github.com/ph8tel/vr-telepresence/internal/config"
	"github.com/ph8tel/vr-telepresence/internal/metrics"
	"github.com/ph8tel/vr-telepresence/internal/servo"
	"github.com/ph8tel/vr-telepresence/internal/session"
	"github.com/ph8tel/vr-telepresence/internal/webserver"
)

// App VR遥现应用
// 所有组件在这里显式构造并注入：采集设备不再是模块级状态，
// 测试可以替换成假帧源而没有导入时副作用。
type App struct {
	config     *config.Config
	source     *capture.FrameSource
	sink       *servo.Sink
	sessionMgr *session.Manager
	webServer  *webserver.Server
	metricsMgr *metrics.Manager
	logger     *logrus.Entry
	startTime  time.Time

	rootCtx    context.Context
	cancelFunc context.CancelFunc
	mu         sync.Mutex
	started    bool
}

// componentManager 统一的组件生命周期接口
type componentManager interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	IsRunning() bool
}

// NewApp 创建应用
func NewApp(cfg *config.Config, device capture.Device) (*App, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	rootCtx, cancelFunc := context.WithCancel(context.Background())

	metricsMgr, err := metrics.NewManager(rootCtx, cfg.Metrics)
	if err != nil {
		cancelFunc()
		return nil, fmt.Errorf("failed to create metrics manager: %w", err)
	}
	collector := metricsMgr.Collector()

	if device == nil {
		// 无硬件时的默认设备；真实立体相机通过同一接口接入
		device = capture.NewSyntheticDevice(
			cfg.Capture.FrameWidth, cfg.Capture.FrameHeight, cfg.Capture.FrameInterval())
	}

	source, err := capture.Open(device, cfg.Capture, collector)
	if err != nil {
		cancelFunc()
		return nil, fmt.Errorf("failed to open frame source: %w", err)
	}

	sink := servo.NewSink(cfg.Servo, collector)

	sessionMgr, err := session.NewManager(rootCtx, session.ManagerConfig{
		WebRTC:    cfg.WebRTC,
		Capture:   cfg.Capture,
		Source:    source,
		Handler:   &controlLogger{logger: config.GetLoggerWithPrefix("control-handler")},
		Forwarder: sink,
		Collector: collector,
	})
	if err != nil {
		source.Close()
		cancelFunc()
		return nil, fmt.Errorf("failed to create session manager: %w", err)
	}

	webServer, err := webserver.NewServer(cfg.WebServer, sessionMgr)
	if err != nil {
		source.Close()
		cancelFunc()
		return nil, fmt.Errorf("failed to create webserver: %w", err)
	}

	return &App{
		config:     cfg,
		source:     source,
		sink:       sink,
		sessionMgr: sessionMgr,
		webServer:  webServer,
		metricsMgr: metricsMgr,
		logger:     config.GetLoggerWithPrefix("app"),
		startTime:  time.Now(),
		rootCtx:    rootCtx,
		cancelFunc: cancelFunc,
	}, nil
}

// Start 启动应用
// 组件启动顺序：metrics → session → webserver；舵机链路的连接
// 尝试是一次性且非阻塞的，会话启动从不等待它。
func (app *App) Start() error {
	app.mu.Lock()
	defer app.mu.Unlock()

	if app.started {
		return fmt.Errorf("application already started")
	}

	// 可选下游链路：失败只是降级，不影响启动
	app.sink.Connect()

	managers := []struct {
		name    string
		manager componentManager
	}{
		{"metrics", app.metricsMgr},
		{"session", app.sessionMgr},
		{"webserver", app.webServer},
	}

	for i, mgr := range managers {
		app.logger.Infof("Starting %s manager...", mgr.name)

		if err := mgr.manager.Start(app.rootCtx); err != nil {
			app.logger.Errorf("Failed to start %s manager: %v", mgr.name, err)

			// 回滚：按相反顺序停掉已启动的组件
			for j := i - 1; j >= 0; j-- {
				if stopErr := managers[j].manager.Stop(app.rootCtx); stopErr != nil {
					app.logger.Errorf("Failed to stop %s during rollback: %v",
						managers[j].name, stopErr)
				}
			}

			return fmt.Errorf("failed to start %s manager: %w", mgr.name, err)
		}
	}

	app.started = true
	app.logger.Info("VR telepresence relay started")
	return nil
}

// Stop 停止应用
// 组件按启动的相反顺序停止，所有错误收集后一起上报。
func (app *App) Stop(ctx context.Context) error {
	app.mu.Lock()
	defer app.mu.Unlock()

	app.cancelFunc()

	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), app.config.Lifecycle.ShutdownTimeout)
		defer cancel()
	}

	managers := []struct {
		name    string
		manager componentManager
	}{
		{"webserver", app.webServer},
		{"session", app.sessionMgr},
		{"metrics", app.metricsMgr},
	}

	var errs []error
	for _, mgr := range managers {
		app.logger.Infof("Stopping %s manager...", mgr.name)
		if err := mgr.manager.Stop(ctx); err != nil {
			app.logger.Errorf("Failed to stop %s manager: %v", mgr.name, err)
			errs = append(errs, fmt.Errorf("failed to stop %s: %w", mgr.name, err))
		}
	}

	if err := app.sink.Close(); err != nil {
		app.logger.Warnf("Servo sink close: %v", err)
	}

	if err := app.source.Close(); err != nil {
		app.logger.Warnf("Frame source close: %v", err)
		errs = append(errs, fmt.Errorf("failed to close frame source: %w", err))
	}

	app.started = false

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	app.logger.Info("VR telepresence relay stopped")
	return nil
}

// SessionManager 获取会话管理器
func (app *App) SessionManager() *session.Manager {
	return app.sessionMgr
}

// controlLogger 默认的控制消息消费者，只做低等级日志
type controlLogger struct {
	logger *logrus.Entry
}

// OnPose 记录一条姿态消息
func (l *controlLogger) OnPose(msg *session.PoseMessage) {
	l.logger.Tracef("Pose: ts=%d pos=(%.3f,%.3f,%.3f)",
		msg.Timestamp, msg.Position.X, msg.Position.Y, msg.Position.Z)
}

// OnController 记录一条手柄消息
func (l *controlLogger) OnController(msg *session.ControllerMessage) {
	l.logger.Tracef("Controller: ts=%d left=(%.2f,%.2f) right=(%.2f,%.2f) buttons=%d",
		msg.Timestamp, msg.LeftJoystick.X, msg.LeftJoystick.Y,
		msg.RightJoystick.X, msg.RightJoystick.Y, len(msg.Buttons))
}
