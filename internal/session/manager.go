package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/sirupsen/logrus"

	"github.com/ph8tel/vr-telepresence/internal/capture"
	"github.com/ph8tel/vr-telepresence/internal/config"
	"github.com/ph8tel/vr-telepresence/internal/metrics"
)

// SessionState 会话状态
type SessionState int

const (
	StateNew SessionState = iota
	StateOfferCreated
	StateAnswerApplied
	StateConnected
	StateDisconnected
	StateFailed
)

// String returns the string representation of SessionState
func (s SessionState) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateOfferCreated:
		return "offer-created"
	case StateAnswerApplied:
		return "answer-applied"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// sessionStateNames 会话状态仪表的全部标签值
var sessionStateNames = []string{
	"new", "offer-created", "answer-applied", "connected", "disconnected", "failed",
}

// captureFaultLimit 配对泵容忍的连续采集故障次数，超过后会话进入 failed
const captureFaultLimit = 10

// ManagerConfig 会话管理器构造参数
type ManagerConfig struct {
	// WebRTC 会话配置
	WebRTC *config.WebRTCConfig

	// Capture 采集配置（队列深度、帧间隔）
	Capture *config.CaptureConfig

	// Source 帧源，由调用方显式构造注入
	Source *capture.FrameSource

	// Handler 控制消息消费者，可为 nil
	Handler ControlHandler

	// Forwarder 下游转发目标（舵机链路），可为 nil
	Forwarder Forwarder

	// Collector 指标收集器，可为 nil
	Collector *metrics.Collector
}

// Manager 会话管理器
// 拥有会话生命周期：创建两个出站媒体槽、创建控制通道、生成 offer、
// 应用远端 answer、跟踪连接状态迁移，并在流故障时原地重启受影响的
// 适配器。单观看端设计：同一时间只支持一个会话。
type Manager struct {
	webrtcCfg  *config.WebRTCConfig
	captureCfg *config.CaptureConfig
	source     *capture.FrameSource
	handler    ControlHandler
	forwarder  Forwarder
	collector  *metrics.Collector
	logger     *logrus.Entry

	rootCtx context.Context

	mu      sync.Mutex
	running bool
	active  bool
	state   SessionState

	pc            *webrtc.PeerConnection
	media         *MediaStream
	control       *ControlChannel
	leftQueue     *capture.FrameQueue
	rightQueue    *capture.FrameQueue
	leftAdapter   *StreamAdapter
	rightAdapter  *StreamAdapter
	restarts      map[string]int
	sessionCancel context.CancelFunc
	pumpWg        sync.WaitGroup
}

// NewManager 创建会话管理器
func NewManager(ctx context.Context, cfg ManagerConfig) (*Manager, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context is required")
	}

	if cfg.Source == nil {
		return nil, fmt.Errorf("frame source is required")
	}

	webrtcCfg := cfg.WebRTC
	if webrtcCfg == nil {
		webrtcCfg = config.DefaultWebRTCConfig()
	}
	if err := webrtcCfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid webrtc config: %w", err)
	}

	captureCfg := cfg.Capture
	if captureCfg == nil {
		captureCfg = config.DefaultCaptureConfig()
	}

	return &Manager{
		webrtcCfg:  webrtcCfg,
		captureCfg: captureCfg,
		source:     cfg.Source,
		handler:    cfg.Handler,
		forwarder:  cfg.Forwarder,
		collector:  cfg.Collector,
		logger:     config.GetLoggerWithPrefix("session-manager"),
		rootCtx:    ctx,
		state:      StateNew,
		restarts:   make(map[string]int),
	}, nil
}

// Start 启动会话管理器
// 会话本身由信令面按需创建，这里只标记管理器可用。
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("session manager already running")
	}

	m.running = true
	m.logger.Info("Session manager started")
	return nil
}

// Stop 停止会话管理器，拆除活动会话
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	m.mu.Unlock()

	if err := m.CloseSession(); err != nil && !errors.Is(err, ErrNoSession) {
		return err
	}

	m.logger.Info("Session manager stopped")
	return nil
}

// IsRunning 检查管理器是否运行
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// CreateSession 创建会话并生成 offer
// 硬性顺序不变量：(1) 两个出站媒体槽以 sendonly 方向绑定左右适配器，
// (2) 创建控制通道，(3) 生成 offer——控制通道必须先于 offer 存在，
// 这样一轮协商即可完成，远端在 connected 后立刻能发控制消息。
// offer 中的顺序固定为 左眼、右眼、控制通道。
func (m *Manager) CreateSession() (*webrtc.SessionDescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil, fmt.Errorf("session manager not running")
	}

	if m.active {
		m.logger.Warn("Rejecting session request: another session is active")
		return nil, ErrSessionBusy
	}

	pc, err := webrtc.NewPeerConnection(m.peerConfiguration())
	if err != nil {
		return nil, fmt.Errorf("%w: create peer connection: %v", ErrNegotiationFailed, err)
	}

	media, err := NewMediaStream(m.webrtcCfg)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("%w: %v", ErrNegotiationFailed, err)
	}

	// 步骤1：两个出站媒体槽，显式 sendonly——服务端是纯媒体源
	for _, track := range []*webrtc.TrackLocalStaticSample{media.LeftTrack(), media.RightTrack()} {
		if _, err := pc.AddTransceiverFromTrack(track, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionSendonly,
		}); err != nil {
			pc.Close()
			return nil, fmt.Errorf("%w: add transceiver for %s: %v", ErrNegotiationFailed, track.ID(), err)
		}
	}

	// 步骤2：控制通道，必须先于 offer 创建
	control := NewControlChannel(m.handler, m.forwarder, m.collector)

	ordered := true
	maxRetransmits := uint16(0)
	dc, err := pc.CreateDataChannel(m.webrtcCfg.DataChannelLabel, &webrtc.DataChannelInit{
		Ordered:        &ordered,
		MaxRetransmits: &maxRetransmits,
	})
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("%w: create data channel: %v", ErrNegotiationFailed, err)
	}
	control.Attach(dc)

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		m.handleConnectionStateChange(state)
	})

	// 步骤3：生成 offer
	offer, err := pc.CreateOffer(nil)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("%w: create offer: %v", ErrNegotiationFailed, err)
	}

	if err := pc.SetLocalDescription(offer); err != nil {
		pc.Close()
		return nil, fmt.Errorf("%w: set local description: %v", ErrNegotiationFailed, err)
	}

	sessionCtx, sessionCancel := context.WithCancel(m.rootCtx)

	m.pc = pc
	m.media = media
	m.control = control
	m.leftQueue = capture.NewFrameQueue(m.captureCfg.QueueDepthPerEye)
	m.rightQueue = capture.NewFrameQueue(m.captureCfg.QueueDepthPerEye)
	m.sessionCancel = sessionCancel
	m.restarts = make(map[string]int)
	m.active = true

	m.leftAdapter = m.newAdapter("left", m.leftQueue, media.LeftSlot(), 0, 0)
	m.rightAdapter = m.newAdapter("right", m.rightQueue, media.RightSlot(), 0, 0)
	m.leftAdapter.Start(sessionCtx)
	m.rightAdapter.Start(sessionCtx)

	m.pumpWg.Add(1)
	go m.pairPump(sessionCtx)

	m.setStateLocked(StateOfferCreated)
	m.logger.Info("Session created: two sendonly slots and control channel negotiated in one offer")

	return pc.LocalDescription(), nil
}

// HandleAnswer 应用远端 answer
func (m *Manager) HandleAnswer(sdp string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.active {
		return ErrNoSession
	}

	answer := webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  sdp,
	}

	if err := m.pc.SetRemoteDescription(answer); err != nil {
		m.logger.Errorf("Failed to apply remote answer: %v", err)
		return fmt.Errorf("%w: set remote description: %v", ErrNegotiationFailed, err)
	}

	m.setStateLocked(StateAnswerApplied)
	m.logger.Info("Remote answer applied, waiting for transport to connect")
	return nil
}

// CloseSession 拆除活动会话
// 顺序：先停适配器和转发链路，再释放会话状态。
func (m *Manager) CloseSession() error {
	return m.teardown(StateDisconnected)
}

// State 返回当前会话状态
func (m *Manager) State() SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// HasActiveSession 当前是否有活动会话
func (m *Manager) HasActiveSession() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// GetStats 获取会话统计信息
func (m *Manager) GetStats() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := map[string]interface{}{
		"state":  m.state.String(),
		"active": m.active,
	}

	if m.media != nil {
		streamStats := m.media.GetStats()
		stats["left_samples_sent"] = streamStats.LeftSamplesSent
		stats["right_samples_sent"] = streamStats.RightSamplesSent
	}

	if m.control != nil {
		controlStats := m.control.GetStats()
		stats["pose_received"] = controlStats.PoseReceived
		stats["controller_received"] = controlStats.ControllerReceived
		stats["forwarded"] = controlStats.Forwarded
	}

	sourceStats := m.source.Stats()
	stats["pairs_delivered"] = sourceStats.PairsDelivered
	stats["pair_resyncs"] = sourceStats.Resyncs

	return stats
}

// peerConfiguration 由配置构造 pion 的 PeerConnection 配置
func (m *Manager) peerConfiguration() webrtc.Configuration {
	iceServers := make([]webrtc.ICEServer, 0, len(m.webrtcCfg.ICEServers))
	for _, server := range m.webrtcCfg.ICEServers {
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs:       server.URLs,
			Username:   server.Username,
			Credential: server.Credential,
		})
	}

	return webrtc.Configuration{
		ICEServers:    iceServers,
		BundlePolicy:  webrtc.BundlePolicyMaxBundle,
		RTCPMuxPolicy: webrtc.RTCPMuxPolicyRequire,
	}
}

// newAdapter 创建绑定到指定槽的流适配器
func (m *Manager) newAdapter(eye string, queue *capture.FrameQueue, slot TrackSlot, basePTS, baseSeq uint64) *StreamAdapter {
	return NewStreamAdapter(AdapterOptions{
		Eye:           eye,
		Queue:         queue,
		Slot:          slot,
		FrameInterval: m.captureCfg.FrameInterval(),
		WriteTimeout:  m.webrtcCfg.SlotWriteTimeout,
		BasePTS:       basePTS,
		BaseSequence:  baseSeq,
		OnFault:       m.handleAdapterFault,
		Collector:     m.collector,
	})
}

// pairPump 配对泵
// 从帧源取同步帧对，左右眼各自入队给对应适配器。采集故障在有界
// 次数内容忍（受影响的只是单帧），连续超限后会话进入 failed。
func (m *Manager) pairPump(ctx context.Context) {
	defer m.pumpWg.Done()

	faultStreak := 0

	for {
		pair, err := m.source.NextPair(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}

			switch {
			case errors.Is(err, capture.ErrCaptureTimeout), errors.Is(err, capture.ErrCaptureDesync):
				faultStreak++
				m.logger.Warnf("Transient capture fault (%d/%d): %v", faultStreak, captureFaultLimit, err)
				if faultStreak >= captureFaultLimit {
					m.logger.Error("Capture fault limit exceeded, failing session")
					// teardown 会等待本泵退出，必须异步触发
					go m.failSession()
					return
				}
				continue

			default:
				// 设备故障或帧源关闭：不可恢复
				m.logger.Errorf("Frame source unavailable: %v", err)
				go m.failSession()
				return
			}
		}

		faultStreak = 0

		if m.leftQueue.Push(pair.Left) {
			m.collector.FrameEvicted(metrics.EyeLeft)
		}
		if m.rightQueue.Push(pair.Right) {
			m.collector.FrameEvicted(metrics.EyeRight)
		}
	}
}

// handleConnectionStateChange 底层传输的连接状态回调
// connected 只能由该回调到达，绝不由本地假设。
func (m *Manager) handleConnectionStateChange(state webrtc.PeerConnectionState) {
	m.logger.Infof("Connection state changed: %s", state)

	switch state {
	case webrtc.PeerConnectionStateConnected:
		m.mu.Lock()
		if m.active {
			m.setStateLocked(StateConnected)
		}
		m.mu.Unlock()

	case webrtc.PeerConnectionStateDisconnected:
		m.mu.Lock()
		if m.active {
			m.setStateLocked(StateDisconnected)
		}
		m.mu.Unlock()

	case webrtc.PeerConnectionStateFailed:
		// failed 与 disconnected 对远端测试工具必须可区分：
		// failed 意味着会话终结，需要全新协商
		go func() {
			if err := m.teardown(StateFailed); err != nil && !errors.Is(err, ErrNoSession) {
				m.logger.Errorf("Teardown after transport failure: %v", err)
			}
		}()

	case webrtc.PeerConnectionStateClosed:
		m.mu.Lock()
		if m.active {
			m.setStateLocked(StateDisconnected)
		}
		m.mu.Unlock()
	}
}

// handleAdapterFault 流适配器故障回调
// 原地重启受影响的适配器（同一槽、PTS 连续），不重新协商整个会话，
// 避免另一只眼可见的中断。重启超限后会话进入 failed 并被拆除。
func (m *Manager) handleAdapterFault(eye string, faultErr error) {
	m.mu.Lock()

	if !m.active {
		m.mu.Unlock()
		return
	}

	m.restarts[eye]++
	if m.restarts[eye] > m.webrtcCfg.AdapterRestartLimit {
		m.logger.Errorf("Adapter restart limit exceeded: eye=%s, restarts=%d",
			eye, m.restarts[eye])
		m.mu.Unlock()

		// teardown 会等待故障适配器退出，必须脱离其协程异步触发
		go m.failSession()
		return
	}

	m.logger.Warnf("Restarting stream adapter in place: eye=%s, attempt=%d, cause=%v",
		eye, m.restarts[eye], faultErr)
	m.collector.AdapterRestarted(eye)

	var replacement *StreamAdapter
	sessionCtx := m.sessionContextLocked()
	if eye == "left" {
		replacement = m.newAdapter(eye, m.leftQueue, m.media.LeftSlot(),
			m.leftAdapter.NextPTS(), m.leftAdapter.NextSequence())
		m.leftAdapter = replacement
	} else {
		replacement = m.newAdapter(eye, m.rightQueue, m.media.RightSlot(),
			m.rightAdapter.NextPTS(), m.rightAdapter.NextSequence())
		m.rightAdapter = replacement
	}
	m.mu.Unlock()

	replacement.Start(sessionCtx)
}

// sessionContextLocked 返回会话作用域上下文
// 调用方必须持有 m.mu。
func (m *Manager) sessionContextLocked() context.Context {
	// 适配器重启绑定到会话取消语义：会话拆除时替换的适配器一并停止
	ctx, cancel := context.WithCancel(m.rootCtx)
	previous := m.sessionCancel
	m.sessionCancel = func() {
		cancel()
		if previous != nil {
			previous()
		}
	}
	return ctx
}

// failSession 会话进入 failed 并拆除
func (m *Manager) failSession() {
	if err := m.teardown(StateFailed); err != nil && !errors.Is(err, ErrNoSession) {
		m.logger.Errorf("Teardown of failed session: %v", err)
	}
}

// teardown 拆除活动会话
// 锁外等待适配器退出，避免与适配器故障回调互相死锁。
func (m *Manager) teardown(final SessionState) error {
	m.mu.Lock()
	if !m.active {
		m.mu.Unlock()
		return ErrNoSession
	}

	m.active = false
	pc := m.pc
	leftAdapter := m.leftAdapter
	rightAdapter := m.rightAdapter
	leftQueue := m.leftQueue
	rightQueue := m.rightQueue
	cancel := m.sessionCancel
	m.setStateLocked(final)
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	leftQueue.Close()
	rightQueue.Close()

	leftAdapter.Stop()
	rightAdapter.Stop()
	m.pumpWg.Wait()

	if err := pc.Close(); err != nil {
		m.logger.Warnf("Peer connection close: %v", err)
	}

	m.logger.Infof("Session torn down: final_state=%s", final)
	return nil
}

// setStateLocked 更新会话状态
// 调用方必须持有 m.mu；状态迁移与本地 offer/answer 步骤和异步
// 连接状态通知串行化，避免竞争。
func (m *Manager) setStateLocked(state SessionState) {
	if m.state == state {
		return
	}

	m.logger.Infof("Session state: %s -> %s", m.state, state)
	m.state = state
	m.collector.SessionStateChanged(state.String(), sessionStateNames)
}
