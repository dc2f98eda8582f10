package servo

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ph8tel/vr-telepresence/internal/config"
	"github.com/ph8tel/vr-telepresence/internal/metrics"
)

// Sink 下游舵机控制器链路
// 独占一条 TCP 连接，按换行分隔的 JSON 逐条写出。连接在启动时
// 尝试一次且不阻塞会话启动；写失败后连接被放弃，链路转为缺席，
// 之后的 Forward 都是空操作。显式传入、显式拥有——没有模块级
// 可变状态。
type Sink struct {
	config    *config.ServoConfig
	logger    *logrus.Entry
	collector *metrics.Collector

	mu   sync.Mutex
	conn net.Conn
}

// NewSink 创建舵机链路
func NewSink(cfg *config.ServoConfig, collector *metrics.Collector) *Sink {
	if cfg == nil {
		cfg = config.DefaultServoConfig()
	}

	return &Sink{
		config:    cfg,
		logger:    config.GetLoggerWithPrefix("servo-sink"),
		collector: collector,
	}
}

// Connect 启动时尝试连接一次
// 失败不是错误：记录后链路保持缺席，会话照常启动。
func (s *Sink) Connect() {
	if !s.config.Enabled {
		s.logger.Debug("Servo sink disabled")
		return
	}

	addr := net.JoinHostPort(s.config.Host, fmt.Sprintf("%d", s.config.Port))
	s.logger.Infof("Attempting to connect to servo controller at %s...", addr)

	conn, err := net.DialTimeout("tcp", addr, s.config.DialTimeout)
	if err != nil {
		s.logger.Warnf("Could not connect to servo controller at %s: %v", addr, err)
		s.logger.Warn("Continuing without servo control, controller data will not be forwarded")
		return
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	s.logger.Infof("Connected to servo controller at %s", addr)
}

// Forward 转发一条消息载荷
// 链路缺席时是空操作而不是错误。写失败时放弃连接并返回错误，
// 调用方只记录，绝不因此影响会话。
func (s *Sink) Forward(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}

	if err := s.writeFrame(payload); err != nil {
		s.logger.Warnf("Servo write failed, dropping connection: %v", err)
		s.collector.ServoError()
		s.conn.Close()
		s.conn = nil
		return err
	}

	return nil
}

// writeFrame 写一条换行分隔的消息
// 调用方必须持有 s.mu。
func (s *Sink) writeFrame(payload []byte) error {
	s.conn.SetWriteDeadline(time.Now().Add(time.Second))

	frame := make([]byte, 0, len(payload)+1)
	frame = append(frame, payload...)
	frame = append(frame, '\n')

	_, err := s.conn.Write(frame)
	return err
}

// Connected 链路当前是否可达
func (s *Sink) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Close 关闭链路
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}

	err := s.conn.Close()
	s.conn = nil
	return err
}
