package session

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/sirupsen/logrus"

	"github.com/ph8tel/vr-telepresence/internal/config"
	"github.com/ph8tel/vr-telepresence/internal/metrics"
)

// ControlHandler 控制通道消费者
// 在通道构造时显式注册，没有隐式的全局处理表。
type ControlHandler interface {
	// OnPose 收到一条头部姿态消息
	OnPose(msg *PoseMessage)

	// OnController 收到一条手柄状态消息
	OnController(msg *ControllerMessage)
}

// Forwarder 下游转发目标
// 舵机链路实现该接口。转发是尽力而为：目标缺席时 Forward 是
// 空操作，不是错误，通道照常运行。
type Forwarder interface {
	// Forward 转发一条原始消息载荷
	Forward(payload []byte) error

	// Connected 目标当前是否可达
	Connected() bool
}

// ControlChannel 会话数据通道上的双向类型化消息协议
// 由入站消息事件驱动，与视频路径完全解耦。消息按到达顺序处理，
// 不重排不合并，也不做任何速率控制——那是远端的职责。
type ControlChannel struct {
	handler   ControlHandler
	forwarder Forwarder
	logger    *logrus.Entry
	collector *metrics.Collector

	mu    sync.Mutex
	dc    *webrtc.DataChannel
	open  bool
	stats ControlChannelStats
}

// ControlChannelStats 控制通道统计信息
type ControlChannelStats struct {
	PoseReceived       uint64
	ControllerReceived uint64
	Discarded          uint64
	Forwarded          uint64
	SentByServer       uint64
}

// NewControlChannel 创建控制通道
// handler 和 forwarder 都可为 nil：无 handler 时只做计数与转发，
// 无 forwarder 时不转发。
func NewControlChannel(handler ControlHandler, forwarder Forwarder, collector *metrics.Collector) *ControlChannel {
	return &ControlChannel{
		handler:   handler,
		forwarder: forwarder,
		logger:    config.GetLoggerWithPrefix("control-channel"),
		collector: collector,
	}
}

// Attach 绑定底层数据通道并注册事件回调
// 必须在 offer 生成前调用（通道先于 offer 存在），这样 offer 的
// 描述已经协商了通道，远端在 connected 后即可发送控制消息。
func (cc *ControlChannel) Attach(dc *webrtc.DataChannel) {
	cc.mu.Lock()
	cc.dc = dc
	cc.mu.Unlock()

	dc.OnOpen(func() {
		cc.mu.Lock()
		cc.open = true
		cc.mu.Unlock()

		cc.logger.Infof("Control channel open: label=%s", dc.Label())

		// 原始行为：通道打开即向观看端发送服务端确认
		if err := cc.Send(&AckMessage{Type: MessageTypeAck, Message: "server ready to receive pose data"}); err != nil {
			cc.logger.Warnf("Failed to send ack: %v", err)
		}
	})

	dc.OnClose(func() {
		cc.mu.Lock()
		cc.open = false
		cc.mu.Unlock()

		cc.logger.Infof("Control channel closed: label=%s", dc.Label())
	})

	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		cc.handleMessage(msg.Data)
	})
}

// handleMessage 处理一条入站消息
// 畸形或未知类型的消息被丢弃并记录，从不致命，从不向上传播。
func (cc *ControlChannel) handleMessage(data []byte) {
	msg, err := ParseControlMessage(data)
	if err != nil {
		cc.collector.ControlMalformed()
		cc.mu.Lock()
		cc.stats.Discarded++
		cc.mu.Unlock()

		if errors.Is(err, ErrUnknownMessageType) {
			cc.logger.Debugf("Ignoring unknown control message: %v", err)
		} else {
			cc.logger.Debugf("Discarding malformed control message: %v", err)
		}
		return
	}

	switch m := msg.(type) {
	case *PoseMessage:
		cc.collector.ControlMessage(MessageTypePose)
		cc.mu.Lock()
		cc.stats.PoseReceived++
		cc.mu.Unlock()

		if cc.handler != nil {
			cc.handler.OnPose(m)
		}

	case *ControllerMessage:
		cc.collector.ControlMessage(MessageTypeController)
		cc.mu.Lock()
		cc.stats.ControllerReceived++
		cc.mu.Unlock()

		if cc.handler != nil {
			cc.handler.OnController(m)
		}

		// 只有手柄消息转发给下游，姿态消息从不转发
		cc.forward(data)
	}
}

// forward 尽力而为地转发一条原始载荷
func (cc *ControlChannel) forward(payload []byte) {
	if cc.forwarder == nil {
		return
	}

	if err := cc.forwarder.Forward(payload); err != nil {
		// 转发失败降级为日志，绝不影响会话
		cc.logger.Debugf("Forward failed: %v", err)
		return
	}

	if cc.forwarder.Connected() {
		cc.collector.ServoForwarded()
		cc.mu.Lock()
		cc.stats.Forwarded++
		cc.mu.Unlock()
	}
}

// Send 推送一条服务端发起的消息
func (cc *ControlChannel) Send(msg ControlMessage) error {
	cc.mu.Lock()
	dc := cc.dc
	open := cc.open
	cc.mu.Unlock()

	if dc == nil || !open {
		return ErrTransportClosed
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	if err := dc.SendText(string(data)); err != nil {
		return err
	}

	cc.mu.Lock()
	cc.stats.SentByServer++
	cc.mu.Unlock()
	return nil
}

// IsOpen 通道当前是否打开
func (cc *ControlChannel) IsOpen() bool {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.open
}

// GetStats 获取通道统计信息
func (cc *ControlChannel) GetStats() ControlChannelStats {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.stats
}
