package session

import (
	"bytes"
	"sync"
	"testing"
)

// recordingHandler 录制回调的测试处理器
type recordingHandler struct {
	mu          sync.Mutex
	poses       []*PoseMessage
	controllers []*ControllerMessage
}

func (h *recordingHandler) OnPose(msg *PoseMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.poses = append(h.poses, msg)
}

func (h *recordingHandler) OnController(msg *ControllerMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.controllers = append(h.controllers, msg)
}

// recordingForwarder 录制转发载荷的测试转发器
type recordingForwarder struct {
	mu       sync.Mutex
	payloads [][]byte
	err      error
}

func (f *recordingForwarder) Forward(payload []byte) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	buf := make([]byte, len(payload))
	copy(buf, payload)
	f.payloads = append(f.payloads, buf)
	return nil
}

func (f *recordingForwarder) Connected() bool { return f.err == nil }

var poseJSON = []byte(`{"type":"pose","timestamp":5,"position":{"x":0,"y":1.6,"z":0},` +
	`"orientation":{"x":0,"y":0,"z":0,"w":1}}`)

var controllerJSON = []byte(`{"type":"controller","timestamp":6,` +
	`"leftJoystick":{"x":0.5,"y":0},"rightJoystick":{"x":0,"y":0},"buttons":{"trigger":true}}`)

func TestControlChannel_PoseNeverForwarded(t *testing.T) {
	handler := &recordingHandler{}
	forwarder := &recordingForwarder{}
	cc := NewControlChannel(handler, forwarder, nil)

	cc.handleMessage(poseJSON)

	if len(handler.poses) != 1 {
		t.Fatalf("expected 1 pose delivered, got %d", len(handler.poses))
	}
	if len(forwarder.payloads) != 0 {
		t.Errorf("pose must never reach the forwarder, got %d payloads", len(forwarder.payloads))
	}

	stats := cc.GetStats()
	if stats.PoseReceived != 1 {
		t.Errorf("expected 1 pose received, got %d", stats.PoseReceived)
	}
	if stats.Forwarded != 0 {
		t.Errorf("expected 0 forwarded, got %d", stats.Forwarded)
	}
}

func TestControlChannel_ControllerForwardedVerbatim(t *testing.T) {
	handler := &recordingHandler{}
	forwarder := &recordingForwarder{}
	cc := NewControlChannel(handler, forwarder, nil)

	cc.handleMessage(controllerJSON)

	if len(handler.controllers) != 1 {
		t.Fatalf("expected 1 controller delivered, got %d", len(handler.controllers))
	}
	if len(forwarder.payloads) != 1 {
		t.Fatalf("expected exactly 1 forwarded payload, got %d", len(forwarder.payloads))
	}

	// 转发的是原始字节，不是重新序列化的副本
	if !bytes.Equal(forwarder.payloads[0], controllerJSON) {
		t.Errorf("forwarded payload differs from original:\n got %s\nwant %s",
			forwarder.payloads[0], controllerJSON)
	}

	stats := cc.GetStats()
	if stats.ControllerReceived != 1 || stats.Forwarded != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestControlChannel_MalformedNeverFatal(t *testing.T) {
	handler := &recordingHandler{}
	cc := NewControlChannel(handler, nil, nil)

	cc.handleMessage([]byte(`garbage`))
	cc.handleMessage([]byte(`{"type":"warp-drive"}`))
	cc.handleMessage(poseJSON)

	// 畸形和未知消息被丢弃，后续合法消息照常处理
	if len(handler.poses) != 1 {
		t.Errorf("expected 1 pose after discards, got %d", len(handler.poses))
	}

	stats := cc.GetStats()
	if stats.Discarded != 2 {
		t.Errorf("expected 2 discarded messages, got %d", stats.Discarded)
	}
}

func TestControlChannel_NilCollaborators(t *testing.T) {
	cc := NewControlChannel(nil, nil, nil)

	// 无 handler 无 forwarder 时只计数，不 panic
	cc.handleMessage(poseJSON)
	cc.handleMessage(controllerJSON)

	stats := cc.GetStats()
	if stats.PoseReceived != 1 || stats.ControllerReceived != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestControlChannel_ForwardFailureTolerated(t *testing.T) {
	handler := &recordingHandler{}
	forwarder := &recordingForwarder{err: ErrTransportClosed}
	cc := NewControlChannel(handler, forwarder, nil)

	cc.handleMessage(controllerJSON)

	// 转发失败降级：消息仍送达本地处理器，会话不受影响
	if len(handler.controllers) != 1 {
		t.Errorf("expected controller delivered despite forward failure")
	}
	if cc.GetStats().Forwarded != 0 {
		t.Errorf("failed forward must not be counted")
	}
}

func TestControlChannel_SendBeforeAttach(t *testing.T) {
	cc := NewControlChannel(nil, nil, nil)

	err := cc.Send(&AckMessage{Type: MessageTypeAck, Message: "hello"})
	if err != ErrTransportClosed {
		t.Errorf("expected ErrTransportClosed before attach, got %v", err)
	}
}
