package session

import (
	"encoding/json"
	"fmt"
)

// 控制通道消息类型
const (
	MessageTypePose       = "pose"
	MessageTypeController = "controller"
	MessageTypeAck        = "ack"
)

// ControlMessage 控制通道消息的标记联合
// 消息一经解析即不可变，除消息本身外没有持久身份。
type ControlMessage interface {
	// ControlType 返回消息的 type 字段值
	ControlType() string
}

// Vector3 三维向量
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Quaternion 四元数姿态
type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// Vector2 二维向量（摇杆轴）
type Vector2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PoseMessage 头部姿态消息
// 以显示刷新率的节奏到达（毫秒级间隔）。
type PoseMessage struct {
	Type        string     `json:"type"`
	Timestamp   int64      `json:"timestamp"`
	Position    Vector3    `json:"position"`
	Orientation Quaternion `json:"orientation"`
}

// ControlType 返回消息类型
func (m *PoseMessage) ControlType() string { return MessageTypePose }

// ControllerMessage 手柄状态消息
// 到达频率约为姿态消息的三分之一，通道不对速率做任何假设。
type ControllerMessage struct {
	Type          string          `json:"type"`
	Timestamp     int64           `json:"timestamp"`
	LeftJoystick  Vector2         `json:"leftJoystick"`
	RightJoystick Vector2         `json:"rightJoystick"`
	Buttons       map[string]bool `json:"buttons"`
}

// ControlType 返回消息类型
func (m *ControllerMessage) ControlType() string { return MessageTypeController }

// AckMessage 服务端发起的确认消息，通道打开时发给观看端
type AckMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ControlType 返回消息类型
func (m *AckMessage) ControlType() string { return MessageTypeAck }

// messageEnvelope 只取 type 字段做分发，其余字段按类型二次解析
type messageEnvelope struct {
	Type string `json:"type"`
}

// ParseControlMessage 解析一条控制通道消息
// 未知的 type 返回 ErrUnknownMessageType，畸形 JSON 返回
// ErrMalformedMessage，两者都由调用方丢弃并记录，不向上传播。
// 已知类型之外的多余字段被容忍（前向兼容）。
func ParseControlMessage(data []byte) (ControlMessage, error) {
	var envelope messageEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	switch envelope.Type {
	case MessageTypePose:
		msg := &PoseMessage{}
		if err := json.Unmarshal(data, msg); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		return msg, nil

	case MessageTypeController:
		msg := &ControllerMessage{}
		if err := json.Unmarshal(data, msg); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		return msg, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessageType, envelope.Type)
	}
}
