package session

import "errors"

var (
	// ErrSessionBusy 已有活动会话，单观看端设计下拒绝第二个会话
	ErrSessionBusy = errors.New("session: another session is active")

	// ErrNoSession 当前没有活动会话
	ErrNoSession = errors.New("session: no active session")

	// ErrNegotiationFailed offer/answer 协商失败
	ErrNegotiationFailed = errors.New("session: negotiation failed")

	// ErrTransportClosed 底层传输已关闭
	ErrTransportClosed = errors.New("session: transport closed")

	// ErrMalformedMessage 控制消息无法解析，局部错误，从不致命
	ErrMalformedMessage = errors.New("session: malformed control message")

	// ErrUnknownMessageType 控制消息类型未知，按前向兼容要求静默忽略
	ErrUnknownMessageType = errors.New("session: unknown control message type")
)
