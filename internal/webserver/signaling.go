package webserver

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/ph8tel/vr-telepresence/internal/session"
)

// 信令消息类型
const (
	signalRequestOffer = "request-offer"
	signalOffer        = "offer"
	signalAnswer       = "answer"
	signalAnswerAck    = "answer-ack"
	signalError        = "error"
)

// signalMessage WebSocket信令消息
// 与 HTTP 端点承载同一套 offer/answer 交换，便于观看端保持单条连接。
type signalMessage struct {
	Type    string `json:"type"`
	SDP     string `json:"sdp,omitempty"`
	Message string `json:"message,omitempty"`
}

var signalingUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// 信令面与观看页面跨域，检查交给CORS策略
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWebSocket WebSocket信令端点
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := signalingUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	s.logger.Infof("Signaling connection established: remote=%s", conn.RemoteAddr())

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warnf("Signaling connection error: %v", err)
			}
			return
		}

		var msg signalMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.writeSignal(conn, signalMessage{Type: signalError, Message: "invalid signaling message"})
			continue
		}

		s.dispatchSignal(conn, msg)
	}
}

// dispatchSignal 分发一条信令消息
func (s *Server) dispatchSignal(conn *websocket.Conn, msg signalMessage) {
	switch msg.Type {
	case signalRequestOffer:
		offer, err := s.sessions.CreateSession()
		if err != nil {
			if err == session.ErrSessionBusy {
				s.writeSignal(conn, signalMessage{Type: signalError, Message: "another session is active"})
				return
			}
			s.logger.Errorf("Offer creation failed: %v", err)
			s.writeSignal(conn, signalMessage{Type: signalError, Message: err.Error()})
			return
		}
		s.writeSignal(conn, signalMessage{Type: signalOffer, SDP: offer.SDP})

	case signalAnswer:
		if msg.SDP == "" {
			s.writeSignal(conn, signalMessage{Type: signalError, Message: "missing sdp"})
			return
		}
		if err := s.sessions.HandleAnswer(msg.SDP); err != nil {
			s.logger.Errorf("Answer processing failed: %v", err)
			s.writeSignal(conn, signalMessage{Type: signalError, Message: err.Error()})
			return
		}
		s.writeSignal(conn, signalMessage{Type: signalAnswerAck})

	default:
		// 未知信令类型按前向兼容忽略
		s.logger.Debugf("Ignoring unknown signaling message type: %q", msg.Type)
	}
}

// writeSignal 写一条信令消息
func (s *Server) writeSignal(conn *websocket.Conn, msg signalMessage) {
	if err := conn.WriteJSON(msg); err != nil {
		s.logger.Warnf("Failed to write signaling message: %v", err)
	}
}
