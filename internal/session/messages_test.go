package session

import (
	"errors"
	"testing"
)

func TestParseControlMessage_Pose(t *testing.T) {
	data := []byte(`{
		"type": "pose",
		"timestamp": 1724668800123,
		"position": {"x": 0.1, "y": 1.6, "z": -0.2},
		"orientation": {"x": 0, "y": 0.707, "z": 0, "w": 0.707}
	}`)

	msg, err := ParseControlMessage(data)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	pose, ok := msg.(*PoseMessage)
	if !ok {
		t.Fatalf("expected *PoseMessage, got %T", msg)
	}
	if pose.ControlType() != MessageTypePose {
		t.Errorf("expected type %q, got %q", MessageTypePose, pose.ControlType())
	}
	if pose.Timestamp != 1724668800123 {
		t.Errorf("unexpected timestamp: %d", pose.Timestamp)
	}
	if pose.Position.Y != 1.6 {
		t.Errorf("unexpected position.y: %v", pose.Position.Y)
	}
	if pose.Orientation.W != 0.707 {
		t.Errorf("unexpected orientation.w: %v", pose.Orientation.W)
	}
}

func TestParseControlMessage_Controller(t *testing.T) {
	data := []byte(`{
		"type": "controller",
		"timestamp": 1724668800456,
		"leftJoystick": {"x": -0.5, "y": 0.25},
		"rightJoystick": {"x": 0.0, "y": -1.0},
		"buttons": {"trigger": true, "grip": false}
	}`)

	msg, err := ParseControlMessage(data)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	ctrl, ok := msg.(*ControllerMessage)
	if !ok {
		t.Fatalf("expected *ControllerMessage, got %T", msg)
	}
	if ctrl.LeftJoystick.X != -0.5 {
		t.Errorf("unexpected leftJoystick.x: %v", ctrl.LeftJoystick.X)
	}
	if ctrl.RightJoystick.Y != -1.0 {
		t.Errorf("unexpected rightJoystick.y: %v", ctrl.RightJoystick.Y)
	}
	if !ctrl.Buttons["trigger"] || ctrl.Buttons["grip"] {
		t.Errorf("unexpected buttons: %v", ctrl.Buttons)
	}
}

func TestParseControlMessage_UnknownType(t *testing.T) {
	_, err := ParseControlMessage([]byte(`{"type": "haptics", "intensity": 0.8}`))
	if !errors.Is(err, ErrUnknownMessageType) {
		t.Errorf("expected ErrUnknownMessageType, got %v", err)
	}
}

func TestParseControlMessage_Malformed(t *testing.T) {
	cases := [][]byte{
		[]byte(`not json at all`),
		[]byte(`{"type": "pose", "position": "not-an-object"}`),
		[]byte(``),
	}

	for _, data := range cases {
		if _, err := ParseControlMessage(data); !errors.Is(err, ErrMalformedMessage) {
			t.Errorf("input %q: expected ErrMalformedMessage, got %v", data, err)
		}
	}
}

func TestParseControlMessage_ExtraFieldsTolerated(t *testing.T) {
	// 前向兼容：已知类型携带未知字段不是错误
	data := []byte(`{"type": "pose", "timestamp": 1, "position": {"x": 0, "y": 0, "z": 0},
		"orientation": {"x": 0, "y": 0, "z": 0, "w": 1}, "confidence": 0.97, "frame": "local"}`)

	msg, err := ParseControlMessage(data)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if _, ok := msg.(*PoseMessage); !ok {
		t.Errorf("expected *PoseMessage, got %T", msg)
	}
}
