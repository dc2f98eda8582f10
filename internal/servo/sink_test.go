package servo

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/ph8tel/vr-telepresence/internal/config"
)

func listenerConfig(t *testing.T) (*config.ServoConfig, net.Listener) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	addr := ln.Addr().(*net.TCPAddr)
	return &config.ServoConfig{
		Enabled:     true,
		Host:        "127.0.0.1",
		Port:        addr.Port,
		DialTimeout: time.Second,
	}, ln
}

func TestSink_AbsentIsNoOp(t *testing.T) {
	sink := NewSink(config.DefaultServoConfig(), nil)
	defer sink.Close()

	// 默认配置链路缺席：连接不被尝试，转发是空操作
	sink.Connect()
	if sink.Connected() {
		t.Error("disabled sink must not connect")
	}

	if err := sink.Forward([]byte(`{"type":"controller"}`)); err != nil {
		t.Errorf("forward without connection must be a no-op, got %v", err)
	}
}

func TestSink_ConnectFailureLeavesAbsent(t *testing.T) {
	cfg, ln := listenerConfig(t)
	ln.Close()

	sink := NewSink(cfg, nil)
	defer sink.Close()

	sink.Connect()
	if sink.Connected() {
		t.Error("sink must stay absent when controller is unreachable")
	}

	if err := sink.Forward([]byte(`{}`)); err != nil {
		t.Errorf("forward after failed connect must be a no-op, got %v", err)
	}
}

func TestSink_NewlineFraming(t *testing.T) {
	cfg, ln := listenerConfig(t)

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	sink := NewSink(cfg, nil)
	defer sink.Close()

	sink.Connect()
	if !sink.Connected() {
		t.Fatal("sink failed to connect")
	}

	var conn net.Conn
	select {
	case conn = <-accepted:
	case <-time.After(time.Second):
		t.Fatal("controller never accepted connection")
	}
	defer conn.Close()

	payloads := []string{
		`{"type":"controller","timestamp":1}`,
		`{"type":"controller","timestamp":2}`,
	}
	for _, p := range payloads {
		if err := sink.Forward([]byte(p)); err != nil {
			t.Fatalf("forward failed: %v", err)
		}
	}

	// 每条消息一行，按发送顺序到达
	conn.SetReadDeadline(time.Now().Add(time.Second))
	scanner := bufio.NewScanner(conn)
	for _, want := range payloads {
		if !scanner.Scan() {
			t.Fatalf("missing line, scanner err: %v", scanner.Err())
		}
		if scanner.Text() != want {
			t.Errorf("expected line %q, got %q", want, scanner.Text())
		}
	}
}

func TestSink_WriteFailureDropsConnection(t *testing.T) {
	cfg, ln := listenerConfig(t)

	go func() {
		conn, err := ln.Accept()
		if err == nil {
			conn.Close()
		}
	}()

	sink := NewSink(cfg, nil)
	defer sink.Close()

	sink.Connect()
	if !sink.Connected() {
		t.Fatal("sink failed to connect")
	}

	// 对端关闭后写入最终失败，内核缓冲可能吞掉前几次写
	payload := []byte(`{"type":"controller"}`)
	deadline := time.Now().Add(2 * time.Second)
	for sink.Connected() && time.Now().Before(deadline) {
		sink.Forward(payload)
		time.Sleep(5 * time.Millisecond)
	}

	if sink.Connected() {
		t.Fatal("sink did not drop connection after write failure")
	}

	// 链路放弃后转发回到空操作
	if err := sink.Forward(payload); err != nil {
		t.Errorf("forward after dropped connection must be a no-op, got %v", err)
	}
}
