package session

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ph8tel/vr-telepresence/internal/capture"
	"github.com/ph8tel/vr-telepresence/internal/config"
)

func testManager(t *testing.T) *Manager {
	t.Helper()

	captureCfg := config.DefaultCaptureConfig()
	captureCfg.FrameWidth = 8
	captureCfg.FrameHeight = 8
	captureCfg.FrameIntervalSeconds = 0.005

	device := capture.NewSyntheticDevice(
		captureCfg.FrameWidth, captureCfg.FrameHeight, captureCfg.FrameInterval())
	source, err := capture.Open(device, captureCfg, nil)
	if err != nil {
		t.Fatalf("open source: %v", err)
	}
	t.Cleanup(func() { source.Close() })

	mgr, err := NewManager(context.Background(), ManagerConfig{
		Capture: captureCfg,
		Source:  source,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("start manager: %v", err)
	}
	t.Cleanup(func() { mgr.Stop(context.Background()) })

	return mgr
}

func TestManager_SingleSession(t *testing.T) {
	mgr := testManager(t)

	offer, err := mgr.CreateSession()
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if offer == nil || offer.SDP == "" {
		t.Fatal("expected non-empty offer")
	}
	if mgr.State() != StateOfferCreated {
		t.Errorf("expected state offer-created, got %s", mgr.State())
	}

	// 单观看端：第二个会话请求必须被拒绝
	if _, err := mgr.CreateSession(); !errors.Is(err, ErrSessionBusy) {
		t.Errorf("expected ErrSessionBusy, got %v", err)
	}

	if err := mgr.CloseSession(); err != nil {
		t.Fatalf("close session: %v", err)
	}

	// 拆除后新会话可以创建
	if _, err := mgr.CreateSession(); err != nil {
		t.Errorf("create session after close: %v", err)
	}
	mgr.CloseSession()
}

func TestManager_OfferMediaOrdering(t *testing.T) {
	mgr := testManager(t)

	offer, err := mgr.CreateSession()
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	defer mgr.CloseSession()

	// offer 的 m-line 顺序：两路视频在前，控制通道在后
	var mlines []string
	for _, line := range strings.Split(offer.SDP, "\n") {
		if strings.HasPrefix(line, "m=") {
			mlines = append(mlines, strings.Fields(line)[0])
		}
	}

	want := []string{"m=video", "m=video", "m=application"}
	if len(mlines) != len(want) {
		t.Fatalf("expected %d m-lines, got %v", len(want), mlines)
	}
	for i, mline := range mlines {
		if mline != want[i] {
			t.Errorf("m-line %d: expected %s, got %s", i, want[i], mline)
		}
	}
}

func TestManager_AnswerWithoutSession(t *testing.T) {
	mgr := testManager(t)

	err := mgr.HandleAnswer("v=0")
	if !errors.Is(err, ErrNoSession) {
		t.Errorf("expected ErrNoSession, got %v", err)
	}
}

func TestManager_CloseWithoutSession(t *testing.T) {
	mgr := testManager(t)

	if err := mgr.CloseSession(); !errors.Is(err, ErrNoSession) {
		t.Errorf("expected ErrNoSession, got %v", err)
	}
}

func TestManager_StatsReflectSession(t *testing.T) {
	mgr := testManager(t)

	stats := mgr.GetStats()
	if stats["active"] != false {
		t.Errorf("expected inactive session in stats, got %v", stats["active"])
	}

	if _, err := mgr.CreateSession(); err != nil {
		t.Fatalf("create session: %v", err)
	}
	defer mgr.CloseSession()

	// 给配对泵一点时间送帧
	time.Sleep(50 * time.Millisecond)

	stats = mgr.GetStats()
	if stats["active"] != true {
		t.Errorf("expected active session in stats, got %v", stats["active"])
	}
	if _, ok := stats["pairs_delivered"]; !ok {
		t.Error("expected pairs_delivered in stats")
	}
}

func TestSessionState_String(t *testing.T) {
	cases := map[SessionState]string{
		StateNew:           "new",
		StateOfferCreated:  "offer-created",
		StateAnswerApplied: "answer-applied",
		StateConnected:     "connected",
		StateDisconnected:  "disconnected",
		StateFailed:        "failed",
		SessionState(99):   "unknown",
	}

	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("state %d: expected %q, got %q", state, want, got)
		}
	}
}
