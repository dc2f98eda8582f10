package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestCollector_NilSafe(t *testing.T) {
	// 指标被禁用时各模块持有 nil 收集器，所有记录方法必须是空操作
	var c *Collector

	c.FramePairCaptured()
	c.FrameEvicted(EyeLeft)
	c.PairResync()
	c.PairDesync()
	c.SampleWritten(EyeRight)
	c.SampleDropped(EyeRight)
	c.AdapterRestarted(EyeLeft)
	c.ControlMessage("pose")
	c.ControlMalformed()
	c.ServoForwarded()
	c.ServoError()
	c.SessionStateChanged("connected", []string{"new", "connected"})
}

func TestCollector_RegistersAndCounts(t *testing.T) {
	registry := prometheus.NewRegistry()
	c, err := NewCollector(registry)
	if err != nil {
		t.Fatalf("new collector: %v", err)
	}

	c.FramePairCaptured()
	c.FramePairCaptured()
	c.FrameEvicted(EyeLeft)
	c.SessionStateChanged("connected", []string{"new", "connected"})

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	found := make(map[string]bool)
	for _, mf := range families {
		found[mf.GetName()] = true
	}

	for _, name := range []string{
		"vrt_frames_captured_total",
		"vrt_frames_evicted_total",
		"vrt_session_state",
	} {
		if !found[name] {
			t.Errorf("metric %s not registered", name)
		}
	}
}

func TestCollector_DuplicateRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()
	if _, err := NewCollector(registry); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if _, err := NewCollector(registry); err == nil {
		t.Error("expected duplicate registration to fail")
	}
}
