package session

import (
	"context"
	"testing"
	"time"

	"github.com/ph8tel/vr-telepresence/internal/capture"
	"github.com/ph8tel/vr-telepresence/internal/config"
)

// scriptedStereoDevice 产出固定数量帧对后阻塞的测试设备
type scriptedStereoDevice struct {
	remaining int
	done      chan struct{}
}

func (d *scriptedStereoDevice) ReadPair() (*capture.RawFrame, *capture.RawFrame, error) {
	if d.remaining <= 0 {
		<-d.done
		return nil, nil, capture.ErrCaptureFault
	}
	d.remaining--
	return grayFrame(0), grayFrame(0), nil
}

func (d *scriptedStereoDevice) Close() error {
	select {
	case <-d.done:
	default:
		close(d.done)
	}
	return nil
}

// TestStereoRelay_FivePairs 完整的立体中继路径：
// 设备产出5个同步帧对，经帧源对齐后左右眼各自适配提交，
// 每只眼恰好得到5个序号0..4、时间戳严格递增的样本。
func TestStereoRelay_FivePairs(t *testing.T) {
	device := &scriptedStereoDevice{remaining: 5, done: make(chan struct{})}

	captureCfg := config.DefaultCaptureConfig()
	captureCfg.FrameWidth = 2
	captureCfg.FrameHeight = 2
	// 深度放宽到能容纳整个脚本，测试里不允许出现淘汰
	captureCfg.QueueDepthPerEye = 8

	source, err := capture.Open(device, captureCfg, nil)
	if err != nil {
		t.Fatalf("open source: %v", err)
	}
	defer source.Close()

	leftQueue := capture.NewFrameQueue(captureCfg.QueueDepthPerEye)
	rightQueue := capture.NewFrameQueue(captureCfg.QueueDepthPerEye)
	leftSlot := newFakeSlot("left")
	rightSlot := newFakeSlot("right")

	interval := time.Second / 30
	left := NewStreamAdapter(AdapterOptions{
		Eye: "left", Queue: leftQueue, Slot: leftSlot, FrameInterval: interval,
	})
	right := NewStreamAdapter(AdapterOptions{
		Eye: "right", Queue: rightQueue, Slot: rightSlot, FrameInterval: interval,
	})
	left.Start(context.Background())
	right.Start(context.Background())
	defer left.Stop()
	defer right.Stop()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		pair, err := source.NextPair(ctx)
		if err != nil {
			t.Fatalf("next pair %d: %v", i, err)
		}
		if pair.Left.CaptureIndex != pair.Right.CaptureIndex {
			t.Fatalf("pair %d not aligned", i)
		}
		leftQueue.Push(pair.Left)
		rightQueue.Push(pair.Right)
	}

	for _, slot := range []*fakeSlot{leftSlot, rightSlot} {
		samples := waitSamples(t, slot, 5)
		if len(samples) != 5 {
			t.Fatalf("%s eye: expected 5 samples, got %d", slot.Eye(), len(samples))
		}
		for i, sample := range samples {
			if sample.Sequence != uint64(i) {
				t.Errorf("%s eye sample %d: sequence %d", slot.Eye(), i, sample.Sequence)
			}
			if i > 0 && sample.PTS <= samples[i-1].PTS {
				t.Errorf("%s eye: pts not strictly increasing at sample %d", slot.Eye(), i)
			}
		}
	}
}
