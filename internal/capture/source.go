package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ph8tel/vr-telepresence/internal/config"
	"github.com/ph8tel/vr-telepresence/internal/metrics"
)

// FrameSource 同步双流帧源
// 包装采集设备，硬件读取运行在独立协程上，每眼维护一个有界队列，
// 生产者（硬件）与消费者（适配器）解耦。NextPair 按 CaptureIndex
// 对齐左右眼，分歧时丢弃过期一侧并在有界次数内重新同步。
type FrameSource struct {
	config    *config.CaptureConfig
	device    Device
	left      *FrameQueue
	right     *FrameQueue
	logger    *logrus.Entry
	collector *metrics.Collector

	mu       sync.Mutex
	faultErr error
	stats    SourceStats

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// SourceStats 帧源统计信息
type SourceStats struct {
	PairsRead      uint64
	PairsDelivered uint64
	Resyncs        uint64
	Desyncs        uint64
	EvictedLeft    uint64
	EvictedRight   uint64
}

// Open 打开帧源并启动硬件读取协程
// 设备由调用方显式构造注入，测试可以替换为合成设备，没有任何
// 包级状态或导入时副作用。
func Open(device Device, cfg *config.CaptureConfig, collector *metrics.Collector) (*FrameSource, error) {
	if device == nil {
		return nil, fmt.Errorf("capture device is required")
	}

	if cfg == nil {
		cfg = config.DefaultCaptureConfig()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid capture config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &FrameSource{
		config:    cfg,
		device:    device,
		left:      NewFrameQueue(cfg.QueueDepthPerEye),
		right:     NewFrameQueue(cfg.QueueDepthPerEye),
		logger:    config.GetLoggerWithPrefix("frame-source"),
		collector: collector,
		ctx:       ctx,
		cancel:    cancel,
	}

	s.wg.Add(1)
	go s.readLoop()

	s.logger.Infof("Frame source opened: %dx%d, interval=%v, queue_depth=%d",
		cfg.FrameWidth, cfg.FrameHeight, cfg.FrameInterval(), cfg.QueueDepthPerEye)

	return s, nil
}

// readLoop 硬件读取循环，运行在独立协程上
// 设备故障时记录并退出，不负责硬件重连，那是外部协作者的职责。
func (s *FrameSource) readLoop() {
	defer s.wg.Done()

	var captureIndex uint64

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		left, right, err := s.device.ReadPair()
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			s.logger.Errorf("Capture device fault: %v", err)
			s.mu.Lock()
			s.faultErr = err
			s.mu.Unlock()
			s.left.Close()
			s.right.Close()
			return
		}

		left.CaptureIndex = captureIndex
		right.CaptureIndex = captureIndex
		captureIndex++

		s.mu.Lock()
		s.stats.PairsRead++
		s.mu.Unlock()
		s.collector.FramePairCaptured()

		if s.left.Push(left) {
			s.collector.FrameEvicted(metrics.EyeLeft)
			s.mu.Lock()
			s.stats.EvictedLeft++
			s.mu.Unlock()
		}
		if s.right.Push(right) {
			s.collector.FrameEvicted(metrics.EyeRight)
			s.mu.Lock()
			s.stats.EvictedRight++
			s.mu.Unlock()
		}
	}
}

// NextPair 阻塞取下一个同步的帧对
// 左右眼 CaptureIndex 分歧时丢弃过期一侧并重试，超过
// ResyncAttempts 次后返回 ErrCaptureDesync。读取超时返回
// ErrCaptureTimeout，设备故障返回 ErrCaptureFault。
func (s *FrameSource) NextPair(ctx context.Context) (*FramePair, error) {
	waitCtx, cancel := context.WithTimeout(ctx, s.config.ReadTimeout)
	defer cancel()

	left, err := s.popFrame(waitCtx, s.left)
	if err != nil {
		return nil, err
	}

	right, err := s.popFrame(waitCtx, s.right)
	if err != nil {
		return nil, err
	}

	resyncs := 0
	for left.CaptureIndex != right.CaptureIndex {
		if resyncs >= s.config.ResyncAttempts {
			s.collector.PairDesync()
			s.mu.Lock()
			s.stats.Desyncs++
			s.mu.Unlock()
			s.logger.Errorf("Eye desync beyond resync limit: left=%d right=%d attempts=%d",
				left.CaptureIndex, right.CaptureIndex, resyncs)
			return nil, ErrCaptureDesync
		}
		resyncs++
		s.collector.PairResync()
		s.mu.Lock()
		s.stats.Resyncs++
		s.mu.Unlock()

		// 丢弃序号落后（过期）的一侧，从同一眼补一帧
		if left.CaptureIndex < right.CaptureIndex {
			s.logger.Debugf("Dropping stale left frame %d (right at %d)",
				left.CaptureIndex, right.CaptureIndex)
			left, err = s.popFrame(waitCtx, s.left)
		} else {
			s.logger.Debugf("Dropping stale right frame %d (left at %d)",
				right.CaptureIndex, left.CaptureIndex)
			right, err = s.popFrame(waitCtx, s.right)
		}
		if err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	s.stats.PairsDelivered++
	s.mu.Unlock()

	return &FramePair{Left: left, Right: right, CaptureIndex: left.CaptureIndex}, nil
}

// popFrame 从单眼队列取帧并归一化错误
func (s *FrameSource) popFrame(ctx context.Context, q *FrameQueue) (*RawFrame, error) {
	frame, err := q.Pop(ctx)
	if err == nil {
		return frame, nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return nil, ErrCaptureTimeout
	}

	if errors.Is(err, ErrQueueClosed) {
		s.mu.Lock()
		faultErr := s.faultErr
		s.mu.Unlock()
		if faultErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrCaptureFault, faultErr)
		}
		return nil, ErrSourceClosed
	}

	return nil, err
}

// Stats 返回帧源统计信息快照
func (s *FrameSource) Stats() SourceStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Close 关闭帧源：停止读取协程、关闭队列和设备
func (s *FrameSource) Close() error {
	s.cancel()
	s.left.Close()
	s.right.Close()

	err := s.device.Close()
	s.wg.Wait()

	s.logger.Info("Frame source closed")
	return err
}
