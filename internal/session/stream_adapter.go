package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ph8tel/vr-telepresence/internal/capture"
	"github.com/ph8tel/vr-telepresence/internal/config"
	"github.com/ph8tel/vr-telepresence/internal/metrics"
)

// errSubmitTimeout 槽提交超出有界等待，样本按背压策略丢弃
var errSubmitTimeout = errors.New("session: slot submission timed out")

// consecutiveWriteFaultLimit 连续提交失败达到该值后适配器上报故障，
// 由会话管理器决定原地重启还是拆除会话。零星失败只丢样本不算故障。
const consecutiveWriteFaultLimit = 30

// StreamAdapter 单眼流适配器
// 从自己眼别的队列取原始帧，做传输要求的像素格式归一化
// （灰度扩展为三通道），赋予严格单调的呈现时间戳，提交到出站槽。
// 提交失败时记录并丢弃样本而不是阻塞——丢一帧可恢复，
// 管线冻结不可恢复。
type StreamAdapter struct {
	eye          string
	queue        *capture.FrameQueue
	slot         TrackSlot
	basePTS      uint64
	ptsIncrement uint64
	duration     time.Duration
	writeTimeout time.Duration
	logger       *logrus.Entry
	collector    *metrics.Collector

	// onFault 连续提交失败超限或队列意外关闭时回调，由管理器处理
	onFault func(eye string, err error)

	mu   sync.Mutex
	seq  uint64
	sent uint64

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// AdapterOptions 流适配器构造参数
type AdapterOptions struct {
	// Eye 眼别 ("left"/"right")
	Eye string

	// Queue 该眼的帧队列
	Queue *capture.FrameQueue

	// Slot 出站媒体槽
	Slot TrackSlot

	// FrameInterval 帧间隔，决定 PTS 步长和样本时长
	FrameInterval time.Duration

	// WriteTimeout 槽提交的有界等待，超时丢样本
	WriteTimeout time.Duration

	// BasePTS 起始呈现时间戳，重启同一槽的适配器时用于保持连续性
	BasePTS uint64

	// BaseSequence 起始序号
	BaseSequence uint64

	// OnFault 故障回调
	OnFault func(eye string, err error)

	// Collector 指标收集器，可为 nil
	Collector *metrics.Collector
}

// NewStreamAdapter 创建流适配器
func NewStreamAdapter(opts AdapterOptions) *StreamAdapter {
	increment := uint64(float64(VideoClockRate)*opts.FrameInterval.Seconds() + 0.5)
	if increment == 0 {
		increment = VideoClockRate / 30
	}

	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 100 * time.Millisecond
	}

	return &StreamAdapter{
		eye:          opts.Eye,
		queue:        opts.Queue,
		slot:         opts.Slot,
		basePTS:      opts.BasePTS,
		ptsIncrement: increment,
		duration:     opts.FrameInterval,
		writeTimeout: writeTimeout,
		logger:       config.GetLoggerWithPrefix("stream-adapter-" + opts.Eye),
		collector:    opts.Collector,
		onFault:      opts.OnFault,
		seq:          opts.BaseSequence,
	}
}

// Start 启动适配器泵协程
func (a *StreamAdapter) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.wg.Add(1)
	go a.run(runCtx)

	a.logger.Infof("Stream adapter started: eye=%s, pts_increment=%d", a.eye, a.ptsIncrement)
}

// Stop 停止适配器并释放队列引用
func (a *StreamAdapter) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
}

// NextPTS 返回下一个样本将使用的呈现时间戳
// 管理器原地重启适配器时以此保持同一槽上 PTS 的严格单调。
func (a *StreamAdapter) NextPTS() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.basePTS + a.seq*a.ptsIncrement
}

// NextSequence 返回下一个样本的序号
func (a *StreamAdapter) NextSequence() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.seq
}

// SamplesSent 返回已成功提交的样本数
func (a *StreamAdapter) SamplesSent() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sent
}

// run 适配器主循环
func (a *StreamAdapter) run(ctx context.Context) {
	defer a.wg.Done()

	writeFaults := 0

	for {
		frame, err := a.queue.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, capture.ErrQueueClosed) {
				a.logger.Warnf("Eye queue closed, adapter exiting: eye=%s", a.eye)
				a.reportFault(err)
				return
			}
			a.logger.Errorf("Frame pop failed: eye=%s, err=%v", a.eye, err)
			a.reportFault(err)
			return
		}

		sample := a.buildSample(frame)

		if err := a.submit(ctx, sample); err != nil {
			a.collector.SampleDropped(a.eye)
			a.logger.Warnf("Sample dropped: eye=%s, seq=%d, err=%v", a.eye, sample.Sequence, err)

			writeFaults++
			if writeFaults >= consecutiveWriteFaultLimit {
				a.logger.Errorf("Consecutive submit failures exceeded limit: eye=%s, faults=%d",
					a.eye, writeFaults)
				a.reportFault(err)
				return
			}
			continue
		}

		writeFaults = 0
		a.collector.SampleWritten(a.eye)

		a.mu.Lock()
		a.sent++
		sent := a.sent
		a.mu.Unlock()

		if sent%1000 == 0 {
			a.logger.Debugf("Sample milestone: eye=%s, sent=%d, next_pts=%d", a.eye, sent, a.NextPTS())
		}
	}
}

// buildSample 将原始帧转换为媒体样本
// PTS 取 basePTS + seq*increment，序号在提交前推进：即使样本
// 因背压被丢弃，后续时间戳间距依旧严格单调。
func (a *StreamAdapter) buildSample(frame *capture.RawFrame) MediaSample {
	a.mu.Lock()
	seq := a.seq
	pts := a.basePTS + seq*a.ptsIncrement
	a.seq++
	a.mu.Unlock()

	return MediaSample{
		Data:     normalizePixels(frame),
		PTS:      pts,
		Sequence: seq,
		Duration: a.duration,
	}
}

// submit 有界等待地提交样本
// 槽在传输背压下可能短暂阻塞，但绝不允许无限期阻塞视频路径。
func (a *StreamAdapter) submit(ctx context.Context, sample MediaSample) error {
	done := make(chan error, 1)
	go func() {
		done <- a.slot.WriteSample(sample)
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(a.writeTimeout):
		return errSubmitTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// reportFault 上报适配器故障
func (a *StreamAdapter) reportFault(err error) {
	if a.onFault != nil {
		a.onFault(a.eye, err)
	}
}

// normalizePixels 传输要求的像素格式归一化
// 校正后的立体相机输出单通道灰度，这里扩展为三通道；
// RGB24 直接透传。
func normalizePixels(frame *capture.RawFrame) []byte {
	if frame.Format != capture.PixelFormatGray8 {
		return frame.Data
	}

	out := make([]byte, len(frame.Data)*3)
	for i, v := range frame.Data {
		out[i*3] = v
		out[i*3+1] = v
		out[i*3+2] = v
	}
	return out
}
