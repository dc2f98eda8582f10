package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Eye 标签值
const (
	EyeLeft  = "left"
	EyeRight = "right"
)

// Collector 领域指标收集器
// 所有方法对 nil 接收者安全，组件可以在监控未启用时传入 nil。
type Collector struct {
	framesCaptured   prometheus.Counter
	framesEvicted    *prometheus.CounterVec
	pairResyncs      prometheus.Counter
	pairDesyncs      prometheus.Counter
	samplesWritten   *prometheus.CounterVec
	samplesDropped   *prometheus.CounterVec
	adapterRestarts  *prometheus.CounterVec
	controlMessages  *prometheus.CounterVec
	controlMalformed prometheus.Counter
	servoForwards    prometheus.Counter
	servoErrors      prometheus.Counter
	sessionState     *prometheus.GaugeVec
}

// NewCollector 创建领域指标收集器并注册到 registry
func NewCollector(registry *prometheus.Registry) (*Collector, error) {
	c := &Collector{
		framesCaptured: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vrt_frames_captured_total",
			Help: "Total synchronized frame pairs read from the capture device",
		}),
		framesEvicted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vrt_frames_evicted_total",
			Help: "Frames evicted from a full per-eye queue (oldest dropped)",
		}, []string{"eye"}),
		pairResyncs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vrt_pair_resyncs_total",
			Help: "Stale single-eye frames dropped to realign capture indices",
		}),
		pairDesyncs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vrt_pair_desyncs_total",
			Help: "Pair reads that failed after exhausting the resync limit",
		}),
		samplesWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vrt_samples_written_total",
			Help: "Media samples submitted to an outbound track slot",
		}, []string{"eye"}),
		samplesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vrt_samples_dropped_total",
			Help: "Media samples dropped due to slot backpressure or closed slot",
		}, []string{"eye"}),
		adapterRestarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vrt_adapter_restarts_total",
			Help: "In-place stream adapter restarts after a fault",
		}, []string{"eye"}),
		controlMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vrt_control_messages_total",
			Help: "Inbound control channel messages by type",
		}, []string{"type"}),
		controlMalformed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vrt_control_malformed_total",
			Help: "Inbound control messages discarded as malformed or unknown",
		}),
		servoForwards: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vrt_servo_forwards_total",
			Help: "Controller messages forwarded to the servo sink",
		}),
		servoErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vrt_servo_errors_total",
			Help: "Servo sink write failures",
		}),
		sessionState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vrt_session_state",
			Help: "Current session state (1 for the active state, 0 otherwise)",
		}, []string{"state"}),
	}

	collectors := []prometheus.Collector{
		c.framesCaptured, c.framesEvicted, c.pairResyncs, c.pairDesyncs,
		c.samplesWritten, c.samplesDropped, c.adapterRestarts,
		c.controlMessages, c.controlMalformed,
		c.servoForwards, c.servoErrors, c.sessionState,
	}

	for _, collector := range collectors {
		if err := registry.Register(collector); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// FramePairCaptured 记录一次成功的设备读取
func (c *Collector) FramePairCaptured() {
	if c == nil {
		return
	}
	c.framesCaptured.Inc()
}

// FrameEvicted 记录一次队满淘汰
func (c *Collector) FrameEvicted(eye string) {
	if c == nil {
		return
	}
	c.framesEvicted.WithLabelValues(eye).Inc()
}

// PairResync 记录一次为重新对齐而丢弃的过期单眼帧
func (c *Collector) PairResync() {
	if c == nil {
		return
	}
	c.pairResyncs.Inc()
}

// PairDesync 记录一次超出重试上限的配对失败
func (c *Collector) PairDesync() {
	if c == nil {
		return
	}
	c.pairDesyncs.Inc()
}

// SampleWritten 记录一次成功的媒体样本提交
func (c *Collector) SampleWritten(eye string) {
	if c == nil {
		return
	}
	c.samplesWritten.WithLabelValues(eye).Inc()
}

// SampleDropped 记录一次因背压丢弃的样本
func (c *Collector) SampleDropped(eye string) {
	if c == nil {
		return
	}
	c.samplesDropped.WithLabelValues(eye).Inc()
}

// AdapterRestarted 记录一次适配器原地重启
func (c *Collector) AdapterRestarted(eye string) {
	if c == nil {
		return
	}
	c.adapterRestarts.WithLabelValues(eye).Inc()
}

// ControlMessage 记录一条入站控制消息
func (c *Collector) ControlMessage(msgType string) {
	if c == nil {
		return
	}
	c.controlMessages.WithLabelValues(msgType).Inc()
}

// ControlMalformed 记录一条被丢弃的畸形消息
func (c *Collector) ControlMalformed() {
	if c == nil {
		return
	}
	c.controlMalformed.Inc()
}

// ServoForwarded 记录一次舵机转发
func (c *Collector) ServoForwarded() {
	if c == nil {
		return
	}
	c.servoForwards.Inc()
}

// ServoError 记录一次舵机写入失败
func (c *Collector) ServoError() {
	if c == nil {
		return
	}
	c.servoErrors.Inc()
}

// SessionStateChanged 更新会话状态仪表
func (c *Collector) SessionStateChanged(state string, states []string) {
	if c == nil {
		return
	}
	for _, s := range states {
		value := 0.0
		if s == state {
			value = 1.0
		}
		c.sessionState.WithLabelValues(s).Set(value)
	}
}
