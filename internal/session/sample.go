package session

import "time"

// VideoClockRate 视频呈现时间戳的时钟频率 (90kHz)
const VideoClockRate = 90000

// MediaSample 带时间戳的单个流数据单元
// 不变量：同一流内 PTS 严格递增，从不跨流复用。由流适配器按
// FramePair 创建，提交后归出站槽所有。
type MediaSample struct {
	// Data 编码就绪的像素载荷
	Data []byte

	// PTS 90kHz 时钟下的呈现时间戳
	// 由 basePTS + sequence*interval 推导，绝不取墙钟采样——
	// 墙钟推导的时间戳在抖动下会破坏等间距，曾导致编码器停顿。
	PTS uint64

	// Sequence 流内单调递增的样本序号
	Sequence uint64

	// Duration 该样本覆盖的时长
	Duration time.Duration
}

// TrackSlot 出站媒体槽
// 会话协议侧的适配点：接受带时间戳的样本，编码与打包由传输内部完成。
type TrackSlot interface {
	// WriteSample 提交一个媒体样本
	WriteSample(sample MediaSample) error

	// Eye 返回该槽绑定的眼别 ("left"/"right")
	Eye() string
}
