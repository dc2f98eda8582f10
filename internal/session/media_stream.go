package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/sirupsen/logrus"

	"github.com/ph8tel/vr-telepresence/internal/config"
)

// MediaStream 立体媒体流
// 持有左右眼两个出站视频轨道，会话创建时两个轨道以 sendonly
// 方向加入同一个 offer。服务端是纯媒体源，方向永不双向。
type MediaStream struct {
	config     *config.WebRTCConfig
	logger     *logrus.Entry
	leftTrack  *webrtc.TrackLocalStaticSample
	rightTrack *webrtc.TrackLocalStaticSample
	leftSlot   *trackSlot
	rightSlot  *trackSlot

	stats MediaStreamStats
	mutex sync.RWMutex
}

// MediaStreamStats 媒体流统计信息
type MediaStreamStats struct {
	LeftSamplesSent  int64
	LeftBytesSent    int64
	RightSamplesSent int64
	RightBytesSent   int64
	LastLeftSample   time.Time
	LastRightSample  time.Time
}

// NewMediaStream 创建立体媒体流
// 轨道顺序即 offer 中 m-line 的顺序：左眼在前、右眼在后，
// 远端据此确定前两路入站流的左右绑定。
func NewMediaStream(cfg *config.WebRTCConfig) (*MediaStream, error) {
	if cfg == nil {
		cfg = config.DefaultWebRTCConfig()
	}

	mimeType := videoMimeType(cfg.VideoCodec)

	leftTrack, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: mimeType},
		cfg.LeftTrackID,
		"stereo-stream",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create left track: %w", err)
	}

	rightTrack, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: mimeType},
		cfg.RightTrackID,
		"stereo-stream",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create right track: %w", err)
	}

	ms := &MediaStream{
		config:     cfg,
		logger:     config.GetLoggerWithPrefix("media-stream"),
		leftTrack:  leftTrack,
		rightTrack: rightTrack,
	}

	ms.leftSlot = &trackSlot{eye: "left", track: leftTrack, stream: ms}
	ms.rightSlot = &trackSlot{eye: "right", track: rightTrack, stream: ms}

	return ms, nil
}

// LeftTrack 获取左眼轨道
func (ms *MediaStream) LeftTrack() *webrtc.TrackLocalStaticSample {
	return ms.leftTrack
}

// RightTrack 获取右眼轨道
func (ms *MediaStream) RightTrack() *webrtc.TrackLocalStaticSample {
	return ms.rightTrack
}

// LeftSlot 获取左眼出站槽
func (ms *MediaStream) LeftSlot() TrackSlot {
	return ms.leftSlot
}

// RightSlot 获取右眼出站槽
func (ms *MediaStream) RightSlot() TrackSlot {
	return ms.rightSlot
}

// GetStats 获取媒体流统计信息
func (ms *MediaStream) GetStats() MediaStreamStats {
	ms.mutex.RLock()
	defer ms.mutex.RUnlock()
	return ms.stats
}

// recordSample 更新单眼的样本统计
func (ms *MediaStream) recordSample(eye string, bytes int) {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()

	now := time.Now()
	if eye == "left" {
		ms.stats.LeftSamplesSent++
		ms.stats.LeftBytesSent += int64(bytes)
		ms.stats.LastLeftSample = now
	} else {
		ms.stats.RightSamplesSent++
		ms.stats.RightBytesSent += int64(bytes)
		ms.stats.LastRightSample = now
	}
}

// trackSlot TrackSlot 的 pion 实现
// 样本提交后归传输所有，RTP时间戳由 Duration 推进。
type trackSlot struct {
	eye    string
	track  *webrtc.TrackLocalStaticSample
	stream *MediaStream
}

// WriteSample 提交媒体样本到轨道
func (s *trackSlot) WriteSample(sample MediaSample) error {
	err := s.track.WriteSample(media.Sample{
		Data:            sample.Data,
		Duration:        sample.Duration,
		PacketTimestamp: uint32(sample.PTS),
	})
	if err != nil {
		return fmt.Errorf("failed to write %s eye sample: %w", s.eye, err)
	}

	s.stream.recordSample(s.eye, len(sample.Data))
	return nil
}

// Eye 返回槽绑定的眼别
func (s *trackSlot) Eye() string { return s.eye }

// videoMimeType 根据编码器类型获取视频MIME类型
func videoMimeType(codec string) string {
	switch codec {
	case "h264":
		return webrtc.MimeTypeH264
	case "vp8":
		return webrtc.MimeTypeVP8
	case "vp9":
		return webrtc.MimeTypeVP9
	default:
		return webrtc.MimeTypeH264
	}
}
