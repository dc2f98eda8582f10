package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// CaptureConfig 立体相机采集配置
// 采集设备本身（校正、对齐）由外部硬件管线负责，这里只描述
// 帧源的目标尺寸、帧间隔和每眼队列深度。
type CaptureConfig struct {
	// FrameWidth 目标帧宽度
	FrameWidth int `yaml:"frame_width" json:"frame_width"`

	// FrameHeight 目标帧高度
	FrameHeight int `yaml:"frame_height" json:"frame_height"`

	// FrameIntervalSeconds 目标帧间隔（秒），默认 1/30
	FrameIntervalSeconds float64 `yaml:"frame_interval_seconds" json:"frame_interval_seconds"`

	// QueueDepthPerEye 每眼有界队列深度，队满时丢弃最旧帧
	QueueDepthPerEye int `yaml:"queue_depth_per_eye" json:"queue_depth_per_eye"`

	// ResyncAttempts 左右眼 CaptureIndex 分歧时的最大重新同步次数
	ResyncAttempts int `yaml:"resync_attempts" json:"resync_attempts"`

	// ReadTimeout 单次取帧的超时时间
	ReadTimeout time.Duration `yaml:"read_timeout" json:"read_timeout"`
}

// DefaultCaptureConfig 返回默认采集配置
func DefaultCaptureConfig() *CaptureConfig {
	return &CaptureConfig{
		FrameWidth:           1280,
		FrameHeight:          720,
		FrameIntervalSeconds: 1.0 / 30.0,
		QueueDepthPerEye:     2,
		ResyncAttempts:       4,
		ReadTimeout:          2 * time.Second,
	}
}

// FrameInterval 返回帧间隔的 time.Duration 表示
func (c *CaptureConfig) FrameInterval() time.Duration {
	return time.Duration(c.FrameIntervalSeconds * float64(time.Second))
}

// Validate 验证采集配置
func (c *CaptureConfig) Validate() error {
	if c.FrameWidth <= 0 || c.FrameHeight <= 0 {
		return fmt.Errorf("invalid frame size: %dx%d", c.FrameWidth, c.FrameHeight)
	}

	if c.FrameIntervalSeconds <= 0 {
		return fmt.Errorf("frame interval must be positive, got: %v", c.FrameIntervalSeconds)
	}

	if c.QueueDepthPerEye <= 0 {
		return fmt.Errorf("queue depth per eye must be positive, got: %d", c.QueueDepthPerEye)
	}

	if c.ResyncAttempts <= 0 {
		return fmt.Errorf("resync attempts must be positive, got: %d", c.ResyncAttempts)
	}

	if c.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive, got: %v", c.ReadTimeout)
	}

	return nil
}

// Merge 合并采集配置
func (c *CaptureConfig) Merge(other *CaptureConfig) error {
	if other == nil {
		return nil
	}

	if other.FrameWidth != 0 {
		c.FrameWidth = other.FrameWidth
	}
	if other.FrameHeight != 0 {
		c.FrameHeight = other.FrameHeight
	}
	if other.FrameIntervalSeconds != 0 {
		c.FrameIntervalSeconds = other.FrameIntervalSeconds
	}
	if other.QueueDepthPerEye != 0 {
		c.QueueDepthPerEye = other.QueueDepthPerEye
	}
	if other.ResyncAttempts != 0 {
		c.ResyncAttempts = other.ResyncAttempts
	}
	if other.ReadTimeout != 0 {
		c.ReadTimeout = other.ReadTimeout
	}

	return c.Validate()
}

// LoadCaptureConfigFromEnv 从环境变量加载采集配置
func LoadCaptureConfigFromEnv() *CaptureConfig {
	config := DefaultCaptureConfig()

	if width := os.Getenv("VRT_FRAME_WIDTH"); width != "" {
		if v, err := strconv.Atoi(width); err == nil {
			config.FrameWidth = v
		}
	}

	if height := os.Getenv("VRT_FRAME_HEIGHT"); height != "" {
		if v, err := strconv.Atoi(height); err == nil {
			config.FrameHeight = v
		}
	}

	if interval := os.Getenv("VRT_FRAME_INTERVAL"); interval != "" {
		if v, err := strconv.ParseFloat(interval, 64); err == nil {
			config.FrameIntervalSeconds = v
		}
	}

	if depth := os.Getenv("VRT_QUEUE_DEPTH_PER_EYE"); depth != "" {
		if v, err := strconv.Atoi(depth); err == nil {
			config.QueueDepthPerEye = v
		}
	}

	return config
}
