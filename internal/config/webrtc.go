package config

import (
	"fmt"
	"strings"
	"time"
)

// WebRTCConfig WebRTC会话配置模块
type WebRTCConfig struct {
	// ICEServers ICE服务器列表
	ICEServers []ICEServerConfig `yaml:"ice_servers" json:"ice_servers"`

	// VideoCodec 出站视频编码 (h264, vp8, vp9)
	VideoCodec string `yaml:"video_codec" json:"video_codec"`

	// LeftTrackID 左眼轨道ID，出现在 offer 的第一个视频 m-line
	LeftTrackID string `yaml:"left_track_id" json:"left_track_id"`

	// RightTrackID 右眼轨道ID，出现在 offer 的第二个视频 m-line
	RightTrackID string `yaml:"right_track_id" json:"right_track_id"`

	// DataChannelLabel 控制通道标签
	DataChannelLabel string `yaml:"data_channel_label" json:"data_channel_label"`

	// AdapterRestartLimit 单个会话内流适配器的最大重启次数，
	// 超过后会话进入 failed 状态并被拆除
	AdapterRestartLimit int `yaml:"adapter_restart_limit" json:"adapter_restart_limit"`

	// SlotWriteTimeout 出站媒体槽写入的有界等待时间，超时丢样本
	SlotWriteTimeout time.Duration `yaml:"slot_write_timeout" json:"slot_write_timeout"`
}

// ICEServerConfig ICE服务器配置
type ICEServerConfig struct {
	URLs       []string `yaml:"urls" json:"urls"`
	Username   string   `yaml:"username,omitempty" json:"username,omitempty"`
	Credential string   `yaml:"credential,omitempty" json:"credential,omitempty"`
}

// DefaultWebRTCConfig 返回默认的WebRTC配置
func DefaultWebRTCConfig() *WebRTCConfig {
	return &WebRTCConfig{
		ICEServers: []ICEServerConfig{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
			{URLs: []string{"stun:stun1.l.google.com:19302"}},
		},
		VideoCodec:          "h264",
		LeftTrackID:         "left-eye",
		RightTrackID:        "right-eye",
		DataChannelLabel:    "poseData",
		AdapterRestartLimit: 3,
		SlotWriteTimeout:    100 * time.Millisecond,
	}
}

// Validate 验证WebRTC配置
func (c *WebRTCConfig) Validate() error {
	for i, server := range c.ICEServers {
		if len(server.URLs) == 0 {
			return fmt.Errorf("ice server %d has no URLs", i)
		}
		for _, u := range server.URLs {
			if !strings.HasPrefix(u, "stun:") && !strings.HasPrefix(u, "turn:") && !strings.HasPrefix(u, "turns:") {
				return fmt.Errorf("invalid ice server URL: %s", u)
			}
		}
	}

	switch c.VideoCodec {
	case "h264", "vp8", "vp9":
	default:
		return fmt.Errorf("unsupported video codec: %s", c.VideoCodec)
	}

	if c.LeftTrackID == "" || c.RightTrackID == "" {
		return fmt.Errorf("track IDs must not be empty")
	}

	if c.LeftTrackID == c.RightTrackID {
		return fmt.Errorf("left and right track IDs must differ")
	}

	if c.DataChannelLabel == "" {
		return fmt.Errorf("data channel label must not be empty")
	}

	if c.AdapterRestartLimit <= 0 {
		return fmt.Errorf("adapter restart limit must be positive, got: %d", c.AdapterRestartLimit)
	}

	if c.SlotWriteTimeout <= 0 {
		return fmt.Errorf("slot write timeout must be positive, got: %v", c.SlotWriteTimeout)
	}

	return nil
}

// Merge 合并WebRTC配置
func (c *WebRTCConfig) Merge(other *WebRTCConfig) error {
	if other == nil {
		return nil
	}

	if len(other.ICEServers) > 0 {
		c.ICEServers = other.ICEServers
	}
	if other.VideoCodec != "" {
		c.VideoCodec = other.VideoCodec
	}
	if other.LeftTrackID != "" {
		c.LeftTrackID = other.LeftTrackID
	}
	if other.RightTrackID != "" {
		c.RightTrackID = other.RightTrackID
	}
	if other.DataChannelLabel != "" {
		c.DataChannelLabel = other.DataChannelLabel
	}
	if other.AdapterRestartLimit != 0 {
		c.AdapterRestartLimit = other.AdapterRestartLimit
	}
	if other.SlotWriteTimeout != 0 {
		c.SlotWriteTimeout = other.SlotWriteTimeout
	}

	return c.Validate()
}
