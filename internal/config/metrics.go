package config

import (
	"fmt"
	"strings"
)

// MetricsConfig 监控配置模块
type MetricsConfig struct {
	// Enabled 是否启用监控HTTP端点
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Host 监控服务监听地址
	Host string `yaml:"host" json:"host"`

	// Port 监控服务端口
	Port int `yaml:"port" json:"port"`

	// Path 指标暴露路径
	Path string `yaml:"path" json:"path"`
}

// DefaultMetricsConfig 返回默认监控配置
func DefaultMetricsConfig() *MetricsConfig {
	return &MetricsConfig{
		Enabled: true,
		Host:    "0.0.0.0",
		Port:    9091,
		Path:    "/metrics",
	}
}

// Validate 验证监控配置
func (c *MetricsConfig) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid metrics port: %d", c.Port)
	}

	if !strings.HasPrefix(c.Path, "/") {
		return fmt.Errorf("metrics path must start with '/', got: %s", c.Path)
	}

	return nil
}

// Merge 合并监控配置
func (c *MetricsConfig) Merge(other *MetricsConfig) error {
	if other == nil {
		return nil
	}

	c.Enabled = other.Enabled
	if other.Host != "" {
		c.Host = other.Host
	}
	if other.Port != 0 {
		c.Port = other.Port
	}
	if other.Path != "" {
		c.Path = other.Path
	}

	return c.Validate()
}
