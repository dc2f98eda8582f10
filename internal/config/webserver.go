package config

import (
	"fmt"
)

// WebServerConfig Web服务器配置模块
// 承载信令面：HTTP 的 offer/answer 交换和 WebSocket 信令端点。
type WebServerConfig struct {
	// Host 监听地址
	Host string `yaml:"host" json:"host"`

	// Port 监听端口
	Port int `yaml:"port" json:"port"`

	// StaticDir 静态文件目录（观看端页面），为空时不提供静态文件
	StaticDir string `yaml:"static_dir" json:"static_dir"`

	// EnableCORS 是否启用CORS，远端观看页面通常跨域访问信令端点
	EnableCORS bool `yaml:"enable_cors" json:"enable_cors"`
}

// DefaultWebServerConfig 返回默认Web服务器配置
func DefaultWebServerConfig() *WebServerConfig {
	return &WebServerConfig{
		Host:       "0.0.0.0",
		Port:       8080,
		StaticDir:  "",
		EnableCORS: true,
	}
}

// Validate 验证Web服务器配置
func (c *WebServerConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid webserver port: %d", c.Port)
	}

	if c.Host == "" {
		return fmt.Errorf("webserver host must not be empty")
	}

	return nil
}

// Merge 合并Web服务器配置
func (c *WebServerConfig) Merge(other *WebServerConfig) error {
	if other == nil {
		return nil
	}

	if other.Host != "" {
		c.Host = other.Host
	}
	if other.Port != 0 {
		c.Port = other.Port
	}
	if other.StaticDir != "" {
		c.StaticDir = other.StaticDir
	}
	c.EnableCORS = other.EnableCORS

	return c.Validate()
}
