package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// ServoConfig 下游舵机控制器配置
// 控制器通过一条可靠字节流连接接收控制消息，连接是可选的：
// 启动时尝试一次，失败后会话照常运行，只是不再转发。
type ServoConfig struct {
	// Enabled 是否尝试连接舵机控制器
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Host 控制器主机地址
	Host string `yaml:"host" json:"host"`

	// Port 控制器端口
	Port int `yaml:"port" json:"port"`

	// DialTimeout 启动时的连接超时，超时后放弃且不阻塞会话启动
	DialTimeout time.Duration `yaml:"dial_timeout" json:"dial_timeout"`
}

// DefaultServoConfig 返回默认舵机配置
func DefaultServoConfig() *ServoConfig {
	return &ServoConfig{
		Enabled:     false,
		Host:        "192.168.1.138",
		Port:        9090,
		DialTimeout: 3 * time.Second,
	}
}

// Validate 验证舵机配置
func (c *ServoConfig) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.Host == "" {
		return fmt.Errorf("servo host must not be empty when enabled")
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid servo port: %d", c.Port)
	}

	if c.DialTimeout <= 0 {
		return fmt.Errorf("servo dial timeout must be positive, got: %v", c.DialTimeout)
	}

	return nil
}

// Merge 合并舵机配置
func (c *ServoConfig) Merge(other *ServoConfig) error {
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
	if other.DialTimeout != 0 {
		c.DialTimeout = other.DialTimeout
	}

	return c.Validate()
}

// LoadServoConfigFromEnv 从环境变量加载舵机配置
func LoadServoConfigFromEnv() *ServoConfig {
	config := DefaultServoConfig()

	if host := os.Getenv("VRT_SERVO_HOST"); host != "" {
		config.Host = host
		config.Enabled = true
	}

	if port := os.Getenv("VRT_SERVO_PORT"); port != "" {
		if v, err := strconv.Atoi(port); err == nil {
			config.Port = v
		}
	}

	return config
}
