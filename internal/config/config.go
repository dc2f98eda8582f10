package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config VR遥现服务器配置聚合器
type Config struct {
	// Capture 立体相机采集配置模块
	Capture *CaptureConfig `yaml:"capture" json:"capture"`

	// WebRTC 会话配置模块
	WebRTC *WebRTCConfig `yaml:"webrtc" json:"webrtc"`

	// Servo 下游舵机控制器配置模块
	Servo *ServoConfig `yaml:"servo" json:"servo"`

	// WebServer 信令Web服务器配置模块
	WebServer *WebServerConfig `yaml:"webserver" json:"webserver"`

	// Metrics 监控配置模块
	Metrics *MetricsConfig `yaml:"metrics" json:"metrics"`

	// Logging 日志配置模块
	Logging *LoggingConfig `yaml:"logging" json:"logging"`

	// Lifecycle 生命周期管理配置
	Lifecycle LifecycleConfig `yaml:"lifecycle" json:"lifecycle"`
}

// LifecycleConfig 生命周期管理配置
type LifecycleConfig struct {
	// ShutdownTimeout 优雅关闭超时时间
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`

	// StartupTimeout 组件启动超时时间
	StartupTimeout time.Duration `yaml:"startup_timeout" json:"startup_timeout"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	cfg := &Config{
		Capture:   DefaultCaptureConfig(),
		WebRTC:    DefaultWebRTCConfig(),
		Servo:     DefaultServoConfig(),
		WebServer: DefaultWebServerConfig(),
		Metrics:   DefaultMetricsConfig(),
		Logging:   DefaultLoggingConfig(),
	}

	cfg.Lifecycle.ShutdownTimeout = 30 * time.Second
	cfg.Lifecycle.StartupTimeout = 60 * time.Second

	return cfg
}

// LoadConfigFromFile 从文件加载配置
func LoadConfigFromFile(filename string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// LoadConfigFromEnv 从环境变量加载配置
func LoadConfigFromEnv() *Config {
	config := DefaultConfig()

	config.Capture = LoadCaptureConfigFromEnv()
	config.Servo = LoadServoConfigFromEnv()
	config.Logging = LoadLoggingConfigFromEnv()

	return config
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Capture != nil {
		if err := c.Capture.Validate(); err != nil {
			return fmt.Errorf("invalid capture config: %w", err)
		}
	}

	if c.WebRTC != nil {
		if err := c.WebRTC.Validate(); err != nil {
			return fmt.Errorf("invalid webrtc config: %w", err)
		}
	}

	if c.Servo != nil {
		if err := c.Servo.Validate(); err != nil {
			return fmt.Errorf("invalid servo config: %w", err)
		}
	}

	if c.WebServer != nil {
		if err := c.WebServer.Validate(); err != nil {
			return fmt.Errorf("invalid webserver config: %w", err)
		}
	}

	if c.Metrics != nil {
		if err := c.Metrics.Validate(); err != nil {
			return fmt.Errorf("invalid metrics config: %w", err)
		}
	}

	if c.Logging != nil {
		if err := c.Logging.Validate(); err != nil {
			return fmt.Errorf("invalid logging config: %w", err)
		}
	}

	if err := c.validateLifecycleConfig(); err != nil {
		return fmt.Errorf("invalid lifecycle config: %w", err)
	}

	if err := c.validateCrossModuleCompatibility(); err != nil {
		return fmt.Errorf("module compatibility error: %w", err)
	}

	return nil
}

// validateLifecycleConfig 验证生命周期配置
func (c *Config) validateLifecycleConfig() error {
	if c.Lifecycle.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive, got: %v", c.Lifecycle.ShutdownTimeout)
	}

	if c.Lifecycle.StartupTimeout <= 0 {
		return fmt.Errorf("startup timeout must be positive, got: %v", c.Lifecycle.StartupTimeout)
	}

	return nil
}

// validateCrossModuleCompatibility 验证模块间的兼容性
func (c *Config) validateCrossModuleCompatibility() error {
	// 检查端口冲突
	usedPorts := make(map[int]string)

	if c.WebServer != nil {
		usedPorts[c.WebServer.Port] = "webserver"
	}

	if c.Metrics != nil && c.Metrics.Enabled {
		if existing, exists := usedPorts[c.Metrics.Port]; exists {
			return fmt.Errorf("port conflict: metrics port %d already used by %s", c.Metrics.Port, existing)
		}
		usedPorts[c.Metrics.Port] = "metrics"
	}

	if c.Servo != nil && c.Servo.Enabled && c.WebServer != nil {
		if c.Servo.Host == c.WebServer.Host && c.Servo.Port == c.WebServer.Port {
			return fmt.Errorf("servo endpoint must not be the webserver endpoint")
		}
	}

	return nil
}

// Merge 合并其他配置
func (c *Config) Merge(other *Config) error {
	if other == nil {
		return nil
	}

	if other.Capture != nil {
		if c.Capture == nil {
			c.Capture = DefaultCaptureConfig()
		}
		if err := c.Capture.Merge(other.Capture); err != nil {
			return fmt.Errorf("failed to merge capture config: %w", err)
		}
	}

	if other.WebRTC != nil {
		if c.WebRTC == nil {
			c.WebRTC = DefaultWebRTCConfig()
		}
		if err := c.WebRTC.Merge(other.WebRTC); err != nil {
			return fmt.Errorf("failed to merge webrtc config: %w", err)
		}
	}

	if other.Servo != nil {
		if c.Servo == nil {
			c.Servo = DefaultServoConfig()
		}
		if err := c.Servo.Merge(other.Servo); err != nil {
			return fmt.Errorf("failed to merge servo config: %w", err)
		}
	}

	if other.WebServer != nil {
		if c.WebServer == nil {
			c.WebServer = DefaultWebServerConfig()
		}
		if err := c.WebServer.Merge(other.WebServer); err != nil {
			return fmt.Errorf("failed to merge webserver config: %w", err)
		}
	}

	if other.Metrics != nil {
		if c.Metrics == nil {
			c.Metrics = DefaultMetricsConfig()
		}
		if err := c.Metrics.Merge(other.Metrics); err != nil {
			return fmt.Errorf("failed to merge metrics config: %w", err)
		}
	}

	if other.Logging != nil {
		if c.Logging == nil {
			c.Logging = DefaultLoggingConfig()
		}
		if err := c.Logging.Merge(other.Logging); err != nil {
			return fmt.Errorf("failed to merge logging config: %w", err)
		}
	}

	if other.Lifecycle.ShutdownTimeout != 0 {
		c.Lifecycle.ShutdownTimeout = other.Lifecycle.ShutdownTimeout
	}
	if other.Lifecycle.StartupTimeout != 0 {
		c.Lifecycle.StartupTimeout = other.Lifecycle.StartupTimeout
	}

	return nil
}

// String 返回配置的字符串表示
func (c *Config) String() string {
	webInfo := "disabled"
	if c.WebServer != nil {
		webInfo = fmt.Sprintf("%s:%d", c.WebServer.Host, c.WebServer.Port)
	}

	captureInfo := "disabled"
	if c.Capture != nil {
		captureInfo = fmt.Sprintf("%dx%d@%.1ffps",
			c.Capture.FrameWidth, c.Capture.FrameHeight, 1.0/c.Capture.FrameIntervalSeconds)
	}

	servoInfo := "disabled"
	if c.Servo != nil && c.Servo.Enabled {
		servoInfo = fmt.Sprintf("%s:%d", c.Servo.Host, c.Servo.Port)
	}

	return fmt.Sprintf("Config{WebServer: %s, Capture: %s, Servo: %s}",
		webInfo, captureInfo, servoInfo)
}

// SaveToFile 保存配置到文件
func (c *Config) SaveToFile(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
