// File: internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger     LoggerConfig     `mapstructure:"logger" yaml:"logger"`
	Agent      AgentConfig      `mapstructure:"agent" yaml:"agent"`
	Transport  TransportConfig  `mapstructure:"transport" yaml:"transport"`
	Browser    BrowserConfig    `mapstructure:"browser" yaml:"browser"`
	Controller ControllerConfig `mapstructure:"controller" yaml:"controller"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// AgentConfig controls the connection manager and the messages it emits.
type AgentConfig struct {
	// ControllerURL is the WebSocket endpoint of the controller.
	ControllerURL string `mapstructure:"controller_url" yaml:"controller_url"`
	// Source is the identity label sent in the hello greeting.
	Source string `mapstructure:"source" yaml:"source"`
	// LegacyGreeting additionally sends the deprecated walletType field.
	LegacyGreeting bool          `mapstructure:"legacy_greeting" yaml:"legacy_greeting"`
	MaxAttempts    int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	BaseDelay      time.Duration `mapstructure:"base_delay" yaml:"base_delay"`
	// TextLimit caps the number of characters captured per element.
	TextLimit int `mapstructure:"text_limit" yaml:"text_limit"`
}

// TransportConfig tunes the WebSocket client.
type TransportConfig struct {
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout" yaml:"handshake_timeout"`
	WriteWait        time.Duration `mapstructure:"write_wait" yaml:"write_wait"`
	PongWait         time.Duration `mapstructure:"pong_wait" yaml:"pong_wait"`
	MaxMessageSize   int64         `mapstructure:"max_message_size" yaml:"max_message_size"`
	SendBuffer       int           `mapstructure:"send_buffer" yaml:"send_buffer"`
}

// BrowserConfig holds settings for the Chrome instance the agent attaches to.
type BrowserConfig struct {
	Headless          bool           `mapstructure:"headless" yaml:"headless"`
	Args              []string       `mapstructure:"args" yaml:"args"`
	Viewport          map[string]int `mapstructure:"viewport" yaml:"viewport"`
	NavigationTimeout time.Duration  `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	// ScreenshotQuality is the JPEG quality; 100 produces PNG.
	ScreenshotQuality int  `mapstructure:"screenshot_quality" yaml:"screenshot_quality"`
	DisableScreenshot bool `mapstructure:"disable_screenshot" yaml:"disable_screenshot"`
}

// ControllerConfig configures the development controller endpoint.
type ControllerConfig struct {
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr"`
	Path       string `mapstructure:"path" yaml:"path"`
	// RateLimit is the number of inbound messages per second accepted per client.
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst" yaml:"rate_burst"`
}

// ViewportSize returns the configured viewport, falling back to 1280x800.
func (b BrowserConfig) ViewportSize() (width, height int) {
	width, height = 1280, 800
	if w, ok := b.Viewport["width"]; ok && w > 0 {
		width = w
	}
	if h, ok := b.Viewport["height"]; ok && h > 0 {
		height = h
	}
	return width, height
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "uilink")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Agent --
	v.SetDefault("agent.controller_url", "ws://localhost:3001")
	v.SetDefault("agent.source", "uilink")
	v.SetDefault("agent.legacy_greeting", false)
	v.SetDefault("agent.max_attempts", 5)
	v.SetDefault("agent.base_delay", "2s")
	v.SetDefault("agent.text_limit", 50)

	// -- Transport --
	v.SetDefault("transport.handshake_timeout", "10s")
	v.SetDefault("transport.write_wait", "10s")
	v.SetDefault("transport.pong_wait", "60s")
	v.SetDefault("transport.max_message_size", 4*1024*1024)
	v.SetDefault("transport.send_buffer", 64)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.viewport", map[string]int{"width": 1280, "height": 800})
	v.SetDefault("browser.navigation_timeout", "60s")
	v.SetDefault("browser.screenshot_quality", 100)
	v.SetDefault("browser.disable_screenshot", false)

	// -- Controller --
	v.SetDefault("controller.listen_addr", "localhost:3001")
	v.SetDefault("controller.path", "/")
	v.SetDefault("controller.rate_limit", 20.0)
	v.SetDefault("controller.rate_burst", 40)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	v.BindEnv("agent.controller_url", "UILINK_CONTROLLER_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if cfg.Logger.LogFile != "" {
		expanded, err := homedir.Expand(cfg.Logger.LogFile)
		if err != nil {
			return nil, fmt.Errorf("invalid logger.log_file: %w", err)
		}
		cfg.Logger.LogFile = expanded
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.Agent.Validate(); err != nil {
		return fmt.Errorf("agent configuration invalid: %w", err)
	}
	if c.Transport.SendBuffer <= 0 {
		return fmt.Errorf("transport.send_buffer must be a positive integer")
	}
	if c.Transport.MaxMessageSize <= 0 {
		return fmt.Errorf("transport.max_message_size must be a positive integer")
	}
	if c.Browser.ScreenshotQuality < 0 || c.Browser.ScreenshotQuality > 100 {
		return fmt.Errorf("browser.screenshot_quality must be between 0 and 100")
	}
	if c.Controller.RateLimit <= 0 {
		return fmt.Errorf("controller.rate_limit must be positive")
	}
	return nil
}

// Validate checks the agent settings.
func (a *AgentConfig) Validate() error {
	u, err := url.Parse(a.ControllerURL)
	if err != nil {
		return fmt.Errorf("controller_url: %w", err)
	}
	if scheme := strings.ToLower(u.Scheme); scheme != "ws" && scheme != "wss" {
		return fmt.Errorf("controller_url must use ws or wss, got %q", u.Scheme)
	}
	if a.MaxAttempts < 0 {
		return fmt.Errorf("max_attempts must not be negative")
	}
	if a.BaseDelay <= 0 {
		return fmt.Errorf("base_delay must be a positive duration")
	}
	if a.TextLimit <= 0 {
		return fmt.Errorf("text_limit must be a positive integer")
	}
	return nil
}

// ConfigSearchPaths returns the directories searched for config.yaml.
func ConfigSearchPaths() []string {
	paths := []string{"."}
	if dir, err := homedir.Expand("~/.uilink"); err == nil {
		paths = append(paths, dir)
	}
	return paths
}
