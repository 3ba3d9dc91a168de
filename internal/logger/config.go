package logger

import (
	"os"
	"strings"
)

// 这个网关的其余配置（internal/config.Load）完全由 CMM_ 前缀的环境变量
// 驱动，没有任何命令行开关——守护进程部署（systemd/容器）场景下不存在
// 交互式命令行调用。日志配置沿用同一套约定，而不是教师原来那套独立的
// 通用环境变量 + CLI flag 双轨解析。

// Config 日志配置结构
type Config struct {
	Level      Level
	File       string
	Console    bool
	Color      bool
	Format     FormatType
	TimeFormat string
}

// FormatType 格式类型枚举
type FormatType int

const (
	TextFormat FormatType = iota
	JSONFormat
)

// DefaultConfig 默认配置
var DefaultConfig = Config{
	Level:      INFO,
	Console:    true,
	Color:      true,
	Format:     TextFormat,
	TimeFormat: "2006-01-02 15:04:05",
}

// ParseConfig 从 CMM_ 前缀的环境变量解析日志配置，未设置的字段落回 DefaultConfig。
func ParseConfig() Config {
	config := DefaultConfig
	config = applyEnvConfig(config)
	config = validateConfig(config)
	return config
}

// applyEnvConfig 从环境变量应用配置
func applyEnvConfig(config Config) Config {
	// CMM_DEBUG环境变量
	if debug := os.Getenv("CMM_DEBUG"); debug != "" {
		if parseBool(debug) {
			config.Level = DEBUG
		}
	}

	// CMM_LOG_LEVEL环境变量
	if logLevel := os.Getenv("CMM_LOG_LEVEL"); logLevel != "" {
		if level, err := ParseLevel(logLevel); err == nil {
			config.Level = level
		}
	}

	// CMM_LOG_FILE环境变量——和 internal/config.Config.LogFilePath 读的是
	// 同一个变量，main.go 装配时不需要做二次翻译。
	if logFile := os.Getenv("CMM_LOG_FILE"); logFile != "" {
		config.File = logFile
	}

	// CMM_LOG_COLOR环境变量
	if logColor := os.Getenv("CMM_LOG_COLOR"); logColor != "" {
		config.Color = parseBool(logColor)
	}

	// CMM_LOG_FORMAT环境变量
	if logFormat := os.Getenv("CMM_LOG_FORMAT"); logFormat != "" {
		if format := parseFormat(logFormat); format != -1 {
			config.Format = format
		}
	}

	// CMM_LOG_CONSOLE环境变量
	if logConsole := os.Getenv("CMM_LOG_CONSOLE"); logConsole != "" {
		config.Console = parseBool(logConsole)
	}

	return config
}

// validateConfig 验证并修正配置
func validateConfig(config Config) Config {
	// 如果指定了文件输出，确保控制台输出也启用（除非明确禁用）
	if config.File != "" && os.Getenv("CMM_LOG_CONSOLE") == "" {
		// 默认情况下，有文件输出时仍然启用控制台输出
		config.Console = true
	}

	// 如果没有任何输出方式，强制启用控制台输出
	if !config.Console && config.File == "" {
		config.Console = true
	}

	// 文件输出时，默认使用JSON格式（如果没有明确指定）
	if config.File != "" && os.Getenv("CMM_LOG_FORMAT") == "" {
		config.Format = JSONFormat
	}

	return config
}

// parseBool 解析布尔值字符串
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// parseFormat 解析格式字符串
func parseFormat(s string) FormatType {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "text", "txt":
		return TextFormat
	case "json":
		return JSONFormat
	default:
		return -1 // 无效格式
	}
}

// String 返回格式类型的字符串表示
func (f FormatType) String() string {
	switch f {
	case TextFormat:
		return "text"
	case JSONFormat:
		return "json"
	default:
		return "unknown"
	}
}

// IsDebugMode 检查是否启用debug模式
func (c Config) IsDebugMode() bool {
	return c.Level <= DEBUG
}

// ShouldLog 检查指定级别是否应该输出
func (c Config) ShouldLog(level Level) bool {
	return c.Level <= level
}
