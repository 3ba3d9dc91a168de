package logger

import (
	"os"
	"sync"
	"time"

	"cmm-gateway/internal/config"
)

// Logger 是一个最小的有级别日志器：选定 Formatter 产出字节，交给 Writer 落地。
// 日志 I/O 从不向调用方返回错误——写失败只降级为 stderr 提示，不能反过来影响请求处理。
type Logger struct {
	mu        sync.RWMutex
	level     Level
	formatter Formatter
	writer    Writer
}

var defaultLogger *Logger

func init() {
	defaultLogger = createLogger(ParseConfig())
}

// createLogger 依据 Config 组装 Writer 链（console + 可选的滚动文件）与 Formatter。
func createLogger(cfg Config) *Logger {
	var writers []Writer
	if cfg.Console {
		writers = append(writers, NewConsoleWriter())
	}
	if cfg.File != "" {
		fw, err := NewFileWriter(cfg.File, config.LogMaxSize, config.LogMaxBackups)
		if err != nil {
			os.Stderr.WriteString("logger: " + err.Error() + "\n")
		} else {
			writers = append(writers, fw)
		}
	}
	if len(writers) == 0 {
		writers = append(writers, NewConsoleWriter())
	}

	var formatter Formatter
	if cfg.Format == JSONFormat {
		formatter = NewJSONFormatter(cfg.TimeFormat)
	} else {
		formatter = NewConsoleFormatter(cfg.Color, cfg.TimeFormat)
	}

	return &Logger{
		level:     cfg.Level,
		formatter: formatter,
		writer:    NewMultiWriter(writers...),
	}
}

// SetLevel 设置全局日志级别
func SetLevel(level Level) {
	defaultLogger.mu.Lock()
	defer defaultLogger.mu.Unlock()
	defaultLogger.level = level
}

// Init 依据 Config 重建全局 logger，用于 .env 加载完成后的二次初始化。
func Init(cfg Config) {
	old := defaultLogger
	defaultLogger = createLogger(cfg)
	if old != nil && old.writer != nil {
		_ = old.writer.Close()
	}
}

// Close 关闭全局 logger 持有的输出器（主要是刷新并关闭日志文件）。
func Close() error {
	defaultLogger.mu.RLock()
	defer defaultLogger.mu.RUnlock()
	if defaultLogger.writer != nil {
		return defaultLogger.writer.Close()
	}
	return nil
}

func (l *Logger) shouldLog(level Level) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.level.Enabled(level)
}

func (l *Logger) log(level Level, msg string, fields []Field) {
	if !l.shouldLog(level) {
		return
	}

	file, line, fn := GetCallerInfo(3)

	entry := LogEntry{
		Time:     time.Now(),
		Level:    level,
		Message:  msg,
		Fields:   fields,
		File:     file,
		Line:     line,
		Function: fn,
	}

	l.mu.RLock()
	data := l.formatter.Format(entry)
	w := l.writer
	l.mu.RUnlock()

	_ = w.Write(data)

	if level == FATAL {
		os.Exit(1)
	}
}

// Debug 记录 DEBUG 级别日志
func Debug(msg string, fields ...Field) { defaultLogger.log(DEBUG, msg, fields) }

// Info 记录 INFO 级别日志
func Info(msg string, fields ...Field) { defaultLogger.log(INFO, msg, fields) }

// Warn 记录 WARN 级别日志
func Warn(msg string, fields ...Field) { defaultLogger.log(WARN, msg, fields) }

// Error 记录 ERROR 级别日志
func Error(msg string, fields ...Field) { defaultLogger.log(ERROR, msg, fields) }

// Fatal 记录 FATAL 级别日志并退出进程
func Fatal(msg string, fields ...Field) { defaultLogger.log(FATAL, msg, fields) }
