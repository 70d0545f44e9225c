package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// Level defines the log level
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}

func (l Level) String() string {
	if l < DebugLevel || l > FatalLevel {
		return "UNKNOWN"
	}
	return levelNames[l]
}

var (
	currentLevel = InfoLevel
	mu           sync.RWMutex
	std          = log.New(os.Stderr, "", log.LstdFlags)
)

// ParseLevel 将配置中的字符串转换为日志级别，未知值回退到 info
func ParseLevel(levelStr string) Level {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	case "fatal":
		return FatalLevel
	default:
		return InfoLevel
	}
}

// SetLevel sets the global log level
func SetLevel(levelStr string) {
	mu.Lock()
	defer mu.Unlock()
	currentLevel = ParseLevel(levelStr)
}

// GetLevel returns the global log level
func GetLevel() Level {
	mu.RLock()
	defer mu.RUnlock()
	return currentLevel
}

// SetOutput sets the output destination for the logger
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	std.SetOutput(w)
}

// Debugf logs a formatted message at DebugLevel
func Debugf(format string, v ...interface{}) { logf(DebugLevel, "", format, v...) }

// Infof logs a formatted message at InfoLevel
func Infof(format string, v ...interface{}) { logf(InfoLevel, "", format, v...) }

// Warnf logs a formatted message at WarnLevel
func Warnf(format string, v ...interface{}) { logf(WarnLevel, "", format, v...) }

// Errorf logs a formatted message at ErrorLevel
func Errorf(format string, v ...interface{}) { logf(ErrorLevel, "", format, v...) }

// Info logs a message at InfoLevel
func Info(v ...interface{}) { logf(InfoLevel, "", "%s", fmt.Sprint(v...)) }

// Warn logs a message at WarnLevel
func Warn(v ...interface{}) { logf(WarnLevel, "", "%s", fmt.Sprint(v...)) }

// Fatalf logs a formatted message at FatalLevel and exits
func Fatalf(format string, v ...interface{}) {
	output(FatalLevel, "", fmt.Sprintf(format, v...))
	os.Exit(1)
}

// Tagged 带组件标签的日志器，输出形如 "[INFO] [Persist] ..."
type Tagged struct {
	component string
}

// With 返回带组件标签的日志器
func With(component string) Tagged {
	return Tagged{component: component}
}

func (t Tagged) Debugf(format string, v ...interface{}) { logf(DebugLevel, t.component, format, v...) }
func (t Tagged) Infof(format string, v ...interface{})  { logf(InfoLevel, t.component, format, v...) }
func (t Tagged) Warnf(format string, v ...interface{})  { logf(WarnLevel, t.component, format, v...) }
func (t Tagged) Errorf(format string, v ...interface{}) { logf(ErrorLevel, t.component, format, v...) }

func shouldLog(level Level) bool {
	mu.RLock()
	defer mu.RUnlock()
	return level >= currentLevel
}

func logf(level Level, component, format string, v ...interface{}) {
	if !shouldLog(level) {
		return
	}
	output(level, component, fmt.Sprintf(format, v...))
}

func output(level Level, component, msg string) {
	if component != "" {
		msg = "[" + component + "] " + msg
	}
	// Use standard log package to handle timestamp and concurrency
	std.Output(4, fmt.Sprintf("[%s] %s", level, msg))
}
