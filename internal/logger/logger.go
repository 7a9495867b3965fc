// Package logger wraps log/slog with the domain-specific helpers the
// broker reaches for on every packet.
package logger

import (
	"context"
	"log/slog"
	"os"
	"sync"
)

// Level mirrors slog's levels with a Fatal alias for startup failures.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError, LevelFatal:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config controls handler construction: JSON vs text, output stream, and
// the attributes stamped on every record.
type Config struct {
	Level       Level
	Format      string // "json" or "text"
	Output      *os.File
	Component   string
	ShowCaller  bool
	AddSource   bool
	Environment string
	Service     string
	Version     string
}

// DevelopmentConfig returns a human-readable text-handler configuration.
func DevelopmentConfig() Config {
	return Config{Level: LevelDebug, Format: "text", Output: os.Stdout, Environment: "development", Service: "nanomq", AddSource: true}
}

// ProductionConfig returns a structured JSON-handler configuration.
func ProductionConfig() Config {
	return Config{Level: LevelInfo, Format: "json", Output: os.Stdout, Environment: "production", Service: "nanomq"}
}

// Logger is a *slog.Logger with MQTT-broker domain helpers layered on top.
type Logger struct {
	*slog.Logger
	level     Level
	component string
}

// New builds a Logger from cfg.
func New(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: cfg.Level.slogLevel(), AddSource: cfg.AddSource}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	base := slog.New(handler)
	if cfg.Service != "" {
		base = base.With("service", cfg.Service, "env", cfg.Environment)
	}
	if cfg.Component != "" {
		base = base.WithGroup(cfg.Component)
	}

	return &Logger{Logger: base, level: cfg.Level, component: cfg.Component}
}

var (
	globalMu  sync.RWMutex
	globalLog *Logger
)

// InitGlobalLogger installs l as the package-level default logger.
func InitGlobalLogger(l *Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLog = l
}

// GetGlobalLogger returns the package-level default, lazily falling back
// to DevelopmentConfig if InitGlobalLogger was never called.
func GetGlobalLogger() *Logger {
	globalMu.RLock()
	l := globalLog
	globalMu.RUnlock()
	if l != nil {
		return l
	}
	l = New(DevelopmentConfig())
	InitGlobalLogger(l)
	return l
}

// NewMQTTLogger returns a Logger scoped to component, inheriting the
// global logger's handler and level.
func NewMQTTLogger(component string) *Logger {
	base := GetGlobalLogger()
	return &Logger{Logger: base.Logger.WithGroup(component), level: base.level, component: component}
}

func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...), level: l.level, component: l.component}
}

func (l *Logger) WithGroup(name string) *Logger {
	return &Logger{Logger: l.Logger.WithGroup(name), level: l.level, component: l.component}
}

func (l *Logger) Fatal(ctx context.Context, msg string, args ...any) {
	l.Logger.Log(ctx, slog.LevelError, msg, append(args, "fatal", true)...)
	os.Exit(1)
}

// LogClientConnection records a CONNECT/CONNACK outcome.
func (l *Logger) LogClientConnection(clientID string, returnCode byte, sessionPresent bool) {
	l.Info("client connection", "client_id", clientID, "return_code", returnCode, "session_present", sessionPresent)
}

// LogMQTTPacket records an inbound/outbound packet at debug level.
func (l *Logger) LogMQTTPacket(direction, packetType, clientID string) {
	l.Debug("mqtt packet", "direction", direction, "type", packetType, "client_id", clientID)
}

// LogPublish records a PUBLISH dispatch.
func (l *Logger) LogPublish(clientID, topic string, qos byte, retain bool, fanoutN int) {
	l.Info("publish", "client_id", clientID, "topic", topic, "qos", qos, "retain", retain, "fanout", fanoutN)
}

// LogSubscription records a SUBSCRIBE/UNSUBSCRIBE outcome.
func (l *Logger) LogSubscription(action, clientID, topic string, qos byte) {
	l.Info("subscription", "action", action, "client_id", clientID, "topic", topic, "qos", qos)
}

// LogQoSFlow records a QoS1/QoS2 handshake step.
func (l *Logger) LogQoSFlow(clientID string, packetID uint16, step string) {
	l.Debug("qos flow", "client_id", clientID, "packet_id", packetID, "step", step)
}

// LogRetainedMessage records a retained-store mutation.
func (l *Logger) LogRetainedMessage(topic string, cleared bool) {
	l.Debug("retained message", "topic", topic, "cleared", cleared)
}

// LogAuth records an authentication attempt outcome.
func (l *Logger) LogAuth(username string, ok bool) {
	l.Info("auth", "username", username, "ok", ok)
}

// LogError records a component error with its originating operation name.
func (l *Logger) LogError(op string, err error) {
	l.Error("error", "op", op, "err", err)
}

// LogPerformance records a duration-bearing operation.
func (l *Logger) LogPerformance(op string, durationMs float64) {
	l.Debug("performance", "op", op, "duration_ms", durationMs)
}

func Debug(msg string, args ...any) { GetGlobalLogger().Debug(msg, args...) }
func Info(msg string, args ...any)  { GetGlobalLogger().Info(msg, args...) }
func Warn(msg string, args ...any)  { GetGlobalLogger().Warn(msg, args...) }
func Error(msg string, args ...any) { GetGlobalLogger().Error(msg, args...) }

func ClientID(id string) slog.Attr { return slog.String("client_id", id) }
func String(k, v string) slog.Attr { return slog.String(k, v) }
func Int(k string, v int) slog.Attr { return slog.Int(k, v) }
func Bool(k string, v bool) slog.Attr { return slog.Bool(k, v) }
func Any(k string, v any) slog.Attr { return slog.Any(k, v) }
func ErrorAttr(err error) slog.Attr { return slog.Any("err", err) }
