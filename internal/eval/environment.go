package eval

import (
	"context"
	"log/slog"

	"github.com/shaiso/Flowgraph/internal/domain"
	"github.com/shaiso/Flowgraph/internal/proxy"
	"github.com/shaiso/Flowgraph/internal/telemetry"
)

// EnvironmentEval — окружение одной affinity-зоны.
//
// Подключается к окружению по HostURI и держит его, пока не изменится
// адрес или имя процесса. Ошибка подключения сохраняется в ErrorMsg,
// подключение повторяется на следующем проходе.
type EnvironmentEval struct {
	dialer *proxy.Dialer
	logger *slog.Logger

	newConfig  domain.ZoneConfig
	lastConfig domain.ZoneConfig
	env        proxy.Environment
	errorMsg   string
}

// NewEnvironmentEval создаёт EnvironmentEval.
func NewEnvironmentEval(zone string, dialer *proxy.Dialer, logger *slog.Logger) *EnvironmentEval {
	if logger == nil {
		logger = slog.Default()
	}
	return &EnvironmentEval{
		dialer: dialer,
		logger: telemetry.WithZone(logger, zone),
	}
}

// AcceptConfig принимает конфигурацию зоны без обработки.
func (e *EnvironmentEval) AcceptConfig(cfg domain.ZoneConfig) {
	e.newConfig = cfg
}

// Update подключается к окружению, если это нужно.
func (e *EnvironmentEval) Update(ctx context.Context) {
	if e.env != nil && e.newConfig.EnvironmentKey() == e.lastConfig.EnvironmentKey() {
		e.lastConfig = e.newConfig
		return
	}

	e.close()
	e.lastConfig = e.newConfig

	env, err := e.dialer.Dial(ctx, e.newConfig.HostURI, e.newConfig.ProcessName)
	telemetry.ObserveRemoteCall("dial", err)
	if err != nil {
		e.errorMsg = reportError("connect "+e.newConfig.HostURI, err)
		e.logger.Warn("environment unavailable", "host_uri", e.newConfig.HostURI, "error", err)
		return
	}

	e.env = env
	e.errorMsg = ""
	e.logger.Info("environment connected", "host_uri", e.newConfig.HostURI, "name", env.Name())
}

// Check проверяет, живо ли окружение.
// Возвращает false, если окружение было потеряно при этой проверке.
func (e *EnvironmentEval) Check(ctx context.Context) bool {
	pinger, ok := e.env.(proxy.Pinger)
	if e.env == nil || !ok {
		return true
	}
	if err := pinger.Ping(ctx); err != nil {
		e.errorMsg = reportError("environment lost", err)
		e.logger.Warn("environment lost", "error", err)
		e.close()
		return false
	}
	return true
}

// Environment возвращает окружение или nil.
func (e *EnvironmentEval) Environment() proxy.Environment {
	return e.env
}

// Config возвращает последнюю применённую конфигурацию.
func (e *EnvironmentEval) Config() domain.ZoneConfig {
	return e.lastConfig
}

// ErrorMsg возвращает сообщение последней ошибки подключения.
func (e *EnvironmentEval) ErrorMsg() string {
	return e.errorMsg
}

// IsFailureState проверяет, что окружение недоступно.
func (e *EnvironmentEval) IsFailureState() bool {
	return e.env == nil
}

// Close закрывает окружение.
func (e *EnvironmentEval) Close() {
	e.close()
}

func (e *EnvironmentEval) close() {
	if e.env == nil {
		return
	}
	if err := e.env.Close(); err != nil {
		e.logger.Warn("close environment", "error", err)
	}
	e.env = nil
}
