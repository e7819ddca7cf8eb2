package eval

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/Flowgraph/internal/proxy"
)

// TraceEntry — одна запись трассировки прохода.
type TraceEntry struct {
	Time    time.Time
	Action  string
	Message string
	Failed  bool
}

// Tracer — журнал действий одного прохода вычисления.
//
// Пишет каждое действие в логгер и сохраняет записи для вывода в CLI.
// Потокобезопасен: блоки вычисляются параллельно.
type Tracer struct {
	logger *slog.Logger

	mu      sync.Mutex
	entries []TraceEntry
}

// NewTracer создаёт трассировщик.
func NewTracer(logger *slog.Logger) *Tracer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracer{logger: logger}
}

// Trace записывает действие.
func (t *Tracer) Trace(action, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	t.logger.Debug(action, "detail", msg)
	t.add(TraceEntry{Time: time.Now(), Action: action, Message: msg})
}

// Error записывает ошибку действия и возвращает сообщение для статуса.
func (t *Tracer) Error(action string, err error) string {
	msg := reportError(action, err)
	t.logger.Warn(action+" failed", "error", proxy.MessageOf(err))
	t.add(TraceEntry{Time: time.Now(), Action: action, Message: msg, Failed: true})
	return msg
}

// Entries возвращает копию записей.
func (t *Tracer) Entries() []TraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TraceEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Failures возвращает только записи об ошибках.
func (t *Tracer) Failures() []TraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []TraceEntry
	for _, e := range t.entries {
		if e.Failed {
			out = append(out, e)
		}
	}
	return out
}

func (t *Tracer) add(e TraceEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, e)
}

// reportError форматирует ошибку удалённого вызова для статуса блока.
func reportError(action string, err error) string {
	return fmt.Sprintf("%s: %s", action, proxy.MessageOf(err))
}
