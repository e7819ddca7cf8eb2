package cli

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/shaiso/Flowgraph/internal/domain"
	"github.com/shaiso/Flowgraph/internal/graph"
	"github.com/shaiso/Flowgraph/internal/local"
	"github.com/shaiso/Flowgraph/internal/mq"
	"github.com/shaiso/Flowgraph/internal/proxy"
)

// Env — окружение команд: реестр блоков и подключение к зонам.
type Env struct {
	Registry *local.Registry
	Dialer   *proxy.Dialer
	Logger   *slog.Logger
}

// NewEnv создаёт Env со встроенным реестром и схемами local, amqp, amqps.
func NewEnv(callTimeout time.Duration, logger *slog.Logger) *Env {
	if logger == nil {
		logger = slog.Default()
	}
	registry := local.DefaultRegistry()
	dialer := local.NewDialer(registry)
	mq.Register(dialer, callTimeout, logger)
	return &Env{Registry: registry, Dialer: dialer, Logger: logger}
}

// Lookup возвращает описание блока из реестра.
func (e *Env) Lookup(path string) (domain.BlockDesc, error) {
	f, err := e.Registry.Get(path)
	if err != nil {
		return domain.BlockDesc{}, err
	}
	return f.Desc(), nil
}

// LoadDesign читает файл дизайна.
func (e *Env) LoadDesign(path string) (*graph.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open design: %w", err)
	}
	defer f.Close()

	doc, err := graph.LoadDocument(f, e.Lookup)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return doc, nil
}
