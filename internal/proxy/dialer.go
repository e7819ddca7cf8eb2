package proxy

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
)

// DialFunc создаёт окружение по HostURI и имени процесса.
type DialFunc func(ctx context.Context, hostURI, processName string) (Environment, error)

// Dialer — реестр способов подключения к окружению по схеме URI.
//
// Регистрируется явно при старте процесса. Потокобезопасен.
type Dialer struct {
	mu      sync.RWMutex
	schemes map[string]DialFunc
}

// NewDialer создаёт пустой Dialer.
func NewDialer() *Dialer {
	return &Dialer{schemes: make(map[string]DialFunc)}
}

// Register регистрирует DialFunc для схемы ("local", "amqp", ...).
func (d *Dialer) Register(scheme string, fn DialFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.schemes[strings.ToLower(scheme)] = fn
}

// Schemes возвращает зарегистрированные схемы.
func (d *Dialer) Schemes() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	schemes := make([]string, 0, len(d.schemes))
	for s := range d.schemes {
		schemes = append(schemes, s)
	}
	sort.Strings(schemes)
	return schemes
}

// Dial подключается к окружению.
func (d *Dialer) Dial(ctx context.Context, hostURI, processName string) (Environment, error) {
	u, err := url.Parse(hostURI)
	if err != nil {
		return nil, fmt.Errorf("parse host uri %q: %w", hostURI, err)
	}

	d.mu.RLock()
	fn, ok := d.schemes[strings.ToLower(u.Scheme)]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, u.Scheme)
	}

	env, err := fn(ctx, hostURI, processName)
	if err != nil {
		return nil, WrapRemoteError("dial "+hostURI, err)
	}
	return env, nil
}
