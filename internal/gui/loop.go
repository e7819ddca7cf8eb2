package gui

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// defaultQueueSize — размер очереди сообщений по умолчанию.
const defaultQueueSize = 256

// ErrLoopStopped — Loop остановлен, сообщение не будет выполнено.
var ErrLoopStopped = errors.New("gui loop stopped")

// Dispatcher — способ выполнить код в GUI-горутине.
type Dispatcher interface {
	// Post ставит fn в очередь и не ждёт выполнения.
	// Возвращает false, если очередь остановлена.
	Post(fn func()) bool

	// Invoke выполняет fn в GUI-горутине и ждёт результата.
	// Нельзя вызывать из самой GUI-горутины.
	Invoke(ctx context.Context, fn func() error) error
}

// Loop — очередь сообщений GUI-горутины.
//
// Горутина, вызвавшая Run, считается GUI-горутиной: только она
// выполняет отправленные функции, строго по одной и по порядку.
type Loop struct {
	queue chan func()

	mu       sync.Mutex
	stopped  bool
	stopOnce sync.Once
	done     chan struct{}
}

// NewLoop создаёт Loop с очередью указанного размера.
func NewLoop(size int) *Loop {
	if size <= 0 {
		size = defaultQueueSize
	}
	return &Loop{
		queue: make(chan func(), size),
		done:  make(chan struct{}),
	}
}

// Run выполняет сообщения до отмены ctx или вызова Stop.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			l.Stop()
			return ctx.Err()
		case <-l.done:
			return nil
		case fn := <-l.queue:
			fn()
		}
	}
}

// Drain выполняет все сообщения, уже находящиеся в очереди.
// Вызывается из GUI-горутины вместо Run в однопоточных сценариях.
func (l *Loop) Drain() int {
	n := 0
	for {
		select {
		case fn := <-l.queue:
			fn()
			n++
		default:
			return n
		}
	}
}

// Stop останавливает Loop. Сообщения в очереди больше не выполняются.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		l.mu.Lock()
		l.stopped = true
		l.mu.Unlock()
		close(l.done)
	})
}

// Post ставит fn в очередь.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	stopped := l.stopped
	l.mu.Unlock()
	if stopped {
		return false
	}

	select {
	case l.queue <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Invoke выполняет fn в GUI-горутине и ждёт завершения.
// Паника внутри fn превращается в ошибку.
func (l *Loop) Invoke(ctx context.Context, fn func() error) error {
	result := make(chan error, 1)

	wrapped := func() {
		defer func() {
			if r := recover(); r != nil {
				result <- fmt.Errorf("gui invoke panic: %v", r)
			}
		}()
		result <- fn()
	}

	select {
	case l.queue <- wrapped:
	case <-l.done:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-result:
		return err
	case <-l.done:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Inline — Dispatcher для однопоточных инструментов без GUI.
// Выполняет функции сразу в вызывающей горутине.
type Inline struct{}

// Post выполняет fn немедленно.
func (Inline) Post(fn func()) bool {
	fn()
	return true
}

// Invoke выполняет fn немедленно.
func (Inline) Invoke(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn()
}
