package proxy

import (
	"errors"
	"fmt"
)

// Ошибки прокси.
var (
	// ErrUnknownScheme — нет Dialer для схемы HostURI.
	ErrUnknownScheme = errors.New("unknown environment scheme")

	// ErrUnknownClass — окружение не умеет создавать класс.
	ErrUnknownClass = errors.New("unknown class")

	// ErrUnknownMethod — у объекта нет метода.
	ErrUnknownMethod = errors.New("unknown method")

	// ErrEnvironmentClosed — окружение уже закрыто.
	ErrEnvironmentClosed = errors.New("environment closed")
)

// RemoteError — ошибка удалённого вызова с человекочитаемым сообщением.
type RemoteError struct {
	Op      string // метод или класс, вызвавший ошибку
	Message string // сообщение удалённой стороны
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *RemoteError) Error() string {
	if e.Op != "" {
		return e.Op + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *RemoteError) Unwrap() error {
	return e.Err
}

// NewRemoteError создаёт RemoteError с форматированным сообщением.
func NewRemoteError(op, format string, args ...any) *RemoteError {
	return &RemoteError{Op: op, Message: fmt.Sprintf(format, args...)}
}

// WrapRemoteError превращает произвольную ошибку в RemoteError.
func WrapRemoteError(op string, err error) *RemoteError {
	if err == nil {
		return nil
	}
	var re *RemoteError
	if errors.As(err, &re) {
		return re
	}
	return &RemoteError{Op: op, Message: err.Error(), Err: err}
}

// MessageOf возвращает сообщение ошибки без имени операции.
func MessageOf(err error) string {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Message
	}
	return err.Error()
}
