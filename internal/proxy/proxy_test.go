package proxy

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type nopEnv struct{ name string }

func (e *nopEnv) Name() string { return e.name }
func (e *nopEnv) Make(ctx context.Context, class string, args ...any) (Object, error) {
	return nil, fmt.Errorf("%w: %s", ErrUnknownClass, class)
}
func (e *nopEnv) Close() error { return nil }

func TestDialer_DialByScheme(t *testing.T) {
	d := NewDialer()
	d.Register("local", func(ctx context.Context, hostURI, processName string) (Environment, error) {
		return &nopEnv{name: "local:" + processName}, nil
	})

	env, err := d.Dial(context.Background(), "local://", "main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.Name() != "local:main" {
		t.Errorf("unexpected env name %q", env.Name())
	}
}

func TestDialer_UnknownScheme(t *testing.T) {
	d := NewDialer()
	_, err := d.Dial(context.Background(), "tcp://host:1234", "")
	if !errors.Is(err, ErrUnknownScheme) {
		t.Errorf("expected ErrUnknownScheme, got %v", err)
	}
}

func TestDialer_DialErrorIsRemote(t *testing.T) {
	d := NewDialer()
	d.Register("amqp", func(ctx context.Context, hostURI, processName string) (Environment, error) {
		return nil, errors.New("connection refused")
	})

	_, err := d.Dial(context.Background(), "amqp://localhost", "p")
	var re *RemoteError
	if !errors.As(err, &re) {
		t.Fatalf("expected RemoteError, got %T", err)
	}
	if re.Message != "connection refused" {
		t.Errorf("unexpected message %q", re.Message)
	}
}

func TestWrapRemoteError_KeepsExisting(t *testing.T) {
	orig := NewRemoteError("evalProperty", "bad %s", "expr")
	wrapped := WrapRemoteError("other", fmt.Errorf("ctx: %w", orig))
	if wrapped != orig {
		t.Error("existing RemoteError should be returned as is")
	}
	if MessageOf(wrapped) != "bad expr" {
		t.Errorf("unexpected message %q", MessageOf(wrapped))
	}
	if WrapRemoteError("x", nil) != nil {
		t.Error("nil error should stay nil")
	}
}
