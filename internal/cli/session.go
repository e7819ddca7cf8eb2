package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Flowgraph/internal/domain"
	"github.com/shaiso/Flowgraph/internal/eval"
	"github.com/shaiso/Flowgraph/internal/graph"
	"github.com/shaiso/Flowgraph/internal/gui"
)

const defaultPollInterval = time.Second

// SessionConfig — конфигурация Session.
type SessionConfig struct {
	Path       string
	DocumentID uuid.UUID // пусто — id из дизайна или новый
	Env        *Env

	PollInterval time.Duration // проверка файла дизайна (default: 1s)
	Debounce     time.Duration // передаётся в eval.Engine

	// OnPass вызывается в горутине движка после каждого прохода.
	OnPass func(eval.PassResult)

	Logger *slog.Logger
}

// Session — headless сессия редактирования дизайна.
//
// Документ и история принадлежат gui.Loop: перезагрузка файла, применение
// статусов блоков и снятие истории выполняются только в нём.
type Session struct {
	path   string
	env    *Env
	poll   time.Duration
	loop   *gui.Loop
	engine *eval.Engine
	logger *slog.Logger

	// GUI-горутина
	docID   uuid.UUID
	doc     *graph.Document
	states  *graph.StateManager
	data    []byte
	modTime time.Time

	// done закрывается, когда Run вернул управление и GUI-горутины больше нет.
	done chan struct{}
}

// NewSession создаёт сессию. Файл читается при Run.
func NewSession(cfg SessionConfig) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}

	loop := gui.NewLoop(0)
	return &Session{
		path: cfg.Path,
		env:  cfg.Env,
		poll: poll,
		loop: loop,
		engine: eval.New(eval.Config{
			Dialer:     cfg.Env.Dialer,
			Dispatcher: loop,
			Debounce:   cfg.Debounce,
			OnPass:     cfg.OnPass,
			Logger:     logger,
		}),
		logger: logger.With("design", cfg.Path),
		docID:  cfg.DocumentID,
		states: graph.NewStateManager(),
		done:   make(chan struct{}),
	}
}

// Restore заменяет историю сессии контрольной точкой. Вызывается до Run.
func (s *Session) Restore(h domain.StateHistory) {
	s.states = graph.RestoreStateManager(h)
	if s.docID == uuid.Nil {
		s.docID = h.DocumentID
	}
	s.logger.Info("history restored",
		"document_id", h.DocumentID,
		"states", len(h.States),
		"checkpoint_at", h.CheckpointAt,
	)
}

// Run загружает дизайн, запускает движок и перезагружает файл при изменении.
// Блокирует текущую горутину до отмены ctx: она становится GUI-горутиной.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.done)

	if err := s.engine.Start(ctx); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}
	defer s.engine.Stop()

	s.loop.Post(func() {
		if err := s.Reload(); err != nil {
			s.logger.Error("failed to load design", "error", err)
		}
	})

	go func() {
		tk := time.NewTicker(s.poll)
		defer tk.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tk.C:
				s.loop.Post(func() {
					if err := s.Reload(); err != nil {
						s.logger.Warn("design reload failed", "error", err)
					}
				})
			}
		}
	}()

	err := s.loop.Run(ctx)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// Reload перечитывает файл дизайна, если он изменился.
// Новое содержимое становится состоянием истории и снимком для движка.
// Вызывается в GUI-горутине.
func (s *Session) Reload() error {
	info, err := os.Stat(s.path)
	if err != nil {
		return fmt.Errorf("stat design: %w", err)
	}
	if s.doc != nil && info.ModTime().Equal(s.modTime) {
		return nil
	}
	s.modTime = info.ModTime()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read design: %w", err)
	}
	if s.doc != nil && bytes.Equal(data, s.data) {
		return nil
	}

	doc, err := graph.LoadDocument(bytes.NewReader(data), s.env.Lookup)
	if err != nil {
		return err
	}
	if s.docID == uuid.Nil {
		s.docID = doc.ID()
	}
	doc.SetID(s.docID)

	dump, err := doc.Dump()
	if err != nil {
		return fmt.Errorf("dump design: %w", err)
	}

	icon, action := "edit", "Reload "
	if s.doc == nil {
		icon, action = "document-open", "Open "
	}
	s.states.Post(domain.NewGraphState(icon, action+filepath.Base(s.path), dump))
	s.doc = doc
	s.data = data

	s.logger.Info("design loaded",
		"document_id", s.docID,
		"blocks", len(doc.Blocks()),
		"states", s.states.NumStates(),
	)
	return s.engine.Submit(eval.TakeSnapshot(doc))
}

// Histories возвращает историю документа сессии для контрольной точки.
// После завершения Run история читается напрямую: она больше не меняется.
func (s *Session) Histories(ctx context.Context) ([]domain.StateHistory, error) {
	var out []domain.StateHistory
	collect := func() error {
		if s.docID == uuid.Nil || s.states.NumStates() == 0 {
			return nil
		}
		out = append(out, s.states.History(s.docID))
		return nil
	}

	err := s.loop.Invoke(ctx, collect)
	if errors.Is(err, gui.ErrLoopStopped) {
		select {
		case <-s.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		out = nil
		err = collect()
	}
	return out, err
}

// LastPass возвращает итог последнего прохода вычисления.
func (s *Session) LastPass() (eval.PassResult, bool) {
	return s.engine.LastResult()
}

// StateRows возвращает строки списка истории, новые первыми.
func (s *Session) StateRows(ctx context.Context) ([]graph.StateRow, error) {
	var rows []graph.StateRow
	err := s.loop.Invoke(ctx, func() error {
		rows = s.states.Rows()
		return nil
	})
	return rows, err
}

// Document возвращает текущий документ. Вызывается в GUI-горутине.
func (s *Session) Document() *graph.Document { return s.doc }

// Dispatcher возвращает очередь GUI-горутины сессии.
func (s *Session) Dispatcher() gui.Dispatcher { return s.loop }
