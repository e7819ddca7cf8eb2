package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shaiso/Flowgraph/internal/api"
	"github.com/shaiso/Flowgraph/internal/eval"
	"github.com/shaiso/Flowgraph/internal/repo"
	"github.com/shaiso/Flowgraph/internal/scheduler"
)

// NewWatchCmd создаёт команду сессии с перевычислением при изменении дизайна.
func NewWatchCmd(envFn func() *Env, outputFn func() *Output) *cobra.Command {
	var (
		documentID  string
		poll        time.Duration
		debounce    time.Duration
		checkpoint  bool
		restore     bool
		schedule    string
		httpAddr    string
	)

	cmd := &cobra.Command{
		Use:   "watch <design.json>",
		Short: "Re-evaluate a design whenever the file changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env := envFn()
			out := outputFn()
			ctx := cmd.Context()

			var docID uuid.UUID
			if documentID != "" {
				parsed, err := uuid.Parse(documentID)
				if err != nil {
					return fmt.Errorf("%w: %s", ErrInvalidDocumentID, documentID)
				}
				docID = parsed
			}

			session := NewSession(SessionConfig{
				Path:         args[0],
				DocumentID:   docID,
				Env:          env,
				PollInterval: poll,
				Debounce:     debounce,
				OnPass: func(res eval.PassResult) {
					PrintPass(out, api.NewPassReport(res, false))
				},
				Logger: env.Logger,
			})

			var checkpoints api.CheckpointStore
			if checkpoint || restore {
				pool, err := repo.NewPool(ctx)
				if err != nil {
					return fmt.Errorf("db connect: %w", err)
				}
				defer pool.Close()
				if err := repo.EnsureSchema(ctx, pool); err != nil {
					return err
				}
				histories := repo.NewHistoryRepo(pool)
				checkpoints = histories

				if restore {
					if err := restoreSession(ctx, env, session, histories, args[0], docID); err != nil {
						return err
					}
				}

				if checkpoint {
					cp, err := scheduler.New(scheduler.Config{
						Store:    histories,
						Source:   session.Histories,
						Schedule: schedule,
						Logger:   env.Logger,
					})
					if err != nil {
						return err
					}
					if err := cp.Start(ctx); err != nil {
						return err
					}
					defer func() {
						cp.Stop()
						// последняя контрольная точка при выходе
						flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
						defer cancel()
						if _, err := cp.Tick(flushCtx); err != nil {
							env.Logger.Warn("final checkpoint failed", "error", err)
						}
					}()
				}
			}

			if httpAddr != "" {
				srv := serveAPI(httpAddr, api.NewHandler(api.Config{
					Session:     session,
					Checkpoints: checkpoints,
					Logger:      env.Logger,
				}), env)
				defer srv.Close()
			}

			return session.Run(ctx)
		},
	}

	scheduleDefault := os.Getenv("CHECKPOINT_SCHEDULE")
	if scheduleDefault == "" {
		scheduleDefault = scheduler.DefaultSchedule
	}
	debounceDefault := 250 * time.Millisecond
	if v, err := time.ParseDuration(os.Getenv("EVAL_DEBOUNCE")); err == nil && v > 0 {
		debounceDefault = v
	}

	cmd.Flags().StringVar(&documentID, "document-id", "", "Document ID for designs without one")
	cmd.Flags().DurationVar(&poll, "poll", time.Second, "Design file poll interval")
	cmd.Flags().DurationVar(&debounce, "debounce", debounceDefault, "Pause after a change before evaluating")
	cmd.Flags().BoolVar(&checkpoint, "checkpoint", false, "Store state history checkpoints in Postgres (DB_URL)")
	cmd.Flags().BoolVar(&restore, "restore", false, "Seed the state history from the latest checkpoint")
	cmd.Flags().StringVar(&schedule, "schedule", scheduleDefault, "Checkpoint cron schedule")
	cmd.Flags().StringVar(&httpAddr, "http-addr", "", "Serve the session API, /healthz and /metrics on this address")

	return cmd
}

// restoreSession подгружает последнюю контрольную точку документа.
// Если id не задан флагом, берётся id из файла дизайна.
func restoreSession(ctx context.Context, env *Env, session *Session, histories *repo.HistoryRepo, path string, docID uuid.UUID) error {
	if docID == uuid.Nil {
		doc, err := env.LoadDesign(path)
		if err != nil {
			return err
		}
		docID = doc.ID()
	}

	h, err := histories.GetHistory(ctx, docID)
	if errors.Is(err, repo.ErrNotFound) {
		env.Logger.Info("no checkpoint to restore", "document_id", docID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("restore history: %w", err)
	}
	session.Restore(*h)
	return nil
}

func serveAPI(addr string, handler *api.Handler, env *Env) *http.Server {
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		env.Logger.Info("api listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			env.Logger.Error("api server error", "error", err)
		}
	}()
	return srv
}
