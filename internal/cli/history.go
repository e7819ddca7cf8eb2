package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shaiso/Flowgraph/internal/graph"
	"github.com/shaiso/Flowgraph/internal/repo"
)

// NewHistoryCmd создаёт группу команд контрольных точек истории.
func NewHistoryCmd(outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect checkpointed graph state history",
	}

	cmd.AddCommand(
		newHistoryListCmd(outputFn),
		newHistoryShowCmd(outputFn),
	)

	return cmd
}

func newHistoryListCmd(outputFn func() *Output) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List checkpointed documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			return withHistoryRepo(cmd.Context(), func(r *repo.HistoryRepo) error {
				histories, err := r.ListHistories(cmd.Context(), limit)
				if err != nil {
					return err
				}

				rows := make([][]string, len(histories))
				for i, h := range histories {
					rows[i] = []string{
						h.DocumentID.String(),
						strconv.Itoa(h.NumStates),
						strconv.Itoa(h.CurrentIndex),
						strconv.Itoa(h.SavedIndex),
						h.CheckpointAt.Format(time.RFC3339),
					}
				}
				out.Print([]string{"DOCUMENT", "STATES", "CURRENT", "SAVED", "CHECKPOINT"}, rows, histories)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum number of documents")

	return cmd
}

func newHistoryShowCmd(outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show <document-id>",
		Short: "Show the checkpointed undo list of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			docID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("%w: %s", ErrInvalidDocumentID, args[0])
			}

			return withHistoryRepo(cmd.Context(), func(r *repo.HistoryRepo) error {
				h, err := r.GetHistory(cmd.Context(), docID)
				if err != nil {
					return fmt.Errorf("document %s: %w", docID, err)
				}

				states := graph.RestoreStateManager(*h)
				rows := make([][]string, 0, states.NumStates())
				for _, row := range states.Rows() {
					state, _ := states.StateAt(row.Index)
					marker := ""
					if row.Index == states.CurrentIndex() {
						marker += "*"
					}
					if row.Index == states.SavedIndex() {
						marker += "S"
					}
					rows = append(rows, []string{
						strconv.Itoa(row.Index),
						marker,
						row.IconName,
						state.Description,
						state.CreatedAt.Format(time.RFC3339),
					})
				}
				out.Print([]string{"#", "MARK", "ICON", "DESCRIPTION", "CREATED"}, rows, h)
				return nil
			})
		},
	}
}

// withHistoryRepo подключается к базе по DB_URL на время одной команды.
func withHistoryRepo(ctx context.Context, fn func(r *repo.HistoryRepo) error) error {
	pool, err := repo.NewPool(ctx)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer pool.Close()

	if err := repo.EnsureSchema(ctx, pool); err != nil {
		return err
	}
	return fn(repo.NewHistoryRepo(pool))
}
