package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/Flowgraph/internal/api"
	"github.com/shaiso/Flowgraph/internal/eval"
)

// PrintPass выводит отчёт прохода.
func PrintPass(out *Output, report api.PassReport) {
	if out.jsonMode {
		out.JSON(report)
		return
	}

	rows := make([][]string, len(report.Blocks))
	for i, b := range report.Blocks {
		rows[i] = []string{b.ID, b.Path, strconv.FormatBool(b.Ready), b.ErrorSummary()}
	}
	out.Table([]string{"BLOCK", "PATH", "READY", "ERRORS"}, rows)

	out.Info(fmt.Sprintf("topology: %s, %d connections, %d pending (%s)",
		report.TopologyState, len(report.Connections), len(report.Pending), report.Duration))
	if report.FailureMsg != "" {
		out.Error(report.FailureMsg)
	}
	for _, line := range report.Trace {
		out.Info("  " + line)
	}
}

// NewEvalCmd создаёт команду одного прохода вычисления.
func NewEvalCmd(envFn func() *Env, outputFn func() *Output) *cobra.Command {
	var (
		timeout time.Duration
		trace   bool
	)

	cmd := &cobra.Command{
		Use:   "eval <design.json>",
		Short: "Evaluate a design once and print block status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env := envFn()
			out := outputFn()

			doc, err := env.LoadDesign(args[0])
			if err != nil {
				return err
			}

			engine := eval.New(eval.Config{
				Dialer: env.Dialer,
				Logger: env.Logger,
			})
			defer engine.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			report := api.NewPassReport(engine.Evaluate(ctx, eval.TakeSnapshot(doc)), trace)
			PrintPass(out, report)

			if report.Failed() {
				return ErrEvalFailed
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Evaluation timeout")
	cmd.Flags().BoolVar(&trace, "trace", false, "Print the evaluation trace")

	return cmd
}
