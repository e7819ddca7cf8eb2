// Flowgraph CLI — вычисление дизайнов графов из командной строки.
//
// Использование:
//
//	flowgraph [--json] [--call-timeout D] <command> [flags]
//
// Команды:
//
//	eval     Один проход вычисления дизайна
//	watch    Перевычисление при изменении файла, контрольные точки истории
//	blocks   Список блоков реестра
//	history  Контрольные точки истории из Postgres
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/Flowgraph/internal/cli"
	"github.com/shaiso/Flowgraph/internal/telemetry"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var (
		jsonOutput  bool
		callTimeout time.Duration
	)

	rootCmd := &cobra.Command{
		Use:           "flowgraph",
		Short:         "Flowgraph — background evaluation of flow graph designs",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().DurationVar(&callTimeout, "call-timeout", 10*time.Second, "Remote environment call timeout")

	// логи в stderr, данные в stdout
	logger := telemetry.NewLogger(os.Stderr)

	envFn := func() *cli.Env { return cli.NewEnv(callTimeout, logger) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewEvalCmd(envFn, outputFn),
		cli.NewWatchCmd(envFn, outputFn),
		cli.NewBlocksCmd(envFn, outputFn),
		cli.NewHistoryCmd(outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
