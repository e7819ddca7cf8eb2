package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

// NewBlocksCmd создаёт команду списка блоков реестра.
func NewBlocksCmd(envFn func() *Env, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "blocks",
		Short: "List registered block paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env := envFn()
			out := outputFn()

			descs := env.Registry.Descs()
			rows := make([][]string, len(descs))
			for i, d := range descs {
				params := make([]string, len(d.Params))
				for j, p := range d.Params {
					params[j] = p.Key + "=" + p.Default
				}
				mode := "block"
				if d.IsGraphWidget() {
					mode = "widget"
				}
				rows[i] = []string{d.Path, d.Name, mode, strings.Join(params, " ")}
			}

			out.Print([]string{"PATH", "NAME", "MODE", "PARAMS"}, rows, descs)
			return nil
		},
	}
}
