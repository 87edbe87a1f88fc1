package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"chatd/internal/registry"
)

func newModelsCmd(g *globalOpts) *cobra.Command {
	var mf modelFlags
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List models found in the models directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}
			mf.apply(cmd, &cfg)
			models, err := registry.LoadDir(cfg.ModelsDir)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tFAMILY\tQUANT\tPATH")
			for _, m := range models {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.ID, m.Family, m.Quant, m.Path)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&mf.modelsDir, "models-dir", "", "Directory to scan for *.gguf model files")
	return cmd
}
