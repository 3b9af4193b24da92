package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/gridsweep/app"
	"github.com/kilianp07/gridsweep/infra/input"
	"github.com/kilianp07/gridsweep/pkg/export"
)

var matrixFormat string

var matrixCmd = &cobra.Command{
	Use:   "matrix",
	Short: "Print the run table of the configured sweep",
	RunE:  printMatrix,
}

var slotsCmd = &cobra.Command{
	Use:   "slots [node]",
	Short: "Print the slot table of a node",
	Args:  cobra.MaximumNArgs(1),
	RunE:  printSlots,
}

func init() {
	matrixCmd.Flags().StringVarP(&matrixFormat, "format", "f", "csv", "output format: csv or json")
	rootCmd.AddCommand(matrixCmd, slotsCmd)
}

func printMatrix(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	m, err := app.BuildMatrix(cfg.Sweep)
	if err != nil {
		return err
	}
	switch matrixFormat {
	case "csv":
		return export.WriteMatrixCSV(cmd.OutOrStdout(), m)
	case "json":
		return export.WriteMatrixJSON(cmd.OutOrStdout(), m)
	}
	return fmt.Errorf("unknown format %q", matrixFormat)
}

func printSlots(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	def, err := input.ReadDef(cfg.Model.Input)
	if err != nil {
		return err
	}
	nodes := def.Nodes
	if len(args) == 1 {
		nodes = args
	}
	maps, err := app.BuildMaps(cfg.Model, nodes)
	if err != nil {
		return err
	}
	for _, n := range nodes {
		if err := export.WriteSlotsCSV(cmd.OutOrStdout(), maps[n]); err != nil {
			return err
		}
	}
	return nil
}
