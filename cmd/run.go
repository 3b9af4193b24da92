package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/gridsweep/app"
	"github.com/kilianp07/gridsweep/config"
	"github.com/kilianp07/gridsweep/infra/logger"
)

type runFlags struct {
	resumeFrom     int
	resumeAuto     bool
	replace        bool
	only           []int
	overwrite      bool
	failFast       bool
	suppressOutput bool
	metadataOnly   bool
	outputKind     string
	outputPath     string
	collection     string
}

var rf runFlags

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute the configured sweep",
	RunE:  runSweep,
}

func init() {
	f := runCmd.Flags()
	f.IntVar(&rf.resumeFrom, "resume-from", 0, "skip runs below this run id")
	f.BoolVar(&rf.resumeAuto, "resume-auto", false, "resume after the highest completed run")
	f.BoolVar(&rf.replace, "replace", false, "replace stored runs one by one instead of deleting them up front")
	f.IntSliceVar(&rf.only, "only", nil, "execute only these run ids (requires --replace)")
	f.BoolVar(&rf.overwrite, "overwrite", false, "start fresh over an existing run table")
	f.BoolVar(&rf.failFast, "fail-fast", false, "stop at the first failed run")
	f.BoolVar(&rf.suppressOutput, "suppress-output", false, "do not write any output")
	f.BoolVar(&rf.metadataOnly, "metadata-only", false, "persist run rows and parameters without solving")
	f.StringVar(&rf.outputKind, "output", "", "output backend: file or database")
	f.StringVar(&rf.outputPath, "output-path", "", "output location")
	f.StringVar(&rf.collection, "collection", "", "collection inside the output")
	rootCmd.AddCommand(runCmd)
}

// apply copies the flags set on the command line over cfg.
func (r runFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	if f.Changed("resume-from") {
		v := r.resumeFrom
		cfg.IO.ResumeFrom = &v
	}
	if f.Changed("resume-auto") {
		cfg.IO.ResumeAuto = r.resumeAuto
	}
	if f.Changed("replace") {
		cfg.IO.Replace = r.replace
	}
	if f.Changed("only") {
		cfg.IO.Only = r.only
	}
	if f.Changed("overwrite") {
		cfg.IO.Overwrite = r.overwrite
	}
	if f.Changed("fail-fast") {
		cfg.IO.FailFast = r.failFast
	}
	if f.Changed("suppress-output") {
		cfg.IO.SuppressOutput = r.suppressOutput
	}
	if f.Changed("metadata-only") {
		cfg.Model.MetadataOnly = r.metadataOnly
	}
	if f.Changed("output") {
		cfg.IO.Output.Kind = r.outputKind
	}
	if f.Changed("output-path") {
		cfg.IO.Output.Path = r.outputPath
	}
	if f.Changed("collection") {
		cfg.IO.Output.Collection = r.collection
	}
	return cfg.IO.Validate()
}

func runSweep(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := rf.apply(cmd, cfg); err != nil {
		return err
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()

	rep, err := svc.Run(ctx)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "session %s: %d runs, %d completed, %d failed, %d skipped in %s\n",
		rep.Session, rep.Total, rep.Completed(), len(rep.Failed()), rep.Skipped, rep.Duration)
	if failed := rep.Failed(); len(failed) > 0 {
		fmt.Fprintf(out, "failed runs: %v\n", failed)
	}
	return err
}
