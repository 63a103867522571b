package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"blockplan/internal/config"
	"blockplan/internal/disks"
	"blockplan/internal/executor"
	"blockplan/internal/layout"
	"blockplan/internal/logging"
	"blockplan/internal/plan"
	"blockplan/pkg/shell"
)

func buildConfig(cmd *cobra.Command) config.Config {
	cfg := config.FromEnv()
	if cmd.Flags().Changed("workers") {
		if n, err := cmd.Flags().GetInt("workers"); err == nil {
			cfg.Workers = n
		}
	}
	if viper.IsSet("stop_on_failure") {
		cfg.StopOnFailure = viper.GetBool("stop_on_failure")
	}
	if verbose {
		cfg.LogLevel = zerolog.DebugLevel
	}
	return cfg
}

func newLogger(cfg config.Config) zerolog.Logger {
	return logging.New(os.Stderr, cfg.LogLevel)
}

func jsonEncoder(out *os.File) *json.Encoder {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc
}

func loadLayout(path string) (*layout.LayoutSpec, error) {
	spec, err := layout.LoadFile(path)
	if err != nil {
		return nil, exitf(exitInvalidLayout, "Error: %v", err)
	}
	return spec, nil
}

// classify maps orchestrator errors to exit codes: anything caught before
// execution started is an invalid-layout class failure.
func classify(err error) error {
	switch {
	case errors.Is(err, layout.ErrInvalidLayout),
		errors.Is(err, layout.ErrUnsupportedOperation),
		errors.Is(err, layout.ErrForbiddenRAID),
		errors.Is(err, plan.ErrPlanning),
		errors.Is(err, disks.ErrDeviceMissing),
		errors.Is(err, disks.ErrDeviceBusy):
		return exitf(exitInvalidLayout, "Error: %v", err)
	default:
		return exitf(exitExecFailure, "Error: %v", err)
	}
}

func newApplyCmd() *cobra.Command {
	var (
		layoutPath string
		dryRun     bool
		yes        bool
	)
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Provision disks from a layout file",
		Long: `Validate the layout, plan the ordered step list and execute it.
All data on the declared disks is destroyed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := buildConfig(cmd)
			log := newLogger(cfg)

			spec, err := loadLayout(layoutPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			orch := executor.NewOrchestrator(cfg, log)
			pl, err := orch.Plan(ctx, spec)
			if err != nil {
				return classify(err)
			}
			if dryRun {
				printPlan(pl)
				return nil
			}

			if !yes && !confirmDestruction(spec) {
				return exitf(exitDeclined, "aborted: confirmation declined")
			}

			var bar *progressbar.ProgressBar
			if !outputJSON {
				bar = progressbar.Default(int64(len(pl.Steps)), "applying layout")
				orch.Executor().OnStepDone = func(res executor.StepResult) {
					bar.Describe(res.StepID)
					_ = bar.Add(1)
				}
			}

			rep, err := orch.Run(ctx, spec)
			if err != nil {
				return classify(err)
			}
			if bar != nil {
				_ = bar.Finish()
				fmt.Println()
			}
			if outputJSON {
				if err := rep.WriteJSON(os.Stdout); err != nil {
					return err
				}
			} else {
				rep.WriteTable(os.Stdout)
			}
			if !rep.Completed {
				return exitf(exitExecFailure, "")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&layoutPath, "layout", "", "path to the layout file (yaml or json)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate and plan only, execute nothing")
	cmd.Flags().BoolVar(&yes, "yes", false, "skip the destruction confirmation")
	cmd.Flags().Int("workers", 0, "parallel disk chains (0 = one per disk, capped)")
	_ = cmd.MarkFlagRequired("layout")
	_ = viper.BindPFlag("workers", cmd.Flags().Lookup("workers"))
	return cmd
}

func newPlanCmd() *cobra.Command {
	var layoutPath string
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the ordered step list without executing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := buildConfig(cmd)
			spec, err := loadLayout(layoutPath)
			if err != nil {
				return err
			}
			orch := executor.NewOrchestrator(cfg, newLogger(cfg))
			pl, err := orch.Plan(context.Background(), spec)
			if err != nil {
				return classify(err)
			}
			printPlan(pl)
			return nil
		},
	}
	cmd.Flags().StringVar(&layoutPath, "layout", "", "path to the layout file (yaml or json)")
	_ = cmd.MarkFlagRequired("layout")
	return cmd
}

func printPlan(pl *plan.Plan) {
	if outputJSON {
		enc := jsonEncoder(os.Stdout)
		_ = enc.Encode(pl)
		return
	}
	danger := color.New(color.FgRed).SprintFunc()
	for i := range pl.Steps {
		st := &pl.Steps[i]
		marker := " "
		if st.Destructive {
			marker = danger("!")
		}
		fmt.Printf("%3d %s %-24s %s\n", i+1, marker, st.ID, st.Description)
		if verbose {
			for _, c := range st.Commands {
				fmt.Printf("       $ %s\n", c.String())
			}
		}
	}
}

func confirmDestruction(spec *layout.LayoutSpec) bool {
	color.Red("\nWARNING: this will DESTROY ALL DATA on:")
	for _, d := range spec.Disks {
		color.Red("  %s (%s)", d.Device, d.ID)
	}

	confirm := false
	prompt := &survey.Confirm{
		Message: "Do you want to continue?",
		Default: false,
	}
	if err := survey.AskOne(prompt, &confirm); err != nil || !confirm {
		return false
	}

	phrase := ""
	input := &survey.Input{Message: "Type 'WIPE' to confirm:"}
	if err := survey.AskOne(input, &phrase); err != nil {
		return false
	}
	return phrase == "WIPE"
}

func newDisksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "disks",
		Short: "List candidate block devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			devs, err := disks.Collect(context.Background())
			if err != nil {
				if errors.Is(err, shell.ErrNotFound) {
					return fmt.Errorf("lsblk not available: %w", err)
				}
				return err
			}
			if outputJSON {
				enc := jsonEncoder(os.Stdout)
				return enc.Encode(devs)
			}
			fmt.Printf("%-12s %-20s %12s %-8s %-10s %s\n", "NAME", "MODEL", "SIZE", "TYPE", "FSTYPE", "MOUNTPOINT")
			for _, d := range devs {
				mp := ""
				if d.Mountpoint != nil {
					mp = *d.Mountpoint
				}
				fmt.Printf("%-12s %-20s %12d %-8s %-10s %s\n", d.Name, d.Model, d.SizeBytes, d.Type, d.FSType, mp)
			}
			return nil
		},
	}
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("blockplan %s (%s)\n", Version, GitCommit)
		},
	}
}
