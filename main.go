package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Version info (set by build)
	Version   = "dev"
	GitCommit = "unknown"

	// Global flags
	outputJSON bool
	verbose    bool
)

// Exit codes of the apply/plan commands.
const (
	exitOK            = 0
	exitExecFailure   = 1
	exitInvalidLayout = 2
	exitDeclined      = 3
)

// exitError carries a specific process exit code through cobra.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

func exitf(code int, format string, args ...any) error {
	return &exitError{code: code, msg: fmt.Sprintf(format, args...)}
}

var rootCmd = &cobra.Command{
	Use:   "blockplan",
	Short: "Declarative disk provisioning",
	Long: `blockplan wipes, partitions, formats and mounts disks from a
declarative layout file. Steps are dependency-ordered, independent disks
run in parallel, and no destructive failure is ever silently skipped.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	viper.SetEnvPrefix("BLOCKPLAN")
	viper.AutomaticEnv()

	rootCmd.AddCommand(
		newApplyCmd(),
		newPlanCmd(),
		newDisksCmd(),
		newVersionCmd(),
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			if ee.msg != "" {
				fmt.Fprintln(os.Stderr, ee.msg)
			}
			os.Exit(ee.code)
		}
		os.Exit(1)
	}
}
