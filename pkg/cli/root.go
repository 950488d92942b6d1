// Package cli is the friday command line.
package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// now is replaced in tests.
var now = time.Now

type rootOptions struct {
	verbose      bool
	strict       bool
	allowPartial bool
	noCache      bool
	configPath   string
}

func newRootCmd(version string) *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "friday",
		Short: "Friday - personal daily and weekly briefings",
		Long: `Friday compiles tasks and calendar events from TickTick, Taskwarrior,
Org-mode, Google Calendar and icalPal into a context bundle, hands it to
a reasoner and journals the answer.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")
	root.PersistentFlags().BoolVar(&opts.strict, "strict", false, "Fail when any source is unavailable")
	root.PersistentFlags().BoolVar(&opts.allowPartial, "allow-partial", false, "Exit 0 even when a source is unavailable")
	root.PersistentFlags().BoolVar(&opts.noCache, "no-cache", false, "Bypass the fetch cache")
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file (default $FRIDAY_HOME/config/friday.yaml)")

	root.AddCommand(newTasksCmd(opts))
	root.AddCommand(newCalendarCmd(opts))
	root.AddCommand(newCompileCmd(opts))
	root.AddCommand(newMorningCmd(opts))
	root.AddCommand(newWeekCmd(opts))
	root.AddCommand(newReviewCmd(opts))
	root.AddCommand(newInboxCmd(opts))
	root.AddCommand(newCacheCmd(opts))
	root.AddCommand(newConfigCmd())
	return root
}

// Execute runs the root command
func Execute(version string) error {
	if err := newRootCmd(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}
