package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/corey/shapegrep/internal/ports"
)

var watchOpts searchFlags

var watchCmd = &cobra.Command{
	Use:   "watch [flags] <query> [path ...]",
	Short: "Re-run a search whenever a file changes",
	Long: `Re-run a search whenever a file under the given paths changes.

A change that arrives while a search is running cancels it and starts over,
so only results for the latest state of the tree are printed. Stop with Ctrl-C.`,
	Args: cobra.ArbitraryArgs,
	PreRun: func(cmd *cobra.Command, _ []string) {
		watchOpts.bind(cmd)
	},
	RunE: runWatch,
}

func init() {
	watchOpts.register(watchCmd.Flags())
}

func runWatch(cmd *cobra.Command, args []string) error {
	params, err := watchOpts.params(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "shapegrep: %v\n", err)
		return grepExit{2}
	}

	a, err := newApp(watchOpts.debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "shapegrep: %v\n", err)
		return grepExit{2}
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := watchOpts.printer()
	err = a.Watch(ctx, params, func(report *ports.SearchReport) {
		if !watchOpts.jsonOut && !watchOpts.quiet {
			fmt.Fprintln(p.out, dimStyle.Sprintf("── %s  %d matches ──", time.Now().Format("15:04:05"), len(report.Matches)))
		}
		if err := p.print(report, params.Queries); err != nil {
			fmt.Fprintf(os.Stderr, "shapegrep: %v\n", err)
		}
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "shapegrep: %v\n", err)
		return grepExit{2}
	}
	return nil
}
