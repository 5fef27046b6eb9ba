package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	historyLimit int
	historyJSON  bool
	historyClear bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past searches in this project",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	f := historyCmd.Flags()
	f.IntVarP(&historyLimit, "limit", "n", 20, "Entries to show (0 = all)")
	f.BoolVar(&historyJSON, "json", false, "Print entries as JSON")
	f.BoolVar(&historyClear, "clear", false, "Delete the history and cached reports")
}

func runHistory(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	if historyClear {
		if err := a.ClearHistory(); err != nil {
			return err
		}
		fmt.Println("history cleared")
		return nil
	}

	entries, err := a.History(historyLimit)
	if err != nil {
		return err
	}
	if historyJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}
	for _, e := range entries {
		cached := ""
		if e.Cached {
			cached = " cached"
		}
		fmt.Printf("%s  %s  %-7s %4d matches %5d files %8s%s  %s\n",
			dimStyle.Sprint(shortID(e.ID)),
			e.At.Local().Format(time.DateTime),
			e.Mode,
			e.Matches,
			e.FilesScanned,
			e.Elapsed.Round(time.Millisecond),
			cached,
			queryStyle.Sprint(strings.Join(e.Queries, " | ")))
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
