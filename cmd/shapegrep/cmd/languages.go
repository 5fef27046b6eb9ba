package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/corey/shapegrep/internal/ports"
)

var languagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "List supported languages and their file extensions",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, lang := range ports.Languages {
			fmt.Printf("%-12s %s\n", lang, strings.Join(ports.ExtensionsFor(lang), " "))
		}
	},
}
