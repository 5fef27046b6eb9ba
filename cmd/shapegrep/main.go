// shapegrep searches JavaScript, TypeScript and Python code by shape.
// Queries are code snippets with wildcards, matched against syntax trees.
package main

import (
	"os"

	"github.com/corey/shapegrep/cmd/shapegrep/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		if code := cmd.GrepExitCode(err); code >= 0 {
			os.Exit(code)
		}
		os.Exit(2)
	}
}
