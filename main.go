// main is the entry point of the stackreport CLI.
package main

import (
	"fmt"
	"os"

	"github.com/huangsam/stackreport/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
}
