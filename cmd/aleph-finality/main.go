// Command aleph-finality runs a member of the finality committee and provides the tools to set a committee up.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "aleph-finality",
	Short:        "DAG based consensus finalizing blocks of a chain",
	SilenceUsage: true,
}

func main() {
	rootCmd.AddCommand(runCmd, keysCmd, logsCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
