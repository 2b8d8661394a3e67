package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "townctl",
	Short: "Admin CLI for the Town backend store",
	Long:  "townctl inspects and repairs the shared Town store: trigger queue, nudge buckets.",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
