package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "docqa",
		Short:         "Ask questions about your text documents",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(serveCMD(), chunkCMD())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
