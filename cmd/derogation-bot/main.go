// cmd/derogation-bot/main.go
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "derogation-bot",
		Short:         "Chat bot that fills the travel certificate form and sends back the document.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().String("config", "", "Path to a config.yaml file (defaults to ./configs/config.yaml or ./config.yaml).")

	cmd.AddCommand(newServeCmd(), newConsoleCmd())
	return cmd
}
