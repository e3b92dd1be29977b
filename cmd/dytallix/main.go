package main

import (
	"os"

	"github.com/spf13/cobra"

	cli "github.com/DytallixHQ/Dytallix-sub005/cmd/cli"
)

func main() {
	rootCmd := &cobra.Command{Use: "dytallix", Short: "Dytallix node tooling"}
	cli.RegisterKeys(rootCmd)
	cli.RegisterTx(rootCmd)
	cli.RegisterQuery(rootCmd)
	cli.RegisterNode(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
