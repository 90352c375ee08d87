package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/maplepath-ai/maplepath/internal/cli"
	"github.com/maplepath-ai/maplepath/internal/cli/admin"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "maplepathd",
		Short: "Maplepath daemon",
		Long:  "Maplepath daemon for running the retrieval API server and the embedding backfill worker",
	}

	rootCmd.AddCommand(admin.ServeCmd())

	cli.AddHelpJSONFlag(rootCmd)
	cli.CheckHelpJSON(rootCmd)

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
