package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/maplepath-ai/maplepath/internal/cli"
	"github.com/maplepath-ai/maplepath/internal/cli/client"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "maplepath",
		Short: "Maplepath CLI - Immigration knowledge retrieval",
		Long: `Maplepath CLI queries the immigration knowledge retrieval API.

Environment variables:
  MAPLEPATH_API_URL   API base URL (default: http://localhost:8080)`,
		Version: version,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env)")

	rootCmd.AddCommand(client.RetrieveCmd())
	rootCmd.AddCommand(client.ContextCmd())

	cli.AddHelpJSONFlag(rootCmd)
	cli.CheckHelpJSON(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
