package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// ContextResponse represents the context API response.
type ContextResponse struct {
	Context     string `json:"context"`
	Reranked    bool   `json:"reranked"`
	RetrievalID string `json:"retrieval_id,omitempty"`
}

// ContextCmd creates the context command.
func ContextCmd() *cobra.Command {
	var (
		language string
		related  bool
		rerank   bool
	)

	cmd := &cobra.Command{
		Use:   "context <query>",
		Short: "Build a knowledge context block for a query",
		Long:  "Runs the retrieval pipeline and prints the assembled context block handed to the generation layer.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			req := RetrieveRequest{
				Query:                  args[0],
				Language:               language,
				IncludeRelatedEntities: related,
				EnableReranking:        rerank,
			}
			return runContext(cmd, req, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&language, "language", "l", "", "Context language (en or fr)")
	cmd.Flags().BoolVar(&related, "related", false, "Include related entities from the knowledge graph")
	cmd.Flags().BoolVar(&rerank, "rerank", false, "Rerank candidates with the cross-encoder")

	return cmd
}

func runContext(cmd *cobra.Command, req RetrieveRequest, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Post("/retrieve/context", req)
	if err != nil {
		return fmt.Errorf("context build failed: %w", err)
	}

	var contextResp ContextResponse
	if err := json.Unmarshal(resp.Data, &contextResp); err != nil {
		return fmt.Errorf("failed to parse context response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(contextResp, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if contextResp.Context == "" {
		fmt.Println("No context available for this query.")
		return nil
	}

	fmt.Print(contextResp.Context)
	return nil
}
