package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// RetrieveRequest represents the retrieve API request.
type RetrieveRequest struct {
	Query                  string `json:"query"`
	Language               string `json:"language,omitempty"`
	ChunkLimit             int    `json:"chunk_limit,omitempty"`
	EntityLimit            int    `json:"entity_limit,omitempty"`
	IncludeRelatedEntities bool   `json:"include_related_entities,omitempty"`
	EnableReranking        bool   `json:"enable_reranking,omitempty"`
	OversampleFactor       int    `json:"oversample_factor,omitempty"`
}

// RetrievedChunk represents one chunk in a retrieve response.
type RetrievedChunk struct {
	ID         string  `json:"id"`
	DocumentID string  `json:"document_id"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
	SourceURL  string  `json:"source_url,omitempty"`
}

// RetrievedEntity represents one entity in a retrieve response.
type RetrievedEntity struct {
	ID         string  `json:"id"`
	Type       string  `json:"type"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// RetrievedRelated represents one related entity in a retrieve response.
type RetrievedRelated struct {
	Entity           *RetrievedEntity `json:"entity"`
	RelationshipType string           `json:"relationship_type"`
	Strength         float64          `json:"strength"`
}

// RetrieveResponse represents the retrieve API response.
type RetrieveResponse struct {
	Chunks          []RetrievedChunk   `json:"chunks"`
	Entities        []RetrievedEntity  `json:"entities"`
	RelatedEntities []RetrievedRelated `json:"related_entities"`
	Reranked        bool               `json:"reranked"`
	RetrievalID     string             `json:"retrieval_id,omitempty"`
}

// RetrieveCmd creates the retrieve command.
func RetrieveCmd() *cobra.Command {
	var (
		language    string
		chunkLimit  int
		entityLimit int
		related     bool
		rerank      bool
		oversample  int
	)

	cmd := &cobra.Command{
		Use:   "retrieve <query>",
		Short: "Retrieve knowledge for a query",
		Long:  "Runs the retrieval pipeline and prints the ranked chunks and entities.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			req := RetrieveRequest{
				Query:                  args[0],
				Language:               language,
				ChunkLimit:             chunkLimit,
				EntityLimit:            entityLimit,
				IncludeRelatedEntities: related,
				EnableReranking:        rerank,
				OversampleFactor:       oversample,
			}
			return runRetrieve(cmd, req, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&language, "language", "l", "", "Restrict chunks to a language (e.g. en, fr)")
	cmd.Flags().IntVarP(&chunkLimit, "chunks", "n", 0, "Maximum number of chunks")
	cmd.Flags().IntVar(&entityLimit, "entities", 0, "Maximum number of entities")
	cmd.Flags().BoolVar(&related, "related", false, "Include related entities from the knowledge graph")
	cmd.Flags().BoolVar(&rerank, "rerank", false, "Rerank candidates with the cross-encoder")
	cmd.Flags().IntVar(&oversample, "oversample", 0, "Candidate multiplier when reranking (0 uses the server default)")

	return cmd
}

func runRetrieve(cmd *cobra.Command, req RetrieveRequest, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Post("/retrieve", req)
	if err != nil {
		return fmt.Errorf("retrieve failed: %w", err)
	}

	var retrieveResp RetrieveResponse
	if err := json.Unmarshal(resp.Data, &retrieveResp); err != nil {
		return fmt.Errorf("failed to parse retrieve response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(retrieveResp, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(retrieveResp.Chunks) == 0 && len(retrieveResp.Entities) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	if len(retrieveResp.Chunks) > 0 {
		fmt.Printf("Found %d chunks:\n\n", len(retrieveResp.Chunks))
		for i, chunk := range retrieveResp.Chunks {
			content := chunk.Content
			if len(content) > 200 {
				content = content[:197] + "..."
			}
			fmt.Printf("%d. (%.2f) %s\n", i+1, chunk.Score, content)
			if chunk.SourceURL != "" {
				fmt.Printf("   Source: %s\n", chunk.SourceURL)
			}
			fmt.Printf("   ID: %s\n", chunk.ID)
			if i < len(retrieveResp.Chunks)-1 {
				fmt.Println(strings.Repeat("-", 40))
			}
		}
	}

	if len(retrieveResp.Entities) > 0 {
		fmt.Printf("\nEntities:\n")
		for _, entity := range retrieveResp.Entities {
			fmt.Printf("- %s (%s, %.2f)\n", entity.Label, entity.Type, entity.Confidence)
		}
	}

	if len(retrieveResp.RelatedEntities) > 0 {
		fmt.Printf("\nRelated:\n")
		for _, rel := range retrieveResp.RelatedEntities {
			if rel.Entity == nil {
				continue
			}
			fmt.Printf("- %s (%s, strength %.2f)\n", rel.Entity.Label, rel.RelationshipType, rel.Strength)
		}
	}

	if retrieveResp.Reranked {
		fmt.Println("\nScores are reranker relevance scores.")
	}

	return nil
}
