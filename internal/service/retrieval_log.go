package service

import "context"

// RetrievalLogEntry captures one retrieval request and its outcome for
// offline evaluation. Logging is best-effort: a log failure never fails
// the query it describes.
type RetrievalLogEntry struct {
	Query           string
	Language        string
	ChunkLimit      int
	EntityLimit     int
	RerankRequested bool
	RerankApplied   bool
	ChunkCount      int
	EntityCount     int
	RelatedCount    int
	DurationMs      int
}

// RetrievalLogRepository persists retrieval logs.
type RetrievalLogRepository interface {
	CreateRetrievalLog(ctx context.Context, entry RetrievalLogEntry) (string, error)
}
