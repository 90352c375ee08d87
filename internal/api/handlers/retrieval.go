package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/maplepath-ai/maplepath/internal/api"
	"github.com/maplepath-ai/maplepath/internal/domain"
	"github.com/maplepath-ai/maplepath/internal/service"
)

type RetrievalServiceInterface interface {
	Retrieve(ctx context.Context, query domain.RetrievalQuery) (*domain.RetrievalResult, error)
}

// DocumentKeyResolver maps a chunk to its source document's storage key.
type DocumentKeyResolver interface {
	DocumentKeyByChunk(ctx context.Context, chunkID string) (string, error)
}

// SourceURLSigner issues presigned download URLs for source documents.
type SourceURLSigner interface {
	GenerateDownloadURL(ctx context.Context, key string) (string, error)
}

type RetrievalHandler struct {
	svc       RetrievalServiceInterface
	logRepo   service.RetrievalLogRepository
	documents DocumentKeyResolver
	signer    SourceURLSigner
}

func NewRetrievalHandler(svc RetrievalServiceInterface, logRepo service.RetrievalLogRepository) *RetrievalHandler {
	return &RetrievalHandler{svc: svc, logRepo: logRepo}
}

// NewRetrievalHandlerWithStorage creates a retrieval handler that can also
// serve presigned source-document downloads.
func NewRetrievalHandlerWithStorage(
	svc RetrievalServiceInterface,
	logRepo service.RetrievalLogRepository,
	documents DocumentKeyResolver,
	signer SourceURLSigner,
) *RetrievalHandler {
	return &RetrievalHandler{svc: svc, logRepo: logRepo, documents: documents, signer: signer}
}

type RetrieveRequest struct {
	Query                  string `json:"query"`
	Language               string `json:"language,omitempty"`
	ChunkLimit             int    `json:"chunk_limit,omitempty"`
	EntityLimit            int    `json:"entity_limit,omitempty"`
	IncludeRelatedEntities bool   `json:"include_related_entities,omitempty"`
	EnableReranking        bool   `json:"enable_reranking,omitempty"`
	OversampleFactor       int    `json:"oversample_factor,omitempty"`
}

type ChunkResponse struct {
	ID         string  `json:"id"`
	DocumentID string  `json:"document_id"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
	ChunkIndex int     `json:"chunk_index"`
	Language   string  `json:"language,omitempty"`
	SourceURL  string  `json:"source_url,omitempty"`
}

type EntityResponse struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Name       string         `json:"name"`
	Label      string         `json:"label"`
	Confidence float64        `json:"confidence"`
	Properties map[string]any `json:"properties,omitempty"`
}

type RelatedEntityResponse struct {
	Entity           *EntityResponse `json:"entity"`
	RelationshipType string          `json:"relationship_type"`
	Strength         float64         `json:"strength"`
}

type RetrieveResponse struct {
	Chunks          []*ChunkResponse         `json:"chunks"`
	Entities        []*EntityResponse        `json:"entities"`
	RelatedEntities []*RelatedEntityResponse `json:"related_entities"`
	Reranked        bool                     `json:"reranked"`
	RetrievalID     string                   `json:"retrieval_id,omitempty"`
}

type ContextResponse struct {
	Context     string `json:"context"`
	Reranked    bool   `json:"reranked"`
	RetrievalID string `json:"retrieval_id,omitempty"`
}

type SourceDocumentResponse struct {
	ChunkID     string `json:"chunk_id"`
	DownloadURL string `json:"download_url"`
}

// Retrieve runs the retrieval pipeline and returns the structured result.
func (h *RetrievalHandler) Retrieve(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRetrieveRequest(w, r)
	if !ok {
		return
	}

	start := time.Now()
	result, err := h.svc.Retrieve(r.Context(), req.toQuery())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	retrievalID := h.logRetrieval(r.Context(), req, result, time.Since(start))

	api.Success(w, http.StatusOK, RetrieveResponse{
		Chunks:          chunkResponses(result.Chunks),
		Entities:        entityResponses(result.Entities),
		RelatedEntities: relatedResponses(result.RelatedEntities),
		Reranked:        result.Reranked,
		RetrievalID:     retrievalID,
	})
}

// Context runs the retrieval pipeline and returns the assembled context
// block. An empty context means nothing relevant was found; it is not an
// error.
func (h *RetrievalHandler) Context(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRetrieveRequest(w, r)
	if !ok {
		return
	}

	start := time.Now()
	result, err := h.svc.Retrieve(r.Context(), req.toQuery())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	retrievalID := h.logRetrieval(r.Context(), req, result, time.Since(start))

	api.Success(w, http.StatusOK, ContextResponse{
		Context:     service.BuildKnowledgeContext(result, req.Language),
		Reranked:    result.Reranked,
		RetrievalID: retrievalID,
	})
}

// SourceDocument returns a presigned download URL for the source document
// behind a chunk.
func (h *RetrievalHandler) SourceDocument(w http.ResponseWriter, r *http.Request) {
	if h.documents == nil || h.signer == nil {
		api.Error(w, http.StatusNotImplemented, "source document downloads not available")
		return
	}

	chunkID := chi.URLParam(r, "chunkID")
	if chunkID == "" {
		api.Error(w, http.StatusBadRequest, "chunk id is required")
		return
	}

	key, err := h.documents.DocumentKeyByChunk(r.Context(), chunkID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	url, err := h.signer.GenerateDownloadURL(r.Context(), key)
	if err != nil {
		log.Printf("retrieval: failed to sign download URL for chunk %s: %v", chunkID, err)
		api.HandleError(w, domain.ErrStorageUnavailable)
		return
	}

	api.Success(w, http.StatusOK, SourceDocumentResponse{
		ChunkID:     chunkID,
		DownloadURL: url,
	})
}

func (h *RetrievalHandler) decodeRetrieveRequest(w http.ResponseWriter, r *http.Request) (RetrieveRequest, bool) {
	var req RetrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return req, false
	}
	if req.Query == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return req, false
	}
	// Zero means "use the default"; negative limits are caller errors.
	switch {
	case req.ChunkLimit < 0:
		api.HandleError(w, domain.ErrInvalidChunkLimit)
		return req, false
	case req.EntityLimit < 0:
		api.HandleError(w, domain.ErrInvalidEntityLimit)
		return req, false
	case req.OversampleFactor < 0:
		api.HandleError(w, domain.ErrInvalidOversample)
		return req, false
	}
	return req, true
}

func (req RetrieveRequest) toQuery() domain.RetrievalQuery {
	return domain.RetrievalQuery{
		Text:                   req.Query,
		Language:               req.Language,
		ChunkLimit:             req.ChunkLimit,
		EntityLimit:            req.EntityLimit,
		IncludeRelatedEntities: req.IncludeRelatedEntities,
		EnableReranking:        req.EnableReranking,
		OversampleFactor:       req.OversampleFactor,
	}
}

// logRetrieval persists a best-effort log entry and returns its ID, or ""
// when logging is disabled or failed.
func (h *RetrievalHandler) logRetrieval(ctx context.Context, req RetrieveRequest, result *domain.RetrievalResult, took time.Duration) string {
	if h.logRepo == nil {
		return ""
	}

	q := req.toQuery().Normalized()
	entry := service.RetrievalLogEntry{
		Query:           q.Text,
		Language:        q.Language,
		ChunkLimit:      q.ChunkLimit,
		EntityLimit:     q.EntityLimit,
		RerankRequested: q.EnableReranking,
		RerankApplied:   result.Reranked,
		ChunkCount:      len(result.Chunks),
		EntityCount:     len(result.Entities),
		RelatedCount:    len(result.RelatedEntities),
		DurationMs:      int(took.Milliseconds()),
	}

	id, err := h.logRepo.CreateRetrievalLog(ctx, entry)
	if err != nil {
		log.Printf("retrieval: failed to write retrieval log: %v", err)
		return ""
	}
	return id
}

func chunkResponses(chunks []*domain.DocumentChunk) []*ChunkResponse {
	responses := make([]*ChunkResponse, len(chunks))
	for i, chunk := range chunks {
		responses[i] = &ChunkResponse{
			ID:         chunk.ID,
			DocumentID: chunk.DocumentID,
			Content:    chunk.Content,
			Score:      chunk.Similarity,
			ChunkIndex: chunk.ChunkIndex,
			Language:   chunk.Language,
			SourceURL:  chunk.SourceURL,
		}
	}
	return responses
}

func entityResponses(entities []*domain.Entity) []*EntityResponse {
	responses := make([]*EntityResponse, len(entities))
	for i, entity := range entities {
		responses[i] = entityResponse(entity)
	}
	return responses
}

func entityResponse(entity *domain.Entity) *EntityResponse {
	return &EntityResponse{
		ID:         entity.ID,
		Type:       entity.Type,
		Name:       entity.Name,
		Label:      entity.Label(),
		Confidence: entity.Confidence,
		Properties: entity.Properties,
	}
}

func relatedResponses(related []*domain.RelatedEntity) []*RelatedEntityResponse {
	responses := make([]*RelatedEntityResponse, 0, len(related))
	for _, rel := range related {
		if rel.Entity == nil || rel.Relationship == nil {
			continue
		}
		responses = append(responses, &RelatedEntityResponse{
			Entity:           entityResponse(rel.Entity),
			RelationshipType: rel.Relationship.Type,
			Strength:         rel.Relationship.Strength,
		})
	}
	return responses
}
