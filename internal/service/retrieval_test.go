package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maplepath-ai/maplepath/internal/domain"
)

// MockChunkRepository is a mock implementation of ChunkRepositoryInterface
type MockChunkRepository struct {
	mock.Mock
}

func (m *MockChunkRepository) SearchByEmbedding(ctx context.Context, embedding []float32, opts ChunkSearchOptions) ([]*domain.DocumentChunk, error) {
	args := m.Called(ctx, embedding, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.DocumentChunk), args.Error(1)
}

// MockEntityRepository is a mock implementation of EntityRepositoryInterface
type MockEntityRepository struct {
	mock.Mock
}

func (m *MockEntityRepository) SearchByName(ctx context.Context, query string, limit int, typeFilter string) ([]*domain.Entity, error) {
	args := m.Called(ctx, query, limit, typeFilter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Entity), args.Error(1)
}

// MockRelationshipRepository is a mock implementation of RelationshipRepositoryInterface
type MockRelationshipRepository struct {
	mock.Mock
}

func (m *MockRelationshipRepository) FindRelated(ctx context.Context, entityID string, limit int, typeFilter string) ([]*domain.RelatedEntity, error) {
	args := m.Called(ctx, entityID, limit, typeFilter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.RelatedEntity), args.Error(1)
}

// MockEmbeddingClient is a mock implementation of EmbeddingClientInterface
type MockEmbeddingClient struct {
	mock.Mock
}

func (m *MockEmbeddingClient) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

// MockRerankClient is a mock implementation of RerankClientInterface
type MockRerankClient struct {
	mock.Mock
}

func (m *MockRerankClient) Rerank(ctx context.Context, query string, documents []string, topN int) ([]domain.RerankedDocument, error) {
	args := m.Called(ctx, query, documents, topN)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RerankedDocument), args.Error(1)
}

func testEmbedding() []float32 {
	return []float32{0.1, 0.2, 0.3}
}

func makeChunks(n int) []*domain.DocumentChunk {
	chunks := make([]*domain.DocumentChunk, n)
	for i := range chunks {
		chunks[i] = &domain.DocumentChunk{
			ID:         fmt.Sprintf("chunk-%d", i+1),
			DocumentID: "doc-1",
			Content:    fmt.Sprintf("content %d", i+1),
			Similarity: 0.9 - float64(i)*0.05,
		}
	}
	return chunks
}

func makeEntities(n int) []*domain.Entity {
	entities := make([]*domain.Entity, n)
	for i := range entities {
		entities[i] = &domain.Entity{
			ID:         fmt.Sprintf("ent-%d", i+1),
			Type:       domain.EntityTypeProgram,
			Name:       fmt.Sprintf("program %d", i+1),
			Confidence: 0.9,
			Active:     true,
		}
	}
	return entities
}

func newTestService(
	chunks *MockChunkRepository,
	entities *MockEntityRepository,
	relationships *MockRelationshipRepository,
	embedding *MockEmbeddingClient,
	reranker RerankClientInterface,
) *RetrievalService {
	return NewRetrievalService(chunks, entities, relationships, embedding, reranker)
}

// TestRetrievalService_EmptyQuery tests that a blank query short-circuits
// before any provider call
func TestRetrievalService_EmptyQuery(t *testing.T) {
	mockChunks := new(MockChunkRepository)
	mockEntities := new(MockEntityRepository)
	mockRels := new(MockRelationshipRepository)
	mockEmbedding := new(MockEmbeddingClient)

	svc := newTestService(mockChunks, mockEntities, mockRels, mockEmbedding, nil)

	for _, text := range []string{"", "   ", "\n\t"} {
		result, err := svc.Retrieve(context.Background(), domain.RetrievalQuery{Text: text})

		require.NoError(t, err)
		require.NotNil(t, result)
		assert.True(t, result.IsEmpty())
		assert.NotNil(t, result.Chunks)
		assert.NotNil(t, result.Entities)
	}

	mockEmbedding.AssertNotCalled(t, "GenerateEmbedding", mock.Anything, mock.Anything)
	mockChunks.AssertNotCalled(t, "SearchByEmbedding", mock.Anything, mock.Anything, mock.Anything)
	mockEntities.AssertNotCalled(t, "SearchByName", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// TestRetrievalService_Retrieve_NoRerank tests the plain path with the
// strict threshold and no oversampling
func TestRetrievalService_Retrieve_NoRerank(t *testing.T) {
	mockChunks := new(MockChunkRepository)
	mockEntities := new(MockEntityRepository)
	mockRels := new(MockRelationshipRepository)
	mockEmbedding := new(MockEmbeddingClient)

	svc := newTestService(mockChunks, mockEntities, mockRels, mockEmbedding, nil)

	mockEmbedding.On("GenerateEmbedding", mock.Anything, "express entry").Return(testEmbedding(), nil)
	mockChunks.On("SearchByEmbedding", mock.Anything, testEmbedding(), ChunkSearchOptions{
		Limit:     5,
		Threshold: 0.5,
	}).Return(makeChunks(3), nil)
	mockEntities.On("SearchByName", mock.Anything, "express entry", 5, "").Return(makeEntities(2), nil)

	result, err := svc.Retrieve(context.Background(), domain.RetrievalQuery{Text: "express entry"})

	require.NoError(t, err)
	assert.Len(t, result.Chunks, 3)
	assert.Len(t, result.Entities, 2)
	assert.False(t, result.Reranked)
	mockChunks.AssertExpectations(t)
	mockEmbedding.AssertExpectations(t)
	mockEntities.AssertExpectations(t)
}

// TestRetrievalService_Retrieve_OversampleAndRerank tests that reranking
// oversamples at the permissive threshold and adopts the reranker's
// ordering and scores
func TestRetrievalService_Retrieve_OversampleAndRerank(t *testing.T) {
	mockChunks := new(MockChunkRepository)
	mockEntities := new(MockEntityRepository)
	mockRels := new(MockRelationshipRepository)
	mockEmbedding := new(MockEmbeddingClient)
	mockReranker := new(MockRerankClient)

	svc := newTestService(mockChunks, mockEntities, mockRels, mockEmbedding, mockReranker)

	candidates := makeChunks(15)
	mockEmbedding.On("GenerateEmbedding", mock.Anything, "study permit").Return(testEmbedding(), nil)
	// 5 chunks * oversample factor 3 at the permissive threshold
	mockChunks.On("SearchByEmbedding", mock.Anything, testEmbedding(), ChunkSearchOptions{
		Limit:     15,
		Threshold: 0.25,
	}).Return(candidates, nil)
	mockEntities.On("SearchByName", mock.Anything, "study permit", 5, "").Return([]*domain.Entity{}, nil)

	documents := make([]string, len(candidates))
	for i, c := range candidates {
		documents[i] = c.Content
	}
	// Reranker promotes candidates the index scored low
	mockReranker.On("Rerank", mock.Anything, "study permit", documents, 5).Return([]domain.RerankedDocument{
		{Index: 14, RelevanceScore: 0.99},
		{Index: 2, RelevanceScore: 0.97},
		{Index: 0, RelevanceScore: 0.8},
		{Index: 7, RelevanceScore: 0.6},
		{Index: 1, RelevanceScore: 0.4},
	}, nil)

	result, err := svc.Retrieve(context.Background(), domain.RetrievalQuery{
		Text:            "study permit",
		EnableReranking: true,
	})

	require.NoError(t, err)
	require.Len(t, result.Chunks, 5)
	assert.True(t, result.Reranked)
	assert.Equal(t, "chunk-15", result.Chunks[0].ID)
	assert.Equal(t, "chunk-3", result.Chunks[1].ID)
	assert.Equal(t, 0.99, result.Chunks[0].Similarity)
	assert.Equal(t, 0.97, result.Chunks[1].Similarity)
	mockReranker.AssertExpectations(t)
	mockChunks.AssertExpectations(t)
}

// TestRetrievalService_Retrieve_RerankFallback tests that a reranker
// failure silently falls back to the vector ordering truncated to the
// chunk limit
func TestRetrievalService_Retrieve_RerankFallback(t *testing.T) {
	mockChunks := new(MockChunkRepository)
	mockEntities := new(MockEntityRepository)
	mockRels := new(MockRelationshipRepository)
	mockEmbedding := new(MockEmbeddingClient)
	mockReranker := new(MockRerankClient)

	svc := newTestService(mockChunks, mockEntities, mockRels, mockEmbedding, mockReranker)

	candidates := makeChunks(15)
	mockEmbedding.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(testEmbedding(), nil)
	mockChunks.On("SearchByEmbedding", mock.Anything, mock.Anything, mock.Anything).Return(candidates, nil)
	mockEntities.On("SearchByName", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return([]*domain.Entity{}, nil)
	mockReranker.On("Rerank", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("rerank provider down"))

	result, err := svc.Retrieve(context.Background(), domain.RetrievalQuery{
		Text:            "work permit processing time",
		EnableReranking: true,
	})

	require.NoError(t, err)
	require.Len(t, result.Chunks, 5)
	assert.False(t, result.Reranked)
	// Original vector ordering, not re-sorted
	for i, chunk := range result.Chunks {
		assert.Equal(t, candidates[i].ID, chunk.ID)
	}
	mockReranker.AssertExpectations(t)
}

// TestRetrievalService_Retrieve_RerankSkippedOnEmptyCandidates tests that
// an empty candidate set never reaches the reranker
func TestRetrievalService_Retrieve_RerankSkippedOnEmptyCandidates(t *testing.T) {
	mockChunks := new(MockChunkRepository)
	mockEntities := new(MockEntityRepository)
	mockRels := new(MockRelationshipRepository)
	mockEmbedding := new(MockEmbeddingClient)
	mockReranker := new(MockRerankClient)

	svc := newTestService(mockChunks, mockEntities, mockRels, mockEmbedding, mockReranker)

	mockEmbedding.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(testEmbedding(), nil)
	// Oversampling still applies; the index just has nothing above the
	// permissive threshold
	mockChunks.On("SearchByEmbedding", mock.Anything, testEmbedding(), ChunkSearchOptions{
		Limit:     15,
		Threshold: 0.25,
	}).Return([]*domain.DocumentChunk{}, nil)
	mockEntities.On("SearchByName", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return([]*domain.Entity{}, nil)

	result, err := svc.Retrieve(context.Background(), domain.RetrievalQuery{
		Text:            "super visa income requirements",
		EnableReranking: true,
	})

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.NotNil(t, result.Chunks)
	assert.Empty(t, result.Chunks)
	assert.False(t, result.Reranked)
	mockReranker.AssertNotCalled(t, "Rerank", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	mockChunks.AssertExpectations(t)
}

// TestRetrievalService_Retrieve_RerankTimeoutFallsBack tests that a
// reranker stuck past its deadline degrades to the vector ordering like
// any other reranker failure
func TestRetrievalService_Retrieve_RerankTimeoutFallsBack(t *testing.T) {
	mockChunks := new(MockChunkRepository)
	mockEntities := new(MockEntityRepository)
	mockRels := new(MockRelationshipRepository)
	mockEmbedding := new(MockEmbeddingClient)
	mockReranker := new(MockRerankClient)

	svc := NewRetrievalServiceWithConfig(mockChunks, mockEntities, mockRels, mockEmbedding, mockReranker, RetrievalConfig{
		RerankTimeout: 50 * time.Millisecond,
	})

	candidates := makeChunks(15)
	mockEmbedding.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(testEmbedding(), nil)
	mockChunks.On("SearchByEmbedding", mock.Anything, mock.Anything, mock.Anything).Return(candidates, nil)
	mockEntities.On("SearchByName", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return([]*domain.Entity{}, nil)
	// Block until the rerank deadline fires, then surface the context error
	mockReranker.On("Rerank", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			rerankCtx := args.Get(0).(context.Context)
			<-rerankCtx.Done()
		}).
		Return(nil, context.DeadlineExceeded)

	result, err := svc.Retrieve(context.Background(), domain.RetrievalQuery{
		Text:            "spousal sponsorship checklist",
		EnableReranking: true,
	})

	require.NoError(t, err)
	require.Len(t, result.Chunks, 5)
	assert.False(t, result.Reranked)
	// Original vector ordering survives, truncated to the chunk limit
	for i, chunk := range result.Chunks {
		assert.Equal(t, candidates[i].ID, chunk.ID)
	}
	mockReranker.AssertExpectations(t)
}

// TestRetrievalService_Retrieve_RerankRequestedButNotConfigured tests that
// a rerank request without a configured reranker runs the plain path
func TestRetrievalService_Retrieve_RerankRequestedButNotConfigured(t *testing.T) {
	mockChunks := new(MockChunkRepository)
	mockEntities := new(MockEntityRepository)
	mockRels := new(MockRelationshipRepository)
	mockEmbedding := new(MockEmbeddingClient)

	svc := newTestService(mockChunks, mockEntities, mockRels, mockEmbedding, nil)
	assert.False(t, svc.RerankerConfigured())

	mockEmbedding.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(testEmbedding(), nil)
	// No oversampling: the strict threshold and plain limit apply
	mockChunks.On("SearchByEmbedding", mock.Anything, testEmbedding(), ChunkSearchOptions{
		Limit:     5,
		Threshold: 0.5,
	}).Return(makeChunks(2), nil)
	mockEntities.On("SearchByName", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return([]*domain.Entity{}, nil)

	result, err := svc.Retrieve(context.Background(), domain.RetrievalQuery{
		Text:            "provincial nominee",
		EnableReranking: true,
	})

	require.NoError(t, err)
	assert.Len(t, result.Chunks, 2)
	assert.False(t, result.Reranked)
	mockChunks.AssertExpectations(t)
}

// TestRetrievalService_Retrieve_EmbeddingFailure tests that an embedding
// failure propagates as an unavailable error
func TestRetrievalService_Retrieve_EmbeddingFailure(t *testing.T) {
	mockChunks := new(MockChunkRepository)
	mockEntities := new(MockEntityRepository)
	mockRels := new(MockRelationshipRepository)
	mockEmbedding := new(MockEmbeddingClient)

	svc := newTestService(mockChunks, mockEntities, mockRels, mockEmbedding, nil)

	mockEmbedding.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(nil, errors.New("provider timeout"))
	mockEntities.On("SearchByName", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return([]*domain.Entity{}, nil).Maybe()

	result, err := svc.Retrieve(context.Background(), domain.RetrievalQuery{Text: "family sponsorship"})

	require.Error(t, err)
	assert.Nil(t, result)

	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeUnavailable, domainErr.Code)
	mockChunks.AssertNotCalled(t, "SearchByEmbedding", mock.Anything, mock.Anything, mock.Anything)
}

// TestRetrievalService_Retrieve_VectorSearchFailure tests that a vector
// index failure propagates rather than degrading
func TestRetrievalService_Retrieve_VectorSearchFailure(t *testing.T) {
	mockChunks := new(MockChunkRepository)
	mockEntities := new(MockEntityRepository)
	mockRels := new(MockRelationshipRepository)
	mockEmbedding := new(MockEmbeddingClient)

	svc := newTestService(mockChunks, mockEntities, mockRels, mockEmbedding, nil)

	mockEmbedding.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(testEmbedding(), nil)
	mockChunks.On("SearchByEmbedding", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("index down"))
	mockEntities.On("SearchByName", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(makeEntities(2), nil).Maybe()

	result, err := svc.Retrieve(context.Background(), domain.RetrievalQuery{Text: "citizenship test"})

	require.Error(t, err)
	assert.Nil(t, result)

	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeUnavailable, domainErr.Code)
}

// TestRetrievalService_Retrieve_EntitySearchDegrades tests that an entity
// search failure degrades to an empty entity list
func TestRetrievalService_Retrieve_EntitySearchDegrades(t *testing.T) {
	mockChunks := new(MockChunkRepository)
	mockEntities := new(MockEntityRepository)
	mockRels := new(MockRelationshipRepository)
	mockEmbedding := new(MockEmbeddingClient)

	svc := newTestService(mockChunks, mockEntities, mockRels, mockEmbedding, nil)

	mockEmbedding.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(testEmbedding(), nil)
	mockChunks.On("SearchByEmbedding", mock.Anything, mock.Anything, mock.Anything).Return(makeChunks(3), nil)
	mockEntities.On("SearchByName", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("table locked"))

	result, err := svc.Retrieve(context.Background(), domain.RetrievalQuery{
		Text:                   "visitor visa",
		IncludeRelatedEntities: true,
	})

	require.NoError(t, err)
	assert.Len(t, result.Chunks, 3)
	assert.Empty(t, result.Entities)
	assert.Empty(t, result.RelatedEntities)
	mockRels.AssertNotCalled(t, "FindRelated", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// TestRetrievalService_Retrieve_NoExpansionWithoutOptIn tests that
// relationship expansion never runs unless requested
func TestRetrievalService_Retrieve_NoExpansionWithoutOptIn(t *testing.T) {
	mockChunks := new(MockChunkRepository)
	mockEntities := new(MockEntityRepository)
	mockRels := new(MockRelationshipRepository)
	mockEmbedding := new(MockEmbeddingClient)

	svc := newTestService(mockChunks, mockEntities, mockRels, mockEmbedding, nil)

	mockEmbedding.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(testEmbedding(), nil)
	mockChunks.On("SearchByEmbedding", mock.Anything, mock.Anything, mock.Anything).Return(makeChunks(1), nil)
	mockEntities.On("SearchByName", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(makeEntities(3), nil)

	result, err := svc.Retrieve(context.Background(), domain.RetrievalQuery{
		Text:                   "express entry",
		IncludeRelatedEntities: false,
	})

	require.NoError(t, err)
	assert.Len(t, result.Entities, 3)
	assert.Empty(t, result.RelatedEntities)
	mockRels.AssertNotCalled(t, "FindRelated", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// TestRetrievalService_Retrieve_ExpansionAnchorCap tests that expansion
// runs for at most three anchors regardless of how many entities matched
func TestRetrievalService_Retrieve_ExpansionAnchorCap(t *testing.T) {
	mockChunks := new(MockChunkRepository)
	mockEntities := new(MockEntityRepository)
	mockRels := new(MockRelationshipRepository)
	mockEmbedding := new(MockEmbeddingClient)

	svc := newTestService(mockChunks, mockEntities, mockRels, mockEmbedding, nil)

	entities := makeEntities(7)
	mockEmbedding.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(testEmbedding(), nil)
	mockChunks.On("SearchByEmbedding", mock.Anything, mock.Anything, mock.Anything).Return(makeChunks(1), nil)
	mockEntities.On("SearchByName", mock.Anything, mock.Anything, 10, "").Return(entities, nil)

	related := []*domain.RelatedEntity{
		{
			Entity:       &domain.Entity{ID: "rel-ent", Type: domain.EntityTypeCountry, Name: "canada", Active: true},
			Relationship: &domain.Relationship{ID: "r1", SourceID: "ent-1", TargetID: "rel-ent", Type: "offered_by", Strength: 0.9},
		},
	}
	for _, id := range []string{"ent-1", "ent-2", "ent-3"} {
		mockRels.On("FindRelated", mock.Anything, id, 5, "").Return(related, nil)
	}

	result, err := svc.Retrieve(context.Background(), domain.RetrievalQuery{
		Text:                   "skilled worker",
		EntityLimit:            10,
		IncludeRelatedEntities: true,
	})

	require.NoError(t, err)
	assert.Len(t, result.Entities, 7)
	assert.Len(t, result.RelatedEntities, 3)
	mockRels.AssertExpectations(t)
	mockRels.AssertNumberOfCalls(t, "FindRelated", 3)
}

// TestRetrievalService_Retrieve_ExpansionDegrades tests that a failed
// expansion for one anchor does not drop the others
func TestRetrievalService_Retrieve_ExpansionDegrades(t *testing.T) {
	mockChunks := new(MockChunkRepository)
	mockEntities := new(MockEntityRepository)
	mockRels := new(MockRelationshipRepository)
	mockEmbedding := new(MockEmbeddingClient)

	svc := newTestService(mockChunks, mockEntities, mockRels, mockEmbedding, nil)

	mockEmbedding.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(testEmbedding(), nil)
	mockChunks.On("SearchByEmbedding", mock.Anything, mock.Anything, mock.Anything).Return(makeChunks(1), nil)
	mockEntities.On("SearchByName", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(makeEntities(2), nil)

	related := []*domain.RelatedEntity{
		{
			Entity:       &domain.Entity{ID: "rel-ent", Type: domain.EntityTypeCountry, Name: "canada", Active: true},
			Relationship: &domain.Relationship{ID: "r1", SourceID: "ent-2", TargetID: "rel-ent", Type: "offered_by", Strength: 0.9},
		},
	}
	mockRels.On("FindRelated", mock.Anything, "ent-1", 5, "").Return(nil, errors.New("graph query failed"))
	mockRels.On("FindRelated", mock.Anything, "ent-2", 5, "").Return(related, nil)

	result, err := svc.Retrieve(context.Background(), domain.RetrievalQuery{
		Text:                   "language test",
		IncludeRelatedEntities: true,
	})

	require.NoError(t, err)
	require.Len(t, result.RelatedEntities, 1)
	assert.Equal(t, "rel-ent", result.RelatedEntities[0].Entity.ID)
	mockRels.AssertExpectations(t)
}

// TestRetrievalService_Retrieve_EntityLimitTruncation tests that entity
// results are truncated to the caller's limit
func TestRetrievalService_Retrieve_EntityLimitTruncation(t *testing.T) {
	mockChunks := new(MockChunkRepository)
	mockEntities := new(MockEntityRepository)
	mockRels := new(MockRelationshipRepository)
	mockEmbedding := new(MockEmbeddingClient)

	svc := newTestService(mockChunks, mockEntities, mockRels, mockEmbedding, nil)

	mockEmbedding.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(testEmbedding(), nil)
	mockChunks.On("SearchByEmbedding", mock.Anything, mock.Anything, mock.Anything).Return(makeChunks(1), nil)
	// Repository over-returns; the service still enforces the limit
	mockEntities.On("SearchByName", mock.Anything, mock.Anything, 2, "").Return(makeEntities(5), nil)

	result, err := svc.Retrieve(context.Background(), domain.RetrievalQuery{
		Text:        "noc codes",
		EntityLimit: 2,
	})

	require.NoError(t, err)
	assert.Len(t, result.Entities, 2)
}

// TestRetrievalService_Retrieve_LanguageFilterPassthrough tests that the
// query language reaches the vector search options
func TestRetrievalService_Retrieve_LanguageFilterPassthrough(t *testing.T) {
	mockChunks := new(MockChunkRepository)
	mockEntities := new(MockEntityRepository)
	mockRels := new(MockRelationshipRepository)
	mockEmbedding := new(MockEmbeddingClient)

	svc := newTestService(mockChunks, mockEntities, mockRels, mockEmbedding, nil)

	mockEmbedding.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(testEmbedding(), nil)
	mockChunks.On("SearchByEmbedding", mock.Anything, testEmbedding(), ChunkSearchOptions{
		Limit:     5,
		Threshold: 0.5,
		Language:  "fr",
	}).Return(makeChunks(1), nil)
	mockEntities.On("SearchByName", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return([]*domain.Entity{}, nil)

	_, err := svc.Retrieve(context.Background(), domain.RetrievalQuery{
		Text:     "permis de travail",
		Language: "fr",
	})

	require.NoError(t, err)
	mockChunks.AssertExpectations(t)
}
