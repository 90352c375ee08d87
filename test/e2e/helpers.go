//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/maplepath-ai/maplepath/internal/api/handlers"
	"github.com/maplepath-ai/maplepath/internal/repository"
	"github.com/maplepath-ai/maplepath/internal/server"
	"github.com/maplepath-ai/maplepath/internal/service"
	"github.com/maplepath-ai/maplepath/internal/testutil"
)

const embeddingDims = 1536

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	Pool         *pgxpool.Pool
	ServerURL    string
	ServerCloser func()
	BinaryDir    string
	HTTPClient   *http.Client
}

// embedText maps text onto a deterministic bag-of-words vector. Queries
// and chunk contents sharing words land on the same axes, so cosine
// similarity behaves the way the real embedding provider's does without
// any network dependency.
func embedText(text string) []float32 {
	v := make([]float32, embeddingDims)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(word))
		v[h.Sum32()%embeddingDims]++
	}
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v
}

// stubEmbedder implements the query embedding boundary with embedText.
type stubEmbedder struct{}

func (stubEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	return embedText(text), nil
}

// stubSigner issues deterministic download URLs so the source-document
// path can be exercised without object storage.
type stubSigner struct{}

func (stubSigner) GenerateDownloadURL(ctx context.Context, key string) (string, error) {
	return "https://files.test/" + key, nil
}

// SetupE2EEnv creates a full E2E test environment with a database
// container and an in-process server
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	serverURL, serverCloser := startServer(t, pool, port)

	return &E2ETestEnv{
		T:            t,
		Ctx:          ctx,
		PostgresC:    pgC,
		Pool:         pool,
		ServerURL:    serverURL,
		ServerCloser: serverCloser,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
	if e.BinaryDir != "" {
		os.RemoveAll(e.BinaryDir)
	}
}

func startServer(t *testing.T, pool *pgxpool.Pool, port int) (string, func()) {
	chunkRepo := repository.NewChunkRepository(pool)
	entityRepo := repository.NewEntityRepository(pool)
	relationshipRepo := repository.NewRelationshipRepository(pool)
	logRepo := repository.NewRetrievalLogRepository(pool)

	retrievalService := service.NewRetrievalService(chunkRepo, entityRepo, relationshipRepo, stubEmbedder{}, nil)
	handler := handlers.NewRetrievalHandlerWithStorage(retrievalService, logRepo, chunkRepo, stubSigner{})

	router := server.NewRouter(server.RouterConfig{RetrievalHandler: handler})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Errorf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, serverURL)

	closer := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}
	return serverURL, closer
}

func waitForServer(t *testing.T, serverURL string) {
	client := &http.Client{Timeout: time.Second}
	for i := 0; i < 50; i++ {
		resp, err := client.Get(serverURL + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server at %s did not become ready", serverURL)
}

func getFreePort() (int, error) {
	l, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// SeedDocument inserts a source document and returns its ID
func (e *E2ETestEnv) SeedDocument(title, storageKey string) string {
	var key *string
	if storageKey != "" {
		key = &storageKey
	}
	var id string
	err := e.Pool.QueryRow(e.Ctx,
		`INSERT INTO source_documents (title, storage_key, language)
		 VALUES ($1, $2, 'en') RETURNING id`,
		title, key,
	).Scan(&id)
	if err != nil {
		e.T.Fatalf("failed to seed document: %v", err)
	}
	return id
}

// SeedChunk inserts a chunk embedded with embedText and returns its ID
func (e *E2ETestEnv) SeedChunk(docID, content, language string, index int) string {
	var id string
	err := e.Pool.QueryRow(e.Ctx,
		`INSERT INTO document_chunks (document_id, content, chunk_index, language, embedding)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		docID, content, index, language, pgvector.NewVector(embedText(content)),
	).Scan(&id)
	if err != nil {
		e.T.Fatalf("failed to seed chunk: %v", err)
	}
	return id
}

// SeedEntity inserts a knowledge-graph entity and returns its ID
func (e *E2ETestEnv) SeedEntity(entityType, name, displayName string, confidence float64) string {
	var id string
	err := e.Pool.QueryRow(e.Ctx,
		`INSERT INTO kb_entities (type, name, display_name, confidence, active)
		 VALUES ($1, $2, $3, $4, TRUE) RETURNING id`,
		entityType, name, displayName, confidence,
	).Scan(&id)
	if err != nil {
		e.T.Fatalf("failed to seed entity: %v", err)
	}
	return id
}

// SeedRelationship inserts an edge between two entities
func (e *E2ETestEnv) SeedRelationship(sourceID, targetID, relType string, strength float64) {
	_, err := e.Pool.Exec(e.Ctx,
		`INSERT INTO kb_relationships (source_id, target_id, type, strength)
		 VALUES ($1, $2, $3, $4)`,
		sourceID, targetID, relType, strength,
	)
	if err != nil {
		e.T.Fatalf("failed to seed relationship: %v", err)
	}
}

// BuildBinaries builds the maplepath CLI binary
func (e *E2ETestEnv) BuildBinaries() {
	tmpDir, err := os.MkdirTemp("", "maplepath-e2e-*")
	if err != nil {
		e.T.Fatalf("failed to create temp dir: %v", err)
	}
	e.BinaryDir = tmpDir

	cmd := exec.Command("go", "build", "-o", filepath.Join(tmpDir, "maplepath"), "./cmd/maplepath")
	cmd.Dir = "../.."
	if out, err := cmd.CombinedOutput(); err != nil {
		e.T.Fatalf("failed to build maplepath: %v\n%s", err, out)
	}
}

// RunMaplepath runs the maplepath CLI command against the test server
func (e *E2ETestEnv) RunMaplepath(args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "maplepath"), args...)
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("MAPLEPATH_API_URL=%s", e.ServerURL),
	)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// APIResponse represents a standard API response
type APIResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
}

// Get performs a GET request
func (e *E2ETestEnv) Get(path string) (*APIResponse, error) {
	return e.doRequest(http.MethodGet, path, nil)
}

// Post performs a POST request
func (e *E2ETestEnv) Post(path string, body interface{}) (*APIResponse, error) {
	return e.doRequest(http.MethodPost, path, body)
}

func (e *E2ETestEnv) doRequest(method, path string, body interface{}) (*APIResponse, error) {
	url := e.ServerURL + path

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var apiResp APIResponse
	if err := json.Unmarshal(payload, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse response (%d): %s", resp.StatusCode, payload)
	}

	if resp.StatusCode >= 400 {
		return &apiResp, fmt.Errorf("status %d: %s", resp.StatusCode, apiResp.Error)
	}
	return &apiResp, nil
}
