package jobs

import (
	"context"
	"fmt"
	"log"

	"github.com/maplepath-ai/maplepath/internal/domain"
)

const (
	// MaxRetries is the maximum number of retries for a failed job
	MaxRetries = 3

	// DefaultBatchSize is the number of jobs claimed per poll
	DefaultBatchSize = 16
)

// EmbeddingJobRepository defines the interface for embedding job persistence
type EmbeddingJobRepository interface {
	// GetPendingJobs claims up to limit pending embedding jobs
	GetPendingJobs(ctx context.Context, limit int) ([]*domain.EmbeddingJob, error)

	// UpdateJobStatus updates the status of an embedding job
	UpdateJobStatus(ctx context.Context, jobID string, status domain.EmbeddingJobStatus, errMsg string) error

	// RequeueJob increments the retry count and puts the job back to pending
	RequeueJob(ctx context.Context, jobID string, errMsg string) error
}

// ChunkEmbedder generates and stores embeddings for document chunks
type ChunkEmbedder interface {
	EmbedChunks(ctx context.Context, chunkIDs []string) error
}

// EmbeddingWorker processes embedding backfill jobs
type EmbeddingWorker struct {
	repo      EmbeddingJobRepository
	embedder  ChunkEmbedder
	batchSize int
}

// NewEmbeddingWorker creates a new EmbeddingWorker instance
func NewEmbeddingWorker(repo EmbeddingJobRepository, embedder ChunkEmbedder) *EmbeddingWorker {
	return NewEmbeddingWorkerWithBatchSize(repo, embedder, DefaultBatchSize)
}

// NewEmbeddingWorkerWithBatchSize creates an EmbeddingWorker with an explicit
// per-poll claim size
func NewEmbeddingWorkerWithBatchSize(repo EmbeddingJobRepository, embedder ChunkEmbedder, batchSize int) *EmbeddingWorker {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &EmbeddingWorker{
		repo:      repo,
		embedder:  embedder,
		batchSize: batchSize,
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *EmbeddingWorker) ProcessJobs(ctx context.Context) error {
	jobs, err := w.repo.GetPendingJobs(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("failed to fetch pending jobs: %w", err)
	}

	if len(jobs) == 0 {
		return nil
	}

	log.Printf("Processing %d pending embedding jobs", len(jobs))

	for _, job := range jobs {
		if err := w.processJob(ctx, job); err != nil {
			log.Printf("Error processing job %s: %v", job.ID, err)
		}
	}

	return nil
}

func (w *EmbeddingWorker) processJob(ctx context.Context, job *domain.EmbeddingJob) error {
	if job.ChunkID == "" {
		return fmt.Errorf("job %s has no chunk_id", job.ID)
	}

	log.Printf("Processing job %s for chunk %s", job.ID, job.ChunkID)
	if err := w.embedder.EmbedChunks(ctx, []string{job.ChunkID}); err != nil {
		return w.handleJobFailure(ctx, job, err)
	}

	if err := w.repo.UpdateJobStatus(ctx, job.ID, domain.EmbeddingJobStatusCompleted, ""); err != nil {
		return fmt.Errorf("failed to update job status to completed: %w", err)
	}

	log.Printf("Job %s completed successfully", job.ID)
	return nil
}

// handleJobFailure handles a failed job with retry logic
func (w *EmbeddingWorker) handleJobFailure(ctx context.Context, job *domain.EmbeddingJob, jobErr error) error {
	log.Printf("Job %s failed: %v", job.ID, jobErr)

	if job.Retries+1 >= MaxRetries {
		log.Printf("Job %s exceeded max retries (%d), marking as failed", job.ID, MaxRetries)
		errMsg := fmt.Sprintf("max retries exceeded: %v", jobErr)
		if err := w.repo.UpdateJobStatus(ctx, job.ID, domain.EmbeddingJobStatusFailed, errMsg); err != nil {
			return fmt.Errorf("failed to update job status to failed: %w", err)
		}
		return nil
	}

	log.Printf("Job %s will be retried (attempt %d/%d)", job.ID, job.Retries+1, MaxRetries)
	errMsg := fmt.Sprintf("retry %d: %v", job.Retries+1, jobErr)
	if err := w.repo.RequeueJob(ctx, job.ID, errMsg); err != nil {
		return fmt.Errorf("failed to requeue job: %w", err)
	}

	return nil
}
