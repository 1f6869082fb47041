package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/songbranch/api/internal/broadcast"
	"github.com/songbranch/api/internal/client"
	"github.com/songbranch/api/internal/model"
)

// TaskTypeSearch is the asynq task type for background tree builds.
const TaskTypeSearch = "search:build"

// ErrInvalidInput rejects malformed requests synchronously, before any
// job is created.
var ErrInvalidInput = errors.New("invalid input")

// Store is the keyed job/tree storage the search pipeline reads and
// writes. Implemented by store.JobStore; faked in tests.
type Store interface {
	PutJob(ctx context.Context, job *model.Job) error
	GetJob(ctx context.Context, jobID string) (*model.Job, error)
	PutTree(ctx context.Context, tree *model.RecommendationTree) error
	GetTree(ctx context.Context, artistID string) (*model.RecommendationTree, error)
	PutCandidates(ctx context.Context, artistID string, tracks []model.Track) error
	GetCandidates(ctx context.Context, artistID string) ([]model.Track, error)
}

// Enqueuer queues background tasks. Satisfied by *asynq.Client.
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// SearchService owns search jobs: it creates them, schedules the
// asynchronous tree build, and is the only writer of job status.
type SearchService struct {
	store       Store
	catalog     client.Catalog
	broadcaster *broadcast.Broadcaster
	enqueuer    Enqueuer
}

func NewSearchService(store Store, catalog client.Catalog, broadcaster *broadcast.Broadcaster, enqueuer Enqueuer) *SearchService {
	return &SearchService{
		store:       store,
		catalog:     catalog,
		broadcaster: broadcaster,
		enqueuer:    enqueuer,
	}
}

// StartSearch resolves the seed artist, records a job in status
// searching and queues the tree build. It returns as soon as the job is
// queued; progress is delivered on the job's status stream.
func (s *SearchService) StartSearch(ctx context.Context, seed string) (*model.StartSearchResponse, error) {
	seed = strings.TrimSpace(seed)
	if seed == "" {
		return nil, fmt.Errorf("%w: empty seed identifier", ErrInvalidInput)
	}

	artistID, artistName, err := s.catalog.ResolveArtist(ctx, seed)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve artist: %w", err)
	}

	jobID := uuid.New().String()
	job := &model.Job{
		ID:         jobID,
		ArtistID:   artistID,
		ArtistName: artistName,
		Status:     model.JobStatusSearching,
		CreatedAt:  time.Now(),
	}

	// Publish before the store write so a reader that sees the stored
	// status has always been preceded by the matching broadcast.
	s.broadcaster.Publish(jobID, model.StatusEvent{Status: model.JobStatusSearching})

	if err := s.store.PutJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	task, err := newSearchTask(jobID, artistID, artistName)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	// No retries: a failed build finalizes the job as error exactly once.
	_, err = s.enqueuer.Enqueue(task,
		asynq.Queue("search"),
		asynq.MaxRetry(0),
		asynq.Retention(time.Hour),
	)
	if err != nil {
		s.FailJob(ctx, job, "internal error: could not schedule search")
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	return &model.StartSearchResponse{
		JobID:      jobID,
		ArtistID:   artistID,
		ArtistName: artistName,
	}, nil
}

// GetJob fetches a job record.
func (s *SearchService) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	return s.store.GetJob(ctx, jobID)
}

// Subscribe attaches to a job's status stream.
func (s *SearchService) Subscribe(jobID string) (<-chan model.StatusEvent, func()) {
	return s.broadcaster.Subscribe(jobID)
}

// CompleteJob finalizes a job as completed, broadcasting the root track
// before committing the status.
func (s *SearchService) CompleteJob(ctx context.Context, job *model.Job, root *model.Track) {
	s.broadcaster.Publish(job.ID, model.StatusEvent{
		Status:     model.JobStatusCompleted,
		Song:       root,
		ArtistID:   job.ArtistID,
		ArtistName: job.ArtistName,
	})

	now := time.Now()
	job.Status = model.JobStatusCompleted
	job.CompletedAt = &now
	if err := s.store.PutJob(ctx, job); err != nil {
		log.Printf("Failed to save completed job %s: %v", job.ID, err)
	}
}

// FailJob finalizes a job as errored with a human-readable reason.
func (s *SearchService) FailJob(ctx context.Context, job *model.Job, reason string) {
	s.broadcaster.Publish(job.ID, model.StatusEvent{
		Status:  model.JobStatusError,
		Message: reason,
	})

	now := time.Now()
	job.Status = model.JobStatusError
	job.Error = &reason
	job.CompletedAt = &now
	if err := s.store.PutJob(ctx, job); err != nil {
		log.Printf("Failed to save errored job %s: %v", job.ID, err)
	}
}

// TerminalEvent reconstructs the terminal status event for a finished
// job from stored state, for subscribers that arrive after the
// broadcaster's retained copy is gone.
func (s *SearchService) TerminalEvent(ctx context.Context, job *model.Job) model.StatusEvent {
	if job.Status == model.JobStatusCompleted {
		if tr, err := s.store.GetTree(ctx, job.ArtistID); err == nil {
			return model.StatusEvent{
				Status:     model.JobStatusCompleted,
				Song:       tr.Root(),
				ArtistID:   job.ArtistID,
				ArtistName: job.ArtistName,
			}
		}
		return model.StatusEvent{
			Status:  model.JobStatusError,
			Message: "recommendation tree expired",
		}
	}

	message := "search failed"
	if job.Error != nil {
		message = *job.Error
	}
	return model.StatusEvent{Status: model.JobStatusError, Message: message}
}

func newSearchTask(jobID, artistID, artistName string) (*asynq.Task, error) {
	payload := model.SearchJobPayload{
		JobID:      jobID,
		ArtistID:   artistID,
		ArtistName: artistName,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSearch, data), nil
}
