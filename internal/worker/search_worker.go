package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/hibiken/asynq"

	"github.com/songbranch/api/internal/client"
	"github.com/songbranch/api/internal/model"
	"github.com/songbranch/api/internal/service"
	"github.com/songbranch/api/internal/store"
	"github.com/songbranch/api/internal/tree"
)

// SearchWorker builds recommendation trees in the background. One task
// runs per search job; the worker sets exactly one terminal status per
// job, whatever happens.
type SearchWorker struct {
	store   service.Store
	catalog client.Catalog
	search  *service.SearchService
	depth   int
}

// NewSearchWorker creates a search worker building trees of the given depth.
func NewSearchWorker(st service.Store, catalog client.Catalog, search *service.SearchService, depth int) *SearchWorker {
	return &SearchWorker{
		store:   st,
		catalog: catalog,
		search:  search,
		depth:   depth,
	}
}

// ProcessTask handles one tree build end to end. Catalog failures and
// thin candidate lists finalize the job as error; they are never
// returned as task failures that would retry the build.
func (w *SearchWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload model.SearchJobPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w", err)
	}

	log.Printf("Starting search job %s for artist %s (%s)", payload.JobID, payload.ArtistName, payload.ArtistID)

	job, err := w.store.GetJob(ctx, payload.JobID)
	if err != nil {
		// The record may have expired between enqueue and pickup;
		// rebuild it from the payload so the outcome is still stored.
		job = &model.Job{
			ID:         payload.JobID,
			ArtistID:   payload.ArtistID,
			ArtistName: payload.ArtistName,
			Status:     model.JobStatusSearching,
		}
	}
	if job.Status.Terminal() {
		log.Printf("Search job %s already finalized as %s, skipping", job.ID, job.Status)
		return nil
	}

	// Reuse an unexpired tree from an earlier job for the same artist.
	if cached, err := w.store.GetTree(ctx, job.ArtistID); err == nil {
		log.Printf("Search job %s: tree cache hit for artist %s", job.ID, job.ArtistID)
		w.search.CompleteJob(ctx, job, cached.Root())
		return nil
	}

	candidates, err := w.loadCandidates(ctx, job.ArtistID)
	if err != nil {
		w.search.FailJob(ctx, job, fmt.Sprintf("music catalog lookup failed: %v", err))
		return nil
	}

	built, err := tree.Build(job.ArtistID, candidates, w.depth)
	if err != nil {
		if errors.Is(err, tree.ErrInsufficientCandidates) {
			w.search.FailJob(ctx, job, fmt.Sprintf("not enough songs for %s: %v", job.ArtistName, err))
		} else {
			w.search.FailJob(ctx, job, fmt.Sprintf("could not build recommendation tree: %v", err))
		}
		return nil
	}

	// The tree must be readable before the completed status is, so a
	// subscriber that sees "completed" can always fetch it.
	if err := w.store.PutTree(ctx, built); err != nil {
		w.search.FailJob(ctx, job, "internal error: could not store recommendation tree")
		return nil
	}

	w.search.CompleteJob(ctx, job, built.Root())
	log.Printf("Search job %s completed, %d nodes", job.ID, built.Size())
	return nil
}

// loadCandidates returns the artist's ranked track list, preferring the
// cached crawl over a fresh catalog walk.
func (w *SearchWorker) loadCandidates(ctx context.Context, artistID string) ([]model.Track, error) {
	cached, err := w.store.GetCandidates(ctx, artistID)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	candidates, err := w.catalog.FetchCandidates(ctx, artistID)
	if err != nil {
		return nil, err
	}

	if err := w.store.PutCandidates(ctx, artistID, candidates); err != nil {
		log.Printf("Failed to cache candidates for artist %s: %v", artistID, err)
	}
	return candidates, nil
}
