package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/songbranch/api/internal/model"
)

// ErrNotFound is returned for unknown or expired keys. TTL eviction is
// the only garbage collection; an expired entry is indistinguishable
// from one that never existed.
var ErrNotFound = errors.New("not found")

// JobStore is the keyed, TTL-bounded store for jobs, built trees and
// cached candidate lists. Each value is written as a single JSON blob,
// so per-key writes are atomic and readers always see a complete
// record.
type JobStore struct {
	redis        *redis.Client
	jobTTL       time.Duration
	treeTTL      time.Duration
	candidateTTL time.Duration
}

// NewJobStore creates a store with the given per-kind TTLs. The job TTL
// is re-applied on every status write, the tree TTL counts from build
// completion, and the candidate TTL bounds how long a crawled track
// list is trusted before the catalog is asked again.
func NewJobStore(redisClient *redis.Client, jobTTL, treeTTL, candidateTTL time.Duration) *JobStore {
	return &JobStore{
		redis:        redisClient,
		jobTTL:       jobTTL,
		treeTTL:      treeTTL,
		candidateTTL: candidateTTL,
	}
}

// PutJob writes a job record under job:{id}.
func (s *JobStore) PutJob(ctx context.Context, job *model.Job) error {
	return s.put(ctx, jobKey(job.ID), job, s.jobTTL)
}

// GetJob fetches a job by id, or ErrNotFound if it is unknown/expired.
func (s *JobStore) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	var job model.Job
	if err := s.get(ctx, jobKey(jobID), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// PutTree writes a built tree under tree:{artistId}.
func (s *JobStore) PutTree(ctx context.Context, tree *model.RecommendationTree) error {
	return s.put(ctx, treeKey(tree.ArtistID), tree, s.treeTTL)
}

// GetTree fetches an artist's tree, or ErrNotFound.
func (s *JobStore) GetTree(ctx context.Context, artistID string) (*model.RecommendationTree, error) {
	var tree model.RecommendationTree
	if err := s.get(ctx, treeKey(artistID), &tree); err != nil {
		return nil, err
	}
	return &tree, nil
}

// PutCandidates caches an artist's ranked track list under
// tracks:{artistId}.
func (s *JobStore) PutCandidates(ctx context.Context, artistID string, tracks []model.Track) error {
	return s.put(ctx, candidatesKey(artistID), tracks, s.candidateTTL)
}

// GetCandidates fetches a cached track list, or ErrNotFound.
func (s *JobStore) GetCandidates(ctx context.Context, artistID string) ([]model.Track, error) {
	var tracks []model.Track
	if err := s.get(ctx, candidatesKey(artistID), &tracks); err != nil {
		return nil, err
	}
	return tracks, nil
}

func (s *JobStore) put(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if err := s.redis.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (s *JobStore) get(ctx context.Context, key string, value interface{}) error {
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return ErrNotFound
		}
		return fmt.Errorf("failed to read %s: %w", key, err)
	}
	if err := json.Unmarshal(data, value); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return nil
}

func jobKey(jobID string) string { return "job:" + jobID }

func treeKey(artistID string) string { return "tree:" + artistID }

func candidatesKey(artistID string) string { return "tracks:" + artistID }
