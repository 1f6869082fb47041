package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"

	"github.com/songbranch/api/internal/broadcast"
	"github.com/songbranch/api/internal/model"
	"github.com/songbranch/api/internal/service"
	"github.com/songbranch/api/internal/store"
)

// testApp wires the HTTP layer onto in-memory fakes so handler tests
// run without Redis or Spotify.
type testApp struct {
	app      *fiber.App
	store    *memStore
	catalog  *memCatalog
	search   *service.SearchService
	enqueuer *memEnqueuer
}

func setupApp(t *testing.T) *testApp {
	t.Helper()

	st := newMemStore()
	catalog := &memCatalog{artistID: "artist-1", artistName: "Radiohead"}
	enqueuer := &memEnqueuer{}
	b := broadcast.NewBroadcaster(time.Minute)

	searchService := service.NewSearchService(st, catalog, b, enqueuer)
	voteService := service.NewVoteService(st)

	validate := validator.New()
	searchHandler := NewSearchHandler(searchService, validate)
	voteHandler := NewVoteHandler(voteService, validate)

	app := fiber.New()
	api := app.Group("/api")
	api.Post("/start-search", searchHandler.Start)
	api.Get("/search-updates/:jobId", searchHandler.Updates)
	api.Post("/vote", voteHandler.Cast)

	return &testApp{
		app:      app,
		store:    st,
		catalog:  catalog,
		search:   searchService,
		enqueuer: enqueuer,
	}
}

func doRequest(app *fiber.App, method, path, body string) (*http.Response, error) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, path, reader)
	if err != nil {
		return nil, err
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return app.Test(req, 5000)
}

func assertStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("expected status %d, got %d", want, resp.StatusCode)
	}
}

func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("failed to parse response body %q: %v", data, err)
	}
	return body
}

func errorCode(t *testing.T, body map[string]interface{}) string {
	t.Helper()
	detail, ok := body["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error envelope, got %v", body)
	}
	code, _ := detail["code"].(string)
	return code
}

type memStore struct {
	mu    sync.Mutex
	jobs  map[string]model.Job
	trees map[string]model.RecommendationTree
	cands map[string][]model.Track
}

func newMemStore() *memStore {
	return &memStore{
		jobs:  make(map[string]model.Job),
		trees: make(map[string]model.RecommendationTree),
		cands: make(map[string][]model.Track),
	}
}

func (s *memStore) PutJob(ctx context.Context, job *model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = *job
	return nil
}

func (s *memStore) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &job, nil
}

func (s *memStore) PutTree(ctx context.Context, tree *model.RecommendationTree) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trees[tree.ArtistID] = *tree
	return nil
}

func (s *memStore) GetTree(ctx context.Context, artistID string) (*model.RecommendationTree, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tree, ok := s.trees[artistID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &tree, nil
}

func (s *memStore) PutCandidates(ctx context.Context, artistID string, tracks []model.Track) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cands[artistID] = tracks
	return nil
}

func (s *memStore) GetCandidates(ctx context.Context, artistID string) ([]model.Track, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tracks, ok := s.cands[artistID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return tracks, nil
}

type memCatalog struct {
	artistID   string
	artistName string
	resolveErr error
}

func (c *memCatalog) ResolveArtist(ctx context.Context, seed string) (string, string, error) {
	if c.resolveErr != nil {
		return "", "", c.resolveErr
	}
	return c.artistID, c.artistName, nil
}

func (c *memCatalog) FetchCandidates(ctx context.Context, artistID string) ([]model.Track, error) {
	return nil, nil
}

type memEnqueuer struct {
	tasks []*asynq.Task
}

func (e *memEnqueuer) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	e.tasks = append(e.tasks, task)
	return &asynq.TaskInfo{}, nil
}

// depth2Tree is a full 7-node tree for artist-1; positions map onto
// song-1..song-7 in heap order.
func depth2Tree() *model.RecommendationTree {
	nodes := make([]model.Track, 7)
	for i := range nodes {
		nodes[i] = model.Track{
			SongID:  "song-" + string(rune('1'+i)),
			Title:   "Track " + string(rune('1'+i)),
			Artists: []string{"Radiohead"},
		}
	}
	return &model.RecommendationTree{ArtistID: "artist-1", Depth: 2, Nodes: nodes}
}
