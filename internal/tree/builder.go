package tree

import (
	"errors"
	"fmt"

	"github.com/songbranch/api/internal/model"
)

// MinCandidates is the smallest candidate list that still yields a
// usable tree (a root plus both first-level children).
const MinCandidates = 3

// ErrInsufficientCandidates is returned when the catalog produced too
// few tracks to build a tree. Surfaced as a job error, not a crash.
var ErrInsufficientCandidates = errors.New("insufficient candidates")

// Build constructs a recommendation tree from a ranked candidate list,
// best candidate first. Nodes are filled breadth-first in heap order:
// candidates[0] takes position 1, each following candidate takes the
// next unfilled position, up to the capacity of a tree of the given
// depth. The result is immutable once returned.
func Build(artistID string, candidates []model.Track, depth int) (*model.RecommendationTree, error) {
	if depth < 1 {
		return nil, fmt.Errorf("tree depth must be at least 1, got %d", depth)
	}
	if len(candidates) < MinCandidates {
		return nil, fmt.Errorf("%w: got %d tracks, need at least %d",
			ErrInsufficientCandidates, len(candidates), MinCandidates)
	}

	n := len(candidates)
	if max := model.MaxNodes(depth); n > max {
		n = max
	}

	nodes := make([]model.Track, n)
	copy(nodes, candidates[:n])

	return &model.RecommendationTree{
		ArtistID: artistID,
		Depth:    depth,
		Nodes:    nodes,
	}, nil
}
