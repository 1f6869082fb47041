package service

import (
	"context"
	"fmt"

	"github.com/songbranch/api/internal/model"
)

// VoteService walks an artist's recommendation tree. It holds no
// cross-call state: the caller supplies its position with every vote
// and gets the next one back, so concurrent voters can never trample
// each other.
type VoteService struct {
	store Store
}

func NewVoteService(store Store) *VoteService {
	return &VoteService{store: store}
}

// CastVote computes the child position for the vote and returns the
// track there, or status complete when the traversal has moved past the
// populated tree. Unknown or expired trees surface store.ErrNotFound.
func (s *VoteService) CastVote(ctx context.Context, artistID string, currentPosition int, liked bool) (*model.VoteResponse, error) {
	if currentPosition < 1 {
		return nil, fmt.Errorf("%w: position must be >= 1, got %d", ErrInvalidInput, currentPosition)
	}

	tr, err := s.store.GetTree(ctx, artistID)
	if err != nil {
		return nil, err
	}

	next := model.NextPosition(currentPosition, liked)
	node := tr.NodeAt(next)
	if node == nil {
		return &model.VoteResponse{
			Status:       model.VoteStatusComplete,
			NextPosition: next,
		}, nil
	}

	return &model.VoteResponse{
		Status:       model.VoteStatusContinue,
		NextPosition: next,
		Song:         node,
	}, nil
}
