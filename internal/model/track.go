package model

// Track is a candidate song as returned by the catalog, ranked best first.
type Track struct {
	SongID      string   `json:"songId"`
	Title       string   `json:"title"`
	Artists     []string `json:"artists"`
	AlbumName   string   `json:"albumName"`
	AlbumArtURL string   `json:"albumArtUrl,omitempty"`
	Popularity  int      `json:"popularity"`
}

// RecommendationTree is a fixed-depth binary tree of tracks for one
// artist. Nodes are stored flat in heap order: position p maps to
// Nodes[p-1], the children of p are 2p and 2p+1. The tree is immutable
// once built.
type RecommendationTree struct {
	ArtistID string  `json:"artistId"`
	Depth    int     `json:"depth"`
	Nodes    []Track `json:"nodes"`
}

// Root returns the track at position 1.
func (t *RecommendationTree) Root() *Track {
	return t.NodeAt(1)
}

// NodeAt returns the track at the given heap position, or nil when the
// position is outside the populated node range.
func (t *RecommendationTree) NodeAt(position int) *Track {
	if position < 1 || position > len(t.Nodes) {
		return nil
	}
	return &t.Nodes[position-1]
}

// Size returns the number of populated nodes.
func (t *RecommendationTree) Size() int {
	return len(t.Nodes)
}

// NextPosition computes the child position for a vote. A dislike moves
// to the left child 2p, a like to the right child 2p+1, so the position
// integer doubles as the full vote-path encoding.
func NextPosition(current int, liked bool) int {
	next := 2 * current
	if liked {
		next++
	}
	return next
}

// MaxNodes returns the node capacity of a complete binary tree of the
// given depth (depth 0 is a single root).
func MaxNodes(depth int) int {
	return 1<<(depth+1) - 1
}
