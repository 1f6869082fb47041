package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sort"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/songbranch/api/internal/config"
	"github.com/songbranch/api/internal/model"
)

// Catalog defines the music catalog operations the search pipeline
// consumes. FetchCandidates returns tracks ranked best first.
type Catalog interface {
	ResolveArtist(ctx context.Context, seed string) (artistID, artistName string, err error)
	FetchCandidates(ctx context.Context, artistID string) ([]model.Track, error)
}

var (
	// ErrCatalogUnavailable signals a missing configuration or an
	// upstream failure. Callers convert it to a terminal job error.
	ErrCatalogUnavailable = errors.New("catalog unavailable")

	// ErrArtistNotFound signals that the seed matched no artist.
	ErrArtistNotFound = errors.New("artist not found")
)

// SpotifyClient implements Catalog against the Spotify Web API using
// the client-credentials flow.
type SpotifyClient struct {
	httpClient *http.Client
	baseURL    string
	configured bool
}

// Spotify Web API response shapes (subset)

type spotifyImage struct {
	URL string `json:"url"`
}

type spotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type spotifyAlbum struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Images []spotifyImage `json:"images"`
}

type spotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []spotifyArtist `json:"artists"`
	Popularity int             `json:"popularity"`
}

type albumsPage struct {
	Items []spotifyAlbum `json:"items"`
	Next  *string        `json:"next"`
}

type tracksPage struct {
	Items []spotifyTrack `json:"items"`
	Next  *string        `json:"next"`
}

type artistSearchResult struct {
	Artists struct {
		Items []spotifyArtist `json:"items"`
	} `json:"artists"`
}

// NewSpotifyClient creates a Spotify catalog client. With empty
// credentials the client reports ErrCatalogUnavailable on every call.
func NewSpotifyClient(cfg *config.SpotifyConfig) *SpotifyClient {
	c := &SpotifyClient{
		baseURL:    cfg.BaseURL,
		configured: cfg.ClientID != "" && cfg.ClientSecret != "",
	}

	if c.configured {
		creds := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
		c.httpClient = creds.Client(context.Background())
		c.httpClient.Timeout = 30 * time.Second
	}

	return c
}

// IsConfigured returns true if the client has API credentials.
func (c *SpotifyClient) IsConfigured() bool {
	return c.configured
}

// ResolveArtist maps a seed to an artist id and display name. A seed
// that looks like an artist id is tried directly first; anything else
// falls through to a search query.
func (c *SpotifyClient) ResolveArtist(ctx context.Context, seed string) (string, string, error) {
	if !c.configured {
		return "", "", fmt.Errorf("%w: missing spotify credentials", ErrCatalogUnavailable)
	}

	var artist spotifyArtist
	err := c.get(ctx, "/artists/"+url.PathEscape(seed), &artist)
	if err == nil && artist.ID != "" {
		return artist.ID, artist.Name, nil
	}

	var result artistSearchResult
	endpoint := fmt.Sprintf("/search?type=artist&limit=1&q=%s", url.QueryEscape(seed))
	if err := c.get(ctx, endpoint, &result); err != nil {
		return "", "", err
	}
	if len(result.Artists.Items) == 0 {
		return "", "", fmt.Errorf("%w: %q", ErrArtistNotFound, seed)
	}

	found := result.Artists.Items[0]
	return found.ID, found.Name, nil
}

// FetchCandidates walks the artist's albums and singles and collects
// every track the artist is credited on, ranked by popularity.
func (c *SpotifyClient) FetchCandidates(ctx context.Context, artistID string) ([]model.Track, error) {
	if !c.configured {
		return nil, fmt.Errorf("%w: missing spotify credentials", ErrCatalogUnavailable)
	}

	albums, err := c.artistAlbums(ctx, artistID)
	if err != nil {
		return nil, err
	}

	var candidates []model.Track
	for _, album := range albums {
		tracks, err := c.albumTracks(ctx, album.ID)
		if err != nil {
			return nil, err
		}

		for _, track := range tracks {
			if !creditsArtist(track, artistID) {
				continue
			}
			candidates = append(candidates, model.Track{
				SongID:      track.ID,
				Title:       track.Name,
				Artists:     artistNames(track.Artists),
				AlbumName:   album.Name,
				AlbumArtURL: albumArt(album),
				Popularity:  track.Popularity,
			})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Popularity > candidates[j].Popularity
	})

	return candidates, nil
}

// artistAlbums pages through the artist's albums and singles.
func (c *SpotifyClient) artistAlbums(ctx context.Context, artistID string) ([]spotifyAlbum, error) {
	endpoint := fmt.Sprintf("/artists/%s/albums?include_groups=album,single&limit=50", url.PathEscape(artistID))

	var albums []spotifyAlbum
	for endpoint != "" {
		var page albumsPage
		if err := c.get(ctx, endpoint, &page); err != nil {
			return nil, err
		}
		albums = append(albums, page.Items...)
		endpoint = nextEndpoint(page.Next, c.baseURL)
	}
	return albums, nil
}

// albumTracks pages through an album's track listing.
func (c *SpotifyClient) albumTracks(ctx context.Context, albumID string) ([]spotifyTrack, error) {
	endpoint := fmt.Sprintf("/albums/%s/tracks?limit=50", url.PathEscape(albumID))

	var tracks []spotifyTrack
	for endpoint != "" {
		var page tracksPage
		if err := c.get(ctx, endpoint, &page); err != nil {
			return nil, err
		}
		tracks = append(tracks, page.Items...)
		endpoint = nextEndpoint(page.Next, c.baseURL)
	}
	return tracks, nil
}

// get sends an authenticated GET request and parses the JSON response.
func (c *SpotifyClient) get(ctx context.Context, endpoint string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	log.Printf("[Spotify API] → GET %s", req.URL.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[Spotify API] ✗ GET %s request failed: %v", req.URL.String(), err)
		return fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %v", ErrCatalogUnavailable, err)
	}

	log.Printf("[Spotify API] ← %d GET %s", resp.StatusCode, req.URL.String())

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrArtistNotFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: spotify API error (status %d): %s",
			ErrCatalogUnavailable, resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

// nextEndpoint strips the base URL from Spotify's absolute "next" link
// so pagination reuses the same request path helper.
func nextEndpoint(next *string, baseURL string) string {
	if next == nil || *next == "" {
		return ""
	}
	if len(*next) > len(baseURL) && (*next)[:len(baseURL)] == baseURL {
		return (*next)[len(baseURL):]
	}
	return ""
}

func creditsArtist(track spotifyTrack, artistID string) bool {
	for _, a := range track.Artists {
		if a.ID == artistID {
			return true
		}
	}
	return false
}

func artistNames(artists []spotifyArtist) []string {
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		names = append(names, a.Name)
	}
	return names
}

func albumArt(album spotifyAlbum) string {
	if len(album.Images) == 0 {
		return ""
	}
	return album.Images[0].URL
}
