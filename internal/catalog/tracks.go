package catalog

import (
	"context"

	"github.com/zmb3/spotify/v2"
	"go.uber.org/zap"

	"github.com/justestif/moodtunes/internal/emotion"
)

// Recommendation and history limits accepted by Spotify.
const (
	DefaultRecommendationLimit = 20
	maxRecommendationLimit     = 100

	DefaultHistoryLimit = 50
	maxHistoryLimit     = 50
)

// Track is a catalog track as returned to clients.
//
// Popularity is only known for top tracks. Recommendations and recently
// played items are simplified track objects without it, so they report 0.
type Track struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Artists    []string `json:"artists"`
	URI        string   `json:"uri"`
	Popularity int      `json:"popularity"` // 0-100
}

// newTrack builds a Track from the fields shared by Spotify's simple and
// full track objects.
func newTrack(id spotify.ID, name string, artists []spotify.SimpleArtist, uri spotify.URI, popularity int) Track {
	names := make([]string, len(artists))
	for i, a := range artists {
		names[i] = a.Name
	}

	return Track{
		ID:         id.String(),
		Name:       name,
		Artists:    names,
		URI:        string(uri),
		Popularity: popularity,
	}
}

// Recommendations returns tracks matching mood. Unknown moods are treated as
// happy. A failed recommendation request is logged and yields no tracks; only
// a failure to obtain an access token is returned as an error.
func (c *Client) Recommendations(ctx context.Context, mood emotion.Mood, limit int) ([]Track, error) {
	if limit <= 0 {
		limit = DefaultRecommendationLimit
	}
	limit = min(limit, maxRecommendationLimit)

	token, err := c.EnsureToken(ctx)
	if err != nil {
		return nil, err
	}

	seed := seedFor(mood)
	seeds := spotify.Seeds{
		Artists: []spotify.ID{seed.artist},
		Tracks:  []spotify.ID{seed.track},
		Genres:  c.pickGenres(extraGenres),
	}
	attrs := spotify.NewTrackAttributes().
		MinEnergy(seed.minEnergy).
		MaxEnergy(seed.maxEnergy).
		MinValence(seed.minValence).
		MaxValence(seed.maxValence).
		MinPopularity(seed.minPopularity)

	recs, err := c.api(token).GetRecommendations(ctx, seeds, attrs, spotify.Limit(limit))
	if err != nil {
		c.log.Error("recommendation request failed",
			zap.String("emotion", mood.String()),
			zap.Error(upstreamError("recommendations", err)),
		)
		return []Track{}, nil
	}

	tracks := make([]Track, 0, len(recs.Tracks))
	for _, t := range recs.Tracks {
		tracks = append(tracks, newTrack(t.ID, t.Name, t.Artists, t.URI, 0))
	}

	c.log.Info("fetched recommendations",
		zap.String("emotion", mood.String()),
		zap.Strings("genres", seeds.Genres),
		zap.Int("tracks", len(tracks)),
	)
	return tracks, nil
}

// UserListeningHistory returns the user's recently played tracks followed by
// their top tracks, without duplicates. userToken is the user's own bearer
// token. Recently played is required; top tracks are best effort.
func (c *Client) UserListeningHistory(ctx context.Context, userToken string, limit int) ([]Track, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	limit = min(limit, maxHistoryLimit)

	api := c.api(userToken)

	recent, err := api.PlayerRecentlyPlayedOpt(ctx, &spotify.RecentlyPlayedOptions{Limit: spotify.Numeric(limit)})
	if err != nil {
		ue := upstreamError("recently played", err)
		c.log.Error("fetching recently played failed", zap.Error(ue))
		return nil, ue
	}

	seen := make(map[string]bool)
	history := make([]Track, 0, len(recent))
	add := func(t Track) {
		if seen[t.ID] {
			return
		}
		seen[t.ID] = true
		history = append(history, t)
	}

	for _, item := range recent {
		t := item.Track
		add(newTrack(t.ID, t.Name, t.Artists, t.URI, 0))
	}

	top, err := api.CurrentUsersTopTracks(ctx, spotify.Limit(limit))
	if err != nil {
		c.log.Warn("fetching top tracks failed, returning recently played only",
			zap.Error(upstreamError("top tracks", err)),
		)
		return history, nil
	}
	for _, t := range top.Tracks {
		add(newTrack(t.ID, t.Name, t.Artists, t.URI, int(t.Popularity)))
	}

	c.log.Debug("fetched listening history",
		zap.Int("recently_played", len(recent)),
		zap.Int("top_tracks", len(top.Tracks)),
		zap.Int("tracks", len(history)),
	)
	return history, nil
}

// SeedGenres lists the genres Spotify accepts as recommendation seeds.
func (c *Client) SeedGenres(ctx context.Context) ([]string, error) {
	token, err := c.EnsureToken(ctx)
	if err != nil {
		return nil, err
	}

	genres, err := c.api(token).GetAvailableGenreSeeds(ctx)
	if err != nil {
		return nil, upstreamError("available genre seeds", err)
	}
	return genres, nil
}
