package catalog

import (
	"context"

	"github.com/zmb3/spotify/v2"
	"go.uber.org/zap"

	"github.com/justestif/moodtunes/internal/emotion"
)

// maxTracksPerRequest is Spotify's limit on IDs per audio-features request.
const maxTracksPerRequest = 100

// AudioFeatures fetches the audio features of the given tracks with the
// user's bearer token, in batches of 100. Tracks Spotify has no features for
// are skipped, so the result may be shorter than ids.
func (c *Client) AudioFeatures(ctx context.Context, userToken string, ids []string) ([]emotion.FeatureSnapshot, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	api := c.api(userToken)
	snapshots := make([]emotion.FeatureSnapshot, 0, len(ids))

	for i := 0; i < len(ids); i += maxTracksPerRequest {
		end := min(i+maxTracksPerRequest, len(ids))

		batch := make([]spotify.ID, 0, end-i)
		for _, id := range ids[i:end] {
			batch = append(batch, spotify.ID(id))
		}

		features, err := api.GetAudioFeatures(ctx, batch...)
		if err != nil {
			return nil, upstreamError("audio features", err)
		}

		for _, f := range features {
			if f == nil {
				continue // no features for this track
			}
			snapshots = append(snapshots, snapshotOf(f))
		}

		c.log.Debug("fetched audio features",
			zap.Int("from", i+1),
			zap.Int("to", end),
			zap.Int("total", len(ids)),
		)
	}

	return snapshots, nil
}

func snapshotOf(f *spotify.AudioFeatures) emotion.FeatureSnapshot {
	danceability := float64(f.Danceability)
	energy := float64(f.Energy)
	valence := float64(f.Valence)
	tempo := float64(f.Tempo)

	return emotion.FeatureSnapshot{
		Danceability: &danceability,
		Energy:       &energy,
		Valence:      &valence,
		Tempo:        &tempo,
	}
}
