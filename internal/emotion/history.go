package emotion

import (
	"math"

	"go.uber.org/zap"
)

// Defaults substituted for features missing from a snapshot.
const (
	defaultUnitFeature = 0.5
	defaultTempo       = 100.0

	// tempoScale normalizes a BPM difference to the [0,1] feature range.
	tempoScale = 200.0
)

// FeatureSnapshot holds the audio features of one listened track.
// Nil fields are treated as missing.
type FeatureSnapshot struct {
	Danceability *float64 `json:"danceability,omitempty"`
	Energy       *float64 `json:"energy,omitempty"`
	Valence      *float64 `json:"valence,omitempty"`
	Tempo        *float64 `json:"tempo,omitempty"` // BPM
}

// Features is a fully populated set of audio features.
type Features struct {
	Danceability float64 `json:"danceability"`
	Energy       float64 `json:"energy"`
	Valence      float64 `json:"valence"`
	Tempo        float64 `json:"tempo"`
}

// idealFeatures are the reference feature values of each mood.
var idealFeatures = map[Mood]Features{
	Happy:     {Danceability: 0.8, Energy: 0.7, Valence: 0.9, Tempo: 120},
	Sad:       {Danceability: 0.2, Energy: 0.3, Valence: 0.1, Tempo: 70},
	Angry:     {Danceability: 0.5, Energy: 0.9, Valence: 0.4, Tempo: 140},
	Calm:      {Danceability: 0.3, Energy: 0.2, Valence: 0.6, Tempo: 80},
	Energetic: {Danceability: 0.9, Energy: 0.95, Valence: 0.7, Tempo: 130},
	Romantic:  {Danceability: 0.6, Energy: 0.5, Valence: 0.8, Tempo: 100},
}

// IdealFeatures returns the reference features for mood.
func IdealFeatures(mood Mood) Features {
	return idealFeatures[ParseMood(mood.String())]
}

// Resolve fills missing fields with their defaults.
func (s FeatureSnapshot) Resolve() Features {
	return Features{
		Danceability: valueOr(s.Danceability, defaultUnitFeature),
		Energy:       valueOr(s.Energy, defaultUnitFeature),
		Valence:      valueOr(s.Valence, defaultUnitFeature),
		Tempo:        valueOr(s.Tempo, defaultTempo),
	}
}

// ClassifyHistory predicts the mood of a listening history from the mean of
// its audio features. An empty history yields DefaultMood.
func (c *Classifier) ClassifyHistory(history []FeatureSnapshot) Mood {
	if len(history) == 0 {
		return DefaultMood
	}

	mood := best(Scores(Mean(history)))

	c.log.Debug("classified history",
		zap.Int("tracks", len(history)),
		zap.String("emotion", mood.String()),
	)
	return mood
}

// Mean averages the resolved features of history.
func Mean(history []FeatureSnapshot) Features {
	var sum Features
	if len(history) == 0 {
		return sum
	}

	for _, s := range history {
		f := s.Resolve()
		sum.Danceability += f.Danceability
		sum.Energy += f.Energy
		sum.Valence += f.Valence
		sum.Tempo += f.Tempo
	}

	n := float64(len(history))
	return Features{
		Danceability: sum.Danceability / n,
		Energy:       sum.Energy / n,
		Valence:      sum.Valence / n,
		Tempo:        sum.Tempo / n,
	}
}

// Scores rates how close f is to every mood's ideal features, in
// enumeration order. Each of the four features contributes at most 1.
func Scores(f Features) []Score {
	scores := make([]Score, len(Moods))
	for i, mood := range Moods {
		ideal := idealFeatures[mood]
		scores[i] = Score{
			Mood: mood,
			Value: (1 - math.Abs(ideal.Danceability-f.Danceability)) +
				(1 - math.Abs(ideal.Energy-f.Energy)) +
				(1 - math.Abs(ideal.Valence-f.Valence)) +
				(1 - math.Abs(ideal.Tempo-f.Tempo)/tempoScale),
		}
	}
	return scores
}

// ClassifyFeatures returns the mood whose ideal features are closest to f.
func ClassifyFeatures(f Features) Mood {
	return best(Scores(f))
}

func valueOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}
