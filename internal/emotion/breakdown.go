package emotion

import (
	"cmp"
	"slices"

	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"
	"go.uber.org/zap"
)

// DefaultClusters is the number of k-means partitions Breakdown uses when
// none is requested.
const DefaultClusters = 3

// MoodCluster is a group of history entries that share a mood.
type MoodCluster struct {
	Emotion  Mood     `json:"emotion"`
	Share    float64  `json:"share"` // fraction of the history in this cluster
	Size     int      `json:"size"`
	Centroid Features `json:"centroid"`
}

// snapshotObservation adapts a history entry to clusters.Observation.
type snapshotObservation struct {
	index    int
	features Features
	coords   clusters.Coordinates
}

func (o snapshotObservation) Coordinates() clusters.Coordinates {
	return o.coords
}

func (o snapshotObservation) Distance(point clusters.Coordinates) float64 {
	return o.coords.Distance(point)
}

// Breakdown splits a listening history into mood groups.
//
// Entries are partitioned with k-means over danceability, energy, valence and
// scaled tempo; each partition is labelled with the mood closest to its
// centroid and partitions with the same mood are merged. Clusters are sorted
// by size, largest first. Histories smaller than k form a single cluster.
func (c *Classifier) Breakdown(history []FeatureSnapshot, k int) []MoodCluster {
	if len(history) == 0 {
		return nil
	}
	if k <= 0 {
		k = DefaultClusters
	}

	observations := make(clusters.Observations, len(history))
	for i, s := range history {
		f := s.Resolve()
		observations[i] = snapshotObservation{
			index:    i,
			features: f,
			coords:   featureCoordinates(f),
		}
	}

	if len(history) < k || k == 1 {
		return []MoodCluster{summarize(observations, len(history))}
	}

	km := kmeans.New()
	result, err := km.Partition(observations, k)
	if err != nil {
		c.log.Warn("k-means partition failed, using a single cluster", zap.Error(err))
		return []MoodCluster{summarize(observations, len(history))}
	}

	// k-means may leave an entry in two partitions when it stops on its
	// iteration limit, so each entry is counted once.
	seen := make(map[int]bool, len(history))
	byMood := make(map[Mood]clusters.Observations)
	for _, cluster := range result {
		if len(cluster.Observations) == 0 {
			continue
		}
		mood := ClassifyFeatures(meanFeatures(cluster.Observations))
		for _, o := range cluster.Observations {
			so, ok := o.(snapshotObservation)
			if !ok || seen[so.index] {
				continue
			}
			seen[so.index] = true
			byMood[mood] = append(byMood[mood], so)
		}
	}

	out := make([]MoodCluster, 0, len(byMood))
	for _, mood := range Moods {
		if obs, ok := byMood[mood]; ok {
			cl := summarize(obs, len(history))
			cl.Emotion = mood
			out = append(out, cl)
		}
	}

	// Stable sort keeps enumeration order among equally sized clusters.
	slices.SortStableFunc(out, func(a, b MoodCluster) int {
		return cmp.Compare(b.Size, a.Size)
	})

	c.log.Debug("history breakdown",
		zap.Int("tracks", len(history)),
		zap.Int("clusters", len(out)),
	)
	return out
}

// featureCoordinates scales tempo so every dimension spans roughly [0,1].
func featureCoordinates(f Features) clusters.Coordinates {
	return clusters.Coordinates{
		f.Danceability,
		f.Energy,
		f.Valence,
		f.Tempo / tempoScale,
	}
}

func summarize(obs clusters.Observations, total int) MoodCluster {
	centroid := meanFeatures(obs)
	return MoodCluster{
		Emotion:  ClassifyFeatures(centroid),
		Share:    float64(len(obs)) / float64(total),
		Size:     len(obs),
		Centroid: centroid,
	}
}

func meanFeatures(obs clusters.Observations) Features {
	var sum Features
	var n float64
	for _, o := range obs {
		so, ok := o.(snapshotObservation)
		if !ok {
			continue
		}
		sum.Danceability += so.features.Danceability
		sum.Energy += so.features.Energy
		sum.Valence += so.features.Valence
		sum.Tempo += so.features.Tempo
		n++
	}
	if n == 0 {
		return sum
	}
	return Features{
		Danceability: sum.Danceability / n,
		Energy:       sum.Energy / n,
		Valence:      sum.Valence / n,
		Tempo:        sum.Tempo / n,
	}
}
