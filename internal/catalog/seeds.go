package catalog

import (
	"math/rand"

	"github.com/zmb3/spotify/v2"

	"github.com/justestif/moodtunes/internal/emotion"
)

// extraGenres is the number of random genres added to every recommendation query.
const extraGenres = 2

// moodSeed tunes a recommendation query toward a mood.
type moodSeed struct {
	minEnergy, maxEnergy   float64
	minValence, maxValence float64
	artist                 spotify.ID
	track                  spotify.ID
	minPopularity          int
}

var moodSeeds = map[emotion.Mood]moodSeed{
	emotion.Happy: {
		minEnergy:     0.6,
		maxEnergy:     1.0,
		minValence:    0.7,
		maxValence:    1.0,
		artist:        "2RdwBSPQiwcmiDo9kixcl8",
		track:         "60nZcImufyMA1MKQY3dcCH",
		minPopularity: 50,
	},
	emotion.Sad: {
		minEnergy:     0.0,
		maxEnergy:     0.4,
		minValence:    0.0,
		maxValence:    0.3,
		artist:        "4dpARuHxo51G3z768sgnrY",
		track:         "4kflIGfjdZJW4ot2ioixTB",
		minPopularity: 40,
	},
	emotion.Angry: {
		minEnergy:     0.8,
		maxEnergy:     1.0,
		minValence:    0.0,
		maxValence:    0.4,
		artist:        "2d0hyoQ5ynDBnkvAbJKORj",
		track:         "59WN2psjkt1tyaxjspN8fp",
		minPopularity: 40,
	},
	emotion.Calm: {
		minEnergy:     0.0,
		maxEnergy:     0.4,
		minValence:    0.4,
		maxValence:    0.8,
		artist:        "2Kx7MNY7cI1ENniW7vT30N",
		track:         "1BuyIWHYRSPZ1VKg1q2Stz",
		minPopularity: 30,
	},
	emotion.Energetic: {
		minEnergy:     0.8,
		maxEnergy:     1.0,
		minValence:    0.5,
		maxValence:    1.0,
		artist:        "7dGJo4pcD2V6oG8kP0tJRR",
		track:         "5Z01UMMf7V1o0MzF86s6WJ",
		minPopularity: 50,
	},
	emotion.Romantic: {
		minEnergy:     0.3,
		maxEnergy:     0.7,
		minValence:    0.5,
		maxValence:    0.9,
		artist:        "6eUKZXaKkcviH0Ku9w2n3V",
		track:         "0tgVpDi06FyKpA1z0VMD4v",
		minPopularity: 40,
	},
}

// Genres is the fixed pool extra seed genres are drawn from.
var Genres = []string{
	"acoustic", "alternative", "blues", "classical", "country", "dance",
	"electronic", "folk", "hip-hop", "indie", "jazz", "pop",
	"r-n-b", "rock", "soul",
}

// seedFor returns the seed for mood, falling back to happy.
func seedFor(mood emotion.Mood) moodSeed {
	if s, ok := moodSeeds[mood]; ok {
		return s
	}
	return moodSeeds[emotion.DefaultMood]
}

// randomGenres picks n distinct genres.
func randomGenres(n int) []string {
	n = min(n, len(Genres))
	picked := make([]string, n)
	for i, j := range rand.Perm(len(Genres))[:n] {
		picked[i] = Genres[j]
	}
	return picked
}
