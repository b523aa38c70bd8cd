// Package emotion maps text and listening history to one of six moods.
package emotion

import "strings"

// Mood is one of the six emotion labels used throughout the service.
type Mood string

const (
	Happy     Mood = "happy"
	Sad       Mood = "sad"
	Angry     Mood = "angry"
	Calm      Mood = "calm"
	Energetic Mood = "energetic"
	Romantic  Mood = "romantic"
)

// DefaultMood is used whenever there is nothing to classify.
const DefaultMood = Happy

// Moods lists every mood in enumeration order. Ties are broken in this order.
var Moods = []Mood{Happy, Sad, Angry, Calm, Energetic, Romantic}

// ParseMood converts s to a Mood, ignoring case and surrounding whitespace.
// Unrecognized input maps to DefaultMood.
func ParseMood(s string) Mood {
	m := Mood(strings.ToLower(strings.TrimSpace(s)))
	if m.Valid() {
		return m
	}
	return DefaultMood
}

// Valid reports whether m is one of the enumerated moods.
func (m Mood) Valid() bool {
	for _, known := range Moods {
		if m == known {
			return true
		}
	}
	return false
}

func (m Mood) String() string {
	return string(m)
}

// Score pairs a mood with its classification score.
type Score struct {
	Mood  Mood    `json:"emotion"`
	Value float64 `json:"score"`
}

// best returns the highest scoring mood. The first mood wins a tie, so
// scores must be in enumeration order.
func best(scores []Score) Mood {
	if len(scores) == 0 {
		return DefaultMood
	}

	top := scores[0]
	for _, s := range scores[1:] {
		if s.Value > top.Value {
			top = s
		}
	}
	return top.Mood
}
