package emotion

import (
	"strings"

	"go.uber.org/zap"

	"github.com/justestif/moodtunes/internal/sentiment"
)

// keywords are matched as substrings of the lower-cased input.
var keywords = map[Mood][]string{
	Happy:     {"happy", "joy", "excited", "great", "awesome"},
	Sad:       {"sad", "depressed", "lonely", "miss", "hurt"},
	Angry:     {"angry", "mad", "hate", "annoyed", "frustrated"},
	Calm:      {"calm", "peace", "relax", "chill", "quiet"},
	Energetic: {"energy", "pump", "workout", "party", "dance"},
	Romantic:  {"love", "romantic", "heart", "kiss", "together"},
}

// baseMoods maps sentiment polarity to the mood that starts with one point.
var baseMoods = map[sentiment.Label]Mood{
	sentiment.Positive: Happy,
	sentiment.Negative: Sad,
	sentiment.Neutral:  Calm,
}

// ClassifyText detects the mood of free text.
//
// The sentiment polarity picks a base mood worth one point, then every
// keyword found in the text adds a point to its mood. The highest score wins
// and ties go to the mood listed first in Moods.
func (c *Classifier) ClassifyText(text string) Mood {
	scores := c.TextScores(text)
	mood := best(scores)

	c.log.Debug("classified text",
		zap.Int("length", len(text)),
		zap.String("emotion", mood.String()),
	)
	return mood
}

// TextScores returns the per-mood scores ClassifyText chooses from,
// in enumeration order.
func (c *Classifier) TextScores(text string) []Score {
	label := sentiment.Neutral
	if c.sentiment != nil {
		label = c.sentiment.Analyze(text)
	}

	base, ok := baseMoods[label]
	if !ok {
		base = DefaultMood
	}

	lower := strings.ToLower(text)
	scores := make([]Score, len(Moods))
	for i, mood := range Moods {
		scores[i].Mood = mood
		if mood == base {
			scores[i].Value++
		}
		for _, word := range keywords[mood] {
			if strings.Contains(lower, word) {
				scores[i].Value++
			}
		}
	}
	return scores
}
