package emotion

import (
	"go.uber.org/zap"

	"github.com/justestif/moodtunes/internal/sentiment"
)

// Classifier assigns moods to text and to listening history.
// It never returns an error: failures fall back to default moods.
type Classifier struct {
	sentiment sentiment.Analyzer
	log       *zap.Logger
}

// NewClassifier creates a Classifier using analyzer for text polarity.
func NewClassifier(analyzer sentiment.Analyzer, log *zap.Logger) *Classifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Classifier{
		sentiment: analyzer,
		log:       log,
	}
}
