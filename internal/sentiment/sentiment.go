// Package sentiment classifies free text as positive, negative or neutral.
package sentiment

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cdipaolo/sentiment"
	"go.uber.org/zap"
)

// Label is the polarity assigned to a piece of text.
type Label string

const (
	Positive Label = "POSITIVE"
	Negative Label = "NEGATIVE"
	Neutral  Label = "NEUTRAL"
)

// maxInputRunes bounds how much text is handed to the model.
const maxInputRunes = 512

// errNoAnalysis is logged when the model returns no result.
var errNoAnalysis = errors.New("model returned no analysis")

// Analyzer assigns a Label to text. Implementations never fail.
type Analyzer interface {
	Analyze(text string) Label
}

// Model is the subset of the pretrained model used by NaiveBayes.
type Model interface {
	SentimentAnalysis(sentence string, lang sentiment.Language) *sentiment.Analysis
}

// NaiveBayes is an Analyzer backed by the pretrained English naive Bayes model.
// A NaiveBayes without a model answers Neutral for everything.
type NaiveBayes struct {
	model Model
	log   *zap.Logger
}

// compile-time interface assertion
var _ Analyzer = (*NaiveBayes)(nil)

// New restores the bundled model. If the model cannot be restored the
// analyzer is still usable and runs in degraded (always Neutral) mode.
func New(log *zap.Logger) *NaiveBayes {
	if log == nil {
		log = zap.NewNop()
	}
	models, err := sentiment.Restore()
	if err != nil {
		log.Warn("sentiment model unavailable, text sentiment will be neutral", zap.Error(err))
		return &NaiveBayes{log: log}
	}
	return &NaiveBayes{model: models, log: log}
}

// NewWithModel creates an analyzer around an already loaded model.
func NewWithModel(model Model, log *zap.Logger) *NaiveBayes {
	if log == nil {
		log = zap.NewNop()
	}
	return &NaiveBayes{model: model, log: log}
}

// Analyze returns the polarity of text. Empty text, a missing model and any
// model failure all yield Neutral.
func (n *NaiveBayes) Analyze(text string) Label {
	text = strings.TrimSpace(text)
	if text == "" {
		return Neutral
	}
	if n.model == nil {
		return Neutral
	}

	label, err := n.classify(truncate(text, maxInputRunes))
	if err != nil {
		n.log.Warn("sentiment analysis failed, using neutral", zap.Error(err))
		return Neutral
	}
	return label
}

// classify runs the model, converting a panic inside it into an error.
func (n *NaiveBayes) classify(text string) (label Label, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("model panic: %v", r)
		}
	}()

	analysis := n.model.SentimentAnalysis(text, sentiment.English)
	if analysis == nil {
		return Neutral, errNoAnalysis
	}

	if analysis.Score > 0 {
		return Positive, nil
	}
	return Negative, nil
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
