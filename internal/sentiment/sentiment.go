// Package sentiment scores expression text with a lexicon polarity
// pass, optionally blended with an LLM's judgment when the lexicon's
// confidence falls below a configured threshold.
package sentiment

import (
	"context"
	"strings"
)

// Result carries both the final blended score and how confident the
// lexicon pass was, so callers can log why a blend did or didn't run.
type Result struct {
	Score      float64 // -1..1
	Confidence float64 // 0..1
	Blended    bool
}

// Blender is the narrow llm.Client surface sentiment needs.
type Blender interface {
	BlendSentiment(ctx context.Context, text string, lexiconScore float64) (float64, error)
}

var positiveWords = map[string]struct{}{
	"good": {}, "great": {}, "excellent": {}, "positive": {}, "love": {},
	"best": {}, "happy": {}, "wonderful": {}, "amazing": {}, "beneficial": {},
}

var negativeWords = map[string]struct{}{
	"bad": {}, "terrible": {}, "awful": {}, "negative": {}, "hate": {},
	"worst": {}, "sad": {}, "horrible": {}, "poor": {}, "harmful": {},
}

// Lexicon returns a -1..1 polarity score and a 0..1 confidence derived
// from how many of the scanned tokens were polarity-bearing words.
func Lexicon(text string) (score, confidence float64) {
	tokens := strings.Fields(strings.ToLower(text))
	if len(tokens) == 0 {
		return 0, 0
	}
	pos, neg := 0, 0
	for _, tok := range tokens {
		tok = strings.Trim(tok, ".,!?;:\"'()")
		if _, ok := positiveWords[tok]; ok {
			pos++
		}
		if _, ok := negativeWords[tok]; ok {
			neg++
		}
	}
	hits := pos + neg
	if hits == 0 {
		return 0, 0
	}
	score = float64(pos-neg) / float64(hits)
	confidence = float64(hits) / float64(len(tokens))
	if confidence > 1 {
		confidence = 1
	}
	return score, confidence
}

// Analyze runs the lexicon pass and, when its confidence is below
// threshold and a Blender is available, blends in the LLM's judgment.
func Analyze(ctx context.Context, text string, confidenceThreshold float64, blender Blender) Result {
	score, confidence := Lexicon(text)
	if confidence >= confidenceThreshold || blender == nil {
		return Result{Score: score, Confidence: confidence}
	}

	blended, err := blender.BlendSentiment(ctx, text, score)
	if err != nil {
		return Result{Score: score, Confidence: confidence}
	}
	return Result{Score: blended, Confidence: confidence, Blended: true}
}
