package sentiment

import (
	"context"
	"testing"
)

func TestLexiconPositive(t *testing.T) {
	score, conf := Lexicon("this is a great and wonderful product")
	if score <= 0 {
		t.Fatalf("expected positive score, got %v", score)
	}
	if conf <= 0 {
		t.Fatalf("expected nonzero confidence, got %v", conf)
	}
}

func TestLexiconNoOpinionWordsZeroConfidence(t *testing.T) {
	_, conf := Lexicon("the quick brown fox jumps")
	if conf != 0 {
		t.Fatalf("expected zero confidence with no polarity words, got %v", conf)
	}
}

type fakeBlender struct {
	score float64
	err   error
}

func (f fakeBlender) BlendSentiment(ctx context.Context, text string, lexiconScore float64) (float64, error) {
	return f.score, f.err
}

func TestAnalyzeSkipsBlendWhenConfident(t *testing.T) {
	r := Analyze(context.Background(), "great great great great great", 0.1, fakeBlender{score: -1})
	if r.Blended {
		t.Fatalf("expected no blend when lexicon confidence is high")
	}
}

func TestAnalyzeBlendsWhenUnderThreshold(t *testing.T) {
	r := Analyze(context.Background(), "the quick brown fox", 0.5, fakeBlender{score: 0.75})
	if !r.Blended || r.Score != 0.75 {
		t.Fatalf("expected blended score 0.75, got %+v", r)
	}
}
