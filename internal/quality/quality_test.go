package quality

import (
	"testing"

	"landcrawler/internal/config"
)

func TestComputeRichDocumentScoresHigh(t *testing.T) {
	body := []byte(`<html><body><h1>Title</h1><p>one</p><p>two</p><p>three</p></body></html>`)
	text := make([]byte, 2200)
	for i := range text {
		text[i] = 'a'
	}
	s := Compute(config.QualityWeights{}, Input{
		HTTPStatus:   200,
		Body:         body,
		ReadableText: string(text),
		Title:        "Title",
		Description:  "",
	})
	if s.Total < 0.5 {
		t.Fatalf("expected high total score, got %.2f (%+v)", s.Total, s)
	}
}

func TestComputeEmptyBodyWithOKStatusScoresLowIntegrity(t *testing.T) {
	s := Compute(config.QualityWeights{}, Input{HTTPStatus: 200})
	if s.Integrity != 0 {
		t.Fatalf("expected 0 integrity for empty 2xx body, got %.2f", s.Integrity)
	}
}

func TestComputeZeroStatusScoresZeroAccess(t *testing.T) {
	s := Compute(config.QualityWeights{}, Input{HTTPStatus: 0})
	if s.Access != 0 {
		t.Fatalf("expected 0 access before any attempt, got %.2f", s.Access)
	}
}
