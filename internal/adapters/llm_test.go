package adapters

import (
	"context"
	"testing"
	"time"

	"landcrawler/internal/llm"
)

type fakeLLMClient struct {
	calls int
}

func (f *fakeLLMClient) ExtractFields(ctx context.Context, req llm.ExtractRequest) (llm.ExtractResult, error) {
	return llm.ExtractResult{}, nil
}

func (f *fakeLLMClient) Validate(ctx context.Context, question, docContext string) (llm.Verdict, error) {
	f.calls++
	return llm.Verdict{Approved: true, Raw: "yes"}, nil
}

func (f *fakeLLMClient) BlendSentiment(ctx context.Context, text string, lexiconScore float64) (float64, error) {
	f.calls++
	return 1, nil
}

func TestLLMAdapterCachesByKey(t *testing.T) {
	fake := &fakeLLMClient{}
	a := NewLLMAdapter(fake, 0, time.Minute)

	if _, err := a.Validate(context.Background(), "k1", "q", "c"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := a.Validate(context.Background(), "k1", "q", "c"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fake.calls != 1 {
		t.Fatalf("expected 1 underlying call due to cache, got %d", fake.calls)
	}
}

func TestLLMAdapterEnforcesCap(t *testing.T) {
	fake := &fakeLLMClient{}
	a := NewLLMAdapter(fake, 1, time.Minute)

	if _, err := a.Validate(context.Background(), "k1", "q", "c"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := a.Validate(context.Background(), "k2", "q", "c"); err != ErrCapExceeded {
		t.Fatalf("expected ErrCapExceeded, got %v", err)
	}
}

func TestLLMAdapterResetCallBudget(t *testing.T) {
	fake := &fakeLLMClient{}
	a := NewLLMAdapter(fake, 1, time.Minute)
	a.Validate(context.Background(), "k1", "q", "c")
	a.ResetCallBudget()
	if _, err := a.Validate(context.Background(), "k2", "q", "c"); err != nil {
		t.Fatalf("expected call to succeed after budget reset, got %v", err)
	}
}
