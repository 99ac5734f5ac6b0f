package singlish

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"scbackend/internal/domain"
)

type stubProvider struct {
	content string
	err     error
}

func (s stubProvider) Complete(context.Context, domain.LLMRequest) (domain.LLMResponse, error) {
	return domain.LLMResponse{Content: s.content}, s.err
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestAnalyzerQueueComplaint(t *testing.T) {
	a := NewAnalyzer()
	text := "walao this uncle cut queue sia"
	if got := a.Clean(text); got != "Wow, this uncle cut queue" {
		t.Fatalf("clean=%q", got)
	}
	if got := a.Sentiment(text); got != "frustrated" {
		t.Fatalf("sentiment=%s, want frustrated", got)
	}
	if got := a.Tone(text); got != "annoyed" {
		t.Fatalf("tone=%s, want annoyed", got)
	}
}

func TestAnalyzerExcited(t *testing.T) {
	a := NewAnalyzer()
	text := "Wah, the kopi today damn shiok!"
	if got := a.Sentiment(text); got != "excited" {
		t.Fatalf("sentiment=%s, want excited", got)
	}
	if got := a.Tone(text); got != "casual" {
		t.Fatalf("tone=%s, want casual", got)
	}
	if got := a.Clean(text); !strings.Contains(got, "coffee") || !strings.Contains(got, "great") {
		t.Fatalf("clean=%q, want glossed slang", got)
	}
}

func TestAnalyzerUrgent(t *testing.T) {
	a := NewAnalyzer()
	text := "help me, I fall down and got pain"
	if got := a.Sentiment(text); got != "worried" {
		t.Fatalf("sentiment=%s, want worried", got)
	}
	if got := a.Tone(text); got != "urgent" {
		t.Fatalf("tone=%s, want urgent", got)
	}
}

func TestTranslateLLM(t *testing.T) {
	tr := NewTranslator(stubProvider{content: `{"clean_english":"Wow, this man cut the queue.","sentiment":"frustrated","tone":"annoyed"}`}, 0, discard())
	got, err := tr.Translate(context.Background(), "walao this uncle cut queue sia")
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if got.CleanEnglish != "Wow, this man cut the queue." || got.Sentiment != "frustrated" || got.Tone != "annoyed" {
		t.Fatalf("unexpected result: %+v", got)
	}
	if got.SinglishRaw != "walao this uncle cut queue sia" {
		t.Fatalf("raw=%q", got.SinglishRaw)
	}
}

func TestTranslateNonJSONReply(t *testing.T) {
	tr := NewTranslator(stubProvider{content: "Wow, this man cut the queue."}, 0, discard())
	got, err := tr.Translate(context.Background(), "walao")
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if got.CleanEnglish != "Wow, this man cut the queue." || got.Sentiment != "neutral" || got.Tone != "casual" {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestTranslateFallsBackToLexical(t *testing.T) {
	for _, tr := range []*Translator{
		NewTranslator(nil, 0, discard()),
		NewTranslator(stubProvider{err: errors.New("rate limited")}, 0, discard()),
	} {
		got, err := tr.Translate(context.Background(), "walao this uncle cut queue sia")
		if err != nil {
			t.Fatalf("translate: %v", err)
		}
		if got.Sentiment != "frustrated" || got.CleanEnglish != "Wow, this uncle cut queue" {
			t.Fatalf("unexpected lexical result: %+v", got)
		}
	}
}

func TestTranslateEmpty(t *testing.T) {
	if _, err := NewTranslator(nil, 0, discard()).Translate(context.Background(), "  "); err == nil {
		t.Fatalf("expected error for empty transcript")
	}
}
