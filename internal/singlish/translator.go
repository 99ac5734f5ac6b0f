// Package singlish renders colloquial Singaporean English as Standard English
// with a sentiment and tone reading.
package singlish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"scbackend/internal/domain"
	"scbackend/internal/llm"
)

const systemPrompt = `You are an expert in Singlish, Singaporean English and Southeast Asian dialects.
Translate the user's text into clear Standard English, interpreting slang, Malay, Hokkien and Tamil words
in context while preserving the original meaning. Then identify sentiment and tone.
Output ONLY valid JSON with these keys:
{"clean_english": "<translated text>", "sentiment": "<positive/negative/neutral/frustrated/excited/...>", "tone": "<casual/urgent/polite/annoyed/sarcastic/...>"}`

type Translator struct {
	provider llm.Provider
	analyzer *Analyzer
	timeout  time.Duration
	logger   *slog.Logger
}

// NewTranslator returns a translator. A nil provider means lexical analysis only.
func NewTranslator(provider llm.Provider, timeout time.Duration, logger *slog.Logger) *Translator {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Translator{provider: provider, analyzer: NewAnalyzer(), timeout: timeout, logger: logger}
}

func (t *Translator) Translate(ctx context.Context, text string) (domain.TranslationResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.TranslationResult{}, fmt.Errorf("transcript is empty")
	}
	if t.provider == nil {
		return t.lexical(text), nil
	}

	callCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	resp, err := t.provider.Complete(callCtx, domain.LLMRequest{
		System: systemPrompt,
		Messages: []domain.Message{{
			Role:    "user",
			Content: fmt.Sprintf("Raw transcript: %q\n\nConvert this to Standard English, then analyze sentiment and tone. Output JSON only.", text),
		}},
		JSON:        true,
		Temperature: 0.3,
		MaxTokens:   500,
	})
	if err != nil {
		t.logger.Warn("singlish translation fallback", "error", err)
		return t.lexical(text), nil
	}
	return parseTranslation(text, resp.Content), nil
}

// parseTranslation keeps the raw model text as the translation when it is
// not the expected JSON.
func parseTranslation(raw, content string) domain.TranslationResult {
	out := domain.TranslationResult{SinglishRaw: raw, Sentiment: "neutral", Tone: "casual"}
	var parsed struct {
		CleanEnglish string `json:"clean_english"`
		Sentiment    string `json:"sentiment"`
		Tone         string `json:"tone"`
	}
	content = strings.TrimSpace(content)
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		out.CleanEnglish = content
		return out
	}
	out.CleanEnglish = parsed.CleanEnglish
	if parsed.Sentiment != "" {
		out.Sentiment = parsed.Sentiment
	}
	if parsed.Tone != "" {
		out.Tone = parsed.Tone
	}
	return out
}

func (t *Translator) lexical(text string) domain.TranslationResult {
	return domain.TranslationResult{
		SinglishRaw:  text,
		CleanEnglish: t.analyzer.Clean(text),
		Sentiment:    t.analyzer.Sentiment(text),
		Tone:         t.analyzer.Tone(text),
	}
}
