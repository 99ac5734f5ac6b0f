package intent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scbackend/internal/domain"
)

const yogaID = "7c1a2b3d-4e5f-4a6b-9c7d-8e9f0a1b2c3d"

type fakeProvider struct {
	reply string
	err   error
	block bool
	last  domain.LLMRequest
}

func (f *fakeProvider) Complete(ctx context.Context, req domain.LLMRequest) (domain.LLMResponse, error) {
	f.last = req
	if f.block {
		<-ctx.Done()
		return domain.LLMResponse{}, ctx.Err()
	}
	if f.err != nil {
		return domain.LLMResponse{}, f.err
	}
	return domain.LLMResponse{Content: f.reply}, nil
}

func events() []domain.Event {
	return []domain.Event{
		{ID: "1", Title: "Broken Yoga"},
		{ID: yogaID, Title: "Sunset Yoga", Date: "2026-10-21"},
	}
}

func TestClassifyLLM(t *testing.T) {
	p := &fakeProvider{reply: `{"intent":"book_event","event_id":null,"event_name":"the  sunset yoga","event_date":null,"confidence":0.93}`}
	c := New(p, time.Second, nil)

	res := c.Classify(context.Background(), "I want book the sunset yoga", events())
	assert.Equal(t, domain.IntentBookEvent, res.Intent)
	assert.Equal(t, SourceLLM, res.Source)
	assert.InDelta(t, 0.93, res.Confidence, 1e-9)
	require.NotNil(t, res.EventName)
	assert.Equal(t, "sunset yoga", *res.EventName)
	require.NotNil(t, res.EventID)
	assert.Equal(t, yogaID, *res.EventID)

	assert.True(t, p.last.JSON)
	assert.Contains(t, p.last.Messages[0].Content, yogaID)
}

func TestClassifyLLMWrappedReply(t *testing.T) {
	p := &fakeProvider{reply: "Sure! ```json\n{\"intent\":\"register_event\",\"event_name\":\"yoga {beginner}\"}\n``` hope this helps"}
	res := New(p, time.Second, nil).Classify(context.Background(), "sign me up", nil)
	assert.Equal(t, domain.IntentBookEvent, res.Intent)
	assert.Equal(t, SourceLLM, res.Source)
	assert.InDelta(t, defaultConfidence, res.Confidence, 1e-9)
	require.NotNil(t, res.EventName)
	assert.Equal(t, "yoga {beginner}", *res.EventName)
}

func TestClassifyFallsBackOnBadReplies(t *testing.T) {
	tests := []struct {
		name string
		p    *fakeProvider
	}{
		{name: "provider error", p: &fakeProvider{err: errors.New("connection refused")}},
		{name: "not json", p: &fakeProvider{reply: "I think the user wants help"}},
		{name: "missing intent", p: &fakeProvider{reply: `{"confidence":0.9}`}},
		{name: "unknown intent", p: &fakeProvider{reply: `{"intent":"order_pizza"}`}},
		{name: "confidence out of range", p: &fakeProvider{reply: `{"intent":"general","confidence":7}`}},
		{name: "wrong type", p: &fakeProvider{reply: `{"intent":"general","event_name":42}`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := New(tt.p, time.Second, nil).Classify(context.Background(), "walao this uncle cut queue sia", nil)
			assert.Equal(t, domain.IntentGeneral, res.Intent)
			assert.Equal(t, 0.5, res.Confidence)
			assert.Equal(t, SourceKeywords, res.Source)
		})
	}
}

func TestClassifyTimeoutFallsBack(t *testing.T) {
	p := &fakeProvider{block: true}
	start := time.Now()
	res := New(p, 20*time.Millisecond, nil).Classify(context.Background(), "help emergency now", nil)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, domain.IntentEmergency, res.Intent)
	assert.Equal(t, 0.8, res.Confidence)
}

func TestClassifyWithoutProvider(t *testing.T) {
	c := New(nil, 0, nil)
	assert.False(t, c.LLMAvailable())

	res := c.Classify(context.Background(), "walao this uncle cut queue sia", nil)
	assert.Equal(t, domain.IntentGeneral, res.Intent)
	assert.Equal(t, 0.5, res.Confidence)
}

func TestClassifyEmergencyBothPaths(t *testing.T) {
	text := "help emergency now, also book yoga and list events"

	res := New(nil, 0, nil).Classify(context.Background(), text, events())
	assert.Equal(t, domain.IntentEmergency, res.Intent)

	p := &fakeProvider{reply: `{"intent":"emergency","confidence":0.99}`}
	res = New(p, time.Second, nil).Classify(context.Background(), text, events())
	assert.Equal(t, domain.IntentEmergency, res.Intent)
}

func TestUserPromptCapsContext(t *testing.T) {
	var evs []domain.Event
	for i := 0; i < 15; i++ {
		evs = append(evs, domain.Event{ID: yogaID, Title: "Yoga"})
	}
	prompt := userPrompt("hi", evs)
	assert.Equal(t, maxContextEvents, strings.Count(prompt, "- id="))
}

func TestRefineKeepsValidID(t *testing.T) {
	other := "00000000-0000-4000-8000-000000000000"
	name := "an  Sunset Yoga"
	res := refine(domain.IntentResult{EventID: &other, EventName: &name}, events())
	assert.Equal(t, other, *res.EventID)
	assert.Equal(t, "Sunset Yoga", *res.EventName)
}

func TestRefineDropsBlankName(t *testing.T) {
	name := "the"
	res := refine(domain.IntentResult{EventName: &name}, events())
	assert.Equal(t, "the", *res.EventName)

	blank := "   "
	res = refine(domain.IntentResult{EventName: &blank}, events())
	assert.Nil(t, res.EventName)
}
