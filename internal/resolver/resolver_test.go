package resolver

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scbackend/internal/domain"
)

const (
	workoutID = "6b0f1e7a-2c3d-4e5f-8a9b-0c1d2e3f4a5b"
	yogaID    = "7c1a2b3d-4e5f-4a6b-9c7d-8e9f0a1b2c3d"
	reviewID  = "8d2b3c4e-5f6a-4b7c-8d9e-0f1a2b3c4d5e"
	taichiID  = "9e3c4d5f-6a7b-4c8d-9e0f-1a2b3c4d5e6f"
)

func strp(s string) *string { return &s }

func catalog() []domain.Event {
	return []domain.Event{
		{ID: workoutID, Title: "Morning Workout Session", Date: "2026-10-20", Time: "08:00"},
		{ID: yogaID, Title: "Sunset Yoga", Date: "2026-10-21", Time: "18:30"},
		{ID: reviewID, Title: "Work Order Review", Date: "2026-10-22", Time: "10:00"},
		{ID: taichiID, Title: "Tai Chi in the Park", Date: "2026-10-23", Time: "07:00"},
	}
}

func TestResolveByID(t *testing.T) {
	got := Resolver{}.Resolve(catalog(), strp("nothing similar"), strp(yogaID))
	require.NotNil(t, got)
	assert.Equal(t, yogaID, got.ID)
}

func TestResolveInvalidIDFallsBackToName(t *testing.T) {
	got := Resolver{}.Resolve(catalog(), strp("yoga"), strp("1"))
	require.NotNil(t, got)
	assert.Equal(t, yogaID, got.ID)
}

func TestResolveUnknownValidIDFallsBackToName(t *testing.T) {
	got := Resolver{}.Resolve(catalog(), strp("tai chi park"), strp("00000000-0000-4000-8000-000000000000"))
	require.NotNil(t, got)
	assert.Equal(t, taichiID, got.ID)
}

func TestResolveWorkoutDoesNotMatchWorkOrder(t *testing.T) {
	got := Resolver{}.Resolve(catalog(), strp("workout"), nil)
	require.NotNil(t, got)
	assert.Equal(t, workoutID, got.ID)

	only := []domain.Event{{ID: reviewID, Title: "Work Order Review"}}
	assert.Nil(t, Resolver{}.Resolve(only, strp("workout"), nil))
}

func TestResolveNoMatchingTokens(t *testing.T) {
	for _, name := range []string{"zzzz qqqq", "karaoke", "to of an", "", "  "} {
		assert.Nil(t, Resolver{}.Resolve(catalog(), strp(name), nil), "name %q", name)
	}
	assert.Nil(t, Resolver{}.Resolve(catalog(), nil, nil))
	assert.Nil(t, Resolver{}.Resolve(nil, strp("yoga"), nil))
}

func TestResolveNeverReturnsInvalidID(t *testing.T) {
	events := []domain.Event{{ID: "1", Title: "Sunset Yoga"}}
	assert.Nil(t, Resolver{}.Resolve(events, strp("Sunset Yoga"), strp("1")))

	events = append(events, domain.Event{ID: "not-a-uuid", Title: "Sunset Yoga"})
	assert.Nil(t, Resolver{}.Resolve(events, strp("sunset yoga"), nil))
}

func TestResolveExactTitleWinsRegardlessOfOrder(t *testing.T) {
	partial := domain.Event{ID: workoutID, Title: "Yoga for Beginners"}
	exact := domain.Event{ID: yogaID, Title: "Yoga"}

	for _, events := range [][]domain.Event{{partial, exact}, {exact, partial}} {
		got := Resolver{}.Resolve(events, strp("YOGA"), nil)
		require.NotNil(t, got)
		assert.Equal(t, yogaID, got.ID)
	}
}

func TestResolveTieFavorsFirstSeen(t *testing.T) {
	events := []domain.Event{
		{ID: workoutID, Title: "Yoga Morning"},
		{ID: yogaID, Title: "Yoga Evening"},
	}
	got := Resolver{}.Resolve(events, strp("yoga"), nil)
	require.NotNil(t, got)
	assert.Equal(t, workoutID, got.ID)
}

func TestResolveThresholdBoundary(t *testing.T) {
	r := Resolver{}
	// 3 of max(5,4) tokens overlap.
	assert.Equal(t, 0.6, r.Score("alpha bravo charlie delta echo", "alpha bravo charlie xray"))
	// 2 of max(4,3) tokens overlap.
	assert.Equal(t, 0.5, r.Score("alpha bravo delta echo", "alpha bravo xray"))

	events := []domain.Event{{ID: workoutID, Title: "Alpha Bravo Charlie Xray"}}
	name := strp("alpha bravo charlie delta echo")

	assert.NotNil(t, Resolver{Threshold: 0.6}.Resolve(events, name, nil))
	assert.Nil(t, Resolver{Threshold: math.Nextafter(0.6, 1)}.Resolve(events, name, nil))
	assert.Nil(t, Resolver{}.Resolve(events, strp("alpha bravo delta echo"), nil))
}

func TestScoreStrategies(t *testing.T) {
	r := Resolver{}
	tests := []struct {
		name, search, title string
		want                float64
	}{
		{name: "exact", search: "The Sunset-Yoga!", title: "sunset yoga", want: 1.0},
		{name: "all tokens", search: "yoga sunset", title: "Sunset Yoga Club", want: 1.0},
		{name: "token prefix", search: "tai park", title: "Tai Chi in the Park", want: 1.0},
		{name: "partial", search: "evening yoga", title: "Sunset Yoga Club", want: 1.0 / 3.0},
		{name: "none", search: "karaoke", title: "Sunset Yoga", want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, r.Score(tt.search, tt.title), 1e-9)
		})
	}
}

func TestMinTokenLenConfigurable(t *testing.T) {
	events := []domain.Event{{ID: taichiID, Title: "Qi Gong Basics"}}
	assert.Nil(t, Resolver{}.Resolve(events, strp("qi"), nil))
	assert.Nil(t, Resolver{MinTokenLen: -1}.Resolve(events, strp("qi"), nil))
	assert.Equal(t, New(DefaultThreshold, DefaultMinTokenLen).Score("qi", "Qi Gong Basics"), Resolver{}.Score("qi", "Qi Gong Basics"))
	got := Resolver{MinTokenLen: 1}.Resolve(events, strp("qi"), nil)
	require.NotNil(t, got)
	assert.Equal(t, taichiID, got.ID)
}

func TestResolveRoundTrip(t *testing.T) {
	events := catalog()
	for _, ev := range events {
		byID := Resolver{}.Resolve(events, nil, strp(ev.ID))
		require.NotNil(t, byID)
		byTitle := Resolver{}.Resolve(events, strp(byID.Title), nil)
		require.NotNil(t, byTitle)
		assert.Equal(t, byID.ID, byTitle.ID)
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "morning workout session", Normalize("  The Morning--Workout__Session!! "))
	assert.Equal(t, "yoga", Normalize("a yoga"))
	assert.Equal(t, "another day", Normalize("another day"))
}

func TestStripArticle(t *testing.T) {
	assert.Equal(t, "Workout Session", StripArticle("the   Workout  Session"))
	assert.Equal(t, "Annual Dinner", StripArticle("Annual Dinner"))
}

func TestSuggest(t *testing.T) {
	assert.Equal(t, []string{"Morning Workout Session"}, Suggest(catalog(), "workout dance"))
	assert.Empty(t, Suggest(catalog(), "bingo"))
}
