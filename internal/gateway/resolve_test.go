package gateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func countingSource(name string, doc map[string]any, calls *int) Source {
	return Source{Name: name, Fetch: func(context.Context) (map[string]any, bool) {
		*calls++
		return doc, doc != nil
	}}
}

func TestResolver_FirstSourceWithValueWins(t *testing.T) {
	var a, b, c int
	r := NewResolver(
		countingSource("doctor", map[string]any{"email": "", "specialty": "cardio"}, &a),
		countingSource("user", map[string]any{"email": "u@example.com", "profile": map[string]any{"phone": "555"}}, &b),
		countingSource("auth", map[string]any{"email": "auth@example.com"}, &c),
	)
	ctx := context.Background()

	v, src, ok := r.Lookup(ctx, "email")
	assert.True(t, ok)
	assert.Equal(t, "u@example.com", v)
	assert.Equal(t, "user", src)

	assert.Equal(t, "555", r.Any(ctx, "", "phone", "profile.phone"))
	assert.Equal(t, "cardio", r.Any(ctx, "", "specialty"))
	assert.Equal(t, "Not provided", r.Any(ctx, "Not provided", "fax"))

	// every source fetched at most once
	assert.Equal(t, 1, a)
	assert.Equal(t, 1, b)
	assert.Equal(t, 1, c)
}

func TestResolver_SkipsUnavailableSources(t *testing.T) {
	var calls int
	r := NewResolver(
		countingSource("down", nil, &calls),
		StaticSource("static", map[string]any{"yearsOfExperience": float64(12), "isActive": true}),
	)
	assert.Equal(t, "12", r.Any(context.Background(), "", "yearsOfExperience"))
	assert.Equal(t, "true", r.Any(context.Background(), "", "isActive"))
	assert.Equal(t, 1, calls)
}

func TestResultSource(t *testing.T) {
	ok := ResultSource("ok", func(context.Context) Result {
		return parseEnvelope(200, []byte(`{"success":true,"data":{"email":"x@y.z"}}`))
	})
	failed := ResultSource("failed", func(context.Context) Result {
		return failure(KindTimeout, 0, MsgTimeout)
	})

	r := NewResolver(failed, ok)
	v, src, found := r.Lookup(context.Background(), "email")
	assert.True(t, found)
	assert.Equal(t, "x@y.z", v)
	assert.Equal(t, "ok", src)
}

func TestResolver_NumbersKeepAllDigits(t *testing.T) {
	r := NewResolver(StaticSource("user", map[string]any{
		"phone":  float64(84912345678),
		"rating": 4.5,
		"id":     float64(42),
		"active": true,
	}))
	ctx := context.Background()

	assert.Equal(t, "84912345678", r.Any(ctx, "", "phone"))
	assert.Equal(t, "4.5", r.Any(ctx, "", "rating"))
	assert.Equal(t, "42", r.Any(ctx, "", "id"))
	assert.Equal(t, "true", r.Any(ctx, "", "active"))
}
