package nlp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritymap/event-intel/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockModel struct {
	ann   Annotation
	err   error
	calls int
}

func (m *mockModel) Annotate(_ context.Context, _, _ string) (Annotation, error) {
	m.calls++
	if m.err != nil {
		return Annotation{}, m.err
	}
	return m.ann, nil
}

func normalizedEvent(text string) domain.NormalizedEvent {
	return domain.NormalizedEvent{
		EventID:    "social-00ff00ff00ff00ff",
		Source:     domain.SourceSocial,
		Text:       text,
		ObservedAt: time.Date(2026, 3, 14, 15, 9, 0, 0, time.UTC),
	}
}

func TestExtractor_ModelPath(t *testing.T) {
	text := "Flood waters rising near the bridge in Assam"
	model := &mockModel{ann: Annotation{
		Language: "en",
		Claims: []domain.Claim{
			{TextSpan: "Flood waters rising near the bridge in Assam", Category: domain.ClaimEnvironmental, LocationHint: "Assam"},
		},
		Entities: []string{"Assam", "Brahmaputra"},
	}}
	e := NewExtractor(model, testIndex(t), 0, testLogger())

	ext, err := e.Extract(context.Background(), normalizedEvent(text))
	require.NoError(t, err)

	assert.Equal(t, 1, model.calls)
	assert.False(t, ext.Degraded)
	assert.Equal(t, "en", ext.Language)
	assert.Equal(t, "Assam", ext.Region)
	require.Len(t, ext.Claims, 1)
	assert.Equal(t, domain.ClaimEnvironmental, ext.Claims[0].Category)
	assert.Equal(t, []string{"Assam", "Brahmaputra"}, ext.Entities)
}

func TestExtractor_SanitizesModelOutput(t *testing.T) {
	text := "Flood waters rising near the bridge"
	model := &mockModel{ann: Annotation{
		Language: "en",
		Claims: []domain.Claim{
			{TextSpan: "something the model invented", Category: domain.ClaimEnvironmental},
			{TextSpan: "Flood waters rising", Category: "weather"},
			{TextSpan: "Flood waters rising", Category: domain.ClaimEnvironmental},
		},
		Entities: []string{" ", "Bridge", "bridge"},
	}}
	e := NewExtractor(model, testIndex(t), 0, testLogger())

	ext, err := e.Extract(context.Background(), normalizedEvent(text))
	require.NoError(t, err)

	require.Len(t, ext.Claims, 1, "invented span dropped, duplicate collapsed")
	assert.Equal(t, "Flood waters rising", ext.Claims[0].TextSpan)
	assert.Equal(t, domain.ClaimOther, ext.Claims[0].Category, "unknown category normalized")
	assert.Equal(t, []string{"Bridge"}, ext.Entities)
}

func TestExtractor_FallbackOnModelFailure(t *testing.T) {
	model := &mockModel{err: domain.ErrBackendUnavailable}
	e := NewExtractor(model, testIndex(t), 0, testLogger())

	ext, err := e.Extract(context.Background(), normalizedEvent("Flood waters submerged the highway in Assam"))
	require.NoError(t, err)

	assert.True(t, ext.Degraded)
	assert.Equal(t, "Assam", ext.Region)
	require.NotEmpty(t, ext.Claims)
	assert.Equal(t, domain.ClaimEnvironmental, ext.Claims[0].Category)
}

func TestExtractor_NoModelIsNotDegraded(t *testing.T) {
	e := NewExtractor(nil, testIndex(t), 0, testLogger())

	ext, err := e.Extract(context.Background(), normalizedEvent("Flood waters submerged the highway"))
	require.NoError(t, err)
	assert.False(t, ext.Degraded)
	require.NotEmpty(t, ext.Claims)
}

func TestExtractor_ContextCancelled(t *testing.T) {
	model := &mockModel{err: errors.New("boom")}
	e := NewExtractor(model, testIndex(t), 0, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Extract(ctx, normalizedEvent("Flood waters rising"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExtractor_RegionPriority(t *testing.T) {
	x := testIndex(t)

	t.Run("claim hint beats text mention", func(t *testing.T) {
		text := "relief trains leaving Bihar stations"
		model := &mockModel{ann: Annotation{
			Language: "en",
			Claims:   []domain.Claim{{TextSpan: "relief trains leaving Bihar stations", Category: domain.ClaimOther, LocationHint: "Kerala"}},
		}}
		e := NewExtractor(model, x, 0, testLogger())
		ext, err := e.Extract(context.Background(), normalizedEvent(text))
		require.NoError(t, err)
		assert.Equal(t, "Kerala", ext.Region)
	})

	t.Run("text mention when hints missing", func(t *testing.T) {
		e := NewExtractor(nil, x, 0, testLogger())
		ext, err := e.Extract(context.Background(), normalizedEvent("curfew declared across Odisha towns"))
		require.NoError(t, err)
		assert.Equal(t, "Odisha", ext.Region)
	})

	t.Run("coordinates as last resort", func(t *testing.T) {
		e := NewExtractor(nil, x, 0, testLogger())
		ev := normalizedEvent("bridge reported closed until morning")
		lat, lon := 28.6, 77.2
		ev.Lat, ev.Lon = &lat, &lon
		ext, err := e.Extract(context.Background(), ev)
		require.NoError(t, err)
		assert.Equal(t, "Delhi", ext.Region)
	})

	t.Run("unresolvable stays empty", func(t *testing.T) {
		e := NewExtractor(nil, x, 0, testLogger())
		ext, err := e.Extract(context.Background(), normalizedEvent("bridge reported closed until morning"))
		require.NoError(t, err)
		assert.Empty(t, ext.Region)
	})
}
