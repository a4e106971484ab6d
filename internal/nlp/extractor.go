package nlp

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/veritymap/event-intel/internal/domain"
)

const (
	// DefaultModelTimeout bounds one model call, including the adapter's own
	// retries.
	DefaultModelTimeout = 10 * time.Second
	// MaxClaims caps claims kept per event, in extraction order.
	MaxClaims = 8
	// MaxEntities caps entities kept per event.
	MaxEntities = 16
)

// Model produces language, claims, and entities for one event text.
// RemoteModel talks to the annotate service; Lexicon is the keyword fallback.
type Model interface {
	Annotate(ctx context.Context, text, languageHint string) (Annotation, error)
}

// Annotation is a model's raw output, before region resolution and caps.
type Annotation struct {
	Language string         `json:"language"`
	Claims   []domain.Claim `json:"claims"`
	Entities []string       `json:"entities"`
}

// Extractor runs the configured model and falls back to the lexicon when the
// model fails, marking the result degraded. Extraction itself never fails;
// the only returned error is context cancellation.
type Extractor struct {
	model    Model
	fallback *Lexicon
	regions  *RegionIndex
	logger   *slog.Logger
	timeout  time.Duration
}

// NewExtractor wires an extractor. model may be nil, in which case the
// lexicon serves every event and output is not marked degraded.
func NewExtractor(model Model, regions *RegionIndex, timeout time.Duration, logger *slog.Logger) *Extractor {
	if timeout <= 0 {
		timeout = DefaultModelTimeout
	}
	return &Extractor{
		model:    model,
		fallback: NewLexicon(regions),
		regions:  regions,
		logger:   logger,
		timeout:  timeout,
	}
}

// Extract annotates one event and resolves its region.
func (e *Extractor) Extract(ctx context.Context, ev domain.NormalizedEvent) (domain.Extraction, error) {
	ann, degraded, err := e.annotate(ctx, ev)
	if err != nil {
		return domain.Extraction{}, err
	}
	ext := domain.Extraction{
		Language: ann.Language,
		Claims:   sanitizeClaims(ann.Claims, ev.Text),
		Entities: capEntities(ann.Entities),
		Degraded: degraded,
	}
	ext.Region = e.resolveRegion(ext.Claims, ev)
	return ext, nil
}

func (e *Extractor) annotate(ctx context.Context, ev domain.NormalizedEvent) (Annotation, bool, error) {
	if e.model == nil {
		ann, _ := e.fallback.Annotate(ctx, ev.Text, ev.LanguageHint)
		return ann, false, nil
	}
	mctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	ann, err := e.model.Annotate(mctx, ev.Text, ev.LanguageHint)
	if err == nil {
		return ann, false, nil
	}
	if ctx.Err() != nil {
		return Annotation{}, false, ctx.Err()
	}
	e.logger.Warn("model annotate failed, using lexicon fallback",
		"event_id", ev.EventID,
		"error", err)
	ann, _ = e.fallback.Annotate(ctx, ev.Text, ev.LanguageHint)
	return ann, true, nil
}

// resolveRegion picks the event's region: the first claim hint that resolves,
// then a mention anywhere in the text, then the nearest centroid to explicit
// coordinates.
func (e *Extractor) resolveRegion(claims []domain.Claim, ev domain.NormalizedEvent) string {
	for _, c := range claims {
		if c.LocationHint == "" {
			continue
		}
		if r, ok := e.regions.Resolve(c.LocationHint); ok {
			return r.Name
		}
	}
	if r, ok := e.regions.ScanText(ev.Text); ok {
		return r.Name
	}
	if ev.HasCoords() {
		if r, ok := e.regions.Nearest(*ev.Lat, *ev.Lon); ok {
			return r.Name
		}
	}
	return ""
}

// sanitizeClaims drops spans that are not substrings of the source text (the
// model made them up), normalizes unknown categories to other, dedupes, and
// caps the list.
func sanitizeClaims(claims []domain.Claim, text string) []domain.Claim {
	out := make([]domain.Claim, 0, len(claims))
	seen := map[string]struct{}{}
	for _, c := range claims {
		span := strings.TrimSpace(c.TextSpan)
		if span == "" || !strings.Contains(text, span) {
			continue
		}
		if _, dup := seen[span]; dup {
			continue
		}
		seen[span] = struct{}{}
		switch c.Category {
		case domain.ClaimEnvironmental, domain.ClaimPolitical, domain.ClaimHealth, domain.ClaimOther:
		default:
			c.Category = domain.ClaimOther
		}
		c.TextSpan = span
		out = append(out, c)
		if len(out) == MaxClaims {
			break
		}
	}
	return out
}

func capEntities(entities []string) []string {
	out := make([]string, 0, len(entities))
	seen := map[string]struct{}{}
	for _, e := range entities {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		key := strings.ToLower(e)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, e)
		if len(out) == MaxEntities {
			break
		}
	}
	return out
}
