package nlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/veritymap/event-intel/internal/domain"
)

// RemoteModel implements Model against the annotate service's HTTP API.
type RemoteModel struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	maxRetries uint64
}

// NewRemoteModel creates an annotate client. maxRetries counts attempts after
// the first; transient failures back off exponentially between them.
func NewRemoteModel(baseURL string, timeout time.Duration, maxRetries uint64, logger *slog.Logger) *RemoteModel {
	return &RemoteModel{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger:     logger,
		maxRetries: maxRetries,
	}
}

type annotateRequest struct {
	Text         string `json:"text"`
	LanguageHint string `json:"language_hint,omitempty"`
}

// Annotate calls POST /v1/annotate. Persistent failure comes back wrapped in
// domain.ErrBackendUnavailable so the extractor can fall back to the lexicon.
func (m *RemoteModel) Annotate(ctx context.Context, text, languageHint string) (Annotation, error) {
	body, err := json.Marshal(annotateRequest{Text: text, LanguageHint: languageHint})
	if err != nil {
		return Annotation{}, fmt.Errorf("encode annotate request: %w", err)
	}

	var ann Annotation
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/v1/annotate", bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := m.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("annotate request: %w", err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			payload, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("annotate service status %d: %s", resp.StatusCode, payload)
		default:
			// 4xx means this request will never succeed; do not retry.
			payload, _ := io.ReadAll(resp.Body)
			return backoff.Permanent(fmt.Errorf("annotate service status %d: %s", resp.StatusCode, payload))
		}

		var got Annotation
		if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
			return backoff.Permanent(fmt.Errorf("decode annotate response: %w", err))
		}
		ann = got
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), m.maxRetries), ctx)
	notify := func(err error, wait time.Duration) {
		m.logger.Debug("retrying annotate call", "wait", wait, "error", err)
	}
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return Annotation{}, fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
	}
	return ann, nil
}
