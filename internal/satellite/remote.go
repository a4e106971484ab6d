package satellite

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/veritymap/event-intel/internal/domain"
)

// RemoteBackend implements Backend against the signal service's HTTP API.
// Requests pass a client-side rate limiter so replay bursts stay inside the
// provider quota.
type RemoteBackend struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
	maxRetries uint64
}

// NewRemoteBackend creates a signal client. rps bounds request rate (burst is
// one second's worth); maxRetries counts attempts after the first.
func NewRemoteBackend(baseURL string, timeout time.Duration, rps float64, maxRetries uint64, logger *slog.Logger) *RemoteBackend {
	if rps <= 0 {
		rps = 5
	}
	return &RemoteBackend{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter:    rate.NewLimiter(rate.Limit(rps), int(math.Ceil(rps))),
		logger:     logger,
		maxRetries: maxRetries,
	}
}

func (b *RemoteBackend) Current(ctx context.Context, lat, lon float64, date time.Time) (Observation, error) {
	return b.fetch(ctx, "current", lat, lon, date)
}

func (b *RemoteBackend) Baseline(ctx context.Context, lat, lon float64, date time.Time) (Observation, error) {
	return b.fetch(ctx, "baseline", lat, lon, date)
}

func (b *RemoteBackend) fetch(ctx context.Context, window string, lat, lon float64, date time.Time) (Observation, error) {
	params := url.Values{
		"lat":    {fmt.Sprintf("%.6f", lat)},
		"lon":    {fmt.Sprintf("%.6f", lon)},
		"date":   {date.UTC().Format("2006-01-02")},
		"window": {window},
	}
	fullURL := b.baseURL + "/v1/signal?" + params.Encode()

	var obs Observation
	op := func() error {
		if err := b.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create request: %w", err))
		}
		resp, err := b.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%s signal request: %w", window, err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			payload, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("signal service status %d: %s", resp.StatusCode, payload)
		default:
			payload, _ := io.ReadAll(resp.Body)
			return backoff.Permanent(fmt.Errorf("signal service status %d: %s", resp.StatusCode, payload))
		}

		var got Observation
		if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
			return backoff.Permanent(fmt.Errorf("decode signal response: %w", err))
		}
		obs = got
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), b.maxRetries), ctx)
	notify := func(err error, wait time.Duration) {
		b.logger.Debug("retrying signal call", "window", window, "wait", wait, "error", err)
	}
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return Observation{}, fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
	}
	return obs, nil
}
