package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/veritymap/event-intel/internal/domain"
)

// Memory is the in-process Store used by tests, replays, and single-node
// deployments. Records are copied on the way in and on the way out so callers
// can never mutate stored state through a shared pointer.
type Memory struct {
	mu     sync.RWMutex
	byID   map[string]int
	events []domain.ProcessedEvent
}

// NewMemory returns an empty in-process store.
func NewMemory() *Memory {
	return &Memory{byID: make(map[string]int)}
}

// Put stores ev unless its id is already present. The first write wins.
func (m *Memory) Put(_ context.Context, ev domain.ProcessedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[ev.EventID]; ok {
		return nil
	}
	m.byID[ev.EventID] = len(m.events)
	m.events = append(m.events, cloneEvent(ev))
	return nil
}

// GetByID returns the stored record, or domain.ErrNotFound.
func (m *Memory) GetByID(_ context.Context, id string) (domain.ProcessedEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i, ok := m.byID[id]
	if !ok {
		return domain.ProcessedEvent{}, domain.ErrNotFound
	}
	return cloneEvent(m.events[i]), nil
}

// Query returns matching events newest-first.
func (m *Memory) Query(_ context.Context, q Query) ([]domain.ProcessedEvent, error) {
	m.mu.RLock()
	matched := m.collect(q.Region, q.From, q.To)
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].Timestamp.Equal(matched[j].Timestamp) {
			return matched[i].Timestamp.After(matched[j].Timestamp)
		}
		return matched[i].EventID < matched[j].EventID
	})
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	return matched, nil
}

// ScanForAggregation streams matching events to fn.
func (m *Memory) ScanForAggregation(_ context.Context, region string, from, to time.Time, fn func(domain.ProcessedEvent) error) error {
	m.mu.RLock()
	matched := m.collect(region, from, to)
	m.mu.RUnlock()

	for _, ev := range matched {
		if err := fn(ev); err != nil {
			return err
		}
	}
	return nil
}

// Len reports the number of stored records.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events)
}

// collect copies every record matching the filter. Callers must hold at
// least a read lock.
func (m *Memory) collect(region string, from, to time.Time) []domain.ProcessedEvent {
	var out []domain.ProcessedEvent
	for _, ev := range m.events {
		if region != "" && ev.Region != region {
			continue
		}
		if !from.IsZero() && ev.Timestamp.Before(from) {
			continue
		}
		if !to.IsZero() && !ev.Timestamp.Before(to) {
			continue
		}
		out = append(out, cloneEvent(ev))
	}
	return out
}

// cloneEvent deep-copies every pointer, slice, and map field so the stored
// record and the caller's value share no memory.
func cloneEvent(ev domain.ProcessedEvent) domain.ProcessedEvent {
	out := ev
	if ev.Lat != nil {
		lat := *ev.Lat
		out.Lat = &lat
	}
	if ev.Lon != nil {
		lon := *ev.Lon
		out.Lon = &lon
	}
	if ev.Entities != nil {
		out.Entities = make([]string, len(ev.Entities))
		copy(out.Entities, ev.Entities)
	}
	if ev.Claims != nil {
		out.Claims = make([]domain.Claim, len(ev.Claims))
		copy(out.Claims, ev.Claims)
	}
	if ev.Satellite != nil {
		sat := *ev.Satellite
		if ev.Satellite.Metadata != nil {
			sat.Metadata = make(map[string]string, len(ev.Satellite.Metadata))
			for k, v := range ev.Satellite.Metadata {
				sat.Metadata[k] = v
			}
		}
		out.Satellite = &sat
	}
	return out
}
