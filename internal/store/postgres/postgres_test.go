package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/veritymap/event-intel/internal/store"
)

func TestBuildSelect(t *testing.T) {
	from := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 7, 2, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		query    store.Query
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "unfiltered",
			query:    store.Query{},
			wantSQL:  `SELECT record FROM processed_events ORDER BY ts DESC, event_id ASC`,
			wantArgs: nil,
		},
		{
			name:     "region only",
			query:    store.Query{Region: "Assam"},
			wantSQL:  `SELECT record FROM processed_events WHERE region = $1 ORDER BY ts DESC, event_id ASC`,
			wantArgs: []any{"Assam"},
		},
		{
			name:     "full filter with limit",
			query:    store.Query{Region: "Assam", From: from, To: to, Limit: 50},
			wantSQL:  `SELECT record FROM processed_events WHERE region = $1 AND ts >= $2 AND ts < $3 ORDER BY ts DESC, event_id ASC LIMIT $4`,
			wantArgs: []any{"Assam", from, to, 50},
		},
		{
			name:     "time range without region",
			query:    store.Query{From: from, To: to},
			wantSQL:  `SELECT record FROM processed_events WHERE ts >= $1 AND ts < $2 ORDER BY ts DESC, event_id ASC`,
			wantArgs: []any{from, to},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gotSQL, gotArgs := buildSelect(tc.query)
			assert.Equal(t, tc.wantSQL, gotSQL)
			assert.Equal(t, tc.wantArgs, gotArgs)
		})
	}
}
