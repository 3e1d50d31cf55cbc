package server

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vesaa/talonpulse/internal/models"
)

type stubReader struct {
	latest  *models.MetricSample
	history []models.MetricSample
	err     error
}

func (s stubReader) Latest(context.Context) (*models.MetricSample, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.latest == nil {
		return nil, ErrNoMetrics
	}
	return s.latest, nil
}

func (s stubReader) History(context.Context) ([]models.MetricSample, error) {
	return s.history, s.err
}

func TestQueryServiceLatest(t *testing.T) {
	ctx := context.Background()

	res, err := NewQueryService(stubReader{}).Latest(ctx)
	require.NoError(t, err)
	assert.True(t, res.Empty())
	raw, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(raw))

	res, err = NewQueryService(stubReader{latest: sampleAt(42)}).Latest(ctx)
	require.NoError(t, err)
	assert.False(t, res.Empty())
	raw, err = json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"timestamp": 42,
		"cpu_percent": 10,
		"ram_percent": 20,
		"discos": {"/dev/sda1": {"percent": 42.5, "mountpoint": "/"}},
		"net_sent": 4200,
		"net_recv": 8400,
		"net_sent_per_sec": 1,
		"net_recv_per_sec": 2
	}`, string(raw))
}

func TestQueryServiceHistory(t *testing.T) {
	ctx := context.Background()

	rows, err := NewQueryService(stubReader{}).History(ctx)
	require.NoError(t, err)
	raw, err := json.Marshal(rows)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(raw))

	rows, err = NewQueryService(stubReader{history: []models.MetricSample{*sampleAt(1), *sampleAt(2)}}).History(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestQueryServiceReadFailure(t *testing.T) {
	ctx := context.Background()
	broken := stubReader{err: errors.Join(ErrStoreRead, errors.New("disk I/O error"))}
	q := NewQueryService(broken)

	_, err := q.Latest(ctx)
	assert.ErrorIs(t, err, ErrStoreRead)

	rows, err := q.History(ctx)
	assert.ErrorIs(t, err, ErrStoreRead)
	assert.Nil(t, rows)
}

func TestQueryServiceOverStore(t *testing.T) {
	store := newTestStore(t)
	q := NewQueryService(store)
	ctx := context.Background()

	res, err := q.Latest(ctx)
	require.NoError(t, err)
	assert.True(t, res.Empty())

	require.NoError(t, store.Upsert(ctx, sampleAt(7)))
	res, err = q.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), res.Sample.Timestamp)
}
