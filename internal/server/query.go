package server

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/vesaa/talonpulse/internal/models"
)

// Reader is the read side of the store.
type Reader interface {
	Latest(ctx context.Context) (*models.MetricSample, error)
	History(ctx context.Context) ([]models.MetricSample, error)
}

// LatestResult is the latest sample, or nothing when none is stored yet.
// An empty result encodes as {}.
type LatestResult struct {
	Sample *models.MetricSample
}

// Empty reports whether no sample exists yet.
func (r LatestResult) Empty() bool { return r.Sample == nil }

func (r LatestResult) MarshalJSON() ([]byte, error) {
	if r.Sample == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(r.Sample)
}

// QueryService is the read façade used by the HTTP layer. "No data yet" is
// an empty result; only store failures are returned as errors.
type QueryService struct {
	store Reader
}

func NewQueryService(store Reader) *QueryService {
	return &QueryService{store: store}
}

// Latest returns the most recent sample.
func (q *QueryService) Latest(ctx context.Context) (LatestResult, error) {
	m, err := q.store.Latest(ctx)
	if errors.Is(err, ErrNoMetrics) {
		return LatestResult{}, nil
	}
	if err != nil {
		return LatestResult{}, err
	}
	return LatestResult{Sample: m}, nil
}

// History returns all samples oldest first; empty (not nil) when there are none.
func (q *QueryService) History(ctx context.Context) ([]models.MetricSample, error) {
	rows, err := q.store.History(ctx)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []models.MetricSample{}
	}
	return rows, nil
}
