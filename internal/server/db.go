// Package server manages the TalonPulse storage layer and read API.
// Samples are kept in a single SQLite table through GORM.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/vesaa/talonpulse/internal/models"
)

var (
	// ErrNoMetrics means the store is readable but holds no samples yet.
	ErrNoMetrics = errors.New("no metrics recorded yet")
	// ErrStoreRead wraps any failure to query the store.
	ErrStoreRead = errors.New("store read failed")
	// ErrStoreWrite wraps any failure to persist a sample.
	ErrStoreWrite = errors.New("store write failed")
)

// Store is the durable time series of samples, keyed by timestamp.
// It holds one long-lived handle. Writers are serialized by a mutex; SQLite
// WAL mode lets readers proceed while a write transaction is open.
type Store struct {
	db  *gorm.DB
	mu  sync.Mutex
	log *slog.Logger
}

// OpenStore opens (creating if needed) the SQLite database at path.
func OpenStore(path string, log *slog.Logger) (*Store, error) {
	log = log.With("component", "store")

	db, err := gorm.Open(sqlite.Open(dsn(path)), &gorm.Config{
		Logger: logger.New(slog.NewLogLogger(log.Handler(), slog.LevelWarn), logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	log.Info("database opened", "path", path)
	return &Store{db: db, log: log}, nil
}

// dsn appends the pragmas every connection in the pool needs.
func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// InitSchema creates the metrics table if it does not exist. It is safe to
// call on every start.
func (s *Store) InitSchema() error {
	if err := s.db.AutoMigrate(&models.MetricSample{}); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

// Upsert writes sample, replacing any row with the same timestamp.
func (s *Store) Upsert(ctx context.Context, sample *models.MetricSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "timestamp"}},
			UpdateAll: true,
		}).
		Create(sample).Error
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreWrite, err)
	}
	return nil
}

// Latest returns the sample with the highest timestamp, or ErrNoMetrics.
func (s *Store) Latest(ctx context.Context) (*models.MetricSample, error) {
	var rows []models.MetricSample
	err := s.db.WithContext(ctx).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "timestamp"}, Desc: true}).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreRead, err)
	}
	if len(rows) == 0 {
		return nil, ErrNoMetrics
	}
	normalize(&rows[0])
	return &rows[0], nil
}

// History returns every sample in ascending timestamp order. The result is
// never nil.
func (s *Store) History(ctx context.Context) ([]models.MetricSample, error) {
	var rows []models.MetricSample
	err := s.db.WithContext(ctx).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "timestamp"}}).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreRead, err)
	}
	if rows == nil {
		rows = []models.MetricSample{}
	}
	for i := range rows {
		normalize(&rows[i])
	}
	return rows, nil
}

// Count returns the number of stored samples.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.MetricSample{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreRead, err)
	}
	return n, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// normalize turns a "null" discos column into an empty map.
func normalize(m *models.MetricSample) {
	if m.Disks == nil {
		m.Disks = models.Disks{}
	}
}
