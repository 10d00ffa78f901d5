// Package archive keeps finished runs in a local SQLite database so that a
// map can be rebuilt from any past move log.
package archive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cjeanneret/MazeGo/internal/logic/mapping"
	"github.com/cjeanneret/MazeGo/internal/logic/movelog"
)

// ErrRunNotFound is returned when no run has the requested ID.
var ErrRunNotFound = errors.New("run not found")

// Run is one archived exploration.
type Run struct {
	ID           string `gorm:"primaryKey;size:36"`
	Team         string
	MapNumber    int
	Cargo        string
	StartedAt    time.Time `gorm:"index"`
	FinishedAt   time.Time
	UnitLength   float64
	Width        int
	Height       int
	OriginColumn int
	Records      int
	Error        string

	Moves   []MoveRecord   `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE"`
	Hazards []HazardRecord `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE"`
}

// MoveRecord is one entry of a run's move log.
type MoveRecord struct {
	ID    uint   `gorm:"primaryKey"`
	RunID string `gorm:"index;size:36"`
	Seq   int
	Code  int
	Value float64
}

// HazardRecord is a hazard located on a run's map.
type HazardRecord struct {
	ID    uint   `gorm:"primaryKey"`
	RunID string `gorm:"index;size:36"`
	Kind  string
	Value float64
	Row   int
	Col   int
	X     float64
	Y     float64
}

// Models lists the tables managed by the archive.
var Models = []any{&Run{}, &MoveRecord{}, &HazardRecord{}}

// RunInfo describes a run being archived.
type RunInfo struct {
	Team       string
	MapNumber  int
	Cargo      string
	StartedAt  time.Time
	FinishedAt time.Time
	UnitLength float64
	Err        error // error that ended the run, if any
}

// Store is the run archive.
type Store struct {
	db  *gorm.DB
	log zerolog.Logger
}

// Open opens (or creates) the archive at path. An empty path opens an
// in-memory database.
func Open(path string, log zerolog.Logger) (*Store, error) {
	dsn := path
	if dsn == "" {
		dsn = "file::memory:"
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		CreateBatchSize:        500,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open archive %q: %w", path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sql interface: %w", err)
	}
	// in-memory databases are per connection
	sqlDB.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON;",
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
	} {
		if err := db.Exec(pragma).Error; err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("error setting PRAGMA: %w", err)
		}
	}

	if err := db.AutoMigrate(Models...); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate archive: %w", err)
	}

	s := &Store{db: db, log: log.With().Str("component", "archive").Logger()}
	if path == "" {
		s.log.Info().Msg("Using in-memory archive")
	} else {
		s.log.Info().Str("path", path).Msg("Using SQLite archive")
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveRun stores a run with its move log and, when m is not nil, its map
// summary and hazards. It returns the new run ID.
func (s *Store) SaveRun(ctx context.Context, info RunInfo, l movelog.Log, m *mapping.Map) (string, error) {
	run := Run{
		ID:         uuid.NewString(),
		Team:       info.Team,
		MapNumber:  info.MapNumber,
		Cargo:      info.Cargo,
		StartedAt:  info.StartedAt,
		FinishedAt: info.FinishedAt,
		UnitLength: info.UnitLength,
		Records:    len(l),
		Moves:      make([]MoveRecord, 0, len(l)),
	}
	if info.Err != nil {
		run.Error = info.Err.Error()
	}
	for i, rec := range l {
		run.Moves = append(run.Moves, MoveRecord{Seq: i, Code: int(rec.Code), Value: rec.Value})
	}
	if m != nil {
		run.Width = m.Width()
		run.Height = m.Height()
		run.OriginColumn = m.OriginColumn()
		for _, hz := range m.Hazards() {
			run.Hazards = append(run.Hazards, HazardRecord{
				Kind:  hz.Kind.String(),
				Value: hz.Value,
				Row:   hz.Row,
				Col:   hz.Col,
				X:     hz.X,
				Y:     hz.Y,
			})
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&run).Error
	})
	if err != nil {
		return "", fmt.Errorf("save run: %w", err)
	}

	s.log.Info().
		Str("run", run.ID).
		Int("map", run.MapNumber).
		Int("records", run.Records).
		Int("hazards", len(run.Hazards)).
		Msg("Run archived")
	return run.ID, nil
}

// GetRun returns a run with its hazards, without the move log.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	var run Run
	err := s.db.WithContext(ctx).Preload("Hazards").First(&run, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run %s: %w", id, err)
	}
	return run, nil
}

// LoadLog returns the move log of a run in its original order.
func (s *Store) LoadLog(ctx context.Context, id string) (movelog.Log, error) {
	if _, err := s.GetRun(ctx, id); err != nil {
		return nil, err
	}

	var moves []MoveRecord
	err := s.db.WithContext(ctx).Where("run_id = ?", id).Order("seq").Find(&moves).Error
	if err != nil {
		return nil, fmt.Errorf("load moves of %s: %w", id, err)
	}

	l := make(movelog.Log, 0, len(moves))
	for _, mv := range moves {
		l = append(l, movelog.Record{Code: movelog.Code(mv.Code), Value: mv.Value})
	}
	s.log.Debug().Str("run", id).Int("records", len(l)).Msg("Move log loaded")
	return l, nil
}

// ListRuns returns all runs, most recent first.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	var runs []Run
	err := s.db.WithContext(ctx).Order("started_at DESC").Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// DeleteRun removes a run and its records.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("run_id = ?", id).Delete(&MoveRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("run_id = ?", id).Delete(&HazardRecord{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&Run{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return nil
	})
}
