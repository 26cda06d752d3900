// Package datastore indexes feedback records in SQLite or MySQL so the
// dashboard can list and summarise them without scanning the log.
package datastore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Brownie44l1/anidex/internal/conf"
	"github.com/Brownie44l1/anidex/internal/errors"
	"github.com/Brownie44l1/anidex/internal/feedback"
	"github.com/Brownie44l1/anidex/internal/logging"
)

const defaultRecentLimit = 50

// Store is a gorm-backed feedback index. It implements feedback.Sink.
type Store struct {
	DB   *gorm.DB
	kind string
}

// Open connects to the configured database and migrates the schema.
func Open(settings conf.DatastoreSettings) (*Store, error) {
	var dialector gorm.Dialector
	var target string

	switch settings.Type {
	case conf.StoreSQLite:
		target = settings.SQLite.Path
		if target != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return nil, dbError(err, "sqlite", "create directory")
			}
		}
		dialector = sqlite.Open(target)
	case conf.StoreMySQL:
		m := settings.MySQL
		target = fmt.Sprintf("%s:%d/%s", m.Host, m.Port, m.Database)
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			m.Username, m.Password, m.Host, m.Port, m.Database)
		dialector = mysql.Open(dsn)
	default:
		return nil, errors.Newf("unsupported datastore type %q", settings.Type).
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: newGormLogger()})
	if err != nil {
		return nil, dbError(err, settings.Type, "open")
	}
	if err := db.AutoMigrate(&FeedbackEntry{}); err != nil {
		return nil, dbError(err, settings.Type, "migrate")
	}

	logging.ForService("datastore").Info("feedback index ready", "type", settings.Type, "target", target)
	return &Store{DB: db, kind: settings.Type}, nil
}

func dbError(err error, kind, op string) error {
	return errors.New(fmt.Errorf("datastore %s failed: %w", op, err)).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("type", kind).
		Context("operation", op).
		Build()
}

// Name implements feedback.Sink.
func (s *Store) Name() string { return "datastore" }

// Publish implements feedback.Sink.
func (s *Store) Publish(ctx context.Context, rec feedback.Record, _ []byte) error {
	return s.Save(ctx, rec)
}

// Save inserts one record.
func (s *Store) Save(ctx context.Context, rec feedback.Record) error {
	entry := entryFromRecord(rec)
	if err := s.DB.WithContext(ctx).Create(&entry).Error; err != nil {
		return dbError(err, s.kind, "save")
	}
	return nil
}

// Recent returns the newest records first. A non-positive limit uses the default.
func (s *Store) Recent(ctx context.Context, limit int) ([]feedback.Record, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	var entries []FeedbackEntry
	err := s.DB.WithContext(ctx).
		Order("timestamp DESC").Order("id DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, dbError(err, s.kind, "recent")
	}
	out := make([]feedback.Record, len(entries))
	for i, e := range entries {
		out[i] = e.record()
	}
	return out, nil
}

// Stats returns confirmed and corrected counts per asserted label, sorted by label.
func (s *Store) Stats(ctx context.Context) ([]LabelStats, error) {
	var rows []struct {
		AssertedLabel string
		Outcome       string
		Count         int64
	}
	err := s.DB.WithContext(ctx).
		Model(&FeedbackEntry{}).
		Select("asserted_label, outcome, COUNT(*) AS count").
		Group("asserted_label, outcome").
		Order("asserted_label").
		Scan(&rows).Error
	if err != nil {
		return nil, dbError(err, s.kind, "stats")
	}

	var out []LabelStats
	for _, r := range rows {
		if len(out) == 0 || out[len(out)-1].Label != r.AssertedLabel {
			out = append(out, LabelStats{Label: r.AssertedLabel})
		}
		switch feedback.Outcome(r.Outcome) {
		case feedback.OutcomeConfirmed:
			out[len(out)-1].Confirmed += r.Count
		case feedback.OutcomeCorrected:
			out[len(out)-1].Corrected += r.Count
		}
	}
	return out, nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to retrieve generic DB object: %w", err)
	}
	return sqlDB.Close()
}

// slogWriter routes gorm's logger into slog.
type slogWriter struct {
	log *slog.Logger
}

func (w slogWriter) Printf(format string, args ...any) {
	w.log.Warn(fmt.Sprintf(format, args...))
}

func newGormLogger() logger.Interface {
	return logger.New(slogWriter{log: logging.ForService("datastore")}, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}
