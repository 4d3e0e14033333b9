package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// entryRow 是 cache_entries 表的映射，(source, key) 组成主键。
type entryRow struct {
	Source    string `gorm:"column:source;type:text;primaryKey"`
	Key       string `gorm:"column:key;type:text;primaryKey"`
	Value     []byte `gorm:"column:value;type:blob;not null"`
	UpdatedAt string `gorm:"column:updated_at;type:text;not null"`
}

func (entryRow) TableName() string {
	return "cache_entries"
}

// NewSQLiteStore 打开（必要时创建）dsn 指向的 SQLite 文件，并迁移 cache_entries 表。
// dsn 支持普通路径或 file: URI，":memory:" 仅用于测试。
func NewSQLiteStore(dsn string, opts Options) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("sqlite dsn required")
	}
	if err := ensureSQLiteDirectory(dsn); err != nil {
		return nil, fmt.Errorf("ensure sqlite directory: %w", err)
	}

	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Discard,
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.AutoMigrate(&entryRow{}); err != nil {
		return nil, fmt.Errorf("migrate cache_entries: %w", err)
	}

	return &sqliteStore{db: db, opts: opts}, nil
}

type sqliteStore struct {
	db   *gorm.DB
	opts Options
}

func (s *sqliteStore) Get(ctx context.Context, locator Locator) (*Record, error) {
	if err := validateLocator(locator); err != nil {
		return nil, err
	}

	var row entryRow
	err := s.db.WithContext(ctx).
		Where("source = ? AND key = ?", locator.Source, locator.Key).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query cache entry: %w", err)
	}

	modTime, _ := time.Parse(time.RFC3339Nano, row.UpdatedAt)
	return &Record{
		Locator:   locator,
		Payload:   row.Value,
		SizeBytes: int64(len(row.Value)),
		ModTime:   modTime,
	}, nil
}

func (s *sqliteStore) Put(ctx context.Context, locator Locator, payload []byte) (*Record, error) {
	if err := validateLocator(locator); err != nil {
		return nil, err
	}
	if err := s.opts.admit(payload); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	row := entryRow{
		Source:    locator.Source,
		Key:       locator.Key,
		Value:     payload,
		UpdatedAt: now.Format(time.RFC3339Nano),
	}

	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "source"}, {Name: "key"}},
		DoUpdates: clause.Assignments(map[string]any{
			"value":      row.Value,
			"updated_at": row.UpdatedAt,
		}),
	}).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("upsert cache entry: %w", err)
	}

	return &Record{
		Locator:   locator,
		Payload:   payload,
		SizeBytes: int64(len(payload)),
		ModTime:   now,
	}, nil
}

func (s *sqliteStore) Remove(ctx context.Context, locator Locator) error {
	if err := validateLocator(locator); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).
		Where("source = ? AND key = ?", locator.Source, locator.Key).
		Delete(&entryRow{}).Error
	if err != nil {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	return nil
}

func (s *sqliteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func ensureSQLiteDirectory(dsn string) error {
	candidate := strings.TrimSpace(dsn)
	if candidate == ":memory:" {
		return nil
	}
	if strings.HasPrefix(strings.ToLower(candidate), "file:") {
		candidate = candidate[len("file:"):]
	}
	if idx := strings.Index(candidate, "?"); idx >= 0 {
		candidate = candidate[:idx]
	}
	if candidate == "" || candidate == ":memory:" {
		return nil
	}

	dir := filepath.Dir(candidate)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
