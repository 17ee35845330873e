package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	ilog "atsassist/internal/logger"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

// kvEntry 键值表行，表名为 <prefix>kv_entries
type kvEntry struct {
	Key       string `gorm:"primaryKey;size:191"`
	Value     []byte
	Revision  int64 `gorm:"index;not null"`
	Deleted   bool  `gorm:"not null;default:false"`
	UpdatedAt time.Time
}

// SQLiteBackend 基于 GORM + SQLite 的持久化后端，可被多个进程共享
type SQLiteBackend struct {
	db *gorm.DB
}

// OpenSQLite 打开数据库并迁移表结构
func OpenSQLite(dsn, prefix string, l ilog.Logger) (*SQLiteBackend, error) {
	if l == nil {
		l = ilog.NewNop()
	}
	db, err := gorm.Open(sqlite.Open(withPragmas(dsn)), &gorm.Config{
		Logger:         NewGormLogger(l),
		NamingStrategy: schema.NamingStrategy{TablePrefix: prefix},
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
	}
	if err := db.AutoMigrate(&kvEntry{}); err != nil {
		return nil, fmt.Errorf("migrate kv table: %w", err)
	}
	l.Info("存储已打开", "dsn", dsn, "prefix", prefix)
	return &SQLiteBackend{db: db}, nil
}

// withPragmas 追加忙等待与 WAL 设置，便于多进程并发访问
func withPragmas(dsn string) string {
	if strings.Contains(dsn, "_pragma=") || strings.Contains(dsn, ":memory:") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func (b *SQLiteBackend) Load(ctx context.Context, key string) ([]byte, error) {
	var row kvEntry
	err := b.db.WithContext(ctx).Where("key = ? AND deleted = ?", key, false).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.Value, nil
}

func (b *SQLiteBackend) Save(ctx context.Context, key string, value []byte) (int64, error) {
	return b.upsert(ctx, kvEntry{Key: key, Value: value})
}

func (b *SQLiteBackend) Delete(ctx context.Context, key string) (int64, error) {
	return b.upsert(ctx, kvEntry{Key: key, Deleted: true})
}

func (b *SQLiteBackend) upsert(ctx context.Context, row kvEntry) (int64, error) {
	err := b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rev, err := nextRevision(tx)
		if err != nil {
			return err
		}
		row.Revision = rev
		row.UpdatedAt = time.Now()
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "revision", "deleted", "updated_at"}),
		}).Create(&row).Error
	})
	if err != nil {
		return 0, err
	}
	return row.Revision, nil
}

func (b *SQLiteBackend) Truncate(ctx context.Context) ([]Record, error) {
	var removed []Record
	err := b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var live []kvEntry
		if err := tx.Where("deleted = ?", false).Order("key").Find(&live).Error; err != nil {
			return err
		}
		rev, err := nextRevision(tx)
		if err != nil {
			return err
		}
		now := time.Now()
		for _, row := range live {
			updates := map[string]any{"value": nil, "deleted": true, "revision": rev, "updated_at": now}
			if err := tx.Model(&kvEntry{}).Where("key = ?", row.Key).Updates(updates).Error; err != nil {
				return err
			}
			removed = append(removed, Record{Key: row.Key, Revision: rev, Deleted: true, UpdatedAt: now})
			rev++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

func (b *SQLiteBackend) Changes(ctx context.Context, since int64) ([]Record, error) {
	var rows []kvEntry
	if err := b.db.WithContext(ctx).Where("revision > ?", since).Order("revision asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		out = append(out, Record{Key: r.Key, Value: r.Value, Revision: r.Revision, Deleted: r.Deleted, UpdatedAt: r.UpdatedAt})
	}
	return out, nil
}

func (b *SQLiteBackend) Close() error {
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func nextRevision(tx *gorm.DB) (int64, error) {
	var rev int64
	if err := tx.Model(&kvEntry{}).Select("COALESCE(MAX(revision), 0) + 1").Scan(&rev).Error; err != nil {
		return 0, fmt.Errorf("next revision: %w", err)
	}
	return rev, nil
}
