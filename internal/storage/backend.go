package storage

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("key not found")
	ErrClosed   = errors.New("backend closed")
)

// Record 一条带版本号的键值记录，Deleted 为删除墓碑
type Record struct {
	Key       string
	Value     []byte
	Revision  int64
	Deleted   bool
	UpdatedAt time.Time
}

// Backend 持久化键值后端，值均为 JSON 原文
type Backend interface {
	// Load 读取键值，不存在时返回 ErrNotFound
	Load(ctx context.Context, key string) ([]byte, error)

	// Save 无条件覆盖写入，返回新版本号
	Save(ctx context.Context, key string, value []byte) (int64, error)

	// Delete 删除键，返回新版本号
	Delete(ctx context.Context, key string) (int64, error)

	// Truncate 清空全部键，返回被删除的记录
	Truncate(ctx context.Context) ([]Record, error)

	// Changes 返回版本号大于 since 的记录（含墓碑）
	Changes(ctx context.Context, since int64) ([]Record, error)

	Close() error
}
