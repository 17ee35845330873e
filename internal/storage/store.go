package storage

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"atsassist/internal/logger"
)

// Change 一次键值变更通知，Removed 为 true 时 Value 为空
type Change struct {
	Key      string
	Value    json.RawMessage
	Removed  bool
	Revision int64
	External bool
}

// ChangeFunc 变更回调
type ChangeFunc func(Change)

// Store 带类型读写与变更订阅的键值存储
//
// 所有操作都不会返回错误：失败会被记录日志，并以 false 的形式告知调用方，
// 调用方应把失败视为"使用默认值"。
type Store struct {
	backend Backend
	log     logger.Logger

	// wmu 保证本地写入与其版本登记对 poll 原子可见
	wmu sync.Mutex

	mu       sync.Mutex
	subs     map[int]ChangeFunc
	nextSub  int
	watching bool
	lastRev  int64
	local    map[int64]struct{}
}

// New 创建存储服务
func New(backend Backend, l logger.Logger) *Store {
	if l == nil {
		l = logger.NewNop()
	}
	return &Store{
		backend: backend,
		log:     l,
		subs:    make(map[int]ChangeFunc),
		local:   make(map[int64]struct{}),
	}
}

// Get 读取键并解码到 out，键不存在或失败时返回 false
func (s *Store) Get(ctx context.Context, key string, out any) bool {
	raw, err := s.backend.Load(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false
	}
	if err != nil {
		s.log.Err(err, "读取存储失败", "key", key)
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		s.log.Err(err, "解码存储值失败", "key", key)
		return false
	}
	return true
}

// GetAs 泛型读取
func GetAs[T any](ctx context.Context, s *Store, key string) (T, bool) {
	var v T
	ok := s.Get(ctx, key, &v)
	return v, ok
}

// GetRaw 读取原始 JSON
func (s *Store) GetRaw(ctx context.Context, key string) (json.RawMessage, bool) {
	var raw json.RawMessage
	if !s.Get(ctx, key, &raw) {
		return nil, false
	}
	return raw, true
}

// Set 无条件覆盖写入
func (s *Store) Set(ctx context.Context, key string, value any) bool {
	raw, err := json.Marshal(value)
	if err != nil {
		s.log.Err(err, "编码存储值失败", "key", key)
		return false
	}
	s.wmu.Lock()
	rev, err := s.backend.Save(ctx, key, raw)
	if err != nil {
		s.wmu.Unlock()
		s.log.Err(err, "写入存储失败", "key", key)
		return false
	}
	s.markLocal(rev)
	s.wmu.Unlock()
	s.notify(Change{Key: key, Value: raw, Revision: rev})
	return true
}

// Remove 删除键
func (s *Store) Remove(ctx context.Context, key string) bool {
	s.wmu.Lock()
	rev, err := s.backend.Delete(ctx, key)
	if err != nil {
		s.wmu.Unlock()
		s.log.Err(err, "删除存储键失败", "key", key)
		return false
	}
	s.markLocal(rev)
	s.wmu.Unlock()
	s.notify(Change{Key: key, Removed: true, Revision: rev})
	return true
}

// Clear 清空全部键
func (s *Store) Clear(ctx context.Context) bool {
	s.wmu.Lock()
	removed, err := s.backend.Truncate(ctx)
	if err != nil {
		s.wmu.Unlock()
		s.log.Err(err, "清空存储失败")
		return false
	}
	for _, r := range removed {
		s.markLocal(r.Revision)
	}
	s.wmu.Unlock()
	for _, r := range removed {
		s.notify(Change{Key: r.Key, Removed: true, Revision: r.Revision})
	}
	return true
}

// OnChange 订阅变更，返回取消订阅函数
func (s *Store) OnChange(fn ChangeFunc) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// Watch 轮询后端，把其他进程写入的变更转发给订阅者，直到 ctx 结束
func (s *Store) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	if err := s.begin(ctx); err != nil {
		s.log.Err(err, "初始化变更游标失败")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.poll(ctx); err != nil && ctx.Err() == nil {
				s.log.Err(err, "轮询存储变更失败")
			}
		}
	}
}

// begin 开始记录本地版本，并将游标移动到当前最新版本，避免重放历史
func (s *Store) begin(ctx context.Context) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	s.mu.Lock()
	s.watching = true
	since := s.lastRev
	s.mu.Unlock()
	rows, err := s.backend.Changes(ctx, since)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		if r.Revision > s.lastRev {
			s.lastRev = r.Revision
		}
	}
	s.pruneLocal()
	return nil
}

// poll 拉取一次外部变更，跳过本进程写入的版本
func (s *Store) poll(ctx context.Context) error {
	s.wmu.Lock()
	s.mu.Lock()
	since := s.lastRev
	s.mu.Unlock()

	rows, err := s.backend.Changes(ctx, since)
	if err != nil {
		s.wmu.Unlock()
		return err
	}
	external := make([]Change, 0, len(rows))
	s.mu.Lock()
	for _, r := range rows {
		if r.Revision > s.lastRev {
			s.lastRev = r.Revision
		}
		if _, mine := s.local[r.Revision]; mine {
			continue
		}
		external = append(external, Change{Key: r.Key, Value: r.Value, Removed: r.Deleted, Revision: r.Revision, External: true})
	}
	s.pruneLocal()
	s.mu.Unlock()
	s.wmu.Unlock()

	for _, c := range external {
		s.notify(c)
	}
	return nil
}

// markLocal 登记本进程写入的版本，调用方持有 wmu
func (s *Store) markLocal(rev int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watching {
		s.local[rev] = struct{}{}
	}
}

// pruneLocal 丢弃不晚于游标的本地版本，已被覆盖而未被观察到的版本也一并清理，调用方持有 mu
func (s *Store) pruneLocal() {
	for rev := range s.local {
		if rev <= s.lastRev {
			delete(s.local, rev)
		}
	}
}

// localCount 未被轮询确认的本地版本数
func (s *Store) localCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.local)
}

func (s *Store) notify(c Change) {
	s.mu.Lock()
	subs := make([]ChangeFunc, 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		s.safeCall(fn, c)
	}
}

func (s *Store) safeCall(fn ChangeFunc, c Change) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("变更回调异常", "key", c.Key, "panic", r)
		}
	}()
	fn(c)
}

// Close 关闭后端
func (s *Store) Close() error {
	return s.backend.Close()
}
