package state

import (
	"context"
	"encoding/json"
	"time"

	"atsassist/internal/logger"
	"atsassist/internal/storage"
	"atsassist/pkg/domain"
)

// 持久化键
const (
	KeySidebarState        = "sidebarState"
	KeySelectedCandidateID = "selectedCandidateId"
	KeyCandidatesCache     = "candidatesCache"
	KeyTheme               = "theme"

	KeyAutoOpenSidebar = "autoOpenSidebar"
	KeyShowScoreBadges = "showScoreBadges"

	legacyKeyAutoOpen   = "autoOpen"
	legacyKeyShowScores = "showScores"
)

// Repository 基于 Store 的类型化状态访问
type Repository struct {
	store *storage.Store
	log   logger.Logger
	now   func() time.Time
}

// New 创建状态仓库
func New(store *storage.Store, l logger.Logger) *Repository {
	if l == nil {
		l = logger.NewNop()
	}
	return &Repository{store: store, log: l, now: time.Now}
}

// Store 返回底层存储
func (r *Repository) Store() *storage.Store { return r.store }

// Install 首次启动时写入默认值，已存在的键保持不变
func (r *Repository) Install(ctx context.Context) bool {
	if _, ok := r.store.GetRaw(ctx, KeySidebarState); ok {
		r.log.Debug("侧边栏状态已存在，跳过初始化")
		return true
	}
	ok := r.store.Set(ctx, KeySidebarState, domain.DefaultSidebarState())
	if ok {
		r.log.Info("已写入默认侧边栏状态")
	}
	return ok
}

// SidebarState 读取侧边栏状态，缺失或失败时返回默认值与 false
func (r *Repository) SidebarState(ctx context.Context) (domain.SidebarState, bool) {
	st, ok := storage.GetAs[domain.SidebarState](ctx, r.store, KeySidebarState)
	if !ok {
		return domain.DefaultSidebarState(), false
	}
	return st, true
}

// SidebarStateRaw 读取侧边栏状态原始 JSON，缺失时返回默认值编码
func (r *Repository) SidebarStateRaw(ctx context.Context) json.RawMessage {
	if raw, ok := r.store.GetRaw(ctx, KeySidebarState); ok {
		return raw
	}
	raw, _ := json.Marshal(domain.DefaultSidebarState())
	return raw
}

// SaveSidebarState 覆盖写入侧边栏状态
func (r *Repository) SaveSidebarState(ctx context.Context, st domain.SidebarState) bool {
	return r.store.Set(ctx, KeySidebarState, st)
}

// SelectedCandidateID 当前选中的候选人
func (r *Repository) SelectedCandidateID(ctx context.Context) (string, bool) {
	id, ok := storage.GetAs[*string](ctx, r.store, KeySelectedCandidateID)
	if !ok || id == nil {
		return "", false
	}
	return *id, true
}

// SetSelectedCandidateID 写入选中候选人，空串写入 null
func (r *Repository) SetSelectedCandidateID(ctx context.Context, id string) bool {
	if id == "" {
		return r.store.Set(ctx, KeySelectedCandidateID, nil)
	}
	return r.store.Set(ctx, KeySelectedCandidateID, id)
}

// Theme 当前主题，默认 light
func (r *Repository) Theme(ctx context.Context) domain.Theme {
	t, ok := storage.GetAs[domain.Theme](ctx, r.store, KeyTheme)
	if !ok || (t != domain.ThemeLight && t != domain.ThemeDark) {
		return domain.ThemeLight
	}
	return t
}

// SetTheme 写入主题
func (r *Repository) SetTheme(ctx context.Context, t domain.Theme) bool {
	return r.store.Set(ctx, KeyTheme, t)
}

// AutoOpenSidebar 进入候选人页面时是否自动打开侧边栏
func (r *Repository) AutoOpenSidebar(ctx context.Context) bool {
	return r.boolSetting(ctx, KeyAutoOpenSidebar, legacyKeyAutoOpen, false)
}

// SetAutoOpenSidebar 写入自动打开设置
func (r *Repository) SetAutoOpenSidebar(ctx context.Context, v bool) bool {
	return r.store.Set(ctx, KeyAutoOpenSidebar, v)
}

// ShowScoreBadges 是否显示评分角标
func (r *Repository) ShowScoreBadges(ctx context.Context) bool {
	return r.boolSetting(ctx, KeyShowScoreBadges, legacyKeyShowScores, true)
}

// SetShowScoreBadges 写入评分角标设置
func (r *Repository) SetShowScoreBadges(ctx context.Context, v bool) bool {
	return r.store.Set(ctx, KeyShowScoreBadges, v)
}

// boolSetting 读取布尔设置，新键缺失时回退旧键
func (r *Repository) boolSetting(ctx context.Context, key, legacy string, def bool) bool {
	if v, ok := storage.GetAs[bool](ctx, r.store, key); ok {
		return v
	}
	if v, ok := storage.GetAs[bool](ctx, r.store, legacy); ok {
		r.log.Debug("使用旧版设置键", "key", key, "legacy", legacy)
		return v
	}
	return def
}

// CachedCandidate 读取未过期的候选人缓存
func (r *Repository) CachedCandidate(ctx context.Context, id string, ttl time.Duration) (json.RawMessage, bool) {
	cache, _ := storage.GetAs[map[string]domain.CachedCandidate](ctx, r.store, KeyCandidatesCache)
	entry, ok := cache[id]
	if !ok {
		return nil, false
	}
	if ttl > 0 && r.now().Sub(time.UnixMilli(entry.Timestamp)) > ttl {
		return nil, false
	}
	return entry.Data, true
}

// CacheCandidate 写入候选人缓存，同时清理已过期条目
func (r *Repository) CacheCandidate(ctx context.Context, id string, data json.RawMessage, ttl time.Duration) bool {
	cache, _ := storage.GetAs[map[string]domain.CachedCandidate](ctx, r.store, KeyCandidatesCache)
	if cache == nil {
		cache = make(map[string]domain.CachedCandidate)
	}
	now := r.now()
	if ttl > 0 {
		for k, e := range cache {
			if now.Sub(time.UnixMilli(e.Timestamp)) > ttl {
				delete(cache, k)
			}
		}
	}
	cache[id] = domain.CachedCandidate{Data: data, Timestamp: now.UnixMilli()}
	return r.store.Set(ctx, KeyCandidatesCache, cache)
}
