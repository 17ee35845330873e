package session

import (
	"io"
	"sort"
	"sync"

	"atsassist/internal/logger"
	"atsassist/internal/watcher"
	"atsassist/pkg/domain"
)

// Session 单个标签页的页面监视会话
type Session struct {
	TabID   domain.TargetID
	Watcher *watcher.Watcher
	closer  io.Closer
}

// Context 最近一次检测到的页面上下文
func (s *Session) Context() domain.PageContext {
	return s.Watcher.Current()
}

func (s *Session) close(l logger.Logger) {
	s.Watcher.Stop()
	if s.closer == nil {
		return
	}
	if err := s.closer.Close(); err != nil {
		l.Debug("关闭标签页连接失败", "target", string(s.TabID), "error", err)
	}
}

// Manager 标签页会话注册表
type Manager struct {
	mu       sync.RWMutex
	sessions map[domain.TargetID]*Session
	log      logger.Logger
}

// NewManager 创建会话管理器
func NewManager(l logger.Logger) *Manager {
	if l == nil {
		l = logger.NewNop()
	}
	return &Manager{
		sessions: make(map[domain.TargetID]*Session),
		log:      l,
	}
}

// Create 注册会话，同一标签页的旧会话会被停止
func (m *Manager) Create(id domain.TargetID, w *watcher.Watcher, closer io.Closer) *Session {
	s := &Session{TabID: id, Watcher: w, closer: closer}

	m.mu.Lock()
	old := m.sessions[id]
	m.sessions[id] = s
	m.mu.Unlock()

	if old != nil {
		old.close(m.log)
	}
	m.log.Info("创建标签页会话", "target", string(id))
	return s
}

// Get 获取会话
func (m *Manager) Get(id domain.TargetID) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Delete 停止并移除会话
func (m *Manager) Delete(id domain.TargetID) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return
	}
	s.close(m.log)
	m.log.Info("销毁标签页会话", "target", string(id))
}

// List 返回所有活动会话，按标签页ID排序
func (m *Manager) List() []*Session {
	m.mu.RLock()
	list := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		list = append(list, s)
	}
	m.mu.RUnlock()
	sort.Slice(list, func(i, j int) bool { return list[i].TabID < list[j].TabID })
	return list
}

// Contexts 各标签页最近一次检测结果
func (m *Manager) Contexts() map[domain.TargetID]domain.PageContext {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[domain.TargetID]domain.PageContext, len(m.sessions))
	for id, s := range m.sessions {
		out[id] = s.Context()
	}
	return out
}

// Close 停止所有会话
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[domain.TargetID]*Session)
	m.mu.Unlock()
	for _, s := range sessions {
		s.close(m.log)
	}
}
