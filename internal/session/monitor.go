package session

import (
	"context"
	"errors"
	"time"

	"atsassist/internal/logger"
	"atsassist/internal/state"
	"atsassist/internal/watcher"
	"atsassist/pkg/domain"
)

const defaultScanInterval = 2 * time.Second

// MonitorConfig 标签页监控配置
type MonitorConfig struct {
	Tabs         TabLister
	Attacher     Attacher
	Sessions     *Manager
	State        *state.Repository
	ScanInterval time.Duration
	// Events 非阻塞发送，消费者跟不上时丢弃
	Events chan<- domain.PageEvent
	Now    func() time.Time
	Logger logger.Logger
}

// Monitor 定期扫描标签页，为新标签页建立会话并清理已关闭的标签页
type Monitor struct {
	cfg MonitorConfig
	log logger.Logger
}

// NewMonitor 创建监控器
func NewMonitor(cfg MonitorConfig) (*Monitor, error) {
	if cfg.Tabs == nil || cfg.Attacher == nil || cfg.Sessions == nil {
		return nil, errors.New("monitor: tabs, attacher and sessions are required")
	}
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = defaultScanInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNop()
	}
	return &Monitor{cfg: cfg, log: cfg.Logger}, nil
}

// Run 扫描直到 ctx 结束，退出时停止所有会话
func (m *Monitor) Run(ctx context.Context) error {
	defer m.cfg.Sessions.Close()

	if err := m.Scan(ctx); err != nil {
		m.log.Warn("扫描标签页失败", "error", err)
	}
	ticker := time.NewTicker(m.cfg.ScanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := m.Scan(ctx); err != nil && ctx.Err() == nil {
				m.log.Warn("扫描标签页失败", "error", err)
			}
		}
	}
}

// Scan 同步一次标签页列表与会话
func (m *Monitor) Scan(ctx context.Context) error {
	tabs, err := m.cfg.Tabs.ListTabs(ctx)
	if err != nil {
		return err
	}
	seen := make(map[domain.TargetID]bool, len(tabs))
	for _, tab := range tabs {
		seen[tab.ID] = true
		if _, ok := m.cfg.Sessions.Get(tab.ID); ok {
			continue
		}
		if err := m.attach(ctx, tab); err != nil {
			m.log.Warn("连接标签页失败", "target", string(tab.ID), "error", err)
		}
	}
	for _, s := range m.cfg.Sessions.List() {
		if !seen[s.TabID] {
			m.cfg.Sessions.Delete(s.TabID)
		}
	}
	return nil
}

func (m *Monitor) attach(ctx context.Context, tab domain.TabInfo) error {
	a, err := m.cfg.Attacher.Attach(ctx, tab)
	if err != nil {
		return err
	}
	w, err := watcher.New(watcher.Config{
		URL:      a.URL,
		Sources:  a.Sources,
		OnChange: func(pc domain.PageContext) { m.onChange(ctx, tab.ID, pc) },
		Logger:   m.log.With("target", string(tab.ID)),
	})
	if err == nil {
		err = w.Start(ctx)
	}
	if err != nil {
		if a.Closer != nil {
			_ = a.Closer.Close()
		}
		return err
	}
	m.cfg.Sessions.Create(tab.ID, w, a.Closer)
	return nil
}

func (m *Monitor) onChange(ctx context.Context, tab domain.TargetID, pc domain.PageContext) {
	evt := domain.PageEvent{Tab: tab, Context: pc, Timestamp: m.cfg.Now().UnixMilli()}
	if m.cfg.Events != nil {
		select {
		case m.cfg.Events <- evt:
		default:
			m.log.Debug("页面事件通道已满，丢弃事件", "target", string(tab))
		}
	}

	if pc.PageType != domain.PageCandidate || pc.EntityID == "" || m.cfg.State == nil {
		return
	}
	m.cfg.State.SetSelectedCandidateID(ctx, pc.EntityID)
	if !m.cfg.State.AutoOpenSidebar(ctx) {
		return
	}
	st, _ := m.cfg.State.SidebarState(ctx)
	id := pc.EntityID
	st.SelectedCandidateID = &id
	if !st.IsOpen {
		now := m.cfg.Now().UnixMilli()
		st.IsOpen = true
		st.LastOpenedAt = &now
	}
	if m.cfg.State.SaveSidebarState(ctx, st) {
		m.log.Info("候选人页面自动打开侧边栏", "target", string(tab), "candidate", id)
	}
}
