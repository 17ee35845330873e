package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"atsassist/internal/candidates"
	"atsassist/internal/cdp"
	"atsassist/internal/config"
	"atsassist/internal/logger"
	"atsassist/internal/messaging"
	"atsassist/internal/session"
	"atsassist/internal/state"
	"atsassist/internal/storage"
	"atsassist/pkg/domain"
)

const (
	eventBuffer     = 64
	shutdownTimeout = 5 * time.Second
)

// Options 服务组装参数，Backend 为空时按配置打开 sqlite
type Options struct {
	Config  *config.Config
	Backend storage.Backend
	Logger  logger.Logger
}

// Service 后台服务，持有存储、路由器、传输层与标签页监控
type Service struct {
	cfg   *config.Config
	log   logger.Logger
	store *storage.Store
	repo  *state.Repository

	transport *messaging.LocalTransport
	router    *messaging.Router
	tabs      *cdp.Manager
	sessions  *session.Manager
	monitor   *session.Monitor
	events    chan domain.PageEvent
}

// New 组装服务并写入初始状态
func New(opts Options) (*Service, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.NewConfig()
	}
	l := opts.Logger
	if l == nil {
		l = logger.NewNop()
	}

	backend := opts.Backend
	if backend == nil {
		b, err := storage.OpenSQLite(cfg.Sqlite.Dsn, cfg.Sqlite.Prefix, l)
		if err != nil {
			return nil, err
		}
		backend = b
	}

	s := &Service{
		cfg:    cfg,
		log:    l,
		store:  storage.New(backend, l),
		events: make(chan domain.PageEvent, eventBuffer),
	}
	s.repo = state.New(s.store, l)
	s.store.OnChange(func(c storage.Change) {
		if c.External {
			l.Debug("检测到外部存储变更", "key", c.Key, "revision", c.Revision)
		}
	})
	if !s.repo.Install(context.Background()) {
		l.Warn("写入初始状态失败，使用默认值运行")
	}

	rc := messaging.Config{State: s.repo, Logger: l}
	if cfg.DevTools.URL != "" {
		s.tabs = cdp.New(cfg.DevTools.URL, l)
		s.sessions = session.NewManager(l)
		monitor, err := session.NewMonitor(session.MonitorConfig{
			Tabs: s.tabs,
			Attacher: &session.CDPAttacher{
				Manager:      s.tabs,
				PollInterval: cfg.PollInterval(),
				Logger:       l,
			},
			Sessions:     s.sessions,
			State:        s.repo,
			ScanInterval: cfg.ScanInterval(),
			Events:       s.events,
			Logger:       l,
		})
		if err != nil {
			_ = s.store.Close()
			return nil, err
		}
		s.monitor = monitor
		rc.Notifier = cdp.NewBroadcaster(s.tabs, l)
		rc.Pages = s.sessions
	}
	if cfg.Candidates.BaseURL != "" {
		c, err := candidates.New(candidates.Options{
			BaseURL:  cfg.Candidates.BaseURL,
			OrgID:    cfg.Candidates.OrgID,
			Token:    cfg.Candidates.Token,
			CacheTTL: cfg.CacheTTL(),
			RetryMax: cfg.Candidates.RetryMax,
		}, s.repo, l)
		if err != nil {
			_ = s.store.Close()
			return nil, err
		}
		rc.Candidates = c
	}

	s.router = messaging.New(rc)
	s.transport = messaging.NewLocalTransport(l)
	s.transport.OnRequest(s.router.HandlerFunc())
	return s, nil
}

// Send 在进程内发送消息
func (s *Service) Send(ctx context.Context, msg domain.Message) (domain.Response, error) {
	return s.transport.SendRequest(ctx, msg)
}

// ListTabs 列出浏览器标签页，未配置 DevTools 时返回错误
func (s *Service) ListTabs(ctx context.Context) ([]domain.TabInfo, error) {
	if s.tabs == nil {
		return nil, errors.New("devtools url is not configured")
	}
	return s.tabs.ListTabs(ctx)
}

// Events 页面变化事件，消费者跟不上时事件会被丢弃
func (s *Service) Events() <-chan domain.PageEvent {
	return s.events
}

// State 状态仓库
func (s *Service) State() *state.Repository {
	return s.repo
}

// Run 启动 HTTP 监听、存储变更轮询与标签页监控，直到 ctx 结束
func (s *Service) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Server.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Server.Listen, err)
	}
	return s.serve(ctx, ln)
}

func (s *Service) serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           messaging.NewHTTPHandler(s.transport, s.log),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.log.Info("后台服务已启动", "listen", ln.Addr().String(), "devtools", s.cfg.DevTools.URL)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	g.Go(func() error {
		s.store.Watch(gctx, s.cfg.WatchInterval())
		return nil
	})
	if s.monitor != nil {
		g.Go(func() error { return s.monitor.Run(gctx) })
	}

	err := g.Wait()
	s.log.Info("后台服务已停止")
	return err
}

// Close 关闭传输层与存储
func (s *Service) Close() error {
	s.transport.Close()
	return s.store.Close()
}
