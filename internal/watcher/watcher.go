package watcher

import (
	"context"
	"errors"
	"sync"

	"atsassist/internal/detector"
	"atsassist/internal/logger"
	"atsassist/pkg/domain"
)

// Config 监视器配置
type Config struct {
	URL      func(ctx context.Context) (string, error)
	Sources  []Source
	OnChange func(domain.PageContext)
	Logger   logger.Logger
}

// Watcher 在导航信号到来时读取地址，地址变化后重新检测页面
type Watcher struct {
	cfg Config
	log logger.Logger

	checkMu sync.Mutex

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	started []Source
	stopped bool
	lastURL string
	current domain.PageContext
}

// New 创建监视器
func New(cfg Config) (*Watcher, error) {
	if cfg.URL == nil {
		return nil, errors.New("watcher: URL reader is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNop()
	}
	return &Watcher{cfg: cfg, log: cfg.Logger}, nil
}

// Start 启动所有来源并立即检查一次，任一来源启动失败时回滚已启动的来源
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return errors.New("watcher: already stopped")
	}
	if w.ctx != nil {
		w.mu.Unlock()
		return errors.New("watcher: already started")
	}
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	for _, src := range w.cfg.Sources {
		if err := src.Start(w.Check); err != nil {
			w.Stop()
			return err
		}
		w.mu.Lock()
		if w.stopped {
			// Stop 已取走来源快照
			w.mu.Unlock()
			src.Stop()
			return errors.New("watcher: stopped during start")
		}
		w.started = append(w.started, src)
		w.mu.Unlock()
	}
	w.Check()
	return nil
}

// Check 读取当前地址，与上次不同时检测页面并回调
func (w *Watcher) Check() {
	w.checkMu.Lock()
	defer w.checkMu.Unlock()

	w.mu.Lock()
	ctx, stopped := w.ctx, w.stopped
	last := w.lastURL
	w.mu.Unlock()
	if stopped || ctx == nil {
		return
	}

	url, err := w.cfg.URL(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Warn("读取页面地址失败", "error", err)
		}
		return
	}
	if url == last {
		return
	}

	pc := detector.Detect(url)
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.lastURL = url
	w.current = pc
	w.mu.Unlock()

	w.log.Debug("页面地址变化", "url", url, "platform", pc.Platform, "pageType", string(pc.PageType))
	if w.cfg.OnChange != nil {
		w.cfg.OnChange(pc)
	}
}

// Current 最近一次检测结果
func (w *Watcher) Current() domain.PageContext {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Stop 停止所有来源，可重复调用
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	started := w.started
	w.started = nil
	cancel := w.cancel
	w.mu.Unlock()

	// 先取消进行中的地址读取，来源的 Stop 会等待其回调返回
	if cancel != nil {
		cancel()
	}
	for _, src := range started {
		src.Stop()
	}
}
