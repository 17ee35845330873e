package cdp

import (
	"context"
	"errors"
	"sync"

	"atsassist/internal/logger"
)

// NavigationSource 监听单个标签页的导航事件，包括同文档内的 history 导航
type NavigationSource struct {
	conn *TabConn
	log  logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewNavigationSource 基于已建立的标签页连接创建导航事件源
func NewNavigationSource(conn *TabConn, l logger.Logger) *NavigationSource {
	if l == nil {
		l = logger.NewNop()
	}
	return &NavigationSource{conn: conn, log: l}
}

// Start 启用 Page 域并订阅导航事件，每个事件触发一次 check
func (s *NavigationSource) Start(check func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return errors.New("navigation source already started")
	}
	ctx, cancel := context.WithCancel(context.Background())
	page := s.conn.client.Page
	if err := page.Enable(ctx); err != nil {
		cancel()
		return err
	}
	navigated, err := page.FrameNavigated(ctx)
	if err != nil {
		cancel()
		return err
	}
	within, err := page.NavigatedWithinDocument(ctx)
	if err != nil {
		navigated.Close()
		cancel()
		return err
	}
	s.cancel = cancel

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		defer navigated.Close()
		for {
			// 子框架导航同样触发检查，地址未变化时由 watcher 去重
			if _, err := navigated.Recv(); err != nil {
				s.stopped(ctx, err)
				return
			}
			check()
		}
	}()
	go func() {
		defer s.wg.Done()
		defer within.Close()
		for {
			if _, err := within.Recv(); err != nil {
				s.stopped(ctx, err)
				return
			}
			check()
		}
	}()
	return nil
}

func (s *NavigationSource) stopped(ctx context.Context, err error) {
	if ctx.Err() == nil {
		s.log.Debug("导航事件流结束", "target", s.conn.id, "error", err)
	}
}

// Stop 取消订阅并等待事件循环退出
func (s *NavigationSource) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
}

// URLReader 返回读取标签页当前地址的函数
func URLReader(conn *TabConn) func(context.Context) (string, error) {
	return conn.Href
}
