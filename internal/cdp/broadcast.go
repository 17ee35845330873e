package cdp

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"atsassist/internal/logger"
	"atsassist/internal/messaging"
)

const (
	defaultTabTimeout = 2 * time.Second
	maxParallelTabs   = 8
)

// Broadcaster 向所有标签页广播通知，单个标签页失败不影响其它标签页
type Broadcaster struct {
	m          *Manager
	log        logger.Logger
	tabTimeout time.Duration
}

// NewBroadcaster 创建广播器
func NewBroadcaster(m *Manager, l logger.Logger) *Broadcaster {
	if l == nil {
		l = logger.NewNop()
	}
	return &Broadcaster{m: m, log: l, tabTimeout: defaultTabTimeout}
}

// Broadcast 并发投递通知并等待全部完成
func (b *Broadcaster) Broadcast(ctx context.Context, n messaging.Notification) messaging.BroadcastResult {
	script, err := NotifyScript(n)
	if err != nil {
		b.log.Err(err, "生成通知脚本失败", "type", n.Type)
		return messaging.BroadcastResult{}
	}
	targets, err := b.m.listPages(ctx)
	if err != nil {
		b.log.Err(err, "获取标签页列表失败")
		return messaging.BroadcastResult{}
	}

	var delivered, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelTabs)
	for _, t := range targets {
		t := t
		g.Go(func() error {
			tctx, cancel := context.WithTimeout(gctx, b.tabTimeout)
			defer cancel()
			conn, err := b.m.dialTarget(tctx, t)
			if err != nil {
				failed.Add(1)
				b.log.Warn("通知标签页失败", "target", t.ID, "error", err)
				return nil
			}
			defer conn.Close()
			if _, err := conn.Evaluate(tctx, script); err != nil {
				failed.Add(1)
				b.log.Warn("通知标签页失败", "target", t.ID, "error", err)
				return nil
			}
			delivered.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	res := messaging.BroadcastResult{Delivered: int(delivered.Load()), Failed: int(failed.Load())}
	b.log.Debug("广播完成", "type", n.Type, "delivered", res.Delivered, "failed", res.Failed)
	return res
}
