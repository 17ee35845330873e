package session

import (
	"context"
	"io"
	"time"

	"atsassist/internal/cdp"
	"atsassist/internal/logger"
	"atsassist/internal/watcher"
	"atsassist/pkg/domain"
)

// Attachment 为标签页建立监视器所需的资源
type Attachment struct {
	URL     func(ctx context.Context) (string, error)
	Sources []watcher.Source
	Closer  io.Closer
}

// Attacher 连接标签页
type Attacher interface {
	Attach(ctx context.Context, tab domain.TabInfo) (Attachment, error)
}

// TabLister 列出浏览器标签页
type TabLister interface {
	ListTabs(ctx context.Context) ([]domain.TabInfo, error)
}

// CDPAttacher 通过 DevTools 连接标签页，导航事件与定时轮询同时作为来源
type CDPAttacher struct {
	Manager      *cdp.Manager
	PollInterval time.Duration
	Logger       logger.Logger
}

func (a *CDPAttacher) Attach(ctx context.Context, tab domain.TabInfo) (Attachment, error) {
	conn, err := a.Manager.Dial(ctx, tab.ID)
	if err != nil {
		return Attachment{}, err
	}
	return Attachment{
		URL: cdp.URLReader(conn),
		Sources: []watcher.Source{
			cdp.NewNavigationSource(conn, a.Logger),
			watcher.NewTicker(a.PollInterval),
		},
		Closer: conn,
	}, nil
}
