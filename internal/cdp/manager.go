package cdp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mafredri/cdp"
	"github.com/mafredri/cdp/devtool"
	"github.com/mafredri/cdp/protocol/runtime"
	"github.com/mafredri/cdp/rpcc"

	"atsassist/internal/logger"
	"atsassist/pkg/domain"
)

// ErrNoTarget 指定标签页不存在
var ErrNoTarget = errors.New("no such target")

const defaultDialTimeout = 3 * time.Second

// Manager 通过 DevTools 协议访问浏览器标签页
type Manager struct {
	devtoolsURL string
	dt          *devtool.DevTools
	dialTimeout time.Duration
	log         logger.Logger
}

// New 创建管理器，devtoolsURL 形如 http://127.0.0.1:9222
func New(devtoolsURL string, l logger.Logger) *Manager {
	if l == nil {
		l = logger.NewNop()
	}
	return &Manager{
		devtoolsURL: devtoolsURL,
		dt:          devtool.New(devtoolsURL),
		dialTimeout: defaultDialTimeout,
		log:         l,
	}
}

// ListTabs 列出所有页面类型的目标
func (m *Manager) ListTabs(ctx context.Context) ([]domain.TabInfo, error) {
	targets, err := m.listPages(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.TabInfo, 0, len(targets))
	for _, t := range targets {
		out = append(out, ToTabInfo(t))
	}
	return out, nil
}

func (m *Manager) listPages(ctx context.Context) ([]*devtool.Target, error) {
	targets, err := m.dt.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list targets from %s: %w", m.devtoolsURL, err)
	}
	pages := targets[:0]
	for _, t := range targets {
		if t.Type == devtool.Page && t.WebSocketDebuggerURL != "" {
			pages = append(pages, t)
		}
	}
	return pages, nil
}

// Dial 连接指定标签页
func (m *Manager) Dial(ctx context.Context, tab domain.TargetID) (*TabConn, error) {
	targets, err := m.listPages(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range targets {
		if domain.TargetID(t.ID) == tab {
			return m.dialTarget(ctx, t)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoTarget, tab)
}

// Evaluate 连接标签页执行一次表达式后断开
func (m *Manager) Evaluate(ctx context.Context, tab domain.TargetID, expr string) (json.RawMessage, error) {
	conn, err := m.Dial(ctx, tab)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return conn.Evaluate(ctx, expr)
}

func (m *Manager) dialTarget(ctx context.Context, t *devtool.Target) (*TabConn, error) {
	dctx, cancel := context.WithTimeout(ctx, m.dialTimeout)
	defer cancel()
	conn, err := rpcc.DialContext(dctx, t.WebSocketDebuggerURL)
	if err != nil {
		return nil, fmt.Errorf("dial target %s: %w", t.ID, err)
	}
	m.log.Debug("已连接标签页", "target", t.ID, "url", t.URL)
	return &TabConn{id: domain.TargetID(t.ID), conn: conn, client: cdp.NewClient(conn)}, nil
}

// TabConn 单个标签页的协议连接
type TabConn struct {
	id     domain.TargetID
	conn   *rpcc.Conn
	client *cdp.Client
}

// ID 标签页ID
func (c *TabConn) ID() domain.TargetID { return c.id }

// Evaluate 在页面中执行表达式并按值返回结果
func (c *TabConn) Evaluate(ctx context.Context, expr string) (json.RawMessage, error) {
	reply, err := c.client.Runtime.Evaluate(ctx, runtime.NewEvaluateArgs(expr).SetReturnByValue(true))
	if err != nil {
		return nil, err
	}
	if reply.ExceptionDetails != nil {
		return nil, fmt.Errorf("evaluate in %s: %s", c.id, reply.ExceptionDetails.Text)
	}
	return reply.Result.Value, nil
}

// Href 读取页面当前地址
func (c *TabConn) Href(ctx context.Context) (string, error) {
	raw, err := c.Evaluate(ctx, "location.href")
	if err != nil {
		return "", err
	}
	var href string
	if err := json.Unmarshal(raw, &href); err != nil {
		return "", fmt.Errorf("decode location.href: %w", err)
	}
	return href, nil
}

// Close 关闭连接
func (c *TabConn) Close() error {
	return c.conn.Close()
}
