package messaging

import (
	"context"
	"sync"

	"atsassist/internal/logger"
	"atsassist/pkg/domain"
)

// HandlerFunc 请求处理函数，返回值即响应
type HandlerFunc func(ctx context.Context, msg domain.Message) domain.Response

// Sender 发送请求并等待对应响应
type Sender interface {
	SendRequest(ctx context.Context, msg domain.Message) (domain.Response, error)
}

// Receiver 注册请求处理函数
type Receiver interface {
	OnRequest(h HandlerFunc)
}

// Transport 双向消息通道
type Transport interface {
	Sender
	Receiver
}

type request struct {
	ctx   context.Context
	msg   domain.Message
	reply chan domain.Response
}

// LocalTransport 进程内通道，单个 goroutine 顺序处理请求
type LocalTransport struct {
	requests chan request
	done     chan struct{}
	once     sync.Once
	wg       sync.WaitGroup

	mu      sync.RWMutex
	handler HandlerFunc
	log     logger.Logger
}

// NewLocalTransport 创建并启动进程内通道
func NewLocalTransport(l logger.Logger) *LocalTransport {
	if l == nil {
		l = logger.NewNop()
	}
	t := &LocalTransport{
		requests: make(chan request),
		done:     make(chan struct{}),
		log:      l,
	}
	t.wg.Add(1)
	go t.serve()
	return t
}

// OnRequest 设置处理函数，后注册的覆盖先注册的
func (t *LocalTransport) OnRequest(h HandlerFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = h
}

// SendRequest 投递请求并等待响应，ctx 结束或通道关闭时返回错误
func (t *LocalTransport) SendRequest(ctx context.Context, msg domain.Message) (domain.Response, error) {
	req := request{ctx: ctx, msg: msg, reply: make(chan domain.Response, 1)}
	select {
	case t.requests <- req:
	case <-ctx.Done():
		return domain.Response{}, ctx.Err()
	case <-t.done:
		return domain.Response{}, ErrClosed
	}

	select {
	case resp := <-req.reply:
		return resp, nil
	case <-ctx.Done():
		return domain.Response{}, ctx.Err()
	}
}

func (t *LocalTransport) serve() {
	defer t.wg.Done()
	for {
		select {
		case <-t.done:
			return
		case req := <-t.requests:
			if req.ctx.Err() != nil {
				t.log.Debug("请求已取消，跳过处理", "type", string(req.msg.Type))
				continue
			}
			req.reply <- t.dispatch(req)
		}
	}
}

func (t *LocalTransport) dispatch(req request) domain.Response {
	t.mu.RLock()
	h := t.handler
	t.mu.RUnlock()
	if h == nil {
		return domain.Fail("no handler registered")
	}
	return h(req.ctx, req.msg)
}

// Close 停止处理循环，等待进行中的请求结束
func (t *LocalTransport) Close() {
	t.once.Do(func() {
		close(t.done)
	})
	t.wg.Wait()
}
