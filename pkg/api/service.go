package api

import (
	"context"

	"atsassist/internal/config"
	"atsassist/internal/logger"
	"atsassist/internal/messaging"
	"atsassist/internal/service"
	"atsassist/pkg/domain"
)

// Service 后台服务接口
type Service interface {
	// Run 运行直到 ctx 结束
	Run(ctx context.Context) error

	// Send 在进程内发送消息
	Send(ctx context.Context, msg domain.Message) (domain.Response, error)

	// ListTabs 列出浏览器标签页
	ListTabs(ctx context.Context) ([]domain.TabInfo, error)

	// Events 订阅页面变化事件
	Events() <-chan domain.PageEvent

	// Close 释放资源
	Close() error
}

// Client 其他进程中的消息客户端
type Client interface {
	SendRequest(ctx context.Context, msg domain.Message) (domain.Response, error)
	Ping(ctx context.Context) error
}

// NewService 创建并返回服务接口实现
func NewService(cfg *config.Config, l logger.Logger) (Service, error) {
	s, err := service.New(service.Options{Config: cfg, Logger: l})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// NewClient 连接后台服务的 HTTP 接口
func NewClient(addr string) Client {
	return messaging.NewHTTPClient(addr, nil)
}
