package ctxkeys

import (
	"context"

	"github.com/google/uuid"
)

// TraceIDKey 上下文中的追踪ID键
type TraceIDKey struct{}

// WithTraceID 在上下文中写入追踪ID，id 为空时自动生成
func WithTraceID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.NewString()
	}
	return context.WithValue(ctx, TraceIDKey{}, id)
}

// TraceID 读取上下文中的追踪ID
func TraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(TraceIDKey{}).(string)
	return id
}
