package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"atsassist/internal/ctxkeys"
	"atsassist/internal/logger"
	"atsassist/internal/state"
	"atsassist/pkg/domain"
)

const errPersistSidebar = "failed to persist sidebar state"

// 可由 SET_SIDEBAR_STATE 合并的字段，lastOpenedAt 只由服务端维护
var mergeableSidebarFields = map[string]bool{
	"isOpen":              true,
	"selectedCandidateId": true,
}

// TabNotifier 向所有标签页广播，单个标签页失败只记录不返回
type TabNotifier interface {
	Broadcast(ctx context.Context, n Notification) BroadcastResult
}

// BroadcastResult 广播结果统计
type BroadcastResult struct {
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
}

// CandidateFetcher 候选人查询
type CandidateFetcher interface {
	Get(ctx context.Context, id string) (json.RawMessage, error)
}

// PageContexts 提供各标签页最近一次检测结果
type PageContexts interface {
	Contexts() map[domain.TargetID]domain.PageContext
}

// Config 路由器配置
type Config struct {
	State      *state.Repository
	Notifier   TabNotifier
	Candidates CandidateFetcher
	Pages      PageContexts
	Now        func() time.Time
	Logger     logger.Logger
}

// Router 消息路由器，按 type 分发到对应处理分支
type Router struct {
	state      *state.Repository
	notifier   TabNotifier
	candidates CandidateFetcher
	pages      PageContexts
	now        func() time.Time
	log        logger.Logger
}

// New 创建路由器
func New(cfg Config) *Router {
	r := &Router{
		state:      cfg.State,
		notifier:   cfg.Notifier,
		candidates: cfg.Candidates,
		pages:      cfg.Pages,
		now:        cfg.Now,
		log:        cfg.Logger,
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.log == nil {
		r.log = logger.NewNop()
	}
	return r
}

// Handle 处理一条消息，任何 panic 都会转换为失败响应
func (r *Router) Handle(ctx context.Context, msg domain.Message) (resp domain.Response) {
	if ctxkeys.TraceID(ctx) == "" {
		ctx = ctxkeys.WithTraceID(ctx, "")
	}
	l := r.log.With("traceId", ctxkeys.TraceID(ctx), "type", string(msg.Type))
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			l.Error("消息处理异常", "panic", rec)
			resp = domain.Fail(fmt.Sprint(rec))
		}
		l.Debug("消息处理完成", "success", resp.Success, "duration", time.Since(start))
	}()

	switch msg.Type {
	case domain.MessagePing:
		return domain.OK("pong")
	case domain.MessageGetSidebarState:
		return r.getSidebarState(ctx)
	case domain.MessageSetSidebarState:
		return r.setSidebarState(ctx, msg.Payload, l)
	case domain.MessageToggleSidebar:
		return r.toggleSidebar(ctx, l)
	case domain.MessageGetCandidate:
		return r.getCandidate(ctx, msg.Payload, l)
	case domain.MessageGetPageContext:
		return r.getPageContext()
	default:
		l.Warn("未知消息类型")
		return domain.Fail(fmt.Sprintf("Unknown message type: %s", msg.Type))
	}
}

// HandlerFunc 适配为传输层处理函数
func (r *Router) HandlerFunc() HandlerFunc {
	return r.Handle
}

func (r *Router) getSidebarState(ctx context.Context) domain.Response {
	st, _ := r.state.SidebarState(ctx)
	return domain.OK(st)
}

// setSidebarState 将部分负载合并到当前状态后持久化
func (r *Router) setSidebarState(ctx context.Context, payload json.RawMessage, l logger.Logger) domain.Response {
	if !hasPayload(payload) {
		return domain.Fail("Missing payload in SET_SIDEBAR_STATE")
	}
	patch := gjson.ParseBytes(payload)
	if !patch.IsObject() {
		return domain.Fail("Invalid payload in SET_SIDEBAR_STATE: expected object")
	}

	current, _ := r.state.SidebarState(ctx)
	merged := r.state.SidebarStateRaw(ctx)

	var mergeErr error
	patch.ForEach(func(key, value gjson.Result) bool {
		if !mergeableSidebarFields[key.String()] {
			l.Debug("忽略不可合并字段", "field", key.String())
			return true
		}
		merged, mergeErr = sjson.SetRawBytes(merged, key.String(), []byte(value.Raw))
		return mergeErr == nil
	})
	if mergeErr != nil {
		return domain.Fail(fmt.Sprintf("Invalid payload in SET_SIDEBAR_STATE: %v", mergeErr))
	}

	var next domain.SidebarState
	if err := json.Unmarshal(merged, &next); err != nil {
		return domain.Fail(fmt.Sprintf("Invalid payload in SET_SIDEBAR_STATE: %v", err))
	}
	if next.IsOpen {
		ts := r.now().UnixMilli()
		next.LastOpenedAt = &ts
	} else {
		next.LastOpenedAt = current.LastOpenedAt
	}

	if !r.state.SaveSidebarState(ctx, next) {
		return domain.Fail(errPersistSidebar)
	}
	l.Info("侧边栏状态已更新", "isOpen", next.IsOpen)
	return domain.OK(next)
}

// toggleSidebar 翻转打开状态并通知所有标签页
func (r *Router) toggleSidebar(ctx context.Context, l logger.Logger) domain.Response {
	st, _ := r.state.SidebarState(ctx)
	st.IsOpen = !st.IsOpen
	if st.IsOpen {
		ts := r.now().UnixMilli()
		st.LastOpenedAt = &ts
	}
	if !r.state.SaveSidebarState(ctx, st) {
		return domain.Fail(errPersistSidebar)
	}

	if r.notifier != nil {
		res := r.notifier.Broadcast(ctx, Notification{Type: domain.MessageSidebarStateChanged, IsOpen: st.IsOpen})
		l.Info("侧边栏状态已广播", "isOpen", st.IsOpen, "delivered", res.Delivered, "failed", res.Failed)
	}
	return domain.OK(st)
}

func (r *Router) getCandidate(ctx context.Context, payload json.RawMessage, l logger.Logger) domain.Response {
	if !hasPayload(payload) {
		return domain.Fail("Missing payload in GET_CANDIDATE")
	}
	id := gjson.GetBytes(payload, "id").String()
	if id == "" {
		return domain.Fail("Missing id in GET_CANDIDATE")
	}
	if r.candidates == nil {
		return domain.Fail("candidate lookup is not configured")
	}
	data, err := r.candidates.Get(ctx, id)
	if err != nil {
		l.Err(err, "查询候选人失败", "candidateId", id)
		return domain.Fail(err.Error())
	}
	return domain.OK(data)
}

func (r *Router) getPageContext() domain.Response {
	if r.pages == nil {
		return domain.OK(map[domain.TargetID]domain.PageContext{})
	}
	return domain.OK(r.pages.Contexts())
}
