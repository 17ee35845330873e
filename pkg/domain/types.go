package domain

import (
	"encoding/json"
	"regexp"
)

type TargetID string

// ATSPlatform 招聘系统平台定义，进程启动时构建，运行期只读
type ATSPlatform struct {
	Name     string           `json:"name"`
	Domains  []string         `json:"domains"`
	Patterns []*regexp.Regexp `json:"-"`
}

// PageType 页面类型，由 URL 推导
type PageType string

const (
	PageNone      PageType = ""
	PageCandidate PageType = "candidate"
	PagePosition  PageType = "position"
)

// PageContext 一次页面检测的结果
type PageContext struct {
	URL        string   `json:"url"`
	Platform   string   `json:"platform,omitempty"`
	PageType   PageType `json:"pageType,omitempty"`
	EntityID   string   `json:"entityId,omitempty"`
	DetectedAt int64    `json:"detectedAt"`
}

// PageEvent 标签页页面变化事件
type PageEvent struct {
	Tab       TargetID    `json:"tab"`
	Context   PageContext `json:"context"`
	Timestamp int64       `json:"timestamp"`
}

// SidebarState 侧边栏状态，持久化在 sidebarState 键下
type SidebarState struct {
	IsOpen              bool    `json:"isOpen"`
	SelectedCandidateID *string `json:"selectedCandidateId"`
	LastOpenedAt        *int64  `json:"lastOpenedAt,omitempty"`
}

// DefaultSidebarState 关闭且未选中的默认状态
func DefaultSidebarState() SidebarState {
	return SidebarState{IsOpen: false, SelectedCandidateID: nil}
}

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// CachedCandidate 候选人缓存条目
type CachedCandidate struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

type MessageType string

const (
	MessagePing            MessageType = "PING"
	MessageGetSidebarState MessageType = "GET_SIDEBAR_STATE"
	MessageSetSidebarState MessageType = "SET_SIDEBAR_STATE"
	MessageToggleSidebar   MessageType = "TOGGLE_SIDEBAR"
	MessageGetCandidate    MessageType = "GET_CANDIDATE"
	MessageGetPageContext  MessageType = "GET_PAGE_CONTEXT"

	// MessageSidebarStateChanged 广播给标签页的通知，不经过路由器
	MessageSidebarStateChanged MessageType = "SIDEBAR_STATE_CHANGED"
)

// Message 上下文之间传递的请求
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response 每个请求对应一个响应
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// OK 构造成功响应
func OK(data any) Response {
	return Response{Success: true, Data: data}
}

// Fail 构造失败响应
func Fail(msg string) Response {
	return Response{Success: false, Error: msg}
}

// TabInfo 浏览器页面目标
type TabInfo struct {
	ID    TargetID `json:"id"`
	Type  string   `json:"type"`
	URL   string   `json:"url"`
	Title string   `json:"title"`
}
