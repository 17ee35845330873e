package watcher

import (
	"context"
	"sync"
)

// History 显式的会话历史，监听者在状态更新之后收到通知
type History struct {
	mu      sync.Mutex
	entries []string
	index   int
	subs    map[int]func(string)
	nextSub int
}

// NewHistory 以初始地址创建历史
func NewHistory(initial string) *History {
	return &History{entries: []string{initial}, subs: make(map[int]func(string))}
}

// PushState 丢弃前进记录并压入新地址
func (h *History) PushState(url string) {
	h.mu.Lock()
	h.entries = append(h.entries[:h.index+1], url)
	h.index++
	h.mu.Unlock()
	h.notify(url)
}

// ReplaceState 替换当前地址
func (h *History) ReplaceState(url string) {
	h.mu.Lock()
	h.entries[h.index] = url
	h.mu.Unlock()
	h.notify(url)
}

// Back 后退一步，已在最早记录时返回 false
func (h *History) Back() bool {
	h.mu.Lock()
	if h.index == 0 {
		h.mu.Unlock()
		return false
	}
	h.index--
	url := h.entries[h.index]
	h.mu.Unlock()
	h.notify(url)
	return true
}

// Current 当前地址
func (h *History) Current() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.entries[h.index]
}

// URL 以 Watcher 需要的形式读取当前地址
func (h *History) URL(context.Context) (string, error) {
	return h.Current(), nil
}

// Subscribe 订阅地址变化，返回取消订阅函数
func (h *History) Subscribe(fn func(string)) func() {
	h.mu.Lock()
	id := h.nextSub
	h.nextSub++
	h.subs[id] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
}

func (h *History) notify(url string) {
	h.mu.Lock()
	subs := make([]func(string), 0, len(h.subs))
	for _, fn := range h.subs {
		subs = append(subs, fn)
	}
	h.mu.Unlock()
	for _, fn := range subs {
		fn(url)
	}
}

type historySource struct {
	h *History

	mu    sync.Mutex
	unsub func()
}

// NewHistorySource 将 History 适配为 Source
func NewHistorySource(h *History) Source {
	return &historySource{h: h}
}

func (s *historySource) Start(check func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unsub == nil {
		s.unsub = s.h.Subscribe(func(string) { check() })
	}
	return nil
}

func (s *historySource) Stop() {
	s.mu.Lock()
	unsub := s.unsub
	s.unsub = nil
	s.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}
