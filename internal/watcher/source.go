package watcher

import (
	"sync"
	"time"
)

// Source 导航信号来源，每次可能的地址变化调用一次 check
type Source interface {
	Start(check func()) error
	Stop()
}

const (
	MinTickInterval     = 500 * time.Millisecond
	MaxTickInterval     = time.Second
	DefaultTickInterval = time.Second
)

// Ticker 定时轮询来源，用于兜底无法感知的地址变化
type Ticker struct {
	interval time.Duration

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewTicker 创建轮询来源，间隔被限制在 [500ms, 1s]，非正值使用默认值
func NewTicker(d time.Duration) *Ticker {
	switch {
	case d <= 0:
		d = DefaultTickInterval
	case d < MinTickInterval:
		d = MinTickInterval
	case d > MaxTickInterval:
		d = MaxTickInterval
	}
	return &Ticker{interval: d}
}

// Interval 实际生效的轮询间隔
func (t *Ticker) Interval() time.Duration { return t.interval }

func (t *Ticker) Start(check func()) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop != nil {
		return nil
	}
	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	go func(stop <-chan struct{}, done chan<- struct{}) {
		defer close(done)
		tk := time.NewTicker(t.interval)
		defer tk.Stop()
		for {
			select {
			case <-stop:
				return
			case <-tk.C:
				check()
			}
		}
	}(t.stop, t.done)
	return nil
}

func (t *Ticker) Stop() {
	t.mu.Lock()
	stop, done := t.stop, t.done
	t.stop, t.done = nil, nil
	t.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}
