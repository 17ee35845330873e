package cdp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mafredri/cdp/devtool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atsassist/internal/messaging"
	"atsassist/pkg/domain"
)

// 目标的 WebSocket 地址指向不可连接的端口
func newDevToolsServer(t *testing.T) *httptest.Server {
	t.Helper()
	targets := []map[string]string{
		{"id": "A", "type": "page", "title": "Jane", "url": "https://app.greenhouse.io/people/1", "webSocketDebuggerUrl": "ws://127.0.0.1:1/devtools/page/A"},
		{"id": "B", "type": "service_worker", "url": "chrome-extension://x/sw.js", "webSocketDebuggerUrl": "ws://127.0.0.1:1/devtools/page/B"},
		{"id": "C", "type": "page", "title": "Jobs", "url": "https://jobs.lever.co/acme/jobs/9", "webSocketDebuggerUrl": "ws://127.0.0.1:1/devtools/page/C"},
		{"id": "D", "type": "page", "title": "attached", "url": "about:blank"},
	}
	mux := http.NewServeMux()
	list := func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(targets)
	}
	mux.HandleFunc("/json/list", list)
	mux.HandleFunc("/json", list)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestListTabsOnlyPages(t *testing.T) {
	srv := newDevToolsServer(t)
	m := New(srv.URL, nil)

	tabs, err := m.ListTabs(context.Background())
	require.NoError(t, err)
	require.Len(t, tabs, 2)
	assert.Equal(t, domain.TargetID("A"), tabs[0].ID)
	assert.Equal(t, "Jane", tabs[0].Title)
	assert.Equal(t, domain.TargetID("C"), tabs[1].ID)
}

func TestListTabsUnreachable(t *testing.T) {
	m := New("http://127.0.0.1:1", nil)
	_, err := m.ListTabs(context.Background())
	assert.Error(t, err)
}

func TestDialUnknownTarget(t *testing.T) {
	srv := newDevToolsServer(t)
	m := New(srv.URL, nil)

	_, err := m.Dial(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNoTarget)
}

func TestBroadcastToleratesTabFailures(t *testing.T) {
	srv := newDevToolsServer(t)
	b := NewBroadcaster(New(srv.URL, nil), nil)

	res := b.Broadcast(context.Background(), messaging.Notification{Type: domain.MessageSidebarStateChanged, IsOpen: true})
	assert.Equal(t, 0, res.Delivered)
	assert.Equal(t, 2, res.Failed)
}

func TestBroadcastWithoutBrowser(t *testing.T) {
	b := NewBroadcaster(New("http://127.0.0.1:1", nil), nil)
	res := b.Broadcast(context.Background(), messaging.Notification{Type: domain.MessageSidebarStateChanged})
	assert.Equal(t, messaging.BroadcastResult{}, res)
}

func TestNotifyScript(t *testing.T) {
	script, err := NotifyScript(messaging.Notification{Type: domain.MessageSidebarStateChanged, IsOpen: true})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(script, `window.dispatchEvent(new CustomEvent("atsassist:message"`))
	assert.Contains(t, script, `{"type":"SIDEBAR_STATE_CHANGED","isOpen":true}`)
}

func TestToTabInfo(t *testing.T) {
	info := ToTabInfo(&devtool.Target{ID: "X", Type: devtool.Page, URL: "https://a", Title: "t"})
	assert.Equal(t, domain.TabInfo{ID: "X", Type: "page", URL: "https://a", Title: "t"}, info)
}
