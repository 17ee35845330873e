package service

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atsassist/internal/config"
	"atsassist/internal/messaging"
	"atsassist/internal/storage"
	"atsassist/pkg/domain"
)

func newService(t *testing.T) *Service {
	t.Helper()
	s, err := New(Options{Config: config.NewConfig(), Backend: storage.NewMemoryBackend()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNewInstallsDefaults(t *testing.T) {
	s := newService(t)
	st, ok := s.State().SidebarState(context.Background())
	require.True(t, ok)
	assert.Equal(t, domain.DefaultSidebarState(), st)
}

func TestSendInProcess(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	resp, err := s.Send(ctx, domain.Message{Type: domain.MessageToggleSidebar})
	require.NoError(t, err)
	require.True(t, resp.Success)

	resp, err = s.Send(ctx, domain.Message{Type: domain.MessageGetCandidate, Payload: []byte(`{"id":"1"}`)})
	require.NoError(t, err)
	assert.Equal(t, "candidate lookup is not configured", resp.Error)

	resp, err = s.Send(ctx, domain.Message{Type: domain.MessageGetPageContext})
	require.NoError(t, err)
	assert.True(t, resp.Success)
}

func TestListTabsWithoutDevTools(t *testing.T) {
	_, err := newService(t).ListTabs(context.Background())
	assert.Error(t, err)
}

func TestServeOverHTTP(t *testing.T) {
	s := newService(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.serve(ctx, ln) }()

	client := messaging.NewHTTPClient(ln.Addr().String(), nil)
	require.Eventually(t, func() bool {
		return client.Ping(ctx) == nil
	}, 2*time.Second, 20*time.Millisecond)

	resp, err := client.SendRequest(ctx, domain.Message{Type: domain.MessagePing})
	require.NoError(t, err)
	assert.Equal(t, "pong", resp.Data)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("service did not stop")
	}
}

func TestNewRejectsBadCandidatesConfig(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Candidates.BaseURL = "http://127.0.0.1:1"
	_, err := New(Options{Config: cfg, Backend: storage.NewMemoryBackend()})
	assert.Error(t, err)
}
