package messaging

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atsassist/internal/ctxkeys"
	"atsassist/internal/state"
	"atsassist/internal/storage"
	"atsassist/pkg/domain"
)

func newHTTPFixture(t *testing.T) (*httptest.Server, *HTTPClient) {
	t.Helper()
	repo := state.New(storage.New(storage.NewMemoryBackend(), nil), nil)
	require.True(t, repo.Install(context.Background()))

	tr := NewLocalTransport(nil)
	t.Cleanup(tr.Close)
	tr.OnRequest(New(Config{State: repo}).HandlerFunc())

	srv := httptest.NewServer(NewHTTPHandler(tr, nil))
	t.Cleanup(srv.Close)
	return srv, NewHTTPClient(srv.URL, srv.Client())
}

func TestHTTPClientRoundTrip(t *testing.T) {
	_, client := newHTTPFixture(t)
	ctx := context.Background()

	require.NoError(t, client.Ping(ctx))

	msg, err := NewMessage(domain.MessageSetSidebarState, map[string]any{"isOpen": true, "selectedCandidateId": "c-9"})
	require.NoError(t, err)
	resp, err := client.SendRequest(ctx, msg)
	require.NoError(t, err)
	set, err := Decode[domain.SidebarState](resp)
	require.NoError(t, err)
	assert.True(t, set.IsOpen)

	resp, err = client.SendRequest(ctx, domain.Message{Type: domain.MessageGetSidebarState})
	require.NoError(t, err)
	got, err := Decode[domain.SidebarState](resp)
	require.NoError(t, err)
	assert.Equal(t, set, got)
}

func TestHTTPClientFailureResponses(t *testing.T) {
	_, client := newHTTPFixture(t)

	resp, err := client.SendRequest(context.Background(), domain.Message{Type: "UNKNOWN_TYPE"})
	require.NoError(t, err)
	assert.Equal(t, domain.Fail("Unknown message type: UNKNOWN_TYPE"), resp)

	resp, err = client.SendRequest(context.Background(), domain.Message{Type: domain.MessageSetSidebarState})
	require.NoError(t, err)
	assert.Equal(t, domain.Fail("Missing payload in SET_SIDEBAR_STATE"), resp)
}

func TestHTTPHandlerRejectsBadRequests(t *testing.T) {
	srv, _ := newHTTPFixture(t)

	res, err := http.Get(srv.URL + "/message")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)

	res, err = http.Post(srv.URL+"/message", "application/json", strings.NewReader(`{"payload":{}}`))
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusNoContent, res.StatusCode)
}

func TestHTTPTraceIDPropagates(t *testing.T) {
	srv, _ := newHTTPFixture(t)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/message", strings.NewReader(`{"type":"PING"}`))
	require.NoError(t, err)
	req.Header.Set(TraceHeader, "trace-123")
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, "trace-123", res.Header.Get(TraceHeader))

	res, err = http.Post(srv.URL+"/message", "application/json", strings.NewReader(`{"type":"PING"}`))
	require.NoError(t, err)
	res.Body.Close()
	assert.NotEmpty(t, res.Header.Get(TraceHeader))
}

func TestHTTPClientSendsTraceID(t *testing.T) {
	var seen string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get(TraceHeader)
		writeResponse(w, http.StatusOK, domain.OK("pong"))
	}))
	defer srv.Close()

	client := NewHTTPClient(strings.TrimPrefix(srv.URL, "http://"), nil)
	ctx := ctxkeys.WithTraceID(context.Background(), "abc")
	require.NoError(t, client.Ping(ctx))
	assert.Equal(t, "abc", seen)
}

func TestHTTPClientServerUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeResponse(w, http.StatusServiceUnavailable, domain.Fail(ErrClosed.Error()))
	}))
	defer srv.Close()

	_, err := NewHTTPClient(srv.URL, nil).SendRequest(context.Background(), domain.Message{Type: domain.MessagePing})
	assert.EqualError(t, err, ErrClosed.Error())
}
